package dashboard

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/icryo/backplane-tui/internal/engine"
)

// Key bindings as constants for consistency.
const (
	KeyQuit        = "q"
	KeyQuitAlt     = "ctrl+c"
	KeySelectPrev  = "up"
	KeySelectPrevK = "k"
	KeySelectNext  = "down"
	KeySelectNextJ = "j"
	KeySelectFirst = "home"
	KeySelectLast  = "end"
	KeyLogs        = "enter"
	KeyShell       = "e"
	KeyBack        = "esc"
	KeyStart       = "s"
	KeyStop        = "x"
	KeyRestart     = "r"
	KeyPause       = "p"
	KeyUnpause     = "P"
	KeyRemove      = "d"
	KeyRename      = "R"
	KeyCreate      = "c"
	KeyProcesses   = "t"
	KeyFilter      = "/"
	KeyStatusCycle = "f"
	KeyColumns     = "tab"
	KeyColumnsBack = "shift+tab"
	KeyToggleHelp  = "?"
	KeyConfirmYes  = "y"
	KeyConfirmNo   = "n"
	KeyDetach      = "ctrl+q"
)

// handleKey routes keyboard input by view mode. Exec mode owns the keyboard
// entirely except for the detach binding; everything it receives is forwarded
// to the remote shell as raw bytes.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.store.Mode() {
	case engine.ModeExec:
		return m.handleExecKey(msg)
	case engine.ModeLogs:
		return m.handleLogsKey(msg)
	case engine.ModeHelp, engine.ModeProcesses:
		return m.handleHelpKey(msg)
	case engine.ModeConfirm:
		return m.handleConfirmKey(msg)
	case engine.ModeCreate:
		return m.handleCreateKey(msg)
	default:
		return m.handleListKey(msg)
	}
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if m.filtering {
		return m.handleFilterKey(msg)
	}
	if m.renaming {
		return m.handleRenameKey(msg)
	}

	switch key {
	case KeyQuit, KeyQuitAlt:
		m.quitting = true
		return m, tea.Quit

	case KeySelectPrev, KeySelectPrevK:
		m.store.Apply(engine.MoveSelection{Delta: -1})
	case KeySelectNext, KeySelectNextJ:
		m.store.Apply(engine.MoveSelection{Delta: 1})
	case KeySelectFirst, "g":
		m.store.Apply(engine.SelectFirst{})
	case KeySelectLast, "G":
		m.store.Apply(engine.SelectLast{})

	case KeyLogs:
		if sel := m.store.Selected(); sel != nil {
			m.followLogs = true
			return m, m.openLogsCmd(sel.ID, sel.Name)
		}

	case KeyShell:
		if sel := m.store.Selected(); sel != nil && sel.Running() {
			return m, m.openExecCmd(sel.ID, sel.Name)
		}

	case KeyStart:
		if sel := m.store.Selected(); sel != nil && !sel.Running() {
			return m, m.commandCmd(engine.OpStart, sel.ID, sel.Name)
		}
	case KeyStop:
		if sel := m.store.Selected(); sel != nil && sel.Running() {
			m.store.Apply(engine.ConfirmRequested{
				Op: engine.OpStop, ContainerID: sel.ID, ContainerName: sel.Name,
			})
		}
	case KeyRestart:
		if sel := m.store.Selected(); sel != nil {
			return m, m.commandCmd(engine.OpRestart, sel.ID, sel.Name)
		}
	case KeyPause:
		if sel := m.store.Selected(); sel != nil && sel.State == "running" {
			return m, m.commandCmd(engine.OpPause, sel.ID, sel.Name)
		}
	case KeyUnpause:
		if sel := m.store.Selected(); sel != nil && sel.State == "paused" {
			return m, m.commandCmd(engine.OpUnpause, sel.ID, sel.Name)
		}
	case KeyRemove:
		if sel := m.store.Selected(); sel != nil {
			m.store.Apply(engine.ConfirmRequested{
				Op: engine.OpRemove, ContainerID: sel.ID, ContainerName: sel.Name,
			})
		}

	case KeyRename:
		if sel := m.store.Selected(); sel != nil {
			m.renaming = true
			m.renameID = sel.ID
			m.renameInput.SetValue(sel.Name)
			m.renameInput.Focus()
		}

	case KeyProcesses:
		if sel := m.store.Selected(); sel != nil && sel.Running() {
			return m, m.topCmd(sel.ID, sel.Name)
		}

	case KeyCreate:
		m.startCreateForm()
		m.store.Apply(engine.SetMode{Mode: engine.ModeCreate})
		return m, tea.Batch(m.createForm.Init(), m.loadImagesCmd())

	case KeyFilter:
		m.filtering = true
		m.filterInput.SetValue(m.store.Filter())
		m.filterInput.Focus()

	case KeyStatusCycle:
		m.store.Apply(engine.CycleStatusFilter{})
	case KeyColumns:
		m.store.Apply(engine.CycleColumns{Dir: 1})
	case KeyColumnsBack:
		m.store.Apply(engine.CycleColumns{Dir: -1})

	case KeyToggleHelp:
		m.store.Apply(engine.SetMode{Mode: engine.ModeHelp})

	case KeyBack:
		if m.store.Filter() != "" {
			m.store.Apply(engine.SetFilter{Text: ""})
		}
	}

	return m, nil
}

// handleFilterKey feeds keystrokes to the filter input and applies the text
// live on every change. Esc clears, enter keeps the filter and returns focus
// to the list.
func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyBack:
		m.filtering = false
		m.filterInput.Blur()
		m.store.Apply(engine.SetFilter{Text: ""})
		return m, nil
	case "enter":
		m.filtering = false
		m.filterInput.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	m.store.Apply(engine.SetFilter{Text: m.filterInput.Value()})
	return m, cmd
}

func (m Model) handleRenameKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyBack:
		m.renaming = false
		m.renameInput.Blur()
		return m, nil
	case "enter":
		m.renaming = false
		m.renameInput.Blur()
		name := m.renameInput.Value()
		if name == "" || m.renameID == "" {
			return m, nil
		}
		return m, m.renameCmd(m.renameID, name)
	}

	var cmd tea.Cmd
	m.renameInput, cmd = m.renameInput.Update(msg)
	return m, cmd
}

func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyBack, KeyQuit:
		return m, m.closeLogsCmd(m.store.Session().ContainerID)
	case KeyQuitAlt:
		m.quitting = true
		return m, tea.Quit
	case "end", "G":
		m.followLogs = true
		m.logViewport.GotoBottom()
		return m, nil
	}

	// Scrolling detaches from follow mode; reaching the bottom re-engages it.
	var cmd tea.Cmd
	m.logViewport, cmd = m.logViewport.Update(msg)
	m.followLogs = m.logViewport.AtBottom()
	return m, cmd
}

func (m Model) handleExecKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == KeyDetach {
		return m, m.closeExecCmd()
	}
	data := keyToBytes(msg)
	if len(data) == 0 {
		return m, nil
	}
	return m, m.writeExecCmd(data)
}

func (m Model) handleHelpKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuitAlt:
		m.quitting = true
		return m, tea.Quit
	default:
		m.store.Apply(engine.SetMode{Mode: engine.ModeList})
	}
	return m, nil
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyConfirmYes, "enter":
		pending := m.store.Pending()
		m.store.Apply(engine.ConfirmDismissed{})
		if pending != nil {
			return m, m.commandCmd(pending.Op, pending.ContainerID, pending.ContainerName)
		}
	case KeyConfirmNo, KeyBack, KeyQuit:
		m.store.Apply(engine.ConfirmDismissed{})
	case KeyQuitAlt:
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handleCreateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyBack:
		m.createForm = nil
		m.createVals = nil
		m.store.Apply(engine.SetMode{Mode: engine.ModeList})
		return m, nil
	case KeyQuitAlt:
		m.quitting = true
		return m, tea.Quit
	}

	if m.createForm == nil {
		return m, nil
	}
	form, cmd := m.createForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.createForm = f
	}
	if m.createForm.State == huh.StateCompleted {
		return m.submitCreate()
	}
	return m, cmd
}

// keyToBytes translates a Bubble Tea key event into the raw bytes a terminal
// would send, for forwarding to the remote pty.
func keyToBytes(msg tea.KeyMsg) []byte {
	switch msg.Type {
	case tea.KeyRunes:
		return []byte(string(msg.Runes))
	case tea.KeySpace:
		return []byte{' '}
	case tea.KeyUp:
		return []byte{0x1b, '[', 'A'}
	case tea.KeyDown:
		return []byte{0x1b, '[', 'B'}
	case tea.KeyRight:
		return []byte{0x1b, '[', 'C'}
	case tea.KeyLeft:
		return []byte{0x1b, '[', 'D'}
	case tea.KeyHome:
		return []byte{0x1b, '[', 'H'}
	case tea.KeyEnd:
		return []byte{0x1b, '[', 'F'}
	case tea.KeyDelete:
		return []byte{0x1b, '[', '3', '~'}
	case tea.KeyPgUp:
		return []byte{0x1b, '[', '5', '~'}
	case tea.KeyPgDown:
		return []byte{0x1b, '[', '6', '~'}
	}

	// Control characters and other single-byte keys (enter, tab, backspace,
	// esc, ctrl+a..z) map directly to their byte value.
	if msg.Type >= 0 && msg.Type < 128 {
		return []byte{byte(msg.Type)}
	}
	return nil
}
