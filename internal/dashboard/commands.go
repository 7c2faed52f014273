package dashboard

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/icryo/backplane-tui/internal/engine"
	"github.com/icryo/backplane-tui/internal/runtime"
)

// commandCmd runs one container lifecycle command asynchronously. The outcome
// arrives as a CommandResult on the queue; the UI never blocks on the daemon.
func (m Model) commandCmd(op engine.CommandOp, id, name string) tea.Cmd {
	api, queue, sources := m.api, m.queue, m.sources
	timeout := m.cfg.CommandTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		var err error
		switch op {
		case engine.OpStart:
			err = api.StartContainer(ctx, id)
		case engine.OpStop:
			err = api.StopContainer(ctx, id)
		case engine.OpRestart:
			err = api.RestartContainer(ctx, id)
		case engine.OpRemove:
			err = api.RemoveContainer(ctx, id)
		case engine.OpPause:
			err = api.PauseContainer(ctx, id)
		case engine.OpUnpause:
			err = api.UnpauseContainer(ctx, id)
		}

		queue.Publish(engine.CommandResult{
			Op:            op,
			ContainerID:   id,
			ContainerName: name,
			Err:           errString(err),
			Time:          time.Now(),
		})
		if err == nil {
			sources.KickInventory()
		}
		return nil
	}
}

// renameCmd renames a container and requests a fresh inventory pass so the
// new name lands before the next tick.
func (m Model) renameCmd(id, name string) tea.Cmd {
	api, queue, sources := m.api, m.queue, m.sources
	timeout := m.cfg.CommandTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		err := api.RenameContainer(ctx, id, name)
		queue.Publish(engine.CommandResult{
			Op:            engine.OpRename,
			ContainerID:   id,
			ContainerName: name,
			Err:           errString(err),
			Time:          time.Now(),
		})
		if err == nil {
			sources.KickInventory()
		}
		return nil
	}
}

// createCmd creates and starts a container from the form spec.
func (m Model) createCmd(spec runtime.CreateSpec) tea.Cmd {
	api, queue, sources := m.api, m.queue, m.sources
	timeout := m.cfg.CommandTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		id, err := api.CreateContainer(ctx, spec)
		queue.Publish(engine.CommandResult{
			Op:            engine.OpCreate,
			ContainerID:   id,
			ContainerName: spec.Name,
			Err:           errString(err),
			Time:          time.Now(),
		})
		if err == nil {
			sources.KickInventory()
		}
		return nil
	}
}

// openLogsCmd opens a log session on the container. Success arrives as
// SessionOpened on the queue; failure surfaces as a transient status.
func (m Model) openLogsCmd(id, name string) tea.Cmd {
	sessions, queue := m.sessions, m.queue
	return func() tea.Msg {
		if err := sessions.OpenLogs(id, name); err != nil {
			queue.Publish(engine.CommandResult{
				Op:            engine.OpLogs,
				ContainerID:   id,
				ContainerName: name,
				Err:           err.Error(),
				Time:          time.Now(),
			})
		}
		return nil
	}
}

// openExecCmd opens an interactive shell on the container, sized to the
// current terminal. Admission failures (shell already open, no shell in the
// image) surface as a transient status without disturbing any open session.
func (m Model) openExecCmd(id, name string) tea.Cmd {
	sessions, queue := m.sessions, m.queue
	w, h := m.execSize()
	return func() tea.Msg {
		err := sessions.OpenExec(id, name, w, h)
		if err == nil {
			return nil
		}
		msg := err.Error()
		if errors.Is(err, engine.ErrSessionAlreadyActive) {
			msg = "a shell is already open"
		} else if errors.Is(err, engine.ErrNoShellAvailable) {
			msg = "no shell available in this container"
		}
		queue.Publish(engine.CommandResult{
			Op:            engine.OpShell,
			ContainerID:   id,
			ContainerName: name,
			Err:           msg,
			Time:          time.Now(),
		})
		return nil
	}
}

// closeLogsCmd tears down the log session; the store leaves logs mode when
// the resulting SessionEnded arrives.
func (m Model) closeLogsCmd(containerID string) tea.Cmd {
	sessions := m.sessions
	return func() tea.Msg {
		sessions.CloseLogs(containerID)
		return nil
	}
}

func (m Model) closeExecCmd() tea.Cmd {
	sessions := m.sessions
	return func() tea.Msg {
		sessions.CloseExec()
		return nil
	}
}

// writeExecCmd forwards raw keystrokes to the active shell.
func (m Model) writeExecCmd(data []byte) tea.Cmd {
	sessions, log := m.sessions, m.log
	return func() tea.Msg {
		if err := sessions.WriteExec(data); err != nil {
			log.Debug("exec write failed: %v", err)
		}
		return nil
	}
}

// resizeExecCmd propagates the current terminal size to the remote pty.
func (m Model) resizeExecCmd() tea.Cmd {
	sessions := m.sessions
	w, h := m.execSize()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sessions.ResizeExec(ctx, w, h)
		return nil
	}
}

// execSize is the pty size: full width, height minus the header and footer
// chrome around the terminal pane.
func (m Model) execSize() (uint16, uint16) {
	w, h := m.width, m.height-3
	if w < 10 {
		w = 80
	}
	if h < 5 {
		h = 24
	}
	return uint16(w), uint16(h)
}

// topCmd fetches the container's process listing for the processes view.
func (m Model) topCmd(id, name string) tea.Cmd {
	api, queue := m.api, m.queue
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		list, err := api.Top(ctx, id)
		queue.Publish(engine.ProcessesLoaded{
			ContainerID:   id,
			ContainerName: name,
			List:          list,
			Err:           errString(err),
			Time:          time.Now(),
		})
		return nil
	}
}

// loadImagesCmd fetches the local image tags for the create form suggestions.
func (m Model) loadImagesCmd() tea.Cmd {
	api := m.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		images, err := api.ListImages(ctx)
		if err != nil {
			return imagesMsg{}
		}
		return imagesMsg{images: images}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
