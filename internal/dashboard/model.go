package dashboard

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/icryo/backplane-tui/internal/config"
	"github.com/icryo/backplane-tui/internal/engine"
	"github.com/icryo/backplane-tui/internal/hostmetrics"
	"github.com/icryo/backplane-tui/internal/logger"
	"github.com/icryo/backplane-tui/internal/runtime"
)

// statusTTL is how long a transient command status stays on screen.
const statusTTL = 4 * time.Second

// Model is the Bubble Tea model for the dashboard. It owns the dispatcher
// role: it is the only goroutine that applies events to the store, so every
// render sees a consistent state. Side effects (session teardown, lifecycle
// commands) run as tea.Cmds that publish their outcomes back onto the queue.
type Model struct {
	store    *engine.Store
	queue    *engine.Queue
	sources  *engine.Sources
	sessions *engine.Sessions
	api      runtime.API
	cfg      *config.Config
	log      logger.Logger

	width  int
	height int

	// logViewport scrolls the log session's scrollback.
	logViewport   viewport.Model
	viewportReady bool
	followLogs    bool

	// filterInput captures filter text while filtering is active; the list
	// keeps updating live underneath it.
	filterInput textinput.Model
	filtering   bool

	// renameInput captures the new name for the selected container.
	renameInput textinput.Model
	renaming    bool
	renameID    string

	// createForm is the container create form, non-nil only in ModeCreate.
	createForm *huh.Form
	createVals *createValues
	images     []string

	quitting bool
}

// engineEventMsg delivers one engine event to the dispatcher.
type engineEventMsg struct {
	ev engine.Event
}

// queueClosedMsg signals the queue has drained after shutdown.
type queueClosedMsg struct{}

// statusExpireMsg clears the transient status line if it has not been
// superseded since it was set.
type statusExpireMsg struct {
	setAt time.Time
}

// imagesMsg carries the local image list for the create form.
type imagesMsg struct {
	images []string
}

// New assembles the dashboard from its engine parts.
func New(api runtime.API, cfg *config.Config) Model {
	queue := engine.NewQueue()
	store := engine.NewStore(engine.StoreOptions{
		TombstoneGrace: cfg.TombstoneGrace,
		LogBuffer:      cfg.Logs.Buffer,
	})
	sampler := hostmetrics.NewSampler(cfg.Refresh.Host)
	sources := engine.NewSources(api, sampler, queue, engine.SourcesOptions{
		Inventory: cfg.Refresh.Inventory,
		Stats:     cfg.Refresh.Stats,
		Host:      cfg.Refresh.Host,
	})
	sessions := engine.NewSessions(api, queue, engine.SessionsOptions{
		LogTail: cfg.Logs.Tail,
		Shells:  cfg.Exec.Shells,
	})

	fi := textinput.New()
	fi.Placeholder = "filter by name"
	fi.Prompt = "/ "
	fi.CharLimit = 64

	ri := textinput.New()
	ri.Placeholder = "new name"
	ri.Prompt = "rename: "
	ri.CharLimit = 128

	return Model{
		store:       store,
		queue:       queue,
		sources:     sources,
		sessions:    sessions,
		api:         api,
		cfg:         cfg,
		log:         logger.NewEnvLogger("[dashboard]"),
		filterInput: fi,
		renameInput: ri,
		followLogs:  true,
	}
}

// Store exposes the view state for tests.
func (m Model) Store() *engine.Store { return m.store }

// Init starts the producers and arms the event wait.
func (m Model) Init() tea.Cmd {
	m.sources.Start(context.Background())
	return m.waitEvent()
}

// waitEvent blocks until the next engine event is available. The dispatcher
// re-arms it after every delivery, so exactly one wait is outstanding.
func (m Model) waitEvent() tea.Cmd {
	queue := m.queue
	return func() tea.Msg {
		ev, err := queue.Next(context.Background())
		if err != nil {
			return queueClosedMsg{}
		}
		return engineEventMsg{ev: ev}
	}
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layoutViewport()
		if m.store.Mode() == engine.ModeExec {
			return m, m.resizeExecCmd()
		}

	case engineEventMsg:
		return m.dispatch(msg.ev)

	case statusExpireMsg:
		if st := m.store.Status(); st != nil && !st.Time.After(msg.setAt) {
			m.store.Apply(engine.StatusCleared{})
		}

	case imagesMsg:
		m.images = msg.images

	case queueClosedMsg:
		return m, nil
	}

	if m.store.Mode() == engine.ModeCreate && m.createForm != nil {
		form, cmd := m.createForm.Update(msg)
		if f, ok := form.(*huh.Form); ok {
			m.createForm = f
		}
		if m.createForm.State == huh.StateCompleted {
			return m.submitCreate()
		}
		return m, cmd
	}

	return m, nil
}

// dispatch applies one event plus everything else already pending, so a
// burst of samples costs one render, then re-arms the wait. Side effects
// that an event implies (tearing down sessions for a removed container)
// run before Apply so the store transition and the teardown stay ordered.
func (m Model) dispatch(ev engine.Event) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.waitEvent()}

	apply := func(ev engine.Event) {
		if c := m.sideEffects(ev); c != nil {
			cmds = append(cmds, c)
		}
		m.store.Apply(ev)
	}

	apply(ev)
	for {
		next, ok := m.queue.Poll()
		if !ok {
			break
		}
		apply(next)
	}

	m.syncLogViewport()
	return m, tea.Batch(cmds...)
}

// sideEffects returns the command an event implies, if any.
func (m *Model) sideEffects(ev engine.Event) tea.Cmd {
	switch ev := ev.(type) {
	case engine.ContainerRemoved:
		sessions := m.sessions
		id := ev.ID
		return func() tea.Msg {
			sessions.CloseFor(id)
			return nil
		}
	case engine.CommandResult:
		setAt := ev.Time
		return tea.Tick(statusTTL, func(time.Time) tea.Msg {
			return statusExpireMsg{setAt: setAt}
		})
	case engine.SessionEnded:
		if ev.Err != "" {
			setAt := ev.Time
			return tea.Tick(statusTTL, func(time.Time) tea.Msg {
				return statusExpireMsg{setAt: setAt}
			})
		}
	}
	return nil
}

// layoutViewport sizes the log viewport to the current terminal.
func (m *Model) layoutViewport() {
	headerHeight := 6
	footerHeight := 2
	vh := m.height - headerHeight - footerHeight
	if vh < 1 {
		vh = 1
	}
	if !m.viewportReady {
		m.logViewport = viewport.New(m.width, vh)
		m.viewportReady = true
	} else {
		m.logViewport.Width = m.width
		m.logViewport.Height = vh
	}
}

// syncLogViewport refreshes the viewport content from the log ring. Follow
// mode pins the view to the bottom; scrolling up disables follow until the
// user returns to the bottom.
func (m *Model) syncLogViewport() {
	if m.store.Mode() != engine.ModeLogs || !m.viewportReady {
		return
	}
	m.logViewport.SetContent(joinLines(m.store.LogLines(), m.width))
	if m.followLogs {
		m.logViewport.GotoBottom()
	}
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.render()
}

// Shutdown stops producers and tears down all sessions. Called by the CLI
// after the program exits so the daemon connection closes cleanly.
func (m Model) Shutdown() {
	m.sources.Stop()
	m.sessions.CloseAll()
	m.queue.Close()
}
