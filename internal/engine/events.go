package engine

import (
	"time"

	"github.com/icryo/backplane-tui/internal/hostmetrics"
	"github.com/icryo/backplane-tui/internal/runtime"
)

// Event is one input to the view state store. Producers publish events onto
// the shared queue; the dispatcher applies them one at a time, so each event
// is exactly one atomic state transition. Events carry their own timestamps
// so Apply never reads the clock.
type Event interface {
	// coalesceKey identifies the queue slot this event occupies. Events with
	// the same non-empty key supersede each other while pending: only the
	// newest sample per (source, identity) is ever meaningful. An empty key
	// means every occurrence matters (deltas, log lines, session output) and
	// the event is queued unconditionally.
	coalesceKey() string
}

// ContainerAdded reports a container seen for the first time in inventory.
type ContainerAdded struct {
	Container runtime.Container
	Time      time.Time
}

// ContainerUpdated reports changed fields for a known container.
type ContainerUpdated struct {
	Container runtime.Container
	Time      time.Time
}

// ContainerRemoved reports a container absent from an inventory refresh.
// The store tombstones it rather than dropping it, so a transient daemon
// hiccup does not make the list flicker.
type ContainerRemoved struct {
	ID   string
	Time time.Time
}

// InventorySynced marks the end of one inventory refresh cycle. The store
// uses it to purge tombstones whose grace window has expired.
type InventorySynced struct {
	Time time.Time
}

// StatsUpdated carries a fresh usage sample for one container.
type StatsUpdated struct {
	Sample runtime.StatsSample
}

// StatsUnavailable marks one container's stats as failed this cycle, without
// failing the cycle for other containers.
type StatsUnavailable struct {
	ID   string
	Err  string
	Time time.Time
}

// HostUpdated carries a fresh host metrics snapshot.
type HostUpdated struct {
	Metrics hostmetrics.Metrics
}

// HostUnavailable marks host metrics as failed this cycle.
type HostUnavailable struct {
	Err  string
	Time time.Time
}

// DaemonDown reports the runtime daemon as unreachable. It affects all
// producers equally and is surfaced as a global banner, cleared by DaemonBack
// on the next successful cycle.
type DaemonDown struct {
	Err  string
	Time time.Time
}

// DaemonBack clears the daemon-unreachable banner.
type DaemonBack struct {
	Time time.Time
}

// SessionKind distinguishes log-tail from exec-shell sessions.
type SessionKind int

const (
	SessionLogs SessionKind = iota
	SessionExec
)

// String returns a human-readable session kind.
func (k SessionKind) String() string {
	switch k {
	case SessionLogs:
		return "logs"
	case SessionExec:
		return "exec"
	default:
		return "unknown"
	}
}

// SessionOpened transitions the view into the session's mode. The dispatcher
// publishes it after the session manager hands back a live handle, so the
// mode change flows through Apply like every other transition.
type SessionOpened struct {
	Kind          SessionKind
	SessionID     int64
	ContainerID   string
	ContainerName string
	Time          time.Time
}

// LogLine carries one received log line for an active log session.
type LogLine struct {
	SessionID   int64
	ContainerID string
	Line        string
	Time        time.Time
}

// ExecOutput carries raw terminal output bytes from an exec session.
type ExecOutput struct {
	SessionID int64
	Chunk     []byte
	Time      time.Time
}

// SessionEnded reports that a session finished: remote process exit,
// explicit cancel, stream interruption, or container removal. Emitted
// exactly once per session.
type SessionEnded struct {
	Kind        SessionKind
	SessionID   int64
	ContainerID string
	Err         string
	Time        time.Time
}

// CommandOp identifies a container lifecycle command.
type CommandOp string

const (
	OpStart   CommandOp = "start"
	OpStop    CommandOp = "stop"
	OpRestart CommandOp = "restart"
	OpRemove  CommandOp = "remove"
	OpPause   CommandOp = "pause"
	OpUnpause CommandOp = "unpause"
	OpRename  CommandOp = "rename"
	OpCreate  CommandOp = "create"
	OpLogs    CommandOp = "logs"
	OpShell   CommandOp = "shell"
)

// ProcessesLoaded carries the process listing for one container, shown in
// the processes view. Only the latest pending listing matters.
type ProcessesLoaded struct {
	ContainerID   string
	ContainerName string
	List          runtime.ProcessList
	Err           string
	Time          time.Time
}

// CommandResult reports the outcome of an asynchronous container command.
// Failures surface as transient status, never as fatal errors.
type CommandResult struct {
	Op            CommandOp
	ContainerID   string
	ContainerName string
	Err           string
	Time          time.Time
}

// The following events originate from user input; the dispatcher translates
// keystrokes into them so every state mutation goes through Apply.

// MoveSelection moves the selection by delta within the visible list.
type MoveSelection struct {
	Delta int
}

// SelectFirst moves the selection to the top of the visible list.
type SelectFirst struct{}

// SelectLast moves the selection to the bottom of the visible list.
type SelectLast struct{}

// SetFilter replaces the active filter text. Filtering is a derived view;
// the canonical container sequence is never modified.
type SetFilter struct {
	Text string
}

// CycleStatusFilter advances the quick status filter (all/running/stopped).
type CycleStatusFilter struct{}

// CycleColumns switches the list columns (stats/network/details).
// Dir is +1 or -1.
type CycleColumns struct {
	Dir int
}

// SetMode forces a view mode change (help, create, back to list).
type SetMode struct {
	Mode ViewMode
}

// ConfirmRequested arms the confirmation modal for a destructive command.
type ConfirmRequested struct {
	Op            CommandOp
	ContainerID   string
	ContainerName string
}

// ConfirmDismissed closes the confirmation modal without executing.
type ConfirmDismissed struct{}

// StatusCleared removes the transient status line.
type StatusCleared struct{}

// Coalescing keys. Inventory deltas, log lines, exec output, session
// lifecycle, and command results are never coalesced: each is a distinct
// transition. Per-identity samples coalesce so a slow dispatcher only ever
// sees the newest pending sample.

func (e ContainerAdded) coalesceKey() string    { return "" }
func (e ContainerUpdated) coalesceKey() string  { return "inventory/" + e.Container.ID }
func (e ContainerRemoved) coalesceKey() string  { return "" }
func (e InventorySynced) coalesceKey() string   { return "inventory/synced" }
func (e StatsUpdated) coalesceKey() string      { return "stats/" + e.Sample.ContainerID }
func (e StatsUnavailable) coalesceKey() string  { return "stats/" + e.ID }
func (e HostUpdated) coalesceKey() string       { return "host" }
func (e HostUnavailable) coalesceKey() string   { return "host" }
func (e DaemonDown) coalesceKey() string        { return "daemon" }
func (e DaemonBack) coalesceKey() string        { return "daemon" }
func (e SessionOpened) coalesceKey() string     { return "" }
func (e LogLine) coalesceKey() string           { return "" }
func (e ExecOutput) coalesceKey() string        { return "" }
func (e SessionEnded) coalesceKey() string      { return "" }
func (e ProcessesLoaded) coalesceKey() string   { return "top" }
func (e CommandResult) coalesceKey() string     { return "" }
func (e MoveSelection) coalesceKey() string     { return "" }
func (e SelectFirst) coalesceKey() string       { return "" }
func (e SelectLast) coalesceKey() string        { return "" }
func (e SetFilter) coalesceKey() string         { return "" }
func (e CycleStatusFilter) coalesceKey() string { return "" }
func (e CycleColumns) coalesceKey() string      { return "" }
func (e SetMode) coalesceKey() string           { return "" }
func (e ConfirmRequested) coalesceKey() string  { return "" }
func (e ConfirmDismissed) coalesceKey() string  { return "" }
func (e StatusCleared) coalesceKey() string     { return "" }
