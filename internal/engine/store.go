package engine

import (
	"sort"
	"strings"
	"time"

	"github.com/icryo/backplane-tui/internal/hostmetrics"
	"github.com/icryo/backplane-tui/internal/runtime"
)

// ViewMode is the dashboard's navigation state. A session reference is valid
// if and only if the mode is ModeLogs or ModeExec; the store enforces this in
// every transition so an exec view without a live session is unrepresentable.
type ViewMode int

const (
	ModeList ViewMode = iota
	ModeLogs
	ModeExec
	ModeCreate
	ModeHelp
	ModeConfirm
	ModeProcesses
)

// String returns a human-readable mode name.
func (m ViewMode) String() string {
	switch m {
	case ModeList:
		return "list"
	case ModeLogs:
		return "logs"
	case ModeExec:
		return "exec"
	case ModeCreate:
		return "create"
	case ModeHelp:
		return "help"
	case ModeConfirm:
		return "confirm"
	case ModeProcesses:
		return "processes"
	default:
		return "unknown"
	}
}

// ListColumns selects which columns the container list shows.
type ListColumns int

const (
	ColumnsStats ListColumns = iota
	ColumnsNetwork
	ColumnsDetails
)

// String returns a human-readable column set name.
func (c ListColumns) String() string {
	switch c {
	case ColumnsStats:
		return "stats"
	case ColumnsNetwork:
		return "network"
	case ColumnsDetails:
		return "details"
	default:
		return "unknown"
	}
}

// StatusFilter is the quick container-state filter.
type StatusFilter int

const (
	FilterAll StatusFilter = iota
	FilterRunning
	FilterStopped
)

// String returns a human-readable filter name.
func (f StatusFilter) String() string {
	switch f {
	case FilterRunning:
		return "running"
	case FilterStopped:
		return "stopped"
	default:
		return "all"
	}
}

// SessionRef identifies the active session while the mode is ModeLogs or
// ModeExec.
type SessionRef struct {
	Kind          SessionKind
	ID            int64
	ContainerID   string
	ContainerName string
}

// StatusMessage is the transient status line produced by command results.
type StatusMessage struct {
	Text    string
	IsError bool
	Time    time.Time
}

// ProcessView is the process listing shown while the mode is ModeProcesses.
type ProcessView struct {
	ContainerID   string
	ContainerName string
	List          runtime.ProcessList
}

// PendingConfirm describes the destructive command awaiting confirmation
// while the mode is ModeConfirm.
type PendingConfirm struct {
	Op            CommandOp
	ContainerID   string
	ContainerName string
}

// execBufMax bounds the raw exec output kept for rendering.
const execBufMax = 64 * 1024

// StoreOptions configure store behavior decided at startup.
type StoreOptions struct {
	// TombstoneGrace is how long a missing container stays visible.
	TombstoneGrace time.Duration
	// LogBuffer bounds the log scrollback ring.
	LogBuffer int
}

// Store is the single source of truth merging all events into a consistent,
// render-ready state. Apply is pure with respect to the outside world: no
// I/O, no concurrency, no clock reads. The dispatcher is the only caller, so
// the state is never torn mid-render.
type Store struct {
	containers []*ContainerRecord // canonical order: sorted by name
	index      map[string]*ContainerRecord

	selectedID  string
	lastVisIdx  int // last visible index of the selection, for re-anchoring
	mode        ViewMode
	columns     ListColumns
	filter      string
	statFilter  StatusFilter
	session     SessionRef
	pending     *PendingConfirm
	procs       *ProcessView
	logLines    *lineRing
	execBuf     []byte
	host        *hostmetrics.Metrics
	hostErr     string
	daemonErr   string
	status      *StatusMessage
	grace       time.Duration
	logBufLimit int
}

// NewStore creates an empty store.
func NewStore(opts StoreOptions) *Store {
	if opts.LogBuffer <= 0 {
		opts.LogBuffer = 2000
	}
	if opts.TombstoneGrace < 0 {
		opts.TombstoneGrace = 0
	}
	return &Store{
		index:       make(map[string]*ContainerRecord),
		mode:        ModeList,
		logLines:    newLineRing(opts.LogBuffer),
		grace:       opts.TombstoneGrace,
		logBufLimit: opts.LogBuffer,
	}
}

// Apply folds one event into the state as a single atomic transition.
// Unknown identities are ignored rather than erroring: producers and
// sessions race container removal by design.
func (s *Store) Apply(ev Event) {
	switch ev := ev.(type) {
	case ContainerAdded:
		s.upsert(ev.Container)
	case ContainerUpdated:
		s.upsert(ev.Container)
	case ContainerRemoved:
		s.tombstone(ev.ID, ev.Time)
	case InventorySynced:
		s.purgeExpired(ev.Time)
	case StatsUpdated:
		if r, ok := s.index[ev.Sample.ContainerID]; ok {
			r.observeStats(ev.Sample)
		}
	case StatsUnavailable:
		if r, ok := s.index[ev.ID]; ok {
			r.StatsErr = ev.Err
		}
	case HostUpdated:
		m := ev.Metrics
		s.host = &m
		s.hostErr = ""
	case HostUnavailable:
		s.hostErr = ev.Err
	case DaemonDown:
		s.daemonErr = ev.Err
	case DaemonBack:
		s.daemonErr = ""
	case SessionOpened:
		s.openSession(ev)
	case LogLine:
		if s.mode == ModeLogs && s.session.ID == ev.SessionID {
			s.logLines.append(ev.Line)
		}
	case ExecOutput:
		if s.mode == ModeExec && s.session.ID == ev.SessionID {
			s.appendExec(ev.Chunk)
		}
	case SessionEnded:
		s.endSession(ev)
	case CommandResult:
		s.recordCommand(ev)
	case ProcessesLoaded:
		s.loadProcesses(ev)
	case MoveSelection:
		s.moveSelection(ev.Delta)
	case SelectFirst:
		s.selectIndex(0)
	case SelectLast:
		s.selectIndex(len(s.Visible()) - 1)
	case SetFilter:
		s.filter = ev.Text
		s.reselect()
	case CycleStatusFilter:
		s.statFilter = (s.statFilter + 1) % 3
		s.reselect()
	case CycleColumns:
		s.columns = ListColumns((int(s.columns) + ev.Dir + 3) % 3)
	case SetMode:
		s.setMode(ev.Mode)
	case ConfirmRequested:
		if s.mode == ModeList {
			s.mode = ModeConfirm
			s.pending = &PendingConfirm{
				Op:            ev.Op,
				ContainerID:   ev.ContainerID,
				ContainerName: ev.ContainerName,
			}
		}
	case ConfirmDismissed:
		if s.mode == ModeConfirm {
			s.mode = ModeList
			s.pending = nil
		}
	case StatusCleared:
		s.status = nil
	}
}

// upsert creates or refreshes a record, keeping identity stable: the same
// runtime id always maps to the same record, updated in place.
func (s *Store) upsert(c runtime.Container) {
	if r, ok := s.index[c.ID]; ok {
		r.applyInventory(c)
	} else {
		r := &ContainerRecord{ID: c.ID}
		r.applyInventory(c)
		s.index[c.ID] = r
		s.containers = append(s.containers, r)
	}
	s.sortByName()
	if s.selectedID == "" && len(s.containers) > 0 {
		s.selectedID = s.Visible()[0].ID
	}
	s.reselect()
}

// tombstone marks a container missing. If a session is open on it, the view
// is forced back to the list; the dispatcher tears the session down and the
// resulting SessionEnded is then a no-op for the store.
func (s *Store) tombstone(id string, at time.Time) {
	r, ok := s.index[id]
	if !ok {
		return
	}
	if r.MissingSince.IsZero() {
		r.MissingSince = at
	}
	if (s.mode == ModeLogs || s.mode == ModeExec) && s.session.ContainerID == id {
		s.leaveSessionMode()
	}
	s.reselect()
}

// purgeExpired drops tombstones whose grace window has elapsed as of the
// given inventory cycle time.
func (s *Store) purgeExpired(now time.Time) {
	kept := s.containers[:0]
	for _, r := range s.containers {
		if r.Tombstoned() && now.Sub(r.MissingSince) > s.grace {
			delete(s.index, r.ID)
			continue
		}
		kept = append(kept, r)
	}
	// Zero the tail so purged records are not pinned by the backing array.
	for i := len(kept); i < len(s.containers); i++ {
		s.containers[i] = nil
	}
	s.containers = kept
	s.reselect()
}

func (s *Store) sortByName() {
	sort.SliceStable(s.containers, func(i, j int) bool {
		return s.containers[i].Name < s.containers[j].Name
	})
}

// Visible returns the render-order view of the canonical sequence after the
// text and status filters. Filtering never mutates the canonical store, so
// toggling a filter is lossless.
func (s *Store) Visible() []*ContainerRecord {
	needle := strings.ToLower(s.filter)
	var out []*ContainerRecord
	for _, r := range s.containers {
		if needle != "" && !strings.Contains(strings.ToLower(r.Name), needle) {
			continue
		}
		switch s.statFilter {
		case FilterRunning:
			if !r.Running() {
				continue
			}
		case FilterStopped:
			if r.Running() {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// reselect re-resolves the selection by identity after any structural
// change. Selection follows the container, not its index; only when the
// selected container is gone or filtered out does the selection re-anchor to
// the nearest visible position.
func (s *Store) reselect() {
	visible := s.Visible()
	if len(visible) == 0 {
		s.selectedID = ""
		s.lastVisIdx = 0
		return
	}
	for i, r := range visible {
		if r.ID == s.selectedID {
			s.lastVisIdx = i
			return
		}
	}
	idx := s.lastVisIdx
	if idx >= len(visible) {
		idx = len(visible) - 1
	}
	s.selectedID = visible[idx].ID
	s.lastVisIdx = idx
}

func (s *Store) moveSelection(delta int) {
	visible := s.Visible()
	if len(visible) == 0 {
		return
	}
	idx := s.SelectedIndex() + delta
	if idx < 0 {
		idx = 0
	}
	if idx >= len(visible) {
		idx = len(visible) - 1
	}
	s.selectedID = visible[idx].ID
	s.lastVisIdx = idx
}

func (s *Store) selectIndex(idx int) {
	visible := s.Visible()
	if len(visible) == 0 || idx < 0 {
		return
	}
	if idx >= len(visible) {
		idx = len(visible) - 1
	}
	s.selectedID = visible[idx].ID
	s.lastVisIdx = idx
}

func (s *Store) openSession(ev SessionOpened) {
	s.session = SessionRef{
		Kind:          ev.Kind,
		ID:            ev.SessionID,
		ContainerID:   ev.ContainerID,
		ContainerName: ev.ContainerName,
	}
	s.logLines = newLineRing(s.logBufLimit)
	s.execBuf = nil
	if ev.Kind == SessionExec {
		s.mode = ModeExec
	} else {
		s.mode = ModeLogs
	}
}

func (s *Store) endSession(ev SessionEnded) {
	if s.session.ID != ev.SessionID {
		return
	}
	s.leaveSessionMode()
	if ev.Err != "" {
		s.status = &StatusMessage{
			Text:    ev.Kind.String() + " session ended: " + ev.Err,
			IsError: true,
			Time:    ev.Time,
		}
	}
}

func (s *Store) leaveSessionMode() {
	s.mode = ModeList
	s.session = SessionRef{}
	s.logLines = newLineRing(s.logBufLimit)
	s.execBuf = nil
}

func (s *Store) setMode(mode ViewMode) {
	switch mode {
	case ModeHelp, ModeCreate:
		if s.mode == ModeList {
			s.mode = mode
		}
	case ModeList:
		if s.mode == ModeLogs || s.mode == ModeExec {
			s.leaveSessionMode()
			return
		}
		s.mode = ModeList
		s.pending = nil
		s.procs = nil
	}
}

// loadProcesses shows the processes view, or surfaces the failure as a
// transient status. A listing that arrives after the view moved on is
// dropped.
func (s *Store) loadProcesses(ev ProcessesLoaded) {
	if ev.Err != "" {
		s.status = &StatusMessage{
			Text:    "processes " + ev.ContainerName + " failed: " + ev.Err,
			IsError: true,
			Time:    ev.Time,
		}
		return
	}
	if s.mode != ModeList {
		return
	}
	s.procs = &ProcessView{
		ContainerID:   ev.ContainerID,
		ContainerName: ev.ContainerName,
		List:          ev.List,
	}
	s.mode = ModeProcesses
}

func (s *Store) appendExec(chunk []byte) {
	s.execBuf = append(s.execBuf, chunk...)
	if len(s.execBuf) > execBufMax {
		// Keep the tail; raw scrollback beyond the window has no renderer.
		excess := len(s.execBuf) - execBufMax
		copy(s.execBuf, s.execBuf[excess:])
		s.execBuf = s.execBuf[:execBufMax]
	}
}

func (s *Store) recordCommand(ev CommandResult) {
	name := ev.ContainerName
	if name == "" {
		name = shortID(ev.ContainerID)
	}
	if ev.Err != "" {
		s.status = &StatusMessage{
			Text:    string(ev.Op) + " " + name + " failed: " + ev.Err,
			IsError: true,
			Time:    ev.Time,
		}
		return
	}
	s.status = &StatusMessage{
		Text: string(ev.Op) + " " + name + ": ok",
		Time: ev.Time,
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// Read-only accessors for the render pass. The dispatcher owns the store, so
// these are safe to call between Apply calls without copying.

// Containers returns the canonical name-ordered sequence, tombstones
// included.
func (s *Store) Containers() []*ContainerRecord { return s.containers }

// Lookup returns the record for a container id, if known.
func (s *Store) Lookup(id string) (*ContainerRecord, bool) {
	r, ok := s.index[id]
	return r, ok
}

// Selected returns the selected record, or nil when the list is empty.
func (s *Store) Selected() *ContainerRecord {
	if s.selectedID == "" {
		return nil
	}
	return s.index[s.selectedID]
}

// SelectedID returns the selected container's identity.
func (s *Store) SelectedID() string { return s.selectedID }

// SelectedIndex returns the selection's position within Visible, or -1.
func (s *Store) SelectedIndex() int {
	for i, r := range s.Visible() {
		if r.ID == s.selectedID {
			return i
		}
	}
	return -1
}

// Mode returns the current view mode.
func (s *Store) Mode() ViewMode { return s.mode }

// Columns returns the active list column set.
func (s *Store) Columns() ListColumns { return s.columns }

// Filter returns the active filter text.
func (s *Store) Filter() string { return s.filter }

// StatusFilterValue returns the active quick status filter.
func (s *Store) StatusFilterValue() StatusFilter { return s.statFilter }

// Session returns the active session reference; meaningful only in ModeLogs
// and ModeExec.
func (s *Store) Session() SessionRef { return s.session }

// Pending returns the command awaiting confirmation in ModeConfirm.
func (s *Store) Pending() *PendingConfirm { return s.pending }

// Processes returns the listing shown in ModeProcesses, nil otherwise.
func (s *Store) Processes() *ProcessView { return s.procs }

// LogLines returns the active log session's scrollback.
func (s *Store) LogLines() []string { return s.logLines.all() }

// ExecBytes returns the active exec session's raw output tail.
func (s *Store) ExecBytes() []byte { return s.execBuf }

// Host returns the latest host metrics snapshot, nil before the first.
func (s *Store) Host() *hostmetrics.Metrics { return s.host }

// HostErr returns the host sampler's current error state.
func (s *Store) HostErr() string { return s.hostErr }

// DaemonErr returns the daemon-unreachable banner text, empty when healthy.
func (s *Store) DaemonErr() string { return s.daemonErr }

// Status returns the transient command status line, nil when clear.
func (s *Store) Status() *StatusMessage { return s.status }
