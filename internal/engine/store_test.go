package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icryo/backplane-tui/internal/hostmetrics"
	"github.com/icryo/backplane-tui/internal/runtime"
)

func newTestStore() *Store {
	return NewStore(StoreOptions{TombstoneGrace: 10 * time.Second, LogBuffer: 100})
}

func ctr(id, name, state string) runtime.Container {
	return runtime.Container{ID: id, Name: name, Image: "img:latest", State: state, Status: state}
}

func addAll(s *Store, cs ...runtime.Container) {
	now := time.Now()
	for _, c := range cs {
		s.Apply(ContainerAdded{Container: c, Time: now})
	}
}

func visibleIDs(s *Store) []string {
	var ids []string
	for _, r := range s.Visible() {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestAddSortsByNameAndSelectsFirst(t *testing.T) {
	s := newTestStore()
	addAll(s, ctr("b", "web", "running"), ctr("a", "db", "running"))

	assert.Equal(t, []string{"a", "b"}, visibleIDs(s))
	assert.Equal(t, "a", s.SelectedID())
}

func TestUpdateIsIdempotent(t *testing.T) {
	s := newTestStore()
	addAll(s, ctr("a", "db", "running"))

	update := ContainerUpdated{Container: ctr("a", "db-primary", "running"), Time: time.Now()}
	s.Apply(update)
	r, _ := s.Lookup("a")
	name, count := r.Name, len(s.Containers())

	s.Apply(update)
	r2, _ := s.Lookup("a")
	assert.Same(t, r, r2, "identity is stable across updates")
	assert.Equal(t, name, r2.Name)
	assert.Equal(t, count, len(s.Containers()))
}

func TestSelectionFollowsIdentityAcrossReorder(t *testing.T) {
	s := newTestStore()
	addAll(s, ctr("a", "alpha", "running"), ctr("b", "beta", "running"))
	s.Apply(MoveSelection{Delta: 1})
	require.Equal(t, "b", s.SelectedID())

	// Renaming alpha to zeta reorders the list; selection stays on b.
	s.Apply(ContainerUpdated{Container: ctr("a", "zeta", "running"), Time: time.Now()})
	assert.Equal(t, []string{"b", "a"}, visibleIDs(s))
	assert.Equal(t, "b", s.SelectedID())
	assert.Equal(t, 0, s.SelectedIndex())
}

func TestSelectionReanchorsWhenSelectedDisappears(t *testing.T) {
	s := newTestStore()
	addAll(s, ctr("a", "alpha", "running"), ctr("b", "beta", "running"), ctr("c", "gamma", "running"))
	s.Apply(MoveSelection{Delta: 1})
	require.Equal(t, "b", s.SelectedID())

	now := time.Now()
	s.Apply(ContainerRemoved{ID: "b", Time: now})
	s.Apply(InventorySynced{Time: now.Add(11 * time.Second)})

	require.Equal(t, []string{"a", "c"}, visibleIDs(s))
	assert.Equal(t, "c", s.SelectedID(), "selection re-anchors to the same position")
}

func TestMoveSelectionClamps(t *testing.T) {
	s := newTestStore()
	addAll(s, ctr("a", "alpha", "running"), ctr("b", "beta", "running"))

	s.Apply(MoveSelection{Delta: -5})
	assert.Equal(t, "a", s.SelectedID())
	s.Apply(MoveSelection{Delta: 5})
	assert.Equal(t, "b", s.SelectedID())
	s.Apply(SelectFirst{})
	assert.Equal(t, "a", s.SelectedID())
	s.Apply(SelectLast{})
	assert.Equal(t, "b", s.SelectedID())
}

func TestTombstoneKeptWithinGraceThenPurged(t *testing.T) {
	s := newTestStore()
	addAll(s, ctr("a", "alpha", "running"))

	now := time.Now()
	s.Apply(ContainerRemoved{ID: "a", Time: now})

	r, ok := s.Lookup("a")
	require.True(t, ok)
	assert.True(t, r.Tombstoned())
	assert.Equal(t, []string{"a"}, visibleIDs(s), "tombstone stays visible")

	s.Apply(InventorySynced{Time: now.Add(5 * time.Second)})
	_, ok = s.Lookup("a")
	assert.True(t, ok, "still inside the grace window")

	s.Apply(InventorySynced{Time: now.Add(11 * time.Second)})
	_, ok = s.Lookup("a")
	assert.False(t, ok, "purged after the grace window")
	assert.Empty(t, visibleIDs(s))
}

func TestReappearingContainerClearsTombstone(t *testing.T) {
	s := newTestStore()
	addAll(s, ctr("a", "alpha", "running"))
	r, _ := s.Lookup("a")
	r.observeStats(sampleAt(time.Now(), 100, 100))

	now := time.Now()
	s.Apply(ContainerRemoved{ID: "a", Time: now})
	s.Apply(ContainerAdded{Container: ctr("a", "alpha", "running"), Time: now.Add(time.Second)})

	r2, ok := s.Lookup("a")
	require.True(t, ok)
	assert.Same(t, r, r2, "same record, tombstone cleared in place")
	assert.False(t, r2.Tombstoned())
	assert.NotNil(t, r2.Stats, "stats history survives the flicker")
}

func TestStatsUpdateUnknownContainerIgnored(t *testing.T) {
	s := newTestStore()
	s.Apply(StatsUpdated{Sample: runtime.StatsSample{ContainerID: "ghost", Time: time.Now()}})
	assert.Empty(t, s.Containers())
}

func TestStatsFailureIsolatedPerContainer(t *testing.T) {
	s := newTestStore()
	addAll(s, ctr("a", "alpha", "running"), ctr("b", "beta", "running"))

	now := time.Now()
	s.Apply(StatsUpdated{Sample: runtime.StatsSample{ContainerID: "a", Time: now, CPUPercent: 42}})
	s.Apply(StatsUpdated{Sample: runtime.StatsSample{ContainerID: "b", Time: now, CPUPercent: 7}})
	s.Apply(StatsUnavailable{ID: "b", Err: "cgroup gone", Time: now})

	a, _ := s.Lookup("a")
	b, _ := s.Lookup("b")
	assert.Empty(t, a.StatsErr)
	assert.Equal(t, 42.0, a.Stats.CPUPercent)
	assert.Equal(t, "cgroup gone", b.StatsErr)
	require.NotNil(t, b.Stats, "last known values are retained")
	assert.Equal(t, 7.0, b.Stats.CPUPercent)
}

func TestFilterIsLossless(t *testing.T) {
	s := newTestStore()
	addAll(s, ctr("a", "api", "running"), ctr("b", "web", "exited"), ctr("c", "worker", "running"))
	full := visibleIDs(s)

	s.Apply(SetFilter{Text: "w"})
	assert.Equal(t, []string{"b", "c"}, visibleIDs(s))

	s.Apply(SetFilter{Text: ""})
	assert.Equal(t, full, visibleIDs(s), "clearing the filter restores the full sequence")
}

func TestStatusFilterCycles(t *testing.T) {
	s := newTestStore()
	addAll(s, ctr("a", "api", "running"), ctr("b", "web", "exited"))

	s.Apply(CycleStatusFilter{})
	assert.Equal(t, FilterRunning, s.StatusFilterValue())
	assert.Equal(t, []string{"a"}, visibleIDs(s))

	s.Apply(CycleStatusFilter{})
	assert.Equal(t, FilterStopped, s.StatusFilterValue())
	assert.Equal(t, []string{"b"}, visibleIDs(s))

	s.Apply(CycleStatusFilter{})
	assert.Equal(t, FilterAll, s.StatusFilterValue())
	assert.Equal(t, []string{"a", "b"}, visibleIDs(s))
}

func TestColumnsCycleBothWays(t *testing.T) {
	s := newTestStore()
	s.Apply(CycleColumns{Dir: 1})
	assert.Equal(t, ColumnsNetwork, s.Columns())
	s.Apply(CycleColumns{Dir: 1})
	assert.Equal(t, ColumnsDetails, s.Columns())
	s.Apply(CycleColumns{Dir: 1})
	assert.Equal(t, ColumnsStats, s.Columns())
	s.Apply(CycleColumns{Dir: -1})
	assert.Equal(t, ColumnsDetails, s.Columns())
}

func TestLogSessionLifecycle(t *testing.T) {
	s := newTestStore()
	addAll(s, ctr("a", "api", "running"))

	now := time.Now()
	s.Apply(SessionOpened{Kind: SessionLogs, SessionID: 1, ContainerID: "a", ContainerName: "api", Time: now})
	assert.Equal(t, ModeLogs, s.Mode())

	s.Apply(LogLine{SessionID: 1, ContainerID: "a", Line: "hello", Time: now})
	s.Apply(LogLine{SessionID: 99, ContainerID: "a", Line: "stale", Time: now})
	assert.Equal(t, []string{"hello"}, s.LogLines(), "lines from other sessions are ignored")

	s.Apply(SessionEnded{Kind: SessionLogs, SessionID: 1, ContainerID: "a", Time: now})
	assert.Equal(t, ModeList, s.Mode())
	assert.Empty(t, s.LogLines())
	assert.Zero(t, s.Session().ID)
}

func TestSessionEndedForOldSessionIgnored(t *testing.T) {
	s := newTestStore()
	addAll(s, ctr("a", "api", "running"))

	now := time.Now()
	s.Apply(SessionOpened{Kind: SessionLogs, SessionID: 1, ContainerID: "a", Time: now})
	s.Apply(SessionOpened{Kind: SessionLogs, SessionID: 2, ContainerID: "a", Time: now})

	// The replaced session's teardown must not kick the new one out.
	s.Apply(SessionEnded{Kind: SessionLogs, SessionID: 1, ContainerID: "a", Time: now})
	assert.Equal(t, ModeLogs, s.Mode())
	assert.Equal(t, int64(2), s.Session().ID)
}

func TestRemovalOfSessionContainerForcesListMode(t *testing.T) {
	s := newTestStore()
	addAll(s, ctr("a", "api", "running"))

	now := time.Now()
	s.Apply(SessionOpened{Kind: SessionExec, SessionID: 1, ContainerID: "a", ContainerName: "api", Time: now})
	s.Apply(ExecOutput{SessionID: 1, Chunk: []byte("$ "), Time: now})
	require.Equal(t, ModeExec, s.Mode())

	s.Apply(ContainerRemoved{ID: "a", Time: now})
	assert.Equal(t, ModeList, s.Mode())
	assert.Empty(t, s.ExecBytes())

	// The SessionEnded that follows the dispatcher's teardown is a no-op.
	s.Apply(SessionEnded{Kind: SessionExec, SessionID: 1, ContainerID: "a", Time: now})
	assert.Equal(t, ModeList, s.Mode())
}

func TestExecOutputAppendsWhileActive(t *testing.T) {
	s := newTestStore()
	now := time.Now()
	s.Apply(SessionOpened{Kind: SessionExec, SessionID: 1, ContainerID: "a", Time: now})
	s.Apply(ExecOutput{SessionID: 1, Chunk: []byte("one"), Time: now})
	s.Apply(ExecOutput{SessionID: 1, Chunk: []byte("two"), Time: now})
	s.Apply(ExecOutput{SessionID: 9, Chunk: []byte("stale"), Time: now})

	assert.Equal(t, "onetwo", string(s.ExecBytes()))
}

func TestCommandResultSetsStatus(t *testing.T) {
	s := newTestStore()
	now := time.Now()

	s.Apply(CommandResult{Op: OpStart, ContainerID: "a", ContainerName: "api", Time: now})
	require.NotNil(t, s.Status())
	assert.False(t, s.Status().IsError)
	assert.Contains(t, s.Status().Text, "start api")

	s.Apply(CommandResult{Op: OpStop, ContainerID: "a", ContainerName: "api", Err: "daemon busy", Time: now})
	require.NotNil(t, s.Status())
	assert.True(t, s.Status().IsError)
	assert.Contains(t, s.Status().Text, "daemon busy")

	s.Apply(StatusCleared{})
	assert.Nil(t, s.Status())
}

func TestConfirmFlow(t *testing.T) {
	s := newTestStore()
	addAll(s, ctr("a", "api", "running"))

	s.Apply(ConfirmRequested{Op: OpRemove, ContainerID: "a", ContainerName: "api"})
	assert.Equal(t, ModeConfirm, s.Mode())
	require.NotNil(t, s.Pending())
	assert.Equal(t, OpRemove, s.Pending().Op)

	s.Apply(ConfirmDismissed{})
	assert.Equal(t, ModeList, s.Mode())
	assert.Nil(t, s.Pending())
}

func TestConfirmOnlyFromList(t *testing.T) {
	s := newTestStore()
	s.Apply(SessionOpened{Kind: SessionLogs, SessionID: 1, ContainerID: "a", Time: time.Now()})

	s.Apply(ConfirmRequested{Op: OpRemove, ContainerID: "a"})
	assert.Equal(t, ModeLogs, s.Mode())
	assert.Nil(t, s.Pending())
}

func TestDaemonBanner(t *testing.T) {
	s := newTestStore()
	now := time.Now()

	s.Apply(DaemonDown{Err: "connection refused", Time: now})
	assert.Equal(t, "connection refused", s.DaemonErr())

	s.Apply(DaemonBack{Time: now})
	assert.Empty(t, s.DaemonErr())
}

func TestHostMetricsRetainedOnFailure(t *testing.T) {
	s := newTestStore()
	s.Apply(HostUpdated{Metrics: hostSnapshot(55)})
	require.NotNil(t, s.Host())
	assert.Equal(t, 55.0, s.Host().CPUPercent)

	s.Apply(HostUnavailable{Err: "probe failed", Time: time.Now()})
	assert.Equal(t, "probe failed", s.HostErr())
	require.NotNil(t, s.Host(), "last snapshot is retained")
	assert.Equal(t, 55.0, s.Host().CPUPercent)

	s.Apply(HostUpdated{Metrics: hostSnapshot(60)})
	assert.Empty(t, s.HostErr())
	assert.Equal(t, 60.0, s.Host().CPUPercent)
}

func TestHelpModeOnlyFromList(t *testing.T) {
	s := newTestStore()
	s.Apply(SetMode{Mode: ModeHelp})
	assert.Equal(t, ModeHelp, s.Mode())
	s.Apply(SetMode{Mode: ModeList})
	assert.Equal(t, ModeList, s.Mode())

	s.Apply(SessionOpened{Kind: SessionLogs, SessionID: 1, ContainerID: "a", Time: time.Now()})
	s.Apply(SetMode{Mode: ModeHelp})
	assert.Equal(t, ModeLogs, s.Mode(), "help cannot cover a live session")
}

func TestProcessesViewLifecycle(t *testing.T) {
	s := newTestStore()
	addAll(s, ctr("a", "api", "running"))

	s.Apply(ProcessesLoaded{
		ContainerID:   "a",
		ContainerName: "api",
		List:          runtime.ProcessList{Titles: []string{"PID", "CMD"}, Processes: [][]string{{"1", "nginx"}}},
		Time:          time.Now(),
	})
	require.Equal(t, ModeProcesses, s.Mode())
	require.NotNil(t, s.Processes())
	assert.Equal(t, "api", s.Processes().ContainerName)

	s.Apply(SetMode{Mode: ModeList})
	assert.Equal(t, ModeList, s.Mode())
	assert.Nil(t, s.Processes())
}

func TestProcessesFailureBecomesStatus(t *testing.T) {
	s := newTestStore()
	addAll(s, ctr("a", "api", "running"))

	s.Apply(ProcessesLoaded{ContainerID: "a", ContainerName: "api", Err: "boom", Time: time.Now()})
	assert.Equal(t, ModeList, s.Mode())
	require.NotNil(t, s.Status())
	assert.True(t, s.Status().IsError)
	assert.Contains(t, s.Status().Text, "processes api failed")
}

func TestProcessesIgnoredOutsideList(t *testing.T) {
	s := newTestStore()
	addAll(s, ctr("a", "api", "running"))
	s.Apply(SessionOpened{Kind: SessionLogs, SessionID: 1, ContainerID: "a", Time: time.Now()})

	s.Apply(ProcessesLoaded{ContainerID: "a", ContainerName: "api", Time: time.Now()})
	assert.Equal(t, ModeLogs, s.Mode())
	assert.Nil(t, s.Processes())
}

func hostSnapshot(cpu float64) hostmetrics.Metrics {
	return hostmetrics.Metrics{
		Time:          time.Now(),
		CPUPercent:    cpu,
		MemoryUsed:    8 << 30,
		MemoryTotal:   16 << 30,
		MemoryPercent: 50,
	}
}
