package dashboard

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icryo/backplane-tui/internal/config"
	"github.com/icryo/backplane-tui/internal/engine"
	"github.com/icryo/backplane-tui/internal/runtime"
	"github.com/icryo/backplane-tui/internal/runtime/runtimetest"
)

func newTestModel(t *testing.T, containers ...runtime.Container) (Model, *runtimetest.FakeClient) {
	t.Helper()
	fake := runtimetest.NewFakeClient()
	fake.SetContainers(containers)

	m := New(fake, config.Default())
	now := time.Now()
	for _, c := range containers {
		m.Store().Apply(engine.ContainerAdded{Container: c, Time: now})
	}
	return m, fake
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, msg tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	next, ok := updated.(Model)
	require.True(t, ok)
	return next, cmd
}

func testContainers() []runtime.Container {
	return []runtime.Container{
		{ID: "a", Name: "api", State: "running", Status: "Up"},
		{ID: "b", Name: "web", State: "exited", Status: "Exited"},
	}
}

func TestNavigationKeysMoveSelection(t *testing.T) {
	m, _ := newTestModel(t, testContainers()...)
	require.Equal(t, "a", m.Store().SelectedID())

	m, _ = press(t, m, keyRunes("j"))
	assert.Equal(t, "b", m.Store().SelectedID())

	m, _ = press(t, m, keyRunes("k"))
	assert.Equal(t, "a", m.Store().SelectedID())

	m, _ = press(t, m, keyRunes("G"))
	assert.Equal(t, "b", m.Store().SelectedID())

	m, _ = press(t, m, keyRunes("g"))
	assert.Equal(t, "a", m.Store().SelectedID())
}

func TestQuitKey(t *testing.T) {
	m, _ := newTestModel(t, testContainers()...)
	_, cmd := press(t, m, keyRunes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestRemoveRequiresConfirmation(t *testing.T) {
	m, fake := newTestModel(t, testContainers()...)

	m, _ = press(t, m, keyRunes("d"))
	require.Equal(t, engine.ModeConfirm, m.Store().Mode())
	require.NotNil(t, m.Store().Pending())
	assert.Equal(t, engine.OpRemove, m.Store().Pending().Op)

	// Cancelling runs nothing.
	m, _ = press(t, m, keyRunes("n"))
	assert.Equal(t, engine.ModeList, m.Store().Mode())
	assert.Empty(t, fake.CallsFor("a"))

	// Confirming runs the command.
	m, _ = press(t, m, keyRunes("d"))
	_, cmd := press(t, m, keyRunes("y"))
	require.NotNil(t, cmd)
	cmd()
	assert.Contains(t, fake.CallsFor("a"), "remove")
}

func TestStopRequiresConfirmation(t *testing.T) {
	m, _ := newTestModel(t, testContainers()...)

	m, _ = press(t, m, keyRunes("x"))
	require.Equal(t, engine.ModeConfirm, m.Store().Mode())
	assert.Equal(t, engine.OpStop, m.Store().Pending().Op)
}

func TestStartOnlyForStoppedContainer(t *testing.T) {
	m, fake := newTestModel(t, testContainers()...)

	// api is running; start does nothing.
	_, cmd := press(t, m, keyRunes("s"))
	assert.Nil(t, cmd)

	m, _ = press(t, m, keyRunes("j")) // select web (exited)
	_, cmd = press(t, m, keyRunes("s"))
	require.NotNil(t, cmd)
	cmd()
	assert.Contains(t, fake.CallsFor("b"), "start")
}

func TestFilterKeysDriveStore(t *testing.T) {
	m, _ := newTestModel(t, testContainers()...)

	m, _ = press(t, m, keyRunes("/"))
	assert.True(t, m.filtering)

	m, _ = press(t, m, keyRunes("we"))
	assert.Equal(t, "we", m.Store().Filter())
	assert.Len(t, m.Store().Visible(), 1)

	// Enter keeps the filter; esc afterwards clears it.
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.filtering)
	assert.Equal(t, "we", m.Store().Filter())

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Empty(t, m.Store().Filter())
}

func TestHelpToggle(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = press(t, m, keyRunes("?"))
	assert.Equal(t, engine.ModeHelp, m.Store().Mode())

	m, _ = press(t, m, keyRunes("x"))
	assert.Equal(t, engine.ModeList, m.Store().Mode())
}

func TestColumnAndStatusCycling(t *testing.T) {
	m, _ := newTestModel(t, testContainers()...)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, engine.ColumnsNetwork, m.Store().Columns())

	m, _ = press(t, m, keyRunes("f"))
	assert.Equal(t, engine.FilterRunning, m.Store().StatusFilterValue())
}

func TestShellOnlyForRunningContainer(t *testing.T) {
	m, _ := newTestModel(t, testContainers()...)

	m, _ = press(t, m, keyRunes("j")) // web is exited
	_, cmd := press(t, m, keyRunes("e"))
	assert.Nil(t, cmd)
}

func TestProcessesKeyOpensView(t *testing.T) {
	m, fake := newTestModel(t, testContainers()...)
	fake.Processes = runtime.ProcessList{
		Titles:    []string{"PID", "CMD"},
		Processes: [][]string{{"1", "nginx"}},
	}

	_, cmd := press(t, m, keyRunes("t"))
	require.NotNil(t, cmd)
	cmd()
	assert.Contains(t, fake.CallsFor("a"), "top")

	ev, ok := m.queue.Poll()
	require.True(t, ok)
	loaded, ok := ev.(engine.ProcessesLoaded)
	require.True(t, ok)
	m.Store().Apply(loaded)
	assert.Equal(t, engine.ModeProcesses, m.Store().Mode())

	// Any key closes the view.
	m, _ = press(t, m, keyRunes("x"))
	assert.Equal(t, engine.ModeList, m.Store().Mode())
}

func TestProcessesKeyOnlyForRunningContainer(t *testing.T) {
	m, _ := newTestModel(t, testContainers()...)
	m, _ = press(t, m, keyRunes("j")) // web is exited
	_, cmd := press(t, m, keyRunes("t"))
	assert.Nil(t, cmd)
}

func TestKeyToBytes(t *testing.T) {
	cases := []struct {
		name string
		msg  tea.KeyMsg
		want []byte
	}{
		{"runes", keyRunes("ls"), []byte("ls")},
		{"enter", tea.KeyMsg{Type: tea.KeyEnter}, []byte{0x0d}},
		{"tab", tea.KeyMsg{Type: tea.KeyTab}, []byte{0x09}},
		{"esc", tea.KeyMsg{Type: tea.KeyEsc}, []byte{0x1b}},
		{"ctrl+c", tea.KeyMsg{Type: tea.KeyCtrlC}, []byte{0x03}},
		{"ctrl+d", tea.KeyMsg{Type: tea.KeyCtrlD}, []byte{0x04}},
		{"backspace", tea.KeyMsg{Type: tea.KeyBackspace}, []byte{0x7f}},
		{"space", tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, []byte{' '}},
		{"up arrow", tea.KeyMsg{Type: tea.KeyUp}, []byte{0x1b, '[', 'A'}},
		{"page down", tea.KeyMsg{Type: tea.KeyPgDown}, []byte{0x1b, '[', '6', '~'}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, keyToBytes(tc.msg))
		})
	}
}

func TestExecModeForwardsKeysAndDetaches(t *testing.T) {
	m, _ := newTestModel(t, testContainers()...)
	m.Store().Apply(engine.SessionOpened{
		Kind: engine.SessionExec, SessionID: 1, ContainerID: "a", ContainerName: "api", Time: time.Now(),
	})
	require.Equal(t, engine.ModeExec, m.Store().Mode())

	// Normal keys produce a forward command, not UI actions.
	_, cmd := press(t, m, keyRunes("q"))
	assert.NotNil(t, cmd, "q is forwarded to the shell, not quit")

	_, cmd = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlQ})
	assert.NotNil(t, cmd, "ctrl+q detaches")
}
