package dashboard

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icryo/backplane-tui/internal/engine"
	"github.com/icryo/backplane-tui/internal/runtime"
)

func TestDispatchAppliesEvent(t *testing.T) {
	m, _ := newTestModel(t)

	ev := engine.ContainerAdded{
		Container: runtime.Container{ID: "x", Name: "worker", State: "running"},
		Time:      time.Now(),
	}
	updated, cmd := m.Update(engineEventMsg{ev: ev})
	m = updated.(Model)

	assert.NotNil(t, cmd, "the event wait is re-armed")
	_, ok := m.Store().Lookup("x")
	assert.True(t, ok)
}

func TestDispatchDrainsPendingBatch(t *testing.T) {
	m, _ := newTestModel(t)
	now := time.Now()

	// Two more events are already pending when the first is delivered; one
	// dispatch applies all three.
	m.queue.Publish(engine.ContainerAdded{
		Container: runtime.Container{ID: "b", Name: "beta", State: "running"}, Time: now,
	})
	m.queue.Publish(engine.ContainerAdded{
		Container: runtime.Container{ID: "c", Name: "gamma", State: "exited"}, Time: now,
	})

	first := engine.ContainerAdded{
		Container: runtime.Container{ID: "a", Name: "alpha", State: "running"}, Time: now,
	}
	updated, _ := m.Update(engineEventMsg{ev: first})
	m = updated.(Model)

	assert.Len(t, m.Store().Containers(), 3)
	assert.Equal(t, 0, m.queue.Len())
}

func TestWindowSizeInitializesViewport(t *testing.T) {
	m, _ := newTestModel(t)

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = updated.(Model)

	require.True(t, m.viewportReady)
	assert.Equal(t, 100, m.logViewport.Width)
}

func TestStatusExpiryClearsOnlyMatchingStatus(t *testing.T) {
	m, _ := newTestModel(t)
	setAt := time.Now()
	m.Store().Apply(engine.CommandResult{Op: engine.OpStart, ContainerName: "api", Time: setAt})

	// A newer status must survive an older expiry.
	newer := setAt.Add(time.Second)
	m.Store().Apply(engine.CommandResult{Op: engine.OpStop, ContainerName: "api", Time: newer})
	updated, _ := m.Update(statusExpireMsg{setAt: setAt})
	m = updated.(Model)
	require.NotNil(t, m.Store().Status())

	updated, _ = m.Update(statusExpireMsg{setAt: newer})
	m = updated.(Model)
	assert.Nil(t, m.Store().Status())
}

func TestRemovalSideEffectClosesSessions(t *testing.T) {
	m, fake := newTestModel(t, testContainers()...)
	fake.LogStreams["a"] = []string{"line"}
	fake.LogFollowHang = true

	require.NoError(t, m.sessions.OpenLogs("a", "api"))

	cmd := m.sideEffects(engine.ContainerRemoved{ID: "a", Time: time.Now()})
	require.NotNil(t, cmd)
	cmd() // runs CloseFor synchronously in the test

	// After teardown the queue ends with SessionEnded for that session.
	var sawEnded bool
	for {
		ev, ok := m.queue.Poll()
		if !ok {
			break
		}
		if e, isEnd := ev.(engine.SessionEnded); isEnd {
			sawEnded = true
			assert.Equal(t, "a", e.ContainerID)
		}
	}
	assert.True(t, sawEnded)
}

func TestImagesMsgStored(t *testing.T) {
	m, _ := newTestModel(t)
	updated, _ := m.Update(imagesMsg{images: []string{"nginx:latest"}})
	m = updated.(Model)
	assert.Equal(t, []string{"nginx:latest"}, m.images)
}
