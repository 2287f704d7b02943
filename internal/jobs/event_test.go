package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListeners_NotifyInOrder(t *testing.T) {
	r := NewListeners(discardLogger())
	var p protocol

	first := r.Add(ListenerFunc(func(e JobChangeEvent) { p.add("first:" + e.Type.String()) }))
	r.Add(ListenerFunc(func(JobChangeEvent) { panic("broken listener") }))
	r.Add(ListenerFunc(func(e JobChangeEvent) { p.add("third:" + e.Mode.String()) }))
	assert.Equal(t, 3, r.Len())

	r.Notify(JobChangeEvent{Type: EventShutdown, Mode: ModeSync})
	assert.Equal(t, []string{"first:shutdown", "third:sync"}, p.get())

	assert.True(t, r.Remove(first))
	assert.False(t, r.Remove(first))
	assert.Equal(t, 2, r.Len())
}

func TestListeners_RemoveDuringNotify(t *testing.T) {
	r := NewListeners(discardLogger())
	var calls int
	var id ListenerID
	id = r.Add(ListenerFunc(func(JobChangeEvent) {
		calls++
		r.Remove(id)
	}))

	r.Notify(JobChangeEvent{Type: EventDone})
	r.Notify(JobChangeEvent{Type: EventDone})
	assert.Equal(t, 1, calls)
}

func TestGlobalListeners(t *testing.T) {
	assert.Same(t, GlobalListeners(), GlobalListeners())
}

func TestEventStrings(t *testing.T) {
	assert.Equal(t, "scheduled", EventScheduled.String())
	assert.Equal(t, "about_to_run", EventAboutToRun.String())
	assert.Equal(t, "done", EventDone.String())
	assert.Equal(t, "async", ModeAsync.String())
	assert.Equal(t, "cancelled", StateCancelled.String())
}

func TestRunMonitor_NilSafe(t *testing.T) {
	var m *RunMonitor
	assert.False(t, m.IsCancelled())

	m = &RunMonitor{}
	assert.True(t, m.cancel())
	assert.False(t, m.cancel())
	assert.True(t, m.IsCancelled())
}
