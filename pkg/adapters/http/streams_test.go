package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamManager_BroadcastPerFlow(t *testing.T) {
	sm := NewStreamManager(nil)
	a, stopA := sm.Subscribe("f1")
	b, stopB := sm.Subscribe("f2")
	defer stopB()

	sm.Broadcast(Event{Type: "version_saved", FlowID: "f1", Version: 1})
	require.Len(t, a, 1)
	assert.Equal(t, 1, (<-a).Version)
	assert.Empty(t, b)

	stopA()
	stopA()
	_, open := <-a
	assert.False(t, open)
	assert.Zero(t, sm.Subscribers("f1"))
	assert.Equal(t, 1, sm.Subscribers("f2"))
}

func TestStreamManager_FullBufferDrops(t *testing.T) {
	sm := NewStreamManager(nil)
	ch, stop := sm.Subscribe("f1")
	defer stop()

	for i := 0; i < subscriberBuffer+5; i++ {
		sm.Broadcast(Event{Type: "version_saved", FlowID: "f1", Version: i})
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestStreamManager_Close(t *testing.T) {
	sm := NewStreamManager(nil)
	ch, stop := sm.Subscribe("f1")

	sm.Close()
	sm.Close()
	_, open := <-ch
	assert.False(t, open)
	stop()

	late, stopLate := sm.Subscribe("f1")
	_, open = <-late
	assert.False(t, open, "subscriptions after Close are already ended")
	stopLate()
	assert.Zero(t, sm.Subscribers("f1"))
}
