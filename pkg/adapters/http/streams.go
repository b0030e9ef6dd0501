package http

import (
	"log/slog"
	"sync"

	"github.com/aretw0/ivrflow/internal/logging"
)

const subscriberBuffer = 16

// Event is pushed to SSE subscribers of a flow.
type Event struct {
	Type      string `json:"type"`
	FlowID    string `json:"flowId"`
	VersionID string `json:"versionId,omitempty"`
	Version   int    `json:"version,omitempty"`
}

// StreamManager fans flow events out to SSE subscribers, keyed by flow id.
// Close ends every open stream; register it with http.Server.RegisterOnShutdown
// so Shutdown does not wait on idle subscribers.
type StreamManager struct {
	mu     sync.Mutex
	flows  map[string]map[chan Event]struct{}
	closed bool
	logger *slog.Logger
}

// NewStreamManager creates an empty StreamManager. A nil logger discards output.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		flows:  make(map[string]map[chan Event]struct{}),
		logger: logger,
	}
}

// Subscribe registers a subscriber of flowID. The channel is closed by the
// returned func or by Close, whichever comes first.
func (sm *StreamManager) Subscribe(flowID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.closed {
		close(ch)
		return ch, func() {}
	}
	subs := sm.flows[flowID]
	if subs == nil {
		subs = make(map[chan Event]struct{})
		sm.flows[flowID] = subs
	}
	subs[ch] = struct{}{}

	return ch, func() { sm.drop(flowID, ch) }
}

func (sm *StreamManager) drop(flowID string, ch chan Event) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	subs, ok := sm.flows[flowID]
	if !ok {
		return
	}
	if _, ok := subs[ch]; !ok {
		return
	}
	delete(subs, ch)
	close(ch)
	if len(subs) == 0 {
		delete(sm.flows, flowID)
	}
}

// Subscribers returns the number of subscribers of flowID.
func (sm *StreamManager) Subscribers(flowID string) int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.flows[flowID])
}

// Broadcast delivers e to every subscriber of its flow. A subscriber whose
// buffer is full misses the event.
func (sm *StreamManager) Broadcast(e Event) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for ch := range sm.flows[e.FlowID] {
		select {
		case ch <- e:
		default:
			sm.logger.Warn("SSE: Client buffer full, dropping event", "flow_id", e.FlowID, "type", e.Type)
		}
	}
}

// Close ends every stream and rejects later subscriptions. It is idempotent.
func (sm *StreamManager) Close() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.closed {
		return
	}
	sm.closed = true
	n := 0
	for flowID, subs := range sm.flows {
		for ch := range subs {
			close(ch)
			n++
		}
		delete(sm.flows, flowID)
	}
	if n > 0 {
		sm.logger.Info("SSE: Closed open streams", "subscribers", n)
	}
}
