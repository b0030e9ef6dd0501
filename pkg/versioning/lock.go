package versioning

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const lockTTL = 30 * time.Second

// flowLocks is a set of per-flow locks. A waiter gives up when its context
// ends; a flow's slot is dropped once nobody holds or waits on it.
type flowLocks struct {
	mu    sync.Mutex
	slots map[string]*flowSlot
}

type flowSlot struct {
	token chan struct{}
	users int
}

func newFlowLocks() *flowLocks {
	return &flowLocks{slots: make(map[string]*flowSlot)}
}

// lock blocks until flowID is free or ctx is done.
func (l *flowLocks) lock(ctx context.Context, flowID string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[flowID]
	if !ok {
		slot = &flowSlot{token: make(chan struct{}, 1)}
		l.slots[flowID] = slot
	}
	slot.users++
	l.mu.Unlock()

	select {
	case slot.token <- struct{}{}:
		return func() {
			<-slot.token
			l.leave(flowID, slot)
		}, nil
	case <-ctx.Done():
		l.leave(flowID, slot)
		return nil, ctx.Err()
	}
}

func (l *flowLocks) leave(flowID string, slot *flowSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.users--
	if slot.users == 0 {
		delete(l.slots, flowID)
	}
}

// size reports how many flows are held or awaited.
func (l *flowLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

// withFlowLock runs fn while holding the local lock of the flow and, when a
// DistributedLocker is configured, the distributed one.
func (s *Service) withFlowLock(ctx context.Context, flowID string, fn func(context.Context) error) error {
	unlock, err := s.locks.lock(ctx, flowID)
	if err != nil {
		return fmt.Errorf("waiting for flow %s: %w", flowID, err)
	}
	defer unlock()

	if s.locker != nil {
		release, err := s.locker.Lock(ctx, "flow:"+flowID, lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// ctx may already be canceled; the release must still go out
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"flow_id", flowID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
