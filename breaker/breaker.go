// Package breaker is a thread safe trading governor. Breakers are tripped
// per (type, scope) key, ease back to Closed one step at a time either
// manually or by wall clock auto-reset, and gate both order submission and
// position sizing. State is durable across restarts through a Store port
package breaker

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thrasher-corp/backsim/log"
)

// CircuitBreaker governs trading across every concurrent caller. All state
// transitions happen under one lock; persistence writes occur outside it on
// a snapshot so the store cannot stall readers
type CircuitBreaker struct {
	mu      sync.Mutex
	records map[string]*Record
	store   Store
	now     func() time.Time
}

// New creates a governor backed by store. A missing or corrupt store is
// recovered locally by starting with no breakers (all Closed), never
// surfaced to the caller
func New(store Store) *CircuitBreaker {
	cb := &CircuitBreaker{
		records: make(map[string]*Record),
		store:   store,
		now:     time.Now,
	}
	if store == nil {
		return cb
	}
	loaded, err := store.Load()
	if err != nil {
		log.Warnf(log.CircuitBreaker, "store unreadable, starting closed: %v", err)
		return cb
	}
	for k := range loaded {
		rec := loaded[k]
		cb.records[k] = &rec
	}
	return cb
}

func key(breakerType Type, scope string) string {
	if scope == "" {
		return string(breakerType)
	}
	return string(breakerType) + ":" + scope
}

// Trip records a breaker for (breakerType, scope), overwriting any existing
// entry for the same key. status defaults to Open. A positive resetAfter
// schedules graduated auto-recovery; zero means the breaker stays until
// manually reset
func (c *CircuitBreaker) Trip(breakerType Type, reason, scope string, resetAfter time.Duration, status Status) {
	if status == "" {
		status = Open
	}
	c.mu.Lock()
	now := c.now()
	rec := &Record{
		Type:      breakerType,
		Scope:     scope,
		Status:    status,
		Reason:    reason,
		TrippedAt: now,
	}
	if resetAfter > 0 {
		at := now.Add(resetAfter)
		rec.AutoResetAt = &at
	}
	c.records[key(breakerType, scope)] = rec
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	log.Warnf(log.CircuitBreaker, "tripped %v scope=%q status=%v reason=%v", breakerType, scope, status, reason)
	c.persist(snapshot)
}

// Reset manually eases a breaker back exactly one step:
// OPEN -> RESTRICTED -> CAUTIOUS -> removed. Resetting an absent breaker is
// a no-op
func (c *CircuitBreaker) Reset(breakerType Type, scope string) {
	c.mu.Lock()
	k := key(breakerType, scope)
	rec, ok := c.records[k]
	if !ok {
		c.mu.Unlock()
		return
	}
	next, removed := deescalate(rec.Status)
	if removed {
		delete(c.records, k)
	} else {
		rec.Status = next
		now := c.now()
		rec.ResetAttemptedAt = &now
	}
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	if removed {
		log.Infof(log.CircuitBreaker, "%v scope=%q fully eased, removed", breakerType, scope)
	} else {
		log.Infof(log.CircuitBreaker, "%v scope=%q eased to %v", breakerType, scope, next)
	}
	c.persist(snapshot)
}

// deescalate returns the next status one step down the recovery path, or
// removed when the breaker has fully eased back to Closed
func deescalate(s Status) (next Status, removed bool) {
	switch s {
	case Open:
		return Restricted, false
	case Restricted:
		return Cautious, false
	}
	// Cautious and HalfOpen ease out entirely
	return Closed, true
}

// sweepLocked applies one graduated auto-reset step to every entry past its
// deadline, mirroring manual reset semantics. The next deadline is derived
// from the original trip interval. Returns whether anything changed
func (c *CircuitBreaker) sweepLocked() bool {
	now := c.now()
	var changed bool
	for k, rec := range c.records {
		if rec.AutoResetAt == nil || now.Before(*rec.AutoResetAt) {
			continue
		}
		changed = true
		next, removed := deescalate(rec.Status)
		if removed {
			delete(c.records, k)
			log.Infof(log.CircuitBreaker, "%v scope=%q auto-reset, removed", rec.Type, rec.Scope)
			continue
		}
		interval := rec.AutoResetAt.Sub(rec.TrippedAt)
		if rec.ResetAttemptedAt != nil {
			interval = rec.AutoResetAt.Sub(*rec.ResetAttemptedAt)
		}
		attempted := now
		nextDeadline := now.Add(interval)
		rec.Status = next
		rec.ResetAttemptedAt = &attempted
		rec.AutoResetAt = &nextDeadline
		log.Infof(log.CircuitBreaker, "%v scope=%q auto-reset to %v", rec.Type, rec.Scope, next)
	}
	return changed
}

// Check reports whether trading is allowed for (breakerType, scope) and the
// most restrictive applicable status. A global System Open blocks
// everything. Any applicable Open blocks outright; otherwise trading is
// allowed at the most restrictive status found
func (c *CircuitBreaker) Check(breakerType Type, scope string) (bool, Status) {
	c.mu.Lock()
	changed := c.sweepLocked()

	worst := Closed
	if sys, ok := c.records[key(System, "")]; ok && sys.Status == Open {
		worst = Open
	} else {
		for _, rec := range c.records {
			if rec.Scope != scope {
				continue
			}
			if breakerType != AnyType && rec.Type != breakerType {
				continue
			}
			if rec.Status.Rank() > worst.Rank() {
				worst = rec.Status
			}
			if worst == Open {
				break
			}
		}
	}
	var snapshot map[string]Record
	if changed {
		snapshot = c.snapshotLocked()
	}
	c.mu.Unlock()

	if changed {
		c.persist(snapshot)
	}
	return worst != Open, worst
}

// GetStatus returns the status for one (breakerType, scope) key, Closed when
// no breaker is present. Runs the auto-reset sweep first
func (c *CircuitBreaker) GetStatus(breakerType Type, scope string) Status {
	c.mu.Lock()
	changed := c.sweepLocked()
	status := Closed
	if rec, ok := c.records[key(breakerType, scope)]; ok {
		status = rec.Status
	}
	var snapshot map[string]Record
	if changed {
		snapshot = c.snapshotLocked()
	}
	c.mu.Unlock()

	if changed {
		c.persist(snapshot)
	}
	return status
}

// GetPositionSizing returns the sizing multiplier the engine must apply
// before submission: Open 0, Restricted 0.25, Cautious 0.75, otherwise 1
func (c *CircuitBreaker) GetPositionSizing(breakerType Type, scope string) decimal.Decimal {
	_, status := c.Check(breakerType, scope)
	switch status {
	case Open:
		return decimal.Zero
	case Restricted:
		return decimal.NewFromFloat(0.25)
	case Cautious:
		return decimal.NewFromFloat(0.75)
	}
	return decimal.NewFromInt(1)
}

// Records returns a copy of every active breaker entry
func (c *CircuitBreaker) Records() map[string]Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *CircuitBreaker) snapshotLocked() map[string]Record {
	out := make(map[string]Record, len(c.records))
	for k, rec := range c.records {
		out[k] = *rec
	}
	return out
}

// persist writes a snapshot to the store best effort, persistence problems
// are logged and never propagated to trading callers
func (c *CircuitBreaker) persist(snapshot map[string]Record) {
	if c.store == nil || snapshot == nil {
		return
	}
	if err := c.store.Save(snapshot); err != nil {
		log.Errorf(log.CircuitBreaker, "unable to persist breaker state: %v", err)
	}
}
