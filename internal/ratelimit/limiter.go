// Package ratelimit implements the per-address, per-action token bucket
// described in spec.md §4.B. It is distinct from the transport-level flood
// control in internal/ws (golang.org/x/time/rate, continuous refill): this
// limiter's arm-on-first-hit / two-independent-one-shot-timers / advisory
// "limited" verdict semantics do not reduce to a continuous bucket, so it is
// built directly on time.AfterFunc, grounded on the teacher's pattern of
// wiring a rate limiter onto the per-client/per-address state it protects
// (internal/websocket's Client.rateLimiter in the teacher repo) but with its
// own timer-driven reset logic.
package ratelimit

import (
	"sync"
	"time"
)

// Config is the (amount, timeframe, restore) tuple for one action class (§4.B,
// §6 "Configuration").
type Config struct {
	Amount    int
	Timeframe time.Duration
	Restore   time.Duration
}

type counter struct {
	value         int
	timeframeTimer *time.Timer
	restoreTimer   *time.Timer
}

// Limiter tracks one counter per (address, action) pair. All methods are safe
// for concurrent use, but callers that also mutate room state alongside a
// ratelimit check should hold their own lock across both (spec.md §5): this
// limiter's internal mutex only protects its own bookkeeping, it does not
// serialize with the room.
type Limiter struct {
	mu       sync.Mutex
	configs  map[string]Config
	counters map[string]map[string]*counter // address -> action -> counter

	// afterFunc is swappable in tests to avoid real timers.
	afterFunc func(d time.Duration, f func()) *time.Timer
}

// New builds a Limiter from a config table keyed by action class.
func New(configs map[string]Config) *Limiter {
	return &Limiter{
		configs:   cloneConfigs(configs),
		counters:  make(map[string]map[string]*counter),
		afterFunc: time.AfterFunc,
	}
}

func cloneConfigs(in map[string]Config) map[string]Config {
	out := make(map[string]Config, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Verdict is the outcome of Check.
type Verdict struct {
	// Allowed reports whether the action may proceed.
	Allowed bool
	// Limited reports whether this call newly tripped (the hit that reaches
	// amount, which is still allowed) or is still within the limited window
	// for (address, action).
	Limited bool
}

// Check runs one hit of action for address through the bucket and returns
// whether it is allowed. Counters for distinct actions are independent; the
// counter value never exceeds amount (§8 property 4).
//
// Algorithm (§4.B): if the counter is already at amount on entry, this hit is
// refused and the verdict reports Limited so the caller can re-emit the
// mapped error (step 4). Otherwise the timeframe timer is armed on the first
// hit of a fresh window (step 1), the counter is incremented (step 2), and if
// the increment brings it to amount a restore timer is armed to
// unconditionally clear it later (step 3) and the *next* hit - not this one -
// is the one that gets refused, matching the worked example in §8 S3 (two
// chat messages broadcast, the third refused) over a literal amount-th-action
// reading of the prose.
func (l *Limiter) Check(address, action string) Verdict {
	cfg, ok := l.configFor(action)
	if !ok || cfg.Amount <= 0 {
		return Verdict{Allowed: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.counterFor(address, action)

	if c.value >= cfg.Amount {
		return Verdict{Allowed: false, Limited: true}
	}

	if c.timeframeTimer == nil {
		c.timeframeTimer = l.afterFunc(cfg.Timeframe, func() { l.onTimeframeExpire(address, action, cfg) })
	}

	c.value++

	if c.value == cfg.Amount {
		c.restoreTimer = l.afterFunc(cfg.Restore, func() { l.onRestoreExpire(address, action) })
		return Verdict{Allowed: true, Limited: true}
	}

	return Verdict{Allowed: true}
}

// Count returns the current counter value for (address, action), for tests
// and for admin introspection. It never mutates state.
func (l *Limiter) Count(address, action string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	byAction, ok := l.counters[address]
	if !ok {
		return 0
	}
	c, ok := byAction[action]
	if !ok {
		return 0
	}
	return c.value
}

// Forget drops all counters for address, letting any outstanding timers fire
// harmlessly against a counter that is no longer referenced (§5 "Timers").
// Callers invoke this on disconnect.
func (l *Limiter) Forget(address string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counters, address)
}

func (l *Limiter) configFor(action string) (Config, bool) {
	cfg, ok := l.configs[action]
	return cfg, ok
}

func (l *Limiter) counterFor(address, action string) *counter {
	byAction, ok := l.counters[address]
	if !ok {
		byAction = make(map[string]*counter)
		l.counters[address] = byAction
	}
	c, ok := byAction[action]
	if !ok {
		c = &counter{}
		byAction[action] = c
	}
	return c
}

func (l *Limiter) onTimeframeExpire(address, action string, cfg Config) {
	l.mu.Lock()
	defer l.mu.Unlock()

	byAction, ok := l.counters[address]
	if !ok {
		return
	}
	c, ok := byAction[action]
	if !ok {
		return
	}

	c.timeframeTimer = nil
	if c.value < cfg.Amount {
		c.value = 0
	}
}

func (l *Limiter) onRestoreExpire(address, action string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	byAction, ok := l.counters[address]
	if !ok {
		return
	}
	c, ok := byAction[action]
	if !ok {
		return
	}

	c.value = 0
	c.restoreTimer = nil
	c.timeframeTimer = nil
}
