// Package circuit gates calls to external analyzer engines with a two-state
// breaker. Analyzer invocations are slow and billed per call, so the breaker
// trips after a short run of consecutive failures and callers fail fast with
// a fallback outcome instead of queueing more work behind a dead engine.
package circuit

import "sync"

// State is the breaker state: closed lets calls through, open rejects them.
type State int

const (
	StateClosed State = iota
	StateOpen
)

// StateChange reports a transition caused by the call that returned it.
// At most one field is set.
type StateChange struct {
	Opened bool
	Closed bool
}

// Consecutive-outcome thresholds suited to analyzer calls: three failures in
// a row almost always means the engine is down, and two successes are enough
// evidence that it recovered.
const (
	defaultFailureThreshold = 3
	defaultSuccessThreshold = 2
)

// Breaker counts consecutive failures while closed and consecutive successes
// while open. It carries a name so transitions can be logged and labeled.
type Breaker struct {
	mu               sync.Mutex
	state            State
	name             string
	failures         int
	successes        int
	failureThreshold int
	successThreshold int
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithFailureThreshold overrides how many consecutive failures open the
// circuit.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithSuccessThreshold overrides how many consecutive successes while open
// close it again.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

// New creates a closed breaker named after the analyzer it guards.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: defaultFailureThreshold,
		successThreshold: defaultSuccessThreshold,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Name returns the analyzer name the breaker was created with.
func (b *Breaker) Name() string {
	return b.name
}

// IsOpen reports whether calls should currently fail fast.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == StateOpen
}

// RecordFailure counts a failed call and reports whether it tripped the
// circuit. A failure while open resets the recovery count.
func (b *Breaker) RecordFailure() StateChange {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.successes = 0

	if b.state == StateClosed && b.failures >= b.failureThreshold {
		b.state = StateOpen
		return StateChange{Opened: true}
	}
	return StateChange{}
}

// RecordSuccess counts a successful call and reports whether it closed the
// circuit again.
func (b *Breaker) RecordSuccess() StateChange {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		b.successes++
		if b.successes >= b.successThreshold {
			b.state = StateClosed
			b.failures = 0
			b.successes = 0
			return StateChange{Closed: true}
		}
		return StateChange{}
	}

	b.failures = 0
	return StateChange{}
}
