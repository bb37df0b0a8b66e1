// Package resilience guards outbound page fetches with per-host circuit
// breakers and classifies failures that indicate an overloaded or blocking
// upstream.
package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// State is a breaker's position.
type State int

const (
	// Closed lets every fetch through.
	Closed State = iota
	// Open rejects fetches until the cool-down elapses.
	Open
	// HalfOpen lets probe fetches through to test recovery.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Allow while a breaker is open.
var ErrOpen = eris.New("resilience: circuit open")

// BreakerConfig controls when a breaker opens and how long it stays open.
type BreakerConfig struct {
	// Threshold is the number of consecutive tripping failures that open
	// the breaker. Default: 10.
	Threshold int

	// Cooldown is how long an open breaker rejects before probing. Default: 60s.
	Cooldown time.Duration

	// Probes is the number of successful half-open fetches required to
	// close again. Default: 1.
	Probes int

	// Trips decides whether a failure counts toward Threshold. Nil counts
	// every non-nil error.
	Trips func(err error) bool

	// OnChange is invoked under the breaker lock on every transition.
	OnChange func(name string, from, to State)
}

// NewBreakerConfig builds a BreakerConfig from raw config values, keeping
// defaults for non-positive inputs.
func NewBreakerConfig(threshold, cooldownSecs int) BreakerConfig {
	cfg := BreakerConfig{Threshold: 10, Cooldown: 60 * time.Second, Probes: 1}
	if threshold > 0 {
		cfg.Threshold = threshold
	}
	if cooldownSecs > 0 {
		cfg.Cooldown = time.Duration(cooldownSecs) * time.Second
	}
	return cfg
}

// Breaker tracks consecutive failures against a single upstream.
type Breaker struct {
	name string
	cfg  BreakerConfig

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probed   int

	now func() time.Time
}

// NewBreaker returns a closed breaker.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 10
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 1
	}
	return &Breaker{name: name, cfg: cfg, now: time.Now}
}

// Name returns the upstream the breaker guards.
func (b *Breaker) Name() string { return b.name }

// Allow returns ErrOpen while the breaker is open. Once the cool-down has
// elapsed the breaker moves to half-open and lets the caller probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Open {
		return nil
	}
	if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
		return ErrOpen
	}
	b.moveTo(HalfOpen)
	return nil
}

// Record feeds the outcome of an allowed fetch back into the breaker.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	trips := b.cfg.Trips
	if trips == nil {
		trips = func(e error) bool { return e != nil }
	}

	if err == nil || !trips(err) {
		b.failures = 0
		if b.state == HalfOpen {
			b.probed++
			if b.probed >= b.cfg.Probes {
				b.probed = 0
				b.moveTo(Closed)
			}
		}
		return
	}

	b.failures++
	switch b.state {
	case Closed:
		if b.failures >= b.cfg.Threshold {
			b.openedAt = b.now()
			b.moveTo(Open)
		}
	case HalfOpen:
		b.probed = 0
		b.openedAt = b.now()
		b.moveTo(Open)
	}
}

// State returns the current state. An open breaker whose cool-down has
// elapsed reports HalfOpen.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return HalfOpen
	}
	return b.state
}

// Failures returns the consecutive tripping failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset closes the breaker and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probed = 0
	if b.state != Closed {
		b.moveTo(Closed)
	}
}

func (b *Breaker) moveTo(to State) {
	from := b.state
	b.state = to
	zap.L().Info("resilience: breaker state change",
		zap.String("upstream", b.name),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
	if b.cfg.OnChange != nil {
		b.cfg.OnChange(b.name, from, to)
	}
}

// Breakers hands out one Breaker per upstream host.
type Breakers struct {
	cfg BreakerConfig

	mu    sync.Mutex
	hosts map[string]*Breaker
}

// NewBreakers creates an empty per-host registry sharing cfg.
func NewBreakers(cfg BreakerConfig) *Breakers {
	return &Breakers{cfg: cfg, hosts: make(map[string]*Breaker)}
}

// For returns the breaker for host, creating it on first use.
func (r *Breakers) For(host string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.hosts[host]
	if !ok {
		b = NewBreaker(host, r.cfg)
		r.hosts[host] = b
	}
	return b
}

// States snapshots every known host's state.
func (r *Breakers) States() map[string]State {
	r.mu.Lock()
	hosts := make([]*Breaker, 0, len(r.hosts))
	for _, b := range r.hosts {
		hosts = append(hosts, b)
	}
	r.mu.Unlock()

	out := make(map[string]State, len(hosts))
	for _, b := range hosts {
		out[b.Name()] = b.State()
	}
	return out
}
