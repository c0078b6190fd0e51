package poll

import (
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/flowpulse/flowpulse/pkg/types"
)

// Default schedule.
const (
	DefaultMaxAttempts  = 30
	DefaultInitialDelay = 500 * time.Millisecond
	DefaultMultiplier   = 1.5
	DefaultMaxDelay     = 3 * time.Second
	DefaultSettleDelay  = time.Second
)

// State is the controller's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateAttempting
	StateSucceeded
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttempting:
		return "attempting"
	case StateSucceeded:
		return "succeeded"
	case StateExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Config controls attempt count and spacing.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	SettleDelay  time.Duration
}

// DefaultConfig returns the standard schedule.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		Multiplier:   DefaultMultiplier,
		MaxDelay:     DefaultMaxDelay,
		SettleDelay:  DefaultSettleDelay,
	}
}

// Outcome is reported once per attempt sequence, when it succeeds or runs
// out of attempts.
type Outcome struct {
	State    State
	Attempts int
	// Gen is the sequence that produced the outcome; see Generation.
	Gen uint64
	// Metrics is the successful MetricSet, or the last (signal-free) attempt
	// when State is StateExhausted.
	Metrics types.MetricSet
}

// Succeeded reports whether the sequence found usable data.
func (o Outcome) Succeeded() bool { return o.State == StateSucceeded }

// AttemptFunc runs one extraction.
type AttemptFunc func() types.MetricSet

// Timer is the handle of a scheduled attempt.
type Timer interface {
	Stop() bool
}

// ScheduleFunc runs fn once after d. time.AfterFunc satisfies it.
type ScheduleFunc func(d time.Duration, fn func()) Timer

func afterFunc(d time.Duration, fn func()) Timer { return time.AfterFunc(d, fn) }

// Controller runs attempts until one yields signal or the budget is spent.
type Controller struct {
	cfg       Config
	attempt   AttemptFunc
	onOutcome func(Outcome)
	schedule  ScheduleFunc

	mu       sync.Mutex
	state    State
	attempts int
	gen      uint64
	pending  Timer
	bo       *backoff.ExponentialBackOff
}

// New returns an idle Controller. onOutcome is called outside the
// controller's lock, from the goroutine that ran the final attempt.
func New(cfg Config, attempt AttemptFunc, onOutcome func(Outcome)) *Controller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.InitialDelay
	bo.Multiplier = cfg.Multiplier
	bo.MaxInterval = cfg.MaxDelay
	bo.RandomizationFactor = 0
	bo.Reset()

	return &Controller{
		cfg:       cfg,
		attempt:   attempt,
		onOutcome: onOutcome,
		schedule:  afterFunc,
		bo:        bo,
	}
}

// Start begins the first attempt sequence immediately. It is a no-op
// unless the controller is idle.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return
	}
	c.restartLocked(0)
}

// Reset abandons the current sequence and schedules a fresh one after the
// settle delay. Any pending attempt is cancelled and any running attempt's
// result is discarded.
func (c *Controller) Reset(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slog.Info("poll: reset", "reason", reason, "state", c.state.String(), "attempts", c.attempts)
	c.restartLocked(c.cfg.SettleDelay)
}

// Stop cancels everything and returns to idle.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.cancelLocked()
	c.state = StateIdle
}

// ExtractNow runs a single attempt outside the schedule and returns its
// result. It does not change the controller's state or attempt count.
func (c *Controller) ExtractNow() types.MetricSet {
	return c.attempt()
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Generation identifies the current sequence. Start, Reset and Stop each
// begin a new one, so an Outcome whose Gen differs is from a sequence that
// has since been abandoned.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Attempts returns the attempt count of the current sequence.
func (c *Controller) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// --- internal ---------------------------------------------------------------

func (c *Controller) restartLocked(delay time.Duration) {
	c.gen++
	c.cancelLocked()
	c.attempts = 0
	c.bo.Reset()
	c.state = StateAttempting
	c.scheduleLocked(delay)
}

func (c *Controller) cancelLocked() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

func (c *Controller) scheduleLocked(d time.Duration) {
	c.cancelLocked()
	gen := c.gen
	c.pending = c.schedule(d, func() { c.fire(gen) })
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state != StateAttempting {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.attempts++
	n := c.attempts
	c.mu.Unlock()

	ms := c.attempt()

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		slog.Debug("poll: discarding attempt from superseded sequence", "attempt", n)
		return
	}
	var out *Outcome
	switch {
	case ms.HasSignal():
		c.state = StateSucceeded
		out = &Outcome{State: StateSucceeded, Attempts: n, Gen: gen, Metrics: ms}
	case n >= c.cfg.MaxAttempts:
		c.state = StateExhausted
		out = &Outcome{State: StateExhausted, Attempts: n, Gen: gen, Metrics: ms}
	default:
		d := c.bo.NextBackOff()
		slog.Debug("poll: no signal yet, retrying", "attempt", n, "retry_in", d)
		c.scheduleLocked(d)
	}
	c.mu.Unlock()

	if out != nil {
		slog.Info("poll: sequence finished", "state", out.State.String(), "attempts", out.Attempts)
		if c.onOutcome != nil {
			c.onOutcome(*out)
		}
	}
}
