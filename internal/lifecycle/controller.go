// Package lifecycle drives one remote task from submission to a terminal state.
//
// The Controller polls immediately after submission and then once per
// interval. A failed observation ends the job at once; a successful one ends it
// with the artifact URLs. Exhausting either the poll count or the wall-clock
// budget while still pending is a TimedOut outcome, which means the client gave
// up: the remote task may still finish. Transient fetch errors are retried a
// bounded number of consecutive times before they escalate.
package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"videogen/internal/domain"
	"videogen/internal/infra"
)

// State is the lifecycle position of a job as seen by the controller.
type State string

const (
	StateCreated   State = "created"
	StatePending   State = "pending"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed_out"
)

// Terminal reports whether the state can no longer change.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateTimedOut
}

const DefaultInterval = 2 * time.Second

// Submitter creates remote tasks.
type Submitter interface {
	Submit(ctx context.Context, req domain.JobRequest) (domain.TaskHandle, error)
}

// StatusFetcher performs a single status request per call.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, handle domain.TaskHandle) (domain.TaskStatus, error)
}

// Client is the remote surface a Controller needs.
type Client interface {
	Submitter
	StatusFetcher
}

// SleepFunc waits d or returns early with ctx's error.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Observation is one poll attempt as recorded by the controller.
type Observation struct {
	Attempt int
	At      time.Time
	Class   domain.TaskClass
	Status  string
	// Progress is in [0, 1] when the remote service reports it.
	Progress float64
	Err      error
}

// Config bounds the poll loop. Zero values take defaults, except that at least
// one of MaxPolls and MaxWait must be positive.
type Config struct {
	Interval time.Duration
	// MaxPolls counts every status request, including failed ones. Zero means
	// no count bound.
	MaxPolls int
	// MaxWait is measured from the first poll with Now. Zero means no time bound.
	MaxWait time.Duration
	// FetchRetries is how many consecutive retryable fetch errors are
	// tolerated before the last one is returned. Non-retryable ones, such as
	// a 404 for the task, are returned at once.
	FetchRetries int
	Sleep        SleepFunc
	Now          func() time.Time
	OnObserve    func(Observation)
	Logger       *infra.Logger
}

// Outcome is the terminal result of a controller run.
type Outcome struct {
	State        State
	Handle       domain.TaskHandle
	Outputs      []string
	Payload      []byte
	Polls        int
	Elapsed      time.Duration
	Observations []Observation
}

// Controller owns the state of exactly one job. It is not safe to Run twice.
type Controller struct {
	client StatusFetcher
	cfg    Config
	logger *infra.Logger

	mu           sync.Mutex
	state        State
	observations []Observation
}

// NewController validates cfg and fills defaults.
func NewController(client StatusFetcher, cfg Config) (*Controller, error) {
	if client == nil {
		return nil, errors.New("lifecycle: status fetcher is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxPolls < 0 || cfg.MaxWait < 0 || cfg.FetchRetries < 0 {
		return nil, &domain.ConfigError{Key: "lifecycle", Reason: "bounds must not be negative"}
	}
	if cfg.MaxPolls == 0 && cfg.MaxWait == 0 {
		return nil, &domain.ConfigError{Key: "lifecycle", Reason: "MaxPolls or MaxWait is required"}
	}
	if cfg.Sleep == nil {
		cfg.Sleep = Sleep
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Controller{client: client, cfg: cfg, logger: logger, state: StateCreated}, nil
}

// State returns the current lifecycle state. StatePending after Run has
// returned means the task was abandoned on a fetch or context error: the
// controller will not poll it again and the remote outcome is unknown.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Observations returns a copy of what has been observed so far.
func (c *Controller) Observations() []Observation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Observation(nil), c.observations...)
}

// SubmitAndRun submits req with client and then runs the poll loop. A submit
// error leaves the controller in StateCreated.
func (c *Controller) SubmitAndRun(ctx context.Context, submitter Submitter, req domain.JobRequest) (Outcome, error) {
	handle, err := submitter.Submit(ctx, req)
	if err != nil {
		return Outcome{State: StateCreated}, err
	}
	return c.Run(ctx, handle)
}

// Run polls handle until a terminal state. The returned error is
// *domain.RemoteJobFailure for StateFailed, *domain.TimeoutError for
// StateTimedOut, the last *domain.FetchError once retries are exhausted, or the
// context error on cancellation. The Outcome is populated in every case.
func (c *Controller) Run(ctx context.Context, handle domain.TaskHandle) (Outcome, error) {
	c.setState(StatePending)
	start := c.cfg.Now()
	out := Outcome{State: StatePending, Handle: handle}
	consecutiveErrs := 0

	finish := func(state State) Outcome {
		if state != StatePending {
			c.setState(state)
		}
		out.State = c.State()
		out.Elapsed = c.cfg.Now().Sub(start)
		out.Observations = c.Observations()
		return out
	}

	for {
		if err := ctx.Err(); err != nil {
			return finish(StatePending), err
		}

		out.Polls++
		status, err := c.client.FetchStatus(ctx, handle)
		obs := Observation{Attempt: out.Polls, At: c.cfg.Now()}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return finish(StatePending), ctxErr
			}
			obs.Err = err
			c.record(obs)
			consecutiveErrs++
			c.logger.Warn().Err(err).
				Str("task_id", handle.ID).
				Int("attempt", out.Polls).
				Int("consecutive_errors", consecutiveErrs).
				Msg("lifecycle: status fetch failed")
			if consecutiveErrs > c.cfg.FetchRetries || !domain.IsRetryableFetch(err) {
				return finish(StatePending), err
			}
		} else {
			consecutiveErrs = 0
			obs.Class = status.Class
			obs.Status = status.Raw
			obs.Progress = status.Progress
			c.record(obs)

			switch status.Class {
			case domain.TaskSucceeded:
				out.Outputs = status.Outputs
				out.Payload = status.Payload
				c.logger.Info().Str("task_id", handle.ID).Int("polls", out.Polls).Msg("lifecycle: task succeeded")
				return finish(StateSucceeded), nil
			case domain.TaskFailed:
				out.Payload = status.Payload
				c.logger.Warn().Str("task_id", handle.ID).Str("status", status.Raw).Msg("lifecycle: task failed")
				return finish(StateFailed), &domain.RemoteJobFailure{TaskID: handle.ID, Payload: status.Payload}
			}
		}

		elapsed := c.cfg.Now().Sub(start)
		if c.exhausted(out.Polls, elapsed) {
			c.logger.Warn().Str("task_id", handle.ID).Int("polls", out.Polls).Dur("elapsed", elapsed).Msg("lifecycle: poll budget exhausted")
			o := finish(StateTimedOut)
			return o, &domain.TimeoutError{TaskID: handle.ID, Polls: o.Polls, Elapsed: o.Elapsed}
		}
		if err := c.cfg.Sleep(ctx, c.cfg.Interval); err != nil {
			return finish(StatePending), err
		}
	}
}

func (c *Controller) exhausted(polls int, elapsed time.Duration) bool {
	if c.cfg.MaxPolls > 0 && polls >= c.cfg.MaxPolls {
		return true
	}
	return c.cfg.MaxWait > 0 && elapsed >= c.cfg.MaxWait
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Terminal() {
		return
	}
	c.state = s
}

func (c *Controller) record(obs Observation) {
	c.mu.Lock()
	c.observations = append(c.observations, obs)
	c.mu.Unlock()
	if c.cfg.OnObserve != nil {
		c.cfg.OnObserve(obs)
	}
}

// Sleep is the production SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
