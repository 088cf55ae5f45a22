package otpsession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/tendant/simple-2fa/pkg/clock"
)

var (
	ErrCodeNotReady      = errors.New("verification code must be exactly 6 digits")
	ErrSubmissionPending = errors.New("a submission is already in flight")
	ErrFlowCompleted     = errors.New("verification flow already completed")
	ErrResendUnavailable = errors.New("resend is not available for this method")
	ErrNotStarted        = errors.New("controller not started")
	ErrClosed            = errors.New("controller closed")
)

var validate = validator.New()

// ValidCode reports whether code is exactly six ASCII digits.
func ValidCode(code string) bool {
	return validate.Var(code, "required,len=6,number") == nil
}

// Controller runs one OTP session: countdown, lifecycle resync, verify and
// resend. All methods are safe for concurrent use.
type Controller struct {
	id       string
	vctx     VerificationContext
	remote   Remote
	store    IssuedAtStore
	clock    clock.Clocker
	observer Observer
	window   int
	interval time.Duration

	mu                  sync.Mutex
	phase               Phase
	appState            AppState
	remaining           int
	issuedAt            time.Time
	backgroundEnteredAt time.Time
	verify              SubmissionState
	resend              SubmissionState
	errorMessage        string
	started             bool
	closed              bool

	cancel  context.CancelFunc
	done    chan struct{}
	release func()
}

// New builds a Controller for vctx. Call Start to begin the countdown.
func New(vctx VerificationContext, remote Remote, opts ...Option) (*Controller, error) {
	if err := vctx.Validate(); err != nil {
		return nil, fmt.Errorf("invalid verification context: %w", err)
	}
	if remote == nil {
		return nil, fmt.Errorf("remote is required")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.window <= 0 {
		return nil, fmt.Errorf("countdown window must be positive, got %d", o.window)
	}
	if vctx.Account == "" {
		vctx.Account = o.account
	}

	return &Controller{
		id:       uuid.NewString(),
		vctx:     vctx,
		remote:   remote,
		store:    o.store,
		clock:    o.clock,
		observer: o.observer,
		window:   o.window,
		interval: o.tickInterval,
		phase:    PhaseAwaitingCode,
		appState: AppActive,
		verify:   idle(),
		resend:   idle(),
	}, nil
}

// Start restores the issued-at time for this flow, or records now if none is
// stored, and starts the countdown ticker. The ticker stops when ctx is
// cancelled, the flow completes, or Close is called.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("controller already started")
	}
	c.started = true

	if c.vctx.HasCountdown() {
		now := c.clock.Now()
		issuedAt, ok, err := c.store.Get(ctx, c.vctx.Key())
		if err != nil {
			slog.Warn("Failed to read OTP issued-at, starting a fresh window", "session_id", c.id, "key", c.vctx.Key(), "error", err)
		}
		if !ok || err != nil {
			issuedAt = now
			if err := c.store.Put(ctx, c.vctx.Key(), issuedAt); err != nil {
				slog.Warn("Failed to persist OTP issued-at", "session_id", c.id, "key", c.vctx.Key(), "error", err)
			}
		}
		c.issuedAt = issuedAt
		c.remaining = c.derive(now)

		tickCtx, cancel := context.WithCancel(ctx)
		c.cancel = cancel
		c.done = make(chan struct{})
		go c.run(tickCtx, c.done)
	}
	state := c.snapshot()
	c.mu.Unlock()

	slog.Debug("OTP session started", "session_id", c.id, "method", c.vctx.Method, "flow", c.vctx.FlowKind, "remaining", state.RemainingSeconds)
	c.observer.StateChanged(state)
	return nil
}

func (c *Controller) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}

// derive computes the remaining seconds from issuedAt. Elapsed time is
// clamped to [0, window], so a clock that moved backwards never yields more
// than the full window. Callers hold c.mu.
func (c *Controller) derive(now time.Time) int {
	elapsed := int(now.Sub(c.issuedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > c.window {
		elapsed = c.window
	}
	return c.window - elapsed
}

// Tick refreshes the countdown from wall-clock time. It only acts while the
// app is active, the flow is not terminal and the countdown has not reached
// zero. A tick never raises the value.
func (c *Controller) Tick() {
	c.mu.Lock()
	if !c.vctx.HasCountdown() || !c.started || c.closed ||
		c.phase == PhaseTerminal || c.appState != AppActive || c.remaining == 0 {
		c.mu.Unlock()
		return
	}
	derived := c.derive(c.clock.Now())
	if derived >= c.remaining {
		c.mu.Unlock()
		return
	}
	c.remaining = derived
	state := c.snapshot()
	c.mu.Unlock()

	c.observer.StateChanged(state)
}

// HandleAppState applies a host lifecycle transition. Leaving the foreground
// pauses ticking; returning recomputes the countdown from issued-at.
func (c *Controller) HandleAppState(next AppState) {
	c.mu.Lock()
	prev := c.appState
	if prev == next || c.closed {
		c.mu.Unlock()
		return
	}
	c.appState = next

	now := c.clock.Now()
	switch {
	case prev == AppActive && next.away():
		c.backgroundEnteredAt = now
	case prev.away() && next == AppActive:
		if c.vctx.HasCountdown() && c.started && c.phase != PhaseTerminal {
			c.remaining = c.derive(now)
			slog.Debug("OTP countdown resynced", "session_id", c.id,
				"away_for", now.Sub(c.backgroundEnteredAt), "remaining", c.remaining)
		}
	}
	state := c.snapshot()
	c.mu.Unlock()

	c.observer.StateChanged(state)
}

// LifecycleSource delivers host application state changes.
type LifecycleSource interface {
	Subscribe(fn func(AppState)) (unsubscribe func())
}

// Attach subscribes the controller to src. The subscription is released by
// the returned func or by Close, whichever comes first.
func (c *Controller) Attach(src LifecycleSource) func() {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return func() {}
	}

	var once sync.Once
	unsubscribe := src.Subscribe(c.HandleAppState)
	release := func() { once.Do(unsubscribe) }

	c.mu.Lock()
	if c.closed {
		// Close ran while subscribing.
		c.mu.Unlock()
		release()
		return release
	}
	prev := c.release
	c.release = func() {
		if prev != nil {
			prev()
		}
		release()
	}
	c.mu.Unlock()
	return release
}

// CanSubmit reports whether Submit would dispatch code right now. A pending
// resend does not block verification.
func (c *Controller) CanSubmit(code string) bool {
	if !ValidCode(code) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started && !c.closed && c.phase != PhaseTerminal && !c.verify.Pending()
}

// Submit verifies code against the remote API for the flow kind. On success
// the flow becomes terminal and the outcome is returned. On failure the
// rejection message is exposed via State().ErrorMessage, the countdown keeps
// running and the remote error is returned.
func (c *Controller) Submit(ctx context.Context, code string) (Outcome, error) {
	if !ValidCode(code) {
		return "", ErrCodeNotReady
	}

	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return "", ErrClosed
	case !c.started:
		c.mu.Unlock()
		return "", ErrNotStarted
	case c.phase == PhaseTerminal:
		c.mu.Unlock()
		return "", ErrFlowCompleted
	case c.verify.Pending():
		c.mu.Unlock()
		return "", ErrSubmissionPending
	}
	c.verify = pending()
	c.phase = PhaseVerifying
	c.errorMessage = ""
	state := c.snapshot()
	c.mu.Unlock()
	c.observer.StateChanged(state)

	var err error
	if c.vctx.FlowKind == FlowEnable {
		err = c.remote.VerifyEnableCode(ctx, string(c.vctx.Method), code)
	} else {
		err = c.remote.VerifyLoginCode(ctx, string(c.vctx.Method), code)
	}

	if err != nil {
		msg := userMessage(err)
		c.mu.Lock()
		c.verify = failed(msg)
		if c.phase == PhaseVerifying {
			c.phase = PhaseAwaitingCode
		}
		c.errorMessage = msg
		state = c.snapshot()
		c.mu.Unlock()

		slog.Info("OTP verification failed", "session_id", c.id, "method", c.vctx.Method, "flow", c.vctx.FlowKind, "error", err)
		c.observer.StateChanged(state)
		c.observer.Notify(Notice{Level: NoticeError, Message: msg})
		if c.vctx.FlowKind == FlowLogin {
			c.observer.SessionChanged(LoginNotEstablished)
		}
		return "", err
	}

	c.mu.Lock()
	c.verify = succeeded()
	c.phase = PhaseTerminal
	cancel := c.cancel
	state = c.snapshot()
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if c.vctx.HasCountdown() {
		if err := c.store.Delete(ctx, c.vctx.Key()); err != nil {
			slog.Warn("Failed to clear OTP issued-at", "session_id", c.id, "key", c.vctx.Key(), "error", err)
		}
	}

	slog.Info("OTP verification succeeded", "session_id", c.id, "method", c.vctx.Method, "flow", c.vctx.FlowKind)
	c.observer.StateChanged(state)
	if c.vctx.FlowKind == FlowEnable {
		c.observer.Notify(Notice{Level: NoticeInfo, Message: enabledNotice})
		c.observer.Navigate(Navigation{Outcome: OutcomeEnableSuccess, Notice: enabledNotice})
		return OutcomeEnableSuccess, nil
	}
	c.observer.SessionChanged(LoginEstablished)
	c.observer.Navigate(Navigation{Outcome: OutcomeLoginSuccess})
	return OutcomeLoginSuccess, nil
}

// Resend restarts the countdown at the full window and asks the remote API
// for a new code. The reset is not rolled back if the request fails.
func (c *Controller) Resend(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case !c.vctx.HasCountdown():
		c.mu.Unlock()
		return ErrResendUnavailable
	case !c.started:
		c.mu.Unlock()
		return ErrNotStarted
	case c.phase == PhaseTerminal:
		c.mu.Unlock()
		return ErrFlowCompleted
	case c.resend.Pending():
		c.mu.Unlock()
		return ErrSubmissionPending
	}
	c.issuedAt = c.clock.Now()
	c.remaining = c.window
	c.resend = pending()
	issuedAt := c.issuedAt
	state := c.snapshot()
	c.mu.Unlock()

	if err := c.store.Put(ctx, c.vctx.Key(), issuedAt); err != nil {
		slog.Warn("Failed to persist OTP issued-at", "session_id", c.id, "key", c.vctx.Key(), "error", err)
	}
	c.observer.StateChanged(state)

	var err error
	if c.vctx.FlowKind == FlowEnable {
		err = c.remote.RequestEnableCode(ctx, string(c.vctx.Method))
	} else {
		err = c.remote.SendVerification(ctx, string(c.vctx.Method))
	}

	c.mu.Lock()
	if err != nil {
		c.resend = failed(userMessage(err))
	} else {
		c.resend = succeeded()
	}
	state = c.snapshot()
	c.mu.Unlock()
	c.observer.StateChanged(state)

	if err != nil {
		slog.Error("Failed to resend OTP", "session_id", c.id, "method", c.vctx.Method, "flow", c.vctx.FlowKind, "error", err)
		c.observer.Notify(Notice{Level: NoticeError, Message: userMessage(err)})
		return err
	}
	c.observer.Notify(Notice{Level: NoticeInfo, Message: resentNotice})
	return nil
}

// ClearError drops the displayed verification error, typically once the user
// edits the code again.
func (c *Controller) ClearError() {
	c.mu.Lock()
	if c.errorMessage == "" {
		c.mu.Unlock()
		return
	}
	c.errorMessage = ""
	state := c.snapshot()
	c.mu.Unlock()
	c.observer.StateChanged(state)
}

// Back abandons the flow and hands navigation back to the caller.
func (c *Controller) Back() error {
	if err := c.Close(); err != nil {
		return err
	}
	c.observer.Navigate(Navigation{Outcome: OutcomeNavigateBack})
	return nil
}

// State returns a snapshot of the controller.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *Controller) snapshot() State {
	return State{
		Context:          c.vctx,
		Phase:            c.phase,
		AppState:         c.appState,
		RemainingSeconds: c.remaining,
		IssuedAt:         c.issuedAt,
		Verify:           c.verify,
		Resend:           c.resend,
		ErrorMessage:     c.errorMessage,
	}
}

// Close stops the ticker, waits for it to exit and releases lifecycle
// subscriptions. Requests already in flight complete but their results are
// still applied to the state. Close is idempotent.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel, done, release := c.cancel, c.done, c.release
	c.release = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if release != nil {
		release()
	}
	slog.Debug("OTP session closed", "session_id", c.id)
	return nil
}
