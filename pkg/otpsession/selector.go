package otpsession

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tendant/simple-2fa/pkg/clock"
)

// Selector runs the method-selection step that precedes a Controller, plus
// the status and disable operations of the settings screen. Each operation
// tracks its own SubmissionState.
type Selector struct {
	remote   Remote
	store    IssuedAtStore
	clock    clock.Clocker
	observer Observer
	account  string

	mu     sync.Mutex
	states map[Operation]SubmissionState
}

func NewSelector(remote Remote, opts ...Option) *Selector {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Selector{
		remote:   remote,
		store:    o.store,
		clock:    o.clock,
		observer: o.observer,
		account:  o.account,
		states:   make(map[Operation]SubmissionState),
	}
}

// State returns the submission state of op.
func (s *Selector) State(op Operation) SubmissionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[op]; ok {
		return st
	}
	return idle()
}

func (s *Selector) begin(op Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states[op].Pending() {
		return ErrSubmissionPending
	}
	s.states[op] = pending()
	return nil
}

func (s *Selector) finish(op Operation, err error) {
	s.mu.Lock()
	if err != nil {
		s.states[op] = failed(userMessage(err))
	} else {
		s.states[op] = succeeded()
	}
	s.mu.Unlock()

	if err != nil {
		slog.Error("2FA request failed", "operation", op, "error", err)
		s.observer.Notify(Notice{Level: NoticeError, Message: userMessage(err)})
	}
}

// Choose dispatches the initial request for method and returns the context
// for the verification step. Delivered methods record the issue time so the
// next Controller starts its countdown from it. The authenticator link is
// only fetched when enabling; a login needs nothing from the remote API.
func (s *Selector) Choose(ctx context.Context, method Method, kind FlowKind) (VerificationContext, error) {
	vctx := VerificationContext{Method: method, FlowKind: kind, Account: s.account}
	if err := vctx.Validate(); err != nil {
		return VerificationContext{}, err
	}

	if method == MethodAuthenticator {
		if kind != FlowEnable {
			return vctx, nil
		}
		if err := s.begin(OpAuthenticatorLink); err != nil {
			return VerificationContext{}, err
		}
		link, err := s.remote.AuthenticatorLink(ctx)
		s.finish(OpAuthenticatorLink, err)
		if err != nil {
			return VerificationContext{}, err
		}
		vctx.QRPayload = link
		return vctx, nil
	}

	op := OpSendVerification
	if kind == FlowEnable {
		op = OpRequestEnable
	}
	if err := s.begin(op); err != nil {
		return VerificationContext{}, err
	}

	var err error
	if kind == FlowEnable {
		err = s.remote.RequestEnableCode(ctx, string(method))
	} else {
		err = s.remote.SendVerification(ctx, string(method))
	}
	s.finish(op, err)
	if err != nil {
		return VerificationContext{}, err
	}

	if err := s.store.Put(ctx, vctx.Key(), s.clock.Now()); err != nil {
		slog.Warn("Failed to persist OTP issued-at", "key", vctx.Key(), "error", err)
	}
	return vctx, nil
}

// Status reports whether 2FA is enabled for the caller and which methods.
func (s *Selector) Status(ctx context.Context) (bool, []string, error) {
	if err := s.begin(OpCheckStatus); err != nil {
		return false, nil, err
	}
	enabled, methods, err := s.remote.Status(ctx)
	s.finish(OpCheckStatus, err)
	if err != nil {
		return false, nil, err
	}
	return enabled, methods, nil
}

// Disable turns 2FA off for the caller.
func (s *Selector) Disable(ctx context.Context) error {
	if err := s.begin(OpDisable); err != nil {
		return err
	}
	err := s.remote.Disable(ctx)
	s.finish(OpDisable, err)
	if err != nil {
		return err
	}
	s.observer.Notify(Notice{Level: NoticeInfo, Message: disabledNotice})
	return nil
}
