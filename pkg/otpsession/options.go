package otpsession

import (
	"time"

	"github.com/tendant/simple-2fa/pkg/clock"
)

// DefaultWindowSeconds is the countdown length for delivered codes.
const DefaultWindowSeconds = 59

type options struct {
	window       int
	clock        clock.Clocker
	store        IssuedAtStore
	observer     Observer
	tickInterval time.Duration
	account      string
}

func defaultOptions() options {
	return options{
		window:       DefaultWindowSeconds,
		clock:        clock.New(),
		store:        NewMemoryIssuedAtStore(),
		observer:     NoopObserver{},
		tickInterval: time.Second,
	}
}

// Option configures a Controller or a Selector.
type Option func(*options)

// WithWindow sets the countdown window in seconds.
func WithWindow(seconds int) Option {
	return func(o *options) {
		o.window = seconds
	}
}

func WithClock(c clock.Clocker) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithStore sets where issued-at timestamps are kept. A Selector and the
// Controller it hands off to should share one store.
func WithStore(s IssuedAtStore) Option {
	return func(o *options) {
		if s != nil {
			o.store = s
		}
	}
}

func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithTickInterval overrides the ticker period. Remaining seconds are still
// derived from wall-clock time, so this only changes how often the display
// value is refreshed.
func WithTickInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.tickInterval = d
		}
	}
}

// WithAccount scopes stored issue times to account, so users sharing a store
// do not inherit each other's countdown.
func WithAccount(account string) Option {
	return func(o *options) {
		o.account = account
	}
}
