// Package clock provides a tiny time abstraction.
//
// Code that derives state from wall-clock time (OTP countdowns, code periods,
// rate limits) depends on the Clocker interface instead of calling time.Now()
// directly, so tests can swap in a Manual clock and move time explicitly.
package clock
