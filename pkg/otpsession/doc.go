// Package otpsession implements the client side of a two-factor verification flow:
// choosing a channel, counting down the one-time code window, resyncing that
// countdown when the application returns to the foreground, and dispatching
// verify and resend requests to the remote 2FA API.
//
// # Overview
//
// A flow has two steps:
//
//   - Selector performs the initial dispatch for the chosen method (send a code,
//     request an enablement code, or fetch an authenticator enrollment link) and
//     returns the VerificationContext for the flow.
//   - Controller owns the OTP session for that context: the countdown, lifecycle
//     resync, verification dispatch and resend dispatch.
//
// # Basic Usage
//
//	remote := twofaclient.New(baseURL, twofaclient.WithToken(token))
//	store := otpsession.NewMemoryIssuedAtStore()
//
//	selector := otpsession.NewSelector(remote, otpsession.WithStore(store))
//	vctx, err := selector.Choose(ctx, otpsession.MethodEmail, otpsession.FlowLogin)
//	if err != nil {
//		return err
//	}
//
//	ctrl, err := otpsession.New(vctx, remote,
//		otpsession.WithStore(store),
//		otpsession.WithObserver(ui),
//	)
//	if err != nil {
//		return err
//	}
//	defer ctrl.Close()
//
//	if err := ctrl.Start(ctx); err != nil {
//		return err
//	}
//
//	// later, from user input
//	if ctrl.CanSubmit(code) {
//		outcome, err := ctrl.Submit(ctx, code)
//	}
//
// # Countdown
//
// The remaining seconds are always derived from the time the code was issued,
// never from how many ticks happened to fire. Ticks only run while the app is
// active; on the transition back to active the countdown is recomputed as
// max(0, window - elapsed), so a long stay in the background cannot leave a
// stale non-zero countdown behind.
//
// # Pending State
//
// Every remote operation has its own SubmissionState. A pending resend never
// shows up as a pending verify and vice versa.
package otpsession
