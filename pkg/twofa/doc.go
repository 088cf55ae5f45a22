// Package twofa is the reference backend of the two-factor flow.
//
// It issues and checks one-time codes for three methods: codes delivered by
// email, codes delivered by SMS, and codes from an authenticator app. Every
// method of a login has its own TOTP secret; delivered codes use a long step
// (5 minutes by default) and authenticator codes the usual 30 seconds.
//
// # Basic Usage
//
//	import "github.com/tendant/simple-2fa/pkg/twofa"
//
//	repo, err := twofa.NewTwoFARepository("file", twofa.RepositoryConfig{DataDir: "./data"})
//	if err != nil {
//		return err
//	}
//
//	service := twofa.NewTwoFaService(
//		repo,
//		twofa.WithNotificationManager(notificationManager),
//		twofa.WithSendLimiter(ratelimit.NewRateLimiter(3, 1.0/60, time.Hour)),
//		twofa.WithCodePeriod(300),
//	)
//
// # Enrollment
//
//	// Email or SMS: a code is delivered
//	_, err := service.RequestEnable(ctx, subject, "email")
//	err = service.VerifyEnable(ctx, subject, "email", codeFromUser)
//
//	// Authenticator: the otpauth link is returned for a QR code
//	link, err := service.RequestEnable(ctx, subject, "google_authenticator")
//	err = service.VerifyEnable(ctx, subject, "google_authenticator", codeFromApp)
//
// # Login Verification
//
//	err := service.SendVerification(ctx, subject, "phone_number")
//	err = service.VerifyLogin(ctx, subject, "phone_number", codeFromUser)
//
// Errors are *errors.Error values from pkg/errors; their message is meant to
// be shown to the user as is.
//
// # Persistence
//
// Records live in memory, in a JSON file, or in PostgreSQL (see Schema and
// Migrate). NewTwoFARepository picks one by persistence type.
package twofa
