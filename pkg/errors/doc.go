// Package errors provides structured error handling with error codes for simple-2fa.
//
// Both sides of the two-factor flow share these codes: the reference backend maps
// them to HTTP status codes, and the REST client uses them to tell a server
// rejection (whose message is shown to the user verbatim) apart from a transport
// failure (which gets a generic retry message).
//
// # Basic Usage
//
//	import apperrors "github.com/tendant/simple-2fa/pkg/errors"
//
//	// Create a simple error
//	err := apperrors.New(apperrors.ErrCodeTwoFAInvalid, "Invalid code")
//
//	// Wrap an existing error
//	err := apperrors.Wrap(dbErr, apperrors.ErrCodeInternal, "failed to load 2FA record")
//
//	// Inspect
//	if apperrors.IsCode(err, apperrors.ErrCodeRemoteRejected) {
//		showToUser(apperrors.Message(err))
//	}
//
// # HTTP Mapping
//
//	status := apperrors.MapErrorCodeToHTTPStatus(apperrors.GetCode(err))
package errors
