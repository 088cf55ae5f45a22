package otpsession

import (
	"context"

	apperrors "github.com/tendant/simple-2fa/pkg/errors"
)

// GenericFailureMessage is shown when a remote call fails without a
// server-provided message.
const GenericFailureMessage = "Couldn't reach the server, please try again."

const (
	enabledNotice  = "Two-factor authentication has been enabled"
	disabledNotice = "Two-factor authentication has been disabled"
	resentNotice   = "OTP sent, Please check your inbox!"
)

// Remote is the 2FA API as seen by the client. Implementations attach the
// caller's authorization token. A rejection that carries a server message
// must be reported as an error with code ErrCodeRemoteRejected so the message
// can be shown verbatim.
type Remote interface {
	SendVerification(ctx context.Context, method string) error
	AuthenticatorLink(ctx context.Context) (string, error)
	VerifyLoginCode(ctx context.Context, method, code string) error
	RequestEnableCode(ctx context.Context, method string) error
	VerifyEnableCode(ctx context.Context, method, code string) error
	Status(ctx context.Context) (enabled bool, methods []string, err error)
	Disable(ctx context.Context) error
}

// userMessage picks the text to surface for a failed remote call.
func userMessage(err error) string {
	if apperrors.IsCode(err, apperrors.ErrCodeRemoteRejected) {
		if msg := apperrors.Message(err); msg != "" {
			return msg
		}
	}
	return GenericFailureMessage
}
