package otpsession

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMethod(t *testing.T) {
	for _, s := range []string{"phone_number", "email", "google_authenticator"} {
		m, err := ParseMethod(s)
		assert.NoError(t, err)
		assert.Equal(t, Method(s), m)
	}
	_, err := ParseMethod("sms")
	assert.Error(t, err)
}

func TestVerificationContextText(t *testing.T) {
	assert.Equal(t, "Enter Authentication Code", emailEnable.Heading())
	assert.Equal(t, "Enter Verification Code", emailLogin.Heading())
	assert.Equal(t, "Enter 6-digit verification code we've sent to your email id jane@example.com", emailLogin.Subtitle())
	assert.Equal(t, "Enter 6-digit verification code from your google authenticator", authLogin.Subtitle())
	assert.Equal(t, "email:login-verification", emailLogin.Key())
}

func TestVerificationContextQR(t *testing.T) {
	link := "otpauth://totp/simple-2fa:jane?secret=JBSWY3DPEHPK3PXP"

	enable := VerificationContext{Method: MethodAuthenticator, FlowKind: FlowEnable, QRPayload: link}
	assert.NoError(t, enable.Validate())
	assert.True(t, enable.ShowQR())

	login := VerificationContext{Method: MethodAuthenticator, FlowKind: FlowLogin, QRPayload: link}
	assert.Error(t, login.Validate())
	assert.False(t, login.ShowQR())
}

func TestVerificationContextKey(t *testing.T) {
	assert.Equal(t, "email:login-verification", emailLogin.Key())

	scoped := emailLogin
	scoped.Account = "jane"
	assert.Equal(t, "jane/email:login-verification", scoped.Key())
	assert.NotEqual(t, emailLogin.Key(), scoped.Key())
}

func TestCountdownLabel(t *testing.T) {
	s := State{Context: emailLogin, RemainingSeconds: 7}
	assert.Equal(t, "Code expires in 00 : 07", s.CountdownLabel())

	s.RemainingSeconds = 0
	assert.Equal(t, "Didn't receive code? Resend Code", s.CountdownLabel())

	s.Context = authLogin
	assert.Empty(t, s.CountdownLabel())
}
