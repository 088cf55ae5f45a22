package main

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-2fa/pkg/clock"
	apperrors "github.com/tendant/simple-2fa/pkg/errors"
	"github.com/tendant/simple-2fa/pkg/otpsession"
)

const authenticatorLink = "otpauth://totp/simple-2fa:jane@example.com?algorithm=SHA1&digits=6&issuer=simple-2fa&period=30&secret=JBSWY3DPEHPK3PXP"

type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) SendVerification(ctx context.Context, method string) error {
	return m.Called(method).Error(0)
}

func (m *mockRemote) AuthenticatorLink(ctx context.Context) (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *mockRemote) VerifyLoginCode(ctx context.Context, method, code string) error {
	return m.Called(method, code).Error(0)
}

func (m *mockRemote) RequestEnableCode(ctx context.Context, method string) error {
	return m.Called(method).Error(0)
}

func (m *mockRemote) VerifyEnableCode(ctx context.Context, method, code string) error {
	return m.Called(method, code).Error(0)
}

func (m *mockRemote) Status(ctx context.Context) (bool, []string, error) {
	args := m.Called()
	methods, _ := args.Get(1).([]string)
	return args.Bool(0), methods, args.Error(2)
}

func (m *mockRemote) Disable(ctx context.Context) error {
	return m.Called().Error(0)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// Drain returns what was written since the last call.
func (b *syncBuffer) Drain() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.buf.String()
	b.buf.Reset()
	return s
}

func newTestSession(t *testing.T, remote otpsession.Remote, qrOut string) (*session, *syncBuffer, *clock.Manual) {
	t.Helper()
	out := &syncBuffer{}
	clk := clock.NewManual(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	s := newSession(out, remote, qrOut,
		otpsession.WithClock(clk),
		otpsession.WithTickInterval(time.Hour))
	t.Cleanup(s.close)
	return s, out, clk
}

func rejected(msg string) error {
	return apperrors.New(apperrors.ErrCodeRemoteRejected, msg)
}

func TestLoginFlow(t *testing.T) {
	remote := &mockRemote{}
	remote.On("SendVerification", "email").Return(nil)
	remote.On("VerifyLoginCode", "email", "000000").Return(rejected("Invalid code")).Once()
	remote.On("VerifyLoginCode", "email", "123456").Return(nil).Once()

	s, out, _ := newTestSession(t, remote, "")
	ctx := context.Background()

	assert.False(t, s.handle(ctx, "start email login jane@example.com"))
	got := out.Drain()
	assert.Contains(t, got, "Enter Verification Code")
	assert.Contains(t, got, "jane@example.com")
	assert.Contains(t, got, "Code expires in 00 : 59")

	s.handle(ctx, "12")
	assert.Contains(t, out.Drain(), "Enter the 6-digit code")
	remote.AssertNotCalled(t, "VerifyLoginCode", "email", "12")

	s.handle(ctx, "000000")
	got = out.Drain()
	assert.Contains(t, got, "! Invalid code")
	assert.Contains(t, got, "[session] login not established")
	require.NotNil(t, s.ctl)
	assert.Equal(t, 59, s.ctl.State().RemainingSeconds)

	s.handle(ctx, "123456")
	got = out.Drain()
	assert.Contains(t, got, "[session] login established")
	assert.Contains(t, got, "-> login-success")
	assert.Nil(t, s.ctl)
	assert.Equal(t, 0, s.lc.subscribers())

	remote.AssertExpectations(t)
}

func TestBackgroundResync(t *testing.T) {
	remote := &mockRemote{}
	remote.On("SendVerification", "phone_number").Return(nil)

	s, out, clk := newTestSession(t, remote, "")
	ctx := context.Background()

	require.NoError(t, s.start(ctx, "phone_number", "login", "+15551234567"))
	out.Drain()

	s.handle(ctx, "bg")
	clk.Advance(50 * time.Second)
	s.handle(ctx, "fg")
	assert.Contains(t, out.Drain(), "Code expires in 00 : 09")

	clk.Advance(30 * time.Second)
	s.handle(ctx, "bg")
	s.handle(ctx, "fg")
	assert.Contains(t, out.Drain(), "Didn't receive code? Resend Code")

	s.handle(ctx, "resend")
	got := out.Drain()
	assert.Contains(t, got, "OTP sent, Please check your inbox!")
	assert.Equal(t, 59, s.ctl.State().RemainingSeconds)
	remote.AssertNumberOfCalls(t, "SendVerification", 2)
}

func TestEnableWithAuthenticator(t *testing.T) {
	remote := &mockRemote{}
	remote.On("AuthenticatorLink").Return(authenticatorLink, nil)
	remote.On("VerifyEnableCode", "google_authenticator", "654321").Return(nil)

	qrOut := filepath.Join(t.TempDir(), "qr.png")
	s, out, _ := newTestSession(t, remote, qrOut)
	ctx := context.Background()

	s.handle(ctx, "start google_authenticator enable")
	got := out.Drain()
	assert.Contains(t, got, "Enter Authentication Code")
	assert.Contains(t, got, authenticatorLink)
	assert.Contains(t, got, "QR code written to "+qrOut)
	assert.NotContains(t, got, "Code expires in")

	f, err := os.Open(qrOut)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())

	s.handle(ctx, "resend")
	assert.Contains(t, out.Drain(), otpsession.ErrResendUnavailable.Error())

	s.handle(ctx, "654321")
	got = out.Drain()
	assert.Contains(t, got, "* Two-factor authentication has been enabled")
	assert.Contains(t, got, "-> enable-success")
}

func TestStatusAndDisable(t *testing.T) {
	remote := &mockRemote{}
	remote.On("Status").Return(true, []string{"email", "google_authenticator"}, nil).Once()
	remote.On("Disable").Return(nil).Once()
	remote.On("Status").Return(false, []string{}, nil).Once()
	remote.On("Disable").Return(rejected("Two-factor authentication is not enabled")).Once()

	s, out, _ := newTestSession(t, remote, "")
	ctx := context.Background()

	s.handle(ctx, "status")
	assert.Contains(t, out.Drain(), "Two-factor authentication is on (email, google_authenticator)")

	s.handle(ctx, "disable")
	assert.Contains(t, out.Drain(), "* Two-factor authentication has been disabled")

	s.handle(ctx, "status")
	assert.Contains(t, out.Drain(), "Two-factor authentication is off")

	s.handle(ctx, "disable")
	assert.Contains(t, out.Drain(), "! Two-factor authentication is not enabled")
	assert.Equal(t, otpsession.StatusFailed, s.selector.State(otpsession.OpDisable).Status)
}

func TestCommandErrors(t *testing.T) {
	remote := &mockRemote{}
	remote.On("SendVerification", "email").Return(apperrors.New(apperrors.ErrCodeRemoteUnreachable, "dial tcp: refused"))

	s, out, _ := newTestSession(t, remote, "")
	ctx := context.Background()

	s.handle(ctx, "123456")
	assert.Contains(t, out.Drain(), "No active flow")

	s.handle(ctx, "start sms")
	assert.Contains(t, out.Drain(), "invalid 2FA method")

	s.handle(ctx, "start email")
	assert.Contains(t, out.Drain(), "! "+otpsession.GenericFailureMessage)
	assert.Nil(t, s.ctl)

	assert.True(t, s.handle(ctx, "quit"))
}

func TestRun(t *testing.T) {
	remote := &mockRemote{}
	remote.On("Status").Return(false, []string{}, nil)

	s, out, _ := newTestSession(t, remote, "")
	s.run(context.Background(), strings.NewReader("help\nstatus\nquit\nstatus\n"))

	got := out.Drain()
	assert.Contains(t, got, "Commands:")
	assert.Contains(t, got, "Two-factor authentication is off")
	remote.AssertNumberOfCalls(t, "Status", 1)
}
