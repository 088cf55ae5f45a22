package otpsession

import (
	"fmt"
	"time"
)

// Method is a 2FA delivery channel.
type Method string

const (
	MethodPhoneNumber   Method = "phone_number"
	MethodEmail         Method = "email"
	MethodAuthenticator Method = "google_authenticator"
)

// ParseMethod validates s as a Method.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodPhoneNumber, MethodEmail, MethodAuthenticator:
		return m, nil
	default:
		return "", fmt.Errorf("invalid 2FA method: %s, must be one of: %s, %s, %s",
			s, MethodPhoneNumber, MethodEmail, MethodAuthenticator)
	}
}

// Delivered reports whether codes for this method are sent to the user and
// therefore expire on the countdown. Authenticator codes are generated locally
// by the user's app.
func (m Method) Delivered() bool {
	return m == MethodPhoneNumber || m == MethodEmail
}

// FlowKind tells whether a flow verifies a login or enables 2FA.
type FlowKind string

const (
	FlowLogin  FlowKind = "login-verification"
	FlowEnable FlowKind = "enable-verification"
)

// ParseFlowKind validates s as a FlowKind.
func ParseFlowKind(s string) (FlowKind, error) {
	switch k := FlowKind(s); k {
	case FlowLogin, FlowEnable:
		return k, nil
	default:
		return "", fmt.Errorf("invalid flow kind: %s, must be one of: %s, %s", s, FlowLogin, FlowEnable)
	}
}

// VerificationContext describes one verification flow. It is immutable for
// the lifetime of the flow.
type VerificationContext struct {
	Method   Method
	FlowKind FlowKind
	// QRPayload is the authenticator enrollment link; only set for
	// MethodAuthenticator during enablement.
	QRPayload string
	// Destination is the address the code was delivered to, for display.
	Destination string
	// Account scopes stored issue times to one signed-in user.
	Account string
}

// Validate checks the method, the flow kind and the QR payload rule.
func (v VerificationContext) Validate() error {
	if _, err := ParseMethod(string(v.Method)); err != nil {
		return err
	}
	if _, err := ParseFlowKind(string(v.FlowKind)); err != nil {
		return err
	}
	if v.QRPayload != "" && v.Method != MethodAuthenticator {
		return fmt.Errorf("qr payload is only valid for %s", MethodAuthenticator)
	}
	if v.QRPayload != "" && v.FlowKind != FlowEnable {
		return fmt.Errorf("qr payload is only valid for %s", FlowEnable)
	}
	return nil
}

// WithDestination returns a copy of v carrying the display destination.
func (v VerificationContext) WithDestination(destination string) VerificationContext {
	v.Destination = destination
	return v
}

// Key identifies the flow in an IssuedAtStore. Flows of different accounts
// never share a key.
func (v VerificationContext) Key() string {
	key := string(v.Method) + ":" + string(v.FlowKind)
	if v.Account != "" {
		return v.Account + "/" + key
	}
	return key
}

// HasCountdown reports whether the flow shows a countdown and a resend
// affordance.
func (v VerificationContext) HasCountdown() bool {
	return v.Method.Delivered()
}

// ShowQR reports whether an enrollment QR code should be displayed.
func (v VerificationContext) ShowQR() bool {
	return v.Method == MethodAuthenticator && v.FlowKind == FlowEnable && v.QRPayload != ""
}

func (v VerificationContext) Heading() string {
	if v.FlowKind == FlowEnable {
		return "Enter Authentication Code"
	}
	return "Enter Verification Code"
}

func (v VerificationContext) Subtitle() string {
	switch v.Method {
	case MethodAuthenticator:
		return "Enter 6-digit verification code from your google authenticator"
	case MethodPhoneNumber:
		return "Enter 6-digit verification code we've sent to your phone number " + v.Destination
	default:
		return "Enter 6-digit verification code we've sent to your email id " + v.Destination
	}
}

// SubmissionStatus is the lifecycle of one remote submission.
type SubmissionStatus string

const (
	StatusIdle      SubmissionStatus = "idle"
	StatusPending   SubmissionStatus = "pending"
	StatusSucceeded SubmissionStatus = "succeeded"
	StatusFailed    SubmissionStatus = "failed"
)

// SubmissionState tracks a single remote operation. Reason is set for
// StatusFailed.
type SubmissionState struct {
	Status SubmissionStatus
	Reason string
}

func (s SubmissionState) Pending() bool {
	return s.Status == StatusPending
}

func idle() SubmissionState { return SubmissionState{Status: StatusIdle} }
func pending() SubmissionState { return SubmissionState{Status: StatusPending} }
func succeeded() SubmissionState { return SubmissionState{Status: StatusSucceeded} }
func failed(reason string) SubmissionState { return SubmissionState{Status: StatusFailed, Reason: reason} }

// Operation names a remote operation.
type Operation string

const (
	OpSendVerification  Operation = "send_verification"
	OpAuthenticatorLink Operation = "authenticator_link"
	OpVerifyLogin       Operation = "verify_login"
	OpRequestEnable     Operation = "request_enable"
	OpVerifyEnable      Operation = "verify_enable"
	OpCheckStatus       Operation = "check_status"
	OpDisable           Operation = "disable"
)

// Phase is the controller state machine position.
type Phase string

const (
	PhaseAwaitingCode Phase = "awaiting_code"
	PhaseVerifying    Phase = "verifying"
	PhaseTerminal     Phase = "terminal"
)

// AppState is the host application's lifecycle state.
type AppState string

const (
	AppActive     AppState = "active"
	AppInactive   AppState = "inactive"
	AppBackground AppState = "background"
)

func (s AppState) away() bool {
	return s == AppInactive || s == AppBackground
}

// Outcome is the navigation result handed back to the caller.
type Outcome string

const (
	OutcomeLoginSuccess  Outcome = "login-success"
	OutcomeEnableSuccess Outcome = "enable-success"
	OutcomeNavigateBack  Outcome = "navigate-back"
)

// SessionSignal is consumed by the outer authentication session layer.
type SessionSignal string

const (
	LoginEstablished    SessionSignal = "login established"
	LoginNotEstablished SessionSignal = "login not established"
)

// NoticeLevel classifies a transient user notice.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is a transient message for the user (a toast).
type Notice struct {
	Level   NoticeLevel
	Message string
}

// Navigation is the handoff to the caller when the flow ends.
type Navigation struct {
	Outcome Outcome
	Notice  string
}

// State is a snapshot of the controller's observable state.
type State struct {
	Context          VerificationContext
	Phase            Phase
	AppState         AppState
	RemainingSeconds int
	IssuedAt         time.Time
	Verify           SubmissionState
	Resend           SubmissionState
	ErrorMessage     string
}

// ShowCountdown reports whether the "Code expires in" label is visible.
func (s State) ShowCountdown() bool {
	return s.Context.HasCountdown() && s.RemainingSeconds > 0
}

// ResendAvailable reports whether the "Resend Code" affordance is visible.
func (s State) ResendAvailable() bool {
	return s.Context.HasCountdown() && s.RemainingSeconds == 0
}

// CountdownLabel renders the countdown text, or the resend prompt once the
// window is over. It is empty for flows without a countdown.
func (s State) CountdownLabel() string {
	switch {
	case s.ShowCountdown():
		return fmt.Sprintf("Code expires in 00 : %02d", s.RemainingSeconds)
	case s.ResendAvailable():
		return "Didn't receive code? Resend Code"
	default:
		return ""
	}
}
