package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pquerna/otp"
	"github.com/tendant/simple-2fa/pkg/otpsession"
)

const helpText = `Commands:
  start <method> [login|enable] [destination]   begin a flow (email, phone_number, google_authenticator)
  <6-digit code>                                 verify the code
  resend                                         request a new code
  bg | fg                                        send the app to the background or bring it back
  show                                           print the current flow state
  status                                         check whether 2FA is enabled
  disable                                        turn 2FA off
  back                                           abandon the current flow
  quit                                           exit
`

// localErrors are refused before reaching the server. Remote failures are
// reported through the observer instead.
var localErrors = []error{
	otpsession.ErrCodeNotReady,
	otpsession.ErrSubmissionPending,
	otpsession.ErrFlowCompleted,
	otpsession.ErrResendUnavailable,
	otpsession.ErrNotStarted,
	otpsession.ErrClosed,
}

// session is the interactive prompt around one Selector and at most one
// running Controller.
type session struct {
	outMu sync.Mutex
	out   io.Writer

	remote   otpsession.Remote
	opts     []otpsession.Option
	selector *otpsession.Selector
	lc       *lifecycle
	qrOut    string

	ctl *otpsession.Controller

	stateMu   sync.Mutex
	lastLabel string
	lastApp   otpsession.AppState
}

func newSession(out io.Writer, remote otpsession.Remote, qrOut string, opts ...otpsession.Option) *session {
	s := &session{
		out:    out,
		remote: remote,
		lc:     newLifecycle(),
		qrOut:  qrOut,
	}
	s.opts = append(append([]otpsession.Option{}, opts...), otpsession.WithObserver(s.observer()))
	s.selector = otpsession.NewSelector(remote, s.opts...)
	return s
}

func (s *session) printf(format string, args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *session) observer() otpsession.Observer {
	return otpsession.ObserverFuncs{
		OnStateChange:   s.stateChanged,
		OnNotice:        s.notice,
		OnSessionSignal: s.signal,
		OnNavigate:      s.navigate,
	}
}

func (s *session) notice(n otpsession.Notice) {
	if n.Level == otpsession.NoticeError {
		s.printf("! %s\n", n.Message)
		return
	}
	s.printf("* %s\n", n.Message)
}

func (s *session) signal(sig otpsession.SessionSignal) {
	s.printf("[session] %s\n", sig)
}

func (s *session) navigate(nav otpsession.Navigation) {
	s.printf("-> %s\n", nav.Outcome)
}

// stateChanged prints the countdown every 15 seconds, when it runs out and
// whenever the app returns to the foreground.
func (s *session) stateChanged(st otpsession.State) {
	label := st.CountdownLabel()

	s.stateMu.Lock()
	resumed := s.lastApp != "" && s.lastApp != st.AppState && st.AppState == otpsession.AppActive
	s.lastApp = st.AppState
	show := label != "" && label != s.lastLabel &&
		(s.lastLabel == "" || resumed || st.RemainingSeconds%15 == 0 || st.RemainingSeconds == 0)
	if show {
		s.lastLabel = label
	}
	s.stateMu.Unlock()

	if show {
		s.printf("%s\n", label)
	}
}

func (s *session) report(err error) {
	for _, local := range localErrors {
		if errors.Is(err, local) {
			s.printf("! %v\n", err)
			return
		}
	}
}

func parseFlow(flow string) (otpsession.FlowKind, error) {
	switch strings.ToLower(flow) {
	case "", "login":
		return otpsession.FlowLogin, nil
	case "enable":
		return otpsession.FlowEnable, nil
	}
	return otpsession.ParseFlowKind(flow)
}

// start runs method selection and hands off to a new Controller.
func (s *session) start(ctx context.Context, method, flow, destination string) error {
	m, err := otpsession.ParseMethod(method)
	if err != nil {
		return err
	}
	kind, err := parseFlow(flow)
	if err != nil {
		return err
	}
	s.close()

	vctx, err := s.selector.Choose(ctx, m, kind)
	if err != nil {
		s.report(err)
		return nil
	}
	vctx = vctx.WithDestination(destination)

	s.printf("%s\n%s\n", vctx.Heading(), vctx.Subtitle())
	if vctx.ShowQR() {
		s.printf("Scan this link with your authenticator app:\n  %s\n", vctx.QRPayload)
		if s.qrOut != "" {
			if err := writeQR(vctx.QRPayload, s.qrOut); err != nil {
				s.printf("! %v\n", err)
			} else {
				s.printf("QR code written to %s\n", s.qrOut)
			}
		}
	}

	s.stateMu.Lock()
	s.lastLabel = ""
	s.lastApp = ""
	s.stateMu.Unlock()

	ctl, err := otpsession.New(vctx, s.remote, s.opts...)
	if err != nil {
		return err
	}
	ctl.Attach(s.lc)
	if err := ctl.Start(ctx); err != nil {
		_ = ctl.Close()
		return err
	}
	s.ctl = ctl
	return nil
}

func (s *session) close() {
	if s.ctl != nil {
		_ = s.ctl.Close()
		s.ctl = nil
	}
}

// handle runs one line of input and reports whether the user asked to quit.
func (s *session) handle(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch strings.ToLower(fields[0]) {
	case "quit", "exit":
		return true
	case "help":
		s.printf("%s", helpText)
	case "start":
		if len(fields) < 2 {
			s.printf("usage: start <method> [login|enable] [destination]\n")
			return false
		}
		var flow, destination string
		if len(fields) > 2 {
			flow = fields[2]
		}
		if len(fields) > 3 {
			destination = fields[3]
		}
		if err := s.start(ctx, fields[1], flow, destination); err != nil {
			s.printf("! %v\n", err)
		}
	case "status":
		enabled, methods, err := s.selector.Status(ctx)
		if err != nil {
			s.report(err)
			return false
		}
		if !enabled {
			s.printf("Two-factor authentication is off\n")
			return false
		}
		s.printf("Two-factor authentication is on (%s)\n", strings.Join(methods, ", "))
	case "disable":
		if err := s.selector.Disable(ctx); err != nil {
			s.report(err)
		}
	case "bg":
		s.lc.publish(otpsession.AppBackground)
	case "fg":
		s.lc.publish(otpsession.AppActive)
	case "show":
		if s.ctl == nil {
			s.printf("! No active flow\n")
			return false
		}
		st := s.ctl.State()
		s.printf("%s (%s, %s)\n", st.Context.Heading(), st.Context.Method, st.Phase)
		if label := st.CountdownLabel(); label != "" {
			s.printf("%s\n", label)
		}
		if st.ErrorMessage != "" {
			s.printf("! %s\n", st.ErrorMessage)
		}
	case "resend":
		if s.ctl == nil {
			s.printf("! No active flow\n")
			return false
		}
		if err := s.ctl.Resend(ctx); err != nil {
			s.report(err)
		}
	case "back":
		if s.ctl == nil {
			s.printf("! No active flow\n")
			return false
		}
		_ = s.ctl.Back()
		s.ctl = nil
	default:
		s.submit(ctx, fields[0])
	}
	return false
}

func (s *session) submit(ctx context.Context, code string) {
	if s.ctl == nil {
		s.printf("! No active flow\n")
		return
	}
	if !otpsession.ValidCode(code) {
		s.ctl.ClearError()
		s.printf("Enter the 6-digit code\n")
		return
	}
	if _, err := s.ctl.Submit(ctx, code); err != nil {
		s.report(err)
		return
	}
	s.close()
}

// run reads commands from r until quit, end of input or ctx is cancelled.
func (s *session) run(ctx context.Context, r io.Reader) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		s.printf("> ")
		select {
		case <-ctx.Done():
			s.printf("\n")
			return
		case line, ok := <-lines:
			if !ok || s.handle(ctx, line) {
				return
			}
		}
	}
}

// writeQR renders the enrollment link as a PNG file.
func writeQR(link, path string) error {
	key, err := otp.NewKeyFromURL(link)
	if err != nil {
		return fmt.Errorf("failed to parse authenticator link: %w", err)
	}
	img, err := key.Image(256, 256)
	if err != nil {
		return fmt.Errorf("failed to render QR code: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to write QR code: %w", err)
	}
	return f.Close()
}
