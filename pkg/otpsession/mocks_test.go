package otpsession

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
)

type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) SendVerification(ctx context.Context, method string) error {
	args := m.Called(ctx, method)
	return args.Error(0)
}

func (m *mockRemote) AuthenticatorLink(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockRemote) VerifyLoginCode(ctx context.Context, method, code string) error {
	args := m.Called(ctx, method, code)
	return args.Error(0)
}

func (m *mockRemote) RequestEnableCode(ctx context.Context, method string) error {
	args := m.Called(ctx, method)
	return args.Error(0)
}

func (m *mockRemote) VerifyEnableCode(ctx context.Context, method, code string) error {
	args := m.Called(ctx, method, code)
	return args.Error(0)
}

func (m *mockRemote) Status(ctx context.Context) (bool, []string, error) {
	args := m.Called(ctx)
	methods, _ := args.Get(1).([]string)
	return args.Bool(0), methods, args.Error(2)
}

func (m *mockRemote) Disable(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// recorder captures observer output.
type recorder struct {
	mu          sync.Mutex
	states      []State
	notices     []Notice
	signals     []SessionSignal
	navigations []Navigation
}

func (r *recorder) StateChanged(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recorder) SessionChanged(s SessionSignal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, s)
}

func (r *recorder) Navigate(n Navigation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.navigations = append(r.navigations, n)
}

func (r *recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

func (r *recorder) Signals() []SessionSignal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SessionSignal(nil), r.signals...)
}

func (r *recorder) Navigations() []Navigation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Navigation(nil), r.navigations...)
}

// fakeLifecycle is a LifecycleSource driven by the test.
type fakeLifecycle struct {
	mu   sync.Mutex
	subs map[int]func(AppState)
	next int
}

func newFakeLifecycle() *fakeLifecycle {
	return &fakeLifecycle{subs: make(map[int]func(AppState))}
}

func (f *fakeLifecycle) Subscribe(fn func(AppState)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

func (f *fakeLifecycle) Emit(s AppState) {
	f.mu.Lock()
	subs := make([]func(AppState), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
}

func (f *fakeLifecycle) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
