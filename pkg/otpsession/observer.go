package otpsession

// Observer receives controller output. Callbacks run outside the
// controller's lock, on the goroutine that caused the change.
type Observer interface {
	StateChanged(State)
	Notify(Notice)
	SessionChanged(SessionSignal)
	Navigate(Navigation)
}

// NoopObserver discards everything.
type NoopObserver struct{}

func (NoopObserver) StateChanged(State)           {}
func (NoopObserver) Notify(Notice)                {}
func (NoopObserver) SessionChanged(SessionSignal) {}
func (NoopObserver) Navigate(Navigation)          {}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnStateChange   func(State)
	OnNotice        func(Notice)
	OnSessionSignal func(SessionSignal)
	OnNavigate      func(Navigation)
}

func (f ObserverFuncs) StateChanged(s State) {
	if f.OnStateChange != nil {
		f.OnStateChange(s)
	}
}

func (f ObserverFuncs) Notify(n Notice) {
	if f.OnNotice != nil {
		f.OnNotice(n)
	}
}

func (f ObserverFuncs) SessionChanged(s SessionSignal) {
	if f.OnSessionSignal != nil {
		f.OnSessionSignal(s)
	}
}

func (f ObserverFuncs) Navigate(n Navigation) {
	if f.OnNavigate != nil {
		f.OnNavigate(n)
	}
}
