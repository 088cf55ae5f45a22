package main

import (
	"sync"

	"github.com/tendant/simple-2fa/pkg/otpsession"
)

// lifecycle fans app state changes typed at the prompt out to subscribers.
type lifecycle struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(otpsession.AppState)
}

func newLifecycle() *lifecycle {
	return &lifecycle{subs: make(map[int]func(otpsession.AppState))}
}

func (l *lifecycle) Subscribe(fn func(otpsession.AppState)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextID
	l.nextID++
	l.subs[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.subs, id)
	}
}

func (l *lifecycle) publish(state otpsession.AppState) {
	l.mu.Lock()
	fns := make([]func(otpsession.AppState), 0, len(l.subs))
	for _, fn := range l.subs {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

func (l *lifecycle) subscribers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}
