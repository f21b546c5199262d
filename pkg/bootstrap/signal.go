package bootstrap

import "sync"

// signal is a one-shot release. A new signal is armed for every session so
// that a release from an earlier session cannot satisfy a later wait.
type signal struct {
	done chan struct{}
	once sync.Once
}

func newSignal() *signal {
	return &signal{done: make(chan struct{})}
}

// release wakes every waiter. Safe to call any number of times.
func (s *signal) release() {
	s.once.Do(func() { close(s.done) })
}

func (s *signal) released() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
