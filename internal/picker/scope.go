package picker

import (
	"sync"

	"go.uber.org/multierr"
)

// scope owns every listener and injected node of a session. Each release
// runs at most once, whether early or from Close.
type scope struct {
	mu       sync.Mutex
	releases []func() error
	closed   bool
}

func (s *scope) add(fn func() error) func() error {
	var (
		once sync.Once
		err  error
	)
	release := func() error {
		once.Do(func() { err = fn() })
		return err
	}

	s.mu.Lock()
	closed := s.closed
	if !closed {
		s.releases = append(s.releases, release)
	}
	s.mu.Unlock()

	if closed {
		_ = release()
	}

	return release
}

func (s *scope) addFunc(fn func()) func() {
	release := s.add(func() error {
		fn()
		return nil
	})

	return func() { _ = release() }
}

// Close releases in reverse acquisition order.
func (s *scope) Close() error {
	s.mu.Lock()
	releases := s.releases
	s.releases = nil
	s.closed = true
	s.mu.Unlock()

	var err error
	for i := len(releases) - 1; i >= 0; i-- {
		err = multierr.Append(err, releases[i]())
	}

	return err
}
