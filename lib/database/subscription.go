package database

import "sync"

// Subscription is a stream of results of a persistent listener.
// Results are buffered, so a slow reader never blocks the backend.
type Subscription struct {
	mu     sync.Mutex
	queue  []Result[DatabaseResponse]
	final  bool // a failure was pushed, nothing follows
	handle Handle

	wake    chan struct{}
	done    chan struct{}
	results chan Result[DatabaseResponse]
	once    sync.Once
}

func newSubscription() *Subscription {
	s := &Subscription{
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		results: make(chan Result[DatabaseResponse]),
	}
	go s.run()
	return s
}

// Results returns the stream. It is closed after a failure was delivered or the subscription was cancelled.
func (s *Subscription) Results() <-chan Result[DatabaseResponse] {
	return s.results
}

// Cancel stops the listener and closes the stream. Results not yet received are dropped.
// Calling Cancel more than once has no effect.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		h := s.handle
		s.mu.Unlock()
		if h != nil {
			h.Cancel()
		}
	})
}

func (s *Subscription) setHandle(h Handle) {
	s.mu.Lock()
	s.handle = h
	s.mu.Unlock()
}

func (s *Subscription) push(r Result[DatabaseResponse]) {
	s.mu.Lock()
	if s.final {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, r)
	s.final = !r.IsSuccess()
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run is the only sender on results and the only goroutine that closes it.
func (s *Subscription) run() {
	defer close(s.results)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			final := s.final
			s.mu.Unlock()
			if final {
				return
			}
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		r := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.results <- r:
		case <-s.done:
			return
		}
	}
}
