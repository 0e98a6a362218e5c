package scheduler

import "github.com/jdziat/redis-scheduler/pkg/core"

// Events returns a channel for receiving scheduler events.
// The caller must call Unsubscribe when done to prevent resource leaks.
func (s *Scheduler) Events() <-chan core.Event {
	ch := make(chan core.Event, 100)
	s.subsMu.Lock()
	s.eventSubs = append(s.eventSubs, ch)
	s.subsMu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel created by Events().
// The channel is not closed; after Unsubscribe returns no further events
// are sent to it.
func (s *Scheduler) Unsubscribe(ch <-chan core.Event) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for i, sub := range s.eventSubs {
		if sub == ch {
			s.eventSubs = append(s.eventSubs[:i], s.eventSubs[i+1:]...)
			return
		}
	}
}

func (s *Scheduler) emit(e core.Event) {
	s.subsMu.RLock()
	subs := make([]chan core.Event, len(s.eventSubs))
	copy(subs, s.eventSubs)
	s.subsMu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
			// Drop if full so a slow consumer never blocks polling
		}
	}
}
