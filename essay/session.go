package essay

import "sync"

// Session 持有"当前正在阅读的文章"，只有一个槽位，后写覆盖先写。
// 由调用方构造并注入，不使用包级全局变量。
type Session struct {
	mu      sync.RWMutex
	current *Essay
	version uint64

	nextTicket uint64
	accepted   uint64
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{}
}

// Set replaces the held essay unconditionally. nil clears the slot.
func (s *Session) Set(e *Essay) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(e)
}

func (s *Session) setLocked(e *Essay) {
	s.version++
	if e == nil {
		s.current = nil
		return
	}
	cp := *e
	s.current = &cp
}

// Current returns the held essay, if any. It never blocks on I/O.
func (s *Session) Current() (Essay, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Essay{}, false
	}
	return *s.current, true
}

// Snapshot returns the held essay together with the version it was read at.
// The version changes on every Set, so callers can detect that a different
// essay became current while they were waiting on the network.
func (s *Session) Snapshot() (Essay, uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Essay{}, s.version, false
	}
	return *s.current, s.version, true
}

// Amend applies fn to the held essay only if it is still the one observed at version.
// Amendments do not bump the version: they refine the same essay (ID, favorite flag).
func (s *Session) Amend(version uint64, fn func(*Essay)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.version != version {
		return false
	}
	fn(s.current)
	return true
}

// Ticket reserves a sequence number for a generation request about to be issued.
func (s *Session) Ticket() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTicket++
	return s.nextTicket
}

// Offer stores e if ticket is newer than every ticket already accepted.
// Responses that arrive out of order are discarded and Offer returns false.
func (s *Session) Offer(ticket uint64, e Essay) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket <= s.accepted {
		return false
	}
	s.accepted = ticket
	s.setLocked(&e)
	return true
}
