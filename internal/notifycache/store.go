// internal/notifycache/store.go
package notifycache

import (
	"sync"
	"time"

	"codepanel-client/internal/domain/notification"
)

// pageKey identifies one cached pagination window.
type pageKey struct {
	unreadOnly bool
	page       int
	size       int
}

type pageEntry struct {
	page      *notification.Page
	fetchedAt time.Time
}

// Store is the in-memory cache behind the notification views. Notification
// pages tolerate brief staleness; the unread counter is a plain optimistic
// value that authoritative fetches overwrite at will.
type Store struct {
	mu             sync.Mutex
	now            func() time.Time
	listStaleAfter time.Duration

	unread      int
	unreadKnown bool

	pages map[pageKey]pageEntry
}

func NewStore(listStaleAfter time.Duration) *Store {
	return &Store{
		now:            time.Now,
		listStaleAfter: listStaleAfter,
		pages:          make(map[pageKey]pageEntry),
	}
}

// Unread returns the cached counter and whether any value is known yet.
func (s *Store) Unread() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread, s.unreadKnown
}

// SetUnread installs a value, optimistic or authoritative alike. The last
// writer wins; callers order authoritative sets after optimistic ones.
func (s *Store) SetUnread(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if count < 0 {
		count = 0
	}
	s.unread = count
	s.unreadKnown = true
}

// AddUnread applies an optimistic delta, floored at zero.
func (s *Store) AddUnread(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread += delta
	if s.unread < 0 {
		s.unread = 0
	}
	s.unreadKnown = true
}

// Page returns a cached pagination window if it is still fresh.
func (s *Store) Page(unreadOnly bool, page, size int) (*notification.Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.pages[pageKey{unreadOnly, page, size}]
	if !ok {
		return nil, false
	}
	if s.now().Sub(entry.fetchedAt) > s.listStaleAfter {
		return nil, false
	}
	return entry.page, true
}

// SetPage caches a freshly fetched pagination window.
func (s *Store) SetPage(unreadOnly bool, page, size int, p *notification.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[pageKey{unreadOnly, page, size}] = pageEntry{page: p, fetchedAt: s.now()}
}

// InvalidateLists drops every cached pagination window so the next read
// fetches from the server.
func (s *Store) InvalidateLists() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = make(map[pageKey]pageEntry)
}
