// Package notify holds the client-side notification buffer.
package notify

import "github.com/nhle/orderbell/internal/model"

// Store buffers received order notifications for one session.
//
// Entries are kept in arrival order internally and exposed newest-first.
// The unread counter is maintained incrementally and always equals the
// number of entries with Read == false.
//
// A Store is not safe for concurrent use; it belongs to the UI update loop.
type Store struct {
	entries []model.Notification
	index   map[string]int
	unread  int
}

// New returns an empty Store.
func New() *Store {
	return &Store{index: make(map[string]int)}
}

// Ingest adds ev as an unread notification. It returns false, leaving the
// store untouched, when an entry with the same key already exists.
func (s *Store) Ingest(ev model.OrderEvent) bool {
	key := ev.Key()
	if _, ok := s.index[key]; ok {
		return false
	}
	ev.ID = key

	s.index[key] = len(s.entries)
	s.entries = append(s.entries, model.Notification{OrderEvent: ev})
	s.unread++
	return true
}

// MarkAsRead flips a single entry to read. It returns true only when the
// entry existed and was unread.
func (s *Store) MarkAsRead(id string) bool {
	i, ok := s.index[id]
	if !ok || s.entries[i].Read {
		return false
	}
	s.entries[i].Read = true
	s.unread = max(s.unread-1, 0)
	return true
}

// MarkAllAsRead flips every entry to read.
func (s *Store) MarkAllAsRead() {
	for i := range s.entries {
		s.entries[i].Read = true
	}
	s.unread = 0
}

// ClearAll removes every entry.
func (s *Store) ClearAll() {
	s.entries = nil
	s.index = make(map[string]int)
	s.unread = 0
}

// Items returns a newest-first copy of the buffered notifications.
func (s *Store) Items() []model.Notification {
	out := make([]model.Notification, len(s.entries))
	for i, n := range s.entries {
		out[len(s.entries)-1-i] = n
	}
	return out
}

// Get returns the entry with the given id.
func (s *Store) Get(id string) (model.Notification, bool) {
	i, ok := s.index[id]
	if !ok {
		return model.Notification{}, false
	}
	return s.entries[i], true
}

// UnreadCount returns the tracked unread counter.
func (s *Store) UnreadCount() int { return s.unread }

// Len returns the number of buffered entries.
func (s *Store) Len() int { return len(s.entries) }

// CountUnread recomputes the unread count by scanning every entry.
func (s *Store) CountUnread() int {
	n := 0
	for _, e := range s.entries {
		if !e.Read {
			n++
		}
	}
	return n
}
