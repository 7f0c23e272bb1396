package notification

import (
	"context"
	"sync"
)

// MemoryStore keeps notifications in process memory. It backs tests and the
// degraded no-database mode.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string][]*Notification
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string][]*Notification)}
}

// Add records the notification.
func (s *MemoryStore) Add(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *n
	s.items[n.AccountID] = append(s.items[n.AccountID], &copied)
	return nil
}

// List returns the newest notifications for the account.
func (s *MemoryStore) List(_ context.Context, accountID string, onlyUnread bool, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.items[accountID]
	out := make([]Notification, 0, limit)
	for i := len(stored) - 1; i >= 0 && len(out) < limit; i-- {
		if onlyUnread && stored[i].Read {
			continue
		}
		out = append(out, *stored[i])
	}
	return out, nil
}

// UnreadCount reports how many notifications are still unread.
func (s *MemoryStore) UnreadCount(_ context.Context, accountID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, n := range s.items[accountID] {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

// MarkRead flags a single notification as read.
func (s *MemoryStore) MarkRead(_ context.Context, accountID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.items[accountID] {
		if n.ID == id {
			n.Read = true
			return nil
		}
	}
	return ErrNotFound
}

// MarkAllRead flags every unread notification as read.
func (s *MemoryStore) MarkAllRead(_ context.Context, accountID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed int64
	for _, n := range s.items[accountID] {
		if !n.Read {
			n.Read = true
			changed++
		}
	}
	return changed, nil
}

var _ Store = (*MemoryStore)(nil)
