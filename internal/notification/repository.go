package notification

import (
	"context"
	"errors"
)

// ErrNotFound indicates the notification does not exist or belongs to another account.
var ErrNotFound = errors.New("notification: not found")

// Store persists account notifications.
type Store interface {
	Add(ctx context.Context, n *Notification) error
	List(ctx context.Context, accountID string, onlyUnread bool, limit int) ([]Notification, error)
	UnreadCount(ctx context.Context, accountID string) (int64, error)
	MarkRead(ctx context.Context, accountID, id string) error
	MarkAllRead(ctx context.Context, accountID string) (int64, error)
}
