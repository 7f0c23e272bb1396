package notification

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the minimal query surface the store needs. Both *pgxpool.Pool and
// pgx.Tx satisfy it, so callers can run notification writes inside their own
// transaction boundary.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists notifications in PostgreSQL.
type PostgresStore struct {
	db DB
}

// NewPostgresStore builds a store on the provided pool or transaction.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Add inserts the notification.
func (s *PostgresStore) Add(ctx context.Context, n *Notification) error {
	const query = `
        INSERT INTO notifications (id, account_id, kind, title, message, related_transaction_id, metadata, is_read, created_at)
        VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)`

	_, err := s.db.Exec(ctx, query,
		n.ID, n.AccountID, n.Kind, n.Title, n.Message,
		n.RelatedTransactionID, n.Metadata, n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// List returns the newest notifications for the account.
func (s *PostgresStore) List(ctx context.Context, accountID string, onlyUnread bool, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
        SELECT id, account_id, kind, title, message, COALESCE(related_transaction_id, ''), metadata, is_read, created_at
        FROM notifications
        WHERE account_id = $1`
	if onlyUnread {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC LIMIT $2`

	rows, err := s.db.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var items []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.AccountID, &n.Kind, &n.Title, &n.Message,
			&n.RelatedTransactionID, &n.Metadata, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

// UnreadCount reports how many notifications are still unread.
func (s *PostgresStore) UnreadCount(ctx context.Context, accountID string) (int64, error) {
	const query = `SELECT COUNT(*) FROM notifications WHERE account_id = $1 AND is_read = FALSE`

	var count int64
	if err := s.db.QueryRow(ctx, query, accountID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead flags a single notification as read.
func (s *PostgresStore) MarkRead(ctx context.Context, accountID, id string) error {
	const query = `UPDATE notifications SET is_read = TRUE WHERE account_id = $1 AND id = $2`

	tag, err := s.db.Exec(ctx, query, accountID, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead flags every unread notification as read and returns how many changed.
func (s *PostgresStore) MarkAllRead(ctx context.Context, accountID string) (int64, error) {
	const query = `UPDATE notifications SET is_read = TRUE WHERE account_id = $1 AND is_read = FALSE`

	tag, err := s.db.Exec(ctx, query, accountID)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ Store = (*PostgresStore)(nil)
