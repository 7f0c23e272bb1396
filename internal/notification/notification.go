package notification

import (
	"time"

	"github.com/google/uuid"
)

// Notification kinds recorded against an account.
const (
	KindTransactionSuccess = "TRANSACTION_SUCCESS"
	KindTransactionFailed  = "TRANSACTION_FAILED"
	KindDepositReceived    = "DEPOSIT_RECEIVED"
	KindWithdrawalSuccess  = "WITHDRAWAL_SUCCESS"
	KindWithdrawalFailed   = "WITHDRAWAL_FAILED"
	KindWithdrawalReversed = "WITHDRAWAL_REVERSED"
	KindDVACreated         = "DVA_CREATED"
	KindBalanceLow         = "BALANCE_LOW"
	KindTransferPending    = "TRANSFER_PENDING"
	KindOther              = "OTHER"
)

// Notification is one entry in an account's activity feed.
type Notification struct {
	ID                   string         `json:"id"`
	AccountID            string         `json:"-"`
	Kind                 string         `json:"notification_type"`
	Title                string         `json:"title"`
	Message              string         `json:"message"`
	RelatedTransactionID string         `json:"related_transaction_id,omitempty"`
	Metadata             map[string]any `json:"metadata,omitempty"`
	Read                 bool           `json:"is_read"`
	CreatedAt            time.Time      `json:"created_at"`
}

// New builds a notification with a fresh id ready for storage.
func New(accountID, kind, title, message string) *Notification {
	return &Notification{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Kind:      kind,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}
