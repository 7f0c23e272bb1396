package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vortex-hue/Xcellar-RestAPI/internal/ledger"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/notification"
)

const uniqueViolationCode = "23505"

// dbtx is the execution surface shared by *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists transactions in PostgreSQL. Composite methods open a
// database transaction and run the ledger and notification writes through it,
// so each method is one all-or-nothing boundary.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds the store on a connection pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const transactionColumns = `id, account_id, type, status, method, amount::text, fee::text, net_amount::text,
        reference, COALESCE(gateway_tx_id, ''), COALESCE(gateway_reference, ''), COALESCE(description, ''),
        metadata, created_at, completed_at`

// Create inserts the transaction as-is.
func (s *PostgresStore) Create(ctx context.Context, t *Transaction) error {
	return insertTransaction(ctx, s.db, t)
}

// CreateWithdrawal debits the ledger and inserts the PENDING withdrawal in one
// boundary. The guarded debit is the only balance check.
func (s *PostgresStore) CreateWithdrawal(ctx context.Context, t *Transaction) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := ledger.NewPostgresLedger(tx).Debit(ctx, t.AccountID, t.Amount); err != nil {
		return err
	}
	if err := insertTransaction(ctx, tx, t); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ByReference fetches a transaction by its caller reference.
func (s *PostgresStore) ByReference(ctx context.Context, reference string) (Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1`

	t, err := scanTransaction(s.db.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, fmt.Errorf("find transaction: %w", err)
	}
	return t, nil
}

// List returns the account's transaction history, newest first.
func (s *PostgresStore) List(ctx context.Context, accountID string, f Filter) ([]Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE account_id = $1`
	args := []any{accountID}

	if f.Type != "" {
		args = append(args, f.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Method != "" {
		args = append(args, f.Method)
		query += fmt.Sprintf(" AND method = $%d", len(args))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var items []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

// SettleCharge records an inbound charge exactly once, keyed by gateway
// reference. The unique reference constraint is the real idempotency guard;
// the lookup only keeps the common path cheap.
func (s *PostgresStore) SettleCharge(ctx context.Context, ev ChargeEvent) (Transaction, bool, error) {
	if existing, err := s.byGatewayReference(ctx, ev.Reference); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Transaction{}, false, err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, false, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	now := time.Now().UTC()
	method := MethodBankTransfer
	if ev.Channel == "dedicated_nuban" {
		method = MethodDVA
	}
	t := &Transaction{
		ID:               uuid.NewString(),
		AccountID:        ev.AccountID,
		Type:             TypeDeposit,
		Status:           StatusSuccess,
		Method:           method,
		Amount:           ev.Amount,
		Reference:        ev.Reference,
		GatewayTxID:      ev.GatewayID,
		GatewayReference: ev.Reference,
		Description:      "Deposit via " + ev.Channel,
		CreatedAt:        now,
		CompletedAt:      &now,
	}
	if err := insertTransaction(ctx, tx, t); err != nil {
		if errors.Is(err, ErrDuplicateReference) {
			// a concurrent delivery settled it first
			existing, ferr := s.byGatewayReference(ctx, ev.Reference)
			if ferr != nil {
				return Transaction{}, false, ferr
			}
			return existing, false, nil
		}
		return Transaction{}, false, err
	}

	if _, err := ledger.NewPostgresLedger(tx).Credit(ctx, ev.AccountID, t.Amount); err != nil {
		return Transaction{}, false, err
	}

	n := notification.New(ev.AccountID, notification.KindDepositReceived,
		"Deposit Received", "You received ₦"+t.Amount.StringFixed(2)+" via "+ev.Channel)
	n.RelatedTransactionID = t.ID
	if err := notification.NewPostgresStore(tx).Add(ctx, n); err != nil {
		return Transaction{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, false, err
	}
	return *t, true, nil
}

// CompleteDeposit moves a PENDING deposit to SUCCESS and credits the ledger
// with the gateway-confirmed amount. Any other state is a no-op.
func (s *PostgresStore) CompleteDeposit(ctx context.Context, reference string, amount decimal.Decimal, gatewayID string) (Transaction, bool, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, false, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	query := `UPDATE transactions
        SET status = 'SUCCESS', completed_at = now(), gateway_tx_id = COALESCE(NULLIF($2, ''), gateway_tx_id)
        WHERE reference = $1 AND status = 'PENDING'
        RETURNING ` + transactionColumns

	t, err := scanTransaction(tx.QueryRow(ctx, query, reference, gatewayID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			current, ferr := s.ByReference(ctx, reference)
			if ferr != nil {
				return Transaction{}, false, ferr
			}
			return current, false, nil
		}
		return Transaction{}, false, err
	}

	credit := ledger.Quantize(amount)
	if !credit.IsPositive() {
		// Simulated gateways report no amount; credit what was recorded.
		credit = t.Amount
	}
	if _, err := ledger.NewPostgresLedger(tx).Credit(ctx, t.AccountID, credit); err != nil {
		return Transaction{}, false, err
	}

	n := notification.New(t.AccountID, notification.KindDepositReceived,
		"Payment Received", "You received ₦"+credit.StringFixed(2))
	n.RelatedTransactionID = t.ID
	if err := notification.NewPostgresStore(tx).Add(ctx, n); err != nil {
		return Transaction{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, false, err
	}
	return t, true, nil
}

// MarkProcessing moves a PENDING withdrawal to PROCESSING for the OTP leg.
func (s *PostgresStore) MarkProcessing(ctx context.Context, reference, transferCode string) (Transaction, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	query := `UPDATE transactions
        SET status = 'PROCESSING', gateway_tx_id = NULLIF($2, '')
        WHERE reference = $1 AND status = 'PENDING'
        RETURNING ` + transactionColumns

	t, err := scanTransaction(tx.QueryRow(ctx, query, reference, transferCode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, ferr := s.ByReference(ctx, reference); ferr != nil {
				return Transaction{}, ferr
			}
			return Transaction{}, ErrStateConflict
		}
		return Transaction{}, err
	}

	n := notification.New(t.AccountID, notification.KindTransferPending,
		"Transfer Initiated", "Your transfer of ₦"+t.Amount.StringFixed(2)+" requires OTP verification")
	n.RelatedTransactionID = t.ID
	if err := notification.NewPostgresStore(tx).Add(ctx, n); err != nil {
		return Transaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// Complete moves a non-terminal transaction to SUCCESS. Terminal transactions
// come back untouched with applied=false.
func (s *PostgresStore) Complete(ctx context.Context, reference, transferCode string) (Transaction, bool, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, false, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	query := `UPDATE transactions
        SET status = 'SUCCESS', completed_at = now(), gateway_tx_id = COALESCE(NULLIF($2, ''), gateway_tx_id)
        WHERE reference = $1 AND status IN ('PENDING', 'PROCESSING')
        RETURNING ` + transactionColumns

	t, err := scanTransaction(tx.QueryRow(ctx, query, reference, transferCode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			current, ferr := s.ByReference(ctx, reference)
			if ferr != nil {
				return Transaction{}, false, ferr
			}
			return current, false, nil
		}
		return Transaction{}, false, err
	}

	n := notification.New(t.AccountID, notification.KindWithdrawalSuccess,
		"Withdrawal Successful", "Your withdrawal of ₦"+t.Amount.StringFixed(2)+" was successful")
	n.RelatedTransactionID = t.ID
	if err := notification.NewPostgresStore(tx).Add(ctx, n); err != nil {
		return Transaction{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, false, err
	}
	return t, true, nil
}

// Fail moves a non-terminal transaction to FAILED. The ledger is re-credited
// only when the prior status was PENDING, the pre-debited case; the row lock
// makes the refund decision and the refund itself one atomic step, so a
// concurrent webhook and gateway-failure path cannot refund twice.
func (s *PostgresStore) Fail(ctx context.Context, reference, reason string) (Transaction, bool, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, false, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	lockQuery := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1 FOR UPDATE`

	t, err := scanTransaction(tx.QueryRow(ctx, lockQuery, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, false, ErrNotFound
		}
		return Transaction{}, false, err
	}
	if Terminal(t.Status) {
		return t, false, nil
	}
	refund := t.Type == TypeWithdrawal && t.Status == StatusPending

	const updateQuery = `UPDATE transactions
        SET status = 'FAILED', completed_at = now(),
            metadata = metadata || jsonb_build_object('failure_reason', $2::text)
        WHERE reference = $1`

	if _, err := tx.Exec(ctx, updateQuery, reference, reason); err != nil {
		return Transaction{}, false, err
	}
	if refund {
		if _, err := ledger.NewPostgresLedger(tx).Credit(ctx, t.AccountID, t.Amount); err != nil {
			return Transaction{}, false, err
		}
	}

	n := notification.New(t.AccountID, notification.KindWithdrawalFailed,
		"Withdrawal Failed", "Your withdrawal of ₦"+t.Amount.StringFixed(2)+" failed: "+reason)
	n.RelatedTransactionID = t.ID
	if err := notification.NewPostgresStore(tx).Add(ctx, n); err != nil {
		return Transaction{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, false, err
	}

	now := time.Now().UTC()
	t.Status = StatusFailed
	t.CompletedAt = &now
	return t, true, nil
}

// Reverse credits the ledger for the transaction amount and marks REVERSED.
func (s *PostgresStore) Reverse(ctx context.Context, reference string) (Transaction, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	lockQuery := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1 FOR UPDATE`

	t, err := scanTransaction(tx.QueryRow(ctx, lockQuery, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE transactions SET status = 'REVERSED', completed_at = now() WHERE reference = $1`,
		reference); err != nil {
		return Transaction{}, err
	}
	if _, err := ledger.NewPostgresLedger(tx).Credit(ctx, t.AccountID, t.Amount); err != nil {
		return Transaction{}, err
	}

	n := notification.New(t.AccountID, notification.KindWithdrawalReversed,
		"Withdrawal Reversed", "Your withdrawal of ₦"+t.Amount.StringFixed(2)+" was reversed")
	n.RelatedTransactionID = t.ID
	if err := notification.NewPostgresStore(tx).Add(ctx, n); err != nil {
		return Transaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}

	now := time.Now().UTC()
	t.Status = StatusReversed
	t.CompletedAt = &now
	return t, nil
}

// UpsertVirtualAccount stores or refreshes the account's virtual account and
// notifies the owner, one boundary.
func (s *PostgresStore) UpsertVirtualAccount(ctx context.Context, va *VirtualAccount) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if va.Currency == "" {
		va.Currency = "NGN"
	}
	if va.CreatedAt.IsZero() {
		va.CreatedAt = time.Now().UTC()
	}

	const query = `
        INSERT INTO virtual_accounts (account_id, customer_id, account_number, bank_name, bank_slug, account_name, currency, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (account_id) DO UPDATE SET
            customer_id = EXCLUDED.customer_id,
            account_number = EXCLUDED.account_number,
            bank_name = EXCLUDED.bank_name,
            bank_slug = EXCLUDED.bank_slug,
            account_name = EXCLUDED.account_name,
            currency = EXCLUDED.currency`

	if _, err := tx.Exec(ctx, query,
		va.AccountID, va.CustomerID, va.AccountNumber, va.BankName, va.BankSlug,
		va.AccountName, va.Currency, va.CreatedAt); err != nil {
		return fmt.Errorf("upsert virtual account: %w", err)
	}

	n := notification.New(va.AccountID, notification.KindDVACreated,
		"Dedicated Account Created",
		"Your dedicated account "+va.AccountNumber+" has been created at "+va.BankName)
	if err := notification.NewPostgresStore(tx).Add(ctx, n); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// VirtualAccount fetches the account's virtual account.
func (s *PostgresStore) VirtualAccount(ctx context.Context, accountID string) (VirtualAccount, error) {
	const query = `
        SELECT account_id, customer_id, account_number, bank_name, bank_slug, account_name, currency, created_at
        FROM virtual_accounts WHERE account_id = $1`

	var va VirtualAccount
	err := s.db.QueryRow(ctx, query, accountID).Scan(
		&va.AccountID, &va.CustomerID, &va.AccountNumber, &va.BankName,
		&va.BankSlug, &va.AccountName, &va.Currency, &va.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return VirtualAccount{}, ErrNoVirtualAccount
		}
		return VirtualAccount{}, fmt.Errorf("find virtual account: %w", err)
	}
	return va, nil
}

// CreateRecipient stores a payout destination. The gateway recipient code is
// globally unique.
func (s *PostgresStore) CreateRecipient(ctx context.Context, r *Recipient) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Currency == "" {
		r.Currency = "NGN"
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	const query = `
        INSERT INTO transfer_recipients (id, account_id, code, type, name, account_number, bank_code, bank_name, currency, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10)`

	_, err := s.db.Exec(ctx, query,
		r.ID, r.AccountID, r.Code, r.Type, r.Name, r.AccountNumber,
		r.BankCode, r.BankName, r.Currency, r.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrRecipientExists
		}
		return fmt.Errorf("insert recipient: %w", err)
	}
	return nil
}

// RecipientByCode fetches a payout destination by gateway code.
func (s *PostgresStore) RecipientByCode(ctx context.Context, code string) (Recipient, error) {
	const query = `
        SELECT id, account_id, code, type, name, account_number, COALESCE(bank_code, ''), COALESCE(bank_name, ''), currency, created_at
        FROM transfer_recipients WHERE code = $1`

	var r Recipient
	err := s.db.QueryRow(ctx, query, code).Scan(
		&r.ID, &r.AccountID, &r.Code, &r.Type, &r.Name, &r.AccountNumber,
		&r.BankCode, &r.BankName, &r.Currency, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Recipient{}, ErrRecipientNotFound
		}
		return Recipient{}, fmt.Errorf("find recipient: %w", err)
	}
	return r, nil
}

// ListRecipients returns the account's payout destinations, newest first.
func (s *PostgresStore) ListRecipients(ctx context.Context, accountID string) ([]Recipient, error) {
	const query = `
        SELECT id, account_id, code, type, name, account_number, COALESCE(bank_code, ''), COALESCE(bank_name, ''), currency, created_at
        FROM transfer_recipients WHERE account_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	defer rows.Close()

	var items []Recipient
	for rows.Next() {
		var r Recipient
		if err := rows.Scan(&r.ID, &r.AccountID, &r.Code, &r.Type, &r.Name, &r.AccountNumber,
			&r.BankCode, &r.BankName, &r.Currency, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

func (s *PostgresStore) byGatewayReference(ctx context.Context, reference string) (Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE gateway_reference = $1`

	t, err := scanTransaction(s.db.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, fmt.Errorf("find transaction: %w", err)
	}
	return t, nil
}

func insertTransaction(ctx context.Context, db dbtx, t *Transaction) error {
	t.Normalize()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Metadata == nil {
		t.Metadata = map[string]any{}
	}

	const query = `
        INSERT INTO transactions (id, account_id, type, status, method, amount, fee, net_amount,
            reference, gateway_tx_id, gateway_reference, description, metadata, created_at, completed_at)
        VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9,
            NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''), $13, $14, $15)`

	_, err := db.Exec(ctx, query,
		t.ID, t.AccountID, t.Type, t.Status, t.Method,
		t.Amount.StringFixed(2), t.Fee.StringFixed(2), t.NetAmount.StringFixed(2),
		t.Reference, t.GatewayTxID, t.GatewayReference, t.Description,
		t.Metadata, t.CreatedAt, t.CompletedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrDuplicateReference
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		t                Transaction
		amount, fee, net string
		completedAt      *time.Time
	)
	err := row.Scan(&t.ID, &t.AccountID, &t.Type, &t.Status, &t.Method,
		&amount, &fee, &net, &t.Reference, &t.GatewayTxID, &t.GatewayReference,
		&t.Description, &t.Metadata, &t.CreatedAt, &completedAt)
	if err != nil {
		return Transaction{}, err
	}

	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return Transaction{}, fmt.Errorf("parse amount: %w", err)
	}
	if t.Fee, err = decimal.NewFromString(fee); err != nil {
		return Transaction{}, fmt.Errorf("parse fee: %w", err)
	}
	if t.NetAmount, err = decimal.NewFromString(net); err != nil {
		return Transaction{}, fmt.Errorf("parse net amount: %w", err)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	if completedAt != nil {
		utc := completedAt.UTC()
		t.CompletedAt = &utc
	}
	return t, nil
}

var _ Store = (*PostgresStore)(nil)
