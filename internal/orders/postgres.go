package orders

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

// dbtx is the execution surface shared by *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists orders in PostgreSQL. The accept path relies on
// SELECT ... FOR UPDATE so concurrent couriers serialize on the order row.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds the store on a connection pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const orderColumns = `id, order_number, tracking_number, sender_id, COALESCE(courier_id, ''),
        pickup_address, pickup_lat, pickup_lng, dropoff_address, dropoff_lat, dropoff_lng,
        recipient_name, COALESCE(recipient_email, ''), recipient_phone, COALESCE(recipient_alt_phone, ''),
        delivery_instructions, require_signature,
        parcel_type, parcel_description, parcel_condition, parcel_quantity,
        parcel_weight_kg::text, parcel_worth::text, parcel_images,
        delivery_fee::text, service_charge::text, insurance_fee::text, total_amount::text,
        payment_status, courier_payout::text,
        status, current_location, estimated_delivery, offered_couriers, offer_expires_at,
        picked_up_at, delivered_at, cancelled_at, metadata, created_at, updated_at`

// Create inserts the order and its initial tracking entry in one boundary.
func (s *PostgresStore) Create(ctx context.Context, o *Order, note string) error {
	o.Normalize()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = o.CreatedAt
	if o.Metadata == nil {
		o.Metadata = map[string]any{}
	}
	if o.ParcelImages == nil {
		o.ParcelImages = []string{}
	}
	if o.OfferedCouriers == nil {
		o.OfferedCouriers = []string{}
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	const query = `
        INSERT INTO orders (id, order_number, tracking_number, sender_id,
            pickup_address, pickup_lat, pickup_lng, dropoff_address, dropoff_lat, dropoff_lng,
            recipient_name, recipient_email, recipient_phone, recipient_alt_phone,
            delivery_instructions, require_signature,
            parcel_type, parcel_description, parcel_condition, parcel_quantity,
            parcel_weight_kg, parcel_worth, parcel_images,
            delivery_fee, service_charge, insurance_fee, total_amount, payment_status, courier_payout,
            status, current_location, estimated_delivery, offered_couriers, offer_expires_at,
            metadata, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
            $11, NULLIF($12, ''), $13, NULLIF($14, ''), $15, $16,
            $17, $18, $19, $20, $21::numeric, $22::numeric, $23,
            $24::numeric, $25::numeric, $26::numeric, $27::numeric, $28, $29::numeric,
            $30, $31, $32, $33, $34, $35, $36, $37)`

	_, err = tx.Exec(ctx, query,
		o.ID, o.OrderNumber, o.TrackingNumber, o.SenderID,
		o.PickupAddress, o.PickupLat, o.PickupLng, o.DropoffAddress, o.DropoffLat, o.DropoffLng,
		o.RecipientName, o.RecipientEmail, o.RecipientPhone, o.RecipientAltPhone,
		o.DeliveryInstructions, o.RequireSignature,
		o.ParcelType, o.ParcelDescription, o.ParcelCondition, o.ParcelQuantity,
		o.ParcelWeightKG.StringFixed(2), o.ParcelWorth.StringFixed(2), o.ParcelImages,
		o.DeliveryFee.StringFixed(2), o.ServiceCharge.StringFixed(2), o.InsuranceFee.StringFixed(2),
		o.TotalAmount.StringFixed(2), o.PaymentStatus, o.CourierPayout.StringFixed(2),
		o.Status, o.CurrentLocation, o.EstimatedDelivery, o.OfferedCouriers, o.OfferExpiresAt,
		o.Metadata, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	if err := insertTracking(ctx, tx, o.ID, o.Status, "", note); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ByID fetches one order.
func (s *PostgresStore) ByID(ctx context.Context, id string) (Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	o, err := scanOrder(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("find order: %w", err)
	}
	return o, nil
}

// ListBySender returns the sender's orders, newest first.
func (s *PostgresStore) ListBySender(ctx context.Context, senderID, status string) ([]Order, error) {
	return s.list(ctx, "sender_id", senderID, status)
}

// ListByCourier returns orders assigned to the courier, newest first.
func (s *PostgresStore) ListByCourier(ctx context.Context, courierID, status string) ([]Order, error) {
	return s.list(ctx, "courier_id", courierID, status)
}

func (s *PostgresStore) list(ctx context.Context, column, id, status string) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + column + ` = $1`
	args := []any{id}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

// AvailableFor returns open, unexpired offers for the courier.
func (s *PostgresStore) AvailableFor(ctx context.Context, courierID string, now time.Time) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
        WHERE status = 'AVAILABLE' AND courier_id IS NULL
          AND $1 = ANY(offered_couriers)
          AND (offer_expires_at IS NULL OR offer_expires_at > $2)
        ORDER BY created_at DESC
        LIMIT 100`

	rows, err := s.db.Query(ctx, query, courierID, now)
	if err != nil {
		return nil, fmt.Errorf("list available orders: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

// PayWithBalance debits the sender for the order total and marks PAID.
func (s *PostgresStore) PayWithBalance(ctx context.Context, orderID, senderID string) (Order, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	o, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.SenderID != senderID {
		return Order{}, ErrNotFound
	}
	if o.PaymentStatus != PaymentPending {
		return Order{}, ErrAlreadyPaid
	}

	if _, err := ledger.NewPostgresLedger(tx).Debit(ctx, senderID, o.TotalAmount); err != nil {
		return Order{}, err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE orders SET payment_status = 'PAID', updated_at = now() WHERE id = $1`, orderID); err != nil {
		return Order{}, err
	}

	n := notification.New(senderID, notification.KindTransactionSuccess,
		"Order Payment Successful",
		"You paid ₦"+o.TotalAmount.StringFixed(2)+" for order "+o.OrderNumber)
	if err := notification.NewPostgresStore(tx).Add(ctx, n); err != nil {
		return Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	o.PaymentStatus = PaymentPaid
	return o, nil
}

// Confirm opens the order to the offered couriers.
func (s *PostgresStore) Confirm(ctx context.Context, orderID string, offers []CourierOffer, expiresAt time.Time) (Order, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	o, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.Status != StatusPending {
		return Order{}, ErrNotPending
	}
	if o.PaymentStatus != PaymentPaid {
		return Order{}, ErrUnpaid
	}

	ids := make([]string, 0, len(offers))
	for _, offer := range offers {
		ids = append(ids, offer.CourierID)
	}
	var expiry *time.Time
	if !expiresAt.IsZero() {
		expiresAt = expiresAt.UTC()
		expiry = &expiresAt
	}

	if _, err := tx.Exec(ctx,
		`UPDATE orders SET status = 'AVAILABLE', offered_couriers = $2, offer_expires_at = $3, updated_at = now()
         WHERE id = $1`, orderID, ids, expiry); err != nil {
		return Order{}, err
	}

	if err := insertTracking(ctx, tx, orderID, StatusAvailable, "", "Order confirmed and made available to couriers"); err != nil {
		return Order{}, err
	}
	for _, offer := range offers {
		if err := insertTracking(ctx, tx, orderID, StatusAvailable, "", "Order offered to courier: "+offer.Email); err != nil {
			return Order{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	o.Status = StatusAvailable
	o.OfferedCouriers = ids
	o.OfferExpiresAt = expiry
	return o, nil
}

// Accept assigns the order to the courier. The row lock serializes racing
// couriers; the re-checks under the lock pick exactly one winner.
func (s *PostgresStore) Accept(ctx context.Context, orderID, courierID, courierEmail string, now time.Time) (Order, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	o, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.Status != StatusAvailable {
		return Order{}, ErrNotAvailable
	}
	if o.CourierID != "" {
		return Order{}, ErrAlreadyAssigned
	}
	if !o.Offered(courierID) {
		return Order{}, ErrNotOffered
	}
	if o.OfferExpired(now) {
		return Order{}, ErrOfferExpired
	}

	if _, err := tx.Exec(ctx,
		`UPDATE orders SET courier_id = $2, status = 'ACCEPTED', updated_at = now() WHERE id = $1`,
		orderID, courierID); err != nil {
		return Order{}, err
	}
	if err := insertTracking(ctx, tx, orderID, StatusAccepted, "", "Order accepted by courier: "+courierEmail); err != nil {
		return Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	o.CourierID = courierID
	o.Status = StatusAccepted
	return o, nil
}

// Reject removes the courier from the offer list without locking.
func (s *PostgresStore) Reject(ctx context.Context, orderID, courierID string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE orders SET offered_couriers = array_remove(offered_couriers, $2), updated_at = now() WHERE id = $1`,
		orderID, courierID)
	if err != nil {
		return fmt.Errorf("reject order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Advance moves the order one step along the delivery progression.
func (s *PostgresStore) Advance(ctx context.Context, orderID, courierID, newStatus, location, notes string) (Order, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	o, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.CourierID != courierID {
		return Order{}, ErrNotFound
	}
	if !CanAdvance(o.Status, newStatus) {
		return Order{}, ErrIllegalTransition
	}

	now := time.Now().UTC()
	const query = `
        UPDATE orders SET status = $2,
            picked_up_at = CASE WHEN $2 = 'PICKED_UP' THEN $3 ELSE picked_up_at END,
            delivered_at = CASE WHEN $2 = 'DELIVERED' THEN $3 ELSE delivered_at END,
            updated_at = $3
        WHERE id = $1`
	if _, err := tx.Exec(ctx, query, orderID, newStatus, now); err != nil {
		return Order{}, err
	}
	if err := insertTracking(ctx, tx, orderID, newStatus, location, notes); err != nil {
		return Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	o.Status = newStatus
	o.UpdatedAt = now
	switch newStatus {
	case StatusPickedUp:
		o.PickedUpAt = &now
	case StatusDelivered:
		o.DeliveredAt = &now
	}
	return o, nil
}

// Tracking lists the order's history, newest first.
func (s *PostgresStore) Tracking(ctx context.Context, orderID string, limit int) ([]TrackingEntry, error) {
	query := `SELECT id, order_id, status, location, latitude, longitude, notes, created_at
        FROM order_tracking WHERE order_id = $1 ORDER BY created_at DESC`
	args := []any{orderID}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tracking: %w", err)
	}
	defer rows.Close()

	var items []TrackingEntry
	for rows.Next() {
		var e TrackingEntry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Status, &e.Location,
			&e.Latitude, &e.Longitude, &e.Notes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tracking: %w", err)
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func lockOrder(ctx context.Context, tx pgx.Tx, orderID string) (Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	o, err := scanOrder(tx.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("lock order: %w", err)
	}
	return o, nil
}

func insertTracking(ctx context.Context, db dbtx, orderID, status, location, notes string) error {
	const query = `
        INSERT INTO order_tracking (id, order_id, status, location, notes, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := db.Exec(ctx, query, uuid.NewString(), orderID, status, location, notes, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert tracking: %w", err)
	}
	return nil
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	var items []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var weight, worth, deliveryFee, serviceCharge, insuranceFee, totalAmount, payout string
	err := row.Scan(&o.ID, &o.OrderNumber, &o.TrackingNumber, &o.SenderID, &o.CourierID,
		&o.PickupAddress, &o.PickupLat, &o.PickupLng, &o.DropoffAddress, &o.DropoffLat, &o.DropoffLng,
		&o.RecipientName, &o.RecipientEmail, &o.RecipientPhone, &o.RecipientAltPhone,
		&o.DeliveryInstructions, &o.RequireSignature,
		&o.ParcelType, &o.ParcelDescription, &o.ParcelCondition, &o.ParcelQuantity,
		&weight, &worth, &o.ParcelImages,
		&deliveryFee, &serviceCharge, &insuranceFee, &totalAmount,
		&o.PaymentStatus, &payout,
		&o.Status, &o.CurrentLocation, &o.EstimatedDelivery, &o.OfferedCouriers, &o.OfferExpiresAt,
		&o.PickedUpAt, &o.DeliveredAt, &o.CancelledAt, &o.Metadata, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}

	if o.ParcelWeightKG, err = decimal.NewFromString(weight); err != nil {
		return Order{}, fmt.Errorf("parse weight: %w", err)
	}
	if o.ParcelWorth, err = decimal.NewFromString(worth); err != nil {
		return Order{}, fmt.Errorf("parse worth: %w", err)
	}
	if o.DeliveryFee, err = decimal.NewFromString(deliveryFee); err != nil {
		return Order{}, fmt.Errorf("parse delivery fee: %w", err)
	}
	if o.ServiceCharge, err = decimal.NewFromString(serviceCharge); err != nil {
		return Order{}, fmt.Errorf("parse service charge: %w", err)
	}
	if o.InsuranceFee, err = decimal.NewFromString(insuranceFee); err != nil {
		return Order{}, fmt.Errorf("parse insurance fee: %w", err)
	}
	if o.TotalAmount, err = decimal.NewFromString(totalAmount); err != nil {
		return Order{}, fmt.Errorf("parse total: %w", err)
	}
	if o.CourierPayout, err = decimal.NewFromString(payout); err != nil {
		return Order{}, fmt.Errorf("parse payout: %w", err)
	}
	return o, nil
}

var _ Store = (*PostgresStore)(nil)
