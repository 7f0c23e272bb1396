package orders

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the order does not exist.
	ErrNotFound = errors.New("orders: order not found")
	// ErrNotPending indicates the order has already left PENDING.
	ErrNotPending = errors.New("orders: order already confirmed")
	// ErrUnpaid indicates a confirm attempt before payment.
	ErrUnpaid = errors.New("orders: order not paid")
	// ErrAlreadyPaid indicates a second payment attempt.
	ErrAlreadyPaid = errors.New("orders: order already paid")
	// ErrNotAvailable indicates the order is no longer open for acceptance.
	ErrNotAvailable = errors.New("orders: order no longer available")
	// ErrAlreadyAssigned indicates another courier won the order.
	ErrAlreadyAssigned = errors.New("orders: order already assigned")
	// ErrNotOffered indicates the courier is not on the offer list.
	ErrNotOffered = errors.New("orders: order not offered to courier")
	// ErrOfferExpired indicates the offer window has closed.
	ErrOfferExpired = errors.New("orders: offer expired")
	// ErrIllegalTransition indicates a delivery status jump outside the fixed
	// progression.
	ErrIllegalTransition = errors.New("orders: illegal status transition")
)

// CourierOffer names one courier an order is broadcast to.
type CourierOffer struct {
	CourierID string
	Email     string
}

// Store persists orders and their tracking history. Methods that change
// state are single atomicity boundaries; Accept and PayWithBalance take an
// exclusive row lock so concurrent callers serialize and at most one wins.
type Store interface {
	// Create inserts the order with its initial tracking entry.
	Create(ctx context.Context, o *Order, note string) error
	// ByID fetches one order.
	ByID(ctx context.Context, id string) (Order, error)
	// ListBySender returns the sender's orders, newest first. status narrows
	// when non-empty.
	ListBySender(ctx context.Context, senderID, status string) ([]Order, error)
	// ListByCourier returns orders assigned to the courier, newest first.
	ListByCourier(ctx context.Context, courierID, status string) ([]Order, error)
	// AvailableFor returns open offers for the courier: AVAILABLE, unassigned,
	// courier on the offer list, offer unexpired. Capped at 100.
	AvailableFor(ctx context.Context, courierID string, now time.Time) ([]Order, error)
	// PayWithBalance debits the sender's ledger balance for the order total
	// and marks the order PAID, one boundary. Only a PENDING payment may pay.
	PayWithBalance(ctx context.Context, orderID, senderID string) (Order, error)
	// Confirm moves a paid PENDING order to AVAILABLE, replaces the offer
	// list, stamps the expiry when offers exist and writes the tracking
	// entries.
	Confirm(ctx context.Context, orderID string, offers []CourierOffer, expiresAt time.Time) (Order, error)
	// Accept assigns the order to the courier under an exclusive row lock.
	// Exactly one concurrent caller wins; the rest get a conflict error.
	Accept(ctx context.Context, orderID, courierID, courierEmail string, now time.Time) (Order, error)
	// Reject removes the courier from the offer list. Lock-free; removals
	// commute and never conflict.
	Reject(ctx context.Context, orderID, courierID string) error
	// Advance moves the order one step along the delivery progression,
	// stamping pickup and delivery times and appending a tracking entry.
	Advance(ctx context.Context, orderID, courierID, newStatus, location, notes string) (Order, error)
	// Tracking lists the order's history, newest first. limit <= 0 means all.
	Tracking(ctx context.Context, orderID string, limit int) ([]TrackingEntry, error)
}
