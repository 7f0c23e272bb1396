package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vortex-hue/Xcellar-RestAPI/internal/identity"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/metrics"
)

// ErrForbidden indicates the caller may not act on this order.
var ErrForbidden = errors.New("orders: access denied")

// offerTTL is how long a courier broadcast stays open.
const offerTTL = 24 * time.Hour

// broadcastSize caps how many couriers one broadcast reaches.
const broadcastSize = 5

// Service drives the order lifecycle from creation through delivery.
type Service struct {
	store  Store
	users  identity.Repository
	logger *slog.Logger
}

// NewService wires the order service.
func NewService(store Store, users identity.Repository, logger *slog.Logger) *Service {
	return &Service{store: store, users: users, logger: logger}
}

// CreateInput carries a new parcel order.
type CreateInput struct {
	PickupAddress  string
	PickupLat      *float64
	PickupLng      *float64
	DropoffAddress string
	DropoffLat     *float64
	DropoffLng     *float64

	RecipientName        string
	RecipientEmail       string
	RecipientPhone       string
	RecipientAltPhone    string
	DeliveryInstructions string
	RequireSignature     bool

	ParcelType        string
	ParcelDescription string
	ParcelCondition   string
	ParcelQuantity    int
	ParcelWeightKG    decimal.Decimal
	ParcelWorth       decimal.Decimal
	ParcelImages      []string

	DeliveryFee   decimal.Decimal
	ServiceCharge decimal.Decimal
	InsuranceFee  decimal.Decimal
	TotalAmount   decimal.Decimal
}

// Create records a new PENDING order for the sender.
func (s *Service) Create(ctx context.Context, senderID string, in CreateInput) (Order, error) {
	quantity := in.ParcelQuantity
	if quantity <= 0 {
		quantity = 1
	}
	o := &Order{
		OrderNumber:    NewOrderNumber(),
		TrackingNumber: NewTrackingNumber(),
		SenderID:       senderID,

		PickupAddress:  in.PickupAddress,
		PickupLat:      in.PickupLat,
		PickupLng:      in.PickupLng,
		DropoffAddress: in.DropoffAddress,
		DropoffLat:     in.DropoffLat,
		DropoffLng:     in.DropoffLng,

		RecipientName:        in.RecipientName,
		RecipientEmail:       in.RecipientEmail,
		RecipientPhone:       in.RecipientPhone,
		RecipientAltPhone:    in.RecipientAltPhone,
		DeliveryInstructions: in.DeliveryInstructions,
		RequireSignature:     in.RequireSignature,

		ParcelType:        in.ParcelType,
		ParcelDescription: in.ParcelDescription,
		ParcelCondition:   in.ParcelCondition,
		ParcelQuantity:    quantity,
		ParcelWeightKG:    in.ParcelWeightKG,
		ParcelWorth:       in.ParcelWorth,
		ParcelImages:      in.ParcelImages,

		DeliveryFee:   in.DeliveryFee,
		ServiceCharge: in.ServiceCharge,
		InsuranceFee:  in.InsuranceFee,
		TotalAmount:   in.TotalAmount,
		PaymentStatus: PaymentPending,

		Status: StatusPending,
	}
	if err := s.store.Create(ctx, o, "Order created and awaiting confirmation"); err != nil {
		return Order{}, err
	}
	return *o, nil
}

// Pay settles the order total from the sender's balance.
func (s *Service) Pay(ctx context.Context, senderID, orderID string) (Order, error) {
	return s.store.PayWithBalance(ctx, orderID, senderID)
}

// Confirm opens a paid order to couriers: a uniform random sample of up to
// five active couriers, excluding any already offered, with a 24 hour window.
// Expired offers are not re-expanded; the sender confirms again by support
// intervention today.
func (s *Service) Confirm(ctx context.Context, senderID, orderID string) (Order, error) {
	o, err := s.store.ByID(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.SenderID != senderID {
		return Order{}, ErrNotFound
	}
	if o.Status != StatusPending {
		return Order{}, ErrNotPending
	}
	if o.PaymentStatus != PaymentPaid {
		return Order{}, ErrUnpaid
	}

	pool, err := s.users.ActiveCouriers(ctx)
	if err != nil {
		return Order{}, fmt.Errorf("list couriers: %w", err)
	}
	offered := make(map[string]struct{}, len(o.OfferedCouriers))
	for _, id := range o.OfferedCouriers {
		offered[id] = struct{}{}
	}
	candidates := pool[:0:0]
	for _, courier := range pool {
		if _, dup := offered[courier.ID]; !dup {
			candidates = append(candidates, courier)
		}
	}

	picked := sampleCouriers(candidates, broadcastSize)
	offers := make([]CourierOffer, 0, len(picked))
	for _, courier := range picked {
		offers = append(offers, CourierOffer{CourierID: courier.ID, Email: courier.Email})
	}
	var expiry time.Time
	if len(offers) > 0 {
		expiry = time.Now().UTC().Add(offerTTL)
	}

	updated, err := s.store.Confirm(ctx, orderID, offers, expiry)
	if err != nil {
		return Order{}, err
	}
	if len(offers) > 0 {
		metrics.OrderBroadcasts.Inc()
	}
	s.logger.Info("order broadcast to couriers",
		"order_id", orderID, "order_number", updated.OrderNumber, "offers", len(offers))
	return updated, nil
}

// Available lists open offers for the courier.
func (s *Service) Available(ctx context.Context, courierID string) ([]Order, error) {
	return s.store.AvailableFor(ctx, courierID, time.Now().UTC())
}

// Accept claims an offered order for the courier. Exactly one of several
// concurrent acceptors wins.
func (s *Service) Accept(ctx context.Context, courierID, orderID string) (Order, error) {
	courier, err := s.users.FindByID(ctx, courierID)
	if err != nil {
		return Order{}, err
	}
	return s.store.Accept(ctx, orderID, courierID, courier.Email, time.Now().UTC())
}

// Reject takes the courier off the order's offer list.
func (s *Service) Reject(ctx context.Context, courierID, orderID string) error {
	if _, err := s.store.ByID(ctx, orderID); err != nil {
		return err
	}
	return s.store.Reject(ctx, orderID, courierID)
}

// Advance moves the order along the fixed delivery progression.
func (s *Service) Advance(ctx context.Context, courierID, orderID, newStatus, location, notes string) (Order, error) {
	return s.store.Advance(ctx, orderID, courierID, newStatus, location, notes)
}

// Get returns one order, enforcing sender or assigned-courier visibility.
func (s *Service) Get(ctx context.Context, accountID, role, orderID string) (Order, error) {
	o, err := s.store.ByID(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if err := allowed(o, accountID, role); err != nil {
		return Order{}, err
	}
	return o, nil
}

// List returns the caller's orders: own for senders, assigned for couriers.
func (s *Service) List(ctx context.Context, accountID, role, status string) ([]Order, error) {
	if role == identity.RoleCourier {
		return s.store.ListByCourier(ctx, accountID, status)
	}
	return s.store.ListBySender(ctx, accountID, status)
}

// Track returns the order's full tracking history.
func (s *Service) Track(ctx context.Context, accountID, role, orderID string) ([]TrackingEntry, error) {
	o, err := s.store.ByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := allowed(o, accountID, role); err != nil {
		return nil, err
	}
	return s.store.Tracking(ctx, orderID, 0)
}

// RecentTracking returns the last n history entries for the detail view.
func (s *Service) RecentTracking(ctx context.Context, orderID string, n int) ([]TrackingEntry, error) {
	return s.store.Tracking(ctx, orderID, n)
}

func allowed(o Order, accountID, role string) error {
	switch role {
	case identity.RoleCourier:
		if o.CourierID != accountID {
			return ErrForbidden
		}
	default:
		if o.SenderID != accountID {
			return ErrForbidden
		}
	}
	return nil
}

// sampleCouriers draws up to k couriers uniformly without replacement.
func sampleCouriers(pool []identity.User, k int) []identity.User {
	if len(pool) <= k {
		return pool
	}
	picked := make([]identity.User, len(pool))
	copy(picked, pool)
	rand.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})
	return picked[:k]
}
