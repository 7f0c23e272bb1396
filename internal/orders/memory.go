package orders

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vortex-hue/Xcellar-RestAPI/internal/ledger"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/notification"
)

// MemoryStore keeps orders in process memory with the same boundary semantics
// as the Postgres store. The single mutex stands in for the row lock.
type MemoryStore struct {
	mu            sync.Mutex
	ledger        ledger.Ledger
	notifications notification.Store
	orders        map[string]*Order
	tracking      map[string][]TrackingEntry
}

// NewMemoryStore builds an empty in-memory store writing balance changes to l
// and notifications to n.
func NewMemoryStore(l ledger.Ledger, n notification.Store) *MemoryStore {
	return &MemoryStore{
		ledger:        l,
		notifications: n,
		orders:        map[string]*Order{},
		tracking:      map[string][]TrackingEntry{},
	}
}

func (s *MemoryStore) Create(ctx context.Context, o *Order, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o.Normalize()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = o.CreatedAt

	cp := *o
	s.orders[o.ID] = &cp
	s.appendTracking(o.ID, o.Status, "", note)
	return nil
}

func (s *MemoryStore) ByID(ctx context.Context, id string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return *o, nil
}

func (s *MemoryStore) ListBySender(ctx context.Context, senderID, status string) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter(func(o *Order) bool {
		return o.SenderID == senderID && (status == "" || o.Status == status)
	}, 0), nil
}

func (s *MemoryStore) ListByCourier(ctx context.Context, courierID, status string) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter(func(o *Order) bool {
		return o.CourierID == courierID && (status == "" || o.Status == status)
	}, 0), nil
}

func (s *MemoryStore) AvailableFor(ctx context.Context, courierID string, now time.Time) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter(func(o *Order) bool {
		return o.Status == StatusAvailable && o.CourierID == "" &&
			o.Offered(courierID) && !o.OfferExpired(now)
	}, 100), nil
}

func (s *MemoryStore) PayWithBalance(ctx context.Context, orderID, senderID string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return Order{}, ErrNotFound
	}
	if o.SenderID != senderID {
		return Order{}, ErrNotFound
	}
	if o.PaymentStatus != PaymentPending {
		return Order{}, ErrAlreadyPaid
	}

	if _, err := s.ledger.Debit(ctx, senderID, o.TotalAmount); err != nil {
		return Order{}, err
	}
	o.PaymentStatus = PaymentPaid
	o.UpdatedAt = time.Now().UTC()

	n := notification.New(senderID, notification.KindTransactionSuccess,
		"Order Payment Successful",
		"You paid ₦"+o.TotalAmount.StringFixed(2)+" for order "+o.OrderNumber)
	if err := s.notifications.Add(ctx, n); err != nil {
		return Order{}, err
	}
	return *o, nil
}

func (s *MemoryStore) Confirm(ctx context.Context, orderID string, offers []CourierOffer, expiresAt time.Time) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return Order{}, ErrNotFound
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
	o.Status = StatusAvailable
	o.OfferedCouriers = ids
	if !expiresAt.IsZero() {
		expiresAt = expiresAt.UTC()
		o.OfferExpiresAt = &expiresAt
	}
	o.UpdatedAt = time.Now().UTC()

	s.appendTracking(orderID, StatusAvailable, "", "Order confirmed and made available to couriers")
	for _, offer := range offers {
		s.appendTracking(orderID, StatusAvailable, "", "Order offered to courier: "+offer.Email)
	}
	return *o, nil
}

func (s *MemoryStore) Accept(ctx context.Context, orderID, courierID, courierEmail string, now time.Time) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return Order{}, ErrNotFound
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

	o.CourierID = courierID
	o.Status = StatusAccepted
	o.UpdatedAt = time.Now().UTC()
	s.appendTracking(orderID, StatusAccepted, "", "Order accepted by courier: "+courierEmail)
	return *o, nil
}

func (s *MemoryStore) Reject(ctx context.Context, orderID, courierID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	kept := o.OfferedCouriers[:0]
	for _, id := range o.OfferedCouriers {
		if id != courierID {
			kept = append(kept, id)
		}
	}
	o.OfferedCouriers = kept
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) Advance(ctx context.Context, orderID, courierID, newStatus, location, notes string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return Order{}, ErrNotFound
	}
	if o.CourierID != courierID {
		return Order{}, ErrNotFound
	}
	if !CanAdvance(o.Status, newStatus) {
		return Order{}, ErrIllegalTransition
	}

	now := time.Now().UTC()
	o.Status = newStatus
	o.UpdatedAt = now
	switch newStatus {
	case StatusPickedUp:
		o.PickedUpAt = &now
	case StatusDelivered:
		o.DeliveredAt = &now
	}
	s.appendTracking(orderID, newStatus, location, notes)
	return *o, nil
}

func (s *MemoryStore) Tracking(ctx context.Context, orderID string, limit int) ([]TrackingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.tracking[orderID]
	items := make([]TrackingEntry, len(entries))
	copy(items, entries)
	// stored oldest first; newest first out
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// appendTracking assumes the caller holds the lock.
func (s *MemoryStore) appendTracking(orderID, status, location, notes string) {
	s.tracking[orderID] = append(s.tracking[orderID], TrackingEntry{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		Status:    status,
		Location:  location,
		Notes:     notes,
		CreatedAt: time.Now().UTC(),
	})
}

// filter assumes the caller holds the lock.
func (s *MemoryStore) filter(keep func(*Order) bool, limit int) []Order {
	var items []Order
	for _, o := range s.orders {
		if keep(o) {
			items = append(items, *o)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

var _ Store = (*MemoryStore)(nil)
