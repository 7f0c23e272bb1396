package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vortex-hue/Xcellar-RestAPI/internal/identity"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/ledger"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/logging"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/notification"
)

type ordersFixture struct {
	svc    *Service
	store  *MemoryStore
	ledger ledger.Ledger
	notes  *notification.MemoryStore
	users  identity.Repository
}

func newOrdersFixture(t *testing.T) *ordersFixture {
	t.Helper()
	l := ledger.NewInMemory()
	notes := notification.NewMemoryStore()
	store := NewMemoryStore(l, notes)
	users := identity.NewMemoryRepository()
	return &ordersFixture{
		svc:    NewService(store, users, logging.Discard()),
		store:  store,
		ledger: l,
		notes:  notes,
		users:  users,
	}
}

func (fx *ordersFixture) seedSender(t *testing.T, id, balance string) {
	t.Helper()
	ctx := context.Background()
	if err := fx.ledger.EnsureAccount(ctx, id); err != nil {
		t.Fatalf("ensure account: %v", err)
	}
	ledger.SeedBalance(fx.ledger, id, decimal.RequireFromString(balance))
}

func (fx *ordersFixture) seedCouriers(t *testing.T, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("courier-%d", i)
		err := fx.users.Create(context.Background(), identity.User{
			ID:       id,
			Email:    id + "@example.com",
			FullName: "Courier " + id,
			Role:     identity.RoleCourier,
			Active:   true,
		})
		if err != nil {
			t.Fatalf("seed courier %s: %v", id, err)
		}
		ids = append(ids, id)
	}
	return ids
}

func (fx *ordersFixture) createOrder(t *testing.T, senderID, fee string) Order {
	t.Helper()
	o, err := fx.svc.Create(context.Background(), senderID, CreateInput{
		PickupAddress:     "12 Adeola Odeku St, Victoria Island",
		DropoffAddress:    "4 Allen Avenue, Ikeja",
		RecipientName:     "Bisi Adewale",
		RecipientPhone:    "+2348012345678",
		ParcelType:        ParcelDocuments,
		ParcelDescription: "Signed contracts",
		ParcelCondition:   "Sealed envelope",
		DeliveryFee:       decimal.RequireFromString(fee),
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

// paidOrder creates an order for the sender and pays it from balance.
func (fx *ordersFixture) paidOrder(t *testing.T, senderID, fee string) Order {
	t.Helper()
	o := fx.createOrder(t, senderID, fee)
	paid, err := fx.svc.Pay(context.Background(), senderID, o.ID)
	if err != nil {
		t.Fatalf("pay order: %v", err)
	}
	return paid
}

// openOrder creates, pays and confirms an order so couriers can accept it.
func (fx *ordersFixture) openOrder(t *testing.T, senderID, fee string) Order {
	t.Helper()
	o := fx.paidOrder(t, senderID, fee)
	confirmed, err := fx.svc.Confirm(context.Background(), senderID, o.ID)
	if err != nil {
		t.Fatalf("confirm order: %v", err)
	}
	return confirmed
}

func (fx *ordersFixture) refresh(t *testing.T, orderID string) Order {
	t.Helper()
	o, err := fx.store.ByID(context.Background(), orderID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	return o
}

func (fx *ordersFixture) balance(t *testing.T, accountID string) string {
	t.Helper()
	bal, err := fx.ledger.Balance(context.Background(), accountID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal.StringFixed(2)
}

// expireOffer backdates the order's offer window.
func (fx *ordersFixture) expireOffer(t *testing.T, orderID string) {
	t.Helper()
	fx.store.mu.Lock()
	defer fx.store.mu.Unlock()
	o, ok := fx.store.orders[orderID]
	if !ok {
		t.Fatalf("order %s not found", orderID)
	}
	past := time.Now().UTC().Add(-time.Minute)
	o.OfferExpiresAt = &past
}

func TestCreateFillsDefaults(t *testing.T) {
	fx := newOrdersFixture(t)
	fx.seedSender(t, "sender-1", "0")

	o, err := fx.svc.Create(context.Background(), "sender-1", CreateInput{
		PickupAddress:     "12 Adeola Odeku St, Victoria Island",
		DropoffAddress:    "4 Allen Avenue, Ikeja",
		RecipientName:     "Bisi Adewale",
		RecipientPhone:    "+2348012345678",
		ParcelType:        ParcelElectronics,
		ParcelDescription: "Laptop",
		ParcelCondition:   "Boxed",
		DeliveryFee:       decimal.RequireFromString("1500"),
		ServiceCharge:     decimal.RequireFromString("150"),
		InsuranceFee:      decimal.RequireFromString("75.5"),
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if !strings.HasPrefix(o.OrderNumber, "ORD-") {
		t.Fatalf("order number = %q, want ORD- prefix", o.OrderNumber)
	}
	if !strings.HasPrefix(o.TrackingNumber, "TRK-") {
		t.Fatalf("tracking number = %q, want TRK- prefix", o.TrackingNumber)
	}
	if o.Status != StatusPending {
		t.Fatalf("status = %s, want %s", o.Status, StatusPending)
	}
	if o.PaymentStatus != PaymentPending {
		t.Fatalf("payment status = %s, want %s", o.PaymentStatus, PaymentPending)
	}
	if o.ParcelQuantity != 1 {
		t.Fatalf("quantity = %d, want default 1", o.ParcelQuantity)
	}
	if got := o.TotalAmount.StringFixed(2); got != "1725.50" {
		t.Fatalf("total = %s, want 1725.50", got)
	}

	history, err := fx.svc.RecentTracking(context.Background(), o.ID, 0)
	if err != nil {
		t.Fatalf("tracking: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("tracking entries = %d, want 1", len(history))
	}
	if history[0].Status != StatusPending {
		t.Fatalf("tracking status = %s, want %s", history[0].Status, StatusPending)
	}
}

func TestPayDebitsSenderBalance(t *testing.T) {
	fx := newOrdersFixture(t)
	fx.seedSender(t, "sender-1", "5000")
	o := fx.createOrder(t, "sender-1", "1800.75")

	paid, err := fx.svc.Pay(context.Background(), "sender-1", o.ID)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if paid.PaymentStatus != PaymentPaid {
		t.Fatalf("payment status = %s, want %s", paid.PaymentStatus, PaymentPaid)
	}
	if got := fx.balance(t, "sender-1"); got != "3199.25" {
		t.Fatalf("balance = %s, want 3199.25", got)
	}

	notes, err := fx.notes.List(context.Background(), "sender-1", false, 10)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(notes) != 1 || notes[0].Kind != notification.KindTransactionSuccess {
		t.Fatalf("notifications = %+v, want one payment notice", notes)
	}

	// paying twice must not debit again
	if _, err := fx.svc.Pay(context.Background(), "sender-1", o.ID); !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("second pay err = %v, want ErrAlreadyPaid", err)
	}
	if got := fx.balance(t, "sender-1"); got != "3199.25" {
		t.Fatalf("balance after double pay = %s, want 3199.25", got)
	}
}

func TestPayInsufficientBalanceLeavesOrderUnpaid(t *testing.T) {
	fx := newOrdersFixture(t)
	fx.seedSender(t, "sender-1", "100")
	o := fx.createOrder(t, "sender-1", "1800")

	_, err := fx.svc.Pay(context.Background(), "sender-1", o.ID)
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("pay err = %v, want ErrInsufficientFunds", err)
	}
	if got := fx.balance(t, "sender-1"); got != "100.00" {
		t.Fatalf("balance = %s, want 100.00", got)
	}
	if got := fx.refresh(t, o.ID).PaymentStatus; got != PaymentPending {
		t.Fatalf("payment status = %s, want %s", got, PaymentPending)
	}
}

func TestPayForeignOrderHidden(t *testing.T) {
	fx := newOrdersFixture(t)
	fx.seedSender(t, "sender-1", "5000")
	fx.seedSender(t, "sender-2", "5000")
	o := fx.createOrder(t, "sender-1", "1800")

	if _, err := fx.svc.Pay(context.Background(), "sender-2", o.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("pay err = %v, want ErrNotFound", err)
	}
}

func TestConfirmBroadcastsToAtMostFiveCouriers(t *testing.T) {
	fx := newOrdersFixture(t)
	fx.seedSender(t, "sender-1", "5000")
	pool := fx.seedCouriers(t, 8)
	o := fx.paidOrder(t, "sender-1", "1500")

	before := time.Now().UTC()
	confirmed, err := fx.svc.Confirm(context.Background(), "sender-1", o.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != StatusAvailable {
		t.Fatalf("status = %s, want %s", confirmed.Status, StatusAvailable)
	}
	if len(confirmed.OfferedCouriers) != 5 {
		t.Fatalf("offered = %d couriers, want 5", len(confirmed.OfferedCouriers))
	}

	known := make(map[string]struct{}, len(pool))
	for _, id := range pool {
		known[id] = struct{}{}
	}
	seen := make(map[string]struct{}, len(confirmed.OfferedCouriers))
	for _, id := range confirmed.OfferedCouriers {
		if _, ok := known[id]; !ok {
			t.Fatalf("offered unknown courier %s", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("courier %s offered twice", id)
		}
		seen[id] = struct{}{}
	}

	if confirmed.OfferExpiresAt == nil {
		t.Fatal("offer expiry not set")
	}
	ttl := confirmed.OfferExpiresAt.Sub(before)
	if ttl < 23*time.Hour || ttl > 25*time.Hour {
		t.Fatalf("offer ttl = %s, want about 24h", ttl)
	}

	// one creation entry, one confirmation entry, one per offered courier
	history, err := fx.svc.RecentTracking(context.Background(), o.ID, 0)
	if err != nil {
		t.Fatalf("tracking: %v", err)
	}
	if len(history) != 7 {
		t.Fatalf("tracking entries = %d, want 7", len(history))
	}
}

func TestConfirmOffersWholePoolWhenSmall(t *testing.T) {
	fx := newOrdersFixture(t)
	fx.seedSender(t, "sender-1", "5000")
	fx.seedCouriers(t, 2)

	confirmed := fx.openOrder(t, "sender-1", "1500")
	if len(confirmed.OfferedCouriers) != 2 {
		t.Fatalf("offered = %d couriers, want 2", len(confirmed.OfferedCouriers))
	}
}

func TestConfirmGuards(t *testing.T) {
	fx := newOrdersFixture(t)
	fx.seedSender(t, "sender-1", "5000")
	fx.seedCouriers(t, 3)
	ctx := context.Background()

	unpaid := fx.createOrder(t, "sender-1", "1500")
	if _, err := fx.svc.Confirm(ctx, "sender-1", unpaid.ID); !errors.Is(err, ErrUnpaid) {
		t.Fatalf("confirm unpaid err = %v, want ErrUnpaid", err)
	}

	open := fx.openOrder(t, "sender-1", "1500")
	if _, err := fx.svc.Confirm(ctx, "sender-1", open.ID); !errors.Is(err, ErrNotPending) {
		t.Fatalf("confirm twice err = %v, want ErrNotPending", err)
	}

	foreign := fx.paidOrder(t, "sender-1", "1500")
	if _, err := fx.svc.Confirm(ctx, "sender-2", foreign.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("confirm foreign err = %v, want ErrNotFound", err)
	}
}

func TestAcceptAssignsExactlyOneWinner(t *testing.T) {
	fx := newOrdersFixture(t)
	fx.seedSender(t, "sender-1", "5000")
	couriers := fx.seedCouriers(t, 4)
	o := fx.openOrder(t, "sender-1", "1500")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []string
		conflicts int
	)
	for _, id := range couriers {
		wg.Add(1)
		go func(courierID string) {
			defer wg.Done()
			_, err := fx.svc.Accept(context.Background(), courierID, o.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, courierID)
			case errors.Is(err, ErrNotAvailable) || errors.Is(err, ErrAlreadyAssigned):
				conflicts++
			default:
				t.Errorf("accept err = %v, want conflict", err)
			}
		}(id)
	}
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("winners = %v, want exactly one", winners)
	}
	if conflicts != len(couriers)-1 {
		t.Fatalf("conflicts = %d, want %d", conflicts, len(couriers)-1)
	}

	got := fx.refresh(t, o.ID)
	if got.Status != StatusAccepted {
		t.Fatalf("status = %s, want %s", got.Status, StatusAccepted)
	}
	if got.CourierID != winners[0] {
		t.Fatalf("courier = %s, want %s", got.CourierID, winners[0])
	}
}

func TestAcceptGuards(t *testing.T) {
	fx := newOrdersFixture(t)
	fx.seedSender(t, "sender-1", "5000")
	fx.seedCouriers(t, 2)
	ctx := context.Background()

	// unconfirmed orders are not acceptable
	pending := fx.paidOrder(t, "sender-1", "1500")
	if _, err := fx.svc.Accept(ctx, "courier-1", pending.ID); !errors.Is(err, ErrNotAvailable) {
		t.Fatalf("accept pending err = %v, want ErrNotAvailable", err)
	}

	open := fx.openOrder(t, "sender-1", "1500")

	// courier account must exist
	if _, err := fx.svc.Accept(ctx, "ghost", open.ID); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("accept by ghost err = %v, want identity.ErrNotFound", err)
	}

	// courier outside the offer list is refused
	outsider := identity.User{ID: "courier-9", Email: "courier-9@example.com", Role: identity.RoleCourier, Active: true}
	if err := fx.users.Create(ctx, outsider); err != nil {
		t.Fatalf("seed outsider: %v", err)
	}
	if _, err := fx.svc.Accept(ctx, "courier-9", open.ID); !errors.Is(err, ErrNotOffered) {
		t.Fatalf("accept unoffered err = %v, want ErrNotOffered", err)
	}

	// a lapsed offer window refuses acceptance
	fx.expireOffer(t, open.ID)
	if _, err := fx.svc.Accept(ctx, "courier-1", open.ID); !errors.Is(err, ErrOfferExpired) {
		t.Fatalf("accept expired err = %v, want ErrOfferExpired", err)
	}
}

func TestRejectRemovesCourierFromOffer(t *testing.T) {
	fx := newOrdersFixture(t)
	fx.seedSender(t, "sender-1", "5000")
	fx.seedCouriers(t, 2)
	o := fx.openOrder(t, "sender-1", "1500")
	ctx := context.Background()

	if err := fx.svc.Reject(ctx, "courier-1", o.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}

	visible, err := fx.svc.Available(ctx, "courier-1")
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("rejected courier still sees %d orders", len(visible))
	}
	if _, err := fx.svc.Accept(ctx, "courier-1", o.ID); !errors.Is(err, ErrNotOffered) {
		t.Fatalf("accept after reject err = %v, want ErrNotOffered", err)
	}

	// the other courier keeps their offer
	if _, err := fx.svc.Accept(ctx, "courier-2", o.ID); err != nil {
		t.Fatalf("accept by remaining courier: %v", err)
	}

	if err := fx.svc.Reject(ctx, "courier-1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("reject missing err = %v, want ErrNotFound", err)
	}
}

func TestAvailableListsOnlyLiveOffers(t *testing.T) {
	fx := newOrdersFixture(t)
	fx.seedSender(t, "sender-1", "10000")
	fx.seedCouriers(t, 2)
	ctx := context.Background()

	offered := fx.openOrder(t, "sender-1", "1000")
	expired := fx.openOrder(t, "sender-1", "1000")
	fx.expireOffer(t, expired.ID)
	taken := fx.openOrder(t, "sender-1", "1000")
	if _, err := fx.svc.Accept(ctx, "courier-2", taken.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	fx.paidOrder(t, "sender-1", "1000") // never confirmed

	visible, err := fx.svc.Available(ctx, "courier-1")
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(visible) != 1 || visible[0].ID != offered.ID {
		t.Fatalf("available = %+v, want only the live offer", visible)
	}

	// couriers outside the offer list see nothing
	outsider := identity.User{ID: "courier-9", Email: "courier-9@example.com", Role: identity.RoleCourier, Active: true}
	if err := fx.users.Create(ctx, outsider); err != nil {
		t.Fatalf("seed outsider: %v", err)
	}
	none, err := fx.svc.Available(ctx, "courier-9")
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("outsider sees %d orders, want 0", len(none))
	}
}

func TestAdvanceWalksDeliveryChain(t *testing.T) {
	fx := newOrdersFixture(t)
	fx.seedSender(t, "sender-1", "5000")
	fx.seedCouriers(t, 1)
	o := fx.openOrder(t, "sender-1", "1500")
	ctx := context.Background()

	if _, err := fx.svc.Accept(ctx, "courier-1", o.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	picked, err := fx.svc.Advance(ctx, "courier-1", o.ID, StatusPickedUp, "Victoria Island", "Parcel collected")
	if err != nil {
		t.Fatalf("advance to picked up: %v", err)
	}
	if picked.Status != StatusPickedUp || picked.PickedUpAt == nil {
		t.Fatalf("picked up = %+v, want status and timestamp set", picked)
	}

	if _, err := fx.svc.Advance(ctx, "courier-1", o.ID, StatusInTransit, "Third Mainland Bridge", ""); err != nil {
		t.Fatalf("advance to in transit: %v", err)
	}

	delivered, err := fx.svc.Advance(ctx, "courier-1", o.ID, StatusDelivered, "Allen Avenue", "Handed to recipient")
	if err != nil {
		t.Fatalf("advance to delivered: %v", err)
	}
	if delivered.Status != StatusDelivered || delivered.DeliveredAt == nil {
		t.Fatalf("delivered = %+v, want status and timestamp set", delivered)
	}

	history, err := fx.svc.Track(ctx, "courier-1", identity.RoleCourier, o.ID)
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if history[0].Status != StatusDelivered || history[0].Location != "Allen Avenue" {
		t.Fatalf("latest entry = %+v, want the delivery", history[0])
	}
}

func TestAdvanceRefusesSkippedSteps(t *testing.T) {
	fx := newOrdersFixture(t)
	fx.seedSender(t, "sender-1", "5000")
	fx.seedCouriers(t, 2)
	o := fx.openOrder(t, "sender-1", "1500")
	ctx := context.Background()

	if _, err := fx.svc.Accept(ctx, "courier-1", o.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if _, err := fx.svc.Advance(ctx, "courier-1", o.ID, StatusDelivered, "", ""); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("skip to delivered err = %v, want ErrIllegalTransition", err)
	}
	if _, err := fx.svc.Advance(ctx, "courier-1", o.ID, StatusAccepted, "", ""); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("repeat accepted err = %v, want ErrIllegalTransition", err)
	}

	// only the assigned courier may advance
	if _, err := fx.svc.Advance(ctx, "courier-2", o.ID, StatusPickedUp, "", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign courier err = %v, want ErrNotFound", err)
	}

	if _, err := fx.svc.Advance(ctx, "courier-1", o.ID, StatusPickedUp, "", ""); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if _, err := fx.svc.Advance(ctx, "courier-1", o.ID, StatusPickedUp, "", ""); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("repeat picked up err = %v, want ErrIllegalTransition", err)
	}
}

func TestVisibilityRules(t *testing.T) {
	fx := newOrdersFixture(t)
	fx.seedSender(t, "sender-1", "5000")
	fx.seedCouriers(t, 2)
	o := fx.openOrder(t, "sender-1", "1500")
	ctx := context.Background()

	if _, err := fx.svc.Accept(ctx, "courier-1", o.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if _, err := fx.svc.Get(ctx, "sender-1", identity.RoleUser, o.ID); err != nil {
		t.Fatalf("sender get: %v", err)
	}
	if _, err := fx.svc.Get(ctx, "courier-1", identity.RoleCourier, o.ID); err != nil {
		t.Fatalf("assigned courier get: %v", err)
	}
	if _, err := fx.svc.Get(ctx, "courier-2", identity.RoleCourier, o.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("other courier get err = %v, want ErrForbidden", err)
	}
	if _, err := fx.svc.Get(ctx, "sender-2", identity.RoleUser, o.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("other sender get err = %v, want ErrForbidden", err)
	}
	if _, err := fx.svc.Track(ctx, "courier-2", identity.RoleCourier, o.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("other courier track err = %v, want ErrForbidden", err)
	}

	mine, err := fx.svc.List(ctx, "sender-1", identity.RoleUser, "")
	if err != nil {
		t.Fatalf("sender list: %v", err)
	}
	if len(mine) != 1 {
		t.Fatalf("sender list = %d orders, want 1", len(mine))
	}
	assigned, err := fx.svc.List(ctx, "courier-1", identity.RoleCourier, StatusAccepted)
	if err != nil {
		t.Fatalf("courier list: %v", err)
	}
	if len(assigned) != 1 {
		t.Fatalf("courier list = %d orders, want 1", len(assigned))
	}
}

func TestSampleCouriersDrawsWithoutReplacement(t *testing.T) {
	pool := make([]identity.User, 10)
	for i := range pool {
		pool[i] = identity.User{ID: fmt.Sprintf("c%d", i)}
	}

	picked := sampleCouriers(pool, 5)
	if len(picked) != 5 {
		t.Fatalf("picked = %d, want 5", len(picked))
	}
	seen := make(map[string]struct{}, len(picked))
	for _, u := range picked {
		if _, dup := seen[u.ID]; dup {
			t.Fatalf("courier %s drawn twice", u.ID)
		}
		seen[u.ID] = struct{}{}
	}

	small := pool[:3]
	if got := sampleCouriers(small, 5); len(got) != 3 {
		t.Fatalf("small pool picked = %d, want all 3", len(got))
	}
}
