package orders

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vortex-hue/Xcellar-RestAPI/internal/ledger"
)

// Order lifecycle states.
const (
	StatusPending   = "PENDING"
	StatusAvailable = "AVAILABLE"
	StatusAccepted  = "ACCEPTED"
	StatusPickedUp  = "PICKED_UP"
	StatusInTransit = "IN_TRANSIT"
	StatusDelivered = "DELIVERED"
	StatusCancelled = "CANCELLED"
)

// Payment states an order moves through.
const (
	PaymentPending = "PENDING"
	PaymentPaid    = "PAID"
	PaymentFailed  = "FAILED"
)

// Parcel categories.
const (
	ParcelFood          = "FOOD"
	ParcelElectronics   = "ELECTRONICS"
	ParcelDocuments     = "DOCUMENTS"
	ParcelClothing      = "CLOTHING"
	ParcelPersonalItems = "PERSONAL_ITEMS"
	ParcelMedicine      = "MEDICINE"
	ParcelOther         = "OTHER"
)

// courierTransitions is the fixed delivery progression a courier may drive.
// Each state has exactly one successor.
var courierTransitions = map[string]string{
	StatusAccepted:  StatusPickedUp,
	StatusPickedUp:  StatusInTransit,
	StatusInTransit: StatusDelivered,
}

// CanAdvance reports whether a courier may move the order from -> to.
func CanAdvance(from, to string) bool {
	next, ok := courierTransitions[from]
	return ok && next == to
}

// Order is one parcel delivery from creation to completion.
type Order struct {
	ID             string `json:"id"`
	OrderNumber    string `json:"order_number"`
	TrackingNumber string `json:"tracking_number"`
	SenderID       string `json:"sender_id"`
	CourierID      string `json:"assigned_courier_id,omitempty"`

	PickupAddress  string   `json:"pickup_address"`
	PickupLat      *float64 `json:"pickup_latitude,omitempty"`
	PickupLng      *float64 `json:"pickup_longitude,omitempty"`
	DropoffAddress string   `json:"dropoff_address"`
	DropoffLat     *float64 `json:"dropoff_latitude,omitempty"`
	DropoffLng     *float64 `json:"dropoff_longitude,omitempty"`

	RecipientName        string `json:"recipient_name"`
	RecipientEmail       string `json:"recipient_email,omitempty"`
	RecipientPhone       string `json:"recipient_phone"`
	RecipientAltPhone    string `json:"recipient_alternate_phone,omitempty"`
	DeliveryInstructions string `json:"delivery_instructions,omitempty"`
	RequireSignature     bool   `json:"require_recipient_signature"`

	ParcelType        string          `json:"parcel_type"`
	ParcelDescription string          `json:"parcel_description"`
	ParcelCondition   string          `json:"parcel_condition"`
	ParcelQuantity    int             `json:"parcel_quantity"`
	ParcelWeightKG    decimal.Decimal `json:"parcel_weight_kg"`
	ParcelWorth       decimal.Decimal `json:"parcel_financial_worth"`
	ParcelImages      []string        `json:"parcel_images,omitempty"`

	DeliveryFee   decimal.Decimal `json:"delivery_fee"`
	ServiceCharge decimal.Decimal `json:"service_charge"`
	InsuranceFee  decimal.Decimal `json:"insurance_fee"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentStatus string          `json:"payment_status"`
	CourierPayout decimal.Decimal `json:"courier_payout"`

	Status            string     `json:"status"`
	CurrentLocation   string     `json:"current_location,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery_time,omitempty"`

	OfferedCouriers []string   `json:"offered_to_couriers,omitempty"`
	OfferExpiresAt  *time.Time `json:"offer_expires_at,omitempty"`

	PickedUpAt  *time.Time `json:"picked_up_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Normalize quantizes the money fields and fills the total when the caller
// left it zero.
func (o *Order) Normalize() {
	o.DeliveryFee = ledger.Quantize(o.DeliveryFee)
	o.ServiceCharge = ledger.Quantize(o.ServiceCharge)
	o.InsuranceFee = ledger.Quantize(o.InsuranceFee)
	if o.TotalAmount.IsZero() {
		o.TotalAmount = o.DeliveryFee.Add(o.ServiceCharge).Add(o.InsuranceFee)
	}
	o.TotalAmount = ledger.Quantize(o.TotalAmount)
	o.CourierPayout = ledger.Quantize(o.CourierPayout)
}

// Offered reports whether the courier is on the order's current offer list.
func (o *Order) Offered(courierID string) bool {
	for _, id := range o.OfferedCouriers {
		if id == courierID {
			return true
		}
	}
	return false
}

// OfferExpired reports whether the offer window has closed.
func (o *Order) OfferExpired(now time.Time) bool {
	return o.OfferExpiresAt != nil && now.After(*o.OfferExpiresAt)
}

// TrackingEntry is one step in an order's delivery history.
type TrackingEntry struct {
	ID        string    `json:"-"`
	OrderID   string    `json:"-"`
	Status    string    `json:"status"`
	Location  string    `json:"location,omitempty"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewOrderNumber issues a human-facing order identifier.
func NewOrderNumber() string {
	id := uuid.New()
	return "ORD-" + strings.ToUpper(hex.EncodeToString(id[:])[:12])
}

// NewTrackingNumber issues a recipient-facing tracking identifier.
func NewTrackingNumber() string {
	id := uuid.New()
	return "TRK-" + strings.ToUpper(hex.EncodeToString(id[:])[:16])
}
