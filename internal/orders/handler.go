package orders

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/vortex-hue/Xcellar-RestAPI/internal/identity"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/ledger"
)

var validate = validator.New()

// Handler exposes order endpoints for senders and couriers.
type Handler struct {
	service *Service
}

// NewHandler constructs the order handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createOrderRequest struct {
	PickupAddress  string   `json:"pickup_address" validate:"required"`
	PickupLat      *float64 `json:"pickup_latitude" validate:"omitempty,latitude"`
	PickupLng      *float64 `json:"pickup_longitude" validate:"omitempty,longitude"`
	DropoffAddress string   `json:"dropoff_address" validate:"required"`
	DropoffLat     *float64 `json:"dropoff_latitude" validate:"omitempty,latitude"`
	DropoffLng     *float64 `json:"dropoff_longitude" validate:"omitempty,longitude"`

	RecipientName        string `json:"recipient_name" validate:"required"`
	RecipientEmail       string `json:"recipient_email" validate:"omitempty,email"`
	RecipientPhone       string `json:"recipient_phone" validate:"required,min=9,max=20"`
	RecipientAltPhone    string `json:"recipient_alternate_phone" validate:"omitempty,min=9,max=20"`
	DeliveryInstructions string `json:"delivery_instructions"`
	RequireSignature     bool   `json:"require_recipient_signature"`

	ParcelType        string          `json:"parcel_type" validate:"required,oneof=FOOD ELECTRONICS DOCUMENTS CLOTHING PERSONAL_ITEMS MEDICINE OTHER"`
	ParcelDescription string          `json:"parcel_description" validate:"required"`
	ParcelCondition   string          `json:"parcel_condition" validate:"required"`
	ParcelQuantity    int             `json:"parcel_quantity" validate:"omitempty,min=1"`
	ParcelWeightKG    decimal.Decimal `json:"parcel_weight_kg"`
	ParcelWorth       decimal.Decimal `json:"parcel_financial_worth"`
	ParcelImages      []string        `json:"parcel_images" validate:"max=5"`

	DeliveryFee   decimal.Decimal `json:"delivery_fee"`
	ServiceCharge decimal.Decimal `json:"service_charge"`
	InsuranceFee  decimal.Decimal `json:"insurance_fee"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// Create records a new parcel order for the sender.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	o, err := h.service.Create(c.UserContext(), uid, CreateInput{
		PickupAddress:  req.PickupAddress,
		PickupLat:      req.PickupLat,
		PickupLng:      req.PickupLng,
		DropoffAddress: req.DropoffAddress,
		DropoffLat:     req.DropoffLat,
		DropoffLng:     req.DropoffLng,

		RecipientName:        req.RecipientName,
		RecipientEmail:       req.RecipientEmail,
		RecipientPhone:       req.RecipientPhone,
		RecipientAltPhone:    req.RecipientAltPhone,
		DeliveryInstructions: req.DeliveryInstructions,
		RequireSignature:     req.RequireSignature,

		ParcelType:        req.ParcelType,
		ParcelDescription: req.ParcelDescription,
		ParcelCondition:   req.ParcelCondition,
		ParcelQuantity:    req.ParcelQuantity,
		ParcelWeightKG:    req.ParcelWeightKG,
		ParcelWorth:       req.ParcelWorth,
		ParcelImages:      req.ParcelImages,

		DeliveryFee:   req.DeliveryFee,
		ServiceCharge: req.ServiceCharge,
		InsuranceFee:  req.InsuranceFee,
		TotalAmount:   req.TotalAmount,
	})
	if err != nil {
		return mapOrderError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"order": o})
}

// Pay settles the order total from the sender's wallet balance.
func (h *Handler) Pay(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)

	o, err := h.service.Pay(c.UserContext(), uid, c.Params("id"))
	if err != nil {
		return mapOrderError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"order": o})
}

// Confirm opens a paid order to couriers.
func (h *Handler) Confirm(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)

	o, err := h.service.Confirm(c.UserContext(), uid, c.Params("id"))
	if err != nil {
		return mapOrderError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"order": o})
}

// List returns the caller's orders.
func (h *Handler) List(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	role, _ := c.Locals("role").(string)

	items, err := h.service.List(c.UserContext(), uid, role, c.Query("status"))
	if err != nil {
		return mapOrderError(err)
	}
	if items == nil {
		items = []Order{}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"orders": items})
}

// Detail returns one order with its recent tracking history.
func (h *Handler) Detail(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	role, _ := c.Locals("role").(string)

	o, err := h.service.Get(c.UserContext(), uid, role, c.Params("id"))
	if err != nil {
		return mapOrderError(err)
	}
	history, err := h.service.RecentTracking(c.UserContext(), o.ID, 10)
	if err != nil {
		return mapOrderError(err)
	}
	if history == nil {
		history = []TrackingEntry{}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"order": o, "tracking_history": history})
}

// Track returns the order's full tracking history.
func (h *Handler) Track(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	role, _ := c.Locals("role").(string)

	history, err := h.service.Track(c.UserContext(), uid, role, c.Params("id"))
	if err != nil {
		return mapOrderError(err)
	}
	if history == nil {
		history = []TrackingEntry{}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"tracking_history": history})
}

// Available lists open offers for the authenticated courier.
func (h *Handler) Available(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)

	items, err := h.service.Available(c.UserContext(), uid)
	if err != nil {
		return mapOrderError(err)
	}
	if items == nil {
		items = []Order{}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"orders": items})
}

// Accept claims an offered order for the courier.
func (h *Handler) Accept(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)

	o, err := h.service.Accept(c.UserContext(), uid, c.Params("id"))
	if err != nil {
		return mapOrderError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"order": o})
}

// Reject takes the courier off the order's offer list.
func (h *Handler) Reject(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)

	if err := h.service.Reject(c.UserContext(), uid, c.Params("id")); err != nil {
		return mapOrderError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "order rejected"})
}

type advanceRequest struct {
	Status   string `json:"status" validate:"required,oneof=PICKED_UP IN_TRANSIT DELIVERED"`
	Location string `json:"location"`
	Notes    string `json:"notes"`
}

// Advance moves the order along the delivery progression.
func (h *Handler) Advance(c *fiber.Ctx) error {
	var req advanceRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	o, err := h.service.Advance(c.UserContext(), uid, c.Params("id"), req.Status, req.Location, req.Notes)
	if err != nil {
		return mapOrderError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"order": o})
}

// mapOrderError translates service errors to transport errors.
func mapOrderError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "order not found")
	case errors.Is(err, ErrForbidden):
		return fiber.NewError(http.StatusForbidden, "you do not have permission to access this order")
	case errors.Is(err, ErrNotPending):
		return fiber.NewError(http.StatusBadRequest, "order has already been confirmed")
	case errors.Is(err, ErrUnpaid):
		return fiber.NewError(http.StatusBadRequest, "order must be paid before it can be confirmed")
	case errors.Is(err, ErrAlreadyPaid):
		return fiber.NewError(http.StatusConflict, "order has already been paid")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, "insufficient balance")
	case errors.Is(err, ledger.ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, "amount must be greater than zero")
	case errors.Is(err, ErrNotAvailable):
		return fiber.NewError(http.StatusConflict, "this order is no longer available for acceptance")
	case errors.Is(err, ErrAlreadyAssigned):
		return fiber.NewError(http.StatusConflict, "this order has already been assigned to another courier")
	case errors.Is(err, ErrNotOffered):
		return fiber.NewError(http.StatusConflict, "this order was not offered to you")
	case errors.Is(err, ErrOfferExpired):
		return fiber.NewError(http.StatusConflict, "the offer for this order has expired")
	case errors.Is(err, ErrIllegalTransition):
		return fiber.NewError(http.StatusConflict, "invalid status transition")
	case errors.Is(err, identity.ErrNotFound):
		return fiber.NewError(http.StatusUnauthorized, "account not found")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
