package identity

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// Handler exposes identity endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"required,min=9,max=20"`
	Password    string `json:"password" validate:"required,min=8"`
	FullName    string `json:"full_name" validate:"required"`
	Role        string `json:"role" validate:"omitempty,oneof=USER COURIER"`
	VehicleType string `json:"vehicle_type"`
}

type userResponse struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	FullName       string     `json:"full_name"`
	Role           string     `json:"role"`
	PhoneVerified  bool       `json:"phone_verified"`
	Available      bool       `json:"is_available,omitempty"`
	ApprovalStatus string     `json:"approval_status,omitempty"`
	VehicleType    string     `json:"vehicle_type,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
}

func toResponse(user User) userResponse {
	resp := userResponse{
		ID:             user.ID,
		Email:          user.Email,
		Phone:          user.Phone,
		FullName:       user.FullName,
		Role:           user.Role,
		PhoneVerified:  user.PhoneVerified,
		Available:      user.Available,
		ApprovalStatus: user.ApprovalStatus,
		VehicleType:    user.VehicleType,
		CreatedAt:      user.CreatedAt,
	}
	if !user.LastLogin.IsZero() {
		last := user.LastLogin
		resp.LastLogin = &last
	}
	return resp
}

// Register handles account onboarding.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	user, err := h.service.Register(c.UserContext(), Registration{
		Email:       req.Email,
		Phone:       req.Phone,
		Password:    req.Password,
		FullName:    req.FullName,
		Role:        req.Role,
		VehicleType: req.VehicleType,
	})
	if err != nil {
		if errors.Is(err, ErrExists) {
			return fiber.NewError(http.StatusConflict, "email or phone already registered")
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toResponse(user))
}

// Me returns the authenticated account's profile.
func (h *Handler) Me(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)

	user, err := h.service.Profile(c.UserContext(), uid)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "user not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(toResponse(user))
}

type availabilityRequest struct {
	Available bool `json:"is_available"`
}

// SetAvailability flips the courier duty flag.
func (h *Handler) SetAvailability(c *fiber.Ctx) error {
	var req availabilityRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	if err := h.service.SetAvailability(c.UserContext(), uid, req.Available); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "user not found")
		case errors.Is(err, ErrNotCourier):
			return fiber.NewError(http.StatusForbidden, "only couriers can set availability")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(fiber.Map{"is_available": req.Available})
}
