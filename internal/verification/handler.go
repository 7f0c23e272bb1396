package verification

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// Handler exposes the phone verification endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs the verification handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type sendRequest struct {
	Phone   string `json:"phone_number" validate:"required,min=9,max=20"`
	Channel string `json:"method" validate:"omitempty,oneof=SMS WHATSAPP CALL"`
}

// Send delivers a one-time code to the phone.
func (h *Handler) Send(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	channel := req.Channel
	if channel == "" {
		channel = ChannelSMS
	}

	if err := h.service.Send(c.UserContext(), req.Phone, channel); err != nil {
		var cooldown *CooldownError
		if errors.As(err, &cooldown) {
			secs := int(cooldown.Remaining.Round(time.Second).Seconds())
			return fiber.NewError(http.StatusTooManyRequests,
				fmt.Sprintf("please wait %d seconds before requesting another code", secs))
		}
		return fiber.NewError(http.StatusBadGateway, "could not send verification code, try again later")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message":    "OTP sent successfully",
		"expires_in": int(OTPTTL.Seconds()),
		"method":     channel,
	})
}

type verifyRequest struct {
	Phone string `json:"phone_number" validate:"required"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// Verify checks a one-time code.
func (h *Handler) Verify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	if err := h.service.Verify(c.UserContext(), req.Phone, req.Code); err != nil {
		if errors.Is(err, ErrInvalidCode) {
			return fiber.NewError(http.StatusBadRequest, "invalid or expired verification code")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"verified": true,
		"message":  "Phone number verified successfully",
	})
}
