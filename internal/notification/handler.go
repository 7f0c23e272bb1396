package notification

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the notification feed endpoints.
type Handler struct {
	store Store
}

// NewHandler constructs a notification handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// List returns the account's notifications, newest first.
func (h *Handler) List(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)

	onlyUnread := c.QueryBool("unread")
	limit := c.QueryInt("limit", 50)

	items, err := h.store.List(c.UserContext(), uid, onlyUnread, limit)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []Notification{}
	}
	return c.JSON(fiber.Map{"notifications": items, "count": len(items)})
}

// UnreadCount returns how many notifications the account has not read yet.
func (h *Handler) UnreadCount(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)

	count, err := h.store.UnreadCount(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"unread_count": count})
}

// MarkRead flags one notification as read.
func (h *Handler) MarkRead(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)

	if err := h.store.MarkRead(c.UserContext(), uid, c.Params("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "notification not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"message": "notification marked as read"})
}

// MarkAllRead flags every unread notification as read.
func (h *Handler) MarkAllRead(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)

	changed, err := h.store.MarkAllRead(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"message": "notifications marked as read", "updated": changed})
}
