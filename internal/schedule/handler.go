package schedule

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes HTTP endpoints for availability management.
type Handler struct {
	service *Service
}

// NewHandler constructs a schedule handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type publishRequest struct {
	Date  string   `json:"date"`
	Slots []string `json:"slots"`
}

type availabilityResponse struct {
	AvailabilityID string   `json:"availability_id"`
	Date           string   `json:"date"`
	Slots          []string `json:"slots"`
}

// Free lists the unbooked slots for a date.
func (h *Handler) Free(c *fiber.Ctx) error {
	date := c.Query("date")
	if date == "" {
		return fiber.NewError(http.StatusBadRequest, "date is required")
	}

	availability, free, err := h.service.FreeSlots(c.UserContext(), date)
	switch {
	case errors.Is(err, ErrSlotExpired):
		return fiber.NewError(http.StatusBadRequest, "past dates are invalid")
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "no slots published")
	case err != nil:
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	if free == nil {
		free = []string{}
	}
	return c.JSON(availabilityResponse{AvailabilityID: availability.ID, Date: availability.Date, Slots: free})
}

// Publish creates the availability for a date.
func (h *Handler) Publish(c *fiber.Ctx) error {
	var req publishRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	availability, err := h.service.Publish(c.UserContext(), req.Date, req.Slots)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	times := make([]string, 0, len(availability.Slots))
	for _, slot := range availability.Slots {
		times = append(times, slot.Time)
	}
	return c.Status(http.StatusCreated).JSON(availabilityResponse{
		AvailabilityID: availability.ID,
		Date:           availability.Date,
		Slots:          times,
	})
}

// Delete removes an availability.
func (h *Handler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "availability not found")
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// PurgePast removes availabilities before today.
func (h *Handler) PurgePast(c *fiber.Ctx) error {
	purged, err := h.service.PurgePast(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"purged": purged})
}
