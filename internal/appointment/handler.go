package appointment

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mindhaven/mindhaven/internal/ledger"
	"github.com/mindhaven/mindhaven/internal/schedule"
)

// Handler exposes HTTP endpoints for booking and appointment administration.
type Handler struct {
	service *Service
}

// NewHandler constructs an appointment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type bookRequest struct {
	AvailabilityID string `json:"availability_id"`
	Time           string `json:"time"`
	TherapyType    string `json:"therapy_type"`
	SessionType    string `json:"session_type"`
	Notes          string `json:"notes"`
	PayFromWallet  bool   `json:"pay_from_wallet"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type meetLinkRequest struct {
	MeetLink string `json:"meet_link"`
}

type appointmentResponse struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	TherapyType string `json:"therapy_type"`
	SessionType string `json:"session_type"`
	Paid        bool   `json:"paid"`
	Price       int64  `json:"price"`
	Status      string `json:"status"`
	MeetLink    string `json:"meet_link,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// Book books a session for the authenticated account.
func (h *Handler) Book(c *fiber.Ctx) error {
	accountID, _ := c.Locals("account_id").(string)
	if accountID == "" {
		return fiber.NewError(http.StatusUnauthorized, "missing account")
	}

	var req bookRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	appointment, err := h.service.Book(c.UserContext(), BookInput{
		AccountID:      accountID,
		AvailabilityID: req.AvailabilityID,
		Time:           req.Time,
		TherapyType:    req.TherapyType,
		SessionType:    req.SessionType,
		Notes:          req.Notes,
		PayFromWallet:  req.PayFromWallet,
	})
	if err != nil {
		switch {
		case errors.Is(err, schedule.ErrSlotUnavailable):
			return fiber.NewError(http.StatusConflict, "slot is no longer available or already booked")
		case errors.Is(err, schedule.ErrSlotExpired):
			return fiber.NewError(http.StatusBadRequest, "slot is expired")
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return fiber.NewError(http.StatusBadRequest, "insufficient wallet balance")
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(toResponse(appointment))
}

// ListMine returns the caller's appointments.
func (h *Handler) ListMine(c *fiber.Ctx) error {
	accountID, _ := c.Locals("account_id").(string)
	if accountID == "" {
		return fiber.NewError(http.StatusUnauthorized, "missing account")
	}

	appointments, err := h.service.ListMine(c.UserContext(), accountID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	out := make([]appointmentResponse, 0, len(appointments))
	for _, a := range appointments {
		out = append(out, toResponse(a))
	}
	return c.JSON(fiber.Map{"count": len(out), "appointments": out})
}

// UpdateStatus finalizes an appointment (admin).
func (h *Handler) UpdateStatus(c *fiber.Ctx) error {
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	appointment, err := h.service.UpdateStatus(c.UserContext(), c.Params("id"), req.Status)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "appointment not found")
		case errors.Is(err, ErrAlreadyFinalized):
			return fiber.NewError(http.StatusConflict, "appointment already finalized")
		case errors.Is(err, ErrInvalidStatus):
			return fiber.NewError(http.StatusBadRequest, "status must be rejected or completed")
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}

	return c.JSON(toResponse(appointment))
}

// SetMeetLink updates the appointment's video-call link (admin).
func (h *Handler) SetMeetLink(c *fiber.Ctx) error {
	var req meetLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	appointment, err := h.service.SetMeetLink(c.UserContext(), c.Params("id"), req.MeetLink)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "appointment not found")
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(toResponse(appointment))
}

func toResponse(a Appointment) appointmentResponse {
	return appointmentResponse{
		ID:          a.ID,
		Date:        a.Date,
		Time:        a.Time,
		TherapyType: a.TherapyType,
		SessionType: a.SessionType,
		Paid:        a.Paid,
		Price:       a.Price,
		Status:      a.Status,
		MeetLink:    a.MeetLink,
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
	}
}
