package topup

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes HTTP endpoints for the top-up workflow.
type Handler struct {
	service *Service
}

// NewHandler constructs a top-up handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type submitRequest struct {
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

type requestResponse struct {
	ID        string `json:"id"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// Submit records a top-up request for the authenticated account.
func (h *Handler) Submit(c *fiber.Ctx) error {
	accountID, _ := c.Locals("account_id").(string)
	if accountID == "" {
		return fiber.NewError(http.StatusUnauthorized, "missing account")
	}

	var req submitRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	request, err := h.service.Submit(c.UserContext(), accountID, req.Amount, req.Reference)
	if err != nil {
		if errors.Is(err, ErrDuplicateReference) {
			return fiber.NewError(http.StatusConflict, "this reference has already been submitted for verification")
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	return c.Status(http.StatusCreated).JSON(toResponse(request))
}

// ListMine returns the caller's top-up requests.
func (h *Handler) ListMine(c *fiber.Ctx) error {
	accountID, _ := c.Locals("account_id").(string)
	if accountID == "" {
		return fiber.NewError(http.StatusUnauthorized, "missing account")
	}

	requests, err := h.service.ListMine(c.UserContext(), accountID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(listPayload(requests))
}

// ListPending returns all pending requests (admin).
func (h *Handler) ListPending(c *fiber.Ctx) error {
	requests, err := h.service.ListPending(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(listPayload(requests))
}

// Approve credits a pending request (admin).
func (h *Handler) Approve(c *fiber.Ctx) error {
	request, err := h.service.Approve(c.UserContext(), c.Params("id"))
	if err != nil {
		return resolveError(err)
	}
	return c.JSON(toResponse(request))
}

// Reject refuses a pending request (admin).
func (h *Handler) Reject(c *fiber.Ctx) error {
	request, err := h.service.Reject(c.UserContext(), c.Params("id"))
	if err != nil {
		return resolveError(err)
	}
	return c.JSON(toResponse(request))
}

func resolveError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "top-up request not found")
	case errors.Is(err, ErrAlreadyProcessed):
		return fiber.NewError(http.StatusConflict, "request already processed")
	default:
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
}

func listPayload(requests []Request) fiber.Map {
	out := make([]requestResponse, 0, len(requests))
	for _, request := range requests {
		out = append(out, toResponse(request))
	}
	return fiber.Map{"count": len(out), "requests": out}
}

func toResponse(request Request) requestResponse {
	return requestResponse{
		ID:        request.ID,
		Amount:    request.Amount,
		Reference: request.Reference,
		Status:    request.Status,
		CreatedAt: request.CreatedAt.Format(time.RFC3339),
	}
}
