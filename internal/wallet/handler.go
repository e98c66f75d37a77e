package wallet

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mindhaven/mindhaven/internal/ledger"
)

// Handler exposes HTTP endpoints for wallet reads.
type Handler struct {
	service *Service
}

// NewHandler constructs a wallet handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type balanceResponse struct {
	Balance int64  `json:"balance"`
	AsOf    string `json:"as_of"`
}

type entryResponse struct {
	ID               string `json:"id"`
	Amount           int64  `json:"amount"`
	Direction        string `json:"direction"`
	Purpose          string `json:"purpose"`
	Status           string `json:"status"`
	ReferenceID      string `json:"reference_id"`
	ResultingBalance int64  `json:"resulting_balance"`
	CreatedAt        string `json:"created_at"`
}

// Balance returns the caller's current wallet balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	ownerID, _ := c.Locals("account_id").(string)
	if ownerID == "" {
		return fiber.NewError(http.StatusUnauthorized, "missing account")
	}

	balance, err := h.service.Balance(c.UserContext(), ownerID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(balanceResponse{Balance: balance.Amount, AsOf: balance.AsOf.Format(time.RFC3339)})
}

// Entries returns the caller's ledger history.
func (h *Handler) Entries(c *fiber.Ctx) error {
	ownerID, _ := c.Locals("account_id").(string)
	if ownerID == "" {
		return fiber.NewError(http.StatusUnauthorized, "missing account")
	}

	entries, err := h.service.Entries(c.UserContext(), ownerID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	return c.JSON(fiber.Map{"count": len(out), "entries": out})
}

func toEntryResponse(e ledger.Entry) entryResponse {
	return entryResponse{
		ID:               e.ID,
		Amount:           e.Amount,
		Direction:        e.Direction,
		Purpose:          e.Purpose,
		Status:           e.Status,
		ReferenceID:      e.ReferenceID,
		ResultingBalance: e.ResultingBalance,
		CreatedAt:        e.CreatedAt.Format(time.RFC3339),
	}
}
