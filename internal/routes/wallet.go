package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mindhaven/mindhaven/internal/wallet"
)

// RegisterWalletRoutes wires wallet endpoints for the authenticated account.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Get("/wallet/balance", h.Balance)
	r.Get("/wallet/entries", h.Entries)
}
