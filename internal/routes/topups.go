package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mindhaven/mindhaven/internal/topup"
)

// RegisterTopUpRoutes wires top-up submission and listing for the
// authenticated account. Submission is rate limited.
func RegisterTopUpRoutes(r fiber.Router, h *topup.Handler, limiter fiber.Handler) {
	r.Post("/topups", limiter, h.Submit)
	r.Get("/topups", h.ListMine)
}
