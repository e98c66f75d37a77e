package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mindhaven/mindhaven/internal/appointment"
)

// RegisterAppointmentRoutes wires booking endpoints for the authenticated account.
func RegisterAppointmentRoutes(r fiber.Router, h *appointment.Handler) {
	r.Post("/appointments", h.Book)
	r.Get("/appointments", h.ListMine)
}
