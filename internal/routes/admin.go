package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mindhaven/mindhaven/internal/appointment"
	"github.com/mindhaven/mindhaven/internal/schedule"
	"github.com/mindhaven/mindhaven/internal/topup"
)

// RegisterAdminRoutes wires endpoints reserved for operators: appointment
// resolution, schedule management and top-up review.
func RegisterAdminRoutes(r fiber.Router, appts *appointment.Handler, sched *schedule.Handler, topups *topup.Handler) {
	r.Patch("/appointments/:id/status", appts.UpdateStatus)
	r.Patch("/appointments/:id/meet-link", appts.SetMeetLink)

	r.Post("/schedule", sched.Publish)
	// Registered before the parameterised delete so "past" is not taken as an id.
	r.Delete("/schedule/past", sched.PurgePast)
	r.Delete("/schedule/:id", sched.Delete)

	r.Get("/topups/pending", topups.ListPending)
	r.Patch("/topups/:id/approve", topups.Approve)
	r.Patch("/topups/:id/reject", topups.Reject)
}
