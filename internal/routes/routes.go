package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mindhaven/mindhaven/internal/appointment"
	"github.com/mindhaven/mindhaven/internal/config"
	"github.com/mindhaven/mindhaven/internal/ledger"
	"github.com/mindhaven/mindhaven/internal/metrics"
	"github.com/mindhaven/mindhaven/internal/middleware"
	"github.com/mindhaven/mindhaven/internal/notification"
	"github.com/mindhaven/mindhaven/internal/schedule"
	"github.com/mindhaven/mindhaven/internal/topup"
	"github.com/mindhaven/mindhaven/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg       config.Config
	DB        *pgxpool.Pool
	Cache     *redis.Client
	Logger    *slog.Logger
	Notifier  notification.Notifier
	Collector *metrics.Collector
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !isDev(d.Cfg.AppEnv) {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	if d.Collector == nil {
		d.Collector = metrics.NewCollector()
	}
	app.Get("/metrics", adaptor.HTTPHandler(d.Collector.Handler()))

	RegisterHealthRoutes(app, d)

	// Storage backends: Postgres when available, in-memory otherwise (dev).
	var ledgerStore ledger.Store
	var walletRepo wallet.Repository
	var scheduleRepo schedule.Repository
	var appointmentRepo appointment.Repository
	var topupRepo topup.Repository
	if d.DB != nil {
		ledgerStore = ledger.NewPostgresStore(d.DB)
		walletRepo = wallet.NewPostgresRepository(d.DB)
		scheduleRepo = schedule.NewPostgresRepository(d.DB)
		appointmentRepo = appointment.NewPostgresRepository(d.DB)
		topupRepo = topup.NewPostgresRepository(d.DB)
	} else {
		ledgerStore = ledger.NewInMemory()
		walletRepo = wallet.NewMemoryRepository()
		scheduleRepo = schedule.NewMemoryRepository()
		appointmentRepo = appointment.NewMemoryRepository()
		topupRepo = topup.NewMemoryRepository()
	}

	notifier := d.Notifier
	if notifier == nil {
		if len(d.Cfg.KafkaBrokers) > 0 {
			notifier = notification.NewKafkaNotifier(d.Cfg.KafkaBrokers)
		} else {
			notifier = notification.NewLoggerNotifier(d.Logger)
		}
	}

	walletSvc := wallet.NewService(walletRepo, ledgerStore)
	scheduleSvc := schedule.NewService(scheduleRepo)
	appointmentSvc := appointment.NewService(appointmentRepo, scheduleSvc, ledgerStore,
		walletSvc, notifier, d.Collector, d.Logger, d.Cfg.SessionPrice)
	topupSvc := topup.NewService(topupRepo, ledgerStore, walletSvc, notifier, d.Collector, d.Logger)

	walletHandler := wallet.NewHandler(walletSvc)
	scheduleHandler := schedule.NewHandler(scheduleSvc)
	appointmentHandler := appointment.NewHandler(appointmentSvc)
	topupHandler := topup.NewHandler(topupSvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Availability lookup is public.
	api.Get("/schedule", scheduleHandler.Free)

	jwtmw := middleware.JWTAuth(d.Cfg)
	protected := api.Group("", jwtmw)
	RegisterWalletRoutes(protected, walletHandler)
	RegisterAppointmentRoutes(protected, appointmentHandler)
	topupLimiter := middleware.RateLimit(d.Cache, "topup", 5)
	RegisterTopUpRoutes(protected, topupHandler, topupLimiter)

	admin := protected.Group("", middleware.AdminOnly())
	RegisterAdminRoutes(admin, appointmentHandler, scheduleHandler, topupHandler)

	return nil
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}
