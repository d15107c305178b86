package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/RobertHaas/AdDesk/app/controllers"
	"github.com/RobertHaas/AdDesk/internal/pkg/cache"
	"github.com/RobertHaas/AdDesk/internal/pkg/config"
	"github.com/RobertHaas/AdDesk/internal/pkg/database"
	"github.com/RobertHaas/AdDesk/internal/pkg/env"
	"github.com/RobertHaas/AdDesk/internal/pkg/jobqueue"
	"github.com/RobertHaas/AdDesk/internal/pkg/mail"
	"github.com/RobertHaas/AdDesk/internal/pkg/metrics/counter"
	"github.com/RobertHaas/AdDesk/internal/pkg/notify"
	"github.com/RobertHaas/AdDesk/internal/pkg/payment"
	"github.com/RobertHaas/AdDesk/internal/pkg/router"
)

func main() {
	app, queue := NewApplication()
	defer queue.Stop()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() (*fiber.App, *jobqueue.Queue) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	cfg := config.Load()
	if cfg.WebhookSecret == "" {
		// Fail closed, but loudly: every webhook will be rejected until the
		// secret is configured.
		log.Printf("WARNING: PAYMENT_WEBHOOK_SECRET is not set, all payment webhooks will be rejected")
	}

	// Confirmations go out as email when SMTP is configured, otherwise over
	// the HTTP notification channel.
	var sender jobqueue.Sender = notify.NewDispatcher(cfg)
	if cfg.SMTPHost != "" {
		sender = mail.NewMailer(cfg)
	}
	queue := jobqueue.NewQueue(cache.GetClient(), 3)
	queue.Register(jobqueue.JobTypeNotification, jobqueue.NewNotificationProcessor(sender).ProcessJob)
	queue.Start()

	svc := payment.NewServiceFromDB(database.GetDB(), cfg)
	provider := payment.NewProviderClient(cfg)
	stats := counter.New(cache.GetClient())
	payments := controllers.NewPaymentController(cfg, svc, provider, queue, stats)

	app := fiber.New(fiber.Config{
		AppName: "AdDesk",
	})
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "admin"),
		},
	}), monitor.New())

	router.InstallRouter(app, router.NewApiRouter(cfg, payments))

	return app, queue
}
