package router

import (
	"github.com/RobertHaas/AdDesk/app/controllers"
	"github.com/RobertHaas/AdDesk/internal/pkg/config"
	"github.com/RobertHaas/AdDesk/internal/pkg/constants"
	"github.com/RobertHaas/AdDesk/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
	cfg      config.Config
	payments *controllers.PaymentController
}

func NewApiRouter(cfg config.Config, payments *controllers.PaymentController) *ApiRouter {
	return &ApiRouter{cfg: cfg, payments: payments}
}

func (h *ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIRoute, limiter.New(limiter.Config{
		// The provider retries aggressively after outages; don't rate-limit
		// it into a retry storm.
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == constants.APIRoute+constants.PaymentWebhookRoute
		},
	}))

	api.Post(constants.PaymentWebhookRoute, h.payments.HandleWebhook)
	api.Get(constants.PaymentWebhookRoute, h.payments.HandleWebhookHealth)

	apiKeyAuth := middleware.APIKeyAuth(h.cfg)
	api.Get(constants.PaymentStatsRoute, apiKeyAuth, h.payments.HandleWebhookStats)
	api.Get(constants.BillingTransactionsRoute, apiKeyAuth, h.payments.HandleListTransactions)
}
