// Package webhook receives delivery events from the email provider and
// applies them to the email log.
package webhook

import (
	apphttp "capdev_portal/internal/http"
	"capdev_portal/platform/config"
	"capdev_portal/platform/logger"
)

// Module is the provider webhook module implementing http.Module.
type Module struct {
	handler *Handler
	key     string
	url     string
}

// NewModule creates the webhook module writing transitions to logs.
func NewModule(logs StatusUpdater, cfg config.MandrillConfig, log *logger.Logger) *Module {
	return &Module{
		handler: NewHandler(NewService(logs, log)),
		key:     cfg.GetMandrillWebhookKey(),
		url:     cfg.GetMandrillWebhookURL(),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts the provider webhook outside /api. The provider signs
// requests itself, so no JWT applies.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Engine.Group("/webhooks/mandrill")
	group.HEAD("", m.handler.HandleURLCheck)
	group.POST("", SignatureMiddleware(m.key, m.url), m.handler.HandleDeliveryEvents)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
