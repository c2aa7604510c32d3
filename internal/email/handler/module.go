package handler

import (
	apphttp "capdev_portal/internal/http"
	"capdev_portal/platform/validator"
)

// Module mounts the admin email routes.
type Module struct {
	handler *Handler
}

func NewModule(mailer Mailer, health HealthReporter, val *validator.Validator) *Module {
	return &Module{handler: NewHandler(mailer, health, val)}
}

func (m *Module) Name() string {
	return "email"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Admin.Group("/email"))
}

var _ apphttp.Module = (*Module)(nil)
