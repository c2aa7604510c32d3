package preferences

import (
	apphttp "capdev_portal/internal/http"
	"capdev_portal/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module wires the preference store, service and HTTP handler.
type Module struct {
	repo    *Repository
	handler *HTTPHandler
}

func NewModule(pool *pgxpool.Pool, val *validator.Validator) *Module {
	repo := NewRepository(pool)
	return &Module{
		repo:    repo,
		handler: NewHTTPHandler(NewService(repo), val),
	}
}

func (m *Module) Name() string {
	return "preferences"
}

// Repository exposes the store for the matching engine.
func (m *Module) Repository() *Repository {
	return m.repo
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/preferences"))
}
