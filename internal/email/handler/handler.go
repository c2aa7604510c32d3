// Package handler exposes the admin email surface: delivery health, template
// previews and the template cache reset.
package handler

import (
	"context"
	"net/http"
	"strings"

	"capdev_portal/internal/email"
	"capdev_portal/platform/httpkit"
	"capdev_portal/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	errInvalidRequest = "invalid request body"
	errValidation     = "validation error"
)

// Mailer is the part of the email service used by the admin routes.
type Mailer interface {
	Preview(ctx context.Context, event string, rcpt email.Recipient, vars map[string]any) (email.Preview, error)
	ClearTemplateCache(ctx context.Context) error
}

// HealthReporter produces the delivery health report.
type HealthReporter interface {
	Check(ctx context.Context) email.HealthReport
}

type Handler struct {
	mailer Mailer
	health HealthReporter
	val    *validator.Validator
}

func NewHandler(mailer Mailer, health HealthReporter, val *validator.Validator) *Handler {
	return &Handler{mailer: mailer, health: health, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)
	rg.POST("/preview/:event", h.Preview)
	rg.DELETE("/templates/cache", h.ClearCache)
}

// Health reports provider, queue and log store health. Critical reports are
// served with 503 so load balancers and uptime checks can key off the status.
// GET /api/v1/admin/email/health
func (h *Handler) Health(c *gin.Context) {
	report := h.health.Check(c.Request.Context())

	status := http.StatusOK
	if report.Status == email.HealthCritical {
		status = http.StatusServiceUnavailable
	}
	httpkit.JSON(c, status, report)
}

// PreviewRequest carries the sample recipient and variables for a preview.
type PreviewRequest struct {
	Recipient struct {
		Email string `json:"email" validate:"required,email"`
		Name  string `json:"name" validate:"max=200"`
	} `json:"recipient"`
	Variables map[string]any `json:"variables"`
}

// Preview renders one event email without sending it.
// POST /api/v1/admin/email/preview/:event
func (h *Handler) Preview(c *gin.Context) {
	event := strings.TrimSpace(c.Param("event"))
	if event == "" {
		httpkit.Error(c, http.StatusBadRequest, "event is required", nil)
		return
	}

	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errValidation, validator.FieldMessages(err))
		return
	}

	preview, err := h.mailer.Preview(c.Request.Context(), event, email.Recipient{
		Email: req.Recipient.Email,
		Name:  req.Recipient.Name,
	}, req.Variables)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, preview)
}

// ClearCache drops every cached template.
// DELETE /api/v1/admin/email/templates/cache
func (h *Handler) ClearCache(c *gin.Context) {
	if err := h.mailer.ClearTemplateCache(c.Request.Context()); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "cleared"})
}
