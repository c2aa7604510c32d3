package preferences

import (
	"net/http"

	"capdev_portal/platform/httpkit"
	"capdev_portal/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid id"
)

type saveRequest struct {
	AttributeType            string `json:"attributeType" validate:"required"`
	AttributeValue           string `json:"attributeValue" validate:"required,max=255"`
	NotificationEnabled      *bool  `json:"notificationEnabled"`
	EmailNotificationEnabled *bool  `json:"emailNotificationEnabled"`
}

type dimension struct {
	Type        AttributeType `json:"type"`
	DisplayName string        `json:"displayName"`
	MultiValued bool          `json:"multiValued"`
}

type HTTPHandler struct {
	svc *Service
	val *validator.Validator
}

func NewHTTPHandler(svc *Service, val *validator.Validator) *HTTPHandler {
	return &HTTPHandler{svc: svc, val: val}
}

func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/types", h.Types)
	rg.PUT("", h.Save)
	rg.DELETE("/:id", h.Delete)
}

// List returns the caller's preferences.
// GET /api/v1/preferences
func (h *HTTPHandler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	items, err := h.svc.List(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": items})
}

// Types lists the matchable dimensions.
// GET /api/v1/preferences/types
func (h *HTTPHandler) Types(c *gin.Context) {
	out := make([]dimension, 0, len(Dimensions))
	for _, d := range Dimensions {
		out = append(out, dimension{Type: d, DisplayName: d.DisplayName(), MultiValued: d.MultiValued()})
	}
	httpkit.OK(c, gin.H{"items": out})
}

// Save creates or updates one preference.
// PUT /api/v1/preferences
func (h *HTTPHandler) Save(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldMessages(err))
		return
	}

	pref, err := h.svc.Save(c.Request.Context(), identity.UserID(), SaveInput{
		AttributeType:            req.AttributeType,
		AttributeValue:           req.AttributeValue,
		NotificationEnabled:      req.NotificationEnabled,
		EmailNotificationEnabled: req.EmailNotificationEnabled,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, pref)
}

// Delete removes one of the caller's preferences.
// DELETE /api/v1/preferences/:id
func (h *HTTPHandler) Delete(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	if err := h.svc.Remove(c.Request.Context(), identity.UserID(), id); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "ok"})
}
