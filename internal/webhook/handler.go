package webhook

import (
	"encoding/json"
	"net/http"

	"capdev_portal/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// eventsField is the form field that carries the JSON event batch.
const eventsField = "mandrill_events"

// Handler handles provider webhook HTTP requests.
type Handler struct {
	service *Service
}

// NewHandler creates a new webhook handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleURLCheck answers the provider's URL check when the webhook is created.
// HEAD /webhooks/mandrill
func (h *Handler) HandleURLCheck(c *gin.Context) {
	c.Status(http.StatusOK)
}

// HandleDeliveryEvents applies a batch of delivery events.
// POST /webhooks/mandrill
func (h *Handler) HandleDeliveryEvents(c *gin.Context) {
	raw := c.PostForm(eventsField)
	if raw == "" {
		httpkit.Error(c, http.StatusBadRequest, "missing "+eventsField, nil)
		return
	}

	var batch []DeliveryEvent
	if err := json.Unmarshal([]byte(raw), &batch); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid "+eventsField, nil)
		return
	}

	res, err := h.service.Process(c.Request.Context(), batch)
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to apply delivery events", res)
		return
	}
	httpkit.OK(c, res)
}
