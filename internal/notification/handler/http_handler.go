// Package handler exposes the in-app notification inbox over HTTP.
package handler

import (
	"context"
	"net/http"
	"strconv"

	"capdev_portal/internal/notification/inapp"
	"capdev_portal/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxPageSize = 50

type HTTPHandler struct {
	svc *inapp.Service
}

func NewHTTPHandler(svc *inapp.Service) *HTTPHandler {
	return &HTTPHandler{svc: svc}
}

func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/unread", h.CountUnread)
	rg.PATCH("/:id/read", h.MarkRead)
	rg.PATCH("/read-all", h.MarkAllRead)
	rg.DELETE("/:id", h.Delete)
}

// List returns one page of the caller's inbox together with the unread count.
// GET /api/v1/notifications?page=&limit=
func (h *HTTPHandler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	page := queryInt(c, "page", 1)
	limit := min(queryInt(c, "limit", 20), maxPageSize)

	ctx := c.Request.Context()
	items, total, err := h.svc.List(ctx, identity.UserID(), page, limit)
	if httpkit.HandleError(c, err) {
		return
	}
	unread, err := h.svc.CountUnread(ctx, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{
		"items":  items,
		"total":  total,
		"unread": unread,
		"page":   page,
		"limit":  limit,
	})
}

// GET /api/v1/notifications/unread
func (h *HTTPHandler) CountUnread(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	count, err := h.svc.CountUnread(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"count": count})
}

// PATCH /api/v1/notifications/:id/read
func (h *HTTPHandler) MarkRead(c *gin.Context) {
	h.withNotification(c, h.svc.MarkRead)
}

// PATCH /api/v1/notifications/read-all
func (h *HTTPHandler) MarkAllRead(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	if err := h.svc.MarkAllRead(c.Request.Context(), identity.UserID()); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "ok"})
}

// DELETE /api/v1/notifications/:id
func (h *HTTPHandler) Delete(c *gin.Context) {
	h.withNotification(c, h.svc.Delete)
}

func (h *HTTPHandler) withNotification(c *gin.Context, fn func(ctx context.Context, userID, id uuid.UUID) error) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}

	if err := fn(c.Request.Context(), identity.UserID(), id); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "ok"})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}
