package notification

import (
	"context"
	"net/http"

	"capdev_portal/internal/attributes"
	"capdev_portal/platform/apperr"
	"capdev_portal/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Rematch re-runs matching for one stored entity and writes the resulting
// notifications. It backs the admin replay route for entities whose
// submission event was lost.
func (m *Module) Rematch(ctx context.Context, kind attributes.EntityKind, id uuid.UUID) ([]ManifestEntry, error) {
	var (
		entity attributes.Entity
		err    error
	)
	switch kind {
	case attributes.KindRequest:
		entity, err = m.entities.GetRequest(ctx, id)
	case attributes.KindOpportunity:
		entity, err = m.entities.GetOpportunity(ctx, id)
	default:
		return nil, apperr.Validation("entity type must be request or opportunity")
	}
	if err != nil {
		return nil, err
	}
	return m.writer.NotifyForEntity(ctx, entity)
}

// POST /api/v1/admin/notifications/rematch/:kind/:id
func (m *Module) handleRematch(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}

	manifest, err := m.Rematch(c.Request.Context(), attributes.EntityKind(c.Param("kind")), id)
	if httpkit.HandleError(c, err) {
		return
	}
	if manifest == nil {
		manifest = []ManifestEntry{}
	}
	httpkit.OK(c, gin.H{"notifications": manifest, "count": len(manifest)})
}
