package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/unireg-api/internal/service"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
	"github.com/noah-isme/unireg-api/pkg/response"
)

// SnapshotHandler wires HTTP endpoints to the snapshot service.
type SnapshotHandler struct {
	service *service.SnapshotService
}

// NewSnapshotHandler creates a new handler.
func NewSnapshotHandler(svc *service.SnapshotService) *SnapshotHandler {
	return &SnapshotHandler{service: svc}
}

// Save godoc
// @Summary Save a registry snapshot
// @Description Capture departments, persons and courses to the snapshot file. Registrations are not included.
// @Tags Snapshots
// @Produce json
// @Success 202 {object} response.Envelope
// @Router /snapshots [post]
func (h *SnapshotHandler) Save(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	snapshot, err := h.service.Save(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Result(c, http.StatusAccepted, snapshot, "Snapshot write scheduled")
}

// Restore godoc
// @Summary Restore the registry snapshot
// @Description Load the snapshot file, inserting missing records in dependency order
// @Tags Snapshots
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /snapshots/restore [post]
func (h *SnapshotHandler) Restore(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	snapshot, err := h.service.Restore(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Result(c, http.StatusOK, snapshot, "Snapshot restored")
}
