package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sellerhub/backend/internal/application/sync"
	"github.com/sellerhub/backend/internal/domain/connection"
	"github.com/sellerhub/backend/internal/interfaces/http/dto"
)

// BatchRunner is the slice of the sync orchestrator the internal
// trigger uses.
type BatchRunner interface {
	RunBatch(ctx context.Context, trigger connection.SyncTrigger) (*sync.BatchSummary, error)
}

// SyncHandler exposes the internal batch trigger used by operators and
// external schedulers. The route sits behind StaticBearerAuth.
type SyncHandler struct {
	BaseHandler
	sync BatchRunner
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(syncService BatchRunner) *SyncHandler {
	return &SyncHandler{sync: syncService}
}

// Run executes one pull batch immediately.
// POST /internal/sync/run
//
// Responds 200 when every candidate succeeded and 500 when any failed,
// so a cron wrapper can alert on the exit status alone. The summary
// body is returned either way.
func (h *SyncHandler) Run(c *gin.Context) {
	summary, err := h.sync.RunBatch(c.Request.Context(), connection.SyncTriggerManual)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	status := http.StatusOK
	if summary.Failed > 0 {
		status = http.StatusInternalServerError
	}
	c.JSON(status, dto.NewSuccessResponse(summary))
}
