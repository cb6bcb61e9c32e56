package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/contentstack/cli-sub008/internal/domain/migration"
	"github.com/contentstack/cli-sub008/internal/interfaces/http/dto"
)

// ProgressSource exposes the trackers of the current run
type ProgressSource interface {
	RunID() string
	Snapshot() []migration.ModuleProgress
}

// ProgressHandler serves live run progress
type ProgressHandler struct {
	responder
	source ProgressSource
}

// NewProgressHandler creates a new ProgressHandler
func NewProgressHandler(source ProgressSource) *ProgressHandler {
	return &ProgressHandler{source: source}
}

// GetProgress returns every module tracked in the current run
func (h *ProgressHandler) GetProgress(c *gin.Context) {
	h.ok(c, dto.NewProgressResponse(h.source.RunID(), h.source.Snapshot()))
}

// GetModuleProgress returns the progress of one module
func (h *ProgressHandler) GetModuleProgress(c *gin.Context) {
	kind := migration.EntityKind(c.Param("module"))
	for _, m := range h.source.Snapshot() {
		if m.Module == kind {
			resp := dto.NewProgressResponse(h.source.RunID(), []migration.ModuleProgress{m})
			h.ok(c, resp.Modules[0])
			return
		}
	}
	h.reject(c, dto.ErrCodeNotFound, "Module is not part of the current run")
}
