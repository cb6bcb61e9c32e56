package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	migrationapp "github.com/contentstack/cli-sub008/internal/application/migration"
	"github.com/contentstack/cli-sub008/internal/domain/migration"
	"github.com/contentstack/cli-sub008/internal/interfaces/http/dto"
)

// RunHistoryReader is the history service surface used by the handler
type RunHistoryReader interface {
	Get(ctx context.Context, id uuid.UUID) (*migration.RunHistory, error)
	List(ctx context.Context, filter migrationapp.ListHistoryFilter, page, pageSize int) (*migration.RunHistoryListResult, error)
}

var _ RunHistoryReader = (*migrationapp.HistoryService)(nil)

// RunHistoryHandler serves recorded module runs
type RunHistoryHandler struct {
	responder
	history RunHistoryReader
}

// NewRunHistoryHandler creates a new RunHistoryHandler
func NewRunHistoryHandler(history RunHistoryReader) *RunHistoryHandler {
	return &RunHistoryHandler{history: history}
}

// ListRuns returns module runs newest first, filtered by run, module and status
func (h *RunHistoryHandler) ListRuns(c *gin.Context) {
	var req dto.RunHistoryListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.reject(c, dto.ErrCodeBadRequest, "Invalid request parameters: "+err.Error())
		return
	}
	req.Normalize()

	filter := migrationapp.ListHistoryFilter{
		RunID:  req.RunID,
		Module: req.Module,
		Status: req.Status,
	}
	result, err := h.history.List(c.Request.Context(), filter, req.Page, req.PageSize)
	if err != nil {
		h.fail(c, err, "Failed to list runs")
		return
	}
	h.okPage(c, dto.NewRunHistoryListResponse(result.Items), result.TotalCount, req.ListRequest)
}

// GetRun returns one module run
func (h *RunHistoryHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.reject(c, dto.ErrCodeBadRequest, "Invalid run history ID")
		return
	}

	history, err := h.history.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to load run")
		return
	}
	h.ok(c, dto.NewRunHistoryResponse(history))
}
