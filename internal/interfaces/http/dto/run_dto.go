package dto

import (
	"time"

	"github.com/contentstack/cli-sub008/internal/domain/migration"
)

// RunHistoryListRequest holds the filters of the run history list
type RunHistoryListRequest struct {
	ListRequest
	RunID  string `form:"run_id"`
	Module string `form:"module"`
	Status string `form:"status" binding:"omitempty,oneof=pending processing completed failed"`
}

// RunHistoryResponse is one module run
type RunHistoryResponse struct {
	ID           string     `json:"id"`
	RunID        string     `json:"run_id"`
	Module       string     `json:"module"`
	Status       string     `json:"status"`
	TotalItems   int        `json:"total_items"`
	SuccessItems int        `json:"success_items"`
	SkippedItems int        `json:"skipped_items"`
	FailedItems  int        `json:"failed_items"`
	SuccessRate  float64    `json:"success_rate"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Duration     string     `json:"duration,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewRunHistoryResponse converts a domain run history
func NewRunHistoryResponse(h *migration.RunHistory) RunHistoryResponse {
	resp := RunHistoryResponse{
		ID:           h.ID.String(),
		RunID:        h.RunID,
		Module:       h.Module.String(),
		Status:       string(h.Status),
		TotalItems:   h.TotalItems,
		SuccessItems: h.SuccessItems,
		SkippedItems: h.SkippedItems,
		FailedItems:  h.FailedItems,
		SuccessRate:  h.SuccessRate(),
		ErrorMessage: h.ErrorMessage,
		StartedAt:    h.StartedAt,
		CompletedAt:  h.CompletedAt,
		CreatedAt:    h.CreatedAt,
	}
	if h.StartedAt != nil {
		resp.Duration = h.Duration().Round(time.Millisecond).String()
	}
	return resp
}

// NewRunHistoryListResponse converts a page of run histories
func NewRunHistoryListResponse(items []*migration.RunHistory) []RunHistoryResponse {
	out := make([]RunHistoryResponse, len(items))
	for i, h := range items {
		out[i] = NewRunHistoryResponse(h)
	}
	return out
}

// ProgressResponse is the live progress of the current run
type ProgressResponse struct {
	RunID   string                   `json:"run_id"`
	Modules []ModuleProgressResponse `json:"modules"`
}

// ModuleProgressResponse is the progress of one module
type ModuleProgressResponse struct {
	migration.ModuleProgress
	Total     int     `json:"total"`
	Succeeded int     `json:"succeeded"`
	Failed    int     `json:"failed"`
	Percent   float64 `json:"percent"`
}

// NewProgressResponse summarizes module progress snapshots
func NewProgressResponse(runID string, modules []migration.ModuleProgress) ProgressResponse {
	resp := ProgressResponse{RunID: runID, Modules: make([]ModuleProgressResponse, len(modules))}
	for i, m := range modules {
		total, succeeded, failed := m.Totals()
		percent := 0.0
		if total > 0 {
			percent = float64(succeeded+failed) / float64(total) * 100
		}
		resp.Modules[i] = ModuleProgressResponse{
			ModuleProgress: m,
			Total:          total,
			Succeeded:      succeeded,
			Failed:         failed,
			Percent:        percent,
		}
	}
	return resp
}
