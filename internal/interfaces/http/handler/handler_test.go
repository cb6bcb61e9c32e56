package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	migrationapp "github.com/contentstack/cli-sub008/internal/application/migration"
	"github.com/contentstack/cli-sub008/internal/domain/migration"
	"github.com/contentstack/cli-sub008/internal/interfaces/http/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockRunHistoryReader struct {
	mock.Mock
}

func (m *MockRunHistoryReader) Get(ctx context.Context, id uuid.UUID) (*migration.RunHistory, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*migration.RunHistory), args.Error(1)
}

func (m *MockRunHistoryReader) List(ctx context.Context, filter migrationapp.ListHistoryFilter, page, pageSize int) (*migration.RunHistoryListResult, error) {
	args := m.Called(ctx, filter, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*migration.RunHistoryListResult), args.Error(1)
}

type staticProgress struct {
	runID   string
	modules []migration.ModuleProgress
}

func (s staticProgress) RunID() string                        { return s.runID }
func (s staticProgress) Snapshot() []migration.ModuleProgress { return s.modules }

func serve(method, target string, register func(r *gin.Engine)) *httptest.ResponseRecorder {
	r := gin.New()
	register(r)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func newHistory(t *testing.T, module migration.EntityKind) *migration.RunHistory {
	t.Helper()
	h, err := migration.NewRunHistory("run-1", module)
	require.NoError(t, err)
	require.NoError(t, h.StartProcessing(3))
	require.NoError(t, h.Complete(migration.RunCounts{Success: 3}))
	return h
}

func TestSystemHandler_Health(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		h := NewSystemHandler("1.2.3", map[string]Pinger{
			"history": PingFunc(func(context.Context) error { return nil }),
		})
		w := serve(http.MethodGet, "/healthz", func(r *gin.Engine) { r.GET("/healthz", h.Health) })

		assert.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, "1.2.3", body["version"])
		assert.Equal(t, map[string]any{"history": "ok"}, body["checks"])
	})

	t.Run("failing check", func(t *testing.T) {
		h := NewSystemHandler("1.2.3", map[string]Pinger{
			"history": PingFunc(func(context.Context) error { return nil }),
			"mapper":  PingFunc(func(context.Context) error { return errors.New("connection refused") }),
		})
		w := serve(http.MethodGet, "/healthz", func(r *gin.Engine) { r.GET("/healthz", h.Health) })

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		body := decode(t, w)
		assert.Equal(t, "unhealthy", body["status"])
		assert.Equal(t, map[string]any{"history": "ok", "mapper": "error"}, body["checks"])
	})

	t.Run("no checks", func(t *testing.T) {
		h := NewSystemHandler("dev", nil)
		w := serve(http.MethodGet, "/healthz", func(r *gin.Engine) { r.GET("/healthz", h.Health) })
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, decode(t, w), "checks")
	})
}

func TestProgressHandler(t *testing.T) {
	source := staticProgress{
		runID: "run-1",
		modules: []migration.ModuleProgress{
			{
				Module:    migration.EntityLabels,
				StartedAt: time.Now(),
				Processes: []migration.ProcessSnapshot{{Name: "create", Total: 2, Succeeded: 2, Status: migration.ProcessCompleted}},
			},
		},
	}
	h := NewProgressHandler(source)
	register := func(r *gin.Engine) {
		r.GET("/progress", h.GetProgress)
		r.GET("/progress/:module", h.GetModuleProgress)
	}

	t.Run("all modules", func(t *testing.T) {
		w := serve(http.MethodGet, "/progress", register)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Success bool                 `json:"success"`
			Data    dto.ProgressResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "run-1", resp.Data.RunID)
		require.Len(t, resp.Data.Modules, 1)
		assert.Equal(t, migration.EntityLabels, resp.Data.Modules[0].Module)
		assert.InDelta(t, 100.0, resp.Data.Modules[0].Percent, 0.001)
	})

	t.Run("one module", func(t *testing.T) {
		w := serve(http.MethodGet, "/progress/labels", register)
		require.Equal(t, http.StatusOK, w.Code)
		data := decode(t, w)["data"].(map[string]any)
		assert.Equal(t, "labels", data["module"])
		assert.Equal(t, float64(2), data["succeeded"])
	})

	t.Run("unknown module", func(t *testing.T) {
		w := serve(http.MethodGet, "/progress/webhooks", register)
		assert.Equal(t, http.StatusNotFound, w.Code)
		errInfo := decode(t, w)["error"].(map[string]any)
		assert.Equal(t, dto.ErrCodeNotFound, errInfo["code"])
	})
}

func TestRunHistoryHandler_ListRuns(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		setup      func(m *MockRunHistoryReader)
		wantStatus int
	}{
		{
			name:  "defaults",
			query: "",
			setup: func(m *MockRunHistoryReader) {
				m.On("List", mock.Anything, migrationapp.ListHistoryFilter{}, 1, 20).
					Return(&migration.RunHistoryListResult{Items: []*migration.RunHistory{}, TotalCount: 0, Page: 1, PageSize: 20}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:  "filters",
			query: "?run_id=run-1&module=labels&status=completed&page=2&page_size=5",
			setup: func(m *MockRunHistoryReader) {
				filter := migrationapp.ListHistoryFilter{RunID: "run-1", Module: "labels", Status: "completed"}
				m.On("List", mock.Anything, filter, 2, 5).
					Return(&migration.RunHistoryListResult{TotalCount: 6, Page: 2, PageSize: 5}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "invalid status",
			query:      "?status=bogus",
			setup:      func(*MockRunHistoryReader) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "page size over limit",
			query:      "?page_size=500",
			setup:      func(*MockRunHistoryReader) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:  "service error",
			query: "",
			setup: func(m *MockRunHistoryReader) {
				m.On("List", mock.Anything, mock.Anything, 1, 20).Return(nil, errors.New("db down"))
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:  "request ended before the store answered",
			query: "",
			setup: func(m *MockRunHistoryReader) {
				m.On("List", mock.Anything, mock.Anything, 1, 20).Return(nil, context.DeadlineExceeded)
			},
			wantStatus: http.StatusServiceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := new(MockRunHistoryReader)
			tt.setup(reader)
			h := NewRunHistoryHandler(reader)

			w := serve(http.MethodGet, "/runs"+tt.query, func(r *gin.Engine) { r.GET("/runs", h.ListRuns) })

			assert.Equal(t, tt.wantStatus, w.Code)
			reader.AssertExpectations(t)
		})
	}
}

func TestRunHistoryHandler_ListRuns_HidesStoreError(t *testing.T) {
	reader := new(MockRunHistoryReader)
	reader.On("List", mock.Anything, mock.Anything, 1, 20).Return(nil, errors.New("dial tcp 10.0.0.5:5432: refused"))
	h := NewRunHistoryHandler(reader)

	w := serve(http.MethodGet, "/runs", func(r *gin.Engine) { r.GET("/runs", h.ListRuns) })

	require.Equal(t, http.StatusInternalServerError, w.Code)
	errInfo := decode(t, w)["error"].(map[string]any)
	assert.Equal(t, dto.ErrCodeInternal, errInfo["code"])
	assert.Equal(t, "Failed to list runs", errInfo["message"])
}

func TestRunHistoryHandler_ListRuns_Meta(t *testing.T) {
	reader := new(MockRunHistoryReader)
	items := []*migration.RunHistory{newHistory(t, migration.EntityLabels), newHistory(t, migration.EntityWebhooks)}
	reader.On("List", mock.Anything, migrationapp.ListHistoryFilter{}, 1, 20).
		Return(&migration.RunHistoryListResult{Items: items, TotalCount: 2, Page: 1, PageSize: 20}, nil)
	h := NewRunHistoryHandler(reader)

	w := serve(http.MethodGet, "/runs", func(r *gin.Engine) { r.GET("/runs", h.ListRuns) })

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["data"], 2)
	meta := body["meta"].(map[string]any)
	assert.Equal(t, float64(2), meta["total"])
	assert.Equal(t, float64(1), meta["total_pages"])
}

func TestRunHistoryHandler_GetRun(t *testing.T) {
	history := newHistory(t, migration.EntityWorkflows)

	t.Run("found", func(t *testing.T) {
		reader := new(MockRunHistoryReader)
		reader.On("Get", mock.Anything, history.ID).Return(history, nil)
		h := NewRunHistoryHandler(reader)

		w := serve(http.MethodGet, "/runs/"+history.ID.String(), func(r *gin.Engine) { r.GET("/runs/:id", h.GetRun) })

		require.Equal(t, http.StatusOK, w.Code)
		data := decode(t, w)["data"].(map[string]any)
		assert.Equal(t, "workflows", data["module"])
		assert.Equal(t, "completed", data["status"])
	})

	t.Run("not found", func(t *testing.T) {
		reader := new(MockRunHistoryReader)
		id := uuid.New()
		reader.On("Get", mock.Anything, id).Return(nil, migration.ErrRunNotFound)
		h := NewRunHistoryHandler(reader)

		w := serve(http.MethodGet, "/runs/"+id.String(), func(r *gin.Engine) { r.GET("/runs/:id", h.GetRun) })

		assert.Equal(t, http.StatusNotFound, w.Code)
		errInfo := decode(t, w)["error"].(map[string]any)
		assert.Equal(t, dto.ErrCodeNotFound, errInfo["code"])
	})

	t.Run("invalid id", func(t *testing.T) {
		reader := new(MockRunHistoryReader)
		h := NewRunHistoryHandler(reader)

		w := serve(http.MethodGet, "/runs/not-a-uuid", func(r *gin.Engine) { r.GET("/runs/:id", h.GetRun) })

		assert.Equal(t, http.StatusBadRequest, w.Code)
		reader.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("unexpected error", func(t *testing.T) {
		reader := new(MockRunHistoryReader)
		id := uuid.New()
		reader.On("Get", mock.Anything, id).Return(nil, errors.New("boom"))
		h := NewRunHistoryHandler(reader)

		w := serve(http.MethodGet, "/runs/"+id.String(), func(r *gin.Engine) { r.GET("/runs/:id", h.GetRun) })

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
