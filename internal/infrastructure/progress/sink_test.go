package progress

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/contentstack/cli-sub008/internal/domain/migration"
)

func runSampleModule(t *testing.T, sink Sink, success bool) {
	t.Helper()
	tr := NewTracker(migration.EntityWebhooks, sink)
	require.NoError(t, tr.AddProcess("create", 3))
	require.NoError(t, tr.StartProcess("create", "Creating webhooks"))
	require.NoError(t, tr.Tick(true, "hook-1", "", "create"))
	require.NoError(t, tr.Tick(true, "hook-2", "", "create"))
	require.NoError(t, tr.Tick(false, "hook-3", "invalid url", "create"))
	require.NoError(t, tr.CompleteProcess("create", true))
	require.NoError(t, tr.CompleteProgress(success, ""))
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	runSampleModule(t, NewLogSink(zap.New(core)), false)

	failed := logs.FilterMessage("Item failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.WarnLevel, failed[0].Level)
	assert.Equal(t, "invalid url", failed[0].ContextMap()["error"])
	assert.Equal(t, "webhooks", failed[0].ContextMap()["module"])

	assert.Equal(t, 2, logs.FilterMessage("Item processed").Len())

	done := logs.FilterMessage("Module failed").All()
	require.Len(t, done, 1)
	assert.Equal(t, zapcore.ErrorLevel, done[0].Level)
	assert.Equal(t, int64(1), done[0].ContextMap()["failed"])
}

func TestConsoleSink(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConsoleConfig()
	cfg.Writer = &buf
	cfg.UseColors = false
	cfg.ProgressBarWidth = 10

	runSampleModule(t, NewConsoleSink(cfg), true)

	out := buf.String()
	assert.Contains(t, out, "▶ webhooks")
	assert.Contains(t, out, "✗ hook-3 invalid url")
	assert.Contains(t, out, "[██████████] 100.0%")
	assert.Contains(t, out, "2 ok, 1 failed")
	assert.Contains(t, out, "✓ done webhooks: 3 items")
	assert.NotContains(t, out, "\033[")
}

func TestConsoleSink_Colors(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConsoleConfig()
	cfg.Writer = &buf

	runSampleModule(t, NewConsoleSink(cfg), true)

	assert.Contains(t, buf.String(), "\033[")
}

func TestConsoleSink_ProgressBar(t *testing.T) {
	c := NewConsoleSink(ConsoleConfig{Writer: &bytes.Buffer{}, ProgressBarWidth: 4})
	assert.Equal(t, "[██░░]  50.0%", c.formatProgressBar(50))
	assert.Equal(t, "[████] 100.0%", c.formatProgressBar(150))
}

func TestMetricsSink(t *testing.T) {
	sink := NewMetricsSink()
	runSampleModule(t, sink, true)

	assert.Equal(t, float64(2), testutil.ToFloat64(sink.itemsTotal.WithLabelValues("webhooks", "create", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(sink.itemsTotal.WithLabelValues("webhooks", "create", "failure")))
	assert.Equal(t, float64(3), testutil.ToFloat64(sink.processTotal.WithLabelValues("webhooks", "create")))
	assert.Equal(t, float64(1), testutil.ToFloat64(sink.processCompletions.WithLabelValues("webhooks", "create", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(sink.moduleSuccess.WithLabelValues("webhooks")))

	rec := httptest.NewRecorder()
	sink.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "migrate_items_total"))
}
