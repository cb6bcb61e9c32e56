package cma

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/contentstack/cli-sub008/internal/domain/migration"
	"github.com/contentstack/cli-sub008/internal/infrastructure/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(config.TargetConfig{
		BaseURL:         srv.URL,
		AppsBaseURL:     srv.URL + "/apps",
		APIKey:          "blt_key",
		ManagementToken: "cs_token",
		Branch:          "main",
		OrgUID:          "org1",
	},
		WithRetryConfig(RetryConfig{MaxRetries: 2, RetryDelay: time.Millisecond, Multiplier: 1}),
		WithLogger(zaptest.NewLogger(t)),
	)
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(config.TargetConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base URL is required")
}

func TestClient_CreateLabel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v3/labels", r.URL.Path)
		assert.Equal(t, "blt_key", r.Header.Get("api_key"))
		assert.Equal(t, "cs_token", r.Header.Get("authorization"))
		assert.Equal(t, "main", r.Header.Get("branch"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Blog", body["label"]["name"])
		assert.Equal(t, "old_uid", body["label"]["uid"])

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"notice":"Label created","label":{"uid":"new_uid","name":"Blog"}}`)
	})

	out, err := c.CreateLabel(context.Background(), migration.NewRecord("old_uid", map[string]any{"name": "Blog"}))
	require.NoError(t, err)
	assert.Equal(t, "new_uid", out.UID)
	assert.Equal(t, "Blog", out.String("name"))
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantConflict bool
		wantMessage  string
	}{
		{
			name:         "conflict status",
			status:       http.StatusConflict,
			body:         `{"error_message":"Conflict"}`,
			wantConflict: true,
		},
		{
			name:         "not unique field",
			status:       http.StatusUnprocessableEntity,
			body:         `{"error_message":"Environment creation failed.","error_code":247,"errors":{"name":["is not unique."]}}`,
			wantConflict: true,
			wantMessage:  "name: is not unique.",
		},
		{
			name:         "already exists message",
			status:       http.StatusUnprocessableEntity,
			body:         `{"error_message":"Webhook with this name already exists."}`,
			wantConflict: true,
		},
		{
			name:        "validation failure",
			status:      http.StatusUnprocessableEntity,
			body:        `{"error_message":"Invalid","errors":{"destinations":["is required"]}}`,
			wantMessage: "destinations: is required",
		},
		{
			name:        "plain text body",
			status:      http.StatusBadRequest,
			body:        `bad request`,
			wantMessage: "bad request",
		},
		{
			name:        "apps message field",
			status:      http.StatusForbidden,
			body:        `{"message":"forbidden"}`,
			wantMessage: "forbidden",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := c.CreateWebhook(context.Background(), migration.NewRecord("w1", nil))
			require.Error(t, err)

			apiErr, ok := AsAPIError(err)
			require.True(t, ok)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.wantConflict, IsConflict(err))
			if tt.wantMessage != "" {
				assert.Contains(t, err.Error(), tt.wantMessage)
			}
		})
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"name":"Prod"`, "body must be resent on retry")
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `{"environment":{"uid":"env_new","name":"Prod"}}`)
	})

	out, err := c.CreateEnvironment(context.Background(), migration.NewRecord("env_old", map[string]any{"name": "Prod"}))
	require.NoError(t, err)
	assert.Equal(t, "env_new", out.UID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.CreateWorkflow(context.Background(), migration.NewRecord("wf", nil))
	require.Error(t, err)
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := c.CreateLabel(context.Background(), migration.NewRecord("l", nil))
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c.retry.RetryDelay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.CreateLabel(ctx, migration.NewRecord("l", nil))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_ListRoles(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/roles", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = io.WriteString(w, `{"roles":[{"uid":"r1","name":"Developer"},{"uid":"r2","name":"Admin"}]}`)
	})

	roles, err := c.ListRoles(context.Background())
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, Role{UID: "r2", Name: "Admin"}, roles[1])
}

func TestClient_ListLabels(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/labels", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = io.WriteString(w, `{"labels":[{"uid":"t1","name":"Parent","parent":[]}]}`)
	})

	labels, err := c.ListLabels(context.Background())
	require.NoError(t, err)
	require.Len(t, labels, 1)
	assert.Equal(t, "t1", labels[0].UID)
	assert.Equal(t, "Parent", labels[0].Name())
}

func TestClient_UpdateLabel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/v3/labels/new_child", r.URL.Path)
		_, _ = io.WriteString(w, `{"label":{"uid":"new_child","parent":["new_parent"]}}`)
	})

	out, err := c.UpdateLabel(context.Background(), "new_child",
		migration.NewRecord("new_child", map[string]any{"parent": []string{"new_parent"}}))
	require.NoError(t, err)
	assert.Equal(t, []any{"new_parent"}, out.Fields["parent"])
}

func TestClient_ImportTaxonomy(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/taxonomies/import", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, hdr, err := r.FormFile("taxonomy")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "tx1.json", hdr.Filename)
		data, _ := io.ReadAll(f)
		assert.JSONEq(t, `{"taxonomy":{"uid":"tx1","name":"Regions"},"terms":[]}`, string(data))

		_, _ = io.WriteString(w, `{"taxonomy":{"uid":"tx1","name":"Regions","terms_count":0}}`)
	})

	out, err := c.ImportTaxonomy(context.Background(), "tx1",
		[]byte(`{"taxonomy":{"uid":"tx1","name":"Regions"},"terms":[]}`))
	require.NoError(t, err)
	assert.Equal(t, "tx1", out.UID)
}

func TestClient_Apps(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "org1", r.Header.Get("organization_uid"))
		assert.Empty(t, r.Header.Get("api_key"))

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/apps/installations":
			assert.Equal(t, "blt_key", r.URL.Query().Get("target_uids"))
			_, _ = io.WriteString(w, `{"data":[{"uid":"inst1","manifest":{"uid":"m1","name":"Slack"}}],"count":1}`)
		case r.Method == http.MethodPost && r.URL.Path == "/apps/manifests/m2/install":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, map[string]string{"target_type": "stack", "target_uid": "blt_key"}, body)
			_, _ = io.WriteString(w, `{"data":{"installation_uid":"inst2"}}`)
		case r.Method == http.MethodPut && r.URL.Path == "/apps/installations/inst2":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, map[string]any{"configuration": map[string]any{"token": "x"}}, body)
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	installs, err := c.ListInstallations(ctx)
	require.NoError(t, err)
	require.Len(t, installs, 1)
	assert.Equal(t, "m1", installs[0].Manifest.UID)

	res, err := c.InstallApp(ctx, "m2", "")
	require.NoError(t, err)
	assert.Equal(t, "inst2", res.InstallationUID)

	require.NoError(t, c.UpdateInstallationConfig(ctx, "inst2", map[string]any{"token": "x"}, nil))
}
