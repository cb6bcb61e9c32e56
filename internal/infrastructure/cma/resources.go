package cma

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/contentstack/cli-sub008/internal/domain/migration"
)

// Role is a stack role
type Role struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

// Installation is a marketplace app installed on the target
type Installation struct {
	UID      string `json:"uid"`
	Manifest struct {
		UID  string `json:"uid"`
		Name string `json:"name"`
	} `json:"manifest"`
	Target struct {
		UID  string `json:"uid"`
		Type string `json:"type"`
	} `json:"target"`
}

// InstallResult is the response of an app install
type InstallResult struct {
	InstallationUID string `json:"installation_uid"`
	RedirectTo      string `json:"redirect_to,omitempty"`
	RedirectURI     string `json:"redirect_uri,omitempty"`
}

// create posts {wrap: rec} and returns the created entity from {wrap: ...}
func (c *Client) create(ctx context.Context, path, wrap string, rec migration.Record) (migration.Record, error) {
	return c.write(ctx, http.MethodPost, path, wrap, rec)
}

func (c *Client) write(ctx context.Context, method, path, wrap string, rec migration.Record) (migration.Record, error) {
	var resp map[string]migration.Record
	err := c.do(ctx, request{method: method, path: path, body: map[string]any{wrap: rec}}, &resp)
	if err != nil {
		return migration.Record{}, err
	}
	out, ok := resp[wrap]
	if !ok {
		return migration.Record{}, fmt.Errorf("response has no %q object", wrap)
	}
	return out, nil
}

// CreateEnvironment creates an environment
func (c *Client) CreateEnvironment(ctx context.Context, rec migration.Record) (migration.Record, error) {
	return c.create(ctx, "/v3/environments", "environment", rec)
}

// CreateLabel creates a label
func (c *Client) CreateLabel(ctx context.Context, rec migration.Record) (migration.Record, error) {
	return c.create(ctx, "/v3/labels", "label", rec)
}

// UpdateLabel replaces a label on the target
func (c *Client) UpdateLabel(ctx context.Context, uid string, rec migration.Record) (migration.Record, error) {
	return c.write(ctx, http.MethodPut, "/v3/labels/"+url.PathEscape(uid), "label", rec)
}

// ListLabels returns every label of the target stack
func (c *Client) ListLabels(ctx context.Context) ([]migration.Record, error) {
	var resp struct {
		Labels []migration.Record `json:"labels"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/v3/labels"}, &resp); err != nil {
		return nil, err
	}
	return resp.Labels, nil
}

// CreateWebhook creates a webhook
func (c *Client) CreateWebhook(ctx context.Context, rec migration.Record) (migration.Record, error) {
	return c.create(ctx, "/v3/webhooks", "webhook", rec)
}

// CreateWorkflow creates a workflow
func (c *Client) CreateWorkflow(ctx context.Context, rec migration.Record) (migration.Record, error) {
	return c.create(ctx, "/v3/workflows", "workflow", rec)
}

// ListRoles returns every role of the target stack
func (c *Client) ListRoles(ctx context.Context) ([]Role, error) {
	var resp struct {
		Roles []Role `json:"roles"`
	}
	q := url.Values{"include_rules": {"false"}}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/v3/roles", query: q}, &resp); err != nil {
		return nil, err
	}
	return resp.Roles, nil
}

// ImportTaxonomy uploads a taxonomy export (taxonomy plus terms) as a file
func (c *Client) ImportTaxonomy(ctx context.Context, uid string, export []byte) (migration.Record, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("taxonomy", uid+".json")
	if err != nil {
		return migration.Record{}, err
	}
	if _, err := part.Write(export); err != nil {
		return migration.Record{}, err
	}
	if err := w.Close(); err != nil {
		return migration.Record{}, err
	}

	var resp struct {
		Taxonomy migration.Record `json:"taxonomy"`
	}
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/v3/taxonomies/import",
		raw:         buf.Bytes(),
		contentType: w.FormDataContentType(),
	}, &resp)
	if err != nil {
		return migration.Record{}, err
	}
	return resp.Taxonomy, nil
}

// ListInstallations returns the apps installed on the target stack
func (c *Client) ListInstallations(ctx context.Context) ([]Installation, error) {
	var out []Installation
	const limit = 50
	for skip := 0; ; skip += limit {
		var resp struct {
			Data  []Installation `json:"data"`
			Count int            `json:"count"`
		}
		q := url.Values{
			"target_uids": {c.apiKey},
			"limit":       {strconv.Itoa(limit)},
			"skip":        {strconv.Itoa(skip)},
		}
		if err := c.do(ctx, request{method: http.MethodGet, path: "/installations", query: q, apps: true}, &resp); err != nil {
			return nil, err
		}
		out = append(out, resp.Data...)
		if len(resp.Data) < limit || (resp.Count > 0 && len(out) >= resp.Count) {
			return out, nil
		}
	}
}

// InstallApp installs an app manifest on the target stack
func (c *Client) InstallApp(ctx context.Context, manifestUID, targetType string) (InstallResult, error) {
	if targetType == "" {
		targetType = "stack"
	}
	target := c.apiKey
	if targetType == "organization" {
		target = c.orgUID
	}
	var resp struct {
		Data InstallResult `json:"data"`
	}
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/manifests/" + url.PathEscape(manifestUID) + "/install",
		body:   map[string]string{"target_type": targetType, "target_uid": target},
		apps:   true,
	}, &resp)
	return resp.Data, err
}

// UpdateInstallationConfig stores configuration on an installation. Nil
// values are left out.
func (c *Client) UpdateInstallationConfig(ctx context.Context, installationUID string, configuration, serverConfiguration any) error {
	body := map[string]any{}
	if configuration != nil {
		body["configuration"] = configuration
	}
	if serverConfiguration != nil {
		body["server_configuration"] = serverConfiguration
	}
	return c.do(ctx, request{
		method: http.MethodPut,
		path:   "/installations/" + url.PathEscape(installationUID),
		body:   body,
		apps:   true,
	}, nil)
}
