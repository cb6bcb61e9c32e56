package migration

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Typed views of exported records. A view carries only the fields the
// importer reads or rewrites; Merge writes it back over the original record
// so unknown fields still reach the target.

// Environment is a publishing environment
type Environment struct {
	UID  string           `json:"uid" validate:"required"`
	Name string           `json:"name" validate:"required,max=100"`
	URLs []EnvironmentURL `json:"urls,omitempty" validate:"dive"`
}

// EnvironmentURL is the base URL of an environment for one locale
type EnvironmentURL struct {
	Locale string `json:"locale" validate:"required"`
	URL    string `json:"url" validate:"omitempty,url"`
}

// Label groups content types. Parent holds source label uids.
type Label struct {
	UID          string   `json:"uid" validate:"required"`
	Name         string   `json:"name" validate:"required,max=100"`
	Parent       []string `json:"parent,omitempty"`
	ContentTypes []string `json:"content_types,omitempty"`
}

// Webhook delivers entity events to external endpoints
type Webhook struct {
	UID          string               `json:"uid" validate:"required"`
	Name         string               `json:"name" validate:"required,max=100"`
	Destinations []WebhookDestination `json:"destinations" validate:"required,min=1,dive"`
	Channels     []string             `json:"channels" validate:"required,min=1"`
	Branches     []string             `json:"branches,omitempty"`
	RetryPolicy  string               `json:"retry_policy,omitempty" validate:"omitempty,oneof=manual automatic"`
	Disabled     bool                 `json:"disabled"`
	ConciseMode  bool                 `json:"concise_payload,omitempty"`
}

// WebhookDestination is one webhook target
type WebhookDestination struct {
	TargetURL         string           `json:"target_url" validate:"required,url"`
	HTTPBasicAuth     string           `json:"http_basic_auth,omitempty"`
	HTTPBasicPassword string           `json:"http_basic_password,omitempty"`
	CustomHeader      []map[string]any `json:"custom_header,omitempty"`
}

// Workflow is a publishing workflow with ordered stages
type Workflow struct {
	UID            string          `json:"uid" validate:"required"`
	Name           string          `json:"name" validate:"required,max=100"`
	Branches       []string        `json:"branches,omitempty"`
	ContentTypes   []string        `json:"content_types" validate:"required,min=1"`
	WorkflowStages []WorkflowStage `json:"workflow_stages" validate:"required,min=1,max=20,dive"`
	AdminUsers     *ACLSubjects    `json:"admin_users,omitempty"`
	Enabled        bool            `json:"enabled"`
}

// WorkflowStage is one step of a workflow
type WorkflowStage struct {
	UID                 string   `json:"uid,omitempty"`
	Name                string   `json:"name" validate:"required"`
	Color               string   `json:"color,omitempty"`
	SysACL              StageACL `json:"SYS_ACL"`
	NextAvailableStages []string `json:"next_available_stages,omitempty"`
	EntryLock           string   `json:"entry_lock,omitempty"`
	Extra               Extra    `json:"-"`
}

// UnmarshalJSON keeps the stage fields the view does not name
func (s *WorkflowStage) UnmarshalJSON(data []byte) error {
	type plain WorkflowStage
	if err := json.Unmarshal(data, (*plain)(s)); err != nil {
		return err
	}
	extra, err := decodeExtra(data, plain{})
	s.Extra = extra
	return err
}

// MarshalJSON writes the known fields and then the extra ones
func (s WorkflowStage) MarshalJSON() ([]byte, error) {
	type plain WorkflowStage
	return encodeExtra(plain(s), s.Extra)
}

// StageACL lists who may move entries into a stage
type StageACL struct {
	Roles  ACLSubjects    `json:"roles"`
	Users  ACLSubjects    `json:"users"`
	Others map[string]any `json:"others,omitempty"`
	Extra  Extra          `json:"-"`
}

// UnmarshalJSON keeps the ACL fields the view does not name
func (a *StageACL) UnmarshalJSON(data []byte) error {
	type plain StageACL
	if err := json.Unmarshal(data, (*plain)(a)); err != nil {
		return err
	}
	extra, err := decodeExtra(data, plain{})
	a.Extra = extra
	return err
}

// MarshalJSON writes the known fields and then the extra ones
func (a StageACL) MarshalJSON() ([]byte, error) {
	type plain StageACL
	return encodeExtra(plain(a), a.Extra)
}

// ACLSubjects is a uid list wrapper used by the workflow ACLs
type ACLSubjects struct {
	UIDs  []string `json:"uids"`
	Extra Extra    `json:"-"`
}

// UnmarshalJSON keeps the subject fields the view does not name
func (a *ACLSubjects) UnmarshalJSON(data []byte) error {
	type plain ACLSubjects
	if err := json.Unmarshal(data, (*plain)(a)); err != nil {
		return err
	}
	extra, err := decodeExtra(data, plain{})
	a.Extra = extra
	return err
}

// MarshalJSON writes the known fields and then the extra ones
func (a ACLSubjects) MarshalJSON() ([]byte, error) {
	type plain ACLSubjects
	return encodeExtra(plain(a), a.Extra)
}

// Taxonomy is a hierarchy of terms
type Taxonomy struct {
	UID         string `json:"uid" validate:"required"`
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description,omitempty"`
}

// Term is one node of a taxonomy
type Term struct {
	UID       string  `json:"uid" validate:"required"`
	Name      string  `json:"name" validate:"required"`
	ParentUID *string `json:"parent_uid"`
	Depth     int     `json:"depth,omitempty" validate:"min=0"`
}

// TaxonomyExport is the per-taxonomy artifact holding the taxonomy and its terms
type TaxonomyExport struct {
	Taxonomy Taxonomy `json:"taxonomy"`
	Terms    []Term   `json:"terms" validate:"dive"`
}

// MarketplaceApp is an installed marketplace application
type MarketplaceApp struct {
	UID                 string      `json:"uid" validate:"required"`
	Manifest            AppManifest `json:"manifest"`
	TargetType          string      `json:"target_type,omitempty" validate:"omitempty,oneof=stack organization"`
	Configuration       any         `json:"configuration,omitempty"`
	ServerConfiguration any         `json:"server_configuration,omitempty"`
}

// AppManifest identifies the app definition behind an installation
type AppManifest struct {
	UID        string `json:"uid" validate:"required"`
	Name       string `json:"name" validate:"required"`
	Visibility string `json:"visibility,omitempty"`
}

// Extra holds the fields of a nested object that its view does not name.
// They are written back unchanged.
type Extra map[string]any

// decodeExtra returns the keys of data that are not json fields of known
func decodeExtra(data []byte, known any) (Extra, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for _, name := range jsonNames(reflect.TypeOf(known)) {
		delete(raw, name)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return raw, nil
}

// encodeExtra marshals known and adds the extra keys it does not set
func encodeExtra(known any, extra Extra) ([]byte, error) {
	data, err := json.Marshal(known)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

func jsonNames(t reflect.Type) []string {
	names := make([]string, 0, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name == "" {
			name = f.Name
		}
		names = append(names, name)
	}
	return names
}

// DecodeView decodes a record into a typed view and validates it
func DecodeView[V any](r Record) (*V, error) {
	var v V
	if err := r.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.UID, err)
	}
	if _, err := ValidatePayload(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Merge writes the fields of view over a copy of r
func Merge(r Record, view any) (Record, error) {
	data, err := json.Marshal(view)
	if err != nil {
		return Record{}, err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return Record{}, err
	}
	out := r.Clone()
	for k, v := range fields {
		if k == "uid" {
			continue
		}
		out.Set(k, v)
	}
	return out, nil
}
