// Package factsheet defines the shared project record that agents read and
// extend as a run progresses.
package factsheet

import (
	"encoding/json"
	"fmt"
)

// ProjectScope is the architect's view of what the project needs.
type ProjectScope struct {
	IsCRUDRequired         bool `json:"is_crud_required"`
	IsUserLoginAndLogout   bool `json:"is_user_login_and_logout"`
	IsExternalURLsRequired bool `json:"is_external_urls_required"`
}

// RouteObject describes one REST endpoint found in generated code.
type RouteObject struct {
	Route          string          `json:"route"`
	Method         string          `json:"method"`
	IsRouteDynamic json.RawMessage `json:"is_route_dynamic"`
	RequestBody    json.RawMessage `json:"request_body"`
	Response       json.RawMessage `json:"response"`
}

// FactSheet accumulates the output of every phase of a run. It is not safe
// for concurrent use; agents run one at a time.
type FactSheet struct {
	ProjectDescription string        `json:"project_description"`
	ProjectScope       *ProjectScope `json:"project_scope"`
	ExternalURLs       []string      `json:"external_urls"`
	BackendCode        *string       `json:"backend_code"`
	APIEndpointSchema  *string       `json:"api_endpoint_schema"`
}

// New returns a fact sheet seeded with a project description.
func New(description string) *FactSheet {
	return &FactSheet{ProjectDescription: description}
}

// SetBackendCode overwrites the backend code. The previous value is discarded.
func (f *FactSheet) SetBackendCode(code string) {
	f.BackendCode = &code
}

// SetAPIEndpointSchema overwrites the endpoint schema.
func (f *FactSheet) SetAPIEndpointSchema(schema string) {
	f.APIEndpointSchema = &schema
}

// Code returns the backend code, or "" when none has been written.
func (f *FactSheet) Code() string {
	if f.BackendCode == nil {
		return ""
	}
	return *f.BackendCode
}

// JSON renders the fact sheet for prompts and reports.
func (f *FactSheet) JSON() string {
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", *f)
	}
	return string(b)
}

// Parse decodes a fact sheet document.
func Parse(data []byte) (*FactSheet, error) {
	var f FactSheet
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fact sheet: %w", err)
	}
	return &f, nil
}

// Clone returns a deep copy, used for snapshots.
func (f *FactSheet) Clone() *FactSheet {
	c := *f
	if f.ProjectScope != nil {
		s := *f.ProjectScope
		c.ProjectScope = &s
	}
	if f.ExternalURLs != nil {
		c.ExternalURLs = append([]string(nil), f.ExternalURLs...)
	}
	if f.BackendCode != nil {
		s := *f.BackendCode
		c.BackendCode = &s
	}
	if f.APIEndpointSchema != nil {
		s := *f.APIEndpointSchema
		c.APIEndpointSchema = &s
	}
	return &c
}
