package handlers

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/asakaida/kanmon/internal/entities"
)

// Payload is an arbitrary JSON value (entity, entity list or filter) carried
// as a google.protobuf.Value.
type Payload struct {
	value *structpb.Value
}

// NewPayload converts v into a payload. v must be JSON encodable.
func NewPayload(v any) (*Payload, error) {
	if v == nil {
		return nil, nil
	}
	normalized, err := toJSONValue(v)
	if err != nil {
		return nil, err
	}
	value, err := structpb.NewValue(normalized)
	if err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	return &Payload{value: value}, nil
}

// MustPayload is like NewPayload but panics on error
func MustPayload(v any) *Payload {
	p, err := NewPayload(v)
	if err != nil {
		panic(err)
	}
	return p
}

// Interface returns the payload as plain Go values (maps, slices, float64 numbers)
func (p *Payload) Interface() any {
	if p == nil || p.value == nil {
		return nil
	}
	return p.value.AsInterface()
}

// Object returns the payload as a JSON object. The second value is false
// when the payload is missing or not an object.
func (p *Payload) Object() (map[string]any, bool) {
	m, ok := p.Interface().(map[string]any)
	return m, ok
}

func (p *Payload) MarshalJSON() ([]byte, error) {
	if p == nil || p.value == nil {
		return []byte("null"), nil
	}
	return protojson.Marshal(p.value)
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	value := &structpb.Value{}
	if err := protojson.Unmarshal(data, value); err != nil {
		return err
	}
	p.value = value
	return nil
}

// toJSONValue turns v into the generic shapes structpb accepts
func toJSONValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	return out, nil
}

// CheckRequest asks whether the user may perform Action on Subject.
// Subject is a content-type UID; an empty Subject checks subject-less
// permissions. Entity and Field narrow the check to one instance and field.
type CheckRequest struct {
	User    *entities.User `json:"user"`
	Action  string         `json:"action"`
	Subject string         `json:"subject,omitempty"`
	Entity  *Payload       `json:"entity,omitempty"`
	Field   string         `json:"field,omitempty"`
}

type CheckResponse struct {
	Allowed bool `json:"allowed"`
}

func (r *CheckResponse) IsAllowed() bool { return r != nil && r.Allowed }

type PermittedFieldsRequest struct {
	User    *entities.User `json:"user"`
	Action  string         `json:"action"`
	Subject string         `json:"subject"`
	Entity  *Payload       `json:"entity,omitempty"`
}

type PermittedFieldsResponse struct {
	Fields []string `json:"fields"`
}

// QueryRequest asks for the filter selecting the entities the user may access,
// combined with the caller's Filters.
type QueryRequest struct {
	User    *entities.User `json:"user"`
	Action  string         `json:"action"`
	Subject string         `json:"subject"`
	Filters *Payload       `json:"filters,omitempty"`
}

// QueryResponse carries the combined filter. Allowed is false when no
// entity is accessible, Query is then empty.
type QueryResponse struct {
	Allowed bool     `json:"allowed"`
	Query   *Payload `json:"query,omitempty"`
}

func (r *QueryResponse) IsAllowed() bool { return r != nil && r.Allowed }

// SanitizeRequest is shared by SanitizeOutput and SanitizeInput.
// Data is an entity or a list of entities.
type SanitizeRequest struct {
	User    *entities.User `json:"user"`
	Action  string         `json:"action"`
	Subject string         `json:"subject"`
	Data    *Payload       `json:"data"`
}

type SanitizeResponse struct {
	Data *Payload `json:"data"`
}

// RoleRef identifies a role by ID or, when ID is zero, by code
type RoleRef struct {
	ID   int64  `json:"id,omitempty"`
	Code string `json:"code,omitempty"`
}

type WritePermissionsRequest struct {
	Role        RoleRef               `json:"role"`
	Permissions []entities.Permission `json:"permissions"`
}

type ReadPermissionsRequest struct {
	Role RoleRef `json:"role"`
}

type PermissionsResponse struct {
	Permissions []entities.Permission `json:"permissions"`
}

type CleanPermissionsRequest struct{}

type CleanPermissionsResponse struct {
	Deleted int `json:"deleted"`
}
