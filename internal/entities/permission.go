package entities

import "time"

// PropertyFields is the permission property holding the list of permitted fields
const PropertyFields = "fields"

// PropertyLocales is the permission property holding the list of permitted locales
const PropertyLocales = "locales"

// Properties holds the permission properties (e.g., fields, locales)
type Properties map[string]any

// Fields returns the "fields" property.
// The second return value is false when the property is not set (no field restriction).
func (p Properties) Fields() ([]string, bool) {
	return p.stringList(PropertyFields)
}

// Locales returns the "locales" property.
func (p Properties) Locales() ([]string, bool) {
	return p.stringList(PropertyLocales)
}

func (p Properties) stringList(key string) ([]string, bool) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return nil, false
	}

	switch v := raw.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// Clone returns a deep copy of the properties
func (p Properties) Clone() Properties {
	if p == nil {
		return Properties{}
	}
	return Properties(CloneMap(p))
}

// Permission is a declarative statement: the holder may perform Action on Subject,
// restricted to Properties, only when every listed condition allows it.
// An empty Subject means the permission is not bound to a subject.
type Permission struct {
	ID         int64      `json:"id,omitempty"`
	RoleID     int64      `json:"role,omitempty"`
	Action     string     `json:"action" validate:"required"`
	Subject    string     `json:"subject,omitempty"`
	Properties Properties `json:"properties"`
	Conditions []string   `json:"conditions"`
	CreatedAt  time.Time  `json:"createdAt,omitempty"`
	UpdatedAt  time.Time  `json:"updatedAt,omitempty"`
}

// NewPermission creates a permission with default-filled properties and conditions
func NewPermission(action, subject string, properties Properties, conditions []string) Permission {
	return CreatePermission(Permission{
		Action:     action,
		Subject:    subject,
		Properties: properties,
		Conditions: conditions,
	})
}

// CreatePermission normalizes a permission: nil conditions become an empty list
// and nil properties become an empty map. The input is not modified.
func CreatePermission(attrs Permission) Permission {
	p := attrs.Clone()
	if p.Conditions == nil {
		p.Conditions = []string{}
	}
	if p.Properties == nil {
		p.Properties = Properties{}
	}
	return p
}

// Clone returns a deep copy of the permission
func (p Permission) Clone() Permission {
	out := p
	if p.Properties != nil {
		out.Properties = p.Properties.Clone()
	}
	if p.Conditions != nil {
		out.Conditions = append([]string{}, p.Conditions...)
	}
	return out
}

// HasSubject reports whether the permission is bound to a subject
func (p Permission) HasSubject() bool {
	return p.Subject != ""
}

// AddCondition returns a copy of the permission with the condition appended.
// Conditions already present are not duplicated.
func AddCondition(condition string, p Permission) Permission {
	out := p.Clone()
	for _, c := range out.Conditions {
		if c == condition {
			return out
		}
	}
	out.Conditions = append(out.Conditions, condition)
	return out
}

// RemoveCondition returns a copy of the permission without the given condition
func RemoveCondition(condition string, p Permission) Permission {
	out := p.Clone()
	filtered := make([]string, 0, len(out.Conditions))
	for _, c := range out.Conditions {
		if c != condition {
			filtered = append(filtered, c)
		}
	}
	out.Conditions = filtered
	return out
}

// GetProperty returns a property value of the permission
func GetProperty(property string, p Permission) (any, bool) {
	v, ok := p.Properties[property]
	return v, ok
}

// SetProperty returns a copy of the permission with the property set
func SetProperty(property string, value any, p Permission) Permission {
	out := p.Clone()
	if out.Properties == nil {
		out.Properties = Properties{}
	}
	out.Properties[property] = CloneValue(value)
	return out
}

// DeleteProperty returns a copy of the permission without the property
func DeleteProperty(property string, p Permission) Permission {
	out := p.Clone()
	delete(out.Properties, property)
	return out
}
