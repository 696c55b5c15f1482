package entities

import "sort"

// Structural attribute names
const (
	IDAttribute            = "id"
	ComponentDiscriminator = "__component"
	CreatedAtAttribute     = "createdAt"
	UpdatedAtAttribute     = "updatedAt"
	CreatedByAttribute     = "createdBy"
	UpdatedByAttribute     = "updatedBy"
)

// AdminUserUID is the content-type UID of admin users
const AdminUserUID = "admin::user"

// Attribute types with a special meaning for permissions
const (
	AttributeTypeRelation    = "relation"
	AttributeTypeComponent   = "component"
	AttributeTypeDynamicZone = "dynamiczone"
	AttributeTypePassword    = "password"
	AttributeTypeMedia       = "media"
)

// Content-type kinds
const (
	KindCollectionType = "collectionType"
	KindSingleType     = "singleType"
	KindComponent      = "component"
)

// Attribute is a content-type attribute definition
type Attribute struct {
	Type       string   `json:"type" yaml:"type"`
	Relation   string   `json:"relation,omitempty" yaml:"relation"`
	Target     string   `json:"target,omitempty" yaml:"target"`
	Component  string   `json:"component,omitempty" yaml:"component"`
	Components []string `json:"components,omitempty" yaml:"components"`
	Repeatable bool     `json:"repeatable,omitempty" yaml:"repeatable"`
	Private    bool     `json:"private,omitempty" yaml:"private"`
	// Hidden only hides the attribute from admin edit views
	Hidden   bool  `json:"hidden,omitempty" yaml:"hidden"`
	Visible  *bool `json:"visible,omitempty" yaml:"visible"`
	Writable *bool `json:"writable,omitempty" yaml:"writable"`
}

// IsVisible reports whether the attribute is exposed to the admin (visible != false)
func (a *Attribute) IsVisible() bool {
	return a.Visible == nil || *a.Visible
}

// IsWritable reports whether the attribute can be set (writable != false)
func (a *Attribute) IsWritable() bool {
	return a.Writable == nil || *a.Writable
}

// IsPassword reports whether the attribute holds a password
func (a *Attribute) IsPassword() bool {
	return a.Type == AttributeTypePassword
}

// IsRelation reports whether the attribute is a relation
func (a *Attribute) IsRelation() bool {
	return a.Type == AttributeTypeRelation
}

// ContentTypeOptions holds content-type level options
type ContentTypeOptions struct {
	DisableTimestamps bool `json:"disableTimestamps,omitempty" yaml:"disableTimestamps"`
	DraftAndPublish   bool `json:"draftAndPublish,omitempty" yaml:"draftAndPublish"`
}

// ContentType is a content-type (or component) schema
type ContentType struct {
	UID         string                `json:"uid" yaml:"uid"`
	Kind        string                `json:"kind" yaml:"kind"`
	DisplayName string                `json:"displayName,omitempty" yaml:"displayName"`
	Attributes  map[string]*Attribute `json:"attributes" yaml:"attributes"`
	Options     ContentTypeOptions    `json:"options" yaml:"options"`
}

// Attribute returns the attribute definition by name
func (c *ContentType) Attribute(name string) *Attribute {
	if c == nil {
		return nil
	}
	return c.Attributes[name]
}

// AttributeNames returns the sorted attribute names
func (c *ContentType) AttributeNames() []string {
	names := make([]string, 0, len(c.Attributes))
	for name := range c.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TimestampAttributes returns the auto-managed timestamp attributes
func (c *ContentType) TimestampAttributes() []string {
	if c.Options.DisableTimestamps {
		return nil
	}
	return []string{CreatedAtAttribute, UpdatedAtAttribute}
}

// NonWritableAttributes returns id, timestamps and the attributes with writable=false
func (c *ContentType) NonWritableAttributes() []string {
	return c.structural(func(a *Attribute) bool { return !a.IsWritable() })
}

// WritableAttributes returns the attributes that are not in NonWritableAttributes
func (c *ContentType) WritableAttributes() []string {
	return difference(c.AttributeNames(), c.NonWritableAttributes())
}

// NonVisibleAttributes returns id, timestamps and the attributes with visible=false
func (c *ContentType) NonVisibleAttributes() []string {
	return c.structural(func(a *Attribute) bool { return !a.IsVisible() })
}

// VisibleAttributes returns the attributes that are not in NonVisibleAttributes
func (c *ContentType) VisibleAttributes() []string {
	return difference(c.AttributeNames(), c.NonVisibleAttributes())
}

// PasswordAttributes returns the attributes of password type
func (c *ContentType) PasswordAttributes() []string {
	var out []string
	for _, name := range c.AttributeNames() {
		if c.Attributes[name].IsPassword() {
			out = append(out, name)
		}
	}
	return out
}

func (c *ContentType) structural(match func(*Attribute) bool) []string {
	out := []string{IDAttribute}
	out = append(out, c.TimestampAttributes()...)
	for _, name := range c.AttributeNames() {
		if match(c.Attributes[name]) {
			out = append(out, name)
		}
	}
	return Uniq(out)
}

// Uniq returns the values without duplicates, keeping the first occurrence order
func Uniq(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Intersection returns the values of a that are also in b
func Intersection(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	var out []string
	for _, v := range a {
		if _, ok := set[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

func difference(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	out := make([]string, 0, len(a))
	for _, v := range a {
		if _, ok := set[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}
