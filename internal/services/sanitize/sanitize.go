// Package sanitize strips the fields an ability does not permit from entity
// payloads, on their way out (SanitizeOutput) or in (SanitizeInput).
package sanitize

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/asakaida/kanmon/internal/entities"
	"github.com/asakaida/kanmon/internal/services/ability"
)

// FieldPolicy decides what happens when no rule at all is registered for an
// action and subject.
type FieldPolicy int

const (
	// IncludeAllWhenUnregistered keeps every field when no rule is registered
	IncludeAllWhenUnregistered FieldPolicy = iota
	// Strict keeps only the structural fields when no rule is registered
	Strict
)

func (p FieldPolicy) String() string {
	if p == Strict {
		return "strict"
	}
	return "include-all-when-unregistered"
}

// ParseFieldPolicy parses "strict" or "include-all-when-unregistered" (default)
func ParseFieldPolicy(s string) FieldPolicy {
	if strings.EqualFold(strings.TrimSpace(s), "strict") {
		return Strict
	}
	return IncludeAllWhenUnregistered
}

// adminUserProjection lists the admin user fields exposed through relations
var adminUserProjection = []string{"id", "firstname", "lastname", "username"}

// SchemaRegistry resolves component schemas
type SchemaRegistry interface {
	Get(uid string) (*entities.ContentType, bool)
}

// Options are the per-call sanitize options.
// An empty Subject.Type checks the ability against each entity as an
// instance of the model; an empty Action uses the sanitizer action.
type Options struct {
	Subject ability.Subject
	Action  string
}

// Option configures a Sanitizer
type Option func(*Sanitizer)

// WithFieldPolicy sets the field policy
func WithFieldPolicy(policy FieldPolicy) Option {
	return func(s *Sanitizer) {
		s.policy = policy
	}
}

// Sanitizer sanitizes the payloads of one model for one action
type Sanitizer struct {
	ability    *ability.Ability
	action     string
	model      *entities.ContentType
	components SchemaRegistry
	policy     FieldPolicy
}

// New creates a sanitizer. components may be nil when the model has no components.
func New(ab *ability.Ability, action string, model *entities.ContentType, components SchemaRegistry, opts ...Option) *Sanitizer {
	if ab == nil {
		ab = ability.New(nil)
	}
	s := &Sanitizer{
		ability:    ab,
		action:     action,
		model:      model,
		components: components,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SanitizeOutput sanitizes an entity (map) or a list of entities before it is returned
func (s *Sanitizer) SanitizeOutput(ctx context.Context, data any, opts Options) (any, error) {
	return mapEntities(ctx, data, func(entity map[string]any) map[string]any {
		return s.sanitizeOutputEntity(entity, opts)
	})
}

// SanitizeInput sanitizes an entity (map) or a list of entities before it is stored
func (s *Sanitizer) SanitizeInput(ctx context.Context, data any, opts Options) (any, error) {
	return mapEntities(ctx, data, func(entity map[string]any) map[string]any {
		return s.sanitizeInputEntity(entity, opts)
	})
}

func (s *Sanitizer) sanitizeOutputEntity(entity map[string]any, opts Options) map[string]any {
	out := entities.CloneMap(entity)
	s.scrubOutput(out, s.model, true)

	fields, includeAll := s.permittedFields(entity, opts)
	if !includeAll {
		allowed := entities.Uniq(append(append(fields, s.structuralFields()...), s.outputFields()...))
		out = s.pick(out, s.model, allowed, "")
	}
	return out
}

func (s *Sanitizer) sanitizeInputEntity(entity map[string]any, opts Options) map[string]any {
	out := entities.CloneMap(entity)

	fields, includeAll := s.permittedFields(entity, opts)
	if !includeAll {
		allowed := entities.Uniq(append(append(fields, s.structuralFields()...), s.inputFields()...))
		out = s.pick(out, s.model, allowed, "")
	}

	for _, name := range []string{entities.CreatedByAttribute, entities.UpdatedByAttribute} {
		if creator, ok := out[name].(map[string]any); ok {
			delete(creator, "roles")
		}
	}
	return out
}

// permittedFields returns the fields granted by the ability, and whether
// every field should be kept because no rule is registered.
// Rules without a field list grant every attribute of the model.
func (s *Sanitizer) permittedFields(entity map[string]any, opts Options) ([]string, bool) {
	action := opts.Action
	if action == "" {
		action = s.action
	}
	subject := opts.Subject
	if subject.Type == "" {
		subject = ability.Instance(s.model.UID, entity)
	}

	fields := s.ability.PermittedFieldsOf(action, subject, func(rule ability.Rule) []string {
		if rule.Fields == nil {
			return s.model.AttributeNames()
		}
		return rule.Fields
	})
	hasAtLeastOneRegistered := len(s.ability.PossibleRulesFor(action, subject.Type)) > 0

	includeAll := len(fields) == 0 && !hasAtLeastOneRegistered && s.policy == IncludeAllWhenUnregistered
	return fields, includeAll
}

func (s *Sanitizer) structuralFields() []string {
	return []string{entities.IDAttribute, entities.ComponentDiscriminator}
}

// outputFields are always returned: auto-managed and non-visible attributes
func (s *Sanitizer) outputFields() []string {
	out := append([]string{}, s.model.NonWritableAttributes()...)
	out = append(out, s.model.NonVisibleAttributes()...)
	return append(out, s.model.TimestampAttributes()...)
}

// inputFields are always accepted: attributes hidden from the admin but still settable
func (s *Sanitizer) inputFields() []string {
	return entities.Intersection(s.model.NonVisibleAttributes(), s.model.WritableAttributes())
}

// pick keeps the keys of data covered by the allowed field paths.
// Components and dynamic zones are traversed when only some of their
// nested paths are allowed.
func (s *Sanitizer) pick(data map[string]any, schema *entities.ContentType, allowed []string, prefix string) map[string]any {
	out := make(map[string]any, len(data))
	for key, value := range data {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		if prefix != "" && (key == entities.IDAttribute || key == entities.ComponentDiscriminator) {
			out[key] = value
			continue
		}
		if isAllowed(path, allowed) {
			out[key] = value
			continue
		}
		if !hasNestedAllowed(path, allowed) {
			continue
		}

		attr := schema.Attribute(key)
		if attr == nil {
			continue
		}
		switch attr.Type {
		case entities.AttributeTypeComponent:
			component, ok := s.component(attr.Component)
			if !ok {
				continue
			}
			if picked, ok := s.pickNested(value, func(map[string]any) *entities.ContentType { return component }, allowed, path); ok {
				out[key] = picked
			}
		case entities.AttributeTypeDynamicZone:
			resolve := func(item map[string]any) *entities.ContentType {
				uid, _ := item[entities.ComponentDiscriminator].(string)
				if c, ok := s.component(uid); ok {
					return c
				}
				return nil
			}
			if picked, ok := s.pickNested(value, resolve, allowed, path); ok {
				out[key] = picked
			}
		}
	}
	return out
}

func (s *Sanitizer) pickNested(value any, resolve func(map[string]any) *entities.ContentType, allowed []string, path string) (any, bool) {
	switch v := value.(type) {
	case map[string]any:
		schema := resolve(v)
		if schema == nil {
			return nil, false
		}
		return s.pick(v, schema, allowed, path), true
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if schema := resolve(m); schema != nil {
				out = append(out, s.pick(m, schema, allowed, path))
			}
		}
		return out, true
	case nil:
		return nil, true
	default:
		return nil, false
	}
}

func (s *Sanitizer) component(uid string) (*entities.ContentType, bool) {
	if s.components == nil || uid == "" {
		return nil, false
	}
	return s.components.Get(uid)
}

// isAllowed reports whether a field path is covered by an allowed path or pattern
func isAllowed(path string, allowed []string) bool {
	for _, a := range allowed {
		if ability.MatchFieldPattern(a, path) {
			return true
		}
	}
	return false
}

// hasNestedAllowed reports whether an allowed path points inside path
func hasNestedAllowed(path string, allowed []string) bool {
	for _, a := range allowed {
		if strings.HasPrefix(a, path+".") {
			return true
		}
	}
	return false
}

// scrubOutput strips password attributes and projects admin-user relations
// in place, descending into components and dynamic zones.
// Creator fields are only projected on the root entity.
func (s *Sanitizer) scrubOutput(data map[string]any, schema *entities.ContentType, root bool) {
	for key, value := range data {
		attr := schema.Attribute(key)
		if root && (key == entities.CreatedByAttribute || key == entities.UpdatedByAttribute) {
			data[key] = projectAdminUsers(value)
			continue
		}
		if attr == nil {
			continue
		}

		switch {
		case attr.IsPassword():
			delete(data, key)
		case attr.IsRelation() && attr.Target == entities.AdminUserUID:
			data[key] = projectAdminUsers(value)
		case attr.Type == entities.AttributeTypeComponent:
			component, ok := s.component(attr.Component)
			if !ok {
				continue
			}
			s.scrubNested(value, func(map[string]any) *entities.ContentType { return component })
		case attr.Type == entities.AttributeTypeDynamicZone:
			s.scrubNested(value, func(item map[string]any) *entities.ContentType {
				uid, _ := item[entities.ComponentDiscriminator].(string)
				c, _ := s.component(uid)
				return c
			})
		}
	}
}

func (s *Sanitizer) scrubNested(value any, resolve func(map[string]any) *entities.ContentType) {
	var items []map[string]any
	switch v := value.(type) {
	case map[string]any:
		items = []map[string]any{v}
	case []map[string]any:
		items = v
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				items = append(items, m)
			}
		}
	}
	for _, m := range items {
		if schema := resolve(m); schema != nil {
			s.scrubOutput(m, schema, false)
		}
	}
}

// projectAdminUsers limits an admin-user relation value, single or list,
// to the projected fields
func projectAdminUsers(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return projectAdminUser(v)
	case []any:
		projected := make([]any, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				projected = append(projected, projectAdminUser(m))
			}
		}
		return projected
	default:
		return value
	}
}

func projectAdminUser(user map[string]any) map[string]any {
	out := make(map[string]any, len(adminUserProjection))
	for _, f := range adminUserProjection {
		if v, ok := user[f]; ok {
			out[f] = v
		}
	}
	return out
}

// mapEntities applies fn to an entity or, concurrently, to each entity of a list.
// The order of a list is kept.
func mapEntities(ctx context.Context, data any, fn func(map[string]any) map[string]any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch v := data.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return fn(v), nil
	case []map[string]any:
		out := make([]map[string]any, len(v))
		g, _ := errgroup.WithContext(ctx)
		for i, entity := range v {
			g.Go(func() error {
				out[i] = fn(entity)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		g, gctx := errgroup.WithContext(ctx)
		for i, item := range v {
			g.Go(func() error {
				sanitized, err := mapEntities(gctx, item, fn)
				if err != nil {
					return err
				}
				out[i] = sanitized
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return out, nil
	default:
		return data, nil
	}
}
