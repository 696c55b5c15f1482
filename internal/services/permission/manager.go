package permission

import (
	"context"

	"github.com/asakaida/kanmon/internal/entities"
	"github.com/asakaida/kanmon/internal/services/ability"
	"github.com/asakaida/kanmon/internal/services/sanitize"
)

// Manager answers permission questions for one action on one model
type Manager struct {
	ability   *ability.Ability
	action    string
	model     *entities.ContentType
	sanitizer *sanitize.Sanitizer
}

// NewManager creates a permissions manager
func NewManager(ab *ability.Ability, action string, model *entities.ContentType, components sanitize.SchemaRegistry, opts ...sanitize.Option) *Manager {
	if ab == nil {
		ab = ability.New(nil)
	}
	return &Manager{
		ability:   ab,
		action:    action,
		model:     model,
		sanitizer: sanitize.New(ab, action, model, components, opts...),
	}
}

// Ability returns the underlying ability
func (m *Manager) Ability() *ability.Ability {
	return m.ability
}

// IsAllowed reports whether the action is allowed on the model at all
func (m *Manager) IsAllowed() bool {
	return m.ability.Can(m.action, ability.TypeOf(m.model.UID), "")
}

// ToSubject returns entity as an instance of the model, or the model type when entity is nil
func (m *Manager) ToSubject(entity map[string]any) ability.Subject {
	if entity == nil {
		return ability.TypeOf(m.model.UID)
	}
	return ability.Instance(m.model.UID, entity)
}

// Can checks the action on an entity (or the model when entity is nil), optionally for one field
func (m *Manager) Can(entity map[string]any, field string) bool {
	return m.ability.Can(m.action, m.ToSubject(entity), field)
}

// PermittedFields returns the fields explicitly granted for entity (or the model)
func (m *Manager) PermittedFields(entity map[string]any) []string {
	return m.ability.PermittedFieldsOf(m.action, m.ToSubject(entity), nil)
}

// PickPermittedFieldsOf keeps the fields of data the action may set
func (m *Manager) PickPermittedFieldsOf(ctx context.Context, data any, opts sanitize.Options) (any, error) {
	return m.sanitizer.SanitizeInput(ctx, data, opts)
}

// Query returns the filter selecting the entities the action is allowed on.
// The second value is false when no entity is accessible.
func (m *Manager) Query() (map[string]any, bool) {
	return m.ability.RulesToQuery(m.action, m.model.UID)
}

// AddPermissionsQueryTo combines filters with the permission query
func (m *Manager) AddPermissionsQueryTo(filters map[string]any) (map[string]any, bool) {
	query, ok := m.Query()
	if !ok {
		return nil, false
	}
	switch {
	case len(query) == 0:
		return entities.CloneMap(filters), true
	case len(filters) == 0:
		return query, true
	default:
		return map[string]any{"$and": []any{entities.CloneMap(filters), query}}, true
	}
}

// SanitizeOutput strips what the action may not read
func (m *Manager) SanitizeOutput(ctx context.Context, data any, opts sanitize.Options) (any, error) {
	return m.sanitizer.SanitizeOutput(ctx, data, opts)
}

// SanitizeInput strips what the action may not write
func (m *Manager) SanitizeInput(ctx context.Context, data any, opts sanitize.Options) (any, error) {
	return m.sanitizer.SanitizeInput(ctx, data, opts)
}
