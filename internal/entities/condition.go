package entities

import "context"

// ConditionContext is passed to condition handlers.
// Permission is a deep copy of the permission under evaluation.
type ConditionContext struct {
	User       *User
	Values     map[string]any
	Permission Permission
}

// ConditionHandler evaluates a condition.
// A handler returns false (deny), true (allow) or a Query restricting the allowed subjects.
// Any other result is ignored by the engine.
type ConditionHandler func(ctx context.Context, cc *ConditionContext) (any, error)

// ConditionDefinition describes a condition registered by the admin or a plugin
type ConditionDefinition struct {
	Name        string           `json:"name" yaml:"name" validate:"required"`
	DisplayName string           `json:"displayName" yaml:"displayName" validate:"required"`
	Plugin      string           `json:"plugin,omitempty" yaml:"plugin"`
	Category    string           `json:"category,omitempty" yaml:"category"`
	Handler     ConditionHandler `json:"-" yaml:"-" validate:"required"`
}

// ID returns the unique identifier of the condition
func (d *ConditionDefinition) ID() string {
	return scopedID(d.Plugin, d.Name)
}

// Condition is a resolved condition as seen by the permission engine
type Condition struct {
	ID          string
	Name        string
	DisplayName string
	Category    string
	Handler     ConditionHandler
}

// scopedID builds admin::name, plugin::plugin.name or api::name identifiers
func scopedID(plugin, name string) string {
	switch plugin {
	case "admin":
		return "admin::" + name
	case "":
		return "api::" + name
	default:
		return "plugin::" + plugin + "." + name
	}
}
