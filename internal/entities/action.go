package entities

// Action sections
const (
	SectionContentTypes = "contentTypes"
	SectionPlugins      = "plugins"
	SectionSettings     = "settings"
	SectionInternal     = "internal"
)

// ActionOptions holds the optional behaviours of an action
type ActionOptions struct {
	// ApplyToProperties lists the permission properties the action understands (e.g., "fields", "locales")
	ApplyToProperties []string `json:"applyToProperties,omitempty" yaml:"applyToProperties"`
}

// ActionDefinition describes an action that can be granted by a permission
type ActionDefinition struct {
	UID         string        `json:"uid" yaml:"uid" validate:"required"`
	DisplayName string        `json:"displayName" yaml:"displayName" validate:"required"`
	PluginName  string        `json:"pluginName,omitempty" yaml:"pluginName" validate:"required_if=Section plugins"`
	Section     string        `json:"section" yaml:"section" validate:"required,oneof=contentTypes plugins settings internal"`
	Category    string        `json:"category,omitempty" yaml:"category" validate:"required_if=Section settings"`
	SubCategory string        `json:"subCategory,omitempty" yaml:"subCategory"`
	Subjects    []string      `json:"subjects,omitempty" yaml:"subjects"`
	Options     ActionOptions `json:"options" yaml:"options"`
	Aliases     []ActionAlias `json:"aliases,omitempty" yaml:"aliases"`
}

// ActionAlias maps an action to another action ID, optionally restricted to subjects
type ActionAlias struct {
	ActionID string   `json:"actionId" yaml:"actionId"`
	Subjects []string `json:"subjects,omitempty" yaml:"subjects"`
}

// ActionID returns the unique identifier of the action
func (a *ActionDefinition) ActionID() string {
	return scopedID(a.PluginName, a.UID)
}

// AppliesToProperty reports whether the action understands the given permission property
func (a *ActionDefinition) AppliesToProperty(property string) bool {
	for _, p := range a.Options.ApplyToProperties {
		if p == property {
			return true
		}
	}
	return false
}

// AppliesToSubject reports whether the action can target the subject.
// An action without a subjects list applies to every subject.
func (a *ActionDefinition) AppliesToSubject(subject string) bool {
	if len(a.Subjects) == 0 {
		return true
	}
	for _, s := range a.Subjects {
		if s == subject {
			return true
		}
	}
	return false
}
