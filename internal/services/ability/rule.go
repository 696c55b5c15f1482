// Package ability implements a CASL-style ability: a set of rules answering
// whether an action can be performed on a subject (and on one of its fields).
package ability

import "strings"

const (
	// ActionManage matches every action
	ActionManage = "manage"
	// SubjectAll matches every subject
	SubjectAll = "all"
)

// Rule is a raw ability rule.
// Fields == nil means the rule is not restricted to fields.
// Conditions == nil means the rule applies to every instance of the subject.
type Rule struct {
	Action     string         `json:"action"`
	Subject    string         `json:"subject"`
	Fields     []string       `json:"fields"`
	Conditions map[string]any `json:"conditions,omitempty"`
	Inverted   bool           `json:"inverted,omitempty"`
	Reason     string         `json:"reason,omitempty"`
}

// Subject is what an ability is queried about: a subject type, optionally
// with the attributes of an instance so that rule conditions can be checked.
type Subject struct {
	Type  string
	Attrs map[string]any
}

// TypeOf returns a subject referring to a subject type only
func TypeOf(subjectType string) Subject {
	return Subject{Type: subjectType}
}

// Instance returns a subject referring to an instance of subjectType
func Instance(subjectType string, attrs map[string]any) Subject {
	if attrs == nil {
		attrs = map[string]any{}
	}
	return Subject{Type: subjectType, Attrs: attrs}
}

// IsInstance reports whether the subject carries instance attributes
func (s Subject) IsInstance() bool {
	return s.Attrs != nil
}

func (r *Rule) matchesAction(action string) bool {
	return r.Action == action || r.Action == ActionManage
}

func (r *Rule) matchesSubjectType(subjectType string) bool {
	return r.Subject == subjectType || r.Subject == SubjectAll
}

// matchesConditions checks the rule conditions against the subject.
// Conditions cannot be checked on a subject type: the rule is then considered
// relevant unless it is inverted.
func (r *Rule) matchesConditions(subject Subject) bool {
	if r.Conditions == nil {
		return true
	}
	if !subject.IsInstance() {
		return !r.Inverted
	}
	return Match(r.Conditions, subject.Attrs)
}

// matchesField checks the rule fields against field.
// An empty field asks about the subject as a whole.
func (r *Rule) matchesField(field string) bool {
	if r.Fields == nil {
		return true
	}
	if field == "" {
		return !r.Inverted
	}
	for _, pattern := range r.Fields {
		if MatchFieldPattern(pattern, field) {
			return true
		}
	}
	return false
}

// MatchFieldPattern reports whether a rule field pattern covers field.
// "*" covers every field, "address.*" covers the nested fields of address
// and a parent path ("address") covers its nested fields ("address.city").
func MatchFieldPattern(pattern, field string) bool {
	if pattern == "*" || pattern == field {
		return true
	}
	if strings.HasSuffix(pattern, ".*") {
		return strings.HasPrefix(field, strings.TrimSuffix(pattern, "*"))
	}
	return strings.HasPrefix(field, pattern+".")
}
