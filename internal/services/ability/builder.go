package ability

// Builder accumulates rules and builds an Ability
type Builder struct {
	rules []Rule
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Can adds an allowing rule. An empty subject is registered as SubjectAll.
func (b *Builder) Can(action, subject string, fields []string, conditions map[string]any) *Rule {
	return b.add(action, subject, fields, conditions, false)
}

// Cannot adds a forbidding rule
func (b *Builder) Cannot(action, subject string, fields []string, conditions map[string]any) *Rule {
	return b.add(action, subject, fields, conditions, true)
}

func (b *Builder) add(action, subject string, fields []string, conditions map[string]any, inverted bool) *Rule {
	if subject == "" {
		subject = SubjectAll
	}
	var f []string
	if fields != nil {
		f = append([]string{}, fields...)
	}
	b.rules = append(b.rules, Rule{
		Action:     action,
		Subject:    subject,
		Fields:     f,
		Conditions: conditions,
		Inverted:   inverted,
	})
	return &b.rules[len(b.rules)-1]
}

// Len returns the number of rules added so far
func (b *Builder) Len() int {
	return len(b.rules)
}

// Build returns an ability holding the rules added so far
func (b *Builder) Build() *Ability {
	return New(b.rules)
}
