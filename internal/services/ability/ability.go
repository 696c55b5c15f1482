package ability

// Ability is an immutable set of rules. Later rules take precedence over earlier ones.
type Ability struct {
	rules []Rule
}

// New creates an ability from raw rules (e.g., rules restored from a cache)
func New(rules []Rule) *Ability {
	copied := make([]Rule, len(rules))
	copy(copied, rules)
	return &Ability{rules: copied}
}

// Rules returns a copy of the rules in declaration order
func (a *Ability) Rules() []Rule {
	out := make([]Rule, len(a.rules))
	copy(out, a.rules)
	return out
}

// Can reports whether action is allowed on subject (and field when not empty)
func (a *Ability) Can(action string, subject Subject, field string) bool {
	rule := a.RelevantRuleFor(action, subject, field)
	return rule != nil && !rule.Inverted
}

// Cannot is the negation of Can
func (a *Ability) Cannot(action string, subject Subject, field string) bool {
	return !a.Can(action, subject, field)
}

// RelevantRuleFor returns the rule deciding the access, or nil when no rule applies
func (a *Ability) RelevantRuleFor(action string, subject Subject, field string) *Rule {
	for _, rule := range a.PossibleRulesFor(action, subject.Type) {
		if rule.matchesConditions(subject) && rule.matchesField(field) {
			r := rule
			return &r
		}
	}
	return nil
}

// PossibleRulesFor returns the rules matching action and subject type,
// highest priority first, without checking fields or conditions
func (a *Ability) PossibleRulesFor(action, subjectType string) []Rule {
	var out []Rule
	for i := len(a.rules) - 1; i >= 0; i-- {
		rule := a.rules[i]
		if rule.matchesAction(action) && rule.matchesSubjectType(subjectType) {
			out = append(out, rule)
		}
	}
	return out
}

// RulesFor returns the rules matching action, subject type and field, highest priority first
func (a *Ability) RulesFor(action, subjectType, field string) []Rule {
	var out []Rule
	for _, rule := range a.PossibleRulesFor(action, subjectType) {
		if rule.matchesField(field) {
			out = append(out, rule)
		}
	}
	return out
}

// FieldsFrom extracts the field list a rule grants or forbids
type FieldsFrom func(rule Rule) []string

// PermittedFieldsOf returns the fields of subject the ability allows for action.
// Rules are applied from the lowest to the highest priority: regular rules add
// their fields, inverted rules remove them.
func (a *Ability) PermittedFieldsOf(action string, subject Subject, fieldsFrom FieldsFrom) []string {
	if fieldsFrom == nil {
		fieldsFrom = func(rule Rule) []string { return rule.Fields }
	}

	rules := a.PossibleRulesFor(action, subject.Type)
	permitted := make(map[string]struct{})
	var order []string

	for i := len(rules) - 1; i >= 0; i-- {
		rule := rules[i]
		if !rule.matchesConditions(subject) {
			continue
		}
		for _, field := range fieldsFrom(rule) {
			if rule.Inverted {
				delete(permitted, field)
				continue
			}
			if _, ok := permitted[field]; !ok {
				order = append(order, field)
			}
			permitted[field] = struct{}{}
		}
	}

	out := make([]string, 0, len(permitted))
	for _, field := range order {
		if _, ok := permitted[field]; ok {
			out = append(out, field)
			delete(permitted, field)
		}
	}
	return out
}

// RulesToQuery converts the rules for action and subject type into a query
// selecting the accessible instances. It returns false when no instance is
// accessible, and an empty query when every instance is.
func (a *Ability) RulesToQuery(action, subjectType string) (map[string]any, bool) {
	var or, and []any

	for _, rule := range a.RulesFor(action, subjectType, "") {
		if rule.Conditions == nil {
			if rule.Inverted {
				break
			}
			if len(and) == 0 {
				return map[string]any{}, true
			}
			return map[string]any{"$and": and}, true
		}
		if rule.Inverted {
			and = append(and, map[string]any{"$nor": []any{rule.Conditions}})
		} else {
			or = append(or, rule.Conditions)
		}
	}

	if len(or) == 0 {
		return nil, false
	}
	query := map[string]any{"$or": or}
	if len(and) > 0 {
		query["$and"] = and
	}
	return query, true
}
