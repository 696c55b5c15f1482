package ability

import (
	"reflect"
	"sort"
	"testing"
)

func TestAbility_Can(t *testing.T) {
	b := NewBuilder()
	b.Can("read", "api::article.article", nil, nil)
	b.Can("update", "api::article.article", []string{"title", "seo.*"}, map[string]any{"createdBy.id": 1})
	b.Cannot("delete", "api::article.article", nil, nil)
	b.Can("manage", "plugin::upload.file", nil, nil)
	b.Can("access", "", nil, nil)
	ability := b.Build()

	own := Instance("api::article.article", map[string]any{"createdBy": map[string]any{"id": 1}})
	other := Instance("api::article.article", map[string]any{"createdBy": map[string]any{"id": 2}})

	tests := []struct {
		name    string
		action  string
		subject Subject
		field   string
		want    bool
	}{
		{"unconditional rule on type", "read", TypeOf("api::article.article"), "", true},
		{"unconditional rule on instance", "read", other, "", true},
		{"no rule for action", "publish", TypeOf("api::article.article"), "", false},
		{"conditional rule on type", "update", TypeOf("api::article.article"), "", true},
		{"conditional rule on matching instance", "update", own, "title", true},
		{"conditional rule on other instance", "update", other, "title", false},
		{"field not granted", "update", own, "body", false},
		{"wildcard field pattern", "update", own, "seo.metaTitle", true},
		{"inverted rule", "delete", TypeOf("api::article.article"), "", false},
		{"manage matches every action", "destroy", TypeOf("plugin::upload.file"), "", true},
		{"all matches every subject", "access", TypeOf("admin::marketplace"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ability.Can(tt.action, tt.subject, tt.field); got != tt.want {
				t.Errorf("Can(%q, %q, %q) = %v, want %v", tt.action, tt.subject.Type, tt.field, got, tt.want)
			}
			if got := ability.Cannot(tt.action, tt.subject, tt.field); got == tt.want {
				t.Errorf("Cannot(%q, %q, %q) = %v, want %v", tt.action, tt.subject.Type, tt.field, got, !tt.want)
			}
		})
	}
}

func TestAbility_LaterRulesTakePrecedence(t *testing.T) {
	b := NewBuilder()
	b.Can("read", "article", nil, nil)
	b.Cannot("read", "article", nil, map[string]any{"status": "draft"})
	ability := b.Build()

	if !ability.Can("read", Instance("article", map[string]any{"status": "published"}), "") {
		t.Error("published article should be readable")
	}
	if ability.Can("read", Instance("article", map[string]any{"status": "draft"}), "") {
		t.Error("draft article should not be readable")
	}

	b.Can("read", "article", nil, nil)
	if !b.Build().Can("read", Instance("article", map[string]any{"status": "draft"}), "") {
		t.Error("a later unconditional rule should win")
	}
}

func TestAbility_RulesFor(t *testing.T) {
	b := NewBuilder()
	b.Can("read", "article", []string{"title"}, nil)
	b.Can("read", "article", nil, nil)
	b.Can("read", "page", nil, nil)
	b.Cannot("read", "article", []string{"body"}, nil)
	ability := b.Build()

	possible := ability.PossibleRulesFor("read", "article")
	if len(possible) != 3 {
		t.Fatalf("PossibleRulesFor() returned %d rules, want 3", len(possible))
	}
	if !possible[0].Inverted {
		t.Error("PossibleRulesFor() should return the most recent rule first")
	}

	forTitle := ability.RulesFor("read", "article", "title")
	if len(forTitle) != 2 {
		t.Errorf("RulesFor(title) returned %d rules, want 2", len(forTitle))
	}

	rule := ability.RelevantRuleFor("read", TypeOf("article"), "body")
	if rule == nil || !rule.Inverted {
		t.Errorf("RelevantRuleFor(body) = %+v, want the inverted rule", rule)
	}
	if ability.RelevantRuleFor("read", TypeOf("comment"), "") != nil {
		t.Error("RelevantRuleFor() should be nil when no rule applies")
	}
}

func TestAbility_PermittedFieldsOf(t *testing.T) {
	b := NewBuilder()
	b.Can("read", "article", []string{"title", "body", "seo"}, nil)
	b.Can("read", "article", []string{"secret"}, map[string]any{"createdBy.id": 1})
	b.Cannot("read", "article", []string{"body"}, nil)
	b.Can("read", "page", []string{"slug"}, nil)
	ability := b.Build()

	tests := []struct {
		name    string
		subject Subject
		want    []string
	}{
		{"subject type", TypeOf("article"), []string{"secret", "seo", "title"}},
		{"matching instance", Instance("article", map[string]any{"createdBy": map[string]any{"id": 1}}), []string{"secret", "seo", "title"}},
		{"other instance", Instance("article", map[string]any{"createdBy": map[string]any{"id": 2}}), []string{"seo", "title"}},
		{"other subject", TypeOf("page"), []string{"slug"}},
		{"no rules", TypeOf("comment"), []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ability.PermittedFieldsOf("read", tt.subject, nil)
			sort.Strings(got)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("PermittedFieldsOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAbility_PermittedFieldsOf_FieldsFrom(t *testing.T) {
	b := NewBuilder()
	b.Can("read", "article", nil, nil)
	ability := b.Build()

	all := func(rule Rule) []string {
		if rule.Fields == nil {
			return []string{"id", "title"}
		}
		return rule.Fields
	}

	got := ability.PermittedFieldsOf("read", TypeOf("article"), all)
	if !reflect.DeepEqual(got, []string{"id", "title"}) {
		t.Errorf("PermittedFieldsOf() = %v, want [id title]", got)
	}
}

func TestAbility_RulesToQuery(t *testing.T) {
	own := map[string]any{"createdBy.id": 1}
	draft := map[string]any{"status": "draft"}

	tests := []struct {
		name   string
		build  func(b *Builder)
		want   map[string]any
		wantOK bool
	}{
		{
			name:   "no rules",
			build:  func(b *Builder) {},
			want:   nil,
			wantOK: false,
		},
		{
			name:   "unconditional",
			build:  func(b *Builder) { b.Can("read", "article", nil, nil) },
			want:   map[string]any{},
			wantOK: true,
		},
		{
			name:   "conditional",
			build:  func(b *Builder) { b.Can("read", "article", nil, own) },
			want:   map[string]any{"$or": []any{own}},
			wantOK: true,
		},
		{
			name: "conditional with inverted",
			build: func(b *Builder) {
				b.Can("read", "article", nil, own)
				b.Cannot("read", "article", nil, draft)
			},
			want: map[string]any{
				"$or":  []any{own},
				"$and": []any{map[string]any{"$nor": []any{draft}}},
			},
			wantOK: true,
		},
		{
			name: "inverted unconditional hides older rules",
			build: func(b *Builder) {
				b.Can("read", "article", nil, own)
				b.Cannot("read", "article", nil, nil)
			},
			want:   nil,
			wantOK: false,
		},
		{
			name: "unconditional after inverted",
			build: func(b *Builder) {
				b.Can("read", "article", nil, nil)
				b.Cannot("read", "article", nil, draft)
			},
			want:   map[string]any{"$and": []any{map[string]any{"$nor": []any{draft}}}},
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			tt.build(b)
			got, ok := b.Build().RulesToQuery("read", "article")
			if ok != tt.wantOK {
				t.Fatalf("RulesToQuery() ok = %v, want %v", ok, tt.wantOK)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("RulesToQuery() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNew_RebuildsFromRules(t *testing.T) {
	b := NewBuilder()
	b.Can("read", "article", []string{"title"}, map[string]any{"locale": "en"})
	b.Cannot("delete", "", nil, nil)
	original := b.Build()

	rebuilt := New(original.Rules())
	if !reflect.DeepEqual(rebuilt.Rules(), original.Rules()) {
		t.Errorf("New(Rules()) = %v, want %v", rebuilt.Rules(), original.Rules())
	}

	en := Instance("article", map[string]any{"locale": "en"})
	if !rebuilt.Can("read", en, "title") {
		t.Error("rebuilt ability should allow reading the title of an english article")
	}
	if rebuilt.Rules()[1].Subject != SubjectAll {
		t.Errorf("empty subject should be registered as %q", SubjectAll)
	}
}

func TestMatchFieldPattern(t *testing.T) {
	tests := []struct {
		pattern string
		field   string
		want    bool
	}{
		{"title", "title", true},
		{"title", "titles", false},
		{"*", "anything", true},
		{"seo.*", "seo.metaTitle", true},
		{"seo.*", "seo", false},
		{"seo", "seo.metaTitle", true},
		{"seo.meta", "seo.metaTitle", false},
	}

	for _, tt := range tests {
		if got := MatchFieldPattern(tt.pattern, tt.field); got != tt.want {
			t.Errorf("MatchFieldPattern(%q, %q) = %v, want %v", tt.pattern, tt.field, got, tt.want)
		}
	}
}
