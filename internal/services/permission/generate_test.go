package permission

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/asakaida/kanmon/internal/entities"
	"github.com/asakaida/kanmon/internal/services/ability"
)

func TestGenerateAbility(t *testing.T) {
	e, _, _ := newAdminEngine(t)
	user := &entities.User{ID: 7, Roles: []entities.Role{{ID: 2, Code: "strapi-editor"}}}

	permissions := []entities.Permission{
		entities.NewPermission(actionRead, articleUID, entities.Properties{"fields": []string{"title", "body"}}, nil),
		entities.NewPermission("plugin::content-manager.explorer.update", articleUID,
			entities.Properties{"fields": []string{"title"}}, []string{isCreatorCond}),
		entities.NewPermission(actionDelete, articleUID, nil, []string{"admin::unknown-condition"}),
		entities.NewPermission("plugin::content-manager.explorer.unknown", articleUID, nil, nil),
		entities.NewPermission("admin::marketplace.read", "", nil, nil),
	}

	ab, err := e.GenerateAbility(context.Background(), permissions, Options{User: user})
	if err != nil {
		t.Fatalf("GenerateAbility() error = %v", err)
	}

	if got := len(ab.Rules()); got != 4 {
		t.Fatalf("expected 4 rules, got %d: %+v", got, ab.Rules())
	}

	own := ability.Instance(articleUID, map[string]any{"createdBy": map[string]any{"id": 7}})
	other := ability.Instance(articleUID, map[string]any{"createdBy": map[string]any{"id": 8}})
	update := "plugin::content-manager.explorer.update"

	tests := []struct {
		name    string
		action  string
		subject ability.Subject
		field   string
		want    bool
	}{
		{name: "read title", action: actionRead, subject: ability.TypeOf(articleUID), field: "title", want: true},
		{name: "read unlisted field", action: actionRead, subject: ability.TypeOf(articleUID), field: "secret", want: false},
		{name: "update own article", action: update, subject: own, field: "title", want: true},
		{name: "update own article body", action: update, subject: own, field: "body", want: false},
		{name: "update other article", action: update, subject: other, field: "title", want: false},
		{name: "update model", action: update, subject: ability.TypeOf(articleUID), want: true},
		{name: "delete with dropped condition", action: actionDelete, subject: other, want: true},
		{name: "subjectless permission applies to all", action: "admin::marketplace.read", subject: ability.TypeOf("anything"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ab.Can(tt.action, tt.subject, tt.field); got != tt.want {
				t.Errorf("Can(%s, %s, %q) = %v, want %v", tt.action, tt.subject.Type, tt.field, got, tt.want)
			}
		})
	}
}

func TestGenerateAbility_Error(t *testing.T) {
	boom := errors.New("boom")
	conditions := newMockConditions().add("api::broken", func(context.Context, *entities.ConditionContext) (any, error) {
		return nil, boom
	})
	e := NewEngine(conditions)

	_, err := e.GenerateAbility(context.Background(), []entities.Permission{
		entities.NewPermission("read", "article", nil, []string{"api::broken"}),
	}, Options{})
	if !errors.Is(err, boom) {
		t.Errorf("GenerateAbility() error = %v, want %v", err, boom)
	}
}

func TestBuilderCan(t *testing.T) {
	builder := ability.NewBuilder()
	can := BuilderCan(builder)

	condition := entities.NewConditionTree([]entities.Query{{"owner": 1}})
	rules := []entities.Rule{
		{Action: "read", Subject: "article", Properties: entities.Properties{"fields": []string{"title"}}, Condition: condition},
		{Action: "read", Properties: entities.Properties{}},
	}
	for _, r := range rules {
		if err := can(context.Background(), r); err != nil {
			t.Fatalf("can() error = %v", err)
		}
	}

	got := builder.Build().Rules()
	want := []ability.Rule{
		{Action: "read", Subject: "article", Fields: []string{"title"}, Conditions: map[string]any{
			entities.OpAnd: []any{map[string]any{entities.OpOr: []any{map[string]any{"owner": float64(1)}}}},
		}},
		{Action: "read", Subject: ability.SubjectAll},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("rules = %#v, want %#v", got, want)
	}

	condition[entities.OpAnd] = nil
	if builder.Build().Rules()[0].Conditions[entities.OpAnd] == nil {
		t.Error("builder rules must not share the condition map")
	}
}
