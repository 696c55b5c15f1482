package providers

import (
	"context"
	"fmt"
	"os"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
	"gopkg.in/yaml.v3"

	"github.com/asakaida/kanmon/internal/entities"
)

// CELEngine compiles condition expressions.
// Expressions see three variables: user, permission and values. They must
// evaluate to a bool or to a map used as a query (e.g. {"createdBy.id": user.id}).
type CELEngine struct {
	env *cel.Env
}

// NewCELEngine creates a new CEL engine with the condition variables declared
func NewCELEngine() (*CELEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("user", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("permission", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("values", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &CELEngine{env: env}, nil
}

// Compile compiles expression into a condition handler
func (e *CELEngine) Compile(expression string) (entities.ConditionHandler, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	switch out := ast.OutputType(); out.Kind() {
	case types.BoolKind, types.MapKind, types.DynKind:
	default:
		return nil, fmt.Errorf("CEL expression must return bool or map, got: %s", out)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return func(ctx context.Context, cc *entities.ConditionContext) (any, error) {
		values := cc.Values
		if values == nil {
			values = map[string]any{}
		}
		vars := map[string]any{
			"user":       cc.User.ToMap(),
			"permission": permissionToMap(cc.Permission),
			"values":     values,
		}

		result, _, err := program.ContextEval(ctx, vars)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate CEL expression: %w", err)
		}
		return fromCEL(result), nil
	}, nil
}

// fromCEL converts a CEL value to plain Go data (maps become entities.Query)
func fromCEL(val ref.Val) any {
	switch v := val.(type) {
	case types.Null:
		return nil
	case traits.Mapper:
		out := entities.Query{}
		it := v.Iterator()
		for it.HasNext() == types.True {
			key := it.Next()
			k, ok := key.Value().(string)
			if !ok {
				k = fmt.Sprint(key.Value())
			}
			out[k] = plain(fromCEL(v.Get(key)))
		}
		return out
	case traits.Lister:
		size, _ := v.Size().Value().(int64)
		out := make([]any, 0, size)
		for i := int64(0); i < size; i++ {
			out = append(out, plain(fromCEL(v.Get(types.Int(i)))))
		}
		return out
	default:
		return v.Value()
	}
}

// plain turns nested queries into map[string]any
func plain(v any) any {
	if q, ok := v.(entities.Query); ok {
		return map[string]any(q)
	}
	return v
}

func permissionToMap(p entities.Permission) map[string]any {
	conditions := make([]any, 0, len(p.Conditions))
	for _, c := range p.Conditions {
		conditions = append(conditions, c)
	}
	properties := map[string]any{}
	for k, v := range p.Properties {
		if list, ok := v.([]string); ok {
			items := make([]any, 0, len(list))
			for _, item := range list {
				items = append(items, item)
			}
			properties[k] = items
			continue
		}
		properties[k] = v
	}
	return map[string]any{
		"action":     p.Action,
		"subject":    p.Subject,
		"properties": properties,
		"conditions": conditions,
	}
}

// CELCondition is a declarative condition as written in a conditions file
type CELCondition struct {
	Name        string `yaml:"name" json:"name" validate:"required"`
	DisplayName string `yaml:"displayName" json:"displayName" validate:"required"`
	Plugin      string `yaml:"plugin" json:"plugin,omitempty"`
	Category    string `yaml:"category" json:"category,omitempty"`
	Expression  string `yaml:"expression" json:"expression" validate:"required"`
}

type celConditionFile struct {
	Conditions []CELCondition `yaml:"conditions"`
}

// CELConditionLoader turns declarative conditions into condition definitions
type CELConditionLoader struct {
	engine *CELEngine
}

// NewCELConditionLoader creates a loader backed by engine
func NewCELConditionLoader(engine *CELEngine) *CELConditionLoader {
	return &CELConditionLoader{engine: engine}
}

// Definitions compiles the declarative conditions
func (l *CELConditionLoader) Definitions(conditions []CELCondition) ([]entities.ConditionDefinition, error) {
	defs := make([]entities.ConditionDefinition, 0, len(conditions))
	for _, c := range conditions {
		if err := validateStruct(&c); err != nil {
			return nil, fmt.Errorf("invalid condition %q: %w", c.Name, err)
		}
		handler, err := l.engine.Compile(c.Expression)
		if err != nil {
			return nil, fmt.Errorf("condition %q: %w", c.Name, err)
		}
		category := c.Category
		if category == "" {
			category = defaultConditionCategory
		}
		defs = append(defs, entities.ConditionDefinition{
			Name:        c.Name,
			DisplayName: c.DisplayName,
			Plugin:      c.Plugin,
			Category:    category,
			Handler:     handler,
		})
	}
	return defs, nil
}

// Parse reads a YAML document of the form {conditions: [...]}
func (l *CELConditionLoader) Parse(data []byte) ([]entities.ConditionDefinition, error) {
	var file celConditionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse conditions: %w", err)
	}
	return l.Definitions(file.Conditions)
}

// LoadFile reads and compiles a conditions file
func (l *CELConditionLoader) LoadFile(path string) ([]entities.ConditionDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read conditions file: %w", err)
	}
	return l.Parse(data)
}
