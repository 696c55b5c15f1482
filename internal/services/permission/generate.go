package permission

import (
	"context"
	"fmt"

	"github.com/asakaida/kanmon/internal/entities"
	"github.com/asakaida/kanmon/internal/services/ability"
)

// GenerateAbility evaluates the permissions one after the other and builds
// an ability from the registered rules.
func (e *Engine) GenerateAbility(ctx context.Context, permissions []entities.Permission, options Options) (*ability.Ability, error) {
	builder := ability.NewBuilder()
	can := BuilderCan(builder)

	for _, p := range permissions {
		err := e.Evaluate(ctx, EvaluateParams{
			Permission: p,
			Options:    options,
			Register:   e.CreateRegisterFunction(can, options),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate permission %q: %w", p.Action, err)
		}
	}

	e.logger.WithField("rules", builder.Len()).Debug("ability generated")
	return builder.Build(), nil
}

// BuilderCan adapts an ability builder to a CanFunc.
// A rule without subject applies to every subject; the "fields" property
// restricts the rule to those fields. Conditions are stored in their JSON
// shape so a cached ability matches like a freshly generated one.
func BuilderCan(builder *ability.Builder) CanFunc {
	return func(_ context.Context, rule entities.Rule) error {
		fields, _ := rule.Properties.Fields()

		conditions, err := entities.NormalizeMap(rule.Condition)
		if err != nil {
			return fmt.Errorf("failed to normalize condition of %q: %w", rule.Action, err)
		}

		builder.Can(rule.Action, rule.Subject, fields, conditions)
		return nil
	}
}
