package permission

import (
	"context"
	"fmt"

	"github.com/asakaida/kanmon/internal/entities"
)

// CanFunc adds a rule to an ability builder
type CanFunc func(ctx context.Context, rule entities.Rule) error

// CreateRegisterFunction wraps can so that the before-register hook runs
// (and may restrict the rule) before the rule reaches the builder.
func (e *Engine) CreateRegisterFunction(can CanFunc, options Options) RegisterFunc {
	return func(ctx context.Context, rule entities.Rule) error {
		working := rule.Clone()
		if err := e.hooks.beforeRegister.Call(ctx, newBeforeRegisterContext(&working)); err != nil {
			return fmt.Errorf("%s: %w", HookBeforeRegister, err)
		}
		return can(ctx, working)
	}
}
