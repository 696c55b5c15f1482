package permission

import (
	"context"
	"fmt"

	"github.com/asakaida/kanmon/internal/entities"
)

// ActionRegistry is the part of the action provider used by the admin hooks
type ActionRegistry interface {
	Get(actionID string) (*entities.ActionDefinition, bool)
	AppliesToProperty(ctx context.Context, property, actionID, subject string) (bool, error)
}

// RegisterAdminHooks installs the admin pipeline on the engine:
// permissions on unknown actions are skipped, properties the action does not
// understand are removed, an empty fields list grants nothing and a locales
// property restricts the rule to those locales.
func RegisterAdminHooks(e *Engine, actions ActionRegistry) {
	e.MustOn(HookBeforeFormatValidate, func(_ context.Context, c *BeforeEvaluateContext) (Verdict, error) {
		p := c.Permission()
		if _, ok := actions.Get(p.Action); !ok {
			e.logger.WithField("action", p.Action).Warn("unknown action supplied")
			return VerdictInvalid, nil
		}
		return VerdictNone, nil
	})

	e.MustOn(HookFormat, func(ctx context.Context, p entities.Permission) (entities.Permission, error) {
		out := p
		for property := range p.Properties {
			applies, err := actions.AppliesToProperty(ctx, property, p.Action, p.Subject)
			if err != nil {
				return p, fmt.Errorf("property %q: %w", property, err)
			}
			if !applies {
				out = entities.DeleteProperty(property, out)
			}
		}
		return out, nil
	})

	e.MustOn(HookAfterFormatValidate, func(_ context.Context, c *ValidateContext) (Verdict, error) {
		fields, ok := c.Permission().Properties.Fields()
		if ok && len(fields) == 0 {
			return VerdictInvalid, nil
		}
		return VerdictNone, nil
	})

	e.MustOn(HookBeforeRegister, func(_ context.Context, c *BeforeRegisterContext) error {
		locales, ok := c.Rule().Properties.Locales()
		if !ok {
			return nil
		}
		in := make([]any, 0, len(locales))
		for _, l := range locales {
			in = append(in, l)
		}
		c.Condition().And(entities.Query{"locale": map[string]any{"$in": in}})
		return nil
	})
}
