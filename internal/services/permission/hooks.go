package permission

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/asakaida/kanmon/internal/entities"
	"github.com/asakaida/kanmon/internal/services/hooks"
)

// Hook names exposed by the engine
const (
	HookBeforeFormatValidate = "before-format::validate.permission"
	HookFormat               = "format.permission"
	HookAfterFormatValidate  = "after-format::validate.permission"
	HookBeforeEvaluate       = "before-evaluate.permission"
	HookBeforeRegister       = "before-register.permission"
)

// HookNames lists the valid hook names in pipeline order
var HookNames = []string{
	HookBeforeFormatValidate,
	HookFormat,
	HookAfterFormatValidate,
	HookBeforeEvaluate,
	HookBeforeRegister,
}

var (
	// ErrInvalidHook is returned when registering a handler on an unknown hook
	ErrInvalidHook = errors.New("invalid hook supplied")
	// ErrInvalidHandler is returned when a handler does not match the hook signature
	ErrInvalidHandler = errors.New("invalid hook handler")
)

// Verdict is the result of a validation handler.
// VerdictNone lets the next handler decide; VerdictInvalid skips the permission.
type Verdict int

const (
	VerdictNone Verdict = iota
	VerdictValid
	VerdictInvalid
)

func (v Verdict) String() string {
	switch v {
	case VerdictValid:
		return "valid"
	case VerdictInvalid:
		return "invalid"
	default:
		return "none"
	}
}

// Handler signatures accepted by Engine.On
type (
	BeforeFormatValidateHandler = hooks.BailHandler[*BeforeEvaluateContext, Verdict]
	FormatHandler               = hooks.WaterfallHandler[entities.Permission]
	AfterFormatValidateHandler  = hooks.BailHandler[*ValidateContext, Verdict]
	BeforeEvaluateHandler       = hooks.SeriesHandler[*BeforeEvaluateContext]
	BeforeRegisterHandler       = hooks.SeriesHandler[*BeforeRegisterContext]
)

type engineHooks struct {
	beforeFormatValidate *hooks.Bail[*BeforeEvaluateContext, Verdict]
	format               *hooks.Waterfall[entities.Permission]
	afterFormatValidate  *hooks.Bail[*ValidateContext, Verdict]
	beforeEvaluate       *hooks.Series[*BeforeEvaluateContext]
	beforeRegister       *hooks.Series[*BeforeRegisterContext]
}

func newEngineHooks() engineHooks {
	return engineHooks{
		beforeFormatValidate: hooks.NewBail[*BeforeEvaluateContext, Verdict](),
		format:               hooks.NewWaterfall[entities.Permission](),
		afterFormatValidate:  hooks.NewBail[*ValidateContext, Verdict](),
		beforeEvaluate:       hooks.NewSeries[*BeforeEvaluateContext](),
		beforeRegister:       hooks.NewSeries[*BeforeRegisterContext](),
	}
}

func (h engineHooks) lookup(name string) (hooks.Hook, bool) {
	switch name {
	case HookBeforeFormatValidate:
		return h.beforeFormatValidate, true
	case HookFormat:
		return h.format, true
	case HookAfterFormatValidate:
		return h.afterFormatValidate, true
	case HookBeforeEvaluate:
		return h.beforeEvaluate, true
	case HookBeforeRegister:
		return h.beforeRegister, true
	default:
		return nil, false
	}
}

// On registers a handler on the named hook.
// The handler must match the hook signature (see the *Handler types); plain
// functions with the same signature are accepted.
func (e *Engine) On(name string, handler any) error {
	hook, ok := e.hooks.lookup(name)
	if !ok {
		return fmt.Errorf("%w %q, expected one of %s", ErrInvalidHook, name, strings.Join(HookNames, ", "))
	}

	switch name {
	case HookBeforeFormatValidate:
		switch h := handler.(type) {
		case BeforeFormatValidateHandler:
			e.hooks.beforeFormatValidate.Register(h)
			return nil
		case func(context.Context, *BeforeEvaluateContext) (Verdict, error):
			e.hooks.beforeFormatValidate.Register(h)
			return nil
		}
	case HookFormat:
		switch h := handler.(type) {
		case FormatHandler:
			e.hooks.format.Register(h)
			return nil
		case func(context.Context, entities.Permission) (entities.Permission, error):
			e.hooks.format.Register(h)
			return nil
		}
	case HookAfterFormatValidate:
		switch h := handler.(type) {
		case AfterFormatValidateHandler:
			e.hooks.afterFormatValidate.Register(h)
			return nil
		case func(context.Context, *ValidateContext) (Verdict, error):
			e.hooks.afterFormatValidate.Register(h)
			return nil
		}
	case HookBeforeEvaluate:
		switch h := handler.(type) {
		case BeforeEvaluateHandler:
			e.hooks.beforeEvaluate.Register(h)
			return nil
		case func(context.Context, *BeforeEvaluateContext) error:
			e.hooks.beforeEvaluate.Register(h)
			return nil
		}
	case HookBeforeRegister:
		switch h := handler.(type) {
		case BeforeRegisterHandler:
			e.hooks.beforeRegister.Register(h)
			return nil
		case func(context.Context, *BeforeRegisterContext) error:
			e.hooks.beforeRegister.Register(h)
			return nil
		}
	}

	return fmt.Errorf("%w: %T cannot be registered on %s hook %q", ErrInvalidHandler, handler, hook.Kind(), name)
}

// MustOn is like On but panics on error. It is meant for startup wiring.
func (e *Engine) MustOn(name string, handler any) {
	if err := e.On(name, handler); err != nil {
		panic(err)
	}
}

// HookLen returns the number of handlers registered on the named hook
func (e *Engine) HookLen(name string) int {
	hook, ok := e.hooks.lookup(name)
	if !ok {
		return 0
	}
	return hook.Len()
}

// ValidateContext is a read-only view of the permission under validation
type ValidateContext struct {
	permission entities.Permission
}

func newValidateContext(p entities.Permission) *ValidateContext {
	return &ValidateContext{permission: p.Clone()}
}

// Permission returns a copy of the permission
func (c *ValidateContext) Permission() entities.Permission {
	return c.permission.Clone()
}

// BeforeEvaluateContext exposes a copy of the permission together with
// AddCondition, which updates the permission held by the engine.
type BeforeEvaluateContext struct {
	snapshot entities.Permission
	target   *entities.Permission
}

func newBeforeEvaluateContext(target *entities.Permission) *BeforeEvaluateContext {
	return &BeforeEvaluateContext{snapshot: target.Clone(), target: target}
}

// Permission returns a copy of the permission as it was when the context was created
func (c *BeforeEvaluateContext) Permission() entities.Permission {
	return c.snapshot.Clone()
}

// AddCondition appends a condition to the permission under evaluation
func (c *BeforeEvaluateContext) AddCondition(condition string) *BeforeEvaluateContext {
	*c.target = entities.AddCondition(condition, *c.target)
	return c
}

// BeforeRegisterContext exposes a copy of the rule about to be registered
// together with Condition, which restricts that rule.
type BeforeRegisterContext struct {
	snapshot entities.Rule
	target   *entities.Rule
}

func newBeforeRegisterContext(target *entities.Rule) *BeforeRegisterContext {
	return &BeforeRegisterContext{snapshot: target.Clone(), target: target}
}

// Rule returns a copy of the rule as it was when the context was created
func (c *BeforeRegisterContext) Rule() entities.Rule {
	return c.snapshot.Clone()
}

// Condition returns the mutator of the rule condition tree
func (c *BeforeRegisterContext) Condition() *ConditionMutator {
	return &ConditionMutator{rule: c.target}
}

// ConditionMutator edits the {"$and": [...]} condition tree of a rule
type ConditionMutator struct {
	rule *entities.Rule
}

// And adds a clause that must hold in addition to the existing ones
func (m *ConditionMutator) And(q entities.Query) *ConditionMutator {
	clauses := m.clauses()
	m.rule.Condition[entities.OpAnd] = append(clauses, map[string]any(entities.CloneMap(q)))
	return m
}

// Or adds an alternative to the $or clause of the tree, creating it when missing
func (m *ConditionMutator) Or(q entities.Query) *ConditionMutator {
	clauses := m.clauses()
	for _, clause := range clauses {
		c, ok := clause.(map[string]any)
		if !ok {
			continue
		}
		if or, ok := c[entities.OpOr].([]any); ok {
			c[entities.OpOr] = append(or, map[string]any(entities.CloneMap(q)))
			return m
		}
	}
	m.rule.Condition[entities.OpAnd] = append(clauses, map[string]any{
		entities.OpOr: []any{map[string]any(entities.CloneMap(q))},
	})
	return m
}

func (m *ConditionMutator) clauses() []any {
	if m.rule.Condition == nil {
		m.rule.Condition = entities.Query{entities.OpAnd: []any{}}
	}
	clauses := m.rule.Condition.AndClauses()
	if clauses == nil {
		clauses = []any{}
	}
	return clauses
}
