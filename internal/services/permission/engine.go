// Package permission turns declarative permissions into abilities.
//
// Every permission goes through the same pipeline: before-format validation,
// formatting, after-format validation, before-evaluate notification, condition
// resolution and registration. Host code customizes the pipeline through the
// hooks listed in HookNames.
package permission

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/asakaida/kanmon/internal/entities"
)

// ConditionResolver resolves condition IDs to their handlers
type ConditionResolver interface {
	Get(id string) (*entities.Condition, bool)
}

// Recorder receives engine events (implemented by the metrics collector)
type Recorder interface {
	RecordEvaluation(outcome string)
	RecordConditionDrop(reason string)
}

// Evaluation outcomes passed to Recorder.RecordEvaluation
const (
	OutcomeSkipped       = "skipped"
	OutcomeDenied        = "denied"
	OutcomeUnconditional = "unconditional"
	OutcomeConditional   = "conditional"
)

// Options is the request context handed to every condition handler
type Options struct {
	User   *entities.User
	Values map[string]any
}

// RegisterFunc adds a compiled rule to an ability
type RegisterFunc func(ctx context.Context, rule entities.Rule) error

// EvaluateParams are the inputs of Engine.Evaluate
type EvaluateParams struct {
	Permission entities.Permission
	Options    Options
	Register   RegisterFunc
}

// Engine evaluates permissions
type Engine struct {
	hooks      engineHooks
	conditions ConditionResolver
	logger     *logrus.Logger
	recorder   Recorder
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger *logrus.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRecorder sets the engine metrics recorder
func WithRecorder(recorder Recorder) Option {
	return func(e *Engine) {
		e.recorder = recorder
	}
}

// NewEngine creates an engine resolving conditions with the given provider
func NewEngine(conditions ConditionResolver, opts ...Option) *Engine {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	e := &Engine{
		hooks:      newEngineHooks(),
		conditions: conditions,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs one permission through the pipeline and calls params.Register
// zero or one time. Permissions rejected by a validation hook, or denied by all
// of their conditions, are skipped without error.
func (e *Engine) Evaluate(ctx context.Context, params EvaluateParams) error {
	if params.Register == nil {
		return fmt.Errorf("evaluate %q: register function is required", params.Permission.Action)
	}

	permission := entities.CreatePermission(params.Permission)
	log := e.logger.WithFields(logrus.Fields{
		"action":  permission.Action,
		"subject": permission.Subject,
	})

	verdict, err := e.hooks.beforeFormatValidate.Call(ctx, newBeforeEvaluateContext(&permission))
	if err != nil {
		return fmt.Errorf("%s: %w", HookBeforeFormatValidate, err)
	}
	if verdict == VerdictInvalid {
		log.Debug("permission skipped by before-format validation")
		e.record(OutcomeSkipped)
		return nil
	}

	formatted, err := e.hooks.format.Call(ctx, permission.Clone())
	if err != nil {
		return fmt.Errorf("%s: %w", HookFormat, err)
	}
	formatted = entities.CreatePermission(formatted)

	verdict, err = e.hooks.afterFormatValidate.Call(ctx, newValidateContext(formatted))
	if err != nil {
		return fmt.Errorf("%s: %w", HookAfterFormatValidate, err)
	}
	if verdict == VerdictInvalid {
		log.Debug("permission skipped by after-format validation")
		e.record(OutcomeSkipped)
		return nil
	}

	if err := e.hooks.beforeEvaluate.Call(ctx, newBeforeEvaluateContext(&formatted)); err != nil {
		return fmt.Errorf("%s: %w", HookBeforeEvaluate, err)
	}

	rule := entities.Rule{
		Action:     formatted.Action,
		Subject:    formatted.Subject,
		Properties: formatted.Properties,
	}

	if len(formatted.Conditions) == 0 {
		e.record(OutcomeUnconditional)
		return params.Register(ctx, rule)
	}

	results, err := e.evaluateConditions(ctx, formatted, params.Options, log)
	if err != nil {
		return err
	}

	decision := decide(results)
	switch decision.outcome {
	case OutcomeDenied:
		log.Debug("permission denied by its conditions")
		e.record(OutcomeDenied)
		return nil
	case OutcomeConditional:
		rule.Condition = entities.NewConditionTree(decision.queries)
	}

	e.record(decision.outcome)
	return params.Register(ctx, rule)
}

func (e *Engine) record(outcome string) {
	if e.recorder != nil {
		e.recorder.RecordEvaluation(outcome)
	}
}
