package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/asakaida/kanmon/internal/entities"
	"github.com/asakaida/kanmon/internal/services/hooks"
)

// ErrActionNotFound is returned when an action ID is not registered
var ErrActionNotFound = errors.New("action not found")

// PropertyContext is passed to the appliesPropertyToSubject hook
type PropertyContext struct {
	Property string
	Action   *entities.ActionDefinition
	Subject  string
}

// AppliesPropertyToSubjectHandler returns false to prevent a property from
// applying to a subject. Handlers with no opinion return true.
type AppliesPropertyToSubjectHandler = hooks.ParallelHandler[*PropertyContext, bool]

// ActionProvider registers the actions a permission can grant
type ActionProvider struct {
	registry                 *Provider[*entities.ActionDefinition]
	appliesPropertyToSubject *hooks.Parallel[*PropertyContext, bool]
}

// NewActionProvider creates an empty action provider
func NewActionProvider() *ActionProvider {
	return &ActionProvider{
		registry:                 NewProvider[*entities.ActionDefinition](),
		appliesPropertyToSubject: hooks.NewParallel[*PropertyContext, bool](),
	}
}

// Register validates and registers an action
func (p *ActionProvider) Register(ctx context.Context, def entities.ActionDefinition) error {
	if err := validateStruct(&def); err != nil {
		return fmt.Errorf("invalid action %q: %w", def.UID, err)
	}
	d := def
	return p.registry.Register(ctx, d.ActionID(), &d)
}

// RegisterMany registers actions in order and stops at the first failure
func (p *ActionProvider) RegisterMany(ctx context.Context, defs []entities.ActionDefinition) error {
	for _, def := range defs {
		if err := p.Register(ctx, def); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the action registered under actionID
func (p *ActionProvider) Get(actionID string) (*entities.ActionDefinition, bool) {
	return p.registry.Get(actionID)
}

// Has reports whether actionID is registered
func (p *ActionProvider) Has(actionID string) bool {
	return p.registry.Has(actionID)
}

// Values returns the registered actions sorted by ID
func (p *ActionProvider) Values() []*entities.ActionDefinition {
	return p.registry.Values()
}

// Keys returns the registered action IDs
func (p *ActionProvider) Keys() []string {
	return p.registry.Keys()
}

// Freeze rejects later registrations
func (p *ActionProvider) Freeze() {
	p.registry.Freeze()
}

// OnWillRegister adds a handler run before an action is stored
func (p *ActionProvider) OnWillRegister(handler hooks.SeriesHandler[*RegisterContext[*entities.ActionDefinition]]) {
	p.registry.OnWillRegister(handler)
}

// OnDidRegister adds a handler run after an action is stored
func (p *ActionProvider) OnDidRegister(handler hooks.SeriesHandler[*RegisterContext[*entities.ActionDefinition]]) {
	p.registry.OnDidRegister(handler)
}

// OnAppliesPropertyToSubject adds a handler to the appliesPropertyToSubject hook
func (p *ActionProvider) OnAppliesPropertyToSubject(handler AppliesPropertyToSubjectHandler) {
	p.appliesPropertyToSubject.Register(handler)
}

// AppliesToProperty reports whether property can be set on permissions of actionID.
// When subject is not empty the action must target it and no
// appliesPropertyToSubject handler may object.
func (p *ActionProvider) AppliesToProperty(ctx context.Context, property, actionID, subject string) (bool, error) {
	action, ok := p.Get(actionID)
	if !ok {
		return false, nil
	}
	if !action.AppliesToProperty(property) {
		return false, nil
	}
	if subject == "" {
		return true, nil
	}
	if !action.AppliesToSubject(subject) {
		return false, nil
	}

	results, err := p.appliesPropertyToSubject.Call(ctx, &PropertyContext{
		Property: property,
		Action:   action,
		Subject:  subject,
	})
	if err != nil {
		return false, fmt.Errorf("appliesPropertyToSubject: %w", err)
	}
	for _, ok := range results {
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Validate checks that a permission targets a registered action and a subject the action accepts
func (p *ActionProvider) Validate(permission entities.Permission) error {
	if err := validateStruct(&permission); err != nil {
		return err
	}
	action, ok := p.Get(permission.Action)
	if !ok {
		return fmt.Errorf("%w: %s", ErrActionNotFound, permission.Action)
	}
	if permission.HasSubject() && !action.AppliesToSubject(permission.Subject) {
		return fmt.Errorf("%w: action %s does not apply to subject %s", ErrValidation, permission.Action, permission.Subject)
	}
	return nil
}
