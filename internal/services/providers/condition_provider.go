package providers

import (
	"context"
	"fmt"

	"github.com/asakaida/kanmon/internal/entities"
	"github.com/asakaida/kanmon/internal/services/hooks"
)

// ConditionProvider registers the conditions a permission can reference
type ConditionProvider struct {
	registry *Provider[*entities.ConditionDefinition]
}

// NewConditionProvider creates an empty condition provider
func NewConditionProvider() *ConditionProvider {
	return &ConditionProvider{
		registry: NewProvider[*entities.ConditionDefinition](),
	}
}

// Register validates and registers a condition
func (p *ConditionProvider) Register(ctx context.Context, def entities.ConditionDefinition) error {
	if err := validateStruct(&def); err != nil {
		return fmt.Errorf("invalid condition %q: %w", def.Name, err)
	}
	d := def
	return p.registry.Register(ctx, d.ID(), &d)
}

// RegisterMany registers conditions in order and stops at the first failure
func (p *ConditionProvider) RegisterMany(ctx context.Context, defs []entities.ConditionDefinition) error {
	for _, def := range defs {
		if err := p.Register(ctx, def); err != nil {
			return err
		}
	}
	return nil
}

// Get resolves a condition ID
func (p *ConditionProvider) Get(id string) (*entities.Condition, bool) {
	def, ok := p.registry.Get(id)
	if !ok {
		return nil, false
	}
	return &entities.Condition{
		ID:          id,
		Name:        def.Name,
		DisplayName: def.DisplayName,
		Category:    def.Category,
		Handler:     def.Handler,
	}, true
}

// Has reports whether id is registered
func (p *ConditionProvider) Has(id string) bool {
	return p.registry.Has(id)
}

// Keys returns the registered condition IDs
func (p *ConditionProvider) Keys() []string {
	return p.registry.Keys()
}

// Freeze rejects later registrations
func (p *ConditionProvider) Freeze() {
	p.registry.Freeze()
}

// OnDidRegister adds a handler run after a condition is stored
func (p *ConditionProvider) OnDidRegister(handler hooks.SeriesHandler[*RegisterContext[*entities.ConditionDefinition]]) {
	p.registry.OnDidRegister(handler)
}
