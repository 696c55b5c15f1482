package permission

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/asakaida/kanmon/internal/entities"
)

// Reasons for dropping a condition from the evaluation
const (
	DropUnknownCondition = "unknown_condition"
	DropMissingHandler   = "missing_handler"
	DropInvalidResult    = "invalid_result"
)

// conditionResult is either an accepted value (bool or Query) or a drop reason
type conditionResult struct {
	condition string
	allow     *bool
	query     entities.Query
	dropped   string
}

func (r conditionResult) accepted() bool {
	return r.dropped == ""
}

// evaluateConditions resolves the conditions of p and runs their handlers concurrently.
// Malformed conditions and results are dropped; handler errors abort the evaluation.
func (e *Engine) evaluateConditions(ctx context.Context, p entities.Permission, opts Options, log *logrus.Entry) ([]conditionResult, error) {
	results := make([]conditionResult, len(p.Conditions))
	resolved := make([]*entities.Condition, len(p.Conditions))

	for i, id := range p.Conditions {
		results[i].condition = id

		var condition *entities.Condition
		if e.conditions != nil {
			condition, _ = e.conditions.Get(id)
		}
		switch {
		case condition == nil:
			results[i].dropped = DropUnknownCondition
		case condition.Handler == nil:
			results[i].dropped = DropMissingHandler
		default:
			resolved[i] = condition
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, condition := range resolved {
		if condition == nil {
			continue
		}
		g.Go(func() error {
			cc := &entities.ConditionContext{
				User:       opts.User,
				Values:     entities.CloneMap(opts.Values),
				Permission: p.Clone(),
			}
			value, err := condition.Handler(gctx, cc)
			if err != nil {
				return fmt.Errorf("condition %q: %w", condition.ID, err)
			}
			results[i] = classify(results[i].condition, value)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range results {
		if r.accepted() {
			continue
		}
		log.WithFields(logrus.Fields{"condition": r.condition, "reason": r.dropped}).Debug("condition dropped")
		if e.recorder != nil {
			e.recorder.RecordConditionDrop(r.dropped)
		}
	}

	return results, nil
}

// classify keeps booleans and query objects; everything else is dropped
func classify(condition string, value any) conditionResult {
	result := conditionResult{condition: condition}

	switch v := value.(type) {
	case bool:
		result.allow = &v
	case entities.Query:
		if v == nil {
			result.dropped = DropInvalidResult
			break
		}
		result.query = entities.Query(entities.CloneMap(v))
	case map[string]any:
		if v == nil {
			result.dropped = DropInvalidResult
			break
		}
		result.query = entities.Query(entities.CloneMap(v))
	default:
		result.dropped = DropInvalidResult
	}
	return result
}

type decision struct {
	outcome string
	queries []entities.Query
}

// decide merges the accepted condition results:
// nothing accepted allows, all false denies, any true allows unconditionally,
// otherwise the query objects are OR'ed together.
func decide(results []conditionResult) decision {
	var accepted []conditionResult
	for _, r := range results {
		if r.accepted() {
			accepted = append(accepted, r)
		}
	}

	if len(accepted) == 0 {
		return decision{outcome: OutcomeUnconditional}
	}

	allFalse := true
	for _, r := range accepted {
		if r.allow == nil || *r.allow {
			allFalse = false
			break
		}
	}
	if allFalse {
		return decision{outcome: OutcomeDenied}
	}

	var queries []entities.Query
	for _, r := range accepted {
		if r.allow != nil && *r.allow {
			return decision{outcome: OutcomeUnconditional}
		}
		if r.query != nil {
			queries = append(queries, r.query)
		}
	}

	if len(queries) == 0 {
		return decision{outcome: OutcomeUnconditional}
	}
	return decision{outcome: OutcomeConditional, queries: queries}
}
