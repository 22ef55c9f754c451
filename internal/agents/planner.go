// Package agents implements the stage-specific logic the workflow state
// machine invokes at each transition: Planner, Collector, Analyzer, Writer
// (spec §4.7). Agents never mutate a WorkflowState directly; each method
// takes a read-only snapshot and returns a delta the state machine applies
// under its single-writer discipline (spec §5).
package agents

import (
	"strings"

	"github.com/riskguard/analyzer/internal/model"
	"github.com/riskguard/analyzer/internal/validation"
	"github.com/riskguard/analyzer/pkg/observability"
)

// Planner generates the initial search plan for a session (spec §4.7).
type Planner struct {
	logger observability.Logger
}

// NewPlanner builds a Planner. logger may be nil.
func NewPlanner(logger observability.Logger) *Planner {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Planner{logger: logger}
}

// Plan builds the five built-in intents plus one custom intent per
// non-empty line of notes. An invalid INN is logged as a warning and
// planning proceeds: the plan still includes INN-dependent intents, the
// registry, court and analytics clients reject the invalid INN, and those
// failed sources contribute nothing to the score
// (spec §4.7: "planner emits a warning but proceeds").
func (p *Planner) Plan(clientName, inn, notes string) []model.SearchIntent {
	if inn != "" && !validation.ValidINN(inn) {
		p.logger.Warn("INN failed check-digit validation, proceeding with degraded plan", map[string]interface{}{"inn": inn})
	}

	intents := []model.SearchIntent{
		{Category: model.CategoryReputation, Query: clientName + " reputation reviews"},
		{Category: model.CategoryNews, Query: clientName + " news"},
		{Category: model.CategoryNegative, Query: clientName + " fraud scandal investigation"},
	}
	if inn != "" {
		intents = append(intents,
			model.SearchIntent{Category: model.CategoryLawsuits, Query: clientName + " " + inn + " court case lawsuit"},
			model.SearchIntent{Category: model.CategoryFinancial, Query: clientName + " " + inn + " financial statement debt"},
		)
	} else {
		intents = append(intents,
			model.SearchIntent{Category: model.CategoryLawsuits, Query: clientName + " court case lawsuit"},
			model.SearchIntent{Category: model.CategoryFinancial, Query: clientName + " financial statement debt"},
		)
	}

	for _, line := range strings.Split(notes, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		intents = append(intents, model.SearchIntent{Category: model.CategoryCustom, Query: line})
	}

	return intents
}
