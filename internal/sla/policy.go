package sla

import (
	"errors"
	"fmt"

	"github.com/grievance-desk/sla-service/internal/domain"
)

// ErrInvalidPolicyConfig is returned for SLA budget tables that cannot be used.
var ErrInvalidPolicyConfig = errors.New("invalid sla policy config")

const (
	defaultAtRiskRatio        = 0.8
	defaultMaxEscalationLevel = 3
	defaultPriorityBumpEvery  = 2
)

// Budget is the working-hour allowance of a priority tier. A soft budget
// only triggers escalation and carries no hard deadline.
type Budget struct {
	Hours float64
	Soft  bool
}

// PolicyConfig configures a Policy. Zero values fall back to defaults.
type PolicyConfig struct {
	LowHours          float64
	MediumHours       float64
	HighHours         float64
	CriticalSoftHours float64
	AtRiskRatio       float64
	// MaxEscalationLevels caps the escalation level per tier.
	MaxEscalationLevels map[domain.IssuePriority]int
	// PriorityBumpEvery raises priority one tier per this many escalation
	// levels crossed. Zero disables priority bumps.
	PriorityBumpEvery int
}

// DefaultPolicyConfig returns the stock budget table.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		LowHours:          4,
		MediumHours:       24,
		HighHours:         72,
		CriticalSoftHours: 72,
		AtRiskRatio:       defaultAtRiskRatio,
		PriorityBumpEvery: defaultPriorityBumpEvery,
	}
}

// Policy maps priorities to SLA budgets and escalation limits. It is a
// configuration value and is never mutated after construction.
type Policy struct {
	budgets     map[domain.IssuePriority]Budget
	maxLevels   map[domain.IssuePriority]int
	atRiskRatio float64
	bumpEvery   int
}

// DefaultPolicy returns a policy built from DefaultPolicyConfig.
func DefaultPolicy() Policy {
	policy, _ := NewPolicy(DefaultPolicyConfig())
	return policy
}

// NewPolicy validates cfg and builds a Policy.
func NewPolicy(cfg PolicyConfig) (Policy, error) {
	defaults := DefaultPolicyConfig()
	hours := map[domain.IssuePriority]float64{
		domain.IssuePriorityLow:      orDefault(cfg.LowHours, defaults.LowHours),
		domain.IssuePriorityMedium:   orDefault(cfg.MediumHours, defaults.MediumHours),
		domain.IssuePriorityHigh:     orDefault(cfg.HighHours, defaults.HighHours),
		domain.IssuePriorityCritical: orDefault(cfg.CriticalSoftHours, defaults.CriticalSoftHours),
	}

	policy := Policy{
		budgets:     make(map[domain.IssuePriority]Budget, len(hours)),
		maxLevels:   make(map[domain.IssuePriority]int, len(hours)),
		atRiskRatio: orDefault(cfg.AtRiskRatio, defaultAtRiskRatio),
		bumpEvery:   cfg.PriorityBumpEvery,
	}
	if policy.atRiskRatio <= 0 || policy.atRiskRatio > 1 {
		return Policy{}, fmt.Errorf("%w: at-risk ratio %v must be in (0,1]", ErrInvalidPolicyConfig, policy.atRiskRatio)
	}
	if policy.bumpEvery < 0 {
		return Policy{}, fmt.Errorf("%w: priority bump cadence %d is negative", ErrInvalidPolicyConfig, policy.bumpEvery)
	}

	for priority, h := range hours {
		if h < 0 {
			return Policy{}, fmt.Errorf("%w: negative budget for %s", ErrInvalidPolicyConfig, priority)
		}
		policy.budgets[priority] = Budget{Hours: h, Soft: priority == domain.IssuePriorityCritical}

		level, ok := cfg.MaxEscalationLevels[priority]
		if !ok {
			level = defaultMaxEscalationLevel
		}
		if level < 0 {
			return Policy{}, fmt.Errorf("%w: negative max escalation level for %s", ErrInvalidPolicyConfig, priority)
		}
		policy.maxLevels[priority] = level
	}
	return policy, nil
}

// BudgetFor returns the working-hour budget of priority. Unknown priorities
// get the medium budget.
func (p Policy) BudgetFor(priority domain.IssuePriority) Budget {
	if budget, ok := p.budgets[priority]; ok {
		return budget
	}
	return p.budgets[domain.IssuePriorityMedium]
}

// AtRiskRatio is the share of the budget after which an open issue is at risk.
func (p Policy) AtRiskRatio() float64 {
	return p.atRiskRatio
}

// MaxEscalationLevel returns the highest escalation level of a tier.
func (p Policy) MaxEscalationLevel(priority domain.IssuePriority) int {
	if level, ok := p.maxLevels[priority]; ok {
		return level
	}
	return p.maxLevels[domain.IssuePriorityMedium]
}

// PriorityBumpEvery returns how many escalation levels trigger one priority bump.
func (p Policy) PriorityBumpEvery() int {
	return p.bumpEvery
}

func orDefault(v, fallback float64) float64 {
	if v == 0 {
		return fallback
	}
	return v
}
