package sla

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grievance-desk/sla-service/internal/domain"
)

func TestDefaultPolicy_Budgets(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		priority domain.IssuePriority
		want     Budget
	}{
		{domain.IssuePriorityLow, Budget{Hours: 4}},
		{domain.IssuePriorityMedium, Budget{Hours: 24}},
		{domain.IssuePriorityHigh, Budget{Hours: 72}},
		{domain.IssuePriorityCritical, Budget{Hours: 72, Soft: true}},
		{domain.IssuePriority("bogus"), Budget{Hours: 24}},
	}

	for _, tt := range tests {
		t.Run(string(tt.priority), func(t *testing.T) {
			assert.Equal(t, tt.want, policy.BudgetFor(tt.priority))
		})
	}
	assert.Equal(t, 0.8, policy.AtRiskRatio())
	assert.Equal(t, 3, policy.MaxEscalationLevel(domain.IssuePriorityHigh))
	assert.Equal(t, 2, policy.PriorityBumpEvery())
}

func TestNewPolicy_Overrides(t *testing.T) {
	policy, err := NewPolicy(PolicyConfig{
		LowHours:            8,
		AtRiskRatio:         0.5,
		MaxEscalationLevels: map[domain.IssuePriority]int{domain.IssuePriorityCritical: 5},
	})
	require.NoError(t, err)

	assert.Equal(t, Budget{Hours: 8}, policy.BudgetFor(domain.IssuePriorityLow))
	assert.Equal(t, Budget{Hours: 24}, policy.BudgetFor(domain.IssuePriorityMedium))
	assert.Equal(t, 0.5, policy.AtRiskRatio())
	assert.Equal(t, 5, policy.MaxEscalationLevel(domain.IssuePriorityCritical))
	assert.Equal(t, 3, policy.MaxEscalationLevel(domain.IssuePriorityLow))
	assert.Zero(t, policy.PriorityBumpEvery())
}

func TestNewPolicy_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  PolicyConfig
	}{
		{"negative budget", PolicyConfig{HighHours: -1}},
		{"ratio above one", PolicyConfig{AtRiskRatio: 1.5}},
		{"negative ratio", PolicyConfig{AtRiskRatio: -0.1}},
		{"negative bump cadence", PolicyConfig{PriorityBumpEvery: -1}},
		{"negative max level", PolicyConfig{MaxEscalationLevels: map[domain.IssuePriority]int{domain.IssuePriorityLow: -1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPolicy(tt.cfg)
			assert.ErrorIs(t, err, ErrInvalidPolicyConfig)
		})
	}
}
