package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grievance-desk/sla-service/internal/domain"
	"github.com/grievance-desk/sla-service/internal/sla"
)

func TestLoad_SLADefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "UTC", cfg.SLA.Timezone)
	assert.Equal(t, 9, cfg.SLA.DayStartHour)
	assert.Equal(t, 17, cfg.SLA.DayEndHour)
	assert.Equal(t, 5*time.Minute, cfg.SLA.CycleInterval())
	assert.Equal(t, 4*time.Minute, cfg.SLA.CycleTimeout())

	cal, err := cfg.SLA.Calendar()
	require.NoError(t, err)
	assert.True(t, cal.IsWorkingDay(time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)), "saturday")
	assert.False(t, cal.IsWorkingDay(time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)), "sunday")

	policy, err := cfg.SLA.Policy()
	require.NoError(t, err)
	assert.Equal(t, sla.Budget{Hours: 4}, policy.BudgetFor(domain.IssuePriorityLow))
	assert.Equal(t, sla.Budget{Hours: 72, Soft: true}, policy.BudgetFor(domain.IssuePriorityCritical))
}

func TestLoad_SLAOverrides(t *testing.T) {
	t.Setenv("SLA_TIMEZONE", "Asia/Kolkata")
	t.Setenv("SLA_WORKING_DAYS", "mon,tue,wed,thu,fri")
	t.Setenv("SLA_HOLIDAYS", "2026-10-20, 2026-11-08")
	t.Setenv("SLA_BUDGET_LOW_HOURS", "6.5")
	t.Setenv("SLA_MAX_ESCALATION_LEVEL", "4")
	t.Setenv("SLA_MAX_ESCALATION_LEVEL_CRITICAL", "6")
	t.Setenv("SLA_CYCLE_INTERVAL_SECONDS", "60")
	t.Setenv("SLA_CYCLE_TIMEOUT_SECONDS", "600")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"2026-10-20", "2026-11-08"}, cfg.SLA.Holidays)
	assert.Equal(t, time.Minute, cfg.SLA.CycleTimeout(), "timeout is capped by the interval")

	policy, err := cfg.SLA.Policy()
	require.NoError(t, err)
	assert.Equal(t, 6.5, policy.BudgetFor(domain.IssuePriorityLow).Hours)
	assert.Equal(t, 4, policy.MaxEscalationLevel(domain.IssuePriorityHigh))
	assert.Equal(t, 6, policy.MaxEscalationLevel(domain.IssuePriorityCritical))

	cal, err := cfg.SLA.Calendar()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", cal.Location().String())
	assert.False(t, cal.IsWorkingDay(time.Date(2026, 10, 17, 12, 0, 0, 0, cal.Location())), "saturday")
}

func TestLoad_InvalidBudget(t *testing.T) {
	t.Setenv("SLA_BUDGET_HIGH_HOURS", "seventy-two")

	_, err := Load()
	assert.ErrorContains(t, err, "SLA_BUDGET_HIGH_HOURS")
}

func TestLoad_InvalidDayHour(t *testing.T) {
	t.Setenv("SLA_DAY_START_HOUR", "08:00")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, sla.ErrInvalidCalendarConfig)
	assert.ErrorContains(t, err, "SLA_DAY_START_HOUR")
}

func TestLoad_InvalidSLAIntegers(t *testing.T) {
	keys := []string{
		"SLA_DAY_END_HOUR",
		"SLA_PRIORITY_BUMP_EVERY",
		"SLA_CYCLE_INTERVAL_SECONDS",
		"SLA_CYCLE_WORKERS",
		"SLA_MAX_ESCALATION_LEVEL",
		"SLA_MAX_ESCALATION_LEVEL_HIGH",
	}

	for _, key := range keys {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "five")

			_, err := Load()
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestSLAConfig_InvalidCalendar(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SLAConfig)
	}{
		{"inverted hours", func(c *SLAConfig) { c.DayStartHour, c.DayEndHour = 17, 9 }},
		{"no weekdays", func(c *SLAConfig) { c.WorkingDays = "" }},
		{"unknown weekday", func(c *SLAConfig) { c.WorkingDays = "mon,xyz" }},
		{"misspelled weekday", func(c *SLAConfig) { c.WorkingDays = "monkey" }},
		{"unknown timezone", func(c *SLAConfig) { c.Timezone = "Mars/Olympus" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := SLAConfig{Timezone: "UTC", DayStartHour: 9, DayEndHour: 17, WorkingDays: "mon"}
			tt.mutate(&cfg)
			_, err := cfg.Calendar()
			assert.ErrorIs(t, err, sla.ErrInvalidCalendarConfig)
		})
	}
}
