package service

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/grievance-desk/sla-service/internal/cache"
	"github.com/grievance-desk/sla-service/internal/domain"
	"github.com/grievance-desk/sla-service/internal/repository"
	"github.com/grievance-desk/sla-service/internal/sla"
)

const summaryKey = "sla_summary"

// SlaCounter reads grouped SLA counts from storage.
type SlaCounter interface {
	CountBySlaStatus(ctx context.Context) ([]repository.SlaCount, error)
}

// SlaSummary is the SLA compliance overview across all issues.
type SlaSummary struct {
	GeneratedAt time.Time                                         `json:"generated_at"`
	Total       int                                               `json:"total"`
	ByStatus    map[domain.SlaStatus]int                          `json:"by_status"`
	ByPriority  map[domain.IssuePriority]map[domain.SlaStatus]int `json:"by_priority"`
	BreachRate  float64                                           `json:"breach_rate"`
}

// AnalyticsService serves cached SLA summaries.
type AnalyticsService struct {
	counter SlaCounter
	cache   *cache.TTLCache[string, SlaSummary]
	clock   sla.Clock
	// generation changes on every Invalidate; a summary read across a
	// change is returned but not cached.
	generation atomic.Uint64
}

// NewAnalyticsService builds the service; summaries live for ttl on clock.
func NewAnalyticsService(counter SlaCounter, ttl time.Duration, clock sla.Clock) *AnalyticsService {
	if clock == nil {
		clock = sla.SystemClock
	}
	return &AnalyticsService{
		counter: counter,
		cache:   cache.NewTTLCache[string, SlaSummary](ttl, clock),
		clock:   clock,
	}
}

// Summary returns the cached summary or recomputes it.
func (a *AnalyticsService) Summary(ctx context.Context) (SlaSummary, error) {
	if cached, ok := a.cache.Get(summaryKey); ok {
		return cached, nil
	}

	gen := a.generation.Load()
	counts, err := a.counter.CountBySlaStatus(ctx)
	if err != nil {
		return SlaSummary{}, err
	}

	summary := SlaSummary{
		GeneratedAt: a.clock(),
		ByStatus:    make(map[domain.SlaStatus]int),
		ByPriority:  make(map[domain.IssuePriority]map[domain.SlaStatus]int),
	}
	for _, c := range counts {
		summary.Total += c.Count
		summary.ByStatus[c.SlaStatus] += c.Count
		if summary.ByPriority[c.Priority] == nil {
			summary.ByPriority[c.Priority] = make(map[domain.SlaStatus]int)
		}
		summary.ByPriority[c.Priority][c.SlaStatus] += c.Count
	}
	if summary.Total > 0 {
		rate := float64(summary.ByStatus[domain.SlaStatusBreached]) / float64(summary.Total)
		summary.BreachRate = math.Round(rate*10000) / 10000
	}

	if a.generation.Load() == gen {
		a.cache.Set(summaryKey, summary)
	}
	return summary, nil
}

// Invalidate drops the cached summary.
func (a *AnalyticsService) Invalidate() {
	a.generation.Add(1)
	a.cache.InvalidateAll()
}
