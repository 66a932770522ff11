package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/grievance-desk/sla-service/internal/api/dto"
	"github.com/grievance-desk/sla-service/internal/service"
	"github.com/grievance-desk/sla-service/internal/worker"
	"github.com/grievance-desk/sla-service/pkg/util"
)

// IssueEvaluator classifies one issue on demand.
type IssueEvaluator interface {
	EvaluateIssue(ctx context.Context, issueID string) (service.IssueEvaluation, error)
}

// SummaryProvider returns the SLA compliance summary.
type SummaryProvider interface {
	Summary(ctx context.Context) (service.SlaSummary, error)
}

// CycleTrigger runs one escalation cycle immediately.
type CycleTrigger interface {
	RunOnce(ctx context.Context) (worker.CycleReport, error)
}

// SlaHandler serves SLA evaluation, analytics and manual recompute.
type SlaHandler struct {
	evaluator IssueEvaluator
	summaries SummaryProvider
	trigger   CycleTrigger
}

// NewSlaHandler constructs handler.
func NewSlaHandler(evaluator IssueEvaluator, summaries SummaryProvider, trigger CycleTrigger) *SlaHandler {
	return &SlaHandler{evaluator: evaluator, summaries: summaries, trigger: trigger}
}

// GetIssueSla GET /api/issues/:id/sla.
func (h *SlaHandler) GetIssueSla(c *fiber.Ctx) error {
	id, err := issueIDParam(c)
	if err != nil {
		return err
	}
	res, err := h.evaluator.EvaluateIssue(c.UserContext(), id)
	if err != nil {
		return err
	}
	if err := canView(c, res.Issue); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSlaEvaluationResponse(res.Issue, res.Evaluation, res.At)})
}

// Summary GET /api/analytics/sla.
func (h *SlaHandler) Summary(c *fiber.Ctx) error {
	summary, err := h.summaries.Summary(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}

// Recompute POST /api/admin/sla/recompute runs a cycle now. A storage
// failure mid-cycle still reports what was applied.
func (h *SlaHandler) Recompute(c *fiber.Ctx) error {
	report, err := h.trigger.RunOnce(c.UserContext())
	if errors.Is(err, worker.ErrCycleInProgress) {
		return util.NewConflict("escalation cycle already in progress", nil)
	}
	if err != nil {
		if report.Mutations == 0 {
			return util.NewUnavailable("escalation cycle failed", err)
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"data":    report,
			"warning": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"data": report})
}
