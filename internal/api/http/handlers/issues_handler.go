package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/grievance-desk/sla-service/internal/api/dto"
	"github.com/grievance-desk/sla-service/internal/auth"
	"github.com/grievance-desk/sla-service/internal/domain"
	"github.com/grievance-desk/sla-service/pkg/util"
)

// IssueWorkflow is the issue service surface used over HTTP.
type IssueWorkflow interface {
	GetIssue(ctx context.Context, issueID string) (*domain.Issue, error)
	History(ctx context.Context, issueID string, limit int) ([]domain.IssueHistory, error)
	UpdateStatus(ctx context.Context, staffID string, issueID string, status domain.IssueStatus, comment string) (*domain.Issue, error)
	UpdatePriority(ctx context.Context, staffID string, issueID string, priority domain.IssuePriority) (*domain.Issue, error)
}

// IssuesHandler handles issue read and staff update endpoints.
type IssuesHandler struct {
	issues IssueWorkflow
}

// NewIssuesHandler constructs handler.
func NewIssuesHandler(issues IssueWorkflow) *IssuesHandler {
	return &IssuesHandler{issues: issues}
}

// GetIssue GET /api/issues/:id. Staff see any issue, employees their own.
func (h *IssuesHandler) GetIssue(c *fiber.Ctx) error {
	id, err := issueIDParam(c)
	if err != nil {
		return err
	}
	issue, err := h.issues.GetIssue(c.UserContext(), id)
	if err != nil {
		return err
	}
	if err := canView(c, issue); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewIssueResponse(issue)})
}

// History GET /api/issues/:id/history.
func (h *IssuesHandler) History(c *fiber.Ctx) error {
	id, err := issueIDParam(c)
	if err != nil {
		return err
	}
	entries, err := h.issues.History(c.UserContext(), id, c.QueryInt("limit", 100))
	if err != nil {
		return err
	}
	items := make([]dto.HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.NewHistoryEntryResponse(e))
	}
	return c.JSON(fiber.Map{"data": items})
}

// UpdateStatus PATCH /api/issues/:id/status.
func (h *IssuesHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := issueIDParam(c)
	if err != nil {
		return err
	}
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.UpdateStatusRequest
	if err := decodeAndValidate(c, &req); err != nil {
		return err
	}
	issue, err := h.issues.UpdateStatus(c.UserContext(), principal.SubjectID, id, domain.IssueStatus(req.Status), req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewIssueResponse(issue)})
}

// UpdatePriority PATCH /api/issues/:id/priority.
func (h *IssuesHandler) UpdatePriority(c *fiber.Ctx) error {
	id, err := issueIDParam(c)
	if err != nil {
		return err
	}
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.UpdatePriorityRequest
	if err := decodeAndValidate(c, &req); err != nil {
		return err
	}
	issue, err := h.issues.UpdatePriority(c.UserContext(), principal.SubjectID, id, domain.IssuePriority(req.Priority))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewIssueResponse(issue)})
}

func canView(c *fiber.Ctx, issue *domain.Issue) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	if principal.IsStaff() || principal.SubjectID == issue.RequesterID {
		return nil
	}
	// Other employees must not learn the issue exists.
	return util.NewNotFound("issue", nil)
}
