package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/grievance-desk/sla-service/internal/config"
	"github.com/grievance-desk/sla-service/internal/domain"
	"github.com/grievance-desk/sla-service/internal/events"
)

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	limiter    *rate.Limiter
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	limit := rate.Inf
	burst := 1
	if cfg.WebhookRatePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.WebhookRatePerMinute))
		burst = cfg.WebhookRatePerMinute
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventIssueSlaEscalated, n.handleSlaEscalated)
	n.dispatcher.Subscribe(events.EventIssueSlaStatusChanged, n.handleSlaStatusChanged)
	n.dispatcher.Subscribe(events.EventIssueStatusChanged, n.handleStatusChanged)
	n.dispatcher.Subscribe(events.EventIssuePriorityChanged, n.handlePriorityChanged)
}

func (n *NotificationService) handleSlaEscalated(ctx context.Context, event events.Event) error {
	n.logger.Info("IssueSlaEscalated", zap.String("issue_id", event.IssueID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleSlaStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("IssueSlaStatusChanged", zap.String("issue_id", event.IssueID), zap.Any("payload", event.Payload))
	if payload, ok := event.Payload.(events.IssueSlaStatusChangedPayload); ok && payload.NewStatus == domain.SlaStatusBreached {
		n.sendEmailNotificationStub(ctx, event)
	}
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("IssueStatusChanged", zap.String("issue_id", event.IssueID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handlePriorityChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("IssuePriorityChanged", zap.String("issue_id", event.IssueID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("issue_id", event.IssueID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	if !n.limiter.Allow() {
		n.logger.Warn("webhook notification throttled",
			zap.String("issue_id", event.IssueID),
			zap.String("event_type", string(event.Type)))
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("issue_id", event.IssueID),
		zap.String("event_type", string(event.Type)))
}
