package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/grievance-desk/sla-service/internal/config"
	"github.com/grievance-desk/sla-service/internal/domain"
	"github.com/grievance-desk/sla-service/internal/events"
)

func newObservedNotifications(cfg config.NotificationConfig) (events.Dispatcher, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, zap.New(core), cfg).RegisterHandlers()
	return dispatcher, logs
}

func statusChanged(issueID string) events.Event {
	return events.New(events.EventIssueStatusChanged, issueID, events.SystemActor, monday(10, 0),
		events.IssueStatusChangedPayload{OldStatus: domain.IssueStatusOpen, NewStatus: domain.IssueStatusInProgress})
}

func TestNotificationService_WebhookThrottled(t *testing.T) {
	dispatcher, logs := newObservedNotifications(config.NotificationConfig{
		WebhookURL:           "https://hooks.example.test/sla",
		WebhookRatePerMinute: 1,
	})
	ctx := context.Background()

	require.NoError(t, dispatcher.Publish(ctx, statusChanged("issue-1")))
	require.NoError(t, dispatcher.Publish(ctx, statusChanged("issue-2")))

	sent := logs.FilterMessage("sendWebhookNotificationStub").All()
	require.Len(t, sent, 1)
	assert.Equal(t, "issue-1", sent[0].ContextMap()["issue_id"])

	throttled := logs.FilterMessage("webhook notification throttled").All()
	require.Len(t, throttled, 1)
	assert.Equal(t, "issue-2", throttled[0].ContextMap()["issue_id"])
}

func TestNotificationService_WebhookUnlimitedWhenRateUnset(t *testing.T) {
	dispatcher, logs := newObservedNotifications(config.NotificationConfig{
		WebhookURL: "https://hooks.example.test/sla",
	})
	ctx := context.Background()

	for _, id := range []string{"issue-1", "issue-2", "issue-3"} {
		require.NoError(t, dispatcher.Publish(ctx, statusChanged(id)))
	}

	assert.Equal(t, 3, logs.FilterMessage("sendWebhookNotificationStub").Len())
	assert.Zero(t, logs.FilterMessage("webhook notification throttled").Len())
}

func TestNotificationService_BreachSendsEmail(t *testing.T) {
	dispatcher, logs := newObservedNotifications(config.NotificationConfig{EmailFrom: "sla@example.test"})

	event := events.New(events.EventIssueSlaStatusChanged, "issue-1", events.SystemActor, monday(10, 0),
		events.IssueSlaStatusChangedPayload{OldStatus: domain.SlaStatusAtRisk, NewStatus: domain.SlaStatusBreached})
	require.NoError(t, dispatcher.Publish(context.Background(), event))

	assert.Equal(t, 1, logs.FilterMessage("sendEmailNotificationStub").Len())
	assert.Zero(t, logs.FilterMessage("sendWebhookNotificationStub").Len(), "no webhook url configured")
}
