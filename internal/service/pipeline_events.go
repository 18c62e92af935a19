package service

import (
	"context"
	"fmt"

	"github.com/noah-isme/admissions-api/pkg/events"
)

type statusMailSender interface {
	SendStatusChangeMail(ctx context.Context, event ApplicantStatusChanged) error
}

type summaryInvalidator interface {
	InvalidateSummary(ctx context.Context) error
}

type eventSubscriber interface {
	Subscribe(eventName, name string, fn events.Handler) error
}

// RegisterPipelineSubscribers attaches the side effects of a status change:
// the status mail, the transition counter and summary cache invalidation.
func RegisterPipelineSubscribers(bus eventSubscriber, mail statusMailSender, metrics *MetricsService, summary summaryInvalidator) error {
	subscribers := []struct {
		name string
		fn   func(ctx context.Context, event ApplicantStatusChanged) error
	}{
		{"status-mail", func(ctx context.Context, e ApplicantStatusChanged) error {
			return mail.SendStatusChangeMail(ctx, e)
		}},
		{"transition-metrics", func(ctx context.Context, e ApplicantStatusChanged) error {
			metrics.RecordTransition(e.OldStatus, e.NewStatus)
			return nil
		}},
		{"summary-cache", func(ctx context.Context, e ApplicantStatusChanged) error {
			return summary.InvalidateSummary(ctx)
		}},
	}
	for _, sub := range subscribers {
		fn := sub.fn
		err := bus.Subscribe(EventApplicantStatusChanged, sub.name, func(ctx context.Context, event events.Event) error {
			changed, ok := event.(ApplicantStatusChanged)
			if !ok {
				return fmt.Errorf("unexpected event %T", event)
			}
			return fn(ctx, changed)
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", sub.name, err)
		}
	}
	return nil
}
