package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "support-app"

// TicketMetrics counts ticket outcomes. The zero value is not usable, call NewTicketMetrics.
type TicketMetrics struct {
	created      metric.Int64Counter
	failed       metric.Int64Counter
	uploadFailed metric.Int64Counter
}

// NewTicketMetrics registers the ticket counters on the given meter provider.
// A nil provider uses the global one.
func NewTicketMetrics(mp metric.MeterProvider) (*TicketMetrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)

	created, err := meter.Int64Counter("support.tickets.created",
		metric.WithDescription("Tickets filed in the issue tracker"))
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64Counter("support.tickets.failed",
		metric.WithDescription("Ticket submissions that did not produce an issue"))
	if err != nil {
		return nil, err
	}
	uploadFailed, err := meter.Int64Counter("support.attachments.upload_failed",
		metric.WithDescription("Attachment uploads rejected by the issue tracker"))
	if err != nil {
		return nil, err
	}

	return &TicketMetrics{created: created, failed: failed, uploadFailed: uploadFailed}, nil
}

// TicketCreated records a filed ticket for the category
func (m *TicketMetrics) TicketCreated(ctx context.Context, category string) {
	if m == nil {
		return
	}
	m.created.Add(ctx, 1, metric.WithAttributes(attribute.String("category", category)))
}

// TicketFailed records a failed submission with the error code
func (m *TicketMetrics) TicketFailed(ctx context.Context, code string) {
	if m == nil {
		return
	}
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
}

// UploadFailed records attachment uploads that were dropped
func (m *TicketMetrics) UploadFailed(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.uploadFailed.Add(ctx, int64(n))
}
