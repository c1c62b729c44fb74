package serviceinterfaces

import (
	"context"

	"supportapp/internal/models"
)

// TicketNotifier tells people about a newly created ticket
type TicketNotifier interface {
	// NotifyTicketCreated sends the notifications for a ticket
	NotifyTicketCreated(ctx context.Context, n models.TicketNotification) error

	// IsEnabled returns whether notifications are sent
	IsEnabled() bool
}
