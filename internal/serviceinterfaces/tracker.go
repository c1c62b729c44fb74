// Package serviceinterfaces defines service interfaces for dependency injection and testing.
package serviceinterfaces

import (
	"context"

	"supportapp/internal/models"
	"supportapp/internal/tracker"
)

// TicketTracker files tickets in the external issue tracker
type TicketTracker interface {
	// CreateTicket creates the issue and uploads its attachments. Only a failed
	// creation is returned as an error.
	CreateTicket(ctx context.Context, summary string, description *tracker.Document, attachments []models.Attachment) (*models.CreatedTicket, error)
}
