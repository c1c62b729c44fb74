package serviceinterfaces

import (
	"context"

	"supportapp/internal/models"
)

// SupportService turns a normalized submission into a ticket
type SupportService interface {
	SubmitTicket(ctx context.Context, req models.NormalizedRequest) (*models.CreatedTicket, error)
}
