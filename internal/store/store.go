package store

import (
	"context"
	"time"

	"clinicq/queue-engine/internal/models"
)

// TicketStore is the durable home of queue tickets. Implementations must
// apply UpdateTickets as a single atomic batch: callers rely on renumbering
// never being partially visible.
type TicketStore interface {
	CreateTicket(ctx context.Context, ticket models.QueueTicket) (models.QueueTicket, error)
	GetTicket(ctx context.Context, ticketID string) (models.QueueTicket, error)
	FindTicketByAppointment(ctx context.Context, appointmentID string) (models.QueueTicket, bool, error)
	ListDoctorDay(ctx context.Context, doctorID string, day time.Time) ([]models.QueueTicket, error)
	UpdateTickets(ctx context.Context, tickets []models.QueueTicket) error
	MaxQueueNumber(ctx context.Context, doctorID string, day time.Time) (int, error)
	NextDailyNumber(ctx context.Context, clinicID string, day time.Time) (int, error)
}
