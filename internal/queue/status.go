package queue

import (
	"context"
	"fmt"
	"log"

	"clinicq/queue-engine/internal/models"
)

// Typical consultation length used for the rough wait estimate.
const consultMinutes = 15

// TicketQueueStatus is the on-demand position summary for one ticket.
type TicketQueueStatus struct {
	TicketID             string `json:"ticket_id"`
	DoctorID             string `json:"doctor_id"`
	Status               string `json:"status"`
	QueueNumber          int    `json:"queue_number"`
	DailyNumber          int    `json:"daily_number"`
	ServingNumber        int    `json:"serving_number"`
	Position             int    `json:"position"`
	EstimatedWaitMinutes int    `json:"estimated_wait_minutes"`
	Message              string `json:"message"`
}

// QueueStatus projects a ticket's current standing: the number being served,
// the ticket's 1-based position in fast-tracked-first order, and a
// patient-facing message. Terminal tickets get a closing message and no
// position.
func (e *Engine) QueueStatus(ctx context.Context, ticketID string) (TicketQueueStatus, error) {
	ticket, err := e.store.GetTicket(ctx, ticketID)
	if err != nil {
		return TicketQueueStatus{}, err
	}

	day := models.DayOf(ticket.CheckInTime, e.loc)
	tickets, err := e.store.ListDoctorDay(ctx, ticket.DoctorID, day)
	if err != nil {
		return TicketQueueStatus{}, err
	}
	active := activeTickets(tickets)
	sortActive(active)

	serving := 0
	for _, t := range active {
		if t.Status == models.StatusCalled && (serving == 0 || t.QueueNumber < serving) {
			serving = t.QueueNumber
		}
	}

	position := 0
	for i, t := range active {
		if t.TicketID == ticketID {
			position = i + 1
			break
		}
	}

	doctorName, err := e.directory.DoctorName(ctx, ticket.DoctorID)
	if err != nil {
		log.Printf("doctor lookup error doctor=%s: %v", ticket.DoctorID, err)
	}

	status := TicketQueueStatus{
		TicketID:      ticket.TicketID,
		DoctorID:      ticket.DoctorID,
		Status:        ticket.Status,
		QueueNumber:   ticket.QueueNumber,
		DailyNumber:   ticket.DailyNumber,
		ServingNumber: serving,
		Position:      position,
	}
	if position > 1 {
		status.EstimatedWaitMinutes = (position - 1) * consultMinutes
	}
	status.Message = statusMessage(ticket.Status, position, doctorName)
	return status, nil
}

func statusMessage(status string, position int, doctorName string) string {
	doctor := doctorName
	if doctor == "" {
		doctor = "your doctor"
	}
	switch status {
	case models.StatusCalled:
		return fmt.Sprintf("It is your turn. Please proceed to %s.", doctor)
	case models.StatusCompleted:
		return "Your visit is complete. Thank you for coming."
	case models.StatusNoShow:
		return "Your ticket was closed as a no-show. Please see the front desk."
	default:
		ahead := position - 1
		switch {
		case ahead <= 0:
			return fmt.Sprintf("You are next. Please stay close to %s's room.", doctor)
		case ahead <= 3:
			// Same cutoff as the notification sweep: three_away fires at
			// serving+3, the fourth list position.
			return fmt.Sprintf("You are %d away from your turn.", ahead)
		default:
			return fmt.Sprintf("You are number %d in the queue.", position)
		}
	}
}
