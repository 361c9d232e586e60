package notify

import (
	"context"
	"log"
	"time"

	"clinicq/queue-engine/internal/directory"
	"clinicq/queue-engine/internal/models"
	"clinicq/queue-engine/internal/store"
)

// Trigger decides when and for whom to emit notification intents after a
// queue mutation. It runs outside the engine's critical section; sink and
// lookup failures are logged and swallowed so a slow or broken delivery
// channel can never stall or fail a queue operation.
type Trigger struct {
	store     store.TicketStore
	directory directory.Directory
	sink      Sink
}

func NewTrigger(ticketStore store.TicketStore, dir directory.Directory, sink Sink) *Trigger {
	return &Trigger{store: ticketStore, directory: dir, sink: sink}
}

// Sweep re-evaluates a doctor's queue and notifies the called patient plus
// the patients who are next and three away. Re-emitting for the same state
// is harmless; intents are idempotent by design.
func (t *Trigger) Sweep(ctx context.Context, doctorID string, day time.Time) {
	tickets, err := t.store.ListDoctorDay(ctx, doctorID, day)
	if err != nil {
		log.Printf("notify sweep list error doctor=%s: %v", doctorID, err)
		return
	}

	serving := 0
	for _, ticket := range tickets {
		if ticket.Status != models.StatusCalled {
			continue
		}
		if serving == 0 || ticket.QueueNumber < serving {
			serving = ticket.QueueNumber
		}
	}

	for _, ticket := range tickets {
		switch {
		case ticket.Status == models.StatusCalled && ticket.QueueNumber == serving:
			t.emit(ctx, KindCalled, ticket)
		case ticket.Status == models.StatusCheckedIn && ticket.QueueNumber == serving+3:
			t.emit(ctx, KindThreeAway, ticket)
		case ticket.Status == models.StatusCheckedIn && ticket.QueueNumber == serving+1:
			t.emit(ctx, KindNextInLine, ticket)
		}
	}
}

// CheckInConfirmed notifies a patient that their ticket exists. The wording
// differs when the ticket landed directly on CALLED (empty queue).
func (t *Trigger) CheckInConfirmed(ctx context.Context, ticket models.QueueTicket) {
	t.emit(ctx, KindCheckInConfirmed, ticket)
}

// FastTracked notifies the patient whose ticket was moved to the front.
func (t *Trigger) FastTracked(ctx context.Context, ticket models.QueueTicket) {
	t.emit(ctx, KindFastTracked, ticket)
}

func (t *Trigger) emit(ctx context.Context, kind IntentKind, ticket models.QueueTicket) {
	doctorName, err := t.directory.DoctorName(ctx, ticket.DoctorID)
	if err != nil {
		log.Printf("notify doctor lookup error doctor=%s: %v", ticket.DoctorID, err)
	}
	contact, err := t.directory.PatientContact(ctx, ticket.PatientID)
	if err != nil {
		log.Printf("notify contact lookup error patient=%s: %v", ticket.PatientID, err)
	}

	intent := Intent{
		Kind:        kind,
		TicketID:    ticket.TicketID,
		PatientID:   ticket.PatientID,
		DoctorID:    ticket.DoctorID,
		DoctorName:  doctorName,
		Status:      ticket.Status,
		QueueNumber: ticket.QueueNumber,
		DailyNumber: ticket.DailyNumber,
		CheckInTime: ticket.CheckInTime,
		Reason:      ticket.FastTrackReason,
	}
	if err := t.sink.Send(ctx, intent, contact); err != nil {
		log.Printf("notify send error kind=%s ticket=%s: %v", kind, ticket.TicketID, err)
	}
}
