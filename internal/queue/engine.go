// Package queue holds the ordering engine for per-doctor daily waiting
// lines: check-in, call-next, fast-track re-insertion, status transitions,
// and the position renumbering that keeps active tickets gap-free.
package queue

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"clinicq/queue-engine/internal/appointments"
	"clinicq/queue-engine/internal/directory"
	"clinicq/queue-engine/internal/models"
	"clinicq/queue-engine/internal/notify"
	"clinicq/queue-engine/internal/store"

	"github.com/google/uuid"
)

// Engine mutates one doctor's daily queue at a time. All queue-mutating
// operations for a (doctor, day) pair are serialized through a keyed mutex;
// the critical section covers allocate/renumber/persist only. Appointment
// propagation and notification intents run after the lock releases.
type Engine struct {
	store        store.TicketStore
	appointments appointments.Service
	directory    directory.Directory
	trigger      *notify.Trigger
	loc          *time.Location
	locks        *keyedMutex
}

func New(ticketStore store.TicketStore, appts appointments.Service, dir directory.Directory, trigger *notify.Trigger, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		store:        ticketStore,
		appointments: appts,
		directory:    dir,
		trigger:      trigger,
		loc:          loc,
		locks:        newKeyedMutex(),
	}
}

// CheckIn turns an eligible appointment into a queue ticket. The first
// ticket of an idle queue is called immediately. A second check-in for the
// same appointment fails with ErrDuplicateCheckIn and mutates nothing.
func (e *Engine) CheckIn(ctx context.Context, appointmentID string, now time.Time) (models.QueueTicket, error) {
	appointment, err := e.appointments.Get(ctx, appointmentID)
	if err != nil {
		return models.QueueTicket{}, err
	}
	if appointment.Status != appointments.StatusBooked {
		return models.QueueTicket{}, fmt.Errorf("%w: appointment %s is %s and cannot be checked in",
			store.ErrInvalidTransition, appointmentID, appointment.Status)
	}

	day := models.DayOf(now, e.loc)
	if models.DayOf(appointment.StartTime, e.loc).Before(day) {
		return models.QueueTicket{}, fmt.Errorf("%w: appointment %s is dated in the past",
			store.ErrInvalidTransition, appointmentID)
	}

	ticket, err := e.checkInLocked(ctx, appointment, day, now)
	if err != nil {
		return models.QueueTicket{}, err
	}

	if err := e.appointments.SetStatus(ctx, appointmentID, appointments.StatusCheckedIn); err != nil {
		log.Printf("appointment status propagate error appointment=%s: %v", appointmentID, err)
	}
	e.trigger.CheckInConfirmed(ctx, ticket)
	if ticket.QueueNumber <= 4 {
		e.trigger.Sweep(ctx, ticket.DoctorID, day)
	}
	return ticket, nil
}

func (e *Engine) checkInLocked(ctx context.Context, appointment appointments.Appointment, day time.Time, now time.Time) (models.QueueTicket, error) {
	unlock := e.locks.lock(lockKey(appointment.DoctorID, day))
	defer unlock()

	if _, exists, err := e.store.FindTicketByAppointment(ctx, appointment.AppointmentID); err != nil {
		return models.QueueTicket{}, err
	} else if exists {
		return models.QueueTicket{}, store.ErrDuplicateCheckIn
	}

	max, err := e.store.MaxQueueNumber(ctx, appointment.DoctorID, day)
	if err != nil {
		return models.QueueTicket{}, err
	}
	daily, err := e.store.NextDailyNumber(ctx, appointment.ClinicID, day)
	if err != nil {
		return models.QueueTicket{}, err
	}

	ticket := models.QueueTicket{
		TicketID:      uuid.NewString(),
		AppointmentID: appointment.AppointmentID,
		DoctorID:      appointment.DoctorID,
		ClinicID:      appointment.ClinicID,
		PatientID:     appointment.PatientID,
		Status:        models.StatusCheckedIn,
		QueueNumber:   max + 1,
		DailyNumber:   daily,
		CheckInTime:   now,
	}
	if ticket.QueueNumber == 1 {
		ticket.Status = models.StatusCalled
		ticket.CalledAt = &now
	}

	return e.store.CreateTicket(ctx, ticket)
}

// CallNext completes the currently called ticket (pinning its queue number
// to 0), shifts every remaining active ticket forward one slot, and calls
// the lowest eligible ticket. A fully drained queue returns found=false; a
// queue with no active tickets at all returns ErrEmptyQueue.
func (e *Engine) CallNext(ctx context.Context, doctorID string, now time.Time) (models.QueueTicket, bool, error) {
	day := models.DayOf(now, e.loc)

	next, completed, err := e.callNextLocked(ctx, doctorID, day, now)
	if err != nil {
		return models.QueueTicket{}, false, err
	}

	if completed != nil {
		if err := e.appointments.SetStatus(ctx, completed.AppointmentID, appointments.StatusCompleted); err != nil {
			log.Printf("appointment status propagate error appointment=%s: %v", completed.AppointmentID, err)
		}
	}
	e.trigger.Sweep(ctx, doctorID, day)

	if next == nil {
		return models.QueueTicket{}, false, nil
	}
	return *next, true, nil
}

func (e *Engine) callNextLocked(ctx context.Context, doctorID string, day time.Time, now time.Time) (*models.QueueTicket, *models.QueueTicket, error) {
	unlock := e.locks.lock(lockKey(doctorID, day))
	defer unlock()

	tickets, err := e.store.ListDoctorDay(ctx, doctorID, day)
	if err != nil {
		return nil, nil, err
	}
	active := activeTickets(tickets)
	if len(active) == 0 {
		return nil, nil, store.ErrEmptyQueue
	}

	var completed *models.QueueTicket
	for i := range active {
		if active[i].Status == models.StatusCalled {
			completed = &active[i]
			break
		}
	}

	changed := make(map[string]bool, len(active))
	if completed != nil {
		completed.Status = models.StatusCompleted
		completed.QueueNumber = 0
		completed.CompletedAt = &now
		changed[completed.TicketID] = true
		for i := range active {
			if active[i].TicketID == completed.TicketID {
				continue
			}
			active[i].QueueNumber--
			changed[active[i].TicketID] = true
		}
	}

	var eligible []*models.QueueTicket
	for i := range active {
		if active[i].Status == models.StatusCheckedIn || active[i].Status == models.StatusFastTracked {
			eligible = append(eligible, &active[i])
		}
	}
	sortActiveRefs(eligible)

	var next *models.QueueTicket
	if len(eligible) > 0 {
		next = eligible[0]
		next.Status = models.StatusCalled
		next.CalledAt = &now
		changed[next.TicketID] = true
	}

	updates := collectChanged(active, changed)
	if err := e.store.UpdateTickets(ctx, updates); err != nil {
		return nil, nil, err
	}
	return copyTicket(next), copyTicket(completed), nil
}

// FastTrack moves a ticket to the front of the queue without displacing the
// patient currently being served. A first-time fast-track shifts every
// active ticket between the target slot and the ticket's old slot; a repeat
// fast-track only reorders within the fast-tracked group.
func (e *Engine) FastTrack(ctx context.Context, ticketID, reason string, now time.Time) (models.QueueTicket, error) {
	if strings.TrimSpace(reason) == "" {
		return models.QueueTicket{}, fmt.Errorf("%w: fast-track requires a reason", store.ErrInvalidTransition)
	}

	ticket, err := e.store.GetTicket(ctx, ticketID)
	if err != nil {
		return models.QueueTicket{}, err
	}
	day := models.DayOf(ticket.CheckInTime, e.loc)

	updated, err := e.fastTrackLocked(ctx, ticket.DoctorID, day, ticketID, reason)
	if err != nil {
		return models.QueueTicket{}, err
	}

	e.trigger.FastTracked(ctx, updated)
	e.trigger.Sweep(ctx, ticket.DoctorID, day)
	return updated, nil
}

func (e *Engine) fastTrackLocked(ctx context.Context, doctorID string, day time.Time, ticketID, reason string) (models.QueueTicket, error) {
	unlock := e.locks.lock(lockKey(doctorID, day))
	defer unlock()

	tickets, err := e.store.ListDoctorDay(ctx, doctorID, day)
	if err != nil {
		return models.QueueTicket{}, err
	}
	active := activeTickets(tickets)

	var target *models.QueueTicket
	calledExists := false
	for i := range active {
		if active[i].TicketID == ticketID {
			target = &active[i]
		}
		if active[i].Status == models.StatusCalled {
			calledExists = true
		}
	}
	if target == nil {
		current, err := e.store.GetTicket(ctx, ticketID)
		if err != nil {
			return models.QueueTicket{}, err
		}
		return models.QueueTicket{}, fmt.Errorf("%w: ticket %s is %s and cannot be fast-tracked",
			store.ErrInvalidTransition, ticketID, current.Status)
	}
	if target.Status != models.StatusCheckedIn && target.Status != models.StatusFastTracked {
		return models.QueueTicket{}, fmt.Errorf("%w: ticket %s is %s and cannot be fast-tracked",
			store.ErrInvalidTransition, ticketID, target.Status)
	}

	// Never displace the patient being served.
	slot := 1
	if calledExists {
		slot = 2
	}

	changed := map[string]bool{target.TicketID: true}
	old := target.QueueNumber
	wasFastTracked := target.FastTracked
	if old > slot {
		for i := range active {
			if active[i].TicketID == target.TicketID {
				continue
			}
			if wasFastTracked && !active[i].FastTracked {
				continue
			}
			if active[i].QueueNumber >= slot && active[i].QueueNumber < old {
				active[i].QueueNumber++
				changed[active[i].TicketID] = true
			}
		}
		target.QueueNumber = slot
	}

	target.Status = models.StatusFastTracked
	target.FastTracked = true
	target.FastTrackReason = reason

	updates := collectChanged(active, changed)
	if err := e.store.UpdateTickets(ctx, updates); err != nil {
		return models.QueueTicket{}, err
	}
	return *target, nil
}

// UpdateStatus applies a generic status transition. Terminal statuses vacate
// the ticket's slot: its queue number is zeroed and the tickets behind it
// shift forward so active numbering stays gap-free.
func (e *Engine) UpdateStatus(ctx context.Context, ticketID, status string, now time.Time) (models.QueueTicket, error) {
	ticket, err := e.store.GetTicket(ctx, ticketID)
	if err != nil {
		return models.QueueTicket{}, err
	}
	day := models.DayOf(ticket.CheckInTime, e.loc)

	updated, err := e.updateStatusLocked(ctx, ticket.DoctorID, day, ticketID, status, now)
	if err != nil {
		return models.QueueTicket{}, err
	}

	if models.IsTerminal(status) {
		appointmentStatus := appointments.StatusCompleted
		if status == models.StatusNoShow {
			appointmentStatus = appointments.StatusNoShow
		}
		if err := e.appointments.SetStatus(ctx, updated.AppointmentID, appointmentStatus); err != nil {
			log.Printf("appointment status propagate error appointment=%s: %v", updated.AppointmentID, err)
		}
	}
	e.trigger.Sweep(ctx, ticket.DoctorID, day)
	return updated, nil
}

func (e *Engine) updateStatusLocked(ctx context.Context, doctorID string, day time.Time, ticketID, status string, now time.Time) (models.QueueTicket, error) {
	unlock := e.locks.lock(lockKey(doctorID, day))
	defer unlock()

	tickets, err := e.store.ListDoctorDay(ctx, doctorID, day)
	if err != nil {
		return models.QueueTicket{}, err
	}
	active := activeTickets(tickets)

	var target *models.QueueTicket
	for i := range active {
		if active[i].TicketID == ticketID {
			target = &active[i]
			break
		}
	}
	if target == nil {
		// Terminal tickets are still in the store but accept no transitions.
		current, err := e.store.GetTicket(ctx, ticketID)
		if err != nil {
			return models.QueueTicket{}, err
		}
		return models.QueueTicket{}, fmt.Errorf("%w: ticket %s is %s and cannot become %s",
			store.ErrInvalidTransition, ticketID, current.Status, status)
	}
	if !store.ValidTransition(target.Status, status) {
		return models.QueueTicket{}, fmt.Errorf("%w: ticket %s is %s and cannot become %s",
			store.ErrInvalidTransition, ticketID, target.Status, status)
	}

	changed := map[string]bool{target.TicketID: true}
	switch status {
	case models.StatusCalled:
		// Only the lowest-numbered active ticket may be called. Calling a
		// mid-queue ticket would strand lower numbers behind it and break
		// the renumbering done by the call-next completion step.
		for i := range active {
			if active[i].TicketID == target.TicketID {
				continue
			}
			if active[i].Status == models.StatusCalled {
				return models.QueueTicket{}, fmt.Errorf("%w: ticket %s is already called for this doctor",
					store.ErrInvalidTransition, active[i].TicketID)
			}
			if active[i].QueueNumber < target.QueueNumber {
				return models.QueueTicket{}, fmt.Errorf("%w: ticket %s is not at the front of the queue",
					store.ErrInvalidTransition, ticketID)
			}
		}
		target.CalledAt = &now
	case models.StatusCheckedIn:
		target.FastTracked = false
		target.FastTrackReason = ""
	case models.StatusCompleted, models.StatusNoShow:
		old := target.QueueNumber
		target.QueueNumber = 0
		if status == models.StatusCompleted {
			target.CompletedAt = &now
		}
		for i := range active {
			if active[i].TicketID == target.TicketID {
				continue
			}
			if active[i].QueueNumber > old {
				active[i].QueueNumber--
				changed[active[i].TicketID] = true
			}
		}
	}
	target.Status = status

	updates := collectChanged(active, changed)
	if err := e.store.UpdateTickets(ctx, updates); err != nil {
		return models.QueueTicket{}, err
	}
	return *target, nil
}

// ListQueue returns a doctor's active queue in serving order. It takes no
// lock; the store yields a consistent snapshot.
func (e *Engine) ListQueue(ctx context.Context, doctorID string, now time.Time) ([]models.QueueTicket, error) {
	day := models.DayOf(now, e.loc)
	tickets, err := e.store.ListDoctorDay(ctx, doctorID, day)
	if err != nil {
		return nil, err
	}
	active := activeTickets(tickets)
	sortActive(active)
	return active, nil
}

func lockKey(doctorID string, day time.Time) string {
	return doctorID + "|" + models.DayKey(day)
}

func activeTickets(tickets []models.QueueTicket) []models.QueueTicket {
	var active []models.QueueTicket
	for _, ticket := range tickets {
		if models.IsActive(ticket.Status) {
			active = append(active, ticket)
		}
	}
	return active
}

// sortActive orders by queue number. Fast-tracked tickets hold the lowest
// unserved numbers by construction, so serving order falls out of the
// numbering; the remaining keys only break ties.
func sortActive(tickets []models.QueueTicket) {
	sort.Slice(tickets, func(i, j int) bool {
		return lessActive(tickets[i], tickets[j])
	})
}

func sortActiveRefs(tickets []*models.QueueTicket) {
	sort.Slice(tickets, func(i, j int) bool {
		return lessActive(*tickets[i], *tickets[j])
	})
}

func lessActive(a, b models.QueueTicket) bool {
	if a.QueueNumber != b.QueueNumber {
		return a.QueueNumber < b.QueueNumber
	}
	if a.FastTracked != b.FastTracked {
		return a.FastTracked
	}
	return a.TicketID < b.TicketID
}

func collectChanged(active []models.QueueTicket, changed map[string]bool) []models.QueueTicket {
	var updates []models.QueueTicket
	for _, ticket := range active {
		if changed[ticket.TicketID] {
			updates = append(updates, ticket)
		}
	}
	return updates
}

func copyTicket(ticket *models.QueueTicket) *models.QueueTicket {
	if ticket == nil {
		return nil
	}
	clone := *ticket
	return &clone
}
