// Package memory holds an in-memory TicketStore used by tests and by
// queue-engine runs without a database configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"clinicq/queue-engine/internal/models"
	"clinicq/queue-engine/internal/store"
)

type Store struct {
	mu            sync.RWMutex
	tickets       map[string]models.QueueTicket
	byAppointment map[string]string
	dailyCounters map[string]int
	loc           *time.Location
}

func NewStore(loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{
		tickets:       make(map[string]models.QueueTicket),
		byAppointment: make(map[string]string),
		dailyCounters: make(map[string]int),
		loc:           loc,
	}
}

func (s *Store) CreateTicket(ctx context.Context, ticket models.QueueTicket) (models.QueueTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byAppointment[ticket.AppointmentID]; exists {
		return models.QueueTicket{}, store.ErrDuplicateCheckIn
	}
	s.tickets[ticket.TicketID] = ticket
	s.byAppointment[ticket.AppointmentID] = ticket.TicketID
	return ticket, nil
}

func (s *Store) GetTicket(ctx context.Context, ticketID string) (models.QueueTicket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticket, ok := s.tickets[ticketID]
	if !ok {
		return models.QueueTicket{}, store.ErrTicketNotFound
	}
	return ticket, nil
}

func (s *Store) FindTicketByAppointment(ctx context.Context, appointmentID string) (models.QueueTicket, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticketID, ok := s.byAppointment[appointmentID]
	if !ok {
		return models.QueueTicket{}, false, nil
	}
	return s.tickets[ticketID], true, nil
}

func (s *Store) ListDoctorDay(ctx context.Context, doctorID string, day time.Time) ([]models.QueueTicket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dayKey := models.DayKey(day)
	var tickets []models.QueueTicket
	for _, ticket := range s.tickets {
		if ticket.DoctorID != doctorID {
			continue
		}
		if models.DayKey(models.DayOf(ticket.CheckInTime, s.loc)) != dayKey {
			continue
		}
		tickets = append(tickets, ticket)
	}
	sort.Slice(tickets, func(i, j int) bool {
		if !tickets[i].CheckInTime.Equal(tickets[j].CheckInTime) {
			return tickets[i].CheckInTime.Before(tickets[j].CheckInTime)
		}
		return tickets[i].TicketID < tickets[j].TicketID
	})
	return tickets, nil
}

func (s *Store) UpdateTickets(ctx context.Context, tickets []models.QueueTicket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ticket := range tickets {
		if _, ok := s.tickets[ticket.TicketID]; !ok {
			return store.ErrTicketNotFound
		}
	}
	for _, ticket := range tickets {
		s.tickets[ticket.TicketID] = ticket
	}
	return nil
}

func (s *Store) MaxQueueNumber(ctx context.Context, doctorID string, day time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dayKey := models.DayKey(day)
	max := 0
	for _, ticket := range s.tickets {
		if ticket.DoctorID != doctorID {
			continue
		}
		if models.DayKey(models.DayOf(ticket.CheckInTime, s.loc)) != dayKey {
			continue
		}
		if ticket.QueueNumber > max {
			max = ticket.QueueNumber
		}
	}
	return max, nil
}

func (s *Store) NextDailyNumber(ctx context.Context, clinicID string, day time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := clinicID + "|" + models.DayKey(day)
	s.dailyCounters[key]++
	return s.dailyCounters[key], nil
}
