// Package appointments is the engine's view of the appointment system.
// Appointment creation and validation live upstream; the engine only reads
// an appointment to judge check-in eligibility and writes status changes
// back as the ticket advances.
package appointments

import (
	"context"
	"sync"
	"time"

	"clinicq/queue-engine/internal/store"
)

type Appointment struct {
	AppointmentID string    `json:"appointment_id"`
	PatientID     string    `json:"patient_id"`
	DoctorID      string    `json:"doctor_id"`
	ClinicID      string    `json:"clinic_id"`
	Status        string    `json:"status"`
	StartTime     time.Time `json:"start_time"`
}

const (
	StatusBooked    = "booked"
	StatusCheckedIn = "checked_in"
	StatusOngoing   = "ongoing"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

type Service interface {
	Get(ctx context.Context, appointmentID string) (Appointment, error)
	SetStatus(ctx context.Context, appointmentID, status string) error
}

// Memory is an in-process appointment book for tests and DB-less runs.
type Memory struct {
	mu           sync.RWMutex
	appointments map[string]Appointment
}

func NewMemory() *Memory {
	return &Memory{appointments: make(map[string]Appointment)}
}

func (m *Memory) Put(appointment Appointment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appointments[appointment.AppointmentID] = appointment
}

func (m *Memory) Get(ctx context.Context, appointmentID string) (Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	appointment, ok := m.appointments[appointmentID]
	if !ok {
		return Appointment{}, store.ErrAppointmentNotFound
	}
	return appointment, nil
}

func (m *Memory) SetStatus(ctx context.Context, appointmentID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	appointment, ok := m.appointments[appointmentID]
	if !ok {
		return store.ErrAppointmentNotFound
	}
	appointment.Status = status
	m.appointments[appointmentID] = appointment
	return nil
}
