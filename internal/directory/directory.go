// Package directory resolves display names and contact details for message
// templating. It is never consulted for authorization.
package directory

import (
	"context"
	"sync"
)

type Contact struct {
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type Directory interface {
	DoctorName(ctx context.Context, doctorID string) (string, error)
	PatientContact(ctx context.Context, patientID string) (Contact, error)
}

// Static serves a fixed set of names and contacts; missing entries resolve
// to zero values rather than errors so templating degrades gracefully.
type Static struct {
	mu       sync.RWMutex
	doctors  map[string]string
	contacts map[string]Contact
}

func NewStatic() *Static {
	return &Static{
		doctors:  make(map[string]string),
		contacts: make(map[string]Contact),
	}
}

func (s *Static) PutDoctor(doctorID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doctors[doctorID] = name
}

func (s *Static) PutPatient(patientID string, contact Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[patientID] = contact
}

func (s *Static) DoctorName(ctx context.Context, doctorID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doctors[doctorID], nil
}

func (s *Static) PatientContact(ctx context.Context, patientID string) (Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contacts[patientID], nil
}
