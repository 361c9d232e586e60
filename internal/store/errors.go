package store

import "errors"

var (
	ErrTicketNotFound      = errors.New("ticket not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrDuplicateCheckIn    = errors.New("appointment already checked in")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrEmptyQueue          = errors.New("no tickets in queue")
	ErrUnavailable         = errors.New("storage unavailable")
)
