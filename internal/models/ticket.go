package models

import "time"

// QueueTicket is one entry in a doctor's daily waiting line, created when an
// appointment is checked in. QueueNumber is the doctor-scoped ordering key
// and is renumbered as the queue advances; DailyNumber is the clinic-scoped
// display counter ("Ticket #007") and is never renumbered.
type QueueTicket struct {
	TicketID        string     `json:"ticket_id"`
	AppointmentID   string     `json:"appointment_id"`
	DoctorID        string     `json:"doctor_id"`
	ClinicID        string     `json:"clinic_id"`
	PatientID       string     `json:"patient_id"`
	Status          string     `json:"status"`
	QueueNumber     int        `json:"queue_number"`
	DailyNumber     int        `json:"daily_number"`
	FastTracked     bool       `json:"fast_tracked"`
	FastTrackReason string     `json:"fast_track_reason,omitempty"`
	CheckInTime     time.Time  `json:"check_in_time"`
	CalledAt        *time.Time `json:"called_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

const (
	StatusCheckedIn   = "checked_in"
	StatusCalled      = "called"
	StatusCompleted   = "completed"
	StatusNoShow      = "no_show"
	StatusFastTracked = "fast_tracked"
)

// IsTerminal reports whether no further transitions are possible.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusNoShow
}

// IsActive reports whether the ticket still occupies a queue slot.
func IsActive(status string) bool {
	return !IsTerminal(status)
}

// DayOf truncates t to the calendar day boundary in the clinic's location.
func DayOf(t time.Time, loc *time.Location) time.Time {
	year, month, day := t.In(loc).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// DayKey is the canonical string form of a day, used for lock and map keys.
func DayKey(day time.Time) string {
	return day.Format("2006-01-02")
}
