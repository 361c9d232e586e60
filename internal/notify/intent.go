package notify

import (
	"fmt"
	"time"
)

// IntentKind enumerates the notification intents the queue engine emits.
// Adding a kind requires extending Message below; the switch is exhaustive.
type IntentKind string

const (
	KindCheckInConfirmed IntentKind = "checkin_confirmed"
	KindThreeAway        IntentKind = "three_away"
	KindNextInLine       IntentKind = "next_in_line"
	KindCalled           IntentKind = "called"
	KindFastTracked      IntentKind = "fast_tracked"
)

// Intent is a decision to notify one patient about their queue position.
// Delivery is somebody else's problem.
type Intent struct {
	Kind        IntentKind `json:"kind"`
	TicketID    string     `json:"ticket_id"`
	PatientID   string     `json:"patient_id"`
	DoctorID    string     `json:"doctor_id"`
	DoctorName  string     `json:"doctor_name"`
	Status      string     `json:"status"`
	QueueNumber int        `json:"queue_number"`
	DailyNumber int        `json:"daily_number"`
	CheckInTime time.Time  `json:"check_in_time"`
	Reason      string     `json:"reason,omitempty"`
}

// Message renders the patient-facing text for an intent.
func (i Intent) Message() string {
	doctor := i.DoctorName
	if doctor == "" {
		doctor = "your doctor"
	}
	switch i.Kind {
	case KindCheckInConfirmed:
		if i.Status == "called" {
			return fmt.Sprintf("You are checked in and %s is ready for you now.", doctor)
		}
		return fmt.Sprintf("You are checked in. Your ticket for today is #%03d.", i.DailyNumber)
	case KindThreeAway:
		return fmt.Sprintf("You are 3 patients away from your turn with %s.", doctor)
	case KindNextInLine:
		return fmt.Sprintf("You are next in line for %s.", doctor)
	case KindCalled:
		return fmt.Sprintf("It is your turn. Please proceed to %s.", doctor)
	case KindFastTracked:
		return fmt.Sprintf("You have been moved up in the queue (%s).", i.Reason)
	default:
		return ""
	}
}
