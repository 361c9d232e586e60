package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"clinicq/queue-engine/internal/directory"
)

// Sink delivers a notification intent to a patient. Delivery is best-effort:
// the engine never consults the outcome beyond logging it.
type Sink interface {
	Send(ctx context.Context, intent Intent, contact directory.Contact) error
}

// NewSink picks a sink implementation by kind. Unknown kinds that look like
// URLs become webhook sinks; anything else falls back to logging.
func NewSink(kind, webhookURL, webhookToken string) Sink {
	switch kind {
	case "", "stub", "log":
		return LogSink{}
	case "noop":
		return NoopSink{}
	case "fail":
		return FailSink{}
	case "webhook":
		if webhookURL == "" {
			return LogSink{}
		}
		return WebhookSink{URL: webhookURL, Token: webhookToken}
	default:
		if strings.HasPrefix(kind, "http://") || strings.HasPrefix(kind, "https://") {
			return WebhookSink{URL: kind, Token: webhookToken}
		}
		return LogSink{}
	}
}

type LogSink struct{}

func (LogSink) Send(ctx context.Context, intent Intent, contact directory.Contact) error {
	recipient := contact.Phone
	if recipient == "" {
		recipient = contact.Email
	}
	log.Printf("notify kind=%s ticket=%s patient=%s recipient=%s message=%q",
		intent.Kind, intent.TicketID, intent.PatientID, recipient, intent.Message())
	return nil
}

type NoopSink struct{}

func (NoopSink) Send(ctx context.Context, intent Intent, contact directory.Contact) error {
	return nil
}

type FailSink struct{}

func (FailSink) Send(ctx context.Context, intent Intent, contact directory.Contact) error {
	return errors.New("sink failure")
}

type WebhookSink struct {
	URL   string
	Token string
}

func (s WebhookSink) Send(ctx context.Context, intent Intent, contact directory.Contact) error {
	payload := struct {
		Intent  Intent            `json:"intent"`
		Contact directory.Contact `json:"contact"`
		Message string            `json:"message"`
	}{Intent: intent, Contact: contact, Message: intent.Message()}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.New("sink rejected request")
	}
	return nil
}
