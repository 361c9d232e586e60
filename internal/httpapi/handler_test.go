package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"clinicq/queue-engine/internal/appointments"
	"clinicq/queue-engine/internal/directory"
	"clinicq/queue-engine/internal/models"
	"clinicq/queue-engine/internal/notify"
	"clinicq/queue-engine/internal/queue"
	"clinicq/queue-engine/internal/store/memory"
)

type testServer struct {
	handler http.Handler
	appts   *appointments.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := memory.NewStore(time.UTC)
	appts := appointments.NewMemory()
	dir := directory.NewStatic()
	dir.PutDoctor("doc-1", "Dr. Tan")
	trigger := notify.NewTrigger(st, dir, notify.NoopSink{})
	engine := queue.New(st, appts, dir, trigger, time.UTC)
	return &testServer{
		handler: NewHandler(engine).Routes(),
		appts:   appts,
	}
}

func (s *testServer) book(appointmentID, doctorID string) {
	s.appts.Put(appointments.Appointment{
		AppointmentID: appointmentID,
		PatientID:     "pat-" + appointmentID,
		DoctorID:      doctorID,
		ClinicID:      "clinic-1",
		Status:        appointments.StatusBooked,
		StartTime:     time.Now().UTC(),
	})
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) checkIn(t *testing.T, appointmentID string) models.QueueTicket {
	t.Helper()
	s.book(appointmentID, "doc-1")
	rec := s.do(t, http.MethodPost, "/api/tickets/checkin",
		fmt.Sprintf(`{"appointment_id":%q}`, appointmentID))
	if rec.Code != http.StatusCreated {
		t.Fatalf("check-in status = %d, body %s", rec.Code, rec.Body.String())
	}
	var ticket models.QueueTicket
	if err := json.Unmarshal(rec.Body.Bytes(), &ticket); err != nil {
		t.Fatalf("decode ticket: %v", err)
	}
	return ticket
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return payload.Error.Code
}

func TestCheckInEndpoint(t *testing.T) {
	srv := newTestServer(t)

	ticket := srv.checkIn(t, "appt-1")
	if ticket.QueueNumber != 1 || ticket.Status != models.StatusCalled {
		t.Fatalf("ticket = %s/%d, want called/1", ticket.Status, ticket.QueueNumber)
	}

	second := srv.checkIn(t, "appt-2")
	if second.QueueNumber != 2 || second.Status != models.StatusCheckedIn {
		t.Fatalf("second ticket = %s/%d, want checked_in/2", second.Status, second.QueueNumber)
	}
}

func TestCheckInEndpointValidation(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"invalid json", `{`, http.StatusBadRequest, "invalid_json"},
		{"unknown field", `{"appointment":"x"}`, http.StatusBadRequest, "invalid_json"},
		{"missing appointment", `{"appointment_id":"  "}`, http.StatusBadRequest, "invalid_request"},
		{"unknown appointment", `{"appointment_id":"appt-missing"}`, http.StatusNotFound, "appointment_not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := srv.do(t, http.MethodPost, "/api/tickets/checkin", tc.body)
			if rec.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantCode)
			}
			if code := errorCode(t, rec); code != tc.wantErr {
				t.Fatalf("error code = %s, want %s", code, tc.wantErr)
			}
		})
	}

	if rec := srv.do(t, http.MethodGet, "/api/tickets/checkin", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d, want 405", rec.Code)
	}
}

func TestCheckInEndpointDuplicate(t *testing.T) {
	srv := newTestServer(t)
	srv.checkIn(t, "appt-1")

	// Reset the appointment so the ticket uniqueness guard answers, not the
	// appointment eligibility check.
	srv.book("appt-1", "doc-1")
	rec := srv.do(t, http.MethodPost, "/api/tickets/checkin", `{"appointment_id":"appt-1"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if code := errorCode(t, rec); code != "duplicate_checkin" {
		t.Fatalf("error code = %s, want duplicate_checkin", code)
	}
}

func TestCallNextEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.checkIn(t, "appt-1")
	second := srv.checkIn(t, "appt-2")

	rec := srv.do(t, http.MethodPost, "/api/queues/doc-1/actions/call-next", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var called models.QueueTicket
	if err := json.Unmarshal(rec.Body.Bytes(), &called); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if called.TicketID != second.TicketID || called.Status != models.StatusCalled {
		t.Fatalf("called = %s/%s, want %s/called", called.TicketID, called.Status, second.TicketID)
	}

	// Second call drains the queue.
	if rec := srv.do(t, http.MethodPost, "/api/queues/doc-1/actions/call-next", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("drained status = %d, want 204", rec.Code)
	}

	rec = srv.do(t, http.MethodPost, "/api/queues/doc-1/actions/call-next", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("empty status = %d, want 409", rec.Code)
	}
	if code := errorCode(t, rec); code != "queue_empty" {
		t.Fatalf("error code = %s, want queue_empty", code)
	}
}

func TestFastTrackEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.checkIn(t, "appt-1")
	srv.checkIn(t, "appt-2")
	third := srv.checkIn(t, "appt-3")

	rec := srv.do(t, http.MethodPost, "/api/tickets/"+third.TicketID+"/actions/fast-track", `{"reason":"chest pain"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var updated models.QueueTicket
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.Status != models.StatusFastTracked || updated.QueueNumber != 2 {
		t.Fatalf("updated = %s/%d, want fast_tracked/2", updated.Status, updated.QueueNumber)
	}

	rec = srv.do(t, http.MethodPost, "/api/tickets/"+third.TicketID+"/actions/fast-track", `{"reason":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty reason status = %d, want 400", rec.Code)
	}
}

func TestTicketActionEndpoints(t *testing.T) {
	srv := newTestServer(t)
	first := srv.checkIn(t, "appt-1")
	second := srv.checkIn(t, "appt-2")

	rec := srv.do(t, http.MethodPost, "/api/tickets/"+second.TicketID+"/actions/no-show", "{}")
	if rec.Code != http.StatusOK {
		t.Fatalf("no-show status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = srv.do(t, http.MethodPost, "/api/tickets/"+first.TicketID+"/actions/complete", "{}")
	if rec.Code != http.StatusOK {
		t.Fatalf("complete status = %d, body %s", rec.Code, rec.Body.String())
	}

	// A completed ticket accepts no further transitions.
	rec = srv.do(t, http.MethodPost, "/api/tickets/"+first.TicketID+"/actions/no-show", "{}")
	if rec.Code != http.StatusConflict {
		t.Fatalf("repeat transition status = %d, want 409", rec.Code)
	}
	if code := errorCode(t, rec); code != "invalid_transition" {
		t.Fatalf("error code = %s, want invalid_transition", code)
	}

	rec = srv.do(t, http.MethodPost, "/api/tickets/"+first.TicketID+"/actions/escalate", "{}")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown action status = %d, want 404", rec.Code)
	}
}

func TestTicketStatusEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.checkIn(t, "appt-1")
	second := srv.checkIn(t, "appt-2")

	rec := srv.do(t, http.MethodGet, "/api/tickets/"+second.TicketID+"/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var status queue.TicketQueueStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Position != 2 || status.ServingNumber != 1 {
		t.Fatalf("position/serving = %d/%d, want 2/1", status.Position, status.ServingNumber)
	}
	if status.Message == "" {
		t.Fatal("message is empty")
	}

	rec = srv.do(t, http.MethodGet, "/api/tickets/no-such-ticket/status", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown ticket status = %d, want 404", rec.Code)
	}
}

func TestQueueSnapshotEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.checkIn(t, "appt-1")
	srv.checkIn(t, "appt-2")

	rec := srv.do(t, http.MethodGet, "/api/queues/doc-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var tickets []models.QueueTicket
	if err := json.Unmarshal(rec.Body.Bytes(), &tickets); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tickets) != 2 {
		t.Fatalf("tickets = %d, want 2", len(tickets))
	}
	if tickets[0].QueueNumber != 1 || tickets[1].QueueNumber != 2 {
		t.Fatalf("queue numbers = %d,%d, want 1,2", tickets[0].QueueNumber, tickets[1].QueueNumber)
	}

	rec = srv.do(t, http.MethodGet, "/api/queues/doc-idle", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("idle queue status = %d, want 200", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Fatalf("idle queue body = %s, want []", body)
	}
}

func TestRateLimiterBurst(t *testing.T) {
	limiter := newTokenLimiter(60, 2)
	if !limiter.allow("1.2.3.4") || !limiter.allow("1.2.3.4") {
		t.Fatal("burst requests should be allowed")
	}
	if limiter.allow("1.2.3.4") {
		t.Fatal("request over burst should be denied")
	}
	if !limiter.allow("5.6.7.8") {
		t.Fatal("other keys are limited independently")
	}
}
