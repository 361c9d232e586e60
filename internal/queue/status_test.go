package queue

import (
	"context"
	"errors"
	"testing"

	"clinicq/queue-engine/internal/models"
	"clinicq/queue-engine/internal/store"
)

func TestQueueStatusProjection(t *testing.T) {
	env := newTestEnv(t)
	tickets := env.seed(t, 5)
	ctx := context.Background()

	if _, err := env.engine.FastTrack(ctx, tickets[4].TicketID, "chest pain", baseTime); err != nil {
		t.Fatalf("fast track: %v", err)
	}
	if _, err := env.engine.UpdateStatus(ctx, tickets[1].TicketID, models.StatusNoShow, baseTime); err != nil {
		t.Fatalf("no show: %v", err)
	}
	// Queue is now: tickets[0] called, tickets[4] fast-tracked, tickets[2], tickets[3].

	cases := []struct {
		name        string
		ticketID    string
		wantPos     int
		wantServing int
		wantWait    int
		wantMessage string
	}{
		{
			name:        "called patient",
			ticketID:    tickets[0].TicketID,
			wantPos:     1,
			wantServing: 1,
			wantWait:    0,
			wantMessage: "It is your turn. Please proceed to Dr. Tan.",
		},
		{
			name:        "fast-tracked is next",
			ticketID:    tickets[4].TicketID,
			wantPos:     2,
			wantServing: 1,
			wantWait:    15,
			wantMessage: "You are 1 away from your turn.",
		},
		{
			name:        "two away",
			ticketID:    tickets[2].TicketID,
			wantPos:     3,
			wantServing: 1,
			wantWait:    30,
			wantMessage: "You are 2 away from your turn.",
		},
		{
			name:        "no-show ticket gets closing message",
			ticketID:    tickets[1].TicketID,
			wantPos:     0,
			wantServing: 1,
			wantWait:    0,
			wantMessage: "Your ticket was closed as a no-show. Please see the front desk.",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, err := env.engine.QueueStatus(ctx, tc.ticketID)
			if err != nil {
				t.Fatalf("queue status: %v", err)
			}
			if status.Position != tc.wantPos {
				t.Errorf("position = %d, want %d", status.Position, tc.wantPos)
			}
			if status.ServingNumber != tc.wantServing {
				t.Errorf("serving = %d, want %d", status.ServingNumber, tc.wantServing)
			}
			if status.EstimatedWaitMinutes != tc.wantWait {
				t.Errorf("wait = %d, want %d", status.EstimatedWaitMinutes, tc.wantWait)
			}
			if status.Message != tc.wantMessage {
				t.Errorf("message = %q, want %q", status.Message, tc.wantMessage)
			}
		})
	}
}

func TestQueueStatusDeepInQueue(t *testing.T) {
	env := newTestEnv(t)
	tickets := env.seed(t, 6)

	status, err := env.engine.QueueStatus(context.Background(), tickets[5].TicketID)
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	if status.Position != 6 {
		t.Fatalf("position = %d, want 6", status.Position)
	}
	if status.Message != "You are number 6 in the queue." {
		t.Fatalf("message = %q", status.Message)
	}
	if status.EstimatedWaitMinutes != 75 {
		t.Fatalf("wait = %d, want 75", status.EstimatedWaitMinutes)
	}
}

func TestQueueStatusCompletedTicket(t *testing.T) {
	env := newTestEnv(t)
	tickets := env.seed(t, 2)
	ctx := context.Background()

	if _, _, err := env.engine.CallNext(ctx, "doc-1", baseTime); err != nil {
		t.Fatalf("call next: %v", err)
	}
	status, err := env.engine.QueueStatus(ctx, tickets[0].TicketID)
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	if status.Status != models.StatusCompleted || status.Position != 0 {
		t.Fatalf("status = %s/%d, want completed/0", status.Status, status.Position)
	}
	if status.Message != "Your visit is complete. Thank you for coming." {
		t.Fatalf("message = %q", status.Message)
	}
}

func TestQueueStatusUnknownTicket(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.engine.QueueStatus(context.Background(), "no-such-ticket")
	if !errors.Is(err, store.ErrTicketNotFound) {
		t.Fatalf("err = %v, want ErrTicketNotFound", err)
	}
}
