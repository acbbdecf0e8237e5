package tools

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/byteai/voiceline/internal/store"
	"github.com/byteai/voiceline/pkg/llm"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func fixedNow() time.Time {
	return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
}

func TestBookAppointmentValidation(t *testing.T) {
	s := NewAppointmentStore(testDB(t))
	s.now = fixedNow
	ctx := context.Background()

	tests := []struct {
		name    string
		date    string
		time    string
		wantErr error
	}{
		{"bad date format", "09/15/2026", "10:00", ErrBadDateFormat},
		{"bad time format", "2026-09-15", "10am", ErrBadTimeFormat},
		{"past date", "2026-08-30", "10:00", ErrPastDate},
		{"before opening", "2026-09-15", "08:59", ErrOutsideHours},
		{"after closing", "2026-09-15", "17:00", ErrOutsideHours},
		{"valid morning", "2026-09-15", "09:00", nil},
		{"valid same day", "2026-08-31", "16:59", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Book(ctx, tt.date, tt.time, "Ada Lovelace", "+15550100")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestBookAppointmentIDFormat(t *testing.T) {
	s := NewAppointmentStore(testDB(t))
	s.now = fixedNow

	appt, err := s.Book(context.Background(), "2026-09-15", "10:00", "Ada Lovelace", "+15550100")
	require.NoError(t, err)
	require.Equal(t, "APT-20260831120000", appt.ID)
	require.Equal(t, "confirmed", appt.Status)
}

func TestCheckByPhoneReturnsMostRecent(t *testing.T) {
	db := testDB(t)
	s := NewAppointmentStore(db)

	when := fixedNow()
	for i, date := range []string{"2026-09-10", "2026-09-20"} {
		stamp := when.Add(time.Duration(i) * time.Minute)
		s.now = func() time.Time { return stamp }
		_, err := s.Book(context.Background(), date, "10:00", "Ada Lovelace", "+15550100")
		require.NoError(t, err)
	}

	appt, err := s.CheckByPhone(context.Background(), "+15550100")
	require.NoError(t, err)
	require.Equal(t, "2026-09-20", appt.Date)

	_, err = s.CheckByPhone(context.Background(), "+15559999")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTicketCreate(t *testing.T) {
	s := NewTicketStore(testDB(t), "")
	s.now = fixedNow

	ticket, err := s.Create(context.Background(), "caller asked for a human", "+15550100", "sess-1")
	require.NoError(t, err)
	require.Equal(t, "TICKET-20260831120000", ticket.ID)
	require.Equal(t, "pending", ticket.Status)
	require.Equal(t, "+1-555-SUPPORT", s.SupportPhone)
}

func testRegistry(t *testing.T) (*Registry, *AppointmentStore) {
	t.Helper()
	db := testDB(t)
	appts := NewAppointmentStore(db)
	appts.now = fixedNow
	tickets := NewTicketStore(db, "")
	tickets.now = fixedNow

	r := NewRegistry(time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	RegisterBuiltin(r, appts, tickets)
	return r, appts
}

func TestRegistryDefinitions(t *testing.T) {
	r, _ := testRegistry(t)

	defs := r.Definitions()
	require.Len(t, defs, 3)
	require.Equal(t, "book_appointment", defs[0].Name)
	require.Equal(t, "check_appointment", defs[1].Name)
	require.Equal(t, "escalate_to_human", defs[2].Name)
	require.NotEmpty(t, defs[0].InputSchema["properties"])
}

func TestExecuteBookAppointment(t *testing.T) {
	r, _ := testRegistry(t)

	result := r.Execute(context.Background(), llm.ToolCall{
		ID:   "toolu_01",
		Name: "book_appointment",
		Arguments: map[string]any{
			"date": "2026-09-15", "time": "10:00",
			"name": "Ada Lovelace", "phone": "+15550100",
		},
	})
	require.False(t, result.IsError)
	require.Equal(t, "toolu_01", result.ToolCallID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Content), &payload))
	require.Equal(t, true, payload["success"])
	require.Equal(t, "APT-20260831120000", payload["appointment_id"])
}

func TestExecuteValidationErrorSurfacedToModel(t *testing.T) {
	r, _ := testRegistry(t)

	result := r.Execute(context.Background(), llm.ToolCall{
		ID:   "toolu_02",
		Name: "book_appointment",
		Arguments: map[string]any{
			"date": "yesterday", "time": "10:00",
			"name": "Ada", "phone": "+15550100",
		},
	})
	require.True(t, result.IsError)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Content), &payload))
	require.Equal(t, false, payload["success"])
	require.Contains(t, payload["error"], "YYYY-MM-DD")
}

func TestExecuteUnknownTool(t *testing.T) {
	r, _ := testRegistry(t)

	result := r.Execute(context.Background(), llm.ToolCall{ID: "toolu_03", Name: "launch_rocket"})
	require.True(t, result.IsError)
	require.Contains(t, result.Content, "unknown tool")
}

func TestExecuteTimeout(t *testing.T) {
	r := NewRegistry(10*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.Register(&Tool{
		Name: "slow",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Second):
				return "done", nil
			}
		},
	})

	result := r.Execute(context.Background(), llm.ToolCall{ID: "toolu_04", Name: "slow"})
	require.True(t, result.IsError)
	require.Contains(t, result.Content, "context deadline exceeded")
}

func TestExecuteEscalationTagsSession(t *testing.T) {
	r, _ := testRegistry(t)

	ctx := WithSessionID(context.Background(), "sess-42")
	result := r.Execute(ctx, llm.ToolCall{
		ID:        "toolu_05",
		Name:      "escalate_to_human",
		Arguments: map[string]any{"reason": "complex billing dispute"},
	})
	require.False(t, result.IsError)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Content), &payload))
	require.Contains(t, payload["ticket_id"], "TICKET-")
	require.NotEmpty(t, payload["support_phone"])
}

func TestCheckAppointmentNotFoundIsError(t *testing.T) {
	r, _ := testRegistry(t)

	result := r.Execute(context.Background(), llm.ToolCall{
		ID:        "toolu_06",
		Name:      "check_appointment",
		Arguments: map[string]any{"phone": "+15559999"},
	})
	require.True(t, result.IsError)
	require.Contains(t, result.Content, "no appointments found")
}
