package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/byteai/voiceline/internal/store"
)

// Ticket is a support ticket created when a call escalates to a human.
type Ticket struct {
	ID         string    `json:"id"`
	CallerName string    `json:"name,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Reason     string    `json:"reason"`
	Status     string    `json:"status"`
	SessionID  string    `json:"sessionId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TicketStore persists escalation tickets in SQLite.
type TicketStore struct {
	db *store.DB

	// SupportPhone is read back to the caller alongside the ticket.
	SupportPhone string

	now func() time.Time
}

// NewTicketStore creates a ticket store.
func NewTicketStore(db *store.DB, supportPhone string) *TicketStore {
	if supportPhone == "" {
		supportPhone = "+1-555-SUPPORT"
	}
	return &TicketStore{db: db, SupportPhone: supportPhone, now: time.Now}
}

// Create opens a new ticket with status pending.
func (s *TicketStore) Create(ctx context.Context, reason, callbackNumber, sessionID string) (*Ticket, error) {
	now := s.now()
	ticket := &Ticket{
		ID:        "TICKET-" + now.Format("20060102150405"),
		Phone:     callbackNumber,
		Reason:    reason,
		Status:    "pending",
		SessionID: sessionID,
		CreatedAt: now,
	}

	_, err := s.db.SQL().ExecContext(ctx,
		`INSERT INTO tickets (id, phone, reason, status, session_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ticket.ID, ticket.Phone, ticket.Reason, ticket.Status,
		ticket.SessionID, ticket.CreatedAt.Format(time.DateTime),
	)
	if err != nil {
		return nil, fmt.Errorf("storing ticket: %w", err)
	}

	return ticket, nil
}
