package tools

import (
	"context"
	"fmt"
)

// stringArg extracts a string argument, empty if absent.
func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

// RegisterBuiltin registers the standard call-handling tools against the
// given stores.
func RegisterBuiltin(r *Registry, appointments *AppointmentStore, tickets *TicketStore) {
	r.Register(&Tool{
		Name:        "book_appointment",
		Description: "Book an appointment for the caller. Requires a date (YYYY-MM-DD), a time (HH:MM, 24-hour), the caller's name, and their phone number.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"date":  map[string]any{"type": "string", "description": "Appointment date in YYYY-MM-DD format"},
				"time":  map[string]any{"type": "string", "description": "Appointment time in HH:MM 24-hour format"},
				"name":  map[string]any{"type": "string", "description": "Caller's full name"},
				"phone": map[string]any{"type": "string", "description": "Caller's phone number"},
			},
			"required": []string{"date", "time", "name", "phone"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			appt, err := appointments.Book(ctx,
				stringArg(args, "date"), stringArg(args, "time"),
				stringArg(args, "name"), stringArg(args, "phone"))
			if err != nil {
				return "", err
			}
			return successResult(map[string]any{
				"appointment_id": appt.ID,
				"date":           appt.Date,
				"time":           appt.Time,
				"name":           appt.CallerName,
				"message": fmt.Sprintf("Appointment confirmed for %s on %s at %s. Confirmation number: %s",
					appt.CallerName, appt.Date, appt.Time, appt.ID),
			})
		},
	})

	r.Register(&Tool{
		Name:        "check_appointment",
		Description: "Look up the caller's most recent appointment by phone number.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"phone": map[string]any{"type": "string", "description": "Phone number the appointment was booked under"},
			},
			"required": []string{"phone"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			appt, err := appointments.CheckByPhone(ctx, stringArg(args, "phone"))
			if err != nil {
				return "", err
			}
			return successResult(map[string]any{
				"appointment": map[string]any{
					"id":     appt.ID,
					"date":   appt.Date,
					"time":   appt.Time,
					"name":   appt.CallerName,
					"status": appt.Status,
				},
				"message": fmt.Sprintf("Found an appointment for %s on %s at %s",
					appt.CallerName, appt.Date, appt.Time),
			})
		},
	})

	r.Register(&Tool{
		Name:        "escalate_to_human",
		Description: "Escalate the call to a human agent when the caller asks for a person or the assistant cannot help. Creates a support ticket for a callback.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"reason":          map[string]any{"type": "string", "description": "Why the call needs a human"},
				"callback_number": map[string]any{"type": "string", "description": "Number to call back, if different from the caller's"},
			},
			"required": []string{"reason"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			sessionID, _ := ctx.Value(sessionIDKey{}).(string)
			ticket, err := tickets.Create(ctx,
				stringArg(args, "reason"), stringArg(args, "callback_number"), sessionID)
			if err != nil {
				return "", err
			}
			callback := ticket.Phone
			if callback == "" {
				callback = "the number you are calling from"
			}
			return successResult(map[string]any{
				"ticket_id":     ticket.ID,
				"support_phone": tickets.SupportPhone,
				"message": fmt.Sprintf("I've created support ticket %s and our team will call you back soon at %s.",
					ticket.ID, callback),
			})
		},
	})
}

type sessionIDKey struct{}

// WithSessionID tags a context so tool executions can attribute records
// to the call they came from.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}
