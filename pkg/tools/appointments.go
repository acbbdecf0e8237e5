package tools

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/byteai/voiceline/internal/store"
)

// Appointment is a booked appointment record.
type Appointment struct {
	ID         string    `json:"id"`
	CallerName string    `json:"name"`
	Phone      string    `json:"phone"`
	Date       string    `json:"date"` // YYYY-MM-DD
	Time       string    `json:"time"` // HH:MM, 24-hour
	Reason     string    `json:"reason,omitempty"`
	Status     string    `json:"status"`
	SessionID  string    `json:"sessionId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Validation errors returned by Book. The messages are spoken back to
// the caller by the model, so they stay conversational.
var (
	ErrBadDateFormat = errors.New("invalid date format, please use YYYY-MM-DD")
	ErrBadTimeFormat = errors.New("invalid time format, please use HH:MM in 24-hour format")
	ErrPastDate      = errors.New("appointments cannot be booked in the past")
	ErrOutsideHours  = errors.New("appointments are only available between 9 AM and 5 PM")
	ErrNotFound      = errors.New("no appointments found for this phone number")
)

// Business hours for bookings, inclusive start and exclusive end.
const (
	openingHour = 9
	closingHour = 17
)

// AppointmentStore persists appointments in SQLite.
type AppointmentStore struct {
	db *store.DB

	// now is swappable for tests.
	now func() time.Time
}

// NewAppointmentStore creates an appointment store.
func NewAppointmentStore(db *store.DB) *AppointmentStore {
	return &AppointmentStore{db: db, now: time.Now}
}

// Book validates and stores an appointment. Validation failures come
// back as the sentinel errors above.
func (s *AppointmentStore) Book(ctx context.Context, date, timeOfDay, name, phone string) (*Appointment, error) {
	apptDate, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, ErrBadDateFormat
	}

	apptTime, err := time.Parse("15:04", timeOfDay)
	if err != nil {
		return nil, ErrBadTimeFormat
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if apptDate.Before(today) {
		return nil, ErrPastDate
	}

	if h := apptTime.Hour(); h < openingHour || h >= closingHour {
		return nil, ErrOutsideHours
	}

	appt := &Appointment{
		ID:         "APT-" + now.Format("20060102150405"),
		CallerName: name,
		Phone:      phone,
		Date:       date,
		Time:       timeOfDay,
		Status:     "confirmed",
		CreatedAt:  now,
	}

	_, err = s.db.SQL().ExecContext(ctx,
		`INSERT INTO appointments (id, caller_name, phone, date, time, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		appt.ID, appt.CallerName, appt.Phone, appt.Date, appt.Time,
		appt.Status, appt.CreatedAt.Format(time.DateTime),
	)
	if err != nil {
		return nil, fmt.Errorf("storing appointment: %w", err)
	}

	return appt, nil
}

// CheckByPhone returns the most recently booked appointment for a phone
// number, or ErrNotFound.
func (s *AppointmentStore) CheckByPhone(ctx context.Context, phone string) (*Appointment, error) {
	row := s.db.SQL().QueryRowContext(ctx,
		`SELECT id, caller_name, phone, date, time, reason, status, created_at
		 FROM appointments
		 WHERE phone = ?
		 ORDER BY created_at DESC
		 LIMIT 1`,
		phone,
	)

	var appt Appointment
	var createdAt string
	err := row.Scan(&appt.ID, &appt.CallerName, &appt.Phone, &appt.Date,
		&appt.Time, &appt.Reason, &appt.Status, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("checking appointment: %w", err)
	}
	appt.CreatedAt, _ = time.Parse(time.DateTime, createdAt)

	return &appt, nil
}
