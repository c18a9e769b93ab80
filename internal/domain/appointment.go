package domain

import "time"

// Appointment is a booked consultation request. Phone and email are stored
// encrypted; the plaintext never leaves the booking service.
type Appointment struct {
	ID             string
	PsychologistID string
	Name           string
	Phone          []byte
	Email          []byte
	Comment        string
	Time           string
	CreatedAt      time.Time
}
