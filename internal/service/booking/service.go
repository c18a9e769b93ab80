package booking

import (
	"context"
	"regexp"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/stanislavNemch/psychologists-services/internal/domain"
	"github.com/stanislavNemch/psychologists-services/internal/repository"
	"github.com/stanislavNemch/psychologists-services/pkg/config"
	"github.com/stanislavNemch/psychologists-services/pkg/crypto"
)

// TimeSlots enumerates bookable half-hour consultation slots.
var TimeSlots = []string{
	"09:00", "09:30", "10:00", "10:30", "11:00", "11:30",
	"12:00", "12:30", "13:00", "13:30", "14:00", "14:30",
	"15:00", "15:30", "16:00", "16:30", "17:00", "17:30",
	"18:00",
}

var (
	phonePattern = regexp.MustCompile(`^\+380\d{9}$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Request carries one appointment form submission.
type Request struct {
	PsychologistID string `json:"psychologist_id"`
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Email          string `json:"email"`
	Comment        string `json:"comment"`
	Time           string `json:"time"`
}

// Confirmation is the only thing a successful booking returns to the caller.
type Confirmation struct {
	Message          string `json:"message"`
	PsychologistName string `json:"psychologist_name"`
}

// Service validates and stores appointment requests.
type Service struct {
	appointments repository.AppointmentRepository
	profiles     repository.PsychologistRepository
	logger       *slog.Logger
	cfg          config.APIConfig
}

// New returns a booking service.
func New(appointments repository.AppointmentRepository, profiles repository.PsychologistRepository, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{appointments: appointments, profiles: profiles, logger: logger, cfg: cfg}
}

// Validate checks a submission field by field. An empty result means the
// request is acceptable.
func Validate(req Request) domain.ValidationErrors {
	var errs domain.ValidationErrors

	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		errs = append(errs, domain.FieldError{Field: "name", Message: "Name is required"})
	case len([]rune(name)) < 2:
		errs = append(errs, domain.FieldError{Field: "name", Message: "Name must be at least 2 characters"})
	}

	phone := strings.TrimSpace(req.Phone)
	switch {
	case phone == "":
		errs = append(errs, domain.FieldError{Field: "phone", Message: "Phone number is required"})
	case !phonePattern.MatchString(phone):
		errs = append(errs, domain.FieldError{Field: "phone", Message: "Phone number must match format +380xxxxxxxxx"})
	}

	email := strings.TrimSpace(req.Email)
	switch {
	case email == "":
		errs = append(errs, domain.FieldError{Field: "email", Message: "Email is required"})
	case !emailPattern.MatchString(email):
		errs = append(errs, domain.FieldError{Field: "email", Message: "Invalid email format"})
	}

	if strings.TrimSpace(req.Comment) == "" {
		errs = append(errs, domain.FieldError{Field: "comment", Message: "Comment is required"})
	}

	if !validSlot(req.Time) {
		errs = append(errs, domain.FieldError{Field: "time", Message: "Please select a time"})
	}

	return errs
}

// Book validates the request and persists the appointment with contact
// fields encrypted at rest. The response is confirmation-only.
func (s Service) Book(ctx context.Context, req Request) (*Confirmation, error) {
	if errs := Validate(req); len(errs) > 0 {
		return nil, errs
	}

	profile, err := s.profiles.GetPsychologistByID(ctx, strings.TrimSpace(req.PsychologistID))
	if err != nil {
		return nil, err
	}

	phone, err := crypto.EncryptString(s.cfg.ContactEncryptionKey, strings.TrimSpace(req.Phone))
	if err != nil {
		return nil, err
	}
	email, err := crypto.EncryptString(s.cfg.ContactEncryptionKey, strings.TrimSpace(req.Email))
	if err != nil {
		return nil, err
	}

	appointment := &domain.Appointment{
		ID:             uuid.NewString(),
		PsychologistID: profile.ID,
		Name:           strings.TrimSpace(req.Name),
		Phone:          phone,
		Email:          email,
		Comment:        strings.TrimSpace(req.Comment),
		Time:           req.Time,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.appointments.CreateAppointment(ctx, appointment); err != nil {
		return nil, err
	}

	s.logger.Info("appointment booked", "appointment_id", appointment.ID, "psychologist_id", profile.ID, "slot", appointment.Time)
	return &Confirmation{
		Message:          "Appointment request sent successfully!",
		PsychologistName: profile.Name,
	}, nil
}

func validSlot(slot string) bool {
	for _, s := range TimeSlots {
		if s == slot {
			return true
		}
	}
	return false
}
