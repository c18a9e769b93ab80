package repository

import (
	"context"

	"github.com/stanislavNemch/psychologists-services/internal/domain"
)

// UserRepository persists registered accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// PsychologistRepository persists catalog profiles.
type PsychologistRepository interface {
	UpsertPsychologist(ctx context.Context, profile *domain.Psychologist) error
	GetPsychologistByID(ctx context.Context, id string) (*domain.Psychologist, error)
	ListPsychologists(ctx context.Context) ([]domain.Psychologist, error)
	ListPsychologistsByIDs(ctx context.Context, ids []string) ([]domain.Psychologist, error)
}

// FavoriteRepository manages per-user favorite markers.
type FavoriteRepository interface {
	AddFavorite(ctx context.Context, entry *domain.FavoriteEntry) error
	RemoveFavorite(ctx context.Context, userID, psychologistID string) error
	IsFavorite(ctx context.Context, userID, psychologistID string) (bool, error)
	ListFavoriteIDs(ctx context.Context, userID string) ([]string, error)
}

// AppointmentRepository stores booked consultation requests.
type AppointmentRepository interface {
	CreateAppointment(ctx context.Context, appointment *domain.Appointment) error
	ListAppointmentsByPsychologist(ctx context.Context, psychologistID string, limit int) ([]domain.Appointment, error)
}
