package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stanislavNemch/psychologists-services/internal/domain"
	"github.com/stanislavNemch/psychologists-services/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository         = (*Repository)(nil)
	_ repository.PsychologistRepository = (*Repository)(nil)
	_ repository.FavoriteRepository     = (*Repository)(nil)
	_ repository.AppointmentRepository  = (*Repository)(nil)
)

// CreateUser inserts a user. A duplicate email maps to ErrConflict.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, name, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, user.ID, user.Name, user.Email, user.PasswordHash, user.CreatedAt)
	return mapPgError(err)
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT id, name, email, password_hash, created_at FROM users WHERE email = $1`
	row := r.pool.QueryRow(ctx, query, email)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, name, email, password_hash, created_at FROM users WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// UpsertPsychologist inserts or replaces a catalog profile.
func (r *Repository) UpsertPsychologist(ctx context.Context, profile *domain.Psychologist) error {
	reviews, err := json.Marshal(profile.Reviews)
	if err != nil {
		return err
	}
	const query = `INSERT INTO psychologists
			(id, name, avatar_url, experience, reviews, price_per_hour, rating, license, specialization, initial_consultation, about)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			avatar_url = EXCLUDED.avatar_url,
			experience = EXCLUDED.experience,
			reviews = EXCLUDED.reviews,
			price_per_hour = EXCLUDED.price_per_hour,
			rating = EXCLUDED.rating,
			license = EXCLUDED.license,
			specialization = EXCLUDED.specialization,
			initial_consultation = EXCLUDED.initial_consultation,
			about = EXCLUDED.about`
	_, err = r.pool.Exec(ctx, query,
		profile.ID,
		profile.Name,
		profile.AvatarURL,
		profile.Experience,
		reviews,
		profile.PricePerHour,
		profile.Rating,
		profile.License,
		profile.Specialization,
		profile.InitialConsultation,
		profile.About,
	)
	return mapPgError(err)
}

const psychologistColumns = `id, name, avatar_url, experience, reviews, price_per_hour, rating, license, specialization, initial_consultation, about`

// GetPsychologistByID fetches a single profile.
func (r *Repository) GetPsychologistByID(ctx context.Context, id string) (*domain.Psychologist, error) {
	const query = `SELECT ` + psychologistColumns + ` FROM psychologists WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	profile, err := scanPsychologist(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return profile, nil
}

// ListPsychologists returns the full catalog ordered by ingestion key.
func (r *Repository) ListPsychologists(ctx context.Context) ([]domain.Psychologist, error) {
	const query = `SELECT ` + psychologistColumns + ` FROM psychologists ORDER BY id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPsychologists(rows)
}

// ListPsychologistsByIDs returns profiles matching the given identifiers.
func (r *Repository) ListPsychologistsByIDs(ctx context.Context, ids []string) ([]domain.Psychologist, error) {
	if len(ids) == 0 {
		return []domain.Psychologist{}, nil
	}
	const query = `SELECT ` + psychologistColumns + ` FROM psychologists WHERE id = ANY($1) ORDER BY id`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPsychologists(rows)
}

func collectPsychologists(rows pgx.Rows) ([]domain.Psychologist, error) {
	profiles := make([]domain.Psychologist, 0)
	for rows.Next() {
		profile, err := scanPsychologist(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *profile)
	}
	return profiles, rows.Err()
}

func scanPsychologist(row pgx.Row) (*domain.Psychologist, error) {
	var (
		p       domain.Psychologist
		reviews []byte
	)
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.AvatarURL,
		&p.Experience,
		&reviews,
		&p.PricePerHour,
		&p.Rating,
		&p.License,
		&p.Specialization,
		&p.InitialConsultation,
		&p.About,
	); err != nil {
		return nil, err
	}
	if len(reviews) > 0 {
		if err := json.Unmarshal(reviews, &p.Reviews); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

// AddFavorite writes a favorite marker; re-adding an existing one is a no-op.
func (r *Repository) AddFavorite(ctx context.Context, entry *domain.FavoriteEntry) error {
	const query = `INSERT INTO favorites (user_id, psychologist_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, psychologist_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, query, entry.UserID, entry.PsychologistID, entry.CreatedAt)
	return mapPgError(err)
}

// RemoveFavorite deletes a favorite marker; removing an absent one is a no-op.
func (r *Repository) RemoveFavorite(ctx context.Context, userID, psychologistID string) error {
	const query = `DELETE FROM favorites WHERE user_id = $1 AND psychologist_id = $2`
	_, err := r.pool.Exec(ctx, query, userID, psychologistID)
	return err
}

// IsFavorite reports whether the marker exists.
func (r *Repository) IsFavorite(ctx context.Context, userID, psychologistID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM favorites WHERE user_id = $1 AND psychologist_id = $2)`
	row := r.pool.QueryRow(ctx, query, userID, psychologistID)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// ListFavoriteIDs returns the caller's favorite profile identifiers.
func (r *Repository) ListFavoriteIDs(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT psychologist_id FROM favorites WHERE user_id = $1 ORDER BY created_at, psychologist_id`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateAppointment inserts a booked consultation request.
func (r *Repository) CreateAppointment(ctx context.Context, appointment *domain.Appointment) error {
	const query = `INSERT INTO appointments (id, psychologist_id, name, phone, email, comment, time_slot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.pool.Exec(ctx, query,
		appointment.ID,
		appointment.PsychologistID,
		appointment.Name,
		appointment.Phone,
		appointment.Email,
		appointment.Comment,
		appointment.Time,
		appointment.CreatedAt,
	)
	return mapPgError(err)
}

// ListAppointmentsByPsychologist fetches recent bookings for a profile.
func (r *Repository) ListAppointmentsByPsychologist(ctx context.Context, psychologistID string, limit int) ([]domain.Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT id, psychologist_id, name, phone, email, comment, time_slot, created_at
		FROM appointments WHERE psychologist_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, psychologistID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	appointments := make([]domain.Appointment, 0)
	for rows.Next() {
		var a domain.Appointment
		if err := rows.Scan(&a.ID, &a.PsychologistID, &a.Name, &a.Phone, &a.Email, &a.Comment, &a.Time, &a.CreatedAt); err != nil {
			return nil, err
		}
		appointments = append(appointments, a)
	}
	return appointments, rows.Err()
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return repository.ErrConflict
		case "23503":
			return repository.ErrNotFound
		case "23514", "22P02":
			return repository.ErrInvalidArgument
		}
	}
	return err
}
