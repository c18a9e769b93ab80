package favorites

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"log/slog"

	"github.com/stanislavNemch/psychologists-services/internal/domain"
	"github.com/stanislavNemch/psychologists-services/internal/repository"
	"github.com/stanislavNemch/psychologists-services/internal/ws"
)

// ErrNoSession is returned when a toggle arrives without an active session.
// The caller is responsible for blocking the action and surfacing a message.
var ErrNoSession = errors.New("favorites: active session required")

// Service owns the persistent favorite markers and broadcasts the resulting
// snapshot after every mutation. It never patches subscriber state
// incrementally: each change ships the whole key set.
type Service struct {
	favorites repository.FavoriteRepository
	hub       *ws.Hub
	logger    *slog.Logger
}

// New constructs a favorites service.
func New(favorites repository.FavoriteRepository, hub *ws.Hub, logger *slog.Logger) Service {
	return Service{favorites: favorites, hub: hub, logger: logger}
}

// Toggle flips membership of the profile in the user's favorite set. If the
// marker exists it is deleted, otherwise it is written. The caller's visible
// set is not updated here; it catches up when the subscription fires.
func (s Service) Toggle(ctx context.Context, userID, psychologistID string) error {
	if userID == "" {
		return ErrNoSession
	}
	member, err := s.favorites.IsFavorite(ctx, userID, psychologistID)
	if err != nil {
		return err
	}
	if member {
		err = s.favorites.RemoveFavorite(ctx, userID, psychologistID)
	} else {
		err = s.favorites.AddFavorite(ctx, &domain.FavoriteEntry{
			UserID:         userID,
			PsychologistID: psychologistID,
			CreatedAt:      time.Now().UTC(),
		})
	}
	if err != nil {
		return err
	}
	s.publish(ctx, userID)
	return nil
}

// IDs returns the user's current favorite profile identifiers.
func (s Service) IDs(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return []string{}, nil
	}
	return s.favorites.ListFavoriteIDs(ctx, userID)
}

// Hub exposes the snapshot fan-out for transport handlers.
func (s Service) Hub() *ws.Hub {
	return s.hub
}

// publish reads the fresh snapshot and fans it out. A failed read is logged
// and dropped; subscribers keep their last good snapshot.
func (s Service) publish(ctx context.Context, userID string) {
	ids, err := s.favorites.ListFavoriteIDs(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to load favorites snapshot", "user_id", userID, "error", err)
		return
	}
	payload, err := MarshalSnapshot(userID, ids)
	if err != nil {
		s.logger.Warn("failed to marshal favorites snapshot", "user_id", userID, "error", err)
		return
	}
	s.hub.Broadcast(userID, payload)
}

// Snapshot is the wire form of a favorite-ID set.
type Snapshot struct {
	UserID    string   `json:"user_id"`
	Favorites []string `json:"favorites"`
	UpdatedAt string   `json:"updated_at"`
}

// MarshalSnapshot formats a favorite-ID set for streaming payloads.
func MarshalSnapshot(userID string, ids []string) ([]byte, error) {
	if ids == nil {
		ids = []string{}
	}
	return json.Marshal(Snapshot{
		UserID:    userID,
		Favorites: ids,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
}
