package domain

import "time"

// FavoriteEntry marks a psychologist as favorited by a user. The row is the
// truthy marker itself: present means favorited, absent means not.
type FavoriteEntry struct {
	UserID         string
	PsychologistID string
	CreatedAt      time.Time
}
