package domain

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is the server-side half of a session. A user owns at most
// one. The ID is the opaque value handed to the client.
type RefreshToken struct {
	ID        uuid.UUID `json:"id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired reports whether the token is unusable at now.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
