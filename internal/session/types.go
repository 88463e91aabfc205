package session

import (
	"time"

	"github.com/ent0n29/coldcall/internal/game"
)

// CreateRequest defines payload for creating a new game session.
type CreateRequest struct {
	UserID string `json:"user_id"`
}

// View is the API representation of a game session.
type View struct {
	SessionID       string     `json:"session_id"`
	UserID          string     `json:"user_id,omitempty"`
	Status          Status     `json:"status"`
	Screen          string     `json:"screen"`
	BackDisabled    bool       `json:"back_disabled"`
	CallActive      bool       `json:"call_active"`
	Game            game.State `json:"game"`
	StartedAt       time.Time  `json:"started_at"`
	LastActivityAt  time.Time  `json:"last_activity_at"`
	InactivityTTLMS int64      `json:"inactivity_ttl_ms"`
}
