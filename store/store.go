// Package store persists fashion analysis results and favourite outfits.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Result is the saved outcome of one analysis session. Payload holds the
// full JSON record written by the workflow.
type Result struct {
	SessionID string
	UserID    string
	Occasion  string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// Favorite is an outfit a user saved from one of their sessions.
type Favorite struct {
	UserID        string          `json:"-"`
	SessionID     string          `json:"sessionId"`
	OutfitIndex   int             `json:"outfitIndex"`
	OutfitName    string          `json:"outfitName"`
	Outfit        json.RawMessage `json:"outfitData"`
	OriginalPhoto string          `json:"originalPhoto"`
	Occasion      string          `json:"occasion"`
	ImageURL      string          `json:"imageUrl,omitempty"`
	SavedAt       time.Time       `json:"savedAt"`
}

// Repository defines the persistence operations used by the workflow and the API.
type Repository interface {
	// SaveResult creates or replaces the result of a session.
	SaveResult(ctx context.Context, r *Result) error

	// GetResult returns the result of a session owned by userID.
	GetResult(ctx context.Context, userID, sessionID string) (*Result, error)

	// ListResults returns the results of a user, newest first.
	ListResults(ctx context.Context, userID string) ([]*Result, error)

	// DeleteSession removes a session result together with its favourites.
	// It reports whether a result existed.
	DeleteSession(ctx context.Context, userID, sessionID string) (bool, error)

	// AddFavorite saves an outfit. Adding an existing favourite is a no-op.
	AddFavorite(ctx context.Context, f *Favorite) error

	// RemoveFavorite deletes a favourite if present.
	RemoveFavorite(ctx context.Context, userID, sessionID string, outfitIndex int) error

	// ListFavorites returns the favourites of a user in the order they were saved.
	ListFavorites(ctx context.Context, userID string) ([]*Favorite, error)

	// IsFavorite reports whether an outfit is saved.
	IsFavorite(ctx context.Context, userID, sessionID string, outfitIndex int) (bool, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
