// Package persistence defines the saved-essay gateway shared by every backend.
//
// All operations are scoped to a user id: reads filter on it, deletes match
// both the row id and the user id, so a caller can never touch another
// user's rows even with a valid id.
package persistence

import (
	"context"
	"strings"
	"time"

	"essay_reader/essay"
)

// SavedEssayRecord is one row of saved_essays.
type SavedEssayRecord struct {
	ID           string             `json:"id"`
	UserID       string             `json:"user_id"`
	Subject      string             `json:"subject"`
	ReadingLevel essay.ReadingLevel `json:"reading_level"`
	Content      string             `json:"content"`
	CreatedAt    time.Time          `json:"created_at"`
}

// Essay converts the record into a favorite essay value.
func (r SavedEssayRecord) Essay() essay.Essay {
	return essay.Essay{
		ID:           r.ID,
		Subject:      r.Subject,
		ReadingLevel: r.ReadingLevel,
		Content:      r.Content,
		IsFavorite:   true,
	}
}

// Gateway is the durable store of saved essays.
type Gateway interface {
	// ListSaved returns the user's rows, newest first. No rows is an empty slice, not an error.
	ListSaved(ctx context.Context, userID string) ([]SavedEssayRecord, error)
	// Save inserts a row and returns its server-generated id.
	Save(ctx context.Context, userID string, key essay.Key) (string, error)
	// Remove deletes the row matching both id and userID. Removing a missing row succeeds.
	Remove(ctx context.Context, id, userID string) error
	// FindDuplicate returns the id of the newest row matching key exactly, or "" when none.
	FindDuplicate(ctx context.Context, userID string, key essay.Key) (string, error)
	Close() error
}

// CheckUser returns an Unauthenticated error for an empty user id.
func CheckUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUnauthenticated
	}
	return nil
}

// CheckKey rejects incomplete essays before they reach the backend.
func CheckKey(key essay.Key) error {
	e := essay.Essay{Subject: key.Subject, ReadingLevel: key.ReadingLevel, Content: key.Content}
	if err := e.Validate(); err != nil {
		return Rejectedf(err, "Cannot save incomplete essay data.")
	}
	return nil
}
