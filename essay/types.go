package essay

import (
	"errors"
	"strings"
)

// ReadingLevel 是读者难度标签，取值来自 Catalog。
type ReadingLevel string

const (
	LevelChild      ReadingLevel = "Curious Child (5-8 years)"
	LevelMiddle     ReadingLevel = "Middle Schooler (11-13 years)"
	LevelHigh       ReadingLevel = "High Schooler (14-17 years)"
	LevelUniversity ReadingLevel = "University Student"
	LevelExpert     ReadingLevel = "Seasoned Expert"
)

// Essay is the generated text plus its subject/level metadata as held by the client.
// ID is empty until the essay has a confirmed row in the persistence backend.
type Essay struct {
	ID           string       `json:"id,omitempty"`
	Subject      string       `json:"subject"`
	ReadingLevel ReadingLevel `json:"reading_level"`
	Content      string       `json:"content"`
	IsFavorite   bool         `json:"is_favorite"`
}

// Key is the tuple used for duplicate detection when no ID is known.
type Key struct {
	Subject      string
	ReadingLevel ReadingLevel
	Content      string
}

func (e Essay) Key() Key {
	return Key{Subject: e.Subject, ReadingLevel: e.ReadingLevel, Content: e.Content}
}

// Saved reports whether the essay carries a persisted identifier.
func (e Essay) Saved() bool {
	return e.ID != ""
}

// Validate checks the fields every essay must carry.
func (e Essay) Validate() error {
	if strings.TrimSpace(e.Subject) == "" {
		return errors.New("essay subject is required")
	}
	if strings.TrimSpace(string(e.ReadingLevel)) == "" {
		return errors.New("essay reading level is required")
	}
	if strings.TrimSpace(e.Content) == "" {
		return errors.New("essay content is required")
	}
	return nil
}
