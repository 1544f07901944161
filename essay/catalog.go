package essay

import (
	"fmt"
	"strings"
)

// Catalog lists the subjects and reading levels offered to the user.
type Catalog struct {
	Subjects      []string       `json:"subjects" toml:"subjects"`
	ReadingLevels []ReadingLevel `json:"reading_levels" toml:"reading_levels"`
}

// DefaultCatalog returns the options shipped with the app.
func DefaultCatalog() Catalog {
	return Catalog{
		Subjects: []string{
			"History", "Science", "Philosophy", "Technology",
			"Art", "Literature", "Economics", "Psychology",
		},
		ReadingLevels: []ReadingLevel{
			LevelChild, LevelMiddle, LevelHigh, LevelUniversity, LevelExpert,
		},
	}
}

// Validate rejects empty inputs and, when the catalog lists options, inputs outside of them.
// An empty list means "any non-empty value".
func (c Catalog) Validate(subject string, level ReadingLevel) error {
	subject = strings.TrimSpace(subject)
	if subject == "" || strings.TrimSpace(string(level)) == "" {
		return fmt.Errorf("subject and reading level are required")
	}
	if len(c.Subjects) > 0 && !containsFold(c.Subjects, subject) {
		return fmt.Errorf("unknown subject %q", subject)
	}
	if len(c.ReadingLevels) > 0 {
		found := false
		for _, l := range c.ReadingLevels {
			if strings.EqualFold(string(l), string(level)) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown reading level %q", level)
		}
	}
	return nil
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
