package domain

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

type Course struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Slug        string    `json:"slug"`
	Author      string    `json:"author"`
}

func (c Course) EntityID() uuid.UUID { return c.ID }
func (c Course) EntityAlias() string { return c.Slug }

// Slugify turns a course name into its URL alias: lowercase letters and digits,
// every other run of characters collapsed into a single '-'.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
