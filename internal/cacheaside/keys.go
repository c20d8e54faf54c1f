package cacheaside

import "github.com/google/uuid"

// Keys derives the two cache keys of an entity.
type Keys struct {
	IDPrefix    string
	AliasPrefix string
}

var (
	CourseKeys  = Keys{IDPrefix: "course_id_", AliasPrefix: "course_slug_"}
	StudentKeys = Keys{IDPrefix: "student_id_", AliasPrefix: "student_email_"}
)

func (k Keys) ID(id uuid.UUID) string {
	return k.IDPrefix + id.String()
}

func (k Keys) Alias(alias string) string {
	return k.AliasPrefix + alias
}
