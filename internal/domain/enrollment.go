package domain

import "github.com/google/uuid"

type Enrollment struct {
	StudentID uuid.UUID `json:"student_id"`
	CourseID  uuid.UUID `json:"course_id"`
}
