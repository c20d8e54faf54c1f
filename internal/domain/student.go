package domain

import "github.com/google/uuid"

type Student struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
}

func (s Student) EntityID() uuid.UUID { return s.ID }
func (s Student) EntityAlias() string { return s.Email }
