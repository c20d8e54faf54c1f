package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/TemirB/coursemarket/internal/domain"
)

type studentRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	FullName string `json:"fullName" validate:"required,max=200"`
}

func (s *Server) createStudent(w http.ResponseWriter, r *http.Request) {
	var req studentRequest
	if !s.decode(w, r, &req) {
		return
	}

	created, err := s.svc.Students.Create(r.Context(), domain.Student{
		ID:       uuid.New(),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		FullName: strings.TrimSpace(req.FullName),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if created == nil {
		http.Error(w, "student with this email already exists", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// getStudent accepts either the student id or the email address.
func (s *Server) getStudent(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "idOrEmail")

	var (
		student *domain.Student
		err     error
	)
	if id, perr := uuid.Parse(key); perr == nil {
		student, err = s.svc.Students.GetByID(r.Context(), id)
	} else {
		student, err = s.svc.Students.GetByAlias(r.Context(), strings.ToLower(key))
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if student == nil {
		http.Error(w, "no student with this id", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, student)
}

func (s *Server) listStudents(w http.ResponseWriter, r *http.Request) {
	page, size, err := pagination(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	students, err := s.svc.Students.GetAll(r.Context(), r.URL.Query().Get("name"), page, size)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, students)
}

func (s *Server) deleteStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, chi.URLParam(r, "id"), "id")
	if !ok {
		return
	}
	deleted, err := s.svc.Students.Delete(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !deleted {
		http.Error(w, "no student with this id", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
