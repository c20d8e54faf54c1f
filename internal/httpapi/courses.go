package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/TemirB/coursemarket/internal/domain"
)

type courseRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=4000"`
	Slug        string `json:"slug" validate:"omitempty,max=200"`
	Author      string `json:"author" validate:"required,max=200"`
}

func (s *Server) createCourse(w http.ResponseWriter, r *http.Request) {
	var req courseRequest
	if !s.decode(w, r, &req) {
		return
	}

	slug := domain.Slugify(req.Slug)
	if slug == "" {
		slug = domain.Slugify(req.Name)
	}
	if slug == "" {
		http.Error(w, "name must contain letters or digits", http.StatusBadRequest)
		return
	}

	created, err := s.svc.Courses.Create(r.Context(), domain.Course{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Slug:        slug,
		Author:      strings.TrimSpace(req.Author),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if created == nil {
		http.Error(w, "course with this slug already exists", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// getCourse accepts either the course id or its slug.
func (s *Server) getCourse(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "idOrSlug")

	var (
		course *domain.Course
		err    error
	)
	if id, perr := uuid.Parse(key); perr == nil {
		course, err = s.svc.Courses.GetByID(r.Context(), id)
	} else {
		course, err = s.svc.Courses.GetByAlias(r.Context(), key)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if course == nil {
		http.Error(w, "no course with this id", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

func (s *Server) listCourses(w http.ResponseWriter, r *http.Request) {
	page, size, err := pagination(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	courses, err := s.svc.Courses.GetAll(r.Context(), r.URL.Query().Get("name"), page, size)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

// updateCourse replaces the mutable fields. The slug cannot change: a body
// carrying a different one is rejected with 409.
func (s *Server) updateCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, chi.URLParam(r, "id"), "id")
	if !ok {
		return
	}
	var req courseRequest
	if !s.decode(w, r, &req) {
		return
	}

	current, err := s.svc.Courses.GetByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if current == nil {
		http.Error(w, "no course with this id", http.StatusNotFound)
		return
	}
	if req.Slug != "" && domain.Slugify(req.Slug) != current.Slug {
		http.Error(w, "slug cannot be changed", http.StatusConflict)
		return
	}

	updated, err := s.svc.Courses.Update(r.Context(), domain.Course{
		ID:          id,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Slug:        current.Slug,
		Author:      strings.TrimSpace(req.Author),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if updated == nil {
		http.Error(w, "no course with this id", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, chi.URLParam(r, "id"), "id")
	if !ok {
		return
	}
	deleted, err := s.svc.Courses.Delete(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !deleted {
		http.Error(w, "no course with this id", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
