package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) listEnrollments(w http.ResponseWriter, r *http.Request) {
	studentID, ok := uuidParam(w, r.URL.Query().Get("studentId"), "studentId")
	if !ok {
		return
	}
	enrollments, err := s.svc.Enrollments.GetAll(r.Context(), studentID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, enrollments)
}

func (s *Server) enroll(w http.ResponseWriter, r *http.Request) {
	courseID, ok := uuidParam(w, chi.URLParam(r, "courseId"), "courseId")
	if !ok {
		return
	}
	studentID, ok := uuidParam(w, r.URL.Query().Get("studentId"), "studentId")
	if !ok {
		return
	}
	if err := s.svc.Enrollments.Enroll(r.Context(), studentID, courseID); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) unEnroll(w http.ResponseWriter, r *http.Request) {
	courseID, ok := uuidParam(w, chi.URLParam(r, "courseId"), "courseId")
	if !ok {
		return
	}
	studentID, ok := uuidParam(w, r.URL.Query().Get("studentId"), "studentId")
	if !ok {
		return
	}
	removed, err := s.svc.Enrollments.UnEnroll(r.Context(), studentID, courseID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !removed {
		http.Error(w, "student is not enrolled in this course", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
