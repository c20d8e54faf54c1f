package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type placeOrderRequest struct {
	StudentID uuid.UUID   `json:"studentId" validate:"required"`
	CourseIDs []uuid.UUID `json:"courseIds" validate:"required,min=1,dive,required"`
}

// placeOrder answers 404 when the student is unknown or nothing was
// persisted, and 500 when the order was stored but could not be announced.
func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if !s.decode(w, r, &req) {
		return
	}

	order, err := s.svc.Orders.Place(r.Context(), req.StudentID, req.CourseIDs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if order == nil {
		http.Error(w, "student or course not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, chi.URLParam(r, "id"), "id")
	if !ok {
		return
	}
	order, err := s.svc.Orders.GetByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if order == nil {
		http.Error(w, "no order with this id", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	studentID, ok := uuidParam(w, r.URL.Query().Get("studentId"), "studentId")
	if !ok {
		return
	}
	orders, err := s.svc.Orders.GetAllForStudent(r.Context(), studentID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}
