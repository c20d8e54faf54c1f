package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/TemirB/coursemarket/internal/domain"
	"github.com/TemirB/coursemarket/internal/observability"
)

//go:generate mockgen -source httpapi.go -destination=httpapi_mock_test.go -package=httpapi

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

type CourseService interface {
	Create(ctx context.Context, course domain.Course) (*domain.Course, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Course, error)
	GetByAlias(ctx context.Context, slug string) (*domain.Course, error)
	GetAll(ctx context.Context, filter string, page, pageSize int) ([]domain.Course, error)
	Update(ctx context.Context, course domain.Course) (*domain.Course, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

type StudentService interface {
	Create(ctx context.Context, student domain.Student) (*domain.Student, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Student, error)
	GetByAlias(ctx context.Context, email string) (*domain.Student, error)
	GetAll(ctx context.Context, filter string, page, pageSize int) ([]domain.Student, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

type EnrollmentService interface {
	Enroll(ctx context.Context, studentID, courseID uuid.UUID) error
	UnEnroll(ctx context.Context, studentID, courseID uuid.UUID) (bool, error)
	GetAll(ctx context.Context, studentID uuid.UUID) ([]domain.Enrollment, error)
}

type OrderService interface {
	Place(ctx context.Context, studentID uuid.UUID, courseIDs []uuid.UUID) (*domain.Order, error)
	GetByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	GetAllForStudent(ctx context.Context, studentID uuid.UUID) ([]domain.Order, error)
}

type Snapshotter interface {
	Snapshot() observability.Snapshot
}

type Services struct {
	Courses     CourseService
	Students    StudentService
	Enrollments EnrollmentService
	Orders      OrderService
	Stats       Snapshotter
}

type Server struct {
	svc          Services
	router       chi.Router
	validate     *validator.Validate
	logger       *zap.Logger
	metrics      observability.Metrics
	orderLimiter *rate.Limiter
}

type Option func(*Server)

// WithOrderLimit caps order placement at rps requests per second with the
// given burst. Requests over the limit get 429.
func WithOrderLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps > 0 {
			s.orderLimiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

func New(svc Services, logger *zap.Logger, metrics observability.Metrics, opts ...Option) *Server {
	if metrics == nil {
		metrics = observability.Noop{}
	}
	s := &Server{
		svc:      svc,
		router:   chi.NewRouter(),
		validate: validator.New(),
		logger:   logger,
		metrics:  metrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(observeHTTP(s.metrics, s.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.svc.Stats != nil {
		r.Get("/metrics", s.getMetrics)
	}

	r.Route("/courses", func(r chi.Router) {
		r.Get("/", s.listCourses)
		r.Post("/", s.createCourse)
		r.Get("/{idOrSlug}", s.getCourse)
		r.Put("/{id}", s.updateCourse)
		r.Delete("/{id}", s.deleteCourse)
	})
	r.Route("/students", func(r chi.Router) {
		r.Get("/", s.listStudents)
		r.Post("/", s.createStudent)
		r.Get("/{idOrEmail}", s.getStudent)
		r.Delete("/{id}", s.deleteStudent)
	})
	r.Route("/enrollments", func(r chi.Router) {
		r.Get("/", s.listEnrollments)
		r.Put("/{courseId}", s.enroll)
		r.Delete("/{courseId}", s.unEnroll)
	})
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", s.listOrders)
		r.With(limit(s.orderLimiter)).Post("/", s.placeOrder)
		r.Get("/{id}", s.getOrder)
	})
}

func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is done and then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) getMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Stats.Snapshot())
}

// decode reads a JSON body into dst and runs the struct validation tags.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
		return false
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		s.logger.Debug("Error while decoding JSON", zap.Error(err))
		http.Error(w, "bad json", http.StatusBadRequest)
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			http.Error(w, validationMessage(ve), http.StatusBadRequest)
			return false
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func validationMessage(ve validator.ValidationErrors) string {
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, fe.Field()+" failed on "+fe.Tag())
	}
	return strings.Join(parts, "; ")
}

// fail maps service errors onto status codes. Unknown errors are logged and
// reported as 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrConflict):
		http.Error(w, "conflict", http.StatusConflict)
	case errors.Is(err, domain.ErrEmptyOrder):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		s.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		http.Error(w, "Service error", http.StatusInternalServerError)
	}
}

func pagination(r *http.Request) (page, size int, err error) {
	page, size = 1, defaultPageSize
	if v := r.URL.Query().Get("pageNumber"); v != "" {
		if page, err = strconv.Atoi(v); err != nil || page < 1 {
			return 0, 0, errors.New("pageNumber must be a positive integer")
		}
	}
	if v := r.URL.Query().Get("pageSize"); v != "" {
		if size, err = strconv.Atoi(v); err != nil || size < 1 {
			return 0, 0, errors.New("pageSize must be a positive integer")
		}
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size, nil
}

func uuidParam(w http.ResponseWriter, raw, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, name+" must be a UUID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
