package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Spammer seeds students and courses through the public API and then places
// random orders at a fixed rate, driving the whole order to enrollment path.
type Spammer struct {
	appURL string
	client *http.Client
	logger *zap.Logger

	mu        sync.Mutex
	isRunning atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	totalSent   atomic.Int64
	totalFailed atomic.Int64
}

type SpamRequest struct {
	Rate     int    `json:"rate"`
	Duration string `json:"duration"`
	Students int    `json:"students"`
	Courses  int    `json:"courses"`
}

type SpamStats struct {
	IsRunning   bool  `json:"is_running"`
	TotalSent   int64 `json:"total_sent"`
	TotalFailed int64 `json:"total_failed"`
}

func NewSpammer(appURL string, logger *zap.Logger) *Spammer {
	return &Spammer{
		appURL: appURL,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

func (s *Spammer) StartSpam(req SpamRequest, duration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning.Load() {
		return errors.New("already running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	students, courses, err := s.seed(ctx, req.Students, req.Courses)
	if err != nil {
		cancel()
		return err
	}

	s.cancel = cancel
	s.isRunning.Store(true)
	s.totalSent.Store(0)
	s.totalFailed.Store(0)

	s.logger.Info("Starting spam",
		zap.Int("rate", req.Rate),
		zap.Duration("duration", duration),
		zap.Int("students", len(students)),
		zap.Int("courses", len(courses)),
	)

	limiter := rate.NewLimiter(rate.Limit(req.Rate), 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.isRunning.Store(false)
		defer cancel()

		for {
			if err := limiter.Wait(ctx); err != nil {
				s.logger.Info("Spam completed",
					zap.Int64("total_sent", s.totalSent.Load()),
					zap.Int64("total_failed", s.totalFailed.Load()),
				)
				return
			}
			body := map[string]any{
				"studentId": students[rand.Intn(len(students))],
				"courseIds": pick(courses, 1+rand.Intn(3)),
			}
			if _, err := s.post(ctx, "/orders", body); err != nil {
				s.totalFailed.Add(1)
				s.logger.Debug("order failed", zap.Error(err))
				continue
			}
			s.totalSent.Add(1)
		}
	}()
	return nil
}

// seed registers n students and m courses and returns their ids.
func (s *Spammer) seed(ctx context.Context, n, m int) ([]uuid.UUID, []uuid.UUID, error) {
	run := uuid.NewString()[:8]
	students := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		id, err := s.post(ctx, "/students", map[string]any{
			"email":    fmt.Sprintf("load-%s-%d@example.com", run, i),
			"fullName": fmt.Sprintf("Load Student %d", i),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("seed student: %w", err)
		}
		students = append(students, id)
	}

	courses := make([]uuid.UUID, 0, m)
	for i := 0; i < m; i++ {
		id, err := s.post(ctx, "/courses", map[string]any{
			"name":   fmt.Sprintf("Load Course %s %d", run, i),
			"author": "spammer",
		})
		if err != nil {
			return nil, nil, fmt.Errorf("seed course: %w", err)
		}
		courses = append(courses, id)
	}
	return students, courses, nil
}

func (s *Spammer) post(ctx context.Context, path string, body any) (uuid.UUID, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return uuid.Nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.appURL+path, bytes.NewReader(payload))
	if err != nil {
		return uuid.Nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return uuid.Nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return uuid.Nil, fmt.Errorf("POST %s: status %d", path, resp.StatusCode)
	}

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return uuid.Nil, err
	}
	return created.ID, nil
}

func pick(ids []uuid.UUID, n int) []uuid.UUID {
	if n > len(ids) {
		n = len(ids)
	}
	out := make([]uuid.UUID, 0, n)
	for _, i := range rand.Perm(len(ids))[:n] {
		out = append(out, ids[i])
	}
	return out
}

func (s *Spammer) StopSpam() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Spammer) GetStats() SpamStats {
	return SpamStats{
		IsRunning:   s.isRunning.Load(),
		TotalSent:   s.totalSent.Load(),
		TotalFailed: s.totalFailed.Load(),
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	appURL := "http://localhost:8080"
	if v := os.Getenv("APP_URL"); v != "" {
		appURL = v
	}
	spammer := NewSpammer(appURL, logger)
	defer spammer.StopSpam()

	r := chi.NewRouter()
	r.Post("/start", func(w http.ResponseWriter, r *http.Request) {
		var req SpamRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if req.Rate <= 0 {
			req.Rate = 10
		}
		if req.Students <= 0 {
			req.Students = 10
		}
		if req.Courses <= 0 {
			req.Courses = 5
		}
		duration, err := time.ParseDuration(req.Duration)
		if err != nil {
			http.Error(w, "Invalid duration format: "+err.Error(), http.StatusBadRequest)
			return
		}

		if err := spammer.StartSpam(req, duration); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		writeJSON(w, map[string]any{
			"status":   "started",
			"rate":     req.Rate,
			"duration": duration.String(),
		})
	})
	r.Post("/stop", func(w http.ResponseWriter, _ *http.Request) {
		spammer.StopSpam()
		writeJSON(w, spammer.GetStats())
	})
	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, spammer.GetStats())
	})

	addr := ":8082"
	if v := os.Getenv("SPAMMER_PORT"); v != "" {
		addr = ":" + v
	}
	logger.Info("Spammer server started", zap.String("addr", addr), zap.String("app_url", appURL))
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Fatal("spammer stopped", zap.Error(err))
	}
}
