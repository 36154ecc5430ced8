package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"pricescan/internal/models"
)

// PriceResolver is the tiered lookup behind GET /price.
type PriceResolver interface {
	Resolve(ctx context.Context, token, network string, ts int64) (models.Resolution, error)
}

// BackfillScheduler fans out backfill jobs behind POST /schedule.
type BackfillScheduler interface {
	Schedule(ctx context.Context, token, network string) (groupID string, count int, err error)
}

// ProgressTracker answers group progress polls.
type ProgressTracker interface {
	Progress(ctx context.Context, groupID string) (models.GroupProgress, error)
}

type Server struct {
	resolver  PriceResolver
	scheduler BackfillScheduler
	tracker   ProgressTracker
	port      int
}

func NewServer(port int, resolver PriceResolver, scheduler BackfillScheduler, tracker ProgressTracker) *Server {
	return &Server{
		resolver:  resolver,
		scheduler: scheduler,
		tracker:   tracker,
		port:      port,
	}
}

// Handler builds the routed handler with CORS and rate limiting applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.registerRoutes(r)
	return rateLimitMiddleware(corsMiddleware(r))
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[api] shutdown: %v", err)
		}
	}()

	log.Printf("[api] listening on :%d", s.port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func corsMiddleware(next http.Handler) http.Handler {
	origin := os.Getenv("FRONTEND_ORIGIN")
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
