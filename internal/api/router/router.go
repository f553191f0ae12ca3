package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clinicops/scheduling-service/internal/http/handlers"
	httpmiddleware "github.com/clinicops/scheduling-service/internal/http/middleware"
	"github.com/clinicops/scheduling-service/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger           *logging.Logger
	SchedulerHandler *handlers.SchedulerHandler
	BookingHandler   *handlers.BookingHandler
	AdminAuthSecret  string
	MetricsHandler   http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.SchedulerHandler != nil {
		r.Route("/scheduler", func(sched chi.Router) {
			sched.Get("/free-time", cfg.SchedulerHandler.FreeTime)
			sched.With(httpmiddleware.AdminJWT(cfg.AdminAuthSecret)).
				Post("/provision", cfg.SchedulerHandler.Provision)
		})
	}

	if cfg.BookingHandler != nil {
		r.Post("/appointment/book", cfg.BookingHandler.Book)
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
