package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clinicops/scheduling-service/internal/booking"
	"github.com/clinicops/scheduling-service/internal/http/handlers"
	"github.com/clinicops/scheduling-service/internal/observability/metrics"
	"github.com/clinicops/scheduling-service/internal/proxy"
	"github.com/clinicops/scheduling-service/internal/scheduler"
	"github.com/clinicops/scheduling-service/pkg/logging"
)

type stubProvisioner struct{}

func (stubProvisioner) Provision(context.Context, scheduler.ProvisionRequest) (*scheduler.Result, error) {
	return &scheduler.Result{
		Record: &scheduler.Record{ID: "rec-1"},
		State:  scheduler.StateRelationsLinked,
	}, nil
}

type stubFreeTime struct{}

func (stubFreeTime) GetFreeTime(context.Context, []string, int, time.Time, time.Time) ([]proxy.FreeSlot, error) {
	return nil, nil
}

type stubBooker struct{}

func (stubBooker) Book(context.Context, booking.Request) (*booking.Result, error) {
	return nil, booking.ErrSlotTaken
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := logging.Default()
	reg := prometheus.NewRegistry()
	m := metrics.NewSchedulingMetrics(reg)

	cfg := &Config{
		Logger: logger,
		SchedulerHandler: handlers.NewSchedulerHandler(handlers.SchedulerHandlerConfig{
			Provisioner: stubProvisioner{},
			FreeTime:    stubFreeTime{},
			Metrics:     m,
			Logger:      logger,
		}),
		BookingHandler: handlers.NewBookingHandler(handlers.BookingHandlerConfig{
			Booker:  stubBooker{},
			Metrics: m,
			Logger:  logger,
		}),
		AdminAuthSecret: "test-secret",
		MetricsHandler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}

	return New(cfg)
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
}

func TestRouterProvisionRequiresAdminJWT(t *testing.T) {
	router := newTestRouter(t)

	body := `{"clinic_id":"c1","practitioner_id":"p1","source_type":"token","api_token":"tok"}`
	req := httptest.NewRequest(http.MethodPost, "/scheduler/provision", strings.NewReader(body))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
}

func TestRouterProvisionWithAdminJWT(t *testing.T) {
	router := newTestRouter(t)

	claims := jwt.RegisteredClaims{
		Subject:   "ops-admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	body := `{"clinic_id":"c1","practitioner_id":"p1","source_type":"token","api_token":"tok"}`
	req := httptest.NewRequest(http.MethodPost, "/scheduler/provision", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}
}

func TestRouterFreeTimeIsPublic(t *testing.T) {
	router := newTestRouter(t)

	url := "/scheduler/free-time?scheduler_id=s1&from=2026-03-02T00:00:00Z&to=2026-03-04T00:00:00Z"
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
}

func TestRouterBookingEndpoint(t *testing.T) {
	router := newTestRouter(t)

	body := `{
		"scheduler_id": "s1",
		"start_utc": "2026-03-02T08:00:00Z",
		"duration_min": 30,
		"customer": {"firstName": "Dana", "lastName": "Levi", "phone": "+972501234567"}
	}`
	req := httptest.NewRequest(http.MethodPost, "/appointment/book", strings.NewReader(body))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, rr.Code)
	}
}
