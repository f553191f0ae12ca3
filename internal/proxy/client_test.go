package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(url string) *Client {
	return NewClient(url, StaticToken("test-token"), 0, nil)
}

func TestGetFreeTime(t *testing.T) {
	var gotAuth, gotContentType string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get(authHeader)
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":  "Success",
			"error": nil,
			"result": map[string]any{
				"slots": []map[string]any{
					{"schedulerId": "1", "from": "2025-01-06T08:00:00Z"},
					{"schedulerId": "1", "from": "not-a-time"},
					{"schedulerId": "2", "from": "2025-01-06T08:30:00Z"},
				},
			},
		})
	}))
	defer ts.Close()

	c := newTestClient(ts.URL)
	slots, err := c.GetFreeTime(context.Background(), []string{"1", "2"}, 30,
		time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GetFreeTime error: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 parseable slots, got %d", len(slots))
	}
	if slots[0].SchedulerID != "1" || !slots[0].From.Equal(time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected first slot: %+v", slots[0])
	}
	if gotAuth != "test-token" {
		t.Fatalf("expected auth token header, got %q", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Fatalf("expected json content type on write, got %q", gotContentType)
	}
}

func TestCheckSlotAvailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":   "Success",
			"result": map[string]any{"available": false},
		})
	}))
	defer ts.Close()

	ok, err := newTestClient(ts.URL).CheckSlotAvailable(context.Background(), "1", time.Now().UTC(), 30)
	if err != nil {
		t.Fatalf("CheckSlotAvailable error: %v", err)
	}
	if ok {
		t.Fatal("expected slot unavailable")
	}
}

func TestCreateSchedulerDuplicate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":  "SchedulerAlreadyExists",
			"error": "scheduler already registered for this source calendar",
		})
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).CreateScheduler(context.Background(), CreateSchedulerRequest{
		SourceCredentialsID: "cred-1",
		SourceSchedulerID:   "cal-1",
		MaxOverlap:          1,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsDuplicateScheduler(err) {
		t.Fatalf("expected duplicate classification, got %v", err)
	}
	var app *AppError
	if !errors.As(err, &app) || app.Message == "" {
		t.Fatalf("expected app error with message, got %v", err)
	}
}

func TestHTTPErrorPreservesBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway exploded", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).GetSourceCalendars(context.Background(), "cred-1")
	var he *HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if he.Status != http.StatusBadGateway || !strings.Contains(he.Body, "gateway exploded") {
		t.Fatalf("unexpected http error: %+v", he)
	}
	if !IsTransient(err) {
		t.Fatal("5xx should classify as transient")
	}
}

func TestHTMLBodyIsProtocolError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html><body>Please log in</body></html>")
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).GetSourceCalendars(context.Background(), "cred-1")
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
}

func TestTransportErrorClassification(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // refuse connections

	_, err := newTestClient(ts.URL).GetSourceCalendars(context.Background(), "cred-1")
	var tr *TransportError
	if !errors.As(err, &tr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if !IsTransient(err) {
		t.Fatal("transport failures are transient")
	}
}

func TestMissingTokenFailsBeforeRequest(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer ts.Close()

	c := NewClient(ts.URL, StaticToken(""), 0, nil)
	if _, err := c.GetSourceCalendars(context.Background(), "cred-1"); err == nil {
		t.Fatal("expected error for missing token")
	}
	if called {
		t.Fatal("no request should be sent without a token")
	}
}

func TestHebrewRemarkRoundTripsUnescaped(t *testing.T) {
	var rawBody []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawBody, _ = io.ReadAll(r.Body)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":   "Success",
			"result": map[string]any{"id": "appt-1"},
		})
	}))
	defer ts.Close()

	remark := "ביקור ראשון אצל ד\"ר כהן"
	_, err := newTestClient(ts.URL).CreateAppointment(context.Background(), CreateAppointmentRequest{
		SchedulerID: "1",
		Customer:    Customer{FirstName: "דנה", LastName: "לוי", Phone: "+972501234567"},
		Start:       time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC),
		DurationMin: 30,
		Remark:      remark,
	})
	if err != nil {
		t.Fatalf("CreateAppointment error: %v", err)
	}
	if !strings.Contains(string(rawBody), remark) {
		t.Fatalf("expected unescaped Hebrew remark in body, got %s", rawBody)
	}
}

func TestValidationFailedClassification(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":   "ValidationFailed",
			"error":  "customer identity rejected",
			"result": map[string]any{"fields": map[string]string{"nationalId": "checksum failed"}},
		})
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).CreateAppointment(context.Background(), CreateAppointmentRequest{SchedulerID: "1"})
	if !IsValidationFailed(err) {
		t.Fatalf("expected validation classification, got %v", err)
	}
	var app *AppError
	if !errors.As(err, &app) || len(app.Details) == 0 {
		t.Fatalf("expected details payload preserved, got %v", err)
	}
}

func TestGetSourceCalendars(t *testing.T) {
	var gotMethod, gotPath, gotContentType string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":  "Success",
			"error": nil,
			"result": map[string]any{
				"calendars": []map[string]any{
					{"id": "cal-1", "name": "Clinic North"},
					{"id": "cal-2", "name": "Clinic South", "description": "branch"},
				},
			},
		})
	}))
	defer ts.Close()

	cals, err := newTestClient(ts.URL).GetSourceCalendars(context.Background(), "creds/1")
	if err != nil {
		t.Fatalf("GetSourceCalendars error: %v", err)
	}
	if len(cals) != 2 || cals[1].Description != "branch" {
		t.Fatalf("unexpected calendars: %+v", cals)
	}
	if gotMethod != http.MethodGet {
		t.Fatalf("expected GET, got %s", gotMethod)
	}
	if gotPath != "/sources/creds%2F1/calendars" && gotPath != "/sources/creds/1/calendars" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotContentType != "" {
		t.Fatalf("GET must not carry a content type, got %q", gotContentType)
	}
}

func TestGetProviderActiveHours(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":  "Success",
			"error": nil,
			"result": map[string]any{
				"activeHours": []map[string]any{
					{"weekday": 1, "from_utc": "07:00", "to_utc": "15:00"},
				},
			},
		})
	}))
	defer ts.Close()

	hours, err := newTestClient(ts.URL).GetProviderActiveHours(context.Background(), "creds-1", "cal-1")
	if err != nil {
		t.Fatalf("GetProviderActiveHours error: %v", err)
	}
	if len(hours) != 1 || hours[0].FromUTC != "07:00" {
		t.Fatalf("unexpected hours: %+v", hours)
	}
}
