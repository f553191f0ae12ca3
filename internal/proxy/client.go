// Package proxy is a typed HTTP client for the DoctorOnline scheduling
// proxy: scheduler registration, free-time queries, slot checks and
// appointment creation. Every response is classified into one of the typed
// errors in errors.go; nothing is swallowed and nothing is retried here.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clinicops/scheduling-service/internal/schedule"
	"github.com/clinicops/scheduling-service/pkg/logging"
)

const defaultTimeout = 30 * time.Second

// authHeader carries the bearer-like proxy token on every call.
const authHeader = "X-Auth-Token"

// Client calls the scheduling proxy's JSON API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *logging.Logger
}

// NewClient creates a proxy client. A zero timeout falls back to 30s.
func NewClient(baseURL string, tokens TokenSource, timeout time.Duration, logger *logging.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		logger:     logger,
	}
}

// GetFreeTime returns raw free slots for the given schedulers in [from, to).
func (c *Client) GetFreeTime(ctx context.Context, schedulerIDs []string, durationMin int, from, to time.Time) ([]FreeSlot, error) {
	req := freeTimeRequest{
		SchedulerIDs: schedulerIDs,
		DurationMin:  durationMin,
		From:         from.UTC().Format(time.RFC3339),
		To:           to.UTC().Format(time.RFC3339),
	}
	var out freeTimeResult
	if err := c.do(ctx, http.MethodPost, "/free-time", req, &out); err != nil {
		return nil, err
	}

	slots := make([]FreeSlot, 0, len(out.Slots))
	for _, s := range out.Slots {
		start, err := time.Parse(time.RFC3339, s.From)
		if err != nil {
			c.logger.Warn("skipping unparseable slot", "scheduler_id", s.SchedulerID, "from", s.From)
			continue
		}
		slots = append(slots, FreeSlot{SchedulerID: s.SchedulerID, From: start.UTC()})
	}
	return slots, nil
}

// CheckSlotAvailable reports whether the slot is still free.
func (c *Client) CheckSlotAvailable(ctx context.Context, schedulerID string, from time.Time, durationMin int) (bool, error) {
	req := checkSlotRequest{
		SchedulerID: schedulerID,
		From:        from.UTC().Format(time.RFC3339),
		DurationMin: durationMin,
	}
	var out checkSlotResult
	if err := c.do(ctx, http.MethodPost, "/free-time/check", req, &out); err != nil {
		return false, err
	}
	return out.Available, nil
}

// CreateScheduler registers a scheduler and returns the upstream-assigned id.
// A uniqueness violation on (source credentials, source scheduler) surfaces
// as an AppError recognizable via IsDuplicateScheduler.
func (c *Client) CreateScheduler(ctx context.Context, req CreateSchedulerRequest) (string, error) {
	var out createSchedulerResult
	if err := c.do(ctx, http.MethodPost, "/schedulers", req, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &ProtocolError{Snippet: "create scheduler returned empty id"}
	}
	return out.ID, nil
}

// GetSourceCalendars lists the calendars reachable through a stored source
// credential.
func (c *Client) GetSourceCalendars(ctx context.Context, sourceCredsID string) ([]SourceCalendar, error) {
	var out sourceCalendarsResult
	path := fmt.Sprintf("/sources/%s/calendars", url.PathEscape(sourceCredsID))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Calendars, nil
}

// GetProviderReasons lists visit reasons defined on a provider calendar.
func (c *Client) GetProviderReasons(ctx context.Context, sourceCredsID, calendarID string) ([]Reason, error) {
	var out reasonsResult
	path := fmt.Sprintf("/sources/%s/calendars/%s/reasons", url.PathEscape(sourceCredsID), url.PathEscape(calendarID))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Reasons, nil
}

// GetProviderActiveHours fetches the active hours the provider already has
// configured upstream.
func (c *Client) GetProviderActiveHours(ctx context.Context, sourceCredsID, calendarID string) ([]schedule.ActiveHour, error) {
	var out activeHoursResult
	path := fmt.Sprintf("/sources/%s/calendars/%s/active-hours", url.PathEscape(sourceCredsID), url.PathEscape(calendarID))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.ActiveHours, nil
}

// CreateAppointment books a slot and returns the upstream appointment.
func (c *Client) CreateAppointment(ctx context.Context, req CreateAppointmentRequest) (*Appointment, error) {
	var out Appointment
	if err := c.do(ctx, http.MethodPost, "/appointments", req, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, &ProtocolError{Snippet: "create appointment returned empty id"}
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		enc := json.NewEncoder(buf)
		// Hebrew text must round-trip unescaped.
		enc.SetEscapeHTML(false)
		if err := enc.Encode(body); err != nil {
			return fmt.Errorf("proxy: marshal request: %w", err)
		}
		reqBody = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("proxy: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(authHeader, token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return &HTTPError{Status: resp.StatusCode, Body: truncate(string(respBody), 300)}
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil || env.Code == "" {
		return &ProtocolError{Snippet: truncate(string(respBody), 120)}
	}

	if env.Code != codeSuccess {
		return &AppError{Code: env.Code, Message: env.Error, Details: env.Result}
	}

	if result != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, result); err != nil {
			return &ProtocolError{Snippet: fmt.Sprintf("bad result payload: %v", err)}
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
