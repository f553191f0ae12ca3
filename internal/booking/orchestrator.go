// Package booking submits appointments to the scheduling proxy, re-checking
// slot availability immediately before every attempt.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clinicops/scheduling-service/internal/proxy"
	"github.com/clinicops/scheduling-service/pkg/logging"
)

var (
	// ErrSlotTaken means the slot was booked between selection and
	// submission. Expected under contention; not a system failure.
	ErrSlotTaken = errors.New("booking: slot no longer available")

	ErrMissingScheduler = errors.New("booking: scheduler id is required")
	ErrMissingStart     = errors.New("booking: start time is required")
	ErrInvalidDuration  = errors.New("booking: duration must be positive")
	ErrMissingCustomer  = errors.New("booking: customer name and phone are required")
)

// ValidationFailedError is an upstream rejection of the appointment payload,
// e.g. a malformed customer identity.
type ValidationFailedError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("booking: upstream validation failed: %s", e.Message)
}

// UnavailableError is a transient upstream failure. The caller may retry,
// but must re-check the slot first.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("booking: upstream unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Request is one appointment to book. It is never mutated after validation.
type Request struct {
	SchedulerID string         `json:"scheduler_id"`
	Customer    proxy.Customer `json:"customer"`
	StartUTC    time.Time      `json:"start_utc"`
	DurationMin int            `json:"duration_min"`
	Remark      string         `json:"remark,omitempty"`
}

// Validate rejects malformed requests locally, before any network call.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.SchedulerID) == "" {
		return ErrMissingScheduler
	}
	if r.StartUTC.IsZero() {
		return ErrMissingStart
	}
	if r.DurationMin <= 0 {
		return ErrInvalidDuration
	}
	if strings.TrimSpace(r.Customer.FirstName) == "" ||
		strings.TrimSpace(r.Customer.LastName) == "" ||
		strings.TrimSpace(r.Customer.Phone) == "" {
		return ErrMissingCustomer
	}
	return nil
}

// Result is a confirmed booking.
type Result struct {
	AppointmentID string    `json:"appointment_id"`
	SchedulerID   string    `json:"scheduler_id"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
}

// proxyClient is the slice of the proxy client booking needs.
type proxyClient interface {
	CheckSlotAvailable(ctx context.Context, schedulerID string, from time.Time, durationMin int) (bool, error)
	CreateAppointment(ctx context.Context, req proxy.CreateAppointmentRequest) (*proxy.Appointment, error)
}

// Recorder persists the local appointment record after upstream success.
type Recorder interface {
	RecordConfirmed(ctx context.Context, req Request, upstreamID string) error
}

// Orchestrator runs the book flow. It never retries; every failure is
// classified so the caller can decide.
type Orchestrator struct {
	proxy    proxyClient
	recorder Recorder
	logger   *logging.Logger
}

// NewOrchestrator creates a booking orchestrator. recorder may be nil when
// no local record is wanted.
func NewOrchestrator(proxyClient proxyClient, recorder Recorder, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{proxy: proxyClient, recorder: recorder, logger: logger}
}

// Book validates, re-checks the slot, then submits the appointment.
func (o *Orchestrator) Book(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Close the race window between slot selection in the UI and submission.
	// Upstream slot-locking remains the final arbiter.
	available, err := o.proxy.CheckSlotAvailable(ctx, req.SchedulerID, req.StartUTC, req.DurationMin)
	if err != nil {
		return nil, classifyUpstream(err)
	}
	if !available {
		return nil, ErrSlotTaken
	}

	appt, err := o.proxy.CreateAppointment(ctx, proxy.CreateAppointmentRequest{
		SchedulerID: req.SchedulerID,
		Customer:    req.Customer,
		Start:       req.StartUTC,
		DurationMin: req.DurationMin,
		Remark:      req.Remark,
	})
	if err != nil {
		return nil, classifyUpstream(err)
	}

	if o.recorder != nil {
		if err := o.recorder.RecordConfirmed(ctx, req, appt.ID); err != nil {
			// The upstream appointment exists; losing the local record must
			// not fail the booking.
			o.logger.Error("failed to record confirmed appointment",
				"appointment_id", appt.ID, "error", err)
		}
	}

	o.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"scheduler_id", req.SchedulerID,
		"start", req.StartUTC,
	)
	return &Result{
		AppointmentID: appt.ID,
		SchedulerID:   req.SchedulerID,
		Start:         req.StartUTC,
		End:           req.StartUTC.Add(time.Duration(req.DurationMin) * time.Minute),
	}, nil
}

// classifyUpstream maps proxy errors onto the booking taxonomy.
func classifyUpstream(err error) error {
	if proxy.IsValidationFailed(err) {
		var app *proxy.AppError
		errors.As(err, &app)
		return &ValidationFailedError{Message: app.Message, Fields: decodeFields(app.Details)}
	}
	if proxy.IsTransient(err) {
		return &UnavailableError{Err: err}
	}
	return err
}

func decodeFields(details []byte) map[string]string {
	if len(details) == 0 {
		return nil
	}
	var payload struct {
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(details, &payload); err != nil {
		return nil
	}
	return payload.Fields
}
