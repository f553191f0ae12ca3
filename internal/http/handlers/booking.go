package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clinicops/scheduling-service/internal/booking"
	"github.com/clinicops/scheduling-service/internal/observability/metrics"
	"github.com/clinicops/scheduling-service/pkg/logging"
)

type booker interface {
	Book(ctx context.Context, req booking.Request) (*booking.Result, error)
}

type BookingHandlerConfig struct {
	Booker  booker
	Metrics *metrics.SchedulingMetrics
	Logger  *logging.Logger
}

// BookingHandler serves appointment booking.
type BookingHandler struct {
	booker  booker
	metrics *metrics.SchedulingMetrics
	logger  *logging.Logger
}

func NewBookingHandler(cfg BookingHandlerConfig) *BookingHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &BookingHandler{
		booker:  cfg.Booker,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
}

// Book handles POST /appointment/book.
func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	var req booking.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.booker.Book(r.Context(), req)
	if err != nil {
		status, outcome, body := bookingFailure(err)
		h.metrics.ObserveBooking(outcome)
		if status >= http.StatusInternalServerError {
			h.logger.Error("booking failed", "scheduler_id", req.SchedulerID, "error", err)
		} else {
			h.logger.Warn("booking rejected", "scheduler_id", req.SchedulerID, "error", err)
		}
		writeJSON(w, status, body)
		return
	}

	h.metrics.ObserveBooking("confirmed")
	writeJSON(w, http.StatusCreated, res)
}

func bookingFailure(err error) (int, string, errorBody) {
	var validationErr *booking.ValidationFailedError
	var unavailableErr *booking.UnavailableError
	switch {
	case errors.Is(err, booking.ErrSlotTaken):
		return http.StatusConflict, "slot_taken",
			errorBody{Error: "slot is no longer available"}
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity, "validation_failed",
			errorBody{Error: validationErr.Message, Fields: validationErr.Fields}
	case errors.As(err, &unavailableErr):
		return http.StatusServiceUnavailable, "upstream_unavailable",
			errorBody{Error: "scheduling proxy unavailable"}
	case errors.Is(err, booking.ErrMissingScheduler),
		errors.Is(err, booking.ErrMissingStart),
		errors.Is(err, booking.ErrInvalidDuration),
		errors.Is(err, booking.ErrMissingCustomer):
		return http.StatusBadRequest, "invalid_request",
			errorBody{Error: err.Error()}
	default:
		return http.StatusBadGateway, "upstream_error",
			errorBody{Error: "scheduling proxy rejected the booking"}
	}
}
