package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/clinicops/scheduling-service/internal/availability"
	"github.com/clinicops/scheduling-service/internal/credentials"
	"github.com/clinicops/scheduling-service/internal/googlecal"
	"github.com/clinicops/scheduling-service/internal/observability/metrics"
	"github.com/clinicops/scheduling-service/internal/proxy"
	"github.com/clinicops/scheduling-service/internal/schedule"
	"github.com/clinicops/scheduling-service/internal/scheduler"
	"github.com/clinicops/scheduling-service/pkg/logging"
)

type provisioner interface {
	Provision(ctx context.Context, req scheduler.ProvisionRequest) (*scheduler.Result, error)
}

type freeTimeSource interface {
	GetFreeTime(ctx context.Context, schedulerIDs []string, durationMin int, from, to time.Time) ([]proxy.FreeSlot, error)
}

type SchedulerHandlerConfig struct {
	Provisioner     provisioner
	FreeTime        freeTimeSource
	Metrics         *metrics.SchedulingMetrics
	DisplayTZ       *time.Location
	DefaultDuration int
	Logger          *logging.Logger
}

// SchedulerHandler serves provisioning and free-time lookup.
type SchedulerHandler struct {
	provisioner     provisioner
	freeTime        freeTimeSource
	metrics         *metrics.SchedulingMetrics
	displayTZ       *time.Location
	defaultDuration int
	logger          *logging.Logger
}

func NewSchedulerHandler(cfg SchedulerHandlerConfig) *SchedulerHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.DisplayTZ == nil {
		cfg.DisplayTZ = time.UTC
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = 15
	}
	return &SchedulerHandler{
		provisioner:     cfg.Provisioner,
		freeTime:        cfg.FreeTime,
		metrics:         cfg.Metrics,
		displayTZ:       cfg.DisplayTZ,
		defaultDuration: cfg.DefaultDuration,
		logger:          cfg.Logger,
	}
}

type provisionPayload struct {
	ClinicID            string                 `json:"clinic_id"`
	PractitionerID      string                 `json:"practitioner_id"`
	SourceType          string                 `json:"source_type"`
	AuthCode            string                 `json:"auth_code,omitempty"`
	APIToken            string                 `json:"api_token,omitempty"`
	SourceSchedulerID   string                 `json:"source_scheduler_id,omitempty"`
	ActiveHoursOverride []schedule.ActiveHour  `json:"active_hours,omitempty"`
	Timezone            string                 `json:"timezone,omitempty"`
	MaxOverlap          int                    `json:"max_overlap,omitempty"`
}

type provisionResponse struct {
	Record   *scheduler.Record `json:"record"`
	State    scheduler.State   `json:"state"`
	Warnings []string          `json:"warnings,omitempty"`
}

// Provision handles POST /scheduler/provision.
func (h *SchedulerHandler) Provision(w http.ResponseWriter, r *http.Request) {
	var payload provisionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.ClinicID == "" || payload.PractitionerID == "" {
		writeError(w, http.StatusBadRequest, "clinic_id and practitioner_id are required")
		return
	}
	sourceType := credentials.SourceType(payload.SourceType)
	if sourceType != credentials.SourceGoogle && sourceType != credentials.SourceToken {
		writeError(w, http.StatusBadRequest, "source_type must be google or token")
		return
	}

	res, err := h.provisioner.Provision(r.Context(), scheduler.ProvisionRequest{
		ClinicID:            payload.ClinicID,
		PractitionerID:      payload.PractitionerID,
		SourceType:          sourceType,
		AuthCode:            payload.AuthCode,
		APIToken:            payload.APIToken,
		SourceSchedulerID:   payload.SourceSchedulerID,
		ActiveHoursOverride: payload.ActiveHoursOverride,
		Timezone:            payload.Timezone,
		MaxOverlap:          payload.MaxOverlap,
	})
	if err != nil {
		h.logger.Error("provisioning failed", "clinic_id", payload.ClinicID, "error", err)
		status, msg := provisionStatus(err)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusCreated, provisionResponse{
		Record:   res.Record,
		State:    res.State,
		Warnings: res.Warnings,
	})
}

func provisionStatus(err error) (int, string) {
	var authErr *googlecal.AuthError
	var persistErr *scheduler.PersistenceError
	switch {
	case errors.Is(err, scheduler.ErrDuplicateScheduler):
		return http.StatusConflict, "a scheduler already exists for this source calendar"
	case errors.Is(err, scheduler.ErrMissingActiveHours):
		return http.StatusUnprocessableEntity, "no active hours available; supply active_hours or store a weekly schedule first"
	case errors.As(err, &authErr):
		return http.StatusBadRequest, "credential exchange failed"
	case errors.As(err, &persistErr):
		return http.StatusInternalServerError, "failed to persist scheduler state"
	case proxy.IsTransient(err):
		return http.StatusBadGateway, "scheduling proxy unavailable"
	default:
		return http.StatusBadGateway, "scheduling proxy rejected the request"
	}
}

// FreeTime handles GET /scheduler/free-time.
func (h *SchedulerHandler) FreeTime(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var schedulerIDs []string
	for _, raw := range q["scheduler_id"] {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				schedulerIDs = append(schedulerIDs, id)
			}
		}
	}
	if len(schedulerIDs) == 0 {
		writeError(w, http.StatusBadRequest, "at least one scheduler_id is required")
		return
	}

	duration := h.defaultDuration
	if raw := q.Get("duration"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "duration must be a positive number of minutes")
			return
		}
		duration = d
	}

	from, to, err := parseRange(q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	raw, err := h.freeTime.GetFreeTime(r.Context(), schedulerIDs, duration, from, to)
	if err != nil {
		h.metrics.ObserveProxyCall("free_time", "error", time.Since(start).Seconds())
		h.logger.Error("free-time lookup failed", "scheduler_ids", schedulerIDs, "error", err)
		if proxy.IsTransient(err) {
			writeError(w, http.StatusServiceUnavailable, "scheduling proxy unavailable")
			return
		}
		writeError(w, http.StatusBadGateway, "scheduling proxy rejected the request")
		return
	}
	h.metrics.ObserveProxyCall("free_time", "ok", time.Since(start).Seconds())

	slots := make([]availability.Slot, 0, len(raw))
	for _, s := range raw {
		slots = append(slots, availability.Slot{SchedulerID: s.SchedulerID, From: s.From})
	}
	buckets := availability.Aggregate(slots, duration, h.displayTZ)

	writeJSON(w, http.StatusOK, map[string]any{"days": buckets})
}

func parseRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	if fromRaw == "" || toRaw == "" {
		return time.Time{}, time.Time{}, errors.New("from and to are required RFC3339 timestamps")
	}
	from, err := time.Parse(time.RFC3339, fromRaw)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("from must be an RFC3339 timestamp")
	}
	to, err := time.Parse(time.RFC3339, toRaw)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("to must be an RFC3339 timestamp")
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, errors.New("to must be after from")
	}
	return from, to, nil
}
