// Package scheduler provisions schedulers against the scheduling proxy and
// keeps the local records that mirror them.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clinicops/scheduling-service/internal/credentials"
	"github.com/clinicops/scheduling-service/internal/googlecal"
	"github.com/clinicops/scheduling-service/internal/proxy"
	"github.com/clinicops/scheduling-service/internal/relations"
	"github.com/clinicops/scheduling-service/internal/schedule"
	"github.com/clinicops/scheduling-service/pkg/logging"
)

// State is a provisioning step the orchestrator has completed. A failed run
// reports the last state it reached.
type State string

const (
	StateDraft                State = "draft"
	StateCredentialsExchanged State = "credentials_exchanged"
	StateCredentialsPersisted State = "credentials_persisted"
	StateProxyCreated         State = "proxy_created"
	StateRelationsLinked      State = "relations_linked"
)

var (
	// ErrDuplicateScheduler maps the upstream uniqueness violation on
	// (source credentials, source calendar). Retrying cannot succeed; the
	// caller must pick a different source calendar.
	ErrDuplicateScheduler = errors.New("scheduler: source calendar already has a scheduler")

	// ErrMissingActiveHours is returned before any upstream call when a
	// Google-type source has neither an override nor stored weekly hours.
	ErrMissingActiveHours = errors.New("scheduler: no active hours resolvable")
)

// PersistenceError is a local storage failure during provisioning. The
// caller decides whether to retry.
type PersistenceError struct {
	Step string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("scheduler: persist %s: %v", e.Step, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ProvisionRequest describes one scheduler to create.
type ProvisionRequest struct {
	ClinicID       string
	PractitionerID string
	SourceType     credentials.SourceType

	// AuthCode drives the OAuth exchange for Google-type sources.
	AuthCode string
	// APIToken is the pre-supplied long-lived token for token-type sources.
	APIToken string

	// SourceSchedulerID is the source-side calendar id. Empty for Google
	// sources means "use the primary calendar".
	SourceSchedulerID string

	// ActiveHoursOverride wins over the stored weekly schedule.
	ActiveHoursOverride []schedule.ActiveHour

	// Timezone of the stored weekly windows, IANA name. Empty falls back to
	// the orchestrator default.
	Timezone string

	MaxOverlap int
}

// Result is the outcome of a provisioning run. Relation-link failures do not
// fail the run; they surface in Warnings.
type Result struct {
	Record   *Record
	State    State
	Warnings []string
}

// googleClient is the Google-side collaborator.
type googleClient interface {
	ExchangeCode(ctx context.Context, code string) (*credentials.Credential, error)
	PrimaryCalendarID(ctx context.Context, cred *credentials.Credential) (string, error)
}

// proxyCreator is the slice of the proxy client provisioning needs.
type proxyCreator interface {
	CreateScheduler(ctx context.Context, req proxy.CreateSchedulerRequest) (string, error)
}

// recordStore is the slice of Repository provisioning needs.
type recordStore interface {
	Create(ctx context.Context, rec *Record) error
	SetProxySchedulerID(ctx context.Context, id, proxyID string) error
}

// weeklyScheduleSource yields the stored weekly windows for a practitioner.
type weeklyScheduleSource interface {
	Get(ctx context.Context, practitionerID string) ([]schedule.WeeklyWindow, error)
}

// Provisioner drives the multi-step scheduler creation flow.
type Provisioner struct {
	google    googleClient
	creds     credentials.Store
	proxy     proxyCreator
	records   recordStore
	schedules weeklyScheduleSource
	graph     relations.Graph
	defaultTZ *time.Location
	logger    *logging.Logger
}

// NewProvisioner wires the provisioning orchestrator. All collaborators are
// passed explicitly; the orchestrator owns none of their lifecycles.
func NewProvisioner(
	google googleClient,
	creds credentials.Store,
	proxyClient proxyCreator,
	records recordStore,
	schedules weeklyScheduleSource,
	graph relations.Graph,
	defaultTZ *time.Location,
	logger *logging.Logger,
) *Provisioner {
	if defaultTZ == nil {
		defaultTZ = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Provisioner{
		google:    google,
		creds:     creds,
		proxy:     proxyClient,
		records:   records,
		schedules: schedules,
		graph:     graph,
		defaultTZ: defaultTZ,
		logger:    logger,
	}
}

// Provision runs the creation flow. On failure the returned result carries
// the last completed state alongside the error.
func (p *Provisioner) Provision(ctx context.Context, req ProvisionRequest) (*Result, error) {
	res := &Result{State: StateDraft}

	cred, err := p.resolveCredential(ctx, req)
	if err != nil {
		return res, err
	}
	res.State = StateCredentialsExchanged

	credsID, err := p.creds.Save(ctx, cred)
	if err != nil {
		return res, &PersistenceError{Step: "credentials", Err: err}
	}
	cred.ID = credsID
	res.State = StateCredentialsPersisted

	sourceSchedulerID := req.SourceSchedulerID
	if sourceSchedulerID == "" && req.SourceType == credentials.SourceGoogle {
		sourceSchedulerID, err = p.google.PrimaryCalendarID(ctx, cred)
		if err != nil {
			return res, err
		}
	}

	hours, err := p.resolveActiveHours(ctx, req)
	if err != nil {
		return res, err
	}
	// Google sources cannot be registered without availability windows; fail
	// before any upstream call.
	if len(hours) == 0 && req.SourceType == credentials.SourceGoogle {
		return res, ErrMissingActiveHours
	}

	rec := &Record{
		SourceCredentialsID: credsID,
		SourceSchedulerID:   sourceSchedulerID,
		SourceType:          req.SourceType,
		ActiveHours:         hours,
		MaxOverlap:          req.MaxOverlap,
	}
	if err := p.records.Create(ctx, rec); err != nil {
		return res, &PersistenceError{Step: "scheduler record", Err: err}
	}
	res.Record = rec

	proxyID, err := p.proxy.CreateScheduler(ctx, proxy.CreateSchedulerRequest{
		SourceCredentialsID: credsID,
		SourceSchedulerID:   sourceSchedulerID,
		MaxOverlap:          rec.MaxOverlap,
		ActiveHours:         hours,
	})
	if err != nil {
		if proxy.IsDuplicateScheduler(err) {
			return res, fmt.Errorf("%w: %s", ErrDuplicateScheduler, sourceSchedulerID)
		}
		return res, err
	}
	rec.ProxySchedulerID = proxyID
	if err := p.records.SetProxySchedulerID(ctx, rec.ID, proxyID); err != nil {
		return res, &PersistenceError{Step: "proxy scheduler id", Err: err}
	}
	res.State = StateProxyCreated
	p.logger.Info("scheduler registered with proxy",
		"scheduler_id", rec.ID,
		"proxy_scheduler_id", proxyID,
		"source_scheduler_id", sourceSchedulerID,
	)

	// Relation failures leave the scheduler created; they are reported as
	// warnings, never as overall failure.
	if req.ClinicID != "" {
		if err := p.graph.Link(ctx, req.ClinicID, rec.ID, relations.KindClinicScheduler); err != nil {
			p.logger.Warn("clinic relation link failed", "scheduler_id", rec.ID, "error", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("clinic link failed: %v", err))
		}
	}
	if req.PractitionerID != "" {
		if err := p.graph.Link(ctx, rec.ID, req.PractitionerID, relations.KindSchedulerPractitioner); err != nil {
			p.logger.Warn("practitioner relation link failed", "scheduler_id", rec.ID, "error", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("practitioner link failed: %v", err))
		}
	}
	res.State = StateRelationsLinked

	return res, nil
}

func (p *Provisioner) resolveCredential(ctx context.Context, req ProvisionRequest) (*credentials.Credential, error) {
	switch req.SourceType {
	case credentials.SourceGoogle:
		return p.google.ExchangeCode(ctx, req.AuthCode)
	case credentials.SourceToken:
		if req.APIToken == "" {
			return nil, &googlecal.AuthError{Err: errors.New("token source requires an api token")}
		}
		return &credentials.Credential{
			SourceType:  credentials.SourceToken,
			AccessToken: req.APIToken,
		}, nil
	default:
		return nil, fmt.Errorf("scheduler: unknown source type %q", req.SourceType)
	}
}

// resolveActiveHours applies the precedence: explicit override, then stored
// weekly schedule run through the normalizer.
func (p *Provisioner) resolveActiveHours(ctx context.Context, req ProvisionRequest) ([]schedule.ActiveHour, error) {
	if len(req.ActiveHoursOverride) > 0 {
		return req.ActiveHoursOverride, nil
	}
	if req.PractitionerID == "" || p.schedules == nil {
		return nil, nil
	}

	windows, err := p.schedules.Get(ctx, req.PractitionerID)
	if err != nil {
		return nil, &PersistenceError{Step: "weekly schedule", Err: err}
	}
	if len(windows) == 0 {
		return nil, nil
	}

	loc := p.defaultTZ
	if req.Timezone != "" {
		loc, err = time.LoadLocation(req.Timezone)
		if err != nil {
			return nil, fmt.Errorf("scheduler: unknown timezone %q: %w", req.Timezone, err)
		}
	}
	return schedule.Normalize(windows, loc)
}
