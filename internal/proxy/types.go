package proxy

import (
	"encoding/json"
	"time"

	"github.com/clinicops/scheduling-service/internal/schedule"
)

// envelope is the proxy's uniform response wrapper.
type envelope struct {
	Code   string          `json:"code"`
	Error  string          `json:"error"`
	Result json.RawMessage `json:"result"`
}

// FreeSlot is a raw free-time entry returned by the proxy. Only the start
// instant is reported; the end is derived downstream from the query duration.
type FreeSlot struct {
	SchedulerID string
	From        time.Time
}

// SourceCalendar is a calendar visible through a stored source credential.
type SourceCalendar struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Reason is a visit reason defined on the provider's calendar.
type Reason struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DurationMin int    `json:"duration"`
	Cost        int    `json:"cost,omitempty"`
}

// CreateSchedulerRequest registers a scheduler with the proxy.
type CreateSchedulerRequest struct {
	SourceCredentialsID string                `json:"sourceCredentialsId"`
	SourceSchedulerID   string                `json:"sourceSchedulerId"`
	MaxOverlap          int                   `json:"maxOverlap"`
	ActiveHours         []schedule.ActiveHour `json:"activeHours"`
}

// Customer is the patient identity submitted with an appointment.
type Customer struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Phone      string `json:"phone"`
	Email      string `json:"email,omitempty"`
	NationalID string `json:"nationalId,omitempty"`
}

// CreateAppointmentRequest books a slot with the proxy.
type CreateAppointmentRequest struct {
	SchedulerID string    `json:"schedulerId"`
	Customer    Customer  `json:"customer"`
	Start       time.Time `json:"start"`
	DurationMin int       `json:"duration"`
	Remark      string    `json:"remark,omitempty"`
}

// Appointment is the upstream-assigned appointment record.
type Appointment struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
}

// Wire payloads.
type freeTimeRequest struct {
	SchedulerIDs []string `json:"schedulerIds"`
	DurationMin  int      `json:"duration"`
	From         string   `json:"from"`
	To           string   `json:"to"`
}

type freeTimeResult struct {
	Slots []rawSlot `json:"slots"`
}

type rawSlot struct {
	SchedulerID string `json:"schedulerId"`
	From        string `json:"from"`
}

type checkSlotRequest struct {
	SchedulerID string `json:"schedulerId"`
	From        string `json:"from"`
	DurationMin int    `json:"duration"`
}

type checkSlotResult struct {
	Available bool `json:"available"`
}

type createSchedulerResult struct {
	ID string `json:"id"`
}

type sourceCalendarsResult struct {
	Calendars []SourceCalendar `json:"calendars"`
}

type reasonsResult struct {
	Reasons []Reason `json:"reasons"`
}

type activeHoursResult struct {
	ActiveHours []schedule.ActiveHour `json:"activeHours"`
}
