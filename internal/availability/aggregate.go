// Package availability reshapes raw proxy free-time slots into day-bucketed
// calendars for presentation.
package availability

import (
	"sort"
	"time"
)

// Slot is a single bookable window for one scheduler. To is always derived
// from the query duration; the proxy reports start times only.
type Slot struct {
	SchedulerID string    `json:"scheduler_id"`
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
}

// DayBucket groups the slots falling on one calendar date in the display
// timezone, sorted ascending by start time.
type DayBucket struct {
	Date  string `json:"date"` // "2006-01-02"
	Slots []Slot `json:"slots"`
}

// Aggregate buckets slots by the local calendar date of their start instant,
// deduplicating on (scheduler, start) and recomputing every end time as
// start plus duration. Upstream-provided end times are never trusted. An
// empty input yields an empty (non-nil) result.
func Aggregate(slots []Slot, durationMin int, display *time.Location) []DayBucket {
	if display == nil {
		display = time.UTC
	}
	duration := time.Duration(durationMin) * time.Minute

	type slotKey struct {
		schedulerID string
		from        int64
	}
	seen := make(map[slotKey]struct{}, len(slots))
	byDate := make(map[string][]Slot)

	for _, s := range slots {
		key := slotKey{schedulerID: s.SchedulerID, from: s.From.Unix()}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		date := s.From.In(display).Format("2006-01-02")
		byDate[date] = append(byDate[date], Slot{
			SchedulerID: s.SchedulerID,
			From:        s.From.UTC(),
			To:          s.From.UTC().Add(duration),
		})
	}

	buckets := make([]DayBucket, 0, len(byDate))
	for date, daySlots := range byDate {
		sort.SliceStable(daySlots, func(i, j int) bool {
			return daySlots[i].From.Before(daySlots[j].From)
		})
		buckets = append(buckets, DayBucket{Date: date, Slots: daySlots})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Date < buckets[j].Date
	})
	return buckets
}

// Flatten is the inverse view of Aggregate: a flat slot list in bucket order.
func Flatten(buckets []DayBucket) []Slot {
	var slots []Slot
	for _, b := range buckets {
		slots = append(slots, b.Slots...)
	}
	return slots
}
