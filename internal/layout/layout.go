// Package layout places same-day occurrences side by side in a calendar
// column. Events whose times overlap share the column width; vertical
// position and height follow their start and end times.
package layout

import (
	"slices"
	"strconv"

	"planner/internal/model"
)

const (
	// BaseHourHeight is the whole-day pixel height of one hour at zoom 1.
	BaseHourHeight = 45.0
	// BucketHourHeight is the fixed scale of hour-bucket layout. Zoom does
	// not apply to it.
	BucketHourHeight = 60.0

	// widthFill leaves a gap between neighbouring events in a group.
	widthFill = 0.95
)

// Positioned is an occurrence with its rectangle. Left and Width are
// percentages of the column; Top and Height are pixels.
type Positioned struct {
	Event  model.Event `json:"event"`
	Top    float64     `json:"top"`
	Left   float64     `json:"left"`
	Width  float64     `json:"width"`
	Height float64     `json:"height"`
}

// LayoutDay positions events that share one calendar day across the whole
// day column. hourHeight is the pixel height of one hour, normally
// Zoom.HourHeight().
func LayoutDay(events []model.Event, hourHeight float64) []Positioned {
	groups := GroupOverlapping(Dedupe(events))
	out := make([]Positioned, 0, len(events))
	for _, g := range groups {
		for i, ev := range g {
			start := minuteOfDay(ev.StartTime)
			end := minuteOfDay(ev.EndTime)
			p := slot(ev, i, len(g))
			p.Top = float64(start) / 60 * hourHeight
			p.Height = float64(end-start) / 60 * hourHeight
			out = append(out, p)
		}
	}
	return out
}

// LayoutHour positions events inside the one-hour cell starting at hour.
// Callers pass events already known to touch that hour. Only the part of
// each event inside [hour:00, hour+1:00) is represented.
func LayoutHour(events []model.Event, hour int) []Positioned {
	groups := GroupOverlapping(Dedupe(events))
	bucketStart := hour * 60
	bucketEnd := (hour + 1) * 60

	out := make([]Positioned, 0, len(events))
	for _, g := range groups {
		for i, ev := range g {
			start := minuteOfDay(ev.StartTime)
			end := minuteOfDay(ev.EndTime)
			visibleStart := max(bucketStart, start)
			visibleEnd := min(bucketEnd, end)

			p := slot(ev, i, len(g))
			p.Top = float64(max(0, start-bucketStart)) / 60 * BucketHourHeight
			p.Height = float64(visibleEnd-visibleStart) / 60 * BucketHourHeight
			out = append(out, p)
		}
	}
	return out
}

// GroupOverlapping sorts events by start time (stable) and places each one
// into the first existing group holding any event it overlaps, or into a
// new group. Because a match against any single member is enough, a group
// can chain events that do not overlap each other directly.
func GroupOverlapping(events []model.Event) [][]model.Event {
	if len(events) == 0 {
		return nil
	}

	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b model.Event) int {
		return a.StartTime.Compare(b.StartTime)
	})

	var groups [][]model.Event
	for _, ev := range sorted {
		placed := false
		for gi := range groups {
			if overlapsAny(ev, groups[gi]) {
				groups[gi] = append(groups[gi], ev)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []model.Event{ev})
		}
	}
	return groups
}

// Dedupe drops events whose key was already seen, keeping the first. The
// key is the id, or name and start time when the id is empty.
func Dedupe(events []model.Event) []model.Event {
	seen := make(map[string]struct{}, len(events))
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		key := dedupeKey(ev)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ev)
	}
	return out
}

func dedupeKey(ev model.Event) string {
	if ev.ID != "" {
		return ev.ID
	}
	return ev.Name + "-" + strconv.FormatInt(ev.StartTime.UnixMilli(), 10)
}

func overlapsAny(ev model.Event, group []model.Event) bool {
	start, end := minuteOfDay(ev.StartTime), minuteOfDay(ev.EndTime)
	for _, other := range group {
		oStart, oEnd := minuteOfDay(other.StartTime), minuteOfDay(other.EndTime)
		// Half-open intervals: touching ends do not overlap.
		if !(end <= oStart || start >= oEnd) {
			return true
		}
	}
	return false
}

func slot(ev model.Event, index, size int) Positioned {
	share := 100 / float64(size)
	return Positioned{
		Event: ev,
		Left:  float64(index) * share,
		Width: share * widthFill,
	}
}
