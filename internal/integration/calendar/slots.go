package calendar

import (
	"sort"
	"time"
)

// Interval is a half-open time interval [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	// Title is filled by best-effort conflict enrichment; empty otherwise.
	Title string `json:"title,omitempty"`
	// CalendarID records which calendar contributed the busy interval.
	CalendarID string `json:"calendarId,omitempty"`
}

// Overlaps reports whether two half-open intervals overlap. Touching
// boundaries (a.End == b.Start) do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// MergeBusy sorts intervals by start and unions overlapping or adjacent
// ones into a single timeline. Input is not modified.
func MergeBusy(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}
	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})
	merged := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// AvailableSlots slices the gaps between sorted, merged busy intervals into
// fixed-duration bins within [windowStart, windowEnd). Partial slots shorter
// than duration are never emitted.
func AvailableSlots(windowStart, windowEnd time.Time, busy []Interval, duration time.Duration) []Interval {
	if duration <= 0 || !windowStart.Before(windowEnd) {
		return nil
	}
	var slots []Interval
	cursor := windowStart
	for _, b := range busy {
		if !b.Start.After(cursor) {
			// busy interval starts at or before the cursor
			if b.End.After(cursor) {
				cursor = b.End
			}
			continue
		}
		gapEnd := b.Start
		if gapEnd.After(windowEnd) {
			gapEnd = windowEnd
		}
		slots = appendBins(slots, cursor, gapEnd, duration)
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if cursor.Before(windowEnd) {
		slots = appendBins(slots, cursor, windowEnd, duration)
	}
	return slots
}

func appendBins(slots []Interval, from, to time.Time, d time.Duration) []Interval {
	for cur := from; !cur.Add(d).After(to); cur = cur.Add(d) {
		slots = append(slots, Interval{Start: cur, End: cur.Add(d)})
	}
	return slots
}

// Conflicts returns the busy intervals that overlap the requested window.
func Conflicts(reqStart, reqEnd time.Time, busy []Interval) []Interval {
	var out []Interval
	for _, b := range busy {
		if Overlaps(reqStart, reqEnd, b.Start, b.End) {
			out = append(out, b)
		}
	}
	return out
}
