package dds

import "time"

// ClockSkewBuffer backdates the document validity start so a freshly issued
// document is accepted by peers with slightly trailing clocks.
const ClockSkewBuffer = 5 * time.Minute

// GrantValidity computes the document-level [start, end) window for a set of
// grants. The window never outlives the shortest-lived grant: a single signed
// document covers all of an application's grants, and an expired grant must
// not appear still authorized.
//
// An empty grant list yields a zero-width window, signalling nothing granted.
func GrantValidity(now time.Time, grants []*ApplicationGrant, durations map[int64]GrantDuration) (time.Time, time.Time) {
	start := now.UTC().Add(-ClockSkewBuffer)
	if len(grants) == 0 {
		return start, start
	}
	var min int64
	first := true
	for _, g := range grants {
		d, ok := durations[g.DurationID]
		if !ok {
			continue
		}
		if first || d.DurationMillis < min {
			min = d.DurationMillis
			first = false
		}
	}
	if first {
		return start, start
	}
	return start, start.Add(time.Duration(min) * time.Millisecond)
}
