package workout

import "sort"

// Seen answers whether a workout id was already delivered.
type Seen interface {
	Contains(id string) bool
}

// Resolve keeps the workouts whose id is not in seen, drops id-less and repeated records,
// and orders the rest by start time ascending.
//
// Start times are compared as strings. The exporter writes fixed-width
// "YYYY-MM-DD HH:MM:SS +ZZZZ" values, so lexical order is chronological order as long as
// every record in a file shares one UTC offset.
func Resolve(workouts []Workout, seen Seen) []Workout {
	var out []Workout
	picked := map[string]struct{}{}
	for _, w := range workouts {
		if w.ID == "" {
			continue
		}
		if _, dup := picked[w.ID]; dup {
			continue
		}
		if seen != nil && seen.Contains(w.ID) {
			continue
		}
		picked[w.ID] = struct{}{}
		out = append(out, w)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start < out[j].Start
	})
	return out
}
