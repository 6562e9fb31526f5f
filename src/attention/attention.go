// Package attention maintains the exception flags carried by order lines.
//
// Flags form a set stored as a comma separated string ("R1, R4"). Every update adds
// or removes named flags only, so recomputing after any event converges.
package attention

import (
	"sort"
	"strings"
	"time"

	"ordersaga/src/model"
)

type Flag string

const (
	// R1: request date earlier than the confirmed (or freshly reported) date.
	R1 Flag = "R1"
	// R2: the Planner flagged the line for attention.
	R2 Flag = "R2"
	// R4: confirmed (or freshly reported) date after the order ETD.
	R4 Flag = "R4"
	// R5: compensation could not be verified, or a background retry gave up.
	R5 Flag = "R5"
)

type Set map[Flag]struct{}

func Parse(s string) Set {
	set := Set{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			set[Flag(part)] = struct{}{}
		}
	}
	return set
}

func (s Set) Has(f Flag) bool {
	_, ok := s[f]
	return ok
}

func (s Set) Add(flags ...Flag) {
	for _, f := range flags {
		s[f] = struct{}{}
	}
}

func (s Set) Remove(flags ...Flag) {
	for _, f := range flags {
		delete(s, f)
	}
}

// String renders the set sorted so equal sets always serialize the same.
func (s Set) String() string {
	parts := make([]string, 0, len(s))
	for f := range s {
		parts = append(parts, string(f))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

// Signal is what the Planner reported for a line in its latest response.
type Signal struct {
	ForAttention            bool
	ConfirmAvailabilityDate *time.Time
	DispatchDate            *time.Time
}

// Verdict holds the computed state of the three event-driven flags.
type Verdict struct {
	R1 bool
	R2 bool
	R4 bool
}

// Evaluate computes R1, R2 and R4 for a line. signal may be nil when the event did
// not involve the Planner.
func Evaluate(line *model.OrderLine, etd *time.Time, signal *Signal) Verdict {
	var v Verdict

	fresh := (*time.Time)(nil)
	if signal != nil {
		v.R2 = signal.ForAttention
		fresh = signal.ConfirmAvailabilityDate
		if fresh == nil {
			fresh = signal.DispatchDate
		}
	}

	if line.RequestDate != nil {
		req := dateOnly(*line.RequestDate)
		if line.ConfirmedDate != nil && req.Before(dateOnly(*line.ConfirmedDate)) {
			v.R1 = true
		}
		if fresh != nil && req.Before(dateOnly(*fresh)) {
			v.R1 = true
		}
	}

	if etd != nil {
		limit := dateOnly(*etd)
		if line.ConfirmedDate != nil && dateOnly(*line.ConfirmedDate).After(limit) {
			v.R4 = true
		}
		if fresh != nil && dateOnly(*fresh).After(limit) {
			v.R4 = true
		}
	}
	return v
}

// Apply writes the verdict onto the line. R5 and unknown flags are left untouched.
func Apply(line *model.OrderLine, v Verdict) {
	set := Parse(line.AttentionType)
	toggle(set, R1, v.R1)
	toggle(set, R2, v.R2)
	toggle(set, R4, v.R4)
	line.AttentionType = set.String()
}

// Mark adds flags to the line.
func Mark(line *model.OrderLine, flags ...Flag) {
	set := Parse(line.AttentionType)
	set.Add(flags...)
	line.AttentionType = set.String()
}

// Clear removes flags from the line.
func Clear(line *model.OrderLine, flags ...Flag) {
	set := Parse(line.AttentionType)
	set.Remove(flags...)
	line.AttentionType = set.String()
}

func toggle(set Set, f Flag, on bool) {
	if on {
		set.Add(f)
		return
	}
	set.Remove(f)
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
