// Package tz validates IANA timezone identifiers and turns feed date values
// into absolute UTC instants.
package tz

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"perpetcal/internal/model"
)

// ErrInvalidTimezone is wrapped by every resolution failure: unknown zone
// names and wall-clock times that do not exist in a zone.
var ErrInvalidTimezone = errors.New("invalid timezone")

// Probing one day either side of the naive instant covers every UTC offset
// in the database (|offset| <= 14h) plus the transition itself.
const transitionWindow = 24 * time.Hour

// Zone is a validated IANA zone.
type Zone struct {
	name string
	loc  *time.Location
}

// Resolve validates tzid against the zone database. "Local" and the empty
// string are rejected; the host zone is never used implicitly.
func Resolve(tzid string) (*Zone, error) {
	name := strings.TrimSpace(tzid)
	if name == "" {
		return nil, fmt.Errorf("%w: empty identifier", ErrInvalidTimezone)
	}
	if name == "Local" {
		return nil, fmt.Errorf("%w: %q is not an IANA zone name", ErrInvalidTimezone, name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidTimezone, name, err)
	}
	return &Zone{name: name, loc: loc}, nil
}

func (z *Zone) Name() string { return z.name }

func (z *Zone) Location() *time.Location { return z.loc }

func (z *Zone) String() string { return z.name }

// Instant converts v into a UTC instant.
//
//   - DateUTC passes through unchanged.
//   - DateFloating is wall-clock time in z.
//   - DateOnly is 00:00:00 of that day in z.
//   - DateZoned is wall-clock time in its own TZID; the instant it denotes
//     is kept, z does not move it.
//
// Ambiguous wall clocks resolve to the earliest instant. Wall clocks that
// fall into a gap fail with ErrInvalidTimezone.
func (z *Zone) Instant(v model.DateValue) (time.Time, error) {
	switch v.Kind {
	case model.DateUTC:
		return v.Wall.UTC(), nil
	case model.DateFloating:
		return z.fromWall(v.Wall)
	case model.DateOnly:
		y, m, d := v.Wall.Date()
		return z.fromWall(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
	case model.DateZoned:
		src, err := Resolve(v.TZID)
		if err != nil {
			return time.Time{}, err
		}
		return src.fromWall(v.Wall)
	default:
		return time.Time{}, fmt.Errorf("unsupported date kind %d", v.Kind)
	}
}

// fromWall places the calendar fields of w in z.
func (z *Zone) fromWall(w time.Time) (time.Time, error) {
	naive := time.Date(w.Year(), w.Month(), w.Day(), w.Hour(), w.Minute(), w.Second(), w.Nanosecond(), time.UTC)

	candidates := z.candidates(naive)
	if len(candidates) == 0 {
		return time.Time{}, fmt.Errorf("%w: local time %s does not exist in %s",
			ErrInvalidTimezone, naive.Format("2006-01-02T15:04:05"), z.name)
	}
	return candidates[0], nil
}

// candidates returns every instant whose wall clock in z equals naive,
// earliest first. More than one means the wall clock is ambiguous, none
// means it was skipped by a transition.
func (z *Zone) candidates(naive time.Time) []time.Time {
	var out []time.Time
	seen := make(map[int]bool, 3)

	for _, probe := range []time.Time{naive.Add(-transitionWindow), naive, naive.Add(transitionWindow)} {
		_, offset := probe.In(z.loc).Zone()
		if seen[offset] {
			continue
		}
		seen[offset] = true

		c := naive.Add(-time.Duration(offset) * time.Second)
		if _, got := c.In(z.loc).Zone(); got == offset {
			out = append(out, c.UTC())
		}
	}

	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return out
}
