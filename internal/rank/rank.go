// Package rank orders normalized items and truncates the result.
package rank

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"perpetcal/internal/model"
)

// LimitMode selects how a non-zero limit is applied.
type LimitMode string

const (
	// LimitInclusive keeps items while a zero-based counter is <= limit,
	// so a limit of N yields N+1 items. This is what existing clients of
	// the service depend on.
	LimitInclusive LimitMode = "inclusive"
	// LimitExact keeps at most limit items.
	LimitExact LimitMode = "exact"
)

// ParseLimitMode accepts "inclusive", "exact" or "" (inclusive).
func ParseLimitMode(s string) (LimitMode, error) {
	switch LimitMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", LimitInclusive:
		return LimitInclusive, nil
	case LimitExact:
		return LimitExact, nil
	default:
		return "", fmt.Errorf("unknown limit mode %q (want %q or %q)", s, LimitInclusive, LimitExact)
	}
}

// Rank returns items, optionally sorted by Compare, truncated according to
// limit and mode. A limit of 0 means no truncation. items is not modified.
func Rank(items []model.Item, sortEnabled bool, limit uint, mode LimitMode) []model.Item {
	out := slices.Clone(items)
	if out == nil {
		out = []model.Item{}
	}
	if sortEnabled {
		slices.SortStableFunc(out, Compare)
	}
	if limit == 0 {
		return out
	}

	keep := limit
	if mode != LimitExact && limit < math.MaxUint {
		keep = limit + 1
	}
	if uint(len(out)) > keep {
		out = out[:keep]
	}
	return out
}

// Compare orders items for display, most relevant first:
//
//  1. both have a due time: later due first
//  2. both have a start time: later start first
//  3. only one has a due time: that one first
//  4. only one has a start time: that one first
//  5. otherwise: summaries in descending byte order
//
// It returns a negative number when a sorts before b.
func Compare(a, b model.Item) int {
	switch {
	case a.Due != nil && b.Due != nil:
		return descending(*a.Due, *b.Due)
	case a.Start != nil && b.Start != nil:
		return descending(*a.Start, *b.Start)
	case a.Due != nil:
		return -1
	case b.Due != nil:
		return 1
	case a.Start != nil:
		return -1
	case b.Start != nil:
		return 1
	default:
		return strings.Compare(b.Summary, a.Summary)
	}
}

func descending(a, b time.Time) int {
	return b.Compare(a)
}
