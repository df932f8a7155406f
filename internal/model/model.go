package model

import "time"

// DateKind classifies how a DATE / DATE-TIME value was written in the feed.
type DateKind int

const (
	// DateUTC is a DATE-TIME with a trailing "Z".
	DateUTC DateKind = iota
	// DateZoned is a DATE-TIME qualified with a TZID parameter.
	DateZoned
	// DateFloating is a DATE-TIME with neither "Z" nor TZID.
	DateFloating
	// DateOnly is a DATE without a time of day.
	DateOnly
)

func (k DateKind) String() string {
	switch k {
	case DateUTC:
		return "utc"
	case DateZoned:
		return "zoned"
	case DateFloating:
		return "floating"
	case DateOnly:
		return "date"
	default:
		return "unknown"
	}
}

// DateValue is a date or date-time exactly as authored in the feed, before
// any zone resolution.
//
// Wall holds the literal calendar fields (year..second). Its Location is
// only meaningful for DateUTC; for the other kinds callers must read the
// fields and place them in a zone themselves.
type DateValue struct {
	Kind DateKind
	Wall time.Time
	// TZID is set for DateZoned only.
	TZID string
}

// Item is a normalized event or to-do. Start and Due, when set, are always
// UTC instants.
type Item struct {
	Start       *time.Time
	Due         *time.Time
	Summary     string
	Description *string
	Location    *string
}

// Projected is the caller-facing rendering of an Item.
type Projected struct {
	Start       *string `json:"start"`
	Due         *string `json:"due"`
	Summary     string  `json:"summary"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
}

// Request is one conversion request.
type Request struct {
	Feed  string `json:"feed" yaml:"feed"`
	TZID  string `json:"tzid" yaml:"tzid"`
	DTFmt string `json:"dtfmt" yaml:"dtfmt"`
	Sort  bool   `json:"sort" yaml:"sort"`
	Limit uint   `json:"limit" yaml:"limit"`
}
