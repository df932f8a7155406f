package ics

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"perpetcal/internal/model"
)

// ComponentKind is the closed set of component kinds the pipeline cares
// about. Everything that is neither an event nor a to-do is KindOther.
type ComponentKind int

const (
	KindOther ComponentKind = iota
	KindEvent
	KindTodo
)

func (k ComponentKind) String() string {
	switch k {
	case KindEvent:
		return "event"
	case KindTodo:
		return "todo"
	default:
		return "other"
	}
}

const (
	icalTimestampFormatUtc   = "20060102T150405Z"
	icalTimestampFormatLocal = "20060102T150405"
	icalDateFormat           = "20060102"
)

// stampProperties are tried in order when a component has no DTSTART.
var stampProperties = []ical.ComponentProperty{
	ical.ComponentPropertyDtstamp,
	ical.ComponentPropertyLastModified,
	ical.ComponentPropertyCreated,
}

// Component is a read-only view over one top-level calendar component.
type Component struct {
	Kind ComponentKind
	// Name is the component token as written (VEVENT, VTODO, VFREEBUSY, ...).
	Name string

	base *ical.ComponentBase
}

func wrapComponent(c ical.Component) Component {
	switch v := c.(type) {
	case *ical.VEvent:
		return Component{Kind: KindEvent, Name: string(ical.ComponentVEvent), base: &v.ComponentBase}
	case *ical.VTodo:
		return Component{Kind: KindTodo, Name: string(ical.ComponentVTodo), base: &v.ComponentBase}
	case *ical.VJournal:
		return Component{Kind: KindOther, Name: string(ical.ComponentVJournal), base: &v.ComponentBase}
	case *ical.VBusy:
		return Component{Kind: KindOther, Name: string(ical.ComponentVFreeBusy), base: &v.ComponentBase}
	case *ical.VTimezone:
		return Component{Kind: KindOther, Name: string(ical.ComponentVTimezone), base: &v.ComponentBase}
	case *ical.VAlarm:
		return Component{Kind: KindOther, Name: string(ical.ComponentVAlarm), base: &v.ComponentBase}
	case *ical.GeneralComponent:
		return Component{Kind: KindOther, Name: v.Token, base: &v.ComponentBase}
	default:
		return Component{Kind: KindOther, Name: fmt.Sprintf("%T", c)}
	}
}

// Start returns DTSTART.
func (c Component) Start() (model.DateValue, bool, error) {
	return c.date(ical.ComponentPropertyDtStart)
}

// End returns DTEND for events and DUE for to-dos.
func (c Component) End() (model.DateValue, bool, error) {
	switch c.Kind {
	case KindEvent:
		return c.date(ical.ComponentPropertyDtEnd)
	case KindTodo:
		return c.date(ical.ComponentPropertyDue)
	default:
		return model.DateValue{}, false, nil
	}
}

// Stamp returns the last known timestamp of the component: DTSTAMP, then
// LAST-MODIFIED, then CREATED.
func (c Component) Stamp() (model.DateValue, bool, error) {
	for _, prop := range stampProperties {
		v, ok, err := c.date(prop)
		if err != nil || ok {
			return v, ok, err
		}
	}
	return model.DateValue{}, false, nil
}

func (c Component) Summary() (string, bool) {
	return c.text(ical.ComponentPropertySummary)
}

func (c Component) Description() (string, bool) {
	return c.text(ical.ComponentPropertyDescription)
}

func (c Component) Location() (string, bool) {
	return c.text(ical.ComponentPropertyLocation)
}

func (c Component) text(prop ical.ComponentProperty) (string, bool) {
	if c.base == nil {
		return "", false
	}
	p := c.base.GetProperty(prop)
	if p == nil {
		return "", false
	}
	return p.Value, true
}

func (c Component) date(prop ical.ComponentProperty) (model.DateValue, bool, error) {
	if c.base == nil {
		return model.DateValue{}, false, nil
	}
	p := c.base.GetProperty(prop)
	if p == nil {
		return model.DateValue{}, false, nil
	}
	v, err := parseDateValue(p.BaseProperty)
	if err != nil {
		return model.DateValue{}, true, fmt.Errorf("%s: %w", prop, err)
	}
	return v, true, nil
}

// parseDateValue classifies a DATE / DATE-TIME property value.
//
//   - VALUE=DATE or an eight digit value: DateOnly
//   - trailing Z: DateUTC (a TZID next to it is ignored)
//   - TZID present: DateZoned
//   - otherwise: DateFloating
func parseDateValue(bp ical.BaseProperty) (model.DateValue, error) {
	value := strings.TrimSpace(bp.Value)
	if value == "" {
		return model.DateValue{}, fmt.Errorf("empty date value")
	}

	valueType := paramValue(bp, string(ical.ParameterValue))
	if strings.EqualFold(valueType, string(ical.ValueDataTypeDate)) || (len(value) == len(icalDateFormat) && !strings.ContainsRune(value, 'T')) {
		t, err := time.Parse(icalDateFormat, value)
		if err != nil {
			return model.DateValue{}, fmt.Errorf("invalid date %q: %w", value, err)
		}
		return model.DateValue{Kind: model.DateOnly, Wall: t}, nil
	}

	if strings.HasSuffix(value, "Z") {
		t, err := time.Parse(icalTimestampFormatUtc, value)
		if err != nil {
			return model.DateValue{}, fmt.Errorf("invalid UTC date-time %q: %w", value, err)
		}
		return model.DateValue{Kind: model.DateUTC, Wall: t.UTC()}, nil
	}

	t, err := time.Parse(icalTimestampFormatLocal, value)
	if err != nil {
		return model.DateValue{}, fmt.Errorf("invalid date-time %q: %w", value, err)
	}
	if tzid := strings.Trim(paramValue(bp, string(ical.ParameterTzid)), `"`); tzid != "" {
		return model.DateValue{Kind: model.DateZoned, Wall: t, TZID: tzid}, nil
	}
	return model.DateValue{Kind: model.DateFloating, Wall: t}, nil
}

// paramValue returns the first value of a parameter, matching the name
// case-insensitively.
func paramValue(bp ical.BaseProperty, name string) string {
	for k, vs := range bp.ICalParameters {
		if strings.EqualFold(k, name) && len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}
