package ics

import (
	"bytes"

	ical "github.com/arran4/golang-ical"

	appLog "perpetcal/internal/log"
)

// ParseFeed parses an ICS payload into its top-level components, in feed
// order.
//
//   - Line unfolding, escaping and grammar are handled by golang-ical.
//   - Stray properties between components are accepted rather than
//     rejected; real-world feeds contain them.
//   - No recurrence expansion is done.
func ParseFeed(body []byte) ([]Component, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &ParseError{Reason: "empty feed"}
	}

	cal, err := ical.ParseCalendarWithOptions(bytes.NewReader(body),
		ical.WithUnknownPropertyHandler(ical.AcceptUnknownPropertyHandler),
	)
	if err != nil {
		return nil, parseErrorf(err, "malformed calendar")
	}

	comps := make([]Component, 0, len(cal.Components))
	for _, c := range cal.Components {
		comps = append(comps, wrapComponent(c))
	}

	appLog.Debug("ics parse completed", "component_count", len(comps))
	return comps, nil
}
