package ics

import (
	"strings"
	"time"

	"perpetcal/internal/model"
	"perpetcal/internal/tz"
)

// DefaultPlaceholder is the summary given to items without a SUMMARY
// or with a blank one. It is
// used for events as well as to-dos.
const DefaultPlaceholder = "Untitled TODO"

// Extractor turns events and to-dos into normalized items.
type Extractor struct {
	// Placeholder replaces a missing or blank SUMMARY. Empty means DefaultPlaceholder.
	Placeholder string
}

func (e Extractor) placeholder() string {
	if e.Placeholder == "" {
		return DefaultPlaceholder
	}
	return e.Placeholder
}

// FromComponent builds an Item from an event or to-do.
//
// start is DTSTART, falling back to the component's last known timestamp.
// due is DTEND (events) or DUE (to-dos) and has no fallback. Any date that
// cannot be parsed or resolved fails the whole component.
func (e Extractor) FromComponent(c Component, zone *tz.Zone) (model.Item, error) {
	var item model.Item

	start, err := e.resolve(c.Start, zone)
	if err != nil {
		return model.Item{}, parseErrorf(err, "%s start", c.Name)
	}
	if start == nil {
		start, err = e.resolve(c.Stamp, zone)
		if err != nil {
			return model.Item{}, parseErrorf(err, "%s timestamp", c.Name)
		}
	}
	item.Start = start

	due, err := e.resolve(c.End, zone)
	if err != nil {
		return model.Item{}, parseErrorf(err, "%s end", c.Name)
	}
	item.Due = due

	if s, ok := c.Summary(); ok && strings.TrimSpace(s) != "" {
		item.Summary = s
	} else {
		item.Summary = e.placeholder()
	}
	if d, ok := c.Description(); ok {
		item.Description = &d
	}
	if l, ok := c.Location(); ok {
		item.Location = &l
	}

	return item, nil
}

func (e Extractor) resolve(get func() (model.DateValue, bool, error), zone *tz.Zone) (*time.Time, error) {
	v, ok, err := get()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	t, err := zone.Instant(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
