package ics

import (
	appLog "perpetcal/internal/log"
	"perpetcal/internal/model"
	"perpetcal/internal/tz"
)

// Normalize converts every event and to-do in comps to an Item, preserving
// feed order. Other component kinds are skipped. The first failing
// component aborts the whole collection.
func (e Extractor) Normalize(comps []Component, zone *tz.Zone) ([]model.Item, error) {
	items := make([]model.Item, 0, len(comps))
	skipped := 0

	for _, c := range comps {
		switch c.Kind {
		case KindEvent, KindTodo:
			item, err := e.FromComponent(c, zone)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		case KindOther:
			skipped++
			appLog.Debug("ics component skipped", "component", c.Name)
		}
	}

	appLog.Debug("ics normalize completed",
		"zone", zone.Name(),
		"items", len(items),
		"skipped", skipped,
	)
	return items, nil
}
