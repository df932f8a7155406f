// Package convert renders normalized items into their output projection.
package convert

import (
	"time"

	"github.com/ncruces/go-strftime"

	"perpetcal/internal/model"
)

// DefaultPattern is used when a request leaves the display pattern empty.
const DefaultPattern = "%Y-%m-%d %H:%M"

// Project renders items with the strftime-style pattern. Instants are
// formatted as stored (UTC); no zone conversion happens here. Absent dates
// stay nil and text fields are copied through.
func Project(items []model.Item, pattern string) []model.Projected {
	out := make([]model.Projected, 0, len(items))
	for _, it := range items {
		out = append(out, model.Projected{
			Start:       render(it.Start, pattern),
			Due:         render(it.Due, pattern),
			Summary:     it.Summary,
			Description: it.Description,
			Location:    it.Location,
		})
	}
	return out
}

func render(t *time.Time, pattern string) *string {
	if t == nil {
		return nil
	}
	s := strftime.Format(pattern, t.UTC())
	return &s
}
