// Package pipeline runs one conversion request end to end:
// fetch → parse → normalize → rank → project.
package pipeline

import (
	"context"
	"strings"
	"time"

	"perpetcal/internal/convert"
	"perpetcal/internal/ics"
	appLog "perpetcal/internal/log"
	"perpetcal/internal/model"
	"perpetcal/internal/rank"
	"perpetcal/internal/tz"
)

// Fetcher retrieves raw feed bytes. *ics.Fetcher is the production
// implementation.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type Options struct {
	// Placeholder is the summary of items without SUMMARY.
	Placeholder string
	// DefaultFormat replaces an empty request pattern.
	DefaultFormat string
	LimitMode     rank.LimitMode
}

// Service is stateless; Run may be called concurrently.
type Service struct {
	fetcher   Fetcher
	extractor ics.Extractor
	format    string
	limitMode rank.LimitMode
}

func NewService(fetcher Fetcher, opts Options) *Service {
	if opts.DefaultFormat == "" {
		opts.DefaultFormat = convert.DefaultPattern
	}
	if opts.LimitMode == "" {
		opts.LimitMode = rank.LimitInclusive
	}
	return &Service{
		fetcher:   fetcher,
		extractor: ics.Extractor{Placeholder: opts.Placeholder},
		format:    opts.DefaultFormat,
		limitMode: opts.LimitMode,
	}
}

// Run executes req. The time zone is validated before anything is fetched.
// Errors are *ics.FetchError or *ics.ParseError; no partial result is ever
// returned.
func (s *Service) Run(ctx context.Context, req model.Request) ([]model.Projected, error) {
	start := time.Now()

	zone, err := tz.Resolve(req.TZID)
	if err != nil {
		return nil, &ics.ParseError{Reason: "requested timezone", Err: err}
	}

	body, err := s.fetcher.Fetch(ctx, req.Feed)
	if err != nil {
		return nil, err
	}

	comps, err := ics.ParseFeed(body)
	if err != nil {
		return nil, err
	}

	items, err := s.extractor.Normalize(comps, zone)
	if err != nil {
		return nil, err
	}

	ranked := rank.Rank(items, req.Sort, req.Limit, s.limitMode)

	pattern := req.DTFmt
	if strings.TrimSpace(pattern) == "" {
		pattern = s.format
	}
	out := convert.Project(ranked, pattern)

	appLog.Info("pipeline run completed",
		"url", ics.RedactURL(req.Feed),
		"tzid", zone.Name(),
		"components", len(comps),
		"items", len(items),
		"returned", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
