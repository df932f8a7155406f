// Package probe periodically runs the configured presets through the
// pipeline and logs the outcome. Results are never cached or served.
package probe

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"perpetcal/internal/config"
	"perpetcal/internal/ics"
	appLog "perpetcal/internal/log"
	"perpetcal/internal/model"
)

// Runner executes one conversion request.
type Runner interface {
	Run(ctx context.Context, req model.Request) ([]model.Projected, error)
}

// Result is the outcome of running one preset.
type Result struct {
	Name    string
	Items   []model.Projected
	Err     error
	Elapsed time.Duration
}

type Prober struct {
	runner  Runner
	presets []config.Preset
	timeout time.Duration

	mu   sync.Mutex
	cron *cron.Cron
}

// New creates a Prober. timeout bounds each preset run; zero means no
// bound beyond the fetcher's own timeout.
func New(runner Runner, presets []config.Preset, timeout time.Duration) *Prober {
	return &Prober{
		runner:  runner,
		presets: presets,
		timeout: timeout,
	}
}

// RunAll runs every preset sequentially and returns one Result per preset
// in configuration order.
func (p *Prober) RunAll(ctx context.Context) []Result {
	results := make([]Result, 0, len(p.presets))
	for _, preset := range p.presets {
		results = append(results, p.runOne(ctx, preset))
	}
	return results
}

func (p *Prober) runOne(ctx context.Context, preset config.Preset) Result {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	items, err := p.runner.Run(ctx, preset.Request)
	res := Result{Name: preset.Name, Items: items, Err: err, Elapsed: time.Since(start)}

	if err != nil {
		appLog.Error("preset probe failed", err,
			"preset", preset.Name,
			"url", ics.RedactURL(preset.Feed),
			"elapsed_ms", res.Elapsed.Milliseconds(),
		)
		return res
	}
	appLog.Info("preset probe ok",
		"preset", preset.Name,
		"items", len(items),
		"elapsed_ms", res.Elapsed.Milliseconds(),
	)
	return res
}

// Start schedules RunAll on a standard five-field cron schedule. Overlapping
// runs are skipped. Start is a no-op when there are no presets.
func (p *Prober) Start(schedule string) error {
	if schedule == "" {
		return errors.New("probe schedule is empty")
	}
	if len(p.presets) == 0 {
		appLog.Info("preset probes disabled: no presets configured")
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron != nil {
		return errors.New("prober already started")
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(schedule, func() { p.RunAll(context.Background()) }); err != nil {
		return err
	}
	c.Start()
	p.cron = c

	appLog.Info("preset probes scheduled", "schedule", schedule, "presets", len(p.presets))
	return nil
}

// Stop halts the schedule and waits for a running probe to finish or ctx
// to expire.
func (p *Prober) Stop(ctx context.Context) {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		appLog.Warn("preset probe still running at shutdown")
	}
}

// cronLogger routes cron's internal logging through the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...interface{}) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...interface{}) {
	appLog.Error("cron: "+msg, err, kv...)
}
