package main

import (
	"context"
	"encoding/json"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	// tzid resolution must not depend on the host's zoneinfo.
	_ "time/tzdata"

	"perpetcal/internal/config"
	"perpetcal/internal/ics"
	appLog "perpetcal/internal/log"
	"perpetcal/internal/pipeline"
	"perpetcal/internal/probe"
	"perpetcal/internal/rank"
	"perpetcal/internal/web"
)

const (
	version         = "0.1.0"
	shutdownTimeout = 30 * time.Second
)

func main() {
	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		appLog.Error("failed to parse flags", err)
		os.Exit(2)
	}
	if flags == nil {
		// Help was shown.
		return
	}

	conf, err := config.Load(flags.ConfigPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.ConfigPath)
		os.Exit(1)
	}
	flags.Apply(conf)

	level, err := appLog.ParseLevel(conf.LogLevel)
	if err != nil {
		appLog.Error("invalid log level", err)
		os.Exit(1)
	}
	appLog.SetLevel(level)

	limitMode, err := rank.ParseLimitMode(conf.Ranking.LimitMode)
	if err != nil {
		appLog.Error("invalid limit mode", err)
		os.Exit(1)
	}

	appLog.Info("perpetcal starting",
		"version", version,
		"listen", conf.Listen,
		"log_level", level,
		"limit_mode", limitMode,
		"preset_count", len(conf.Presets),
		"probe_schedule", conf.Probe.Schedule,
		"once", flags.Once,
	)

	fetcher := ics.NewFetcher(ics.FetchOptions{
		Timeout:      time.Duration(conf.Fetch.TimeoutSeconds) * time.Second,
		Retries:      conf.Fetch.Retries,
		UserAgent:    conf.Fetch.UserAgent,
		MaxBodyBytes: conf.Fetch.MaxBodyBytes,
	})
	svc := pipeline.NewService(fetcher, pipeline.Options{
		Placeholder:   conf.Defaults.Placeholder,
		DefaultFormat: conf.Defaults.DTFmt,
		LimitMode:     limitMode,
	})
	prober := probe.New(svc, conf.Presets, requestBudget(conf))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flags.Once {
		code := runOnce(ctx, prober)
		stop()
		os.Exit(code)
	}

	if err := serve(ctx, conf, svc, prober); err != nil {
		appLog.Error("server error", err)
		os.Exit(1)
	}
	appLog.Info("perpetcal exiting")
}

// runOnce runs every preset and prints {name: items} as JSON to stdout.
// The exit code is 1 if any preset failed.
func runOnce(ctx context.Context, prober *probe.Prober) int {
	results := prober.RunAll(ctx)

	out := make(map[string]any, len(results))
	code := 0
	for _, r := range results {
		if r.Err != nil {
			out[r.Name] = map[string]string{"error": r.Err.Error()}
			code = 1
			continue
		}
		out[r.Name] = r.Items
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		appLog.Error("failed to write result", err)
		return 1
	}
	return code
}

func serve(ctx context.Context, conf *config.Config, svc *pipeline.Service, prober *probe.Prober) error {
	gin.SetMode(gin.ReleaseMode)
	server := web.NewServer(conf, svc)

	errWriter := appLog.Writer()
	defer errWriter.Close()

	httpServer := &http.Server{
		Addr:              conf.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      requestBudget(conf) + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          stdlog.New(errWriter, "http: ", 0),
	}

	if conf.Probe.Schedule != "" {
		if err := prober.Start(conf.Probe.Schedule); err != nil {
			return err
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case err, ok := <-serverErr:
		if ok {
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP server shutdown error", err)
	} else {
		appLog.Info("HTTP server stopped")
	}
	prober.Stop(shutdownCtx)

	return runErr
}

// requestBudget is the longest a single conversion may take: every fetch
// attempt running into its timeout, plus backoff between attempts.
func requestBudget(conf *config.Config) time.Duration {
	attempts := time.Duration(conf.Fetch.Retries + 1)
	return attempts*time.Duration(conf.Fetch.TimeoutSeconds)*time.Second + attempts*2*time.Second
}
