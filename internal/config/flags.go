package config

import (
	"errors"
	"fmt"

	"github.com/jessevdk/go-flags"
)

const DefaultConfigPath = "/etc/perpetcal/config.yaml"

// Flags are the command-line options. Each one can also come from the
// environment; an explicit flag wins over the environment.
type Flags struct {
	ConfigPath string `long:"config" env:"PERPETCAL_CONFIG" default:"/etc/perpetcal/config.yaml" description:"Path to the YAML config file"`
	Listen     string `long:"listen" env:"PERPETCAL_LISTEN" description:"HTTP listen address (overrides config)"`
	LogLevel   string `long:"log-level" env:"PERPETCAL_LOG_LEVEL" description:"Log level: debug, info, warn, error (overrides config)"`
	Once       bool   `long:"once" description:"Run every preset once, print the JSON result and exit"`
}

// ParseFlags parses args (without the program name). It returns nil, nil
// when help was requested and already printed.
func ParseFlags(args []string) (*Flags, error) {
	var f Flags

	parser := flags.NewParser(&f, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}
	return &f, nil
}

// Apply overrides file values with values given on the command line or in
// the environment.
func (f *Flags) Apply(c *Config) {
	if f.Listen != "" {
		c.Listen = f.Listen
	}
	if f.LogLevel != "" {
		c.LogLevel = f.LogLevel
	}
}
