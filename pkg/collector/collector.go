// Package collector is the embeddable entry point of the smart meter poller.
package collector

import (
	"context"

	internal "smartmeter-poller/internal/collector"
	"smartmeter-poller/internal/logger"
	"smartmeter-poller/internal/tasks"
)

// Options re-exposes the tasks.Options type for external callers.
type Options = tasks.Options

// Config is the parsed YAML configuration.
type Config = internal.RootConfig

// Run starts the collector with the given options using the internal tasks implementation.
func Run(ctx context.Context, opts Options) error {
	return tasks.InitAndRunCollector(ctx, opts)
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	return internal.LoadYAML(path)
}

// RunConfig runs an already loaded configuration, logging through zerolog
// with the configured level.
func RunConfig(ctx context.Context, cfg Config) error {
	log, err := logger.New(cfg.System.Logging)
	if err != nil {
		return err
	}

	return tasks.Run(ctx, cfg, log)
}
