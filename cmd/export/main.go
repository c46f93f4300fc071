package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartmeter-poller/internal/catalog"
	"smartmeter-poller/internal/collector"
	"smartmeter-poller/internal/logger"
	"smartmeter-poller/internal/output"
)

func main() {
	var (
		cfgPath string
		outJSON string
		outCSV  string
		timeout time.Duration
	)
	flag.StringVar(&cfgPath, "config", "config/config.yaml", "path to YAML config")
	flag.StringVar(&outJSON, "json", "", "path to write JSON snapshot (optional)")
	flag.StringVar(&outCSV, "csv", "", "path to write CSV snapshot (optional)")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "overall time allowed for fetching every meter")
	flag.Parse()

	log := logger.FromEnv()

	if outJSON == "" && outCSV == "" {
		log.Fatal().Msg("No output specified: set -json and/or -csv")
	}

	cfg, err := collector.LoadYAML(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Load yaml config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	snaps := snapshot(ctx, cfg, log)
	if len(snaps) == 0 {
		log.Error().Msg("No meter answered, nothing written")
		os.Exit(1)
	}

	if outJSON != "" {
		if err := output.WriteJSON(outJSON, snaps); err != nil {
			log.Error().Err(err).Msg("Write json")
		}
	}
	if outCSV != "" {
		if err := output.WriteCSV(outCSV, snaps); err != nil {
			log.Error().Err(err).Msg("Write csv")
		}
	}
}

// snapshot fetches every enabled meter once. Meters that fail setup are
// logged and left out.
func snapshot(ctx context.Context, cfg collector.RootConfig, log logger.Logger) []output.MeterSnapshot {
	cat := catalog.Default()
	mgr := collector.NewManager(cfg, collector.ManagerOptions{Catalog: cat, Logger: log})

	snaps := make([]output.MeterSnapshot, 0, len(mgr.Meters()))
	for _, m := range mgr.Meters() {
		if err := m.Setup(ctx); err != nil {
			log.Warn().Err(err).Str("meter_id", m.ID()).Msg("Meter skipped")
			continue
		}

		st := m.Status()
		snaps = append(snaps, output.MeterSnapshot{
			MeterID:     st.MeterID,
			Title:       st.Title,
			Device:      st.Device,
			LastSuccess: st.LastSuccess,
			Timestamp:   st.LastUpdate,
			Readings:    m.Readings(),
		})

		if err := m.Teardown(ctx); err != nil {
			log.Warn().Err(err).Str("meter_id", m.ID()).Msg("Meter teardown")
		}
	}

	return snaps
}
