package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"smartmeter-poller/internal/logger"
	"smartmeter-poller/internal/tasks"
)

func main() {
	var (
		opts    tasks.Options
		envFile string
	)
	flag.StringVar(&opts.ConfigPath, "config", "config/config.yaml", "path to YAML config")
	flag.StringVar(&envFile, "env", ".env", "optional dotenv file with SMARTMETER_HOST/SMARTMETER_PORT and LOG_* overrides")
	flag.BoolVar(&opts.StorageEnabled, "storage", false, "persist devices, entities and latest values to SQLite")
	flag.StringVar(&opts.DBPath, "db", "", "SQLite path (implies -storage)")
	flag.StringVar(&opts.APIListen, "api", "", "HTTP API listen address, e.g. :8080")
	flag.StringVar(&opts.BridgeListen, "bridge", "", "Modbus TCP bridge listen address, e.g. :1502")
	flag.StringVar(&opts.NATSURL, "nats", "", "NATS server URL to publish changed values to")
	flag.Parse()

	envErr := godotenv.Load(envFile)

	log := logger.FromEnv()
	if envErr != nil && !os.IsNotExist(envErr) {
		log.Warn().Err(envErr).Str("file", envFile).Msg("Failed to load env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := tasks.InitAndRunCollector(ctx, opts); err != nil {
		log.Fatal().Err(err).Msg("Collector exited")
	}
}
