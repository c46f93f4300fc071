// Command probe checks that a smart meter gateway answers before it is
// added to the configuration, and optionally records it in the registry.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"time"

	"smartmeter-poller/internal/collector"
	"smartmeter-poller/internal/db"
	"smartmeter-poller/internal/gateway"
	"smartmeter-poller/internal/logger"
	"smartmeter-poller/internal/measurement"
)

const codeAlreadyConfigured = "already_configured"

type result struct {
	OK       bool              `json:"ok"`
	Error    string            `json:"error,omitempty"`
	Title    string            `json:"title,omitempty"`
	Identity *gateway.Identity `json:"identity,omitempty"`
}

func main() {
	var (
		host    string
		port    int
		timeout time.Duration
		meterID string
		dbPath  string
	)
	flag.StringVar(&host, "host", "", "gateway host (required)")
	flag.IntVar(&port, "port", gateway.DefaultPort, "gateway port")
	flag.DurationVar(&timeout, "timeout", gateway.DefaultTimeout, "request timeout")
	flag.StringVar(&meterID, "meter", "", "meter_id to record the device under (defaults to host)")
	flag.StringVar(&dbPath, "db", "", "record the device in this SQLite registry on success")
	flag.Parse()

	log := logger.FromEnv()

	if host == "" {
		log.Fatal().Msg("-host is required")
	}

	id, err := gateway.Probe(context.Background(), host, port, timeout)
	if err != nil {
		log.Warn().Err(err).Str("url", gateway.URL(host, port)).Msg("Probe failed")
		emit(result{Error: gateway.ErrorCode(err)})
		os.Exit(1)
	}

	if dbPath != "" {
		if meterID == "" {
			meterID = host
		}
		err := record(dbPath, meterID, host, port, id)
		if errors.Is(err, db.ErrDeviceExists) {
			log.Warn().Str("mac", id.MACAddress).Msg("Device already configured")
			emit(result{Error: codeAlreadyConfigured, Identity: &id})
			os.Exit(1)
		}
		if err != nil {
			log.Fatal().Err(err).Msg("Record device")
		}
		log.Info().Str("mac", id.MACAddress).Str("meter_id", meterID).Msg("Device recorded")
	}

	emit(result{OK: true, Title: id.Title(), Identity: &id})
}

func record(path, meterID, host string, port int, id gateway.Identity) error {
	store, err := db.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	snap := gateway.Snapshot{
		gateway.KeyMACAddress:      id.MACAddress,
		gateway.KeyGatewayModel:    id.GatewayModel,
		gateway.KeyFirmwareRunning: id.FirmwareRunning,
	}

	return store.AddDevice(context.Background(), collector.Registration{
		MeterID: meterID,
		Title:   id.Title(),
		Host:    host,
		Port:    port,
		Device:  measurement.Device(snap, host, port),
	})
}

func emit(r result) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(r)
}
