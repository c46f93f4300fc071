package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	mb "github.com/goburrow/modbus"

	"smartmeter-poller/internal/catalog"
	"smartmeter-poller/internal/logger"
	"smartmeter-poller/internal/modbus"
	"smartmeter-poller/internal/model"
)

type point struct {
	Address uint16   `json:"address"`
	Key     string   `json:"key"`
	Unit    string   `json:"unit,omitempty"`
	Value   *float64 `json:"value"`
}

func main() {
	var (
		address string
		unit    uint
		poll    time.Duration
		once    bool
	)
	flag.StringVar(&address, "address", ":1502", "Modbus bridge address")
	flag.UintVar(&unit, "unit", 1, "unit id of the meter to read")
	flag.DurationVar(&poll, "interval", 5*time.Second, "time between reads")
	flag.BoolVar(&once, "once", false, "read a single time and exit")
	flag.Parse()

	log := logger.FromEnv()

	th := mb.NewTCPClientHandler(normalizeAddress(address))
	th.Timeout = 5 * time.Second
	th.SlaveId = uint8(unit)
	if err := th.Connect(); err != nil {
		log.Fatal().Err(err).Msg("Connect to bridge")
	}
	defer th.Close()
	client := mb.NewClient(th)

	points := modbus.RegisterMap(catalog.Default())
	quantity := uint16(len(points) * modbus.RegistersPerPoint)

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	enc := json.NewEncoder(os.Stdout)
	for {
		raw, err := client.ReadInputRegisters(0, quantity)
		if err != nil {
			log.Error().Err(err).Uint8("unit", th.SlaveId).Msg("Read input registers")
		} else if readings, err := modbus.DecodeRegisters(points, raw); err != nil {
			log.Error().Err(err).Msg("Decode registers")
		} else if err := enc.Encode(toPoints(readings)); err != nil {
			log.Error().Err(err).Msg("Encode output")
		}

		if once {
			return
		}
		<-ticker.C
	}
}

// toPoints drops NaN values, which JSON cannot carry.
func toPoints(readings []model.RegisterReading) []point {
	out := make([]point, 0, len(readings))
	for _, r := range readings {
		p := point{Address: r.Address, Key: r.Key, Unit: r.Unit}
		if r.Available {
			v := float64(r.Value)
			p.Value = &v
		}
		out = append(out, p)
	}
	return out
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		addr = ":1502"
	}
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	if _, _, err := net.SplitHostPort(addr); err != nil && !strings.Contains(addr, ":") {
		addr = fmt.Sprintf("127.0.0.1:%s", addr)
	}
	return addr
}
