package collector

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"smartmeter-poller/internal/gateway"
	"smartmeter-poller/internal/logger"
)

const (
	DefaultPollInterval = 30 * time.Second
	DefaultSetupRetry   = 30 * time.Second
	DefaultMaxWorkers   = 4
	DefaultDBPath       = "data/smartmeter.sqlite"
	DefaultBridgeListen = ":1502"
	DefaultAPIListen    = ":8080"
	DefaultNATSURL      = "nats://127.0.0.1:4222"
	DefaultNATSPrefix   = "smartmeter"
	envMeterID          = "env"
)

var (
	ErrNoMeters    = errors.New("no meters configured")
	ErrMissingHost = errors.New("meter host is required")
	ErrDuplicateID = errors.New("duplicate meter_id")
)

// RootConfig mirrors config/config.yaml.
type RootConfig struct {
	System SystemConfig  `yaml:"system"`
	Meters []MeterConfig `yaml:"meters"`
}

type SystemConfig struct {
	Logging    logger.Config `yaml:"logging"`
	SetupRetry time.Duration `yaml:"setup_retry"`
	MaxWorkers int           `yaml:"max_workers"`
	Storage    struct {
		Enabled bool   `yaml:"enabled"`
		DBPath  string `yaml:"db_path"`
	} `yaml:"storage"`
	Bridge struct {
		Enabled       bool   `yaml:"enabled"`
		ListenAddress string `yaml:"listen_address"`
	} `yaml:"bridge"`
	API struct {
		Enabled       bool   `yaml:"enabled"`
		ListenAddress string `yaml:"listen_address"`
	} `yaml:"api"`
	NATS struct {
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`
}

// MeterConfig is one gateway to poll.
type MeterConfig struct {
	MeterID      string        `yaml:"meter_id"`
	// Name replaces the "Smart Meter (<mac>)" title when set.
	Name         string        `yaml:"name"`
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
	Enabled      *bool         `yaml:"enabled"`
}

// IsEnabled reports whether the meter should be polled; unset means yes.
func (m MeterConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// LoadYAML reads path, applies environment overrides and defaults, and validates.
func LoadYAML(path string) (RootConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return RootConfig{}, err
	}

	return ParseYAML(b)
}

// ParseYAML is LoadYAML without the file read.
func ParseYAML(b []byte) (RootConfig, error) {
	var cfg RootConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return RootConfig{}, fmt.Errorf("parse yaml: %w", err)
	}
	if err := ApplyEnv(&cfg); err != nil {
		return RootConfig{}, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return RootConfig{}, err
	}

	return cfg, nil
}

// ApplyEnv merges the LOG_* variables into the logging config and lets
// SMARTMETER_HOST / SMARTMETER_PORT point the first meter at a gateway,
// creating it when the file has none.
func ApplyEnv(cfg *RootConfig) error {
	logger.ApplyEnv(&cfg.System.Logging)

	host := strings.TrimSpace(os.Getenv("SMARTMETER_HOST"))
	portStr := strings.TrimSpace(os.Getenv("SMARTMETER_PORT"))
	if host == "" && portStr == "" {
		return nil
	}

	if len(cfg.Meters) == 0 {
		cfg.Meters = append(cfg.Meters, MeterConfig{MeterID: envMeterID})
	}
	m := &cfg.Meters[0]
	if host != "" {
		m.Host = host
	}
	if portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid SMARTMETER_PORT: %w", err)
		}
		m.Port = port
	}

	return nil
}

func (cfg *RootConfig) applyDefaults() {
	if cfg.System.SetupRetry <= 0 {
		cfg.System.SetupRetry = DefaultSetupRetry
	}
	if cfg.System.MaxWorkers <= 0 {
		cfg.System.MaxWorkers = DefaultMaxWorkers
	}
	if cfg.System.Storage.DBPath == "" {
		cfg.System.Storage.DBPath = DefaultDBPath
	}
	if cfg.System.Bridge.ListenAddress == "" {
		cfg.System.Bridge.ListenAddress = DefaultBridgeListen
	}
	if cfg.System.API.ListenAddress == "" {
		cfg.System.API.ListenAddress = DefaultAPIListen
	}
	if cfg.System.NATS.URL == "" {
		cfg.System.NATS.URL = DefaultNATSURL
	}
	if cfg.System.NATS.SubjectPrefix == "" {
		cfg.System.NATS.SubjectPrefix = DefaultNATSPrefix
	}

	for i := range cfg.Meters {
		m := &cfg.Meters[i]
		m.Host = strings.TrimSpace(m.Host)
		if m.MeterID == "" {
			m.MeterID = m.Host
		}
		if m.Port <= 0 {
			m.Port = gateway.DefaultPort
		}
		if m.PollInterval <= 0 {
			m.PollInterval = DefaultPollInterval
		}
		if m.Timeout <= 0 {
			m.Timeout = gateway.DefaultTimeout
		}
	}
}

// Validate checks the invariants the manager relies on.
func (cfg RootConfig) Validate() error {
	if len(cfg.EnabledMeters()) == 0 {
		return ErrNoMeters
	}

	seen := make(map[string]struct{}, len(cfg.Meters))
	for i, m := range cfg.Meters {
		if !m.IsEnabled() {
			continue
		}
		if m.Host == "" {
			return fmt.Errorf("meters[%d]: %w", i, ErrMissingHost)
		}
		if _, ok := seen[m.MeterID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateID, m.MeterID)
		}
		seen[m.MeterID] = struct{}{}
	}

	return nil
}

// EnabledMeters returns the meters to poll, in file order.
func (cfg RootConfig) EnabledMeters() []MeterConfig {
	out := make([]MeterConfig, 0, len(cfg.Meters))
	for _, m := range cfg.Meters {
		if m.IsEnabled() {
			out = append(out, m)
		}
	}

	return out
}
