// Command mockmeter serves recorded gateway readings over the same HTTP
// endpoint a real smart meter gateway exposes, one CSV row per interval.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"

	"smartmeter-poller/internal/gateway"
	"smartmeter-poller/internal/logger"
)

type config struct {
	ListenAddress  string        `yaml:"listen_address"`
	CSVFile        string        `yaml:"csv_file"`
	UpdateInterval time.Duration `yaml:"update_interval"`
	// Static fields merged into every row, e.g. mac_address.
	Static map[string]string `yaml:"static"`
}

type mockMeter struct {
	cfg    config
	rows   []map[string]any
	logger logger.Logger

	mu       sync.RWMutex
	rowIndex int
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config/mockmeter.yaml", "path to YAML config")
	flag.Parse()

	log := logger.FromEnv()

	if err := run(configPath, log); err != nil {
		log.Fatal().Err(err).Msg("Mock meter exited")
	}
}

func run(configPath string, log logger.Logger) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rows, err := loadCSV(cfg.CSVFile, cfg.Static)
	if err != nil {
		return fmt.Errorf("load csv: %w", err)
	}

	m := &mockMeter{cfg: cfg, rows: rows, logger: log}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go m.advance(ctx)

	srv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           m.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", cfg.ListenAddress).Int("rows", len(rows)).Msg("Mock meter listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("Shutting down mock meter")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func loadConfig(path string) (config, error) {
	cfg := config{
		ListenAddress:  ":" + strconv.Itoa(gateway.DefaultPort),
		UpdateInterval: 10 * time.Second,
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return config{}, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return config{}, fmt.Errorf("parse yaml: %w", err)
	}
	if cfg.CSVFile == "" {
		return config{}, errors.New("csv_file is required")
	}
	if cfg.UpdateInterval <= 0 {
		return config{}, fmt.Errorf("invalid update_interval %s", cfg.UpdateInterval)
	}

	return cfg, nil
}

// loadCSV reads one snapshot per row. Numeric cells become numbers, empty
// cells are left out and everything else stays text.
func loadCSV(path string, static map[string]string) ([]map[string]any, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, errors.New("csv must contain header and at least one data row")
	}

	header := records[0]
	rows := make([]map[string]any, 0, len(records)-1)
	for n, record := range records[1:] {
		if len(record) != len(header) {
			return nil, fmt.Errorf("csv row %d: record length mismatch", n+2)
		}
		row := make(map[string]any, len(header)+len(static))
		for k, v := range static {
			row[k] = v
		}
		for i, key := range header {
			cell := strings.TrimSpace(record[i])
			if cell == "" {
				continue
			}
			if f, err := strconv.ParseFloat(cell, 64); err == nil && !zeroPadded(cell) {
				row[strings.TrimSpace(key)] = f
			} else {
				row[strings.TrimSpace(key)] = cell
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// zeroPadded reports codes like the tariff "0001" that must stay text.
func zeroPadded(cell string) bool {
	return len(cell) > 1 && cell[0] == '0' && cell[1] != '.'
}

func (m *mockMeter) advance(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			m.rowIndex = (m.rowIndex + 1) % len(m.rows)
			m.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

func (m *mockMeter) current() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.rows[m.rowIndex]
}

func (m *mockMeter) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET(gateway.APIPath, func(c *gin.Context) {
		c.JSON(http.StatusOK, m.current())
	})

	return r
}
