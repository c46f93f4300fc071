package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"smartmeter-poller/internal/measurement"
)

// MeterSnapshot is everything exported for one meter.
type MeterSnapshot struct {
	MeterID     string                 `json:"meter_id"`
	Title       string                 `json:"title"`
	Device      measurement.DeviceInfo `json:"device"`
	LastSuccess bool                   `json:"last_success"`
	Timestamp   time.Time              `json:"timestamp"`
	Readings    []measurement.Reading  `json:"readings"`
}

// WriteJSON writes snapshots to a JSON file with pretty formatting.
func WriteJSON(path string, snaps []MeterSnapshot) error {
	b, err := json.MarshalIndent(snaps, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

// WriteCSV flattens snapshots to one row per reading.
// Columns: meter_id,stable_id,entity_id,key,name,unit,category,available,value,timestamp
func WriteCSV(path string, snaps []MeterSnapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	headers := []string{"meter_id", "stable_id", "entity_id", "key", "name", "unit", "category", "available", "value", "timestamp"}
	if err := w.Write(headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, s := range snaps {
		for _, r := range s.Readings {
			rec := []string{
				s.MeterID,
				r.StableID,
				r.EntityID,
				r.Descriptor.Key,
				r.Descriptor.Name,
				r.Descriptor.Unit,
				string(r.Descriptor.Category),
				strconv.FormatBool(r.Available),
				r.Value.String(),
				r.Timestamp.Format(time.RFC3339),
			}
			if err := w.Write(rec); err != nil {
				return fmt.Errorf("write row: %w", err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
