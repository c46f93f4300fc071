// Package publish pushes changed measurements to NATS.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"smartmeter-poller/internal/logger"
	"smartmeter-poller/internal/measurement"
	"smartmeter-poller/internal/utils"
)

// resendAfter bounds how long an unchanged value stays silent.
const resendAfter = 15 * time.Minute

// Publisher is the part of *nats.Conn the sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Message is the JSON body published per measurement.
type Message struct {
	MeterID    string         `json:"meter_id"`
	StableID   string         `json:"stable_id"`
	EntityID   string         `json:"entity_id"`
	Key        string         `json:"key"`
	Name       string         `json:"name"`
	Unit       string         `json:"unit,omitempty"`
	Available  bool           `json:"available"`
	Value      any            `json:"value"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

type unavailable struct{}

// Sink publishes one message per changed reading to <prefix>.<mac>.<token>.
type Sink struct {
	pub    Publisher
	prefix string
	cache  *utils.ValueCache
	logger logger.Logger
}

func NewSink(pub Publisher, prefix string, log logger.Logger) *Sink {
	if log == nil {
		log = logger.NewTestLogger()
	}
	return &Sink{
		pub:    pub,
		prefix: strings.TrimSuffix(prefix, "."),
		cache:  utils.NewValueCache(resendAfter),
		logger: log,
	}
}

// Subject builds the subject of a stable id. Stable ids are the normalized
// mac, which never contains '_', followed by '_' and the field token.
func Subject(prefix, stableID string) string {
	mac, token, ok := strings.Cut(stableID, "_")
	if !ok {
		return prefix + "." + stableID
	}
	return prefix + "." + mac + "." + token
}

func (s *Sink) HandleReadings(ctx context.Context, meterID string, readings []measurement.Reading) error {
	var errs []error
	sent := 0

	for _, r := range readings {
		if err := ctx.Err(); err != nil {
			return err
		}

		var cached any = unavailable{}
		if r.Available {
			cached = r.Value.Value
		}
		if !s.cache.Changed(r.StableID, cached) {
			continue
		}

		msg := Message{
			MeterID:    meterID,
			StableID:   r.StableID,
			EntityID:   r.EntityID,
			Key:        r.Descriptor.Key,
			Name:       r.Descriptor.Name,
			Unit:       r.Descriptor.Unit,
			Available:  r.Available,
			Attributes: r.Attributes,
			Timestamp:  r.Timestamp,
		}
		if r.Available {
			msg.Value = r.Value.Value
		}

		b, err := json.Marshal(msg)
		if err != nil {
			s.cache.Forget(r.StableID)
			errs = append(errs, fmt.Errorf("marshal %s: %w", r.StableID, err))
			continue
		}
		if err := s.pub.Publish(Subject(s.prefix, r.StableID), b); err != nil {
			s.cache.Forget(r.StableID)
			errs = append(errs, fmt.Errorf("publish %s: %w", r.StableID, err))
			continue
		}
		sent++
	}

	s.logger.Debug().Str("meter_id", meterID).Int("published", sent).Msg("Published measurements")

	return errors.Join(errs...)
}

// Connect dials NATS with connection handlers that log through log.
func Connect(url string, log logger.Logger, extraOpts ...nats.Option) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("smartmeter-poller"),
		nats.MaxReconnects(-1),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.ConnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("Connected to NATS")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}
	opts = append(opts, extraOpts...)

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return nc, nil
}
