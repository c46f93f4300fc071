package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartmeter-poller/internal/catalog"
	"smartmeter-poller/internal/gateway"
	"smartmeter-poller/internal/measurement"
)

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{subject: subject, data: data})
	return nil
}

func readings(t *testing.T, snap gateway.Snapshot, lastSuccess bool) []measurement.Reading {
	t.Helper()

	cat := catalog.Default()
	base := gateway.Snapshot{"mac_address": "AA:BB:CC:DD:EE:FF", "power_delivered_l1": 1, "electricity_tariff": "0001"}
	entities := measurement.Entities(cat, base)
	require.Len(t, entities, 2)

	return measurement.Readings(cat, "home", entities, snap, lastSuccess, time.Unix(1700000000, 0).UTC())
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "smartmeter.aabbccddeeff.power_delivered_l1", Subject("smartmeter", "aabbccddeeff_power_delivered_l1"))
	assert.Equal(t, "smartmeter.unknown.energy_delivered_tariff_1", Subject("smartmeter", "unknown_energy_delivered_tariff_1"))
	assert.Equal(t, "p.odd", Subject("p", "odd"))
}

func TestSinkPublishesOnlyChanges(t *testing.T) {
	pub := &fakePublisher{}
	s := NewSink(pub, "smartmeter.", nil)
	ctx := context.Background()

	snap := gateway.Snapshot{"mac_address": "AA:BB:CC:DD:EE:FF", "power_delivered_l1": 512, "electricity_tariff": "0001"}
	require.NoError(t, s.HandleReadings(ctx, "home", readings(t, snap, true)))
	require.Len(t, pub.msgs, 2)
	assert.Equal(t, "smartmeter.aabbccddeeff.power_delivered_l1", pub.msgs[0].subject)

	var msg Message
	require.NoError(t, json.Unmarshal(pub.msgs[0].data, &msg))
	assert.Equal(t, "home", msg.MeterID)
	assert.Equal(t, "W", msg.Unit)
	assert.Equal(t, 512.0, msg.Value)
	assert.True(t, msg.Available)

	require.NoError(t, s.HandleReadings(ctx, "home", readings(t, snap, true)))
	assert.Len(t, pub.msgs, 2)

	snap["power_delivered_l1"] = 640
	require.NoError(t, s.HandleReadings(ctx, "home", readings(t, snap, true)))
	require.Len(t, pub.msgs, 3)
	assert.Equal(t, "smartmeter.aabbccddeeff.power_delivered_l1", pub.msgs[2].subject)
}

func TestSinkPublishesUnavailability(t *testing.T) {
	pub := &fakePublisher{}
	s := NewSink(pub, "smartmeter", nil)
	ctx := context.Background()

	snap := gateway.Snapshot{"mac_address": "AA:BB:CC:DD:EE:FF", "power_delivered_l1": 512, "electricity_tariff": "0001"}
	require.NoError(t, s.HandleReadings(ctx, "home", readings(t, snap, true)))
	require.NoError(t, s.HandleReadings(ctx, "home", readings(t, snap, false)))
	require.Len(t, pub.msgs, 4)

	var msg Message
	require.NoError(t, json.Unmarshal(pub.msgs[2].data, &msg))
	assert.False(t, msg.Available)
	assert.Nil(t, msg.Value)
}

func TestSinkRetriesAfterPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats: connection closed")}
	s := NewSink(pub, "smartmeter", nil)
	ctx := context.Background()

	snap := gateway.Snapshot{"mac_address": "AA:BB:CC:DD:EE:FF", "power_delivered_l1": 512, "electricity_tariff": "0001"}
	err := s.HandleReadings(ctx, "home", readings(t, snap, true))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection closed")

	pub.err = nil
	require.NoError(t, s.HandleReadings(ctx, "home", readings(t, snap, true)))
	assert.Len(t, pub.msgs, 2)
}
