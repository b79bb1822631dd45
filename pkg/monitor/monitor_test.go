package monitor

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/ericogr/sht15-to-mqtt/pkg/control"
	"github.com/ericogr/sht15-to-mqtt/pkg/engine"
	"github.com/ericogr/sht15-to-mqtt/pkg/sensor"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSensor struct {
	reading sensor.Reading
	err     error
}

func (s *fakeSensor) Read(ctx context.Context) (sensor.Reading, error) {
	return s.reading, s.err
}

func (s *fakeSensor) Close() error { return nil }

type recorder struct {
	mu      sync.Mutex
	records []engine.Record
	err     error
}

func (r *recorder) Publish(rec engine.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return r.err
}

func (r *recorder) Close() error { return nil }

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func newBuilder() *engine.Builder {
	return engine.NewBuilder(engine.Options{ShipName: "Hydra", EngineName: "Main Engine Port", Multiplier: 20}, rand.New(rand.NewSource(1)))
}

func TestTicksFor(t *testing.T) {
	tests := []struct {
		ms   int
		want int
	}{
		{0, 1},
		{1000, 1},
		{5000, 1},
		{10000, 2},
		{12400, 2},
		{12600, 3},
	}
	for _, tt := range tests {
		if got := ticksFor(tt.ms, 5*time.Second); got != tt.want {
			t.Fatalf("ticksFor(%d): got %d want %d", tt.ms, got, tt.want)
		}
	}
}

func TestTickPublishesPerInterval(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	fast, slow := &recorder{}, &recorder{}
	s := &fakeSensor{reading: sensor.Reading{Celsius: 20}}
	m := New(s, newBuilder(), []Entry{
		{Name: "console", Output: fast, IntervalMs: 5000},
		{Name: "mqtt", Output: slow, IntervalMs: 15000},
	}, 5*time.Second, 500, logger)

	for i := 0; i < 6; i++ {
		m.tick(context.Background())
	}
	assert.Equal(t, 6, fast.count())
	assert.Equal(t, 2, slow.count())
	assert.Equal(t, 400.0, fast.records[0].Temperature)
	assert.False(t, fast.records[0].Warning)
}

func TestTickWarnings(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	out := &recorder{}
	s := &fakeSensor{reading: sensor.Reading{Celsius: 28.15, Stale: true, Faults: []string{"wait-for-result-timeout"}}}
	m := New(s, newBuilder(), []Entry{{Name: "console", Output: out}}, time.Second, 500, logger)

	m.tick(context.Background())
	require.Equal(t, 1, out.count())
	assert.True(t, out.records[0].Warning)
	assert.True(t, out.records[0].Stale)

	var messages []string
	for _, e := range hook.AllEntries() {
		assert.Equal(t, logrus.WarnLevel, e.Level)
		messages = append(messages, e.Message)
	}
	assert.Contains(t, messages, "sensor reading is stale")
	assert.Contains(t, messages, "engine temperature above maximum")
}

func TestTickSensorError(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	out := &recorder{}
	m := New(&fakeSensor{err: errors.New("busy")}, newBuilder(), []Entry{{Name: "console", Output: out}}, time.Second, 500, logger)

	m.tick(context.Background())
	assert.Zero(t, out.count())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestTickPublishError(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	bad, good := &recorder{err: errors.New("offline")}, &recorder{}
	m := New(&fakeSensor{}, newBuilder(), []Entry{
		{Name: "mqtt", Output: bad},
		{Name: "console", Output: good},
	}, time.Second, 500, logger)

	m.tick(context.Background())
	assert.Equal(t, 1, good.count())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "mqtt", hook.LastEntry().Data["output"])
}

func TestRunAppliesUpdates(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	out := &recorder{}
	m := New(&fakeSensor{reading: sensor.Reading{Celsius: 20}}, newBuilder(), []Entry{{Name: "console", Output: out}}, 10*time.Millisecond, 500, logger)

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan control.Update, 1)
	done := make(chan error)
	go func() { done <- m.Run(ctx, updates) }()

	updates <- control.Update{MaximumTemperature: 350}
	assert.Eventually(t, func() bool {
		for _, e := range hook.AllEntries() {
			if e.Message == "maximum temperature has been set" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return out.count() >= 2 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 350.0, m.maximum)
}

// flakySensor fails the reads whose index is listed in fail.
type flakySensor struct {
	n    int
	fail map[int]bool
}

func (s *flakySensor) Read(ctx context.Context) (sensor.Reading, error) {
	defer func() { s.n++ }()
	if s.fail[s.n] {
		return sensor.Reading{}, errors.New("busy")
	}
	return sensor.Reading{Celsius: 20}, nil
}

func (s *flakySensor) Close() error { return nil }

func TestTickScheduleSurvivesReadErrors(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	slow := &recorder{}
	m := New(&flakySensor{fail: map[int]bool{1: true}}, newBuilder(), []Entry{
		{Name: "mqtt", Output: slow, IntervalMs: 15000},
	}, 5*time.Second, 500, logger)

	var published []int
	for i := 0; i < 8; i++ {
		before := slow.count()
		m.tick(context.Background())
		if slow.count() > before {
			published = append(published, i)
		}
	}
	assert.Equal(t, []int{0, 3, 6}, published)
}
