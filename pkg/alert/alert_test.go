package alert

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	alerts []Alert
	err    error
	closed bool
}

func (r *recorder) Send(a Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return r.err
}

func (r *recorder) Close() error {
	r.closed = true
	return nil
}

func TestHookForwardsWarnings(t *testing.T) {
	rec := &recorder{}
	hook := NewHook("Hydra", []Alerter{rec}, 0, nil)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	logger.AddHook(hook)

	logger.Info("not an alert")
	logger.WithFields(logrus.Fields{"state": "AckCheck", "code": "ack-low-expected-failed"}).Warn("sht1x: sensor protocol fault")
	logger.Error("mqtt publish failed")
	require.NoError(t, hook.Close())

	require.Len(t, rec.alerts, 2)
	assert.Equal(t, "Hydra", rec.alerts[0].Ship)
	assert.Equal(t, "warning", rec.alerts[0].Level)
	assert.Equal(t, "sht1x: sensor protocol fault code=ack-low-expected-failed state=AckCheck", rec.alerts[0].Message)
	assert.Equal(t, "error", rec.alerts[1].Level)
	assert.True(t, rec.closed)

	// entries after close are ignored
	logger.Error("late")
	assert.Len(t, rec.alerts, 2)
	assert.NoError(t, hook.Close())
}

func TestHookDeliveryFailure(t *testing.T) {
	rec := &recorder{err: errors.New("broker down")}
	var fallback bytes.Buffer
	hook := NewHook("Hydra", []Alerter{rec}, 1, &fallback)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	logger.AddHook(hook)
	logger.Warn("temperature above maximum")
	require.NoError(t, hook.Close())

	assert.Contains(t, fallback.String(), "broker down")
	assert.Contains(t, fallback.String(), "temperature above maximum")
}

func TestAlertString(t *testing.T) {
	a := Alert{Ship: "Hydra", Level: "error", Message: "boom"}
	assert.Contains(t, a.String(), "[Hydra]")
	assert.Contains(t, a.String(), "ERROR: boom")
}
