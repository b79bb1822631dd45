// Package alert forwards errors and warnings to remote channels.
package alert

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultQueueSize = 64

// Alert is one error or warning raised by the process.
type Alert struct {
	Ship    string    `json:"ship"`
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

func (a Alert) String() string {
	return fmt.Sprintf("[%s] %s %s: %s", a.Ship, a.Time.Format(time.RFC3339), strings.ToUpper(a.Level), a.Message)
}

type Alerter interface {
	Send(Alert) error
	Close() error
}

// Hook is a logrus hook sending warn and error entries to alerters. Entries
// are queued and sent from a single goroutine so logging never waits on the
// network; when the queue is full the entry is dropped.
type Hook struct {
	ship     string
	alerters []Alerter
	fallback io.Writer

	mu      sync.Mutex
	closed  bool
	queue   chan Alert
	done    chan struct{}
	dropped int
}

// NewHook starts the delivery goroutine. Delivery failures are written to
// fallback since they cannot go through the hooked logger.
func NewHook(ship string, alerters []Alerter, queueSize int, fallback io.Writer) *Hook {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	h := &Hook{
		ship:     ship,
		alerters: alerters,
		fallback: fallback,
		queue:    make(chan Alert, queueSize),
		done:     make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel}
}

func (h *Hook) Fire(e *logrus.Entry) error {
	a := Alert{Ship: h.ship, Time: e.Time.UTC(), Level: e.Level.String(), Message: message(e)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	select {
	case h.queue <- a:
	default:
		h.dropped++
	}
	return nil
}

// Dropped returns the number of entries lost to a full queue.
func (h *Hook) Dropped() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Close delivers the queued alerts, then closes the alerters.
func (h *Hook) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	close(h.queue)
	h.mu.Unlock()
	<-h.done

	var first error
	for _, a := range h.alerters {
		if err := a.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (h *Hook) run() {
	defer close(h.done)
	for a := range h.queue {
		for _, al := range h.alerters {
			if err := al.Send(a); err != nil && h.fallback != nil {
				fmt.Fprintf(h.fallback, "alert delivery failed: %v: %s\n", err, a)
			}
		}
	}
}

// message renders the entry message followed by its fields in key order.
func message(e *logrus.Entry) string {
	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(e.Message)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	return b.String()
}
