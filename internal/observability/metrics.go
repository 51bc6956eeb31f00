package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/spec-kit/notification-service/internal/domain"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	dispatch     DispatchCounters
}

// DispatchCounters accumulates email fan-out outcomes.
type DispatchCounters struct {
	Dispatches        int64 `json:"dispatches"`
	EmailsSent        int64 `json:"emails_sent"`
	EmailsFailed      int64 `json:"emails_failed"`
	TransportFailures int64 `json:"transport_failures"`
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Requests map[string]int64 `json:"requests"`
	Errors   map[string]int64 `json:"errors"`
	Dispatch DispatchCounters `json:"dispatch"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, _ time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordDispatch folds one dispatch summary into the counters.
func (m *Metrics) RecordDispatch(summary domain.DispatchSummary) {
	if m == nil || summary.TotalAttempted == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatch.Dispatches++
	m.dispatch.EmailsSent += int64(summary.Successful)
	m.dispatch.EmailsFailed += int64(summary.Failed)
	if summary.TransportError != "" {
		m.dispatch.TransportFailures++
	}
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := Snapshot{
		Requests: make(map[string]int64, len(m.requestCount)),
		Errors:   make(map[string]int64, len(m.errorCount)),
		Dispatch: m.dispatch,
	}
	for k, v := range m.requestCount {
		snap.Requests[k] = v
	}
	for k, v := range m.errorCount {
		snap.Errors[k] = v
	}
	return snap
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
