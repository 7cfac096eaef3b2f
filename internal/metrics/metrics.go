// Package metrics provides application-level metrics collection.
// This is a lightweight metrics foundation using atomic counters.
// For production observability, consider integrating with Prometheus or similar.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics holds subprovider metrics using atomic counters for thread safety.
type Metrics struct {
	// Device session metrics
	deviceOpensTotal  atomic.Int64
	deviceErrorsTotal atomic.Int64
	deviceLatencyNano atomic.Int64

	// Signing operation metrics
	signingOpsTotal  atomic.Int64
	signingOpsErrors atomic.Int64

	// Address lookup metrics
	lookupHits   atomic.Int64
	lookupMisses atomic.Int64
}

// Global is the global metrics instance.
// Use this for recording metrics throughout the application.
//
//nolint:gochecknoglobals // Intentional global for metrics access
var Global = &Metrics{}

// RecordDeviceSession records one device session with its duration and
// success status.
func (m *Metrics) RecordDeviceSession(duration time.Duration, err error) {
	m.deviceOpensTotal.Add(1)
	m.deviceLatencyNano.Add(duration.Nanoseconds())

	if err != nil {
		m.deviceErrorsTotal.Add(1)
	}
}

// RecordSigningOp records a signing operation.
func (m *Metrics) RecordSigningOp(err error) {
	m.signingOpsTotal.Add(1)
	if err != nil {
		m.signingOpsErrors.Add(1)
	}
}

// RecordLookupHit records a successful address-to-path resolution.
func (m *Metrics) RecordLookupHit() {
	m.lookupHits.Add(1)
}

// RecordLookupMiss records an address that was not found within the
// search bound.
func (m *Metrics) RecordLookupMiss() {
	m.lookupMisses.Add(1)
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	DeviceOpensTotal  int64
	DeviceErrorsTotal int64
	DeviceLatencyNano int64
	SigningOpsTotal   int64
	SigningOpsErrors  int64
	LookupHits        int64
	LookupMisses      int64
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		DeviceOpensTotal:  m.deviceOpensTotal.Load(),
		DeviceErrorsTotal: m.deviceErrorsTotal.Load(),
		DeviceLatencyNano: m.deviceLatencyNano.Load(),
		SigningOpsTotal:   m.signingOpsTotal.Load(),
		SigningOpsErrors:  m.signingOpsErrors.Load(),
		LookupHits:        m.lookupHits.Load(),
		LookupMisses:      m.lookupMisses.Load(),
	}
}

// DeviceLatencyAvgMs returns the average device session latency in
// milliseconds. Returns 0 if no sessions have been opened.
func (m *Metrics) DeviceLatencyAvgMs() float64 {
	opens := m.deviceOpensTotal.Load()
	if opens == 0 {
		return 0
	}
	nanos := m.deviceLatencyNano.Load()
	return float64(nanos) / float64(opens) / 1e6
}

// Reset resets all metrics to zero.
// Useful for testing.
func (m *Metrics) Reset() {
	m.deviceOpensTotal.Store(0)
	m.deviceErrorsTotal.Store(0)
	m.deviceLatencyNano.Store(0)
	m.signingOpsTotal.Store(0)
	m.signingOpsErrors.Store(0)
	m.lookupHits.Store(0)
	m.lookupMisses.Store(0)
}
