package secureauth

import "sync/atomic"

// MetricID identifies one counter in the in-process metrics system.
type MetricID uint8

const (
	MetricSignupSuccess MetricID = iota
	MetricSignupDuplicate
	MetricSigninFailure
	MetricSigninOTPPending
	MetricSigninSuccess
	MetricSigninRateLimited
	MetricOTPFailure
	MetricOTPExpired
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricDeviceRegistered
	MetricDeviceDuplicate
	MetricResetRequested
	MetricResetRateLimited
	MetricResetConfirmSuccess
	MetricResetConfirmFailure
	MetricProfileUpdated
	MetricActivityDropped
	MetricNotifyFailure

	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricSignupSuccess:       "signup_success",
	MetricSignupDuplicate:     "signup_duplicate",
	MetricSigninFailure:       "signin_failure",
	MetricSigninOTPPending:    "signin_otp_pending",
	MetricSigninSuccess:       "signin_success",
	MetricSigninRateLimited:   "signin_rate_limited",
	MetricOTPFailure:          "otp_failure",
	MetricOTPExpired:          "otp_expired",
	MetricRefreshSuccess:      "refresh_success",
	MetricRefreshFailure:      "refresh_failure",
	MetricDeviceRegistered:    "device_registered",
	MetricDeviceDuplicate:     "device_duplicate",
	MetricResetRequested:      "reset_requested",
	MetricResetRateLimited:    "reset_rate_limited",
	MetricResetConfirmSuccess: "reset_confirm_success",
	MetricResetConfirmFailure: "reset_confirm_failure",
	MetricProfileUpdated:      "profile_updated",
	MetricActivityDropped:     "activity_dropped",
	MetricNotifyFailure:       "notify_failure",
}

// String returns the stable snake_case name of the metric.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// Metrics holds lock-free counters. All operations are no-ops when the
// metrics subsystem is disabled.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]atomic.Uint64
}

// NewMetrics creates a [Metrics] instance configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc increments one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Value returns the current value of one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || !m.enabled || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// MetricsSnapshot is a point-in-time copy of all counters keyed by name.
type MetricsSnapshot struct {
	Counters map[string]uint64
}

// Snapshot deep-copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[string]uint64, int(metricIDCount))}
	if m == nil || !m.enabled {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id.String()] = m.counters[id].Load()
	}
	return snap
}
