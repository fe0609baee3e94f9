package health

import (
    "sync"
    "time"

    "github.com/prometheus/client_golang/prometheus"
)

// Stats is a point-in-time view of one provider's counters.
type Stats struct {
    SuccessCount int64     `json:"success_count"`
    FailCount    int64     `json:"fail_count"`
    LastSuccess  time.Time `json:"last_success,omitzero"`
}

// Tracker records per-provider request outcomes. It is a passive sink:
// the aggregator routes strictly by priority and never consults these
// counters, they exist for /healthz and /metrics only.
type Tracker struct {
    mu    sync.Mutex
    stats map[string]*Stats
    now   func() time.Time

    successes *prometheus.CounterVec
    failures  *prometheus.CounterVec
}

// New creates a Tracker and registers its metrics with reg.
// A nil reg keeps the tracker in-memory only, which tests rely on.
func New(reg prometheus.Registerer) *Tracker {
    t := &Tracker{
        stats: make(map[string]*Stats),
        now:   time.Now,
        successes: prometheus.NewCounterVec(prometheus.CounterOpts{
            Name: "coindata_provider_requests_success_total",
            Help: "Successful upstream requests per provider.",
        }, []string{"provider"}),
        failures: prometheus.NewCounterVec(prometheus.CounterOpts{
            Name: "coindata_provider_requests_fail_total",
            Help: "Failed upstream requests per provider.",
        }, []string{"provider"}),
    }
    if reg != nil {
        reg.MustRegister(t.successes, t.failures)
    }
    return t
}

// Record notes one request outcome for the named provider.
func (t *Tracker) Record(name string, success bool) {
    if t == nil { return }
    t.mu.Lock()
    s, ok := t.stats[name]
    if !ok {
        s = &Stats{}
        t.stats[name] = s
    }
    if success {
        s.SuccessCount++
        s.LastSuccess = t.now()
    } else {
        s.FailCount++
    }
    t.mu.Unlock()
    if success {
        t.successes.WithLabelValues(name).Inc()
    } else {
        t.failures.WithLabelValues(name).Inc()
    }
}

// Snapshot copies the current counters for all providers seen so far.
func (t *Tracker) Snapshot() map[string]Stats {
    if t == nil { return nil }
    t.mu.Lock()
    defer t.mu.Unlock()
    out := make(map[string]Stats, len(t.stats))
    for name, s := range t.stats {
        out[name] = *s
    }
    return out
}

// SetClock replaces the time source for tests.
func (t *Tracker) SetClock(now func() time.Time) { t.now = now }
