package window

import (
    "sync"

    "coindata/internal/provider"
)

// State holds the process-wide open/closed flag and the last live price
// snapshot. It is created once at startup and mutated only through the
// market-data entry point, which keeps the open→closed edge detection
// testable against an injected clock.
type State struct {
    mu           sync.Mutex
    lastOpen     bool
    lastLive     map[string]provider.Quote
    lastLiveDate string // YYYY-MM-DD of the snapshot
}

func NewState() *State {
    return &State{lastLive: make(map[string]provider.Quote)}
}

// Observe records the freshly computed open flag and reports whether
// this call is the open→closed edge. The flag update runs on every call,
// independent of whether the caller acts on the edge.
func (s *State) Observe(open bool) (closedEdge bool) {
    s.mu.Lock()
    defer s.mu.Unlock()
    closedEdge = s.lastOpen && !open
    s.lastOpen = open
    return closedEdge
}

// RecordLive replaces the snapshot with a full live result.
func (s *State) RecordLive(quotes map[string]provider.Quote, date string) {
    if len(quotes) == 0 { return }
    s.mu.Lock()
    defer s.mu.Unlock()
    snap := make(map[string]provider.Quote, len(quotes))
    for sym, q := range quotes { snap[sym] = q }
    s.lastLive = snap
    s.lastLiveDate = date
}

// MergeLive folds individual gap-fill quotes into the snapshot without
// discarding what is already there.
func (s *State) MergeLive(quotes map[string]provider.Quote, date string) {
    if len(quotes) == 0 { return }
    s.mu.Lock()
    defer s.mu.Unlock()
    for sym, q := range quotes { s.lastLive[sym] = q }
    s.lastLiveDate = date
}

// LastLive returns the snapshot quote for one symbol.
func (s *State) LastLive(symbol string) (provider.Quote, bool) {
    s.mu.Lock()
    defer s.mu.Unlock()
    q, ok := s.lastLive[symbol]
    return q, ok
}

// Snapshot copies the current snapshot and its date.
func (s *State) Snapshot() (map[string]provider.Quote, string) {
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make(map[string]provider.Quote, len(s.lastLive))
    for sym, q := range s.lastLive { out[sym] = q }
    return out, s.lastLiveDate
}
