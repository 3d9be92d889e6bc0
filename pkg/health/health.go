// Package health aggregates dependency probes for the admin listener. The
// ingest binary is a finite run, but backfills over a large unit range can
// take hours, so the listener that exposes /metrics also answers liveness
// and readiness probes while the run is in flight.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Probe checks one dependency. A nil return means the dependency is usable.
type Probe func(ctx context.Context) error

// ProbeResult is the outcome of a single dependency probe.
type ProbeResult struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency"`
}

// Report aggregates all probe results. OK is false when any probe failed.
type Report struct {
	OK        bool                   `json:"ok"`
	Probes    map[string]ProbeResult `json:"probes"`
	Timestamp string                 `json:"timestamp"`
}

// Checker runs registered dependency probes concurrently.
type Checker struct {
	mu     sync.RWMutex
	probes map[string]Probe
}

// NewChecker creates an empty Checker.
func NewChecker() *Checker {
	return &Checker{probes: make(map[string]Probe)}
}

// Register adds a named probe. Registering the same name twice replaces the
// earlier probe.
func (c *Checker) Register(name string, probe Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = probe
}

// Run executes every probe in parallel and aggregates the results.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	probes := make(map[string]Probe, len(c.probes))
	for name, p := range c.probes {
		probes[name] = p
	}
	c.mu.RUnlock()

	report := Report{
		OK:        true,
		Probes:    make(map[string]ProbeResult, len(probes)),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, probe := range probes {
		wg.Add(1)
		go func(name string, probe Probe) {
			defer wg.Done()
			start := time.Now()
			err := probe(ctx)
			result := ProbeResult{
				OK:      err == nil,
				Latency: time.Since(start).Round(time.Millisecond).String(),
			}
			if err != nil {
				result.Error = err.Error()
			}
			mu.Lock()
			report.Probes[name] = result
			if err != nil {
				report.OK = false
			}
			mu.Unlock()
		}(name, probe)
	}
	wg.Wait()
	return report
}

// LiveHandler answers liveness probes: the process is up and serving.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers readiness probes by running every registered
// dependency probe, 503 when any dependency is down.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		report := c.Run(ctx)
		w.Header().Set("Content-Type", "application/json")
		if !report.OK {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(report)
	}
}
