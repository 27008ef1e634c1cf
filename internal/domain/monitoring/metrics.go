package monitoring

import (
	"math"
	"sort"
	"time"
)

// Sample una llamada a una integración.
type Sample struct {
	Integration string
	Operation   string
	Duration    time.Duration
	Error       string
	At          time.Time
}

// Failed indica si la llamada terminó en error.
func (s Sample) Failed() bool { return s.Error != "" }

// MetricsSnapshot agregado de las muestras de una integración en una ventana.
type MetricsSnapshot struct {
	Integration  string         `json:"integration"`
	WindowStart  time.Time      `json:"window_start"`
	WindowEnd    time.Time      `json:"window_end"`
	Count        int            `json:"count"`
	Errors       int            `json:"errors"`
	ErrorRate    float64        `json:"error_rate"`
	MinLatencyMs float64        `json:"min_latency_ms"`
	AvgLatencyMs float64        `json:"avg_latency_ms"`
	P95LatencyMs float64        `json:"p95_latency_ms"`
	MaxLatencyMs float64        `json:"max_latency_ms"`
	LastError    string         `json:"last_error,omitempty"`
	LastErrorAt  time.Time      `json:"last_error_at,omitempty"`
	Operations   map[string]int `json:"operations"`
}

// Aggregate resume las muestras (de una misma integración) dentro de [from, to].
func Aggregate(integration string, samples []Sample, from, to time.Time) MetricsSnapshot {
	snap := MetricsSnapshot{
		Integration: integration,
		WindowStart: from,
		WindowEnd:   to,
		Operations:  map[string]int{},
	}
	var durations []time.Duration
	var total time.Duration
	for _, s := range samples {
		if s.At.Before(from) || s.At.After(to) {
			continue
		}
		snap.Count++
		snap.Operations[s.Operation]++
		durations = append(durations, s.Duration)
		total += s.Duration
		if s.Failed() {
			snap.Errors++
			if !s.At.Before(snap.LastErrorAt) {
				snap.LastError, snap.LastErrorAt = s.Error, s.At
			}
		}
	}
	if snap.Count == 0 {
		return snap
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	snap.ErrorRate = float64(snap.Errors) / float64(snap.Count)
	snap.MinLatencyMs = Millis(durations[0])
	snap.MaxLatencyMs = Millis(durations[len(durations)-1])
	snap.AvgLatencyMs = Millis(total / time.Duration(len(durations)))
	snap.P95LatencyMs = Millis(Percentile(durations, 0.95))
	return snap
}

// Percentile por rango más cercano sobre durations ya ordenadas.
func Percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
