package monitoring

import "time"

// RetentionPolicy límites de antigüedad y cantidad. Cero desactiva el límite.
type RetentionPolicy struct {
	MaxAge     time.Duration
	MaxEntries int // por integración
}

// Prunable almacén que descarta entradas fuera de la política. Devuelve cuántas eliminó.
type Prunable interface {
	Prune(policy RetentionPolicy, now time.Time) int
}

// Keep devuelve el sufijo de items que cumple la política. items debe estar en orden
// cronológico; at extrae la fecha de cada uno.
func Keep[T any](items []T, policy RetentionPolicy, now time.Time, at func(T) time.Time) []T {
	start := 0
	if policy.MaxAge > 0 {
		cutoff := now.Add(-policy.MaxAge)
		for start < len(items) && at(items[start]).Before(cutoff) {
			start++
		}
	}
	if policy.MaxEntries > 0 && len(items)-start > policy.MaxEntries {
		start = len(items) - policy.MaxEntries
	}
	return items[start:]
}
