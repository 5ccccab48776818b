package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// Timer measures a named operation. Stop logs the elapsed time at Debug,
// with escalating Info/Warn lines when the operation runs long.
type Timer struct {
	start time.Time
	name  string
	log   zerolog.Logger
}

// NewTimer starts a timer for the named operation
func NewTimer(name string, log zerolog.Logger) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
		log:   log,
	}
}

// Stop logs the elapsed time
func (t *Timer) Stop() time.Duration {
	return t.logElapsed(nil)
}

// StopWithContext logs the elapsed time plus caller-supplied fields
func (t *Timer) StopWithContext(fields map[string]interface{}) time.Duration {
	return t.logElapsed(fields)
}

func (t *Timer) logElapsed(fields map[string]interface{}) time.Duration {
	duration := time.Since(t.start)

	event := t.log.Debug().
		Str("operation", t.name).
		Dur("duration_ms", duration).
		Float64("duration_seconds", duration.Seconds())

	for key, value := range fields {
		switch v := value.(type) {
		case string:
			event = event.Str(key, v)
		case int:
			event = event.Int(key, v)
		case int64:
			event = event.Int64(key, v)
		case float64:
			event = event.Float64(key, v)
		case bool:
			event = event.Bool(key, v)
		default:
			event = event.Interface(key, v)
		}
	}

	event.Msg("Performance measurement")

	// Full recomputes over large panels can take a while; flag the
	// pathological cases
	if duration > 30*time.Second {
		t.log.Warn().
			Str("operation", t.name).
			Dur("duration", duration).
			Msg("Slow operation detected (>30s)")
	} else if duration > 10*time.Second {
		t.log.Info().
			Str("operation", t.name).
			Dur("duration", duration).
			Msg("Operation took longer than expected (>10s)")
	}

	return duration
}

// OperationTimer provides a defer-friendly way to measure operation duration
//
// Usage:
//
//	func MyFunction() {
//	    defer utils.OperationTimer("my_function", log)()
//	}
func OperationTimer(operation string, log zerolog.Logger) func() {
	t := NewTimer(operation, log)
	return func() { t.Stop() }
}
