package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"rcx-service/internal/models"
	"rcx-service/internal/sink"
)

// Discard names why a tick did not reach the diagnostics. The zero value
// means the tick was analyzed.
type Discard string

const (
	DiscardNone        Discard = ""
	DiscardOutOfOrder  Discard = "out_of_order"
	DiscardFanOff      Discard = "fan_off"
	DiscardFanMissing  Discard = "fan_status_missing"
	DiscardMissingData Discard = "missing_data"
	DiscardOutOfRange  Discard = "out_of_range"
	DiscardLowDelta    Discard = "oat_rat_too_close"
	DiscardConfig      Discard = "configuration"
)

type LogEntry struct {
	Level   slog.Level
	Message string
}

// Results collects everything one tick produced: log lines for the sink's
// Log and rows for its InsertRow.
type Results struct {
	DeviceID  string
	Timestamp time.Time
	Discard   Discard
	Logs      []LogEntry
	Rows      []models.FaultRecord
}

func (r *Results) Log(level slog.Level, msg string) {
	r.Logs = append(r.Logs, LogEntry{Level: level, Message: msg})
}

func (r *Results) Logf(level slog.Level, format string, args ...any) {
	r.Log(level, fmt.Sprintf(format, args...))
}

// InsertRow records a fault row and logs its message at info level.
func (r *Results) InsertRow(rec models.FaultRecord) {
	r.Rows = append(r.Rows, rec)
	r.Log(slog.LevelInfo, rec.Message)
}

// Analyzed reports whether the tick passed every precondition.
func (r *Results) Analyzed() bool { return r.Discard == DiscardNone }

// Flush hands the collected logs and rows to s. Row errors are joined; a
// failed row does not stop the others.
func (r *Results) Flush(ctx context.Context, s sink.Sink) error {
	for _, l := range r.Logs {
		s.Log(ctx, r.DeviceID, l.Level, l.Message)
	}
	var errs []error
	for _, row := range r.Rows {
		if err := s.InsertRow(ctx, models.FaultTable, row); err != nil {
			errs = append(errs, fmt.Errorf("insert %s row for %s: %w", row.DiagnosticName, row.DeviceID, err))
		}
	}
	return errors.Join(errs...)
}

// SensorStatus is the cross-diagnostic verdict on the temperature sensors.
type SensorStatus int

const (
	SensorUnknown SensorStatus = iota
	SensorReliable
	SensorUnreliable
)

func (s SensorStatus) String() string {
	switch s {
	case SensorReliable:
		return "reliable"
	case SensorUnreliable:
		return "unreliable"
	}
	return "unknown"
}

// Context is the per-device state shared by the diagnostics of one session.
// Sensors persists across ticks; Cooling and Economizing are set for the
// current tick before any diagnostic runs.
type Context struct {
	DeviceID    string
	Sensors     SensorStatus
	Cooling     bool
	Economizing bool

	results *Results
}

func (c *Context) logf(level slog.Level, format string, args ...any) {
	if c.results != nil {
		c.results.Logf(level, format, args...)
	}
}

func (c *Context) record(ts time.Time, name, msg string, color models.Color, energy *float64) models.FaultRecord {
	return models.FaultRecord{
		ID:             uuid.NewString(),
		DeviceID:       c.DeviceID,
		Timestamp:      ts,
		DiagnosticName: name,
		Message:        msg,
		EnergyImpact:   energy,
		Color:          color,
	}
}
