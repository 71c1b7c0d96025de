package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"rcx-service/internal/models"
)

// Sink receives what the diagnostics produce for one tick.
type Sink interface {
	Log(ctx context.Context, deviceID string, level slog.Level, msg string)
	InsertRow(ctx context.Context, table string, rec models.FaultRecord) error
}

// RowWriter persists or forwards fault rows.
type RowWriter interface {
	InsertRow(ctx context.Context, table string, rec models.FaultRecord) error
}

// Fanout logs through slog and hands every row to each writer in order.
// A failing writer does not stop the others.
type Fanout struct {
	log     *slog.Logger
	writers map[string]RowWriter
	order   []string
	onError func(writer string, err error)
}

func NewFanout(log *slog.Logger) *Fanout {
	return &Fanout{log: log, writers: make(map[string]RowWriter)}
}

// Add registers w under name. Names show up in errors and metrics.
func (f *Fanout) Add(name string, w RowWriter) *Fanout {
	if _, ok := f.writers[name]; !ok {
		f.order = append(f.order, name)
	}
	f.writers[name] = w
	return f
}

// OnError installs a callback run for every failed write.
func (f *Fanout) OnError(fn func(writer string, err error)) *Fanout {
	f.onError = fn
	return f
}

// Writers returns the registered writer names in registration order.
func (f *Fanout) Writers() []string {
	return append([]string(nil), f.order...)
}

func (f *Fanout) Log(ctx context.Context, deviceID string, level slog.Level, msg string) {
	f.log.Log(ctx, level, msg, slog.String("device_id", deviceID))
}

func (f *Fanout) InsertRow(ctx context.Context, table string, rec models.FaultRecord) error {
	var errs []error
	for _, name := range f.order {
		if err := f.writers[name].InsertRow(ctx, table, rec); err != nil {
			if f.onError != nil {
				f.onError(name, err)
			}
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Memory keeps rows in memory, for tests and dry runs.
type Memory struct {
	Rows   []models.FaultRecord
	Tables []string
}

func (m *Memory) InsertRow(_ context.Context, table string, rec models.FaultRecord) error {
	m.Rows = append(m.Rows, rec)
	m.Tables = append(m.Tables, table)
	return nil
}
