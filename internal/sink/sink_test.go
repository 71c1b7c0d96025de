package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rcx-service/internal/models"
)

type failing struct{ err error }

func (f failing) InsertRow(context.Context, string, models.FaultRecord) error { return f.err }

func testRecord() models.FaultRecord {
	energy := 12.5
	return models.FaultRecord{
		ID:             "rec-1",
		DeviceID:       "ahu-1",
		Timestamp:      time.Date(2024, 6, 1, 8, 14, 0, 0, time.UTC),
		DiagnosticName: "Economizer Correctly OFF Dx",
		Message:        "damper too open",
		EnergyImpact:   &energy,
		Color:          models.ColorRed,
	}
}

func TestFanoutWritesEveryWriter(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	first, last := &Memory{}, &Memory{}
	var failed []string
	f := NewFanout(log).
		Add("first", first).
		Add("broken", failing{err: errors.New("down")}).
		Add("last", last).
		OnError(func(name string, _ error) { failed = append(failed, name) })

	err := f.InsertRow(context.Background(), models.FaultTable, testRecord())
	require.Error(t, err)
	assert.ErrorContains(t, err, "broken: down")
	assert.Equal(t, []string{"broken"}, failed)
	assert.Len(t, first.Rows, 1)
	assert.Len(t, last.Rows, 1)
	assert.Equal(t, []string{models.FaultTable}, last.Tables)
	assert.Equal(t, []string{"first", "broken", "last"}, f.Writers())

	f.Log(context.Background(), "ahu-1", slog.LevelWarn, "late tick")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "late tick", line["msg"])
	assert.Equal(t, "ahu-1", line["device_id"])
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{topic: "rcx.faults", writer: w}

	require.NoError(t, p.InsertRow(context.Background(), models.FaultTable, testRecord()))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "ahu-1", string(msg.Key))

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, models.FaultTable, got["table"])
	assert.Equal(t, "rec-1", got["id"])
	assert.Equal(t, "RED", got["color_code"])
	assert.Equal(t, 12.5, got["energy_impact"])

	w.err = errors.New("leader not available")
	assert.ErrorContains(t, p.InsertRow(context.Background(), models.FaultTable, testRecord()), "rcx.faults")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewKafkaPublisherValidates(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "rcx.faults")
	assert.Error(t, err)
	_, err = NewKafkaPublisher([]string{"localhost:9092"}, " ")
	assert.Error(t, err)

	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "rcx.faults")
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}
