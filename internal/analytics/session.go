package analytics

import (
	"log/slog"
	"time"

	"rcx-service/internal/config"
	"rcx-service/internal/models"
)

const (
	TemperatureSensorDxName = "Temperature Sensor Dx"
	EconomizerOnDxName      = "Economizer Correctly ON Dx"
	EconomizerOffDxName     = "Economizer Correctly OFF Dx"
	ExcessOADxName          = "Excess Outdoor-air Intake Dx"
	InsufficientOADxName    = "Insufficient Outdoor-air Intake Dx"
)

// Diagnostic is one rolling-window check. Evaluate consumes a gate-passing
// sample and returns the rows produced when its window completes.
type Diagnostic interface {
	Name() string
	Evaluate(s models.Sample, c *Context) []models.FaultRecord
	Reset()
	Pending() int
}

// Session is the isolated diagnostic state of one device. It is not safe
// for concurrent use; callers serialize ticks per device.
type Session struct {
	cfg  config.Diagnostics
	ctx  Context
	gate *Gate

	sensor     *TemperatureSensorDx
	downstream []Diagnostic

	last time.Time
}

func NewSession(deviceID string, cfg config.Diagnostics) *Session {
	return &Session{
		cfg:    cfg,
		ctx:    Context{DeviceID: deviceID},
		gate:   NewGate(cfg),
		sensor: NewTemperatureSensorDx(cfg),
		downstream: []Diagnostic{
			NewEconomizerOnDx(cfg),
			NewEconomizerOffDx(cfg),
			NewExcessOADx(cfg),
			NewInsufficientOADx(cfg),
		},
	}
}

// Process runs one tick through the gate, the classifier and the
// diagnostics. It never fails; every problem ends up in the returned
// Results as a discard reason, a log line or a GREY row.
func (s *Session) Process(t models.Tick) *Results {
	res := &Results{DeviceID: s.ctx.DeviceID, Timestamp: t.Timestamp}
	s.ctx.results = res
	defer func() { s.ctx.results = nil }()

	if !s.last.IsZero() && t.Timestamp.Before(s.last) {
		res.Discard = DiscardOutOfOrder
		res.Logf(slog.LevelWarn, "Data corresponding to %s arrived after %s and will not be used.",
			t.Timestamp.Format(time.RFC3339), s.last.Format(time.RFC3339))
		return res
	}
	s.last = t.Timestamp

	sample, discard := s.gate.Check(t.Timestamp, t.Points, &s.ctx)
	if discard != DiscardNone {
		res.Discard = discard
		return res
	}

	econ, err := Classify(sample.OutdoorTemp, sample.ReturnTemp, s.cfg)
	if err != nil {
		res.Discard = DiscardConfig
		res.Logf(slog.LevelError, "%v. Check configuration input.", err)
		return res
	}
	s.ctx.Economizing = econ

	for _, rec := range s.sensor.Evaluate(sample, &s.ctx) {
		res.InsertRow(rec)
	}

	if s.ctx.Sensors != SensorReliable {
		for _, d := range s.downstream {
			d.Reset()
		}
		s.ctx.Sensors = SensorUnknown
		return res
	}
	for _, d := range s.downstream {
		for _, rec := range d.Evaluate(sample, &s.ctx) {
			res.InsertRow(rec)
		}
	}
	return res
}

// DeviceID returns the device the session belongs to.
func (s *Session) DeviceID() string { return s.ctx.DeviceID }

// Sensors returns the current sensor verdict.
func (s *Session) Sensors() SensorStatus { return s.ctx.Sensors }

// Gate exposes the session's precondition gate.
func (s *Session) Gate() *Gate { return s.gate }

// Diagnostics returns every diagnostic in evaluation order.
func (s *Session) Diagnostics() []Diagnostic {
	return append([]Diagnostic{s.sensor}, s.downstream...)
}

// Pending maps each diagnostic name to the samples it holds.
func (s *Session) Pending() map[string]int {
	out := make(map[string]int, len(s.downstream)+1)
	for _, d := range s.Diagnostics() {
		out[d.Name()] = d.Pending()
	}
	return out
}
