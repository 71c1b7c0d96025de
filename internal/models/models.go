package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FaultTable is the table every diagnostic row is written to.
const FaultTable = "Economizer_RCx"

// ErrDecode marks a tick payload that could not be turned into a Tick.
var ErrDecode = errors.New("decode tick")

type Color string

const (
	ColorRed   Color = "RED"
	ColorGreen Color = "GREEN"
	ColorGrey  Color = "GREY"
)

// Points maps a raw point name to its value for one timestep. A nil value is
// a null reading.
type Points map[string]*float64

// UnmarshalJSON accepts numbers, booleans, numeric strings and null.
// Anything else, including NaN and infinities, is kept as a null reading.
func (p *Points) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out := make(Points, len(raw))
	for k, v := range raw {
		if f, ok := toFloat(v); ok {
			out[k] = &f
		} else {
			out[k] = nil
		}
	}
	*p = out
	return nil
}

// Tick is one timestep of raw readings for one device.
type Tick struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
	Points    Points    `json:"points"`
}

// DecodeTick parses a JSON tick and checks the fields every source must set.
// fallbackID names the device when the payload does not, e.g. a message key
// or topic segment.
func DecodeTick(b []byte, fallbackID string) (Tick, error) {
	var t Tick
	if err := json.Unmarshal(b, &t); err != nil {
		return Tick{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if t.DeviceID == "" {
		t.DeviceID = fallbackID
	}
	if err := t.Validate(); err != nil {
		return Tick{}, err
	}
	return t, nil
}

func (t Tick) Validate() error {
	if strings.TrimSpace(t.DeviceID) == "" {
		return fmt.Errorf("%w: device_id is required", ErrDecode)
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrDecode)
	}
	return nil
}

// Float returns a pointer to v, handy for building Points by hand.
func Float(v float64) *float64 { return &v }

func toFloat(a any) (float64, bool) {
	f, ok := parseFloat(a)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseFloat(a any) (float64, bool) {
	switch t := a.(type) {
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Sample is one timestep reduced to one value per sensor role.
type Sample struct {
	Timestamp   time.Time `json:"timestamp"`
	FanOn       bool      `json:"fan_on"`
	OutdoorTemp float64   `json:"oa_temp"`
	MixedTemp   float64   `json:"ma_temp"`
	ReturnTemp  float64   `json:"ra_temp"`
	Damper      float64   `json:"damper_signal"`
	CoolingMean float64   `json:"cool_call_mean"`
	CoolingMax  float64   `json:"cool_call_max"`
}

// FaultRecord is one diagnostic verdict. Field names follow the columns of
// the Economizer_RCx table.
type FaultRecord struct {
	ID             string    `json:"id"`
	DeviceID       string    `json:"device_id"`
	Timestamp      time.Time `json:"datetime"`
	DiagnosticName string    `json:"diagnostic_name"`
	Message        string    `json:"diagnostic_message"`
	EnergyImpact   *float64  `json:"energy_impact"`
	Color          Color     `json:"color_code"`
}

type AnalyticsStats struct {
	Devices        int             `json:"devices"`
	TicksProcessed int64           `json:"ticks_processed"`
	TicksAnalyzed  int64           `json:"ticks_analyzed"`
	TicksDiscarded int64           `json:"ticks_discarded"`
	TotalRecords   int64           `json:"total_records"`
	RecordsByColor map[Color]int64 `json:"records_by_color"`
	LastRecordTime time.Time       `json:"last_record_time,omitempty"`
	DataWindow     float64         `json:"data_window_minutes"`
}
