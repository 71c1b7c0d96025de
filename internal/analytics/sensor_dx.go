package analytics

import (
	"math"
	"time"

	"rcx-service/internal/config"
	"rcx-service/internal/models"
)

// TemperatureSensorDx checks that the outdoor, return and mixed-air sensors
// agree with each other. Its verdict decides whether the other diagnostics
// may trust the temperatures at all.
type TemperatureSensorDx struct {
	cfg config.Diagnostics
	win window

	// steady-state sub-window, filled only while the damper has been fully
	// open for at least cfg.SteadyStateDelay
	damperOpen  bool
	steadyStart time.Time
	steadyOAT   []float64
	steadyMAT   []float64
}

func NewTemperatureSensorDx(cfg config.Diagnostics) *TemperatureSensorDx {
	return &TemperatureSensorDx{cfg: cfg}
}

func (d *TemperatureSensorDx) Name() string { return TemperatureSensorDxName }

func (d *TemperatureSensorDx) Pending() int { return d.win.count() }

// SteadyState returns the number of steady-state samples held.
func (d *TemperatureSensorDx) SteadyState() int { return len(d.steadyOAT) }

func (d *TemperatureSensorDx) Evaluate(s models.Sample, c *Context) []models.FaultRecord {
	if s.Damper > d.cfg.TempDamperThreshold {
		if !d.damperOpen {
			d.damperOpen = true
			d.steadyStart = s.Timestamp
		}
		if s.Timestamp.Sub(d.steadyStart) >= d.cfg.SteadyStateDelay() {
			d.steadyOAT = append(d.steadyOAT, s.OutdoorTemp)
			d.steadyMAT = append(d.steadyMAT, s.MixedTemp)
		}
	} else {
		d.damperOpen = false
	}

	d.win.add(s)
	if !d.win.ready(d.cfg) {
		return nil
	}
	return d.evaluate(s.Timestamp, c)
}

func (d *TemperatureSensorDx) evaluate(ts time.Time, c *Context) []models.FaultRecord {
	defer d.win.clear()

	var out []models.FaultRecord
	steadyFault := false

	// Strictly more than the required count.
	if len(d.steadyOAT) > d.cfg.NoRequiredData {
		var sum float64
		for i := range d.steadyOAT {
			sum += math.Abs(d.steadyOAT[i] - d.steadyMAT[i])
		}
		if sum/float64(len(d.steadyOAT)) > d.cfg.OATMATCheck {
			steadyFault = true
			out = append(out, c.record(ts, TemperatureSensorDxName,
				TemperatureSensorDxName+": OAT and MAT sensor readings are not consistent when the outdoor-air damper is fully open.",
				models.ColorRed, nil))
		}
		d.steadyOAT = nil
		d.steadyMAT = nil
	}

	var oaMA, raMA float64
	for _, s := range d.win.samples {
		oaMA += s.OutdoorTemp - s.MixedTemp
		raMA += s.ReturnTemp - s.MixedTemp
	}
	n := float64(d.win.count())
	oaMA /= n
	raMA /= n
	maOA, maRA := -oaMA, -raMA

	var rec models.FaultRecord
	switch th := d.cfg.TempDifferenceThreshold; {
	case oaMA > th && raMA > th:
		c.Sensors = SensorUnreliable
		rec = c.record(ts, TemperatureSensorDxName,
			TemperatureSensorDxName+": Temperature sensor problem detected. Mixed-air temperature is less than outdoor-air and return-air temperature.",
			models.ColorRed, nil)
	case maOA > th && maRA > th:
		c.Sensors = SensorUnreliable
		rec = c.record(ts, TemperatureSensorDxName,
			TemperatureSensorDxName+": Temperature sensor problem detected. Mixed-air temperature is greater than outdoor-air and return-air temperature.",
			models.ColorRed, nil)
	case steadyFault:
		c.Sensors = SensorReliable
		rec = c.record(ts, TemperatureSensorDxName,
			TemperatureSensorDxName+": Diagnostic was inconclusive.", models.ColorGreen, nil)
	default:
		c.Sensors = SensorReliable
		rec = c.record(ts, TemperatureSensorDxName,
			TemperatureSensorDxName+": No problems were detected.", models.ColorGreen, nil)
	}
	return append(out, rec)
}

// Reset drops the main window; the steady-state sub-window is kept.
func (d *TemperatureSensorDx) Reset() { d.win.clear() }
