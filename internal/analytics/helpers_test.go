package analytics

import (
	"time"

	"rcx-service/internal/config"
	"rcx-service/internal/models"
)

var t0 = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func at(i int) time.Time { return t0.Add(time.Duration(i) * time.Minute) }

func testConfig() config.Diagnostics {
	cfg := config.DefaultDiagnostics()
	cfg.Tonnage = 10
	return cfg
}

type reading struct {
	oat, rat, mat, damper, cool float64
}

func (r reading) sample(i int) models.Sample {
	return models.Sample{
		Timestamp:   at(i),
		FanOn:       true,
		OutdoorTemp: r.oat,
		ReturnTemp:  r.rat,
		MixedTemp:   r.mat,
		Damper:      r.damper,
		CoolingMean: r.cool,
		CoolingMax:  r.cool,
	}
}

func (r reading) points() models.Points {
	return models.Points{
		"fan_status":    models.Float(1),
		"oa_temp":       models.Float(r.oat),
		"ra_temp":       models.Float(r.rat),
		"ma_temp":       models.Float(r.mat),
		"damper_signal": models.Float(r.damper),
		"cool_call":     models.Float(r.cool),
	}
}

func (r reading) tick(device string, i int) models.Tick {
	return models.Tick{DeviceID: device, Timestamp: at(i), Points: r.points()}
}

// feed evaluates n one-minute samples and returns the rows keyed by the
// index of the tick that produced them.
func feed(d Diagnostic, c *Context, r reading, n int) map[int][]models.FaultRecord {
	out := make(map[int][]models.FaultRecord)
	for i := 0; i < n; i++ {
		if rows := d.Evaluate(r.sample(i), c); len(rows) > 0 {
			out[i] = rows
		}
	}
	return out
}
