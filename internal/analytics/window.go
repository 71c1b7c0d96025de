package analytics

import (
	"math"
	"time"

	"rcx-service/internal/config"
	"rcx-service/internal/models"
)

// window holds the qualifying samples of one diagnostic until it is full.
type window struct {
	samples []models.Sample
}

func (w *window) add(s models.Sample) { w.samples = append(w.samples, s) }

func (w *window) count() int { return len(w.samples) }

func (w *window) clear() { w.samples = nil }

// elapsed spans first to last sample plus one sample interval, so n samples
// taken every Δ cover n·Δ.
func (w *window) elapsed(interval time.Duration) time.Duration {
	if len(w.samples) == 0 {
		return 0
	}
	return w.samples[len(w.samples)-1].Timestamp.Sub(w.samples[0].Timestamp) + interval
}

// ready reports whether both the time and the count thresholds are met.
func (w *window) ready(cfg config.Diagnostics) bool {
	return w.elapsed(cfg.SampleInterval()) >= cfg.Window() && w.count() >= cfg.NoRequiredData
}

func (w *window) meanDamper() float64 {
	var sum float64
	for _, s := range w.samples {
		sum += s.Damper
	}
	return sum / float64(len(w.samples))
}

// meanOAF is the average outdoor-air fraction in percent,
// (MAT − RAT) / (OAT − RAT). Samples with OAT == RAT carry no information and
// are skipped; ok is false when none remain.
func (w *window) meanOAF() (oaf float64, ok bool) {
	var (
		sum float64
		n   int
	)
	for _, s := range w.samples {
		den := s.OutdoorTemp - s.ReturnTemp
		if den == 0 {
			continue
		}
		sum += (s.MixedTemp - s.ReturnTemp) / den
		n++
	}
	if n == 0 {
		return math.NaN(), false
	}
	return sum / float64(n) * 100, true
}

// energyImpact converts per-sample temperature excess into an estimated
// hourly electrical impact in kW. Only positive deltas count; nil when none
// do.
func energyImpact(deltas []float64, cfg config.Diagnostics) *float64 {
	var (
		sum float64
		n   int
	)
	for _, dt := range deltas {
		if dt <= 0 {
			continue
		}
		sum += 1.08 * cfg.CFM() * dt / (1000 * cfg.EER)
		n++
	}
	if n == 0 {
		return nil
	}
	dxTime := 1.0
	if n > 1 {
		dxTime = float64(n-1) * cfg.DataSampleRate
	}
	v := sum * 60 / (float64(n) * dxTime)
	return &v
}

// mixedAirExcess is MAT − OAT per sample.
func (w *window) mixedAirExcess() []float64 {
	out := make([]float64, len(w.samples))
	for i, s := range w.samples {
		out[i] = s.MixedTemp - s.OutdoorTemp
	}
	return out
}

// blendedExcess is MAT minus the mixed-air temperature expected at the
// desired outdoor-air fraction.
func (w *window) blendedExcess(desiredOAF float64) []float64 {
	d := desiredOAF / 100
	out := make([]float64, len(w.samples))
	for i, s := range w.samples {
		out[i] = s.MixedTemp - (s.OutdoorTemp*d + s.ReturnTemp*(1-d))
	}
	return out
}
