package analytics

import (
	"log/slog"
	"math"
	"time"

	"rcx-service/internal/config"
	"rcx-service/internal/models"
)

// Advisory is a recurring precondition failure worth reporting once it
// dominates a data window.
type Advisory int

const (
	AdvisoryFanOff Advisory = iota
	AdvisoryFanMissing
	AdvisoryMissingOAT
	AdvisoryMissingRAT
	AdvisoryMissingMAT
	AdvisoryMissingDamper
	AdvisoryMissingCooling
	AdvisoryOATRange
	AdvisoryRATRange
	AdvisoryMATRange
	advisoryCount
)

// advisoryShare is the fraction of ticks in a window an advisory must exceed
// to be reported.
const advisoryShare = 0.25

var advisoryMessages = [advisoryCount]string{
	AdvisoryFanOff:     "Supply fan is off, current data will not be used for diagnostics.",
	AdvisoryFanMissing: "Supply fan status data is missing from input(device or csv), could not verify system was ON.",
	AdvisoryMissingOAT: "Missing required data for diagnostic: Check BACnet configuration or CSV file input for outside-air temperature.",
	AdvisoryMissingRAT: "Missing required data for diagnostic: Check BACnet configuration or CSV file input for return-air temperature.",
	AdvisoryMissingMAT: "Missing required data for diagnostic: Check BACnet configuration or CSV file input for mixed-air temperature.",
	AdvisoryMissingDamper: "Missing required data for diagnostic: Check BACnet configuration or CSV file input for damper signal.",
	AdvisoryMissingCooling: "Missing required data for diagnostic: Check BACnet configuration or CSV file input for cooling call " +
		"(AHU cooling coil, RTU cooling call or compressor command).",
	AdvisoryOATRange: "Outside-air temperature is outside high/low operating limits, check the functionality of the temperature sensor.",
	AdvisoryRATRange: "Return-air temperature is outside high/low operating limits, check the functionality of the temperature sensor.",
	AdvisoryMATRange: "Mixed-air temperature is outside high/low operating limits, check the functionality of the temperature sensor.",
}

func (a Advisory) String() string {
	if a < 0 || a >= advisoryCount {
		return "unknown advisory"
	}
	return advisoryMessages[a]
}

var missingAdvisory = map[Role]Advisory{
	RoleOutdoorTemp: AdvisoryMissingOAT,
	RoleReturnTemp:  AdvisoryMissingRAT,
	RoleMixedTemp:   AdvisoryMissingMAT,
	RoleDamper:      AdvisoryMissingDamper,
	RoleCooling:     AdvisoryMissingCooling,
}

// Gate checks the preconditions every tick must meet before any diagnostic
// may consume it, and owns the advisory counters of one device.
type Gate struct {
	cfg config.Diagnostics

	spanStart time.Time
	ticks     int
	counts    [advisoryCount]int
}

func NewGate(cfg config.Diagnostics) *Gate {
	return &Gate{cfg: cfg}
}

// Check aggregates points and applies the preconditions in order. On success
// it sets c.Cooling and returns the sample with DiscardNone.
func (g *Gate) Check(ts time.Time, points models.Points, c *Context) (models.Sample, Discard) {
	g.track(ts, c)

	s, missing := Aggregate(ts, points)

	fanMissing := false
	for _, r := range missing {
		if r == RoleFanStatus {
			fanMissing = true
		}
	}
	if fanMissing {
		g.note(AdvisoryFanMissing)
		return s, DiscardFanMissing
	}
	if !s.FanOn {
		g.note(AdvisoryFanOff)
		return s, DiscardFanOff
	}

	if len(missing) > 0 {
		for _, r := range missing {
			g.note(missingAdvisory[r])
		}
		return s, DiscardMissingData
	}

	outOfRange := false
	if !inRange(s.OutdoorTemp, g.cfg.OATLowThreshold, g.cfg.OATHighThreshold) {
		g.note(AdvisoryOATRange)
		outOfRange = true
	}
	if !inRange(s.ReturnTemp, g.cfg.RATLowThreshold, g.cfg.RATHighThreshold) {
		g.note(AdvisoryRATRange)
		outOfRange = true
	}
	if !inRange(s.MixedTemp, g.cfg.MATLowThreshold, g.cfg.MATHighThreshold) {
		g.note(AdvisoryMATRange)
		outOfRange = true
	}
	if outOfRange {
		return s, DiscardOutOfRange
	}

	if !(math.Abs(s.OutdoorTemp-s.ReturnTemp) >= g.cfg.OAFTemperatureThreshold) {
		c.logf(slog.LevelDebug, "OAT and RAT are too close, economizer diagnostic will not use data corresponding to: %s",
			ts.Format(time.RFC3339))
		return s, DiscardLowDelta
	}

	switch g.cfg.Device() {
	case config.DeviceAHU:
		c.Cooling = s.CoolingMean > g.cfg.CoolingEnabledThreshold
	case config.DeviceRTU:
		c.Cooling = int(s.CoolingMax) != 0
	default:
		c.logf(slog.LevelError, "device_type must be specified as %q or %q, got %q. Check configuration input.",
			config.DeviceAHU, config.DeviceRTU, g.cfg.DeviceType)
		return s, DiscardConfig
	}
	return s, DiscardNone
}

// inRange is false for NaN, so a bad reading never passes as in range.
func inRange(v, low, high float64) bool {
	return v >= low && v <= high
}

// track counts ticks by timestamp and, once a full data window has elapsed,
// reports every advisory seen on more than a quarter of them and starts over.
func (g *Gate) track(ts time.Time, c *Context) {
	if g.ticks == 0 {
		g.spanStart = ts
	}
	g.ticks++
	if ts.Sub(g.spanStart) < g.cfg.Window() {
		return
	}
	for a := Advisory(0); a < advisoryCount; a++ {
		if float64(g.counts[a]) > advisoryShare*float64(g.ticks) {
			c.logf(slog.LevelDebug, "%s", advisoryMessages[a])
		}
	}
	g.Reset()
}

func (g *Gate) note(a Advisory) { g.counts[a]++ }

// Reset clears the advisory counters and the window start.
func (g *Gate) Reset() {
	g.ticks = 0
	g.spanStart = time.Time{}
	g.counts = [advisoryCount]int{}
}

// Count returns how often a has been recorded in the current window.
func (g *Gate) Count(a Advisory) int {
	if a < 0 || a >= advisoryCount {
		return 0
	}
	return g.counts[a]
}
