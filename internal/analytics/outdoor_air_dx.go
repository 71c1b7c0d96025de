package analytics

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rcx-service/internal/config"
	"rcx-service/internal/models"
)

// maxOAF is the largest plausible outdoor-air fraction in percent.
const maxOAF = 125.0

// unfavorableWindow is shared by the diagnostics that only collect while
// outdoor conditions do not favor economizing.
type unfavorableWindow struct {
	name string
	cfg  config.Diagnostics
	win  window
}

// collect adds s when the tick qualifies and reports whether the window is
// ready for evaluation.
func (u *unfavorableWindow) collect(s models.Sample, c *Context) bool {
	if c.Economizing {
		c.logf(slog.LevelDebug, "%s: The unit may be economizing, data corresponding to %s will not be used for this diagnostic.",
			u.name, s.Timestamp.Format(time.RFC3339))
		return false
	}
	u.win.add(s)
	return u.win.ready(u.cfg)
}

// checkOAF returns the mean OAF, or a GREY record when it is missing or
// outside [0, maxOAF].
func (u *unfavorableWindow) checkOAF(ts time.Time, c *Context) (float64, *models.FaultRecord) {
	oaf, ok := u.win.meanOAF()
	if ok && oaf >= 0 && oaf <= maxOAF {
		return oaf, nil
	}
	msg := u.name + ": Inconclusive result, the OAF could not be calculated."
	if ok {
		msg = fmt.Sprintf("%s: Inconclusive result, the OAF calculation led to an unexpected value: %.2f", u.name, oaf)
	}
	rec := c.record(ts, u.name, msg, models.ColorGrey, nil)
	return oaf, &rec
}

func (u *unfavorableWindow) Pending() int { return u.win.count() }

func (u *unfavorableWindow) Reset() { u.win.clear() }

// ExcessOADx flags a unit bringing in more outdoor air than ventilation
// needs while economizing is unfavorable.
type ExcessOADx struct {
	unfavorableWindow
}

func NewExcessOADx(cfg config.Diagnostics) *ExcessOADx {
	return &ExcessOADx{unfavorableWindow{name: ExcessOADxName, cfg: cfg}}
}

func (d *ExcessOADx) Name() string { return ExcessOADxName }

func (d *ExcessOADx) Evaluate(s models.Sample, c *Context) []models.FaultRecord {
	if !d.collect(s, c) {
		return nil
	}
	return []models.FaultRecord{d.evaluate(s.Timestamp, c)}
}

func (d *ExcessOADx) evaluate(ts time.Time, c *Context) models.FaultRecord {
	defer d.win.clear()

	oaf, grey := d.checkOAF(ts, c)
	if grey != nil {
		return *grey
	}

	var msgs []string
	if d.win.meanDamper()-d.cfg.MinimumDamperSetpoint > d.cfg.ExcessDamperThreshold {
		msgs = append(msgs, ExcessOADxName+": The damper should be at the minimum position for ventilation but is significantly higher than this value.")
	}
	if oaf-d.cfg.DesiredOAF > d.cfg.ExcessOAFThreshold {
		msgs = append(msgs, ExcessOADxName+": Excess outdoor-air is being provided, this could increase heating and cooling energy consumption.")
	}
	if len(msgs) == 0 {
		return c.record(ts, ExcessOADxName,
			ExcessOADxName+": The calculated outdoor-air fraction is within configured limits.", models.ColorGreen, nil)
	}
	return c.record(ts, ExcessOADxName, strings.Join(msgs, " "), models.ColorRed,
		energyImpact(d.win.blendedExcess(d.cfg.DesiredOAF), d.cfg))
}

// InsufficientOADx flags a unit bringing in too little outdoor air for
// ventilation while economizing is unfavorable.
type InsufficientOADx struct {
	unfavorableWindow
}

func NewInsufficientOADx(cfg config.Diagnostics) *InsufficientOADx {
	return &InsufficientOADx{unfavorableWindow{name: InsufficientOADxName, cfg: cfg}}
}

func (d *InsufficientOADx) Name() string { return InsufficientOADxName }

func (d *InsufficientOADx) Evaluate(s models.Sample, c *Context) []models.FaultRecord {
	if !d.collect(s, c) {
		return nil
	}
	return []models.FaultRecord{d.evaluate(s.Timestamp, c)}
}

func (d *InsufficientOADx) evaluate(ts time.Time, c *Context) models.FaultRecord {
	defer d.win.clear()

	oaf, grey := d.checkOAF(ts, c)
	if grey != nil {
		return *grey
	}

	switch {
	case d.cfg.MinimumDamperSetpoint-d.win.meanDamper() > d.cfg.InsufficientDamperThreshold:
		return c.record(ts, InsufficientOADxName,
			InsufficientOADxName+": Outdoor-air damper is significantly below the minimum configured damper position.",
			models.ColorRed, nil)
	case d.cfg.DesiredOAF-oaf > d.cfg.VentilationOAFThreshold:
		return c.record(ts, InsufficientOADxName,
			InsufficientOADxName+": Insufficient outdoor-air is being provided for ventilation.", models.ColorRed, nil)
	}
	return c.record(ts, InsufficientOADxName,
		InsufficientOADxName+": The calculated outdoor-air fraction was within acceptable limits.", models.ColorGreen, nil)
}
