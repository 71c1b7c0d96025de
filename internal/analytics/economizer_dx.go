package analytics

import (
	"log/slog"
	"time"

	"rcx-service/internal/config"
	"rcx-service/internal/models"
)

// EconomizerOnDx flags a unit that is not economizing when outdoor
// conditions favor it and the unit is calling for cooling.
type EconomizerOnDx struct {
	cfg config.Diagnostics
	win window

	idle      bool
	idleStart time.Time
}

func NewEconomizerOnDx(cfg config.Diagnostics) *EconomizerOnDx {
	return &EconomizerOnDx{cfg: cfg}
}

func (d *EconomizerOnDx) Name() string { return EconomizerOnDxName }

func (d *EconomizerOnDx) Pending() int { return d.win.count() }

func (d *EconomizerOnDx) Evaluate(s models.Sample, c *Context) []models.FaultRecord {
	if !c.Cooling {
		c.logf(slog.LevelDebug, "The unit is not cooling, data corresponding to %s will not be used for %s diagnostic.",
			s.Timestamp.Format(time.RFC3339), EconomizerOnDxName)
		d.skip(s.Timestamp, c)
		return nil
	}
	if !c.Economizing {
		c.logf(slog.LevelDebug, "%s: Conditions are not favorable for economizing, data corresponding to %s will not be used.",
			EconomizerOnDxName, s.Timestamp.Format(time.RFC3339))
		d.skip(s.Timestamp, c)
		return nil
	}

	d.win.add(s)
	if !d.win.ready(d.cfg) {
		return nil
	}
	return []models.FaultRecord{d.evaluate(s.Timestamp, c)}
}

// skip tracks how long the unit has gone without a usable tick and says so
// once per data window.
func (d *EconomizerOnDx) skip(ts time.Time, c *Context) {
	if !d.idle {
		d.idle = true
		d.idleStart = ts
	}
	if ts.Sub(d.idleStart) >= d.cfg.Window() {
		c.logf(slog.LevelDebug, "%s: the unit is not cooling or economizing, keep collecting data.", EconomizerOnDxName)
		d.idle = false
	}
}

func (d *EconomizerOnDx) evaluate(ts time.Time, c *Context) models.FaultRecord {
	defer d.win.clear()

	avgDamper := d.win.meanDamper()
	oaf, ok := d.win.meanOAF()

	var msg string
	switch {
	case avgDamper < d.cfg.OpenDamperThreshold:
		msg = EconomizerOnDxName + ": Conditions are favorable for economizing but the damper is frequently below 100% open."
	case !ok:
		return c.record(ts, EconomizerOnDxName,
			EconomizerOnDxName+": Inconclusive result, the OAF could not be calculated.", models.ColorGrey, nil)
	case 100-oaf <= d.cfg.OAFEconomizingThreshold:
		return c.record(ts, EconomizerOnDxName, EconomizerOnDxName+": No problems detected.", models.ColorGreen, nil)
	default:
		msg = EconomizerOnDxName + ": Conditions are favorable for economizing and the damper is 100% open " +
			"but the OAF indicates the unit is not bringing in near 100% OA."
	}
	return c.record(ts, EconomizerOnDxName, msg, models.ColorRed, energyImpact(d.win.mixedAirExcess(), d.cfg))
}

func (d *EconomizerOnDx) Reset() { d.win.clear() }

// EconomizerOffDx flags a unit whose damper sits well above its minimum
// position while outdoor conditions do not favor economizing.
type EconomizerOffDx struct {
	cfg config.Diagnostics
	win window
}

func NewEconomizerOffDx(cfg config.Diagnostics) *EconomizerOffDx {
	return &EconomizerOffDx{cfg: cfg}
}

func (d *EconomizerOffDx) Name() string { return EconomizerOffDxName }

func (d *EconomizerOffDx) Pending() int { return d.win.count() }

func (d *EconomizerOffDx) Evaluate(s models.Sample, c *Context) []models.FaultRecord {
	if c.Economizing {
		c.logf(slog.LevelDebug, "%s: The unit may be economizing, data corresponding to %s will not be used for this diagnostic.",
			EconomizerOffDxName, s.Timestamp.Format(time.RFC3339))
		return nil
	}
	d.win.add(s)
	if !d.win.ready(d.cfg) {
		return nil
	}
	return []models.FaultRecord{d.evaluate(s.Timestamp, c)}
}

func (d *EconomizerOffDx) evaluate(ts time.Time, c *Context) models.FaultRecord {
	defer d.win.clear()

	if d.win.meanDamper()-d.cfg.MinimumDamperSetpoint > d.cfg.ExcessDamperThreshold {
		return c.record(ts, EconomizerOffDxName,
			EconomizerOffDxName+": The outdoor-air damper should be at the minimum position but is significantly above that value.",
			models.ColorRed, energyImpact(d.win.blendedExcess(d.cfg.DesiredOAF), d.cfg))
	}
	return c.record(ts, EconomizerOffDxName, EconomizerOffDxName+": No problems detected.", models.ColorGreen, nil)
}

func (d *EconomizerOffDx) Reset() { d.win.clear() }
