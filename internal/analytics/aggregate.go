package analytics

import (
	"math"
	"strings"
	"time"

	"rcx-service/internal/models"
)

// Role is the logical sensor a raw point is mapped to.
type Role int

const (
	RoleFanStatus Role = iota
	RoleOutdoorTemp
	RoleMixedTemp
	RoleReturnTemp
	RoleDamper
	RoleCooling
)

// Point-name prefixes. Several raw points may share a role, e.g.
// oa_temp_north and oa_temp_south.
const (
	FanStatusPoint    = "fan_status"
	OutdoorTempPoint  = "oa_temp"
	MixedTempPoint    = "ma_temp"
	ReturnTempPoint   = "ra_temp"
	DamperSignalPoint = "damper_signal"
	CoolCallPoint     = "cool_call"
)

var roleOrder = []struct {
	role   Role
	prefix string
}{
	{RoleDamper, DamperSignalPoint},
	{RoleOutdoorTemp, OutdoorTempPoint},
	{RoleMixedTemp, MixedTempPoint},
	{RoleReturnTemp, ReturnTempPoint},
	{RoleCooling, CoolCallPoint},
}

func (r Role) String() string {
	switch r {
	case RoleFanStatus:
		return FanStatusPoint
	case RoleOutdoorTemp:
		return OutdoorTempPoint
	case RoleMixedTemp:
		return MixedTempPoint
	case RoleReturnTemp:
		return ReturnTempPoint
	case RoleDamper:
		return DamperSignalPoint
	case RoleCooling:
		return CoolCallPoint
	}
	return "unknown"
}

// Aggregate reduces one timestep of raw points to a Sample, averaging every
// non-null finite value per role. Roles with no value are returned in missing; the
// matching Sample fields are left at zero. FanOn is false as soon as any fan
// status point reads 0.
func Aggregate(ts time.Time, points models.Points) (models.Sample, []Role) {
	s := models.Sample{Timestamp: ts}
	var (
		values  = make(map[Role][]float64, len(roleOrder))
		fanSeen bool
		fanOff  bool
	)
	for name, v := range points {
		if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
			continue
		}
		key := strings.ToLower(name)
		if strings.HasPrefix(key, FanStatusPoint) {
			fanSeen = true
			if int(*v) == 0 {
				fanOff = true
			}
			continue
		}
		for _, r := range roleOrder {
			if strings.HasPrefix(key, r.prefix) {
				values[r.role] = append(values[r.role], *v)
				break
			}
		}
	}

	var missing []Role
	if !fanSeen {
		missing = append(missing, RoleFanStatus)
	}
	s.FanOn = fanSeen && !fanOff

	for _, r := range []Role{RoleOutdoorTemp, RoleReturnTemp, RoleMixedTemp, RoleDamper, RoleCooling} {
		vs := values[r]
		if len(vs) == 0 {
			missing = append(missing, r)
			continue
		}
		avg := mean(vs)
		switch r {
		case RoleOutdoorTemp:
			s.OutdoorTemp = avg
		case RoleReturnTemp:
			s.ReturnTemp = avg
		case RoleMixedTemp:
			s.MixedTemp = avg
		case RoleDamper:
			s.Damper = avg
		case RoleCooling:
			s.CoolingMean = avg
			s.CoolingMax = maxOf(vs)
		}
	}
	return s, missing
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func maxOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
