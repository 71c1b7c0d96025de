package analytics

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rcx-service/internal/models"
)

func run(s *Session, r reading, from, to int) map[int]*Results {
	out := make(map[int]*Results)
	for i := from; i <= to; i++ {
		out[i] = s.Process(r.tick(s.DeviceID(), i))
	}
	return out
}

func TestSessionConsistentSensorsEnableModeDiagnostics(t *testing.T) {
	s := NewSession("ahu-1", testConfig())
	res := run(s, reading{oat: 55, rat: 75, mat: 65, damper: 100, cool: 10}, 0, 14)

	for i := 0; i < 14; i++ {
		assert.True(t, res[i].Analyzed())
		assert.Empty(t, res[i].Rows)
	}
	rows := res[14].Rows
	require.NotEmpty(t, rows)
	last := rows[len(rows)-1]
	assert.Equal(t, TemperatureSensorDxName, last.DiagnosticName)
	assert.Equal(t, models.ColorGreen, last.Color)
	assert.Equal(t, SensorReliable, s.Sensors())

	pending := s.Pending()
	assert.Equal(t, 1, pending[EconomizerOnDxName], "mode diagnostics start with the first reliable tick")
	assert.Zero(t, pending[EconomizerOffDxName])
	assert.Zero(t, pending[TemperatureSensorDxName])
}

func TestSessionMixedAirBelowBothMarksSensorsUnreliable(t *testing.T) {
	s := NewSession("ahu-1", testConfig())
	res := run(s, reading{oat: 90, rat: 70, mat: 50, cool: 10}, 0, 14)

	require.Len(t, res[14].Rows, 1)
	rec := res[14].Rows[0]
	assert.Equal(t, models.ColorRed, rec.Color)
	assert.Contains(t, rec.Message, "Mixed-air temperature is less than outdoor-air and return-air temperature.")

	for _, d := range s.Diagnostics() {
		assert.Zero(t, d.Pending(), d.Name())
	}
	assert.Equal(t, SensorUnknown, s.Sensors(), "verdict is consumed by the reset")
}

func TestSessionDamperBelowOpenThreshold(t *testing.T) {
	s := NewSession("ahu-1", testConfig())
	res := run(s, reading{oat: 60, rat: 75, mat: 58, damper: 50, cool: 10}, 0, 28)

	require.Len(t, res[14].Rows, 1)
	assert.Contains(t, res[14].Rows[0].Message, "No problems were detected.")

	require.Len(t, res[28].Rows, 1)
	rec := res[28].Rows[0]
	assert.Equal(t, EconomizerOnDxName, rec.DiagnosticName)
	assert.Equal(t, models.ColorRed, rec.Color)
	assert.Contains(t, rec.Message, "damper is frequently below 100% open")
	assert.Nil(t, rec.EnergyImpact)

	// Results also carry every row as an info log line.
	var infos []string
	for _, l := range res[28].Logs {
		if l.Level == slog.LevelInfo {
			infos = append(infos, l.Message)
		}
	}
	assert.Equal(t, []string{rec.Message}, infos)
}

func TestSessionUnreliableSensorsClearModeWindows(t *testing.T) {
	s := NewSession("ahu-1", testConfig())
	r := reading{oat: 60, rat: 75, mat: 58, damper: 50, cool: 10}
	run(s, r, 0, 20)
	require.Equal(t, 7, s.Pending()[EconomizerOnDxName])

	s.ctx.Sensors = SensorUnreliable
	res := s.Process(r.tick("ahu-1", 21))

	assert.True(t, res.Analyzed())
	assert.Empty(t, res.Rows)
	assert.Zero(t, s.Pending()[EconomizerOnDxName])
	assert.Equal(t, 7, s.Pending()[TemperatureSensorDxName], "sensor window keeps collecting")
	assert.Equal(t, SensorUnknown, s.Sensors())
}

func TestSessionModeGatingIsExclusive(t *testing.T) {
	s := NewSession("ahu-1", testConfig())
	s.ctx.Sensors = SensorReliable

	favorable := reading{oat: 60, rat: 75, mat: 58, damper: 50, cool: 10}
	unfavorable := reading{oat: 85, rat: 75, mat: 76, damper: 20, cool: 10}

	for i := 0; i < 10; i++ {
		r := favorable
		if i%2 == 1 {
			r = unfavorable
		}
		before := s.Pending()
		s.Process(r.tick("ahu-1", i))
		after := s.Pending()

		onGrew := after[EconomizerOnDxName] > before[EconomizerOnDxName]
		for _, name := range []string{EconomizerOffDxName, ExcessOADxName, InsufficientOADxName} {
			offGrew := after[name] > before[name]
			assert.False(t, onGrew && offGrew, "tick %d fed both %s and %s", i, EconomizerOnDxName, name)
			assert.NotEqual(t, onGrew, offGrew, "tick %d", i)
		}
	}
}

func TestSessionDiscardsOutOfOrderTicks(t *testing.T) {
	s := NewSession("ahu-1", testConfig())
	r := reading{oat: 60, rat: 75, mat: 58, damper: 50, cool: 10}

	s.Process(r.tick("ahu-1", 5))
	res := s.Process(r.tick("ahu-1", 4))

	assert.Equal(t, DiscardOutOfOrder, res.Discard)
	require.Len(t, res.Logs, 1)
	assert.Equal(t, slog.LevelWarn, res.Logs[0].Level)
	assert.Equal(t, 1, s.Pending()[TemperatureSensorDxName])

	res = s.Process(r.tick("ahu-1", 5))
	assert.True(t, res.Analyzed(), "equal timestamps are in order")
}

func TestSessionConfigurationErrors(t *testing.T) {
	r := reading{oat: 60, rat: 75, mat: 58, damper: 50, cool: 10}

	for name, mutate := range map[string]func(*Session){
		"economizer": func(s *Session) { s.cfg.EconomizerType = "enthalpy" },
		"device":     func(s *Session) { s.gate.cfg.DeviceType = "VAV" },
	} {
		t.Run(name, func(t *testing.T) {
			s := NewSession("ahu-1", testConfig())
			mutate(s)

			res := s.Process(r.tick("ahu-1", 0))
			assert.Equal(t, DiscardConfig, res.Discard)
			require.NotEmpty(t, res.Logs)
			assert.Equal(t, slog.LevelError, res.Logs[len(res.Logs)-1].Level)
			assert.Zero(t, s.Pending()[TemperatureSensorDxName])
		})
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	good := NewSession("ahu-1", testConfig())
	bad := NewSession("ahu-2", testConfig())

	run(bad, reading{oat: 90, rat: 70, mat: 50, cool: 10}, 0, 14)
	run(good, reading{oat: 60, rat: 75, mat: 58, damper: 50, cool: 10}, 0, 14)

	assert.Equal(t, SensorReliable, good.Sensors())
	assert.Equal(t, SensorUnknown, bad.Sensors())
	assert.Equal(t, 1, good.Pending()[EconomizerOnDxName])
}

func TestSessionNaNReadingNeverReachesDiagnostics(t *testing.T) {
	s := NewSession("ahu-1", testConfig())

	for i := 0; i < 40; i++ {
		payload := fmt.Sprintf(`{"device_id":"ahu-1","timestamp":%q,"points":`+
			`{"fan_status":1,"oa_temp":55,"ra_temp":75,"ma_temp":"NaN","damper_signal":100,"cool_call":10}}`,
			at(i).Format(time.RFC3339))
		tick, err := models.DecodeTick([]byte(payload), "")
		require.NoError(t, err)

		res := s.Process(tick)
		assert.Equal(t, DiscardMissingData, res.Discard, "tick %d", i)
		assert.Empty(t, res.Rows, "tick %d", i)
	}
	assert.Equal(t, SensorUnknown, s.Sensors())
	for _, d := range s.Diagnostics() {
		assert.Zero(t, d.Pending(), d.Name())
	}
}
