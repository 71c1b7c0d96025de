package analytics

import (
	"fmt"
	"sort"
	"sync"

	"rcx-service/internal/config"
	"rcx-service/internal/models"
)

const recentCapacity = 100

// Thresholds resolves the diagnostic configuration of a device.
type Thresholds interface {
	ForDevice(deviceID string) (config.Diagnostics, error)
}

// Analyzer routes ticks to one isolated Session per device and keeps
// service-wide counters and the most recent fault rows.
type Analyzer struct {
	thresholds Thresholds
	sessions   map[string]*Session
	recent     []models.FaultRecord
	stats      models.AnalyticsStats
	mu         sync.RWMutex
}

func NewAnalyzer(thresholds Thresholds) *Analyzer {
	return &Analyzer{
		thresholds: thresholds,
		sessions:   make(map[string]*Session),
		recent:     make([]models.FaultRecord, 0, recentCapacity),
		stats: models.AnalyticsStats{
			RecordsByColor: make(map[models.Color]int64),
		},
	}
}

// Analyze runs t through its device's session. An error means the device
// has no usable configuration and the tick was not processed.
func (a *Analyzer) Analyze(t models.Tick) (*Results, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.session(t.DeviceID)
	if err != nil {
		return nil, err
	}

	res := s.Process(t)

	a.stats.TicksProcessed++
	if res.Analyzed() {
		a.stats.TicksAnalyzed++
	} else {
		a.stats.TicksDiscarded++
	}
	for _, rec := range res.Rows {
		a.stats.TotalRecords++
		a.stats.RecordsByColor[rec.Color]++
		if rec.Timestamp.After(a.stats.LastRecordTime) {
			a.stats.LastRecordTime = rec.Timestamp
		}

		a.recent = append(a.recent, rec)
		if len(a.recent) > recentCapacity {
			a.recent = a.recent[1:]
		}
	}
	return res, nil
}

func (a *Analyzer) session(deviceID string) (*Session, error) {
	if s, ok := a.sessions[deviceID]; ok {
		return s, nil
	}
	cfg, err := a.thresholds.ForDevice(deviceID)
	if err != nil {
		return nil, fmt.Errorf("configure device %s: %w", deviceID, err)
	}
	s := NewSession(deviceID, cfg)
	a.sessions[deviceID] = s
	a.stats.Devices = len(a.sessions)
	if a.stats.DataWindow == 0 {
		a.stats.DataWindow = cfg.DataWindow
	}
	return s, nil
}

// Forget drops a device's session so its next tick starts from empty
// windows.
func (a *Analyzer) Forget(deviceID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sessions, deviceID)
	a.stats.Devices = len(a.sessions)
}

func (a *Analyzer) GetCurrentStats() models.AnalyticsStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := a.stats
	stats.RecordsByColor = make(map[models.Color]int64, len(a.stats.RecordsByColor))
	for k, v := range a.stats.RecordsByColor {
		stats.RecordsByColor[k] = v
	}
	return stats
}

// GetRecentFaults returns up to limit of the latest rows, oldest first.
func (a *Analyzer) GetRecentFaults(limit int) []models.FaultRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if limit > len(a.recent) || limit <= 0 {
		limit = len(a.recent)
	}

	start := len(a.recent) - limit
	out := make([]models.FaultRecord, limit)
	copy(out, a.recent[start:])
	return out
}

// DeviceState is a snapshot of one session.
type DeviceState struct {
	DeviceID string         `json:"device_id"`
	Sensors  string         `json:"sensor_status"`
	Pending  map[string]int `json:"pending_samples"`
}

// Devices lists every known device, sorted by id.
func (a *Analyzer) Devices() []DeviceState {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]DeviceState, 0, len(a.sessions))
	for id, s := range a.sessions {
		out = append(out, DeviceState{DeviceID: id, Sensors: s.Sensors().String(), Pending: s.Pending()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}
