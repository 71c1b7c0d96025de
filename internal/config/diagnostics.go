package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	EconomizerDDB = "DDB"
	EconomizerHL  = "HL"

	DeviceAHU = "AHU"
	DeviceRTU = "RTU"
)

// Diagnostics holds the thresholds of one economizer RCx run. Temperatures are
// in °F, damper and OAF values in percent, times in minutes.
type Diagnostics struct {
	EconomizerType string  `yaml:"economizer_type" json:"economizer_type"`
	EconHLTemp     float64 `yaml:"econ_hl_temp" json:"econ_hl_temp"`
	DeviceType     string  `yaml:"device_type" json:"device_type"`
	TempDeadband   float64 `yaml:"temp_deadband" json:"temp_deadband"`

	DataWindow     float64 `yaml:"data_window" json:"data_window"`
	NoRequiredData int     `yaml:"no_required_data" json:"no_required_data"`
	OpenDamperTime int     `yaml:"open_damper_time" json:"open_damper_time"`
	DataSampleRate float64 `yaml:"data_sample_rate" json:"data_sample_rate"`

	MATLowThreshold  float64 `yaml:"mat_low_threshold" json:"mat_low_threshold"`
	MATHighThreshold float64 `yaml:"mat_high_threshold" json:"mat_high_threshold"`
	OATLowThreshold  float64 `yaml:"oat_low_threshold" json:"oat_low_threshold"`
	OATHighThreshold float64 `yaml:"oat_high_threshold" json:"oat_high_threshold"`
	RATLowThreshold  float64 `yaml:"rat_low_threshold" json:"rat_low_threshold"`
	RATHighThreshold float64 `yaml:"rat_high_threshold" json:"rat_high_threshold"`

	TempDifferenceThreshold float64 `yaml:"temp_difference_threshold" json:"temp_difference_threshold"`
	OATMATCheck             float64 `yaml:"oat_mat_check" json:"oat_mat_check"`
	TempDamperThreshold     float64 `yaml:"temp_damper_threshold" json:"temp_damper_threshold"`

	OpenDamperThreshold     float64 `yaml:"open_damper_threshold" json:"open_damper_threshold"`
	OAFEconomizingThreshold float64 `yaml:"oaf_economizing_threshold" json:"oaf_economizing_threshold"`
	OAFTemperatureThreshold float64 `yaml:"oaf_temperature_threshold" json:"oaf_temperature_threshold"`
	CoolingEnabledThreshold float64 `yaml:"cooling_enabled_threshold" json:"cooling_enabled_threshold"`

	MinimumDamperSetpoint       float64 `yaml:"minimum_damper_setpoint" json:"minimum_damper_setpoint"`
	ExcessDamperThreshold       float64 `yaml:"excess_damper_threshold" json:"excess_damper_threshold"`
	ExcessOAFThreshold          float64 `yaml:"excess_oaf_threshold" json:"excess_oaf_threshold"`
	DesiredOAF                  float64 `yaml:"desired_oaf" json:"desired_oaf"`
	VentilationOAFThreshold     float64 `yaml:"ventilation_oaf_threshold" json:"ventilation_oaf_threshold"`
	InsufficientDamperThreshold float64 `yaml:"insufficient_damper_threshold" json:"insufficient_damper_threshold"`

	Tonnage float64 `yaml:"tonnage" json:"tonnage"`
	EER     float64 `yaml:"eer" json:"eer"`
}

// DefaultDiagnostics returns the stock thresholds. Tonnage has no sensible
// default and must be configured.
func DefaultDiagnostics() Diagnostics {
	return Diagnostics{
		EconomizerType: EconomizerDDB,
		EconHLTemp:     60,
		DeviceType:     DeviceAHU,
		TempDeadband:   1,

		DataWindow:     15,
		NoRequiredData: 10,
		OpenDamperTime: 5,
		DataSampleRate: 1,

		MATLowThreshold:  50,
		MATHighThreshold: 90,
		OATLowThreshold:  30,
		OATHighThreshold: 100,
		RATLowThreshold:  50,
		RATHighThreshold: 90,

		TempDifferenceThreshold: 4,
		OATMATCheck:             5,
		TempDamperThreshold:     90,

		OpenDamperThreshold:     90,
		OAFEconomizingThreshold: 25,
		OAFTemperatureThreshold: 4,
		CoolingEnabledThreshold: 5,

		MinimumDamperSetpoint:       20,
		ExcessDamperThreshold:       15,
		ExcessOAFThreshold:          30,
		DesiredOAF:                  5,
		VentilationOAFThreshold:     5,
		InsufficientDamperThreshold: 15,

		EER: 10,
	}
}

// Validate rejects thresholds no run can work with. Device and economizer
// type strings are checked per tick by the diagnostic session instead.
func (d Diagnostics) Validate() error {
	switch {
	case d.DataWindow <= 0:
		return fmt.Errorf("%w: data_window must be positive", ErrInvalid)
	case d.NoRequiredData <= 0:
		return fmt.Errorf("%w: no_required_data must be positive", ErrInvalid)
	case d.DataSampleRate <= 0:
		return fmt.Errorf("%w: data_sample_rate must be positive", ErrInvalid)
	case d.Tonnage <= 0:
		return fmt.Errorf("%w: tonnage must be positive", ErrInvalid)
	case d.EER <= 0:
		return fmt.Errorf("%w: eer must be positive", ErrInvalid)
	case d.MATLowThreshold >= d.MATHighThreshold:
		return fmt.Errorf("%w: mat_low_threshold must be below mat_high_threshold", ErrInvalid)
	case d.OATLowThreshold >= d.OATHighThreshold:
		return fmt.Errorf("%w: oat_low_threshold must be below oat_high_threshold", ErrInvalid)
	case d.RATLowThreshold >= d.RATHighThreshold:
		return fmt.Errorf("%w: rat_low_threshold must be below rat_high_threshold", ErrInvalid)
	}
	return nil
}

// Window is data_window as a duration.
func (d Diagnostics) Window() time.Duration { return minutes(d.DataWindow) }

// SampleInterval is data_sample_rate as a duration.
func (d Diagnostics) SampleInterval() time.Duration { return minutes(d.DataSampleRate) }

// SteadyStateDelay is how long the damper must stay open before its samples
// count toward the OAT/MAT consistency check.
func (d Diagnostics) SteadyStateDelay() time.Duration {
	return time.Duration(d.OpenDamperTime-1) * time.Minute
}

// CFM is the nominal supply airflow, 400 cfm per ton of cooling.
func (d Diagnostics) CFM() float64 { return d.Tonnage * 400 }

// Economizer returns the normalized economizer strategy.
func (d Diagnostics) Economizer() string { return strings.ToUpper(strings.TrimSpace(d.EconomizerType)) }

// Device returns the normalized device type.
func (d Diagnostics) Device() string { return strings.ToUpper(strings.TrimSpace(d.DeviceType)) }

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}
