package analytics

import (
	"fmt"

	"rcx-service/internal/config"
)

// Classify reports whether outdoor conditions favor economizing.
// DDB: OAT below RAT minus the deadband. HL: OAT below the high-limit
// temperature minus the deadband.
func Classify(oat, rat float64, cfg config.Diagnostics) (bool, error) {
	switch cfg.Economizer() {
	case config.EconomizerDDB:
		return oat < rat-cfg.TempDeadband, nil
	case config.EconomizerHL:
		return oat < cfg.EconHLTemp-cfg.TempDeadband, nil
	default:
		return false, fmt.Errorf("economizer_type must be %q or %q, got %q", config.EconomizerDDB, config.EconomizerHL, cfg.EconomizerType)
	}
}
