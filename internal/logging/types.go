package logging

import "errors"

var ErrInvalidLevel = errors.New("invalid log level")

// #region config
// Config selects the handler and minimum level for New.
type Config struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=text json"`
}

// DefaultConfig returns info-level text output.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "text"}
}

// #endregion config

// #region provenance-entry
// ProvenanceEntry records where a verdict came from: the system, the layout
// it was computed on, and what triggered the run.
type ProvenanceEntry struct {
	System      string
	LayoutHash  string // sha256 of the canonical JSON layout
	VersionID   string // snapshot version, empty when not from the store
	TriggerType string // "cli" | "rpc" | "watch" | "verify"
	SPFM        float64
	LFM         float64
	ResidualFIT float64
	LatentFIT   float64
	Verdict     string
}

// #endregion provenance-entry
