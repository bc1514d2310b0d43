package model

// Signal types
const (
	SignalOpenCodingHealth  = "open_coding_health"
	SignalRetention         = "retention"
	SignalManualReview      = "manual_review_residue"
	SignalAxialCoverage     = "axial_coverage"
	SignalSelectiveCoverage = "selective_coverage"
)

// Severity levels
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Signal is one diagnostic finding about the coding run
type Signal struct {
	Type        string         `json:"type"`
	Severity    string         `json:"severity"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
}

// RunScore summarizes how healthy the coding run was. The index says
// nothing about the quality of the analysis itself, only how much of it
// went through without fallbacks or manual-review residue.
type RunScore struct {
	Index      int      `json:"index"`
	Confidence string   `json:"confidence"`
	Signals    []Signal `json:"signals"`
}
