package score

import (
	"fmt"
	"strings"

	"github.com/pkravets/thema/internal/model"
)

// Markers written by upstream stages when a model call could not be
// recovered. The scorer matches on text because the stages degrade by
// writing these into the data rather than failing the run.
const (
	failedCodePrefix   = "[oracle failed"
	manualReviewMarker = "manual review"
)

// Scorer calculates the run-health index and generates signals
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate scores one finished coding run and generates diagnostic
// signals. The index is 0-100: how much of the run went through without
// fallbacks, defaults, or coverage gaps.
func (s *Scorer) Calculate(records []model.OpenCodeRecord, uniqueRows []model.UniqueCodeRow, retained []model.UniqueCodeRow, selective *model.SelectiveResult) model.RunScore {
	var signals []model.Signal

	// 1. Open-coding health (0-25 points)
	openScore, openSignal := s.scoreOpenCoding(records)
	signals = append(signals, openSignal)

	// 2. Retention (0-25 points)
	retentionScore, retentionSignal := s.scoreRetention(uniqueRows, retained)
	signals = append(signals, retentionSignal)

	// 3. Manual-review residue (0-20 points)
	residueScore, residueSignal := s.scoreManualReview(uniqueRows)
	signals = append(signals, residueSignal)

	// 4. Axial coverage (0-20 points)
	axialScore, axialSignal := s.scoreAxialCoverage(retained)
	signals = append(signals, axialSignal)

	// 5. Selective coverage (0-10 points)
	selectiveScore, selectiveSignal := s.scoreSelectiveCoverage(selective)
	signals = append(signals, selectiveSignal)

	total := openScore + retentionScore + residueScore + axialScore + selectiveScore

	return model.RunScore{
		Index:      total,
		Confidence: s.determineConfidence(total, len(uniqueRows)),
		Signals:    signals,
	}
}

// scoreOpenCoding measures how many answers got a real open code rather
// than a failure marker (0-25 points)
func (s *Scorer) scoreOpenCoding(records []model.OpenCodeRecord) (int, model.Signal) {
	if len(records) == 0 {
		return 0, model.Signal{
			Type:        model.SignalOpenCodingHealth,
			Severity:    model.SeverityCritical,
			Description: "No answers were open-coded",
			Data:        map[string]any{"records": 0},
		}
	}

	coded := 0
	for _, r := range records {
		code := strings.TrimSpace(r.OpenCode)
		if code != "" && !strings.HasPrefix(code, failedCodePrefix) {
			coded++
		}
	}

	ratio := float64(coded) / float64(len(records))
	points := int(ratio * 25)

	severity := model.SeverityInfo
	if ratio < 0.5 {
		severity = model.SeverityCritical
	} else if ratio < 1.0 {
		severity = model.SeverityWarning
	}

	return points, model.Signal{
		Type:        model.SignalOpenCodingHealth,
		Severity:    severity,
		Description: fmt.Sprintf("Open coding succeeded for %d/%d answers", coded, len(records)),
		Data: map[string]any{
			"coded":   coded,
			"records": len(records),
			"score":   points,
			"formula": "coded / records * 25",
		},
	}
}

// scoreRetention measures how much of the unique code set survived the
// relevance filter (0-25 points). Very low retention usually means an
// off-topic transcript or a misfiring filter prompt, not a clean run.
func (s *Scorer) scoreRetention(uniqueRows, retained []model.UniqueCodeRow) (int, model.Signal) {
	if len(uniqueRows) == 0 {
		return 0, model.Signal{
			Type:        model.SignalRetention,
			Severity:    model.SeverityCritical,
			Description: "No unique open codes to filter",
			Data:        map[string]any{"unique": 0},
		}
	}

	ratio := float64(len(retained)) / float64(len(uniqueRows))
	points := int(ratio * 25)

	severity := model.SeverityInfo
	if ratio < 0.2 {
		severity = model.SeverityCritical
	} else if ratio < 0.5 {
		severity = model.SeverityWarning
	}

	return points, model.Signal{
		Type:        model.SignalRetention,
		Severity:    severity,
		Description: fmt.Sprintf("Retained %d/%d unique codes (%.0f%%)", len(retained), len(uniqueRows), ratio*100),
		Data: map[string]any{
			"retained": len(retained),
			"unique":   len(uniqueRows),
			"ratio":    ratio,
			"score":    points,
			"formula":  "retained / unique * 25",
		},
	}
}

// scoreManualReview counts verdicts that are placeholders requiring a
// human pass (0-20 points)
func (s *Scorer) scoreManualReview(uniqueRows []model.UniqueCodeRow) (int, model.Signal) {
	if len(uniqueRows) == 0 {
		return 0, model.Signal{
			Type:        model.SignalManualReview,
			Severity:    model.SeverityWarning,
			Description: "No filtering verdicts available",
			Data:        map[string]any{"unique": 0},
		}
	}

	flagged := 0
	for _, row := range uniqueRows {
		if strings.Contains(row.ExcludeReason, manualReviewMarker) {
			flagged++
		}
	}

	ratio := 1 - float64(flagged)/float64(len(uniqueRows))
	points := int(ratio * 20)

	severity := model.SeverityInfo
	if flagged > 0 {
		severity = model.SeverityWarning
	}
	if flagged == len(uniqueRows) {
		severity = model.SeverityCritical
	}

	return points, model.Signal{
		Type:        model.SignalManualReview,
		Severity:    severity,
		Description: fmt.Sprintf("%d/%d verdicts require manual review", flagged, len(uniqueRows)),
		Data: map[string]any{
			"flagged": flagged,
			"unique":  len(uniqueRows),
			"score":   points,
			"formula": "(1 - flagged / unique) * 20",
		},
	}
}

// scoreAxialCoverage measures how many retained codes received an axial
// label (0-20 points). An exhausted axial stage leaves all of them bare.
func (s *Scorer) scoreAxialCoverage(retained []model.UniqueCodeRow) (int, model.Signal) {
	if len(retained) == 0 {
		return 0, model.Signal{
			Type:        model.SignalAxialCoverage,
			Severity:    model.SeverityWarning,
			Description: "No retained codes to classify",
			Data:        map[string]any{"retained": 0},
		}
	}

	labeled := 0
	for _, row := range retained {
		if strings.TrimSpace(row.AxialCode) != "" {
			labeled++
		}
	}

	ratio := float64(labeled) / float64(len(retained))
	points := int(ratio * 20)

	severity := model.SeverityInfo
	if labeled == 0 {
		severity = model.SeverityCritical
	} else if ratio < 1.0 {
		severity = model.SeverityWarning
	}

	return points, model.Signal{
		Type:        model.SignalAxialCoverage,
		Severity:    severity,
		Description: fmt.Sprintf("Axial labels on %d/%d retained codes", labeled, len(retained)),
		Data: map[string]any{
			"labeled":  labeled,
			"retained": len(retained),
			"score":    points,
			"formula":  "labeled / retained * 20",
		},
	}
}

// scoreSelectiveCoverage checks the aggregate-concept partition over
// the axial codes (0-10 points, minus 2 per coverage finding)
func (s *Scorer) scoreSelectiveCoverage(selective *model.SelectiveResult) (int, model.Signal) {
	if selective == nil || len(selective.AggregateConcepts) == 0 {
		return 0, model.Signal{
			Type:        model.SignalSelectiveCoverage,
			Severity:    model.SeverityCritical,
			Description: "No aggregate concepts produced",
			Data:        map[string]any{"concepts": 0},
		}
	}

	if selective.Coverage == nil {
		return 10, model.Signal{
			Type:        model.SignalSelectiveCoverage,
			Severity:    model.SeverityInfo,
			Description: fmt.Sprintf("%d aggregate concepts cleanly cover the axial codes", len(selective.AggregateConcepts)),
			Data: map[string]any{
				"concepts": len(selective.AggregateConcepts),
				"score":    10,
			},
		}
	}

	findings := len(selective.Coverage.Missing) + len(selective.Coverage.Extra) + len(selective.Coverage.Duplicated)
	points := 10 - findings*2
	if points < 0 {
		points = 0
	}

	return points, model.Signal{
		Type:        model.SignalSelectiveCoverage,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("Coverage warnings: %d missing, %d extra, %d duplicated", len(selective.Coverage.Missing), len(selective.Coverage.Extra), len(selective.Coverage.Duplicated)),
		Data: map[string]any{
			"missing":    len(selective.Coverage.Missing),
			"extra":      len(selective.Coverage.Extra),
			"duplicated": len(selective.Coverage.Duplicated),
			"score":      points,
			"formula":    "max(10 - findings * 2, 0)",
		},
	}
}

// determineConfidence determines the confidence level based on the score
func (s *Scorer) determineConfidence(score int, uniqueCount int) string {
	if uniqueCount < 3 {
		return "low"
	}

	if score >= 80 {
		return "high"
	} else if score >= 60 {
		return "medium"
	} else {
		return "low"
	}
}
