package validate

import (
	"errors"
	"strings"

	"github.com/pkravets/thema/internal/model"
)

// Terminal validation errors. The storyline is the pipeline's final
// output; nothing downstream can recover from these.
var (
	ErrEmptyStoryline = errors.New("storyline missing or empty")
	ErrNoAnchors      = errors.New("anchors missing or empty")
)

// Coverage checks that the aggregate concepts strictly partition the
// known axial codes: no code missing, none invented, none covered
// twice. Findings are warnings for manual review, never fatal.
func Coverage(result *model.SelectiveResult, axialCodes []string) model.CoverageFinding {
	known := make(map[string]bool, len(axialCodes))
	for _, axial := range axialCodes {
		known[axial] = true
	}

	counts := make(map[string]int)
	var seen []string
	for _, concept := range result.AggregateConcepts {
		for _, axial := range concept.CoveredAxialCodes {
			axial = strings.TrimSpace(axial)
			if axial == "" {
				continue
			}
			if counts[axial] == 0 {
				seen = append(seen, axial)
			}
			counts[axial]++
		}
	}

	var finding model.CoverageFinding
	for _, axial := range axialCodes {
		if counts[axial] == 0 {
			finding.Missing = append(finding.Missing, axial)
		}
	}
	for _, axial := range seen {
		if !known[axial] {
			finding.Extra = append(finding.Extra, axial)
		}
		if counts[axial] > 1 {
			finding.Duplicated = append(finding.Duplicated, axial)
		}
	}

	return finding
}

// Storyline enforces the terminal contract: a non-empty storyline and a
// non-empty anchors list. Failure aborts the run.
func Storyline(result *model.StorylineResult) error {
	if result == nil || strings.TrimSpace(result.Storyline) == "" {
		return ErrEmptyStoryline
	}
	if len(result.Anchors) == 0 {
		return ErrNoAnchors
	}
	return nil
}
