package model

import "encoding/json"

// QABlock is one question/answer unit segmented from a raw transcript.
// The question is context only and is never coded itself.
type QABlock struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// OpenCodeRecord is one coded answer. ID is 1-based and follows the
// order of the transcript; the record is immutable after open coding.
type OpenCodeRecord struct {
	ID       int    `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	OpenCode string `json:"open_code"`
}

// UniqueCode is a deduplicated open-code text with its stable id.
// CodeID is 1-based in order of first appearance.
type UniqueCode struct {
	CodeID int    `json:"code_id"`
	Text   string `json:"open_code"`
}

// FilterVerdict is the filtering decision for one unique code.
// ExcludeReason is non-empty iff Retain is false.
type FilterVerdict struct {
	CodeID        int    `json:"code_id"`
	Retain        bool   `json:"retain"`
	ExcludeReason string `json:"exclude_reason"`
}

// UniqueCodeRow is the unique-code view with filter and axial results
// attached by code id.
type UniqueCodeRow struct {
	CodeID        int    `json:"code_id"`
	OpenCode      string `json:"open_code"`
	Retain        bool   `json:"retain"`
	ExcludeReason string `json:"exclude_reason"`
	AxialCode     string `json:"axial_code,omitempty"`
}

// CodeRow is the row-level view: the original record plus results
// re-attached through the open_code text → code_id lookup.
// CodeID 0 means the text could not be resolved against the unique set.
type CodeRow struct {
	OpenCodeRecord
	CodeID        int    `json:"code_id"`
	Retain        bool   `json:"retain"`
	ExcludeReason string `json:"exclude_reason"`
	AxialCode     string `json:"axial_code,omitempty"`
}

// Resolved reports whether the row's open code was found in the unique set.
func (r CodeRow) Resolved() bool {
	return r.CodeID > 0
}

// AxialSummaryRow is one axial group: its distinct member open codes
// (sorted, "; "-joined) and their count. Rows with an empty axial code
// never appear in a summary.
type AxialSummaryRow struct {
	AxialCode       string `json:"axial_code"`
	MemberOpenCodes string `json:"member_open_codes"`
	NMembers        int    `json:"n_members"`
}

// AggregateConcept is one selective-coding concept covering a subset of
// the axial codes.
type AggregateConcept struct {
	Concept           string   `json:"concept"`
	Definition        string   `json:"definition"`
	CoveredAxialCodes []string `json:"covered_axial_codes"`
}

// CoverageFinding records how an aggregate-concept set deviates from a
// strict partition of the axial codes. All three lists empty means the
// partition is valid.
type CoverageFinding struct {
	Missing    []string `json:"missing_axial_codes"`
	Extra      []string `json:"extra_axial_codes_in_output"`
	Duplicated []string `json:"duplicated_axial_codes"`
}

// Clean reports whether the covered codes form a strict partition.
func (f CoverageFinding) Clean() bool {
	return len(f.Missing) == 0 && len(f.Extra) == 0 && len(f.Duplicated) == 0
}

// SelectiveResult is the parsed selective-coding output plus an optional
// coverage warning. RawText keeps the model's original reply for audit.
type SelectiveResult struct {
	AggregateConcepts []AggregateConcept `json:"aggregate_concepts"`
	Coverage          *CoverageFinding   `json:"coverage_warning,omitempty"`
	RawText           string             `json:"-"`
}

// StorylineResult is the terminal narrative output. Anchors keep the
// model-defined shape; only non-emptiness is enforced.
type StorylineResult struct {
	Storyline string            `json:"storyline"`
	Anchors   []json.RawMessage `json:"anchors"`
	RawText   string            `json:"-"`
}
