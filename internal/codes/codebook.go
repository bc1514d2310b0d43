package codes

import (
	"strings"

	"github.com/pkravets/thema/internal/model"
)

// Default reasons attached when a join comes up empty
const (
	noVerdictReason  = "no verdict recorded for this code; requires manual review"
	unresolvedReason = "open code not present in unique set"
)

// Codebook maintains the bijection between deduplicated open-code text
// and stable 1-based code ids, assigned in order of first appearance.
// All later stages join on code id; the text lookup exists only to
// re-attach results onto row-level records.
type Codebook struct {
	codes  []model.UniqueCode
	byText map[string]int
}

// Build deduplicates the open codes of the given records, preserving
// first-appearance order. Empty codes are skipped.
func Build(records []model.OpenCodeRecord) *Codebook {
	book := &Codebook{byText: make(map[string]int)}

	for _, rec := range records {
		text := strings.TrimSpace(rec.OpenCode)
		if text == "" {
			continue
		}
		if _, exists := book.byText[text]; exists {
			continue
		}
		id := len(book.codes) + 1
		book.codes = append(book.codes, model.UniqueCode{CodeID: id, Text: text})
		book.byText[text] = id
	}

	return book
}

// Size returns the number of unique codes
func (b *Codebook) Size() int {
	return len(b.codes)
}

// Codes returns the unique codes in id order
func (b *Codebook) Codes() []model.UniqueCode {
	out := make([]model.UniqueCode, len(b.codes))
	copy(out, b.codes)
	return out
}

// Texts returns the unique code texts in id order (id = index + 1)
func (b *Codebook) Texts() []string {
	out := make([]string, len(b.codes))
	for i, c := range b.codes {
		out[i] = c.Text
	}
	return out
}

// ID resolves a code text to its id. Text not in the unique set yields
// ok=false; by construction that should not happen for codes the book
// was built from, but callers must tolerate it.
func (b *Codebook) ID(text string) (int, bool) {
	id, exists := b.byText[strings.TrimSpace(text)]
	return id, exists
}

// Text resolves a code id back to its text
func (b *Codebook) Text(id int) (string, bool) {
	if id < 1 || id > len(b.codes) {
		return "", false
	}
	return b.codes[id-1].Text, true
}

// AttachVerdicts builds the unique-code view: one row per code id with
// its filter verdict joined exactly by id. A code with no verdict gets
// a manual-review default rather than being dropped.
func (b *Codebook) AttachVerdicts(verdicts map[int]model.FilterVerdict) []model.UniqueCodeRow {
	rows := make([]model.UniqueCodeRow, 0, len(b.codes))

	for _, code := range b.codes {
		row := model.UniqueCodeRow{
			CodeID:        code.CodeID,
			OpenCode:      code.Text,
			ExcludeReason: noVerdictReason,
		}
		if v, exists := verdicts[code.CodeID]; exists {
			row.Retain = v.Retain
			row.ExcludeReason = v.ExcludeReason
		}
		rows = append(rows, row)
	}

	return rows
}

// AttachToRows re-attaches filter verdicts onto the original row-level
// records through the open_code text lookup. This is the one free-text
// join in the pipeline; a row whose text is not in the unique set gets
// CodeID 0 and an explicit unresolved marker instead of a wrong join.
func (b *Codebook) AttachToRows(records []model.OpenCodeRecord, verdicts map[int]model.FilterVerdict) []model.CodeRow {
	rows := make([]model.CodeRow, 0, len(records))

	for _, rec := range records {
		row := model.CodeRow{OpenCodeRecord: rec}

		id, resolved := b.ID(rec.OpenCode)
		if !resolved {
			row.ExcludeReason = unresolvedReason
			rows = append(rows, row)
			continue
		}

		row.CodeID = id
		if v, exists := verdicts[id]; exists {
			row.Retain = v.Retain
			row.ExcludeReason = v.ExcludeReason
		} else {
			row.ExcludeReason = noVerdictReason
		}
		rows = append(rows, row)
	}

	return rows
}

// Retained filters the unique view down to retained rows, in id order
func Retained(rows []model.UniqueCodeRow) []model.UniqueCodeRow {
	var out []model.UniqueCodeRow
	for _, row := range rows {
		if row.Retain {
			out = append(out, row)
		}
	}
	return out
}

// AttachAxial annotates unique-code rows with their axial labels by id.
// A code the model left out keeps an empty axial code ("not yet
// classified").
func AttachAxial(rows []model.UniqueCodeRow, axialByID map[int]string) []model.UniqueCodeRow {
	out := make([]model.UniqueCodeRow, len(rows))
	for i, row := range rows {
		row.AxialCode = strings.TrimSpace(axialByID[row.CodeID])
		out[i] = row
	}
	return out
}

// AxialByID extracts the code id → axial label mapping from annotated
// unique rows, for re-attachment one layer further down.
func AxialByID(rows []model.UniqueCodeRow) map[int]string {
	m := make(map[int]string, len(rows))
	for _, row := range rows {
		m[row.CodeID] = row.AxialCode
	}
	return m
}

// AttachAxialToRows annotates row-level records with axial labels via
// their resolved code id. Unresolved rows stay unclassified.
func AttachAxialToRows(rows []model.CodeRow, axialByID map[int]string) []model.CodeRow {
	out := make([]model.CodeRow, len(rows))
	for i, row := range rows {
		if row.Resolved() {
			row.AxialCode = strings.TrimSpace(axialByID[row.CodeID])
		}
		out[i] = row
	}
	return out
}
