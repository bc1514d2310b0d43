package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkravets/thema/internal/model"
)

// Renderer persists every stage artifact under one output directory:
//
//	open_coding.csv
//	filtering/{row_level,unique_with_filter,retain_unique,exclude_unique}.csv
//	axial/{retain_unique_axial,summary,row_level}.csv
//	selective/{raw.txt,aggregate.json,aggregate.csv}
//	storyline/{raw.txt,storyline.txt,storyline.json}
//
// The pipeline itself never touches the filesystem; it hands this layer
// plain in-memory structures.
type Renderer struct {
	dir     string
	verbose bool
}

// NewRenderer creates a renderer rooted at dir
func NewRenderer(dir string, verbose bool) *Renderer {
	return &Renderer{dir: dir, verbose: verbose}
}

// Render writes the full output tree
func (r *Renderer) Render(result *Result) error {
	for _, sub := range []string{"", "filtering", "axial", "selective", "storyline"} {
		if err := os.MkdirAll(filepath.Join(r.dir, sub), 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	if err := r.renderOpen(result.Records); err != nil {
		return err
	}
	if err := r.renderFiltering(result); err != nil {
		return err
	}
	if err := r.renderAxial(result); err != nil {
		return err
	}
	if err := r.renderSelective(result.Selective); err != nil {
		return err
	}
	if err := r.renderStoryline(result.Storyline); err != nil {
		return err
	}
	return r.writeJSON("score.json", result.Score)
}

func (r *Renderer) renderOpen(records []model.OpenCodeRecord) error {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			strconv.Itoa(rec.ID), rec.Question, rec.Answer, rec.OpenCode,
		})
	}
	return r.writeCSV("open_coding.csv", []string{"id", "question", "answer", "open_code"}, rows)
}

func (r *Renderer) renderFiltering(result *Result) error {
	rowRows := make([][]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		rowRows = append(rowRows, []string{
			strconv.Itoa(row.ID), row.Question, row.Answer, row.OpenCode,
			codeIDCell(row.CodeID), strconv.FormatBool(row.Retain), row.ExcludeReason,
		})
	}
	rowHeader := []string{"id", "question", "answer", "open_code", "code_id", "retain", "exclude_reason"}
	if err := r.writeCSV(filepath.Join("filtering", "row_level.csv"), rowHeader, rowRows); err != nil {
		return err
	}

	uniqueHeader := []string{"code_id", "open_code", "retain", "exclude_reason"}
	all := make([][]string, 0, len(result.UniqueRows))
	var kept, dropped [][]string
	for _, row := range result.UniqueRows {
		cells := []string{
			strconv.Itoa(row.CodeID), row.OpenCode,
			strconv.FormatBool(row.Retain), row.ExcludeReason,
		}
		all = append(all, cells)
		if row.Retain {
			kept = append(kept, cells)
		} else {
			dropped = append(dropped, cells)
		}
	}

	if err := r.writeCSV(filepath.Join("filtering", "unique_with_filter.csv"), uniqueHeader, all); err != nil {
		return err
	}
	if err := r.writeCSV(filepath.Join("filtering", "retain_unique.csv"), uniqueHeader, kept); err != nil {
		return err
	}
	return r.writeCSV(filepath.Join("filtering", "exclude_unique.csv"), uniqueHeader, dropped)
}

func (r *Renderer) renderAxial(result *Result) error {
	uniqueRows := make([][]string, 0, len(result.RetainedWithAxial))
	for _, row := range result.RetainedWithAxial {
		uniqueRows = append(uniqueRows, []string{
			strconv.Itoa(row.CodeID), row.OpenCode, row.AxialCode,
		})
	}
	if err := r.writeCSV(filepath.Join("axial", "retain_unique_axial.csv"),
		[]string{"code_id", "open_code", "axial_code"}, uniqueRows); err != nil {
		return err
	}

	summaryRows := make([][]string, 0, len(result.AxialSummary))
	for _, row := range result.AxialSummary {
		summaryRows = append(summaryRows, []string{
			row.AxialCode, row.MemberOpenCodes, strconv.Itoa(row.NMembers),
		})
	}
	if err := r.writeCSV(filepath.Join("axial", "summary.csv"),
		[]string{"axial_code", "member_open_codes", "n_members"}, summaryRows); err != nil {
		return err
	}

	rowRows := make([][]string, 0, len(result.RowsWithAxial))
	for _, row := range result.RowsWithAxial {
		rowRows = append(rowRows, []string{
			strconv.Itoa(row.ID), row.Question, row.Answer, row.OpenCode,
			codeIDCell(row.CodeID), strconv.FormatBool(row.Retain), row.ExcludeReason, row.AxialCode,
		})
	}
	return r.writeCSV(filepath.Join("axial", "row_level.csv"),
		[]string{"id", "question", "answer", "open_code", "code_id", "retain", "exclude_reason", "axial_code"}, rowRows)
}

func (r *Renderer) renderSelective(selective *model.SelectiveResult) error {
	if err := r.writeText(filepath.Join("selective", "raw.txt"), selective.RawText); err != nil {
		return err
	}
	if err := r.writeJSON(filepath.Join("selective", "aggregate.json"), selective); err != nil {
		return err
	}

	rows := make([][]string, 0, len(selective.AggregateConcepts))
	for _, concept := range selective.AggregateConcepts {
		covered := ""
		for i, axial := range concept.CoveredAxialCodes {
			if i > 0 {
				covered += "; "
			}
			covered += axial
		}
		rows = append(rows, []string{concept.Concept, concept.Definition, covered})
	}
	return r.writeCSV(filepath.Join("selective", "aggregate.csv"),
		[]string{"concept", "definition", "covered_axial_codes"}, rows)
}

func (r *Renderer) renderStoryline(story *model.StorylineResult) error {
	if err := r.writeText(filepath.Join("storyline", "raw.txt"), story.RawText); err != nil {
		return err
	}
	if err := r.writeText(filepath.Join("storyline", "storyline.txt"), story.Storyline); err != nil {
		return err
	}
	return r.writeJSON(filepath.Join("storyline", "storyline.json"), story)
}

// RenderSummary prints per-stage counts to stderr
func (r *Renderer) RenderSummary(result *Result) {
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Rows coded:          %d\n", len(result.Records))
	fmt.Fprintf(os.Stderr, "  Unique codes:        %d\n", len(result.UniqueRows))
	fmt.Fprintf(os.Stderr, "  Retained codes:      %d\n", len(result.RetainedWithAxial))
	fmt.Fprintf(os.Stderr, "  Axial themes:        %d\n", len(result.AxialSummary))
	fmt.Fprintf(os.Stderr, "  Aggregate concepts:  %d\n", len(result.Selective.AggregateConcepts))
	if result.Selective.Coverage != nil {
		fmt.Fprintf(os.Stderr, "  Coverage warnings:   missing=%d extra=%d duplicated=%d\n",
			len(result.Selective.Coverage.Missing),
			len(result.Selective.Coverage.Extra),
			len(result.Selective.Coverage.Duplicated))
	}
	fmt.Fprintf(os.Stderr, "  Storyline anchors:   %d\n", len(result.Storyline.Anchors))
	fmt.Fprintf(os.Stderr, "  Run health:          %d/100 (%s confidence)\n", result.Score.Index, result.Score.Confidence)
	fmt.Fprintf(os.Stderr, "\n  Outputs: %s\n\n", r.dir)
}

// codeIDCell renders an unresolved code id as an empty cell
func codeIDCell(id int) string {
	if id == 0 {
		return ""
	}
	return strconv.Itoa(id)
}

func (r *Renderer) writeCSV(name string, header []string, rows [][]string) error {
	path := filepath.Join(r.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	r.note(path)
	return nil
}

func (r *Renderer) writeJSON(name string, v any) error {
	path := filepath.Join(r.dir, name)

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	r.note(path)
	return nil
}

func (r *Renderer) writeText(name, text string) error {
	path := filepath.Join(r.dir, name)

	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	r.note(path)
	return nil
}

func (r *Renderer) note(path string) {
	if r.verbose {
		fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", path)
	}
}
