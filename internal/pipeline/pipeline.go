package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkravets/thema/internal/classify"
	"github.com/pkravets/thema/internal/codes"
	"github.com/pkravets/thema/internal/extract"
	"github.com/pkravets/thema/internal/model"
	"github.com/pkravets/thema/internal/oracle"
	"github.com/pkravets/thema/internal/score"
	"github.com/pkravets/thema/internal/validate"
)

// Pipeline runs the five coding stages strictly in order: open coding,
// filtering, axial coding, selective coding, storyline. Each stage owns
// the entity type it produces; all joins between stages go through the
// codebook's stable ids.
type Pipeline struct {
	cfg *model.Config

	opener     *OpenCoder
	classifier *classify.Classifier
	axial      *AxialCoder
	selective  *SelectiveCoder
	storyline  *StorylineGenerator

	progress io.Writer
}

// Per-stage call timeouts. The later stages reason over the whole code
// set in one call and need far more headroom than a single-item call.
const (
	axialTimeout     = 240 * time.Second
	selectiveTimeout = 300 * time.Second
	storylineTimeout = 420 * time.Second
)

// New wires the stages onto one oracle client
func New(cfg *model.Config, client oracle.Client) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		opener:     NewOpenCoder(client, cfg.Open, cfg.Models.Open),
		classifier: classify.New(client, cfg.Filter, cfg.Models.Filter, systemPromptFilter),
		axial:      NewAxialCoder(client, cfg.Models.Axial, axialTimeout),
		selective:  NewSelectiveCoder(client, cfg.Models.Selective, selectiveTimeout),
		storyline:  NewStorylineGenerator(client, cfg.Models.Storyline, storylineTimeout),
		progress:   os.Stderr,
	}
}

// Result carries every stage artifact for the output layer. The core
// exposes plain in-memory structures; file I/O lives in the renderer.
type Result struct {
	Records []model.OpenCodeRecord

	UniqueRows []model.UniqueCodeRow
	Rows       []model.CodeRow

	RetainedWithAxial []model.UniqueCodeRow
	RowsWithAxial     []model.CodeRow
	AxialSummary      []model.AxialSummaryRow

	Selective *model.SelectiveResult
	Storyline *model.StorylineResult

	Score model.RunScore
}

// Run executes the full pipeline over one transcript
func (p *Pipeline) Run(ctx context.Context, text string) (*Result, error) {
	blocks := extract.SegmentTranscript(text)
	if len(blocks) == 0 {
		return nil, fmt.Errorf("no Q/A blocks found in transcript")
	}
	p.printf("[open] %d Q/A blocks segmented\n", len(blocks))

	// Stage 1: open coding, one call per answer
	records := p.opener.Code(ctx, blocks)
	p.printf("[open] %d answers coded\n", len(records))

	// Stage 2: dedupe, then batched filtering with bisection recovery
	book := codes.Build(records)
	p.printf("[filter] open_code total=%d, unique=%d\n", len(records), book.Size())

	verdicts := p.classifier.Filter(ctx, book.Texts())
	uniqueRows := book.AttachVerdicts(verdicts)
	rows := book.AttachToRows(records, verdicts)

	retained := codes.Retained(uniqueRows)
	p.printf("[filter] retained %d of %d unique codes\n", len(retained), book.Size())

	// Stage 3: axial coding over the retained set
	retainedCodes := make([]model.UniqueCode, len(retained))
	for i, row := range retained {
		retainedCodes[i] = model.UniqueCode{CodeID: row.CodeID, Text: row.OpenCode}
	}
	axialByID := p.axial.Assign(ctx, retainedCodes)

	retainedWithAxial := codes.AttachAxial(retained, axialByID)
	rowsWithAxial := codes.AttachAxialToRows(rows, codes.AxialByID(retainedWithAxial))
	summary := MakeAxialSummary(retainedWithAxial)
	p.printf("[axial] %d themes over %d retained codes\n", len(summary), len(retained))

	// Stage 4: selective coding plus coverage check
	selective := p.selective.Aggregate(ctx, summary)

	axialCodes := make([]string, len(summary))
	for i, row := range summary {
		axialCodes[i] = row.AxialCode
	}
	if finding := validate.Coverage(selective, axialCodes); !finding.Clean() {
		selective.Coverage = &finding
		p.printf("[selective] coverage warning: %d missing, %d extra, %d duplicated\n",
			len(finding.Missing), len(finding.Extra), len(finding.Duplicated))
	}
	p.printf("[selective] %d aggregate concepts\n", len(selective.AggregateConcepts))

	// Stage 5: storyline, the only stage allowed to abort the run
	story, err := p.storyline.Generate(ctx, selective, summary)
	if err != nil {
		return nil, err
	}
	if err := validate.Storyline(story); err != nil {
		return nil, fmt.Errorf("terminal validation: %w", err)
	}
	p.printf("[storyline] synthesized with %d anchors\n", len(story.Anchors))

	runScore := score.NewScorer().Calculate(records, uniqueRows, retainedWithAxial, selective)
	p.printf("[score] run health %d/100 (%s confidence)\n", runScore.Index, runScore.Confidence)

	return &Result{
		Records:           records,
		UniqueRows:        uniqueRows,
		Rows:              rows,
		RetainedWithAxial: retainedWithAxial,
		RowsWithAxial:     rowsWithAxial,
		AxialSummary:      summary,
		Selective:         selective,
		Storyline:         story,
		Score:             runScore,
	}, nil
}

func (p *Pipeline) printf(format string, args ...any) {
	if p.progress != nil {
		fmt.Fprintf(p.progress, format, args...)
	}
}
