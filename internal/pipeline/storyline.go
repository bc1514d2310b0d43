package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pkravets/thema/internal/extract"
	"github.com/pkravets/thema/internal/model"
	"github.com/pkravets/thema/internal/oracle"
)

const (
	maxExamplesPerAxial = 6
	maxExampleChars     = 28
)

var exampleSeparator = regexp.MustCompile(`[;；、]\s*|\|\s*|,\s*`)

// StorylineGenerator synthesizes the final narrative from the selective
// and axial results in one oracle call
type StorylineGenerator struct {
	client  oracle.Client
	model   string
	timeout time.Duration
}

// NewStorylineGenerator creates the storyline stage
func NewStorylineGenerator(client oracle.Client, modelName string, timeout time.Duration) *StorylineGenerator {
	return &StorylineGenerator{client: client, model: modelName, timeout: timeout}
}

// pickExamples splits a "; "-joined member text into up to maxItems
// short example strings, deduplicated and truncated to maxChars runes
func pickExamples(memberText string, maxItems, maxChars int) []string {
	s := strings.TrimSpace(strings.ReplaceAll(memberText, "\n", " "))
	if s == "" {
		return nil
	}

	parts := exampleSeparator.Split(s, -1)

	var distinct []string
	seen := make(map[string]bool)
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		distinct = append(distinct, p)
	}

	var out []string
	outSeen := make(map[string]bool)
	for _, p := range distinct {
		if len(out) >= maxItems {
			break
		}
		if runes := []rune(p); len(runes) > maxChars {
			p = string(runes[:maxChars])
		}
		if p == "" || outSeen[p] {
			continue
		}
		outSeen[p] = true
		out = append(out, p)
	}
	return out
}

type storylineTheme struct {
	AxialCode        string   `json:"axial_code"`
	OpenCodeExamples []string `json:"open_code_examples"`
}

// buildStorylinePayload packs all three coding layers into one compact
// request object
func buildStorylinePayload(selective *model.SelectiveResult, summary []model.AxialSummaryRow) ([]byte, error) {
	themes := make([]storylineTheme, 0, len(summary))
	for _, row := range summary {
		axial := strings.TrimSpace(row.AxialCode)
		if axial == "" {
			continue
		}
		themes = append(themes, storylineTheme{
			AxialCode:        axial,
			OpenCodeExamples: pickExamples(row.MemberOpenCodes, maxExamplesPerAxial, maxExampleChars),
		})
	}

	return json.Marshal(map[string]any{
		"aggregate_concepts": selective.AggregateConcepts,
		"axial_themes":       themes,
	})
}

// Generate runs the terminal synthesis call. Call errors are fatal here:
// there is no downstream stage left to absorb them.
func (g *StorylineGenerator) Generate(ctx context.Context, selective *model.SelectiveResult, summary []model.AxialSummaryRow) (*model.StorylineResult, error) {
	payload, err := buildStorylinePayload(selective, summary)
	if err != nil {
		return nil, fmt.Errorf("build storyline payload: %w", err)
	}

	user := "Below are the three coding layers (aggregate_concepts + axial_themes with open-code examples):\n" +
		string(payload) +
		"\n\nWrite the storyline per the system prompt and reply with strict JSON only (storyline + anchors)."

	raw, err := g.client.Chat(ctx, oracle.ChatRequest{
		Model:   g.model,
		System:  systemPromptStoryline,
		User:    user,
		Timeout: g.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("storyline call: %w", err)
	}

	result := &model.StorylineResult{RawText: raw}
	if obj, ok := extract.JSONObject(raw); ok {
		// Validation decides whether the parse was good enough
		_ = json.Unmarshal(obj, result)
	}

	return result, nil
}
