package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkravets/thema/internal/extract"
	"github.com/pkravets/thema/internal/model"
	"github.com/pkravets/thema/internal/oracle"
)

// selectiveExcerptLimit bounds the member-codes excerpt sent per axial
// code, in runes, to keep the payload inside the model's context
const selectiveExcerptLimit = 220

// SelectiveCoder distills the axial summary into aggregate concepts
type SelectiveCoder struct {
	client oracle.Client
	model  string

	maxRetries int
	retrySleep time.Duration
	timeout    time.Duration
}

// NewSelectiveCoder creates the selective-coding stage
func NewSelectiveCoder(client oracle.Client, modelName string, timeout time.Duration) *SelectiveCoder {
	return &SelectiveCoder{
		client:     client,
		model:      modelName,
		maxRetries: 3,
		retrySleep: 3 * time.Second,
		timeout:    timeout,
	}
}

type selectiveItem struct {
	AxialCode              string `json:"axial_code"`
	MemberOpenCodesExcerpt string `json:"member_open_codes_excerpt"`
}

// buildSelectivePayload compacts the axial summary into the wire shape,
// truncating each member excerpt
func buildSelectivePayload(summary []model.AxialSummaryRow) ([]byte, error) {
	items := make([]selectiveItem, 0, len(summary))
	for _, row := range summary {
		axial := strings.TrimSpace(row.AxialCode)
		if axial == "" {
			continue
		}
		excerpt := strings.TrimSpace(strings.ReplaceAll(row.MemberOpenCodes, "\n", " "))
		if runes := []rune(excerpt); len(runes) > selectiveExcerptLimit {
			excerpt = string(runes[:selectiveExcerptLimit])
		}
		items = append(items, selectiveItem{AxialCode: axial, MemberOpenCodesExcerpt: excerpt})
	}

	return json.Marshal(map[string]any{"axial_items": items})
}

// Aggregate runs selective coding. Persistent call or parse failure
// yields an empty result rather than an error; the coverage validator
// then reports every axial code missing, which surfaces the problem as
// a warning on the output payload.
func (s *SelectiveCoder) Aggregate(ctx context.Context, summary []model.AxialSummaryRow) *model.SelectiveResult {
	payload, err := buildSelectivePayload(summary)
	if err != nil {
		return &model.SelectiveResult{}
	}

	user := "Below are all axial codes with short member excerpts (possibly truncated):\n" +
		string(payload) +
		"\n\nDistill aggregate concepts per the system prompt. Cover every axial_code exactly once. Reply with strict JSON only."

	result := &model.SelectiveResult{}
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		raw, err := s.client.Chat(ctx, oracle.ChatRequest{
			Model:   s.model,
			System:  systemPromptSelective,
			User:    user,
			Timeout: s.timeout,
		})
		if err == nil {
			result.RawText = raw
			if obj, ok := extract.JSONObject(raw); ok {
				var parsed model.SelectiveResult
				if jsonErr := json.Unmarshal(obj, &parsed); jsonErr == nil && parsed.AggregateConcepts != nil {
					parsed.RawText = raw
					return normalizeSelective(&parsed)
				}
			}
		}
		if attempt < s.maxRetries {
			stageSleepFunc(s.retrySleep)
		}
	}

	return result
}

// normalizeSelective trims the free-text fields and drops empty covered
// codes, keeping the id-free text joins downstream deterministic
func normalizeSelective(result *model.SelectiveResult) *model.SelectiveResult {
	for i := range result.AggregateConcepts {
		c := &result.AggregateConcepts[i]
		c.Concept = strings.TrimSpace(c.Concept)
		c.Definition = strings.TrimSpace(c.Definition)

		covered := c.CoveredAxialCodes[:0]
		for _, axial := range c.CoveredAxialCodes {
			if trimmed := strings.TrimSpace(axial); trimmed != "" {
				covered = append(covered, trimmed)
			}
		}
		c.CoveredAxialCodes = covered
	}
	return result
}
