package pipeline

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/pkravets/thema/internal/extract"
	"github.com/pkravets/thema/internal/model"
	"github.com/pkravets/thema/internal/oracle"
)

// AxialCoder groups retained open codes into themes in one oracle call
type AxialCoder struct {
	client oracle.Client
	model  string

	maxRetries int
	retrySleep time.Duration
	timeout    time.Duration
}

// NewAxialCoder creates the axial-coding stage
func NewAxialCoder(client oracle.Client, modelName string, timeout time.Duration) *AxialCoder {
	return &AxialCoder{
		client:     client,
		model:      modelName,
		maxRetries: 3,
		retrySleep: 3 * time.Second,
		timeout:    timeout,
	}
}

type axialEnvelope struct {
	AxialCoding []axialGroup `json:"axial_coding"`
}

type axialGroup struct {
	AxialCode string            `json:"axial_code"`
	MemberIDs []json.RawMessage `json:"member_ids"`
}

// Assign returns a code id → axial label mapping. Exhausted retries
// yield an empty map: the codes simply stay unclassified, which the
// summary stage then excludes. This stage never aborts the run.
func (a *AxialCoder) Assign(ctx context.Context, retained []model.UniqueCode) map[int]string {
	if len(retained) == 0 {
		return map[int]string{}
	}

	items := make([]map[string]any, len(retained))
	for i, code := range retained {
		items[i] = map[string]any{"id": code.CodeID, "text": code.Text}
	}
	payload, err := json.Marshal(map[string]any{"open_codes": items})
	if err != nil {
		return map[int]string{}
	}

	user := "Below are the retained open codes (JSON):\n" +
		string(payload) +
		"\n\nGroup them into axial codes per the system prompt and reply with strict JSON only."

	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		raw, err := a.client.Chat(ctx, oracle.ChatRequest{
			Model:   a.model,
			System:  systemPromptAxial,
			User:    user,
			Timeout: a.timeout,
		})
		if err == nil {
			if assignments, ok := parseAxialReply(raw); ok {
				return assignments
			}
		}
		if attempt < a.maxRetries {
			stageSleepFunc(a.retrySleep)
		}
	}

	return map[int]string{}
}

func parseAxialReply(raw string) (map[int]string, bool) {
	obj, ok := extract.JSONObject(raw)
	if !ok {
		return nil, false
	}

	var envelope axialEnvelope
	if err := json.Unmarshal(obj, &envelope); err != nil {
		return nil, false
	}
	if envelope.AxialCoding == nil {
		return nil, false
	}

	assignments := make(map[int]string)
	for _, group := range envelope.AxialCoding {
		axial := strings.TrimSpace(group.AxialCode)
		for _, rawID := range group.MemberIDs {
			if id, ok := extract.IntValue(rawID); ok {
				assignments[id] = axial
			}
		}
	}

	return assignments, true
}

// MakeAxialSummary folds retained, classified unique codes into one row
// per axial code: distinct member texts sorted and "; "-joined, plus
// their count. Codes with an empty axial label are excluded entirely
// rather than counted as a zero-member group.
func MakeAxialSummary(rows []model.UniqueCodeRow) []model.AxialSummaryRow {
	members := make(map[string]map[string]bool)
	for _, row := range rows {
		axial := strings.TrimSpace(row.AxialCode)
		if axial == "" {
			continue
		}
		if members[axial] == nil {
			members[axial] = make(map[string]bool)
		}
		members[axial][row.OpenCode] = true
	}

	axialCodes := make([]string, 0, len(members))
	for axial := range members {
		axialCodes = append(axialCodes, axial)
	}
	sort.Strings(axialCodes)

	summary := make([]model.AxialSummaryRow, 0, len(axialCodes))
	for _, axial := range axialCodes {
		texts := make([]string, 0, len(members[axial]))
		for text := range members[axial] {
			texts = append(texts, text)
		}
		sort.Strings(texts)

		summary = append(summary, model.AxialSummaryRow{
			AxialCode:       axial,
			MemberOpenCodes: strings.Join(texts, "; "),
			NMembers:        len(texts),
		})
	}

	return summary
}
