package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/pkravets/thema/internal/model"
	"github.com/pkravets/thema/internal/oracle"
)

// stageOracle dispatches on the system prompt so one mock can serve all
// five stages of a full run
type stageOracle struct {
	t           *testing.T
	openReplies map[string]string // answer text -> open code
	dropCodes   map[string]string // open code -> exclude reason
	axialByCode map[string]string // open code -> axial code
	storyline   string
}

func (o *stageOracle) Chat(ctx context.Context, req oracle.ChatRequest) (string, error) {
	switch req.System {
	case systemPromptOpen:
		return o.openReply(req.User)
	case systemPromptFilter:
		return o.filterReply(req.User)
	case systemPromptAxial:
		return o.axialReply(req.User)
	case systemPromptSelective:
		return o.selectiveReply(req.User)
	case systemPromptStoryline:
		return o.storyline, nil
	}
	o.t.Fatalf("Unexpected system prompt: %q", req.System)
	return "", nil
}

func (o *stageOracle) openReply(user string) (string, error) {
	for answer, code := range o.openReplies {
		if strings.Contains(user, answer) {
			return fmt.Sprintf(`{"open_code": %q}`, code), nil
		}
	}
	o.t.Fatalf("Open-coding request for unknown answer: %q", user)
	return "", nil
}

// userJSON pulls the embedded request payload back out of the prompt text
func userJSON(t *testing.T, user string, v any) {
	t.Helper()
	start := strings.Index(user, "{")
	end := strings.LastIndex(user, "}")
	if start < 0 || end <= start {
		t.Fatalf("No JSON payload in user prompt: %q", user)
	}
	if err := json.Unmarshal([]byte(user[start:end+1]), v); err != nil {
		t.Fatalf("Payload does not unmarshal: %v", err)
	}
}

func (o *stageOracle) filterReply(user string) (string, error) {
	var payload struct {
		OpenCodes []struct {
			ID   int    `json:"id"`
			Text string `json:"text"`
		} `json:"open_codes"`
	}
	userJSON(o.t, user, &payload)

	entries := make([]map[string]any, 0, len(payload.OpenCodes))
	for _, item := range payload.OpenCodes {
		entry := map[string]any{"id": item.ID, "retain": true, "exclude_reason": ""}
		if reason, drop := o.dropCodes[item.Text]; drop {
			entry["retain"] = false
			entry["exclude_reason"] = reason
		}
		entries = append(entries, entry)
	}
	reply, _ := json.Marshal(map[string]any{"filtering": entries})
	return string(reply), nil
}

func (o *stageOracle) axialReply(user string) (string, error) {
	var payload struct {
		OpenCodes []struct {
			ID   int    `json:"id"`
			Text string `json:"text"`
		} `json:"open_codes"`
	}
	userJSON(o.t, user, &payload)

	groups := make(map[string][]int)
	var order []string
	for _, item := range payload.OpenCodes {
		axial, ok := o.axialByCode[item.Text]
		if !ok {
			o.t.Fatalf("Axial request for unexpected code %q", item.Text)
		}
		if _, seen := groups[axial]; !seen {
			order = append(order, axial)
		}
		groups[axial] = append(groups[axial], item.ID)
	}

	wire := make([]map[string]any, 0, len(order))
	for _, axial := range order {
		wire = append(wire, map[string]any{"axial_code": axial, "member_ids": groups[axial]})
	}
	reply, _ := json.Marshal(map[string]any{"axial_coding": wire})
	return string(reply), nil
}

func (o *stageOracle) selectiveReply(user string) (string, error) {
	var payload struct {
		AxialItems []selectiveItem `json:"axial_items"`
	}
	userJSON(o.t, user, &payload)

	covered := make([]string, len(payload.AxialItems))
	for i, item := range payload.AxialItems {
		covered[i] = item.AxialCode
	}
	reply, _ := json.Marshal(map[string]any{
		"aggregate_concepts": []map[string]any{
			{"concept": "core concept", "definition": "def", "covered_axial_codes": covered},
		},
	})
	return string(reply), nil
}

func newTestPipeline(client oracle.Client) *Pipeline {
	cfg := model.DefaultConfig()
	p := New(cfg, client)
	p.progress = io.Discard
	return p
}

const testTranscript = `Q: 你觉得工作压力大吗？
A: 是的，压力很大
Q: 平时怎么休息？
A: 基本没时间休息
Q: 还有什么想说的吗？
A: 没有了
`

func TestPipeline_Run_EndToEnd(t *testing.T) {
	mock := &stageOracle{
		t: t,
		openReplies: map[string]string{
			"是的，压力很大": "压力大",
			"基本没时间休息": "缺乏休息",
			"没有了":     "无补充",
		},
		dropCodes:   map[string]string{"无补充": "not relevant to the study"},
		axialByCode: map[string]string{"压力大": "工作负荷", "缺乏休息": "工作负荷"},
		storyline:   `{"storyline": "Work overload dominates.", "anchors": [{"claim": "x", "axial_code": "工作负荷"}]}`,
	}

	result, err := newTestPipeline(mock).Run(context.Background(), testTranscript)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Records) != 3 {
		t.Fatalf("Expected 3 open-coded records, got %d", len(result.Records))
	}
	if len(result.UniqueRows) != 3 {
		t.Fatalf("Expected 3 unique code rows, got %d", len(result.UniqueRows))
	}

	// The dropped code carries its verdict; the others are retained
	for _, row := range result.UniqueRows {
		if row.OpenCode == "无补充" {
			if row.Retain || row.ExcludeReason == "" {
				t.Errorf("Expected 无补充 excluded with a reason, got %+v", row)
			}
		} else if !row.Retain {
			t.Errorf("Expected %q retained, got %+v", row.OpenCode, row)
		}
	}

	if len(result.RetainedWithAxial) != 2 {
		t.Fatalf("Expected 2 retained codes, got %d", len(result.RetainedWithAxial))
	}
	for _, row := range result.RetainedWithAxial {
		if row.AxialCode != "工作负荷" {
			t.Errorf("Expected axial code 工作负荷 on %q, got %q", row.OpenCode, row.AxialCode)
		}
	}

	// Identity threading: every row-level record resolves to its code id
	for _, row := range result.RowsWithAxial {
		if !row.Resolved() {
			t.Errorf("Expected row %d resolved, got %+v", row.ID, row)
		}
	}

	if len(result.AxialSummary) != 1 {
		t.Fatalf("Expected 1 axial theme, got %d", len(result.AxialSummary))
	}
	summary := result.AxialSummary[0]
	if summary.AxialCode != "工作负荷" || summary.NMembers != 2 {
		t.Errorf("Unexpected axial summary %+v", summary)
	}

	if result.Selective.Coverage != nil {
		t.Errorf("Expected clean coverage, got %+v", result.Selective.Coverage)
	}
	if len(result.Selective.AggregateConcepts) != 1 {
		t.Fatalf("Expected 1 aggregate concept, got %d", len(result.Selective.AggregateConcepts))
	}

	if result.Storyline.Storyline != "Work overload dominates." {
		t.Errorf("Unexpected storyline %q", result.Storyline.Storyline)
	}

	if result.Score.Index < 80 || result.Score.Confidence != "high" {
		t.Errorf("Expected a healthy run score, got %d (%s)", result.Score.Index, result.Score.Confidence)
	}
}

func TestPipeline_Run_EmptyTranscript(t *testing.T) {
	_, err := newTestPipeline(&stageOracle{t: t}).Run(context.Background(), "no markers here")
	if err == nil {
		t.Fatal("Expected error for transcript without Q/A blocks")
	}
}

func TestPipeline_Run_EmptyStorylineAborts(t *testing.T) {
	mock := &stageOracle{
		t:           t,
		openReplies: map[string]string{"是的，压力很大": "压力大"},
		axialByCode: map[string]string{"压力大": "工作负荷"},
		storyline:   `{"storyline": "", "anchors": []}`,
	}

	_, err := newTestPipeline(mock).Run(context.Background(), "Q: q\nA: 是的，压力很大\n")
	if err == nil {
		t.Fatal("Expected terminal validation error")
	}
	if !strings.Contains(err.Error(), "terminal validation") {
		t.Errorf("Expected terminal validation wrap, got %v", err)
	}
}
