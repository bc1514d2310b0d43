package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/pkravets/thema/internal/model"
	"github.com/pkravets/thema/internal/oracle"
)

func TestBuildSelectivePayload_TruncatesExcerpts(t *testing.T) {
	long := strings.Repeat("码", 300)
	summary := []model.AxialSummaryRow{
		{AxialCode: "theme", MemberOpenCodes: long},
		{AxialCode: "", MemberOpenCodes: "skipped"},
	}

	payload, err := buildSelectivePayload(summary)
	if err != nil {
		t.Fatalf("buildSelectivePayload: %v", err)
	}

	var envelope struct {
		AxialItems []selectiveItem `json:"axial_items"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		t.Fatalf("Payload does not unmarshal: %v", err)
	}

	if len(envelope.AxialItems) != 1 {
		t.Fatalf("Expected empty axial code to be skipped, got %d items", len(envelope.AxialItems))
	}
	if got := len([]rune(envelope.AxialItems[0].MemberOpenCodesExcerpt)); got != selectiveExcerptLimit {
		t.Errorf("Expected excerpt truncated to %d runes, got %d", selectiveExcerptLimit, got)
	}
}

func TestSelectiveCoder_Aggregate_Success(t *testing.T) {
	reply := `{"aggregate_concepts": [
		{"concept": " pressure ", "definition": " d ", "covered_axial_codes": ["workload", " health ", ""]}
	]}`
	mock := &replyOracle{replies: []string{reply}}
	coder := NewSelectiveCoder(mock, "test-model", selectiveTimeout)

	result := coder.Aggregate(context.Background(), []model.AxialSummaryRow{{AxialCode: "workload"}})

	if len(result.AggregateConcepts) != 1 {
		t.Fatalf("Expected 1 concept, got %d", len(result.AggregateConcepts))
	}
	concept := result.AggregateConcepts[0]
	if concept.Concept != "pressure" || concept.Definition != "d" {
		t.Errorf("Expected trimmed fields, got %+v", concept)
	}
	if len(concept.CoveredAxialCodes) != 2 {
		t.Errorf("Expected empty covered codes dropped, got %v", concept.CoveredAxialCodes)
	}
	if result.RawText != reply {
		t.Error("Expected raw reply preserved")
	}
}

func TestSelectiveCoder_Aggregate_FailureYieldsEmptyResult(t *testing.T) {
	callErr := &oracle.CallError{Err: errors.New("down")}
	mock := &replyOracle{
		replies: []string{"", "", ""},
		errs:    []error{callErr, callErr, callErr},
	}
	coder := NewSelectiveCoder(mock, "test-model", selectiveTimeout)

	result := coder.Aggregate(context.Background(), []model.AxialSummaryRow{{AxialCode: "t"}})

	if result == nil {
		t.Fatal("Expected empty result, not nil")
	}
	if len(result.AggregateConcepts) != 0 {
		t.Errorf("Expected no concepts after total failure, got %v", result.AggregateConcepts)
	}
	if mock.calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", mock.calls)
	}
}

func TestSelectiveCoder_Aggregate_RetriesUnparsable(t *testing.T) {
	mock := &replyOracle{replies: []string{
		"no json here",
		`{"aggregate_concepts": [{"concept": "c", "definition": "d", "covered_axial_codes": ["t"]}]}`,
	}}
	coder := NewSelectiveCoder(mock, "test-model", selectiveTimeout)

	result := coder.Aggregate(context.Background(), []model.AxialSummaryRow{{AxialCode: "t"}})

	if len(result.AggregateConcepts) != 1 {
		t.Errorf("Expected retry to recover, got %v", result.AggregateConcepts)
	}
}
