package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pkravets/thema/internal/extract"
	"github.com/pkravets/thema/internal/model"
	"github.com/pkravets/thema/internal/oracle"
)

// stageSleepFunc is the sleep used for retry and pacing pauses
// (injectable for tests)
var stageSleepFunc = time.Sleep

// Last-ditch recovery when the reply is not a JSON object but still
// contains the field
var openCodePattern = regexp.MustCompile(`"open_code"\s*:\s*"([^"]+)"`)

// OpenCoder assigns one open code per Q/A block, one oracle call each
type OpenCoder struct {
	client oracle.Client
	model  string

	maxRetries int
	retrySleep time.Duration
	itemPause  time.Duration
	timeout    time.Duration
}

// NewOpenCoder creates the open-coding stage
func NewOpenCoder(client oracle.Client, cfg model.OpenConfig, modelName string) *OpenCoder {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &OpenCoder{
		client:     client,
		model:      modelName,
		maxRetries: maxRetries,
		retrySleep: cfg.RetrySleep,
		itemPause:  cfg.ItemPause,
		timeout:    cfg.Timeout,
	}
}

// Code produces one OpenCodeRecord per block, in order, with 1-based
// ids. A block whose calls all fail gets an explicit failure marker as
// its code rather than being dropped, so row identity stays intact.
func (o *OpenCoder) Code(ctx context.Context, blocks []model.QABlock) []model.OpenCodeRecord {
	records := make([]model.OpenCodeRecord, 0, len(blocks))

	for i, block := range blocks {
		records = append(records, model.OpenCodeRecord{
			ID:       i + 1,
			Question: block.Question,
			Answer:   block.Answer,
			OpenCode: o.codeOne(ctx, block),
		})

		if i < len(blocks)-1 && o.itemPause > 0 {
			stageSleepFunc(o.itemPause)
		}
	}

	return records
}

func (o *OpenCoder) codeOne(ctx context.Context, block model.QABlock) string {
	user := fmt.Sprintf(
		"Below is one interview Q/A fragment.\n[Question]: %s\n[Answer]: %s\n\n"+
			"Open-code the answer only; the question is context to help you read it, not material to code.",
		block.Question, block.Answer)

	var lastErr error
	for attempt := 1; attempt <= o.maxRetries; attempt++ {
		raw, err := o.client.Chat(ctx, oracle.ChatRequest{
			Model:   o.model,
			System:  systemPromptOpen,
			User:    user,
			Timeout: o.timeout,
		})
		if err != nil {
			lastErr = err
			if attempt < o.maxRetries {
				stageSleepFunc(o.retrySleep)
			}
			continue
		}

		reply := strings.TrimSpace(raw)

		if obj, ok := extract.JSONObject(reply); ok {
			if code, ok := extract.StringField(obj, "open_code"); ok {
				return strings.TrimSpace(code)
			}
		}
		if m := openCodePattern.FindStringSubmatch(reply); m != nil {
			return strings.TrimSpace(m[1])
		}

		// Unstructured reply: keep it verbatim rather than lose the item
		return reply
	}

	return fmt.Sprintf("[oracle failed after %d attempts: %v]", o.maxRetries, lastErr)
}
