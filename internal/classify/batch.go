package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pkravets/thema/internal/extract"
	"github.com/pkravets/thema/internal/model"
	"github.com/pkravets/thema/internal/oracle"
)

// classifySleepFunc is the sleep function used between attempts and
// batches (injectable for tests)
var classifySleepFunc = time.Sleep

var (
	errUnparsableReply = errors.New("reply is not a JSON object")
	errNoFilteringList = errors.New("reply has no usable filtering list")
)

// batchRequest is the wire shape sent to the oracle for filtering
type batchRequest struct {
	OpenCodes []wireItem `json:"open_codes"`
}

type wireItem struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// Classifier turns an ordered set of unique codes into one filter verdict
// per code. Batches that keep failing are recursively bisected: a batch
// poisoned by one bad item degrades toward isolating exactly that item
// instead of discarding the whole batch. The base case (a single item
// that still fails) absorbs the failure as a safe "needs manual review"
// verdict, so every input id always ends up with exactly one verdict.
type Classifier struct {
	client oracle.Client
	model  string
	system string

	batchSize  int
	maxRetries int
	retrySleep time.Duration
	cooldown   time.Duration
	timeout    time.Duration
}

// New creates a classifier for the filtering stage
func New(client oracle.Client, cfg model.FilterConfig, modelName, systemPrompt string) *Classifier {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 60
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}

	return &Classifier{
		client:     client,
		model:      modelName,
		system:     systemPrompt,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		retrySleep: cfg.RetrySleep,
		cooldown:   cfg.Cooldown,
		timeout:    cfg.Timeout,
	}
}

// Filter classifies every code and returns one verdict per 1-based code
// id. The result always covers the full id range [1, len(codes)].
func (c *Classifier) Filter(ctx context.Context, codes []string) map[int]model.FilterVerdict {
	verdicts := make(map[int]model.FilterVerdict, len(codes))

	for start := 0; start < len(codes); start += c.batchSize {
		end := start + c.batchSize
		if end > len(codes) {
			end = len(codes)
		}

		c.classifyRange(ctx, codes[start:end], start, verdicts)

		// Cooldown between top-level batches only, not between
		// bisection halves
		if end < len(codes) && c.cooldown > 0 {
			classifySleepFunc(c.cooldown)
		}
	}

	return verdicts
}

// classifyRange classifies codes[0:n] whose global ids are
// offset+1..offset+n, writing results into the shared accumulator.
// Bisection halves own disjoint id ranges, so accumulator writes never
// collide.
func (c *Classifier) classifyRange(ctx context.Context, codes []string, offset int, verdicts map[int]model.FilterVerdict) {
	n := len(codes)
	if n == 0 {
		return
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		local, err := c.attempt(ctx, codes)
		if err == nil {
			for _, v := range local {
				gid := offset + v.id
				verdicts[gid] = model.FilterVerdict{
					CodeID:        gid,
					Retain:        v.retain,
					ExcludeReason: v.excludeReason,
				}
			}
			return
		}
		lastErr = err
		if attempt < c.maxRetries {
			classifySleepFunc(c.retrySleep)
		}
	}

	if n == 1 {
		// Recursion base case: the one place failure is absorbed
		gid := offset + 1
		verdicts[gid] = model.FilterVerdict{
			CodeID:        gid,
			Retain:        false,
			ExcludeReason: fmt.Sprintf("oracle call failed (single item): %v; requires manual review", lastErr),
		}
		return
	}

	mid := n / 2
	c.classifyRange(ctx, codes[:mid], offset, verdicts)
	c.classifyRange(ctx, codes[mid:], offset+mid, verdicts)
}

// attempt makes one oracle round trip for the given codes, tagged with
// local ids 1..n, and normalizes the reply against that range.
func (c *Classifier) attempt(ctx context.Context, codes []string) ([]localVerdict, error) {
	items := make([]wireItem, len(codes))
	for i, text := range codes {
		items[i] = wireItem{ID: i + 1, Text: text}
	}

	payload, err := json.Marshal(batchRequest{OpenCodes: items})
	if err != nil {
		return nil, err
	}

	user := "Below is a batch of open codes (JSON):\n" +
		string(payload) +
		"\n\nApply the relevance filter from the system prompt and reply with strict JSON only."

	raw, err := c.client.Chat(ctx, oracle.ChatRequest{
		Model:   c.model,
		System:  c.system,
		User:    user,
		Timeout: c.timeout,
	})
	if err != nil {
		return nil, err
	}

	obj, ok := extract.JSONObject(raw)
	if !ok {
		return nil, errUnparsableReply
	}

	local := normalizeFiltering(obj, len(codes))
	if local == nil {
		return nil, errNoFilteringList
	}

	return local, nil
}
