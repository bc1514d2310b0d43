package classify

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/pkravets/thema/internal/extract"
)

// missingEntryReason is the default attached to ids the model skipped
const missingEntryReason = "model did not return this item; requires manual review"

// localVerdict is a verdict keyed by batch-local id (1-based)
type localVerdict struct {
	id            int
	retain        bool
	excludeReason string
}

// filterEntry is one tolerantly-parsed reply entry. The id is kept raw
// because models return it as a number or a string interchangeably.
type filterEntry struct {
	ID            json.RawMessage `json:"id"`
	Retain        bool            `json:"retain"`
	ExcludeReason string          `json:"exclude_reason"`
}

// normalizeFiltering reconciles a parsed reply object against the
// expected local-id range [1, n]. A missing or non-list "filtering"
// field is total failure and returns nil, which triggers retry or
// bisection upstream. Otherwise every entry with a non-numeric,
// out-of-range, or duplicate id is dropped (first-seen id wins), a
// retained entry has its exclude reason forced empty, and every id
// with no accepted entry is filled with a manual-review default. The
// returned slice therefore always has length exactly n, sorted by id.
func normalizeFiltering(obj []byte, n int) []localVerdict {
	var envelope struct {
		Filtering []json.RawMessage `json:"filtering"`
	}
	if err := json.Unmarshal(obj, &envelope); err != nil {
		return nil
	}
	if envelope.Filtering == nil {
		return nil
	}

	seen := make(map[int]bool, n)
	out := make([]localVerdict, 0, n)

	for _, raw := range envelope.Filtering {
		var entry filterEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}

		id, ok := extract.IntValue(entry.ID)
		if !ok || id < 1 || id > n || seen[id] {
			continue
		}
		seen[id] = true

		reason := strings.TrimSpace(entry.ExcludeReason)
		if entry.Retain {
			// Retained items carry no exclusion reason, whatever
			// the model said
			reason = ""
		}

		out = append(out, localVerdict{id: id, retain: entry.Retain, excludeReason: reason})
	}

	for id := 1; id <= n; id++ {
		if !seen[id] {
			out = append(out, localVerdict{id: id, retain: false, excludeReason: missingEntryReason})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
