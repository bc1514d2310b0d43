package extract

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var (
	fenceOpen  = regexp.MustCompile(`(?i)^` + "```" + `json\s*`)
	fenceBare  = regexp.MustCompile(`^` + "```" + `\s*`)
	fenceClose = regexp.MustCompile(`\s*` + "```" + `$`)
)

// JSONObject recovers a JSON object from an arbitrarily-wrapped model
// reply: code fences are stripped, and if the remainder still does not
// parse, the substring from the first "{" to the last "}" is tried.
// Returns the object bytes, or ok=false when no object can be recovered.
// Parse failure is an expected outcome here, not an error.
func JSONObject(text string) ([]byte, bool) {
	s := strings.TrimSpace(text)
	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceBare.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")

	if obj, ok := parseObject(s); ok {
		return obj, true
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		if obj, ok := parseObject(s[start : end+1]); ok {
			return obj, true
		}
	}

	return nil, false
}

// parseObject accepts only a top-level JSON object, not arrays or scalars
func parseObject(s string) ([]byte, bool) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, false
	}
	return []byte(s), true
}

// IntValue coerces a raw JSON value to an int. Models emit ids as
// numbers or numeric strings interchangeably; anything else (floats
// with fractions, words, null) yields ok=false.
func IntValue(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		if i, err := num.Int64(); err == nil {
			return int(i), true
		}
		return 0, false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}

	return 0, false
}

// StringField unmarshals a single string field from an object previously
// recovered by JSONObject. Missing field or non-string value yields ok=false.
func StringField(obj []byte, field string) (string, bool) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(obj, &m); err != nil {
		return "", false
	}
	raw, exists := m[field]
	if !exists {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
