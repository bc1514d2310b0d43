package classify

import "testing"

func TestNormalizeFiltering_MissingListIsTotalFailure(t *testing.T) {
	tests := []struct {
		name string
		obj  string
	}{
		{"empty object", `{}`},
		{"wrong field", `{"results": []}`},
		{"list is not a list", `{"filtering": "yes"}`},
		{"null list", `{"filtering": null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if out := normalizeFiltering([]byte(tt.obj), 3); out != nil {
				t.Errorf("Expected nil (total failure), got %v", out)
			}
		})
	}
}

func TestNormalizeFiltering_CompleteResult(t *testing.T) {
	obj := `{"filtering": [
		{"id": 1, "retain": true},
		{"id": 2, "retain": false, "exclude_reason": "off topic"}
	]}`

	out := normalizeFiltering([]byte(obj), 2)

	if len(out) != 2 {
		t.Fatalf("Expected 2 verdicts, got %d", len(out))
	}
	if !out[0].retain || out[0].id != 1 {
		t.Errorf("Unexpected verdict 1: %+v", out[0])
	}
	if out[1].retain || out[1].excludeReason != "off topic" {
		t.Errorf("Unexpected verdict 2: %+v", out[1])
	}
}

func TestNormalizeFiltering_FillsMissingIDs(t *testing.T) {
	obj := `{"filtering": [{"id": 2, "retain": true}]}`

	out := normalizeFiltering([]byte(obj), 3)

	if len(out) != 3 {
		t.Fatalf("Expected exactly 3 verdicts, got %d", len(out))
	}
	for i, v := range out {
		if v.id != i+1 {
			t.Errorf("Expected ascending ids, got %d at position %d", v.id, i)
		}
	}
	if out[0].retain || out[0].excludeReason != missingEntryReason {
		t.Errorf("Expected default for missing id 1, got %+v", out[0])
	}
	if !out[1].retain {
		t.Errorf("Expected id 2 to keep its model verdict, got %+v", out[1])
	}
	if out[2].retain || out[2].excludeReason != missingEntryReason {
		t.Errorf("Expected default for missing id 3, got %+v", out[2])
	}
}

func TestNormalizeFiltering_FirstSeenIDWins(t *testing.T) {
	obj := `{"filtering": [
		{"id": 1, "retain": true},
		{"id": 1, "retain": false, "exclude_reason": "later duplicate"}
	]}`

	out := normalizeFiltering([]byte(obj), 1)

	if len(out) != 1 {
		t.Fatalf("Expected 1 verdict, got %d", len(out))
	}
	if !out[0].retain {
		t.Errorf("Expected first occurrence to win, got %+v", out[0])
	}
}

func TestNormalizeFiltering_SkipsBadIDs(t *testing.T) {
	obj := `{"filtering": [
		{"id": "x", "retain": true},
		{"id": 0, "retain": true},
		{"id": 99, "retain": true},
		{"id": 1.5, "retain": true},
		{"id": "2", "retain": true}
	]}`

	out := normalizeFiltering([]byte(obj), 2)

	if len(out) != 2 {
		t.Fatalf("Expected exactly 2 verdicts, got %d", len(out))
	}
	// Only the numeric-string id 2 is acceptable; id 1 gets the default
	if out[0].retain {
		t.Errorf("Expected id 1 to be defaulted, got %+v", out[0])
	}
	if !out[1].retain {
		t.Errorf("Expected id 2 (string-encoded) to be accepted, got %+v", out[1])
	}
}

func TestNormalizeFiltering_RetainForcesEmptyReason(t *testing.T) {
	obj := `{"filtering": [{"id": 1, "retain": true, "exclude_reason": "should vanish"}]}`

	out := normalizeFiltering([]byte(obj), 1)

	if len(out) != 1 {
		t.Fatalf("Expected 1 verdict, got %d", len(out))
	}
	if out[0].excludeReason != "" {
		t.Errorf("Expected empty reason on retained item, got %q", out[0].excludeReason)
	}
}

func TestNormalizeFiltering_EmptyListFillsEverything(t *testing.T) {
	out := normalizeFiltering([]byte(`{"filtering": []}`), 4)

	if len(out) != 4 {
		t.Fatalf("Expected 4 defaulted verdicts, got %d", len(out))
	}
	for _, v := range out {
		if v.retain || v.excludeReason != missingEntryReason {
			t.Errorf("Expected default verdict, got %+v", v)
		}
	}
}

func TestNormalizeFiltering_Totality(t *testing.T) {
	// Whatever partial garbage comes back, a non-nil result covers
	// every id in [1, n] exactly once, sorted ascending.
	partials := []string{
		`{"filtering": [{"id": 3, "retain": true}, {"id": "not a number"}]}`,
		`{"filtering": [{"id": 5, "retain": false, "exclude_reason": "r"}, {"id": 5, "retain": true}]}`,
		`{"filtering": [{"id": -1}, {"id": 2}, {"id": 1000}]}`,
	}

	for _, obj := range partials {
		for n := 1; n <= 8; n++ {
			out := normalizeFiltering([]byte(obj), n)
			if len(out) != n {
				t.Fatalf("n=%d obj=%s: got %d verdicts", n, obj, len(out))
			}
			for i, v := range out {
				if v.id != i+1 {
					t.Fatalf("n=%d obj=%s: id %d at position %d", n, obj, v.id, i)
				}
			}
		}
	}
}
