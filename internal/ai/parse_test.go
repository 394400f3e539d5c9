package ai

import (
	"math"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "json code fence",
			input:  "```json\n{\"fit\": true}\n```",
			expect: `{"fit": true}`,
		},
		{
			name:   "bare code fence",
			input:  "```\n[1, 2]\n```",
			expect: `[1, 2]`,
		},
		{
			name:   "plain payload",
			input:  `  {"a": 1}  `,
			expect: `{"a": 1}`,
		},
		{
			name:   "single backticks",
			input:  "`[\"x\"]`",
			expect: `["x"]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ExtractJSON(tt.input); got != tt.expect {
				t.Fatalf("got %q, want %q", got, tt.expect)
			}
		})
	}
}

func TestExtractJSONArray(t *testing.T) {
	t.Parallel()

	got := ExtractJSONArray("Here are the results:\n```json\n[{\"id\": \"1\"}]\n```\nDone.")
	if got != `[{"id": "1"}]` {
		t.Fatalf("unexpected array: %q", got)
	}

	got = ExtractJSONArray(`prose before [1, [2, 3]] prose after`)
	if got != `[1, [2, 3]]` {
		t.Fatalf("unexpected nested array: %q", got)
	}

	if got := ExtractJSONArray("no array here"); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}

func TestExtractJSONObject(t *testing.T) {
	t.Parallel()

	got := ExtractJSONObject("Sure!\n{\"id\": \"1\", \"preview\": \"text\"}")
	if got != `{"id": "1", "preview": "text"}` {
		t.Fatalf("unexpected object: %q", got)
	}

	if got := ExtractJSONObject("nothing"); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}

func TestCoerceFloat(t *testing.T) {
	t.Parallel()

	if got := CoerceFloat(0.75); got != 0.75 {
		t.Fatalf("got %v", got)
	}
	if got := CoerceFloat("0.5"); got != 0.5 {
		t.Fatalf("got %v", got)
	}
	if got := CoerceFloat("n/a"); !math.IsNaN(got) {
		t.Fatalf("expected NaN, got %v", got)
	}
	if got := CoerceFloat(nil); !math.IsNaN(got) {
		t.Fatalf("expected NaN, got %v", got)
	}
}

func TestCoerceString(t *testing.T) {
	t.Parallel()

	if got := CoerceString("  hi  "); got != "hi" {
		t.Fatalf("got %q", got)
	}
	if got := CoerceString(nil); got != "" {
		t.Fatalf("got %q", got)
	}
	if got := CoerceString(map[string]any{"a": 1}); got != `{"a":1}` {
		t.Fatalf("got %q", got)
	}
}
