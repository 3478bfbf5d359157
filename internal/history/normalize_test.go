package history

import (
	"encoding/json"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "single quotes become double",
			in:   `[{'type': 'RUN_STARTED'}]`,
			want: `[{"type": "RUN_STARTED"}]`,
		},
		{
			name: "python literals outside strings",
			in:   `[{'ok': True, 'done': False, 'value': None}]`,
			want: `[{"ok": true, "done": false, "value": null}]`,
		},
		{
			name: "literal words inside strings survive",
			in:   `[{'delta': 'True story, None of it'}]`,
			want: `[{"delta": "True story, None of it"}]`,
		},
		{
			name: "escaped single quote inside string",
			in:   `[{'delta': 'it\'s fine'}]`,
			want: `[{"delta": "it's fine"}]`,
		},
		{
			name: "bare double quote inside single-quoted string",
			in:   `[{'delta': 'say "hi"'}]`,
			want: `[{"delta": "say \"hi\""}]`,
		},
		{
			name: "raw newline and tab inside string",
			in:   "[{'delta': 'a\nb\tc'}]",
			want: `[{"delta": "a\nb\tc"}]`,
		},
		{
			name: "strict json passes through",
			in:   `[{"type": "RUN_FINISHED", "timestamp": 1712000000000}]`,
			want: `[{"type": "RUN_FINISHED", "timestamp": 1712000000000}]`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			if got != tt.want {
				t.Errorf("Normalize(%q)\n got %q\nwant %q", tt.in, got, tt.want)
			}
			if !json.Valid([]byte(got)) {
				t.Errorf("normalized output is not valid JSON: %q", got)
			}
		})
	}
}

func TestNormalizeIsIdempotentOnJSON(t *testing.T) {
	in := `[{'type': 'TEXT_MESSAGE_CONTENT', 'delta': 'it\'s "done"', 'ok': True}]`
	once := Normalize(in)
	twice := Normalize(once)
	if once != twice {
		t.Errorf("normalizing twice changed the output:\n once %q\ntwice %q", once, twice)
	}
}
