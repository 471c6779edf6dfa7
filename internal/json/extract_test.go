package json

import (
	"errors"
	"testing"
)

type sample struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"pure", `{"name": "test", "value": 42}`},
		{"prefix", `Here is the result: {"name": "test", "value": 42}`},
		{"suffix", `{"name": "test", "value": 42} That's the output.`},
		{"fenced", "```json\n{\"name\": \"test\", \"value\": 42}\n```"},
		{"brace in string", `Sure. {"name": "test", "value": 42, "note": "a } b"} and {"other": 1}`},
		{"stray brace first", `Using {braces} loosely: {"name": "test", "value": 42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract[sample](tt.response)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Name != "test" || got.Value != 42 {
				t.Errorf("unexpected result: %+v", got)
			}
		})
	}
}

func TestExtractNoJSON(t *testing.T) {
	_, err := Extract[sample]("I cannot help with that.")
	if !errors.Is(err, ErrNoJSON) {
		t.Errorf("expected ErrNoJSON, got %v", err)
	}
}

func TestExtractNull(t *testing.T) {
	_, err := Extract[sample]("null")
	if !errors.Is(err, ErrNull) {
		t.Errorf("expected ErrNull, got %v", err)
	}
}
