package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantNil   bool
		wantValid bool
		wantURL   string
		wantMsg   string
	}{
		{
			name:      "json manifest",
			input:     `{"title": "Hello", "description": "Says hello", "url": "https://cdn.example.com/hello.js"}`,
			wantValid: true,
			wantURL:   "https://cdn.example.com/hello.js",
		},
		{
			name:      "yaml manifest",
			input:     "title: Hello\nurl: https://cdn.example.com/hello.js\nruntime: go\n",
			wantValid: true,
			wantURL:   "https://cdn.example.com/hello.js",
		},
		{
			name:      "valid without url",
			input:     `{"title": "No bundle"}`,
			wantValid: true,
		},
		{
			name:    "empty input",
			input:   "  \n",
			wantNil: true,
		},
		{
			name:    "syntax error",
			input:   `{"title": `,
			wantMsg: "parsing manifest",
		},
		{
			name:    "not an object",
			input:   `["a", "b"]`,
			wantMsg: "invalid manifest",
		},
		{
			name:    "unknown runtime",
			input:   `{"url": "https://x/b.js", "runtime": "python"}`,
			wantMsg: "/runtime",
		},
		{
			name:    "wrong field type",
			input:   `{"title": 42}`,
			wantMsg: "/title",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Parse([]byte(tt.input))
			if tt.wantNil {
				if m != nil {
					t.Fatalf("Parse() = %#v, want nil", m)
				}
				return
			}

			switch got := m.(type) {
			case *Valid:
				if !tt.wantValid {
					t.Fatalf("Parse() = valid %#v, want invalid", got)
				}
				if got.URL != tt.wantURL {
					t.Errorf("URL = %q, want %q", got.URL, tt.wantURL)
				}
			case *Invalid:
				if tt.wantValid {
					t.Fatalf("Parse() = invalid %q, want valid", got.Message)
				}
				if !strings.Contains(got.Message, tt.wantMsg) {
					t.Errorf("Message = %q, want it to contain %q", got.Message, tt.wantMsg)
				}
			default:
				t.Fatalf("Parse() returned %T", m)
			}
		})
	}
}

func TestParse_Fields(t *testing.T) {
	m := Parse([]byte(`title: Word count
description: Counts words
url: https://cdn.example.com/wc.js
runtime: js
version: 1.2.0
activationEvents:
  - "*"
`))
	v, ok := m.(*Valid)
	if !ok {
		t.Fatalf("expected *Valid, got %T", m)
	}
	if v.Title != "Word count" || v.Description != "Counts words" || v.Version != "1.2.0" {
		t.Errorf("unexpected fields: %+v", v)
	}
	if len(v.ActivationEvents) != 1 || v.ActivationEvents[0] != "*" {
		t.Errorf("ActivationEvents = %v", v.ActivationEvents)
	}
}

func TestValid_RuntimeOr(t *testing.T) {
	if got := (&Valid{}).RuntimeOr(RuntimeJS); got != RuntimeJS {
		t.Errorf("RuntimeOr() = %q, want %q", got, RuntimeJS)
	}
	if got := (&Valid{Runtime: RuntimeGo}).RuntimeOr(RuntimeJS); got != RuntimeGo {
		t.Errorf("RuntimeOr() = %q, want %q", got, RuntimeGo)
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	if err := os.WriteFile(path, []byte("title: x\nurl: https://x/b.js\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if _, ok := m.(*Valid); !ok {
		t.Errorf("expected *Valid, got %T", m)
	}

	if _, err := ParseFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	in := &Valid{Title: "t", URL: "https://x/b.js", Runtime: RuntimeGo}
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	out, ok := Parse(data).(*Valid)
	if !ok {
		t.Fatalf("expected *Valid after round trip")
	}
	if out.URL != in.URL || out.Runtime != in.Runtime {
		t.Errorf("round trip mismatch: %+v", out)
	}
}
