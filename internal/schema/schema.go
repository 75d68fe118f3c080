package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Issue is one leaf validation failure.
type Issue struct {
	Path    string // instance location, e.g. "/runtime"; empty for the root
	Message string
	Keyword string // failing schema keyword, e.g. "enum"
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// Join renders issues on one line separated by "; ".
func Join(issues []Issue) string {
	parts := make([]string, len(issues))
	for i, issue := range issues {
		parts[i] = issue.String()
	}
	return strings.Join(parts, "; ")
}

// Schema is an embedded schema document compiled on first use.
type Schema struct {
	name string
	raw  []byte

	once     sync.Once
	compiled *jsonschema.Schema
	err      error
}

// New wraps raw schema JSON registered under name.
func New(name string, raw []byte) *Schema {
	return &Schema{name: name, raw: raw}
}

func (s *Schema) compile() (*jsonschema.Schema, error) {
	s.once.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(s.raw))
		if err != nil {
			s.err = fmt.Errorf("unmarshaling schema %s: %w", s.name, err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(s.name, doc); err != nil {
			s.err = fmt.Errorf("adding schema resource %s: %w", s.name, err)
			return
		}
		if s.compiled, err = c.Compile(s.name); err != nil {
			s.err = fmt.Errorf("compiling schema %s: %w", s.name, err)
		}
	})
	return s.compiled, s.err
}

// Check validates v, which must be JSON-encodable. It returns no issues when v
// conforms; the error is reserved for schema or encoding failures.
func (s *Schema) Check(v any) ([]Issue, error) {
	sch, err := s.compile()
	if err != nil {
		return nil, err
	}

	// Round-trip so numbers and nested values have the validator's types.
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding instance: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("preparing instance: %w", err)
	}

	err = sch.Validate(inst)
	if err == nil {
		return nil, nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, fmt.Errorf("unexpected validation error type: %w", err)
	}
	return issuesOf(ve), nil
}

func issuesOf(ve *jsonschema.ValidationError) []Issue {
	var issues []Issue
	collect(ve, &issues)
	if len(issues) == 0 {
		return []Issue{{Message: ve.Error()}}
	}

	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Path < issues[j].Path })
	out := issues[:0]
	seen := make(map[Issue]bool)
	for _, issue := range issues {
		if !seen[issue] {
			seen[issue] = true
			out = append(out, issue)
		}
	}
	return out
}

// collect appends leaf errors, skipping container keywords that only group
// other failures.
func collect(ve *jsonschema.ValidationError, issues *[]Issue) {
	if len(ve.Causes) > 0 {
		for _, cause := range ve.Causes {
			collect(cause, issues)
		}
		return
	}
	if ve.ErrorKind == nil {
		return
	}

	var keyword string
	if kw := ve.ErrorKind.KeywordPath(); len(kw) > 0 {
		keyword = kw[len(kw)-1]
	}
	if keyword == "" || keyword == "allOf" || keyword == "$ref" {
		return
	}

	var path string
	if len(ve.InstanceLocation) > 0 {
		path = "/" + strings.Join(ve.InstanceLocation, "/")
	}
	*issues = append(*issues, Issue{
		Path:    path,
		Message: ve.ErrorKind.LocalizedString(printer),
		Keyword: keyword,
	})
}
