package result

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"

	"github.com/dbtai-dev/dbtai/internal/prompt"
)

const (
	DocsVersion = 2

	DiffFromLabel = "model_code"
	DiffToLabel   = "new_code"
)

type docsFile struct {
	Version int    `yaml:"version"`
	Models  []Docs `yaml:"models"`
}

// FormatDocs renders docs as a schema file:
//
//	version: 2
//	models:
//	  - name: ...
//	    description: ...
//	    columns:
//	      - name: ...
func FormatDocs(docs Docs) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(docsFile{Version: DocsVersion, Models: []Docs{docs}}); err != nil {
		return "", fmt.Errorf("failed to encode docs: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to encode docs: %w", err)
	}
	return buf.String(), nil
}

var errNotUnitTests = errors.New("expected a mapping with a unit_tests key")

// ValidateUnitTestYAML checks that a generated unit test is a YAML mapping
// with a unit_tests sequence before it is appended to a schema file.
func ValidateUnitTestYAML(text string) error {
	var doc map[string]any
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return &MalformedResultError{Task: prompt.TaskGenerateUnitTest, Key: "unit_test", Err: err}
	}
	tests, ok := doc["unit_tests"]
	if !ok {
		return &MalformedResultError{Task: prompt.TaskGenerateUnitTest, Key: "unit_test", Err: errNotUnitTests}
	}
	if _, ok := tests.([]any); !ok {
		return &MalformedResultError{Task: prompt.TaskGenerateUnitTest, Key: "unit_test", Err: errors.New("unit_tests must be a sequence")}
	}
	return nil
}

// UnifiedDiff is a line diff from original to updated with three lines of
// context. Identical inputs give "".
func UnifiedDiff(original, updated string) (string, error) {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(original),
		B:        difflib.SplitLines(updated),
		FromFile: DiffFromLabel,
		ToFile:   DiffToLabel,
		Context:  3,
	})
	if err != nil {
		return "", fmt.Errorf("failed to diff code: %w", err)
	}
	return diff, nil
}
