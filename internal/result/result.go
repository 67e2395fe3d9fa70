// Package result turns backend text into typed results. Every expected key
// must be present; nothing is defaulted.
package result

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dbtai-dev/dbtai/internal/prompt"
)

var ErrMalformedResult = errors.New("malformed generation result")

type MalformedResultError struct {
	Task prompt.Task
	Key  string
	Err  error
}

func (e *MalformedResultError) Error() string {
	switch {
	case e.Key != "" && e.Err != nil:
		return fmt.Sprintf("%v for %s: key %q: %v", ErrMalformedResult, e.Task, e.Key, e.Err)
	case e.Key != "":
		return fmt.Sprintf("%v for %s: missing key %q", ErrMalformedResult, e.Task, e.Key)
	default:
		return fmt.Sprintf("%v for %s: %v", ErrMalformedResult, e.Task, e.Err)
	}
}

func (e *MalformedResultError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedResult}
	}
	return []error{ErrMalformedResult, e.Err}
}

type ColumnDoc struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// Docs field order is the emitted YAML key order.
type Docs struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description" yaml:"description"`
	Columns     []ColumnDoc `json:"columns" yaml:"columns"`
}

type UnitTest struct {
	YAML        string `json:"unit_test"`
	Explanation string `json:"explanation"`
}

type Code struct {
	Code        string `json:"code"`
	Explanation string `json:"explanation"`
}

// Fix is a code result plus the unified diff against the original source.
type Fix struct {
	Code
	Diff string `json:"diff"`
}

func ParseDocs(raw string) (Docs, error) {
	task := prompt.TaskGenerateDocs
	fields, err := decodeObject(task, raw)
	if err != nil {
		return Docs{}, err
	}
	var docs Docs
	if err := decodeKey(task, fields, "name", &docs.Name); err != nil {
		return Docs{}, err
	}
	if err := decodeKey(task, fields, "description", &docs.Description); err != nil {
		return Docs{}, err
	}
	var columns []map[string]json.RawMessage
	if err := decodeKey(task, fields, "columns", &columns); err != nil {
		return Docs{}, err
	}
	docs.Columns = make([]ColumnDoc, 0, len(columns))
	for i, column := range columns {
		var col ColumnDoc
		if err := decodeKey(task, column, "name", &col.Name); err != nil {
			return Docs{}, columnError(err, i)
		}
		if err := decodeKey(task, column, "description", &col.Description); err != nil {
			return Docs{}, columnError(err, i)
		}
		docs.Columns = append(docs.Columns, col)
	}
	return docs, nil
}

func ParseUnitTest(raw string) (UnitTest, error) {
	task := prompt.TaskGenerateUnitTest
	fields, err := decodeObject(task, raw)
	if err != nil {
		return UnitTest{}, err
	}
	var out UnitTest
	if err := decodeKey(task, fields, "unit_test", &out.YAML); err != nil {
		return UnitTest{}, err
	}
	if err := decodeKey(task, fields, "explanation", &out.Explanation); err != nil {
		return UnitTest{}, err
	}
	return out, nil
}

// ParseCode handles the tasks that answer with code and explanation:
// generate-model, fix-model and lint-and-explain.
func ParseCode(task prompt.Task, raw string) (Code, error) {
	fields, err := decodeObject(task, raw)
	if err != nil {
		return Code{}, err
	}
	var out Code
	if err := decodeKey(task, fields, "code", &out.Code); err != nil {
		return Code{}, err
	}
	if err := decodeKey(task, fields, "explanation", &out.Explanation); err != nil {
		return Code{}, err
	}
	return out, nil
}

// ParseFix parses a fix-model answer and diffs it against original.
func ParseFix(original, raw string) (Fix, error) {
	code, err := ParseCode(prompt.TaskFixModel, raw)
	if err != nil {
		return Fix{}, err
	}
	diff, err := UnifiedDiff(original, code.Code)
	if err != nil {
		return Fix{}, err
	}
	return Fix{Code: code, Diff: diff}, nil
}

// Explain passes explanation text through verbatim.
func Explain(raw string) string {
	return raw
}

func decodeObject(task prompt.Task, raw string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, &MalformedResultError{Task: task, Err: err}
	}
	if fields == nil {
		return nil, &MalformedResultError{Task: task, Err: errors.New("expected a JSON object")}
	}
	return fields, nil
}

func decodeKey(task prompt.Task, fields map[string]json.RawMessage, key string, dst any) error {
	value, ok := fields[key]
	if !ok {
		return &MalformedResultError{Task: task, Key: key}
	}
	if string(value) == "null" {
		return nil
	}
	if err := json.Unmarshal(value, dst); err != nil {
		return &MalformedResultError{Task: task, Key: key, Err: err}
	}
	return nil
}

func columnError(err error, index int) error {
	var malformed *MalformedResultError
	if errors.As(err, &malformed) {
		malformed.Key = fmt.Sprintf("columns[%d].%s", index, malformed.Key)
	}
	return err
}
