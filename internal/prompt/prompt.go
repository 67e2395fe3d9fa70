// Package prompt renders the fixed task templates into role-tagged messages.
//
// Templates live in templates/ and use [[ ]] delimiters, so the jinja
// {{ ref(...) }} snippets they quote stay literal.
package prompt

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/dbtai-dev/dbtai/internal/llm"
)

type Task string

const (
	TaskGenerateDocs     Task = "generate-docs"
	TaskGenerateUnitTest Task = "generate-unit-test"
	TaskGenerateModel    Task = "generate-model"
	TaskFixModel         Task = "fix-model"
	TaskExplain          Task = "explain"
	TaskChatSystemPrompt Task = "chat-system-prompt"
	TaskLintAndExplain   Task = "lint-and-explain"
)

var Tasks = []Task{
	TaskGenerateDocs,
	TaskGenerateUnitTest,
	TaskGenerateModel,
	TaskFixModel,
	TaskExplain,
	TaskChatSystemPrompt,
	TaskLintAndExplain,
}

// Field names used as template placeholders.
const (
	FieldModelName         = "model_name"
	FieldRawCode           = "raw_code"
	FieldModelDescription  = "model_description"
	FieldUpstreamModels    = "upstream_models"
	FieldExtraInstructions = "extra_instructions"
	FieldDescription       = "description"
	FieldUpstreamDocs      = "upstream_docs"
	FieldIssue             = "issue"
	FieldTables            = "tables"
	FieldModelCode         = "model_code"
)

// NoUpstreamModels fills upstream_docs when generate-model gets no inputs.
const NoUpstreamModels = "(no upstream models)"

// Fields maps placeholder names to values.
type Fields map[string]string

var (
	ErrTemplateFieldMissing = errors.New("template field missing")
	ErrUnknownTask          = errors.New("unknown task")
)

type TemplateFieldMissingError struct {
	Task  Task
	Field string
}

func (e *TemplateFieldMissingError) Error() string {
	return fmt.Sprintf("task %s: required field %q not provided", e.Task, e.Field)
}

func (e *TemplateFieldMissingError) Unwrap() error { return ErrTemplateFieldMissing }

type taskSpec struct {
	system    string
	user      string
	localized bool
	required  []string
	optional  map[string]string
	format    llm.Format
}

// Unit tests reuse the documentation system prompt. Fixes reuse the model
// generation system prompt. Lint is a single system message.
var taskSpecs = map[Task]taskSpec{
	TaskGenerateDocs: {
		system:    "docs_system",
		user:      "docs_user",
		localized: true,
		required:  []string{FieldModelName, FieldRawCode, FieldModelDescription},
		format:    llm.FormatJSON,
	},
	TaskGenerateUnitTest: {
		system:    "docs_system",
		user:      "unit_test_user",
		localized: true,
		required:  []string{FieldModelName, FieldRawCode, FieldModelDescription},
		optional:  map[string]string{FieldExtraInstructions: " "},
		format:    llm.FormatJSON,
	},
	TaskGenerateModel: {
		system:   "model_system",
		user:     "model_user",
		required: []string{FieldModelName, FieldDescription},
		optional: map[string]string{FieldUpstreamDocs: NoUpstreamModels},
		format:   llm.FormatJSON,
	},
	TaskFixModel: {
		system:   "model_system",
		user:     "fix_user",
		required: []string{FieldModelCode, FieldIssue, FieldTables},
		format:   llm.FormatJSON,
	},
	TaskExplain: {
		system:    "explain_system",
		user:      "explain_user",
		localized: true,
		required:  []string{FieldModelName, FieldRawCode, FieldUpstreamModels, FieldModelDescription},
		format:    llm.FormatText,
	},
	TaskChatSystemPrompt: {
		system:    "chat_system",
		localized: true,
		required:  []string{FieldModelName, FieldRawCode, FieldUpstreamModels, FieldModelDescription},
		format:    llm.FormatText,
	},
	TaskLintAndExplain: {
		system:   "lint_system",
		required: []string{FieldModelCode},
		format:   llm.FormatJSON,
	},
}

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(
	template.New("prompts").
		Delims("[[", "]]").
		Option("missingkey=error").
		ParseFS(templateFS, "templates/*.tmpl"),
)

// ParseTask accepts the task names used on the wire and in the CLI.
func ParseTask(raw string) (Task, error) {
	task := Task(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := taskSpecs[task]; !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownTask, raw)
	}
	return task, nil
}

// Format is the response format a task asks the backend for.
func Format(task Task) llm.Format {
	if spec, ok := taskSpecs[task]; ok {
		return spec.format
	}
	return llm.FormatJSON
}

// Required lists the fields a task cannot render without.
func Required(task Task) []string {
	return append([]string(nil), taskSpecs[task].required...)
}

// Render builds the message list for task. Language-invariant tasks ignore
// lang. Every required field must be present; an empty value is allowed.
func Render(task Task, lang Language, fields Fields) ([]llm.Message, error) {
	spec, ok := taskSpecs[task]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownTask, task)
	}
	if spec.localized {
		parsed, err := ParseLanguage(string(lang))
		if err != nil {
			return nil, err
		}
		lang = parsed
	}

	data := make(map[string]string, len(spec.required)+len(spec.optional))
	for _, name := range spec.required {
		value, ok := fields[name]
		if !ok {
			return nil, &TemplateFieldMissingError{Task: task, Field: name}
		}
		data[name] = value
	}
	for name, fallback := range spec.optional {
		value := fields[name]
		if strings.TrimSpace(value) == "" {
			value = fallback
		}
		data[name] = value
	}

	messages := make([]llm.Message, 0, 2)
	if spec.system != "" {
		text, err := execute(spec.system, spec.localized, lang, data)
		if err != nil {
			return nil, err
		}
		messages = append(messages, llm.System(text))
	}
	if spec.user != "" {
		userLocalized := spec.localized && task != TaskGenerateUnitTest
		text, err := execute(spec.user, userLocalized, lang, data)
		if err != nil {
			return nil, err
		}
		messages = append(messages, llm.User(text))
	}
	return messages, nil
}

func execute(base string, localized bool, lang Language, data map[string]string) (string, error) {
	name := base + ".tmpl"
	if localized {
		name = base + "." + string(lang) + ".tmpl"
	}
	tmpl := templates.Lookup(name)
	if tmpl == nil {
		return "", fmt.Errorf("failed to find template %s", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
