// Package chat runs a blocking question-and-answer loop about one model.
// The transcript starts with the system prompt and only ever grows.
package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dbtai-dev/dbtai/internal/history"
	"github.com/dbtai-dev/dbtai/internal/llm"
)

const (
	Prompt      = ">>> "
	SaveCommand = `\save`
)

var ErrNoSaver = errors.New("chat history storage is not available")

// Saver persists a transcript snapshot.
type Saver interface {
	Save(ctx context.Context, t history.Transcript) (int64, error)
}

type Session struct {
	model      string
	client     llm.Client
	saver      Saver
	transcript []llm.Message
	now        func() time.Time
}

// NewSession seeds the transcript with systemPrompt. saver may be nil, in
// which case \save reports that history is unavailable.
func NewSession(model, systemPrompt string, client llm.Client, saver Saver) *Session {
	return &Session{
		model:      model,
		client:     client,
		saver:      saver,
		transcript: []llm.Message{llm.System(systemPrompt)},
		now:        time.Now,
	}
}

// Transcript returns a copy of the conversation so far.
func (s *Session) Transcript() []llm.Message {
	return append([]llm.Message(nil), s.transcript...)
}

// Ask sends the whole transcript plus question and records both sides. A
// failed request leaves the transcript untouched.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	messages := append(s.Transcript(), llm.User(question))
	reply, err := s.client.Send(ctx, messages, llm.FormatText)
	if err != nil {
		return "", err
	}
	s.transcript = append(messages, llm.Assistant(reply))
	return reply, nil
}

func (s *Session) Save(ctx context.Context) (int64, error) {
	if s.saver == nil {
		return 0, ErrNoSaver
	}
	return s.saver.Save(ctx, history.Transcript{
		Model:    s.model,
		SavedAt:  s.now(),
		Messages: s.Transcript(),
	})
}

func Greeting(model string) string {
	return fmt.Sprintf("Hi! I'm here to chat about the dbt model %s. What's on your mind?\nType 'quit' or hit Ctrl-C to exit.\n", model)
}

// Run reads one question per line from in until quit, exit or EOF.
func (s *Session) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, Greeting(s.model))

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, Prompt)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			fmt.Fprintln(out, "\nGoodbye!")
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.EqualFold(line, "quit"), strings.EqualFold(line, "exit"):
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case line == SaveCommand:
			id, err := s.Save(ctx)
			if errors.Is(err, ErrNoSaver) {
				fmt.Fprintln(out, "Chat history is not available.")
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to save chat history: %w", err)
			}
			fmt.Fprintf(out, "Chat history saved (#%d).\n", id)
			continue
		}

		reply, err := s.Ask(ctx, line)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, reply)
	}
}
