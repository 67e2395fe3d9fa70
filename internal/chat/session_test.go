package chat

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbtai-dev/dbtai/internal/history"
	"github.com/dbtai-dev/dbtai/internal/llm"
)

type memorySaver struct {
	saved []history.Transcript
}

func (m *memorySaver) Save(_ context.Context, t history.Transcript) (int64, error) {
	m.saved = append(m.saved, t)
	return int64(len(m.saved)), nil
}

func TestAskGrowsTranscript(t *testing.T) {
	fake := llm.NewFakeText("It sums orders.", "Daily.")
	s := NewSession("orders", "system context", fake, nil)

	reply, err := s.Ask(context.Background(), "What does it do?")
	require.NoError(t, err)
	assert.Equal(t, "It sums orders.", reply)
	require.Len(t, s.Transcript(), 3)

	_, err = s.Ask(context.Background(), "How often?")
	require.NoError(t, err)
	transcript := s.Transcript()
	require.Len(t, transcript, 5)
	assert.Equal(t, llm.RoleSystem, transcript[0].Role)
	assert.Equal(t, llm.Assistant("Daily."), transcript[4])

	// The second request carries the full history.
	require.Len(t, fake.Requests, 2)
	assert.Len(t, fake.Requests[1].Messages, 4)
	assert.Equal(t, llm.FormatText, fake.Requests[1].Format)
}

func TestAskFailureKeepsTranscript(t *testing.T) {
	fake := llm.NewFakeClient(llm.FakeResponse{Err: errors.New("down")})
	s := NewSession("orders", "system context", fake, nil)

	_, err := s.Ask(context.Background(), "hello?")
	require.Error(t, err)
	assert.Len(t, s.Transcript(), 1)
}

func TestTranscriptIsACopy(t *testing.T) {
	s := NewSession("orders", "system context", llm.NewFakeText(), nil)
	copied := s.Transcript()
	copied[0].Content = "changed"
	assert.Equal(t, "system context", s.Transcript()[0].Content)
}

func TestRunLoop(t *testing.T) {
	fake := llm.NewFakeText("It sums orders.")
	saver := &memorySaver{}
	s := NewSession("orders", "system context", fake, saver)

	in := strings.NewReader("What does it do?\n\n\\save\nQUIT\nnever sent\n")
	var out bytes.Buffer
	require.NoError(t, s.Run(context.Background(), in, &out))

	text := out.String()
	assert.True(t, strings.HasPrefix(text, "Hi! I'm here to chat about the dbt model orders."))
	assert.Contains(t, text, "It sums orders.\n")
	assert.Contains(t, text, "Chat history saved (#1).")
	assert.Contains(t, text, "Goodbye!")
	assert.Equal(t, 1, fake.Calls())

	require.Len(t, saver.saved, 1)
	assert.Equal(t, "orders", saver.saved[0].Model)
	assert.Len(t, saver.saved[0].Messages, 3)
}

func TestRunEndsOnEOF(t *testing.T) {
	s := NewSession("orders", "system context", llm.NewFakeText(), nil)
	var out bytes.Buffer
	require.NoError(t, s.Run(context.Background(), strings.NewReader(`\save`+"\n"), &out))
	assert.Contains(t, out.String(), "Chat history is not available.")
	assert.Contains(t, out.String(), "Goodbye!")
}

func TestRunPropagatesBackendErrors(t *testing.T) {
	fake := llm.NewFakeClient(llm.FakeResponse{Err: &llm.NetworkError{Backend: "Fake", Err: errors.New("reset")}})
	s := NewSession("orders", "system context", fake, nil)

	err := s.Run(context.Background(), strings.NewReader("hi\n"), &bytes.Buffer{})
	assert.ErrorIs(t, err, llm.ErrNetwork)
}
