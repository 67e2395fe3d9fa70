package llm

import (
	"context"
	"errors"
	"sync"
)

var ErrFakeExhausted = errors.New("fake client has no scripted responses left")

// FakeClient replays scripted responses in order and records every request.
// It is used by tests and never selected by New.
type FakeClient struct {
	mu        sync.Mutex
	responses []FakeResponse
	Requests  []FakeRequest
}

type FakeResponse struct {
	Text string
	Err  error
}

type FakeRequest struct {
	Messages []Message
	Format   Format
}

func NewFakeClient(responses ...FakeResponse) *FakeClient {
	return &FakeClient{responses: responses}
}

// NewFakeText scripts successful text responses only.
func NewFakeText(texts ...string) *FakeClient {
	responses := make([]FakeResponse, 0, len(texts))
	for _, text := range texts {
		responses = append(responses, FakeResponse{Text: text})
	}
	return NewFakeClient(responses...)
}

func (f *FakeClient) Name() string { return "Fake" }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) Send(_ context.Context, messages []Message, format Format) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requests = append(f.Requests, FakeRequest{Messages: append([]Message(nil), messages...), Format: format})
	if len(f.responses) == 0 {
		return "", ErrFakeExhausted
	}
	next := f.responses[0]
	f.responses = f.responses[1:]
	return next.Text, next.Err
}

// Calls reports how many requests were sent.
func (f *FakeClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Requests)
}
