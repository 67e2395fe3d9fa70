package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	genai "google.golang.org/genai"

	"github.com/dbtai-dev/dbtai/internal/config"
)

func TestCompletionsClientSendsChatRequest(t *testing.T) {
	var got completionsRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"code\":\"select 1\"}"}}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("sk-test", "gpt-test", time.Second, WithBaseURL(server.URL))
	text, err := client.Send(context.Background(), []Message{System("sys"), User("hi")}, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, `{"code":"select 1"}`, text)

	assert.Equal(t, "gpt-test", got.Model)
	assert.Equal(t, []Message{{Role: RoleSystem, Content: "sys"}, {Role: RoleUser, Content: "hi"}}, got.Messages)
	assert.Equal(t, map[string]string{"type": "json_object"}, got.ResponseFormat)
	assert.Equal(t, "OpenAI:gpt-test", client.Name())
}

func TestCompletionsClientClassifiesStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{name: "bad request", status: http.StatusBadRequest, retryable: false},
		{name: "unauthorized", status: http.StatusUnauthorized, retryable: false},
		{name: "rate limited", status: http.StatusTooManyRequests, retryable: true},
		{name: "unavailable", status: http.StatusServiceUnavailable, retryable: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer server.Close()

			client := NewMistralClient("", "mistral-test", time.Second, WithBaseURL(server.URL))
			_, err := client.Send(context.Background(), []Message{User("hi")}, FormatText)
			require.Error(t, err)
			assert.Equal(t, tt.retryable, errors.Is(err, ErrNetwork))

			var statusErr *StatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, tt.status, statusErr.Code)
			assert.Equal(t, "nope", statusErr.Body)
		})
	}
}

func TestCompletionsClientEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("", "m", time.Second, WithBaseURL(server.URL))
	_, err := client.Send(context.Background(), []Message{User("hi")}, FormatJSON)
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.False(t, errors.Is(err, ErrNetwork))
}

func TestRetryRetriesNetworkFailuresOnly(t *testing.T) {
	transient := &NetworkError{Backend: "Fake", Err: errors.New("connection reset")}

	fake := NewFakeClient(FakeResponse{Err: transient}, FakeResponse{Text: "ok"})
	client := Wrap(fake, Retry(2, time.Millisecond))
	text, err := client.Send(context.Background(), []Message{User("hi")}, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 2, fake.Calls())

	permanent := &StatusError{Backend: "Fake", Code: 400}
	fake = NewFakeClient(FakeResponse{Err: permanent}, FakeResponse{Text: "unused"})
	client = Wrap(fake, Retry(3, time.Millisecond))
	_, err = client.Send(context.Background(), nil, FormatJSON)
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, fake.Calls())
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	transient := &NetworkError{Backend: "Fake", Err: errors.New("timeout")}
	fake := NewFakeClient(FakeResponse{Err: transient}, FakeResponse{Err: transient}, FakeResponse{Text: "late"})
	client := Wrap(fake, Retry(2, time.Millisecond))

	_, err := client.Send(context.Background(), nil, FormatJSON)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, 2, fake.Calls())
}

func TestRetryStopsOnCanceledContext(t *testing.T) {
	transient := &NetworkError{Backend: "Fake", Err: errors.New("timeout")}
	fake := NewFakeClient(FakeResponse{Err: transient}, FakeResponse{Text: "never"})
	client := Wrap(fake, Retry(3, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Send(ctx, nil, FormatJSON)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, fake.Calls())
}

func TestWithLoggingRecordsRequests(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	fake := NewFakeText("hello")

	client := Wrap(fake, WithLogging(logger))
	text, err := client.Send(context.Background(), []Message{User("abc")}, FormatText)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Contains(t, buf.String(), "LLM request (Fake): 1 messages, 3 bytes, format=text")
	assert.Contains(t, buf.String(), "LLM response (Fake)")
}

func TestWithTimeoutSetsDeadline(t *testing.T) {
	probe := &deadlineProbe{}
	client := Wrap(probe, WithTimeout(time.Minute))
	_, err := client.Send(context.Background(), nil, FormatText)
	require.NoError(t, err)
	assert.True(t, probe.hadDeadline)
}

type deadlineProbe struct{ hadDeadline bool }

func (p *deadlineProbe) Name() string { return "probe" }
func (p *deadlineProbe) Close() error { return nil }
func (p *deadlineProbe) Send(ctx context.Context, _ []Message, _ Format) (string, error) {
	_, p.hadDeadline = ctx.Deadline()
	return "", nil
}

func TestNewRejectsAzureBeforeAnyRequest(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = config.BackendAzureOpenAI

	_, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedBackend)
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestNewSelectsCompletionsBackends(t *testing.T) {
	cfg := config.Default()
	cfg.APIKey = "sk"

	client, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "OpenAI:"+config.DefaultOpenAIModel, client.Name())

	cfg.Backend = config.BackendMistral
	client, err = New(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "Mistral:"+config.DefaultMistralModel, client.Name())
}

func TestGeminiContentsMapping(t *testing.T) {
	system, contents := geminiContents([]Message{
		System("be brief"),
		User("what is this?"),
		Assistant("a model"),
		User("thanks"),
	})

	require.NotNil(t, system)
	assert.Equal(t, "be brief", system.Parts[0].Text)
	require.Len(t, contents, 3)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, genai.RoleModel, contents[1].Role)
	assert.Equal(t, "thanks", contents[2].Parts[0].Text)
}

func TestGeminiContentsSystemOnly(t *testing.T) {
	system, contents := geminiContents([]Message{System("rewrite this")})

	assert.Nil(t, system)
	require.Len(t, contents, 1)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, "rewrite this", contents[0].Parts[0].Text)
}
