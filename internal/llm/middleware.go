package llm

import (
	"context"
	"errors"
	"log"
	"time"
)

// Middleware decorates a Client with a cross-cutting concern.
type Middleware func(Client) Client

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner Client, mws ...Middleware) Client {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// -------- Retry with exponential backoff --------

// Retry retries Send up to maxAttempts with exponential backoff starting at
// baseDelay. Only NetworkError is retried; graph, template, parse and HTTP
// 4xx errors return immediately.
func Retry(maxAttempts int, baseDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	return func(next Client) Client {
		return &retrying{next: next, max: maxAttempts, base: baseDelay}
	}
}

type retrying struct {
	next Client
	max  int
	base time.Duration
}

func (r *retrying) Name() string { return r.next.Name() }
func (r *retrying) Close() error { return r.next.Close() }

func (r *retrying) Send(ctx context.Context, messages []Message, format Format) (string, error) {
	var last error
	for i := 0; i < r.max; i++ {
		text, err := r.next.Send(ctx, messages, format)
		if err == nil {
			return text, nil
		}
		if !errors.Is(err, ErrNetwork) {
			return "", err
		}
		last = err
		if i == r.max-1 {
			break
		}
		timer := time.NewTimer(r.base * time.Duration(1<<i))
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return "", last
}

// -------- Timeout --------

// WithTimeout bounds every Send with its own deadline.
func WithTimeout(d time.Duration) Middleware {
	return func(next Client) Client {
		if d <= 0 {
			return next
		}
		return &timeboxed{next: next, d: d}
	}
}

type timeboxed struct {
	next Client
	d    time.Duration
}

func (t *timeboxed) Name() string { return t.next.Name() }
func (t *timeboxed) Close() error { return t.next.Close() }

func (t *timeboxed) Send(ctx context.Context, messages []Message, format Format) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.Send(ctx, messages, format)
}

// -------- Logging --------

// WithLogging logs request size and errors. Provide a custom logger or nil
// to use log.Default().
func WithLogging(logger *log.Logger) Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return func(next Client) Client {
		return &logging{next: next, log: logger}
	}
}

type logging struct {
	next Client
	log  *log.Logger
}

func (l *logging) Name() string { return l.next.Name() }
func (l *logging) Close() error { return l.next.Close() }

func (l *logging) Send(ctx context.Context, messages []Message, format Format) (string, error) {
	size := 0
	for _, msg := range messages {
		size += len(msg.Content)
	}
	l.log.Printf("LLM request (%s): %d messages, %d bytes, format=%s", l.next.Name(), len(messages), size, format)
	start := time.Now()
	text, err := l.next.Send(ctx, messages, format)
	if err != nil {
		l.log.Printf("LLM error (%s) after %s: %v", l.next.Name(), time.Since(start).Round(time.Millisecond), err)
		return "", err
	}
	l.log.Printf("LLM response (%s) after %s: %d bytes", l.next.Name(), time.Since(start).Round(time.Millisecond), len(text))
	return text, nil
}
