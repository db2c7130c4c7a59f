package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
)

// testClient builds a Client with a stubbed transport constructor so the
// rotation state machine can run without network access.
func testClient(t *testing.T, keys ...string) *Client {
	t.Helper()
	pool, err := NewKeyPool(keys)
	if err != nil {
		t.Fatalf("pool error: %v", err)
	}
	return &Client{
		pool: pool,
		connect: func(ctx context.Context, apiKey string) (*genai.Client, error) {
			return nil, nil
		},
	}
}

func TestRetryExhaustsAfterOneAttemptPerKey(t *testing.T) {
	c := testClient(t, "k1", "k2", "k3")

	attempts := 0
	err := c.executeWithRetry(context.Background(), func() error {
		attempts++
		return &googleapi.Error{Code: http.StatusTooManyRequests, Message: "quota exceeded"}
	})

	if !errors.Is(err, ErrKeysExhausted) {
		t.Fatalf("expected ErrKeysExhausted, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected exactly 3 attempts for a 3-key pool, got %d", attempts)
	}
}

func TestRetrySucceedsOnSecondKey(t *testing.T) {
	c := testClient(t, "k1", "k2", "k3")

	attempts := 0
	err := c.executeWithRetry(context.Background(), func() error {
		attempts++
		if c.pool.Current() == "k2" {
			return nil
		}
		return fmt.Errorf("429 Too Many Requests")
	})

	if err != nil {
		t.Fatalf("expected success via second key, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d (third key must not be tried)", attempts)
	}
	if c.pool.Current() != "k2" {
		t.Fatalf("cursor should remain on k2, got %q", c.pool.Current())
	}
}

func TestRetryPropagatesNonRateLimitErrors(t *testing.T) {
	c := testClient(t, "k1", "k2")

	bad := errors.New("connection reset by peer")
	attempts := 0
	err := c.executeWithRetry(context.Background(), func() error {
		attempts++
		return bad
	})

	if !errors.Is(err, bad) {
		t.Fatalf("expected the transient error to propagate, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("non-rate-limit failures must not rotate, got %d attempts", attempts)
	}
	if c.pool.Position() != 0 {
		t.Fatalf("cursor should stay at 0, got %d", c.pool.Position())
	}
}

// One Client instance serves every request handler, so rotation and
// transport reads must stay consistent when requests overlap. Run with
// the race detector.
func TestRotationSafeUnderConcurrentRequests(t *testing.T) {
	c := testClient(t, "k1", "k2", "k3")

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.executeWithRetry(context.Background(), func() error {
				c.transport()
				return fmt.Errorf("429 Too Many Requests")
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, ErrKeysExhausted) {
			t.Errorf("goroutine %d: expected ErrKeysExhausted, got %v", i, err)
		}
	}
}

func TestIsRateLimited(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&googleapi.Error{Code: http.StatusTooManyRequests}, true},
		{&googleapi.Error{Code: http.StatusInternalServerError}, false},
		{errors.New("Rate Limit reached for this model"), true},
		{errors.New("got HTTP 429 from upstream"), true},
		{errors.New("deadline exceeded"), false},
	}
	for _, tc := range cases {
		if got := isRateLimited(tc.err); got != tc.want {
			t.Errorf("isRateLimited(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestBuildPromptLimitsContext(t *testing.T) {
	prompt := buildPrompt("What is F = ma?", []string{"c1", "c2", "c3", "c4"})
	for _, want := range []string{"What is F = ma?", "Relevant Information:", "Context: c3"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "c4") {
		t.Error("prompt should carry at most three context snippets")
	}
}

func TestBuildPromptNoContext(t *testing.T) {
	if got := buildPrompt("plain question", nil); got != "plain question" {
		t.Fatalf("expected bare query, got %q", got)
	}
}
