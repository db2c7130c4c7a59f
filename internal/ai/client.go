package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"

	"exam-tutor-platform/internal/config"
	"exam-tutor-platform/internal/logger"
	"exam-tutor-platform/internal/telemetry"
)

// systemPrompt is the fixed tutor instruction sent with every completion.
// The step layout it requests is what the solution formatter parses.
const systemPrompt = `You are an expert JEE Mains tutor specializing in Mathematics, Physics, and Chemistry.
You provide clear, step-by-step solutions that are:
1. Aligned with the JEE Mains syllabus
2. Based on NCERT concepts and formulas
3. Structured with clear reasoning at each step
4. Include relevant formulas and their derivations when needed
5. Use provided context when available

Format your responses as:
- **Step 1: Understanding the Problem** - Identify what's given and what needs to be found
- **Step 2: Relevant Concepts/Formulas** - List the concepts and formulas needed
- **Step 3: Solution** - Detailed step-by-step solution with calculations
- **Step 4: Final Answer** - Clear statement of the final answer
- **Verification** (if applicable) - Quick check to verify the answer

Always be precise, educational, and focus on helping students understand the concepts.`

// maxContextSnippets caps how many retrieved passages go into the prompt.
const maxContextSnippets = 3

// TokenUsage mirrors the provider's usage counters.
type TokenUsage struct {
	PromptTokens     int32
	CompletionTokens int32
	TotalTokens      int32
}

// Completion is the typed result of a generation call.
type Completion struct {
	Answer string
	Model  string
	Usage  TokenUsage
}

type RateLimits struct {
	RPM int // Requests per minute
	TPM int // Tokens per minute
	RPD int // Requests per day
}

// Client wraps the Gemini API for both text generation and embeddings.
// A single credential pool and rotation cursor are shared by both paths:
// when a call fails with a rate-limit error the client switches to the next
// key and retries the same operation, up to one attempt per key.
type Client struct {
	cfg     *config.Config
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	metrics *telemetry.Metrics

	// mu guards the pool cursor and the transport swap. One Client is
	// shared by every request handler, so a rotation must never be
	// observed half finished.
	mu     sync.Mutex
	pool   *KeyPool
	client *genai.Client

	// connect builds the provider transport for a key. Overridable in tests.
	connect func(ctx context.Context, apiKey string) (*genai.Client, error)
}

// NewClient initializes the Gemini client with the configured key pool.
// Metrics may be nil.
func NewClient(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (*Client, error) {
	pool, err := NewKeyPool(cfg.APIKeys())
	if err != nil {
		return nil, err
	}

	limits := getRateLimits(cfg.APITier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.8
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	// RPM limit with some buffer
	limiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), limits.RPM/10+1)

	c := &Client{
		cfg:     cfg,
		pool:    pool,
		breaker: breaker,
		limiter: limiter,
		metrics: metrics,
		connect: func(ctx context.Context, apiKey string) (*genai.Client, error) {
			return genai.NewClient(ctx, option.WithAPIKey(apiKey))
		},
	}

	if err := c.reconnect(ctx, pool.Current()); err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}

	logger.Info("Gemini client initialized",
		"model", cfg.GenerationModel,
		"key", pool.Position()+1,
		"pool_size", pool.Size())

	return c, nil
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "free":
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	}
}

func (c *Client) reconnect(ctx context.Context, apiKey string) error {
	client, err := c.connect(ctx, apiKey)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		c.client.Close()
	}
	c.client = client
	return nil
}

// transport returns the current provider client. Every attempt re-reads
// it instead of caching the pointer, so a retry after rotation runs on
// the fresh transport.
func (c *Client) transport() *genai.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}

// executeWithRetry runs operation with rate-limit handling and key rotation.
// Non-rate-limit errors propagate immediately without rotation; a full
// rotation back to the first key yields ErrKeysExhausted.
func (c *Client) executeWithRetry(ctx context.Context, operation func() error) error {
	attempts := c.pool.Size()

	for attempt := 0; attempt < attempts; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		if !isRateLimited(err) {
			return err
		}
		if rerr := c.rotateKey(ctx); rerr != nil {
			return rerr
		}
	}

	return ErrKeysExhausted
}

// rotateKey advances the key pool and swaps the transport in one step
// under the client mutex. Concurrent requests mid-call on the displaced
// transport get a connection error, which propagates as non-rate-limit.
func (c *Client) rotateKey(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, ok := c.pool.Advance()
	if !ok {
		logger.Warn("Gemini key pool exhausted", "pool_size", c.pool.Size())
		return ErrKeysExhausted
	}
	client, err := c.connect(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to initialize Gemini client with fallback key: %w", err)
	}
	if c.client != nil {
		c.client.Close()
	}
	c.client = client

	logger.Warn("Switched to fallback Gemini key",
		"key", c.pool.Position()+1,
		"pool_size", c.pool.Size())
	if c.metrics != nil {
		c.metrics.RecordKeyRotation("rate_limit")
	}
	return nil
}

// isRateLimited reports whether err is a rate-limit condition: HTTP 429
// from the provider, or a "rate limit"/"429" marker in the message.
func isRateLimited(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "429")
}

// Complete generates a tutored answer for the query, grounding it on the
// provided context snippets (top 3 are used).
func (c *Client) Complete(ctx context.Context, query string, contextSnippets []string, temperature float32, maxTokens int32) (*Completion, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.complete")
	defer span.End()

	span.SetAttributes(
		attribute.String("gemini.model", c.cfg.GenerationModel),
		attribute.Int("gemini.context_snippets", len(contextSnippets)),
	)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	prompt := buildPrompt(query, contextSnippets)

	var out *Completion
	err := c.executeWithRetry(ctx, func() error {
		result, err := c.breaker.Execute(func() (interface{}, error) {
			model := c.transport().GenerativeModel(c.cfg.GenerationModel)
			model.SetTemperature(temperature)
			model.SetMaxOutputTokens(maxTokens)
			model.SystemInstruction = &genai.Content{
				Parts: []genai.Part{genai.Text(systemPrompt)},
			}
			return model.GenerateContent(ctx, genai.Text(prompt))
		})
		if err != nil {
			return err
		}
		comp, err := completionFromResponse(result.(*genai.GenerateContentResponse), c.cfg.GenerationModel)
		if err != nil {
			return err
		}
		out = comp
		return nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return nil, err
	}

	span.SetAttributes(attribute.Int("gemini.total_tokens", int(out.Usage.TotalTokens)))
	if c.metrics != nil {
		c.metrics.RecordTokensUsed(int64(out.Usage.TotalTokens), out.Model)
	}
	return out, nil
}

// EmbedTexts returns one embedding vector per input text, order preserved.
// Texts are embedded in batches; every batch goes through the same
// rotation state machine as completions.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.embed")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.embedding_model", c.cfg.EmbeddingsModel),
		attribute.Int("gemini.input_texts", len(texts)),
	)

	batchSize := c.cfg.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = 32
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var resp *genai.BatchEmbedContentsResponse
		err := c.executeWithRetry(ctx, func() error {
			em := c.transport().EmbeddingModel(c.cfg.EmbeddingsModel)
			b := em.NewBatch()
			for _, text := range batch {
				b.AddContent(genai.Text(text))
			}
			r, err := em.BatchEmbedContents(ctx, b)
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
		if err != nil {
			span.SetAttributes(attribute.Bool("gemini.error", true))
			return nil, err
		}

		batchVectors, err := embeddingsFromResponse(resp, len(batch))
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batchVectors...)
	}

	return vectors, nil
}

// completionFromResponse is the single conversion point from the provider
// SDK's response shape to the typed Completion.
func completionFromResponse(resp *genai.GenerateContentResponse, model string) (*Completion, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("empty completion response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return nil, fmt.Errorf("completion response contained no text parts")
	}

	comp := &Completion{Answer: sb.String(), Model: model}
	if resp.UsageMetadata != nil {
		comp.Usage = TokenUsage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		}
	}
	return comp, nil
}

// embeddingsFromResponse converts the provider's batch embedding response,
// enforcing one vector per input.
func embeddingsFromResponse(resp *genai.BatchEmbedContentsResponse, want int) ([][]float32, error) {
	if resp == nil || len(resp.Embeddings) != want {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("embedding response returned %d vectors for %d inputs", got, want)
	}

	vectors := make([][]float32, 0, want)
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("embedding response missing vector for input %d", i)
		}
		vectors = append(vectors, emb.Values)
	}
	return vectors, nil
}

// buildPrompt assembles the single user turn: the question followed by the
// top retrieved context snippets.
func buildPrompt(query string, contextSnippets []string) string {
	if len(contextSnippets) == 0 {
		return query
	}
	if len(contextSnippets) > maxContextSnippets {
		contextSnippets = contextSnippets[:maxContextSnippets]
	}

	var sb strings.Builder
	sb.WriteString(query)
	sb.WriteString("\n\nRelevant Information:\n")
	for _, snippet := range contextSnippets {
		sb.WriteString("Context: ")
		sb.WriteString(snippet)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Close releases the underlying provider transport.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
