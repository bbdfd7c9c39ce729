package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"

	"github.com/cmazet/ragchat/internal/log"
)

const (
	embedTimeout    = 30 * time.Second
	completeTimeout = 2 * time.Minute
)

// Client talks to an Azure OpenAI deployment. It implements Embedder and
// Generator, charging every call against the configured Budget before the
// request is issued.
type Client struct {
	api                 openai.Client
	chatDeployment      string
	embeddingDeployment string
	temperature         float64
	maxTokens           int
	budget              *Budget
	limiter             *rate.Limiter
	retry               RetryConfig
	logger              log.Logger
}

// ClientConfig holds the connection and generation settings for a Client.
type ClientConfig struct {
	Endpoint            string
	APIKey              string
	APIVersion          string
	ChatDeployment      string
	EmbeddingDeployment string
	Temperature         float64
	MaxTokens           int
}

// Option configures optional Client behavior.
type Option func(*Client)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithBudget attaches a cost tracker. Without one, spend is not capped.
func WithBudget(b *Budget) Option {
	return func(c *Client) { c.budget = b }
}

// WithRateLimit sets requests-per-second across all provider calls.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithRetryConfig overrides the default retry policy.
func WithRetryConfig(rc RetryConfig) Option {
	return func(c *Client) { c.retry = rc }
}

// NewClient creates a provider client for the given Azure OpenAI resource.
func NewClient(cfg ClientConfig, opts ...Option) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrProvider)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api key is required", ErrProvider)
	}

	c := &Client{
		api: openai.NewClient(
			azure.WithEndpoint(cfg.Endpoint, cfg.APIVersion),
			azure.WithAPIKey(cfg.APIKey),
			option.WithMaxRetries(0), // retries are handled by withRetry
		),
		chatDeployment:      cfg.ChatDeployment,
		embeddingDeployment: cfg.EmbeddingDeployment,
		temperature:         cfg.Temperature,
		maxTokens:           cfg.MaxTokens,
		retry:               DefaultRetryConfig(),
		logger:              log.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Embed returns the embedding vector for text. The estimated cost is
// reserved against the budget before the call.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := c.budget.Reserve(EstimateTokens(text), CostEmbedding); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	var vector []float64
	err := c.withRetry(ctx, "create embedding", func(ctx context.Context) error {
		resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
			Model: openai.EmbeddingModel(c.embeddingDeployment),
		})
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("empty embedding response")
		}
		vector = resp.Data[0].Embedding
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	return vector, nil
}

// Complete generates an answer for the prompt under the system message.
// Input cost and the worst-case output cost are reserved up front.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	if err := c.budget.Reserve(EstimateTokens(system)+EstimateTokens(prompt), CostChatInput); err != nil {
		return "", err
	}
	if err := c.budget.Reserve(c.maxTokens, CostChatOutput); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, completeTimeout)
	defer cancel()

	var answer string
	err := c.withRetry(ctx, "chat completion", func(ctx context.Context) error {
		resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(system),
				openai.UserMessage(prompt),
			},
			Model:       openai.ChatModel(c.chatDeployment),
			MaxTokens:   openai.Int(int64(c.maxTokens)),
			Temperature: openai.Float(c.temperature),
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty completion response")
		}
		answer = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProvider, err)
	}
	return answer, nil
}

// Budget returns the attached cost tracker, or nil when spend is uncapped.
func (c *Client) Budget() *Budget { return c.budget }

var _ interface {
	Embedder
	Generator
} = (*Client)(nil)
