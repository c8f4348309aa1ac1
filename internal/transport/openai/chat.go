package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/AlejoJamC/airweave/internal/domain"
	"github.com/AlejoJamC/airweave/internal/metrics"
)

// BreakerConfig holds circuit breaker settings for a chat provider.
type BreakerConfig struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// ChatConfig holds the settings for one chat completion provider.
type ChatConfig struct {
	Name              string
	APIKey            string
	BaseURL           string
	Model             string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Retry             RetryPolicy
	Breaker           BreakerConfig
	Logger            *zap.Logger
}

// ChatClient is an OpenAI-compatible chat completion provider guarded by a
// rate limiter, a circuit breaker and a retry policy.
type ChatClient struct {
	client  *openai.Client
	name    string
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	retry   RetryPolicy
	logger  *zap.Logger
}

// NewChatClient creates a chat provider.
func NewChatClient(cfg ChatConfig) *ChatClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(1, cfg.Burst))
	}

	return &ChatClient{
		client:  openai.NewClientWithConfig(clientCfg),
		name:    cfg.Name,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		limiter: limiter,
		breaker: newBreaker(cfg.Name, cfg.Breaker, logger),
		retry:   cfg.Retry,
		logger:  logger,
	}
}

func newBreaker(name string, cfg BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < max(1, cfg.MinRequests) {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		// A caller giving up is not a provider failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.LLMBreakerState.WithLabelValues(name).Set(float64(to))
			logger.Warn("LLM circuit breaker state changed",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// Name returns the provider name.
func (c *ChatClient) Name() string { return c.name }

// Complete implements domain.LLM.
func (c *ChatClient) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			metrics.LLMRequestsTotal.WithLabelValues(c.name, "rate_limited").Inc()
			return domain.Completion{}, fmt.Errorf("%s rate limiter: %w", c.name, err)
		}
	}

	start := time.Now()
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.completeWithRetry(ctx, req)
	})
	metrics.LLMRequestDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.LLMRequestsTotal.WithLabelValues(c.name, "breaker_open").Inc()
			return domain.Completion{}, fmt.Errorf("%s: %w: %w", c.name, err, domain.ErrLLMUnavailable)
		}
		metrics.LLMRequestsTotal.WithLabelValues(c.name, "error").Inc()
		return domain.Completion{}, err
	}

	completion := out.(domain.Completion)
	metrics.LLMRequestsTotal.WithLabelValues(c.name, "success").Inc()
	metrics.LLMTokensTotal.WithLabelValues(c.name, "prompt").Add(float64(completion.PromptTokens))
	metrics.LLMTokensTotal.WithLabelValues(c.name, "completion").Add(float64(completion.CompletionTokens))
	return completion, nil
}

func (c *ChatClient) completeWithRetry(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	chatReq := c.buildRequest(req)

	var completion domain.Completion
	err := c.retry.do(ctx, func(ctx context.Context) error {
		attemptCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		resp, err := c.client.CreateChatCompletion(attemptCtx, chatReq)
		if err != nil {
			c.logger.Debug("LLM attempt failed",
				zap.String("provider", c.name),
				zap.Error(err),
			)
			return err //nolint:wrapcheck // classified by retryable, wrapped below
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			return fmt.Errorf("empty completion: %w", domain.ErrLLMUnavailable)
		}

		completion = domain.Completion{
			Text:             resp.Choices[0].Message.Content,
			Model:            resp.Model,
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrLLMUnavailable) {
			return domain.Completion{}, fmt.Errorf("%s: %w", c.name, err)
		}
		return domain.Completion{}, parseAPIError(c.name+" completion", err, domain.ErrLLMUnavailable)
	}
	return completion, nil
}

func (c *ChatClient) buildRequest(req domain.CompletionRequest) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.User,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return chatReq
}
