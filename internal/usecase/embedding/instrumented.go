package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/AlejoJamC/airweave/internal/domain"
	"github.com/AlejoJamC/airweave/internal/metrics"
)

// Limiter throttles provider calls. *rate.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}

// InstrumentedEmbedder wraps Embedder with provider throttling and logging.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	limiter  Limiter
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder with throttling and observability.
// limiter may be nil.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	limiter Limiter, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		limiter:  limiter,
		logger:   logger,
	}
}

// Embed waits for the limiter, delegates to the inner embedder, and logs the call.
func (p *InstrumentedEmbedder) Embed(
	ctx context.Context, text string,
) (domain.EmbeddingResult, error) {
	if p.limiter != nil {
		waitStart := time.Now()
		if err := p.limiter.Wait(ctx); err != nil {
			p.logger.Warn("Embedding rate limit wait aborted",
				zap.String("provider", p.provider),
				zap.String("model", p.model),
				zap.Error(err),
			)
			return domain.EmbeddingResult{}, fmt.Errorf("rate limit wait: %w: %w", domain.ErrRateLimited, err)
		}
		metrics.EmbeddingLimiterWaitSeconds.WithLabelValues(p.provider, p.model).
			Observe(time.Since(waitStart).Seconds())
	}

	start := time.Now()
	result, err := p.inner.Embed(ctx, text)
	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}
