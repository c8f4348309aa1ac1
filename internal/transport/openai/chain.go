package openai

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/AlejoJamC/airweave/internal/domain"
)

// Provider is a named chat completion backend.
type Provider interface {
	domain.LLM
	Name() string
}

// Chain tries providers in order until one answers.
type Chain struct {
	providers []Provider
	logger    *zap.Logger
}

// NewChain creates a provider chain. Order is preference order.
func NewChain(logger *zap.Logger, providers ...Provider) *Chain {
	return &Chain{providers: providers, logger: logger}
}

// Complete implements domain.LLM. Caller cancellation stops the chain.
func (c *Chain) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	if len(c.providers) == 0 {
		return domain.Completion{}, fmt.Errorf("no LLM providers configured: %w", domain.ErrLLMUnavailable)
	}

	var errs []error
	for i, p := range c.providers {
		completion, err := p.Complete(ctx, req)
		if err == nil {
			if i > 0 {
				c.logger.Info("LLM fallback provider answered",
					zap.String("provider", p.Name()),
					zap.Int("position", i),
				)
			}
			return completion, nil
		}

		errs = append(errs, err)
		if ctx.Err() != nil {
			return domain.Completion{}, fmt.Errorf("llm chain: %w", ctx.Err())
		}
		c.logger.Warn("LLM provider failed, trying next",
			zap.String("provider", p.Name()),
			zap.Error(err),
		)
	}

	return domain.Completion{}, fmt.Errorf("all LLM providers failed: %w", errors.Join(errs...))
}
