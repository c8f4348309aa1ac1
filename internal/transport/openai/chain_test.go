package openai

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/AlejoJamC/airweave/internal/domain"
)

type mockProvider struct {
	name  string
	calls int
	fn    func(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error)
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	m.calls++
	return m.fn(ctx, req)
}

func failing(name string) *mockProvider {
	return &mockProvider{name: name, fn: func(context.Context, domain.CompletionRequest) (domain.Completion, error) {
		return domain.Completion{}, errors.New(name + " down: " + domain.ErrLLMUnavailable.Error())
	}}
}

func answering(name, text string) *mockProvider {
	return &mockProvider{name: name, fn: func(context.Context, domain.CompletionRequest) (domain.Completion, error) {
		return domain.Completion{Text: text, Model: name}, nil
	}}
}

func TestChain_FirstProviderAnswers(t *testing.T) {
	primary, secondary := answering("primary", "a"), answering("secondary", "b")
	chain := NewChain(zap.NewNop(), primary, secondary)

	got, err := chain.Complete(context.Background(), domain.CompletionRequest{User: "q"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "a" {
		t.Errorf("expected primary answer, got %q", got.Text)
	}
	if secondary.calls != 0 {
		t.Error("secondary should not be called")
	}
}

func TestChain_FallsBack(t *testing.T) {
	primary, secondary := failing("primary"), answering("secondary", "b")
	chain := NewChain(zap.NewNop(), primary, secondary)

	got, err := chain.Complete(context.Background(), domain.CompletionRequest{User: "q"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Model != "secondary" {
		t.Errorf("expected secondary, got %q", got.Model)
	}
}

func TestChain_AllFail(t *testing.T) {
	chain := NewChain(zap.NewNop(), failing("a"), failing("b"))

	_, err := chain.Complete(context.Background(), domain.CompletionRequest{User: "q"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestChain_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	primary := &mockProvider{name: "primary", fn: func(context.Context, domain.CompletionRequest) (domain.Completion, error) {
		cancel()
		return domain.Completion{}, context.Canceled
	}}
	secondary := answering("secondary", "b")

	_, err := NewChain(zap.NewNop(), primary, secondary).Complete(ctx, domain.CompletionRequest{User: "q"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if secondary.calls != 0 {
		t.Error("chain should stop after cancellation")
	}
}

func TestChain_Empty(t *testing.T) {
	_, err := NewChain(zap.NewNop()).Complete(context.Background(), domain.CompletionRequest{})
	if !errors.Is(err, domain.ErrLLMUnavailable) {
		t.Fatalf("expected ErrLLMUnavailable, got %v", err)
	}
}
