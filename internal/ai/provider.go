package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable signals that no provider is configured. Callers degrade to
// text-only indexing/search instead of failing.
var ErrUnavailable = errors.New("ai provider not available")

// IEmbedProvider converts texts into fixed-length vectors. EmbedBatch accepts
// up to MaxBatchSize inputs per call and returns one vector per input in the
// same order.
type IEmbedProvider interface {
	Name() string
	EmbedBatch(ctx context.Context, model string, inputs []string) ([][]float32, error)
	// MaxBatchSize is the largest input count one provider call accepts.
	MaxBatchSize() int
}

// IChatProvider generates a completion for a prompt. Used by downstream
// summarize/classify surfaces, never by indexing itself.
type IChatProvider interface {
	Name() string
	Complete(ctx context.Context, model string, prompt string) (string, error)
}

type IEmbedder interface {
	EmbedBatch(ctx context.Context, inputs []string) ([][]float32, error)
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelName() string
	MaxBatchSize() int
}

type embedder struct {
	provider IEmbedProvider
	model    string
}

func NewEmbedder(p IEmbedProvider, model string) IEmbedder {
	return &embedder{provider: p, model: model}
}

func (e *embedder) EmbedBatch(ctx context.Context, inputs []string) ([][]float32, error) {
	return e.provider.EmbedBatch(ctx, e.model, inputs)
}

func (e *embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.provider.EmbedBatch(ctx, e.model, []string{text})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("provider returned no embedding")
	}
	return out[0], nil
}

func (e *embedder) ModelName() string {
	return e.model
}

func (e *embedder) MaxBatchSize() int {
	return e.provider.MaxBatchSize()
}

type EmbedProviderFactory func(args interface{}) (IEmbedProvider, error)
type ChatProviderFactory func(args interface{}) (IChatProvider, error)

var (
	embedRegistry = map[string]EmbedProviderFactory{}
	chatRegistry  = map[string]ChatProviderFactory{}
)

func RegisterEmbed(name string, factory EmbedProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	embedRegistry[key] = factory
}

func RegisterChat(name string, factory ChatProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	chatRegistry[key] = factory
}

func NewEmbedProvider(name string, args interface{}) (IEmbedProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	factory := embedRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported embedding provider: %s", name)
	}
	return factory(args)
}

func NewChatProvider(name string, args interface{}) (IChatProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	factory := chatRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported chat provider: %s", name)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("ai provider config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai provider config: %w", err)
	}
	return nil
}
