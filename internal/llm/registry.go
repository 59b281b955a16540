package llm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ZM-BAD/DAG-chat/internal/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ModelInfo is the public, listable shape of a registered model.
type ModelInfo struct {
	Name         string       `json:"name"`
	DisplayName  string       `json:"display_name"`
	Capabilities Capabilities `json:"capabilities"`
}

// Registry maps a public model identifier to the Adapter bound to it.
// It is built once at startup from config.Config and never mutated
// afterward, so reads need no more than a read lock against the
// construction goroutine's writes.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	info     []ModelInfo
}

// NewRegistry builds a Registry from cfg, instantiating one adapter per
// provider whose credentials are present. A provider with no API key
// (or, for Ollama, no host) is skipped rather than treated as an error.
func NewRegistry(cfg config.Config) (*Registry, error) {
	reg := &Registry{adapters: make(map[string]Adapter)}

	if cfg.OpenAIAPIKey != "" {
		m, err := openai.New(openai.WithToken(cfg.OpenAIAPIKey), openai.WithModel(cfg.OpenAIModel))
		if err != nil {
			return nil, fmt.Errorf("llm: init openai adapter: %w", err)
		}
		reg.register(cfg.OpenAIModel, "OpenAI "+cfg.OpenAIModel, m, Capabilities{Reasoning: false, Search: false})
	}

	if cfg.AnthropicAPIKey != "" {
		m, err := anthropic.New(anthropic.WithToken(cfg.AnthropicAPIKey), anthropic.WithModel(cfg.AnthropicModel))
		if err != nil {
			return nil, fmt.Errorf("llm: init anthropic adapter: %w", err)
		}
		// Reasoning is false here, not true: buildCallOptions never emits
		// EventReasoning or reads DeepThinking for any provider, Anthropic
		// included, so advertising it would promise a request the adapter
		// can't honor.
		reg.register(cfg.AnthropicModel, "Anthropic "+cfg.AnthropicModel, m, Capabilities{Reasoning: false, Search: false})
	}

	if cfg.OllamaHost != "" {
		m, err := ollama.New(ollama.WithModel(cfg.OllamaModel), ollama.WithServerURL(cfg.OllamaHost))
		if err != nil {
			return nil, fmt.Errorf("llm: init ollama adapter: %w", err)
		}
		reg.register(cfg.OllamaModel, "Ollama "+cfg.OllamaModel, m, Capabilities{Reasoning: false, Search: false})
	}

	if len(reg.adapters) == 0 {
		return nil, fmt.Errorf("llm: no model adapters configured, set at least one provider's API key")
	}

	return reg, nil
}

func (r *Registry) register(name, displayName string, m llms.Model, caps Capabilities) {
	a := &chatAdapter{llm: m, displayName: displayName, capabilities: caps}
	r.adapters[name] = a
	r.info = append(r.info, ModelInfo{Name: name, DisplayName: displayName, Capabilities: caps})
}

// Get returns the adapter bound to model, or ErrUnknownModel.
func (r *Registry) Get(model string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[model]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
	return a, nil
}

// ListModels returns every registered model, sorted by name.
func (r *Registry) ListModels() []ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ModelInfo, len(r.info))
	copy(out, r.info)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
