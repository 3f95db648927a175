// Package llm defines the provider contract and the selection rule that
// picks a provider for an agent's task, plus the concrete vendor bindings
// (anthropic.go, openai.go, gemini.go, bedrock.go, local.go).
package llm

import (
	"context"
	"sort"
	"strings"
)

// GenerateOptions carries the optional generation parameters shared by
// blocking and streaming calls.
type GenerateOptions struct {
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// Chunk is one piece of a streaming response. Done is true on the final
// chunk; Err is set if the stream terminated with a ProviderError.
type Chunk struct {
	Text string
	Done bool
	Err  error

	// InputTokens/OutputTokens are only populated on the final chunk.
	InputTokens  int
	OutputTokens int
}

// Provider is the uniform contract every LLM backend implements: blocking
// and streaming generation plus a best-effort bounded health check.
type Provider interface {
	// Name is the provider's identifier, e.g. "anthropic".
	Name() string

	// Generate produces the full response text for prompt, or fails with a
	// *goblinerr.ProviderError.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// GenerateStream produces an asynchronous sequence of chunks whose
	// concatenated Text equals what Generate would have produced for
	// identical inputs. The channel is closed after the terminal chunk.
	GenerateStream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan Chunk, error)

	// HealthCheck is a bounded-time best-effort liveness probe.
	HealthCheck(ctx context.Context) bool

	// DefaultModel is the model identifier used when a request doesn't name
	// one explicitly.
	DefaultModel() string
}

// aliasTable normalizes provider identifiers an agent's brain.routers list
// may use.
var aliasTable = map[string]string{
	"google": "gemini",
	"claude": "anthropic",
	"local":  "local",
}

// CanonicalName resolves an identifier through the alias table
// (case-insensitive).
func CanonicalName(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if canonical, ok := aliasTable[id]; ok {
		return canonical
	}
	return id
}

// cloudDefaultRank is the fixed-rank fallback order used when an agent's
// brain preferences don't resolve to any initialized provider and
// PrefersLocal didn't help either.
var cloudDefaultRank = []string{"anthropic", "openai", "gemini", "bedrock"}

// Registry holds the set of initialized providers, keyed by canonical name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a Registry from a set of initialized providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: map[string]Provider{}}
	for _, p := range providers {
		r.providers[CanonicalName(p.Name())] = p
	}
	return r
}

// Get returns the provider registered under the canonical name, if any.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[CanonicalName(name)]
	return p, ok
}

// Len reports how many providers are registered.
func (r *Registry) Len() int { return len(r.providers) }

// BrainPreferences is the subset of model.Brain the selection rule needs.
type BrainPreferences struct {
	Routers      []string
	PrefersLocal bool
}

// Select implements the provider selection rule:
//  1. walk brain.Routers in order, resolving aliases, using the first
//     initialized provider found;
//  2. otherwise, if PrefersLocal and "local" is initialized, use it;
//  3. otherwise, prefer the first initialized provider in cloudDefaultRank;
//  4. otherwise, pick any initialized provider deterministically by name;
//  5. if none exists, ok is false (caller raises NoProviderAvailable).
func (r *Registry) Select(brain BrainPreferences) (Provider, bool) {
	for _, id := range brain.Routers {
		if p, ok := r.Get(id); ok {
			return p, true
		}
	}

	if brain.PrefersLocal {
		if p, ok := r.Get("local"); ok {
			return p, true
		}
	}

	for _, name := range cloudDefaultRank {
		if p, ok := r.providers[name]; ok {
			return p, true
		}
	}

	if len(r.providers) == 0 {
		return nil, false
	}
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return r.providers[names[0]], true
}
