package llm

import (
	"context"
	"testing"
)

type fakeProvider struct {
	name string
}

func (f *fakeProvider) Name() string         { return f.name }
func (f *fakeProvider) DefaultModel() string { return "fake-model" }
func (f *fakeProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	return prompt, nil
}
func (f *fakeProvider) GenerateStream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan Chunk, error) {
	out := make(chan Chunk, 2)
	out <- Chunk{Text: prompt}
	out <- Chunk{Done: true}
	close(out)
	return out, nil
}
func (f *fakeProvider) HealthCheck(ctx context.Context) bool { return true }

func TestSelectRoutersInOrder(t *testing.T) {
	reg := NewRegistry(&fakeProvider{name: "anthropic"}, &fakeProvider{name: "openai"})
	p, ok := reg.Select(BrainPreferences{Routers: []string{"openai", "anthropic"}})
	if !ok || p.Name() != "openai" {
		t.Fatalf("expected openai selected first per router order, got %+v ok=%v", p, ok)
	}
}

func TestSelectRouterAliasResolution(t *testing.T) {
	reg := NewRegistry(&fakeProvider{name: "gemini"})
	p, ok := reg.Select(BrainPreferences{Routers: []string{"google"}})
	if !ok || p.Name() != "gemini" {
		t.Fatalf("expected google alias to resolve to gemini, got %+v ok=%v", p, ok)
	}
}

func TestSelectPrefersLocal(t *testing.T) {
	reg := NewRegistry(&fakeProvider{name: "local"}, &fakeProvider{name: "openai"})
	p, ok := reg.Select(BrainPreferences{PrefersLocal: true})
	if !ok || p.Name() != "local" {
		t.Fatalf("expected local preferred, got %+v ok=%v", p, ok)
	}
}

func TestSelectCloudDefaultRank(t *testing.T) {
	reg := NewRegistry(&fakeProvider{name: "bedrock"}, &fakeProvider{name: "openai"})
	p, ok := reg.Select(BrainPreferences{})
	if !ok || p.Name() != "openai" {
		t.Fatalf("expected openai to outrank bedrock in fixed rank, got %+v ok=%v", p, ok)
	}
}

func TestSelectNoProviderAvailable(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.Select(BrainPreferences{})
	if ok {
		t.Fatalf("expected no provider available on empty registry")
	}
}

func TestGenerateStreamConcatenationMatchesGenerate(t *testing.T) {
	p := &fakeProvider{name: "fake"}
	ctx := context.Background()
	full, err := p.Generate(ctx, "hello world", GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	chunks, err := p.GenerateStream(ctx, "hello world", GenerateOptions{})
	if err != nil {
		t.Fatalf("GenerateStream error: %v", err)
	}
	var got string
	for c := range chunks {
		if c.Err != nil {
			t.Fatalf("chunk error: %v", c.Err)
		}
		got += c.Text
	}
	if got != full {
		t.Fatalf("streamed concatenation %q != blocking result %q", got, full)
	}
}
