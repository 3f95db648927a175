package llm

import (
	"context"
	"time"

	"google.golang.org/genai"

	"github.com/fuaadabdullah/goblin-runtime/internal/goblinerr"
)

// GeminiProvider wraps Google's generative-language API via the genai SDK.
type GeminiProvider struct {
	client  *genai.Client
	model   string
	retrier Retrier
}

// NewGeminiProvider builds a provider bound to apiKey, defaulting to
// gemini-1.5-flash when model is empty. Client construction only fails on
// malformed configuration, which is treated as a configuration error by the
// caller wiring providers together.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, goblinerr.Wrap(goblinerr.KindConfiguration, "constructing gemini client", err)
	}
	return &GeminiProvider{client: client, model: model, retrier: DefaultRetrier()}, nil
}

func (p *GeminiProvider) Name() string         { return "gemini" }
func (p *GeminiProvider) DefaultModel() string { return p.model }

func (p *GeminiProvider) genConfig(opts GenerateOptions) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if opts.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(opts.SystemPrompt, genai.RoleUser)
	}
	if opts.Temperature > 0 {
		temp := float32(opts.Temperature)
		cfg.Temperature = &temp
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	return cfg
}

func (p *GeminiProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	var text string
	err := p.retrier.Do(ctx, goblinerr.IsRetryable, func() error {
		resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), p.genConfig(opts))
		if err != nil {
			return goblinerr.NewProviderError(p.Name(), p.model, 0, err)
		}
		text = resp.Text()
		return nil
	})
	return text, err
}

func (p *GeminiProvider) GenerateStream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan Chunk, error) {
	out := make(chan Chunk)
	go func() {
		defer close(out)
		var outputTokens int
		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.model, genai.Text(prompt), p.genConfig(opts)) {
			if err != nil {
				out <- Chunk{Err: goblinerr.NewProviderError(p.Name(), p.model, 0, err), Done: true}
				return
			}
			text := resp.Text()
			if text != "" {
				outputTokens++
				out <- Chunk{Text: text}
			}
		}
		out <- Chunk{Done: true, OutputTokens: outputTokens}
	}()
	return out, nil
}

func (p *GeminiProvider) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text("ping"), nil)
	return err == nil
}
