package llm

import (
	"context"
	"errors"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fuaadabdullah/goblin-runtime/internal/goblinerr"
)

// OpenAIProvider wraps the OpenAI chat-completions API.
type OpenAIProvider struct {
	client  *openai.Client
	model   string
	retrier Retrier
}

// NewOpenAIProvider builds a provider bound to apiKey, defaulting to
// gpt-4o-mini when model is empty.
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIProvider{
		client:  openai.NewClient(apiKey),
		model:   model,
		retrier: DefaultRetrier(),
	}
}

func (p *OpenAIProvider) Name() string         { return "openai" }
func (p *OpenAIProvider) DefaultModel() string { return p.model }

func (p *OpenAIProvider) messages(prompt string, opts GenerateOptions) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if opts.SystemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: opts.SystemPrompt})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})
	return msgs
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	var text string
	err := p.retrier.Do(ctx, goblinerr.IsRetryable, func() error {
		req := openai.ChatCompletionRequest{
			Model:    p.model,
			Messages: p.messages(prompt, opts),
		}
		if opts.Temperature > 0 {
			req.Temperature = float32(opts.Temperature)
		}
		if opts.MaxTokens > 0 {
			req.MaxTokens = opts.MaxTokens
		}
		resp, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return goblinerr.NewProviderError(p.Name(), p.model, statusOf(err), err)
		}
		if len(resp.Choices) == 0 {
			return goblinerr.New(goblinerr.KindProviderInvalid, "openai returned no choices")
		}
		text = resp.Choices[0].Message.Content
		return nil
	})
	return text, err
}

func (p *OpenAIProvider) GenerateStream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan Chunk, error) {
	req := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: p.messages(prompt, opts),
		Stream:   true,
	}
	if opts.Temperature > 0 {
		req.Temperature = float32(opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, goblinerr.NewProviderError(p.Name(), p.model, statusOf(err), err)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer stream.Close()
		var outputTokens int
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				out <- Chunk{Done: true, OutputTokens: outputTokens}
				return
			}
			if err != nil {
				out <- Chunk{Err: goblinerr.NewProviderError(p.Name(), p.model, statusOf(err), err), Done: true}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta != "" {
				outputTokens++
				out <- Chunk{Text: delta}
			}
		}
	}()
	return out, nil
}

func (p *OpenAIProvider) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     p.model,
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "ping"}},
		MaxTokens: 1,
	})
	return err == nil
}
