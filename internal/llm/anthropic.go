package llm

import (
	"context"
	"errors"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"

	"github.com/fuaadabdullah/goblin-runtime/internal/goblinerr"
)

// AnthropicProvider wraps the Anthropic Messages API.
type AnthropicProvider struct {
	client  anthropic.Client
	model   string
	retrier Retrier
}

// NewAnthropicProvider builds a provider bound to apiKey, defaulting to
// claude-sonnet-4-20250514 when model is empty.
func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	return &AnthropicProvider{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		retrier: DefaultRetrier(),
	}
}

func (p *AnthropicProvider) Name() string         { return "anthropic" }
func (p *AnthropicProvider) DefaultModel() string { return p.model }

func (p *AnthropicProvider) params(prompt string, opts GenerateOptions) anthropic.MessageNewParams {
	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if opts.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: opts.SystemPrompt}}
	}
	return params
}

func (p *AnthropicProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	var text string
	err := p.retrier.Do(ctx, goblinerr.IsRetryable, func() error {
		message, err := p.client.Messages.New(ctx, p.params(prompt, opts))
		if err != nil {
			return goblinerr.NewProviderError(p.Name(), p.model, statusOf(err), err)
		}
		var b []byte
		for _, block := range message.Content {
			if block.Type == "text" {
				b = append(b, block.Text...)
			}
		}
		text = string(b)
		return nil
	})
	return text, err
}

func (p *AnthropicProvider) GenerateStream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan Chunk, error) {
	stream := p.client.Messages.NewStreaming(ctx, p.params(prompt, opts))

	out := make(chan Chunk)
	go func() {
		defer close(out)
		var message anthropic.Message
		var inputTokens, outputTokens int

		for stream.Next() {
			event := stream.Current()
			if err := message.Accumulate(event); err != nil {
				out <- Chunk{Err: goblinerr.NewProviderError(p.Name(), p.model, 0, err), Done: true}
				return
			}

			switch delta := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if delta.Delta.Text != "" {
					out <- Chunk{Text: delta.Delta.Text}
				}
			case anthropic.MessageDeltaEvent:
				outputTokens = int(delta.Usage.OutputTokens)
			case anthropic.MessageStartEvent:
				inputTokens = int(delta.Message.Usage.InputTokens)
			}
		}
		if err := stream.Err(); err != nil {
			out <- Chunk{Err: goblinerr.NewProviderError(p.Name(), p.model, 0, err), Done: true}
			return
		}
		out <- Chunk{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens}
	}()
	return out, nil
}

func (p *AnthropicProvider) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	return err == nil
}

// statusOf best-effort extracts an HTTP status code from a vendor SDK error
// for classification. Each SDK wraps transport failures in its own type, so
// this tries the shapes this package's bindings actually return and
// degrades to zero otherwise (the message-based classifier in goblinerr
// still applies).
func statusOf(err error) int {
	type statusCoder interface{ StatusCode() int }
	if sc, ok := err.(statusCoder); ok {
		return sc.StatusCode()
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	return 0
}
