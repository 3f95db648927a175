package llm

import (
	"context"
	"encoding/json"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/fuaadabdullah/goblin-runtime/internal/goblinerr"
)

// BedrockProvider invokes Anthropic-family models through AWS Bedrock's
// runtime API, using the Messages-API-compatible request body Bedrock
// accepts for anthropic.* model ids.
type BedrockProvider struct {
	client  *bedrockruntime.Client
	model   string
	retrier Retrier
}

// NewBedrockProvider loads the default AWS credential chain for region and
// builds a provider bound to model (default
// anthropic.claude-3-5-sonnet-20241022-v2:0).
func NewBedrockProvider(ctx context.Context, region, model string) (*BedrockProvider, error) {
	if model == "" {
		model = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, goblinerr.Wrap(goblinerr.KindConfiguration, "loading AWS config for bedrock", err)
	}
	return &BedrockProvider{
		client:  bedrockruntime.NewFromConfig(cfg),
		model:   model,
		retrier: DefaultRetrier(),
	}, nil
}

func (p *BedrockProvider) Name() string         { return "bedrock" }
func (p *BedrockProvider) DefaultModel() string { return p.model }

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type bedrockStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Text string `json:"text"`
	} `json:"delta"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *BedrockProvider) body(prompt string, opts GenerateOptions) ([]byte, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return json.Marshal(bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		System:           opts.SystemPrompt,
		Messages:         []bedrockMessage{{Role: "user", Content: prompt}},
	})
}

func (p *BedrockProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	var text string
	err := p.retrier.Do(ctx, goblinerr.IsRetryable, func() error {
		body, err := p.body(prompt, opts)
		if err != nil {
			return goblinerr.NewProviderError(p.Name(), p.model, 0, err)
		}
		out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     &p.model,
			ContentType: stringPtr("application/json"),
			Body:        body,
		})
		if err != nil {
			return goblinerr.NewProviderError(p.Name(), p.model, 0, err)
		}
		var resp bedrockResponse
		if err := json.Unmarshal(out.Body, &resp); err != nil {
			return goblinerr.NewProviderError(p.Name(), p.model, 0, err)
		}
		for _, block := range resp.Content {
			text += block.Text
		}
		return nil
	})
	return text, err
}

func (p *BedrockProvider) GenerateStream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan Chunk, error) {
	body, err := p.body(prompt, opts)
	if err != nil {
		return nil, goblinerr.NewProviderError(p.Name(), p.model, 0, err)
	}
	resp, err := p.client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     &p.model,
		ContentType: stringPtr("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, goblinerr.NewProviderError(p.Name(), p.model, 0, err)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		stream := resp.GetStream()
		defer stream.Close()
		var outputTokens int
		for event := range stream.Events() {
			chunkEvent, ok := event.(*types.ResponseStreamMemberChunk)
			if !ok {
				continue
			}
			var piece bedrockStreamEvent
			if err := json.Unmarshal(chunkEvent.Value.Bytes, &piece); err != nil {
				continue
			}
			if piece.Delta.Text != "" {
				out <- Chunk{Text: piece.Delta.Text}
			}
			if piece.Usage.OutputTokens > 0 {
				outputTokens = piece.Usage.OutputTokens
			}
		}
		if err := stream.Err(); err != nil {
			out <- Chunk{Err: goblinerr.NewProviderError(p.Name(), p.model, 0, err), Done: true}
			return
		}
		out <- Chunk{Done: true, OutputTokens: outputTokens}
	}()
	return out, nil
}

func (p *BedrockProvider) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	body, err := p.body("ping", GenerateOptions{MaxTokens: 1})
	if err != nil {
		return false
	}
	_, err = p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &p.model,
		ContentType: stringPtr("application/json"),
		Body:        body,
	})
	return err == nil
}

func stringPtr(s string) *string { return &s }
