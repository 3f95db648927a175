package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fuaadabdullah/goblin-runtime/internal/goblinerr"
)

// LocalProvider talks to a local, Ollama-compatible HTTP endpoint. It is
// always the zero-cost provider in the pricing table and the provider
// PrefersLocal routes to.
type LocalProvider struct {
	baseURL string
	model   string
	client  *http.Client
	retrier Retrier
}

// NewLocalProvider builds a LocalProvider pointed at baseURL (default
// "http://localhost:11434") serving model (default "llama3").
func NewLocalProvider(baseURL, model string) *LocalProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3"
	}
	return &LocalProvider{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
		retrier: DefaultRetrier(),
	}
}

func (p *LocalProvider) Name() string         { return "local" }
func (p *LocalProvider) DefaultModel() string { return p.model }

type localGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type localGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (p *LocalProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	var result string
	err := p.retrier.Do(ctx, goblinerr.IsRetryable, func() error {
		body, err := json.Marshal(localGenerateRequest{Model: p.model, Prompt: prompt, System: opts.SystemPrompt, Stream: false})
		if err != nil {
			return goblinerr.NewProviderError(p.Name(), p.model, 0, err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
		if err != nil {
			return goblinerr.NewProviderError(p.Name(), p.model, 0, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			return goblinerr.NewProviderError(p.Name(), p.model, 0, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return goblinerr.NewProviderError(p.Name(), p.model, resp.StatusCode, fmt.Errorf("local provider returned status %d", resp.StatusCode))
		}
		var out localGenerateResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return goblinerr.NewProviderError(p.Name(), p.model, 0, err)
		}
		result = out.Response
		return nil
	})
	return result, err
}

func (p *LocalProvider) GenerateStream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan Chunk, error) {
	body, err := json.Marshal(localGenerateRequest{Model: p.model, Prompt: prompt, System: opts.SystemPrompt, Stream: true})
	if err != nil {
		return nil, goblinerr.NewProviderError(p.Name(), p.model, 0, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, goblinerr.NewProviderError(p.Name(), p.model, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, goblinerr.NewProviderError(p.Name(), p.model, 0, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, goblinerr.NewProviderError(p.Name(), p.model, resp.StatusCode, fmt.Errorf("local provider returned status %d", resp.StatusCode))
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		var inputTokens, outputTokens int
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				out <- Chunk{Err: ctx.Err(), Done: true}
				return
			default:
			}
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var piece localGenerateResponse
			if err := json.Unmarshal(line, &piece); err != nil {
				continue
			}
			outputTokens++
			if piece.Response != "" {
				out <- Chunk{Text: piece.Response}
			}
			if piece.Done {
				out <- Chunk{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens}
				return
			}
		}
		if err := scanner.Err(); err != nil {
			out <- Chunk{Err: goblinerr.NewProviderError(p.Name(), p.model, 0, err), Done: true}
			return
		}
		out <- Chunk{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens}
	}()
	return out, nil
}

func (p *LocalProvider) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
