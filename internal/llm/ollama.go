// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/literature-engine/pkg/types"
)

// DefaultOllamaURL is the local Ollama server.
const DefaultOllamaURL = "http://localhost:11434"

const defaultOllamaModel = "llama3.1:8b"

// OllamaClient calls a local Ollama server's /api/generate endpoint.
type OllamaClient struct {
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Client      *http.Client
}

// NewOllamaClient creates a client from cfg.
func NewOllamaClient(cfg types.LLMConfig, client *http.Client) *OllamaClient {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultOllamaURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}
	return &OllamaClient{
		BaseURL:     strings.TrimRight(base, "/"),
		Model:       model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Client:      client,
	}
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// ollamaResponse is one NDJSON line of a streamed response, or the whole
// body of a non-streamed one.
type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

type ollamaTags struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// Name implements Client.
func (o *OllamaClient) Name() string { return "ollama/" + o.Model }

// Ping checks that the server answers and the model has been pulled.
func (o *OllamaClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := o.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("%w: ollama at %s: %v", ErrUnavailable, o.BaseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: ollama at %s returned %d", ErrUnavailable, o.BaseURL, resp.StatusCode)
	}

	var tags ollamaTags
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("%w: decoding ollama tags: %v", ErrUnavailable, err)
	}
	for _, m := range tags.Models {
		if modelMatches(m.Name, o.Model) || modelMatches(m.Model, o.Model) {
			return nil
		}
	}
	return fmt.Errorf("%w: model %s is not pulled (run: ollama pull %s)", ErrUnavailable, o.Model, o.Model)
}

// modelMatches treats "name" and "name:latest" as the same model.
func modelMatches(have, want string) bool {
	if have == want {
		return true
	}
	return !strings.Contains(want, ":") && have == want+":latest"
}

// Generate implements Client. Responses are always streamed from the
// server; chunks are forwarded when opts.OnChunk is set.
func (o *OllamaClient) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	temp := o.Temperature
	if opts.Temperature > 0 {
		temp = opts.Temperature
	}
	payload, err := json.Marshal(ollamaRequest{
		Model:  o.Model,
		Prompt: prompt,
		Stream: true,
		Options: ollamaOptions{
			Temperature: temp,
			NumPredict:  firstPositive(opts.MaxTokens, o.MaxTokens),
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama generate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return "", &APIError{Provider: "Ollama", StatusCode: resp.StatusCode, Body: truncate(ollamaErrorText(body), maxErrorBody)}
	}
	return readOllamaStream(resp.Body, opts.OnChunk)
}

func readOllamaStream(r io.Reader, onChunk func(Chunk)) (string, error) {
	var b strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var part ollamaResponse
		if err := json.Unmarshal(line, &part); err != nil {
			return b.String(), fmt.Errorf("decoding ollama stream: %w", err)
		}
		if part.Error != "" {
			return b.String(), fmt.Errorf("ollama error: %s", part.Error)
		}
		if part.Response != "" {
			b.WriteString(part.Response)
			if onChunk != nil {
				onChunk(Chunk{Text: part.Response})
			}
		}
		if part.Done {
			if onChunk != nil {
				onChunk(Chunk{Done: true})
			}
			return b.String(), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return b.String(), fmt.Errorf("reading ollama stream: %w", err)
	}
	return b.String(), fmt.Errorf("ollama stream ended before done")
}

func ollamaErrorText(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return string(body)
}

func (o *OllamaClient) httpClient() *http.Client {
	if o.Client == nil {
		return http.DefaultClient
	}
	return o.Client
}
