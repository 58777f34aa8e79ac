// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/literature-engine/pkg/types"
)

// Claude API endpoints. Package-level vars for test substitution.
var (
	claudeAPIURL    = "https://api.anthropic.com/v1/messages"
	claudeModelsURL = "https://api.anthropic.com/v1/models"
)

const (
	claudeAPIVersion   = "2023-06-01"
	defaultClaudeModel = "claude-sonnet-4-5-20250929"
	defaultMaxTokens   = 4096
	maxErrorBody       = 512
)

// ClaudeClient calls the Claude Messages API.
type ClaudeClient struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Client      *http.Client
}

// NewClaudeClient creates a client from cfg.
func NewClaudeClient(cfg types.LLMConfig, client *http.Client) *ClaudeClient {
	model := cfg.Model
	if model == "" {
		model = defaultClaudeModel
	}
	return &ClaudeClient{
		APIKey:      cfg.APIKey,
		Model:       model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Client:      client,
	}
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature *float64        `json:"temperature,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// claudeStreamEvent covers the server-sent event payloads used here.
type claudeStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Name implements Client.
func (c *ClaudeClient) Name() string { return "anthropic/" + c.Model }

// Ping lists models to verify the API key.
func (c *ClaudeClient) Ping(ctx context.Context) error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: no Anthropic API key configured", ErrUnavailable)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, claudeModelsURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %v", ErrUnavailable, &APIError{Provider: "Claude", StatusCode: resp.StatusCode, Body: truncate(string(body), maxErrorBody)})
	}
	return nil
}

// Generate sends prompt as a single user message. With opts.OnChunk set
// the response is streamed.
func (c *ClaudeClient) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	maxTokens := firstPositive(opts.MaxTokens, c.MaxTokens, defaultMaxTokens)
	temp := c.Temperature
	if opts.Temperature > 0 {
		temp = opts.Temperature
	}

	reqBody := claudeRequest{
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: &temp,
		Stream:      opts.OnChunk != nil,
		Messages:    []claudeMessage{{Role: "user", Content: prompt}},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claudeAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return "", &APIError{Provider: "Claude", StatusCode: resp.StatusCode, Body: truncate(string(body), maxErrorBody)}
	}

	if opts.OnChunk != nil {
		return readClaudeStream(resp.Body, opts.OnChunk)
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", fmt.Errorf("decoding Claude response: %w", err)
	}
	var b strings.Builder
	for _, block := range cResp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", errors.New("no text content in Claude API response")
	}
	return b.String(), nil
}

// readClaudeStream consumes a server-sent event stream, forwarding text
// deltas to onChunk.
func readClaudeStream(r io.Reader, onChunk func(Chunk)) (string, error) {
	var b strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data:")
		if !ok {
			continue
		}
		var ev claudeStreamEvent
		if err := json.Unmarshal([]byte(strings.TrimSpace(data)), &ev); err != nil {
			continue
		}
		switch ev.Type {
		case "content_block_delta":
			if ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
				b.WriteString(ev.Delta.Text)
				onChunk(Chunk{Text: ev.Delta.Text})
			}
		case "message_stop":
			onChunk(Chunk{Done: true})
			return b.String(), nil
		case "error":
			return b.String(), fmt.Errorf("Claude stream error: %s: %s", ev.Error.Type, ev.Error.Message)
		}
	}
	if err := scanner.Err(); err != nil {
		return b.String(), fmt.Errorf("reading Claude stream: %w", err)
	}
	onChunk(Chunk{Done: true})
	return b.String(), nil
}

func (c *ClaudeClient) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", claudeAPIVersion)
}

func (c *ClaudeClient) httpClient() *http.Client {
	if c.Client == nil {
		return http.DefaultClient
	}
	return c.Client
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
