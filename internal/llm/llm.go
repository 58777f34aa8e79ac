// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm provides text generation clients for the summarization
// engine: a local Ollama server and the hosted Claude Messages API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/pdiddy/literature-engine/pkg/types"
)

// ErrUnavailable means the LLM backend cannot be reached or is not
// configured. Operations that need an LLM are skipped rather than failed.
var ErrUnavailable = errors.New("llm unavailable")

// Chunk is one piece of a streamed response.
type Chunk struct {
	Text string
	Done bool
}

// Options tunes one Generate call. Zero values use the client defaults.
type Options struct {
	// OnChunk, when set, requests a streamed response and receives each
	// piece as it arrives. It runs on the calling goroutine.
	OnChunk func(Chunk)

	Temperature float64
	MaxTokens   int
}

// Client generates text from a prompt.
type Client interface {
	// Name identifies the backend and model in logs.
	Name() string

	// Generate returns the full response text.
	Generate(ctx context.Context, prompt string, opts Options) (string, error)

	// Ping checks that the backend is reachable and the model is usable.
	// It returns an error wrapping ErrUnavailable when it is not.
	Ping(ctx context.Context) error
}

// New builds the client selected by cfg.
func New(cfg types.LLMConfig, client *http.Client) (Client, error) {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	switch cfg.Provider {
	case types.ProviderOllama, "":
		return NewOllamaClient(cfg, client), nil
	case types.ProviderAnthropic:
		return NewClaudeClient(cfg, client), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}

// APIError is a non-200 response from an LLM API.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API returned %d: %s", e.Provider, e.StatusCode, e.Body)
}

// ErrorClass groups LLM failures for reporting.
type ErrorClass string

const (
	ClassNone         ErrorClass = ""
	ClassConnection   ErrorClass = "llm_connection"
	ClassTimeout      ErrorClass = "timeout"
	ClassContextLimit ErrorClass = "context_limit"
	ClassRate         ErrorClass = "rate"
	ClassOther        ErrorClass = "other"
)

// ClassifyError maps an LLM error to an ErrorClass.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}
	if errors.Is(err, ErrUnavailable) {
		return ClassConnection
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		body := strings.ToLower(apiErr.Body)
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode == 529:
			return ClassRate
		case apiErr.StatusCode == http.StatusRequestTimeout || apiErr.StatusCode == http.StatusGatewayTimeout:
			return ClassTimeout
		case isContextLimit(body):
			return ClassContextLimit
		}
		return ClassOther
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return ClassConnection
	}
	if isContextLimit(strings.ToLower(err.Error())) {
		return ClassContextLimit
	}
	return ClassOther
}

func isContextLimit(msg string) bool {
	for _, marker := range []string{"context length", "context window", "maximum context", "too long", "prompt is too long"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
