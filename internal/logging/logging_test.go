// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/literature-engine/pkg/types"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"nonsense", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(types.LoggingConfig{Level: "info", Format: "json"}, &buf)

	paperLog := WithPaper(WithRun(logger, "run-1"), "smith2023foo")
	paperLog.Info().Msg("downloaded")
	logger.Debug().Msg("hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "run-1", rec["run_id"])
	assert.Equal(t, "smith2023foo", rec["citation_key"])
	assert.Equal(t, "downloaded", rec["message"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestWithSource(t *testing.T) {
	var buf bytes.Buffer
	logger := WithSource(NewWithWriter(types.LoggingConfig{}, &buf), "arxiv", "active inference")
	logger.Warn().Msg("rate limited")

	assert.Contains(t, buf.String(), `"source":"arxiv"`)
	assert.Contains(t, buf.String(), `"keyword":"active inference"`)
}
