// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and contact addresses from a directory of
// plain-text files. Each file holds one secret: the filename is the key and
// the trimmed contents are the value.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Key files recognized by the CLI.
const (
	SemanticScholarAPIKey = "semantic-scholar-api-key"
	UnpaywallEmail        = "unpaywall-email"
	OpenAlexEmail         = "openalex-email"
	AnthropicAPIKey       = "anthropic-api-key"
)

// Set is the loaded secrets, keyed by filename.
type Set map[string]string

// Get returns the secret named key, or "" when absent.
func (s Set) Get(key string) string {
	if s == nil {
		return ""
	}
	return s[key]
}

// Load reads all files in dir and returns their trimmed contents.
// A missing directory is not an error; Load returns an empty set.
// Unreadable files are logged as warnings and skipped.
func Load(dir string, logger zerolog.Logger) (Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Set{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(Set)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn().Err(err).Str("secret", name).Msg("could not read secret")
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}
