// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/pdiddy/literature-engine/internal/fsutil"
)

// TextStore owns the extracted_text directory.
type TextStore struct {
	dir       string
	extractor Extractor
	log       zerolog.Logger
}

// NewTextStore creates a store writing to dir with extractor.
func NewTextStore(dir string, extractor Extractor, log zerolog.Logger) *TextStore {
	return &TextStore{dir: dir, extractor: extractor, log: log}
}

// Dir returns the text directory.
func (s *TextStore) Dir() string { return s.dir }

// Path returns the text file path for key.
func (s *TextStore) Path(key string) string {
	return filepath.Join(s.dir, key+".txt")
}

// HasExtractedText reports whether a non-empty text file exists for key.
func (s *TextStore) HasExtractedText(key string) bool {
	return fsutil.NonEmpty(s.Path(key))
}

// Load returns the stored text for key.
func (s *TextStore) Load(key string) (string, error) {
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		return "", fmt.Errorf("reading extracted text for %s: %w", key, err)
	}
	return string(data), nil
}

// ExtractAndSave extracts pdfPath and writes the text for key. It skips
// when a non-empty text file already exists. Failures are reported in the
// outcome and never leave a partial file behind.
func (s *TextStore) ExtractAndSave(ctx context.Context, pdfPath, key string) Outcome {
	out := Outcome{CitationKey: key, Path: s.Path(key)}
	log := s.log.With().Str("citation_key", key).Str("extractor", s.extractor.Name()).Logger()

	if info, err := os.Stat(out.Path); err == nil && info.Size() > 0 {
		out.Success = true
		out.Skipped = true
		out.CharCount = int(info.Size())
		return out
	}

	if _, err := os.Stat(pdfPath); err != nil {
		out.Error = fmt.Sprintf("PDF not found: %s", pdfPath)
		return out
	}

	raw, err := s.extractor.ExtractText(ctx, pdfPath)
	if err != nil {
		out.Error = err.Error()
		log.Warn().Err(err).Msg("text extraction failed")
		return out
	}

	text := Sanitize(raw)
	if text == "" {
		out.Error = ErrNoText.Error()
		log.Warn().Msg("pdf has no extractable text")
		return out
	}

	if err := fsutil.WriteFileAtomic(out.Path, []byte(text+"\n")); err != nil {
		out.Error = fmt.Sprintf("writing text: %v", err)
		return out
	}

	out.Success = true
	out.CharCount = utf8.RuneCountInString(text)
	log.Debug().Int("chars", out.CharCount).Msg("text extracted")
	return out
}

// Extract returns sanitized text for pdfPath without saving it.
func (s *TextStore) Extract(ctx context.Context, pdfPath string) (string, error) {
	raw, err := s.extractor.ExtractText(ctx, pdfPath)
	if err != nil {
		return "", err
	}
	text := Sanitize(raw)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// IsNoText reports whether err means the PDF had no text layer.
func IsNoText(err error) bool {
	return errors.Is(err, ErrNoText)
}

// Sanitize drops NUL and other control characters except tab, newline and
// carriage return, turns form feeds into paragraph breaks, and collapses
// runs of more than two blank lines.
func Sanitize(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToValidUTF8(s, "")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\f':
			b.WriteString("\n\n")
		case r == '\n' || r == '\t' || r == '\r':
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
		default:
			b.WriteRune(r)
		}
	}
	out := strings.ReplaceAll(b.String(), "\r\n", "\n")
	out = strings.ReplaceAll(out, "\r", "\n")

	lines := strings.Split(out, "\n")
	kept := lines[:0]
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blank++
			if blank > 2 {
				continue
			}
		} else {
			blank = 0
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
