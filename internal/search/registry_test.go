// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/literature-engine/pkg/types"
)

func TestCanonicalName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"arxiv", "arxiv"},
		{" ArXiv ", "arxiv"},
		{"semantic_scholar", "semanticscholar"},
		{"s2", "semanticscholar"},
		{"OpenAlex", "openalex"},
	}
	for _, tt := range tests {
		if got := CanonicalName(tt.in); got != tt.want {
			t.Errorf("CanonicalName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func registryConfig(sources ...string) types.Config {
	return types.Config{
		Search: types.SearchConfig{Sources: sources},
		Download: types.DownloadConfig{
			UseUnpaywall:   true,
			UnpaywallEmail: "me@example.org",
		},
	}
}

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry(registryConfig("arxiv", "semantic_scholar", "s2", "openalex"), http.DefaultClient)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	var names []string
	for _, s := range reg.Search {
		names = append(names, s.Name())
	}
	if len(names) != 3 || names[0] != "arxiv" || names[1] != "semanticscholar" || names[2] != "openalex" {
		t.Errorf("search sources = %v", names)
	}
	if reg.OpenAlex != reg.Search[2] {
		t.Error("configured OpenAlex should be reused for lookups")
	}
	lookups := reg.Lookups()
	if len(lookups) != 2 || lookups[0].Name() != "unpaywall" || lookups[1].Name() != "openalex" {
		t.Errorf("lookups = %v", lookups)
	}
	if got := len(reg.HealthReport()); got != 4 {
		t.Errorf("HealthReport entries = %d, want 4", got)
	}
}

func TestNewRegistryUnpaywallDisabled(t *testing.T) {
	cfg := registryConfig("arxiv")
	cfg.Download.UseUnpaywall = false
	reg, err := NewRegistry(cfg, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if reg.Unpaywall != nil {
		t.Error("Unpaywall built while disabled")
	}
	if reg.OpenAlex == nil {
		t.Error("OpenAlex lookup should always be available")
	}
	if len(reg.Lookups()) != 1 {
		t.Errorf("lookups = %d, want 1", len(reg.Lookups()))
	}
}

func TestNewRegistryUnknownSource(t *testing.T) {
	if _, err := NewRegistry(registryConfig("arxiv", "pubmed"), nil); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestNewSourceUnpaywallNeedsEmail(t *testing.T) {
	if _, err := NewSource("unpaywall", types.SearchConfig{}, types.DownloadConfig{}, nil); err == nil {
		t.Error("expected error without email")
	}
}

func TestFormatHealth(t *testing.T) {
	arxiv := NewHealth("arxiv", 2)
	arxiv.now = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }
	arxiv.RecordFailure()
	arxiv.RecordFailure()

	var buf bytes.Buffer
	FormatHealth([]HealthStatus{arxiv.Status(), NewHealth("openalex", 0).Status()}, &buf)
	out := buf.String()

	for _, want := range []string{
		"Source health:",
		"arxiv            unhealthy  failures=2  last=2025-03-04T05:06:07Z",
		"openalex         healthy    failures=0  last=-",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	FormatHealth(nil, &buf)
	if buf.Len() != 0 {
		t.Errorf("empty report wrote %q", buf.String())
	}
}
