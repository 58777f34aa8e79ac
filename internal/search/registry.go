// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/pdiddy/literature-engine/pkg/types"
)

// aliases maps accepted spellings to canonical source names.
var aliases = map[string]string{
	"semantic_scholar": "semanticscholar",
	"semantic-scholar": "semanticscholar",
	"s2":               "semanticscholar",
}

// CanonicalName lowercases a source name and resolves aliases.
func CanonicalName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if a, ok := aliases[n]; ok {
		return a
	}
	return n
}

// KnownSources lists the source names NewSource accepts.
func KnownSources() []string {
	return []string{"arxiv", "crossref", "openalex", "semanticscholar", "unpaywall"}
}

// NewSource constructs a source by name from the search and download
// configuration. Unpaywall returns an error when no contact email is set.
func NewSource(name string, cfg types.SearchConfig, dl types.DownloadConfig, client *http.Client) (Source, error) {
	opts := Options{
		Client:     client,
		UserAgent:  cfg.UserAgent,
		Retries:    cfg.RetryAttempts,
		RetryDelay: cfg.RetryDelay,
		Email:      cfg.OpenAlexEmail,
	}
	switch CanonicalName(name) {
	case "arxiv":
		opts.Delay = cfg.ArxivDelay
		return NewArxiv(opts), nil
	case "semanticscholar":
		opts.Delay = cfg.SemanticScholarDelay
		opts.APIKey = cfg.SemanticScholarAPIKey
		return NewSemanticScholar(opts), nil
	case "openalex":
		return NewOpenAlex(opts), nil
	case "crossref":
		if opts.Email == "" {
			opts.Email = dl.UnpaywallEmail
		}
		return NewCrossref(opts), nil
	case "unpaywall":
		if dl.UnpaywallEmail == "" {
			return nil, fmt.Errorf("unpaywall requires a contact email (UNPAYWALL_EMAIL)")
		}
		opts.Email = dl.UnpaywallEmail
		return NewUnpaywall(opts), nil
	default:
		return nil, fmt.Errorf("unknown source %q (known: %s)", name, strings.Join(KnownSources(), ", "))
	}
}

// Registry holds the configured sources plus the lookup sources the PDF
// acquirer uses for DOI resolution.
type Registry struct {
	// Search lists the configured sources in query order.
	Search []Source

	// Unpaywall is nil when Unpaywall is disabled or has no email.
	Unpaywall Source

	// OpenAlex is always available for best open-access lookups.
	OpenAlex Source
}

// NewRegistry builds the configured sources. Unknown names are an error.
// Lookup sources are reused when also configured for search so they share
// one rate limiter and health tracker.
func NewRegistry(cfg types.Config, client *http.Client) (*Registry, error) {
	reg := &Registry{}
	built := make(map[string]Source)
	for _, name := range cfg.Search.Sources {
		canonical := CanonicalName(name)
		if _, dup := built[canonical]; dup {
			continue
		}
		src, err := NewSource(canonical, cfg.Search, cfg.Download, client)
		if err != nil {
			return nil, err
		}
		built[canonical] = src
		reg.Search = append(reg.Search, src)
	}

	if cfg.Download.UnpaywallEnabled() {
		if src, ok := built["unpaywall"]; ok {
			reg.Unpaywall = src
		} else {
			src, err := NewSource("unpaywall", cfg.Search, cfg.Download, client)
			if err != nil {
				return nil, err
			}
			reg.Unpaywall = src
		}
	}

	if src, ok := built["openalex"]; ok {
		reg.OpenAlex = src
	} else {
		src, _ := NewSource("openalex", cfg.Search, cfg.Download, client)
		reg.OpenAlex = src
	}
	return reg, nil
}

// Lookups returns the lookup sources in ladder order (Unpaywall, then OpenAlex).
func (r *Registry) Lookups() []Source {
	var out []Source
	for _, src := range []Source{r.Unpaywall, r.OpenAlex} {
		if src != nil && src.Capabilities().Has(CapLookup) {
			out = append(out, src)
		}
	}
	return out
}

// HealthReport returns the health of every source that tracks it.
func (r *Registry) HealthReport() []HealthStatus {
	seen := make(map[string]HealthStatus)
	for _, src := range append(slices.Clone(r.Search), r.Lookups()...) {
		if src.Capabilities().Has(CapHealth) && src.Health() != nil {
			seen[src.Name()] = src.Health().Status()
		}
	}
	var out []HealthStatus
	for _, name := range slices.Sorted(maps.Keys(seen)) {
		out = append(out, seen[name])
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
