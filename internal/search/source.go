// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search queries bibliographic APIs through a uniform Source
// capability and merges the results of a multi-keyword search.
//
// Each source declares a static capability set. The Searcher dispatches on
// that set: sources without CapSearch are skipped during search and used
// only for per-DOI lookups, and sources with CapHealth are skipped once they
// have failed too many times in a row.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/literature-engine/pkg/types"
)

// Capability is a bit set of operations a source supports.
type Capability uint8

const (
	CapSearch Capability = 1 << iota
	CapLookup
	CapHealth
)

// Has reports whether every bit of o is set in c.
func (c Capability) Has(o Capability) bool {
	return c&o == o
}

func (c Capability) String() string {
	var names []string
	if c.Has(CapSearch) {
		names = append(names, "search")
	}
	if c.Has(CapLookup) {
		names = append(names, "lookup")
	}
	if c.Has(CapHealth) {
		names = append(names, "health")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

var (
	// ErrUnsupported is returned by operations outside a source's capability set.
	ErrUnsupported = errors.New("operation not supported by source")

	// ErrRateLimited marks a rate-limit response (HTTP 429).
	ErrRateLimited = errors.New("rate limited")

	// ErrNotFound marks an HTTP 404 from a source API.
	ErrNotFound = errors.New("not found")
)

// RateLimitError reports that a source refused a request because of rate
// limiting. It wraps ErrRateLimited.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited (retry after %s)", e.Source, e.RetryAfter)
	}
	return e.Source + ": rate limited"
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// Source is one bibliographic API adapter.
type Source interface {
	// Name is the configuration tag and SearchResult.Source value.
	Name() string

	// Capabilities is the static set of supported operations.
	Capabilities() Capability

	// Search returns up to limit results for query. Sources without
	// CapSearch return ErrUnsupported.
	Search(ctx context.Context, query string, limit int) ([]types.SearchResult, error)

	// Lookup resolves a DOI to a single result, or nil when the source
	// does not know the DOI. Sources without CapLookup return ErrUnsupported.
	Lookup(ctx context.Context, doi string) (*types.SearchResult, error)

	// Health returns the source's health tracker. It is nil for sources
	// without CapHealth.
	Health() *Health
}
