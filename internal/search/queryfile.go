// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/literature-engine/internal/fsutil"
	"github.com/pdiddy/literature-engine/pkg/types"
)

// QueryFile is the on-disk record of a search: the keywords, the settings
// that produced the results, and the ranked results themselves. A saved
// query file can be reloaded and downloaded from without re-querying APIs.
type QueryFile struct {
	Keywords []string               `yaml:"keywords"`
	Sources  []string               `yaml:"sources"`
	Config   QueryFileConfig        `yaml:"config"`
	Results  []types.SearchResult   `yaml:"results"`
	Summary  QuerySummary           `yaml:"summary"`
	Stats    map[string]SourceStats `yaml:"stats,omitempty"`
}

// QueryFileConfig stores the search configuration that produced the results.
type QueryFileConfig struct {
	Limit           int     `yaml:"limit"`
	MaxResults      int     `yaml:"max_results"`
	TitleSimilarity float64 `yaml:"title_similarity"`
}

// QuerySummary stores result statistics and a timestamp.
type QuerySummary struct {
	Total             int       `yaml:"total"`
	Raw               int       `yaml:"raw"`
	DuplicatesRemoved int       `yaml:"duplicates_removed"`
	SourceErrors      []string  `yaml:"source_errors,omitempty"`
	Timestamp         time.Time `yaml:"timestamp"`
}

// NewQueryFile builds a QueryFile from a finished search.
func NewQueryFile(keywords, sources []string, cfg QueryFileConfig, out Output, now time.Time) QueryFile {
	qf := QueryFile{
		Keywords: keywords,
		Sources:  sources,
		Config:   cfg,
		Results:  out.Results,
		Summary: QuerySummary{
			Total:             len(out.Results),
			Raw:               out.Raw,
			DuplicatesRemoved: out.DuplicatesRemoved,
			SourceErrors:      out.Errors(),
			Timestamp:         now.UTC(),
		},
	}
	if len(out.Stats) > 0 {
		qf.Stats = make(map[string]SourceStats, len(out.Stats))
		for name, st := range out.Stats {
			qf.Stats[name] = *st
		}
	}
	return qf
}

// WriteQueryFile saves qf as YAML, atomically.
func WriteQueryFile(path string, qf QueryFile) error {
	data, err := yaml.Marshal(&qf)
	if err != nil {
		return fmt.Errorf("marshaling query file: %w", err)
	}
	return fsutil.WriteFileAtomic(path, data)
}

// ReadQueryFile loads a previously saved query file from disk.
func ReadQueryFile(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing query file: %w", err)
	}
	if len(qf.Keywords) == 0 {
		return nil, fmt.Errorf("query file %s has no keywords", path)
	}
	return &qf, nil
}
