// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger persists failed PDF downloads so later runs can skip
// papers that are known not to be retrievable.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/literature-engine/internal/fsutil"
	"github.com/pdiddy/literature-engine/pkg/types"
)

// Ledger maps citation keys to failed downloads, stored as one JSON object
// in failed_downloads.json. It is safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	path    string
	log     zerolog.Logger
	now     func() time.Time
	entries map[string]types.FailedDownload
}

// Open loads the ledger at path. A missing or corrupted file yields an
// empty ledger; corruption is logged.
func Open(path string, log zerolog.Logger) (*Ledger, error) {
	l := &Ledger{
		path:    path,
		log:     log,
		now:     time.Now,
		entries: make(map[string]types.FailedDownload),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading failed-download ledger: %w", err)
	}
	if err := json.Unmarshal(data, &l.entries); err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed-download ledger is corrupted, starting empty")
		l.entries = make(map[string]types.FailedDownload)
	}
	return l, nil
}

// IsFailed reports whether key has a recorded failure.
func (l *Ledger) IsFailed(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[key]
	return ok
}

// Get returns the recorded failure for key.
func (l *Ledger) Get(key string) (types.FailedDownload, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, ok := l.entries[key]
	return f, ok
}

// SaveFailed records a failed download. Successful and suppressed results
// are not failures and are ignored.
func (l *Ledger) SaveFailed(result types.DownloadResult, title, source string) error {
	if !result.Failed() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	prev, had := l.entries[result.CitationKey]
	l.entries[result.CitationKey] = types.FailedDownload{
		CitationKey:    result.CitationKey,
		FailureReason:  result.FailureReason,
		FailureMessage: result.FailureMessage,
		AttemptedURLs:  slices.Clone(result.AttemptedURLs),
		Title:          title,
		Source:         source,
		Timestamp:      l.now().UTC().Format(time.RFC3339),
	}
	if err := l.saveLocked(); err != nil {
		if had {
			l.entries[result.CitationKey] = prev
		} else {
			delete(l.entries, result.CitationKey)
		}
		return err
	}
	return nil
}

// RemoveSuccessful drops key from the ledger after a successful download
// and reports whether an entry was removed.
func (l *Ledger) RemoveSuccessful(key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev, ok := l.entries[key]
	if !ok {
		return false, nil
	}
	delete(l.entries, key)
	if err := l.saveLocked(); err != nil {
		l.entries[key] = prev
		return false, err
	}
	return true, nil
}

// LoadFailed returns a copy of every recorded failure.
func (l *Ledger) LoadFailed() map[string]types.FailedDownload {
	l.mu.Lock()
	defer l.mu.Unlock()
	return maps.Clone(l.entries)
}

// Retriable returns the failures with transient reasons, sorted by key.
func (l *Ledger) Retriable() []types.FailedDownload {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []types.FailedDownload
	for _, key := range slices.Sorted(maps.Keys(l.entries)) {
		if f := l.entries[key]; f.Retriable() {
			out = append(out, f)
		}
	}
	return out
}

// CountByReason tallies failures by reason.
func (l *Ledger) CountByReason() map[types.FailureReason]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := make(map[types.FailureReason]int)
	for _, f := range l.entries {
		counts[f.FailureReason]++
	}
	return counts
}

// Len returns the number of recorded failures.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear removes every entry.
func (l *Ledger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]types.FailedDownload)
	return l.saveLocked()
}

func (l *Ledger) saveLocked() error {
	if err := fsutil.WriteJSONAtomic(l.path, l.entries); err != nil {
		return fmt.Errorf("saving failed-download ledger: %w", err)
	}
	return nil
}
