// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package progress tracks per-paper summarization state for one run and
// persists it after every change, so an interrupted run can resume.
package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pdiddy/literature-engine/internal/fsutil"
	"github.com/pdiddy/literature-engine/pkg/types"
)

// DefaultFile is the progress file name inside the data directory.
const DefaultFile = "summarization_progress.json"

// ErrNoRun is returned by operations that need a run when none is active.
var ErrNoRun = errors.New("no active summarization run")

// Tracker owns the SummarizationProgress of the current run. It is safe
// for concurrent use, although the workflow only mutates it from one
// goroutine.
type Tracker struct {
	mu    sync.Mutex
	path  string
	log   zerolog.Logger
	now   func() time.Time
	newID func() string
	cur   *types.SummarizationProgress
}

// New returns a tracker persisting to path. No run is active until
// StartNewRun or LoadExistingRun.
func New(path string, log zerolog.Logger) *Tracker {
	return &Tracker{
		path:  path,
		log:   log,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Path returns the progress file location.
func (t *Tracker) Path() string { return t.path }

// Update carries optional field changes applied with a status change. Zero
// values leave fields untouched.
type Update struct {
	PDFPath      string
	LastError    string
	ClearError   bool
	SummaryPath  string
	DownloadTime float64
	SummaryTime  float64

	// DownloadAttempts and SummaryAttempts are added to the counters.
	DownloadAttempts int
	SummaryAttempts  int
}

func (u Update) apply(e *types.ProgressEntry) {
	if u.PDFPath != "" {
		e.PDFPath = u.PDFPath
	}
	if u.ClearError {
		e.LastError = ""
	}
	if u.LastError != "" {
		e.LastError = u.LastError
	}
	if u.SummaryPath != "" {
		e.SummaryPath = u.SummaryPath
	}
	if u.DownloadTime > 0 {
		e.DownloadTime = u.DownloadTime
	}
	if u.SummaryTime > 0 {
		e.SummaryTime = u.SummaryTime
	}
	e.DownloadAttempts += u.DownloadAttempts
	e.SummaryAttempts += u.SummaryAttempts
}

// StartNewRun replaces any active run with a fresh one and saves it.
func (t *Tracker) StartNewRun(keywords []string, totalPapers int) (*types.SummarizationProgress, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ts := t.timestamp()
	t.cur = &types.SummarizationProgress{
		RunID:       t.newID(),
		Keywords:    slices.Clone(keywords),
		TotalPapers: totalPapers,
		StartTime:   ts,
		LastUpdate:  ts,
		Entries:     make(map[string]*types.ProgressEntry),
	}
	if err := t.saveLocked(); err != nil {
		return nil, err
	}
	t.log.Info().Str("run_id", t.cur.RunID).Int("papers", totalPapers).Msg("started summarization run")
	return snapshot(t.cur), nil
}

// LoadExistingRun adopts the run persisted at the tracker path. It returns
// nil without error when there is no file. A corrupted file is logged and
// treated as absent.
func (t *Tracker) LoadExistingRun() (*types.SummarizationProgress, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading progress file: %w", err)
	}

	var p types.SummarizationProgress
	if err := json.Unmarshal(data, &p); err != nil || p.RunID == "" {
		t.log.Error().Err(err).Str("path", t.path).Msg("progress file is unreadable, ignoring it")
		return nil, nil
	}
	if p.Entries == nil {
		p.Entries = make(map[string]*types.ProgressEntry)
	}
	for k, e := range p.Entries {
		if e == nil {
			delete(p.Entries, k)
			continue
		}
		e.CitationKey = k
	}
	t.cur = &p
	t.log.Info().Str("run_id", p.RunID).Int("entries", len(p.Entries)).
		Float64("completion", p.CompletionPercentage()).Msg("resuming summarization run")
	return snapshot(t.cur), nil
}

// Current returns a copy of the active run, or nil.
func (t *Tracker) Current() *types.SummarizationProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cur == nil {
		return nil
	}
	return snapshot(t.cur)
}

// Entry returns a copy of the entry for key.
func (t *Tracker) Entry(key string) (types.ProgressEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cur == nil {
		return types.ProgressEntry{}, false
	}
	e, ok := t.cur.Entries[key]
	if !ok {
		return types.ProgressEntry{}, false
	}
	return *e, true
}

// Save writes the active run.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cur == nil {
		return ErrNoRun
	}
	return t.saveLocked()
}

// SetTotalPapers records the run size once it is known.
func (t *Tracker) SetTotalPapers(n int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cur == nil {
		return ErrNoRun
	}
	t.cur.TotalPapers = n
	return t.saveLocked()
}

// AddPaper adds key to the run. A paper with a PDF starts as downloaded,
// one without as pending. It reports false when key is already tracked.
func (t *Tracker) AddPaper(key, pdfPath string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cur == nil {
		return false, ErrNoRun
	}
	if _, ok := t.cur.Entries[key]; ok {
		return false, nil
	}
	status := types.StatusPending
	if pdfPath != "" {
		status = types.StatusDownloaded
	}
	t.cur.Entries[key] = &types.ProgressEntry{CitationKey: key, PDFPath: pdfPath, Status: status}
	if err := t.saveLocked(); err != nil {
		delete(t.cur.Entries, key)
		return false, err
	}
	return true, nil
}

// UpdateEntryStatus moves key to status and applies u, then saves. An
// unknown key or a backward transition is logged and ignored; the returned
// bool reports whether the change was applied.
func (t *Tracker) UpdateEntryStatus(key string, status types.ProgressStatus, u Update) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cur == nil {
		return false, ErrNoRun
	}
	e, ok := t.cur.Entries[key]
	if !ok {
		t.log.Warn().Str("citation_key", key).Str("status", string(status)).Msg("progress update for unknown paper ignored")
		return false, nil
	}
	if !e.Status.CanTransition(status) {
		t.log.Warn().Str("citation_key", key).Str("from", string(e.Status)).Str("to", string(status)).
			Msg("illegal progress transition ignored")
		return false, nil
	}
	return t.commitLocked(e, status, u)
}

// Retry returns a terminal entry to downloaded so it is summarized again.
// It is the only way out of summarized or failed.
func (t *Tracker) Retry(key string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cur == nil {
		return false, ErrNoRun
	}
	e, ok := t.cur.Entries[key]
	if !ok || !e.Status.Terminal() {
		return false, nil
	}
	return t.commitLocked(e, types.StatusDownloaded, Update{ClearError: true})
}

func (t *Tracker) commitLocked(e *types.ProgressEntry, status types.ProgressStatus, u Update) (bool, error) {
	prev := *e
	e.Status = status
	u.apply(e)
	if err := t.saveLocked(); err != nil {
		*e = prev
		return false, err
	}
	return true, nil
}

// IncompletePapers returns the keys not yet summarized or failed, sorted.
func (t *Tracker) IncompletePapers() []string {
	return t.keys(func(e *types.ProgressEntry) bool { return !e.Status.Terminal() })
}

// FailedPapers returns the keys that failed, sorted.
func (t *Tracker) FailedPapers() []string {
	return t.keys(func(e *types.ProgressEntry) bool { return e.Status == types.StatusFailed })
}

func (t *Tracker) keys(keep func(*types.ProgressEntry) bool) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cur == nil {
		return nil
	}
	var out []string
	for k, e := range t.cur.Entries {
		if keep(e) {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

// ArchiveProgress renames the progress file with a timestamp suffix and
// ends the active run. It returns the archive path, or "" when there was
// no file.
func (t *Tracker) ArchiveProgress() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !fsutil.Exists(t.path) {
		t.cur = nil
		return "", nil
	}
	ext := filepath.Ext(t.path)
	archive := fmt.Sprintf("%s_%s%s", strings.TrimSuffix(t.path, ext), t.now().UTC().Format("20060102T150405Z"), ext)
	if err := os.Rename(t.path, archive); err != nil {
		return "", fmt.Errorf("archiving progress: %w", err)
	}
	t.cur = nil
	t.log.Info().Str("path", archive).Msg("archived summarization progress")
	return archive, nil
}

func (t *Tracker) saveLocked() error {
	t.cur.LastUpdate = t.timestamp()
	if err := fsutil.WriteJSONAtomic(t.path, t.cur); err != nil {
		return fmt.Errorf("saving progress: %w", err)
	}
	return nil
}

func (t *Tracker) timestamp() string {
	return t.now().UTC().Format(time.RFC3339)
}

func snapshot(p *types.SummarizationProgress) *types.SummarizationProgress {
	c := *p
	c.Keywords = slices.Clone(p.Keywords)
	c.Entries = make(map[string]*types.ProgressEntry, len(p.Entries))
	for k, e := range maps.All(p.Entries) {
		copied := *e
		c.Entries[k] = &copied
	}
	return &c
}
