// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package library maintains the canonical set of known papers: the
// library.json index, citation keys, the BibTeX mirror, and statistics.
package library

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

	"github.com/rs/zerolog"

	"github.com/pdiddy/literature-engine/internal/fsutil"
	"github.com/pdiddy/literature-engine/pkg/types"
)

// FormatVersion is written to the "version" field of library.json.
const FormatVersion = "1.0"

// ErrNotFound is returned when a citation key is not in the index.
var ErrNotFound = errors.New("citation key not in library")

// indexFile is the on-disk shape of library.json.
type indexFile struct {
	Version string                         `json:"version"`
	Entries map[string]*types.LibraryEntry `json:"entries"`
}

// Options configures an Index.
type Options struct {
	// Root is the library root; relative pdf paths resolve against it.
	Root string

	// BibTeX, when set, receives every newly added entry.
	BibTeX *BibFile

	Logger zerolog.Logger

	// Now stamps added_date; time.Now when nil.
	Now func() time.Time
}

// Index is the single source of truth for known papers. Every mutation is
// persisted atomically before it returns. It is safe for concurrent use.
type Index struct {
	mu      sync.Mutex
	path    string
	root    string
	bib     *BibFile
	log     zerolog.Logger
	now     func() time.Time
	entries map[string]*types.LibraryEntry
}

// Open loads the index at path. A missing file yields an empty index.
// Corrupted JSON also yields an empty index: the corruption is logged and
// startup continues. The corrupt file is left in place until the next
// mutation overwrites it.
func Open(path string, opts Options) (*Index, error) {
	idx := &Index{
		path:    path,
		root:    opts.Root,
		bib:     opts.BibTeX,
		log:     opts.Logger,
		now:     opts.Now,
		entries: make(map[string]*types.LibraryEntry),
	}
	if idx.now == nil {
		idx.now = time.Now
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading library index: %w", err)
	}

	var f indexFile
	if err := json.Unmarshal(data, &f); err != nil {
		idx.log.Error().Err(err).Str("path", path).Msg("library index is corrupted, starting empty")
		return idx, nil
	}
	for key, e := range f.Entries {
		if e == nil {
			continue
		}
		e.CitationKey = key
		if e.Metadata == nil {
			e.Metadata = map[string]any{}
		}
		idx.entries[key] = e
	}
	return idx, nil
}

// Path returns the location of library.json.
func (idx *Index) Path() string { return idx.path }

// Root returns the library root directory.
func (idx *Index) Root() string { return idx.root }

// AddParams describes a paper to add.
type AddParams struct {
	Title         string
	Authors       []string
	Year          *int
	DOI           string
	Source        string
	URL           string
	PDFURL        string
	Abstract      string
	Venue         string
	CitationCount *int

	// Extras are stored in the entry's metadata.
	Extras map[string]any
}

// ParamsFromResult converts a search result to AddParams.
func ParamsFromResult(r types.SearchResult) AddParams {
	return AddParams{
		Title:         r.Title,
		Authors:       r.Authors,
		Year:          r.Year,
		DOI:           r.DOI,
		Source:        r.Source,
		URL:           r.URL,
		PDFURL:        r.PDFURL,
		Abstract:      r.Abstract,
		Venue:         r.Venue,
		CitationCount: r.CitationCount,
	}
}

// AddEntry adds a paper and returns its citation key. A paper already in
// the index, matched first by normalized DOI and then by normalized title,
// returns the existing key without mutation. added reports whether a new
// entry was created.
func (idx *Index) AddEntry(p AddParams) (key string, added bool, err error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	doi := types.NormalizeDOI(p.DOI)
	if existing := idx.findLocked(doi, p.Title); existing != "" {
		return existing, false, nil
	}

	key = idx.generateKeyLocked(p.Title, p.Authors, p.Year)
	entry := &types.LibraryEntry{
		CitationKey:   key,
		Title:         p.Title,
		Authors:       slices.Clone(p.Authors),
		Year:          p.Year,
		Source:        p.Source,
		URL:           p.URL,
		AddedDate:     idx.now().UTC().Format(time.RFC3339),
		Abstract:      p.Abstract,
		CitationCount: p.CitationCount,
		Metadata:      map[string]any{},
	}
	if entry.Authors == nil {
		entry.Authors = []string{}
	}
	if doi != "" {
		entry.DOI = &doi
	}
	if v := strings.TrimSpace(p.Venue); v != "" {
		entry.Venue = &v
	}
	maps.Copy(entry.Metadata, p.Extras)
	if p.PDFURL != "" {
		entry.Metadata["pdf_url"] = p.PDFURL
	}

	idx.entries[key] = entry
	if err := idx.saveLocked(); err != nil {
		delete(idx.entries, key)
		return "", false, err
	}

	if idx.bib != nil {
		if _, err := idx.bib.Append(*entry); err != nil {
			idx.log.Warn().Err(err).Str("citation_key", key).Msg("BibTeX append failed")
		}
	}
	return key, true, nil
}

// findLocked returns the key of an entry matching doi, else title.
func (idx *Index) findLocked(doi, title string) string {
	if doi != "" {
		for _, key := range idx.sortedKeysLocked() {
			if idx.entries[key].DOIValue() == doi {
				return key
			}
		}
	}
	if t := types.NormalizeTitle(title); t != "" {
		for _, key := range idx.sortedKeysLocked() {
			if types.NormalizeTitle(idx.entries[key].Title) == t {
				return key
			}
		}
	}
	return ""
}

// GenerateCitationKey returns the key a new paper would receive: the base
// key, or the base key plus the first free suffix ('a', 'b', ...).
func (idx *Index) GenerateCitationKey(title string, authors []string, year *int) string {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.generateKeyLocked(title, authors, year)
}

func (idx *Index) generateKeyLocked(title string, authors []string, year *int) string {
	base := GenerateCitationKey(title, authors, year)
	if _, taken := idx.entries[base]; !taken {
		return base
	}
	for n := 0; ; n++ {
		key := base + suffix(n)
		if _, taken := idx.entries[key]; !taken {
			return key
		}
	}
}

// UpdatePDFPath records the downloaded PDF for key. Paths under the
// library root are stored relative to it.
func (idx *Index) UpdatePDFPath(key, path string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	e, ok := idx.entries[key]
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	rel := idx.relative(path)
	prev := e.PDFPath
	e.PDFPath = &rel
	if err := idx.saveLocked(); err != nil {
		e.PDFPath = prev
		return err
	}
	return nil
}

// GetEntry returns a copy of the entry for key.
func (idx *Index) GetEntry(key string) (types.LibraryEntry, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	e, ok := idx.entries[key]
	if !ok {
		return types.LibraryEntry{}, false
	}
	return cloneEntry(e), true
}

// ListEntries returns copies of all entries sorted by citation key.
func (idx *Index) ListEntries() []types.LibraryEntry {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	out := make([]types.LibraryEntry, 0, len(idx.entries))
	for _, key := range idx.sortedKeysLocked() {
		out = append(out, cloneEntry(idx.entries[key]))
	}
	return out
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.entries)
}

// HasPaper reports whether a paper with the given DOI or title is indexed.
// Either argument may be empty.
func (idx *Index) HasPaper(doi, title string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.findLocked(types.NormalizeDOI(doi), title) != ""
}

// RemoveEntry deletes key and reports whether it existed.
func (idx *Index) RemoveEntry(key string) (bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	e, ok := idx.entries[key]
	if !ok {
		return false, nil
	}
	delete(idx.entries, key)
	if err := idx.saveLocked(); err != nil {
		idx.entries[key] = e
		return false, err
	}
	return true, nil
}

// RemoveEntriesWithoutPDF deletes every entry whose PDF is not recorded or
// no longer exists on disk, and returns how many were removed.
func (idx *Index) RemoveEntriesWithoutPDF() (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	removed := make(map[string]*types.LibraryEntry)
	for key, e := range idx.entries {
		if !e.HasPDF() || !fsutil.Exists(idx.resolve(*e.PDFPath)) {
			removed[key] = e
			delete(idx.entries, key)
		}
	}
	if len(removed) == 0 {
		return 0, nil
	}
	if err := idx.saveLocked(); err != nil {
		maps.Copy(idx.entries, removed)
		return 0, err
	}
	return len(removed), nil
}

// MissingPDFs lists entries whose recorded pdf_path no longer exists.
func (idx *Index) MissingPDFs() []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	var missing []string
	for _, key := range idx.sortedKeysLocked() {
		e := idx.entries[key]
		if e.HasPDF() && !fsutil.Exists(idx.resolve(*e.PDFPath)) {
			missing = append(missing, key)
		}
	}
	return missing
}

// ClearMissingPDFs resets pdf_path to null for every entry whose file is
// gone, so the index never retains stale paths. It returns the cleared keys.
func (idx *Index) ClearMissingPDFs() ([]string, error) {
	missing := idx.MissingPDFs()
	if len(missing) == 0 {
		return nil, nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, key := range missing {
		if e, ok := idx.entries[key]; ok {
			e.PDFPath = nil
		}
	}
	if err := idx.saveLocked(); err != nil {
		return nil, err
	}
	return missing, nil
}

// ClearPDFPaths sets every pdf_path to null (used after the PDF directory
// is wiped).
func (idx *Index) ClearPDFPaths() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, e := range idx.entries {
		e.PDFPath = nil
	}
	return idx.saveLocked()
}

// Clear removes every entry and persists the empty index.
func (idx *Index) Clear() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = make(map[string]*types.LibraryEntry)
	return idx.saveLocked()
}

// ExportJSON writes the index to path, or to the index's own location when
// path is empty, and returns the path written.
func (idx *Index) ExportJSON(path string) (string, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if path == "" {
		path = idx.path
	}
	if err := fsutil.WriteJSONAtomic(path, idx.fileLocked()); err != nil {
		return "", fmt.Errorf("exporting library index: %w", err)
	}
	return path, nil
}

// PDFAbsPath resolves an entry's pdf_path against the library root.
func (idx *Index) PDFAbsPath(e types.LibraryEntry) string {
	if !e.HasPDF() {
		return ""
	}
	return idx.resolve(*e.PDFPath)
}

func (idx *Index) saveLocked() error {
	if err := fsutil.WriteJSONAtomic(idx.path, idx.fileLocked()); err != nil {
		return fmt.Errorf("saving library index: %w", err)
	}
	return nil
}

func (idx *Index) fileLocked() indexFile {
	return indexFile{Version: FormatVersion, Entries: idx.entries}
}

func (idx *Index) sortedKeysLocked() []string {
	return slices.Sorted(maps.Keys(idx.entries))
}

func (idx *Index) relative(path string) string {
	if idx.root == "" {
		return filepath.ToSlash(path)
	}
	root, err := filepath.Abs(idx.root)
	if err != nil {
		return filepath.ToSlash(path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (idx *Index) resolve(path string) string {
	p := filepath.FromSlash(path)
	if filepath.IsAbs(p) || idx.root == "" {
		return p
	}
	return filepath.Join(idx.root, p)
}

func cloneEntry(e *types.LibraryEntry) types.LibraryEntry {
	c := *e
	c.Authors = slices.Clone(e.Authors)
	c.Metadata = maps.Clone(e.Metadata)
	return c
}
