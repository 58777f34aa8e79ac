// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/pdiddy/literature-engine/internal/fsutil"
	"github.com/pdiddy/literature-engine/pkg/types"
)

// FormatBibTeX renders one @article entry. Absent optional fields are
// omitted.
func FormatBibTeX(e types.LibraryEntry) string {
	var fields []string
	add := func(name, value string) {
		if value = strings.TrimSpace(value); value != "" {
			fields = append(fields, fmt.Sprintf("  %s={%s}", name, bibValue(value)))
		}
	}
	add("title", e.Title)
	add("author", joinAuthors(e.Authors))
	if e.Year != nil && *e.Year > 0 {
		add("year", strconv.Itoa(*e.Year))
	}
	add("url", e.URL)
	add("abstract", e.Abstract)
	add("doi", e.DOIValue())
	add("journal", e.VenueValue())

	return "@article{" + e.CitationKey + ",\n" + strings.Join(fields, ",\n") + "\n}\n"
}

// joinAuthors joins names with " and ". A name that itself contains the
// word "and" is braced so it survives splitAuthors.
func joinAuthors(authors []string) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if len(splitAuthors(a)) > 1 {
			a = "{" + a + "}"
		}
		names = append(names, a)
	}
	return strings.Join(names, " and ")
}

// splitAuthors splits a BibTeX author field on "and" outside braces and
// unwraps names braced as a whole.
func splitAuthors(field string) []string {
	var names []string
	flush := func(name string) {
		name = strings.TrimSpace(name)
		if wrappedInBraces(name) {
			name = strings.TrimSpace(name[1 : len(name)-1])
		}
		if name != "" {
			names = append(names, name)
		}
	}
	depth, start := 0, 0
	for i := 0; i < len(field); i++ {
		switch field[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ' ', '\t', '\n', '\r':
			if depth != 0 || i+4 >= len(field) || !strings.EqualFold(field[i+1:i+4], "and") {
				continue
			}
			if c := field[i+4]; c != ' ' && c != '\t' && c != '\n' && c != '\r' {
				continue
			}
			flush(field[start:i])
			start = i + 4
			i += 3
		}
	}
	flush(field[start:])
	return names
}

// wrappedInBraces reports whether s is one balanced {...} group.
func wrappedInBraces(s string) bool {
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 && i < len(s)-1 {
				return false
			}
		}
	}
	return depth == 0
}

// bibValue drops braces when they would unbalance the field.
func bibValue(s string) string {
	depth := 0
	for _, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
		}
		if depth < 0 {
			break
		}
	}
	if depth == 0 {
		return s
	}
	return strings.NewReplacer("{", "", "}", "").Replace(s)
}

// entryKey matches the citation key of an entry header.
var entryKey = regexp.MustCompile(`(?m)^\s*@\w+\s*\{\s*([^,\s]+)\s*,`)

// BibFile is an append-only BibTeX file deduplicated by citation key.
type BibFile struct {
	mu   sync.Mutex
	path string
}

// NewBibFile returns a BibFile at path. The file is created on first append.
func NewBibFile(path string) *BibFile {
	return &BibFile{path: path}
}

// Path returns the file location.
func (b *BibFile) Path() string { return b.path }

// Keys returns the citation keys already in the file.
func (b *BibFile) Keys() (map[string]bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, keys, err := b.readLocked()
	return keys, err
}

// Append adds entries whose keys are not yet in the file and returns how
// many were written. The file is rewritten atomically.
func (b *BibFile) Append(entries ...types.LibraryEntry) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing, keys, err := b.readLocked()
	if err != nil {
		return 0, err
	}

	var buf strings.Builder
	buf.WriteString(existing)
	written := 0
	for _, e := range entries {
		if e.CitationKey == "" || keys[e.CitationKey] {
			continue
		}
		if buf.Len() > 0 && !strings.HasSuffix(buf.String(), "\n\n") {
			if !strings.HasSuffix(buf.String(), "\n") {
				buf.WriteString("\n")
			}
			buf.WriteString("\n")
		}
		buf.WriteString(FormatBibTeX(e))
		keys[e.CitationKey] = true
		written++
	}
	if written == 0 {
		return 0, nil
	}
	if err := fsutil.WriteFileAtomic(b.path, []byte(buf.String())); err != nil {
		return 0, fmt.Errorf("writing BibTeX file: %w", err)
	}
	return written, nil
}

// Remove deletes the file. A missing file is not an error.
func (b *BibFile) Remove() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := os.Remove(b.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (b *BibFile) readLocked() (string, map[string]bool, error) {
	keys := make(map[string]bool)
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", keys, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("reading BibTeX file: %w", err)
	}
	for _, m := range entryKey.FindAllStringSubmatch(string(data), -1) {
		keys[m[1]] = true
	}
	return string(data), keys, nil
}

// BibEntry is one parsed BibTeX entry. Field names are lowercased.
type BibEntry struct {
	Type   string
	Key    string
	Fields map[string]string
}

// SearchResult maps the entry's fields back onto a search result.
func (e BibEntry) SearchResult() types.SearchResult {
	r := types.SearchResult{
		Title:    e.Fields["title"],
		URL:      e.Fields["url"],
		Abstract: e.Fields["abstract"],
		DOI:      types.NormalizeDOI(e.Fields["doi"]),
		Venue:    e.Fields["journal"],
	}
	if r.Venue == "" {
		r.Venue = e.Fields["booktitle"]
	}
	r.Authors = splitAuthors(e.Fields["author"])
	if y, err := strconv.Atoi(strings.TrimSpace(e.Fields["year"])); err == nil {
		r.Year = types.IntPtr(y)
	}
	return r
}

// ParseBibTeX reads every entry from r. @comment, @preamble, and @string
// blocks are skipped. Field values may be braced, quoted, or bare.
func ParseBibTeX(r io.Reader) ([]BibEntry, error) {
	p := &bibParser{r: bufio.NewReader(r)}
	var entries []BibEntry
	for {
		e, err := p.next()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return entries, err
		}
		if e != nil {
			entries = append(entries, *e)
		}
	}
}

type bibParser struct {
	r *bufio.Reader
}

// next returns the next entry, nil for a skipped block, or io.EOF.
func (p *bibParser) next() (*BibEntry, error) {
	if err := p.skipTo('@'); err != nil {
		return nil, err
	}
	typ, err := p.readUntil("{(")
	if err != nil {
		return nil, unexpectedEOF(err)
	}
	typ = strings.ToLower(strings.TrimSpace(typ))

	switch typ {
	case "comment", "preamble", "string":
		return nil, p.skipBalanced()
	}

	key, err := p.readUntil(",")
	if err != nil {
		return nil, unexpectedEOF(err)
	}
	e := &BibEntry{Type: typ, Key: strings.TrimSpace(key), Fields: make(map[string]string)}

	for {
		if err := p.skipSpace(); err != nil {
			return nil, unexpectedEOF(err)
		}
		c, err := p.r.ReadByte()
		if err != nil {
			return nil, unexpectedEOF(err)
		}
		if c == '}' || c == ')' {
			return e, nil
		}
		if c == ',' {
			continue
		}
		p.r.UnreadByte()

		name, err := p.readUntil("=")
		if err != nil {
			return nil, unexpectedEOF(err)
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		value, err := p.readValue()
		if err != nil {
			return nil, fmt.Errorf("entry %s field %s: %w", e.Key, name, err)
		}
		e.Fields[name] = value
	}
}

// readValue reads a braced, quoted, or bare value after '='.
func (p *bibParser) readValue() (string, error) {
	if err := p.skipSpace(); err != nil {
		return "", unexpectedEOF(err)
	}
	c, err := p.r.ReadByte()
	if err != nil {
		return "", unexpectedEOF(err)
	}
	switch c {
	case '{':
		return p.readBraced()
	case '"':
		var b strings.Builder
		depth := 0
		for {
			c, err := p.r.ReadByte()
			if err != nil {
				return "", unexpectedEOF(err)
			}
			switch {
			case c == '{':
				depth++
			case c == '}':
				depth--
			case c == '"' && depth == 0:
				return b.String(), nil
			}
			b.WriteByte(c)
		}
	default:
		var b strings.Builder
		b.WriteByte(c)
		for {
			c, err := p.r.ReadByte()
			if err != nil {
				return "", unexpectedEOF(err)
			}
			if c == ',' || c == '}' || c == ')' || c == '\n' {
				p.r.UnreadByte()
				return strings.TrimSpace(b.String()), nil
			}
			b.WriteByte(c)
		}
	}
}

// readBraced reads up to the brace matching one already consumed.
func (p *bibParser) readBraced() (string, error) {
	var b strings.Builder
	depth := 1
	for {
		c, err := p.r.ReadByte()
		if err != nil {
			return "", unexpectedEOF(err)
		}
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b.String(), nil
			}
		}
		b.WriteByte(c)
	}
}

func (p *bibParser) skipBalanced() error {
	_, err := p.readBraced()
	return err
}

func (p *bibParser) skipTo(target byte) error {
	for {
		c, err := p.r.ReadByte()
		if err != nil {
			return err
		}
		if c == target {
			return nil
		}
	}
}

func (p *bibParser) skipSpace() error {
	for {
		c, err := p.r.ReadByte()
		if err != nil {
			return err
		}
		if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
			return p.r.UnreadByte()
		}
	}
}

// readUntil consumes bytes up to and including one of delims and returns
// the bytes before it.
func (p *bibParser) readUntil(delims string) (string, error) {
	var b strings.Builder
	for {
		c, err := p.r.ReadByte()
		if err != nil {
			return b.String(), err
		}
		if strings.IndexByte(delims, c) >= 0 {
			return b.String(), nil
		}
		b.WriteByte(c)
	}
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing BibTeX: %w", io.ErrUnexpectedEOF)
	}
	return err
}
