// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summarize

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/pdiddy/literature-engine/internal/dedup"
	"github.com/pdiddy/literature-engine/pkg/types"
)

// Validator defaults.
const (
	DefaultNGram           = 4
	DefaultRepetitionLimit = 3
	DefaultTitleThreshold  = 0.8

	// declaredTitleFloor is the similarity below which a title the draft
	// declares for itself is treated as a different paper.
	declaredTitleFloor = 0.5
)

// Validation messages. Workflow failure categories match on these prefixes.
const (
	MsgWordCount      = "word count below minimum"
	MsgRepetition     = "repeated phrase"
	MsgTitleMissing   = "paper title not found in summary"
	MsgHallucinated   = "summary describes a different paper"
	MsgMissingSection = "missing required section"
)

// Validator checks a draft summary.
type Validator struct {
	// NGram is the phrase length checked for repetition.
	NGram int

	// RepetitionLimit is the largest allowed count of any one n-gram.
	RepetitionLimit int

	// TitleThreshold is the fuzzy similarity that counts as the title
	// being present.
	TitleThreshold float64
}

// NewValidator returns a validator with the given repetition limit and
// defaults for everything else.
func NewValidator(repetitionLimit int) *Validator {
	if repetitionLimit <= 0 {
		repetitionLimit = DefaultRepetitionLimit
	}
	return &Validator{NGram: DefaultNGram, RepetitionLimit: repetitionLimit, TitleThreshold: DefaultTitleThreshold}
}

// Validation is the verdict on one draft.
type Validation struct {
	Errors []string
	Score  float64
	Words  int
}

// Passed reports whether the draft met every check.
func (v Validation) Passed() bool {
	return len(v.Errors) == 0
}

// Validate checks draft for kind: minimum length, phrase repetition,
// presence of the paper title and the required section headers. The score
// weighs length at 0.4 and the other three checks at 0.2 each.
func (v *Validator) Validate(draft, title string, kind Kind) Validation {
	rules := kind.Rules()
	var out Validation
	out.Words = wordCount(draft)

	lengthScore := 1.0
	if rules.MinWords > 0 && out.Words < rules.MinWords {
		out.Errors = append(out.Errors, fmt.Sprintf("%s: %d words, %s requires at least %d", MsgWordCount, out.Words, kind, rules.MinWords))
		lengthScore = float64(out.Words) / float64(rules.MinWords)
	}

	repetitionScore := 1.0
	if phrases := v.repeated(draft); len(phrases) > 0 {
		for _, p := range phrases {
			out.Errors = append(out.Errors, fmt.Sprintf("%s %q appears %d times (limit %d)", MsgRepetition, p.phrase, p.count, v.limit()))
		}
		repetitionScore = 0
	}

	titleScore := 1.0
	if title = strings.TrimSpace(title); title != "" {
		if declared, ok := declaredTitle(draft); ok && dedup.TitleSimilarity(types.NormalizeTitle(declared), types.NormalizeTitle(title)) < declaredTitleFloor {
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %q", MsgHallucinated, declared))
			titleScore = 0
		} else if !v.containsTitle(draft, title) {
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %q", MsgTitleMissing, title))
			titleScore = 0
		}
	}

	headerScore := 1.0
	if len(rules.Sections) > 0 {
		found := headings(draft)
		missing := 0
		for _, s := range rules.Sections {
			if !hasHeading(found, s) {
				out.Errors = append(out.Errors, fmt.Sprintf("%s: %q", MsgMissingSection, s))
				missing++
			}
		}
		headerScore = 1 - float64(missing)/float64(len(rules.Sections))
	}

	score := 0.4*lengthScore + 0.2*repetitionScore + 0.2*titleScore + 0.2*headerScore
	out.Score = math.Round(score*1000) / 1000
	return out
}

func (v *Validator) limit() int {
	if v.RepetitionLimit <= 0 {
		return DefaultRepetitionLimit
	}
	return v.RepetitionLimit
}

type repeatedPhrase struct {
	phrase string
	count  int
}

// repeated returns n-grams occurring more than the limit, most frequent
// first, at most three.
func (v *Validator) repeated(draft string) []repeatedPhrase {
	n := v.NGram
	if n < DefaultNGram {
		n = DefaultNGram
	}
	tokens := words(stripHeadings(draft))
	counts := make(map[string]int)
	for i := 0; i+n <= len(tokens); i++ {
		counts[strings.Join(tokens[i:i+n], " ")]++
	}
	var out []repeatedPhrase
	for p, c := range counts {
		if c > v.limit() {
			out = append(out, repeatedPhrase{p, c})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].phrase < out[j].phrase
	})
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}

// containsTitle reports whether the normalized title occurs in the
// normalized draft, exactly or within a sliding window of the same word
// length at TitleThreshold similarity.
func (v *Validator) containsTitle(draft, title string) bool {
	nt := types.NormalizeTitle(title)
	nd := types.NormalizeTitle(draft)
	if nt == "" {
		return true
	}
	if strings.Contains(nd, nt) {
		return true
	}
	threshold := v.TitleThreshold
	if threshold <= 0 {
		threshold = DefaultTitleThreshold
	}
	tw := strings.Fields(nt)
	dw := strings.Fields(nd)
	for size := len(tw) - 1; size <= len(tw)+1; size++ {
		if size <= 0 {
			continue
		}
		for i := 0; i+size <= len(dw); i++ {
			if dedup.TitleSimilarity(strings.Join(dw[i:i+size], " "), nt) >= threshold {
				return true
			}
		}
	}
	return false
}

var declaredTitleLine = regexp.MustCompile(`(?im)^\s*(?:\*\*)?(?:paper\s+)?title(?:\*\*)?\s*:\s*(?:\*\*)?\s*(.+?)\s*$`)

// declaredTitle finds a "Title: ..." line in the draft.
func declaredTitle(draft string) (string, bool) {
	m := declaredTitleLine.FindStringSubmatch(draft)
	if m == nil {
		return "", false
	}
	t := strings.Trim(m[1], "*_\"' ")
	return t, t != ""
}

// headings returns the normalized text of every markdown heading.
func headings(draft string) []string {
	var out []string
	for _, line := range strings.Split(draft, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			continue
		}
		out = append(out, types.NormalizeTitle(strings.TrimLeft(trimmed, "#")))
	}
	return out
}

func hasHeading(found []string, want string) bool {
	w := types.NormalizeTitle(want)
	for _, h := range found {
		if strings.Contains(h, w) {
			return true
		}
	}
	return false
}

func stripHeadings(draft string) string {
	var b strings.Builder
	for _, line := range strings.Split(draft, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
