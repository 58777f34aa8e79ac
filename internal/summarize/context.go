// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summarize

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// PaperContext holds the parts of a paper's text that anchor the prompt.
type PaperContext struct {
	Abstract     string
	Introduction string
	Conclusion   string
	KeyTerms     []string
	Profile      Profile
}

// Profile is a structural summary of the extracted text.
type Profile struct {
	Words      int `json:"words"`
	Sections   int `json:"sections"`
	Equations  int `json:"equations"`
	Figures    int `json:"figures"`
	Tables     int `json:"tables"`
	References int `json:"references"`
}

// Metadata returns the profile as event metadata.
func (p Profile) Metadata() map[string]any {
	return map[string]any{
		"words":      p.Words,
		"sections":   p.Sections,
		"equations":  p.Equations,
		"figures":    p.Figures,
		"tables":     p.Tables,
		"references": p.References,
	}
}

const (
	maxAbstractWords = 350
	maxSectionWords  = 400
	fallbackAbstract = 150
	maxKeyTerms      = 12
	maxHeadingWords  = 8
)

var (
	headingNumber  = regexp.MustCompile(`^(?:[0-9]+(?:\.[0-9]+)*\.?|[IVX]+\.)\s+`)
	abstractInline = regexp.MustCompile(`(?i)^abstract\s*[-—:.]\s*(.+)$`)
	equationNumber = regexp.MustCompile(`\(\d{1,3}\)\s*$`)
	figureRef      = regexp.MustCompile(`(?i)\b(?:figure|fig\.)\s*(\d+)`)
	tableRef       = regexp.MustCompile(`(?i)\btable\s*(\d+)`)
	referenceLine  = regexp.MustCompile(`^(?:\[\d+\]|\d+\.)\s+\S`)
)

// knownSections maps lowercase heading text to a canonical section name.
var knownSections = map[string]string{
	"abstract":               "abstract",
	"introduction":           "introduction",
	"background":             "background",
	"related work":           "related",
	"method":                 "method",
	"methods":                "method",
	"methodology":            "method",
	"approach":               "method",
	"experiments":            "results",
	"experimental results":   "results",
	"results":                "results",
	"evaluation":             "results",
	"discussion":             "discussion",
	"conclusion":             "conclusion",
	"conclusions":            "conclusion",
	"concluding remarks":     "conclusion",
	"summary and conclusion": "conclusion",
	"limitations":            "discussion",
	"acknowledgments":        "acknowledgments",
	"acknowledgements":       "acknowledgments",
	"references":             "references",
	"bibliography":           "references",
	"appendix":               "appendix",
}

type textSection struct {
	name  string
	lines []string
}

// ExtractContext locates the abstract, introduction and conclusion, picks
// frequent key terms, and profiles the structure of text.
func ExtractContext(text string) PaperContext {
	sections, count := splitSections(text)

	var pc PaperContext
	pc.Profile.Words = len(strings.Fields(text))
	pc.Profile.Sections = count

	body := func(name string) string {
		for _, s := range sections {
			if s.name == name {
				return strings.TrimSpace(strings.Join(s.lines, "\n"))
			}
		}
		return ""
	}

	pc.Abstract = limitWords(body("abstract"), maxAbstractWords)
	if pc.Abstract == "" && len(sections) > 0 {
		pc.Abstract = limitWords(strings.Join(sections[0].lines, " "), fallbackAbstract)
	}
	pc.Introduction = limitWords(body("introduction"), maxSectionWords)
	pc.Conclusion = limitWords(body("conclusion"), maxSectionWords)
	if pc.Conclusion == "" {
		pc.Conclusion = limitWords(body("discussion"), maxSectionWords)
	}

	var content strings.Builder
	for _, s := range sections {
		switch s.name {
		case "references":
			for _, line := range s.lines {
				if referenceLine.MatchString(strings.TrimSpace(line)) {
					pc.Profile.References++
				}
			}
			continue
		case "acknowledgments", "appendix":
			continue
		}
		for _, line := range s.lines {
			if equationNumber.MatchString(line) && strings.ContainsAny(line, "=∑∫≤≥") {
				pc.Profile.Equations++
			}
			content.WriteString(line)
			content.WriteByte('\n')
		}
	}
	pc.Profile.Figures = distinctRefs(figureRef, text)
	pc.Profile.Tables = distinctRefs(tableRef, text)
	pc.KeyTerms = keyTerms(content.String(), maxKeyTerms)
	return pc
}

// splitSections groups lines under recognised headings. Text before the
// first heading forms an unnamed leading section. It also returns the
// number of headings seen.
func splitSections(text string) ([]textSection, int) {
	var (
		sections []textSection
		cur      = textSection{name: ""}
		headings int
	)
	flush := func() {
		if cur.name != "" || len(cur.lines) > 0 {
			sections = append(sections, cur)
		}
	}
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if m := abstractInline.FindStringSubmatch(trimmed); m != nil {
			flush()
			headings++
			cur = textSection{name: "abstract", lines: []string{m[1]}}
			continue
		}
		if name, ok := sectionHeading(trimmed); ok {
			flush()
			headings++
			cur = textSection{name: name}
			continue
		}
		if trimmed != "" {
			cur.lines = append(cur.lines, trimmed)
		}
	}
	flush()
	return sections, headings
}

// sectionHeading recognises short lines such as "1. Introduction",
// "## Related Work" or "V. CONCLUSIONS". Unknown headings are reported
// under their own lowercase text.
func sectionHeading(line string) (string, bool) {
	if line == "" || len(strings.Fields(line)) > maxHeadingWords {
		return "", false
	}
	markdown := strings.HasPrefix(line, "#")
	h := strings.TrimSpace(strings.TrimLeft(line, "#"))
	numbered := headingNumber.MatchString(h)
	h = headingNumber.ReplaceAllString(h, "")
	h = strings.TrimRight(h, ":. ")
	key := strings.ToLower(h)

	if name, ok := knownSections[key]; ok {
		return name, true
	}
	if (markdown || numbered) && key != "" && startsWithLetter(h) && !strings.HasSuffix(line, ".") {
		return key, true
	}
	return "", false
}

func startsWithLetter(s string) bool {
	for _, r := range s {
		return unicode.IsLetter(r)
	}
	return false
}

func distinctRefs(re *regexp.Regexp, text string) int {
	seen := make(map[string]bool)
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		seen[m[1]] = true
	}
	return len(seen)
}

var stopwords = map[string]bool{
	"about": true, "above": true, "after": true, "again": true, "also": true, "although": true,
	"among": true, "another": true, "because": true, "been": true, "before": true, "being": true,
	"between": true, "both": true, "could": true, "does": true, "each": true, "either": true,
	"from": true, "further": true, "have": true, "having": true, "here": true, "however": true,
	"into": true, "itself": true, "more": true, "most": true, "much": true, "must": true,
	"only": true, "other": true, "over": true, "same": true, "several": true, "should": true,
	"show": true, "shown": true, "shows": true, "since": true, "some": true, "such": true,
	"than": true, "that": true, "their": true, "them": true, "then": true, "there": true,
	"these": true, "they": true, "this": true, "those": true, "through": true, "thus": true,
	"under": true, "using": true, "very": true, "were": true, "what": true, "when": true,
	"where": true, "which": true, "while": true, "will": true, "with": true, "within": true,
	"without": true, "would": true, "your": true, "paper": true, "figure": true, "table": true,
	"section": true, "results": true, "based": true, "used": true, "first": true, "second": true,
	"given": true, "well": true, "many": true, "therefore": true,
}

// keyTerms returns the n most frequent non-stopword words of four or more
// letters, ties broken alphabetically.
func keyTerms(text string, n int) []string {
	counts := make(map[string]int)
	for _, w := range words(text) {
		if len([]rune(w)) < 4 || stopwords[w] {
			continue
		}
		counts[w]++
	}
	terms := make([]string, 0, len(counts))
	for w, c := range counts {
		if c >= 2 {
			terms = append(terms, w)
		}
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

// words lowercases text and splits it into letter/digit runs.
func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}

func limitWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) <= n {
		return strings.Join(fields, " ")
	}
	return strings.Join(fields[:n], " ") + " ..."
}

// wordCount counts whitespace-separated words.
func wordCount(s string) int {
	return len(strings.Fields(s))
}
