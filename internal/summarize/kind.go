// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summarize

import (
	"fmt"
	"sort"
	"strings"
)

// Kind selects the summary template.
type Kind string

const (
	KindExecutiveSummary       Kind = "executive_summary"
	KindQualityReview          Kind = "quality_review"
	KindMethodologyReview      Kind = "methodology_review"
	KindImprovementSuggestions Kind = "improvement_suggestions"
	KindTranslation            Kind = "translation"
)

// KindRules describes what a summary of one kind must contain.
type KindRules struct {
	// Heading is the document title line prefix, e.g. "Executive Summary".
	Heading string

	// MinWords is the minimum word count of the whole summary.
	MinWords int

	// Sections are the required second-level headers.
	Sections []string

	// Instructions are inserted into the draft prompt.
	Instructions string
}

var kindRules = map[Kind]KindRules{
	KindExecutiveSummary: {
		Heading:  "Executive Summary",
		MinWords: 250,
		Sections: []string{"Overview", "Key Contributions", "Methodology", "Results", "Significance"},
		Instructions: "Write an executive summary for a technically literate reader who has not read the paper. " +
			"State the problem, the approach, the main findings with concrete numbers where the paper gives them, and why the work matters.",
	},
	KindQualityReview: {
		Heading:  "Quality Review",
		MinWords: 300,
		Sections: []string{"Summary of Claims", "Strengths", "Weaknesses", "Overall Assessment"},
		Instructions: "Review the paper as a careful referee. Judge whether the evidence supports each main claim, " +
			"and name specific strengths and weaknesses with reference to sections, figures or tables.",
	},
	KindMethodologyReview: {
		Heading:  "Methodology Review",
		MinWords: 300,
		Sections: []string{"Research Design", "Data and Methods", "Validity", "Reproducibility"},
		Instructions: "Analyse the research methodology: design, data, experimental setup, baselines and statistics. " +
			"Point out threats to validity and what a reader would need to reproduce the results.",
	},
	KindImprovementSuggestions: {
		Heading:      "Improvement Suggestions",
		MinWords:     200,
		Sections:     []string{"Methodological Improvements", "Presentation Improvements", "Future Work"},
		Instructions: "Suggest concrete, actionable improvements to the paper. Each suggestion should say what to change and why it would strengthen the work.",
	},
	KindTranslation: {
		Heading:  "Plain-Language Translation",
		MinWords: 400,
		Sections: []string{"What Problem Does This Solve", "How It Works", "What They Found", "Key Terms Explained"},
		Instructions: "Explain the paper for a general audience without specialist background. " +
			"Replace jargon with plain language and define every technical term you keep.",
	},
}

// Rules returns the content rules of k.
func (k Kind) Rules() KindRules {
	return kindRules[k]
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kindRules[k]
	return ok
}

// ParseKind parses a kind name, accepting hyphens and any case. An empty
// name selects the executive summary.
func ParseKind(s string) (Kind, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return KindExecutiveSummary, nil
	}
	k := Kind(strings.ReplaceAll(strings.ToLower(s), "-", "_"))
	if !k.Valid() {
		return "", fmt.Errorf("unknown summary kind %q (valid: %s)", s, strings.Join(kindNames(), ", "))
	}
	return k, nil
}

func kindNames() []string {
	names := make([]string, 0, len(kindRules))
	for k := range kindRules {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return names
}
