// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summarize

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// draftPromptTmpl produces the first draft of a summary.
var draftPromptTmpl = template.Must(template.New("draft").Parse(`You are summarizing a scientific paper.

Title: {{.Title}}
{{- if .Authors}}
Authors: {{.Authors}}{{end}}
{{- if .Year}}
Year: {{.Year}}{{end}}
{{- if .Venue}}
Venue: {{.Venue}}{{end}}

{{.Instructions}}

Format the answer as Markdown:
- Begin with the line "# {{.Heading}}: {{.Title}}".
- Include these second-level sections, in this order: {{.SectionList}}.
- Write at least {{.MinWords}} words in total.
- Mention the paper title exactly as given above at least once in the body.
- Do not repeat sentences or phrases. Do not invent results that are not in the text.
{{- if .KeyTerms}}

Key terms from the paper: {{.KeyTerms}}{{end}}
{{- if .Abstract}}

## Abstract
{{.Abstract}}{{end}}
{{- if .Introduction}}

## Introduction (excerpt)
{{.Introduction}}{{end}}
{{- if .Conclusion}}

## Conclusion (excerpt)
{{.Conclusion}}{{end}}

## Full text
{{.Text}}
`))

// refinePromptTmpl asks for a corrected draft, citing what the validator
// rejected.
var refinePromptTmpl = template.Must(template.New("refine").Parse(`Your previous summary of the paper "{{.Title}}" was rejected for the following reasons:
{{range .Complaints}}- {{.}}
{{end}}
Rewrite the summary so that every problem above is fixed.
- Begin with the line "# {{.Heading}}: {{.Title}}".
- Include these second-level sections, in this order: {{.SectionList}}.
- Write at least {{.MinWords}} words in total.
- Use varied wording; no phrase should appear more than {{.RepetitionLimit}} times.

Previous summary:
{{.Previous}}
{{- if .Abstract}}

Abstract of the paper, for reference:
{{.Abstract}}{{end}}
`))

type promptData struct {
	Title           string
	Authors         string
	Year            string
	Venue           string
	Heading         string
	Instructions    string
	SectionList     string
	MinWords        int
	KeyTerms        string
	Abstract        string
	Introduction    string
	Conclusion      string
	Text            string
	Complaints      []string
	Previous        string
	RepetitionLimit int
}

func newPromptData(p Paper, kind Kind, pc PaperContext) promptData {
	rules := kind.Rules()
	sections := make([]string, len(rules.Sections))
	for i, s := range rules.Sections {
		sections[i] = "## " + s
	}
	d := promptData{
		Title:        p.Title,
		Authors:      strings.Join(p.Authors, ", "),
		Venue:        p.Venue,
		Heading:      rules.Heading,
		Instructions: rules.Instructions,
		SectionList:  strings.Join(sections, ", "),
		MinWords:     rules.MinWords,
		KeyTerms:     strings.Join(pc.KeyTerms, ", "),
		Abstract:     pc.Abstract,
		Introduction: pc.Introduction,
		Conclusion:   pc.Conclusion,
	}
	if d.Abstract == "" {
		d.Abstract = p.Abstract
	}
	if p.Year > 0 {
		d.Year = fmt.Sprint(p.Year)
	}
	return d
}

// renderDraftPrompt builds the prompt for the first attempt.
func renderDraftPrompt(p Paper, kind Kind, pc PaperContext, text string) (string, error) {
	d := newPromptData(p, kind, pc)
	d.Text = text
	var buf bytes.Buffer
	if err := draftPromptTmpl.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("executing draft template: %w", err)
	}
	return buf.String(), nil
}

// renderRefinePrompt builds the prompt for a later attempt from the
// previous draft and its validation errors.
func renderRefinePrompt(p Paper, kind Kind, pc PaperContext, previous string, complaints []string, repetitionLimit int) (string, error) {
	d := newPromptData(p, kind, pc)
	d.Previous = previous
	d.Complaints = complaints
	d.RepetitionLimit = repetitionLimit
	var buf bytes.Buffer
	if err := refinePromptTmpl.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("executing refinement template: %w", err)
	}
	return buf.String(), nil
}
