// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// parseKeywords splits a comma-separated keyword list. Double quotes group
// a keyword so it may contain commas; multi-word keywords are kept whole.
// Blank items are dropped.
func parseKeywords(raw string) []string {
	r := csv.NewReader(strings.NewReader(raw))
	r.TrimLeadingSpace = true
	r.LazyQuotes = true
	fields, err := r.Read()
	if err != nil {
		fields = strings.Split(raw, ",")
	}
	var out []string
	for _, f := range fields {
		f = strings.Join(strings.Fields(strings.Trim(strings.TrimSpace(f), `"`)), " ")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// prompter asks questions on an interactive terminal. With assumeYes set
// every confirmation is accepted and no input is read.
type prompter struct {
	in        *bufio.Reader
	out       io.Writer
	assumeYes bool
}

func newPrompter(in io.Reader, out io.Writer, assumeYes bool) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out, assumeYes: assumeYes}
}

// confirm asks a yes/no question. The empty answer selects def.
func (p *prompter) confirm(question string, def bool) bool {
	if p.assumeYes {
		return true
	}
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	fmt.Fprintf(p.out, "%s %s ", question, hint)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		return def
	case "y", "yes":
		return true
	}
	return false
}

// keywords reads a keyword list. It returns nil in non-interactive mode or
// when the answer is blank.
func (p *prompter) keywords() []string {
	if p.assumeYes {
		return nil
	}
	fmt.Fprint(p.out, "Keywords (comma-separated): ")
	line, _ := p.in.ReadString('\n')
	return parseKeywords(line)
}
