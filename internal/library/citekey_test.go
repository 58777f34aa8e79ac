// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/literature-engine/pkg/types"
)

func TestGenerateCitationKey(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		authors []string
		year    *int
		want    string
	}{
		{"basic", "Attention Is All You Need", []string{"Ashish Vaswani", "Noam Shazeer"}, types.IntPtr(2017), "vaswani2017attention"},
		{"stop words skipped", "The Free Energy Principle", []string{"Karl Friston"}, types.IntPtr(2010), "friston2010free"},
		{"all leading stop words", "On the Origin of Species", []string{"Charles Darwin"}, types.IntPtr(1859), "darwin1859origin"},
		{"no year", "Deep Learning", []string{"Yann LeCun"}, nil, "lecun" + "nodate" + "deep"},
		{"last comma first", "Graphs", []string{"Smith, John"}, types.IntPtr(2023), "smith2023graphs"},
		{"accents folded", "Über Modelle", []string{"José Müller"}, types.IntPtr(2020), "muller2020uber"},
		{"punctuation stripped", "Self-Attention: A Survey", []string{"A. O'Brien"}, types.IntPtr(2021), "obrien2021selfattention"},
		{"no authors", "Anonymous Work", nil, types.IntPtr(1999), "anonymous1999anonymous"},
		{"empty author skipped", "Work", []string{"", "Jane Doe"}, types.IntPtr(2000), "doe2000work"},
		{"empty title", "", []string{"Jane Doe"}, types.IntPtr(2000), "doe2000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GenerateCitationKey(tt.title, tt.authors, tt.year))
		})
	}
}

func TestGenerateCitationKeyDeterministic(t *testing.T) {
	a := GenerateCitationKey("Same Title", []string{"Ann Lee"}, types.IntPtr(2022))
	b := GenerateCitationKey("Same Title", []string{"Ann Lee"}, types.IntPtr(2022))
	assert.Equal(t, a, b)
}

func TestSuffix(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "a"},
		{1, "b"},
		{25, "z"},
		{26, "aa"},
		{27, "ab"},
		{51, "az"},
		{52, "ba"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, suffix(tt.n), "suffix(%d)", tt.n)
	}
}
