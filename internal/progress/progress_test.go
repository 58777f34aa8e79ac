// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package progress

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/literature-engine/pkg/types"
)

var fixedNow = time.Date(2025, 6, 7, 8, 9, 10, 0, time.UTC)

func newTracker(t *testing.T) *Tracker {
	t.Helper()
	tr := New(filepath.Join(t.TempDir(), DefaultFile), zerolog.Nop())
	tr.now = func() time.Time { return fixedNow }
	tr.newID = func() string { return "run-1" }
	return tr
}

func reload(t *testing.T, tr *Tracker) *types.SummarizationProgress {
	t.Helper()
	fresh := New(tr.Path(), zerolog.Nop())
	p, err := fresh.LoadExistingRun()
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func TestStartNewRun(t *testing.T) {
	tr := newTracker(t)
	p, err := tr.StartNewRun([]string{"active inference", "free energy"}, 10)
	require.NoError(t, err)
	assert.Equal(t, "run-1", p.RunID)
	assert.Equal(t, 10, p.TotalPapers)
	assert.Equal(t, "2025-06-07T08:09:10Z", p.StartTime)

	got := reload(t, tr)
	assert.Equal(t, p.RunID, got.RunID)
	assert.Equal(t, []string{"active inference", "free energy"}, got.Keywords)
	assert.Empty(t, got.Entries)
}

func TestNewRunIDsAreUnique(t *testing.T) {
	tr := New(filepath.Join(t.TempDir(), DefaultFile), zerolog.Nop())
	a, err := tr.StartNewRun(nil, 0)
	require.NoError(t, err)
	b, err := tr.StartNewRun(nil, 0)
	require.NoError(t, err)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestLoadExistingRunAbsentOrCorrupt(t *testing.T) {
	tr := newTracker(t)
	p, err := tr.LoadExistingRun()
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, os.WriteFile(tr.Path(), []byte("{not json"), 0o644))
	p, err = tr.LoadExistingRun()
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Nil(t, tr.Current())
}

func TestInterruptedEntryResumesFromProcessing(t *testing.T) {
	tr := newTracker(t)
	_, err := tr.StartNewRun(nil, 2)
	require.NoError(t, err)
	_, err = tr.AddPaper("smith2023foo", "pdfs/smith2023foo.pdf")
	require.NoError(t, err)
	_, err = tr.AddPaper("jones2024bar", "pdfs/jones2024bar.pdf")
	require.NoError(t, err)
	_, err = tr.UpdateEntryStatus("smith2023foo", types.StatusProcessing, Update{})
	require.NoError(t, err)

	resumed := New(tr.Path(), zerolog.Nop())
	p, err := resumed.LoadExistingRun()
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, types.StatusProcessing, p.Entries["smith2023foo"].Status, "status is never moved backward on load")
	assert.Equal(t, []string{"jones2024bar", "smith2023foo"}, resumed.IncompletePapers())

	ok, err := resumed.UpdateEntryStatus("smith2023foo", types.StatusProcessing, Update{SummaryAttempts: 1})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = resumed.UpdateEntryStatus("smith2023foo", types.StatusSummarized, Update{SummaryPath: "summaries/smith2023foo.md"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"jones2024bar"}, resumed.IncompletePapers())
}

func TestRequiresRun(t *testing.T) {
	tr := newTracker(t)
	_, err := tr.AddPaper("k", "")
	assert.ErrorIs(t, err, ErrNoRun)
	_, err = tr.UpdateEntryStatus("k", types.StatusProcessing, Update{})
	assert.ErrorIs(t, err, ErrNoRun)
	assert.ErrorIs(t, tr.Save(), ErrNoRun)
	assert.Nil(t, tr.IncompletePapers())
}

func TestAddPaper(t *testing.T) {
	tr := newTracker(t)
	_, err := tr.StartNewRun(nil, 2)
	require.NoError(t, err)

	added, err := tr.AddPaper("smith2023foo", "pdfs/smith2023foo.pdf")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = tr.AddPaper("jones2024bar", "")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = tr.AddPaper("smith2023foo", "other.pdf")
	require.NoError(t, err)
	assert.False(t, added)

	got := reload(t, tr)
	assert.Equal(t, types.StatusDownloaded, got.Entries["smith2023foo"].Status)
	assert.Equal(t, "pdfs/smith2023foo.pdf", got.Entries["smith2023foo"].PDFPath)
	assert.Equal(t, types.StatusPending, got.Entries["jones2024bar"].Status)
}

func TestStatusTransitionsAreMonotone(t *testing.T) {
	tr := newTracker(t)
	_, err := tr.StartNewRun(nil, 1)
	require.NoError(t, err)
	_, err = tr.AddPaper("k", "")
	require.NoError(t, err)

	steps := []struct {
		to      types.ProgressStatus
		applied bool
	}{
		{types.StatusDownloaded, true},
		{types.StatusPending, false},
		{types.StatusProcessing, true},
		{types.StatusDownloaded, false},
		{types.StatusSummarized, true},
		{types.StatusProcessing, false},
		{types.StatusFailed, false},
	}
	observed := []types.ProgressStatus{types.StatusPending}
	for _, s := range steps {
		applied, err := tr.UpdateEntryStatus("k", s.to, Update{})
		require.NoError(t, err)
		assert.Equal(t, s.applied, applied, "to %s", s.to)
		e, _ := tr.Entry("k")
		observed = append(observed, e.Status)
	}

	rank := map[types.ProgressStatus]int{
		types.StatusPending: 0, types.StatusDownloaded: 1, types.StatusProcessing: 2, types.StatusSummarized: 3,
	}
	for i := 1; i < len(observed); i++ {
		assert.GreaterOrEqual(t, rank[observed[i]], rank[observed[i-1]], "observed %v", observed)
	}
	assert.Equal(t, types.StatusSummarized, observed[len(observed)-1])
}

func TestUnknownKeyIgnored(t *testing.T) {
	tr := newTracker(t)
	_, err := tr.StartNewRun(nil, 0)
	require.NoError(t, err)
	applied, err := tr.UpdateEntryStatus("ghost", types.StatusProcessing, Update{})
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestUpdateFields(t *testing.T) {
	tr := newTracker(t)
	_, err := tr.StartNewRun(nil, 1)
	require.NoError(t, err)
	_, err = tr.AddPaper("k", "pdfs/k.pdf")
	require.NoError(t, err)

	_, err = tr.UpdateEntryStatus("k", types.StatusProcessing, Update{SummaryAttempts: 1})
	require.NoError(t, err)
	_, err = tr.UpdateEntryStatus("k", types.StatusFailed, Update{LastError: "timeout", SummaryAttempts: 1, SummaryTime: 12.5})
	require.NoError(t, err)

	e := reload(t, tr).Entries["k"]
	assert.Equal(t, types.StatusFailed, e.Status)
	assert.Equal(t, 2, e.SummaryAttempts)
	assert.Equal(t, "timeout", e.LastError)
	assert.Equal(t, 12.5, e.SummaryTime)
}

func TestRetry(t *testing.T) {
	tr := newTracker(t)
	_, err := tr.StartNewRun(nil, 2)
	require.NoError(t, err)
	for _, k := range []string{"a2024x", "b2024y"} {
		_, err = tr.AddPaper(k, "p.pdf")
		require.NoError(t, err)
		_, err = tr.UpdateEntryStatus(k, types.StatusProcessing, Update{})
		require.NoError(t, err)
	}
	_, err = tr.UpdateEntryStatus("a2024x", types.StatusFailed, Update{LastError: "empty"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a2024x"}, tr.FailedPapers())
	assert.Equal(t, []string{"b2024y"}, tr.IncompletePapers())

	ok, err := tr.Retry("a2024x")
	require.NoError(t, err)
	assert.True(t, ok)
	e, _ := tr.Entry("a2024x")
	assert.Equal(t, types.StatusDownloaded, e.Status)
	assert.Empty(t, e.LastError)
	assert.Empty(t, tr.FailedPapers())
	assert.Equal(t, []string{"a2024x", "b2024y"}, tr.IncompletePapers())

	// Retrying a non-terminal entry does nothing.
	ok, err = tr.Retry("b2024y")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEveryUpdateIsPersisted(t *testing.T) {
	tr := newTracker(t)
	_, err := tr.StartNewRun([]string{"k"}, 3)
	require.NoError(t, err)

	keys := []string{"a2024x", "b2024y", "c2024z"}
	for _, k := range keys {
		_, err := tr.AddPaper(k, k+".pdf")
		require.NoError(t, err)
		_, err = tr.UpdateEntryStatus(k, types.StatusProcessing, Update{})
		require.NoError(t, err)
		_, err = tr.UpdateEntryStatus(k, types.StatusSummarized, Update{SummaryPath: k + "_summary.md"})
		require.NoError(t, err)

		// A reader at any point sees a complete document including this
		// update.
		data, err := os.ReadFile(tr.Path())
		require.NoError(t, err)
		var p types.SummarizationProgress
		require.NoError(t, json.Unmarshal(data, &p))
		assert.Equal(t, types.StatusSummarized, p.Entries[k].Status)
	}

	got := reload(t, tr)
	assert.Equal(t, 100.0, got.CompletionPercentage())
	assert.Equal(t, 100.0, got.SuccessRate())

	files, err := os.ReadDir(filepath.Dir(tr.Path()))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestCurrentIsACopy(t *testing.T) {
	tr := newTracker(t)
	_, err := tr.StartNewRun(nil, 1)
	require.NoError(t, err)
	_, err = tr.AddPaper("k", "")
	require.NoError(t, err)

	snap := tr.Current()
	snap.Entries["k"].Status = types.StatusFailed
	e, _ := tr.Entry("k")
	assert.Equal(t, types.StatusPending, e.Status)
}

func TestArchiveProgress(t *testing.T) {
	tr := newTracker(t)
	path, err := tr.ArchiveProgress()
	require.NoError(t, err)
	assert.Empty(t, path)

	_, err = tr.StartNewRun(nil, 0)
	require.NoError(t, err)
	path, err = tr.ArchiveProgress()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(tr.Path()), "summarization_progress_20250607T080910Z.json"), path)
	assert.FileExists(t, path)
	assert.NoFileExists(t, tr.Path())
	assert.Nil(t, tr.Current())
}
