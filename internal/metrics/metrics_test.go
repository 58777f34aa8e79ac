// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSearch(t *testing.T) {
	m := New()
	m.RecordSearch("arxiv", 5)
	m.RecordSearch("arxiv", 2)
	m.RecordSearchFailure("semanticscholar", true)
	m.RecordSearchFailure("semanticscholar", false)

	assert.Equal(t, 7.0, testutil.ToFloat64(m.SearchResults.WithLabelValues("arxiv")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchFailures.WithLabelValues("semanticscholar", "rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchFailures.WithLabelValues("semanticscholar", "error")))
}

func TestRecordDownloadAndSummary(t *testing.T) {
	m := New()
	m.RecordDownload("downloaded")
	m.RecordDownload("access_denied")
	m.RecordDownload("downloaded")
	m.RecordSummary("success", 12)
	m.RecordSummary("skipped", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Downloads.WithLabelValues("downloaded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Summaries.WithLabelValues("skipped")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SummaryDuration))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordSearch("arxiv", 1)
	m.RecordSearchFailure("arxiv", false)
	m.RecordDownload("downloaded")
	m.RecordSummary("success", 1)
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "m.prom")))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.RecordDownload("downloaded")

	path := filepath.Join(t.TempDir(), "literature.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `literature_downloads_total{outcome="downloaded"} 1`)
}
