package main

import (
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/leaflens/leaflens/internal/scanstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func savedScans(t *testing.T) string {
	t.Helper()
	cfgPath := testProject(t, "")
	img := filepath.Join(filepath.Dir(cfgPath), "leaf.png")
	for _, user := range []string{"u1", "u1", "u2"} {
		_, err := runCLI(t, "--config", cfgPath, "predict", "--save", "--user", user, img)
		require.NoError(t, err)
	}
	return cfgPath
}

func TestScansList(t *testing.T) {
	cfgPath := savedScans(t)

	out, err := runCLI(t, "--config", cfgPath, "scans", "list", "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "TOP DISEASE")
	assert.Contains(t, out, "Early Blight")
	assert.Contains(t, out, "filtered")
	assert.NotContains(t, out, "u2")
}

func TestScansExport(t *testing.T) {
	cfgPath := savedScans(t)
	outPath := filepath.Join(t.TempDir(), "scans.jsonl.zst")

	out, err := runCLI(t, "--config", cfgPath, "scans", "export", "--out", outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 3 scan(s)")

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	scans, err := scanstore.ReadExport(f)
	require.NoError(t, err)
	assert.Len(t, scans, 3)
}

func TestScansStats(t *testing.T) {
	cfgPath := savedScans(t)

	out, err := runCLI(t, "--config", cfgPath, "scans", "stats", "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "Scans: 2")
	assert.Contains(t, out, "mean 30.00%")
	assert.Contains(t, out, "100.0%")
}

func TestScansStats_Empty(t *testing.T) {
	out, err := runCLI(t, "--config", testProject(t, ""), "scans", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Scans: 0")
	assert.NotContains(t, out, "FILTER")
}

func scrapeMetrics(t *testing.T, a *app) string {
	t.Helper()
	rec := httptest.NewRecorder()
	a.metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return string(body)
}
