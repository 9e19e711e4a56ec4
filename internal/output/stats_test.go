package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteStatsRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stats.json")

	started := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	finished := started.Add(90 * time.Minute)
	stats := Stats{
		StartedAt:        started,
		FinishedAt:       finished,
		Duration:         finished.Sub(started),
		BootstrapCount:   512,
		NumWorkers:       64,
		NodeShare:        0.25,
		ExtraVersionInfo: "run-42",
	}
	require.NoError(t, WriteStats(path, stats))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, "run-42", decoded["extra_version_info"])
	require.Equal(t, float64(512), decoded["bootstrap_count"])
}

func TestWriteStatsOmitsEmptyExtraVersionInfo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stats.json")

	require.NoError(t, WriteStats(path, Stats{}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	_, present := decoded["extra_version_info"]
	require.False(t, present)
}
