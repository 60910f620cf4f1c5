package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-index/internal/database"
	"media-index/internal/handlers"
	"media-index/internal/indexer"
	mdt "media-index/internal/metadata/metadatatest"
	"media-index/internal/startup"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func newTestLibrary(t *testing.T) (mediaDir, dbDir string) {
	t.Helper()

	mediaDir = t.TempDir()
	mdt.JPEG(t, mediaDir, "2023/nyc.jpg", mdt.NewYork())
	mdt.PlainJPEG(t, mediaDir, "2023/plain.jpg")
	mdt.WriteFile(t, mediaDir, "2024/clip.mp4", mdt.MP4(mdt.Mvhd(3000000000, 0)))
	return mediaDir, t.TempDir()
}

func TestCommandsEndToEnd(t *testing.T) {
	mediaDir, dbDir := newTestLibrary(t)
	common := []string{"--media-dir", mediaDir, "--database-dir", dbDir, "--no-geocode"}

	out, err := runCommand(t, append([]string{"scan"}, common...)...)
	require.NoError(t, err)
	var result indexer.ScanResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, database.ScanCompleted, result.Status)
	assert.Equal(t, 3, result.Added)

	out, err = runCommand(t, append([]string{"scan"}, common...)...)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 0, result.Added)
	assert.Equal(t, 3, result.Updated)

	plain := filepath.Join(mediaDir, "2023", "plain.jpg")
	out, err = runCommand(t, append([]string{"rate", plain, "4", "--no-file-write"}, common...)...)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true}`, out)

	out, err = runCommand(t, append([]string{"stats"}, common...)...)
	require.NoError(t, err)
	var stats map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.EqualValues(t, 3, stats["totalFiles"])
	assert.EqualValues(t, 2, stats["totalImages"])
	assert.EqualValues(t, 1, stats["totalVideos"])
	assert.EqualValues(t, 1, stats["ratedFiles"])

	out, err = runCommand(t, append([]string{"random", "--type", "video"}, common...)...)
	require.NoError(t, err)
	var recs []database.MediaRecord
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, filepath.Join(mediaDir, "2024", "clip.mp4"), recs[0].Path)

	out, err = runCommand(t, append([]string{"random", "--in", filepath.Join(mediaDir, "2023"), "--limit", "5"}, common...)...)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	assert.Len(t, recs, 2)
}

func TestScanCommandFolderFlag(t *testing.T) {
	mediaDir, dbDir := newTestLibrary(t)

	out, err := runCommand(t, "scan", "--media-dir", mediaDir, "--database-dir", dbDir, "--no-geocode", "--folder", "2024")
	require.NoError(t, err)

	var result indexer.ScanResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 1, result.Added)
}

func TestScanCommandMissingMediaDir(t *testing.T) {
	_, err := runCommand(t, "scan", "--media-dir", filepath.Join(t.TempDir(), "missing"), "--database-dir", t.TempDir(), "--no-geocode")
	assert.Error(t, err)
}

func TestRateCommandErrors(t *testing.T) {
	mediaDir, dbDir := newTestLibrary(t)
	common := []string{"--media-dir", mediaDir, "--database-dir", dbDir, "--no-geocode"}

	tests := []struct {
		name string
		args []string
	}{
		{"rating out of range", []string{"rate", filepath.Join(mediaDir, "2023", "plain.jpg"), "9"}},
		{"rating not a number", []string{"rate", filepath.Join(mediaDir, "2023", "plain.jpg"), "five"}},
		{"file not indexed", []string{"rate", filepath.Join(mediaDir, "nope.jpg"), "3"}},
		{"missing argument", []string{"rate", filepath.Join(mediaDir, "2023", "plain.jpg")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCommand(t, append(tt.args, common...)...)
			assert.Error(t, err)
		})
	}
}

func TestRandomCommandBadType(t *testing.T) {
	_, err := runCommand(t, "random", "--type", "audio", "--database-dir", t.TempDir(), "--no-geocode")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	require.NoError(t, err)

	var info startup.BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, startup.GetBuildInfo(), info)
}

func TestSetupRouter(t *testing.T) {
	h := handlers.New(nil, nil, indexer.Job{BasePath: t.TempDir()})
	routes, err := startup.GetRoutes(setupRouter(h))
	require.NoError(t, err)

	want := []startup.RouteInfo{
		{Method: "GET", Path: "/health"},
		{Method: "GET", Path: "/livez"},
		{Method: "HEAD", Path: "/livez"},
		{Method: "GET", Path: "/readyz"},
		{Method: "GET", Path: "/version"},
		{Method: "POST", Path: "/api/scan"},
		{Method: "GET", Path: "/api/scans"},
		{Method: "GET", Path: "/api/stats"},
		{Method: "GET", Path: "/api/file"},
		{Method: "POST", Path: "/api/rating"},
		{Method: "POST", Path: "/api/favorite"},
		{Method: "GET", Path: "/api/random"},
	}
	for _, r := range want {
		assert.Contains(t, routes, r)
	}
}
