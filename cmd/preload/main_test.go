package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliamunaev/async-tracker/internal/apperr"
	"github.com/iliamunaev/async-tracker/internal/model"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := executeFull(t, args...)
	return out, err
}

func executeFull(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeAssets(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	f, err := os.Create(filepath.Join(dir, "logo.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 3, 3))))
	require.NoError(t, f.Close())

	f, err = os.Create(filepath.Join(dir, "coin.wav"))
	require.NoError(t, err)
	require.NoError(t, wav.Encode(f, beep.Silence(40), beep.Format{SampleRate: 8000, NumChannels: 1, Precision: 2}))
	require.NoError(t, f.Close())

	return dir
}

func TestRootJSONReport(t *testing.T) {
	dir := writeAssets(t)

	out, err := execute(t, "--json", "--audio-dir", dir, "--sound", "coin",
		"--config", writeConfig(t, dir), filepath.Join(dir, "logo.png"))
	require.NoError(t, err)

	var rep model.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, "ok", rep.Status)
	assert.Equal(t, 2, rep.Total)
	assert.Equal(t, 2, rep.Completed)
}

func TestRootTextReportWithFailure(t *testing.T) {
	dir := writeAssets(t)

	out, err := execute(t, "--timeout", "2s", filepath.Join(dir, "logo.png"), filepath.Join(dir, "gone.png"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrLoad)
	assert.Equal(t, 3, apperr.ExitCode(err))

	assert.Contains(t, out, "logo.png")
	assert.Contains(t, out, "gone.png")
	assert.Contains(t, out, "error: 2/2 settled (100%), 1 failed")
}

func TestRootInvalidConcurrency(t *testing.T) {
	_, err := execute(t, "--concurrency", "0", "a.png")
	require.ErrorIs(t, err, apperr.ErrInvalidConfig)
	assert.Equal(t, 2, apperr.ExitCode(err))
}

func TestRootMissingConfigFile(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorIs(t, err, apperr.ErrInvalidConfig)
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "preload.toml")
	body := "timeout = \"2s\"\nconcurrency = 2\n\n[audio]\next = \"wav\"\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRootLogsTagComponents(t *testing.T) {
	dir := writeAssets(t)

	_, logs, err := executeFull(t, "-vv", "--log-json", filepath.Join(dir, "logo.png"))
	require.NoError(t, err)

	assert.Contains(t, logs, `"component":"cli"`)
	assert.Contains(t, logs, `"component":"preload"`)
}
