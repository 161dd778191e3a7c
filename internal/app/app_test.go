package app

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliamunaev/async-tracker/internal/apperr"
	"github.com/iliamunaev/async-tracker/internal/config"
	"github.com/iliamunaev/async-tracker/internal/preload"
)

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	a, err := New(nil, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 4, a.Pool.Size())
	assert.Equal(t, filepath.Join(".", "x.ogg"), a.Audio.Path("x"))
	assert.NotNil(t, a.Preload)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Concurrency: 0, RequestTimeout: time.Second, ReportInterval: time.Second}
	_, err := New(cfg, zerolog.Nop())
	assert.ErrorIs(t, err, apperr.ErrInvalidConfig)
}

func TestAppRunsPreload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "icon.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	require.NoError(t, f.Close())

	cfg := &config.Config{
		Timeout:        time.Second,
		RequestTimeout: 5 * time.Second,
		Concurrency:    2,
		ReportInterval: 50 * time.Millisecond,
		Audio:          config.AudioConfig{Dir: dir, Ext: "wav"},
	}
	a, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, filepath.Join(dir, "x.wav"), a.Audio.Path("x"))

	rep, err := a.Preload.Run(context.Background(), preload.Request{Paths: []string{path}})
	require.NoError(t, err)
	assert.Equal(t, "ok", rep.Status)
	assert.Equal(t, 1, rep.Completed)
}
