// Package imageload provides an action that decodes an image file.
package imageload

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/iliamunaev/async-tracker/internal/action"
	"github.com/iliamunaev/async-tracker/internal/apperr"
)

// Action loads the image at Path when started. It completes once the image
// is decoded and fails with "Error loading image: <path>" otherwise.
type Action struct {
	*action.Base
	Path string

	once  sync.Once
	mu    sync.Mutex
	img   image.Image
	bytes int64
}

// New creates an image load action. Options are passed to action.NewBase.
func New(path string, opts ...action.Option) *Action {
	a := &Action{Path: path}
	if path != "" {
		opts = append([]action.Option{action.WithName(path)}, opts...)
	}
	a.Base = action.NewBase(a, opts...)
	return a
}

// Start decodes the image on a new goroutine.
func (a *Action) Start() action.Action {
	a.once.Do(func() { go a.run() })
	return a
}

func (a *Action) run() {
	err := a.Pool().Do(a.Context(), a.decode)
	if a.Settled() {
		return
	}
	if err != nil {
		_ = a.Fail(fmt.Errorf("Error loading image: %s: %w", a.Path, err))
		return
	}
	_ = a.Complete()
}

func (a *Action) decode(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fi, err := os.Stat(a.Path)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrLoad, err)
	}
	img, err := imaging.Open(a.Path, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrLoad, err)
	}

	a.mu.Lock()
	a.img = img
	a.bytes = fi.Size()
	a.mu.Unlock()

	a.Logger().Debug().
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Msg("image decoded")
	return nil
}

// Image returns the decoded image, or nil before the action completes.
func (a *Action) Image() image.Image {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.img
}

// Size returns the file size in bytes of a loaded image.
func (a *Action) Size() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bytes
}
