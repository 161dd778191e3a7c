package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/iliamunaev/async-tracker/internal/action"
)

// LoadAction decodes one audio file when started. It fails with
// "Error loading audio: <path>" when the file cannot be decoded.
type LoadAction struct {
	*action.Base
	Path string

	once sync.Once
	mu   sync.Mutex
	clip *Clip
}

// NewLoadAction creates a load action for path.
func NewLoadAction(path string, opts ...action.Option) *LoadAction {
	a := &LoadAction{Path: path}
	if path != "" {
		opts = append([]action.Option{action.WithName(path)}, opts...)
	}
	a.Base = action.NewBase(a, opts...)
	return a
}

// Start decodes the file on a new goroutine.
func (a *LoadAction) Start() action.Action {
	a.once.Do(func() { go a.run() })
	return a
}

func (a *LoadAction) run() {
	var clip *Clip
	err := a.Pool().Do(a.Context(), func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		c, err := Decode(a.Path)
		if err != nil {
			return err
		}
		clip = c
		return nil
	})

	if a.Settled() {
		// Timed out while decoding; nobody will read the clip.
		if clip != nil {
			_ = clip.Close()
		}
		return
	}
	if err != nil {
		a.Logger().Error().Err(err).Msg("Error loading audio")
		_ = a.Fail(fmt.Errorf("Error loading audio: %s: %w", a.Path, err))
		return
	}

	a.mu.Lock()
	a.clip = clip
	a.mu.Unlock()

	if err := a.Complete(); err != nil {
		// Settled between the check above and now.
		a.mu.Lock()
		a.clip = nil
		a.mu.Unlock()
		_ = clip.Close()
		return
	}
	a.Logger().Info().
		Dur("duration", clip.Duration()).
		Int("sample_rate", int(clip.Format.SampleRate)).
		Msg("Audio loaded")
}

// Clip returns the decoded clip, or nil before the action completes.
func (a *LoadAction) Clip() *Clip {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clip
}

// Size returns the file size in bytes of a loaded clip.
func (a *LoadAction) Size() int64 {
	if c := a.Clip(); c != nil {
		return c.Bytes
	}
	return 0
}
