// Package audio loads audio clips as trackable actions and caches them by
// name.
package audio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"

	"github.com/iliamunaev/async-tracker/internal/apperr"
)

// SupportedExts lists the file extensions Decode understands.
var SupportedExts = []string{".ogg", ".mp3", ".wav", ".flac"}

// Clip is a decoded audio file.
type Clip struct {
	Path   string
	Format beep.Format
	Stream beep.StreamSeekCloser
	Bytes  int64

	file *os.File
}

// Duration returns the playing time of the clip.
func (c *Clip) Duration() time.Duration {
	return c.Format.SampleRate.D(c.Stream.Len())
}

// Close releases the decoder and the underlying file.
func (c *Clip) Close() error {
	err := c.Stream.Close()
	if ferr := c.file.Close(); ferr != nil && !errors.Is(ferr, fs.ErrClosed) && err == nil {
		err = ferr
	}
	return err
}

// Decode opens path and decodes it according to its extension.
func Decode(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrLoad, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", apperr.ErrLoad, err)
	}

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".flac":
		stream, format, err = flac.Decode(f)
	case ".wav":
		stream, format, err = wav.Decode(f)
	case ".mp3":
		stream, format, err = mp3.Decode(f)
	case ".ogg":
		stream, format, err = vorbis.Decode(f)
	default:
		f.Close()
		return nil, fmt.Errorf("%w: %s", apperr.ErrUnsupportedFormat, path)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", apperr.ErrLoad, err)
	}

	return &Clip{
		Path:   path,
		Format: format,
		Stream: stream,
		Bytes:  fi.Size(),
		file:   f,
	}, nil
}
