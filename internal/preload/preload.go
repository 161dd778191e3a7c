// Package preload loads a batch of image and audio assets under one
// tracker and reports how each of them settled.
package preload

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iliamunaev/async-tracker/internal/action"
	"github.com/iliamunaev/async-tracker/internal/apperr"
	"github.com/iliamunaev/async-tracker/internal/audio"
	"github.com/iliamunaev/async-tracker/internal/imageload"
	"github.com/iliamunaev/async-tracker/internal/model"
	"github.com/iliamunaev/async-tracker/internal/pool"
	"github.com/iliamunaev/async-tracker/internal/tracker"
)

// Asset is what the service needs from a tracked action. Every action
// that embeds *action.Base satisfies it.
type Asset interface {
	action.Action
	ID() string
	Name() string
	State() action.State
	Err() error
	Elapsed() time.Duration
}

// Kinds of assets.
const (
	KindImage   = "image"
	KindAudio   = "audio"
	KindUnknown = "unknown"
)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// KindOf classifies a path by extension.
func KindOf(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case imageExts[ext]:
		return KindImage
	case isAudioExt(ext):
		return KindAudio
	default:
		return KindUnknown
	}
}

func isAudioExt(ext string) bool {
	for _, e := range audio.SupportedExts {
		if e == ext {
			return true
		}
	}
	return false
}

// Settings bound a preload run.
type Settings struct {
	// Timeout bounds each action; zero disables it.
	Timeout time.Duration
	// RequestTimeout bounds the whole batch.
	RequestTimeout time.Duration
	// ReportInterval is how often progress is logged while waiting.
	ReportInterval time.Duration
}

// Request lists what to load. Paths are files classified by extension;
// Sounds are names resolved by the audio manager.
type Request struct {
	Paths  []string
	Sounds []string
}

// Service runs preload batches.
type Service struct {
	pool     *pool.Pool
	audio    *audio.Manager
	settings Settings
	log      zerolog.Logger
}

// New creates a preload service with dependencies.
func New(p *pool.Pool, am *audio.Manager, settings Settings, log zerolog.Logger) *Service {
	if p == nil {
		p = pool.New(1)
	}
	if settings.RequestTimeout <= 0 {
		settings.RequestTimeout = time.Minute
	}
	if settings.ReportInterval <= 0 {
		settings.ReportInterval = 500 * time.Millisecond
	}
	return &Service{pool: p, audio: am, settings: settings, log: log}
}

type entry struct {
	asset Asset
	kind  string
}

func (s *Service) build(req Request) []entry {
	opts := []action.Option{
		action.WithTimeout(s.settings.Timeout),
		action.WithPool(s.pool),
		action.WithLogger(s.log),
	}

	out := make([]entry, 0, len(req.Paths)+len(req.Sounds))
	for _, path := range req.Paths {
		switch kind := KindOf(path); kind {
		case KindImage:
			out = append(out, entry{asset: imageload.New(path, opts...), kind: kind})
		case KindAudio:
			out = append(out, entry{asset: audio.NewLoadAction(path, opts...), kind: kind})
		default:
			path := path
			unsupported := action.NewFunc(func(context.Context) error {
				return fmt.Errorf("%w: %s", apperr.ErrUnsupportedFormat, path)
			}, append(opts, action.WithName(path))...)
			out = append(out, entry{asset: unsupported, kind: kind})
		}
	}
	if s.audio != nil {
		for _, name := range req.Sounds {
			out = append(out, entry{asset: s.audio.Action(name), kind: KindAudio})
		}
	}
	return out
}

// Run starts every asset of req, waits until all settled or the request
// timeout elapses, and returns a report. The error is non-nil when the
// batch did not finish or any asset failed.
func (s *Service) Run(ctx context.Context, req Request) (model.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, s.settings.RequestTimeout)
	defer cancel()

	entries := s.build(req)
	if len(entries) == 0 {
		return model.Report{Status: "ok"}, nil
	}

	tr := tracker.New[Asset](tracker.WithLogger(s.log))
	tr.ActionComplete(func(item Asset, tr *tracker.Tracker[Asset]) {
		s.log.Info().
			Str("asset", item.Name()).
			Float64("percent", tr.PercentComplete()*100).
			Msg("asset loaded")
	}).ActionError(func(item Asset, err error, tr *tracker.Tracker[Asset]) {
		s.log.Error().
			Err(err).
			Str("asset", item.Name()).
			Str("kind", apperr.Kind(err)).
			Float64("percent", tr.PercentComplete()*100).
			Msg("asset failed")
	}).Done(func(tr *tracker.Tracker[Asset], hasErrors bool) {
		s.log.Info().
			Int("total", tr.TotalCount()).
			Int("errors", tr.ErrorCount()).
			Bool("has_errors", hasErrors).
			Msg("preload done")
	})

	assets := make([]Asset, len(entries))
	for i, e := range entries {
		assets[i] = e.asset
	}
	tr.AddActions(assets...)

	waitErr := s.wait(ctx, tr)
	rep := buildReport(entries, tr.Snapshot(), waitErr)
	if waitErr != nil {
		abandon(entries, waitErr)
	}
	closeClips(entries, s.audio)

	switch {
	case waitErr != nil:
		return rep, fmt.Errorf("preload incomplete: %w", waitErr)
	case rep.Errors > 0:
		return rep, fmt.Errorf("%d of %d assets failed: %w", rep.Errors, rep.Total, firstErr(entries))
	default:
		return rep, nil
	}
}

// wait blocks on the tracker while a second goroutine logs progress.
func (s *Service) wait(ctx context.Context, tr *tracker.Tracker[Asset]) error {
	g, gctx := errgroup.WithContext(ctx)
	reportCtx, stop := context.WithCancel(gctx)
	defer stop()

	g.Go(func() error {
		defer stop()
		return tr.Wait(gctx)
	})
	g.Go(func() error {
		t := time.NewTicker(s.settings.ReportInterval)
		defer t.Stop()
		for {
			select {
			case <-reportCtx.Done():
				return nil
			case <-t.C:
				p := tr.Snapshot()
				s.log.Debug().
					Int("total", p.Total).
					Int("completed", p.Completed).
					Int("errors", p.Errors).
					Float64("percent", p.Percent()*100).
					Msg("preload progress")
			}
		}
	})
	return g.Wait()
}

func buildReport(entries []entry, p tracker.Progress, waitErr error) model.Report {
	rep := model.Report{
		Status:    "ok",
		Total:     p.Total,
		Completed: p.Completed,
		Errors:    p.Errors,
		Percent:   p.Percent(),
		Actions:   make([]model.ActionResult, 0, len(entries)),
	}
	switch {
	case waitErr != nil:
		rep.Status = "incomplete"
		rep.Error = &model.ErrorPayload{Kind: apperr.Kind(waitErr), Message: waitErr.Error()}
	case p.Errors > 0:
		rep.Status = "error"
	}

	for _, e := range entries {
		res := model.ActionResult{
			ID:         e.asset.ID(),
			Name:       e.asset.Name(),
			Kind:       e.kind,
			DurationMS: e.asset.Elapsed().Milliseconds(),
		}
		switch e.asset.State() {
		case action.Completed:
			res.Status = "ok"
			if sz, ok := e.asset.(interface{ Size() int64 }); ok {
				res.Bytes = sz.Size()
			}
		case action.Errored:
			err := e.asset.Err()
			res.Status = "error"
			if errors.Is(err, apperr.ErrTimedOut) {
				res.Status = "timeout"
			}
			res.Detail = err.Error()
		default:
			res.Status = "pending"
		}
		rep.Actions = append(rep.Actions, res)
	}
	return rep
}

func firstErr(entries []entry) error {
	for _, e := range entries {
		if err := e.asset.Err(); err != nil {
			return err
		}
	}
	return nil
}

// abandon fails every asset still pending when the batch gave up on it.
// Failing cancels the asset's context, which releases its pool wait and
// makes a late decode discard what it loaded.
func abandon(entries []entry, cause error) {
	for _, e := range entries {
		if e.asset.State() != action.Pending {
			continue
		}
		f, ok := e.asset.(interface{ Fail(error) error })
		if !ok {
			continue
		}
		_ = f.Fail(fmt.Errorf("preload incomplete: %w", cause))
	}
}

// closeClips releases decoded audio that the manager does not keep.
func closeClips(entries []entry, am *audio.Manager) {
	cached := map[*audio.Clip]bool{}
	if am != nil {
		am.ForEach(func(_ string, c *audio.Clip) { cached[c] = true })
	}
	for _, e := range entries {
		la, ok := e.asset.(*audio.LoadAction)
		if !ok {
			continue
		}
		if c := la.Clip(); c != nil && !cached[c] {
			_ = c.Close()
		}
	}
}
