// internal/app/app.go
package app

import (
	"github.com/rs/zerolog"

	"github.com/iliamunaev/async-tracker/internal/audio"
	"github.com/iliamunaev/async-tracker/internal/config"
	"github.com/iliamunaev/async-tracker/internal/logging"
	"github.com/iliamunaev/async-tracker/internal/pool"
	"github.com/iliamunaev/async-tracker/internal/preload"
)

type App struct {
	Pool    *pool.Pool
	Audio   *audio.Manager
	Preload *preload.Service
}

// New wires the decode pool, the audio manager and the preload service
// from cfg. A nil cfg uses the built-in defaults.
func New(cfg *config.Config, log zerolog.Logger) (*App, error) {
	if cfg == nil {
		c, err := config.Load("")
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := pool.New(cfg.Concurrency)
	am := audio.NewManager(cfg.Audio.Dir,
		audio.WithExt(cfg.Audio.Ext),
		audio.WithTimeout(cfg.Timeout),
		audio.WithNoCache(cfg.Audio.NoCache),
		audio.WithPool(p),
		audio.WithLogger(logging.Component(log, "audio")),
	)
	svc := preload.New(p, am, preload.Settings{
		Timeout:        cfg.Timeout,
		RequestTimeout: cfg.RequestTimeout,
		ReportInterval: cfg.ReportInterval,
	}, logging.Component(log, "preload"))

	return &App{Pool: p, Audio: am, Preload: svc}, nil
}

// Close releases cached audio.
func (a *App) Close() error {
	return a.Audio.Close()
}
