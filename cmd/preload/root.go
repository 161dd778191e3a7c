package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/iliamunaev/async-tracker/internal/app"
	"github.com/iliamunaev/async-tracker/internal/config"
	"github.com/iliamunaev/async-tracker/internal/logging"
	"github.com/iliamunaev/async-tracker/internal/preload"
)

type options struct {
	verbosity   int
	configPath  string
	timeout     time.Duration
	concurrency int
	audioDir    string
	sounds      []string
	jsonOut     bool
	logJSON     bool
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "preload [paths...]",
		Short: "Load image and audio assets concurrently and report progress",
		Long: `preload decodes every given image and audio file, plus any named sounds
from the audio directory, and tracks them as one batch. The command exits
non-zero when any asset fails, times out, or the batch does not finish.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, &opts, args)
		},
	}

	f := cmd.Flags()
	f.CountVarP(&opts.verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	f.StringVarP(&opts.configPath, "config", "c", "", "TOML config file")
	f.DurationVar(&opts.timeout, "timeout", 0, "Per-asset timeout, 0 disables it (overrides config)")
	f.IntVar(&opts.concurrency, "concurrency", 0, "Maximum concurrent decodes (overrides config)")
	f.StringVar(&opts.audioDir, "audio-dir", "", "Directory for named sounds (overrides config)")
	f.StringArrayVarP(&opts.sounds, "sound", "s", nil, "Named sound to load from the audio directory (repeatable)")
	f.BoolVar(&opts.jsonOut, "json", false, "Write the report as JSON")
	f.BoolVar(&opts.logJSON, "log-json", false, "Write logs as JSON")

	return cmd
}

func run(cmd *cobra.Command, opts *options, paths []string) error {
	log := logging.Setup(opts.verbosity, cmd.ErrOrStderr(), opts.logJSON)
	done := logging.LogOperationStart(logging.Get("cli"), "preload")
	defer done()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("timeout") {
		cfg.Timeout = opts.timeout
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = opts.concurrency
	}
	if flags.Changed("audio-dir") {
		cfg.Audio.Dir = opts.audioDir
	}

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	rep, runErr := a.Preload.Run(cmd.Context(), preload.Request{Paths: paths, Sounds: opts.sounds})

	out := cmd.OutOrStdout()
	if opts.jsonOut {
		err = preload.WriteJSON(out, rep)
	} else {
		err = preload.WriteText(out, rep)
	}
	if runErr != nil {
		return runErr
	}
	return err
}
