package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"

	"github.com/r3labs/diff/v3"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alanbriolat/extractor"
	"github.com/alanbriolat/extractor/async"
	"github.com/alanbriolat/extractor/generic"
	"github.com/alanbriolat/extractor/internal/backend"
	"github.com/alanbriolat/extractor/internal/controller"
	"github.com/alanbriolat/extractor/internal/i18n"
	"github.com/alanbriolat/extractor/internal/web"
)

func main() {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger, err := logConfig.Build()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.RedirectStdLog(logger)
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = extractor.WithLogger(ctx, logger)

	app := &cli.App{
		Name:  "extractor",
		Usage: "extract tweets or YouTube transcripts through the extraction backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "backend",
				Value:   extractor.DefaultConfig.BackendURL,
				Usage:   "extraction backend at `URL`",
				EnvVars: []string{"EXTRACTOR_BACKEND"},
			},
			&cli.StringFlag{
				Name:    "lang",
				Value:   extractor.DefaultConfig.Language,
				Usage:   fmt.Sprintf("message language (%v)", strings.Join(i18n.Languages(), ", ")),
				EnvVars: []string{"EXTRACTOR_LANG"},
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Value:   extractor.DefaultConfig.RequestTimeout,
				Usage:   "give up on a backend request after `DURATION` (0 waits forever)",
				EnvVars: []string{"EXTRACTOR_TIMEOUT"},
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "enable debug logging",
				EnvVars: []string{"EXTRACTOR_DEBUG"},
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				logConfig.Level.SetLevel(zapcore.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "serve",
				Usage:     "serve the extraction form",
				ArgsUsage: " ",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "listen",
						Value:   extractor.DefaultConfig.ListenAddr,
						Usage:   "listen on `ADDR`",
						EnvVars: []string{"EXTRACTOR_LISTEN"},
					},
				},
				Action: func(c *cli.Context) error {
					cfg := configFromFlags(c)
					cfg.ListenAddr = c.String("listen")
					return serve(ctx, cfg)
				},
			},
			{
				Name:      "tweets",
				Usage:     "extract the tweets of a Twitter account",
				ArgsUsage: "USERNAME",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "save",
						Usage: "also download the result into `DIR`",
					},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("expected exactly one USERNAME", 2)
					}
					return extract(ctx, configFromFlags(c), extractor.ModeTwitter, c.Args().First(), false, c.String("save"))
				},
			},
			{
				Name:      "transcripts",
				Usage:     "extract transcripts of YouTube videos",
				ArgsUsage: "URL[,URL...]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "diarization",
						Usage: "separate speakers in the transcripts",
					},
					&cli.StringFlag{
						Name:  "save",
						Usage: "also download the result into `DIR`",
					},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return cli.Exit("expected at least one URL", 2)
					}
					input := strings.Join(c.Args().Slice(), ",")
					return extract(ctx, configFromFlags(c), extractor.ModeYouTube, input, c.Bool("diarization"), c.String("save"))
				},
			},
		},
		HideHelpCommand: true,
	}

	result := async.Run(func() error { return app.Run(os.Args) })

	select {
	case err = <-result:
		if err != nil {
			logger.Fatal(err.Error())
		}
	case <-ctx.Done():
		stop()
		err = <-result
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal(err.Error())
		}
	}
}

func configFromFlags(c *cli.Context) extractor.Config {
	cfg := extractor.DefaultConfig
	cfg.BackendURL = c.String("backend")
	cfg.Language = c.String("lang")
	cfg.RequestTimeout = c.Duration("timeout")
	return cfg
}

func newController(ctx context.Context, cfg extractor.Config) (*controller.Controller, *backend.Client, error) {
	client, err := backend.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	ctrlConfig := controller.DefaultConfig
	ctrlConfig.ProgressUpdateInterval = cfg.ProgressUpdateInterval
	return controller.New(ctx, ctrlConfig, client), client, nil
}

func serve(ctx context.Context, cfg extractor.Config) error {
	ctrl, _, err := newController(ctx, cfg)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	server, err := web.NewServer(ctrl, cfg.Language)
	if err != nil {
		return err
	}
	defer server.Close()

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %v: %w", cfg.ListenAddr, err)
	}
	return server.Serve(ctx, lis)
}

func extract(ctx context.Context, cfg extractor.Config, mode extractor.Mode, input string, diarization bool, saveDir string) error {
	logger := zap.S()
	translator := i18n.New(cfg.Language)

	ctrl, client, err := newController(ctx, cfg)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	events, err := ctrl.Subscribe()
	if err != nil {
		return err
	}
	finished := make(chan controller.SubmissionFinished, 1)
	go func() {
		bar := progressbar.Default(100, "uploading")
		for event := range events.Receive() {
			switch e := event.(type) {
			case controller.StateChanged:
				changes, err := diff.Diff(e.OldState, e.NewState)
				if err != nil {
					logger.Errorf("failed to diff old and new state: %v", err)
				} else {
					for _, change := range changes {
						logger.Debugf("%v: %#v -> %#v", change.Path, change.From, change.To)
					}
				}
				if e.NewState.IsSubmitting() {
					generic.Unwrap_(bar.Set(e.NewState.Progress))
				}
			case controller.SubmissionStarted:
				for _, id := range e.Request.VideoIDs() {
					logger.Infof("Requesting transcript for video %s", id)
				}
			case controller.Notification:
				logger.Warn(translator.T(e.Key))
			case controller.SubmissionFinished:
				_ = bar.Finish()
				finished <- e
			}
		}
	}()

	if err := ctrl.SetMode(mode); err != nil {
		return err
	}
	if err := ctrl.SetInput(input); err != nil {
		return err
	}
	if err := ctrl.SetDiarization(diarization); err != nil {
		return err
	}
	if err := ctrl.Submit(); err != nil {
		if errors.Is(err, extractor.ErrInvalidTwitterInput) || errors.Is(err, extractor.ErrInvalidYoutubeInput) {
			return cli.Exit(translator.T(extractor.NotificationKey(err)), 1)
		}
		return err
	}

	var outcome controller.SubmissionFinished
	select {
	case outcome = <-finished:
	case <-ctx.Done():
		logger.Info("Exiting gracefully...")
		return ctx.Err()
	}
	if outcome.Outcome == controller.OutcomeFailed {
		return cli.Exit(fmt.Sprintf("%v: %v", translator.T(extractor.KeyRequestFailed), outcome.Err), 1)
	}

	acknowledged := ctrl.Acknowledge()
	if acknowledged.IsNone() {
		return backend.ErrNoDownloadLink
	}
	link := acknowledged.Unwrap()
	fmt.Println(link)
	if saveDir == "" {
		return nil
	}

	logger.Infof("Downloading %s into %s", link, saveDir)
	bar := progressbar.DefaultBytes(-1, "downloading")
	fetched := async.RunResult(func() (string, error) {
		return client.Fetch(ctx, link, saveDir, func(loaded int64, total int64) {
			if total > 0 && bar.GetMax() != int(total) {
				bar.ChangeMax(int(total))
			}
			generic.Unwrap_(bar.Set(int(loaded)))
		})
	})
	var saved generic.Result[string]
	select {
	case saved = <-fetched:
	case <-ctx.Done():
		logger.Info("Exiting gracefully...")
		// Fetch returns promptly once ctx is done
		saved = <-fetched
	}
	path, err := saved.Parts()
	if err != nil {
		return err
	}
	_ = bar.Finish()
	logger.Infof("Saved %s", path)
	return nil
}
