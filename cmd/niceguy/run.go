package main

import (
	"context"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"niceguy/internal/bot"
	"niceguy/internal/cmdlog"
	"niceguy/internal/config"
	"niceguy/internal/corpus"
	"niceguy/internal/logging"
	"niceguy/internal/metrics"
	"niceguy/internal/xclient"
)

func newRunCmd(name string, preview bool) *cobra.Command {
	var dryRun bool
	short := "Search, then reply to every author found"
	if preview {
		short = "Search, then print the replies instead of posting them"
	}
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logging.Error("config_error", map[string]any{"path": cfgPath, "error": err.Error()})
				return err
			}
			if preview || dryRun {
				cfg.Reply.Mode = config.OutputPreview
			}
			applyLogFlags(cmd, cfg.Log)
			metrics.StartServer(cfg.Metrics.Addr)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return cmdlog.Run(name, func() error {
				defer func() {
					if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
						logging.Warn("metrics_textfile_error", map[string]any{"error": err.Error()})
					}
				}()
				_, err := runPipeline(ctx, cfg, cmd.OutOrStdout())
				return err
			})
		},
	}
	if !preview {
		cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print replies instead of posting them")
	}
	return cmd
}

// applyLogFlags re-applies logging with config values where no flag was given.
func applyLogFlags(cmd *cobra.Command, lc config.LogConfig) {
	level, format := logLevel, logFormat
	if level == "" {
		level = lc.Level
	}
	if format == "" {
		format = lc.Format
	}
	logging.Setup(cmd.ErrOrStderr(), level, format)
}

// runPipeline wires the agent from cfg and runs search, configure and reply
// once. Preview output goes to out.
func runPipeline(ctx context.Context, cfg config.Config, out io.Writer) (bot.Report, error) {
	start := time.Now()
	defer metrics.ObserveRunDuration(start)

	if err := cfg.Validate(); err != nil {
		return bot.Report{}, err
	}
	agent, err := newAgent(cfg, out)
	if err != nil {
		return bot.Report{}, err
	}
	rep, err := agent.Run(ctx, bot.QueryFromConfig(cfg.Search))
	logging.Info("run_summary", map[string]any{
		"mode":       cfg.Reply.Mode,
		"searched":   rep.Searched,
		"recipients": rep.Recipients,
		"submitted":  rep.Submitted,
		"failed":     rep.Failed,
	})
	return rep, err
}

func newAgent(cfg config.Config, out io.Writer) (*bot.Agent, error) {
	creds := cfg.Credentials
	base := xclient.NewHTTPClient(cfg.Search.BearerToken)

	var searcher bot.Searcher
	switch cfg.Search.API {
	case config.APIv2:
		base.SetBaseURL(cfg.APIBaseURL)
		searcher = base
	default:
		v1 := xclient.NewV1Client(base, creds.ConsumerKey, creds.ConsumerSecret, creds.AccessToken, creds.AccessTokenSecret)
		v1.SetBaseURL(cfg.APIBaseURL)
		searcher = v1
	}

	newPoster := bot.XPosterFactory(base, v1BaseURL(cfg))
	if cfg.Reply.Mode == config.OutputPreview {
		newPoster = bot.PreviewPosterFactory(out)
	}

	return bot.New(creds, bot.Options{
		Searcher:     searcher,
		NewPoster:    newPoster,
		Corpus:       corpus.File(cfg.Reply.Corpus),
		ReloadCorpus: cfg.Reply.ReloadEachReply,
		OnError:      cfg.Reply.OnError,
		Mode:         cfg.Reply.Mode,
	})
}

// v1BaseURL returns the API root override for posting. With the v2 search
// backend the override names the v2 root, so posting keeps the default.
func v1BaseURL(cfg config.Config) string {
	if cfg.Search.API == config.APIv2 {
		return ""
	}
	return cfg.APIBaseURL
}
