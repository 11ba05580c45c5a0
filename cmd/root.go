/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/blacktop/trendpost/internal/config"
	"github.com/blacktop/trendpost/internal/logutil"
	"github.com/blacktop/trendpost/internal/publish"
	"github.com/blacktop/trendpost/internal/runner"
	"github.com/blacktop/trendpost/internal/source"
	"github.com/blacktop/trendpost/internal/trendpost"
	"github.com/blacktop/trendpost/internal/trendpost/bluesky"
	"github.com/blacktop/trendpost/internal/trendpost/mastodon"
	"github.com/blacktop/trendpost/internal/trendpost/twitter"
	"github.com/spf13/cobra"
)

type options struct {
	dryRun   bool
	noDelay  bool
	maxDelay time.Duration
	targets  []string
	count    int
	strict   bool
	verbose  bool
}

// ExecuteContext runs the root command with ctx.
func ExecuteContext(ctx context.Context) error {
	return newRootCommand().ExecuteContext(ctx)
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "trendpost",
		Short: "Post a random update with trending hashtags",
		Long: "trendpost picks a random post from a remote corpus, an optional random image from a " +
			"remote folder and the current trending keywords, then publishes the result to X. " +
			"It is meant to be run from cron; a random delay desynchronizes the post time.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
		Example: `  trendpost
  trendpost --no-delay --dry-run
  trendpost --target twitter --target mastodon --max-delay 30m`,
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print the composed post without publishing")
	cmd.Flags().BoolVar(&opts.noDelay, "no-delay", false, "Skip the random delay before posting")
	cmd.Flags().DurationVar(&opts.maxDelay, "max-delay", 0, "Upper bound of the random delay (overrides TRENDPOST_MAX_DELAY)")
	cmd.Flags().StringSliceVar(&opts.targets, "target", nil, "Targets to post to (twitter, mastodon, bluesky, or all)")
	cmd.Flags().IntVarP(&opts.count, "count", "n", 0, "Number of trending keywords to add as hashtags (overrides TRENDPOST_TREND_COUNT)")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit non-zero when no post text could be selected")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "V", false, "Enable debug logging")
	cmd.Flags().SortFlags = false

	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlags(cmd, opts, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logutil.SetOutput(os.Stderr)
	logutil.SetLevel(cfg.LogLevel)
	if opts.verbose {
		logutil.SetVerbose(true)
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	srcOpts := source.Options{HTTPClient: httpClient, UserAgent: cfg.UserAgent}

	rcfg := runner.Config{
		Text:     source.NewCorpus(cfg.CorpusURL, cfg.Separator, srcOpts),
		Images:   source.NewImageFolder(cfg.ImagesURL, cfg.GitHubToken, srcOpts),
		Trends:   source.NewTrendScraper(cfg.TrendsURL, cfg.TrendCount, srcOpts),
		MaxDelay: cfg.MaxDelay,
		DryRun:   cfg.DryRun,
		Strict:   cfg.Strict,
	}

	if !cfg.DryRun {
		// credentials are checked before the delay so cron mail shows it immediately;
		// sessions are opened only after the delay
		ready, err := checkCredentials(cfg.Targets)
		if err != nil {
			logutil.Errorf("set up publishing: %v", err)
			if cfg.Strict {
				return err
			}
		}
		if len(ready) > 0 {
			rcfg.Connect = func(ctx context.Context) (runner.Publisher, error) {
				posters, err := buildPosters(ctx, ready)
				if len(posters) == 0 {
					return nil, err
				}
				if err != nil {
					logutil.Errorf("set up publishing: %v", err)
				}
				return publish.New(publish.Config{
					Posters:    posters,
					HTTPClient: httpClient,
					UserAgent:  cfg.UserAgent,
				}), nil
			}
		} else {
			logutil.Warnf("no target is configured, the selected post will only be logged")
		}
	}

	logutil.Infof("starting auto-post run: targets=%v dry_run=%t", cfg.Targets, cfg.DryRun)
	if err := runner.New(rcfg).Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logutil.Infof("run cancelled")
			return nil
		}
		return err
	}
	logutil.Infof("run finished")
	return nil
}

func applyFlags(cmd *cobra.Command, opts *options, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("dry-run") {
		cfg.DryRun = opts.dryRun
	}
	if flags.Changed("max-delay") {
		cfg.MaxDelay = opts.maxDelay
	}
	if opts.noDelay {
		cfg.MaxDelay = 0
	}
	if flags.Changed("target") {
		cfg.Targets = opts.targets
	}
	if flags.Changed("count") {
		cfg.TrendCount = opts.count
	}
	if flags.Changed("strict") {
		cfg.Strict = opts.strict
	}
}

var credentialChecks = map[string]func() error{
	"bluesky":  bluesky.CheckEnv,
	"mastodon": mastodon.CheckEnv,
	"twitter":  twitter.CheckEnv,
}

// checkCredentials returns the targets whose settings are present, along with
// the joined errors of the others.
func checkCredentials(targets []string) ([]string, error) {
	ready := make([]string, 0, len(targets))
	var errs []error
	for _, target := range targets {
		check, ok := credentialChecks[target]
		if !ok {
			errs = append(errs, fmt.Errorf("target %q is not implemented", target))
			continue
		}
		if err := check(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", target, err))
			continue
		}
		ready = append(ready, target)
	}
	return ready, errors.Join(errs...)
}

// buildPosters constructs a poster per target. Targets that fail are reported
// in the joined error and the rest are still returned.
func buildPosters(ctx context.Context, targets []string) ([]trendpost.Poster, error) {
	constructors := map[string]func(context.Context) (trendpost.Poster, error){
		"bluesky": func(ctx context.Context) (trendpost.Poster, error) {
			return bluesky.New(ctx, bluesky.Config{PDSURL: bluesky.DefaultPDSURL})
		},
		"mastodon": func(ctx context.Context) (trendpost.Poster, error) {
			return mastodon.New(ctx)
		},
		"twitter": func(ctx context.Context) (trendpost.Poster, error) {
			return twitter.New(ctx)
		},
	}

	posters := make([]trendpost.Poster, 0, len(targets))
	var errs []error
	for _, target := range targets {
		constructor, ok := constructors[target]
		if !ok {
			errs = append(errs, fmt.Errorf("target %q is not implemented", target))
			continue
		}
		poster, err := constructor(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", target, err))
			continue
		}
		posters = append(posters, poster)
	}

	if len(posters) == 0 && len(errs) == 0 {
		return nil, errors.New("no targets available")
	}
	return posters, errors.Join(errs...)
}
