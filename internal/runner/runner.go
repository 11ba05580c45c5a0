package runner

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/blacktop/trendpost/internal/compose"
	"github.com/blacktop/trendpost/internal/logutil"
	"github.com/blacktop/trendpost/internal/publish"
	"github.com/blacktop/trendpost/internal/trendpost"
)

// ErrNoContent is returned in strict mode when the corpus yields no post text.
var ErrNoContent = errors.New("no post text available")

// TextSource yields the body of the post.
type TextSource interface {
	RandomPost(ctx context.Context) (string, error)
}

// ImageSource yields an optional image URL.
type ImageSource interface {
	RandomImage(ctx context.Context) (string, error)
}

// TrendSource yields trending keywords.
type TrendSource interface {
	Keywords(ctx context.Context) ([]string, error)
}

// Publisher publishes the composed post.
type Publisher interface {
	Publish(ctx context.Context, post publish.Post) ([]trendpost.Result, error)
}

// Config wires a Runner.
type Config struct {
	Text      TextSource
	Images    ImageSource
	Trends    TrendSource
	Publisher Publisher // may be nil in dry-run mode

	// Connect builds the publisher once the delay is over and content is
	// selected, so provider sessions are opened right before posting.
	// It is used when Publisher is nil.
	Connect func(ctx context.Context) (Publisher, error)

	MaxDelay time.Duration
	DryRun   bool
	Strict   bool

	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// Int64N returns a uniform integer in [0, n). Defaults to math/rand/v2.
	Int64N func(n int64) int64
}

// Runner performs one fire-once posting run.
type Runner struct {
	cfg Config
}

// New returns a Runner for cfg.
func New(cfg Config) *Runner {
	if cfg.Sleep == nil {
		cfg.Sleep = sleep
	}
	if cfg.Int64N == nil {
		cfg.Int64N = rand.Int64N
	}
	return &Runner{cfg: cfg}
}

// Run waits a random delay, gathers content and publishes it. Only a missing
// post text stops the run early; it is an error only in strict mode.
// Publishing failures are logged, not returned.
func (r *Runner) Run(ctx context.Context) error {
	delay := r.randomDelay()
	logutil.Infof("waiting %s (%.2f hours) before posting", delay, delay.Hours())
	if err := r.cfg.Sleep(ctx, delay); err != nil {
		return err
	}
	logutil.Infof("wait finished, starting run")

	text := r.fetchText(ctx)
	imageURL := r.fetchImage(ctx)

	if text == "" {
		logutil.Warnf("no post text could be selected, stopping")
		if r.cfg.Strict {
			return ErrNoContent
		}
		return nil
	}

	keywords := r.fetchTrends(ctx)
	text = compose.Compose(text, keywords)
	if !compose.FitsLimit(text, compose.XMaxLength) {
		logutil.Warnf("post is longer than %d characters and may be rejected", compose.XMaxLength)
	}

	logutil.Infof("selected post:\n%s", text)
	if imageURL != "" {
		logutil.Infof("selected image: %s", imageURL)
	} else {
		logutil.Infof("no valid image found for this post")
	}

	if r.cfg.DryRun {
		logutil.Infof("dry-run: not publishing")
		return nil
	}
	pub := r.cfg.Publisher
	if pub == nil && r.cfg.Connect != nil {
		var err error
		if pub, err = r.cfg.Connect(ctx); err != nil {
			logutil.Errorf("set up publishing: %v", err)
			return nil
		}
	}
	if pub == nil {
		logutil.Errorf("no publisher configured")
		return nil
	}

	results, err := pub.Publish(ctx, publish.Post{Text: text, ImageURL: imageURL})
	if err != nil {
		logutil.Errorf("publish failed: %v", err)
	}
	for _, res := range results {
		logutil.Infof("published to %s: id=%s", res.Provider, res.ID)
	}
	return nil
}

func (r *Runner) randomDelay() time.Duration {
	secs := int64(r.cfg.MaxDelay / time.Second)
	if secs <= 0 {
		return 0
	}
	return time.Duration(r.cfg.Int64N(secs+1)) * time.Second
}

func (r *Runner) fetchText(ctx context.Context) string {
	if r.cfg.Text == nil {
		return ""
	}
	text, err := r.cfg.Text.RandomPost(ctx)
	if err != nil {
		logutil.Errorf("fetch post text: %v", err)
		return ""
	}
	return strings.TrimSpace(text)
}

func (r *Runner) fetchImage(ctx context.Context) string {
	if r.cfg.Images == nil {
		return ""
	}
	url, err := r.cfg.Images.RandomImage(ctx)
	if err != nil {
		logutil.Warnf("fetch image: %v", err)
		return ""
	}
	return url
}

func (r *Runner) fetchTrends(ctx context.Context) []string {
	if r.cfg.Trends == nil {
		return nil
	}
	keywords, err := r.cfg.Trends.Keywords(ctx)
	if err != nil {
		logutil.Warnf("fetch trending keywords: %v", err)
		return nil
	}
	return keywords
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
