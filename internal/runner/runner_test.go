package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blacktop/trendpost/internal/publish"
	"github.com/blacktop/trendpost/internal/source"
	"github.com/blacktop/trendpost/internal/trendpost"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubText struct {
	text string
	err  error
}

func (s stubText) RandomPost(context.Context) (string, error) { return s.text, s.err }

type stubImages struct {
	url string
	err error
}

func (s stubImages) RandomImage(context.Context) (string, error) { return s.url, s.err }

type stubTrends struct {
	keywords []string
	err      error
	called   *bool
}

func (s stubTrends) Keywords(context.Context) ([]string, error) {
	if s.called != nil {
		*s.called = true
	}
	return s.keywords, s.err
}

type stubPublisher struct {
	posts []publish.Post
	err   error
}

func (p *stubPublisher) Publish(_ context.Context, post publish.Post) ([]trendpost.Result, error) {
	p.posts = append(p.posts, post)
	if p.err != nil {
		return nil, p.err
	}
	return []trendpost.Result{{Provider: "twitter", ID: "1"}}, nil
}

func noSleep(slept *time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		if slept != nil {
			*slept = d
		}
		return nil
	}
}

func TestRun_ComposesAndPublishes(t *testing.T) {
	pub := &stubPublisher{}
	var slept time.Duration
	r := New(Config{
		Text:      stubText{text: "Selamat pagi"},
		Images:    stubImages{url: "https://raw.example.com/a.png"},
		Trends:    stubTrends{keywords: []string{"Topic A", "Foo Bar"}},
		Publisher: pub,
		MaxDelay:  4 * time.Hour,
		Sleep:     noSleep(&slept),
		Int64N:    func(n int64) int64 { return n - 1 },
	})

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, 4*time.Hour, slept, "delay upper bound is inclusive")
	require.Len(t, pub.posts, 1)
	assert.Equal(t, "Selamat pagi\n\n#TopicA #FooBar", pub.posts[0].Text)
	assert.Equal(t, "https://raw.example.com/a.png", pub.posts[0].ImageURL)
}

func TestRun_OptionalPartsDegrade(t *testing.T) {
	pub := &stubPublisher{}
	r := New(Config{
		Text:      stubText{text: "hello"},
		Images:    stubImages{err: source.ErrNoImages},
		Trends:    stubTrends{err: source.ErrNoTable},
		Publisher: pub,
		Sleep:     noSleep(nil),
	})

	require.NoError(t, r.Run(context.Background()))
	require.Len(t, pub.posts, 1)
	assert.Equal(t, publish.Post{Text: "hello"}, pub.posts[0])
}

func TestRun_NoText(t *testing.T) {
	t.Run("exits cleanly by default", func(t *testing.T) {
		pub := &stubPublisher{}
		trendsCalled := false
		r := New(Config{
			Text:      stubText{err: source.ErrNoPosts},
			Images:    stubImages{url: "https://raw.example.com/a.png"},
			Trends:    stubTrends{called: &trendsCalled},
			Publisher: pub,
			Sleep:     noSleep(nil),
		})
		assert.NoError(t, r.Run(context.Background()))
		assert.Empty(t, pub.posts)
		assert.False(t, trendsCalled)
	})

	t.Run("strict mode reports it", func(t *testing.T) {
		pub := &stubPublisher{}
		r := New(Config{
			Text:      stubText{text: "   "},
			Publisher: pub,
			Strict:    true,
			Sleep:     noSleep(nil),
		})
		assert.ErrorIs(t, r.Run(context.Background()), ErrNoContent)
		assert.Empty(t, pub.posts)
	})
}

func TestRun_PublishFailureIsSwallowed(t *testing.T) {
	pub := &stubPublisher{err: errors.New("401 Unauthorized")}
	r := New(Config{
		Text:      stubText{text: "hello"},
		Publisher: pub,
		Strict:    true,
		Sleep:     noSleep(nil),
	})
	assert.NoError(t, r.Run(context.Background()))
	assert.Len(t, pub.posts, 1)
}

func TestRun_DryRun(t *testing.T) {
	pub := &stubPublisher{}
	r := New(Config{
		Text:      stubText{text: "hello"},
		Publisher: pub,
		DryRun:    true,
		Sleep:     noSleep(nil),
	})
	assert.NoError(t, r.Run(context.Background()))
	assert.Empty(t, pub.posts)
}

func TestRun_ConnectsAfterDelay(t *testing.T) {
	var events []string
	pub := &stubPublisher{}
	r := New(Config{
		Text:     stubText{text: "hello"},
		MaxDelay: 3 * time.Hour,
		Sleep: func(context.Context, time.Duration) error {
			events = append(events, "sleep")
			return nil
		},
		Connect: func(context.Context) (Publisher, error) {
			events = append(events, "connect")
			return pub, nil
		},
	})

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, []string{"sleep", "connect"}, events)
	assert.Len(t, pub.posts, 1)
}

func TestRun_ConnectSkipped(t *testing.T) {
	connect := func(called *bool) func(context.Context) (Publisher, error) {
		return func(context.Context) (Publisher, error) {
			*called = true
			return &stubPublisher{}, nil
		}
	}

	t.Run("dry run", func(t *testing.T) {
		called := false
		r := New(Config{Text: stubText{text: "hello"}, DryRun: true, Sleep: noSleep(nil), Connect: connect(&called)})
		require.NoError(t, r.Run(context.Background()))
		assert.False(t, called)
	})

	t.Run("no text", func(t *testing.T) {
		called := false
		r := New(Config{Text: stubText{err: source.ErrNoPosts}, Sleep: noSleep(nil), Connect: connect(&called)})
		require.NoError(t, r.Run(context.Background()))
		assert.False(t, called)
	})
}

func TestRun_ConnectFailureIsSwallowed(t *testing.T) {
	r := New(Config{
		Text:   stubText{text: "hello"},
		Strict: true,
		Sleep:  noSleep(nil),
		Connect: func(context.Context) (Publisher, error) {
			return nil, errors.New("login: ExpiredToken")
		},
	})
	assert.NoError(t, r.Run(context.Background()))
}

func TestRun_CancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pub := &stubPublisher{}
	r := New(Config{
		Text:      stubText{text: "hello"},
		Publisher: pub,
		MaxDelay:  time.Hour,
	})
	assert.ErrorIs(t, r.Run(ctx), context.Canceled)
	assert.Empty(t, pub.posts)
}

func TestRandomDelay(t *testing.T) {
	r := New(Config{MaxDelay: 0})
	assert.Zero(t, r.randomDelay())

	var bound int64
	r = New(Config{MaxDelay: 90 * time.Second, Int64N: func(n int64) int64 { bound = n; return 0 }})
	assert.Zero(t, r.randomDelay())
	assert.Equal(t, int64(91), bound)

	r = New(Config{MaxDelay: time.Minute})
	for range 50 {
		d := r.randomDelay()
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Minute)
	}
}
