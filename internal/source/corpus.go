package source

import (
	"context"
	"strings"

	"github.com/blacktop/trendpost/internal/logutil"
)

// Corpus picks random blocks from a remote text file.
type Corpus struct {
	url       string
	separator string
	opts      Options
}

// NewCorpus returns a Corpus reading url and splitting on separator.
func NewCorpus(url, separator string, opts Options) *Corpus {
	return &Corpus{url: url, separator: separator, opts: opts.withDefaults()}
}

// RandomPost fetches the corpus and returns one trimmed block chosen uniformly at random.
func (c *Corpus) RandomPost(ctx context.Context) (string, error) {
	logutil.Infof("fetching posts from %s", c.url)
	body, err := get(ctx, c.opts, c.url, nil)
	if err != nil {
		return "", err
	}

	posts := SplitPosts(string(body), c.separator)
	if len(posts) == 0 {
		return "", ErrNoPosts
	}
	logutil.Debugf("corpus has %d posts", len(posts))

	return posts[c.opts.Intn(len(posts))], nil
}

// SplitPosts splits content on separator, trims each block and drops empty ones.
func SplitPosts(content, separator string) []string {
	var posts []string
	for _, block := range strings.Split(content, separator) {
		if block = strings.TrimSpace(block); block != "" {
			posts = append(posts, block)
		}
	}
	return posts
}
