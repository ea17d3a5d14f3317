// Package content maps a content directory onto Post records and persists
// them as the posts index artifact.
package content

import (
	"context"
	stderrors "errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/frontmatter"
	"git.home.luguber.info/inful/blogbuilder/internal/logfields"
	"git.home.luguber.info/inful/blogbuilder/internal/metrics"
)

// DefaultIndexFile is the file every post directory must contain.
const DefaultIndexFile = "index.md"

const stageIndex = "index"

// Indexer walks a content root where each immediate subdirectory is one post.
type Indexer struct {
	root      string
	indexFile string
	logger    *slog.Logger
	recorder  metrics.Recorder
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithIndexFile overrides the per-post file name.
func WithIndexFile(name string) Option {
	return func(i *Indexer) {
		if name != "" {
			i.indexFile = name
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(i *Indexer) {
		if l != nil {
			i.logger = l
		}
	}
}

func WithRecorder(r metrics.Recorder) Option {
	return func(i *Indexer) {
		if r != nil {
			i.recorder = r
		}
	}
}

// NewIndexer creates an indexer for root. The root is required; there is no
// working-directory fallback.
func NewIndexer(root string, opts ...Option) *Indexer {
	i := &Indexer{
		root:      root,
		indexFile: DefaultIndexFile,
		logger:    slog.Default(),
		recorder:  metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Root returns the content root the indexer reads.
func (i *Indexer) Root() string { return i.root }

// Index reads every post under the root in directory enumeration order.
//
// A post directory without the index file, or an index file without
// frontmatter, fails the whole run; no partial index is returned.
func (i *Indexer) Index(ctx context.Context) ([]Post, error) {
	start := time.Now()
	posts, err := i.index(ctx)
	i.recorder.ObserveStageDuration(stageIndex, time.Since(start))
	if err != nil {
		i.recorder.IncStageResult(stageIndex, metrics.ResultFatal)
		return nil, err
	}
	i.recorder.IncStageResult(stageIndex, metrics.ResultSuccess)
	i.recorder.SetPostsIndexed(len(posts))
	i.logger.Info("Indexed posts",
		logfields.Path(i.root),
		logfields.Count(len(posts)),
		logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
	return posts, nil
}

func (i *Indexer) index(ctx context.Context) ([]Post, error) {
	if i.root == "" {
		return nil, errors.ConfigError("content root is not configured").Build()
	}
	entries, err := os.ReadDir(i.root)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "read content root").
			Fatal().
			WithContext("path", i.root).
			Build()
	}

	posts := make([]Post, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, errors.WrapError(err, errors.CategoryRuntime, "indexing canceled").Build()
		}
		if !entry.IsDir() {
			continue
		}
		post, err := i.readPost(entry.Name())
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func (i *Indexer) readPost(slug string) (Post, error) {
	path := filepath.Join(i.root, slug, i.indexFile)
	raw, err := os.ReadFile(path)
	if err != nil {
		msg := "read post file"
		if stderrors.Is(err, fs.ErrNotExist) {
			msg = "post directory has no " + i.indexFile
		}
		return Post{}, errors.WrapError(err, errors.CategoryContent, msg).
			Fatal().
			WithContext("slug", slug).
			WithContext("path", path).
			Build()
	}

	res, err := frontmatter.Parse(string(raw))
	if err != nil {
		return Post{}, errors.WrapError(err, errors.CategoryContent, "parse frontmatter").
			Fatal().
			WithContext("slug", slug).
			WithContext("path", path).
			Build()
	}

	for _, key := range res.Ignored {
		i.logger.Debug("Ignoring unrecognized frontmatter key", logfields.Slug(slug), logfields.Key(key))
	}
	if missing := res.Metadata.Missing(); len(missing) > 0 {
		i.logger.Warn("Post is missing required frontmatter keys", logfields.Slug(slug), slog.Any("keys", missing))
	}
	i.logger.Debug("Indexed post", logfields.Slug(slug), logfields.Path(path))

	return Post{Metadata: res.Metadata, Slug: slug, Content: res.Content}, nil
}
