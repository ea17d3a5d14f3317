package build

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"git.home.luguber.info/inful/blogbuilder/internal/config"
	"git.home.luguber.info/inful/blogbuilder/internal/content"
	"git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/linkverify"
	"git.home.luguber.info/inful/blogbuilder/internal/logfields"
	"git.home.luguber.info/inful/blogbuilder/internal/metrics"
	"git.home.luguber.info/inful/blogbuilder/internal/render"
	"git.home.luguber.info/inful/blogbuilder/internal/sitemap"
)

const (
	// PageFile is the rendered body fragment written under <slug>/.
	PageFile = "index.html"

	SitemapXMLFile  = "sitemap.xml"
	SitemapJSONFile = "sitemap.json"
)

// Builder runs full builds against one configuration.
type Builder struct {
	cfg      *config.Config
	logger   *slog.Logger
	recorder metrics.Recorder
	renderer *render.Renderer
	force    bool
	now      func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

func WithRecorder(r metrics.Recorder) Option {
	return func(b *Builder) {
		if r != nil {
			b.recorder = r
		}
	}
}

// WithRenderer replaces the renderer derived from the render config section.
func WithRenderer(r *render.Renderer) Option {
	return func(b *Builder) { b.renderer = r }
}

// WithForce re-renders every page regardless of fingerprints.
func WithForce(force bool) Option {
	return func(b *Builder) { b.force = force }
}

// WithClock overrides the clock used for the report and sitemap dates.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBuilder returns a Builder for cfg. cfg must already have defaults applied.
func NewBuilder(cfg *config.Config, opts ...Option) *Builder {
	b := &Builder{
		cfg:      cfg,
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.renderer == nil {
		b.renderer = NewRenderer(cfg, b.logger, b.recorder)
	}
	return b
}

// NewRenderer builds a renderer from the render config section.
func NewRenderer(cfg *config.Config, logger *slog.Logger, recorder metrics.Recorder) *render.Renderer {
	return render.New(
		render.WithHighlighter(render.NewChromaHighlighter(cfg.Render.CodeStyle)),
		render.WithImageDefaults(render.ImageDefaults{
			Width:  cfg.Render.ImageWidth,
			Height: cfg.Render.ImageHeight,
			Class:  cfg.Render.ImageClass,
		}),
		render.WithInlineCodeStyle(cfg.Render.InlineCodeStyle),
		render.WithLogger(logger),
		render.WithRecorder(recorder),
	)
}

// Indexer returns a content indexer for the configured content root.
func (b *Builder) Indexer() *content.Indexer {
	return content.NewIndexer(b.cfg.Content.Root,
		content.WithIndexFile(b.cfg.Content.IndexFile),
		content.WithLogger(b.logger),
		content.WithRecorder(b.recorder))
}

// GenerateIndex indexes the content root and writes the posts index. It is
// the index-only path; Run does the same as part of a full build.
func (b *Builder) GenerateIndex(ctx context.Context) ([]content.Post, error) {
	posts, err := b.Indexer().Index(ctx)
	if err != nil {
		return nil, err
	}
	if err := content.WriteIndex(b.cfg.IndexPath(), posts); err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "write posts index").
			Fatal().
			WithContext("path", b.cfg.IndexPath()).
			Build()
	}
	return posts, nil
}

// state carries data between stages of one run.
type state struct {
	cfg      *config.Config
	logger   *slog.Logger
	recorder metrics.Recorder
	renderer *render.Renderer
	indexer  *content.Indexer
	force    bool
	now      time.Time

	// baseline is the slug to fingerprint map of the last successful build.
	baseline map[string]string
	// rerenderAll is set when the render settings differ from that build.
	rerenderAll bool
	posts    []content.Post
	report   *Report
}

// Run executes a complete build. The report is returned even when the build
// fails; it is persisted only when no stage failed fatally, so a failed build
// leaves the previous report in place.
func (b *Builder) Run(ctx context.Context) (*Report, error) {
	start := b.now()
	st := &state{
		cfg:      b.cfg,
		logger:   b.logger,
		recorder: b.recorder,
		renderer: b.renderer,
		indexer:  b.Indexer(),
		force:    b.force,
		now:      start,
		report:   newReport(start),
	}
	st.report.RenderSnapshot = b.cfg.RenderSnapshot()

	err := runStages(ctx, st, []stageDef{
		{StagePrepareOutput, stagePrepareOutput},
		{StageLoadPosts, stageLoadPosts},
		{StageRenderPages, stageRenderPages},
		{StageWriteIndex, stageWriteIndex},
		{StageVerifyLinks, stageVerifyLinks},
		{StageSitemap, stageSitemap},
	})

	end := b.now()
	st.report.finish(end)
	b.recorder.ObserveBuildDuration(end.Sub(start))
	b.recorder.IncBuildOutcome(string(st.report.Outcome))

	if err != nil {
		b.logger.Error("Build failed",
			logfields.Error(err),
			slog.String("outcome", string(st.report.Outcome)))
		return st.report, unwrapStageError(err)
	}

	if perr := st.report.Persist(b.cfg.Output.Directory); perr != nil {
		b.logger.Warn("Failed to persist build report", logfields.Error(perr))
	}
	b.logger.Info("Build completed",
		slog.String("summary", st.report.Summary()),
		logfields.DurationMS(float64(end.Sub(start).Microseconds())/1000))
	return st.report, nil
}

// unwrapStageError hands callers the classified cause so CLI exit codes
// follow the error category.
func unwrapStageError(err error) error {
	var se *StageError
	if stderrors.As(err, &se) {
		if errors.IsClassified(se.Err) {
			return se.Err
		}
		if se.Kind == StageErrorCanceled {
			return errors.WrapError(se.Err, errors.CategoryRuntime, "build canceled").
				WithContext("stage", string(se.Stage)).
				Build()
		}
		return errors.WrapError(se.Err, errors.CategoryInternal, "build stage failed").
			WithContext("stage", string(se.Stage)).
			Build()
	}
	return err
}

// stagePrepareOutput loads the change baseline left by the previous build
// and optionally wipes the output directory.
func stagePrepareOutput(_ context.Context, st *state) error {
	dir := st.cfg.Output.Directory
	if st.cfg.Output.Clean {
		if err := os.RemoveAll(dir); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "clean output directory").
				Fatal().
				WithContext("path", dir).
				Build()
		}
		st.logger.Info("Cleaned output directory", logfields.Path(dir))
	} else {
		loadBaseline(st)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "create output directory").
			Fatal().
			WithContext("path", dir).
			Build()
	}
	return nil
}

// loadBaseline reads the page fingerprints and render settings recorded by
// the last successful build. Failed and canceled builds never persist a
// report, so the baseline only lists pages that match their fingerprint.
func loadBaseline(st *state) {
	last, err := readReport(st.cfg.Output.Directory)
	switch {
	case err == nil:
	case stderrors.Is(err, fs.ErrNotExist):
		return
	default:
		st.logger.Warn("Ignoring unreadable previous report", logfields.Error(err))
		return
	}
	st.baseline = last.Pages
	if len(st.baseline) > 0 && last.RenderSnapshot != st.report.RenderSnapshot {
		st.rerenderAll = true
		st.logger.Info("Render settings changed; re-rendering all pages")
	}
}

func stageLoadPosts(ctx context.Context, st *state) error {
	posts, err := st.indexer.Index(ctx)
	if err != nil {
		return err
	}
	st.posts = posts
	st.report.Posts = len(posts)
	return nil
}

// stageWriteIndex records the posts index once every page has rendered.
func stageWriteIndex(_ context.Context, st *state) error {
	if err := content.WriteIndex(st.cfg.IndexPath(), st.posts); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "write posts index").
			Fatal().
			WithContext("path", st.cfg.IndexPath()).
			Build()
	}
	return nil
}

// stageRenderPages renders new and changed posts. Pages whose fingerprint
// matches the baseline and whose output still exists are skipped, unless the
// render settings changed. Pages of posts missing from the content root are
// removed.
func stageRenderPages(ctx context.Context, st *state) error {
	dirty := make(map[string]bool)
	for _, slug := range content.Changed(st.baseline, st.posts) {
		dirty[slug] = true
	}

	for _, p := range st.posts {
		if err := ctx.Err(); err != nil {
			return &StageError{Kind: StageErrorCanceled, Stage: StageRenderPages, Err: err}
		}
		out := filepath.Join(st.cfg.Output.Directory, p.Slug, PageFile)
		fp := content.Fingerprint(p)
		if !st.force && !st.rerenderAll && !dirty[p.Slug] && fileExists(out) {
			st.report.SkippedPages++
			st.report.Pages[p.Slug] = fp
			st.recorder.IncPagesRendered(metrics.ResultSkipped)
			st.logger.Debug("Page unchanged", logfields.Slug(p.Slug))
			continue
		}
		if err := renderPage(st.renderer, p, out); err != nil {
			st.recorder.IncPagesRendered(metrics.ResultFatal)
			return err
		}
		st.report.RenderedPages++
		st.report.Pages[p.Slug] = fp
		st.recorder.IncPagesRendered(metrics.ResultSuccess)
		st.logger.Debug("Rendered page", logfields.Slug(p.Slug), logfields.Path(out))
	}

	gone := make([]string, 0)
	for slug := range st.baseline {
		if _, ok := st.report.Pages[slug]; !ok {
			gone = append(gone, slug)
		}
	}
	sort.Strings(gone)
	for _, slug := range gone {
		removePage(st.cfg.Output.Directory, slug)
		st.report.RemovedPages = append(st.report.RemovedPages, slug)
		st.logger.Info("Removed page for deleted post", logfields.Slug(slug))
	}
	return nil
}

// RenderPost renders one post body to an HTML fragment.
func RenderPost(r *render.Renderer, p content.Post) (string, error) {
	doc, err := r.Render(p.Content)
	if err != nil {
		if ce, ok := errors.AsClassified(err); ok {
			return "", ce.WithContext("slug", p.Slug)
		}
		return "", err
	}
	out, err := doc.HTML()
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryRender, "serialize html").
			WithContext("slug", p.Slug).
			Build()
	}
	return out, nil
}

func renderPage(r *render.Renderer, p content.Post, path string) error {
	out, err := RenderPost(r, p)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, []byte(out)); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "write page").
			Fatal().
			WithContext("slug", p.Slug).
			WithContext("path", path).
			Build()
	}
	return nil
}

// removePage deletes <slug>/index.html and the slug directory if it is then empty.
func removePage(outputDir, slug string) {
	dir := filepath.Join(outputDir, slug)
	_ = os.Remove(filepath.Join(dir, PageFile))
	_ = os.Remove(dir)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// stageVerifyLinks reports internal links that point at no post or static
// route. Broken links are a warning, never a failure.
func stageVerifyLinks(ctx context.Context, st *state) error {
	if !st.cfg.Render.VerifyLinks {
		return nil
	}
	slugs := make([]string, 0, len(st.posts))
	for _, p := range st.posts {
		slugs = append(slugs, p.Slug)
	}
	checker := linkverify.NewChecker(slugs, st.cfg.Sitemap.StaticRoutes)

	for _, p := range st.posts {
		if err := ctx.Err(); err != nil {
			return &StageError{Kind: StageErrorCanceled, Stage: StageVerifyLinks, Err: err}
		}
		broken, err := checker.CheckPage(p.Slug, filepath.Join(st.cfg.Output.Directory, p.Slug, PageFile))
		if err != nil {
			return newWarnStageError(StageVerifyLinks, err)
		}
		for _, b := range broken {
			st.logger.Warn("Broken internal link", logfields.Slug(b.Page), logfields.URL(b.URL))
		}
		st.report.BrokenLinks = append(st.report.BrokenLinks, broken...)
	}
	if n := len(st.report.BrokenLinks); n > 0 {
		return newWarnStageError(StageVerifyLinks, fmt.Errorf("%d broken internal links", n))
	}
	return nil
}

// stageSitemap writes sitemap.xml (and sitemap.json when enabled). Without a
// base URL the sitemap is skipped with a warning.
func stageSitemap(_ context.Context, st *state) error {
	if st.cfg.Site.BaseURL == "" {
		return newWarnStageError(StageSitemap, fmt.Errorf("site.base_url not configured; sitemap skipped"))
	}
	gen := sitemap.NewGenerator(st.cfg.Site.BaseURL)
	gen.StaticRoutes = st.cfg.Sitemap.StaticRoutes
	gen.Now = func() time.Time { return st.now }
	entries := gen.Generate(st.posts)
	st.report.SitemapURLs = len(entries)

	var buf bytes.Buffer
	if err := sitemap.WriteXML(&buf, entries); err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "encode sitemap xml").Build()
	}
	xmlPath := filepath.Join(st.cfg.Output.Directory, SitemapXMLFile)
	if err := writeFileAtomic(xmlPath, buf.Bytes()); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "write sitemap").
			Fatal().
			WithContext("path", xmlPath).
			Build()
	}

	if st.cfg.Sitemap.JSON {
		buf.Reset()
		if err := sitemap.WriteJSON(&buf, entries); err != nil {
			return errors.WrapError(err, errors.CategoryInternal, "encode sitemap json").Build()
		}
		jsonPath := filepath.Join(st.cfg.Output.Directory, SitemapJSONFile)
		if err := writeFileAtomic(jsonPath, buf.Bytes()); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "write sitemap json").
				Fatal().
				WithContext("path", jsonPath).
				Build()
		}
	}
	st.logger.Info("Wrote sitemap", logfields.Count(len(entries)), logfields.URL(st.cfg.Site.BaseURL))
	return nil
}
