package build

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/blogbuilder/internal/config"
	"git.home.luguber.info/inful/blogbuilder/internal/content"
	"git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/render"
)

var fixedNow = time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)

func writePost(t *testing.T, root, slug, title, body string) {
	t.Helper()
	dir := filepath.Join(root, slug)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	raw := "---\ntitle: " + title + "\npublishedAt: 2024-01-02\ndescription: about " + title + "\n---\n" + body
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.md"), []byte(raw), 0o644))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Site:    config.SiteConfig{BaseURL: "https://ajr.codes"},
		Content: config.ContentConfig{Root: t.TempDir()},
		Output:  config.OutputConfig{Directory: t.TempDir()},
	}
	require.NoError(t, config.ApplyDefaults(cfg))
	return cfg
}

func newTestBuilder(cfg *config.Config, opts ...Option) *Builder {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewBuilder(cfg, opts...)
}

func TestRun_WritesAllArtifacts(t *testing.T) {
	cfg := testConfig(t)
	writePost(t, cfg.Content.Root, "first-post", "First", "# Hello\n\nSee [home](/).\n")
	writePost(t, cfg.Content.Root, "second", "Second", "Body\n")

	report, err := newTestBuilder(cfg).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, report.Outcome)
	require.Equal(t, 2, report.Posts)
	require.Equal(t, 2, report.RenderedPages)
	require.Equal(t, 4, report.SitemapURLs)

	posts, err := content.ReadIndex(cfg.IndexPath())
	require.NoError(t, err)
	require.Len(t, posts, 2)

	page, err := os.ReadFile(filepath.Join(cfg.Output.Directory, "first-post", PageFile))
	require.NoError(t, err)
	require.Contains(t, string(page), `<h1 id="hello">`)
	require.Contains(t, string(page), `data-link="internal"`)

	xml, err := os.ReadFile(filepath.Join(cfg.Output.Directory, SitemapXMLFile))
	require.NoError(t, err)
	require.Contains(t, string(xml), "<loc>https://ajr.codes/first-post</loc>")
	require.Contains(t, string(xml), "<lastmod>2024-05-06</lastmod>")
	require.NoFileExists(t, filepath.Join(cfg.Output.Directory, SitemapJSONFile))

	data, err := os.ReadFile(filepath.Join(cfg.Output.Directory, ReportFile))
	require.NoError(t, err)
	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))
	require.Equal(t, "success", parsed["outcome"])
	require.InDelta(t, 2, parsed["rendered_pages"], 0)
}

func TestRun_SkipsUnchangedPages(t *testing.T) {
	cfg := testConfig(t)
	writePost(t, cfg.Content.Root, "a", "A", "one\n")
	writePost(t, cfg.Content.Root, "b", "B", "two\n")

	_, err := newTestBuilder(cfg).Run(context.Background())
	require.NoError(t, err)

	writePost(t, cfg.Content.Root, "b", "B", "two, edited\n")
	report, err := newTestBuilder(cfg).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.RenderedPages)
	require.Equal(t, 1, report.SkippedPages)

	page, err := os.ReadFile(filepath.Join(cfg.Output.Directory, "b", PageFile))
	require.NoError(t, err)
	require.Contains(t, string(page), "two, edited")

	report, err = newTestBuilder(cfg, WithForce(true)).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.RenderedPages)
	require.Zero(t, report.SkippedPages)
}

func TestRun_RerendersMissingOutput(t *testing.T) {
	cfg := testConfig(t)
	writePost(t, cfg.Content.Root, "a", "A", "one\n")

	_, err := newTestBuilder(cfg).Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(cfg.Output.Directory, "a", PageFile)))

	report, err := newTestBuilder(cfg).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.RenderedPages)
	require.FileExists(t, filepath.Join(cfg.Output.Directory, "a", PageFile))
}

func TestRun_RemovesPagesOfDeletedPosts(t *testing.T) {
	cfg := testConfig(t)
	writePost(t, cfg.Content.Root, "keep", "Keep", "k\n")
	writePost(t, cfg.Content.Root, "gone", "Gone", "g\n")

	_, err := newTestBuilder(cfg).Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(filepath.Join(cfg.Content.Root, "gone")))

	report, err := newTestBuilder(cfg).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"gone"}, report.RemovedPages)
	require.NoDirExists(t, filepath.Join(cfg.Output.Directory, "gone"))
}

func TestRun_MissingIndexFileAbortsWithoutReport(t *testing.T) {
	cfg := testConfig(t)
	writePost(t, cfg.Content.Root, "ok", "Ok", "fine\n")
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.Content.Root, "broken"), 0o755))

	report, err := newTestBuilder(cfg).Run(context.Background())
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryContent))
	require.Equal(t, OutcomeFailed, report.Outcome)
	require.Equal(t, "fatal", report.StageErrors[string(StageLoadPosts)])
	require.NoFileExists(t, cfg.IndexPath())
	require.NoFileExists(t, filepath.Join(cfg.Output.Directory, ReportFile))
}

func TestRun_HighlighterFailureIsRenderError(t *testing.T) {
	cfg := testConfig(t)
	writePost(t, cfg.Content.Root, "code", "Code", "```go\nx := 1\n```\n")

	failing := render.New(render.WithHighlighter(render.HighlighterFunc(func(string, string) (string, error) {
		return "", os.ErrInvalid
	})))
	_, err := newTestBuilder(cfg, WithRenderer(failing)).Run(context.Background())
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryRender))
}

func TestRun_NoBaseURLSkipsSitemapWithWarning(t *testing.T) {
	cfg := testConfig(t)
	cfg.Site.BaseURL = ""
	writePost(t, cfg.Content.Root, "a", "A", "one\n")

	report, err := newTestBuilder(cfg).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeWarning, report.Outcome)
	require.Len(t, report.Warnings, 1)
	require.NoFileExists(t, filepath.Join(cfg.Output.Directory, SitemapXMLFile))
}

func TestRun_SitemapJSON(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sitemap.JSON = true
	writePost(t, cfg.Content.Root, "a", "A", "one\n")

	_, err := newTestBuilder(cfg).Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(cfg.Output.Directory, SitemapJSONFile))
	require.NoError(t, err)
	var entries []map[string]string
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 3)
	require.Equal(t, "https://ajr.codes", entries[0]["url"])
	require.Equal(t, "https://ajr.codes/a", entries[2]["url"])
	require.Equal(t, "2024-01-02", entries[2]["lastModified"])
}

func TestRun_CleanRemovesStaleFiles(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Clean = true
	stale := filepath.Join(cfg.Output.Directory, "stale.txt")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))
	writePost(t, cfg.Content.Root, "a", "A", "one\n")

	report, err := newTestBuilder(cfg).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.RenderedPages)
	require.NoFileExists(t, stale)
}

func TestRun_CanceledContext(t *testing.T) {
	cfg := testConfig(t)
	writePost(t, cfg.Content.Root, "a", "A", "one\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := newTestBuilder(cfg).Run(ctx)
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryRuntime))
	require.Equal(t, OutcomeCanceled, report.Outcome)
}

func TestGenerateIndex(t *testing.T) {
	cfg := testConfig(t)
	writePost(t, cfg.Content.Root, "a", "A", "one\n")

	posts, err := newTestBuilder(cfg).GenerateIndex(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 1)

	data, err := os.ReadFile(cfg.IndexPath())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "[\n  {"))
	require.NoFileExists(t, filepath.Join(cfg.Output.Directory, "a", PageFile))
}

func TestRenderPost(t *testing.T) {
	out, err := RenderPost(render.New(), content.Post{Slug: "x", Content: "Hi *there*"})
	require.NoError(t, err)
	require.Equal(t, "<p>Hi <em>there</em></p>", out)
}

func TestRun_VerifyLinksReportsBrokenInternalLinks(t *testing.T) {
	cfg := testConfig(t)
	cfg.Render.VerifyLinks = true
	writePost(t, cfg.Content.Root, "a", "A", "See [b](/b) and [gone](/gone).\n")
	writePost(t, cfg.Content.Root, "b", "B", "Back to [home](/).\n")

	report, err := newTestBuilder(cfg).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeWarning, report.Outcome)
	require.Len(t, report.BrokenLinks, 1)
	require.Equal(t, "a", report.BrokenLinks[0].Page)
	require.Equal(t, "/gone", report.BrokenLinks[0].URL)
	require.Equal(t, "warning", report.StageErrors[string(StageVerifyLinks)])
}

func TestRun_FailedRenderDoesNotHideEditsFromNextBuild(t *testing.T) {
	cfg := testConfig(t)
	writePost(t, cfg.Content.Root, "a", "A", "old body\n")

	_, err := newTestBuilder(cfg).Run(context.Background())
	require.NoError(t, err)

	writePost(t, cfg.Content.Root, "a", "A", "new body\n\n```go\nx := 1\n```\n")
	failing := render.New(render.WithHighlighter(render.HighlighterFunc(func(string, string) (string, error) {
		return "", os.ErrInvalid
	})))
	_, err = newTestBuilder(cfg, WithRenderer(failing)).Run(context.Background())
	require.Error(t, err)

	posts, err := content.ReadIndex(cfg.IndexPath())
	require.NoError(t, err)
	require.Equal(t, "old body", posts[0].Content)

	report, err := newTestBuilder(cfg).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, report.Outcome)
	require.Equal(t, 1, report.RenderedPages)
	require.Zero(t, report.SkippedPages)

	page, err := os.ReadFile(filepath.Join(cfg.Output.Directory, "a", PageFile))
	require.NoError(t, err)
	require.Contains(t, string(page), "new body")
}

func TestRun_IndexOnlyRunDoesNotMaskEdits(t *testing.T) {
	cfg := testConfig(t)
	writePost(t, cfg.Content.Root, "a", "A", "old body\n")

	_, err := newTestBuilder(cfg).Run(context.Background())
	require.NoError(t, err)

	writePost(t, cfg.Content.Root, "a", "A", "new body\n")
	_, err = newTestBuilder(cfg).GenerateIndex(context.Background())
	require.NoError(t, err)

	report, err := newTestBuilder(cfg).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.RenderedPages)

	page, err := os.ReadFile(filepath.Join(cfg.Output.Directory, "a", PageFile))
	require.NoError(t, err)
	require.Contains(t, string(page), "new body")
}

func TestRun_RenderSettingsChangeRerendersAllPages(t *testing.T) {
	cfg := testConfig(t)
	writePost(t, cfg.Content.Root, "a", "A", "![cat](/cat.png)\n")
	writePost(t, cfg.Content.Root, "b", "B", "two\n")

	report, err := newTestBuilder(cfg).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, cfg.RenderSnapshot(), report.RenderSnapshot)
	require.Len(t, report.Pages, 2)

	report, err = newTestBuilder(cfg).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.SkippedPages)

	cfg.Render.ImageClass = "photo"
	report, err = newTestBuilder(cfg).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.RenderedPages)
	require.Zero(t, report.SkippedPages)

	page, err := os.ReadFile(filepath.Join(cfg.Output.Directory, "a", PageFile))
	require.NoError(t, err)
	require.Contains(t, string(page), `class="photo"`)
}

func TestRun_WritesIndexAfterPages(t *testing.T) {
	cfg := testConfig(t)
	writePost(t, cfg.Content.Root, "code", "Code", "```go\nx := 1\n```\n")

	failing := render.New(render.WithHighlighter(render.HighlighterFunc(func(string, string) (string, error) {
		return "", os.ErrInvalid
	})))
	report, err := newTestBuilder(cfg, WithRenderer(failing)).Run(context.Background())
	require.Error(t, err)
	require.Equal(t, "fatal", report.StageErrors[string(StageRenderPages)])
	require.NotContains(t, report.StageDurations, string(StageWriteIndex))
	require.NoFileExists(t, cfg.IndexPath())
}
