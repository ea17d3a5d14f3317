package content

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/frontmatter"
)

func writePost(t *testing.T, root, slug, raw string) {
	t.Helper()
	dir := filepath.Join(root, slug)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultIndexFile), []byte(raw), 0o644))
}

func validPost(title, date string) string {
	return "---\ntitle: " + title + "\npublishedAt: " + date + "\ndescription: about " + title + "\n---\n\n# " + title + "\n"
}

func TestIndex_TwoPostDirectories(t *testing.T) {
	root := t.TempDir()
	writePost(t, root, "a", validPost("A", "2024-01-01"))
	writePost(t, root, "b", validPost("B", "2024-02-01"))

	posts, err := NewIndexer(root).Index(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 2)

	slugs := []string{posts[0].Slug, posts[1].Slug}
	require.ElementsMatch(t, []string{"a", "b"}, slugs)
	for _, p := range posts {
		require.NotEmpty(t, p.Metadata.Title)
		require.Equal(t, "# "+p.Metadata.Title, p.Content)
	}
}

func TestIndex_SkipsFilesAtRoot(t *testing.T) {
	root := t.TempDir()
	writePost(t, root, "only", validPost("Only", "2024-01-01"))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("not a post"), 0o644))

	posts, err := NewIndexer(root).Index(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.Equal(t, "only", posts[0].Slug)
}

func TestIndex_SlugIsDirectoryNameVerbatim(t *testing.T) {
	root := t.TempDir()
	writePost(t, root, "Hello World_2024", validPost("X", "2024-01-01"))

	posts, err := NewIndexer(root).Index(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Hello World_2024", posts[0].Slug)
}

func TestIndex_MissingIndexFileFailsWholeBuild(t *testing.T) {
	root := t.TempDir()
	writePost(t, root, "good", validPost("Good", "2024-01-01"))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "broken"), 0o755))

	posts, err := NewIndexer(root).Index(context.Background())
	require.Error(t, err)
	require.Nil(t, posts)
	require.True(t, errors.HasCategory(err, errors.CategoryContent))

	ce, ok := errors.AsClassified(err)
	require.True(t, ok)
	slug, _ := ce.Context().GetString("slug")
	require.Equal(t, "broken", slug)
}

func TestIndex_MissingFrontmatterIsFatal(t *testing.T) {
	root := t.TempDir()
	writePost(t, root, "nofm", "# Just markdown\n")

	_, err := NewIndexer(root).Index(context.Background())
	require.ErrorIs(t, err, frontmatter.ErrMissingFrontmatter)
	require.True(t, errors.HasCategory(err, errors.CategoryContent))
}

func TestIndex_CustomIndexFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "p")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "post.mdx"), []byte(validPost("P", "2024-01-01")), 0o644))

	posts, err := NewIndexer(root, WithIndexFile("post.mdx")).Index(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 1)
}

func TestIndex_EmptyRootIsConfigError(t *testing.T) {
	_, err := NewIndexer("").Index(context.Background())
	require.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestIndex_CanceledContext(t *testing.T) {
	root := t.TempDir()
	writePost(t, root, "a", validPost("A", "2024-01-01"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewIndexer(root).Index(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWriteIndex_CreatesDirectoriesAndJSONShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "src", "data", "posts.json")
	posts := []Post{{
		Metadata: frontmatter.Metadata{Title: "A & B", PublishedAt: "2024-01-01", Description: "d"},
		Slug:     "a",
		Content:  "<b>hi</b>",
	}}

	require.NoError(t, WriteIndex(path, posts))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"title": "A & B"`)
	require.Contains(t, string(data), `"content": "<b>hi</b>"`)
	require.NotContains(t, string(data), `"image"`)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 1)
	require.Contains(t, raw[0], "metadata")
	require.Contains(t, raw[0], "slug")
	require.Contains(t, raw[0], "content")

	back, err := ReadIndex(path)
	require.NoError(t, err)
	require.Equal(t, posts, back)

	_, err = os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))
}

func TestWriteIndex_EmptyIsArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.json")
	require.NoError(t, WriteIndex(path, nil))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "[]\n", string(data))
}

func TestChanged(t *testing.T) {
	a := Post{Slug: "a", Metadata: frontmatter.Metadata{Title: "A"}, Content: "one"}
	b := Post{Slug: "b", Metadata: frontmatter.Metadata{Title: "B"}, Content: "two"}
	b2 := b
	b2.Content = "two, edited"
	c := Post{Slug: "c", Content: "new"}

	require.Equal(t, Fingerprint(a), Fingerprint(a))
	require.NotEqual(t, Fingerprint(b), Fingerprint(b2))
	prev := Fingerprints([]Post{a, b})
	require.Equal(t, map[string]string{"a": Fingerprint(a), "b": Fingerprint(b)}, prev)
	require.Equal(t, []string{"b", "c"}, Changed(prev, []Post{a, b2, c}))
	require.Empty(t, Changed(prev, []Post{a, b}))
	require.Equal(t, []string{"a"}, Changed(nil, []Post{a}))
}
