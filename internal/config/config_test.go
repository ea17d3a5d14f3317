package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
)

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("content:\n  root: ./posts\n"))
	require.NoError(t, err)

	require.Equal(t, "./posts", cfg.Content.Root)
	require.Equal(t, "index.md", cfg.Content.IndexFile)
	require.Equal(t, "./public", cfg.Output.Directory)
	require.Equal(t, filepath.Join("public", "posts.json"), cfg.IndexPath())
	require.Equal(t, "nord", cfg.Render.CodeStyle)
	require.Equal(t, 800, cfg.Render.ImageWidth)
	require.Equal(t, 400, cfg.Render.ImageHeight)
	require.Equal(t, "rounded-lg", cfg.Render.ImageClass)
	require.Equal(t, []string{"", "/"}, cfg.Sitemap.StaticRoutes)
	require.Equal(t, 1316, cfg.Preview.Port)
}

func TestParse_ExpandsEnvironment(t *testing.T) {
	t.Setenv("BLOG_BASE", "https://example.com")
	cfg, err := Parse([]byte("site:\n  base_url: ${BLOG_BASE}\ncontent:\n  root: ./posts\n"))
	require.NoError(t, err)
	require.Equal(t, "https://example.com", cfg.Site.BaseURL)
}

func TestParse_ExplicitEmptyStaticRoutesKept(t *testing.T) {
	cfg, err := Parse([]byte("content:\n  root: ./posts\nsitemap:\n  static_routes: []\n"))
	require.NoError(t, err)
	require.Empty(t, cfg.Sitemap.StaticRoutes)
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing content root", "site:\n  title: x\n"},
		{"relative base url", "site:\n  base_url: example.com\ncontent:\n  root: ./posts\n"},
		{"negative image width", "content:\n  root: ./posts\nrender:\n  image_width: -1\n"},
		{"port out of range", "content:\n  root: ./posts\npreview:\n  port: 70000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			require.True(t, errors.HasCategory(err, errors.CategoryConfig))
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("content: [unterminated"))
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestInit_RoundTripsThroughLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "blogbuilder.yaml")
	require.NoError(t, Init(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "./content", cfg.Content.Root)
	require.Equal(t, "https://ajr.codes", cfg.Site.BaseURL)
	require.True(t, cfg.Preview.Metrics)
}

func TestInit_RefusesOverwriteWithoutForce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blogbuilder.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keep"), 0o600))

	err := Init(path, false)
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryValidation))

	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	require.Equal(t, "keep", string(data))

	require.NoError(t, Init(path, true))
}
