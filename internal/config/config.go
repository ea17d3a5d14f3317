package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
)

// Config is the blogbuilder configuration file.
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Content ContentConfig `yaml:"content"`
	Output  OutputConfig  `yaml:"output"`
	Render  RenderConfig  `yaml:"render"`
	Sitemap SitemapConfig `yaml:"sitemap"`
	Preview PreviewConfig `yaml:"preview"`
}

// SiteConfig describes the site as a whole.
type SiteConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	BaseURL     string `yaml:"base_url"`
	Author      string `yaml:"author,omitempty"`
}

// ContentConfig locates posts: Root/<slug>/IndexFile.
type ContentConfig struct {
	Root      string `yaml:"root"`
	IndexFile string `yaml:"index_file,omitempty"`
}

// OutputConfig controls where build artifacts land.
type OutputConfig struct {
	Directory string `yaml:"directory"`
	// Index is the posts index path. Relative paths resolve against Directory.
	Index string `yaml:"index,omitempty"`
	Clean bool   `yaml:"clean"`
}

// RenderConfig tunes the Markdown renderer.
type RenderConfig struct {
	CodeStyle       string `yaml:"code_style,omitempty"`
	ImageWidth      int    `yaml:"image_width,omitempty"`
	ImageHeight     int    `yaml:"image_height,omitempty"`
	ImageClass      string `yaml:"image_class,omitempty"`
	InlineCodeStyle string `yaml:"inline_code_style,omitempty"`
	// VerifyLinks checks internal links in rendered pages after each build.
	VerifyLinks bool `yaml:"verify_links,omitempty"`
}

// SitemapConfig controls sitemap output.
type SitemapConfig struct {
	StaticRoutes []string `yaml:"static_routes,omitempty"`
	JSON         bool     `yaml:"json,omitempty"`
}

// PreviewConfig configures the local preview server.
type PreviewConfig struct {
	Port    int  `yaml:"port,omitempty"`
	Metrics bool `yaml:"metrics,omitempty"`
}

// IndexPath resolves the posts index location.
func (c *Config) IndexPath() string {
	if filepath.IsAbs(c.Output.Index) {
		return c.Output.Index
	}
	return filepath.Join(c.Output.Directory, c.Output.Index)
}

// Load reads configPath, expands ${VAR} references, applies defaults and validates.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError("configuration file not found").
				WithContext("path", configPath).
				Build()
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "read configuration file").
			Fatal().
			WithContext("path", configPath).
			Build()
	}
	return Parse(data)
}

// Parse decodes YAML configuration bytes, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "unmarshal configuration").Fatal().Build()
	}
	if err := ApplyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			Build()
	}

	example := Config{
		Site: SiteConfig{
			Title:       "My Blog",
			Description: "Random thoughts and things I learn.",
			BaseURL:     "https://ajr.codes",
		},
		Content: ContentConfig{Root: "./content", IndexFile: "index.md"},
		Output:  OutputConfig{Directory: "./public", Index: "posts.json"},
		Render:  RenderConfig{CodeStyle: "nord", ImageWidth: 800, ImageHeight: 400, ImageClass: "rounded-lg", VerifyLinks: true},
		Sitemap: SitemapConfig{StaticRoutes: []string{"", "/"}},
		Preview: PreviewConfig{Port: 1316, Metrics: true},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "create config directory").
				WithContext("path", dir).
				Build()
		}
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}
