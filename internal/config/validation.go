package config

import (
	"net/url"

	"git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
)

// Validate checks fields that have no usable default.
func Validate(cfg *Config) error {
	if cfg.Content.Root == "" {
		return errors.ConfigError("content.root is required").WithContext("field", "content.root").Build()
	}
	if cfg.Site.BaseURL != "" {
		u, err := url.Parse(cfg.Site.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.ConfigError("site.base_url must be an absolute URL").
				WithContext("field", "site.base_url").
				WithContext("value", cfg.Site.BaseURL).
				Build()
		}
	}
	if cfg.Render.ImageWidth < 0 || cfg.Render.ImageHeight < 0 {
		return errors.ConfigError("render image dimensions must not be negative").
			WithContext("field", "render").
			Build()
	}
	if cfg.Preview.Port < 0 || cfg.Preview.Port > 65535 {
		return errors.ConfigError("preview.port out of range").WithContext("field", "preview.port").Build()
	}
	return nil
}
