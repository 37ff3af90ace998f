package config

import (
	"errors"
	"net/url"
	"strings"
)

// Settings is the per-document configuration handed to the processor.
type Settings struct {
	// Validation enables link checking. When false documents pass through
	// untouched and no network traffic happens.
	Validation bool

	// SiteURL is the site's own base URL. Links starting with it are never
	// checked. Empty means no link is treated as internal.
	SiteURL string

	// Options are the resolved validation options.
	Options Options
}

// DefaultSettings returns settings with validation enabled and default options.
func DefaultSettings() Settings {
	return Settings{
		Validation: true,
		Options:    DefaultOptions(),
	}
}

// Validate checks the settings. Options are only validated when validation
// is enabled.
func (s Settings) Validate() error {
	if s.SiteURL != "" {
		u, err := url.Parse(s.SiteURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return ErrInvalidSiteURL
		}
	}
	if !s.Validation {
		return nil
	}
	return s.Options.Validate()
}

// File is the on-disk YAML form of Settings.
//
// Example:
//
//	validation: true
//	site_url: https://example.com
//	options:
//	  archive: true
//	  classes: [dead]
//	  labels: true
//	  timeout_duration_ms: 1500
type File struct {
	// Validation is a pointer so that an omitted key can be told apart from
	// an explicit false.
	Validation *bool          `yaml:"validation,omitempty"`
	SiteURL    string         `yaml:"site_url,omitempty"`
	Options    map[string]any `yaml:"options,omitempty"`
}

// Settings resolves the file into Settings. An omitted validation key
// yields enabledByDefault.
//
// Mistyped options keep their defaults; the returned error then lists each
// of them while the returned Settings remain usable.
func (f *File) Settings(enabledByDefault bool) (Settings, error) {
	s := Settings{
		Validation: enabledByDefault,
		SiteURL:    strings.TrimSpace(f.SiteURL),
	}
	if f.Validation != nil {
		s.Validation = *f.Validation
	}

	opts, err := MergeOptions(f.Options)
	s.Options = opts
	return s, err
}

// IsOptionTypeError reports whether err consists only of option type errors,
// which are warnings rather than failures.
func IsOptionTypeError(err error) bool {
	if err == nil {
		return false
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			if !IsOptionTypeError(e) {
				return false
			}
		}
		return true
	}
	var typeErr *OptionTypeError
	return errors.As(err, &typeErr)
}
