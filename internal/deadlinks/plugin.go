package deadlinks

import (
	"context"
	"log/slog"

	"github.com/nao1215/deadlinks/internal/config"
	"github.com/nao1215/deadlinks/internal/model"
)

// Content is a content object handed over by the build, such as an
// article or a page.
type Content interface {
	// Source identifies the content, usually by its file path.
	Source() string

	// Markup returns the rendered body. ok is false when the object has
	// no body at all.
	Markup() (markup string, ok bool)

	// SetMarkup replaces the rendered body.
	SetMarkup(markup string)
}

// ValidationOverrider is implemented by content that switches link
// validation on or off for itself, e.g. from front matter.
type ValidationOverrider interface {
	// ValidationOverride returns the per-content switch. ok is false when
	// the content follows the global setting.
	ValidationOverride() (enabled, ok bool)
}

// Plugin connects a Processor to the content initialization hook of a build.
type Plugin struct {
	processor *Processor
	settings  config.Settings
	logger    *slog.Logger
}

// PluginOption configures a Plugin.
type PluginOption func(*Plugin)

// WithPluginLogger sets the logger used for hook-level messages.
func WithPluginLogger(logger *slog.Logger) PluginOption {
	return func(pl *Plugin) {
		if logger != nil {
			pl.logger = logger
		}
	}
}

// NewPlugin creates a Plugin applying settings to every content object.
func NewPlugin(processor *Processor, settings config.Settings, opts ...PluginOption) *Plugin {
	pl := &Plugin{
		processor: processor,
		settings:  settings,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(pl)
	}
	return pl
}

// Settings returns the settings the plugin applies.
func (pl *Plugin) Settings() config.Settings {
	return pl.settings
}

// ContentObjectInit validates the links of c and stores the result back
// into c. Content implementing ValidationOverrider may turn validation on
// or off for itself. Content without a body is left alone and yields a nil report.
// On error the body of c is not modified.
func (pl *Plugin) ContentObjectInit(ctx context.Context, c Content) (*model.DocumentReport, error) {
	markup, ok := c.Markup()
	if !ok {
		return nil, nil
	}

	settings := pl.settings
	if o, isOverrider := c.(ValidationOverrider); isOverrider {
		if enabled, ok := o.ValidationOverride(); ok {
			settings.Validation = enabled
		}
	}

	out, report, err := pl.processor.Process(ctx, c.Source(), markup, settings)
	if err != nil {
		pl.logger.Error("link validation failed", "source", c.Source(), "error", err)
		return report, err
	}

	if out != markup {
		c.SetMarkup(out)
	}
	return report, nil
}
