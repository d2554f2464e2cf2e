package archive

import (
	"log/slog"

	"villager/internal/logging"
	"villager/internal/story"
)

// ElementHook observes every element right after it is appended to its
// period, while the rest of the document is still unread.
type ElementHook func(st *story.Story, e story.Element)

// Option configures Parse and OpenPackage.
type Option func(*parser)

// WithLogger routes parse warnings to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *parser) {
		if logger != nil {
			p.logger = logging.NewComponentLogger(logger, "archive")
		}
	}
}

// WithElementHook registers hook; see ElementHook.
func WithElementHook(hook ElementHook) Option {
	return func(p *parser) {
		p.hook = hook
	}
}

// WithPackageDir resolves linked period stubs against dir.
func WithPackageDir(dir string) Option {
	return func(p *parser) {
		p.packageDir = dir
	}
}
