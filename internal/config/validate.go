package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		return errors.New("paths.library_dir must be set")
	}
	if strings.TrimSpace(c.Paths.CatalogPath) == "" {
		return errors.New("paths.catalog_path must be set")
	}
	if err := ensureRange(map[string]int{
		"convert.jobs":             c.Convert.Jobs,
		"archive.prefetch_workers": c.Archive.PrefetchWorkers,
	}); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}

func ensureRange(values map[string]int) error {
	for key, value := range values {
		if value <= 0 || value > maxWorkers {
			return fmt.Errorf("%s must be between 1 and %d", key, maxWorkers)
		}
	}
	return nil
}
