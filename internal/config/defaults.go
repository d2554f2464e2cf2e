package config

const (
	defaultConfigPath      = "~/.config/villager/config.toml"
	defaultLibraryDir      = "~/.local/share/villager/packages"
	defaultLogDir          = "~/.local/share/villager/logs"
	defaultCatalogPath     = "~/.local/share/villager/catalog.db"
	defaultConvertJobs     = 2
	defaultPrefetchWorkers = 4
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultLogRetention    = 30
	maxWorkers             = 64
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir:  defaultLibraryDir,
			LogDir:      defaultLogDir,
			CatalogPath: defaultCatalogPath,
		},
		Convert: Convert{
			Jobs: defaultConvertJobs,
		},
		Archive: Archive{
			PrefetchWorkers: defaultPrefetchWorkers,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetention,
		},
	}
}
