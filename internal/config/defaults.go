package config

const (
	defaultDatabasePath       = "~/.local/share/terrapipe/scenes.db"
	defaultBaseDir            = "~/.local/share/terrapipe"
	defaultLogDir             = "~/.local/share/terrapipe/logs"
	defaultLockFile           = "~/.local/share/terrapipe/run.lock"
	defaultLogFormat          = "pretty"
	defaultLogLevel           = "info"
	defaultWorkers            = 4
	defaultDownloadTimeout    = 3600
	defaultDownloadRetries    = 2
	defaultToolTimeout        = 7200
	defaultCloudCoverMax      = 70
	defaultSensorStartDate    = "2015-01-01"
	defaultCatalogPageSize    = 500
	defaultARDCommand         = "arcsi"
	defaultDatacubeCommand    = "datacube"
	defaultQuicklookCommand   = "gdal_translate"
	defaultTilecacheCommand   = "gdal2tiles"
	defaultQuicklookTimeout   = 900
	defaultTilecacheTimeout   = 3600
	defaultDatacubeTimeout    = 3600
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Database: Database{
			Path: defaultDatabasePath,
		},
		Sensor: Sensor{
			StartDate:     defaultSensorStartDate,
			CloudCoverMax: defaultCloudCoverMax,
			MaxScenes:     defaultCatalogPageSize,
		},
		Paths: Paths{
			BaseDir:  defaultBaseDir,
			LogDir:   defaultLogDir,
			LockFile: defaultLockFile,
		},
		Download: Download{
			TimeoutSeconds: defaultDownloadTimeout,
			Retries:        defaultDownloadRetries,
		},
		Tools: Tools{
			ARD:       Tool{Command: defaultARDCommand, TimeoutSeconds: defaultToolTimeout},
			Datacube:  Tool{Command: defaultDatacubeCommand, TimeoutSeconds: defaultDatacubeTimeout},
			Quicklook: Tool{Command: defaultQuicklookCommand, TimeoutSeconds: defaultQuicklookTimeout},
			Tilecache: Tool{Command: defaultTilecacheCommand, TimeoutSeconds: defaultTilecacheTimeout},
		},
		Workflow: Workflow{
			Workers: defaultWorkers,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
