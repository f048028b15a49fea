// config.go: settings struct and functions to load and save the engine
// configuration.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/switchbacklabs/towers-tt/internal/errors"
)

//go:embed config.yaml
var configFiles embed.FS

// MainSettings contains application-wide settings.
type MainSettings struct {
	Name      string // name reported in logs and the API
	TimeAs24h bool   // true for 24-hour time display
}

// SegmentsSettings identifies the course segments. The main loop is one
// segment; bonus groups are fixed-size sets of sub-segments.
type SegmentsSettings struct {
	MainID     int64   // main loop segment id
	ClimbIDs   []int64 // climb bonus group, exactly two segments
	DescentIDs []int64 // descent bonus group, exactly three segments
}

// ImportSettings controls the historical effort import.
type ImportSettings struct {
	StartDate string // earliest effort date considered, YYYY-MM-DD
}

// StartTime returns the parsed import start date in UTC.
func (i *ImportSettings) StartTime() (time.Time, error) {
	return time.Parse("2006-01-02", i.StartDate)
}

// ResolveSettings controls best-attempt resolution behavior.
type ResolveSettings struct {
	AllowForcedActivity bool // permit resolving an explicitly named activity
}

// RetrySettings configures the upstream retry policy.
type RetrySettings struct {
	MaxAttempts    int // attempts per call before giving up
	BackoffSeconds int // linear backoff multiplier per attempt
}

// StravaSettings contains settings for the fitness data source client.
type StravaSettings struct {
	BaseURL     string        // API base URL
	Timeout     time.Duration // per-request timeout
	CacheTTL    time.Duration // activity detail cache TTL
	RateLimitMS int           // minimum milliseconds between requests
	PerPage     int           // page size for list endpoints
	Retry       RetrySettings // retry policy for transient failures
}

// LeaderboardSettings controls leaderboard caching.
type LeaderboardSettings struct {
	CacheEnabled bool          // true to enable the read-through cache
	CacheTTL     time.Duration // cache entry lifetime
}

// SQLiteSettings contains SQLite database settings.
type SQLiteSettings struct {
	Enabled bool   // true to enable SQLite
	Path    string // path to the database file
}

// MySQLSettings contains MySQL database settings.
type MySQLSettings struct {
	Enabled  bool   // true to enable MySQL
	Username string // MySQL username
	Password string // MySQL password
	Database string // MySQL database name
	Host     string // MySQL host
	Port     string // MySQL port
}

// OutputSettings selects the attempt store backend.
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// WebServerSettings contains settings for the HTTP API.
type WebServerSettings struct {
	Enabled bool   // true to start the API server
	Port    string // port to listen on
}

// Settings is the top-level configuration for the engine.
type Settings struct {
	Debug bool // true to enable debug output

	Main        MainSettings
	Segments    SegmentsSettings
	Import      ImportSettings
	Resolve     ResolveSettings
	Strava      StravaSettings
	Leaderboard LeaderboardSettings
	Output      OutputSettings
	WebServer   WebServerSettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a
// Settings struct and validates it.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the
// configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	viper.SetEnvPrefix("TOWERS")
	viper.AutomaticEnv()

	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config to the first
// default config path and re-reads it.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded
// config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, initializing it if
// necessary.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			_, err := Load()
			if err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// GetDefaultConfigPaths returns the list of directories searched for a
// config file: the executable's directory, then the user config dir.
func GetDefaultConfigPaths() ([]string, error) {
	var configPaths []string

	exePath, err := os.Executable()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "get-executable-path").
			Build()
	}
	configPaths = append(configPaths, filepath.Dir(exePath))

	if userConfigDir, err := os.UserConfigDir(); err == nil {
		configPaths = append(configPaths, filepath.Join(userConfigDir, "towers-tt"))
	}

	configPaths = append(configPaths, ".")

	return configPaths, nil
}
