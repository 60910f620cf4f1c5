package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"media-index/internal/geocode"
	"media-index/internal/indexer"
	"media-index/internal/logging"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// DatabaseFile is the name of the SQLite file inside DATABASE_DIR.
const DatabaseFile = "media_index.db"

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	MediaDir       string   `env:"MEDIA_DIR" envDefault:"/media"`
	WatchedFolders []string `env:"WATCHED_FOLDERS" envSeparator:","`
	MaxDepth       int      `env:"MAX_DEPTH" envDefault:"-1"`
	DatabaseDir    string   `env:"DATABASE_DIR" envDefault:"/database"`

	Port            string `env:"PORT" envDefault:"8080"`
	MetricsPort     string `env:"METRICS_PORT" envDefault:"9090"`
	MetricsEnabled  bool   `env:"METRICS_ENABLED" envDefault:"true"`
	LogHealthChecks bool   `env:"LOG_HEALTH_CHECKS" envDefault:"true"`

	ScanOnStartup bool          `env:"SCAN_ON_STARTUP" envDefault:"true"`
	ScanInterval  time.Duration `env:"SCAN_INTERVAL" envDefault:"0s"`

	GeocodeEnabled    bool          `env:"GEOCODE_ENABLED" envDefault:"true"`
	GeocodeURL        string        `env:"GEOCODE_URL" envDefault:"https://nominatim.openstreetmap.org"`
	GeocodeUserAgent  string        `env:"GEOCODE_USER_AGENT" envDefault:"media-index/1.0"`
	GeocodeInterval   time.Duration `env:"GEOCODE_INTERVAL" envDefault:"1s"`
	GeocodeTimeout    time.Duration `env:"GEOCODE_TIMEOUT" envDefault:"10s"`
	GeocodeMaxRetries int           `env:"GEOCODE_MAX_RETRIES" envDefault:"3"`

	WriteRatingsToFile bool `env:"WRITE_RATINGS_TO_FILE" envDefault:"true"`

	// Derived
	DatabasePath string
}

// ParseConfig reads Config from the environment after loading any .env file
// in the working directory or its parent. It performs no filesystem checks.
func ParseConfig() (*Config, error) {
	loadDotEnv(".env", "../.env")

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	cfg.WatchedFolders = cleanFolders(cfg.WatchedFolders)
	if cfg.MaxDepth < 0 {
		cfg.MaxDepth = -1
	}
	if cfg.ScanInterval < 0 {
		cfg.ScanInterval = 0
	}
	cfg.GeocodeURL = strings.TrimRight(strings.TrimSpace(cfg.GeocodeURL), "/")
	if cfg.GeocodeEnabled && cfg.GeocodeURL == "" {
		return nil, fmt.Errorf("GEOCODE_URL is required when GEOCODE_ENABLED is true")
	}
	if strings.TrimSpace(cfg.GeocodeUserAgent) == "" {
		return nil, fmt.Errorf("GEOCODE_USER_AGENT must not be empty")
	}
	if cfg.GeocodeMaxRetries < 1 {
		cfg.GeocodeMaxRetries = 1
	}

	cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, DatabaseFile)
	return cfg, nil
}

// LoadConfig parses the configuration, logs it, and prepares the directories
// it names. The database directory must be writable; a missing media
// directory is only a warning.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	cfg, err := ParseConfig()
	if err != nil {
		return nil, err
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  MEDIA_DIR:             %s", cfg.MediaDir)
	logging.Info("  WATCHED_FOLDERS:       %s", folderList(cfg.WatchedFolders))
	logging.Info("  MAX_DEPTH:             %s", depthString(cfg.MaxDepth))
	logging.Info("  DATABASE_DIR:          %s", cfg.DatabaseDir)
	logging.Info("  PORT:                  %s", cfg.Port)
	logging.Info("  METRICS_PORT:          %s", cfg.MetricsPort)
	logging.Info("  METRICS_ENABLED:       %v", cfg.MetricsEnabled)
	logging.Info("  SCAN_ON_STARTUP:       %v", cfg.ScanOnStartup)
	logging.Info("  SCAN_INTERVAL:         %s", intervalString(cfg.ScanInterval))
	logging.Info("  GEOCODE_ENABLED:       %v", cfg.GeocodeEnabled)
	logging.Info("  GEOCODE_URL:           %s", cfg.GeocodeURL)
	logging.Info("  GEOCODE_INTERVAL:      %v", cfg.GeocodeInterval)
	logging.Info("  WRITE_RATINGS_TO_FILE: %v", cfg.WriteRatingsToFile)
	logging.Info("  LOG_LEVEL:             %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if err := cfg.ResolvePaths(); err != nil {
		return nil, err
	}
	logging.Info("  Media directory (absolute): %s", cfg.MediaDir)
	logging.Info("  Database file (absolute):   %s", cfg.DatabasePath)

	if err := ensureDirectory(cfg.MediaDir, "media"); err != nil {
		logging.Warn("  Media directory issue: %v", err)
	}

	if err := ensureDirectory(cfg.DatabaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}

	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(cfg.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Database:      ENABLED (required)")
	logging.Info("    Geocoding:     %s", enabledString(cfg.GeocodeEnabled))
	logging.Info("    Rating writes: %s", enabledString(cfg.WriteRatingsToFile))
	logging.Info("    Metrics:       %s", enabledString(cfg.MetricsEnabled))

	return cfg, nil
}

// ResolvePaths makes the media and database paths absolute.
func (c *Config) ResolvePaths() error {
	mediaDir, err := filepath.Abs(c.MediaDir)
	if err != nil {
		return fmt.Errorf("failed to resolve media directory path: %w", err)
	}
	databaseDir, err := filepath.Abs(c.DatabaseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve database directory path: %w", err)
	}

	c.MediaDir = mediaDir
	c.DatabaseDir = databaseDir
	c.DatabasePath = filepath.Join(databaseDir, DatabaseFile)
	return nil
}

// ScanJob returns the scan covering the configured media tree.
func (c *Config) ScanJob() indexer.Job {
	job := indexer.Job{
		BasePath: c.MediaDir,
		Folders:  c.WatchedFolders,
	}
	if c.MaxDepth >= 0 {
		depth := c.MaxDepth
		job.MaxDepth = &depth
	}
	return job
}

// GeocodeConfig returns the reverse-geocoding client settings.
func (c *Config) GeocodeConfig() geocode.Config {
	return geocode.Config{
		BaseURL:    c.GeocodeURL,
		UserAgent:  c.GeocodeUserAgent,
		Interval:   c.GeocodeInterval,
		Timeout:    c.GeocodeTimeout,
		MaxRetries: c.GeocodeMaxRetries,
	}
}

func loadDotEnv(paths ...string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		// Variables already set in the environment win over the file
		if err := godotenv.Load(path); err != nil {
			logging.Warn("failed to load %s: %v", path, err)
		}
	}
}

func cleanFolders(folders []string) []string {
	var out []string
	for _, f := range folders {
		f = strings.Trim(strings.TrimSpace(f), "/")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func folderList(folders []string) string {
	if len(folders) == 0 {
		return "(all)"
	}
	return strings.Join(folders, ", ")
}

func depthString(depth int) string {
	if depth < 0 {
		return "unlimited"
	}
	return fmt.Sprint(depth)
}

func intervalString(d time.Duration) string {
	if d <= 0 {
		return "disabled"
	}
	return d.String()
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogGeocoderInit logs reverse-geocoding setup
func LogGeocoderInit(cfg *Config) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("GEOCODER INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	if !cfg.GeocodeEnabled {
		logging.Info("  Geocoding disabled, place names will not be resolved")
		return
	}
	logging.Info("  Endpoint:     %s", cfg.GeocodeURL)
	logging.Info("  Rate limit:   1 request per %v", cfg.GeocodeInterval)
	logging.Info("  Timeout:      %v (max %d attempts)", cfg.GeocodeTimeout, cfg.GeocodeMaxRetries)
}

// LogIndexerInit logs indexer initialization
func LogIndexerInit(cfg *Config, workers int) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("INDEXER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Workers:        %d", workers)
	logging.Info("  Scan on start:  %v", cfg.ScanOnStartup)
	logging.Info("  Scan interval:  %s", intervalString(cfg.ScanInterval))
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
		}
	}

	if logHealthChecks {
		logging.Info("  Health check logging: ON")
	} else {
		logging.Info("  Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:           http://0.0.0.0:%s/api", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(reason string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (%s)", reason)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...any) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
    __  ___         ___          ____          __
   /  |/  /__  ____/ (_)___ _   /  _/___  ____/ /__  _  __
  / /|_/ / _ \/ __  / / __ '/   / // __ \/ __  / _ \| |/_/
 / /  / /  __/ /_/ / / /_/ /  _/ // / / / /_/ /  __/>  <
/_/  /_/\___/\__,_/_/\__,_/  /___/_/ /_/\__,_/\___/_/|_|

------------------------------------------------------------`
	fmt.Fprintln(os.Stderr, banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}
