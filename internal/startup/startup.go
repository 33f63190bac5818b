package startup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"rawgallery/internal/logging"
	"rawgallery/internal/media"
	"rawgallery/internal/mediatypes"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

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

// ConfigError reports a setting the application cannot start with.
type ConfigError struct {
	Setting string
	Err     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %v", e.Setting, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Config holds all application configuration
type Config struct {
	PhotoDir        string
	CacheDir        string
	DatabaseDir     string
	Port            string
	MetricsPort     string
	IndexInterval   time.Duration
	LogStaticFiles  bool
	LogHealthChecks bool
	MetricsEnabled  bool

	ThumbnailStrategy string
	// DevelopCommand is the resolved developer binary, empty when the
	// strategy does not use one.
	DevelopCommand   string
	DevelopArgs      []string
	ThumbnailSize    int
	ThumbnailQuality int
	IngestWorkers    int
	RawExtensions    mediatypes.RawExtensions

	// Derived paths
	DatabasePath string
	ThumbnailDir string
}

// lookPath resolves the developer command; replaced in tests.
var lookPath = exec.LookPath

// LoadConfig prints the startup banner, then loads and validates the
// configuration. Errors are *ConfigError.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	if err := LoadEnvFile(); err != nil {
		return nil, err
	}
	return FromEnv()
}

// LoadEnvFile seeds the environment from ENV_FILE (default .env) when that
// file exists. Variables already set are not overridden.
func LoadEnvFile() error {
	path := getEnv("ENV_FILE", ".env")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return &ConfigError{Setting: "ENV_FILE", Err: err}
	}
	logging.Info("  Loaded environment from %s", path)
	return nil
}

// FromEnv builds the configuration from environment variables, creating
// the database and thumbnail directories as needed.
func FromEnv() (*Config, error) {
	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		MetricsPort:       getEnv("METRICS_PORT", "9090"),
		LogStaticFiles:    getEnvBool("LOG_STATIC_FILES", false),
		LogHealthChecks:   getEnvBool("LOG_HEALTH_CHECKS", true),
		MetricsEnabled:    getEnvBool("METRICS_ENABLED", true),
		ThumbnailStrategy: strings.ToLower(getEnv("THUMBNAIL_STRATEGY", media.StrategyAuto)),
		DevelopArgs:       strings.Fields(os.Getenv("DEVELOP_ARGS")),
	}
	photoDir := getEnv("PHOTO_DIR", "/photos")
	cacheDir := getEnv("CACHE_DIR", "/cache")
	databaseDir := getEnv("DATABASE_DIR", "/database")
	developCommand := getEnv("DEVELOP_COMMAND", media.DefaultDevelopCommand)
	rawExtensions := getEnv("RAW_EXTENSIONS", strings.Join(mediatypes.DefaultRawExtensions, ","))

	logging.Info("  PHOTO_DIR:           %s", photoDir)
	logging.Info("  CACHE_DIR:           %s", cacheDir)
	logging.Info("  DATABASE_DIR:        %s", databaseDir)
	logging.Info("  PORT:                %s", cfg.Port)
	logging.Info("  METRICS_PORT:        %s", cfg.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", cfg.MetricsEnabled)
	logging.Info("  THUMBNAIL_STRATEGY:  %s", cfg.ThumbnailStrategy)
	logging.Info("  DEVELOP_COMMAND:     %s", developCommand)
	logging.Info("  RAW_EXTENSIONS:      %s", rawExtensions)
	logging.Info("  LOG_STATIC_FILES:    %v", cfg.LogStaticFiles)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", cfg.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	var err error
	if cfg.IndexInterval, err = getEnvDuration("INDEX_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.ThumbnailSize, err = getEnvInt("THUMBNAIL_SIZE", media.DefaultSize, 16, 10000); err != nil {
		return nil, err
	}
	if cfg.ThumbnailQuality, err = getEnvInt("THUMBNAIL_QUALITY", media.DefaultQuality, 1, 100); err != nil {
		return nil, err
	}
	if cfg.IngestWorkers, err = getEnvWorkers("INGEST_WORKERS", 1); err != nil {
		return nil, err
	}

	cfg.RawExtensions = mediatypes.ParseRawExtensions(rawExtensions)
	if len(cfg.RawExtensions) == 0 {
		return nil, &ConfigError{Setting: "RAW_EXTENSIONS", Err: errors.New("no extensions listed")}
	}

	if err := cfg.resolveDeveloper(developCommand); err != nil {
		return nil, err
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if cfg.PhotoDir, err = filepath.Abs(photoDir); err != nil {
		return nil, &ConfigError{Setting: "PHOTO_DIR", Err: err}
	}
	if cfg.CacheDir, err = filepath.Abs(cacheDir); err != nil {
		return nil, &ConfigError{Setting: "CACHE_DIR", Err: err}
	}
	if cfg.DatabaseDir, err = filepath.Abs(databaseDir); err != nil {
		return nil, &ConfigError{Setting: "DATABASE_DIR", Err: err}
	}
	cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, "gallery.db")
	cfg.ThumbnailDir = filepath.Join(cfg.CacheDir, "thumbnails")

	logging.Info("  Photo directory (absolute): %s", cfg.PhotoDir)
	logging.Info("  Cache directory (absolute): %s", cfg.CacheDir)
	logging.Info("  Database directory (absolute): %s", cfg.DatabaseDir)

	if err := requireDirectory(cfg.PhotoDir); err != nil {
		return nil, &ConfigError{Setting: "PHOTO_DIR", Err: err}
	}
	if err := ensureWritableDir(cfg.DatabaseDir, "database"); err != nil {
		return nil, &ConfigError{Setting: "DATABASE_DIR", Err: err}
	}
	if err := ensureWritableDir(cfg.ThumbnailDir, "thumbnail"); err != nil {
		return nil, &ConfigError{Setting: "CACHE_DIR", Err: err}
	}

	return cfg, nil
}

// resolveDeveloper checks that the developer command can run. Under auto a
// missing command only disables development.
func (c *Config) resolveDeveloper(command string) error {
	switch c.ThumbnailStrategy {
	case media.StrategyPreview:
		return nil
	case media.StrategyDevelop, media.StrategyAuto:
	default:
		return &ConfigError{
			Setting: "THUMBNAIL_STRATEGY",
			Err: fmt.Errorf("unknown strategy %q (want %s, %s or %s)",
				c.ThumbnailStrategy, media.StrategyDevelop, media.StrategyPreview, media.StrategyAuto),
		}
	}

	path, err := lookPath(command)
	if err != nil {
		if c.ThumbnailStrategy == media.StrategyDevelop {
			return &ConfigError{Setting: "DEVELOP_COMMAND", Err: err}
		}
		logging.Warn("  %s not found, thumbnails will use embedded previews only", command)
		return nil
	}
	logging.Info("  [OK] Developer found: %s", path)
	c.DevelopCommand = path
	return nil
}

// NewDeriver builds the thumbnail deriver for the configured strategy.
func (c *Config) NewDeriver() (media.Deriver, error) {
	preview := media.NewPreviewExtractor()
	preview.Size = c.ThumbnailSize
	preview.Quality = c.ThumbnailQuality

	var developer *media.Developer
	if c.DevelopCommand != "" {
		developer = media.NewDeveloper(c.DevelopCommand, c.DevelopArgs)
		developer.Size = c.ThumbnailSize
	}

	deriver, err := media.NewStrategy(c.ThumbnailStrategy, developer, preview)
	if err != nil {
		return nil, &ConfigError{Setting: "THUMBNAIL_STRATEGY", Err: err}
	}
	return deriver, nil
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogIndexerInit logs indexer initialization
func LogIndexerInit(cfg *Config, deriver media.Deriver) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("INGESTION INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Thumbnail strategy: %s", deriver.Strategy())
	logging.Info("  Thumbnail size:     %dpx", cfg.ThumbnailSize)
	if cfg.IngestWorkers == 0 {
		logging.Info("  Workers:            auto")
	} else {
		logging.Info("  Workers:            %d", cfg.IngestWorkers)
	}
	if cfg.IndexInterval > 0 {
		logging.Info("  Index interval:     %v", cfg.IndexInterval)
	} else {
		logging.Info("  Index interval:     disabled")
	}
	if media.IsVipsAvailable() {
		logging.Info("  [OK] libvips available for preview resizing")
	} else {
		logging.Info("  libvips unavailable, previews resized in Go")
	}
}

// LogIndexerStarted logs successful indexer start
func LogIndexerStarted() {
	logging.Info("  [OK] Ingestion started")
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			pathTemplate, err = route.GetPathRegexp()
			if err != nil {
				return err
			}
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified (e.g., static file server)
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

// LogHTTPRoutes logs all registered HTTP routes
func LogHTTPRoutes(router *mux.Router, logStaticFiles, logHealthChecks bool) {
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

	if logStaticFiles {
		logging.Info("    Static file logging: ON")
	} else {
		logging.Info("    Static file logging: OFF (set LOG_STATIC_FILES=true to enable)")
	}
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
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
	logging.Info("  Gallery:         http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("  Metrics:         http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("  Metrics:         DISABLED")
	}
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
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

func printBanner() {
	fmt.Println(`
------------------------------------------------------------
   rawgallery
   raw photos, sidecar ratings and tags
------------------------------------------------------------`)
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

// requireDirectory fails unless path is an existing directory.
func requireDirectory(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	logging.Debug("    [OK] %s exists", path)
	return nil
}

func ensureWritableDir(path, name string) error {
	logging.Debug("  Setting up %s directory: %s", name, path)

	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := testWriteAccess(path); err != nil {
		return fmt.Errorf("directory is not writable: %w", err)
	}
	logging.Info("  [OK] %s directory is writable", name)
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
		// Don't return error since write access was confirmed
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue, minValue, maxValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, &ConfigError{Setting: key, Err: err}
	}
	if parsed < minValue || parsed > maxValue {
		return 0, &ConfigError{Setting: key, Err: fmt.Errorf("%d is outside %d..%d", parsed, minValue, maxValue)}
	}
	return parsed, nil
}

// getEnvWorkers accepts a positive count, or 0 / "auto".
func getEnvWorkers(key string, defaultValue int) (int, error) {
	if strings.EqualFold(os.Getenv(key), "auto") {
		return 0, nil
	}
	return getEnvInt(key, defaultValue, 0, 256)
}

// getEnvDuration parses a Go duration; 0 is allowed and means disabled.
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, &ConfigError{Setting: key, Err: err}
	}
	if parsed < 0 {
		return 0, &ConfigError{Setting: key, Err: errors.New("must not be negative")}
	}
	return parsed, nil
}
