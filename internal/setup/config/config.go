package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
)

// RepositoryVersion is the repository version tag for config file references.
const RepositoryVersion = "v0.3.0"

// Current version of the config file.
const (
	CurrentCommonVersion = 1
	CurrentWorkerVersion = 1
)

// Config represents the entire application configuration.
type Config struct {
	Common CommonConfig
	Worker WorkerConfig
}

// CommonConfig contains configuration shared between the worker and REST services.
type CommonConfig struct {
	// Version of the common config.
	Version    int        `koanf:"version"`
	Debug      Debug      `koanf:"debug"`
	PostgreSQL PostgreSQL `koanf:"postgresql"`
	Redis      Redis      `koanf:"redis"`
	API        API        `koanf:"api"`
	REST       REST       `koanf:"rest"`
	Metrics    Metrics    `koanf:"metrics"`
	Loki       Loki       `koanf:"loki"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log sessions to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
	// Maximum lines per log file.
	MaxLogLines int `koanf:"max_log_lines"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database hostname.
	Host string `koanf:"host"`
	// Database port.
	Port int `koanf:"port"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
}

// API contains the relationship API client configuration.
type API struct {
	// Base URL of the API, without trailing slash.
	BaseURL string `koanf:"base_url"`
	// Bearer token sent with every request.
	BearerToken string `koanf:"bearer_token"`
	// Screen name of the operated account.
	ScreenName string `koanf:"screen_name"`
	// Client-side request rate shared by all workers in a process (0 disables).
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	// Burst size for the client-side limiter.
	Burst int `koanf:"burst"`
	// Request timeout in milliseconds.
	RequestTimeout int `koanf:"request_timeout"`
	// Transport retries for idempotent requests.
	MaxRetries int `koanf:"max_retries"`
	// Minimum transport retry delay in milliseconds.
	RetryWaitMin int `koanf:"retry_wait_min"`
	// Maximum transport retry delay in milliseconds.
	RetryWaitMax int `koanf:"retry_wait_max"`
}

// REST contains the control surface configuration.
type REST struct {
	// Listen host.
	Host string `koanf:"host"`
	// Listen port.
	Port int `koanf:"port"`
	// Candidates returned when no limit is given.
	DefaultCandidates int `koanf:"default_candidates"`
	// Upper bound for the limit query parameter.
	MaxCandidates int `koanf:"max_candidates"`
}

// Metrics contains Prometheus exporter configuration.
type Metrics struct {
	// Serve /metrics from worker processes.
	Enabled bool `koanf:"enabled"`
	// Listen host for worker processes.
	Host string `koanf:"host"`
	// Listen port for worker processes.
	Port int `koanf:"port"`
}

// Loki contains Grafana Loki log shipping configuration.
type Loki struct {
	// Ship logs to Loki.
	Enabled bool `koanf:"enabled"`
	// Loki server URL (without /loki/api/v1/push suffix).
	URL string `koanf:"url"`
	// Minimum level shipped to Loki.
	Level string `koanf:"level"`
	// Maximum number of log lines per push.
	BatchMaxSize int `koanf:"batch_max_size"`
	// Maximum time to wait before pushing a partial batch in milliseconds.
	BatchMaxWaitMS int `koanf:"batch_max_wait_ms"`
	// Labels added to every stream.
	Labels map[string]string `koanf:"labels"`
	// Basic authentication username (optional).
	Username string `koanf:"username"`
	// Basic authentication password (optional).
	Password string `koanf:"password"`
}

// WorkerConfig contains worker specific configuration.
type WorkerConfig struct {
	// Version of the worker config.
	Version int `koanf:"version"`
	// Loop timings in seconds.
	Intervals Intervals `koanf:"intervals"`
	// Batch sizes for worker operations.
	BatchSizes BatchSizes `koanf:"batch_sizes"`
	// Delays between destructive actions in seconds.
	Pacing Pacing `koanf:"pacing"`
	// Threshold limits for worker operations.
	ThresholdLimits ThresholdLimits `koanf:"threshold_limits"`
	// Seed for candidate sampling in the relation worker.
	RelationSeed int64 `koanf:"relation_seed"`
}

// Intervals configures how long each worker sleeps after a pass.
type Intervals struct {
	IDSync              int `koanf:"id_sync"`
	IDSyncBackoff       int `koanf:"id_sync_backoff"`
	RelationSync        int `koanf:"relation_sync"`
	RelationSyncBackoff int `koanf:"relation_sync_backoff"`
	Listener            int `koanf:"listener"`
	ListenerBackoff     int `koanf:"listener_backoff"`
	Remover             int `koanf:"remover"`
	RemoverBackoff      int `koanf:"remover_backoff"`
	ProfileSync         int `koanf:"profile_sync"`
	ProfileSyncBackoff  int `koanf:"profile_sync_backoff"`
	FollowBack          int `koanf:"follow_back"`
	FollowBackBackoff   int `koanf:"follow_back_backoff"`
}

// BatchSizes configures how many items to process in each batch.
type BatchSizes struct {
	// Number of candidates classified per relation lookup.
	RelationLookup int `koanf:"relation_lookup"`
	// Number of profiles fetched per request.
	ProfileFetch int `koanf:"profile_fetch"`
	// Number of ids without a profile read per profile sync pass.
	ProfileScan int `koanf:"profile_scan"`
	// Number of inactive friends removed per remover pass.
	RemoveUsers int `koanf:"remove_users"`
}

// Pacing configures the fixed delays between destructive actions.
type Pacing struct {
	// Delay after each unfollow in the remover.
	Unfollow int `koanf:"unfollow"`
	// Delay after each follow in the follow-back worker.
	FollowBack int `koanf:"follow_back"`
}

// ThresholdLimits configures various thresholds for worker operations.
type ThresholdLimits struct {
	// Only ids confirmed within this many seconds take part in diffs.
	WatermarkAge int `koanf:"watermark_age"`
	// Days without a post after which a non-following friend is inactive.
	InactiveDays int `koanf:"inactive_days"`
}

// Seconds converts a config value in seconds to a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Default returns a config populated with the values used when a key is absent.
func Default() *Config {
	return &Config{
		Common: CommonConfig{
			Debug: Debug{
				LogLevel:      "info",
				MaxLogsToKeep: 10,
				MaxLogLines:   100000,
			},
			PostgreSQL: PostgreSQL{
				Host:         "localhost",
				Port:         5432,
				User:         "postgres",
				DBName:       "reciprocal",
				MaxOpenConns: 20,
				MaxIdleConns: 5,
				MaxLifetime:  30,
				MaxIdleTime:  5,
			},
			Redis: Redis{
				Host: "localhost",
				Port: 6379,
			},
			API: API{
				BaseURL:           "https://api.twitter.com",
				RequestsPerSecond: 1,
				Burst:             1,
				RequestTimeout:    10000,
				MaxRetries:        3,
				RetryWaitMin:      1000,
				RetryWaitMax:      10000,
			},
			REST: REST{
				Host:              "localhost",
				Port:              8080,
				DefaultCandidates: 20,
				MaxCandidates:     100,
			},
			Metrics: Metrics{
				Host: "localhost",
				Port: 9090,
			},
			Loki: Loki{
				Level:          "info",
				BatchMaxSize:   500,
				BatchMaxWaitMS: 5000,
			},
		},
		Worker: WorkerConfig{
			Intervals: Intervals{
				IDSync:              10,
				IDSyncBackoff:       10,
				RelationSync:        60,
				RelationSyncBackoff: 60,
				Listener:            60,
				ListenerBackoff:     60,
				Remover:             300,
				RemoverBackoff:      300,
				ProfileSync:         10,
				ProfileSyncBackoff:  300,
				FollowBack:          0,
				FollowBackBackoff:   600,
			},
			BatchSizes: BatchSizes{
				RelationLookup: 100,
				ProfileFetch:   100,
				ProfileScan:    1000,
				RemoveUsers:    100,
			},
			Pacing: Pacing{
				Unfollow:   300,
				FollowBack: 600,
			},
			ThresholdLimits: ThresholdLimits{
				WatermarkAge: 3600,
				InactiveDays: 730,
			},
			RelationSeed: 717,
		},
	}
}

// DefaultPaths returns the directories searched for config files.
func DefaultPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	return []string{
		".reciprocal",
		homeDir + "/.reciprocal/config",
		"/etc/reciprocal/config",
		"/app/config",
		"config",
		".",
	}, nil
}

// LoadConfig loads the configuration from the default search paths.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	paths, err := DefaultPaths()
	if err != nil {
		return nil, "", err
	}

	return LoadConfigFrom(paths)
}

// LoadConfigFrom loads common.toml and worker.toml from the first directory
// in paths that contains each file. Keys missing from a file keep their
// default value.
func LoadConfigFrom(paths []string) (*Config, string, error) {
	config := Default()

	sections := []struct {
		name   string
		target any
	}{
		{"common", &config.Common},
		{"worker", &config.Worker},
	}

	var usedConfigPath string

	for _, section := range sections {
		path, err := loadSection(paths, section.name, section.target)
		if err != nil {
			return nil, "", err
		}

		if usedConfigPath == "" {
			usedConfigPath = path
		}
	}

	// Check versions for each config file
	if err := checkConfigVersion("common", config.Common.Version, CurrentCommonVersion); err != nil {
		return nil, "", err
	}

	if err := checkConfigVersion("worker", config.Worker.Version, CurrentWorkerVersion); err != nil {
		return nil, "", err
	}

	return config, usedConfigPath, nil
}

// loadSection finds <name>.toml in paths and unmarshals it over target.
func loadSection(paths []string, name string, target any) (string, error) {
	for _, path := range paths {
		k := koanf.New(".")

		configPath := fmt.Sprintf("%s/%s.toml", path, name)
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			continue
		}

		if err := k.Unmarshal("", target); err != nil {
			return "", fmt.Errorf("error unmarshaling %s.toml: %w", name, err)
		}

		return path, nil
	}

	return "", fmt.Errorf("%w: %s.toml", ErrConfigFileNotFound, name)
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(name string, current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s.toml", ErrConfigVersionMissing, name)
	}

	if current != expected {
		return fmt.Errorf(
			"%w: %s.toml (got: %d, expected: %d)\n"+
				"Please update your config file from: https://github.com/robalyx/reciprocal/tree/%s/config/%s.toml",
			ErrConfigVersionMismatch,
			name,
			current,
			expected,
			RepositoryVersion,
			name,
		)
	}

	return nil
}
