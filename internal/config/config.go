package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App            App            `mapstructure:"app"`
	Database       Database       `mapstructure:"database"`
	FastState      FastState      `mapstructure:"fast_state"`
	Admin          Admin          `mapstructure:"admin"`
	Review         Review         `mapstructure:"review"`
	Collection     Collection     `mapstructure:"collection"`
	Cadence        Cadence        `mapstructure:"cadence"`
	ProductionLock ProductionLock `mapstructure:"production_lock"`
	Dedup          Dedup          `mapstructure:"dedup"`
	Episode        Episode        `mapstructure:"episode"`
	Collaborators  Collaborators  `mapstructure:"collaborators"`
	Logging        Logging        `mapstructure:"logging"`
	CLI            CLI            `mapstructure:"cli"`
	Observability  Observability  `mapstructure:"observability"`
}

// App holds general application configuration.
type App struct {
	Debug      bool   `mapstructure:"debug"`
	LogLevel   string `mapstructure:"log_level"`
	DataDir    string `mapstructure:"data_dir"`
	ConfigFile string `mapstructure:"config_file"`
}

// Database holds the durable (Postgres) store configuration.
type Database struct {
	ConnectionString string `mapstructure:"connection_string"`
	MaxConnections   int    `mapstructure:"max_connections"`
	IdleConnections  int    `mapstructure:"idle_connections"`
}

// FastState holds the SQLite-backed fast-state store configuration:
// dedup set, locks, and the review queue all live here.
type FastState struct {
	Path string `mapstructure:"path"`
}

// Admin holds the inspect/mutation HTTP surface configuration.
type Admin struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

// CORSConfig holds CORS configuration for the admin surface.
type CORSConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Review holds the Review Router's (C2) runtime-configurable knobs.
// Thresholds and worker count are also readable/writable at runtime via
// the reviewer:config fast-state blob; this struct supplies the
// process's starting values.
type Review struct {
	LightThreshold    float64       `mapstructure:"light_threshold"`
	HeavyThreshold    float64       `mapstructure:"heavy_threshold"`
	WorkerCount       int           `mapstructure:"worker_count"`
	QueueCapacity     int           `mapstructure:"queue_capacity"`
	LightSoftTimeout  time.Duration `mapstructure:"light_soft_timeout"`
	LightHardTimeout  time.Duration `mapstructure:"light_hard_timeout"`
	HeavySoftTimeout  time.Duration `mapstructure:"heavy_soft_timeout"`
	HeavyHardTimeout  time.Duration `mapstructure:"heavy_hard_timeout"`
	PausePollInterval time.Duration `mapstructure:"pause_poll_interval"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes"`
	MaxSummaryChars   int           `mapstructure:"max_summary_chars"`
	MaxTags           int           `mapstructure:"max_tags"`
}

// Collection holds the Collection Manager's (C3) readiness and expiry knobs.
type Collection struct {
	MinArticles   int           `mapstructure:"min_articles"`
	StalenessMax  time.Duration `mapstructure:"staleness_max"`
	CollectionTTL time.Duration `mapstructure:"collection_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// Cadence holds the Cadence Controller's (C4) tick and bucket-window knobs.
type Cadence struct {
	TickInterval      time.Duration `mapstructure:"tick_interval"`
	DailyWindow       time.Duration `mapstructure:"daily_window"`
	ThreeDayWindow    time.Duration `mapstructure:"three_day_window"`
	WeeklyWindow      time.Duration `mapstructure:"weekly_window"`
	GenerationLockTTL time.Duration `mapstructure:"generation_lock_ttl"`
}

// ProductionLock holds the Production Lock's (C5) TTL knobs.
type ProductionLock struct {
	TTL            time.Duration `mapstructure:"ttl"`
	ManualPauseTTL time.Duration `mapstructure:"manual_pause_ttl"`
}

// Dedup holds the Deduplication Filter's (C1) TTL knob.
type Dedup struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// Episode holds the Episode Pipeline's (C6) per-stage soft/hard budgets
// and the set of platforms handed to the Publisher collaborator.
type Episode struct {
	ScriptSoftTimeout time.Duration `mapstructure:"script_soft_timeout"`
	ScriptHardTimeout time.Duration `mapstructure:"script_hard_timeout"`
	EditSoftTimeout   time.Duration `mapstructure:"edit_soft_timeout"`
	EditHardTimeout   time.Duration `mapstructure:"edit_hard_timeout"`
	TTSSoftTimeout    time.Duration `mapstructure:"tts_soft_timeout"`
	TTSHardTimeout    time.Duration `mapstructure:"tts_hard_timeout"`
	PublishTimeout    time.Duration `mapstructure:"publish_timeout"`
	Platforms         []string      `mapstructure:"platforms"`
}

// Collaborators holds the base URL and request timeout for every external
// collaborator the core speaks to over HTTP JSON contracts. The core
// never constructs prompts for these; it only forwards the documented
// request fields.
type Collaborators struct {
	ReviewerLight CollaboratorConfig `mapstructure:"reviewer_light"`
	ReviewerHeavy CollaboratorConfig `mapstructure:"reviewer_heavy"`
	Writer        CollaboratorConfig `mapstructure:"writer"`
	Editor        CollaboratorConfig `mapstructure:"editor"`
	TTS           CollaboratorConfig `mapstructure:"tts"`
	Publisher     CollaboratorConfig `mapstructure:"publisher"`
}

// CollaboratorConfig holds the connection details for a single collaborator.
type CollaboratorConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Logging holds logging configuration.
type Logging struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

// CLI holds CLI-specific configuration for cmd/overseerctl.
type CLI struct {
	Editor        string `mapstructure:"editor"`
	DefaultFormat string `mapstructure:"default_format"`
}

// Observability holds analytics sink configuration.
type Observability struct {
	PostHog PostHogConfig `mapstructure:"posthog"`
}

// PostHogConfig holds PostHog analytics configuration.
type PostHogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	Host    string `mapstructure:"host"` // Default: https://app.posthog.com
}

var globalConfig *Config

// Load loads the configuration from defaults, file, and environment, in
// that order of increasing precedence.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".overseer")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it with defaults if
// necessary.
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// Reset clears the global configuration. Intended for tests.
func Reset() {
	globalConfig = nil
	viper.Reset()
}

func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.data_dir", ".overseer-data")

	viper.SetDefault("database.max_connections", 25)
	viper.SetDefault("database.idle_connections", 5)

	viper.SetDefault("fast_state.path", ".overseer-data")

	viper.SetDefault("admin.host", "0.0.0.0")
	viper.SetDefault("admin.port", 8090)
	viper.SetDefault("admin.read_timeout", "15s")
	viper.SetDefault("admin.write_timeout", "15s")
	viper.SetDefault("admin.shutdown_timeout", "10s")
	viper.SetDefault("admin.cors.enabled", true)
	viper.SetDefault("admin.cors.allowed_origins", []string{"http://localhost:3000"})

	// Review Router (C2) defaults.
	viper.SetDefault("review.light_threshold", 0.4)
	viper.SetDefault("review.heavy_threshold", 0.7)
	viper.SetDefault("review.worker_count", 4)
	viper.SetDefault("review.queue_capacity", 1024)
	viper.SetDefault("review.light_soft_timeout", "500ms")
	viper.SetDefault("review.light_hard_timeout", "3s")
	viper.SetDefault("review.heavy_soft_timeout", "5s")
	viper.SetDefault("review.heavy_hard_timeout", "30s")
	viper.SetDefault("review.pause_poll_interval", "10s")
	viper.SetDefault("review.retry_backoff", "1s")
	viper.SetDefault("review.max_body_bytes", 512*1024)
	viper.SetDefault("review.max_summary_chars", 500)
	viper.SetDefault("review.max_tags", 8)

	// Collection Manager (C3) defaults.
	viper.SetDefault("collection.min_articles", 3)
	viper.SetDefault("collection.staleness_max", "72h")
	viper.SetDefault("collection.collection_ttl", "24h")
	viper.SetDefault("collection.sweep_interval", "15m")

	// Cadence Controller (C4) defaults.
	viper.SetDefault("cadence.tick_interval", "2h")
	viper.SetDefault("cadence.daily_window", "24h")
	viper.SetDefault("cadence.three_day_window", "72h")
	viper.SetDefault("cadence.weekly_window", "168h")
	viper.SetDefault("cadence.generation_lock_ttl", "3600s")

	// Production Lock (C5) defaults.
	viper.SetDefault("production_lock.ttl", "7200s")
	viper.SetDefault("production_lock.manual_pause_ttl", "86400s")

	// Deduplication Filter (C1) defaults.
	viper.SetDefault("dedup.ttl", "2592000s")

	// Episode Pipeline (C6) defaults.
	viper.SetDefault("episode.script_soft_timeout", "120s")
	viper.SetDefault("episode.script_hard_timeout", "180s")
	viper.SetDefault("episode.edit_soft_timeout", "60s")
	viper.SetDefault("episode.edit_hard_timeout", "120s")
	viper.SetDefault("episode.tts_soft_timeout", "600s")
	viper.SetDefault("episode.tts_hard_timeout", "1800s")
	viper.SetDefault("episode.publish_timeout", "30s")
	viper.SetDefault("episode.platforms", []string{"rss"})

	viper.SetDefault("collaborators.reviewer_light.timeout", "3s")
	viper.SetDefault("collaborators.reviewer_heavy.timeout", "30s")
	viper.SetDefault("collaborators.writer.timeout", "180s")
	viper.SetDefault("collaborators.editor.timeout", "120s")
	viper.SetDefault("collaborators.tts.timeout", "1800s")
	viper.SetDefault("collaborators.publisher.timeout", "30s")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")

	viper.SetDefault("cli.editor", os.Getenv("EDITOR"))
	viper.SetDefault("cli.default_format", "table")

	viper.SetDefault("observability.posthog.enabled", false)
	viper.SetDefault("observability.posthog.host", "https://app.posthog.com")
}

func bindEnvironmentVariables() {
	bindEnvKeys("database.connection_string", []string{
		"OVERSEER_DATABASE_URL",
		"DATABASE_URL",
	})

	bindEnvKeys("collaborators.reviewer_light.base_url", []string{"REVIEWER_LIGHT_BASE_URL"})
	bindEnvKeys("collaborators.reviewer_heavy.base_url", []string{"REVIEWER_HEAVY_BASE_URL"})
	bindEnvKeys("collaborators.writer.base_url", []string{"WRITER_BASE_URL"})
	bindEnvKeys("collaborators.editor.base_url", []string{"EDITOR_BASE_URL"})
	bindEnvKeys("collaborators.tts.base_url", []string{"TTS_BASE_URL"})
	bindEnvKeys("collaborators.publisher.base_url", []string{"PUBLISHER_BASE_URL"})

	bindEnvKeys("app.debug", []string{"DEBUG", "OVERSEER_DEBUG"})

	bindEnvKeys("observability.posthog.api_key", []string{
		"POSTHOG_API_KEY",
		"POSTHOG_KEY",
	})
	bindEnvKeys("observability.posthog.host", []string{
		"POSTHOG_HOST",
		"POSTHOG_URL",
	})
}

// bindEnvKeys binds the first found environment variable to a viper key.
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

func postProcessConfig(config *Config) error {
	if config.App.DataDir != "" {
		config.App.DataDir = expandPath(config.App.DataDir)
	}
	if config.FastState.Path != "" {
		config.FastState.Path = expandPath(config.FastState.Path)
	}
	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

func validateConfig(config *Config) error {
	var errors []string

	if config.Database.ConnectionString == "" {
		errors = append(errors, "database connection string is required. Set OVERSEER_DATABASE_URL or database.connection_string in config file.")
	}

	if config.Review.LightThreshold < 0 || config.Review.LightThreshold > 1 {
		errors = append(errors, "review.light_threshold must be in [0,1]")
	}
	if config.Review.HeavyThreshold < 0 || config.Review.HeavyThreshold > 1 {
		errors = append(errors, "review.heavy_threshold must be in [0,1]")
	}
	if config.Review.WorkerCount < 1 {
		errors = append(errors, "review.worker_count must be at least 1")
	}
	if config.Collection.MinArticles < 1 {
		errors = append(errors, "collection.min_articles must be at least 1")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Convenience getters, one per config section.
func GetApp() App                     { return Get().App }
func GetDatabase() Database           { return Get().Database }
func GetFastState() FastState         { return Get().FastState }
func GetAdmin() Admin                 { return Get().Admin }
func GetReview() Review               { return Get().Review }
func GetCollection() Collection       { return Get().Collection }
func GetCadence() Cadence             { return Get().Cadence }
func GetProductionLock() ProductionLock { return Get().ProductionLock }
func GetDedup() Dedup                 { return Get().Dedup }
func GetEpisode() Episode             { return Get().Episode }
func GetCollaborators() Collaborators { return Get().Collaborators }
func GetLogging() Logging             { return Get().Logging }
func GetCLI() CLI                     { return Get().CLI }
func GetObservability() Observability { return Get().Observability }
func IsDebugMode() bool               { return Get().App.Debug }
func IsPostHogEnabled() bool          { return Get().Observability.PostHog.Enabled }
