// Package config loads discat configuration from defaults, an optional YAML
// file and the environment, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/justestif/discat/internal/cache"
	"github.com/justestif/discat/internal/discogs"
	"github.com/justestif/discat/internal/enrich"
	"github.com/justestif/discat/internal/execute"
	"github.com/justestif/discat/internal/logging"
)

// DefaultConfigPaths are searched in order when DISCAT_CONFIG is unset.
var DefaultConfigPaths = []string{
	"discat.yaml",
	"discat.yml",
}

// ConfigPathEnvVar names the environment variable holding the config path.
const ConfigPathEnvVar = "DISCAT_CONFIG"

// Config is the full discat configuration.
type Config struct {
	Discogs  DiscogsConfig  `koanf:"discogs"`
	Output   OutputConfig   `koanf:"output"`
	Cache    CacheConfig    `koanf:"cache"`
	Database DatabaseConfig `koanf:"database"`
	Pacing   PacingConfig   `koanf:"pacing"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// DiscogsConfig holds API credentials.
type DiscogsConfig struct {
	Token    string `koanf:"token"`
	Username string `koanf:"username"`
	BaseURL  string `koanf:"base_url" validate:"required,url"`
}

// OutputConfig locates the local state files.
type OutputConfig struct {
	Dir string `koanf:"dir" validate:"required"`
}

// CacheConfig selects the snapshot backend.
type CacheConfig struct {
	Backend   string `koanf:"backend" validate:"oneof=file badger postgres"`
	BadgerDir string `koanf:"badger_dir"`
}

// DatabaseConfig enables the optional PostgreSQL mirror and run ledger.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// PacingConfig tunes every throttle.
type PacingConfig struct {
	PageInterval       time.Duration `koanf:"page_interval" validate:"gte=0"`
	LowWater           int           `koanf:"low_water" validate:"gte=0"`
	Cooldown           time.Duration `koanf:"cooldown" validate:"gte=0"`
	AnnotationDelay    time.Duration `koanf:"annotation_delay" validate:"gte=0"`
	MetadataDelay      time.Duration `koanf:"metadata_delay" validate:"gte=0"`
	MetadataBatch      int           `koanf:"metadata_batch" validate:"gte=0"`
	MetadataBatchPause time.Duration `koanf:"metadata_batch_pause" validate:"gte=0"`
	WriteTarget        time.Duration `koanf:"write_target" validate:"gte=0"`
	WriteCheckpoint    int           `koanf:"write_checkpoint" validate:"gte=0"`
	WriteDelay         time.Duration `koanf:"write_delay" validate:"gte=0"`
}

// ServerConfig configures discat serve.
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=console json"`
}

func defaultConfig() *Config {
	ep := enrich.DefaultPacing()
	xp := execute.DefaultPacing()
	return &Config{
		Discogs: DiscogsConfig{
			BaseURL: "https://api.discogs.com",
		},
		Output: OutputConfig{
			Dir: ".",
		},
		Cache: CacheConfig{
			Backend:   "file",
			BadgerDir: "discat-cache",
		},
		Pacing: PacingConfig{
			PageInterval:       time.Second,
			LowWater:           5,
			Cooldown:           60 * time.Second,
			AnnotationDelay:    ep.AnnotationDelay,
			MetadataDelay:      ep.MetadataDelay,
			MetadataBatch:      ep.BatchSize,
			MetadataBatchPause: ep.BatchPause,
			WriteTarget:        xp.Target,
			WriteCheckpoint:    xp.Checkpoint,
			WriteDelay:         xp.Delay,
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:8089",
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (or
// the first default path found), then environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransformFunc maps environment variables to config paths. Unknown
// variables map to "" and are ignored.
//
//   - DISCOGS_TOKEN -> discogs.token
//   - DISCOGS_USERNAME -> discogs.username
//   - DATABASE_URL -> database.url
//   - DISCAT_PACING_METADATA_DELAY -> pacing.metadata_delay
func envTransformFunc(key string) string {
	switch key {
	case "DISCOGS_TOKEN":
		return "discogs.token"
	case "DISCOGS_USERNAME":
		return "discogs.username"
	case "DISCOGS_BASE_URL":
		return "discogs.base_url"
	case "DATABASE_URL":
		return "database.url"
	case ConfigPathEnvVar:
		return ""
	}

	rest, ok := strings.CutPrefix(key, "DISCAT_")
	if !ok {
		return ""
	}
	section, field, ok := strings.Cut(strings.ToLower(rest), "_")
	if !ok || field == "" {
		return ""
	}
	return section + "." + field
}

var validate = validator.New()

// Validate checks structural constraints. Credentials are checked when the
// Discogs client is built, so commands that never call the API still run.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Cache.Backend == "postgres" && c.Database.URL == "" {
		return fmt.Errorf("cache backend postgres requires database.url")
	}
	return nil
}

// DiscogsCredentials returns the client credentials.
func (c *Config) DiscogsCredentials() discogs.Config {
	return discogs.Config{Token: c.Discogs.Token, Username: c.Discogs.Username}
}

// SnapshotPath returns the cache file path.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.Output.Dir, cache.SnapshotFileName)
}

// CollectionPath returns the latest collection file path.
func (c *Config) CollectionPath() string {
	return filepath.Join(c.Output.Dir, cache.CollectionFileName)
}

// BadgerPath returns the badger directory, relative to the output dir
// unless absolute.
func (c *Config) BadgerPath() string {
	if filepath.IsAbs(c.Cache.BadgerDir) {
		return c.Cache.BadgerDir
	}
	return filepath.Join(c.Output.Dir, c.Cache.BadgerDir)
}

// EnrichPacing returns the enrichment pacing.
func (c *Config) EnrichPacing() enrich.Pacing {
	p := enrich.DefaultPacing()
	p.AnnotationDelay = c.Pacing.AnnotationDelay
	p.MetadataDelay = c.Pacing.MetadataDelay
	p.BatchSize = c.Pacing.MetadataBatch
	p.BatchPause = c.Pacing.MetadataBatchPause
	return p
}

// WritePacing returns the write-back pacing.
func (c *Config) WritePacing() execute.Pacing {
	return execute.Pacing{
		Target:     c.Pacing.WriteTarget,
		Checkpoint: c.Pacing.WriteCheckpoint,
		Delay:      c.Pacing.WriteDelay,
	}
}

// LogConfig returns the logging setup.
func (c *Config) LogConfig() logging.Config {
	return logging.Config{Level: c.Logging.Level, Format: c.Logging.Format}
}
