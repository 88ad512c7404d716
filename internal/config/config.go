// Package config loads versecheck settings from defaults, a JSONC file,
// a .env file and VERSECHECK_* environment variables.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/tailscale/hujson"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/catalog"
)

const (
	// FileName is the config file looked for in the working directory.
	FileName = ".versecheck.json"
	// EnvFileName holds secrets that stay out of the config file.
	EnvFileName = ".env"
	// EnvPrefix starts every environment override.
	EnvPrefix = "VERSECHECK_"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config holds all configuration options.
type Config struct {
	ProjectDir     string            `json:"project_dir"`
	ProjectsDir    string            `json:"projects_dir"`
	DataDir        string            `json:"data_dir"`
	Store          string            `json:"store"`
	SQLitePath     string            `json:"sqlite_path,omitempty"`
	PostgresURL    string            `json:"postgres_url,omitempty"`
	CacheSize      int               `json:"cache_size"`
	CatalogDir     string            `json:"catalog_dir,omitempty"`
	CatalogS3      *catalog.S3Config `json:"catalog_s3,omitempty"`
	Workers        int               `json:"workers"`
	LogLevel       string            `json:"log_level"`
	LogFormat      string            `json:"log_format"`
	APIPort        int               `json:"api_port"`
	// APIKey enables API authentication when set. Keep it in .env.
	APIKey         string            `json:"api_key,omitempty"`
	AllowedOrigins []string          `json:"allowed_origins,omitempty"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		ProjectDir:  ".",
		ProjectsDir: ".",
		DataDir:     ".versecheck",
		Store:       StoreFile,
		CacheSize:   256,
		Workers:     4,
		LogLevel:    "info",
		LogFormat:   "text",
		APIPort:     8080,
	}
}

// SQLiteFile is the SQLite database path, defaulting into DataDir.
func (c Config) SQLiteFile() string {
	if c.SQLitePath != "" {
		return c.SQLitePath
	}
	return filepath.Join(c.DataDir, "versecheck.db")
}

// CatalogPath is the directory catalog, defaulting into DataDir.
func (c Config) CatalogPath() string {
	if c.CatalogDir != "" {
		return c.CatalogDir
	}
	return filepath.Join(c.DataDir, "catalog")
}

// Sources records which files were read.
type Sources struct {
	File    string
	EnvFile string
}

// LoadOptions control Load.
type LoadOptions struct {
	// WorkDir is searched for FileName and EnvFileName.
	WorkDir string
	// Path names an explicit config file, which must exist.
	Path string
	// Lookup reads the environment; nil means os.LookupEnv.
	Lookup func(string) (string, bool)
	// Overrides apply last, for command-line flags.
	Overrides func(*Config)
}

// Load builds the configuration with the following precedence (highest
// wins): defaults, the config file, the environment (process variables
// beat .env entries), then Overrides. The result is validated.
func Load(opts LoadOptions) (Config, Sources, error) {
	cfg := Default()
	var sources Sources

	path, mustExist := opts.Path, true
	if path == "" {
		path, mustExist = filepath.Join(opts.WorkDir, FileName), false
	} else if !filepath.IsAbs(path) && opts.WorkDir != "" {
		path = filepath.Join(opts.WorkDir, path)
	}
	loaded, err := loadFile(path, mustExist, &cfg)
	if err != nil {
		return Config{}, Sources{}, err
	}
	if loaded {
		sources.File = path
	}

	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	envPath := filepath.Join(opts.WorkDir, EnvFileName)
	dotenv, err := godotenv.Read(envPath)
	switch {
	case err == nil:
		sources.EnvFile = envPath
		base := lookup
		lookup = func(key string) (string, bool) {
			if v, ok := base(key); ok {
				return v, true
			}
			v, ok := dotenv[key]
			return v, ok
		}
	case !errors.Is(err, fs.ErrNotExist):
		return Config{}, Sources{}, &errors.ParseError{Format: "dotenv", Path: envPath, Message: err.Error(), Err: err}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, Sources{}, err
	}
	if opts.Overrides != nil {
		opts.Overrides(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, Sources{}, err
	}
	return cfg, sources, nil
}

// loadFile decodes a JSONC file over cfg. Keys absent from the file keep
// their current values.
func loadFile(path string, mustExist bool, cfg *Config) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !mustExist {
			return false, nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return false, errors.NewNotFound("config file", path)
		}
		return false, errors.NewIO("read", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return false, &errors.ParseError{Format: "JSONC", Path: path, Message: err.Error(), Err: err}
	}
	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return false, &errors.ParseError{Format: "config", Path: path, Message: err.Error(), Err: err}
	}
	return true, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.NewValidation(EnvPrefix+name, fmt.Sprintf("%q is not a number", v))
		}
		*dst = n
		return nil
	}

	str("PROJECT_DIR", &cfg.ProjectDir)
	str("PROJECTS_DIR", &cfg.ProjectsDir)
	str("DATA_DIR", &cfg.DataDir)
	str("STORE", &cfg.Store)
	str("SQLITE_PATH", &cfg.SQLitePath)
	str("POSTGRES_URL", &cfg.PostgresURL)
	str("CATALOG_DIR", &cfg.CatalogDir)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("API_KEY", &cfg.APIKey)
	if v, ok := lookup(EnvPrefix + "ALLOWED_ORIGINS"); ok {
		cfg.AllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}
	for name, dst := range map[string]*int{
		"WORKERS":    &cfg.Workers,
		"API_PORT":   &cfg.APIPort,
		"CACHE_SIZE": &cfg.CacheSize,
	} {
		if err := num(name, dst); err != nil {
			return err
		}
	}

	if endpoint, ok := lookup(EnvPrefix + "CATALOG_S3_ENDPOINT"); ok {
		if cfg.CatalogS3 == nil {
			cfg.CatalogS3 = &catalog.S3Config{}
		}
		cfg.CatalogS3.Endpoint = strings.TrimSpace(endpoint)
	}
	if cfg.CatalogS3 != nil {
		s3 := cfg.CatalogS3
		str("CATALOG_S3_BUCKET", &s3.Bucket)
		str("CATALOG_S3_REGION", &s3.Region)
		str("CATALOG_S3_ACCESS_KEY", &s3.AccessKey)
		str("CATALOG_S3_SECRET_KEY", &s3.SecretKey)
		if v, ok := lookup(EnvPrefix + "CATALOG_S3_USE_SSL"); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return errors.NewValidation(EnvPrefix+"CATALOG_S3_USE_SSL", fmt.Sprintf("%q is not a boolean", v))
			}
			s3.UseSSL = b
		}
	}
	return nil
}

// Validate reports the first setting a user has to fix.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreFile, StoreSQLite:
	case StorePostgres:
		if c.PostgresURL == "" {
			return errors.NewValidation("postgres_url", "required when store is postgres")
		}
	default:
		return errors.NewValidation("store", fmt.Sprintf("%q is not one of memory, file, sqlite, postgres", c.Store))
	}
	if c.DataDir == "" && (c.Store == StoreFile || c.Store == StoreSQLite || (c.CatalogDir == "" && c.CatalogS3 == nil)) {
		return errors.NewValidation("data_dir", "must not be empty")
	}
	if c.Workers < 1 {
		return errors.NewValidation("workers", "must be at least 1")
	}
	if c.CacheSize < 0 {
		return errors.NewValidation("cache_size", "must not be negative")
	}
	if c.APIPort < 1 || c.APIPort > 65535 {
		return errors.NewValidation("api_port", fmt.Sprintf("%d is not a TCP port", c.APIPort))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return errors.NewValidation("log_level", fmt.Sprintf("%q is not one of debug, info, warn, error", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return errors.NewValidation("log_format", fmt.Sprintf("%q is not text or json", c.LogFormat))
	}
	if s3 := c.CatalogS3; s3 != nil {
		if s3.Endpoint == "" || s3.Bucket == "" {
			return errors.NewValidation("catalog_s3", "endpoint and bucket are required")
		}
	}
	return nil
}
