package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"pipeline-oracle/internal/catalog"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// AppConfig holds the complete application configuration.
type AppConfig struct {
	DataPath            string
	LogDir              string
	CacheDir            string
	ReportDir           string
	CatalogPath         string
	CacheTTL            time.Duration
	StaleTTL            time.Duration
	HorizonWeeks        float64
	Workers             int
	MetricsAddr         string
	EnableMermaidCharts bool
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// Binary directory first: MCP hosts rarely start us from the project folder.
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	cfg := &AppConfig{
		DataPath:            dataPath,
		LogDir:              getEnv("LOGS_FOLDER", filepath.Join(dataPath, "logs")),
		CacheDir:            filepath.Join(dataPath, "cache"),
		ReportDir:           filepath.Join(dataPath, "reports"),
		CatalogPath:         getEnv("ORACLE_CATALOG", ""),
		CacheTTL:            time.Duration(getEnvInt("ORACLE_CACHE_TTL_MINUTES", 30)) * time.Minute,
		StaleTTL:            time.Duration(getEnvInt("ORACLE_STALE_TTL_HOURS", 24)) * time.Hour,
		HorizonWeeks:        getEnvFloat("ORACLE_HORIZON_WEEKS", 0),
		Workers:             getEnvInt("ORACLE_WORKERS", 0),
		MetricsAddr:         getEnv("ORACLE_METRICS_ADDR", ""),
		EnableMermaidCharts: getEnvBool("ENABLE_MERMAID_CHARTS", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for _, dir := range []string{cfg.CacheDir, cfg.ReportDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Warn().Err(err).Str("path", dir).Msg("Failed to create data directory")
		}
	}

	return cfg, nil
}

// Validate rejects settings the engines cannot work with.
func (c *AppConfig) Validate() error {
	if c.HorizonWeeks < 0 {
		return fmt.Errorf("ORACLE_HORIZON_WEEKS must be >= 0, got %v", c.HorizonWeeks)
	}
	if c.Workers < 0 {
		return fmt.Errorf("ORACLE_WORKERS must be >= 0, got %d", c.Workers)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("ORACLE_CACHE_TTL_MINUTES must be >= 0")
	}
	return nil
}

// Catalog returns the stage catalog: the ORACLE_CATALOG override when set, else the
// embedded default.
func (c *AppConfig) Catalog() (*catalog.Catalog, error) {
	if c.CatalogPath == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.Load(c.CatalogPath)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", c.CatalogPath).Int("stages", len(cat.Stages)).Msg("Loaded stage catalog override")
	return cat, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring non-integer setting")
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring non-numeric setting")
	}
	return fallback
}
