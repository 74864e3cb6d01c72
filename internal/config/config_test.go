package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
)

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_PATH", dir)
	t.Setenv("ORACLE_CACHE_TTL_MINUTES", "5")
	t.Setenv("ORACLE_HORIZON_WEEKS", "2")
	t.Setenv("ORACLE_WORKERS", "3")
	t.Setenv("ORACLE_METRICS_ADDR", ":9464")
	t.Setenv("ENABLE_MERMAID_CHARTS", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataPath != dir || cfg.CacheDir != filepath.Join(dir, "cache") {
		t.Errorf("unexpected paths %+v", cfg)
	}
	if cfg.CacheTTL != 5*time.Minute || cfg.HorizonWeeks != 2 || cfg.Workers != 3 {
		t.Errorf("numeric overrides not applied: %+v", cfg)
	}
	if cfg.MetricsAddr != ":9464" || cfg.EnableMermaidCharts {
		t.Errorf("string/bool overrides not applied: %+v", cfg)
	}
	if _, err := os.Stat(cfg.ReportDir); err != nil {
		t.Errorf("report dir not created: %v", err)
	}
}

func TestLoad_RejectsNegativeHorizon(t *testing.T) {
	t.Setenv("DATA_PATH", t.TempDir())
	t.Setenv("ORACLE_HORIZON_WEEKS", "-1")
	if _, err := Load(); err == nil {
		t.Error("expected error for negative horizon")
	}
}

func TestCatalog_Override(t *testing.T) {
	cfg := &AppConfig{}
	c, err := cfg.Catalog()
	if err != nil || len(c.Stages) == 0 {
		t.Fatalf("default catalog: %v", err)
	}

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	yaml := "horizon_weeks: 2\nstages:\n  - id: SCREEN\n    owner: recruiter\n    prior_rate: 0.5\n    constant_days: 3\n  - id: HIRED\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	cfg.CatalogPath = path
	c, err = cfg.Catalog()
	if err != nil {
		t.Fatalf("override catalog: %v", err)
	}
	if c.HorizonWeeks != 2 || len(c.Stages) != 2 {
		t.Errorf("override not applied: %+v", c)
	}

	cfg.CatalogPath = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := cfg.Catalog(); err == nil {
		t.Error("expected error for missing catalog file")
	}
}

func TestGodotenvQuoting(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(`ORACLE_CATALOG='/opt/funnel "v2".yaml'`), 0644); err != nil {
		t.Fatal(err)
	}
	env, err := godotenv.Read(path)
	if err != nil {
		t.Fatalf("Error reading env: %v", err)
	}
	if got, want := env["ORACLE_CATALOG"], `/opt/funnel "v2".yaml`; got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}
