package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"cadence/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("CADENCE_API_TOKEN", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "cadence")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "cadence.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Paths.APIBind != "127.0.0.1:7610" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Matching.AutoLinkThreshold != 70 || cfg.Matching.ReviewFloor != 30 {
		t.Fatalf("unexpected thresholds: %+v", cfg.Matching)
	}
	if cfg.Import.SupersedeActive {
		t.Fatal("expected supersede disabled by default")
	}
	if len(cfg.Import.LessonKeywords) == 0 {
		t.Fatal("expected default lesson keywords")
	}
	if cfg.Google.CalendarID != "primary" {
		t.Fatalf("unexpected calendar id: %q", cfg.Google.CalendarID)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(t.TempDir(), "cadence.toml")
	body := `
[paths]
data_dir = "~/school"
api_token = " secret "

[matching]
auto_link_threshold = 80
review_floor = 40

[import]
page_size = 0
lesson_keywords = ["Guitar", "guitar", " Piano "]

[logging]
format = "JSON"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected custom path to resolve, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "school") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Paths.APIToken != "secret" {
		t.Fatalf("expected trimmed token, got %q", cfg.Paths.APIToken)
	}
	if cfg.Matching.AutoLinkThreshold != 80 || cfg.Matching.ReviewFloor != 40 {
		t.Fatalf("unexpected thresholds: %+v", cfg.Matching)
	}
	if cfg.Import.PageSize != 250 {
		t.Fatalf("expected page size default, got %d", cfg.Import.PageSize)
	}
	if strings.Join(cfg.Import.LessonKeywords, ",") != "guitar,piano" {
		t.Fatalf("unexpected keywords: %v", cfg.Import.LessonKeywords)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lowercased format, got %q", cfg.Logging.Format)
	}
}

func TestEnvVarFallbacks(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GOOGLE_ACCESS_TOKEN", "ya29.env")
	t.Setenv("TRACK_SEARCH_TOKEN", "track-env")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Google.AccessToken != "ya29.env" {
		t.Fatalf("expected google token from env, got %q", cfg.Google.AccessToken)
	}
	if cfg.TrackSearch.AccessToken != "track-env" {
		t.Fatalf("expected track token from env, got %q", cfg.TrackSearch.AccessToken)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Matching.AutoLinkThreshold != 70 {
		t.Fatalf("expected sample auto threshold 70, got %d", cfg.Matching.AutoLinkThreshold)
	}
	if !strings.Contains(cfg.Paths.DataDir, "cadence") {
		t.Fatalf("expected data dir to contain cadence, got %q", cfg.Paths.DataDir)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Matching.ReviewFloor = cfg.Matching.AutoLinkThreshold
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when review floor reaches auto threshold")
	}

	cfg = config.Default()
	cfg.Matching.AutoLinkThreshold = 101
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for auto threshold above 100")
	}

	cfg = config.Default()
	cfg.Import.MaxRangeDays = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive range")
	}

	cfg = config.Default()
	cfg.TrackSearch.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when track search enabled without token")
	}

	cfg = config.Default()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported log format")
	}

	cfg = config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}
