package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cadence/internal/api"
	"cadence/internal/config"
	"cadence/internal/conflicts"
	"cadence/internal/daemon"
	"cadence/internal/importer"
	"cadence/internal/logging"
	"cadence/internal/matching"
	"cadence/internal/reconcile"
	"cadence/internal/testsupport"
)

const testOwnerEmail = "teacher@example.com"

type cliTestEnv struct {
	cfg        *config.Config
	calendar   *testsupport.FakeCalendar
	daemon     *daemon.Daemon
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	homeDir := filepath.Join(testsupport.BaseDir(cfg), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("CADENCE_API_TOKEN", "")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	st := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedSongs(t, st,
		[2]string{"Wonderwall", "Oasis"},
		[2]string{"Hotel California", "Eagles"},
	)
	calendar := &testsupport.FakeCalendar{}
	logger := logging.NewNop()
	detector := conflicts.NewManager(st, calendar, logger)
	svc := api.NewService(api.Dependencies{
		Store:     st,
		Executor:  reconcile.NewExecutor(st, matching.Thresholds{}, logger),
		Imports:   importer.NewManager(cfg, st, calendar, detector, logger),
		Conflicts: detector,
		Providers: map[string]api.ItemProvider{
			api.SourceDrive: testsupport.StaticItems{
				{ExternalID: "f1", SourceType: matching.SourceFile, RawLabel: "Wonderwall - Oasis.mp3"},
				{ExternalID: "f2", SourceType: matching.SourceFile, RawLabel: "Hotel Cal.mp3"},
			},
			api.SourceTracks: nil,
		},
		Logger: logger,
	})

	d, err := daemon.New(cfg, svc, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		d.Close()
	})

	configPath := filepath.Join(homeDir, ".config", "cadence", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	cfg.Paths.APIBind = d.Addr()
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, calendar: calendar, daemon: d, configPath: configPath}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\nlog_dir = %q\napi_bind = %q\napi_token = %q\n",
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
		cfg.Paths.APIToken,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
