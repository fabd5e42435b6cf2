package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "streetnet.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Workers != runtime.NumCPU()+1 {
		t.Errorf("expected workers=%d, got %d", runtime.NumCPU()+1, cfg.Workers)
	}
	if cfg.NodeScope != "global" {
		t.Errorf("expected node_scope=global, got %s", cfg.NodeScope)
	}
	if cfg.Output.Format != "geojson" {
		t.Errorf("expected output.format=geojson, got %s", cfg.Output.Format)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv(EnvVar, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected log.level=info, got %s", cfg.Log.Level)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
workers: 3
node_scope: block
log:
  level: debug
output:
  format: cbor
metrics:
  file: /tmp/streetnet.prom
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Workers != 3 {
		t.Errorf("expected workers=3, got %d", cfg.Workers)
	}
	if cfg.NodeScope != "block" {
		t.Errorf("expected node_scope=block, got %s", cfg.NodeScope)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log.level=debug, got %s", cfg.Log.Level)
	}
	// unset fields keep their defaults
	if cfg.Log.Format != "text" {
		t.Errorf("expected log.format=text, got %s", cfg.Log.Format)
	}
	if cfg.Output.Format != "cbor" {
		t.Errorf("expected output.format=cbor, got %s", cfg.Output.Format)
	}
	if cfg.Metrics.File != "/tmp/streetnet.prom" {
		t.Errorf("expected metrics.file=/tmp/streetnet.prom, got %s", cfg.Metrics.File)
	}
}

func TestLoad_EnvVar(t *testing.T) {
	t.Setenv(EnvVar, writeConfig(t, "workers: 7\n"))

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Workers != 7 {
		t.Errorf("expected workers=7, got %d", cfg.Workers)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{"bad yaml", "workers: [", "parsing config"},
		{"zero workers", "workers: 0\n", "workers must be at least 1"},
		{"bad node scope", "node_scope: way\n", "invalid node_scope"},
		{"bad output", "output:\n  format: shapefile\n", "invalid output.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected error containing %q, got %q", tt.wantMsg, err.Error())
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}
