package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolate points the user config at an empty dir and clears overrides.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, k := range []string{"CGDEMO_THRESHOLD", "CGDEMO_MAX_DEPTH", "CGDEMO_TOP_N", "CGDEMO_ROOTS", "CGDEMO_CACHE_DIR", "CGDEMO_NO_CACHE", "CGDEMO_DEBUG"} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Analysis.MaxDepth != 5 || cfg.Analysis.TopN != 10 || !cfg.Analysis.DeadCode {
		t.Errorf("analysis defaults = %+v", cfg.Analysis)
	}
	if cfg.Output.Stats != "function_stats.csv" || !cfg.Output.WriteJSON {
		t.Errorf("output defaults = %+v", cfg.Output)
	}
	if cfg.Debug {
		t.Error("debug on by default")
	}
}

func TestLoadPrecedence(t *testing.T) {
	isolate(t)
	xdg := os.Getenv("XDG_CONFIG_HOME")
	root := t.TempDir()

	writeFile(t, filepath.Join(xdg, "cgdemo", "config.yaml"), "analysis:\n  top_n: 3\n  max_depth: 4\n")
	writeFile(t, ProjectConfigPath(root), "analysis:\n  top_n: 7\n  roots: [\"entry\"]\n")
	writeFile(t, filepath.Join(root, ".env"), "CGDEMO_THRESHOLD=25\nCGDEMO_MAX_DEPTH=9\n")
	t.Setenv("CGDEMO_MAX_DEPTH", "6")

	cfg, err := Load(root)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"top_n from project", cfg.Analysis.TopN, 7},
		{"max_depth from env over .env", cfg.Analysis.MaxDepth, 6},
		{"threshold from .env", cfg.Analysis.Threshold, 25.0},
		{"roots from project", strings.Join(cfg.Analysis.Roots, ","), "entry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("CGDEMO_ROOTS", "run, main ,")
	t.Setenv("CGDEMO_NO_CACHE", "true")
	t.Setenv("CGDEMO_DEBUG", "1")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(cfg.Analysis.Roots, ",") != "run,main" {
		t.Errorf("roots = %v", cfg.Analysis.Roots)
	}
	if cfg.Cache.Enabled {
		t.Error("cache still enabled")
	}
	if !cfg.Debug {
		t.Error("debug not enabled")
	}
}

func TestEnvOverrideBadNumber(t *testing.T) {
	isolate(t)
	t.Setenv("CGDEMO_TOP_N", "many")
	if _, err := Load(t.TempDir()); err == nil || !strings.Contains(err.Error(), "CGDEMO_TOP_N") {
		t.Errorf("err = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   []string
	}{
		{"valid", func(*Config) {}, nil},
		{"threshold", func(c *Config) { c.Analysis.Threshold = 150 }, []string{"threshold"}},
		{"depth and topn", func(c *Config) { c.Analysis.MaxDepth = 0; c.Analysis.TopN = 0 }, []string{"max_depth", "top_n"}},
		{"bad root", func(c *Config) { c.Analysis.Roots = []string{"[a"} }, []string{"bad pattern"}},
		{"cache dir", func(c *Config) { c.Cache.Dir = "" }, []string{"cache.dir"}},
		{"stats", func(c *Config) { c.Output.Stats = "" }, []string{"output.stats"}},
		{"max entries", func(c *Config) { c.Cache.MaxEntries = -1 }, []string{"max_entries"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if len(tt.want) == 0 {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("error %q missing %q", err, w)
				}
			}
		})
	}
}

func TestWriteDefaultAndLoadFromPath(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatal(err)
	}
	def := DefaultConfig()
	if cfg.Analysis.TopN != def.Analysis.TopN || cfg.Output.Reduced != def.Output.Reduced || cfg.Cache.Dir != def.Cache.Dir {
		t.Errorf("round trip = %+v", cfg)
	}

	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadBadYAML(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	writeFile(t, ProjectConfigPath(root), "analysis: [\n")
	if _, err := Load(root); err == nil {
		t.Error("expected parse error")
	}
}

func TestConversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Analysis.TopN = 3
	cfg.Analysis.Clustering = false
	cfg.Output.WriteJSON = false

	opts := cfg.AnalysisOptions()
	if opts.TopN != 3 || opts.Clustering || !opts.DeadCode || len(opts.Roots) == 0 {
		t.Errorf("analysis options = %+v", opts)
	}
	co := cfg.CacheOptions("/proj")
	if co.Dir != filepath.Join("/proj", ".cgdemo", "cache") || !co.Enabled || co.TTL != 0 || co.MaxEntries != 64 {
		t.Errorf("cache options = %+v", co)
	}
	cfg.Cache.Dir = "/abs/cache"
	cfg.Cache.TTLDays = 2
	if co := cfg.CacheOptions("/proj"); co.Dir != "/abs/cache" || co.TTL.Hours() != 48 {
		t.Errorf("absolute cache options = %+v", co)
	}

	out := cfg.Outputs()
	if out.JSON != "" || out.Stats != "function_stats.csv" {
		t.Errorf("outputs = %+v", out)
	}
}
