// Package config handles configuration loading for cgdemo.
// Configuration is loaded from, lowest priority first:
// 1. built-in defaults
// 2. ~/.config/cgdemo/config.yaml (user-level)
// 3. .cgdemo/config.yaml (project-level override)
// 4. a .env file in the project root
// 5. Environment variables
package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"cgdemo/cache"
	"cgdemo/graph"
)

// AnalysisConfig holds the call graph analysis settings.
type AnalysisConfig struct {
	// Threshold is the minimum importance (0-100) kept in the reduced graph
	Threshold float64 `yaml:"threshold"`

	// MaxDepth bounds hot paths, in functions
	MaxDepth int `yaml:"max_depth"`

	// TopN is how many hot paths are reported
	TopN int `yaml:"top_n"`

	// Roots are glob patterns naming entry point functions
	Roots []string `yaml:"roots"`

	DeadCode   bool `yaml:"dead_code"`
	HotPaths   bool `yaml:"hot_paths"`
	Clustering bool `yaml:"clustering"`

	// IncludeExternal keeps calls to functions defined outside the project
	IncludeExternal bool `yaml:"include_external"`

	// SkipTests leaves _test.go files out of source scans
	SkipTests bool `yaml:"skip_tests"`
}

// OutputConfig names the files an analysis run writes.
type OutputConfig struct {
	Stats    string `yaml:"stats"`
	Reduced  string `yaml:"reduced"`
	JSON     string `yaml:"json"`
	DeadCode string `yaml:"dead_code"`
	HotPaths string `yaml:"hot_paths"`
	Clusters string `yaml:"clusters"`

	// WriteJSON controls the JSON summary export
	WriteJSON bool `yaml:"write_json"`
}

// CacheConfig holds settings for report caching.
type CacheConfig struct {
	// Enabled controls whether caching is active
	Enabled bool `yaml:"enabled"`

	// Dir is the cache directory (default: .cgdemo/cache)
	Dir string `yaml:"dir"`

	// TTLDays is the cache TTL in days (0 = no expiry)
	TTLDays int `yaml:"ttl_days"`

	// MaxEntries caps cached reports (0 = unlimited)
	MaxEntries int `yaml:"max_entries"`
}

// Config is the main configuration structure.
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis"`
	Output   OutputConfig   `yaml:"output"`
	Cache    CacheConfig    `yaml:"cache"`

	// Debug enables verbose logging
	Debug bool `yaml:"debug"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Threshold:  0,
			MaxDepth:   5,
			TopN:       10,
			Roots:      append([]string(nil), graph.DefaultRoots...),
			DeadCode:   true,
			HotPaths:   true,
			Clustering: true,
			SkipTests:  true,
		},
		Output: OutputConfig{
			Stats:     "function_stats.csv",
			Reduced:   "reduced_graph.dot",
			JSON:      "analysis_results.json",
			DeadCode:  "dead_code.txt",
			HotPaths:  "hot_paths.txt",
			Clusters:  "clusters.json",
			WriteJSON: true,
		},
		Cache: CacheConfig{
			Enabled:    true,
			Dir:        filepath.Join(".cgdemo", "cache"),
			TTLDays:    0,
			MaxEntries: 64,
		},
	}
}

// AnalysisOptions converts the analysis section for graph.Analyze.
func (c *Config) AnalysisOptions() graph.AnalysisOptions {
	return graph.AnalysisOptions{
		Threshold:  c.Analysis.Threshold,
		MaxDepth:   c.Analysis.MaxDepth,
		TopN:       c.Analysis.TopN,
		Roots:      append([]string(nil), c.Analysis.Roots...),
		DeadCode:   c.Analysis.DeadCode,
		HotPaths:   c.Analysis.HotPaths,
		Clustering: c.Analysis.Clustering,
	}
}

// Outputs converts the output section for graph.ExportAll. The JSON summary
// is left out when WriteJSON is off.
func (c *Config) Outputs() graph.Outputs {
	out := graph.Outputs{
		Stats:    c.Output.Stats,
		Reduced:  c.Output.Reduced,
		JSON:     c.Output.JSON,
		DeadCode: c.Output.DeadCode,
		HotPaths: c.Output.HotPaths,
		Clusters: c.Output.Clusters,
	}
	if !c.Output.WriteJSON {
		out.JSON = ""
	}
	return out
}

// BuildSettings are the scan settings a saved index must match.
func (c *Config) BuildSettings() graph.BuildSettings {
	return graph.BuildSettings{
		SkipTests:       c.Analysis.SkipTests,
		IncludeExternal: c.Analysis.IncludeExternal,
	}
}

// CacheOptions converts the cache section; a relative Dir is resolved
// against root.
func (c *Config) CacheOptions(root string) cache.Options {
	dir := c.Cache.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	return cache.Options{
		Dir:        dir,
		TTL:        time.Duration(c.Cache.TTLDays) * 24 * time.Hour,
		MaxEntries: c.Cache.MaxEntries,
		Enabled:    c.Cache.Enabled,
	}
}

// Load reads configuration for the project rooted at root and merges it
// with defaults.
func Load(root string) (*Config, error) {
	cfg := DefaultConfig()

	if p, err := userConfigPath(); err == nil {
		if err := mergeFile(cfg, p); err != nil {
			return nil, fmt.Errorf("parsing user config %s: %w", p, err)
		}
	}

	projectConfigPath := ProjectConfigPath(root)
	if err := mergeFile(cfg, projectConfigPath); err != nil {
		return nil, fmt.Errorf("parsing project config %s: %w", projectConfigPath, err)
	}

	dotenv, err := readDotenv(root)
	if err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(cfg, lookupWith(dotenv)); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFromPath reads configuration from a specific file path. Environment
// variables still override the file.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg, lookupWith(nil)); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// ProjectConfigPath is the project-level config file under root.
func ProjectConfigPath(root string) string {
	return filepath.Join(root, ".cgdemo", "config.yaml")
}

// mergeFile overlays a YAML file onto cfg. A missing file is not an error.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func readDotenv(root string) (map[string]string, error) {
	path := filepath.Join(root, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return vars, nil
}

// lookupWith resolves a variable from the process environment first, then
// from the .env values.
func lookupWith(dotenv map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok && v != ""
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Analysis.Threshold < 0 || c.Analysis.Threshold > 100 {
		errs = append(errs, "analysis.threshold must be between 0 and 100")
	}
	if c.Analysis.MaxDepth < 1 {
		errs = append(errs, "analysis.max_depth must be at least 1")
	}
	if c.Analysis.TopN < 1 {
		errs = append(errs, "analysis.top_n must be at least 1")
	}
	for _, r := range c.Analysis.Roots {
		if _, err := path.Match(r, ""); err != nil {
			errs = append(errs, fmt.Sprintf("analysis.roots: bad pattern %q", r))
		}
	}

	if c.Output.Stats == "" {
		errs = append(errs, "output.stats is required")
	}
	if c.Output.Reduced == "" {
		errs = append(errs, "output.reduced is required")
	}

	if c.Cache.Enabled && c.Cache.Dir == "" {
		errs = append(errs, "cache.dir required when cache is enabled")
	}
	if c.Cache.TTLDays < 0 {
		errs = append(errs, "cache.ttl_days must be non-negative")
	}
	if c.Cache.MaxEntries < 0 {
		errs = append(errs, "cache.max_entries must be non-negative")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// userConfigPath returns the path to the user configuration file.
func userConfigPath() (string, error) {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "cgdemo", "config.yaml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, ".config", "cgdemo", "config.yaml"), nil
}

// applyEnvOverrides applies CGDEMO_* overrides to the config.
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []string

	if v, ok := lookup("CGDEMO_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("CGDEMO_THRESHOLD: %v", err))
		} else {
			cfg.Analysis.Threshold = f
		}
	}
	if v, ok := lookup("CGDEMO_MAX_DEPTH"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("CGDEMO_MAX_DEPTH: %v", err))
		} else {
			cfg.Analysis.MaxDepth = n
		}
	}
	if v, ok := lookup("CGDEMO_TOP_N"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("CGDEMO_TOP_N: %v", err))
		} else {
			cfg.Analysis.TopN = n
		}
	}
	if v, ok := lookup("CGDEMO_ROOTS"); ok {
		var roots []string
		for _, r := range strings.Split(v, ",") {
			if r = strings.TrimSpace(r); r != "" {
				roots = append(roots, r)
			}
		}
		cfg.Analysis.Roots = roots
	}

	if v, ok := lookup("CGDEMO_CACHE_DIR"); ok {
		cfg.Cache.Dir = v
	}
	if v, ok := lookup("CGDEMO_NO_CACHE"); ok && truthy(v) {
		cfg.Cache.Enabled = false
	}

	if v, ok := lookup("CGDEMO_DEBUG"); ok && truthy(v) {
		cfg.Debug = true
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func truthy(v string) bool {
	return v == "1" || strings.ToLower(v) == "true"
}

// WriteDefault creates a default config file at the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	content := "# cgdemo configuration\n\n" + string(data)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
