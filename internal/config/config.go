// Package config loads the engine's ambient, on-disk configuration: default
// Options for the Unified Parser, per-cache byte budgets and TTLs, the
// worker-pool size, and exclusion globs describing paths a caller should
// skip without classifying them.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/codesage/internal/types"
)

// CacheBudget is the byte budget and default TTL for one named persistent
// cache (ast, pattern, classification).
type CacheBudget struct {
	MaxBytes   int64
	DefaultTTL int // seconds
	// AdaptiveTTL enables multiplying DefaultTTL by an access-frequency
	// derived factor in [0.5, 4.0] per entry.
	AdaptiveTTL bool
}

// Config is the ambient document loaded from .codesage.kdl (project) and
// ~/.codesage.kdl (global), with project values taking precedence.
type Config struct {
	ProjectRoot string

	Defaults types.Options

	CacheBudgets map[string]CacheBudget

	WorkerPoolSize int

	Exclude []string
}

func defaultConfig() *Config {
	cwd, _ := os.Getwd()
	return &Config{
		ProjectRoot: cwd,
		Defaults: types.Options{
			ExtractFeatures:     true,
			ExtractBlocks:       true,
			IncludeAST:          false,
			PatternTimeoutMS:    5000,
			RequestCacheEnabled: true,
		},
		CacheBudgets: map[string]CacheBudget{
			"ast":            {MaxBytes: 64 * 1024 * 1024, DefaultTTL: 600, AdaptiveTTL: true},
			"pattern":        {MaxBytes: 16 * 1024 * 1024, DefaultTTL: 1800, AdaptiveTTL: true},
			"classification": {MaxBytes: 4 * 1024 * 1024, DefaultTTL: 3600, AdaptiveTTL: false},
		},
		WorkerPoolSize: minInt(4, runtime.NumCPU()),
		Exclude: []string{
			"**/.git/**",
			"**/node_modules/**",
			"**/vendor/**",
			"**/dist/**",
			"**/build/**",
			"**/.cache/**",
			"**/*.min.js",
			"**/*.min.css",
		},
	}
}

// Load loads the global config, then the project config under root,
// merging project values over global defaults.
func Load(root string) (*Config, error) {
	return LoadWithRoot(root)
}

// LoadWithRoot loads the global config first and the project config
// second. Each document is parsed on top of the hard defaults, so when
// both exist the project document wins on every field, including fields
// it does not set: those take the hard defaults, not the global values.
// Exclude is the exception: it is the union of both documents.
func LoadWithRoot(root string) (*Config, error) {
	searchDir := root
	if searchDir == "" {
		searchDir = "."
	}

	var base *Config
	if home, err := os.UserHomeDir(); err == nil {
		if g, err := loadKDL(home); err == nil && g != nil {
			base = g
		}
	}

	project, err := loadKDL(searchDir)
	if err != nil {
		return nil, err
	}

	switch {
	case base != nil && project != nil:
		return mergeConfigs(base, project), nil
	case project != nil:
		if abs, err := filepath.Abs(searchDir); err == nil {
			project.ProjectRoot = abs
		}
		return project, nil
	case base != nil:
		if abs, err := filepath.Abs(searchDir); err == nil {
			base.ProjectRoot = abs
		}
		return base, nil
	default:
		cfg := defaultConfig()
		if abs, err := filepath.Abs(searchDir); err == nil {
			cfg.ProjectRoot = abs
		}
		return cfg, nil
	}
}

// mergeConfigs overlays project on top of base: any slice/map project set
// is used outright; Exclude is the union of both so project configs extend
// rather than discard the base exclusion set.
func mergeConfigs(base, project *Config) *Config {
	merged := *project
	if len(project.Exclude) == 0 {
		merged.Exclude = base.Exclude
	} else {
		seen := make(map[string]struct{}, len(base.Exclude)+len(project.Exclude))
		var union []string
		for _, e := range base.Exclude {
			if _, ok := seen[e]; !ok {
				seen[e] = struct{}{}
				union = append(union, e)
			}
		}
		for _, e := range project.Exclude {
			if _, ok := seen[e]; !ok {
				seen[e] = struct{}{}
				union = append(union, e)
			}
		}
		merged.Exclude = union
	}
	if len(project.CacheBudgets) == 0 {
		merged.CacheBudgets = base.CacheBudgets
	}
	if project.WorkerPoolSize == 0 {
		merged.WorkerPoolSize = base.WorkerPoolSize
	}
	return &merged
}

// IsExcluded reports whether relPath matches any of the configured
// exclusion globs, letting a caller skip build artifacts, vendored trees,
// and minified assets before they reach the classifier.
func (c *Config) IsExcluded(relPath string) bool {
	cleaned := filepath.ToSlash(relPath)
	for _, pattern := range c.Exclude {
		if ok, err := doublestar.Match(pattern, cleaned); err == nil && ok {
			return true
		}
	}
	return false
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
