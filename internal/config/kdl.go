package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

const configFileName = ".codesage.kdl"

// loadKDL loads dir/.codesage.kdl if present, returning nil, nil when the
// file does not exist so callers can fall through to the next layer.
func loadKDL(dir string) (*Config, error) {
	path := filepath.Join(dir, configFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", configFileName, err)
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, err
	}

	if abs, err := filepath.Abs(dir); err == nil {
		cfg.ProjectRoot = abs
	}
	return cfg, nil
}

func parseKDL(content string) (*Config, error) {
	cfg := defaultConfig()
	cfg.CacheBudgets = map[string]CacheBudget{} // only set if the document defines any

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", configFileName, err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "options":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "extract_features":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Defaults.ExtractFeatures = b
					}
				case "extract_blocks":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Defaults.ExtractBlocks = b
					}
				case "include_ast":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Defaults.IncludeAST = b
					}
				case "pattern_timeout_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Defaults.PatternTimeoutMS = v
					}
				case "request_cache_enabled":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Defaults.RequestCacheEnabled = b
					}
				}
			}
		case "cache":
			for _, cn := range n.Children {
				name := nodeName(cn)
				budget := CacheBudget{MaxBytes: 16 * 1024 * 1024, DefaultTTL: 600}
				for _, bn := range cn.Children {
					switch nodeName(bn) {
					case "max_bytes":
						if v, ok := firstIntArg(bn); ok {
							budget.MaxBytes = int64(v)
						}
					case "ttl_seconds":
						if v, ok := firstIntArg(bn); ok {
							budget.DefaultTTL = v
						}
					case "adaptive_ttl":
						if b, ok := firstBoolArg(bn); ok {
							budget.AdaptiveTTL = b
						}
					}
				}
				cfg.CacheBudgets[name] = budget
			}
		case "worker_pool_size":
			if v, ok := firstIntArg(n); ok {
				cfg.WorkerPoolSize = v
			}
		case "exclude":
			cfg.Exclude = collectStringArgs(n)
		}
	}

	if len(cfg.CacheBudgets) == 0 {
		cfg.CacheBudgets = defaultConfig().CacheBudgets
	}

	return cfg, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}
