// Command codesage is a thin demo binary over the Unified Parser facade: it
// walks a directory, classifies and parses every file it can, and prints one
// line per file with its language, parser kind, and feature count. It is not
// a contracted interface; a host embeds internal/unified directly.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/standardbeagle/codesage/internal/astbackend"
	"github.com/standardbeagle/codesage/internal/cache"
	"github.com/standardbeagle/codesage/internal/config"
	"github.com/standardbeagle/codesage/internal/custombackend"
	"github.com/standardbeagle/codesage/internal/engine"
	"github.com/standardbeagle/codesage/internal/patterns"
	"github.com/standardbeagle/codesage/internal/telemetry"
	"github.com/standardbeagle/codesage/internal/types"
	"github.com/standardbeagle/codesage/internal/unified"
)

func main() {
	root := pflag.StringP("root", "r", ".", "directory to scan")
	includeAST := pflag.Bool("ast", false, "include parse trees in parse results (not printed)")
	showAudit := pflag.Bool("audit", false, "print the telemetry audit log on exit")
	pflag.Parse()

	cfg, err := config.LoadWithRoot(*root)
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("config: %v", err))
		os.Exit(1)
	}

	ast := astbackend.New()
	reg := patterns.New(ast)
	astCache := cache.NewNamed("ast", cfg.CacheBudgets["ast"].MaxBytes, time.Duration(cfg.CacheBudgets["ast"].DefaultTTL)*time.Second, cfg.CacheBudgets["ast"].AdaptiveTTL)
	eng := engine.New(ast, reg, cache.NewNamed("pattern", cfg.CacheBudgets["pattern"].MaxBytes, time.Duration(cfg.CacheBudgets["pattern"].DefaultTTL)*time.Second, cfg.CacheBudgets["pattern"].AdaptiveTTL))
	tel := telemetry.New()
	parser := unified.New(ast, custombackend.New(), reg, eng, astCache, tel)

	opts := cfg.Defaults
	opts.IncludeAST = *includeAST

	var files, failed int
	walkErr := filepath.WalkDir(cfg.ProjectRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(cfg.ProjectRoot, path)
		if relErr == nil && cfg.IsExcluded(rel) {
			return nil
		}

		source, readErr := os.ReadFile(path)
		if readErr != nil {
			fmt.Fprintln(os.Stderr, color.RedString("%s: %v", path, readErr))
			failed++
			return nil
		}

		result := parser.Parse(context.Background(), path, source, opts)
		files++
		printResult(rel, result)
		if !result.Success {
			failed++
		}
		return nil
	})
	if walkErr != nil {
		fmt.Fprintln(os.Stderr, color.RedString("walk: %v", walkErr))
		os.Exit(1)
	}

	fmt.Printf("\n%s files=%d failed=%d\n", color.CyanString("done"), files, failed)

	if *showAudit {
		for _, entry := range tel.AuditLog() {
			fmt.Printf("%s [%s] %s: %v\n", entry.Timestamp.Format(time.RFC3339), entry.Stage, entry.LanguageID, entry.Err)
		}
	}
}

func printResult(path string, result types.ParserResult) {
	status := color.GreenString("ok")
	if !result.Success {
		status = color.RedString("fail")
	}

	total := 0
	for _, items := range result.Features {
		total += len(items)
	}

	fmt.Printf("%-7s %-40s lang=%-12s kind=%-10s matches=%-4d features=%-4d blocks=%d\n",
		status, path, result.Classification.LanguageID, result.Classification.ParserKind,
		len(result.Matches), total, len(result.Blocks))

	for _, e := range result.Errors {
		fmt.Printf("        %s %v\n", color.YellowString("!"), e)
	}
}
