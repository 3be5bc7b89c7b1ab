// Package classifier implements the engine's file classification (C1):
// deciding language, parser kind, and binary-ness from a path and a bounded
// byte prefix, without ever reading the whole file.
package classifier

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/standardbeagle/codesage/internal/errors"
	"github.com/standardbeagle/codesage/internal/types"
)

// MaxPrefixBytes is the largest prefix the classifier will sniff, per §4.1.
const MaxPrefixBytes = 64 * 1024

// exactFilenames maps a full base filename to a language id. Checked before
// the extension table, per §4.1 step 1.
var exactFilenames = map[string]string{
	"Dockerfile":       "dockerfile",
	"Makefile":         "makefile",
	"makefile":         "makefile",
	"CMakeLists.txt":   "cmake",
	"Gemfile":          "ruby",
	"Rakefile":         "ruby",
	".editorconfig":    "editorconfig",
	".gitignore":       "plaintext",
	"go.mod":           "go-mod",
	"go.sum":           "go-mod",
}

// extensionLanguages maps a lower-cased extension (with leading dot) to a
// language id, driving both the AST backend's grammar roster and the
// custom backend's format roster.
var extensionLanguages = map[string]string{
	".go":     "go",
	".py":     "python",
	".pyi":    "python",
	".js":     "javascript",
	".jsx":    "javascript",
	".mjs":    "javascript",
	".cjs":    "javascript",
	".ts":     "typescript",
	".tsx":    "typescript",
	".rs":     "rust",
	".c":      "c",
	".h":      "c",
	".cc":     "cpp",
	".cpp":    "cpp",
	".cxx":    "cpp",
	".hpp":    "cpp",
	".hh":     "cpp",
	".java":   "java",
	".cs":     "csharp",
	".php":    "php",
	".rb":     "ruby",
	".zig":    "zig",
	".md":     "markdown",
	".markdown": "markdown",
	".rst":    "rst",
	".adoc":   "asciidoc",
	".asciidoc": "asciidoc",
	".ini":    "ini",
	".cfg":    "ini",
	".toml":   "toml",
	".yaml":   "yaml",
	".yml":    "yaml",
	".xml":    "xml",
	".json":   "json",
	".graphql": "graphql",
	".gql":    "graphql",
	".env":    "env",
	".txt":    "plaintext",
}

// docFormats are languages the Custom Backend treats as documentation.
var docFormats = map[string]bool{
	"markdown": true, "rst": true, "asciidoc": true, "plaintext": true,
}

// configFormats are languages the Custom Backend treats as config/data.
var configFormats = map[string]bool{
	"ini": true, "toml": true, "yaml": true, "xml": true, "json": true,
	"editorconfig": true, "env": true, "graphql": true, "dockerfile": true,
	"makefile": true, "cmake": true, "go-mod": true,
}

// astLanguages are languages served by the AST backend; classification
// assigns ParserKindAST for these and ParserKindCustom for everything else
// with a registered language id.
var astLanguages = map[string]bool{
	"go": true, "python": true, "javascript": true, "typescript": true,
	"rust": true, "c": true, "cpp": true, "java": true, "csharp": true,
	"php": true, "ruby": true, "zig": true,
}

// languageFallbacks implements the fixed fallback table of
// §4.1: earlier entries are preferred languages to retry with if the
// primary language has no usable backend.
var languageFallbacks = map[string][]string{
	"typescript": {"javascript"},
}

// binaryExtensions mirrors the engine's binary-detection extension table:
// true means "always binary", false means "text despite appearances".
var binaryExtensions = map[string]bool{
	".woff": true, ".woff2": true, ".ttf": true, ".otf": true, ".eot": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".ico": true, ".webp": true, ".svg": false, ".tiff": true, ".tif": true,
	".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".xz": true,
	".7z": true, ".rar": true, ".jar": true, ".war": true, ".ear": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".a": true,
	".o": true, ".obj": true, ".bin": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".wmv": true,
	".flv": true, ".wav": true, ".flac": true, ".ogg": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true,
	".db": true, ".sqlite": true, ".sqlite3": true,
	".min.js": false, ".min.css": false, ".map": false, ".proto": false,
	".pyc": true, ".pyo": true, ".class": true, ".pickle": true, ".pkl": true,
}

// Classify implements C1. bytesPrefix must be at most MaxPrefixBytes; the
// caller is responsible for truncating a larger read.
func Classify(path string, bytesPrefix []byte) (types.Classification, error) {
	if bytesPrefix == nil {
		return types.Classification{}, errors.NewClassificationError(path, nil)
	}

	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(path))

	if binary, confidence := detectBinary(path, ext, bytesPrefix); binary {
		return types.Classification{
			LanguageID: "binary",
			ParserKind: types.ParserKindNone,
			FileKind:   types.FileKindBinary,
			Confidence: confidence,
		}, nil
	}

	// Stage 1: exact filename table.
	if lang, ok := exactFilenames[base]; ok {
		return classification(lang, types.ConfidenceExactFilename), nil
	}

	// Stage 2: extension table.
	if lang, ok := extensionLanguages[ext]; ok {
		return classification(lang, types.ConfidenceExtension), nil
	}

	// Stage 3: shebang sniff.
	if lang, ok := shebangLanguage(bytesPrefix); ok {
		return classification(lang, types.ConfidenceShebang), nil
	}

	// Stage 4: content heuristics.
	if lang, ok := contentHeuristicLanguage(bytesPrefix); ok {
		return classification(lang, types.ConfidenceContentHeuristic), nil
	}

	// Fallback: plaintext, zero confidence.
	return classification("plaintext", types.ConfidencePlaintextFallback), nil
}

func classification(lang string, confidence float64) types.Classification {
	kind := types.ParserKindCustom
	fileKind := types.FileKindCode
	switch {
	case astLanguages[lang]:
		kind = types.ParserKindAST
	case docFormats[lang]:
		fileKind = types.FileKindDoc
	case configFormats[lang]:
		fileKind = types.FileKindConfig
	case lang == "plaintext":
		fileKind = types.FileKindDoc
	}

	fallbacks := append([]string(nil), languageFallbacks[lang]...)
	if docFormats[lang] {
		fallbacks = append(fallbacks, "plaintext")
	}

	return types.Classification{
		LanguageID: lang,
		ParserKind: kind,
		FileKind:   fileKind,
		Confidence: confidence,
		Fallbacks:  fallbacks,
	}
}

// shebangLanguage inspects a leading "#!" line for known interpreters.
func shebangLanguage(prefix []byte) (string, bool) {
	if !bytes.HasPrefix(prefix, []byte("#!")) {
		return "", false
	}
	nl := bytes.IndexByte(prefix, '\n')
	line := prefix
	if nl >= 0 {
		line = prefix[:nl]
	}
	switch {
	case bytes.Contains(line, []byte("python")):
		return "python", true
	case bytes.Contains(line, []byte("node")):
		return "javascript", true
	case bytes.Contains(line, []byte("ruby")):
		return "ruby", true
	case bytes.Contains(line, []byte("/bin/sh")), bytes.Contains(line, []byte("bash")):
		return "plaintext", true
	}
	return "", false
}

// contentHeuristicLanguage applies the content heuristics named in §4.1:
// XML prolog and TOML table headers.
func contentHeuristicLanguage(prefix []byte) (string, bool) {
	trimmed := bytes.TrimSpace(prefix)
	if bytes.HasPrefix(trimmed, []byte("<?xml")) {
		return "xml", true
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if end := bytes.IndexByte(trimmed, ']'); end > 0 && end < 200 {
			return "toml", true
		}
	}
	return "", false
}

// detectBinary combines extension and magic-number detection, mirroring
// the engine's binary_detector.go, and reports the confidence level that
// applies to whichever stage made the call.
func detectBinary(path, ext string, content []byte) (bool, float64) {
	if strings.Contains(path, ".min.") {
		if strings.HasSuffix(path, ".min.js") || strings.HasSuffix(path, ".min.css") {
			return false, 0
		}
	}
	if isBinary, ok := binaryExtensions[ext]; ok {
		if isBinary {
			return true, types.ConfidenceExtension
		}
		// Extension is explicitly known-text (e.g. .svg); skip sniffing.
		return false, 0
	}
	if isBinaryByContent(content) {
		return true, types.ConfidenceContentHeuristic
	}
	return false, 0
}

func isBinaryByContent(content []byte) bool {
	if len(content) == 0 {
		return false
	}
	checkLen := len(content)
	if checkLen > 512 {
		checkLen = 512
	}
	sample := content[:checkLen]

	signatures := [][]byte{
		{0x1F, 0x8B},                   // gzip
		{0x50, 0x4B, 0x03, 0x04},       // ZIP
		{0x50, 0x4B, 0x05, 0x06},       // ZIP (empty)
		{0x89, 0x50, 0x4E, 0x47},       // PNG
		{0xFF, 0xD8, 0xFF},             // JPEG
		{0x47, 0x49, 0x46, 0x38},       // GIF
		{0x25, 0x50, 0x44, 0x46},       // PDF
		{0x7F, 0x45, 0x4C, 0x46},       // ELF
		{0x4D, 0x5A},                   // DOS/Windows exe
		{0xCA, 0xFE, 0xBA, 0xBE},       // Mach-O
		{0x77, 0x4F, 0x46, 0x46},       // WOFF
		{0x77, 0x4F, 0x46, 0x32},       // WOFF2
	}
	for _, sig := range signatures {
		if bytes.HasPrefix(sample, sig) {
			return true
		}
	}

	nullBytes := 0
	nonPrintable := 0
	for _, b := range sample {
		if b == 0 {
			nullBytes++
		}
		if b < 0x20 && b != 0x09 && b != 0x0A && b != 0x0D {
			nonPrintable++
		}
	}
	if nullBytes > 0 {
		return true
	}
	if nonPrintable > len(sample)*30/100 {
		return true
	}
	return false
}
