package patterns

import "github.com/standardbeagle/codesage/internal/types"

// definition is the raw, uncompiled shape of one pattern, as authored in
// the seed set below. The registry turns each definition into a
// types.Pattern at compile time.
type definition struct {
	id            string
	category      types.PatternCategory
	query         string // tree-sitter query source; empty means regex-only
	extract       types.ExtractSpec
	testCases     []types.TestCase
	fallbackIDs   []string
	recoveryRegex string
}

func identityExtract(primaryCapture string) types.ExtractSpec {
	return func(captures map[string][]types.Span, tree *types.ParseTree, source []byte) map[string]any {
		spans := captures[primaryCapture]
		if len(spans) == 0 {
			return nil
		}
		span := spans[0]
		return map[string]any{
			"text": string(source[span.StartByte:span.EndByte]),
		}
	}
}

// seedDefinitions is the embedded pattern set for the languages this
// module actually ships grammars for. It is intentionally small: a few
// syntax, structure, documentation and error-handling patterns per
// language, not an exhaustive query library; no seed pattern is in the
// naming category.
func seedDefinitions(languageID string) []definition {
	switch languageID {
	case "python":
		return pythonDefinitions
	case "go":
		return goDefinitions
	case "javascript", "typescript":
		return jsDefinitions
	case "rust":
		return rustDefinitions
	default:
		return genericDefinitions
	}
}

var pythonDefinitions = []definition{
	{
		id:       "python.function_definition",
		category: types.CategorySyntax,
		query:    `(function_definition name: (identifier) @name) @def`,
		extract:  identityExtract("name"),
		testCases: []types.TestCase{
			{Input: "def foo():\n    pass\n", ExpectedCapture: "name", ExpectedText: "foo"},
		},
		// Regex recovery runs when the AST query yields no matches (e.g.
		// on malformed input); matches "def <name>(" at line start.
		recoveryRegex: `^\s*def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`,
	},
	{
		id:       "python.class_definition",
		category: types.CategorySyntax,
		query:    `(class_definition name: (identifier) @name) @def`,
		extract:  identityExtract("name"),
		testCases: []types.TestCase{
			{Input: "class Foo:\n    pass\n", ExpectedCapture: "name", ExpectedText: "Foo"},
		},
		recoveryRegex: `^\s*class\s+([A-Za-z_][A-Za-z0-9_]*)`,
	},
	{
		id:       "python.docstring",
		category: types.CategoryDocumentation,
		query:    `(function_definition body: (block . (expression_statement (string) @doc)))`,
		extract:  identityExtract("doc"),
	},
	{
		id:       "python.try_except",
		category: types.CategorySyntax,
		query:    `(try_statement) @try`,
		extract:  identityExtract("try"),
	},
}

var goDefinitions = []definition{
	{
		id:       "go.function_declaration",
		category: types.CategorySyntax,
		query:    `(function_declaration name: (identifier) @name) @def`,
		extract:  identityExtract("name"),
		testCases: []types.TestCase{
			{Input: "func Foo() {}\n", ExpectedCapture: "name", ExpectedText: "Foo"},
		},
		recoveryRegex: `^func\s+(?:\([^)]*\)\s*)?([A-Za-z_][A-Za-z0-9_]*)\s*\(`,
	},
	{
		id:       "go.error_return",
		category: types.CategorySyntax,
		query:    `(if_statement condition: (binary_expression right: (identifier) @cmp (#eq? @cmp "nil"))) @guard`,
		extract:  identityExtract("guard"),
	},
	{
		id:       "go.type_declaration",
		category: types.CategoryStructure,
		query:    `(type_declaration (type_spec name: (type_identifier) @name)) @def`,
		extract:  identityExtract("name"),
	},
}

var jsDefinitions = []definition{
	{
		id:       "js.function_declaration",
		category: types.CategorySyntax,
		query:    `(function_declaration name: (identifier) @name) @def`,
		extract:  identityExtract("name"),
		testCases: []types.TestCase{
			{Input: "function foo() {}\n", ExpectedCapture: "name", ExpectedText: "foo"},
		},
		recoveryRegex: `^\s*function\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*\(`,
	},
	{
		id:       "js.class_declaration",
		category: types.CategorySyntax,
		query:    `(class_declaration name: (identifier) @name) @def`,
		extract:  identityExtract("name"),
	},
	{
		id:       "js.try_statement",
		category: types.CategorySyntax,
		query:    `(try_statement) @try`,
		extract:  identityExtract("try"),
	},
}

var rustDefinitions = []definition{
	{
		id:       "rust.function_item",
		category: types.CategorySyntax,
		query:    `(function_item name: (identifier) @name) @def`,
		extract:  identityExtract("name"),
		recoveryRegex: `^\s*(?:pub\s+)?fn\s+([A-Za-z_][A-Za-z0-9_]*)`,
	},
	{
		id:       "rust.result_type",
		category: types.CategoryErrorHandling,
		query:    `(generic_type type: (type_identifier) @name (#eq? @name "Result")) @result`,
		extract:  identityExtract("name"),
	},
}

// genericDefinitions backs every grammar without a dedicated seed set
// above; it covers only the syntax category via the tree's own error
// marking, since grammar-specific node kinds would need per-language
// authoring this module does not ship.
var genericDefinitions = []definition{
	{
		id:       "generic.parse_error",
		category: types.CategorySyntax,
		query:    ``,
		fallbackIDs: nil,
		recoveryRegex: `.*`,
	},
}
