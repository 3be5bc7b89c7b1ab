package cache

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// ContentHash computes the stable digest used as a cache key component
// throughout C2/C7, per the GLOSSARY's "Content hash" entry.
func ContentHash(b []byte) string {
	return strconv.FormatUint(xxhash.Sum64(b), 16)
}

// PatternKey builds the persistent pattern-cache key for one
// (language, pattern_id, content_hash) terminal result, per §4.7's
// memoization rule.
func PatternKey(languageID, patternID, contentHash string) string {
	return languageID + "\x00" + patternID + "\x00" + contentHash
}

// ASTKey builds the persistent ast-cache key for one (language,
// content_hash) parse result.
func ASTKey(languageID, contentHash string) string {
	return languageID + "\x00" + contentHash
}
