// Package sanitize cleans target names typed or pasted by the user.
//
// Names copied from a browser or a right-to-left editor often carry
// invisible characters (bidi marks, zero-width spaces, BOMs) that end up in
// the file title on the wiki. MediaWiki strips some of them and rejects
// others, so they are removed up front.
package sanitize

import (
	"regexp"
	"strings"
)

// invisibleChars are removed from names. ZWNJ and ZWJ are kept: they are
// meaningful in several scripts.
var invisibleChars = []string{
	"\u200B", // Zero-width space
	"\uFEFF", // Zero-width no-break space (BOM)
	"\u00AD", // Soft hyphen
	"\u2060", // Word joiner
	"\u180E", // Mongolian vowel separator
	"\u200E", // Left-to-right mark
	"\u200F", // Right-to-left mark
	"\u202A", // Left-to-right embedding
	"\u202B", // Right-to-left embedding
	"\u202C", // Pop directional formatting
	"\u202D", // Left-to-right override
	"\u202E", // Right-to-left override
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// TargetName removes invisible characters, collapses whitespace runs
// (including newlines) to one space and trims the result.
func TargetName(name string) string {
	if name == "" {
		return name
	}
	for _, char := range invisibleChars {
		name = strings.ReplaceAll(name, char, "")
	}
	name = whitespaceRun.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// illegalTitleChars cannot appear in a MediaWiki page title.
const illegalTitleChars = "#<>[]|{}"

// IllegalTitleChars returns the characters of name that a wiki will refuse
// in a title, in order of first appearance, each once.
func IllegalTitleChars(name string) []rune {
	var out []rune
	seen := make(map[rune]bool)
	for _, r := range name {
		if (strings.ContainsRune(illegalTitleChars, r) || r < 0x20 || r == 0x7f) && !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}
