package convo

import (
	"html"
	"regexp"
	"strings"
)

var (
	htmlTagRe      = regexp.MustCompile(`<[^>]*>`)
	multiBlankRe   = regexp.MustCompile(`\n{3,}`)
	multiSpaceRe   = regexp.MustCompile(`[ \t]{2,}`)
	trailingSpaces = regexp.MustCompile(`[ \t]+\n`)
	jsonEscapeRe   = regexp.MustCompile(`\\[ntr"\\]`)

	// suspiciousRe flags the characters the hygiene pass exists to clean up:
	// markup, HTML entities, and literal JSON escape sequences. Text under
	// hygieneThreshold with none of these is passed through untouched.
	suspiciousRe = regexp.MustCompile(`<[^>]*>|&[a-zA-Z#][a-zA-Z0-9]*;|\\[ntr"\\]`)
)

// hygieneThreshold is the "small threshold" the spec names: short, clean
// text is retained verbatim rather than run through the full pass.
const hygieneThreshold = 80

// hygiene strips stray markup, unescapes common JSON artifacts, and
// normalizes whitespace in text a model produced, matching the corpus's
// general posture toward model output: an LLM occasionally echoes HTML
// entities or markdown-adjacent tags, emits a literal `\n`/`\"` instead of
// the real character, and leaves irregular blank-line runs around sentinel
// markers.
func hygiene(s string) string {
	if len(s) < hygieneThreshold && !suspiciousRe.MatchString(s) {
		return s
	}
	s = html.UnescapeString(s)
	s = htmlTagRe.ReplaceAllString(s, "")
	s = unescapeJSONArtifacts(s)
	s = trailingSpaces.ReplaceAllString(s, "\n")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	s = multiBlankRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// unescapeJSONArtifacts replaces literal two-character JSON escape
// sequences (e.g. a backslash followed by "n") with the character they
// represent, for vendors that occasionally leak a JSON-escaped string into
// plain text output instead of the real character.
func unescapeJSONArtifacts(s string) string {
	return jsonEscapeRe.ReplaceAllStringFunc(s, func(m string) string {
		switch m {
		case `\n`:
			return "\n"
		case `\t`:
			return "\t"
		case `\r`:
			return "\r"
		case `\"`:
			return `"`
		case `\\`:
			return `\`
		}
		return m
	})
}

// Hygiene applies the text-hygiene pass to a Text block's value, returning
// a new Text block. It is a no-op on every other block variant, including
// Thinking — thinking traces are never shown to a user and are left as the
// vendor produced them.
func Hygiene(b ContentBlock) ContentBlock {
	t, ok := b.(Text)
	if !ok {
		return b
	}
	return Text{Value: hygiene(t.Value)}
}
