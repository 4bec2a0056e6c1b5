package pkgcheck

import (
	"regexp"
	"strings"
)

var (
	// continuation matches a quoted-array value broken across physical
	// lines: a closing quote, the line break, and any indentation of the
	// continuation line. The continuation line need not be indented.
	continuation = regexp.MustCompile(`'\n[ \t]*`)
	spaceRuns    = regexp.MustCompile(`[ \t]+`)
)

// normalizeLines rewrites declaration-file text into a canonical line form
// so that pure reformatting never registers as a content change:
//
//   - multi-line quoted-array values are folded onto one logical line
//   - blank lines and full-line comments are dropped
//   - statements joined by ";" on one physical line are split apart so the
//     diff judges each statement independently
//
// The result is stable: normalizing already-normalized text is a no-op.
func normalizeLines(src string) []string {
	folded := continuation.ReplaceAllString(strings.TrimSpace(src), "' ")
	folded = spaceRuns.ReplaceAllString(folded, " ")

	var lines []string
	for _, line := range strings.Split(folded, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, stmt := range strings.SplitAfter(line, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			lines = append(lines, stmt)
		}
	}

	return lines
}

// Normalize returns the canonical text form of a declaration file.
func Normalize(src string) string {
	lines := normalizeLines(src)
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
