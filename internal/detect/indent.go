package detect

import "strings"

// indentUnit is the indentation width the scans normalize to.
const indentUnit = 4

// InferIndent determines the correct indentation for lines[idx] from
// context, returning the indent as a string of spaces. It scans backward
// for the nearest non-blank, non-comment line that either opens a block
// (ends with ":", so correct indent is one unit deeper) or already sits
// on a unit boundary (correct indent is that width). Lines with
// non-conforming indentation are not trusted and the scan keeps going.
// Reaching the top of the file means top level.
func InferIndent(lines []string, idx int) string {
	for i := idx - 1; i >= 0; i-- {
		prev := lines[i]
		stripped := strings.TrimSpace(prev)
		if stripped == "" || strings.HasPrefix(stripped, "#") {
			continue
		}

		if strings.HasSuffix(stripped, ":") {
			return strings.Repeat(" ", indentWidth(prev)+indentUnit)
		}

		if w := indentWidth(prev); w%indentUnit == 0 {
			return strings.Repeat(" ", w)
		}
	}
	return ""
}

// indentWidth counts leading whitespace characters. Tabs count as one
// column each; the linter's E1xx class already flags tab/space mixing, so
// the backward scan only ever trusts space-indented lines.
func indentWidth(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}
