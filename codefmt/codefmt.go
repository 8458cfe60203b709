// Package codefmt reflows scraped solution source into readable, consistently
// indented text. Formatting is advisory: only whitespace and line breaks are
// ever changed, token content is left untouched, and malformed input (such as
// unbalanced braces) is tolerated rather than rejected.
package codefmt

import "strings"

// Format normalizes line endings, recovers line breaks for effectively
// single-line input, collapses long runs of blank lines, and re-indents by
// brace depth. It is deterministic and idempotent: Format(Format(s)) equals
// Format(s) for every input.
func Format(code string) string {
	if strings.TrimSpace(code) == "" {
		return ""
	}

	code = normalizeNewlines(code)

	// Input that renders as one or two lines almost certainly lost its line
	// breaks somewhere between the judge and us. Recover them heuristically.
	if strings.Count(code, "\n") < 2 {
		code = splitSingleLine(code)
	}

	lines := strings.Split(code, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	lines = collapseBlankRuns(lines)

	return reindent(lines)
}

// normalizeNewlines converts CRLF and bare CR line endings to LF.
func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// splitSingleLine inserts line breaks into minified source: after include
// directives, after statement terminators that are not inside an open
// angle-bracket nesting (template arguments), after opening braces, and
// before closing braces. Existing line breaks are preserved.
func splitSingleLine(code string) string {
	var b strings.Builder
	angleDepth := 0

	writeBreak := func() {
		out := b.String()
		if out != "" && !strings.HasSuffix(out, "\n") {
			b.WriteByte('\n')
		}
		angleDepth = 0
	}

	for i := 0; i < len(code); i++ {
		// Include directives keep their <...> or "..." argument on the same
		// line; the break goes after the whole directive.
		if strings.HasPrefix(code[i:], "#include") {
			end := includeEnd(code, i)
			b.WriteString(code[i:end])
			writeBreak()
			i = end - 1
			continue
		}

		c := code[i]
		switch c {
		case '\n':
			b.WriteByte(c)
			angleDepth = 0
		case '<':
			b.WriteByte(c)
			angleDepth++
		case '>':
			b.WriteByte(c)
			if angleDepth > 0 {
				angleDepth--
			}
		case ';':
			b.WriteByte(c)
			if angleDepth == 0 {
				writeBreak()
			}
		case '{':
			b.WriteByte(c)
			writeBreak()
		case '}':
			writeBreak()
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

// includeEnd returns the index one past the end of the include directive
// starting at start.
func includeEnd(code string, start int) int {
	rest := code[start:]
	for i := len("#include"); i < len(rest); i++ {
		switch rest[i] {
		case '>', '\n':
			return start + i + 1
		case '"':
			// Closing quote of the path, not the opening one.
			if j := strings.IndexByte(rest[len("#include"):i], '"'); j >= 0 {
				return start + i + 1
			}
		}
	}
	return len(code)
}

// collapseBlankRuns replaces every run of three or more blank lines with a
// single blank line. Shorter runs pass through untouched.
func collapseBlankRuns(lines []string) []string {
	out := make([]string, 0, len(lines))
	blanks := 0
	flush := func() {
		if blanks >= 3 {
			blanks = 1
		}
		for ; blanks > 0; blanks-- {
			out = append(out, "")
		}
	}
	for _, line := range lines {
		if line == "" {
			blanks++
			continue
		}
		flush()
		out = append(out, line)
	}
	flush()
	return out
}

// reindent emits each line prefixed with four spaces per brace depth. A line
// beginning with a closing brace is dedented before being emitted; a line
// ending in an opening brace indents what follows. Depth never goes below
// zero, so unbalanced input cannot break the pass.
func reindent(lines []string) string {
	var b strings.Builder
	depth := 0
	for _, line := range lines {
		if line == "" {
			b.WriteByte('\n')
			continue
		}
		if strings.HasPrefix(line, "}") && depth > 0 {
			depth--
		}
		for i := 0; i < depth; i++ {
			b.WriteString("    ")
		}
		b.WriteString(line)
		b.WriteByte('\n')
		if strings.HasSuffix(line, "{") {
			depth++
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
