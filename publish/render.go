package publish

import (
	"fmt"
	"path"
	"strings"

	"github.com/odemirel/csessync/judge"
)

// ProblemDir derives the repository folder for a problem:
// <root>/<id>-<sanitizedTitle>.
func ProblemDir(root, id, title string) string {
	return path.Join(root, id+"-"+sanitizeTitle(title))
}

// sanitizeTitle replaces every character outside [A-Za-z0-9-] with an
// underscore. Run lengths are preserved: consecutive replaced characters are
// not collapsed.
func sanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// SolutionExt picks a file extension from the language markers present in the
// code, defaulting to C++ as the overwhelmingly common case.
func SolutionExt(code string) string {
	switch {
	case strings.Contains(code, "#include"), strings.Contains(code, "using namespace"):
		return "cpp"
	case strings.Contains(code, "public static void main"):
		return "java"
	case strings.Contains(code, "package main"), strings.Contains(code, "func main"):
		return "go"
	case strings.Contains(code, "fn main"):
		return "rs"
	case strings.Contains(code, "def "), strings.Contains(code, "import sys"):
		return "py"
	default:
		return "cpp"
	}
}

// RenderReadme produces the human-readable writeup for a record: title,
// problem link, description (or a placeholder), and the solution as a fenced
// code block.
func RenderReadme(r *judge.SubmissionRecord) string {
	description := r.ProblemDescription
	if description == "" {
		description = "No description was captured for this problem."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s (ID: %s)\n\n", r.ProblemName, r.ProblemID)
	fmt.Fprintf(&b, "**Problem Link:** [%s](%s)\n\n", r.ProblemURL, r.ProblemURL)
	b.WriteString("## Problem Description\n\n")
	b.WriteString(description)
	b.WriteString("\n\n## Solution\n\n")
	fmt.Fprintf(&b, "```%s\n%s\n```\n", SolutionExt(r.SubmittedCode),
		strings.TrimRight(r.SubmittedCode, "\n"))
	return b.String()
}

// RenderSolution prefixes the raw source with a header comment carrying the
// problem identity and, when available, a truncated first line of the
// description.
func RenderSolution(r *judge.SubmissionRecord) string {
	prefix := commentPrefix(SolutionExt(r.SubmittedCode))

	var b strings.Builder
	fmt.Fprintf(&b, "%s CSES Problem %s: %s\n", prefix, r.ProblemID, r.ProblemName)
	fmt.Fprintf(&b, "%s Link: %s\n", prefix, r.ProblemURL)
	if r.ProblemDescription != "" {
		line := firstLine(r.ProblemDescription)
		if truncated := truncateRunes(line, 80); truncated != line {
			fmt.Fprintf(&b, "%s %s...\n", prefix, truncated)
		} else {
			fmt.Fprintf(&b, "%s %s\n", prefix, line)
		}
	}
	b.WriteByte('\n')
	b.WriteString(strings.TrimRight(r.SubmittedCode, "\n"))
	b.WriteByte('\n')
	return b.String()
}

func commentPrefix(ext string) string {
	if ext == "py" {
		return "#"
	}
	return "//"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// truncateRunes trims s to at most n runes, never splitting a multi-byte
// character.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
