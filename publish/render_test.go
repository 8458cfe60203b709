package publish

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSolutionExt covers the language marker heuristics
func TestSolutionExt(t *testing.T) {
	cases := []struct {
		code string
		ext  string
	}{
		{"#include <iostream>\nint main() {}", "cpp"},
		{"using namespace std;", "cpp"},
		{"public class Main { public static void main(String[] a) {} }", "java"},
		{"package main\n\nfunc main() {}", "go"},
		{"fn main() { println!(\"hi\"); }", "rs"},
		{"import sys\ndef solve():\n    pass", "py"},
		{"x = input()", "cpp"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.ext, SolutionExt(tc.code), "code %q", tc.code)
	}
}

// TestRenderReadme verifies the writeup layout
func TestRenderReadme(t *testing.T) {
	readme := RenderReadme(testRecord())

	assert.True(t, strings.HasPrefix(readme, "# Weird Algorithm (ID: 1068)\n"))
	assert.Contains(t, readme, "**Problem Link:** [https://cses.fi/problemset/task/1068/](https://cses.fi/problemset/task/1068/)")
	assert.Contains(t, readme, "Consider an algorithm that takes as input a positive integer n.")
	assert.Contains(t, readme, "```cpp\n#include <iostream>")
	assert.True(t, strings.HasSuffix(readme, "\n```\n"))
}

// TestRenderReadme_NoDescription verifies the placeholder text
func TestRenderReadme_NoDescription(t *testing.T) {
	record := testRecord()
	record.ProblemDescription = ""

	readme := RenderReadme(record)
	assert.Contains(t, readme, "No description was captured for this problem.")
}

// TestRenderSolution verifies the header comment and body
func TestRenderSolution(t *testing.T) {
	solution := RenderSolution(testRecord())

	assert.True(t, strings.HasPrefix(solution, "// CSES Problem 1068: Weird Algorithm\n"))
	assert.Contains(t, solution, "// Link: https://cses.fi/problemset/task/1068/\n")
	assert.Contains(t, solution, "// Consider an algorithm that takes as input a positive integer n.\n")
	assert.NotContains(t, solution, "...", "a line that fits is not marked as truncated")
	assert.True(t, strings.HasSuffix(solution, "return 0;\n}\n"))
}

// TestRenderSolution_PythonCommentPrefix verifies the prefix switches with the
// language
func TestRenderSolution_PythonCommentPrefix(t *testing.T) {
	record := testRecord()
	record.SubmittedCode = "import sys\ndef solve():\n    pass\n"

	solution := RenderSolution(record)
	assert.True(t, strings.HasPrefix(solution, "# CSES Problem 1068: Weird Algorithm\n"))
}

// TestRenderSolution_TruncatesDescription verifies the 80-rune cap does not
// split multi-byte characters
func TestRenderSolution_TruncatesDescription(t *testing.T) {
	record := testRecord()
	record.ProblemDescription = strings.Repeat("ü", 100) + "\nsecond line"

	solution := RenderSolution(record)
	assert.Contains(t, solution, "// "+strings.Repeat("ü", 80)+"...\n")
	assert.NotContains(t, solution, "second line", "only the first line is quoted")
}
