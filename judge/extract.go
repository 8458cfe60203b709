// Package judge scrapes problem identity, statement, and submitted code from
// judge-site pages. The markup is untyped and unstable, so every extraction
// is a chain of fallible probes with explicit first-match-wins ordering.
package judge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/odemirel/csessync/codefmt"
)

// Extraction errors. Both are log-only failures for the watcher: an accepted
// page we cannot read yields no publish, not a user-visible error.
var (
	ErrNoProblemID = errors.New("no problem identity found on page")
	ErrNoCode      = errors.New("no submitted code found on page")
)

var taskPathPattern = regexp.MustCompile(`/task/(\d+)/?`)

var acceptedTokens = []string{"accepted"}

var rejectedTokens = []string{
	"wrong answer",
	"time limit exceeded",
	"memory limit exceeded",
	"runtime error",
	"compile error",
	"output limit exceeded",
	"invalid",
}

// languageMarkers are tokens at least one of which a scraped code block must
// contain before it is trusted as real source code.
var languageMarkers = []string{
	"#include",
	"using namespace",
	"int main",
	"def ",
	"public static void main",
	"package main",
	"fn main",
}

// Extractor scrapes submission result pages and, on accept, fetches the
// canonical problem statement to complete the record.
type Extractor struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewExtractor creates an extractor rooted at the judge's base URL (for
// example "https://cses.fi").
func NewExtractor(baseURL string, client *http.Client, log zerolog.Logger) *Extractor {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &Extractor{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		log:     log,
	}
}

// Extract inspects a fetched result page. The verdict is always reported;
// a record is returned only for an accepted verdict whose identity and code
// could both be scraped.
func (e *Extractor) Extract(ctx context.Context, page *PageContext) (*SubmissionRecord, Verdict, error) {
	verdict := DetectVerdict(page.Doc)
	if verdict != VerdictAccepted {
		return nil, verdict, nil
	}

	id, ok := ProblemID(page.Doc)
	if !ok {
		return nil, verdict, ErrNoProblemID
	}

	code, ok := ExtractCode(page.Doc)
	if !ok {
		return nil, verdict, ErrNoCode
	}

	title, description := e.fetchStatement(ctx, id)

	record := &SubmissionRecord{
		ProblemID:          id,
		ProblemName:        title,
		ProblemURL:         e.ProblemURL(id),
		ProblemDescription: description,
		SubmissionURL:      page.URL,
		SubmittedCode:      codefmt.Format(code),
	}
	return record, verdict, nil
}

// ProblemURL returns the canonical statement URL for a problem id.
func (e *Extractor) ProblemURL(id string) string {
	return fmt.Sprintf("%s/problemset/task/%s/", e.baseURL, id)
}

// ResultCellText returns the text of the cell adjacent to the result/status
// label, or "" when no such label exists on the page.
func ResultCellText(doc *goquery.Document) string {
	text := ""
	doc.Find("td, th, dt").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		label := strings.ToLower(strings.TrimSpace(s.Text()))
		switch label {
		case "result:", "result", "status:", "status":
			if cell := strings.TrimSpace(s.Next().Text()); cell != "" {
				text = cell
				return false
			}
		}
		return true
	})
	return text
}

// DetectVerdict locates the result label and classifies the adjacent cell.
// A missing label (or a cell without a known outcome token) means the page
// is still judging.
func DetectVerdict(doc *goquery.Document) Verdict {
	cell := strings.ToLower(ResultCellText(doc))
	if cell == "" {
		return VerdictNotReady
	}
	for _, token := range acceptedTokens {
		if strings.Contains(cell, token) {
			return VerdictAccepted
		}
	}
	for _, token := range rejectedTokens {
		if strings.Contains(cell, token) {
			return VerdictRejected
		}
	}
	return VerdictNotReady
}

// ProblemID scans the page's links for the first task path segment and
// returns its numeric id.
func ProblemID(doc *goquery.Document) (string, bool) {
	id := ""
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if m := taskPathPattern.FindStringSubmatch(href); m != nil {
			id = m[1]
			return false
		}
		return true
	})
	return id, id != ""
}

// fetchStatement loads the canonical problem page for title and description.
// Fetch failures degrade: the title falls back to "Problem <id>" and the
// description to empty, and extraction continues.
func (e *Extractor) fetchStatement(ctx context.Context, id string) (title, description string) {
	title = "Problem " + id

	page, err := FetchPage(ctx, e.client, e.ProblemURL(id))
	if err != nil {
		e.log.Warn().Err(err).Str("problem_id", id).Msg("failed to fetch problem statement")
		return title, ""
	}

	if h := normalizeSpace(page.Doc.Find("h1").First().Text()); h != "" {
		title = h
	}

	page.Doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := normalizeSpace(s.Text())
		if len(text) > 50 && !mentionsResourceLimits(text) {
			description = text
			return false
		}
		return true
	})

	return title, description
}

func mentionsResourceLimits(s string) bool {
	ls := strings.ToLower(s)
	return strings.Contains(ls, "time limit") || strings.Contains(ls, "memory limit")
}

// normalizeSpace collapses all whitespace runs to single spaces.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ExtractCode returns the submitted source from the page. The compiler-report
// container, where each list item renders one source line, is tried first;
// after that, code-bearing elements are probed in document order.
func ExtractCode(doc *goquery.Document) (string, bool) {
	if code, ok := extractReportLines(doc); ok {
		return code, true
	}

	code := ""
	doc.Find("pre, code, .samp").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if looksSingleLine(text) {
			// The rendered text lost its newlines; re-derive them from the
			// element's markup structure before falling back to raw text.
			if structured := textWithLineBreaks(s); strings.TrimSpace(structured) != "" {
				text = structured
			}
		}
		if acceptableCode(text) {
			code = text
			return false
		}
		return true
	})
	return code, code != ""
}

// extractReportLines reads the prettified compiler-report listing where each
// child element is one source line.
func extractReportLines(doc *goquery.Document) (string, bool) {
	var lines []string
	doc.Find("pre.prettyprint ol li").Each(func(_ int, s *goquery.Selection) {
		lines = append(lines, s.Text())
	})
	if len(lines) == 0 {
		return "", false
	}
	code := strings.Join(lines, "\n")
	if !acceptableCode(code) {
		return "", false
	}
	return code, true
}

// looksSingleLine reports whether text renders as fewer than three lines.
func looksSingleLine(text string) bool {
	return strings.Count(strings.TrimSpace(text), "\n") < 2
}

// acceptableCode reports whether text is plausibly a full source file: long
// enough, and carrying at least one language marker.
func acceptableCode(text string) bool {
	if len(strings.TrimSpace(text)) <= 20 {
		return false
	}
	for _, marker := range languageMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

var blockTags = map[string]bool{
	"div":     true,
	"p":       true,
	"li":      true,
	"tr":      true,
	"section": true,
}

// textWithLineBreaks walks the selection's nodes and re-derives line breaks
// from explicit <br> elements and block boundaries.
func textWithLineBreaks(sel *goquery.Selection) string {
	var b strings.Builder
	for _, node := range sel.Nodes {
		writeNodeText(node, &b)
	}
	return strings.Trim(b.String(), "\n")
}

func writeNodeText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if n.Data == "br" {
			b.WriteByte('\n')
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeNodeText(c, b)
	}
	if n.Type == html.ElementNode && blockTags[n.Data] {
		b.WriteByte('\n')
	}
}
