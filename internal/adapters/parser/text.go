package parser

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy = bluemonday.StrictPolicy()

	// "On Mon, 1 Jan 2024 at 10:00, Someone <a@b.c> wrote:" and everything after it
	attributionLine = regexp.MustCompile(`(?ms)^On .*?, .*? wrote:.*\z`)
	blockBreaks     = regexp.MustCompile(`(?i)<br\s*/?>|</p\s*>|</div\s*>|</tr\s*>|</li\s*>|</h[1-6]\s*>`)
	blankRuns       = regexp.MustCompile(`\n{3,}`)
)

// HTMLToText strips every tag from an HTML body, keeping line structure
func HTMLToText(body string) string {
	body = blockBreaks.ReplaceAllString(body, "\n")
	text := html.UnescapeString(strictPolicy.Sanitize(body))

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")

	return strings.TrimSpace(blankRuns.ReplaceAllString(text, "\n\n"))
}

// StripQuotedReply removes the quoted thread that mail clients append below a reply
func StripQuotedReply(body string) string {
	if loc := attributionLine.FindStringIndex(body); loc != nil {
		body = body[:loc[0]]
	}

	lines := strings.Split(strings.TrimRight(body, "\n "), "\n")
	end := len(lines)
	for end > 0 {
		line := strings.TrimSpace(lines[end-1])
		if line != "" && !strings.HasPrefix(line, ">") {
			break
		}
		end--
	}

	return strings.TrimSpace(strings.Join(lines[:end], "\n"))
}
