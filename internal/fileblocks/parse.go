// Package fileblocks extracts fenced code blocks from agent markdown
// output, used by the plan phase to pull the structured story list out
// of otherwise free-form prose.
package fileblocks

import (
	"regexp"
	"strings"
)

// Block is one fenced code block found in text.
type Block struct {
	Lang    string // language tag, e.g. "json"; empty if untagged
	Content string // content between the fences
}

var fenceOpenRe = regexp.MustCompile("^```\\s*(\\w*)\\s*$")

// Parse extracts every fenced code block from text, in order of
// appearance. An unclosed trailing fence is dropped.
func Parse(text string) []Block {
	lines := strings.Split(text, "\n")
	var blocks []Block
	var current *Block
	var buf strings.Builder

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if current != nil {
			if trimmed == "```" {
				current.Content = buf.String()
				blocks = append(blocks, *current)
				current = nil
				buf.Reset()
				continue
			}
			if buf.Len() > 0 {
				buf.WriteByte('\n')
			}
			buf.WriteString(line)
			continue
		}

		if m := fenceOpenRe.FindStringSubmatch(trimmed); m != nil {
			current = &Block{Lang: m[1]}
			buf.Reset()
		}
	}

	return blocks
}

// ExtractFenced returns the content of the last fenced block tagged lang
// (case-insensitive). The plan phase's prompt asks for prose followed by
// exactly one ```json block; taking the last match tolerates the agent
// echoing a smaller json example earlier in its reasoning.
func ExtractFenced(text, lang string) (string, bool) {
	var match string
	var found bool
	for _, b := range Parse(text) {
		if strings.EqualFold(b.Lang, lang) {
			match = b.Content
			found = true
		}
	}
	return match, found
}
