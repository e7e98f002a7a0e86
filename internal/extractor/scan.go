package extractor

import (
	"regexp"
	"strings"

	"markdown-translator/internal/document"
)

var (
	headingLine  = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	fenceLine    = regexp.MustCompile("^```([a-zA-Z0-9_+-]*)\\s*$")
	listItemLine = regexp.MustCompile(`^(\s*)([-*+]|\d+\.)\s+(.*)$`)
	tableLine    = regexp.MustCompile(`^\s*\|.*\|\s*$`)
	imageLine    = regexp.MustCompile(`^!\[[^\]]*\]\(([^)\s]+)[^)]*\)\s*$`)
	htmlLine     = regexp.MustCompile(`^\s*<[^>]+>`)
)

// ScanMarkdown splits Markdown source into the ordered raw block sequence.
// The scanner is line-oriented: fenced code and tables are accumulated until
// their terminator, everything else breaks on blank lines. Unrecognized
// line-level constructs (HTML, horizontal rules) become raw-text blocks so
// nothing is ever dropped.
func ScanMarkdown(src string) []document.RawBlock {
	lines := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")
	var blocks []document.RawBlock

	var para []string
	flushPara := func() {
		if len(para) == 0 {
			return
		}
		blocks = append(blocks, document.RawBlock{
			Kind: "paragraph",
			Text: strings.Join(para, "\n"),
		})
		para = nil
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			flushPara()
			continue
		}

		if m := fenceLine.FindStringSubmatch(trimmed); m != nil {
			flushPara()
			lang := m[1]
			var body []string
			i++
			for ; i < len(lines); i++ {
				if strings.HasPrefix(strings.TrimSpace(lines[i]), "```") {
					break
				}
				body = append(body, lines[i])
			}
			blocks = append(blocks, document.RawBlock{
				Kind:     "code-block",
				Language: lang,
				Text:     strings.Join(body, "\n"),
			})
			continue
		}

		if m := headingLine.FindStringSubmatch(line); m != nil {
			flushPara()
			blocks = append(blocks, document.RawBlock{
				Kind:  "heading",
				Level: len(m[1]),
				Text:  strings.TrimSpace(m[2]),
			})
			continue
		}

		if tableLine.MatchString(line) {
			flushPara()
			rows := []string{line}
			for i+1 < len(lines) && tableLine.MatchString(lines[i+1]) {
				i++
				rows = append(rows, lines[i])
			}
			blocks = append(blocks, document.RawBlock{
				Kind: "table",
				Text: strings.Join(rows, "\n"),
			})
			continue
		}

		if m := imageLine.FindStringSubmatch(trimmed); m != nil {
			flushPara()
			blocks = append(blocks, document.RawBlock{
				Kind:     "image-reference",
				AssetRef: imageFileName(m[1]),
				Text:     trimmed,
			})
			continue
		}

		if m := listItemLine.FindStringSubmatch(line); m != nil {
			flushPara()
			marker := m[2]
			blocks = append(blocks, document.RawBlock{
				Kind:    "list-item",
				Depth:   len(m[1]) / 2,
				Ordered: strings.HasSuffix(marker, "."),
				Marker:  marker,
				Text:    strings.TrimSpace(m[3]),
			})
			continue
		}

		if htmlLine.MatchString(line) || trimmed == "---" || trimmed == "***" {
			flushPara()
			blocks = append(blocks, document.RawBlock{
				Kind: "raw-text",
				Text: line,
			})
			continue
		}

		para = append(para, line)
	}
	flushPara()

	return blocks
}

// imageFileName reduces an image target to the bare file name the asset
// table is keyed by. URLs are left as-is so they stay untouched downstream.
func imageFileName(target string) string {
	if strings.Contains(target, "://") {
		return ""
	}
	parts := strings.Split(target, "/")
	return parts[len(parts)-1]
}
