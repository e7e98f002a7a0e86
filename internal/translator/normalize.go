package translator

import (
	"strings"

	"golang.org/x/text/width"
)

// Markdown structural characters that models occasionally emit in their
// fullwidth forms when translating into Chinese. Only these are narrowed;
// fullwidth Chinese punctuation (，。：) is intentionally left alone.
var structuralRunes = []rune{'｜', '＃', '｀', '［', '］', '（', '）', '！', '＊', '＞'}

var structuralReplacer = buildStructuralReplacer()

func buildStructuralReplacer() *strings.Replacer {
	pairs := make([]string, 0, len(structuralRunes)*2)
	for _, r := range structuralRunes {
		narrow := width.Narrow.String(string(r))
		if narrow == string(r) {
			continue
		}
		pairs = append(pairs, string(r), narrow)
	}
	return strings.NewReplacer(pairs...)
}

// normalizeMarkdownPunct narrows fullwidth variants of Markdown structural
// characters so tables, headings and emphasis survive rendering. It runs on
// translated prose while placeholders are still in place, so protected spans
// are never touched.
func normalizeMarkdownPunct(s string) string {
	return structuralReplacer.Replace(s)
}
