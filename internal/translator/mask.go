package translator

import (
	"fmt"
	"regexp"
	"strings"

	"markdown-translator/internal/document"
)

// Placeholder tokens follow the <<<MDSPAN_<class>_<n>>>> convention. The
// ASCII angle-bracket shape survives chat-completion APIs verbatim, is inert
// to Markdown, and cannot occur in prose that has itself been masked first
// (the tokenPattern detector runs before tokens are issued).
const (
	spanClassCode   = "CODE"  // fenced code block (whole block)
	spanClassInline = "ICODE" // inline code span
	spanClassMath   = "MATH"  // inline or display math
	spanClassLink   = "LINK"  // link target or bare URL
	spanClassImage  = "IMG"   // image reference
	spanClassRaw    = "RAW"   // pre-existing placeholder-shaped text
)

// ProtectedSpan 记录一次占位替换：token 在 chunk 内唯一
type ProtectedSpan struct {
	Token    string
	Original string
}

var (
	// Detector order is significant: each detector only sees text the
	// earlier ones have already masked.
	tokenPattern      = regexp.MustCompile(`<<<MDSPAN_[A-Z]+_\d+>>>`)
	inlineCodePattern = regexp.MustCompile("`[^`\n]+`")
	displayMathPattern = regexp.MustCompile(`\$\$[^$]+\$\$`)
	inlineMathPattern  = regexp.MustCompile(`\$[^$\n]+\$`)
	imagePattern      = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	linkTargetPattern = regexp.MustCompile(`\]\([^)]*\)`)
	bareURLPattern    = regexp.MustCompile(`https?://[^\s<>")]+`)
)

// masker issues chunk-scoped placeholder tokens and records their originals.
type masker struct {
	next  int
	spans []ProtectedSpan
}

func newMasker() *masker {
	return &masker{}
}

func (m *masker) issue(class, original string) string {
	token := fmt.Sprintf("<<<MDSPAN_%s_%d>>>", class, m.next)
	m.next++
	m.spans = append(m.spans, ProtectedSpan{Token: token, Original: original})
	return token
}

func (m *masker) maskAll(text string, class string, pattern *regexp.Regexp) string {
	return pattern.ReplaceAllStringFunc(text, func(match string) string {
		return m.issue(class, match)
	})
}

// MaskBlock replaces every non-translatable span of the block's text with a
// unique placeholder. Code blocks and image references are masked wholesale:
// their content must come back byte-identical.
func (m *masker) MaskBlock(b *document.Block) string {
	switch b.Kind {
	case document.KindCodeBlock:
		return m.issue(spanClassCode, b.Content)
	case document.KindImageRef:
		return m.issue(spanClassImage, b.Content)
	}

	text := b.Content
	// Stray placeholder-shaped text is masked first so it can never collide
	// with a token issued below.
	text = m.maskAll(text, spanClassRaw, tokenPattern)
	text = m.maskAll(text, spanClassInline, inlineCodePattern)
	text = m.maskAll(text, spanClassMath, displayMathPattern)
	text = m.maskAll(text, spanClassMath, inlineMathPattern)
	text = m.maskAll(text, spanClassImage, imagePattern)
	text = m.maskAll(text, spanClassLink, linkTargetPattern)
	text = m.maskAll(text, spanClassLink, bareURLPattern)
	return text
}

// Spans returns the substitution records issued so far.
func (m *masker) Spans() []ProtectedSpan {
	return m.spans
}

// Verify checks that every issued placeholder appears exactly once in the
// translated text. It returns the tokens that are missing or duplicated.
func (m *masker) Verify(translated string) (missing, duplicated []string) {
	for _, span := range m.spans {
		switch strings.Count(translated, span.Token) {
		case 1:
		case 0:
			missing = append(missing, span.Token)
		default:
			duplicated = append(duplicated, span.Token)
		}
	}
	return missing, duplicated
}

// Unmask substitutes every placeholder back with its original text.
func (m *masker) Unmask(translated string) string {
	result := translated
	// Reverse order: later tokens can be nested inside earlier originals'
	// replacements only if masking classes overlapped, and reverse
	// substitution keeps that case lossless.
	for i := len(m.spans) - 1; i >= 0; i-- {
		result = strings.ReplaceAll(result, m.spans[i].Token, m.spans[i].Original)
	}
	return result
}
