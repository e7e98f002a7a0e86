package translator

import (
	"strings"
	"testing"

	"markdown-translator/internal/document"
)

func TestMaskBlock_ProtectsSpans(t *testing.T) {
	tests := []struct {
		name      string
		block     *document.Block
		protected []string // substrings that must not survive masking
	}{
		{
			name: "inline code",
			block: &document.Block{
				ID: "b-0001", Kind: document.KindParagraph,
				Content: "Call `foo()` to start.",
			},
			protected: []string{"`foo()`"},
		},
		{
			name: "inline math",
			block: &document.Block{
				ID: "b-0001", Kind: document.KindParagraph,
				Content: "The bound $O(n \\log n)$ holds.",
			},
			protected: []string{"$O(n \\log n)$"},
		},
		{
			name: "display math",
			block: &document.Block{
				ID: "b-0001", Kind: document.KindParagraph,
				Content: "Equation $$E = mc^2$$ follows.",
			},
			protected: []string{"$$E = mc^2$$"},
		},
		{
			name: "link target",
			block: &document.Block{
				ID: "b-0001", Kind: document.KindParagraph,
				Content: "See [the docs](https://example.com/docs) for details.",
			},
			protected: []string{"(https://example.com/docs)"},
		},
		{
			name: "bare url",
			block: &document.Block{
				ID: "b-0001", Kind: document.KindParagraph,
				Content: "Source: https://example.com/paper.pdf here.",
			},
			protected: []string{"https://example.com/paper.pdf"},
		},
		{
			name: "code block masked wholesale",
			block: &document.Block{
				ID: "b-0001", Kind: document.KindCodeBlock, Language: "go",
				Content: "func main() {\n\tprintln(\"hi\")\n}",
			},
			protected: []string{"func main()"},
		},
		{
			name: "image reference masked wholesale",
			block: &document.Block{
				ID: "b-0001", Kind: document.KindImageRef, AssetRef: "fig1.png",
				Content: "![Figure 1](fig1.png)",
			},
			protected: []string{"![Figure 1](fig1.png)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMasker()
			masked := m.MaskBlock(tt.block)
			for _, p := range tt.protected {
				if strings.Contains(masked, p) {
					t.Errorf("masked text still contains %q: %q", p, masked)
				}
			}
			if len(m.Spans()) == 0 {
				t.Fatal("expected at least one protected span")
			}
		})
	}
}

// Unmasking the untouched masked text must reproduce the original exactly.
func TestMaskUnmask_RoundTripIdentity(t *testing.T) {
	blocks := []*document.Block{
		{ID: "b-0001", Kind: document.KindParagraph,
			Content: "Use `go test` with $n$ workers, see [docs](https://go.dev) and https://example.com now."},
		{ID: "b-0002", Kind: document.KindCodeBlock, Language: "go",
			Content: "x := 1 // `not inline` and $not math$"},
		{ID: "b-0003", Kind: document.KindTable,
			Content: "| a | b |\n|---|---|\n| `c` | $d$ |"},
		{ID: "b-0004", Kind: document.KindImageRef, AssetRef: "f.png",
			Content: "![f](f.png)"},
	}

	for _, b := range blocks {
		m := newMasker()
		masked := m.MaskBlock(b)
		got := m.Unmask(masked)
		if got != b.Content {
			t.Errorf("round trip mismatch for %s:\n got  %q\n want %q", b.ID, got, b.Content)
		}
	}
}

// Text that already looks like a placeholder token must be masked first so
// it cannot collide with issued tokens or break verification.
func TestMaskBlock_PreexistingTokenShapedText(t *testing.T) {
	b := &document.Block{
		ID: "b-0001", Kind: document.KindParagraph,
		Content: "The literal <<<MDSPAN_CODE_0>>> and `real code` coexist.",
	}

	m := newMasker()
	masked := m.MaskBlock(b)

	if strings.Contains(masked, "<<<MDSPAN_CODE_0>>>") && m.spans[0].Original != "<<<MDSPAN_CODE_0>>>" {
		t.Fatalf("pre-existing token-shaped text was not masked: %q", masked)
	}

	missing, duplicated := m.Verify(masked)
	if len(missing) != 0 || len(duplicated) != 0 {
		t.Errorf("verify on untouched masked text: missing %v duplicated %v", missing, duplicated)
	}

	if got := m.Unmask(masked); got != b.Content {
		t.Errorf("round trip mismatch:\n got  %q\n want %q", got, b.Content)
	}
}

func TestVerify_DetectsMissingAndDuplicated(t *testing.T) {
	m := newMasker()
	b := &document.Block{ID: "b-0001", Kind: document.KindParagraph,
		Content: "Run `a` then `b`."}
	masked := m.MaskBlock(b)

	spans := m.Spans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	dropped := strings.Replace(masked, spans[0].Token, "", 1)
	missing, _ := m.Verify(dropped)
	if len(missing) != 1 || missing[0] != spans[0].Token {
		t.Errorf("expected %s reported missing, got %v", spans[0].Token, missing)
	}

	doubled := masked + " " + spans[1].Token
	_, duplicated := m.Verify(doubled)
	if len(duplicated) != 1 || duplicated[0] != spans[1].Token {
		t.Errorf("expected %s reported duplicated, got %v", spans[1].Token, duplicated)
	}
}

func TestMasker_TokensUniquePerChunk(t *testing.T) {
	m := newMasker()
	m.MaskBlock(&document.Block{ID: "b-0001", Kind: document.KindParagraph, Content: "`a` and `b`"})
	m.MaskBlock(&document.Block{ID: "b-0002", Kind: document.KindParagraph, Content: "`c`"})

	seen := map[string]bool{}
	for _, span := range m.Spans() {
		if seen[span.Token] {
			t.Errorf("duplicate token issued: %s", span.Token)
		}
		seen[span.Token] = true
	}
}
