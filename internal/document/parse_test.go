package document

import (
	"strings"
	"testing"

	"markdown-translator/internal/types"
)

func TestParse_AssignsStableIDs(t *testing.T) {
	raw := &RawDocument{
		Blocks: []RawBlock{
			{Kind: "heading", Level: 1, Text: "Title"},
			{Kind: "paragraph", Text: "Body."},
			{Kind: "code-block", Language: "go", Text: "x := 1"},
		},
	}

	doc, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	wantIDs := []string{"b-0000", "b-0001", "b-0002"}
	for i, b := range doc.Blocks {
		if b.ID != wantIDs[i] {
			t.Errorf("block %d id = %q, want %q", i, b.ID, wantIDs[i])
		}
	}

	// Parsing the same input again yields the same ids.
	doc2, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() second call error: %v", err)
	}
	for i := range doc.Blocks {
		if doc.Blocks[i].ID != doc2.Blocks[i].ID {
			t.Errorf("ids not stable: %q vs %q", doc.Blocks[i].ID, doc2.Blocks[i].ID)
		}
	}
}

func TestParse_MalformedInput(t *testing.T) {
	tests := []struct {
		name string
		raw  *RawDocument
	}{
		{
			name: "unknown kind",
			raw: &RawDocument{
				Blocks: []RawBlock{{Kind: "sidebar", Text: "x"}},
			},
		},
		{
			name: "heading level out of range",
			raw: &RawDocument{
				Blocks: []RawBlock{{Kind: "heading", Level: 7, Text: "x"}},
			},
		},
		{
			name: "image reference without asset bytes",
			raw: &RawDocument{
				Blocks: []RawBlock{{Kind: "image-reference", AssetRef: "missing.png", Text: "![x](missing.png)"}},
			},
		},
		{
			name: "nil input",
			raw:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			if types.CodeOf(err) != types.ErrMalformedInput {
				t.Errorf("error code = %v, want %v", types.CodeOf(err), types.ErrMalformedInput)
			}
		})
	}
}

func TestParse_TracksAssetReferences(t *testing.T) {
	raw := &RawDocument{
		Blocks: []RawBlock{
			{Kind: "image-reference", AssetRef: "fig1.png", Text: "![Figure 1](fig1.png)"},
			{Kind: "image-reference", AssetRef: "fig1.png", Text: "![Figure 1 again](fig1.png)"},
		},
		Assets: map[string][]byte{"fig1.png": {0x89, 0x50}},
	}

	doc, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	asset := doc.Assets["fig1.png"]
	if asset == nil {
		t.Fatal("asset missing from table")
	}
	if len(asset.BlockIDs) != 2 {
		t.Errorf("asset referenced by %d blocks, want 2", len(asset.BlockIDs))
	}
}

// Rendering a parsed document with no translation applied keeps every block
// in order with its structural markers intact.
func TestParseRender_StructureRoundTrip(t *testing.T) {
	raw := &RawDocument{
		Blocks: []RawBlock{
			{Kind: "heading", Level: 2, Text: "Methods"},
			{Kind: "paragraph", Text: "We proceed as follows."},
			{Kind: "list-item", Depth: 0, Marker: "-", Text: "first"},
			{Kind: "list-item", Depth: 1, Marker: "-", Text: "nested"},
			{Kind: "code-block", Language: "python", Text: "print(1)"},
			{Kind: "table", Text: "| a | b |\n|---|---|\n| 1 | 2 |"},
		},
	}

	doc, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	out := Render(doc.Blocks)

	wantFragments := []string{
		"## Methods",
		"We proceed as follows.",
		"- first",
		"  - nested",
		"```python\nprint(1)\n```",
		"| a | b |",
	}
	pos := 0
	for _, frag := range wantFragments {
		idx := strings.Index(out[pos:], frag)
		if idx < 0 {
			t.Fatalf("fragment %q missing or out of order in output:\n%s", frag, out)
		}
		pos += idx + len(frag)
	}

	// Consecutive list items stay on adjacent lines.
	if !strings.Contains(out, "- first\n  - nested") {
		t.Errorf("list items separated by blank line:\n%s", out)
	}
}

func TestBlockMarkdown(t *testing.T) {
	tests := []struct {
		name  string
		block *Block
		want  string
	}{
		{"heading", &Block{Kind: KindHeading, Level: 3, Content: "API"}, "### API"},
		{"unordered item", &Block{Kind: KindListItem, Marker: "*", Content: "x"}, "* x"},
		{"ordered item", &Block{Kind: KindListItem, Ordered: true, Marker: "2.", Content: "y"}, "2. y"},
		{"nested item", &Block{Kind: KindListItem, Depth: 2, Marker: "-", Content: "z"}, "    - z"},
		{"code", &Block{Kind: KindCodeBlock, Language: "go", Content: "x := 1"}, "```go\nx := 1\n```"},
		{"paragraph", &Block{Kind: KindParagraph, Content: "plain"}, "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.block.Markdown(); got != tt.want {
				t.Errorf("Markdown() = %q, want %q", got, tt.want)
			}
		})
	}
}
