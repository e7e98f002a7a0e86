package extractor

import (
	"os"
	"path/filepath"
	"testing"

	"markdown-translator/internal/document"
)

func TestScanMarkdown_BlockKinds(t *testing.T) {
	src := `# Title

Intro paragraph
spanning two lines.

## Section

- first item
  - nested item
1. ordered item

` + "```go\nfunc main() {}\n```" + `

| a | b |
|---|---|
| 1 | 2 |

![Figure 1](fig1.png)

<div>raw html</div>
`

	blocks := ScanMarkdown(src)

	wantKinds := []string{
		"heading",
		"paragraph",
		"heading",
		"list-item",
		"list-item",
		"list-item",
		"code-block",
		"table",
		"image-reference",
		"raw-text",
	}
	if len(blocks) != len(wantKinds) {
		t.Fatalf("got %d blocks, want %d: %+v", len(blocks), len(wantKinds), blocks)
	}
	for i, want := range wantKinds {
		if blocks[i].Kind != want {
			t.Errorf("block %d kind = %q, want %q", i, blocks[i].Kind, want)
		}
	}
}

func TestScanMarkdown_Details(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		check func(t *testing.T, blocks []document.RawBlock)
	}{
		{
			name: "heading level and text",
			src:  "### Deep Heading",
			check: func(t *testing.T, blocks []document.RawBlock) {
				if blocks[0].Level != 3 || blocks[0].Text != "Deep Heading" {
					t.Errorf("got level %d text %q", blocks[0].Level, blocks[0].Text)
				}
			},
		},
		{
			name: "code block language and body",
			src:  "```python\nprint(1)\nprint(2)\n```",
			check: func(t *testing.T, blocks []document.RawBlock) {
				if blocks[0].Language != "python" {
					t.Errorf("language = %q", blocks[0].Language)
				}
				if blocks[0].Text != "print(1)\nprint(2)" {
					t.Errorf("body = %q", blocks[0].Text)
				}
			},
		},
		{
			name: "nested list depth and marker",
			src:  "- top\n  - nested\n    - deeper",
			check: func(t *testing.T, blocks []document.RawBlock) {
				depths := []int{0, 1, 2}
				for i, d := range depths {
					if blocks[i].Depth != d {
						t.Errorf("item %d depth = %d, want %d", i, blocks[i].Depth, d)
					}
				}
			},
		},
		{
			name: "ordered list marker",
			src:  "3. third thing",
			check: func(t *testing.T, blocks []document.RawBlock) {
				if !blocks[0].Ordered || blocks[0].Marker != "3." {
					t.Errorf("ordered = %v marker = %q", blocks[0].Ordered, blocks[0].Marker)
				}
			},
		},
		{
			name: "image asset ref is bare file name",
			src:  "![fig](subdir/fig2.png)",
			check: func(t *testing.T, blocks []document.RawBlock) {
				if blocks[0].AssetRef != "fig2.png" {
					t.Errorf("asset ref = %q", blocks[0].AssetRef)
				}
			},
		},
		{
			name: "remote image keeps no asset ref",
			src:  "![fig](https://example.com/fig.png)",
			check: func(t *testing.T, blocks []document.RawBlock) {
				if blocks[0].AssetRef != "" {
					t.Errorf("asset ref = %q, want empty", blocks[0].AssetRef)
				}
			},
		},
		{
			name: "table includes alignment row",
			src:  "| a | b |\n|---|---|\n| 1 | 2 |",
			check: func(t *testing.T, blocks []document.RawBlock) {
				if blocks[0].Text != "| a | b |\n|---|---|\n| 1 | 2 |" {
					t.Errorf("table text = %q", blocks[0].Text)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks := ScanMarkdown(tt.src)
			if len(blocks) == 0 {
				t.Fatal("no blocks scanned")
			}
			tt.check(t, blocks)
		})
	}
}

func TestScanMarkdown_Empty(t *testing.T) {
	if blocks := ScanMarkdown(""); len(blocks) != 0 {
		t.Errorf("got %d blocks from empty input", len(blocks))
	}
	if blocks := ScanMarkdown("\n\n\n"); len(blocks) != 0 {
		t.Errorf("got %d blocks from blank input", len(blocks))
	}
}

func TestFindMarkdown_Nested(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "paper", "output")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	mdPath := filepath.Join(nested, "paper.md")
	if err := os.WriteFile(mdPath, []byte("# hi"), 0644); err != nil {
		t.Fatal(err)
	}

	found, err := findMarkdown(dir)
	if err != nil {
		t.Fatalf("findMarkdown() error: %v", err)
	}
	if found != mdPath {
		t.Errorf("found %q, want %q", found, mdPath)
	}
}

func TestFindMarkdown_MissingIsExtractError(t *testing.T) {
	if _, err := findMarkdown(t.TempDir()); err == nil {
		t.Fatal("expected error for directory without markdown")
	}
}

func TestReconcileAssetRefs(t *testing.T) {
	raw := &document.RawDocument{
		Blocks: []document.RawBlock{
			{Kind: "image-reference", AssetRef: "have.png", Text: "![a](have.png)"},
			{Kind: "image-reference", AssetRef: "missing.png", Text: "![b](missing.png)"},
		},
		Assets: map[string][]byte{"have.png": {1}},
	}
	reconcileAssetRefs(raw)
	if raw.Blocks[0].AssetRef != "have.png" {
		t.Errorf("existing ref cleared: %q", raw.Blocks[0].AssetRef)
	}
	if raw.Blocks[1].AssetRef != "" {
		t.Errorf("dangling ref kept: %q", raw.Blocks[1].AssetRef)
	}
}
