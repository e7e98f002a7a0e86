// Package document provides the in-memory model of an extracted PDF document:
// an ordered sequence of typed blocks plus a side table of image assets, the
// size-bounded chunker that prepares blocks for translation, and the Markdown
// renderer that reassembles them.
package document

import (
	"fmt"
	"strings"
)

// BlockKind 块类型枚举
type BlockKind int

const (
	// KindHeading is an ATX heading (level 1-6)
	KindHeading BlockKind = iota
	// KindParagraph is a run of plain prose
	KindParagraph
	// KindListItem is a single list item (ordered or unordered)
	KindListItem
	// KindTable is a whole pipe table, kept atomic
	KindTable
	// KindCodeBlock is a fenced code block with an optional language tag
	KindCodeBlock
	// KindImageRef is an image reference line
	KindImageRef
	// KindRawText is unrecognized source text passed through verbatim
	KindRawText
)

// String returns the string representation of the block kind
func (k BlockKind) String() string {
	switch k {
	case KindHeading:
		return "heading"
	case KindParagraph:
		return "paragraph"
	case KindListItem:
		return "list-item"
	case KindTable:
		return "table"
	case KindCodeBlock:
		return "code-block"
	case KindImageRef:
		return "image-reference"
	case KindRawText:
		return "raw-text"
	default:
		return "unknown"
	}
}

// IsValidKind reports whether k is a defined BlockKind.
func IsValidKind(k BlockKind) bool {
	return k >= KindHeading && k <= KindRawText
}

// Translatable reports whether the block kind carries prose that should be
// sent to the translation service. Code blocks and image references are
// protected wholesale instead.
func (k BlockKind) Translatable() bool {
	switch k {
	case KindHeading, KindParagraph, KindListItem, KindTable, KindRawText:
		return true
	default:
		return false
	}
}

// Block 表示一个结构单元。Kind 在创建后不可变，翻译只原地替换 Content。
type Block struct {
	ID       string    `json:"id"`
	Kind     BlockKind `json:"kind"`
	Level    int       `json:"level,omitempty"`    // heading level 1-6
	Depth    int       `json:"depth,omitempty"`    // list nesting depth, 0-based
	Ordered  bool      `json:"ordered,omitempty"`  // ordered vs unordered list item
	Marker   string    `json:"marker,omitempty"`   // list marker as written ("-", "*", "3.")
	Language string    `json:"language,omitempty"` // code block language tag
	AssetRef string    `json:"asset_ref,omitempty"` // original image file name
	Content  string    `json:"content"`
}

// IsValid checks structural invariants of the block.
func (b *Block) IsValid() bool {
	if b.ID == "" || !IsValidKind(b.Kind) {
		return false
	}
	if b.Kind == KindHeading && (b.Level < 1 || b.Level > 6) {
		return false
	}
	if b.Kind == KindListItem && b.Depth < 0 {
		return false
	}
	return true
}

// Markdown renders the block back to Markdown source.
func (b *Block) Markdown() string {
	switch b.Kind {
	case KindHeading:
		return strings.Repeat("#", b.Level) + " " + b.Content
	case KindListItem:
		marker := b.Marker
		if marker == "" {
			if b.Ordered {
				marker = "1."
			} else {
				marker = "-"
			}
		}
		return strings.Repeat("  ", b.Depth) + marker + " " + b.Content
	case KindCodeBlock:
		return "```" + b.Language + "\n" + b.Content + "\n```"
	default:
		// paragraph, table, image-reference, raw-text carry their source form
		return b.Content
	}
}

// Size returns the serialized size of the block in bytes.
func (b *Block) Size() int {
	return len(b.Markdown())
}

// Asset 图片资源：原始文件名、字节内容、重命名结果与引用它的块
type Asset struct {
	OriginalName string   `json:"original_name"`
	Content      []byte   `json:"-"`
	NewName      string   `json:"new_name,omitempty"`
	BlockIDs     []string `json:"referencing_block_ids,omitempty"`
}

// Document is the parsed document: ordered blocks plus the asset table.
type Document struct {
	Blocks []*Block
	Assets map[string]*Asset
}

// KindSequence returns the ordered kinds of all blocks. Used to verify the
// structure-preservation invariant after translation.
func (d *Document) KindSequence() []BlockKind {
	kinds := make([]BlockKind, len(d.Blocks))
	for i, b := range d.Blocks {
		kinds[i] = b.Kind
	}
	return kinds
}

// Chunk 由若干完整 Block 组成的翻译单元，按 Sequence 升序重组
type Chunk struct {
	Sequence int      `json:"sequence"`
	Blocks   []*Block `json:"blocks"`
}

// Size returns the combined serialized size of the chunk's blocks.
func (c *Chunk) Size() int {
	total := 0
	for _, b := range c.Blocks {
		total += b.Size()
	}
	return total
}

// KindSequence returns the ordered kinds of the chunk's blocks.
func (c *Chunk) KindSequence() []BlockKind {
	kinds := make([]BlockKind, len(c.Blocks))
	for i, b := range c.Blocks {
		kinds[i] = b.Kind
	}
	return kinds
}

// newBlockID returns the stable id for the n-th parsed block.
func newBlockID(n int) string {
	return fmt.Sprintf("b-%04d", n)
}
