package document

import (
	"fmt"

	"markdown-translator/internal/logger"
	"markdown-translator/internal/types"
)

// RawBlock is one structural unit as emitted by the extraction collaborator.
// Kind must match a BlockKind string form; Text is the source-language text
// (or the literal source for tables, code and raw text).
type RawBlock struct {
	Kind     string `json:"kind"`
	Level    int    `json:"level,omitempty"`
	Depth    int    `json:"depth,omitempty"`
	Ordered  bool   `json:"ordered,omitempty"`
	Marker   string `json:"marker,omitempty"`
	Language string `json:"language,omitempty"`
	AssetRef string `json:"asset_ref,omitempty"`
	Text     string `json:"text"`
}

// RawDocument is the extraction collaborator's output contract: an ordered
// block sequence plus the image byte blobs keyed by original file name.
type RawDocument struct {
	Blocks []RawBlock        `json:"blocks"`
	Assets map[string][]byte `json:"assets"`
}

var kindNames = map[string]BlockKind{
	"heading":         KindHeading,
	"paragraph":       KindParagraph,
	"list-item":       KindListItem,
	"table":           KindTable,
	"code-block":      KindCodeBlock,
	"image-reference": KindImageRef,
	"raw-text":        KindRawText,
}

// Parse converts the extractor output into the in-memory document model.
// Top-level block order is preserved exactly; stable ids are assigned in
// discovery order. It fails with ErrMalformedInput when a block references
// an asset that has no byte content.
func Parse(raw *RawDocument) (*Document, error) {
	if raw == nil {
		return nil, types.NewAppError(types.ErrMalformedInput, "structured input is nil", nil)
	}

	doc := &Document{
		Blocks: make([]*Block, 0, len(raw.Blocks)),
		Assets: make(map[string]*Asset, len(raw.Assets)),
	}

	for name, content := range raw.Assets {
		doc.Assets[name] = &Asset{
			OriginalName: name,
			Content:      content,
		}
	}

	for i, rb := range raw.Blocks {
		kind, ok := kindNames[rb.Kind]
		if !ok {
			return nil, types.NewAppErrorWithDetails(
				types.ErrMalformedInput,
				"unknown block kind",
				fmt.Sprintf("block %d: kind %q", i, rb.Kind),
				nil,
			)
		}

		b := &Block{
			ID:       newBlockID(i),
			Kind:     kind,
			Level:    rb.Level,
			Depth:    rb.Depth,
			Ordered:  rb.Ordered,
			Marker:   rb.Marker,
			Language: rb.Language,
			AssetRef: rb.AssetRef,
			Content:  rb.Text,
		}
		if !b.IsValid() {
			return nil, types.NewAppErrorWithDetails(
				types.ErrMalformedInput,
				"invalid block",
				fmt.Sprintf("block %d (%s)", i, kind),
				nil,
			)
		}

		if kind == KindImageRef && b.AssetRef != "" {
			asset, ok := doc.Assets[b.AssetRef]
			if !ok {
				return nil, types.NewAppErrorWithDetails(
					types.ErrMalformedInput,
					"image reference without asset content",
					fmt.Sprintf("block %s references %q", b.ID, b.AssetRef),
					nil,
				)
			}
			asset.BlockIDs = append(asset.BlockIDs, b.ID)
		}

		doc.Blocks = append(doc.Blocks, b)
	}

	logger.Debug("structured input parsed",
		logger.Int("blocks", len(doc.Blocks)),
		logger.Int("assets", len(doc.Assets)))

	return doc, nil
}

// Render reassembles blocks into a Markdown document. Blocks are joined by
// blank lines, except consecutive list items and raw text which keep single
// newlines so lists and literal regions stay intact.
func Render(blocks []*Block) string {
	var sb []byte
	for i, b := range blocks {
		if i > 0 {
			prev := blocks[i-1]
			if (prev.Kind == KindListItem && b.Kind == KindListItem) ||
				(prev.Kind == KindRawText && b.Kind == KindRawText) {
				sb = append(sb, '\n')
			} else {
				sb = append(sb, '\n', '\n')
			}
		}
		sb = append(sb, b.Markdown()...)
	}
	if len(sb) > 0 {
		sb = append(sb, '\n')
	}
	return string(sb)
}
