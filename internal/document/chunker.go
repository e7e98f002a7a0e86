package document

import (
	"markdown-translator/internal/logger"
)

// DefaultMaxUnitSize is the default chunk size bound in characters.
const DefaultMaxUnitSize = 4000

// ChunkBlocks 将块序列切分为大小受限的翻译单元。
// 贪心累积连续块；当加入下一个块会超出 maxUnitSize 时封闭当前 chunk。
// 单个块自身超限时独占一个超大 chunk 而不是被拆开：保持结构完整优先于大小约束。
// 空输入产生零个 chunk。
func ChunkBlocks(blocks []*Block, maxUnitSize int) []*Chunk {
	if len(blocks) == 0 {
		return nil
	}
	if maxUnitSize <= 0 {
		maxUnitSize = DefaultMaxUnitSize
	}

	var chunks []*Chunk
	var current []*Block
	currentSize := 0
	seq := 0

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, &Chunk{Sequence: seq, Blocks: current})
			seq++
			current = nil
			currentSize = 0
		}
	}

	for _, b := range blocks {
		blockSize := b.Size()

		// An oversized block becomes its own chunk rather than being split.
		if blockSize >= maxUnitSize {
			flush()
			chunks = append(chunks, &Chunk{Sequence: seq, Blocks: []*Block{b}})
			seq++
			continue
		}

		if currentSize+blockSize > maxUnitSize {
			flush()
		}
		current = append(current, b)
		currentSize += blockSize
	}
	flush()

	logger.Debug("blocks chunked",
		logger.Int("blocks", len(blocks)),
		logger.Int("chunks", len(chunks)),
		logger.Int("maxUnitSize", maxUnitSize))

	return chunks
}
