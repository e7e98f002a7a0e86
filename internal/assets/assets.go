// Package assets writes extracted image files into the output directory and
// rewrites image references in the document to the final file names.
// Finalization is deterministic: the same document and asset set always
// produce the same names, so re-running it is a no-op.
package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"markdown-translator/internal/document"
	"markdown-translator/internal/logger"
	"markdown-translator/internal/types"
)

// AssetDirName 图片输出子目录名
const AssetDirName = "images"

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Finalize writes every referenced asset under outputDir/images and rewrites
// image-reference blocks to point at the new relative paths. It returns the
// final file names, sorted. Unreferenced assets are skipped.
func Finalize(blocks []*document.Block, assetTable map[string]*document.Asset, outputDir string) ([]string, error) {
	referenced := referencedAssets(blocks, assetTable)
	if len(referenced) == 0 {
		return nil, nil
	}

	assetDir := filepath.Join(outputDir, AssetDirName)
	if err := os.MkdirAll(assetDir, 0755); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrAssetWrite,
			"无法创建图片输出目录", assetDir, err)
	}

	// Assign names in original-name order so the result does not depend on
	// map iteration order.
	names := make([]string, 0, len(referenced))
	for name := range referenced {
		names = append(names, name)
	}
	sort.Strings(names)

	taken := make(map[string]bool, len(names))
	written := make([]string, 0, len(names))
	for _, original := range names {
		asset := referenced[original]
		asset.NewName = assignName(original, taken)
		taken[asset.NewName] = true

		dst := filepath.Join(assetDir, asset.NewName)
		if err := os.WriteFile(dst, asset.Content, 0644); err != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrAssetWrite,
				"无法写入图片文件", dst, err)
		}
		written = append(written, asset.NewName)
	}

	rewriteReferences(blocks, referenced)

	logger.Info("assets finalized",
		logger.Int("count", len(written)),
		logger.String("dir", assetDir))
	return written, nil
}

// referencedAssets collects assets actually referenced by an image block.
func referencedAssets(blocks []*document.Block, assetTable map[string]*document.Asset) map[string]*document.Asset {
	referenced := make(map[string]*document.Asset)
	for _, b := range blocks {
		if b.Kind != document.KindImageRef || b.AssetRef == "" {
			continue
		}
		if asset, ok := assetTable[b.AssetRef]; ok {
			referenced[b.AssetRef] = asset
		}
	}
	return referenced
}

// assignName builds a collision-free file name from the original. The stem
// is sanitized; on collision an ordinal suffix is appended before the
// extension.
func assignName(original string, taken map[string]bool) string {
	base := filepath.Base(original)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	stem = unsafeNameChars.ReplaceAllString(stem, "_")
	stem = strings.Trim(stem, "._")
	if stem == "" {
		stem = "image"
	}

	candidate := stem + ext
	for i := 1; taken[candidate]; i++ {
		candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
	}
	return candidate
}

// rewriteReferences updates image blocks in place to the final relative
// paths. The block's Markdown image syntax is preserved, only the target
// path changes.
func rewriteReferences(blocks []*document.Block, referenced map[string]*document.Asset) {
	for _, b := range blocks {
		if b.Kind != document.KindImageRef || b.AssetRef == "" {
			continue
		}
		asset, ok := referenced[b.AssetRef]
		if !ok || asset.NewName == "" {
			continue
		}
		// AssetRef stays on the original name: it is the asset table key,
		// and re-keying it would leave a later Finalize with nothing to
		// write. Only the rendered target path changes.
		newPath := AssetDirName + "/" + asset.NewName
		b.Content = replaceImageTarget(b.Content, newPath)
	}
}

var imageTargetPattern = regexp.MustCompile(`(!\[[^\]]*\]\()([^)\s]+)([^)]*\))`)

func replaceImageTarget(content, newPath string) string {
	return imageTargetPattern.ReplaceAllString(content, "${1}"+newPath+"${3}")
}
