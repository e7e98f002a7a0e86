// Package packager lays out the final deliverable: translated Markdown,
// the original extraction, the source PDF and finalized images in one
// output directory, optionally bundled into a zip archive.
package packager

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"markdown-translator/internal/logger"
	"markdown-translator/internal/types"
)

// OutputFormat 输出形式
const (
	FormatDir = "dir"
	FormatZip = "zip"
)

// Request describes what goes into the package. Empty paths are skipped.
type Request struct {
	SourcePDF      string // original input PDF
	TranslatedMD   string // translated markdown file
	OriginalMD     string // raw extracted markdown, kept for reference
	AssetDir       string // finalized images directory, copied recursively
	DestParent     string // directory the output dir is created under
	BaseName       string // output name stem, falls back to the PDF name
	Format         string // dir or zip
	SessionDir     string // temp working directory
	KeepSessionDir bool
}

// Package builds the output directory and returns its path (the zip path
// when Format is zip).
func Package(req Request) (string, error) {
	base := req.BaseName
	if base == "" {
		base = strings.TrimSuffix(filepath.Base(req.SourcePDF), filepath.Ext(req.SourcePDF))
	}
	if base == "" {
		base = "translated"
	}

	dirName := fmt.Sprintf("%s_%s", base, time.Now().Format("20060102_150405"))
	outDir := filepath.Join(req.DestParent, dirName)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", types.NewAppErrorWithDetails(types.ErrAssetWrite,
			"无法创建输出目录", outDir, err)
	}

	copies := []struct {
		src, dstName string
	}{
		{req.TranslatedMD, base + "_zh.md"},
		{req.OriginalMD, base + "_original.md"},
		{req.SourcePDF, filepath.Base(req.SourcePDF)},
	}
	for _, c := range copies {
		if c.src == "" {
			continue
		}
		if err := copyFile(c.src, filepath.Join(outDir, c.dstName)); err != nil {
			return "", err
		}
	}

	if req.AssetDir != "" {
		if err := copyDir(req.AssetDir, filepath.Join(outDir, filepath.Base(req.AssetDir))); err != nil {
			return "", err
		}
	}

	result := outDir
	if req.Format == FormatZip {
		zipPath := outDir + ".zip"
		if err := zipDir(outDir, zipPath); err != nil {
			return "", err
		}
		if err := os.RemoveAll(outDir); err != nil {
			logger.Warn("could not remove staged output directory",
				logger.String("dir", outDir), logger.Err(err))
		}
		result = zipPath
	}

	cleanupSession(req.SessionDir, req.KeepSessionDir)

	logger.Info("output packaged",
		logger.String("path", result),
		logger.String("format", req.Format))
	return result, nil
}

func cleanupSession(sessionDir string, keep bool) {
	if sessionDir == "" || keep {
		return
	}
	if err := os.RemoveAll(sessionDir); err != nil {
		logger.Warn("could not clean session directory",
			logger.String("dir", sessionDir), logger.Err(err))
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return types.NewAppErrorWithDetails(types.ErrAssetWrite,
			"无法读取待打包文件", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return types.NewAppErrorWithDetails(types.ErrAssetWrite,
			"无法写入输出文件", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return types.NewAppErrorWithDetails(types.ErrAssetWrite,
			"复制文件失败", dst, err)
	}
	return out.Close()
}

func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return types.NewAppErrorWithDetails(types.ErrAssetWrite,
				"遍历图片目录失败", path, err)
		}
		rel, relErr := filepath.Rel(src, path)
		if relErr != nil {
			return relErr
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return copyFile(path, target)
	})
}

// zipDir archives dir into zipPath with forward-slash entry names rooted at
// the directory name, matching what desktop unzip tools expect.
func zipDir(dir, zipPath string) error {
	f, err := os.Create(zipPath)
	if err != nil {
		return types.NewAppErrorWithDetails(types.ErrAssetWrite,
			"无法创建压缩包", zipPath, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	root := filepath.Base(dir)

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		w, wErr := zw.Create(root + "/" + filepath.ToSlash(rel))
		if wErr != nil {
			return wErr
		}
		in, openErr := os.Open(path)
		if openErr != nil {
			return openErr
		}
		defer in.Close()
		_, copyErr := io.Copy(w, in)
		return copyErr
	})
	if err != nil {
		zw.Close()
		return types.NewAppErrorWithDetails(types.ErrAssetWrite,
			"压缩输出失败", zipPath, err)
	}
	if err := zw.Close(); err != nil {
		return types.NewAppErrorWithDetails(types.ErrAssetWrite,
			"压缩包写入失败", zipPath, err)
	}
	return f.Close()
}
