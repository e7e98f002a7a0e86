// Package extractor turns an input PDF into the structured block sequence
// the document model consumes. The heavy lifting is delegated to the
// marker_single tool; when it is not installed a plain-text extraction
// fallback produces a degraded paragraph-only document.
package extractor

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"markdown-translator/internal/document"
	"markdown-translator/internal/logger"
	"markdown-translator/internal/types"
)

// DefaultMarkerTimeout caps marker_single execution for one document
const DefaultMarkerTimeout = 30 * time.Minute

// Options 提取器配置
type Options struct {
	MarkerPath    string // marker_single binary, resolved from PATH when empty
	ForceOCR      bool
	ExtractImages bool
	Timeout       time.Duration
}

// Extractor runs PDF-to-Markdown extraction into a session directory.
type Extractor struct {
	opts Options
}

// New creates an Extractor.
func New(opts Options) *Extractor {
	if opts.MarkerPath == "" {
		opts.MarkerPath = "marker_single"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultMarkerTimeout
	}
	return &Extractor{opts: opts}
}

// Available reports whether the marker tool can be found.
func (e *Extractor) Available() bool {
	_, err := exec.LookPath(e.opts.MarkerPath)
	return err == nil
}

// Extract validates the PDF, runs extraction and returns the structured
// document input plus the path of the raw extracted Markdown. When marker is
// unavailable it falls back to plain-text extraction and logs the degraded
// mode.
func (e *Extractor) Extract(ctx context.Context, pdfPath, sessionDir string) (*document.RawDocument, string, error) {
	if _, err := ValidatePDF(pdfPath); err != nil {
		return nil, "", err
	}

	if !e.Available() {
		logger.Warn("marker_single not found, falling back to plain-text extraction",
			logger.String("marker", e.opts.MarkerPath))
		raw, err := extractPlainText(pdfPath)
		if err != nil {
			return nil, "", err
		}
		mdPath := filepath.Join(sessionDir, "extracted.md")
		if writeErr := os.WriteFile(mdPath, []byte(renderRaw(raw)), 0644); writeErr != nil {
			logger.Warn("could not persist extracted markdown", logger.Err(writeErr))
			mdPath = ""
		}
		return raw, mdPath, nil
	}

	outputDir := filepath.Join(sessionDir, "marker")
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, "", types.NewAppErrorWithDetails(types.ErrExtract,
			"无法创建提取输出目录", outputDir, err)
	}

	if err := e.runMarker(ctx, pdfPath, outputDir); err != nil {
		return nil, "", err
	}

	mdPath, err := findMarkdown(outputDir)
	if err != nil {
		return nil, "", err
	}

	src, err := os.ReadFile(mdPath)
	if err != nil {
		return nil, "", types.NewAppErrorWithDetails(types.ErrExtract,
			"无法读取提取结果", mdPath, err)
	}

	raw := &document.RawDocument{
		Blocks: ScanMarkdown(string(src)),
		Assets: map[string][]byte{},
	}
	if e.opts.ExtractImages {
		if err := loadImages(filepath.Dir(mdPath), raw); err != nil {
			return nil, "", err
		}
	}
	reconcileAssetRefs(raw)

	logger.Info("extraction completed",
		logger.String("markdown", mdPath),
		logger.Int("blocks", len(raw.Blocks)),
		logger.Int("images", len(raw.Assets)))
	return raw, mdPath, nil
}

// runMarker invokes marker_single with the configured flags.
func (e *Extractor) runMarker(ctx context.Context, pdfPath, outputDir string) error {
	runCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	args := []string{pdfPath, "--output_dir", outputDir, "--output_format", "markdown"}
	if e.opts.ForceOCR {
		args = append(args, "--force_ocr")
	}
	if !e.opts.ExtractImages {
		args = append(args, "--disable_image_extraction")
	}

	logger.Info("running marker_single",
		logger.String("pdf", pdfPath),
		logger.String("outputDir", outputDir),
		logger.Bool("forceOCR", e.opts.ForceOCR))

	cmd := exec.CommandContext(runCtx, e.opts.MarkerPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return types.NewAppError(types.ErrExtract, "PDF 内容提取超时", runCtx.Err())
	}
	if ctx.Err() != nil {
		return types.NewAppError(types.ErrCancelled, "提取被取消", ctx.Err())
	}
	if err != nil {
		tail := lastLines(stderr.String(), 20)
		logger.Error("marker_single failed", err, logger.String("stderr", tail))
		return types.NewAppErrorWithDetails(types.ErrExtract,
			"PDF 内容提取失败", tail, err)
	}
	return nil
}

// findMarkdown locates the extracted .md file under the output directory.
// marker nests results in a per-document subdirectory.
func findMarkdown(outputDir string) (string, error) {
	var found string
	err := filepath.WalkDir(outputDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", types.NewAppErrorWithDetails(types.ErrExtract,
			"搜索提取结果失败", outputDir, err)
	}
	if found == "" {
		return "", types.NewAppErrorWithDetails(types.ErrExtract,
			"提取完成但未找到 Markdown 输出", outputDir, nil)
	}
	return found, nil
}

// loadImages reads every image file next to the extracted markdown into the
// asset table, keyed by file name as the markdown references it.
func loadImages(dir string, raw *document.RawDocument) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return types.NewAppErrorWithDetails(types.ErrExtract,
			"无法读取图片目录", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg":
		default:
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return types.NewAppErrorWithDetails(types.ErrExtract,
				"无法读取图片文件", entry.Name(), err)
		}
		raw.Assets[entry.Name()] = content
	}
	return nil
}

// reconcileAssetRefs clears references to images we have no bytes for, such
// as when image extraction is disabled or marker referenced a file it never
// wrote. The reference text itself is kept so the document still renders.
func reconcileAssetRefs(raw *document.RawDocument) {
	for i := range raw.Blocks {
		b := &raw.Blocks[i]
		if b.Kind != "image-reference" || b.AssetRef == "" {
			continue
		}
		if _, ok := raw.Assets[b.AssetRef]; !ok {
			logger.Debug("image reference without extracted bytes",
				logger.String("ref", b.AssetRef))
			b.AssetRef = ""
		}
	}
}

// renderRaw re-renders a raw document to markdown text for persistence.
func renderRaw(raw *document.RawDocument) string {
	var sb strings.Builder
	for i, b := range raw.Blocks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(b.Text)
	}
	sb.WriteString("\n")
	return sb.String()
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
