package extractor

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"markdown-translator/internal/logger"
	"markdown-translator/internal/types"
)

// MaxPDFSize 输入 PDF 大小上限 (500MB)
const MaxPDFSize = 500 * 1024 * 1024

var pdfHeader = []byte("%PDF-")

// ValidatePDF checks that the file exists, looks like a PDF and passes
// structural validation. It returns the page count.
func ValidatePDF(path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, types.NewAppErrorWithDetails(types.ErrMalformedInput,
			"输入文件不存在或不可读", path, err)
	}
	if info.IsDir() {
		return 0, types.NewAppErrorWithDetails(types.ErrMalformedInput,
			"输入路径是目录而非 PDF 文件", path, nil)
	}
	if info.Size() == 0 {
		return 0, types.NewAppErrorWithDetails(types.ErrMalformedInput,
			"输入文件为空", path, nil)
	}
	if info.Size() > MaxPDFSize {
		return 0, types.NewAppErrorWithDetails(types.ErrMalformedInput,
			"输入文件过大",
			fmt.Sprintf("%s (%d bytes, limit %d)", path, info.Size(), MaxPDFSize), nil)
	}

	// Header sniff before handing the file to the parser. Files renamed to
	// .pdf are a common user mistake.
	f, err := os.Open(path)
	if err != nil {
		return 0, types.NewAppErrorWithDetails(types.ErrMalformedInput,
			"无法打开输入文件", path, err)
	}
	header := make([]byte, len(pdfHeader))
	_, readErr := f.Read(header)
	f.Close()
	if readErr != nil || !bytes.HasPrefix(header, pdfHeader) {
		return 0, types.NewAppErrorWithDetails(types.ErrMalformedInput,
			"文件不是有效的 PDF（缺少 %PDF- 头）", path, readErr)
	}

	if err := api.ValidateFile(path, nil); err != nil {
		return 0, types.NewAppErrorWithDetails(types.ErrMalformedInput,
			"PDF 结构校验失败", path, err)
	}

	pageCount, err := api.PageCountFile(path)
	if err != nil {
		return 0, types.NewAppErrorWithDetails(types.ErrMalformedInput,
			"无法读取 PDF 页数", path, err)
	}

	logger.Info("PDF validated",
		logger.String("path", path),
		logger.Int("pages", pageCount),
		logger.Int64("sizeBytes", info.Size()))
	return pageCount, nil
}
