package extractor

import (
	"strings"

	"github.com/ledongthuc/pdf"

	"markdown-translator/internal/document"
	"markdown-translator/internal/logger"
	"markdown-translator/internal/types"
)

// extractPlainText pulls the text layer out of the PDF and shapes it into
// paragraph blocks. No layout reconstruction: headings, tables and images
// are lost. Scanned documents without a text layer come back empty.
func extractPlainText(pdfPath string) (*document.RawDocument, error) {
	f, reader, err := pdf.Open(pdfPath)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrExtract,
			"PDF 文本层读取失败", pdfPath, err)
	}
	defer f.Close()

	var sb strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warn("skipping unreadable page",
				logger.Int("page", pageNum), logger.Err(err))
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	paragraphs := splitParagraphs(sb.String())
	if len(paragraphs) == 0 {
		return nil, types.NewAppErrorWithDetails(types.ErrExtract,
			"PDF 无可提取文本（可能为扫描件，需要安装 marker_single）", pdfPath, nil)
	}

	blocks := make([]document.RawBlock, len(paragraphs))
	for i, p := range paragraphs {
		blocks[i] = document.RawBlock{Kind: "paragraph", Text: p}
	}

	logger.Info("plain-text extraction produced paragraphs",
		logger.Int("paragraphs", len(blocks)))
	return &document.RawDocument{
		Blocks: blocks,
		Assets: map[string][]byte{},
	}, nil
}

func splitParagraphs(text string) []string {
	var out []string
	for _, part := range strings.Split(text, "\n\n") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
