// Package fixer repairs translated Markdown tables whose row or column
// shape drifted from the source table. Repair is best-effort: any failure
// leaves the translated text as it was and never affects the run outcome.
package fixer

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/cloudwego/eino-ext/components/model/openai"

	"markdown-translator/internal/document"
	"markdown-translator/internal/logger"
)

const systemPrompt = `你是一个 Markdown 表格修复助手。用户会给出一个原始表格和一个翻译后的表格。
翻译后的表格结构（行数或列数）与原始表格不一致。请修复翻译后表格的结构，使其与原始表格的行列数完全一致，同时保留所有翻译内容。
只输出修复后的 Markdown 表格，不要输出任何解释。`

// TableFixer 表格结构修复器
type TableFixer struct {
	apiKey  string
	baseURL string
	model   string
}

// New creates a TableFixer. An empty model falls back to gpt-4o.
func New(apiKey, baseURL, model string) *TableFixer {
	if model == "" {
		model = "gpt-4o"
	}
	return &TableFixer{apiKey: apiKey, baseURL: baseURL, model: model}
}

// FixBlocks inspects every table block whose original source is recorded in
// originals (keyed by block ID) and repairs those whose shape drifted during
// translation. Repairs mutate block content in place. It returns the number
// of tables repaired.
func (f *TableFixer) FixBlocks(ctx context.Context, blocks []*document.Block, originals map[string]string) int {
	fixed := 0
	for _, b := range blocks {
		if b.Kind != document.KindTable {
			continue
		}
		original, ok := originals[b.ID]
		if !ok || original == b.Content {
			continue
		}
		origRows, origCols := tableShape(original)
		gotRows, gotCols := tableShape(b.Content)
		if origRows == gotRows && origCols == gotCols {
			continue
		}

		logger.Warn("translated table shape drifted",
			logger.String("blockID", b.ID),
			logger.String("expected", fmt.Sprintf("%dx%d", origRows, origCols)),
			logger.String("got", fmt.Sprintf("%dx%d", gotRows, gotCols)))

		repaired, err := f.repair(ctx, original, b.Content)
		if err != nil {
			logger.Warn("table repair failed, keeping translated text",
				logger.String("blockID", b.ID), logger.Err(err))
			continue
		}
		repRows, repCols := tableShape(repaired)
		if repRows != origRows || repCols != origCols {
			logger.Warn("repair result still malformed, keeping translated text",
				logger.String("blockID", b.ID))
			continue
		}
		b.Content = repaired
		fixed++
	}
	return fixed
}

// repair performs a single model call asking for a structurally corrected
// table.
func (f *TableFixer) repair(ctx context.Context, original, translated string) (string, error) {
	cfg := &openai.ChatModelConfig{
		Model:  f.model,
		APIKey: f.apiKey,
	}
	if f.baseURL != "" {
		cfg.BaseURL = f.baseURL
	}
	chatModel, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("create chat model: %w", err)
	}

	user := fmt.Sprintf("原始表格：\n\n%s\n\n翻译后的表格：\n\n%s", original, translated)
	resp, err := chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(user),
	})
	if err != nil {
		return "", fmt.Errorf("table repair call: %w", err)
	}

	result := strings.TrimSpace(resp.Content)
	result = strings.TrimPrefix(result, "```markdown")
	result = strings.TrimPrefix(result, "```")
	result = strings.TrimSuffix(result, "```")
	result = strings.TrimSpace(result)
	if result == "" {
		return "", fmt.Errorf("empty repair response")
	}
	return result, nil
}

// tableShape counts data rows and header columns of a Markdown table. The
// alignment row (|---|---|) is not counted as a data row.
func tableShape(table string) (rows, cols int) {
	for _, line := range strings.Split(table, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "|") {
			continue
		}
		if isAlignmentRow(line) {
			continue
		}
		rows++
		if cols == 0 {
			cols = strings.Count(line, "|") - 1
		}
	}
	return rows, cols
}

func isAlignmentRow(line string) bool {
	stripped := strings.Map(func(r rune) rune {
		switch r {
		case '|', '-', ':', ' ':
			return -1
		}
		return r
	}, line)
	return stripped == "" && strings.Contains(line, "-")
}
