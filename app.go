package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"markdown-translator/internal/assets"
	"markdown-translator/internal/config"
	"markdown-translator/internal/document"
	"markdown-translator/internal/extractor"
	"markdown-translator/internal/fixer"
	"markdown-translator/internal/logger"
	"markdown-translator/internal/packager"
	"markdown-translator/internal/pipeline"
	"markdown-translator/internal/translator"
	"markdown-translator/internal/types"
)

// StatusCallback receives status updates during processing
type StatusCallback func(status *types.Status)

// App 应用主结构，串联提取、分块、翻译、资源落盘与打包
type App struct {
	configManager *config.Manager

	mu             sync.Mutex
	status         *types.Status
	processing     bool
	statusCallback StatusCallback
}

// NewApp creates the application with the default config location.
func NewApp() (*App, error) {
	return NewAppWithConfig("")
}

// NewAppWithConfig creates the application with an explicit config path.
func NewAppWithConfig(configPath string) (*App, error) {
	cm, err := config.NewManager(configPath)
	if err != nil {
		return nil, err
	}
	if err := cm.Load(); err != nil {
		logger.Warn("config load failed, using defaults", logger.Err(err))
	}
	return &App{
		configManager: cm,
		status:        &types.Status{Phase: types.PhaseIdle},
	}, nil
}

// GetConfig returns the configuration manager.
func (a *App) GetConfig() *config.Manager {
	return a.configManager
}

// SetStatusCallback registers the status observer.
func (a *App) SetStatusCallback(callback StatusCallback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.statusCallback = callback
}

// IsProcessing reports whether a conversion run is active.
func (a *App) IsProcessing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.processing
}

// GetStatus returns a copy of the current status.
func (a *App) GetStatus() *types.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := *a.status
	return &s
}

func (a *App) updateStatus(phase types.ProcessPhase, progress int, message string) {
	a.mu.Lock()
	a.status = &types.Status{Phase: phase, Progress: progress, Message: message}
	callback := a.statusCallback
	status := a.status
	a.mu.Unlock()

	logger.Debug("status update",
		logger.String("phase", string(phase)),
		logger.Int("progress", progress),
		logger.String("message", message))
	if callback != nil {
		callback(status)
	}
}

func (a *App) updateStatusError(errorMsg string) {
	a.mu.Lock()
	a.status = &types.Status{Phase: types.PhaseError, Progress: 0, Message: errorMsg, Error: errorMsg}
	callback := a.statusCallback
	status := a.status
	a.mu.Unlock()

	if callback != nil {
		callback(status)
	}
}

// TestConnection verifies the translation API is reachable with the current
// configuration.
func (a *App) TestConnection(ctx context.Context) error {
	engine := translator.NewEngine(translator.Config{
		APIKey:  a.configManager.GetAPIKey(),
		BaseURL: a.configManager.GetBaseURL(),
		Model:   a.configManager.GetModel(),
	})
	return engine.TestConnection(ctx)
}

// Convert runs the full pipeline on one PDF and returns the result paths.
func (a *App) Convert(ctx context.Context, pdfPath string) (*types.RunResult, error) {
	a.mu.Lock()
	if a.processing {
		a.mu.Unlock()
		return nil, types.NewAppError(types.ErrInternal, "已有转换任务在进行中", nil)
	}
	a.processing = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.processing = false
		a.mu.Unlock()
	}()

	result, err := a.convert(ctx, pdfPath)
	if err != nil {
		a.updateStatusError(err.Error())
		return nil, err
	}
	a.updateStatus(types.PhaseComplete, 100, "转换完成")
	return result, nil
}

func (a *App) convert(ctx context.Context, pdfPath string) (*types.RunResult, error) {
	cfg := a.configManager.GetConfig()

	a.updateStatus(types.PhaseValidating, 2, "校验输入文件...")
	if a.configManager.GetAPIKey() == "" {
		return nil, types.NewAppError(types.ErrConfig,
			"未配置 API Key（配置文件或 OPENAI_API_KEY 环境变量）", nil)
	}

	sessionDir, err := a.configManager.NewSessionDir()
	if err != nil {
		return nil, err
	}

	// 提取
	a.updateStatus(types.PhaseExtracting, 5, "提取 PDF 内容...")
	ext := extractor.New(extractor.Options{
		ForceOCR:      cfg.MarkerForceOCR,
		ExtractImages: cfg.MarkerImages,
	})
	raw, originalMD, err := ext.Extract(ctx, pdfPath, sessionDir)
	if err != nil {
		return nil, err
	}

	doc, err := document.Parse(raw)
	if err != nil {
		return nil, err
	}
	inputKinds := doc.KindSequence()

	// 分块
	a.updateStatus(types.PhaseChunking, 20, "按结构分块...")
	chunks := document.ChunkBlocks(doc.Blocks, a.configManager.GetMaxUnitSize())
	logger.Info("document chunked",
		logger.Int("blocks", len(doc.Blocks)),
		logger.Int("chunks", len(chunks)))

	// 记录表格原文，供译后结构修复比对
	tableOriginals := make(map[string]string)
	for _, b := range doc.Blocks {
		if b.Kind == document.KindTable {
			tableOriginals[b.ID] = b.Content
		}
	}

	// 翻译
	a.updateStatus(types.PhaseTranslating, 25, "翻译中...")
	engine := translator.NewEngine(translator.Config{
		APIKey:  a.configManager.GetAPIKey(),
		BaseURL: a.configManager.GetBaseURL(),
		Model:   a.configManager.GetModel(),
	})

	cache := pipeline.NewChunkCache(filepath.Join(a.configManager.DataDir(), "translation_cache.json"))
	if err := cache.Load(); err != nil {
		logger.Warn("translation cache unavailable", logger.Err(err))
	}

	orch := pipeline.NewOrchestrator(engine, pipeline.Options{
		Concurrency: a.configManager.GetConcurrency(),
		MaxAttempts: a.configManager.GetMaxRetries(),
		Cache:       cache,
		Progress: func(completed, total int, message string) {
			// translation spans 25..80 of the progress bar
			progress := 25 + completed*55/total
			a.updateStatus(types.PhaseTranslating, progress, message)
		},
	})

	runResult, err := orch.Run(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if err := cache.Save(); err != nil {
		logger.Warn("could not persist translation cache", logger.Err(err))
	}

	translatedBlocks := runResult.Blocks()
	if !kindsEqual(inputKinds, kindsOf(translatedBlocks)) {
		return nil, types.NewAppError(types.ErrInternal,
			"翻译后块结构与输入不一致", nil)
	}

	// 表格结构修复（尽力而为）
	if fixedCount := fixer.New(
		a.configManager.GetAPIKey(),
		a.configManager.GetBaseURL(),
		a.configManager.GetModel(),
	).FixBlocks(ctx, translatedBlocks, tableOriginals); fixedCount > 0 {
		logger.Info("tables repaired", logger.Int("count", fixedCount))
	}

	// 资源落盘与引用改写
	a.updateStatus(types.PhaseFinalizing, 85, "写出图片资源...")
	stageDir := filepath.Join(sessionDir, "staging")
	if err := os.MkdirAll(stageDir, 0755); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrAssetWrite,
			"无法创建暂存目录", stageDir, err)
	}
	assetFiles, err := assets.Finalize(translatedBlocks, doc.Assets, stageDir)
	if err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	mdPath := filepath.Join(stageDir, base+"_zh.md")
	if err := os.WriteFile(mdPath, []byte(runResult.Markdown()), 0644); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrAssetWrite,
			"无法写出翻译结果", mdPath, err)
	}

	// 打包
	a.updateStatus(types.PhasePackaging, 92, "打包输出...")
	assetDir := ""
	if len(assetFiles) > 0 {
		assetDir = filepath.Join(stageDir, assets.AssetDirName)
	}
	destParent := filepath.Dir(pdfPath)
	if cfg.WorkDirectory != "" {
		destParent = cfg.WorkDirectory
	}
	outputPath, err := packager.Package(packager.Request{
		SourcePDF:      pdfPath,
		TranslatedMD:   mdPath,
		OriginalMD:     originalMD,
		AssetDir:       assetDir,
		DestParent:     destParent,
		BaseName:       base,
		Format:         cfg.OutputFormat,
		SessionDir:     sessionDir,
		KeepSessionDir: cfg.KeepTempFiles,
	})
	if err != nil {
		return nil, err
	}

	a.configManager.AddHistoryEntry(pdfPath, outputPath)
	if err := a.configManager.Save(); err != nil {
		logger.Warn("could not save config", logger.Err(err))
	}

	if len(runResult.FailedChunks) > 0 {
		logger.Warn("some chunks kept original text",
			logger.String("sequences", fmt.Sprint(runResult.FailedChunks)))
	}

	return &types.RunResult{
		MarkdownPath: mdPath,
		OutputPath:   outputPath,
		AssetFiles:   assetFiles,
		TotalChunks:  len(chunks),
		FailedChunks: runResult.FailedChunks,
		TokensUsed:   runResult.TokensUsed,
		CachedChunks: runResult.CachedChunks,
	}, nil
}

func kindsOf(blocks []*document.Block) []document.BlockKind {
	kinds := make([]document.BlockKind, len(blocks))
	for i, b := range blocks {
		kinds[i] = b.Kind
	}
	return kinds
}

func kindsEqual(a, b []document.BlockKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
