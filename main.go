package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"markdown-translator/internal/logger"
	"markdown-translator/internal/types"
)

// Command line flags
var (
	pdfFlag     = flag.String("pdf", "", "PDF file path to translate")
	configFlag  = flag.String("config", "", "Config file path (default: ~/.enpdf2zhmd/config.json)")
	formatFlag  = flag.String("format", "", "Output format: zip or dir (overrides config)")
	testFlag    = flag.Bool("test-connection", false, "Test translation API connectivity and exit")
	verboseFlag = flag.Bool("verbose", false, "Enable debug logging")
	helpFlag    = flag.Bool("help", false, "Show help")
)

// printHelp displays the help information for command line usage.
func printHelp() {
	fmt.Println("enPDF2zhMD - 将英文 PDF 翻译成中文 Markdown（保留文档结构）")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  enpdf2zhmd --pdf <PATH> [选项]")
	fmt.Println()
	fmt.Println("选项:")
	fmt.Println("  --pdf <PATH>         待翻译的 PDF 文件路径")
	fmt.Println("  --config <PATH>      配置文件路径 (默认: ~/.enpdf2zhmd/config.json)")
	fmt.Println("  --format <zip|dir>   输出形式，覆盖配置文件设置")
	fmt.Println("  --test-connection    测试翻译 API 连通性后退出")
	fmt.Println("  --verbose            输出调试日志")
	fmt.Println("  -h, --help           显示帮助信息")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  enpdf2zhmd --pdf /path/to/paper.pdf")
	fmt.Println("  enpdf2zhmd --pdf /path/to/paper.pdf --format dir")
	fmt.Println("  enpdf2zhmd --test-connection")
	fmt.Println()
	fmt.Println("说明:")
	fmt.Println("  API Key 可写入配置文件或通过 OPENAI_API_KEY 环境变量提供。")
	fmt.Println("  完整提取需要安装 marker_single；未安装时退化为纯文本提取。")
}

func main() {
	flag.Usage = printHelp
	flag.Parse()

	if *helpFlag || (flag.NArg() == 0 && *pdfFlag == "" && !*testFlag) {
		printHelp()
		return
	}

	logConfig := logger.DefaultConfig()
	logConfig.EnableConsole = false
	if *verboseFlag {
		logConfig.Level = logger.LevelDebug
	}
	if err := logger.Init(logConfig); err != nil {
		fmt.Fprintf(os.Stderr, "日志初始化失败: %v\n", err)
	}
	defer logger.Close()

	app, err := NewAppWithConfig(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化失败: %v\n", err)
		os.Exit(1)
	}

	if *formatFlag != "" {
		cfg := app.GetConfig().GetConfig()
		cfg.OutputFormat = *formatFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *testFlag {
		if err := app.TestConnection(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "API 连接失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("API 连接正常")
		return
	}

	app.SetStatusCallback(func(status *types.Status) {
		fmt.Printf("\r[%3d%%] %s", status.Progress, status.Message)
		if status.Phase == types.PhaseComplete || status.Phase == types.PhaseError {
			fmt.Println()
		}
	})

	result, err := app.Convert(ctx, *pdfFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\n转换失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("输出: %s\n", result.OutputPath)
	fmt.Printf("分块: %d 总计, %d 缓存命中", result.TotalChunks, result.CachedChunks)
	if len(result.FailedChunks) > 0 {
		fmt.Printf(", %d 保留原文", len(result.FailedChunks))
	}
	fmt.Println()
	if result.TokensUsed > 0 {
		fmt.Printf("Token 用量: %d\n", result.TokensUsed)
	}
}
