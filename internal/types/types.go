// Package types defines core data types and enums for the PDF-to-Markdown translator.
package types

// Config 应用配置
type Config struct {
	APIURL         string             `json:"api_url"` // OpenAI 兼容 API 的 Base URL
	APIKey         string             `json:"api_key"`
	Model          string             `json:"model"`
	MaxUnitSize    int                `json:"max_unit_size"`      // 翻译单元最大字符数，控制单次请求的内容量
	Concurrency    int                `json:"concurrency_limit"`  // 翻译并发数，默认为 3
	MaxRetries     int                `json:"max_retry_attempts"` // 瞬时错误的最大重试次数
	OutputFormat   string             `json:"output_format"`      // "zip" 或 "dir"
	KeepTempFiles  bool               `json:"keep_temp_files"`
	MarkerForceOCR bool               `json:"marker_force_ocr"` // 传递给 marker 的 --force_ocr
	MarkerImages   bool               `json:"marker_extract_images"`
	WorkDirectory  string             `json:"work_directory"`
	InputHistory   []InputHistoryItem `json:"input_history"` // 输入历史记录
}

// InputHistoryItem 输入历史记录项
type InputHistoryItem struct {
	Input     string `json:"input"`     // PDF 文件路径
	Output    string `json:"output"`    // 产出路径（目录或 zip）
	Timestamp int64  `json:"timestamp"` // 时间戳（Unix 毫秒）
}

// ProcessPhase 处理阶段枚举
type ProcessPhase string

const (
	PhaseIdle        ProcessPhase = "idle"
	PhaseValidating  ProcessPhase = "validating"
	PhaseExtracting  ProcessPhase = "extracting"
	PhaseChunking    ProcessPhase = "chunking"
	PhaseTranslating ProcessPhase = "translating"
	PhaseFinalizing  ProcessPhase = "finalizing"
	PhasePackaging   ProcessPhase = "packaging"
	PhaseComplete    ProcessPhase = "complete"
	PhaseError       ProcessPhase = "error"
)

// IsValidPhase checks if the given phase is a valid ProcessPhase
func IsValidPhase(phase ProcessPhase) bool {
	switch phase {
	case PhaseIdle, PhaseValidating, PhaseExtracting, PhaseChunking,
		PhaseTranslating, PhaseFinalizing, PhasePackaging, PhaseComplete, PhaseError:
		return true
	default:
		return false
	}
}

// Status 处理状态
type Status struct {
	Phase    ProcessPhase `json:"phase"`
	Progress int          `json:"progress"` // 0-100
	Message  string       `json:"message"`
	Error    string       `json:"error,omitempty"`
}

// IsValidStatus checks if the Status has valid values
func (s *Status) IsValidStatus() bool {
	return IsValidPhase(s.Phase) && s.Progress >= 0 && s.Progress <= 100
}

// RunResult 单次转换运行的结果
type RunResult struct {
	MarkdownPath   string   `json:"markdown_path"`             // 翻译后的 Markdown 文件路径
	OutputPath     string   `json:"output_path"`               // 最终产出（目录或 zip）
	AssetFiles     []string `json:"asset_files"`               // 写出的图片文件
	TotalChunks    int      `json:"total_chunks"`
	FailedChunks   []int    `json:"failed_chunks,omitempty"`   // 保留原文的 chunk 序号
	TokensUsed     int      `json:"tokens_used"`
	CachedChunks   int      `json:"cached_chunks"`
}

// ErrorCode 错误代码枚举
type ErrorCode string

const (
	ErrMalformedInput       ErrorCode = "MALFORMED_INPUT"
	ErrTranslationIntegrity ErrorCode = "TRANSLATION_INTEGRITY"
	ErrAPIRateLimit         ErrorCode = "API_RATE_LIMIT"
	ErrNetwork              ErrorCode = "NETWORK_ERROR"
	ErrAuth                 ErrorCode = "AUTH_ERROR"
	ErrBadRequest           ErrorCode = "BAD_REQUEST"
	ErrAPICall              ErrorCode = "API_CALL_ERROR"
	ErrAssetWrite           ErrorCode = "ASSET_WRITE_ERROR"
	ErrExtract              ErrorCode = "EXTRACT_ERROR"
	ErrConfig               ErrorCode = "CONFIG_ERROR"
	ErrInternal             ErrorCode = "INTERNAL_ERROR"
	ErrCancelled            ErrorCode = "CANCELLED"
)

// AppError 应用错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface for AppError
func (e *AppError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// Unwrap returns the underlying cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError with the given code, message, and optional cause
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithDetails creates a new AppError with details
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// CodeOf returns the ErrorCode carried by err, or ErrInternal when err is not
// an AppError.
func CodeOf(err error) ErrorCode {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ErrInternal
}
