// Package translator provides markup-safe translation of document chunks
// through an OpenAI-compatible chat-completions API. Non-translatable spans
// are masked with placeholders before the request and restored afterwards,
// with an exactly-once integrity check on every placeholder.
package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"markdown-translator/internal/document"
	"markdown-translator/internal/logger"
	"markdown-translator/internal/types"
)

const (
	// DefaultModel is the default model to use for translation
	DefaultModel = "gpt-4o"
	// DefaultTimeout is the HTTP client timeout for a single API call.
	// Timeouts are per network call, not per chunk lifetime.
	DefaultTimeout = 180 * time.Second
	// BlockSeparator delimits the blocks of one chunk inside a single request
	BlockSeparator = "\n---BLOCK_SEPARATOR---\n"
)

// Engine translates document chunks English→Chinese while preserving markup.
type Engine struct {
	apiKey string
	apiURL string
	model  string
	client *http.Client
}

// Config holds the Engine construction options.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewEngine creates a translation engine from the given configuration,
// applying defaults for zero values.
func NewEngine(cfg Config) *Engine {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Engine{
		apiKey: cfg.APIKey,
		apiURL: normalizeAPIURL(cfg.BaseURL),
		model:  model,
		client: &http.Client{Timeout: timeout},
	}
}

// SetAPIURL overrides the endpoint (useful for testing with mock servers).
func (e *Engine) SetAPIURL(url string) {
	e.apiURL = normalizeAPIURL(url)
}

// normalizeAPIURL ensures the API URL ends with /chat/completions
func normalizeAPIURL(url string) string {
	if url == "" {
		return "https://api.openai.com/v1/chat/completions"
	}
	url = strings.TrimSuffix(url, "/")
	if strings.HasSuffix(url, "/chat/completions") {
		return url
	}
	return url + "/chat/completions"
}

// ChatCompletionRequest represents the request body for the chat completions API.
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

// Message represents a message in the chat completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse represents the response from the chat completions API.
type ChatCompletionResponse struct {
	ID      string    `json:"id"`
	Object  string    `json:"object"`
	Created int64     `json:"created"`
	Model   string    `json:"model"`
	Choices []Choice  `json:"choices"`
	Usage   Usage     `json:"usage"`
	Error   *APIError `json:"error,omitempty"`
}

// Choice represents a choice in the chat completion response.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// APIError represents an error response from the API.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// TranslateChunk translates one chunk in a single API request. The returned
// chunk has the identical block count and kind sequence; only Content
// differs. A placeholder or separator mismatch fails the whole chunk with
// ErrTranslationIntegrity so the caller retries it in full — partial
// patching risks silently corrupting structure.
func (e *Engine) TranslateChunk(ctx context.Context, chunk *document.Chunk) (int, error) {
	if e.apiKey == "" {
		return 0, types.NewAppError(types.ErrConfig, "API key is not configured", nil)
	}
	if len(chunk.Blocks) == 0 {
		return 0, nil
	}

	m := newMasker()
	maskedTexts := make([]string, len(chunk.Blocks))
	for i, b := range chunk.Blocks {
		maskedTexts[i] = m.MaskBlock(b)
	}

	logger.Debug("chunk masked",
		logger.Int("sequence", chunk.Sequence),
		logger.Int("blocks", len(chunk.Blocks)),
		logger.Int("placeholders", len(m.Spans())))

	payload := strings.Join(maskedTexts, BlockSeparator)
	translated, tokens, err := e.doTranslate(ctx, payload)
	if err != nil {
		return 0, err
	}

	translated = cleanTranslationResult(translated)

	parts := strings.Split(translated, strings.TrimSpace(BlockSeparator))
	if len(parts) != len(chunk.Blocks) {
		logger.Warn("separator count mismatch in translation",
			logger.Int("sequence", chunk.Sequence),
			logger.Int("expected", len(chunk.Blocks)),
			logger.Int("got", len(parts)))
		return 0, types.NewAppErrorWithDetails(
			types.ErrTranslationIntegrity,
			"translated block count mismatch",
			fmt.Sprintf("expected %d blocks, got %d", len(chunk.Blocks), len(parts)),
			nil,
		)
	}

	missing, duplicated := m.Verify(translated)
	if len(missing) > 0 || len(duplicated) > 0 {
		logger.Warn("placeholder integrity check failed",
			logger.Int("sequence", chunk.Sequence),
			logger.Int("missing", len(missing)),
			logger.Int("duplicated", len(duplicated)))
		return 0, types.NewAppErrorWithDetails(
			types.ErrTranslationIntegrity,
			"placeholder integrity check failed",
			fmt.Sprintf("missing [%s] duplicated [%s]",
				strings.Join(missing, ", "), strings.Join(duplicated, ", ")),
			nil,
		)
	}

	// All checks passed: restore spans and commit content in place.
	// Punctuation is normalized before unmasking so protected spans stay
	// byte-identical.
	for i, b := range chunk.Blocks {
		text := strings.TrimSpace(parts[i])
		if b.Kind.Translatable() {
			text = normalizeMarkdownPunct(text)
		}
		b.Content = m.Unmask(text)
	}

	return tokens, nil
}

// doTranslate performs one API call over the masked payload.
func (e *Engine) doTranslate(ctx context.Context, payload string) (string, int, error) {
	reqBody := ChatCompletionRequest{
		Model: e.model,
		Messages: []Message{
			{Role: "system", Content: buildSystemPrompt()},
			{Role: "user", Content: buildUserPrompt(payload)},
		},
		Temperature: 0.1, // 降低温度使输出更确定性
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", 0, types.NewAppError(types.ErrInternal, "failed to marshal request body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", 0, types.NewAppError(types.ErrInternal, "failed to create HTTP request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", 0, types.NewAppError(types.ErrCancelled, "translation request cancelled", ctx.Err())
		}
		logger.Error("API request failed", err)
		return "", 0, types.NewAppError(types.ErrNetwork, "API request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, types.NewAppError(types.ErrNetwork, "failed to read API response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", 0, handleAPIHTTPError(resp.StatusCode, body)
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", 0, types.NewAppError(types.ErrAPICall, "failed to parse API response", err)
	}
	if chatResp.Error != nil {
		return "", 0, types.NewAppErrorWithDetails(types.ErrAPICall, "API returned error", chatResp.Error.Message, nil)
	}
	if len(chatResp.Choices) == 0 {
		return "", 0, types.NewAppError(types.ErrAPICall, "API returned no choices", nil)
	}

	finishReason := chatResp.Choices[0].FinishReason
	if finishReason == "length" {
		// Truncated output will fail the integrity check downstream.
		logger.Warn("translation output truncated by length limit",
			logger.Int("completionTokens", chatResp.Usage.CompletionTokens))
	}

	return chatResp.Choices[0].Message.Content, chatResp.Usage.TotalTokens, nil
}

// TestConnection sends a minimal request to verify the endpoint and key.
func (e *Engine) TestConnection(ctx context.Context) error {
	if e.apiKey == "" {
		return types.NewAppError(types.ErrConfig, "API key is not configured", nil)
	}
	_, _, err := e.doTranslate(ctx, "ok")
	return err
}

// handleAPIHTTPError maps an HTTP status to the error taxonomy: 401 is a
// permanent auth failure, 400 a permanent malformed request, 429 rate
// limiting, 5xx a transient server error.
func handleAPIHTTPError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	errorDetails := ""
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		errorDetails = errResp.Error.Message
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return types.NewAppErrorWithDetails(
			types.ErrAuth,
			"API authentication failed",
			"invalid API key or unauthorized access",
			nil,
		)
	case http.StatusTooManyRequests:
		return types.NewAppErrorWithDetails(
			types.ErrAPIRateLimit,
			"API rate limit exceeded",
			errorDetails,
			nil,
		)
	case http.StatusBadRequest:
		return types.NewAppErrorWithDetails(
			types.ErrBadRequest,
			"invalid API request",
			errorDetails,
			nil,
		)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return types.NewAppErrorWithDetails(
			types.ErrAPICall,
			"API server error",
			fmt.Sprintf("status %d: %s", statusCode, errorDetails),
			nil,
		)
	default:
		return types.NewAppErrorWithDetails(
			types.ErrAPICall,
			"API request failed",
			fmt.Sprintf("status %d: %s", statusCode, errorDetails),
			nil,
		)
	}
}

// cleanTranslationResult strips a wrapping ```markdown fence the model
// sometimes adds despite instructions.
func cleanTranslationResult(content string) string {
	trimmed := strings.TrimSpace(content)
	for _, prefix := range []string{"```markdown\n", "```md\n", "```\n"} {
		if strings.HasPrefix(trimmed, prefix) && strings.HasSuffix(trimmed, "```") {
			inner := strings.TrimPrefix(trimmed, prefix)
			inner = strings.TrimSuffix(inner, "```")
			return strings.TrimRight(inner, "\n")
		}
	}
	return content
}

// buildSystemPrompt creates the system prompt for structure-preserving
// Markdown translation.
func buildSystemPrompt() string {
	return `You are a professional translator specializing in academic and technical documents.
Your task is to translate Markdown text extracted from PDF documents from English to Chinese.

CRITICAL RULES:
1. Translate the text content from English to Chinese accurately, in fluent Chinese word order. 惯用术语可保留英语，首次出现的英文缩写用括号说明。
2. The text contains placeholder tokens like <<<MDSPAN_CODE_0>>>. You MUST copy every placeholder token into your output EXACTLY ONCE, completely unchanged. NEVER translate, drop, duplicate or reorder characters inside them.
3. Preserve all Markdown syntax characters (#, |, -, >) exactly where they appear.
4. The input contains multiple blocks separated by "` + BlockSeparator + `".
5. You MUST preserve these separators in your output exactly as they appear. Translate each block independently; do not merge blocks or remove separators.
6. Output only the translated text. Do not add explanations and do not wrap the output in a code fence.`
}

// buildUserPrompt creates the user prompt with the masked content.
func buildUserPrompt(payload string) string {
	return fmt.Sprintf(`Translate the following Markdown blocks from English to Chinese. Keep every placeholder token and every "%s" separator intact.

%s`, strings.TrimSpace(BlockSeparator), payload)
}
