// Package config provides configuration management for the PDF-to-Markdown
// translator application.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"markdown-translator/internal/logger"
	"markdown-translator/internal/types"
)

const (
	// AppDataDirName is the application data directory under the user home
	AppDataDirName = ".enpdf2zhmd"
	// ConfigFileName is the configuration file name inside the app data dir
	ConfigFileName = "config.json"
	// EnvAPIKey is the environment variable name for the API key
	EnvAPIKey = "OPENAI_API_KEY"
	// EnvBaseURL is the environment variable name for the API base URL
	EnvBaseURL = "OPENAI_BASE_URL"
	// DefaultBaseURL is the default OpenAI-compatible API base URL
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultModel is the default model to use for translation
	DefaultModel = "gpt-4o"
	// DefaultMaxUnitSize is the default translation unit size in characters
	DefaultMaxUnitSize = 4000
	// DefaultConcurrency is the default number of in-flight translation requests
	DefaultConcurrency = 3
	// DefaultMaxRetries is the default retry budget for transient failures
	DefaultMaxRetries = 3
	// DefaultOutputFormat packages the result as a zip archive
	DefaultOutputFormat = "zip"
	// MaxHistoryEntries caps the input history length
	MaxHistoryEntries = 50
)

// Manager manages application configuration backed by a JSON file.
type Manager struct {
	configPath string
	dataDir    string
	config     *types.Config
}

// NewManager creates a new Manager with the specified config path.
// If configPath is empty, it uses the default path in the user's home directory.
func NewManager(configPath string) (*Manager, error) {
	dataDir := ""
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			logger.Error("failed to get user home directory", err)
			return nil, types.NewAppError(types.ErrConfig, "failed to get user home directory", err)
		}
		dataDir = filepath.Join(homeDir, AppDataDirName)
		configPath = filepath.Join(dataDir, ConfigFileName)
	} else {
		dataDir = filepath.Dir(configPath)
	}

	logger.Info("config manager initialized", logger.String("configPath", configPath))
	return &Manager{
		configPath: configPath,
		dataDir:    dataDir,
		config:     defaultConfig(),
	}, nil
}

// defaultConfig returns a Config with default values
func defaultConfig() *types.Config {
	return &types.Config{
		APIURL:       DefaultBaseURL,
		Model:        DefaultModel,
		MaxUnitSize:  DefaultMaxUnitSize,
		Concurrency:  DefaultConcurrency,
		MaxRetries:   DefaultMaxRetries,
		OutputFormat: DefaultOutputFormat,
		MarkerImages: true, // 默认提取图片
	}
}

// Load loads configuration from the config file.
// If the file doesn't exist, defaults are used. Environment variables take
// precedence for the API key when the file value is empty.
func (m *Manager) Load() error {
	logger.Debug("loading configuration", logger.String("path", m.configPath))

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("config file not found, using defaults", logger.String("path", m.configPath))
			m.config = defaultConfig()
		} else {
			logger.Error("failed to read config file", err, logger.String("path", m.configPath))
			return types.NewAppError(types.ErrConfig, "failed to read config file", err)
		}
	} else {
		config := &types.Config{}
		if err := json.Unmarshal(data, config); err != nil {
			logger.Warn("invalid config file format, using defaults",
				logger.String("path", m.configPath), logger.Err(err))
			m.config = defaultConfig()
		} else {
			logger.Info("configuration loaded",
				logger.String("path", m.configPath),
				logger.Int("apiKeyLength", len(config.APIKey)),
				logger.String("baseURL", config.APIURL),
				logger.String("model", config.Model))
			m.config = config
		}
	}

	// Apply defaults for empty fields
	if m.config.APIURL == "" {
		m.config.APIURL = DefaultBaseURL
	}
	if m.config.Model == "" {
		m.config.Model = DefaultModel
	}
	if m.config.MaxUnitSize <= 0 {
		m.config.MaxUnitSize = DefaultMaxUnitSize
	}
	if m.config.Concurrency <= 0 {
		m.config.Concurrency = DefaultConcurrency
	}
	if m.config.MaxRetries <= 0 {
		m.config.MaxRetries = DefaultMaxRetries
	}
	if m.config.OutputFormat == "" {
		m.config.OutputFormat = DefaultOutputFormat
	}

	return nil
}

// Save saves the current configuration to the config file.
func (m *Manager) Save() error {
	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("failed to create config directory", err, logger.String("dir", dir))
		return types.NewAppError(types.ErrConfig, "failed to create config directory", err)
	}

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrConfig, "failed to marshal config", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		logger.Error("failed to write config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to write config file", err)
	}

	logger.Info("configuration saved", logger.String("path", m.configPath))
	return nil
}

// GetConfig returns the current configuration.
func (m *Manager) GetConfig() *types.Config {
	if m.config == nil {
		return defaultConfig()
	}
	return m.config
}

// SetConfig sets the entire configuration.
func (m *Manager) SetConfig(config *types.Config) {
	m.config = config
}

// GetConfigPath returns the path to the config file.
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// GetAPIKey returns the API key, falling back to the environment variable.
func (m *Manager) GetAPIKey() string {
	if m.config != nil && m.config.APIKey != "" {
		return m.config.APIKey
	}
	return os.Getenv(EnvAPIKey)
}

// GetBaseURL returns the API base URL, falling back to the environment
// variable and then the default.
func (m *Manager) GetBaseURL() string {
	if m.config != nil && m.config.APIURL != "" {
		return m.config.APIURL
	}
	if envURL := os.Getenv(EnvBaseURL); envURL != "" {
		return envURL
	}
	return DefaultBaseURL
}

// GetModel returns the model identifier to use for translation.
func (m *Manager) GetModel() string {
	if m.config != nil && m.config.Model != "" {
		return m.config.Model
	}
	return DefaultModel
}

// GetMaxUnitSize returns the translation unit size bound in characters.
func (m *Manager) GetMaxUnitSize() int {
	if m.config != nil && m.config.MaxUnitSize > 0 {
		return m.config.MaxUnitSize
	}
	return DefaultMaxUnitSize
}

// GetConcurrency returns the translation concurrency limit.
func (m *Manager) GetConcurrency() int {
	if m.config != nil && m.config.Concurrency > 0 {
		return m.config.Concurrency
	}
	return DefaultConcurrency
}

// GetMaxRetries returns the retry budget for transient failures.
func (m *Manager) GetMaxRetries() int {
	if m.config != nil && m.config.MaxRetries > 0 {
		return m.config.MaxRetries
	}
	return DefaultMaxRetries
}

// DataDir returns the application data directory.
func (m *Manager) DataDir() string {
	return m.dataDir
}

// NewSessionDir creates and returns a fresh working directory for one
// conversion run, keyed by a random session id.
func (m *Manager) NewSessionDir() (string, error) {
	base := m.dataDir
	if m.config != nil && m.config.WorkDirectory != "" {
		base = m.config.WorkDirectory
	}
	sessionDir := filepath.Join(base, "temp", uuid.New().String())
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return "", types.NewAppError(types.ErrConfig, "failed to create session directory", err)
	}
	return sessionDir, nil
}

// AddHistoryEntry prepends one history record, capping the list length, and
// saves the configuration. Save failures are logged, not returned.
func (m *Manager) AddHistoryEntry(input, output string) {
	if m.config == nil {
		m.config = defaultConfig()
	}
	entry := types.InputHistoryItem{
		Input:     input,
		Output:    output,
		Timestamp: time.Now().UnixMilli(),
	}
	m.config.InputHistory = append([]types.InputHistoryItem{entry}, m.config.InputHistory...)
	if len(m.config.InputHistory) > MaxHistoryEntries {
		m.config.InputHistory = m.config.InputHistory[:MaxHistoryEntries]
	}
	if err := m.Save(); err != nil {
		logger.Warn("failed to persist input history", logger.Err(err))
	}
}
