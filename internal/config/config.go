package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Journal JournalConfig
	Store   StoreConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	journal, err := loadJournalConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		AI:      ai,
		Journal: journal,
		Store:   loadStoreConfig(),
	}, nil
}

// ServerConfig 描述 SSH 服务与管理端口配置。
type ServerConfig struct {
	// Addr is the SSH listen address.
	Addr string
	// HostKeyPath points at the server host key (create once:
	// ssh-keygen -t ed25519 -f ./host_ed25519 -N '').
	HostKeyPath string
	// AdminAddr enables the HTTP health/stats listener when non-empty.
	AdminAddr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("SSH_PORT"))
	if port == "" {
		port = "2222"
	}

	addr := port
	if !strings.Contains(port, ":") {
		// 允许用户直接传入 ":2222" 或 "127.0.0.1:2222"。
		if strings.Contains(port, " ") {
			return ServerConfig{}, fmt.Errorf("invalid SSH_PORT value: %q", port)
		}
		addr = ":" + port
	}

	return ServerConfig{
		Addr:        addr,
		HostKeyPath: getEnvOrDefault("HOST_KEY_PATH", "./host_ed25519"),
		AdminAddr:   strings.TrimSpace(os.Getenv("ADMIN_ADDR")),
	}, nil
}

// JournalConfig 描述日记行为相关配置。
type JournalConfig struct {
	// Timezone names the zone that defines a "journal day".
	Timezone string
	// HistoryLimit caps the number of rows shown by :history.
	HistoryLimit int
	// PreviewWidth is the rune width of history previews.
	PreviewWidth int
}

func loadJournalConfig() (JournalConfig, error) {
	limit := 7
	if override, err := parseOptionalIntEnv("HISTORY_LIMIT"); err != nil {
		return JournalConfig{}, err
	} else if override != nil && *override > 0 {
		limit = *override
	}

	width := 80
	if override, err := parseOptionalIntEnv("PREVIEW_WIDTH"); err != nil {
		return JournalConfig{}, err
	} else if override != nil && *override > 0 {
		width = *override
	}

	return JournalConfig{
		Timezone:     getEnvOrDefault("APP_TZ", "America/Detroit"),
		HistoryLimit: limit,
		PreviewWidth: width,
	}, nil
}

// StoreConfig 描述持久化配置。
type StoreConfig struct {
	// Path is the SQLite database file, ":memory:" for ephemeral storage.
	Path string
}

func loadStoreConfig() StoreConfig {
	return StoreConfig{Path: getEnvOrDefault("DB_PATH", "./daybook.db")}
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	MaxTokens   *int
	// TimeoutSeconds bounds one question-generation call.
	TimeoutSeconds int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	timeout := 20
	if override, err := parseOptionalIntEnv("GEN_TIMEOUT"); err != nil {
		return AIConfig{}, err
	} else if override != nil && *override > 0 {
		timeout = *override
	}

	return AIConfig{
		APIKey:         strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:      strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:      strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:          strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:        getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:         getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:    temperature,
		MaxTokens:      maxTokens,
		TimeoutSeconds: timeout,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
