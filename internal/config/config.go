// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Admin         AdminConfig         `mapstructure:"admin"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	LLM           LLMConfig           `mapstructure:"llm"`
	PizzaAPI      PizzaAPIConfig      `mapstructure:"pizza_api"`
	Chat          ChatConfig          `mapstructure:"chat"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。DSN 为空时不启用订单归档表。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储会话令牌与管理员令牌的配置。
type JWTConfig struct {
	Secret             string `mapstructure:"secret"`
	SessionExpireHours int    `mapstructure:"session_expire_hours"`
	AdminExpireHours   int    `mapstructure:"admin_expire_hours"`
}

// AdminConfig 存储后台管理账号。PasswordHash 是 bcrypt 哈希。
type AdminConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。Brokers 为空时订单事件不走 Kafka。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置，用于菜单模糊检索。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置，用于保存订单回执。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey         string              `mapstructure:"api_key"`
	BaseURL        string              `mapstructure:"base_url"`
	Model          string              `mapstructure:"model"`
	TimeoutSeconds int                 `mapstructure:"timeout_seconds"`
	PromptFile     string              `mapstructure:"prompt_file"`
	Generation     LLMGenerationConfig `mapstructure:"generation"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// PizzaAPIConfig 存储第三方披萨下单 API 的配置。
type PizzaAPIConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MenuTTLMinutes int    `mapstructure:"menu_ttl_minutes"`
}

// ChatConfig 控制会话历史与下单草稿的保存策略。
type ChatConfig struct {
	HistoryLimit    int `mapstructure:"history_limit"`
	HistoryTTLHours int `mapstructure:"history_ttl_hours"`
	DraftTTLMinutes int `mapstructure:"draft_ttl_minutes"`
}

// LLMTimeout 返回单次 LLM 调用的超时时间。
func (c LLMConfig) LLMTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout 返回调用披萨 API 的超时时间。
func (c PizzaAPIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MenuTTL 返回菜单缓存的有效期。
func (c PizzaAPIConfig) MenuTTL() time.Duration {
	return time.Duration(c.MenuTTLMinutes) * time.Minute
}

// HistoryTTL 返回会话历史在 Redis 中的过期时间。
func (c ChatConfig) HistoryTTL() time.Duration {
	return time.Duration(c.HistoryTTLHours) * time.Hour
}

// DraftTTL 返回下单草稿在 Redis 中的过期时间。
func (c ChatConfig) DraftTTL() time.Duration {
	return time.Duration(c.DraftTTLMinutes) * time.Minute
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("database.redis.addr", "localhost:6379")
	v.SetDefault("jwt.session_expire_hours", 24*7)
	v.SetDefault("jwt.admin_expire_hours", 12)
	v.SetDefault("admin.username", "admin")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("kafka.topic", "pizza-orders")
	v.SetDefault("kafka.group_id", "pizzabot-go-archiver")
	v.SetDefault("elasticsearch.index_name", "pizza_menu")
	v.SetDefault("minio.bucket_name", "order-receipts")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4")
	v.SetDefault("llm.timeout_seconds", 30)
	v.SetDefault("llm.prompt_file", "./configs/prompts.yaml")
	v.SetDefault("pizza_api.base_url", "https://react-fast-pizza-api.onrender.com/api")
	v.SetDefault("pizza_api.timeout_seconds", 15)
	v.SetDefault("pizza_api.menu_ttl_minutes", 10)
	v.SetDefault("chat.history_limit", 40)
	v.SetDefault("chat.history_ttl_hours", 24*7)
	v.SetDefault("chat.draft_ttl_minutes", 30)
}

// Load 读取指定路径的 YAML 配置文件，并叠加环境变量覆盖。
// 环境变量名由配置键转换而来，例如 llm.model -> LLM_MODEL；
// OPENAI_API_KEY 额外映射到 llm.api_key。
func Load(configPath string) (Config, error) {
	// .env 文件是可选的
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("llm.api_key", "OPENAI_API_KEY", "LLM_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("绑定环境变量失败: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return cfg, nil
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
