package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName           string
	AppEnv            string
	AppPort           string
	DatabaseURL       string
	RedisURL          string
	RedisChannelBase  string
	NATSURL           string
	JWTSecret         string
	TokenTTL          time.Duration
	JudgeProvider     string
	Judge0BaseURL     string
	Judge0APIKey      string
	Judge0APIHost     string
	JudgePollInterval time.Duration
	JudgeMaxAttempts  int
	DockerHost        string
	SandboxWorkspace  string
	SandboxCPUShares  int
	DashboardCacheTTL time.Duration
	SSEKeepAlive      time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CODECOURT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "CodeCourt API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("redis.channel_base", "codecourt")
	v.SetDefault("token.ttl", "12h")
	v.SetDefault("judge.provider", "judge0")
	v.SetDefault("judge.poll_interval", "1s")
	v.SetDefault("judge.max_attempts", 10)
	v.SetDefault("sandbox.cpu_shares", 512)
	v.SetDefault("dashboard.cache_ttl", "30s")
	v.SetDefault("sse.keepalive", "20s")

	tokenTTL, err := parseDuration(v.GetString("token.ttl"), "token ttl")
	if err != nil {
		return Config{}, err
	}

	pollInterval, err := parseDuration(v.GetString("judge.poll_interval"), "judge poll interval")
	if err != nil {
		return Config{}, err
	}

	cacheTTL, err := parseDuration(v.GetString("dashboard.cache_ttl"), "dashboard cache ttl")
	if err != nil {
		return Config{}, err
	}

	keepAlive, err := parseDuration(v.GetString("sse.keepalive"), "sse keepalive")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		DatabaseURL:       v.GetString("database.url"),
		RedisURL:          v.GetString("redis.url"),
		RedisChannelBase:  v.GetString("redis.channel_base"),
		NATSURL:           v.GetString("nats.url"),
		JWTSecret:         v.GetString("jwt.secret"),
		TokenTTL:          tokenTTL,
		JudgeProvider:     strings.ToLower(v.GetString("judge.provider")),
		Judge0BaseURL:     v.GetString("judge0.base_url"),
		Judge0APIKey:      v.GetString("judge0.api_key"),
		Judge0APIHost:     v.GetString("judge0.api_host"),
		JudgePollInterval: pollInterval,
		JudgeMaxAttempts:  v.GetInt("judge.max_attempts"),
		DockerHost:        v.GetString("docker_host"),
		SandboxWorkspace:  v.GetString("sandbox.workspace"),
		SandboxCPUShares:  v.GetInt("sandbox.cpu_shares"),
		DashboardCacheTTL: cacheTTL,
		SSEKeepAlive:      keepAlive,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.JudgeProvider {
	case "judge0", "sandbox":
	default:
		return Config{}, fmt.Errorf("unsupported judge provider: %s", cfg.JudgeProvider)
	}

	if cfg.JudgeProvider == "judge0" && cfg.Judge0BaseURL == "" {
		return Config{}, fmt.Errorf("judge0 base url must be provided")
	}

	if cfg.JudgeMaxAttempts <= 0 {
		cfg.JudgeMaxAttempts = 10
	}

	if cfg.SandboxCPUShares <= 0 {
		cfg.SandboxCPUShares = 512
	}

	return cfg, nil
}

func parseDuration(raw, label string) (time.Duration, error) {
	if raw == "" {
		return 0, fmt.Errorf("%s must not be empty", label)
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", label, err)
	}

	return parsed, nil
}
