package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"

	"lenslink/pkg/validation"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	} `yaml:"server"`

	Signal struct {
		PingInterval        time.Duration `yaml:"ping_interval"`
		PongTimeout         time.Duration `yaml:"pong_timeout"`
		WriteTimeout        time.Duration `yaml:"write_timeout"`
		SendBuffer          int           `yaml:"send_buffer"`
		MaxMessageSizeBytes int64         `yaml:"max_message_size_bytes"`
		RequirePairing      bool          `yaml:"require_pairing"`
		AllowedOrigins      []string      `yaml:"allowed_origins"`
	} `yaml:"signal"`

	WebRTC struct {
		ICEServers []struct {
			URLs       []string `yaml:"urls"`
			Username   string   `yaml:"username,omitempty"`
			Credential string   `yaml:"credential,omitempty"`
		} `yaml:"ice_servers"`
	} `yaml:"webrtc"`

	Storage struct {
		DataDir       string `yaml:"data_dir"`
		PairingFile   string `yaml:"pairing_file"`
		HistoryDir    string `yaml:"history_dir"`
		HistoryWindow int    `yaml:"history_window"`
	} `yaml:"storage"`

	Media struct {
		Type      string `yaml:"type"` // "file" or "s3"
		Dir       string `yaml:"dir"`
		URLPrefix string `yaml:"url_prefix"`
		S3        struct {
			Bucket    string `yaml:"bucket"`
			Prefix    string `yaml:"prefix"`
			Region    string `yaml:"region"`
			Endpoint  string `yaml:"endpoint,omitempty"`
			AccessKey string `yaml:"access_key,omitempty"`
			SecretKey string `yaml:"secret_key,omitempty"`
		} `yaml:"s3"`
	} `yaml:"media"`

	Providers struct {
		Default string        `yaml:"default"`
		Timeout time.Duration `yaml:"timeout"`
		Persona string        `yaml:"persona"`
		Gemini  struct {
			APIKey   string `yaml:"api_key"`
			Endpoint string `yaml:"endpoint"`
			Model    string `yaml:"model"`
		} `yaml:"gemini"`
		Ollama struct {
			Endpoint string `yaml:"endpoint"`
			Model    string `yaml:"model"`
		} `yaml:"ollama"`
	} `yaml:"providers"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		ServiceName string  `yaml:"service_name"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"` // global concurrent HTTP requests
		} `yaml:"http"`

		WebSocket struct {
			MessagesPerSecond float64 `yaml:"messages_per_second"`
			Burst             int     `yaml:"burst"`
		} `yaml:"websocket"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be > 0")
	}

	// Signal
	if c.Signal.PingInterval <= 0 {
		return fmt.Errorf("signal.ping_interval must be > 0")
	}
	if c.Signal.PongTimeout <= c.Signal.PingInterval {
		return fmt.Errorf("signal.pong_timeout must be > signal.ping_interval")
	}
	if c.Signal.WriteTimeout <= 0 {
		return fmt.Errorf("signal.write_timeout must be > 0")
	}
	if c.Signal.SendBuffer <= 0 {
		return fmt.Errorf("signal.send_buffer must be > 0")
	}
	if c.Signal.MaxMessageSizeBytes <= 0 {
		return fmt.Errorf("signal.max_message_size_bytes must be > 0")
	}

	// Storage
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir must not be empty")
	}
	if c.Storage.HistoryWindow <= 0 {
		return fmt.Errorf("storage.history_window must be > 0")
	}

	// Media
	switch c.Media.Type {
	case "file":
	case "s3":
		if c.Media.S3.Bucket == "" {
			return fmt.Errorf("media.s3.bucket must not be empty when media.type=s3")
		}
		if c.Media.S3.Region == "" {
			return fmt.Errorf("media.s3.region must not be empty when media.type=s3")
		}
		if c.Media.S3.Endpoint != "" {
			if err := validation.ValidateURL(c.Media.S3.Endpoint); err != nil {
				return fmt.Errorf("media.s3.endpoint: %w", err)
			}
		}
	default:
		return fmt.Errorf("media.type must be \"file\" or \"s3\", got %q", c.Media.Type)
	}

	// Providers
	switch c.Providers.Default {
	case "gemini", "ollama":
	default:
		return fmt.Errorf("providers.default must be \"gemini\" or \"ollama\", got %q", c.Providers.Default)
	}
	if c.Providers.Timeout <= 0 {
		return fmt.Errorf("providers.timeout must be > 0")
	}
	// An empty endpoint is reported when the provider is called.
	if c.Providers.Gemini.Endpoint != "" {
		if err := validation.ValidateURL(c.Providers.Gemini.Endpoint); err != nil {
			return fmt.Errorf("providers.gemini.endpoint: %w", err)
		}
	}
	if c.Providers.Ollama.Endpoint != "" {
		if err := validation.ValidateURL(c.Providers.Ollama.Endpoint); err != nil {
			return fmt.Errorf("providers.ollama.endpoint: %w", err)
		}
	}

	// Tracing
	if c.Tracing.Enabled {
		if err := validation.ValidateURL(c.Tracing.JaegerURL); err != nil {
			return fmt.Errorf("tracing.jaeger_url: %w", err)
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MessagesPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.websocket.messages_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.Burst <= 0 {
			return fmt.Errorf("rate_limiting.websocket.burst must be > 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8443"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 120 * time.Second
	cfg.Server.ShutdownTimeout = 15 * time.Second
	cfg.Server.MaxUploadBytes = 20 << 20

	cfg.Signal.PingInterval = 30 * time.Second
	cfg.Signal.PongTimeout = 60 * time.Second
	cfg.Signal.WriteTimeout = 10 * time.Second
	cfg.Signal.SendBuffer = 64
	cfg.Signal.MaxMessageSizeBytes = 512 * 1024
	cfg.Signal.RequirePairing = false
	cfg.Signal.AllowedOrigins = []string{"*"}

	cfg.Storage.DataDir = "data"
	cfg.Storage.HistoryWindow = 50

	cfg.Media.Type = "file"
	cfg.Media.URLPrefix = "/captures"

	cfg.Providers.Default = "gemini"
	cfg.Providers.Timeout = 90 * time.Second
	cfg.Providers.Persona = "Describe what is in this image and answer any question it poses. Be concise."
	cfg.Providers.Gemini.Endpoint = "https://generativelanguage.googleapis.com/v1beta"
	cfg.Providers.Gemini.Model = "gemini-2.0-flash"
	cfg.Providers.Ollama.Endpoint = "http://localhost:11434"
	cfg.Providers.Ollama.Model = "llava"

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.ServiceName = "lenslink"
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	// Rate limiting defaults (disabled by default)
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 20
	cfg.RateLimiting.HTTP.Burst = 40
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	cfg.RateLimiting.WebSocket.MessagesPerSecond = 100
	cfg.RateLimiting.WebSocket.Burst = 200

	return cfg
}

// PairingPath is the pairing file, defaulting to pairings.json in the data dir.
func (c *Config) PairingPath() string {
	if c.Storage.PairingFile != "" {
		return c.Storage.PairingFile
	}
	return filepath.Join(c.Storage.DataDir, "pairings.json")
}

// HistoryPath is the day-bucket directory, defaulting to history/ in the data dir.
func (c *Config) HistoryPath() string {
	if c.Storage.HistoryDir != "" {
		return c.Storage.HistoryDir
	}
	return filepath.Join(c.Storage.DataDir, "history")
}

// MediaPath is the capture directory for the file media store.
func (c *Config) MediaPath() string {
	if c.Media.Dir != "" {
		return c.Media.Dir
	}
	return filepath.Join(c.Storage.DataDir, "captures")
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("LENSLINK_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("LENSLINK_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if dir := os.Getenv("LENSLINK_DATA_DIR"); dir != "" {
		c.Storage.DataDir = dir
	}
	if provider := os.Getenv("LENSLINK_PROVIDER"); provider != "" {
		c.Providers.Default = provider
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Providers.Gemini.APIKey = key
	}
	if endpoint := os.Getenv("LENSLINK_OLLAMA_ENDPOINT"); endpoint != "" {
		c.Providers.Ollama.Endpoint = endpoint
	}
	if addr := os.Getenv("LENSLINK_REDIS_ADDRESS"); addr != "" {
		c.Redis.Enabled = true
		c.Redis.Address = addr
	}
}
