package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"Preda/internal/bsi"
	"Preda/pkg/logger"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type OracleEndpoint struct {
	Enabled  bool   `yaml:"enabled" default:"true"`
	Endpoint string `yaml:"endpoint"`
}

type Config struct {
	Environment string        `yaml:"environment" default:"development"`
	Log         logger.Config `yaml:"log"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	// Backend selects where inflection events and index samples go: kafka, clickhouse or none.
	Backend struct {
		Type         string        `yaml:"type" default:"none"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"2s"`
	} `yaml:"backend"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Topics       struct {
			Signals     string `yaml:"signals" default:"preda.signals"`
			Updates     string `yaml:"updates" default:"preda.bsi"`
			Inflections string `yaml:"inflections" default:"preda.inflections"`
			Logs        string `yaml:"logs" default:"preda.logs"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id" default:"preda-engine"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"1000"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"preda.signals.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"preda"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr" default:"localhost:6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		TTL      time.Duration `yaml:"ttl" default:"5m"`
	} `yaml:"redis"`
	BSI     bsi.Config `yaml:"bsi"`
	Monitor struct {
		Threshold      float64 `yaml:"threshold" default:"0.5"`
		MinPersistence int64   `yaml:"min_persistence" default:"300"`
	} `yaml:"monitor"`
	Engine struct {
		Domains            []string      `yaml:"domains"`
		MaxBufferSize      int           `yaml:"max_buffer_size" default:"1000"`
		SignalMaxAge       int64         `yaml:"signal_max_age" default:"3600"`
		RecentWindow       int64         `yaml:"recent_window" default:"900"`
		RefreshInterval    time.Duration `yaml:"refresh_interval" default:"60s"`
		DecayInterval      time.Duration `yaml:"decay_interval" default:"10m"`
		ValidationInterval time.Duration `yaml:"validation_interval" default:"30s"`
		ValidationTimeout  time.Duration `yaml:"validation_timeout" default:"1h"`
		QueryTimeout       time.Duration `yaml:"query_timeout" default:"10s"`
	} `yaml:"engine"`
	Oracles struct {
		APIKey        string         `yaml:"api_key"`
		Timeout       time.Duration  `yaml:"timeout" default:"10s"`
		RatePerSecond float64        `yaml:"rate_per_second" default:"5"`
		Sentiment     OracleEndpoint `yaml:"sentiment"`
		Narrative     OracleEndpoint `yaml:"narrative"`
		Forecast      OracleEndpoint `yaml:"forecast"`
		Consensus     OracleEndpoint `yaml:"consensus"`
	} `yaml:"oracles"`
	Stream struct {
		Enabled        bool          `yaml:"enabled"`
		URL            string        `yaml:"url"`
		APIKey         string        `yaml:"api_key"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
	} `yaml:"stream"`
	Ingest struct {
		RatePerSecond float64 `yaml:"rate_per_second" default:"50"`
		Burst         int     `yaml:"burst" default:"100"`
		BufferSize    int     `yaml:"buffer_size" default:"2000"`
	} `yaml:"ingest"`
}

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Parse applies defaults, decodes YAML over them and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A .env file in the working directory is read first when present.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("PREDA_DOMAINS"); v != "" {
		c.Engine.Domains = splitList(v)
	}
	if v := getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("ORACLE_API_KEY"); v != "" {
		c.Oracles.APIKey = v
	}
	if v := getenv("STREAM_API_KEY"); v != "" {
		c.Stream.APIKey = v
	}
	if v := getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Backend.Type {
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty with backend.type=kafka")
		}
	case "clickhouse", "none":
	default:
		return fmt.Errorf("backend.type must be 'kafka', 'clickhouse' or 'none', got '%s'", c.Backend.Type)
	}
	if c.Kafka.Consumer.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty with the signals consumer enabled")
	}
	if len(c.Engine.Domains) == 0 {
		return fmt.Errorf("engine.domains cannot be empty")
	}
	if c.Engine.MaxBufferSize <= 0 {
		return fmt.Errorf("engine.max_buffer_size must be positive")
	}
	if c.Monitor.Threshold <= 0 {
		return fmt.Errorf("monitor.threshold must be positive")
	}
	if c.Monitor.MinPersistence < 0 {
		return fmt.Errorf("monitor.min_persistence cannot be negative")
	}
	if c.Stream.Enabled && c.Stream.URL == "" {
		return fmt.Errorf("stream.url is required when the stream is enabled")
	}
	if err := c.BSI.Validate(); err != nil {
		return fmt.Errorf("bsi: %w", err)
	}
	return nil
}
