package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultPort         = "8080"
	DefaultRedisAddr    = "localhost:6379"
	DefaultRelatedLimit = 4
	DefaultRelatedTTL   = time.Hour
	DefaultKafkaTopic   = "content-events"
	DefaultKafkaGroupID = "quill-cache-invalidator"
	DefaultRefreshCron  = "*/15 * * * *"
	DefaultWarmItems    = 20
	MaxRelatedLimit     = 50
)

// Config is the service configuration. Values come from an optional YAML
// file (QUILL_CONFIG) and are overridden by environment variables.
type Config struct {
	Port  string `yaml:"port"`
	Debug bool   `yaml:"debug"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Disabled bool   `yaml:"disabled"`
	} `yaml:"redis"`

	Related struct {
		DefaultLimit int           `yaml:"default_limit"`
		TTL          time.Duration `yaml:"ttl"`
		WarmItems    int           `yaml:"warm_items"`
	} `yaml:"related"`

	Snapshot struct {
		File        string `yaml:"file"`
		S3Bucket    string `yaml:"s3_bucket"`
		S3Region    string `yaml:"s3_region"`
		S3Profile   string `yaml:"s3_profile"`
		S3Prefix    string `yaml:"s3_prefix"`
		S3Endpoint  string `yaml:"s3_endpoint"`
		S3PathStyle bool   `yaml:"s3_use_path_style"`
		RefreshCron string `yaml:"refresh_cron"`
	} `yaml:"snapshot"`

	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
		GroupID string   `yaml:"group_id"`
	} `yaml:"kafka"`
}

// Default returns a config populated with defaults
func Default() *Config {
	cfg := &Config{Port: DefaultPort}
	cfg.Redis.Addr = DefaultRedisAddr
	cfg.Related.DefaultLimit = DefaultRelatedLimit
	cfg.Related.TTL = DefaultRelatedTTL
	cfg.Related.WarmItems = DefaultWarmItems
	cfg.Snapshot.RefreshCron = DefaultRefreshCron
	cfg.Kafka.Topic = DefaultKafkaTopic
	cfg.Kafka.GroupID = DefaultKafkaGroupID
	return cfg
}

// Load reads .env (if present), the optional YAML file named by QUILL_CONFIG,
// then applies environment overrides and validates the result.
func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("QUILL_CONFIG")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Port = getEnvOrDefault("PORT", c.Port)
	c.Redis.Addr = getEnvOrDefault("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnvOrDefault("REDIS_PASS", c.Redis.Password)
	c.Snapshot.File = getEnvOrDefault("SNAPSHOT_FILE", c.Snapshot.File)
	c.Snapshot.S3Bucket = getEnvOrDefault("S3_BUCKET", c.Snapshot.S3Bucket)
	c.Snapshot.S3Region = getEnvOrDefault("S3_REGION", c.Snapshot.S3Region)
	c.Snapshot.S3Profile = getEnvOrDefault("S3_PROFILE", c.Snapshot.S3Profile)
	c.Snapshot.S3Prefix = getEnvOrDefault("S3_PREFIX", c.Snapshot.S3Prefix)
	c.Snapshot.S3Endpoint = getEnvOrDefault("S3_ENDPOINT", c.Snapshot.S3Endpoint)
	c.Snapshot.RefreshCron = getEnvOrDefault("REFRESH_CRON", c.Snapshot.RefreshCron)
	c.Kafka.Topic = getEnvOrDefault("KAFKA_TOPIC", c.Kafka.Topic)
	c.Kafka.GroupID = getEnvOrDefault("KAFKA_GROUP_ID", c.Kafka.GroupID)

	if v := os.Getenv("KAFKA_BOOTSTRAP_SERVERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}

	var err error
	if c.Redis.DB, err = getEnvInt("REDIS_DB", c.Redis.DB); err != nil {
		return err
	}
	if c.Related.DefaultLimit, err = getEnvInt("RELATED_DEFAULT_LIMIT", c.Related.DefaultLimit); err != nil {
		return err
	}
	if c.Related.WarmItems, err = getEnvInt("RELATED_WARM_ITEMS", c.Related.WarmItems); err != nil {
		return err
	}
	secs, err := getEnvInt("RELATED_TTL_SECONDS", int(c.Related.TTL/time.Second))
	if err != nil {
		return err
	}
	c.Related.TTL = time.Duration(secs) * time.Second

	if c.Redis.Disabled, err = getEnvBool("REDIS_DISABLED", c.Redis.Disabled); err != nil {
		return err
	}
	if c.Snapshot.S3PathStyle, err = getEnvBool("S3_USE_PATH_STYLE", c.Snapshot.S3PathStyle); err != nil {
		return err
	}
	if c.Debug, err = getEnvBool("LOG_DEBUG", c.Debug); err != nil {
		return err
	}
	return nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port must not be empty")
	}
	if c.Related.DefaultLimit < 1 || c.Related.DefaultLimit > MaxRelatedLimit {
		return fmt.Errorf("related default limit must be between 1 and %d, got %d", MaxRelatedLimit, c.Related.DefaultLimit)
	}
	if c.Related.TTL <= 0 {
		return fmt.Errorf("related ttl must be positive, got %s", c.Related.TTL)
	}
	if c.Related.WarmItems < 0 {
		return fmt.Errorf("related warm items must not be negative")
	}
	if c.Snapshot.File != "" && c.Snapshot.S3Bucket != "" {
		return fmt.Errorf("snapshot file and s3 bucket are mutually exclusive")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka topic is required when brokers are set")
	}
	return nil
}

// S3Prefix returns the configured prefix with a single trailing slash
func (c *Config) S3Prefix() string {
	p := strings.Trim(strings.TrimSpace(c.Snapshot.S3Prefix), "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
