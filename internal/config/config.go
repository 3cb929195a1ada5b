package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port         int      `yaml:"port" validate:"min=1,max=65535"`
		CORSOrigins  []string `yaml:"corsOrigins"`
		ReadTimeout  int      `yaml:"readTimeoutSeconds" validate:"min=0"`
		WriteTimeout int      `yaml:"writeTimeoutSeconds" validate:"min=0"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver" validate:"oneof=mysql postgres"`
		Host     string `yaml:"host" validate:"required"`
		Port     int    `yaml:"port" validate:"min=1,max=65535"`
		User     string `yaml:"user" validate:"required"`
		Password string `yaml:"password"`
		Name     string `yaml:"name" validate:"required"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"database"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint" validate:"required_if=Enabled true"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName" validate:"required_if=Enabled true"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	DNS struct {
		Nameservers    []string `yaml:"nameservers"`
		TimeoutSeconds int      `yaml:"timeoutSeconds" validate:"min=0"`
		Retries        int      `yaml:"retries" validate:"min=0,max=5"`
	} `yaml:"dns"`

	Monitor struct {
		Enabled       bool     `yaml:"enabled"`
		IntervalHours int      `yaml:"intervalHours" validate:"min=0"`
		AllowedPlans  []string `yaml:"allowedPlans"`
	} `yaml:"monitor"`

	OpenAI struct {
		APIKey string `yaml:"apiKey"`
		Model  string `yaml:"model"`
	} `yaml:"openai"`

	// Auth maps tenant id to its API key. Empty disables auth.
	Auth map[string]string `yaml:"auth"`

	RateLimit struct {
		RequestsPerSecond float64 `yaml:"requestsPerSecond" validate:"min=0"`
		Burst             int     `yaml:"burst" validate:"min=0"`
	} `yaml:"rateLimit"`
}

// Load baca file config.yaml, apply defaults + env override, lalu validate
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML bytes the same way Load does.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15
	}
	if c.Server.WriteTimeout == 0 {
		// a synchronous scan can take the full DNS timeout several times over
		c.Server.WriteTimeout = 60
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Port == 0 {
		if c.Database.Driver == "postgres" {
			c.Database.Port = 5432
		} else {
			c.Database.Port = 3306
		}
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.DNS.TimeoutSeconds == 0 {
		c.DNS.TimeoutSeconds = 5
	}
	if c.DNS.Retries == 0 {
		c.DNS.Retries = 1
	}
	if c.Monitor.IntervalHours == 0 {
		c.Monitor.IntervalHours = 24
	}
	if c.RateLimit.RequestsPerSecond == 0 {
		c.RateLimit.RequestsPerSecond = 5
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 10
	}
}

// secrets dari env menang atas file
func (c *Config) applyEnv() {
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		c.Minio.SecretKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
}

// Validate checks struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) DNSTimeout() time.Duration {
	return time.Duration(c.DNS.TimeoutSeconds) * time.Second
}

func (c *Config) MonitorInterval() time.Duration {
	return time.Duration(c.Monitor.IntervalHours) * time.Hour
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres (lib/pq keyword format)
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
