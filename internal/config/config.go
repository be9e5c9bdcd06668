package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	AWS       AWSConfig       `yaml:"aws"`
	Twilio    TwilioConfig    `yaml:"twilio"`
	TryOn     TryOnConfig     `yaml:"tryon"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	JWT       JWTConfig       `yaml:"jwt"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
	// PublicBaseURL is the externally reachable base URL used when
	// building result-image links (e.g. an ngrok forwarding URL).
	PublicBaseURL string `yaml:"public_base_url"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// AWSConfig holds AWS configuration for the result-image bucket
type AWSConfig struct {
	Region    string `yaml:"region"`
	S3Bucket  string `yaml:"s3_bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"` // custom S3-compatible endpoint, optional
}

// TwilioConfig holds the WhatsApp messaging credentials
type TwilioConfig struct {
	AccountSID   string `yaml:"account_sid"`
	AuthToken    string `yaml:"auth_token"`
	WhatsAppFrom string `yaml:"whatsapp_from"`
}

// TryOnConfig holds prediction service configuration
type TryOnConfig struct {
	SpaceURL           string `yaml:"space_url"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
	GarmentDescription string `yaml:"garment_description"`
	DenoiseSteps       int    `yaml:"denoise_steps"`
	Seed               int    `yaml:"seed"`
}

// RateLimitConfig holds the daily quota policy
type RateLimitConfig struct {
	MaxDailyRequests int `yaml:"max_daily_requests"`
	WindowHours      int `yaml:"window_hours"`
}

// JWTConfig holds JWT configuration for the operator endpoints
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file. A .env file, if present, is
// loaded first and environment variables override file values for secrets.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyEnv() {
	overrideString(&c.Twilio.AccountSID, "TWILIO_ACCOUNT_SID")
	overrideString(&c.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
	overrideString(&c.Twilio.WhatsAppFrom, "TWILIO_WHATSAPP_NUMBER")
	overrideString(&c.Server.PublicBaseURL, "PUBLIC_BASE_URL")
	overrideString(&c.AWS.AccessKey, "AWS_ACCESS_KEY_ID")
	overrideString(&c.AWS.SecretKey, "AWS_SECRET_ACCESS_KEY")
	overrideString(&c.JWT.Secret, "JWT_SECRET")
	overrideString(&c.Database.Password, "DB_PASSWORD")

	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

func (c *Config) applyDefaults() {
	if c.RateLimit.MaxDailyRequests == 0 {
		c.RateLimit.MaxDailyRequests = 100
	}
	if c.RateLimit.WindowHours == 0 {
		c.RateLimit.WindowHours = 24
	}
	if c.TryOn.TimeoutSeconds == 0 {
		c.TryOn.TimeoutSeconds = 120
	}
	if c.TryOn.GarmentDescription == "" {
		c.TryOn.GarmentDescription = "A cool description of the garment"
	}
	if c.TryOn.DenoiseSteps == 0 {
		c.TryOn.DenoiseSteps = 30
	}
	if c.TryOn.Seed == 0 {
		c.TryOn.Seed = 42
	}
	if c.Twilio.WhatsAppFrom == "" {
		c.Twilio.WhatsAppFrom = "whatsapp:+14155238886"
	}
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// Window returns the quota window as a duration
func (c *RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowHours) * time.Hour
}

// Timeout returns the prediction call timeout as a duration
func (c *TryOnConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
