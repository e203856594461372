package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/MrEthical07/bakeryauth"
)

const EnvPrefix = "BAKERY"

type ServerSettings struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	BodyLimitMB       int           `mapstructure:"body_limit_mb" yaml:"body_limit_mb"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	CORSOrigins       string        `mapstructure:"cors_origins" yaml:"cors_origins"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type LogSettings struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

type MongoSettings struct {
	URI      string `mapstructure:"uri" yaml:"uri"`
	Database string `mapstructure:"database" yaml:"database"`
}

// RedisSettings with an empty Addr disables rate limiting, refresh
// serialization and Google sign-in.
type RedisSettings struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

type JWTSettings struct {
	AccessSecret  string        `mapstructure:"access_secret" yaml:"access_secret"`
	RefreshSecret string        `mapstructure:"refresh_secret" yaml:"refresh_secret"`
	AccessTTL     time.Duration `mapstructure:"access_ttl" yaml:"access_ttl"`
	RefreshTTL    time.Duration `mapstructure:"refresh_ttl" yaml:"refresh_ttl"`
	Issuer        string        `mapstructure:"issuer" yaml:"issuer"`
}

// MailSettings selects the OTP mail transport: "log" or "brevo".
type MailSettings struct {
	Provider    string        `mapstructure:"provider" yaml:"provider"`
	BrevoAPIKey string        `mapstructure:"brevo_api_key" yaml:"brevo_api_key"`
	SenderEmail string        `mapstructure:"sender_email" yaml:"sender_email"`
	SenderName  string        `mapstructure:"sender_name" yaml:"sender_name"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// GoogleSettings with an empty ClientID disables Google sign-in.
type GoogleSettings struct {
	ClientID        string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret    string `mapstructure:"client_secret" yaml:"client_secret"`
	CallbackURL     string `mapstructure:"callback_url" yaml:"callback_url"`
	SuccessRedirect string `mapstructure:"success_redirect" yaml:"success_redirect"`
}

type S3Settings struct {
	Region        string `mapstructure:"region" yaml:"region"`
	Bucket        string `mapstructure:"bucket" yaml:"bucket"`
	Endpoint      string `mapstructure:"endpoint" yaml:"endpoint"`
	PublicBaseURL string `mapstructure:"public_base_url" yaml:"public_base_url"`
}

// UploadSettings selects where avatars go: "disk" or "s3".
type UploadSettings struct {
	Backend      string     `mapstructure:"backend" yaml:"backend"`
	Dir          string     `mapstructure:"dir" yaml:"dir"`
	PublicPrefix string     `mapstructure:"public_prefix" yaml:"public_prefix"`
	S3           S3Settings `mapstructure:"s3" yaml:"s3"`
}

// KafkaSettings with no brokers disables audit streaming.
type KafkaSettings struct {
	Brokers []string `mapstructure:"brokers" yaml:"brokers"`
	Topic   string   `mapstructure:"topic" yaml:"topic"`
}

type LimitSettings struct {
	MaxLoginAttempts   int           `mapstructure:"max_login_attempts" yaml:"max_login_attempts"`
	LoginCooldown      time.Duration `mapstructure:"login_cooldown" yaml:"login_cooldown"`
	MaxRefreshAttempts int           `mapstructure:"max_refresh_attempts" yaml:"max_refresh_attempts"`
	RefreshCooldown    time.Duration `mapstructure:"refresh_cooldown" yaml:"refresh_cooldown"`
	MaxOTPRequests     int           `mapstructure:"max_otp_requests" yaml:"max_otp_requests"`
	OTPWindow          time.Duration `mapstructure:"otp_window" yaml:"otp_window"`
}

type AuthSettings struct {
	MaxTokens            int  `mapstructure:"max_tokens" yaml:"max_tokens"`
	CrossCheckAccess     bool `mapstructure:"cross_check_access" yaml:"cross_check_access"`
	RevokeAllOnReuse     bool `mapstructure:"revoke_all_on_reuse" yaml:"revoke_all_on_reuse"`
	SerializeRefresh     bool `mapstructure:"serialize_refresh" yaml:"serialize_refresh"`
	ResetRevokesSessions bool `mapstructure:"reset_revokes_sessions" yaml:"reset_revokes_sessions"`
	AuditBuffer          int  `mapstructure:"audit_buffer" yaml:"audit_buffer"`
}

type Settings struct {
	Server ServerSettings `mapstructure:"server" yaml:"server"`
	Log    LogSettings    `mapstructure:"log" yaml:"log"`
	Mongo  MongoSettings  `mapstructure:"mongo" yaml:"mongo"`
	Redis  RedisSettings  `mapstructure:"redis" yaml:"redis"`
	JWT    JWTSettings    `mapstructure:"jwt" yaml:"jwt"`
	Mail   MailSettings   `mapstructure:"mail" yaml:"mail"`
	Google GoogleSettings `mapstructure:"google" yaml:"google"`
	Upload UploadSettings `mapstructure:"upload" yaml:"upload"`
	Kafka  KafkaSettings  `mapstructure:"kafka" yaml:"kafka"`
	Limits LimitSettings  `mapstructure:"limits" yaml:"limits"`
	Auth   AuthSettings   `mapstructure:"auth" yaml:"auth"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.body_limit_mb", 4)
	v.SetDefault("server.requests_per_minute", 50)
	v.SetDefault("server.cors_origins", "")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "bakery")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.access_secret", "")
	v.SetDefault("jwt.refresh_secret", "")
	v.SetDefault("jwt.access_ttl", 15*time.Minute)
	v.SetDefault("jwt.refresh_ttl", 7*24*time.Hour)
	v.SetDefault("jwt.issuer", "bakeryauth")

	v.SetDefault("mail.provider", "log")
	v.SetDefault("mail.brevo_api_key", "")
	v.SetDefault("mail.sender_email", "")
	v.SetDefault("mail.sender_name", "Bakery")
	v.SetDefault("mail.timeout", 10*time.Second)

	v.SetDefault("google.client_id", "")
	v.SetDefault("google.client_secret", "")
	v.SetDefault("google.callback_url", "")
	v.SetDefault("google.success_redirect", "")

	v.SetDefault("upload.backend", "disk")
	v.SetDefault("upload.dir", "./uploads")
	v.SetDefault("upload.public_prefix", "/api/assets")
	v.SetDefault("upload.s3.region", "")
	v.SetDefault("upload.s3.bucket", "")
	v.SetDefault("upload.s3.endpoint", "")
	v.SetDefault("upload.s3.public_base_url", "")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "bakeryauth.audit")

	v.SetDefault("limits.max_login_attempts", 5)
	v.SetDefault("limits.login_cooldown", 15*time.Minute)
	v.SetDefault("limits.max_refresh_attempts", 20)
	v.SetDefault("limits.refresh_cooldown", time.Minute)
	v.SetDefault("limits.max_otp_requests", 10)
	v.SetDefault("limits.otp_window", 10*time.Minute)

	v.SetDefault("auth.max_tokens", 5)
	v.SetDefault("auth.cross_check_access", true)
	v.SetDefault("auth.revoke_all_on_reuse", false)
	v.SetDefault("auth.serialize_refresh", false)
	v.SetDefault("auth.reset_revokes_sessions", false)
	v.SetDefault("auth.audit_buffer", 1024)
}

// Load reads settings from path (optional) and the environment.
func Load(path string) (*Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := checkKnownFields(raw); err != nil {
			return nil, err
		}
		v.SetConfigType("yaml")
		if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func checkKnownFields(raw []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var probe Settings
	if err := dec.Decode(&probe); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid config file: %w", err)
	}
	return nil
}

func (s Settings) Validate() error {
	if s.JWT.AccessSecret == "" || s.JWT.RefreshSecret == "" {
		return errors.New("jwt access_secret and refresh_secret are required")
	}
	switch s.Mail.Provider {
	case "log":
	case "brevo":
		if s.Mail.BrevoAPIKey == "" || s.Mail.SenderEmail == "" {
			return errors.New("mail provider brevo requires brevo_api_key and sender_email")
		}
	default:
		return fmt.Errorf("unknown mail provider %q", s.Mail.Provider)
	}
	switch s.Upload.Backend {
	case "disk":
		if s.Upload.Dir == "" {
			return errors.New("upload backend disk requires dir")
		}
	case "s3":
		if s.Upload.S3.Bucket == "" || s.Upload.S3.Region == "" {
			return errors.New("upload backend s3 requires s3.bucket and s3.region")
		}
	default:
		return fmt.Errorf("unknown upload backend %q", s.Upload.Backend)
	}
	if s.Google.ClientID != "" {
		if s.Google.ClientSecret == "" || s.Google.CallbackURL == "" {
			return errors.New("google sign-in requires client_secret and callback_url")
		}
		if s.Redis.Addr == "" {
			return errors.New("google sign-in requires redis for oauth state")
		}
	}
	if s.Auth.SerializeRefresh && s.Redis.Addr == "" {
		return errors.New("auth.serialize_refresh requires redis")
	}
	if s.Kafka.Topic == "" && len(s.Kafka.Brokers) > 0 {
		return errors.New("kafka topic is required when brokers are set")
	}
	return nil
}

// EngineConfig maps the settings onto the engine configuration.
func (s Settings) EngineConfig() bakeryauth.Config {
	cfg := bakeryauth.DefaultConfig()

	cfg.JWT.AccessSecret = []byte(s.JWT.AccessSecret)
	cfg.JWT.RefreshSecret = []byte(s.JWT.RefreshSecret)
	cfg.JWT.AccessTTL = s.JWT.AccessTTL
	cfg.JWT.RefreshTTL = s.JWT.RefreshTTL
	cfg.JWT.Issuer = s.JWT.Issuer

	cfg.Refresh.MaxTokens = s.Auth.MaxTokens
	cfg.Refresh.CrossCheckAccess = s.Auth.CrossCheckAccess
	cfg.Refresh.RevokeAllOnReuse = s.Auth.RevokeAllOnReuse
	cfg.Refresh.SerializePerUser = s.Auth.SerializeRefresh
	cfg.PasswordReset.RevokeSessions = s.Auth.ResetRevokesSessions

	cfg.Security.MaxLoginAttempts = s.Limits.MaxLoginAttempts
	cfg.Security.LoginCooldownDuration = s.Limits.LoginCooldown
	cfg.Security.MaxRefreshAttempts = s.Limits.MaxRefreshAttempts
	cfg.Security.RefreshCooldownDuration = s.Limits.RefreshCooldown
	cfg.Security.MaxOTPRequests = s.Limits.MaxOTPRequests
	cfg.Security.OTPRequestWindow = s.Limits.OTPWindow

	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = s.Auth.AuditBuffer
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

const redacted = "REDACTED"

// Dump renders the effective settings as YAML with secrets redacted.
func Dump(s Settings) ([]byte, error) {
	mask := func(v *string) {
		if *v != "" {
			*v = redacted
		}
	}
	mask(&s.JWT.AccessSecret)
	mask(&s.JWT.RefreshSecret)
	mask(&s.Redis.Password)
	mask(&s.Mail.BrevoAPIKey)
	mask(&s.Google.ClientSecret)

	out, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	return out, nil
}
