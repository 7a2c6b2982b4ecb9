package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Firebase    FirebaseConfig    `yaml:"firebase"`
	Identity    IdentityConfig    `yaml:"identity"`
	Mail        MailConfig        `yaml:"mail"`
	SMTP        SMTPConfig        `yaml:"smtp"`
	SendGrid    SendGridConfig    `yaml:"sendgrid"`
	Storage     StorageConfig     `yaml:"storage"`
	Log         LogConfig         `yaml:"log"`
	Consistency ConsistencyConfig `yaml:"consistency"`
	Portal      PortalConfig      `yaml:"portal"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
}

// ServerConfig contains HTTP and gRPC listener settings
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	GRPCPort        int      `yaml:"grpc_port"`
	CorsOrigins     []string `yaml:"cors_origins"`
	TrustedProxies  []string `yaml:"trusted_proxies"` // IPs or CIDRs allowed to set X-Forwarded-For
	PublicRateRPS   int      `yaml:"public_rate_rps"`
	PublicRateBurst int      `yaml:"public_rate_burst"`
}

// DatabaseConfig selects the document store backend
type DatabaseConfig struct {
	Type     string `yaml:"type"` // "firestore", "postgres" or "memory"
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// FirebaseConfig is shared by the Firestore, Auth and Storage clients
type FirebaseConfig struct {
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
	StorageBucket   string `yaml:"storage_bucket"`
}

// IdentityConfig selects the identity provider
type IdentityConfig struct {
	Type               string `yaml:"type"` // "firebase" or "local"
	JWTSecret          string `yaml:"jwt_secret"`
	TokenExpiryMinutes int    `yaml:"token_expiry_minutes"`
	ResetLinkBaseURL   string `yaml:"reset_link_base_url"`
}

// MailConfig selects the outbound mail transport
type MailConfig struct {
	Provider string `yaml:"provider"` // "smtp" or "sendgrid"
	From     string `yaml:"from"`
	FromName string `yaml:"from_name"`
}

// SMTPConfig contains email service settings
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// SendGridConfig contains the SendGrid API key
type SendGridConfig struct {
	APIKey string `yaml:"api_key"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	Type         string   `yaml:"type"`       // "mock" or "firebase"
	UploadDir    string   `yaml:"upload_dir"` // For mock storage
	BaseURL      string   `yaml:"base_url"`   // Server base URL for mock URLs
	MaxFileSize  int64    `yaml:"max_file_size_mb"`
	AllowedTypes []string `yaml:"allowed_types"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// ConsistencyConfig chooses between the historical unguarded writes and the
// transactional variants for request status and activity capacity.
type ConsistencyConfig struct {
	Mode string `yaml:"mode"` // "strict" or "legacy"
}

// PortalConfig holds public-facing URLs of the SPA
type PortalConfig struct {
	BaseURL string `yaml:"base_url"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	FinishPastActivities  string `yaml:"finish_past_activities"`
	ReconcileApprovals    string `yaml:"reconcile_approvals"`
	ReconcileGraceMinutes int    `yaml:"reconcile_grace_minutes"`
}

const (
	ConsistencyStrict = "strict"
	ConsistencyLegacy = "legacy"
)

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}
	if val := os.Getenv("CORS_ORIGINS"); val != "" {
		c.Server.CorsOrigins = splitCSV(val)
	}
	if val := os.Getenv("TRUSTED_PROXIES"); val != "" {
		c.Server.TrustedProxies = splitCSV(val)
	}

	if val := os.Getenv("DB_TYPE"); val != "" {
		c.Database.Type = val
	}
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}

	if val := os.Getenv("FIREBASE_PROJECT_ID"); val != "" {
		c.Firebase.ProjectID = val
	}
	if val := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); val != "" {
		c.Firebase.CredentialsFile = val
	}
	if val := os.Getenv("FIREBASE_STORAGE_BUCKET"); val != "" {
		c.Firebase.StorageBucket = val
	}

	if val := os.Getenv("IDENTITY_TYPE"); val != "" {
		c.Identity.Type = val
	}
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.Identity.JWTSecret = val
	}

	if val := os.Getenv("MAIL_PROVIDER"); val != "" {
		c.Mail.Provider = val
	}
	if val := os.Getenv("MAIL_FROM"); val != "" {
		c.Mail.From = val
	}
	if val := os.Getenv("SMTP_HOST"); val != "" {
		c.SMTP.Host = val
	}
	if val := os.Getenv("SMTP_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.SMTP.Port)
	}
	if val := os.Getenv("SMTP_USER"); val != "" {
		c.SMTP.User = val
	}
	if val := os.Getenv("SMTP_PASSWORD"); val != "" {
		c.SMTP.Password = val
	}
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.SendGrid.APIKey = val
	}

	if val := os.Getenv("UPLOAD_DIR"); val != "" {
		c.Storage.UploadDir = val
	}
	if val := os.Getenv("CONSISTENCY_MODE"); val != "" {
		c.Consistency.Mode = val
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid and fills defaults
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.GRPCPort == 0 {
		c.Server.GRPCPort = c.Server.Port + 1
	}
	for _, proxy := range c.Server.TrustedProxies {
		if _, _, err := net.ParseCIDR(proxy); err != nil && net.ParseIP(proxy) == nil {
			return fmt.Errorf("invalid trusted proxy: %q", proxy)
		}
	}
	if c.Server.PublicRateRPS == 0 {
		c.Server.PublicRateRPS = 1
	}
	if c.Server.PublicRateBurst == 0 {
		c.Server.PublicRateBurst = 5
	}

	switch c.Database.Type {
	case "", "memory":
		c.Database.Type = "memory"
	case "firestore":
		if c.Firebase.ProjectID == "" {
			return fmt.Errorf("firebase project id is required for firestore")
		}
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	switch c.Identity.Type {
	case "", "local":
		c.Identity.Type = "local"
		if len(c.Identity.JWTSecret) < 32 {
			return fmt.Errorf("JWT secret must be at least 32 characters")
		}
	case "firebase":
		if c.Firebase.ProjectID == "" {
			return fmt.Errorf("firebase project id is required for firebase identity")
		}
	default:
		return fmt.Errorf("unsupported identity type: %s", c.Identity.Type)
	}
	if c.Identity.TokenExpiryMinutes == 0 {
		c.Identity.TokenExpiryMinutes = 60
	}

	if c.Mail.From == "" {
		return fmt.Errorf("mail sender address is required")
	}
	if c.Mail.FromName == "" {
		c.Mail.FromName = "Mi Barrio Digital"
	}
	switch c.Mail.Provider {
	case "", "smtp":
		c.Mail.Provider = "smtp"
		if c.SMTP.Host == "" {
			return fmt.Errorf("SMTP host is required")
		}
		if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
			return fmt.Errorf("invalid SMTP port: %d", c.SMTP.Port)
		}
	case "sendgrid":
		if c.SendGrid.APIKey == "" {
			return fmt.Errorf("sendgrid api key is required")
		}
	default:
		return fmt.Errorf("unsupported mail provider: %s", c.Mail.Provider)
	}

	switch c.Storage.Type {
	case "", "mock":
		c.Storage.Type = "mock"
		if c.Storage.UploadDir == "" {
			return fmt.Errorf("upload directory is required")
		}
	case "firebase":
		if c.Firebase.StorageBucket == "" {
			return fmt.Errorf("firebase storage bucket is required")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
	if c.Storage.MaxFileSize == 0 {
		c.Storage.MaxFileSize = 5
	}
	if len(c.Storage.AllowedTypes) == 0 {
		c.Storage.AllowedTypes = []string{"image/jpeg", "image/png", "image/gif"}
	}

	switch c.Consistency.Mode {
	case "":
		c.Consistency.Mode = ConsistencyStrict
	case ConsistencyStrict, ConsistencyLegacy:
	default:
		return fmt.Errorf("unsupported consistency mode: %s", c.Consistency.Mode)
	}

	if c.Portal.BaseURL == "" {
		c.Portal.BaseURL = "http://localhost:5173"
	}

	if c.Scheduler.FinishPastActivities == "" {
		c.Scheduler.FinishPastActivities = "0 5 0 * * *" // 00:05 UTC
	}
	if c.Scheduler.ReconcileApprovals == "" {
		c.Scheduler.ReconcileApprovals = "0 */15 * * * *"
	}
	if c.Scheduler.ReconcileGraceMinutes == 0 {
		c.Scheduler.ReconcileGraceMinutes = 30
	}

	return nil
}

// Strict reports whether transactional request/capacity writes are enabled
func (c *Config) Strict() bool {
	return c.Consistency.Mode != ConsistencyLegacy
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetGRPCAddress returns the gRPC health server address
func (c *Config) GetGRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
