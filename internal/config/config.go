package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Lark         LarkConfig         `mapstructure:"lark"`
	Notification NotificationConfig `mapstructure:"notification"`
	Workflow     WorkflowConfig     `mapstructure:"workflow"`
	Export       ExportConfig       `mapstructure:"export"`
	Directory    DirectoryConfig    `mapstructure:"directory"`
	Logger       LoggerConfig       `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// MigrationsDir overrides the schema compiled into the binary
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	BaseURL   string `mapstructure:"base_url"`
}

// NotificationConfig controls where workflow notices go
type NotificationConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ChatID     string `mapstructure:"chat_id"`
	EmailPosts bool   `mapstructure:"email_posts"`
	RecordURL  string `mapstructure:"record_url"`
}

// WorkflowConfig holds approval workflow settings
type WorkflowConfig struct {
	// StageCatalog is a YAML stage catalogue; empty uses the built-in one
	StageCatalog    string `mapstructure:"stage_catalog"`
	ReviewerRole    string `mapstructure:"reviewer_role"`
	AutoStartOnSave bool   `mapstructure:"auto_start_on_save"`
}

// ExportConfig holds export archive settings
type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

// DirectoryConfig lists users provisioned at startup
type DirectoryConfig struct {
	Users []UserConfig `mapstructure:"users"`
}

// UserConfig is one provisioned directory entry
type UserConfig struct {
	Email      string `mapstructure:"email"`
	Name       string `mapstructure:"name"`
	Role       string `mapstructure:"role"`
	LarkOpenID string `mapstructure:"lark_open_id"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads the YAML file at configPath, then applies environment
// overrides. Variables from a .env file in the working directory are
// loaded first and never replace ones already set.
func Load(configPath string) (*Config, error) {
	if err := LoadEnvFile(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs into the process environment.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := gotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("database.path", "data/proposals.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)

	v.SetDefault("notification.enabled", false)
	v.SetDefault("notification.email_posts", true)

	v.SetDefault("workflow.reviewer_role", "reviewer")
	v.SetDefault("workflow.auto_start_on_save", false)

	v.SetDefault("export.dir", "exports")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the credentials that are usually kept out of the file
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("lark.base_url", "LARK_BASE_URL")
	_ = v.BindEnv("notification.chat_id", "LARK_CHAT_ID")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Export.Dir == "" {
		return fmt.Errorf("export.dir is required")
	}

	for i, u := range c.Directory.Users {
		if u.Email == "" || u.Role == "" {
			return fmt.Errorf("directory.users[%d] needs an email and a role", i)
		}
	}

	// Lark is only needed when something will be sent
	if c.Notification.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required when notifications are enabled")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required when notifications are enabled")
		}
		if c.Notification.ChatID == "" && !c.Notification.EmailPosts {
			return fmt.Errorf("notification.chat_id or notification.email_posts is required")
		}
	}

	return nil
}
