// Package container provides dependency injection and lifecycle management
// for the proposal review service.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Lark API configuration
	Lark LarkConfig

	// Notification delivery configuration
	Notification NotificationConfig

	// Workflow configuration
	Workflow WorkflowConfig

	// Export archive configuration
	Export ExportConfig

	// Directory provisioning
	Directory DirectoryConfig

	// Server configuration
	Server ServerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// MigrationsDir is the path to migration files; empty uses the embedded schema
	MigrationsDir string
}

// LarkConfig holds Lark API settings.
type LarkConfig struct {
	// AppID is the Lark application ID
	AppID string

	// AppSecret is the Lark application secret
	AppSecret string

	// BaseURL overrides the open platform domain
	BaseURL string
}

// NotificationConfig holds notification settings.
type NotificationConfig struct {
	// Enabled turns on the Lark notifier
	Enabled bool

	// ChatID is the group chat that receives every notice
	ChatID string

	// EmailPosts sends adjustment notices to recipients by email
	EmailPosts bool

	// RecordURL is a printf pattern for links back to a record
	RecordURL string
}

// WorkflowConfig holds approval workflow settings.
type WorkflowConfig struct {
	// StageCatalog is the path to a YAML stage catalogue
	StageCatalog string

	// ReviewerRole is the directory role that reviews adjustment requests
	ReviewerRole string

	// AutoStartOnSave starts the workflow when a saved record becomes ready
	AutoStartOnSave bool
}

// ExportConfig holds export archive settings.
type ExportConfig struct {
	// Dir is the base directory for archived exports
	Dir string
}

// DirectoryConfig holds users created at startup when missing.
type DirectoryConfig struct {
	Users []UserSeed
}

// UserSeed is a directory entry to provision.
type UserSeed struct {
	Email      string
	Name       string
	Role       string
	LarkOpenID string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host to bind to
	Host string

	// Port to listen on
	Port int

	// ReadTimeout for HTTP server
	ReadTimeout time.Duration

	// WriteTimeout for HTTP server
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         "data/proposals.db",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		Notification: NotificationConfig{
			EmailPosts: true,
		},
		Workflow: WorkflowConfig{
			ReviewerRole: "reviewer",
		},
		Export: ExportConfig{
			Dir: "exports",
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Export.Dir == "" {
		return fmt.Errorf("export.dir is required")
	}

	// Lark credentials only matter when the notifier is wired
	if c.Notification.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required")
		}
	}

	return nil
}
