package config

import (
	"github.com/garyjia/proposal-review/internal/container"
)

// ToContainerConfig converts the file-based Config into the container's
// configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	users := make([]container.UserSeed, 0, len(c.Directory.Users))
	for _, u := range c.Directory.Users {
		users = append(users, container.UserSeed{
			Email:      u.Email,
			Name:       u.Name,
			Role:       u.Role,
			LarkOpenID: u.LarkOpenID,
		})
	}

	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		Lark: container.LarkConfig{
			AppID:     c.Lark.AppID,
			AppSecret: c.Lark.AppSecret,
			BaseURL:   c.Lark.BaseURL,
		},
		Notification: container.NotificationConfig{
			Enabled:    c.Notification.Enabled,
			ChatID:     c.Notification.ChatID,
			EmailPosts: c.Notification.EmailPosts,
			RecordURL:  c.Notification.RecordURL,
		},
		Workflow: container.WorkflowConfig{
			StageCatalog:    c.Workflow.StageCatalog,
			ReviewerRole:    c.Workflow.ReviewerRole,
			AutoStartOnSave: c.Workflow.AutoStartOnSave,
		},
		Export: container.ExportConfig{
			Dir: c.Export.Dir,
		},
		Directory: container.DirectoryConfig{
			Users: users,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
		},
	}
}
