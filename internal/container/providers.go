package container

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/proposal-review/internal/application/dispatcher"
	"github.com/garyjia/proposal-review/internal/application/port"
	"github.com/garyjia/proposal-review/internal/application/service"
	"github.com/garyjia/proposal-review/internal/domain/workflow"
	infraLark "github.com/garyjia/proposal-review/internal/infrastructure/external/lark"
	"github.com/garyjia/proposal-review/internal/infrastructure/persistence/repository"
	"github.com/garyjia/proposal-review/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/proposal-review/internal/infrastructure/storage"
	"github.com/garyjia/proposal-review/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn           *database.DB
	TransactionMgr *sqlite.DB
}

// LarkBundle holds the Lark client and the notifier built on it.
type LarkBundle struct {
	Client    *infraLark.SDKClient
	Messenger port.MessageSender
	Notifier  port.Notifier
}

// ProvideDatabase opens the database, applies pending migrations and
// wraps the connection in a transaction manager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	conn, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(conn, logger).RunMigrations(cfg.MigrationsDir); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Conn:           conn,
		TransactionMgr: sqlite.NewDB(conn.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(conn *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if conn == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Records:     repository.NewRecordRepository(conn.DB, logger),
		Approvals:   repository.NewApprovalRepository(conn.DB, logger),
		Adjustments: repository.NewAdjustmentRepository(conn.DB, logger),
		Audit:       repository.NewAuditRepository(conn.DB, logger),
		Changelog:   repository.NewChangelogRepository(conn.DB, logger),
		Users:       repository.NewUserRepository(conn.DB, logger),
	}, nil
}

// ProvideLark creates the Lark client and notifier. It returns nil when
// notifications are disabled.
func ProvideLark(cfg *LarkConfig, notifyCfg *NotificationConfig, logger *zap.Logger) (*LarkBundle, error) {
	if cfg == nil || notifyCfg == nil {
		return nil, fmt.Errorf("lark and notification config are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if !notifyCfg.Enabled {
		return nil, nil
	}

	client := infraLark.NewSDKClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
	}, logger)
	messenger := infraLark.NewMessenger(client, logger)
	notifier := infraLark.NewNotifier(messenger, infraLark.NotifierConfig{
		ChatID:     notifyCfg.ChatID,
		EmailPosts: notifyCfg.EmailPosts,
		RecordURL:  notifyCfg.RecordURL,
	}, logger)

	return &LarkBundle{
		Client:    client,
		Messenger: messenger,
		Notifier:  notifier,
	}, nil
}

// ProvideStorage creates the file storage used for export archives.
func ProvideStorage(cfg *ExportConfig, logger *zap.Logger) (port.FileStorage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("export config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return storage.NewLocalFileStorage(cfg.Dir, logger), nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(&zapLoggerAdapter{logger: logger}),
	), nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Storage    port.FileStorage
	Notifier   port.Notifier
	Catalog    *workflow.Catalog
	Workflow   *WorkflowConfig
	Logger     *zap.Logger
}

// ProvideServices creates all application services. When a notifier is
// given its handlers are subscribed on the dispatcher.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Catalog == nil || deps.Workflow == nil {
		return nil, fmt.Errorf("workflow configuration is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}
	repos := deps.Repos

	audit := service.NewAuditService(repos.Audit, serviceLogger)
	changelog := service.NewChangelogService(repos.Changelog, deps.TxManager, serviceLogger)
	approvals := service.NewApprovalService(
		repos.Records,
		repos.Approvals,
		repos.Users,
		deps.TxManager,
		audit,
		deps.Dispatcher,
		deps.Catalog,
		serviceLogger,
	)

	bundle := &ServiceBundle{
		Audit:     audit,
		Changelog: changelog,
		Approvals: approvals,
		Records: service.NewRecordService(
			repos.Records,
			repos.Users,
			changelog,
			audit,
			approvals,
			deps.Workflow.AutoStartOnSave,
			serviceLogger,
		),
		Adjustments: service.NewAdjustmentService(
			repos.Records,
			repos.Adjustments,
			repos.Users,
			deps.TxManager,
			audit,
			deps.Dispatcher,
			deps.Workflow.ReviewerRole,
			serviceLogger,
		),
		Exports: service.NewExportService(audit, changelog, deps.Storage, serviceLogger),
	}

	if deps.Notifier != nil {
		bundle.Notification = service.NewNotificationService(deps.Notifier, serviceLogger)
		bundle.Notification.Register(deps.Dispatcher)
	}

	return bundle, nil
}
