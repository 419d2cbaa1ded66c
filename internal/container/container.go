package container

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/proposal-review/internal/application/dispatcher"
	"github.com/garyjia/proposal-review/internal/application/port"
	"github.com/garyjia/proposal-review/internal/application/service"
	"github.com/garyjia/proposal-review/internal/domain/entity"
	"github.com/garyjia/proposal-review/internal/domain/workflow"
	"github.com/garyjia/proposal-review/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/proposal-review/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Initialization is ordered and teardown runs in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	conn         *database.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	// Infrastructure - External
	lark *LarkBundle

	// Infrastructure - Storage
	fileStorage port.FileStorage

	// Application
	catalog    *workflow.Catalog
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle

	// Lifecycle
	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Records     port.RecordRepository
	Approvals   port.ApprovalRepository
	Adjustments port.AdjustmentRepository
	Audit       port.AuditRepository
	Changelog   port.ChangelogRepository
	Users       port.UserRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Records     service.RecordService
	Approvals   service.ApprovalService
	Adjustments service.AdjustmentService
	Audit       service.AuditService
	Changelog   service.ChangelogService
	Exports     service.ExportService
	// Notification is nil when notifications are disabled
	Notification service.NotificationService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components in dependency order:
// 1. Database, repositories and directory seed
// 2. Stage catalogue
// 3. Lark notifier (when enabled)
// 4. Export storage
// 5. Dispatcher and application services
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	catalog, err := workflow.LoadCatalog(c.config.Workflow.StageCatalog)
	if err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to load stage catalogue: %w", err)
	}
	c.catalog = catalog
	c.logger.Info("Stage catalogue loaded", zap.Int("stages", len(catalog.Stages)))

	lark, err := ProvideLark(&c.config.Lark, &c.config.Notification, c.logger)
	if err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize lark: %w", err)
	}
	c.lark = lark
	c.logger.Info("External clients initialized", zap.Bool("notifications", lark != nil))

	fileStorage, err := ProvideStorage(&c.config.Export, c.logger)
	if err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.fileStorage = fileStorage

	if err := c.initServices(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if err := c.closeDatabase(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	switch {
	case c.conn == nil:
		status.Components["database"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	case c.conn.Ping() != nil:
		status.Components["database"] = ComponentHealth{Healthy: false, Message: "ping failed"}
		status.Overall = false
	default:
		status.Components["database"] = ComponentHealth{Healthy: true}
	}

	if c.dispatcher != nil {
		status.Components["dispatcher"] = ComponentHealth{Healthy: true}
	} else {
		status.Components["dispatcher"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	if c.lark != nil {
		status.Components["notifications"] = ComponentHealth{Healthy: true, Message: "lark"}
	} else {
		status.Components["notifications"] = ComponentHealth{Healthy: true, Message: "disabled"}
	}

	return status
}

func (c *Container) initDatabase(ctx context.Context) error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.conn = dbBundle.Conn
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.conn, c.logger)
	if err != nil {
		c.closeDatabase()
		return err
	}
	c.repositories = repos

	if err := c.seedDirectory(ctx); err != nil {
		c.closeDatabase()
		return err
	}
	return nil
}

// seedDirectory creates configured users that are not in the directory yet
func (c *Container) seedDirectory(ctx context.Context) error {
	for _, seed := range c.config.Directory.Users {
		existing, err := c.repositories.Users.FindByEmail(ctx, seed.Email)
		if err != nil {
			return fmt.Errorf("failed to look up %s: %w", seed.Email, err)
		}
		if existing != nil {
			continue
		}

		user := &entity.User{
			Email:      seed.Email,
			Name:       seed.Name,
			Role:       strings.ToLower(seed.Role),
			LarkOpenID: seed.LarkOpenID,
		}
		if err := c.repositories.Users.Create(ctx, user); err != nil {
			return err
		}
		c.logger.Info("Directory user provisioned", zap.String("email", user.Email), zap.String("role", user.Role))
	}
	return nil
}

func (c *Container) initServices() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp

	deps := &ServiceDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Dispatcher: c.dispatcher,
		Storage:    c.fileStorage,
		Catalog:    c.catalog,
		Workflow:   &c.config.Workflow,
		Logger:     c.logger,
	}
	if c.lark != nil {
		deps.Notifier = c.lark.Notifier
	}

	services, err := ProvideServices(deps)
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

func (c *Container) closeDatabase() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	if err != nil {
		c.logger.Error("Failed to close database", zap.Error(err))
	}
	c.conn = nil
	return err
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Catalog returns the loaded stage catalogue.
func (c *Container) Catalog() *workflow.Catalog {
	return c.catalog
}

// Notifier returns the Lark notifier, or nil when notifications are disabled.
func (c *Container) Notifier() port.Notifier {
	if c.lark == nil {
		return nil
	}
	return c.lark.Notifier
}

// FileStorage returns the export storage.
func (c *Container) FileStorage() port.FileStorage {
	return c.fileStorage
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// ServiceLogger returns the container's logger behind the key-value
// interface used by services and the HTTP layer.
func (c *Container) ServiceLogger() service.Logger {
	return &zapLoggerAdapter{logger: c.logger}
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the key-value Logger interfaces
// used by services, the dispatcher and the HTTP layer.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
