package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Hycient195/academia-pro-access/auth"
	"github.com/Hycient195/academia-pro-access/config"
	"github.com/Hycient195/academia-pro-access/middleware"
	"github.com/Hycient195/academia-pro-access/repositories"
	"github.com/Hycient195/academia-pro-access/repositories/postgres"
	auditsvc "github.com/Hycient195/academia-pro-access/services/audit"
	"github.com/Hycient195/academia-pro-access/services/policy"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Policies     repositories.PolicyRepository
	AuditRecords repositories.AuditRepository
	TxManager    repositories.TransactionManager

	// Evaluation pipeline
	Cache      *policy.CandidateCache
	Catalog    *policy.PolicyCatalog
	Evaluator  *policy.PolicyEvaluator
	Aggregator *policy.DecisionAggregator

	// Administration and audit
	PolicyService *policy.Service
	AuditService  *auditsvc.Service

	// Auth
	TokenService   *auth.TokenService
	AuthMiddleware *middleware.AuthMiddleware

	cacheStop chan struct{}
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initRepositories()
	deps.initAudit(cfg)
	deps.initEvaluation(cfg)
	deps.initAuth(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL connection and schema
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := factory.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Policies = repos.Policies
	d.AuditRecords = repos.AuditRecords
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

// initAudit starts the async audit pipeline
func (d *Dependencies) initAudit(cfg *config.Config) {
	d.AuditService = auditsvc.NewService(d.AuditRecords, d.Logger, auditsvc.Config{
		BufferSize:   cfg.Audit.BufferSize,
		WorkerCount:  cfg.Audit.WorkerCount,
		WriteTimeout: cfg.Audit.WriteTimeout,
	})
}

// initEvaluation wires the decision pipeline: cache-backed catalog, rule
// evaluator, aggregator, and the administration service
func (d *Dependencies) initEvaluation(cfg *config.Config) {
	d.Cache = policy.NewCandidateCache(cfg.Cache.MaxSize, cfg.Cache.TTL)
	d.cacheStop = make(chan struct{})
	d.Cache.StartCleanupWorker(cfg.Cache.CleanupInterval, d.cacheStop)

	d.Catalog = policy.NewPolicyCatalog(d.Policies, d.Cache, d.Logger)
	d.Evaluator = policy.NewPolicyEvaluator(policy.NewConditionEvaluator(), d.Logger)
	d.Aggregator = policy.NewDecisionAggregator(d.Catalog, d.Evaluator, d.AuditService, d.Policies, d.Logger)
	d.PolicyService = policy.NewService(d.Policies, d.Catalog, d.AuditService, d.Logger)

	d.Logger.Info("evaluation pipeline initialized")
}

// initAuth wires JWT validation
func (d *Dependencies) initAuth(cfg *config.Config) {
	if cfg.Auth.JWTSecret == "" {
		d.Logger.Warn("JWT secret not configured, protected routes will reject all requests")
		d.AuthMiddleware = middleware.NewAuthMiddleware(&rejectAllValidator{}, d.Logger)
		return
	}

	d.TokenService = auth.NewTokenService(cfg.Auth)
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.TokenService, d.Logger)
}

// rejectAllValidator rejects all tokens (used when no JWT secret is configured)
type rejectAllValidator struct{}

func (*rejectAllValidator) ValidateToken(context.Context, string) (*auth.Claims, error) {
	return nil, fmt.Errorf("authentication not configured")
}

// Start launches background components
func (d *Dependencies) Start() error {
	if err := d.AuditService.Start(); err != nil {
		return fmt.Errorf("failed to start audit service: %w", err)
	}
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Drain the audit pipeline before the DB goes away
	if d.AuditService != nil {
		if err := d.AuditService.Stop(10 * time.Second); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.cacheStop != nil {
		close(d.cacheStop)
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
