package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"mirror-backend/internal/analysis"
	"mirror-backend/internal/diagnosis"
	"mirror-backend/internal/intake"
	"mirror-backend/internal/leads"
	"mirror-backend/internal/narrative"
	"mirror-backend/internal/queue"
	"mirror-backend/internal/services/health"
	"mirror-backend/internal/shared/auth"
	"mirror-backend/internal/shared/config"
	"mirror-backend/internal/shared/metrics"
	"mirror-backend/internal/shared/server"
	"mirror-backend/internal/shared/storage/db"
	"mirror-backend/internal/shared/storage/object"
	localstore "mirror-backend/internal/shared/storage/object/local"
	s3store "mirror-backend/internal/shared/storage/object/s3"
	"mirror-backend/internal/shared/telemetry"
	"mirror-backend/internal/workerproc"
)

const defaultAWSRegion = "us-east-1"

// App holds shared dependencies.
type App struct {
	Config    config.Config
	Router    *gin.Engine
	DB        *sql.DB
	Store     object.ObjectStore
	Queue     queue.Client
	Sessions  intake.SessionStore
	Generator narrative.Generator
	Signer    *auth.Signer
	Health    *health.Service

	LeadsService    *leads.Service
	AnalysisService *analysis.Service
	IntakeService   *intake.Service

	closers []func() error
}

// Build prepares every dependency and the HTTP router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Config: cfg, Health: health.NewService()}

	repo, err := app.buildLeadRepo(ctx)
	if err != nil {
		return nil, err
	}
	if app.Store, err = buildStore(ctx, cfg); err != nil {
		return nil, err
	}
	if checker, ok := app.Store.(interface{ Check(context.Context) error }); ok {
		app.Health.Register("object_store", checker.Check)
	}
	if app.Sessions, err = app.buildSessions(ctx); err != nil {
		return nil, err
	}
	if app.Queue, err = buildQueue(ctx, cfg); err != nil {
		return nil, err
	}
	if app.Generator, err = buildGenerator(ctx, cfg); err != nil {
		return nil, err
	}
	if app.Signer, err = auth.NewSigner(cfg.JWTSecret, cfg.AdminTokenTTL, cfg.IsDevLike()); err != nil {
		return nil, err
	}

	locale := diagnosis.ParseLocale(cfg.DefaultLocale)
	app.LeadsService = leads.NewService(repo)
	app.AnalysisService = &analysis.Service{
		Generator:        app.Generator,
		NarrativeTimeout: cfg.NarrativeTimeout,
		DefaultLocale:    locale,
	}
	app.IntakeService = &intake.Service{
		Sessions:      app.Sessions,
		Analyzer:      app.AnalysisService,
		Leads:         app.LeadsService,
		Photos:        app.Store,
		Queue:         app.Queue,
		DefaultLocale: locale,
	}

	deps := server.RouterDeps{
		Config:   cfg,
		Analysis: analysis.NewHandler(app.AnalysisService),
		Intake:   intake.NewHandler(app.IntakeService),
		Health:   app.Health,
	}
	if strings.TrimSpace(cfg.AdminPassword) != "" {
		deps.Admin = &leads.Handler{
			Svc:      app.LeadsService,
			Store:    app.Store,
			Signer:   app.Signer,
			Password: cfg.AdminPassword,
		}
		deps.Verifier = app.Signer
	} else {
		telemetry.Warn("bootstrap.admin_disabled", map[string]any{"reason": "ADMIN_PASSWORD empty"})
	}
	app.Router = server.NewRouter(deps)

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":          cfg.Env,
		"lead_store":   cfg.LeadStore,
		"object_store": cfg.ObjectStoreType,
		"narrative":    app.Generator.Name(),
		"sessions":     sessionBackend(cfg),
		"queue":        app.Queue != nil,
	})
	return app, nil
}

// Close releases pooled connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) buildLeadRepo(ctx context.Context) (leads.Repo, error) {
	cfg := a.Config
	switch cfg.LeadStore {
	case "postgres":
		sqlDB, err := connectDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if sqlDB == nil {
			return leads.NewMemoryRepo(), nil
		}
		a.DB = sqlDB
		a.closers = append(a.closers, sqlDB.Close)
		a.Health.Register("database", sqlDB.PingContext)
		if err := db.RegisterPoolMetrics(metrics.Registry, sqlDB, "leads"); err != nil {
			telemetry.Warn("bootstrap.db_metrics", map[string]any{"error": err.Error()})
		}
		return &leads.PGRepo{DB: sqlDB}, nil
	case "memory":
		return leads.NewMemoryRepo(), nil
	default:
		repo, err := leads.NewFileRepo(cfg.LeadsFile)
		if err != nil {
			return nil, fmt.Errorf("open leads file: %w", err)
		}
		return repo, nil
	}
}

// connectDB returns nil without error when a dev-like environment cannot
// reach the database.
func connectDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.database_url_empty", map[string]any{"fallback": "memory"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err == nil {
		err = db.RunMigrations(ctx, sqlDB)
		if err != nil {
			_ = sqlDB.Close()
		}
	}
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.database_unavailable", map[string]any{"fallback": "memory", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func (a *App) buildSessions(ctx context.Context) (intake.SessionStore, error) {
	cfg := a.Config
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return intake.NewMemoryStore(cfg.SessionTTL), nil
	}
	store, err := intake.NewRedisStore(ctx, cfg.RedisURL, cfg.SessionTTL)
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.redis_unavailable", map[string]any{"fallback": "memory", "error": err.Error()})
			return intake.NewMemoryStore(cfg.SessionTTL), nil
		}
		return nil, err
	}
	a.closers = append(a.closers, store.Close)
	a.Health.Register("redis", func(ctx context.Context) error { return store.Client.Ping(ctx).Err() })
	return store, nil
}

func sessionBackend(cfg config.Config) string {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return "memory"
	}
	return "redis"
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.LeadQueueURL) == "" {
		telemetry.Warn("bootstrap.queue_disabled", map[string]any{"reason": "LEAD_QUEUE_URL empty"})
		return nil, nil
	}
	return queue.NewSQSClient(ctx, awsRegion(cfg), cfg.LeadQueueURL)
}

func awsRegion(cfg config.Config) string {
	if r := strings.TrimSpace(cfg.AWSRegion); r != "" {
		return r
	}
	return defaultAWSRegion
}

func buildGenerator(ctx context.Context, cfg config.Config) (narrative.Generator, error) {
	var (
		gen narrative.Generator
		err error
	)
	switch cfg.NarrativeProvider {
	case "gemini":
		if strings.TrimSpace(cfg.GoogleAPIKey) == "" {
			telemetry.Warn("bootstrap.narrative_disabled", map[string]any{"provider": "gemini", "reason": "GOOGLE_API_KEY empty"})
			return narrative.Placeholder{}, nil
		}
		gen, err = narrative.NewGeminiClient(ctx, cfg.GoogleAPIKey, cfg.NarrativeModel)
	case "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			telemetry.Warn("bootstrap.narrative_disabled", map[string]any{"provider": "openai", "reason": "OPENAI_API_KEY empty"})
			return narrative.Placeholder{}, nil
		}
		gen, err = narrative.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.NarrativeModel, cfg.NarrativeTimeout)
	default:
		return narrative.Placeholder{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("narrative provider %s: %w", cfg.NarrativeProvider, err)
	}
	return narrative.WithRetry(gen), nil
}

// WorkerDeps returns the collaborators of the lead notification worker.
func (a *App) WorkerDeps() workerproc.Deps {
	return workerproc.Deps{Leads: a.LeadsService, Notifier: workerproc.LogNotifier{}}
}
