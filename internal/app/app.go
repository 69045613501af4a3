// Package app assembles repositories and services from configuration. The
// HTTP gateway and the insightctl CLI share the same container.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/insight-compliance-api/internal/models"
	"github.com/noah-isme/insight-compliance-api/internal/repository"
	"github.com/noah-isme/insight-compliance-api/internal/service"
	"github.com/noah-isme/insight-compliance-api/pkg/awsclient"
	"github.com/noah-isme/insight-compliance-api/pkg/cache"
	"github.com/noah-isme/insight-compliance-api/pkg/config"
	"github.com/noah-isme/insight-compliance-api/pkg/database"
	"github.com/noah-isme/insight-compliance-api/pkg/jobs"
	"github.com/noah-isme/insight-compliance-api/pkg/storage"
)

const cacheKeyPrefix = "insight:"

// Options selects the optional subsystems to start.
type Options struct {
	// Exports connects Postgres and builds the export queue when reports are enabled.
	Exports bool
	// Cache connects Redis when caching is enabled.
	Cache bool
}

// Container holds the wired services.
type Container struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *service.MetricsService

	Participants *service.ParticipantService
	Messaging    *service.MessagingService
	SendTimes    *service.SendTimeService
	Compliance   *service.ComplianceService
	Daily        *service.DailyReportService
	Dashboard    *service.DashboardService
	Auth         *service.AuthService
	ExportJobs   *service.ExportJobService
	ExportQueue  *jobs.Queue

	ParticipantStore *repository.ParticipantRepository
	CacheRepo        *repository.CacheRepository

	closers []func() error
}

// New builds the container. Failures to reach optional backends (Redis) are
// logged and the subsystem is disabled; required backends fail the call.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Container{Config: cfg, Logger: logger, Metrics: service.NewMetricsService()}

	sourceLoc, err := service.LoadLocation(cfg.Surveys.SourceTimezone)
	if err != nil {
		return nil, fmt.Errorf("survey timezone: %w", err)
	}
	refLoc, err := service.LoadLocation(cfg.Surveys.ReferenceTimezone)
	if err != nil {
		return nil, fmt.Errorf("reference timezone: %w", err)
	}

	catalog, err := service.LoadScheduleCatalog(cfg.Surveys.ScheduleCatalogPath, cfg.AWS.LogGroupPrefix)
	if err != nil {
		return nil, err
	}

	awsCfg, err := awsclient.Load(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}
	clients := awsclient.NewClients(awsCfg, cfg.AWS)

	validate := validator.New()

	c.ParticipantStore = repository.NewParticipantRepository(clients.DynamoDB, cfg.AWS.ParticipantTableName, logger)
	logStreams := repository.NewLogStreamRepository(clients.CloudWatchLogs, cfg.AWS.LogStreamLimit)
	surveyExports := repository.NewSurveyExportRepository(surveyPaths(cfg.Surveys))
	references := repository.NewReferenceRepository(cfg.Surveys.ParticipantDBPath, logger)
	smsGateway := repository.NewSMSGateway(clients.SNS)

	var redisClient redis.UniversalClient
	if opts.Cache && cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			redisClient = client
			c.closers = append(c.closers, client.Close)
		}
	}
	c.CacheRepo = repository.NewCacheRepository(redisClient, cacheKeyPrefix, logger)
	cacheSvc := service.NewCacheService(c.CacheRepo, c.Metrics, cfg.Cache.TTL, logger, redisClient != nil)

	c.SendTimes = service.NewSendTimeService(logStreams, catalog, c.Metrics, logger, service.SendTimeConfig{
		Location: refLoc,
		Order:    cfg.Compliance.SendTimeOrder,
	})
	surveys := service.NewSurveyMergeService(surveyExports, c.Metrics, logger, service.SurveyMergeConfig{
		SourceLocation:    sourceLoc,
		ReferenceLocation: refLoc,
	})
	identities := service.NewIdentityService(references, logger)

	c.Compliance = service.NewComplianceService(
		c.ParticipantStore, catalog, identities, surveys, c.SendTimes,
		service.NewAggregator(cfg.Compliance.RollingMode), c.Metrics, logger,
		service.ComplianceConfig{Timeout: cfg.Compliance.Timeout, Location: refLoc},
	)
	c.Daily = service.NewDailyReportService(
		c.ParticipantStore, identities, surveys, c.SendTimes, c.Compliance, cacheSvc, logger,
		service.DailyReportConfig{MaxParallel: cfg.Compliance.MaxParallel, CacheTTL: cfg.Cache.TTL, Timeout: cfg.Compliance.Timeout},
	)
	c.Participants = service.NewParticipantService(c.ParticipantStore, cacheSvc, validate, logger, refLoc)
	c.Messaging = service.NewMessagingService(c.ParticipantStore, smsGateway, c.Metrics, validate, logger)
	c.Dashboard = service.NewDashboardService(service.DashboardServiceParams{
		Participants: c.ParticipantStore,
		Cache:        cacheSvc,
		Logger:       logger,
		Config: service.DashboardServiceConfig{
			CacheTTL:          cfg.Dashboard.CacheTTL,
			RecruitmentTarget: cfg.Dashboard.RecruitmentTarget,
			Location:          refLoc,
		},
	})
	c.Auth = service.NewAuthService(validate, logger, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
		AdminEmail:        cfg.Auth.AdminEmail,
		AdminPasswordHash: cfg.Auth.AdminPasswordHash,
		AdminName:         cfg.Auth.AdminName,
	})

	if opts.Exports && cfg.Reports.Enabled {
		if err := c.buildExports(ctx, validate); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *Container) buildExports(ctx context.Context, validate *validator.Validate) error {
	cfg := c.Config
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	c.closers = append(c.closers, db.Close)
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	files, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		return fmt.Errorf("init export storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exporter := service.NewExportService(c.Compliance, c.Daily, files, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, c.Logger, nil)

	repo := repository.NewExportJobRepository(db)
	worker := service.NewExportWorker(repo, exporter, c.Metrics, c.Logger)
	c.ExportQueue = jobs.NewQueue("compliance-exports", worker.Handle, jobs.QueueConfig{
		Workers:     cfg.Reports.WorkerConcurrency,
		MaxRetries:  cfg.Reports.WorkerRetries,
		RetryDelay:  2 * time.Second,
		JobTimeout:  cfg.Compliance.Timeout * 2,
		OnExhausted: worker.Exhausted,
		Logger:      c.Logger,
	})
	c.ExportJobs = service.NewExportJobService(repo, c.ExportQueue, exporter, validate, c.Logger, service.ExportJobServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
	})
	return nil
}

// Start launches background workers. It is a no-op when exports are disabled.
func (c *Container) Start(ctx context.Context) {
	if c.ExportQueue == nil {
		return
	}
	c.ExportQueue.Start(ctx)
	c.ExportJobs.RecoverPendingJobs(ctx)
	c.ExportJobs.StartCleanup(ctx)
}

// Close stops workers and releases backend connections.
func (c *Container) Close() error {
	if c.ExportQueue != nil {
		c.ExportQueue.Stop()
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func surveyPaths(cfg config.SurveyConfig) map[models.SurveyVariant]string {
	paths := make(map[models.SurveyVariant]string, len(models.SurveyVariants()))
	for label, path := range cfg.SurveyPaths() {
		paths[models.SurveyVariant(label)] = path
	}
	return paths
}
