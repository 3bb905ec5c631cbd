// Command expire runs one expiry sweep for an organization and exits.
// Scheduling is left to the caller (cron, a Kubernetes CronJob).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wso2/consent-lifecycle-store/internal/config"
	"github.com/wso2/consent-lifecycle-store/internal/dao"
	"github.com/wso2/consent-lifecycle-store/internal/database"
	"github.com/wso2/consent-lifecycle-store/internal/lifecycle"
	"github.com/wso2/consent-lifecycle-store/internal/metrics"
	"github.com/wso2/consent-lifecycle-store/internal/service"
	"github.com/wso2/consent-lifecycle-store/internal/system/log"
	"github.com/wso2/consent-lifecycle-store/pkg/utils"
)

func main() {
	logger := log.GetLogger()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatal("Failed to load configuration", log.Error(err))
	}

	logger, err = log.New(cfg.Logging)
	if err != nil {
		log.GetLogger().Fatal("Failed to configure logger", log.Error(err))
	}
	log.SetLogger(logger)
	logger = logger.With(log.String(log.LoggerKeyComponentName, "ExpirySweep"))

	orgID := cfg.Consent.ResolveOrgID(os.Getenv("ORG_ID"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	db, err := database.Initialize(&cfg.Database.Consent)
	if err != nil {
		logger.Fatal("Failed to initialize database", log.Error(err))
	}
	defer db.Close()

	if err := db.HealthCheck(ctx); err != nil {
		logger.Fatal("Database health check failed", log.Error(err))
	}

	policy, err := lifecycle.NewPolicy(ctx, &cfg.Consent)
	if err != nil {
		logger.Fatal("Failed to build transition policy", log.Error(err))
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	clock := utils.SystemClock{}
	store := dao.NewConsentStore(&cfg.Consent, dao.WithClock(clock), dao.WithMetrics(m), dao.WithLogger(logger))

	svc := service.NewConsentCoreService(
		db,
		store,
		&cfg.Consent,
		service.NewStatusEngine(store, policy, m, logger),
		service.NewIdempotencyValidator(store, cfg.Consent.Idempotency, clock, m, logger),
		service.NewHistoryEngine(store, clock, m, logger),
		logger,
	)

	expired, err := svc.ExpireConsents(ctx, orgID)
	if err != nil {
		logger.Fatal("Expiry sweep failed", log.Error(err), log.String("org_id", orgID))
	}

	logger.Info("Expiry sweep complete", log.String("org_id", orgID), log.Int("expired", len(expired)))
	db.LogStats()
}
