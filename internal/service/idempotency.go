package service

import (
	"context"
	"time"

	"github.com/wso2/consent-lifecycle-store/internal/config"
	"github.com/wso2/consent-lifecycle-store/internal/database"
	"github.com/wso2/consent-lifecycle-store/internal/metrics"
	"github.com/wso2/consent-lifecycle-store/internal/models"
	"github.com/wso2/consent-lifecycle-store/internal/system/log"
	"github.com/wso2/consent-lifecycle-store/pkg/utils"
)

// IdempotencyRequest is a consent creation request seen through its idempotency key
type IdempotencyRequest struct {
	KeyName  string
	KeyValue string
	Payload  models.JSON
	ClientID string
	OrgID    string
}

// IdempotencyResult reports whether a request replays an earlier one.
// IsIdempotent means the key was seen before. IsValid means the earlier request matches
// this one, in which case Consent holds the consent it created.
type IdempotencyResult struct {
	IsIdempotent bool
	IsValid      bool
	ConsentID    string
	Consent      *models.DetailedConsentResource
}

// IdempotencyValidator detects replayed consent creation requests through the consent
// attribute that stores their idempotency key. It never fails: lookup errors are logged
// and reported as a fresh request.
type IdempotencyValidator struct {
	store   Store
	cfg     config.IdempotencyConfig
	clock   utils.Clock
	metrics *metrics.Metrics
	logger  *log.Logger
}

// NewIdempotencyValidator creates a validator. A nil clock uses the wall clock.
func NewIdempotencyValidator(store Store, cfg config.IdempotencyConfig, clock utils.Clock, m *metrics.Metrics, logger *log.Logger) *IdempotencyValidator {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	if logger == nil {
		logger = log.GetLogger()
	}
	return &IdempotencyValidator{
		store:   store,
		cfg:     cfg,
		clock:   clock,
		metrics: m,
		logger:  logger.With(log.String(log.LoggerKeyComponentName, "IdempotencyValidator")),
	}
}

// Validate looks up earlier consents carrying the same key and compares the first one
// visible in the org with req. It is a valid replay when that consent has the same
// client, an equal receipt and a creation time inside the allowed window.
func (v *IdempotencyValidator) Validate(ctx context.Context, exec database.Executor, req IdempotencyRequest) (result IdempotencyResult) {
	defer func() {
		v.metrics.IncrementIdempotency(result.IsIdempotent, result.IsValid)
	}()

	if !v.cfg.Enabled || req.KeyValue == "" || req.Payload.IsEmpty() {
		return IdempotencyResult{}
	}
	keyName := req.KeyName
	if keyName == "" {
		keyName = v.cfg.HeaderName
	}

	ids, err := v.store.GetConsentIDsByAttribute(ctx, exec, keyName, req.KeyValue)
	if err != nil {
		v.logger.Error("Idempotency lookup failed", log.String("key", keyName), log.Error(err))
		return IdempotencyResult{}
	}
	if len(ids) == 0 {
		return IdempotencyResult{}
	}

	now := utils.EpochSeconds(v.clock)
	window := time.Duration(v.cfg.AllowedTimeMinutes) * time.Minute

	for _, id := range ids {
		consent, err := v.store.GetDetailedConsentResource(ctx, exec, id, req.OrgID)
		if err != nil {
			v.logger.Error("Failed to load consent for idempotency check",
				log.String(log.LoggerKeyConsentID, id), log.Error(err))
			return IdempotencyResult{}
		}
		if consent == nil {
			// belongs to another org
			continue
		}
		return v.compare(consent, req, keyName, now, window)
	}
	return IdempotencyResult{}
}

// compare decides a replay against the consent that first carried the key
func (v *IdempotencyValidator) compare(consent *models.DetailedConsentResource, req IdempotencyRequest, keyName string, now int64, window time.Duration) IdempotencyResult {
	logger := v.logger.With(log.String(log.LoggerKeyConsentID, consent.ConsentID), log.String("key", keyName))

	if consent.ClientID != req.ClientID {
		logger.Warn("Idempotency key reused by a different client")
		return IdempotencyResult{IsIdempotent: true}
	}
	equal, err := consent.Receipt.Equal(req.Payload)
	if err != nil {
		logger.Error("Failed to compare idempotent payloads", log.Error(err))
		return IdempotencyResult{}
	}
	if !equal {
		logger.Warn("Idempotency key reused with a different payload")
		return IdempotencyResult{IsIdempotent: true}
	}
	if !utils.IsWithinWindow(consent.CreatedTime, now, window) {
		logger.Warn("Idempotency key reused outside the allowed window")
		return IdempotencyResult{IsIdempotent: true}
	}

	logger.Debug("Idempotent replay detected")
	return IdempotencyResult{IsIdempotent: true, IsValid: true, ConsentID: consent.ConsentID, Consent: consent}
}
