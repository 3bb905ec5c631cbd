package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/wso2/consent-lifecycle-store/internal/config"
	"github.com/wso2/consent-lifecycle-store/internal/dao"
	"github.com/wso2/consent-lifecycle-store/internal/database"
	"github.com/wso2/consent-lifecycle-store/internal/lifecycle"
	"github.com/wso2/consent-lifecycle-store/internal/metrics"
	"github.com/wso2/consent-lifecycle-store/internal/models"
	"github.com/wso2/consent-lifecycle-store/internal/service/mocks"
	"github.com/wso2/consent-lifecycle-store/internal/system/log"
	"github.com/wso2/consent-lifecycle-store/internal/testutil"
)

const testNow = int64(1_700_000_000)

// TestSetup contains the mocked dependencies of the engines
type TestSetup struct {
	MockStore *mocks.MockStore
	Config    *config.ConsentConfig
	Policy    lifecycle.Policy
	Metrics   *metrics.Metrics
	Clock     *testutil.StepClock
	Logger    *log.Logger
}

// NewTestSetup creates a test setup with a fresh mock store and metrics registry
func NewTestSetup() *TestSetup {
	cfg := config.Default()
	v := lifecycle.NewVocabulary(&cfg.Consent)
	return &TestSetup{
		MockStore: &mocks.MockStore{},
		Config:    &cfg.Consent,
		Policy:    lifecycle.NewStaticPolicy(v.DefaultConsentTransitions(), v.DefaultAuthTransitions()),
		Metrics:   metrics.New(prometheus.NewRegistry()),
		Clock:     testutil.NewStepClock(testNow),
		Logger:    log.Discard(),
	}
}

// serviceFixture runs the core service against an in-memory SQLite database
type serviceFixture struct {
	ctx     context.Context
	db      *database.DB
	cfg     *config.ConsentConfig
	clock   *testutil.StepClock
	metrics *metrics.Metrics
	store   *dao.ConsentStore
	service *ConsentCoreService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	cfg := config.Default()
	clock := testutil.NewStepClock(testNow)
	m := metrics.New(prometheus.NewRegistry())
	logger := log.Discard()

	policy, err := lifecycle.NewPolicy(context.Background(), &cfg.Consent)
	require.NoError(t, err)

	store := dao.NewConsentStore(&cfg.Consent, dao.WithClock(clock), dao.WithMetrics(m), dao.WithLogger(logger))
	svc := NewConsentCoreService(
		testutil.NewSQLiteDB(t),
		store,
		&cfg.Consent,
		NewStatusEngine(store, policy, m, logger),
		NewIdempotencyValidator(store, cfg.Consent.Idempotency, clock, m, logger),
		NewHistoryEngine(store, clock, m, logger),
		logger,
	)
	return &serviceFixture{
		ctx:     context.Background(),
		db:      svc.db,
		cfg:     &cfg.Consent,
		clock:   clock,
		metrics: m,
		store:   store,
		service: svc,
	}
}

func (f *serviceFixture) create(t *testing.T, req CreateConsentRequest) *models.DetailedConsentResource {
	t.Helper()
	if req.ClientID == "" {
		req.ClientID = "client-1"
	}
	if req.ConsentType == "" {
		req.ConsentType = "accounts"
	}
	if req.Receipt == nil {
		req.Receipt = models.JSON(`{"Data":{"Permissions":["ReadAccountsBasic","ReadBalances"]}}`)
	}
	if req.Authorization == nil {
		req.Authorization = &AuthorizationRequest{AuthorizationType: "authorisation"}
	}
	res, err := f.service.CreateAuthorizableConsent(f.ctx, req)
	require.NoError(t, err)
	require.False(t, res.Replayed)
	return res.Consent
}

// authorized creates a consent and approves it for alice with the given accounts
func (f *serviceFixture) authorized(t *testing.T, accounts ...string) *models.DetailedConsentResource {
	t.Helper()
	created := f.create(t, CreateConsentRequest{})
	mapped := make([]AccountMapping, len(accounts))
	for i, a := range accounts {
		mapped[i] = AccountMapping{AccountID: a}
	}
	got, err := f.service.AuthorizeConsent(f.ctx, AuthorizeConsentRequest{
		ConsentID:       created.ConsentID,
		AuthorizationID: created.Authorizations[0].AuthorizationID,
		UserID:          "alice",
		Approve:         true,
		Accounts:        mapped,
	})
	require.NoError(t, err)
	return got
}

func (f *serviceFixture) audits(t *testing.T, consentID string) []models.ConsentStatusAuditRecord {
	t.Helper()
	records, err := f.store.GetConsentStatusAuditRecords(f.ctx, f.db, models.StatusAuditFilter{ConsentID: consentID})
	require.NoError(t, err)
	return records
}

func (f *serviceFixture) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.GetContext(f.ctx, &n, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)))
	return n
}

func strPtr(s string) *string {
	return &s
}
