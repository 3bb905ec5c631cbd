package service

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wso2/consent-lifecycle-store/internal/models"
)

func TestConsentDiff(t *testing.T) {
	before := &models.ConsentResource{
		Receipt:       models.JSON(`{"Data":{"Permissions":["ReadAccountsBasic"]}}`),
		CurrentStatus: "Authorised",
		ValidityTime:  models.Int64Ptr(1_800_000_000),
		UpdatedTime:   100,
	}
	after := before.Clone()
	after.Receipt = models.JSON(`{"Data":{"Permissions":["ReadAccountsBasic","ReadBalances"]}}`)
	after.ValidityTime = nil
	after.ConsentFrequency = models.IntPtr(4)
	after.UpdatedTime = 200

	diff, err := ConsentDiff(before, &after)
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{
		models.FieldReceipt:          map[string]interface{}{"Data": map[string]interface{}{"Permissions": []interface{}{"ReadAccountsBasic"}}},
		models.FieldValidityTime:     float64(1_800_000_000),
		models.FieldConsentFrequency: nil,
		models.FieldUpdatedTime:      float64(100),
	}, diff)
}

func TestConsentDiff_IgnoresReceiptFormatting(t *testing.T) {
	before := &models.ConsentResource{Receipt: models.JSON(`{"a":1,"b":[1,2]}`)}
	after := &models.ConsentResource{Receipt: models.JSON(`{ "b": [1, 2], "a": 1 }`)}

	diff, err := ConsentDiff(before, after)
	require.NoError(t, err)
	assert.Empty(t, diff)
}

func TestAttributeDiff(t *testing.T) {
	diff := AttributeDiff(
		map[string]string{"channel": "web", "region": "eu", "kept": "x"},
		map[string]string{"channel": "mobile", "kept": "x", "new": "y"},
	)
	assert.Equal(t, map[string]interface{}{
		"channel": "web",
		"region":  "eu",
		"new":     nil,
	}, diff)
}

func TestRecordAmendment_SharesHistoryIDAcrossRecords(t *testing.T) {
	setup := NewTestSetup()
	engine := NewHistoryEngine(setup.MockStore, setup.Clock, setup.Metrics, setup.Logger)
	ctx := context.Background()

	var written []*models.ConsentHistoryRecord
	setup.MockStore.On("StoreConsentAmendmentHistory", ctx, nil, mock.AnythingOfType("*models.ConsentHistoryRecord")).
		Run(func(args mock.Arguments) {
			written = append(written, args.Get(2).(*models.ConsentHistoryRecord))
		}).
		Return(nil)

	historyID, err := engine.RecordAmendment(ctx, nil, Amendment{
		ConsentID:     "CONSENT-1",
		Reason:        "scope change",
		StatusAuditID: "AUDIT-1",
		Diffs: []RecordDiff{
			{RecordID: "CONSENT-1", DataType: models.ConsentDataTypeConsent, Changed: map[string]interface{}{"RECEIPT": "old"}},
			{RecordID: "CONSENT-1", DataType: models.ConsentDataTypeAttributes, Changed: map[string]interface{}{}},
			{RecordID: "MAPPING-1", DataType: models.ConsentDataTypeMapping},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, historyID)
	require.Len(t, written, 2, "empty diffs are skipped")

	for _, r := range written {
		assert.Equal(t, historyID, r.HistoryID)
		assert.Equal(t, testNow, r.Timestamp)
		assert.Equal(t, "AUDIT-1", r.StatusAuditID)
		assert.Equal(t, "scope change", r.Reason)
	}
	assert.JSONEq(t, `{"RECEIPT":"old"}`, string(written[0].ChangedValues))
	assert.Equal(t, "null", string(written[1].ChangedValues))
	assert.Equal(t, 1.0, testutil.ToFloat64(setup.Metrics.AmendmentsRecorded))
}

func TestRecordAmendment_NothingChanged(t *testing.T) {
	setup := NewTestSetup()
	engine := NewHistoryEngine(setup.MockStore, setup.Clock, setup.Metrics, setup.Logger)

	historyID, err := engine.RecordAmendment(context.Background(), nil, Amendment{
		ConsentID: "CONSENT-1",
		Diffs:     []RecordDiff{{RecordID: "CONSENT-1", DataType: models.ConsentDataTypeConsent, Changed: map[string]interface{}{}}},
	})
	require.NoError(t, err)
	assert.Empty(t, historyID)
	setup.MockStore.AssertNotCalled(t, "StoreConsentAmendmentHistory", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 0.0, testutil.ToFloat64(setup.Metrics.AmendmentsRecorded))
}

func TestReconstruct_FoldsBackwardNewestFirst(t *testing.T) {
	setup := NewTestSetup()
	engine := NewHistoryEngine(setup.MockStore, setup.Clock, setup.Metrics, setup.Logger)
	ctx := context.Background()

	current := &models.DetailedConsentResource{
		ConsentResource: models.ConsentResource{
			ConsentID:     "CONSENT-1",
			Receipt:       models.JSON(`{"v":3}`),
			CurrentStatus: "Authorised",
			UpdatedTime:   300,
		},
		Authorizations: []models.AuthorizationResource{{
			AuthorizationID: "AUTH-1",
			Mappings: []models.ConsentMappingResource{
				{MappingID: "MAPPING-1", AccountID: "acc-1", MappingStatus: "inactive"},
				{MappingID: "MAPPING-2", AccountID: "acc-2", MappingStatus: "active"},
			},
		}},
		Attributes: map[string]string{"channel": "mobile", "added": "later"},
	}

	setup.MockStore.On("RetrieveConsentAmendmentHistory", ctx, nil, []string(nil), "CONSENT-1").
		Return(map[string]*models.ConsentHistoryResource{
			"HISTORY-1": {
				HistoryID: "HISTORY-1",
				Timestamp: 200,
				ChangedValues: map[models.ConsentDataType]map[string]models.JSON{
					models.ConsentDataTypeConsent: {"CONSENT-1": models.JSON(`{"RECEIPT":{"v":1},"UPDATED_TIME":100}`)},
					models.ConsentDataTypeMapping: {"MAPPING-2": models.JSON(`null`)},
				},
			},
			"HISTORY-2": {
				HistoryID: "HISTORY-2",
				Timestamp: 300,
				ChangedValues: map[models.ConsentDataType]map[string]models.JSON{
					models.ConsentDataTypeConsent:    {"CONSENT-1": models.JSON(`{"RECEIPT":{"v":2},"UPDATED_TIME":200}`)},
					models.ConsentDataTypeAttributes: {"CONSENT-1": models.JSON(`{"channel":"web","added":null}`)},
					models.ConsentDataTypeMapping:    {"MAPPING-1": models.JSON(`{"MAPPING_STATUS":"active"}`)},
				},
			},
		}, nil)

	snapshots, err := engine.Reconstruct(ctx, nil, current)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)

	latest := snapshots[0]
	assert.Equal(t, "HISTORY-2", latest.HistoryID)
	assert.JSONEq(t, `{"v":2}`, string(latest.Consent.Receipt))
	assert.Equal(t, int64(200), latest.Consent.UpdatedTime)
	assert.Equal(t, map[string]string{"channel": "web"}, latest.Consent.Attributes)
	assert.Equal(t, "active", latest.Consent.Authorizations[0].Mappings[0].MappingStatus)
	assert.Len(t, latest.Consent.Authorizations[0].Mappings, 2)

	oldest := snapshots[1]
	assert.Equal(t, "HISTORY-1", oldest.HistoryID)
	assert.JSONEq(t, `{"v":1}`, string(oldest.Consent.Receipt))
	assert.Equal(t, int64(100), oldest.Consent.UpdatedTime)
	require.Len(t, oldest.Consent.Authorizations[0].Mappings, 1, "the mapping added by HISTORY-1 is gone")
	assert.Equal(t, "MAPPING-1", oldest.Consent.Authorizations[0].Mappings[0].MappingID)

	assert.JSONEq(t, `{"v":3}`, string(current.Receipt), "the current consent is not modified")
	assert.Len(t, current.Authorizations[0].Mappings, 2)
}

func TestReconstruct_UndoesStatusChanges(t *testing.T) {
	setup := NewTestSetup()
	engine := NewHistoryEngine(setup.MockStore, setup.Clock, setup.Metrics, setup.Logger)
	ctx := context.Background()

	current := &models.DetailedConsentResource{
		ConsentResource: models.ConsentResource{
			ConsentID:     "CONSENT-1",
			Receipt:       models.JSON(`{"v":1}`),
			CurrentStatus: "Authorised",
			UpdatedTime:   200,
		},
		Authorizations: []models.AuthorizationResource{
			{
				AuthorizationID:     "AUTH-1",
				AuthorizationStatus: "Authorised",
				UserID:              strPtr("alice"),
				UpdatedTime:         200,
				Mappings:            []models.ConsentMappingResource{{MappingID: "MAPPING-1", AccountID: "acc-1", MappingStatus: "active"}},
			},
			{AuthorizationID: "AUTH-2", AuthorizationStatus: "Created"},
		},
		Attributes: map[string]string{},
	}

	setup.MockStore.On("RetrieveConsentAmendmentHistory", ctx, nil, []string(nil), "CONSENT-1").
		Return(map[string]*models.ConsentHistoryResource{
			"HISTORY-1": {
				HistoryID: "HISTORY-1",
				Timestamp: 200,
				ChangedValues: map[models.ConsentDataType]map[string]models.JSON{
					models.ConsentDataTypeConsent: {"CONSENT-1": models.JSON(`{"CURRENT_STATUS":"AwaitingAuthorisation","UPDATED_TIME":100}`)},
					models.ConsentDataTypeAuthorization: {
						"AUTH-1": models.JSON(`{"AUTH_STATUS":"Created","USER_ID":null,"UPDATED_TIME":100}`),
						"AUTH-2": models.JSON(`null`),
					},
					models.ConsentDataTypeMapping: {"MAPPING-1": models.JSON(`null`)},
				},
			},
		}, nil)

	snapshots, err := engine.Reconstruct(ctx, nil, current)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)

	before := snapshots[0].Consent
	assert.Equal(t, "AwaitingAuthorisation", before.CurrentStatus)
	assert.Equal(t, int64(100), before.UpdatedTime)
	require.Len(t, before.Authorizations, 1, "AUTH-2 did not exist before the change")
	auth := before.Authorizations[0]
	assert.Equal(t, "Created", auth.AuthorizationStatus)
	assert.Nil(t, auth.UserID)
	assert.Equal(t, int64(100), auth.UpdatedTime)
	assert.Empty(t, auth.Mappings)

	assert.Equal(t, "Authorised", current.CurrentStatus)
	assert.Len(t, current.Authorizations, 2)
}
