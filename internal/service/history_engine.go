package service

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/wso2/consent-lifecycle-store/internal/database"
	"github.com/wso2/consent-lifecycle-store/internal/metrics"
	"github.com/wso2/consent-lifecycle-store/internal/models"
	"github.com/wso2/consent-lifecycle-store/internal/system/log"
	"github.com/wso2/consent-lifecycle-store/pkg/utils"
)

// RecordDiff holds the previous values of one record touched by an amendment.
// A nil Changed means the record did not exist before the amendment.
type RecordDiff struct {
	RecordID string
	DataType models.ConsentDataType
	Changed  interface{}
}

// Amendment is one amendment event of a consent
type Amendment struct {
	ConsentID     string
	Reason        string
	StatusAuditID string
	Diffs         []RecordDiff
}

// HistoryEngine writes amendment history and rebuilds earlier versions of a consent from it
type HistoryEngine struct {
	store   Store
	clock   utils.Clock
	metrics *metrics.Metrics
	logger  *log.Logger
}

// NewHistoryEngine creates a history engine. A nil clock uses the wall clock.
func NewHistoryEngine(store Store, clock utils.Clock, m *metrics.Metrics, logger *log.Logger) *HistoryEngine {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	if logger == nil {
		logger = log.GetLogger()
	}
	return &HistoryEngine{
		store:   store,
		clock:   clock,
		metrics: m,
		logger:  logger.With(log.String(log.LoggerKeyComponentName, "HistoryEngine")),
	}
}

// ConsentDiff returns the previous value of every amendable consent field that differs
// between before and after
func ConsentDiff(before, after *models.ConsentResource) (map[string]interface{}, error) {
	old, err := before.AmendableFields()
	if err != nil {
		return nil, err
	}
	updated, err := after.AmendableFields()
	if err != nil {
		return nil, err
	}

	return FieldDiff(old, updated), nil
}

// FieldDiff returns the before value of every key whose value differs in after
func FieldDiff(before, after map[string]interface{}) map[string]interface{} {
	diff := make(map[string]interface{})
	for key, v := range before {
		if !reflect.DeepEqual(v, after[key]) {
			diff[key] = v
		}
	}
	return diff
}

// AttributeDiff returns the previous value of every attribute that was added, changed or
// removed. Added attributes map to nil.
func AttributeDiff(before, after map[string]string) map[string]interface{} {
	diff := make(map[string]interface{})
	for key, v := range after {
		old, ok := before[key]
		switch {
		case !ok:
			diff[key] = nil
		case old != v:
			diff[key] = old
		}
	}
	for key, old := range before {
		if _, ok := after[key]; !ok {
			diff[key] = old
		}
	}
	return diff
}

// RecordAmendment stores every diff of a under one generated history id and timestamp.
// Empty diffs are skipped. It returns the history id, or "" when nothing was written.
func (h *HistoryEngine) RecordAmendment(ctx context.Context, exec database.Executor, a Amendment) (string, error) {
	historyID := utils.GenerateHistoryID()
	now := utils.EpochSeconds(h.clock)

	written := 0
	for _, d := range a.Diffs {
		if isEmptyDiff(d.Changed) {
			continue
		}
		changed, err := models.NewJSON(d.Changed)
		if err != nil {
			return "", fmt.Errorf("encoding %s diff of %s: %w", d.DataType, d.RecordID, err)
		}
		if err := h.store.StoreConsentAmendmentHistory(ctx, exec, &models.ConsentHistoryRecord{
			HistoryID:     historyID,
			RecordID:      d.RecordID,
			ConsentID:     a.ConsentID,
			DataType:      d.DataType,
			ChangedValues: changed,
			Reason:        a.Reason,
			StatusAuditID: a.StatusAuditID,
			Timestamp:     now,
		}); err != nil {
			return "", err
		}
		written++
	}
	if written == 0 {
		return "", nil
	}

	h.metrics.IncrementAmendments()
	h.logger.Debug("Amendment recorded", log.String(log.LoggerKeyConsentID, a.ConsentID),
		log.String("history_id", historyID), log.Int("records", written))
	return historyID, nil
}

// Retrieve returns the amendment events of a consent touching recordIDs, newest first
func (h *HistoryEngine) Retrieve(ctx context.Context, exec database.Executor, consentID string, recordIDs ...string) ([]*models.ConsentHistoryResource, error) {
	history, err := h.store.RetrieveConsentAmendmentHistory(ctx, exec, recordIDs, consentID)
	if err != nil {
		return nil, err
	}
	return models.NewestFirst(history), nil
}

// Reconstruct rebuilds the consent as it stood before each amendment, newest first,
// by undoing the stored previous values one event at a time starting from current.
// Status changes are amendments too, so every snapshot carries the statuses of its time.
func (h *HistoryEngine) Reconstruct(ctx context.Context, exec database.Executor, current *models.DetailedConsentResource) ([]models.ConsentSnapshot, error) {
	events, err := h.Retrieve(ctx, exec, current.ConsentID)
	if err != nil {
		return nil, err
	}

	state := current.Clone()
	snapshots := make([]models.ConsentSnapshot, 0, len(events))
	for _, event := range events {
		if err := undo(state, event); err != nil {
			return nil, fmt.Errorf("reconstructing history %s: %w", event.HistoryID, err)
		}
		snapshots = append(snapshots, models.ConsentSnapshot{
			HistoryID:     event.HistoryID,
			Timestamp:     event.Timestamp,
			Reason:        event.Reason,
			StatusAuditID: event.StatusAuditID,
			Consent:       state.Clone(),
		})
	}
	return snapshots, nil
}

func undo(state *models.DetailedConsentResource, event *models.ConsentHistoryResource) error {
	for recordID, changed := range event.ChangedValues[models.ConsentDataTypeConsent] {
		if recordID != state.ConsentID || changed.IsEmpty() {
			continue
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(changed, &fields); err != nil {
			return err
		}
		if err := state.ConsentResource.ApplyFields(fields); err != nil {
			return err
		}
	}

	for _, changed := range event.ChangedValues[models.ConsentDataTypeAttributes] {
		if changed.IsEmpty() {
			continue
		}
		var attrs map[string]*string
		if err := json.Unmarshal(changed, &attrs); err != nil {
			return err
		}
		for key, v := range attrs {
			if v == nil {
				delete(state.Attributes, key)
			} else {
				state.Attributes[key] = *v
			}
		}
	}

	for authID, changed := range event.ChangedValues[models.ConsentDataTypeAuthorization] {
		auth := state.FindAuthorization(authID)
		if auth == nil {
			continue
		}
		if changed.IsEmpty() {
			state.RemoveAuthorization(authID)
			continue
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(changed, &fields); err != nil {
			return err
		}
		if err := auth.ApplyFields(fields); err != nil {
			return err
		}
	}

	for mappingID, changed := range event.ChangedValues[models.ConsentDataTypeMapping] {
		auth, idx := state.FindMapping(mappingID)
		if auth == nil {
			continue
		}
		if changed.IsEmpty() {
			auth.Mappings = append(auth.Mappings[:idx], auth.Mappings[idx+1:]...)
			continue
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(changed, &fields); err != nil {
			return err
		}
		if err := auth.Mappings[idx].ApplyFields(fields); err != nil {
			return err
		}
	}
	return nil
}

func isEmptyDiff(changed interface{}) bool {
	if changed == nil {
		return false
	}
	v := reflect.ValueOf(changed)
	return v.Kind() == reflect.Map && v.Len() == 0
}
