package dao

import (
	"context"

	"github.com/wso2/consent-lifecycle-store/internal/database"
	"github.com/wso2/consent-lifecycle-store/internal/models"
)

const upsertAttributeConflict = ` ON CONFLICT (CONSENT_ID, ATT_KEY) DO UPDATE SET ATT_VALUE = excluded.ATT_VALUE`

// DBQuery objects for consent attribute operations
var (
	QueryCreateConsentAttributes = `INSERT INTO FS_CONSENT_ATTRIBUTE (CONSENT_ID, ATT_KEY, ATT_VALUE, ORG_ID)`

	QueryUpsertConsentAttribute = database.DBQuery{
		ID: "UPSERT_CONSENT_ATTRIBUTE",
		Query: `INSERT INTO FS_CONSENT_ATTRIBUTE (CONSENT_ID, ATT_KEY, ATT_VALUE, ORG_ID) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE ATT_VALUE = VALUES(ATT_VALUE)`,
		PostgresQuery: `INSERT INTO FS_CONSENT_ATTRIBUTE (CONSENT_ID, ATT_KEY, ATT_VALUE, ORG_ID) VALUES (?, ?, ?, ?)` +
			upsertAttributeConflict,
		SQLiteQuery: `INSERT INTO FS_CONSENT_ATTRIBUTE (CONSENT_ID, ATT_KEY, ATT_VALUE, ORG_ID) VALUES (?, ?, ?, ?)` +
			upsertAttributeConflict,
	}

	QueryGetConsentAttributesByKey = database.DBQuery{
		ID: "GET_CONSENT_ATTRIBUTES_BY_KEY",
		Query: `SELECT CONSENT_ID, ATT_KEY, ATT_VALUE, ORG_ID FROM FS_CONSENT_ATTRIBUTE
		WHERE ATT_KEY = ? ORDER BY CONSENT_ID`,
	}

	QueryGetConsentIDsByAttribute = database.DBQuery{
		ID: "GET_CONSENT_IDS_BY_ATTRIBUTE",
		Query: `SELECT a.CONSENT_ID FROM FS_CONSENT_ATTRIBUTE a
		INNER JOIN FS_CONSENT c ON c.CONSENT_ID = a.CONSENT_ID
		WHERE a.ATT_KEY = ? AND a.ATT_VALUE = ?
		ORDER BY c.CREATED_TIME, a.CONSENT_ID`,
	}

	QueryDeleteConsentAttributesByConsentID = database.DBQuery{
		ID:    "DELETE_CONSENT_ATTRIBUTES_BY_CONSENT_ID",
		Query: `DELETE FROM FS_CONSENT_ATTRIBUTE WHERE CONSENT_ID = ?`,
	}
)

// ConsentAttributeDAO handles database operations for FS_CONSENT_ATTRIBUTE
type ConsentAttributeDAO struct{}

// NewConsentAttributeDAO creates a new ConsentAttributeDAO instance
func NewConsentAttributeDAO() *ConsentAttributeDAO {
	return &ConsentAttributeDAO{}
}

// CreateBatch inserts attributes in a single statement. Existing keys are a conflict.
func (dao *ConsentAttributeDAO) CreateBatch(ctx context.Context, exec database.Executor, consentID, orgID string, attributes map[string]string) error {
	if len(attributes) == 0 {
		return nil
	}

	args := make([]interface{}, 0, len(attributes)*4)
	for _, key := range sortedKeys(attributes) {
		args = append(args, consentID, key, attributes[key], orgID)
	}

	query := multiRowInsert(QueryCreateConsentAttributes, 4, len(attributes))
	_, err := exec.ExecContext(ctx, exec.Rebind(query), args...)
	return err
}

// Upsert inserts each attribute or overwrites its value when the key already exists
func (dao *ConsentAttributeDAO) Upsert(ctx context.Context, exec database.Executor, consentID, orgID string, attributes map[string]string) error {
	query := QueryUpsertConsentAttribute.For(exec)
	for _, key := range sortedKeys(attributes) {
		if _, err := exec.ExecContext(ctx, query, consentID, key, attributes[key], orgID); err != nil {
			return err
		}
	}
	return nil
}

// GetByConsentIDs returns attributes grouped by consent id. Keys, when given, restrict the result.
func (dao *ConsentAttributeDAO) GetByConsentIDs(ctx context.Context, exec database.Executor, consentIDs []string, orgID string, keys []string) (map[string]map[string]string, error) {
	grouped := make(map[string]map[string]string, len(consentIDs))
	if len(consentIDs) == 0 {
		return grouped, nil
	}

	b := database.Select("CONSENT_ID", "ATT_KEY", "ATT_VALUE", "ORG_ID").From("FS_CONSENT_ATTRIBUTE").
		WhereIn("CONSENT_ID", consentIDs).
		WhereIn("ATT_KEY", keys)
	if orgID != "" {
		b.Where("ORG_ID = ?", orgID)
	}

	query, args, err := b.Build(database.DialectOf(exec))
	if err != nil {
		return nil, err
	}

	var rows []models.ConsentAttribute
	if err := exec.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	for _, row := range rows {
		attrs, ok := grouped[row.ConsentID]
		if !ok {
			attrs = map[string]string{}
			grouped[row.ConsentID] = attrs
		}
		attrs[row.Key] = row.Value
	}
	return grouped, nil
}

// GetByKey returns consent id to value for every consent carrying key
func (dao *ConsentAttributeDAO) GetByKey(ctx context.Context, exec database.Executor, key string) (map[string]string, error) {
	var rows []models.ConsentAttribute
	if err := exec.SelectContext(ctx, &rows, QueryGetConsentAttributesByKey.For(exec), key); err != nil {
		return nil, err
	}

	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.ConsentID] = row.Value
	}
	return values, nil
}

// FindConsentIDs lists consents whose attribute key equals value, oldest consent first
func (dao *ConsentAttributeDAO) FindConsentIDs(ctx context.Context, exec database.Executor, key, value string) ([]string, error) {
	ids := []string{}
	if err := exec.SelectContext(ctx, &ids, QueryGetConsentIDsByAttribute.For(exec), key, value); err != nil {
		return nil, err
	}
	return ids, nil
}

// Delete removes the named keys of a consent. No keys removes them all.
func (dao *ConsentAttributeDAO) Delete(ctx context.Context, exec database.Executor, consentID, orgID string, keys []string) (int64, error) {
	if len(keys) == 0 {
		return execAffected(ctx, exec,
			exec.Rebind(`DELETE FROM FS_CONSENT_ATTRIBUTE WHERE CONSENT_ID = ? AND ORG_ID = ?`), consentID, orgID)
	}

	query, args, err := inQuery(exec,
		`DELETE FROM FS_CONSENT_ATTRIBUTE WHERE CONSENT_ID = ? AND ORG_ID = ? AND ATT_KEY IN (?)`,
		consentID, orgID, keys)
	if err != nil {
		return 0, err
	}
	return execAffected(ctx, exec, query, args...)
}

// DeleteByConsentID removes every attribute of a consent regardless of organization
func (dao *ConsentAttributeDAO) DeleteByConsentID(ctx context.Context, exec database.Executor, consentID string) (int64, error) {
	return execAffected(ctx, exec, QueryDeleteConsentAttributesByConsentID.For(exec), consentID)
}
