package dao

import (
	"context"
	"database/sql"
	"time"

	"github.com/wso2/consent-lifecycle-store/internal/database"
	"github.com/wso2/consent-lifecycle-store/internal/models"
	"github.com/wso2/consent-lifecycle-store/pkg/utils"
)

// detailedConsentRow is one row of the consent / authorization / mapping left join
type detailedConsentRow struct {
	models.ConsentResource
	AuthID          sql.NullString `db:"AUTH_ID"`
	AuthType        sql.NullString `db:"AUTH_TYPE"`
	UserID          sql.NullString `db:"USER_ID"`
	AuthStatus      sql.NullString `db:"AUTH_STATUS"`
	AuthUpdatedTime sql.NullInt64  `db:"AUTH_UPDATED_TIME"`
	AuthResource    sql.NullString `db:"AUTH_RESOURCE"`
	MappingID       sql.NullString `db:"MAPPING_ID"`
	AccountID       sql.NullString `db:"ACCOUNT_ID"`
	MappingResource sql.NullString `db:"MAPPING_RESOURCE"`
	MappingStatus   sql.NullString `db:"MAPPING_STATUS"`
}

var detailedColumns = []string{
	"c.CONSENT_ID", "c.RECEIPT", "c.CREATED_TIME", "c.UPDATED_TIME", "c.CLIENT_ID",
	"c.CONSENT_TYPE", "c.CURRENT_STATUS", "c.CONSENT_FREQUENCY", "c.VALIDITY_TIME",
	"c.RECURRING_INDICATOR", "c.ORG_ID",
	"a.AUTH_ID", "a.AUTH_TYPE", "a.USER_ID", "a.AUTH_STATUS",
	"a.UPDATED_TIME AS AUTH_UPDATED_TIME", "a.RESOURCE AS AUTH_RESOURCE",
	"m.MAPPING_ID", "m.ACCOUNT_ID", "m.RESOURCE AS MAPPING_RESOURCE", "m.MAPPING_STATUS",
}

// GetDetailedConsentResource returns the consent with its authorizations, mappings and attributes,
// or nil when it does not exist
func (s *ConsentStore) GetDetailedConsentResource(ctx context.Context, exec database.Executor, consentID, orgID string) (detailed *models.DetailedConsentResource, err error) {
	const op = "get_detailed_consent_resource"
	defer s.observe(op, time.Now(), &err)

	consents, err := s.loadDetailed(ctx, exec, []string{consentID}, s.org(orgID))
	if err != nil {
		return nil, retrievalError(op, err)
	}
	if len(consents) == 0 {
		return nil, nil
	}
	return consents[0], nil
}

// SearchConsents returns detailed consents matching every given filter, newest UPDATED_TIME first
func (s *ConsentStore) SearchConsents(ctx context.Context, exec database.Executor, params models.ConsentSearchParams) (results []*models.DetailedConsentResource, err error) {
	const op = "search_consents"
	defer s.observe(op, time.Now(), &err)

	orgID := s.org(params.OrgID)

	b := database.Select("c.CONSENT_ID", "c.UPDATED_TIME").Distinct().From("FS_CONSENT c")
	if len(params.UserIDs) > 0 {
		b.Join("INNER JOIN FS_CONSENT_AUTH_RESOURCE a ON a.CONSENT_ID = c.CONSENT_ID").
			WhereIn("a.USER_ID", params.UserIDs)
	}
	b.Where("c.ORG_ID = ?", orgID).
		WhereIn("c.CONSENT_ID", params.ConsentIDs).
		WhereIn("c.CLIENT_ID", params.ClientIDs).
		WhereIn("c.CONSENT_TYPE", params.ConsentTypes).
		WhereIn("c.CURRENT_STATUS", params.ConsentStatuses)
	if params.FromTime != nil {
		b.Where("c.UPDATED_TIME >= ?", *params.FromTime)
	}
	if params.ToTime != nil {
		b.Where("c.UPDATED_TIME <= ?", *params.ToTime)
	}
	b.OrderBy("c.UPDATED_TIME", false).
		OrderBy("c.CONSENT_ID", true).
		Paginate(utils.ValidateLimit(params.Limit), utils.ValidateOffset(params.Offset))

	query, args, err := b.Build(database.DialectOf(exec))
	if err != nil {
		return nil, retrievalError(op, err)
	}

	var hits []struct {
		ConsentID   string `db:"CONSENT_ID"`
		UpdatedTime int64  `db:"UPDATED_TIME"`
	}
	if err := exec.SelectContext(ctx, &hits, query, args...); err != nil {
		return nil, retrievalError(op, err)
	}
	if len(hits) == 0 {
		return []*models.DetailedConsentResource{}, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ConsentID
	}

	loaded, err := s.loadDetailed(ctx, exec, ids, orgID)
	if err != nil {
		return nil, retrievalError(op, err)
	}

	byID := make(map[string]*models.DetailedConsentResource, len(loaded))
	for _, d := range loaded {
		byID[d.ConsentID] = d
	}
	results = make([]*models.DetailedConsentResource, 0, len(ids))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			results = append(results, d)
		}
	}
	return results, nil
}

// loadDetailed reads the join of the given consents and folds it into one aggregate per consent
func (s *ConsentStore) loadDetailed(ctx context.Context, exec database.Executor, consentIDs []string, orgID string) ([]*models.DetailedConsentResource, error) {
	if len(consentIDs) == 0 {
		return nil, nil
	}

	b := database.Select(detailedColumns...).From("FS_CONSENT c").
		Join("LEFT JOIN FS_CONSENT_AUTH_RESOURCE a ON a.CONSENT_ID = c.CONSENT_ID").
		Join("LEFT JOIN FS_CONSENT_MAPPING m ON m.AUTH_ID = a.AUTH_ID").
		WhereIn("c.CONSENT_ID", consentIDs).
		Where("c.ORG_ID = ?", orgID).
		OrderBy("c.CONSENT_ID", true).
		OrderBy("a.UPDATED_TIME", true).
		OrderBy("a.AUTH_ID", true).
		OrderBy("m.MAPPING_ID", true)

	query, args, err := b.Build(database.DialectOf(exec))
	if err != nil {
		return nil, err
	}

	var rows []detailedConsentRow
	if err := exec.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	consents := groupDetailedRows(rows)
	if len(consents) == 0 {
		return consents, nil
	}

	ids := make([]string, len(consents))
	for i, c := range consents {
		ids[i] = c.ConsentID
	}
	attributes, err := s.attributes.GetByConsentIDs(ctx, exec, ids, orgID, nil)
	if err != nil {
		return nil, err
	}
	for _, c := range consents {
		if attrs, ok := attributes[c.ConsentID]; ok {
			c.Attributes = attrs
		}
	}
	return consents, nil
}

// groupDetailedRows collapses join fan-out so each consent, authorization and mapping appears once,
// in first-seen order
func groupDetailedRows(rows []detailedConsentRow) []*models.DetailedConsentResource {
	var consents []*models.DetailedConsentResource
	consentIdx := make(map[string]int)
	authIdx := make(map[string]int)
	seenMappings := make(map[string]struct{})

	for _, row := range rows {
		ci, ok := consentIdx[row.ConsentID]
		if !ok {
			ci = len(consents)
			consentIdx[row.ConsentID] = ci
			consents = append(consents, &models.DetailedConsentResource{
				ConsentResource: row.ConsentResource,
				Authorizations:  []models.AuthorizationResource{},
				Attributes:      map[string]string{},
			})
		}
		consent := consents[ci]

		if !row.AuthID.Valid {
			continue
		}
		ai, ok := authIdx[row.AuthID.String]
		if !ok {
			ai = len(consent.Authorizations)
			authIdx[row.AuthID.String] = ai
			consent.Authorizations = append(consent.Authorizations, models.AuthorizationResource{
				AuthorizationID:     row.AuthID.String,
				ConsentID:           row.ConsentID,
				OrgID:               row.OrgID,
				UserID:              nullStringPtr(row.UserID),
				AuthorizationType:   row.AuthType.String,
				AuthorizationStatus: row.AuthStatus.String,
				Resource:            nullJSON(row.AuthResource),
				UpdatedTime:         row.AuthUpdatedTime.Int64,
				Mappings:            []models.ConsentMappingResource{},
			})
		}

		if !row.MappingID.Valid {
			continue
		}
		if _, dup := seenMappings[row.MappingID.String]; dup {
			continue
		}
		seenMappings[row.MappingID.String] = struct{}{}
		auth := &consent.Authorizations[ai]
		auth.Mappings = append(auth.Mappings, models.ConsentMappingResource{
			MappingID:       row.MappingID.String,
			AuthorizationID: row.AuthID.String,
			AccountID:       row.AccountID.String,
			Resource:        nullJSON(row.MappingResource),
			MappingStatus:   row.MappingStatus.String,
		})
	}
	return consents
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullJSON(ns sql.NullString) models.JSON {
	if !ns.Valid {
		return nil
	}
	return models.JSON(ns.String)
}
