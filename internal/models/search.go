package models

// ConsentSearchParams holds the optional consent search filters.
// List filters are OR-matched within a field and AND-matched across fields.
type ConsentSearchParams struct {
	OrgID           string
	ConsentIDs      []string
	ClientIDs       []string
	ConsentTypes    []string
	ConsentStatuses []string
	UserIDs         []string
	// FromTime and ToTime bound UPDATED_TIME, inclusive
	FromTime *int64
	ToTime   *int64
	// Limit <= 0 returns every match
	Limit  int
	Offset int
}

// StatusAuditFilter holds the optional status audit listing filters
type StatusAuditFilter struct {
	OrgID     string
	ConsentID string
	Status    string
	ActionBy  string
	FromTime  *int64
	ToTime    *int64
	Limit     int
	Offset    int
}
