package dao

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wso2/consent-lifecycle-store/internal/models"
)

func consentIDs(results []*models.DetailedConsentResource) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ConsentID
	}
	return ids
}

func TestSearchConsents(t *testing.T) {
	f := newStoreFixture(t)

	at := func(ts int64) { f.clock.now = ts }

	at(100)
	c1 := f.consent(t, "", "client-a", "accounts", "Authorised")
	f.authorization(t, c1.ConsentID, "alice", "Authorised")
	at(200)
	c2 := f.consent(t, "", "client-a", "payments", "Authorised")
	f.authorization(t, c2.ConsentID, "bob", "Authorised")
	at(300)
	c3 := f.consent(t, "", "client-b", "accounts", "Received")
	at(400)
	c4 := f.consent(t, "", "client-a", "accounts", "Authorised")
	f.authorization(t, c4.ConsentID, "alice", "Authorised")
	f.authorization(t, c4.ConsentID, "bob", "Authorised")
	at(500)
	c5 := f.consent(t, "org-2", "client-a", "accounts", "Authorised")

	from, to := int64(200), int64(300)

	tests := []struct {
		name   string
		params models.ConsentSearchParams
		want   []string
	}{
		{
			name:   "no filters returns the default org newest first",
			params: models.ConsentSearchParams{},
			want:   []string{c4.ConsentID, c3.ConsentID, c2.ConsentID, c1.ConsentID},
		},
		{
			name:   "filters are conjunctive",
			params: models.ConsentSearchParams{ClientIDs: []string{"client-a"}, ConsentTypes: []string{"accounts"}},
			want:   []string{c4.ConsentID, c1.ConsentID},
		},
		{
			name:   "values within a filter are disjunctive",
			params: models.ConsentSearchParams{ConsentTypes: []string{"payments", "accounts"}, ConsentStatuses: []string{"Received"}},
			want:   []string{c3.ConsentID},
		},
		{
			name:   "user filter de-duplicates consents with several matching authorizations",
			params: models.ConsentSearchParams{UserIDs: []string{"alice", "bob"}},
			want:   []string{c4.ConsentID, c2.ConsentID, c1.ConsentID},
		},
		{
			name:   "user filter excludes consents without authorizations",
			params: models.ConsentSearchParams{UserIDs: []string{"alice"}, ClientIDs: []string{"client-a", "client-b"}},
			want:   []string{c4.ConsentID, c1.ConsentID},
		},
		{
			name:   "time bounds are inclusive on updated time",
			params: models.ConsentSearchParams{FromTime: &from, ToTime: &to},
			want:   []string{c3.ConsentID, c2.ConsentID},
		},
		{
			name:   "limit and offset page the ordered result",
			params: models.ConsentSearchParams{Limit: 2, Offset: 1},
			want:   []string{c3.ConsentID, c2.ConsentID},
		},
		{
			name:   "offset without limit returns the tail",
			params: models.ConsentSearchParams{Offset: 3},
			want:   []string{c1.ConsentID},
		},
		{
			name:   "organization scopes the search",
			params: models.ConsentSearchParams{OrgID: "org-2"},
			want:   []string{c5.ConsentID},
		},
		{
			name:   "consent ids narrow the search",
			params: models.ConsentSearchParams{ConsentIDs: []string{c1.ConsentID, c5.ConsentID}},
			want:   []string{c1.ConsentID},
		},
		{
			name:   "no match is empty",
			params: models.ConsentSearchParams{ClientIDs: []string{"client-z"}},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := f.store.SearchConsents(f.ctx, f.db, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, consentIDs(results))
		})
	}
}

func TestSearchConsents_ReturnsDetailedAggregates(t *testing.T) {
	f := newStoreFixture(t)
	c := f.consent(t, "", "client-a", "accounts", "Authorised")
	alice := f.authorization(t, c.ConsentID, "alice", "Authorised")
	f.authorization(t, c.ConsentID, "bob", "Authorised")
	_, err := f.store.StoreConsentMappingResources(f.ctx, f.db, alice.AuthorizationID, []models.ConsentMappingResource{
		{AccountID: "acc-1"}, {AccountID: "acc-2"},
	})
	require.NoError(t, err)
	require.NoError(t, f.store.StoreConsentAttributes(f.ctx, f.db, c.ConsentID, "", map[string]string{"channel": "web"}))

	results, err := f.store.SearchConsents(f.ctx, f.db, models.ConsentSearchParams{UserIDs: []string{"alice"}})
	require.NoError(t, err)
	require.Len(t, results, 1)

	got := results[0]
	assert.Len(t, got.Authorizations, 2, "every authorization of a matched consent is returned")
	require.NotNil(t, got.FindAuthorization(alice.AuthorizationID))
	assert.Len(t, got.FindAuthorization(alice.AuthorizationID).Mappings, 2)
	assert.Equal(t, map[string]string{"channel": "web"}, got.Attributes)
}
