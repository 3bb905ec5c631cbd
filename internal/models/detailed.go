package models

// DetailedConsentResource is the read-only aggregate of a consent, its
// authorizations with their mappings, and its attributes.
type DetailedConsentResource struct {
	ConsentResource
	Authorizations []AuthorizationResource `json:"authorizationResources"`
	Attributes     map[string]string       `json:"consentAttributes"`
}

// FindAuthorization returns the authorization with the given id
func (d *DetailedConsentResource) FindAuthorization(authID string) *AuthorizationResource {
	for i := range d.Authorizations {
		if d.Authorizations[i].AuthorizationID == authID {
			return &d.Authorizations[i]
		}
	}
	return nil
}

// RemoveAuthorization drops the authorization with the given id together with its mappings
func (d *DetailedConsentResource) RemoveAuthorization(authID string) {
	for i := range d.Authorizations {
		if d.Authorizations[i].AuthorizationID == authID {
			d.Authorizations = append(d.Authorizations[:i], d.Authorizations[i+1:]...)
			return
		}
	}
}

// MappingIDs returns the ids of every mapping under every authorization
func (d *DetailedConsentResource) MappingIDs() []string {
	var ids []string
	for _, a := range d.Authorizations {
		for _, m := range a.Mappings {
			ids = append(ids, m.MappingID)
		}
	}
	return ids
}

// Clone returns a deep copy
func (d *DetailedConsentResource) Clone() *DetailedConsentResource {
	if d == nil {
		return nil
	}
	c := &DetailedConsentResource{
		ConsentResource: d.ConsentResource.Clone(),
		Authorizations:  make([]AuthorizationResource, len(d.Authorizations)),
		Attributes:      make(map[string]string, len(d.Attributes)),
	}
	for i, a := range d.Authorizations {
		a.UserID = clonePtr(a.UserID)
		a.Resource = a.Resource.Clone()
		mappings := make([]ConsentMappingResource, len(a.Mappings))
		for j, m := range a.Mappings {
			m.Resource = m.Resource.Clone()
			mappings[j] = m
		}
		a.Mappings = mappings
		c.Authorizations[i] = a
	}
	for k, v := range d.Attributes {
		c.Attributes[k] = v
	}
	return c
}

// FindMapping returns the mapping with the given id and the authorization holding it
func (d *DetailedConsentResource) FindMapping(mappingID string) (*AuthorizationResource, int) {
	for i := range d.Authorizations {
		for j := range d.Authorizations[i].Mappings {
			if d.Authorizations[i].Mappings[j].MappingID == mappingID {
				return &d.Authorizations[i], j
			}
		}
	}
	return nil, -1
}
