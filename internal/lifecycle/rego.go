package lifecycle

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage/inmem"
)

const regoQuery = "data.consent.transitions.allow"

//go:embed policy/transitions.rego
var defaultRegoModule string

// RegoPolicy evaluates transitions with an OPA policy. The policy sees the
// transition tables under data.transitions and the request as input.
type RegoPolicy struct {
	query rego.PreparedEvalQuery
}

// NewRegoPolicy prepares the policy. An empty regoFile uses the built-in module.
func NewRegoPolicy(ctx context.Context, consent, auth map[string][]string, regoFile string) (*RegoPolicy, error) {
	store := inmem.NewFromObject(map[string]interface{}{
		"transitions": map[string]interface{}{
			string(EntityConsent):       tableToData(consent),
			string(EntityAuthorization): tableToData(auth),
		},
	})

	opts := []func(*rego.Rego){
		rego.Query(regoQuery),
		rego.Store(store),
		rego.StrictBuiltinErrors(true),
	}
	if regoFile != "" {
		opts = append(opts, rego.Load([]string{regoFile}, nil))
	} else {
		opts = append(opts, rego.Module("transitions.rego", defaultRegoModule))
	}

	prepared, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare transition policy: %w", err)
	}
	return &RegoPolicy{query: prepared}, nil
}

func tableToData(table map[string][]string) map[string]interface{} {
	data := make(map[string]interface{}, len(table))
	for from, targets := range table {
		list := make([]interface{}, len(targets))
		for i, to := range targets {
			list[i] = to
		}
		data[from] = list
	}
	return data
}

// Allowed implements Policy
func (p *RegoPolicy) Allowed(ctx context.Context, entity Entity, from, to string) (bool, error) {
	results, err := p.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"entity": string(entity),
		"from":   from,
		"to":     to,
	}))
	if err != nil {
		return false, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, errors.New("empty policy result")
	}
	allowed, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("policy returned %T, expected bool", results[0].Expressions[0].Value)
	}
	return allowed, nil
}
