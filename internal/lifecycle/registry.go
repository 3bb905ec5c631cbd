package lifecycle

import (
	"context"
	"fmt"
	"sort"

	"github.com/wso2/consent-lifecycle-store/internal/config"
)

// PolicyFactory builds a Policy from the consent configuration
type PolicyFactory func(ctx context.Context, cfg *config.ConsentConfig) (Policy, error)

// PolicyRegistry maps transition_policy.type values to factories
type PolicyRegistry struct {
	factories map[string]PolicyFactory
}

var (
	// defaultRegistry is the global registry singleton
	defaultRegistry *PolicyRegistry
)

// init registers the built-in policies
func init() {
	defaultRegistry = NewPolicyRegistry()

	_ = defaultRegistry.Register("static", func(_ context.Context, cfg *config.ConsentConfig) (Policy, error) {
		consent, auth := Transitions(cfg)
		return NewStaticPolicy(consent, auth), nil
	})
	_ = defaultRegistry.Register("rego", func(ctx context.Context, cfg *config.ConsentConfig) (Policy, error) {
		consent, auth := Transitions(cfg)
		return NewRegoPolicy(ctx, consent, auth, cfg.TransitionPolicy.RegoFile)
	})
}

// NewPolicyRegistry creates an empty registry
func NewPolicyRegistry() *PolicyRegistry {
	return &PolicyRegistry{factories: make(map[string]PolicyFactory)}
}

// Register adds a factory. Returns error if the type is already registered.
func (r *PolicyRegistry) Register(policyType string, factory PolicyFactory) error {
	if _, exists := r.factories[policyType]; exists {
		return fmt.Errorf("transition policy %q already registered", policyType)
	}
	r.factories[policyType] = factory
	return nil
}

// Get retrieves the factory for policyType
func (r *PolicyRegistry) Get(policyType string) (PolicyFactory, error) {
	factory, exists := r.factories[policyType]
	if !exists {
		return nil, fmt.Errorf("no transition policy registered for type %q", policyType)
	}
	return factory, nil
}

// GetAllTypes returns the registered policy types in sorted order
func (r *PolicyRegistry) GetAllTypes() []string {
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// NewPolicy builds the policy selected by cfg.TransitionPolicy.Type from the default registry
func NewPolicy(ctx context.Context, cfg *config.ConsentConfig) (Policy, error) {
	factory, err := defaultRegistry.Get(cfg.TransitionPolicy.Type)
	if err != nil {
		return nil, err
	}
	return factory(ctx, cfg)
}

// GetDefaultRegistry returns the global registry singleton
func GetDefaultRegistry() *PolicyRegistry {
	return defaultRegistry
}
