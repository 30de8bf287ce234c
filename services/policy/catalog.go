package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/Hycient195/academia-pro-access/models"
	"github.com/Hycient195/academia-pro-access/repositories"
	"go.uber.org/zap"
)

// secondaryResourceTypes maps record-bearing resource types to the
// resource-specific policy category that accompanies data_classification
var secondaryResourceTypes = map[string]models.PolicyType{
	"student":  models.PolicyTypeRetention,
	"report":   models.PolicyTypeRetention,
	"file":     models.PolicyTypeEncryption,
	"document": models.PolicyTypeSharing,
}

// authenticationActions are the actions that pull credential policies
// into the candidate set
var authenticationActions = map[string]bool{
	"login":        true,
	"authenticate": true,
	"verify":       true,
}

// PolicyCatalog retrieves and filters the candidate policies applicable to
// an evaluation context: active status, relevant type, matching scope, and
// current validity window.
type PolicyCatalog struct {
	repo   repositories.PolicyRepository
	cache  *CandidateCache
	logger *zap.Logger
}

// NewPolicyCatalog creates a PolicyCatalog
func NewPolicyCatalog(repo repositories.PolicyRepository, cache *CandidateCache, logger *zap.Logger) *PolicyCatalog {
	return &PolicyCatalog{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// GetApplicable returns the unordered candidate set for a context.
// A candidate whose conditions are not satisfied is still returned:
// non-triggering is itself meaningful, and it is the aggregator that
// marks such a policy non-contributing. Ordering is likewise the
// aggregator's responsibility.
func (c *PolicyCatalog) GetApplicable(ctx context.Context, ec *models.EvaluationContext) ([]*models.Policy, error) {
	types := c.relevantTypes(ec)

	active, err := c.fetchActive(ctx, types)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidate policies: %w", err)
	}

	now := ec.Environment.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	candidates := make([]*models.Policy, 0, len(active))
	for _, p := range active {
		if p.Status != models.PolicyStatusActive {
			continue
		}
		if !p.IsEffectiveAt(now) {
			continue
		}
		if !p.AppliesToScope(ec.User.OrganizationID) {
			continue
		}
		candidates = append(candidates, p)
	}

	c.logger.Debug("candidate policies selected",
		zap.Int("fetched", len(active)),
		zap.Int("candidates", len(candidates)),
		zap.String("action", ec.Action),
		zap.String("resource_type", ec.Resource.Type))

	return candidates, nil
}

// relevantTypes derives the policy-type subset worth fetching for a context
func (c *PolicyCatalog) relevantTypes(ec *models.EvaluationContext) []models.PolicyType {
	types := []models.PolicyType{models.PolicyTypeAccessControl}

	if ec.Resource.Type == "user" {
		types = append(types, models.PolicyTypeRole, models.PolicyTypePermission)
	}
	if secondary, ok := secondaryResourceTypes[ec.Resource.Type]; ok {
		types = append(types, models.PolicyTypeDataClassification, secondary)
	}
	if authenticationActions[ec.Action] {
		types = append(types, models.PolicyTypePassword, models.PolicyTypeMFA, models.PolicyTypeSession)
	}

	return types
}

// fetchActive loads active policies of the given types through the
// candidate cache
func (c *PolicyCatalog) fetchActive(ctx context.Context, types []models.PolicyType) ([]*models.Policy, error) {
	key := CacheKey{Types: types}
	if cached := c.cache.Get(key); cached != nil {
		c.logger.Debug("candidate cache hit", zap.String("key", key.String()))
		return cached, nil
	}

	policies, err := c.repo.GetActiveByTypes(ctx, types)
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, policies)
	c.logger.Debug("candidate cache miss, fetched from repository",
		zap.String("key", key.String()),
		zap.Int("count", len(policies)))

	return policies, nil
}

// InvalidateCache drops all cached candidate sets; called after any
// policy mutation
func (c *PolicyCatalog) InvalidateCache() {
	c.cache.Purge()
	c.logger.Debug("candidate cache purged")
}
