package entity

import (
	"context"
	"errors"

	"github.com/ledgerbase/backend/internal/domain/shared"
)

// MatchedBy tells how a candidate was resolved to an existing entity
type MatchedBy string

const (
	MatchedByNone           MatchedBy = ""
	MatchedByCode           MatchedBy = "code"
	MatchedByNormalizedName MatchedBy = "normalized_name"
	MatchedByFuzzy          MatchedBy = "fuzzy"
)

// MatchPolicy configures fuzzy matching for one entity type
type MatchPolicy struct {
	FuzzyEnabled bool
	Threshold    float64
	Metric       Metric
}

// ResolverConfig holds resolver policies and candidate scan bounds
type ResolverConfig struct {
	Default           MatchPolicy
	ByType            map[Type]MatchPolicy
	CandidatePageSize int
	MaxCandidates     int
}

// DefaultResolverConfig returns the default resolver settings
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		Default: MatchPolicy{
			FuzzyEnabled: true,
			Threshold:    0.92,
			Metric:       MetricLevenshtein,
		},
		CandidatePageSize: 500,
		MaxCandidates:     10000,
	}
}

// PolicyFor returns the policy for entityType
func (c ResolverConfig) PolicyFor(entityType Type) MatchPolicy {
	if p, ok := c.ByType[entityType]; ok {
		return p
	}
	return c.Default
}

// Resolution is the outcome of ResolveOrCreate
type Resolution struct {
	Entity     *Entity
	IsNew      bool
	MatchedBy  MatchedBy
	Similarity float64
}

// Resolver finds the existing entity a candidate refers to, or creates it
type Resolver struct {
	repo   Repository
	config ResolverConfig
}

// NewResolver creates a resolver over repo
func NewResolver(repo Repository, config ResolverConfig) *Resolver {
	if config.CandidatePageSize <= 0 {
		config.CandidatePageSize = DefaultResolverConfig().CandidatePageSize
	}
	if config.MaxCandidates <= 0 {
		config.MaxCandidates = DefaultResolverConfig().MaxCandidates
	}
	return &Resolver{repo: repo, config: config}
}

// Match runs the code, normalized-name and fuzzy lookups without creating anything
func (r *Resolver) Match(ctx context.Context, candidate *Entity) (Resolution, error) {
	if candidate.EntityCode != "" {
		found, err := r.repo.FindByCode(ctx, candidate.OrganizationID, candidate.EntityType, candidate.EntityCode)
		if err != nil && !isNotFound(err) {
			return Resolution{}, err
		}
		if found != nil {
			return Resolution{Entity: found, MatchedBy: MatchedByCode, Similarity: 1}, nil
		}
	}

	found, err := r.repo.FindByNormalizedName(ctx, candidate.OrganizationID, candidate.EntityType, candidate.NormalizedName)
	if err != nil && !isNotFound(err) {
		return Resolution{}, err
	}
	if found != nil {
		return Resolution{Entity: found, MatchedBy: MatchedByNormalizedName, Similarity: 1}, nil
	}

	policy := r.config.PolicyFor(candidate.EntityType)
	if !policy.FuzzyEnabled {
		return Resolution{}, nil
	}
	return r.fuzzyMatch(ctx, candidate, policy)
}

// ResolveOrCreate returns the matching entity or inserts candidate.
// A concurrent insert of the same name or code is resolved by matching again once.
func (r *Resolver) ResolveOrCreate(ctx context.Context, candidate *Entity) (Resolution, error) {
	res, err := r.Match(ctx, candidate)
	if err != nil {
		return Resolution{}, err
	}
	if res.Entity != nil {
		return res, nil
	}

	err = r.repo.Create(ctx, candidate)
	if err == nil {
		return Resolution{Entity: candidate, IsNew: true}, nil
	}
	if !errors.Is(err, ErrDuplicate) {
		return Resolution{}, err
	}

	res, err = r.Match(ctx, candidate)
	if err != nil {
		return Resolution{}, err
	}
	if res.Entity == nil {
		return Resolution{}, ErrDuplicate
	}
	return res, nil
}

// fuzzyMatch scans candidates in (created_at, id) order and keeps the first
// best score, so ties resolve to the earliest entity.
func (r *Resolver) fuzzyMatch(ctx context.Context, candidate *Entity, policy MatchPolicy) (Resolution, error) {
	var (
		best    *Entity
		bestSim float64
		cursor  *Cursor
		scanned int
	)
	for scanned < r.config.MaxCandidates {
		limit := min(r.config.CandidatePageSize, r.config.MaxCandidates-scanned)
		page, err := r.repo.ScanCandidates(ctx, candidate.OrganizationID, candidate.EntityType, cursor, limit)
		if err != nil {
			return Resolution{}, err
		}
		for _, e := range page {
			sim := Similarity(policy.Metric, candidate.NormalizedName, e.NormalizedName)
			if sim >= policy.Threshold && sim > bestSim {
				best, bestSim = e, sim
			}
		}
		scanned += len(page)
		if len(page) < limit {
			break
		}
		last := page[len(page)-1]
		cursor = &Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	if best == nil {
		return Resolution{}, nil
	}
	return Resolution{Entity: best, MatchedBy: MatchedByFuzzy, Similarity: bestSim}, nil
}

func isNotFound(err error) bool {
	return shared.KindOf(err) == shared.KindNotFound
}
