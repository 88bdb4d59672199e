package repository

import (
	"context"

	"nvr-orchestrator/entities"
)

// RuleRepository persists rules and the per-rule result index. Implementations
// rely on the backing store for single-key atomicity: Add and Delete on the same
// id are serialized by the store, so at most one concurrent Add wins.
type RuleRepository interface {
	Add(ctx context.Context, rule entities.Rule) error
	List(ctx context.Context) ([]entities.Rule, error)
	Get(ctx context.Context, id string) (*entities.Rule, error)
	Delete(ctx context.Context, id string) error

	AppendSummaryID(ctx context.Context, ruleID, pipelineID string) error
	SummaryIDs(ctx context.Context, ruleID string) ([]string, error)
	AppendSearchResult(ctx context.Context, ruleID string, result entities.SearchResult) error
	SearchResults(ctx context.Context, ruleID string) ([]entities.SearchResult, error)

	Close() error
}
