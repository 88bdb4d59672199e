package repository

import (
	"context"
	"fmt"

	"nvr-orchestrator/config"
	"nvr-orchestrator/constant"
)

// Open returns the rule store selected by rules.backend, waiting for Redis to
// come up when that backend is used.
func Open(ctx context.Context, cfg *config.Config) (RuleRepository, error) {
	switch cfg.Rules.Backend {
	case constant.RuleBackendRedis:
		if err := config.WaitForRedis(ctx, cfg.Redis); err != nil {
			return nil, fmt.Errorf("connect rule store: %w", err)
		}
		return NewRedisRepo(cfg.Redis, cfg.Rules.Prefix), nil
	case constant.RuleBackendPostgres:
		return NewPostgresRepo(cfg.DB, cfg.Rules.Debug)
	default:
		return nil, fmt.Errorf("unknown rule backend %q", cfg.Rules.Backend)
	}
}
