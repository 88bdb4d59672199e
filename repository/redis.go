package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"nvr-orchestrator/entities"
	"nvr-orchestrator/pkg/apperror"
)

// Key layout:
//
//	<prefix>:rules                  hash, rule id -> rule JSON
//	<prefix>:rule:<id>:summaries    list of summary pipeline ids
//	<prefix>:rule:<id>:search       list of search result JSON
type redisRepo struct {
	client *redis.Client
	prefix string
}

func NewRedisRepo(client *redis.Client, prefix string) RuleRepository {
	if prefix == "" {
		prefix = "nvr"
	}
	return &redisRepo{
		client: client,
		prefix: prefix,
	}
}

func (r *redisRepo) rulesKey() string {
	return r.prefix + ":rules"
}

func (r *redisRepo) summariesKey(ruleID string) string {
	return fmt.Sprintf("%s:rule:%s:summaries", r.prefix, ruleID)
}

func (r *redisRepo) searchKey(ruleID string) string {
	return fmt.Sprintf("%s:rule:%s:search", r.prefix, ruleID)
}

func (r *redisRepo) Add(ctx context.Context, rule entities.Rule) error {
	data, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("marshal rule: %w", err)
	}

	created, err := r.client.HSetNX(ctx, r.rulesKey(), rule.ID, data).Result()
	if err != nil {
		return fmt.Errorf("store rule %s: %w", rule.ID, err)
	}
	if !created {
		return apperror.Conflict("add rule", "Rule ID already exists")
	}
	return nil
}

func (r *redisRepo) List(ctx context.Context) ([]entities.Rule, error) {
	raw, err := r.client.HGetAll(ctx, r.rulesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}

	rules := make([]entities.Rule, 0, len(raw))
	for id, data := range raw {
		var rule entities.Rule
		if err := json.Unmarshal([]byte(data), &rule); err != nil {
			return nil, fmt.Errorf("decode rule %s: %w", id, err)
		}
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules, nil
}

func (r *redisRepo) Get(ctx context.Context, id string) (*entities.Rule, error) {
	data, err := r.client.HGet(ctx, r.rulesKey(), id).Result()
	if err == redis.Nil {
		return nil, apperror.NotFound("get rule", "Rule not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get rule %s: %w", id, err)
	}

	var rule entities.Rule
	if err := json.Unmarshal([]byte(data), &rule); err != nil {
		return nil, fmt.Errorf("decode rule %s: %w", id, err)
	}
	return &rule, nil
}

func (r *redisRepo) Delete(ctx context.Context, id string) error {
	var removed *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.HDel(ctx, r.rulesKey(), id)
		pipe.Del(ctx, r.summariesKey(id), r.searchKey(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}
	if removed.Val() == 0 {
		return apperror.NotFound("delete rule", "Rule not found")
	}
	return nil
}

func (r *redisRepo) AppendSummaryID(ctx context.Context, ruleID, pipelineID string) error {
	if err := r.client.RPush(ctx, r.summariesKey(ruleID), pipelineID).Err(); err != nil {
		return fmt.Errorf("append summary id for rule %s: %w", ruleID, err)
	}
	return nil
}

func (r *redisRepo) SummaryIDs(ctx context.Context, ruleID string) ([]string, error) {
	ids, err := r.client.LRange(ctx, r.summariesKey(ruleID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("summary ids for rule %s: %w", ruleID, err)
	}
	return ids, nil
}

func (r *redisRepo) AppendSearchResult(ctx context.Context, ruleID string, result entities.SearchResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal search result: %w", err)
	}
	if err := r.client.RPush(ctx, r.searchKey(ruleID), data).Err(); err != nil {
		return fmt.Errorf("append search result for rule %s: %w", ruleID, err)
	}
	return nil
}

func (r *redisRepo) SearchResults(ctx context.Context, ruleID string) ([]entities.SearchResult, error) {
	raw, err := r.client.LRange(ctx, r.searchKey(ruleID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("search results for rule %s: %w", ruleID, err)
	}

	results := make([]entities.SearchResult, 0, len(raw))
	for _, data := range raw {
		var result entities.SearchResult
		if err := json.Unmarshal([]byte(data), &result); err != nil {
			return nil, fmt.Errorf("decode search result for rule %s: %w", ruleID, err)
		}
		results = append(results, result)
	}
	return results, nil
}

func (r *redisRepo) Close() error {
	return r.client.Close()
}
