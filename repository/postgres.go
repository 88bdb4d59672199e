package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"nvr-orchestrator/constant"
	"nvr-orchestrator/entities"
	"nvr-orchestrator/pkg/apperror"
)

type postgresRepo struct {
	db *gorm.DB
}

// NewPostgresRepo wraps an open *sql.DB and migrates the rules and rule_jobs tables.
func NewPostgresRepo(db *sql.DB, debug bool) (RuleRepository, error) {
	logMode := logger.Warn
	if debug {
		logMode = logger.Info
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logMode),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	if err := gormDB.AutoMigrate(&entities.Rule{}, &entities.RuleJob{}); err != nil {
		return nil, fmt.Errorf("migrate rules: %w", err)
	}

	return &postgresRepo{
		db: gormDB,
	}, nil
}

func (r *postgresRepo) GetDB() *gorm.DB {
	return r.db
}

func (r *postgresRepo) Add(ctx context.Context, rule entities.Rule) error {
	res := r.GetDB().WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rule)
	if res.Error != nil {
		return fmt.Errorf("store rule %s: %w", rule.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.Conflict("add rule", "Rule ID already exists")
	}
	return nil
}

func (r *postgresRepo) List(ctx context.Context) ([]entities.Rule, error) {
	var rules []entities.Rule
	if err := r.GetDB().WithContext(ctx).Order("id ASC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rules, nil
}

func (r *postgresRepo) Get(ctx context.Context, id string) (*entities.Rule, error) {
	rule := &entities.Rule{}
	err := r.GetDB().WithContext(ctx).First(rule, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("get rule", "Rule not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get rule %s: %w", id, err)
	}
	return rule, nil
}

func (r *postgresRepo) Delete(ctx context.Context, id string) error {
	return r.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&entities.Rule{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("delete rule %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperror.NotFound("delete rule", "Rule not found")
		}
		if err := tx.Delete(&entities.RuleJob{}, "rule_id = ?", id).Error; err != nil {
			return fmt.Errorf("delete jobs of rule %s: %w", id, err)
		}
		return nil
	})
}

func (r *postgresRepo) AppendSummaryID(ctx context.Context, ruleID, pipelineID string) error {
	job := &entities.RuleJob{
		RuleID: ruleID,
		Kind:   constant.ActionSummarize,
		JobID:  pipelineID,
	}
	if err := r.GetDB().WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("append summary id for rule %s: %w", ruleID, err)
	}
	return nil
}

func (r *postgresRepo) SummaryIDs(ctx context.Context, ruleID string) ([]string, error) {
	var ids []string
	err := r.GetDB().WithContext(ctx).Model(&entities.RuleJob{}).
		Where("rule_id = ? AND kind = ?", ruleID, constant.ActionSummarize).
		Order("id ASC").
		Pluck("job_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("summary ids for rule %s: %w", ruleID, err)
	}
	return ids, nil
}

func (r *postgresRepo) AppendSearchResult(ctx context.Context, ruleID string, result entities.SearchResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal search result: %w", err)
	}
	job := &entities.RuleJob{
		RuleID:  ruleID,
		Kind:    constant.ActionAddToSearch,
		JobID:   result.VideoID,
		Payload: string(payload),
	}
	if err := r.GetDB().WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("append search result for rule %s: %w", ruleID, err)
	}
	return nil
}

func (r *postgresRepo) SearchResults(ctx context.Context, ruleID string) ([]entities.SearchResult, error) {
	var jobs []*entities.RuleJob
	err := r.GetDB().WithContext(ctx).
		Where("rule_id = ? AND kind = ?", ruleID, constant.ActionAddToSearch).
		Order("id ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("search results for rule %s: %w", ruleID, err)
	}

	results := make([]entities.SearchResult, 0, len(jobs))
	for _, job := range jobs {
		var result entities.SearchResult
		if err := json.Unmarshal([]byte(job.Payload), &result); err != nil {
			return nil, fmt.Errorf("decode search result %d: %w", job.ID, err)
		}
		results = append(results, result)
	}
	return results, nil
}

func (r *postgresRepo) Close() error {
	db, err := r.GetDB().DB()
	if err != nil {
		return err
	}
	return db.Close()
}
