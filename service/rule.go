package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"nvr-orchestrator/constant"
	"nvr-orchestrator/dto"
	"nvr-orchestrator/entities"
	"nvr-orchestrator/pkg/apperror"
	"nvr-orchestrator/repository"
)

type RuleService interface {
	Add(ctx context.Context, req dto.RuleRequest) (*entities.Rule, error)
	List(ctx context.Context) ([]entities.Rule, error)
	Get(ctx context.Context, id string) (*entities.Rule, error)
	Delete(ctx context.Context, id string) error
}

type ruleService struct {
	repo repository.RuleRepository
}

func NewRuleService(repo repository.RuleRepository) RuleService {
	return &ruleService{repo: repo}
}

func (s *ruleService) Add(ctx context.Context, req dto.RuleRequest) (*entities.Rule, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return nil, apperror.Validation("add rule", "rule id is required")
	}

	rule := entities.Rule{
		ID:        id,
		Label:     req.Label,
		Action:    constant.ParseAction(req.Action),
		CreatedAt: time.Now().UTC(),
	}
	if req.Camera != nil {
		rule.Camera = strings.TrimSpace(*req.Camera)
	}

	if err := s.repo.Add(ctx, rule); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("rule_id", id).Msg("failed to add rule")
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Str("rule_id", id).Str("action", rule.Action.String()).Str("camera", rule.Camera).Msg("rule added")
	return &rule, nil
}

func (s *ruleService) List(ctx context.Context) ([]entities.Rule, error) {
	return s.repo.List(ctx)
}

func (s *ruleService) Get(ctx context.Context, id string) (*entities.Rule, error) {
	return s.repo.Get(ctx, id)
}

func (s *ruleService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Str("rule_id", id).Msg("rule deleted")
	return nil
}
