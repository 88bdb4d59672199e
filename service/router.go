package service

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"nvr-orchestrator/constant"
	"nvr-orchestrator/dto"
	"nvr-orchestrator/entities"
	"nvr-orchestrator/pkg/apperror"
	"nvr-orchestrator/repository"
)

// DispatchResult is the outcome of one rule for one event. Err is the rule's
// own failure slot; it never aborts the other rules.
type DispatchResult struct {
	RuleID     string
	Action     constant.Action
	PipelineID string
	VideoID    string
	Err        error
}

type RuleSummaries struct {
	Summaries map[string]string `json:"summaries"`
	Error     string            `json:"error,omitempty"`
}

type RuleSearches struct {
	Results []entities.SearchResult `json:"results"`
	Error   string                  `json:"error,omitempty"`
}

type Dispatcher interface {
	Dispatch(ctx context.Context, event entities.Event) ([]DispatchResult, error)
}

type Router struct {
	rules       repository.RuleRepository
	pipeline    PipelineService
	tracker     *JobTracker
	concurrency int
}

// NewRouter builds a router. tracker may be nil, in which case dispatched
// summaries are not polled in the background.
func NewRouter(rules repository.RuleRepository, pipeline PipelineService, tracker *JobTracker, concurrency int) *Router {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Router{
		rules:       rules,
		pipeline:    pipeline,
		tracker:     tracker,
		concurrency: concurrency,
	}
}

// Dispatch runs every rule matching the event's camera. Only a failure to read
// the rule table is returned as an error.
func (r *Router) Dispatch(ctx context.Context, event entities.Event) ([]DispatchResult, error) {
	logger := zerolog.Ctx(ctx).With().Str("event_id", event.ID).Str("camera", event.Camera).Logger()

	if !event.Ended() {
		logger.Debug().Msg("event has not ended, skipping")
		return nil, nil
	}

	rules, err := r.rules.List(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list rules")
		return nil, err
	}

	var matched []entities.Rule
	for _, rule := range rules {
		if rule.Matches(event.Camera) {
			matched = append(matched, rule)
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}

	req := clipForEvent(event)
	results := make([]DispatchResult, len(matched))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, rule := range matched {
		g.Go(func() error {
			results[i] = r.dispatchRule(gctx, rule, event, req)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		if res.Err != nil {
			logger.Error().Err(res.Err).Str("rule_id", res.RuleID).Msg("rule dispatch failed")
			continue
		}
		logger.Info().Str("rule_id", res.RuleID).Str("action", res.Action.String()).
			Str("pipeline_id", res.PipelineID).Str("video_id", res.VideoID).Msg("rule dispatched")
	}
	return results, nil
}

func (r *Router) dispatchRule(ctx context.Context, rule entities.Rule, event entities.Event, req dto.ClipRequest) DispatchResult {
	res := DispatchResult{RuleID: rule.ID, Action: rule.Action}

	switch rule.Action {
	case constant.ActionAddToSearch:
		result, err := r.pipeline.IndexClip(ctx, req)
		if err != nil {
			res.Err = err
			return res
		}
		result.EventID = event.ID
		res.VideoID = result.VideoID
		res.Err = r.rules.AppendSearchResult(ctx, rule.ID, result)
	default:
		pipelineID, err := r.pipeline.SummarizeClip(ctx, req)
		if err != nil {
			res.Err = err
			return res
		}
		res.PipelineID = pipelineID
		if res.Err = r.rules.AppendSummaryID(ctx, rule.ID, pipelineID); res.Err != nil {
			return res
		}
		if r.tracker != nil {
			r.tracker.Track(pipelineID, rule.ID)
		}
	}
	return res
}

// SummaryResponses resolves the current state of every summary job recorded
// for summarize rules. Unresolved jobs render as "Pending".
func (r *Router) SummaryResponses(ctx context.Context) (map[string]RuleSummaries, error) {
	rules, err := r.rulesFor(ctx, constant.ActionSummarize)
	if err != nil {
		return nil, err
	}

	slots := make([]RuleSummaries, len(rules))
	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)
	for i, rule := range rules {
		g.Go(func() error {
			slots[i] = r.resolveSummaries(ctx, rule.ID)
			return nil
		})
	}
	_ = g.Wait()

	output := make(map[string]RuleSummaries, len(rules))
	for i, rule := range rules {
		output[rule.ID] = slots[i]
	}
	return output, nil
}

func (r *Router) resolveSummaries(ctx context.Context, ruleID string) RuleSummaries {
	out := RuleSummaries{Summaries: map[string]string{}}

	ids, err := r.rules.SummaryIDs(ctx, ruleID)
	if err != nil {
		out.Error = apperror.Detail(err)
		return out
	}

	for _, id := range ids {
		result, _ := r.pipeline.GetResult(ctx, id)
		out.Summaries[id] = result.Display()
	}
	return out
}

// SearchResponses lists the search records of every search rule, with a
// pending placeholder for rules that have none yet.
func (r *Router) SearchResponses(ctx context.Context) (map[string]RuleSearches, error) {
	rules, err := r.rulesFor(ctx, constant.ActionAddToSearch)
	if err != nil {
		return nil, err
	}

	output := make(map[string]RuleSearches, len(rules))
	for _, rule := range rules {
		entry := RuleSearches{}
		results, err := r.rules.SearchResults(ctx, rule.ID)
		if err != nil {
			entry.Error = apperror.Detail(err)
		}
		if len(results) == 0 {
			results = []entities.SearchResult{{Status: constant.PendingPlaceholder}}
		}
		entry.Results = results
		output[rule.ID] = entry
	}
	return output, nil
}

func (r *Router) rulesFor(ctx context.Context, action constant.Action) ([]entities.Rule, error) {
	rules, err := r.rules.List(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to list rules")
		return nil, err
	}

	filtered := rules[:0]
	for _, rule := range rules {
		if rule.Action == action {
			filtered = append(filtered, rule)
		}
	}
	return filtered, nil
}

// clipForEvent turns an ended event into a clip request, keeping the last
// MaxClipSeconds of events that ran longer.
func clipForEvent(event entities.Event) dto.ClipRequest {
	end := *event.EndTime
	start := event.StartTime
	if end-start > constant.MaxClipSeconds {
		start = end - constant.MaxClipSeconds
	}
	return dto.ClipRequest{Camera: event.Camera, StartTime: start, EndTime: end}
}
