package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nvr-orchestrator/constant"
	"nvr-orchestrator/entities"
	"nvr-orchestrator/pkg/apperror"
)

type ResultFetcher interface {
	GetResult(ctx context.Context, pipelineID string) (entities.JobResult, error)
}

// StatusPoller refreshes one job's status on its own ticker until the job is
// terminal or the poll is stopped.
type StatusPoller struct {
	fetcher  ResultFetcher
	interval time.Duration
}

func NewStatusPoller(fetcher ResultFetcher, interval time.Duration) *StatusPoller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &StatusPoller{
		fetcher:  fetcher,
		interval: interval,
	}
}

// PollHandle owns a running poll. Stop is safe to call more than once and
// after the poll has finished on its own.
type PollHandle struct {
	pipelineID string
	cancel     context.CancelFunc
	done       chan struct{}

	mu   sync.Mutex
	last entities.JobResult
}

func (h *PollHandle) PipelineID() string {
	return h.pipelineID
}

func (h *PollHandle) Stop() {
	h.cancel()
	<-h.done
}

func (h *PollHandle) Done() <-chan struct{} {
	return h.done
}

func (h *PollHandle) Last() entities.JobResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

func (h *PollHandle) set(result entities.JobResult) {
	h.mu.Lock()
	h.last = result
	h.mu.Unlock()
}

// Start polls immediately and then every interval. onUpdate, when set, sees
// every fetched result on the polling goroutine. An unreachable backend is
// retried on the next tick rather than ending the poll.
func (p *StatusPoller) Start(ctx context.Context, pipelineID string, onUpdate func(entities.JobResult)) *PollHandle {
	ctx, cancel := context.WithCancel(ctx)
	h := &PollHandle{
		pipelineID: pipelineID,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		defer cancel()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			result, err := p.fetcher.GetResult(ctx, pipelineID)
			if ctx.Err() != nil {
				return
			}
			if apperror.KindOf(err) == apperror.KindUpstreamUnavailable {
				zerolog.Ctx(ctx).Warn().Err(err).Str("pipeline_id", pipelineID).Msg("job status unavailable, retrying")
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
				continue
			}
			h.set(result)
			if onUpdate != nil {
				onUpdate(result)
			}
			if result.Status.Terminal() {
				zerolog.Ctx(ctx).Info().Str("pipeline_id", pipelineID).Str("status", string(result.Status)).Msg("job reached terminal state")
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return h
}

// JobTracker keeps one poll per dispatched job, scoped to a base context
// instead of the request that created the job.
type JobTracker struct {
	base   context.Context
	poller *StatusPoller

	mu      sync.Mutex
	handles map[string]*PollHandle
	closed  bool
}

func NewJobTracker(base context.Context, poller *StatusPoller) *JobTracker {
	return &JobTracker{
		base:    base,
		poller:  poller,
		handles: make(map[string]*PollHandle),
	}
}

// Track starts polling pipelineID unless it is already tracked and logs the
// job's outcome against ruleID. It returns nil once the tracker has been
// stopped.
func (t *JobTracker) Track(pipelineID, ruleID string) *PollHandle {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	if h, ok := t.handles[pipelineID]; ok {
		return h
	}

	h := t.poller.Start(t.base, pipelineID, func(result entities.JobResult) {
		logger := zerolog.Ctx(t.base)
		switch result.Status {
		case constant.JobStatusReady:
			logger.Info().Str("rule_id", ruleID).Str("pipeline_id", pipelineID).Str("summary", result.Result).Msg("summary ready")
		case constant.JobStatusFailed:
			logger.Warn().Str("rule_id", ruleID).Str("pipeline_id", pipelineID).Str("reason", result.Reason).Msg("summary failed")
		}
	})
	t.handles[pipelineID] = h

	go func() {
		<-h.Done()
		t.mu.Lock()
		if t.handles[pipelineID] == h {
			delete(t.handles, pipelineID)
		}
		t.mu.Unlock()
	}()
	return h
}

func (t *JobTracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}

// StopAll cancels every running poll and waits for them to exit.
func (t *JobTracker) StopAll() {
	t.mu.Lock()
	t.closed = true
	handles := make([]*PollHandle, 0, len(t.handles))
	for _, h := range t.handles {
		handles = append(handles, h)
	}
	t.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}
}
