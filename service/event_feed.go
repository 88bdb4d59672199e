package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"nvr-orchestrator/entities"
)

type EventLister interface {
	Cameras(ctx context.Context) ([]string, error)
	Events(ctx context.Context, camera string) ([]entities.Event, error)
}

// EventFeed polls the footage source's event list on a schedule and
// dispatches each ended event once. The first poll only records what is
// already there.
type EventFeed struct {
	source   EventLister
	router   Dispatcher
	cameras  []string
	interval time.Duration
	seenTTL  time.Duration

	mu        sync.Mutex
	seen      map[string]time.Time
	baselined bool
}

func NewEventFeed(source EventLister, router Dispatcher, cameras []string, interval time.Duration) *EventFeed {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &EventFeed{
		source:   source,
		router:   router,
		cameras:  cameras,
		interval: interval,
		seenTTL:  24 * time.Hour,
		seen:     make(map[string]time.Time),
	}
}

type FeedHandle struct {
	cron    *cron.Cron
	cancel  context.CancelFunc
	initial sync.WaitGroup
}

// Stop cancels in-flight dispatches and waits for a running poll to return.
func (h *FeedHandle) Stop() {
	h.cancel()
	<-h.cron.Stop().Done()
	h.initial.Wait()
}

func (f *EventFeed) Start(ctx context.Context) (*FeedHandle, error) {
	ctx, cancel := context.WithCancel(ctx)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(fmt.Sprintf("@every %s", f.interval), func() {
		f.Poll(ctx)
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("schedule event feed: %w", err)
	}

	zerolog.Ctx(ctx).Info().Dur("interval", f.interval).Strs("cameras", f.cameras).Msg("event feed started")
	h := &FeedHandle{cron: c, cancel: cancel}
	h.initial.Add(1)
	go func() {
		defer h.initial.Done()
		f.Poll(ctx)
	}()
	c.Start()

	return h, nil
}

// Poll fetches events for every camera and returns how many were dispatched.
func (f *EventFeed) Poll(ctx context.Context) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	cameras := f.cameras
	if len(cameras) == 0 {
		var err error
		cameras, err = f.source.Cameras(ctx)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("failed to list cameras")
			return 0
		}
	}

	now := time.Now()
	dispatched := 0
	for _, camera := range cameras {
		if ctx.Err() != nil {
			return dispatched
		}

		events, err := f.source.Events(ctx, camera)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("camera", camera).Msg("failed to fetch events")
			continue
		}

		for _, event := range events {
			if !event.Ended() {
				continue
			}
			// Entries are refreshed while the source still lists the event,
			// so the purge below only forgets events that dropped out of it.
			if _, ok := f.seen[event.ID]; ok {
				f.seen[event.ID] = now
				continue
			}
			if !f.baselined {
				f.seen[event.ID] = now
				continue
			}

			// An event is only marked seen once dispatched; a failed
			// dispatch is retried on the next poll.
			if _, err := f.router.Dispatch(ctx, event); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Str("event_id", event.ID).Msg("failed to dispatch event")
				continue
			}
			f.seen[event.ID] = now
			dispatched++
		}
	}

	f.baselined = true
	for id, at := range f.seen {
		if now.Sub(at) > f.seenTTL {
			delete(f.seen, id)
		}
	}
	return dispatched
}
