package app

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"live-quiz-service/internal/domain"
)

// Snapshot is what a participant connection renders: the latest session state,
// the active question (if any) and the latest published ranking.
type Snapshot struct {
	State    domain.SessionState
	Question *domain.Question
	Ranking  *domain.Ranking
}

// Feed fans bus notifications out to in-process subscribers. It tolerates duplicate
// and out-of-order delivery by only moving forward in revision (state) and
// generation time (ranking).
type Feed struct {
	bus      Bus
	states   StateStore
	catalog  QuestionCatalog
	rankings RankingSource
	logger   *zap.Logger

	mu          sync.RWMutex
	current     Snapshot
	subscribers map[chan Snapshot]struct{}
}

// RankingSource computes the current ranking from the durable store.
type RankingSource interface {
	Top(ctx context.Context) (domain.Ranking, error)
}

func NewFeed(bus Bus, states StateStore, catalog QuestionCatalog, rankings RankingSource, logger *zap.Logger) *Feed {
	return &Feed{
		bus:         bus,
		states:      states,
		catalog:     catalog,
		rankings:    rankings,
		logger:      logger.Named("feed"),
		current:     Snapshot{State: domain.InitialState()},
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// Run consumes the state and ranking topics until ctx is cancelled. Every
// (re)subscription is followed by an explicit refetch of what that topic carries.
func (f *Feed) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consume(gctx, f.bus, TopicState, f.logger, f.Refresh, f.handleState)
	})
	g.Go(func() error {
		return consume(gctx, f.bus, TopicRanking, f.logger, f.RefreshRanking, f.handleRanking)
	})
	return g.Wait()
}

// Refresh polls the state store and applies the result.
func (f *Feed) Refresh(ctx context.Context) {
	state, err := f.states.Load(ctx)
	if err != nil {
		f.logger.Warn("state refetch failed", zap.Error(err))
		return
	}
	f.ApplyState(ctx, state)
}

// RefreshRanking recomputes the ranking and applies it.
func (f *Feed) RefreshRanking(ctx context.Context) {
	ranking, err := f.rankings.Top(ctx)
	if err != nil {
		f.logger.Warn("ranking refetch failed", zap.Error(err))
		return
	}
	f.ApplyRanking(ranking)
}

// Current returns the latest snapshot.
func (f *Feed) Current() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// ApplyState publishes state to subscribers unless an equal or newer revision is
// already known.
func (f *Feed) ApplyState(ctx context.Context, state domain.SessionState) {
	var question *domain.Question
	if state.ActiveQuestionID != nil {
		q, err := f.catalog.Question(ctx, *state.ActiveQuestionID)
		if err != nil {
			f.logger.Warn("active question lookup failed", zap.Int64("question", *state.ActiveQuestionID), zap.Error(err))
		} else {
			question = &q
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if state.Revision <= f.current.State.Revision {
		return
	}
	f.current.State = state
	f.current.Question = question
	f.broadcastLocked()
}

// ApplyRanking publishes ranking unless a newer one is already known.
func (f *Feed) ApplyRanking(ranking domain.Ranking) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current.Ranking != nil && !ranking.GeneratedAt.After(f.current.Ranking.GeneratedAt) {
		return
	}
	f.current.Ranking = &ranking
	f.broadcastLocked()
}

// Subscribe returns a channel that receives the current snapshot immediately and
// every later change. The caller must invoke the returned cancel function.
func (f *Feed) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	ch <- f.current
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

func (f *Feed) handleState(ctx context.Context, payload []byte) {
	var state domain.SessionState
	if err := json.Unmarshal(payload, &state); err != nil {
		f.logger.Warn("malformed state notification", zap.Error(err))
		return
	}
	f.ApplyState(ctx, state)
}

func (f *Feed) handleRanking(_ context.Context, payload []byte) {
	var ranking domain.Ranking
	if err := json.Unmarshal(payload, &ranking); err != nil {
		f.logger.Warn("malformed ranking notification", zap.Error(err))
		return
	}
	f.ApplyRanking(ranking)
}

func (f *Feed) broadcastLocked() {
	snap := f.current
	for ch := range f.subscribers {
		select {
		case ch <- snap:
		default:
			// Slow subscriber: drop its oldest pending snapshot so the newest always lands.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
