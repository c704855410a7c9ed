package app

import (
	"context"
	"time"

	"live-quiz-service/internal/domain"
)

// DefaultRankingLimit is the size of the top-N view.
const DefaultRankingLimit = 10

// Ranker builds ranking views from durable participant scores.
type Ranker struct {
	store ParticipantStore
	limit int
	now   func() time.Time
}

func NewRanker(store ParticipantStore, limit int) *Ranker {
	if limit <= 0 {
		limit = DefaultRankingLimit
	}
	return &Ranker{store: store, limit: limit, now: time.Now}
}

// Top returns the configured top-N ranking.
func (r *Ranker) Top(ctx context.Context) (domain.Ranking, error) {
	return r.TopN(ctx, r.limit)
}

// TopN ranks the n best participants. Equal scores keep the store's order
// (earlier join first, then participant id), so ranks are adjacent and stable.
func (r *Ranker) TopN(ctx context.Context, n int) (domain.Ranking, error) {
	if n <= 0 {
		n = r.limit
	}
	participants, err := r.store.TopParticipants(ctx, n)
	if err != nil {
		return domain.Ranking{}, err
	}
	entries := make([]domain.RankingEntry, 0, len(participants))
	for i, p := range participants {
		entries = append(entries, domain.RankingEntry{
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName,
			Score:         p.Score,
			Rank:          i + 1,
		})
	}
	return domain.Ranking{Entries: entries, GeneratedAt: r.now()}, nil
}
