package memory

import (
	"context"
	"sort"
	"sync"

	"live-quiz-service/internal/domain"
)

// Store is an in-memory implementation of app.Store. FailCommits lets tests
// simulate a durable-store outage during batch flush.
type Store struct {
	mu           sync.RWMutex
	participants map[string]domain.Participant
	responses    map[domain.AnswerKey]domain.Response
	commitErr    error
}

func NewStore() *Store {
	return &Store{
		participants: make(map[string]domain.Participant),
		responses:    make(map[domain.AnswerKey]domain.Response),
	}
}

// FailCommits makes CommitAnswers return err until called again with nil.
func (s *Store) FailCommits(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErr = err
}

func (s *Store) CreateParticipant(_ context.Context, p domain.Participant) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.participants[p.ID]; ok {
		return existing, nil
	}
	p.Score = 0
	s.participants[p.ID] = p
	return p, nil
}

func (s *Store) GetParticipant(_ context.Context, id string) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return p, nil
}

func (s *Store) CountParticipants(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.participants), nil
}

func (s *Store) TopParticipants(_ context.Context, limit int) ([]domain.Participant, error) {
	s.mu.RLock()
	answered := make(map[string]struct{}, len(s.participants))
	for key := range s.responses {
		answered[key.ParticipantID] = struct{}{}
	}
	all := make([]domain.Participant, 0, len(answered))
	for id, p := range s.participants {
		if _, ok := answered[id]; ok {
			all = append(all, p)
		}
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		if !all[i].JoinedAt.Equal(all[j].JoinedAt) {
			return all[i].JoinedAt.Before(all[j].JoinedAt)
		}
		return all[i].ID < all[j].ID
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// CommitAnswers applies the whole batch under one lock, mirroring the single
// transaction of the Postgres store. Answers from unknown participants are skipped.
func (s *Store) CommitAnswers(_ context.Context, responses []domain.Response) (domain.CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitErr != nil {
		return domain.CommitResult{}, s.commitErr
	}

	var result domain.CommitResult
	for _, r := range responses {
		p, ok := s.participants[r.ParticipantID]
		if !ok {
			continue
		}
		key := domain.AnswerKey{ParticipantID: r.ParticipantID, QuestionID: r.QuestionID}
		previous := 0
		if prev, ok := s.responses[key]; ok {
			previous = prev.Points
		}
		delta := 0
		if r.Points > previous {
			delta = r.Points - previous
		}
		stored := r
		stored.Points = max(previous, r.Points)
		s.responses[key] = stored
		result.Responses++

		if delta == 0 {
			continue
		}
		p.Score += delta
		s.participants[r.ParticipantID] = p
		result.ScoreUpdates++
		result.PointsAwarded += delta
	}
	return result, nil
}

func (s *Store) CountResponses(_ context.Context, questionID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for key := range s.responses {
		if key.QuestionID == questionID {
			n++
		}
	}
	return n, nil
}

// Response returns the stored response for key, if any.
func (s *Store) Response(key domain.AnswerKey) (domain.Response, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.responses[key]
	return r, ok
}

// ResponseCount is the total number of stored responses.
func (s *Store) ResponseCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.responses)
}

func (s *Store) ResetScores(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = make(map[domain.AnswerKey]domain.Response)
	for id, p := range s.participants {
		p.Score = 0
		s.participants[id] = p
	}
	return nil
}

func (s *Store) PurgeParticipants(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = make(map[domain.AnswerKey]domain.Response)
	s.participants = make(map[string]domain.Participant)
	return nil
}
