package app

import (
	"context"

	"live-quiz-service/internal/domain"
)

// Bus topics.
const (
	TopicState   = "quiz:state"
	TopicAnswers = "quiz:answers"
	TopicRanking = "quiz:ranking"
)

// StateStore persists the singleton SessionState.
type StateStore interface {
	// Load returns the latest state, or domain.InitialState() if none was saved.
	Load(ctx context.Context) (domain.SessionState, error)
	// Save writes state (last write wins) and returns it with the revision the store assigned.
	Save(ctx context.Context, state domain.SessionState) (domain.SessionState, error)
}

// ParticipantStore is the durable participant table.
type ParticipantStore interface {
	// CreateParticipant inserts p with score 0, or returns the existing row for p.ID.
	CreateParticipant(ctx context.Context, p domain.Participant) (domain.Participant, error)
	GetParticipant(ctx context.Context, id string) (domain.Participant, error)
	CountParticipants(ctx context.Context) (int, error)
	// TopParticipants returns participants with at least one recorded response,
	// ordered by score desc, join time asc, id asc. Participants who joined but
	// never had an answer committed are left out, so the ranking is empty right
	// after a reset.
	TopParticipants(ctx context.Context, limit int) ([]domain.Participant, error)
}

// ResponseStore is the durable response table plus the destructive resets.
type ResponseStore interface {
	// CommitAnswers upserts responses keyed by (participant, question) and, atomically,
	// raises each participant's score by whatever the new points exceed the points
	// already credited for that question. Scores never decrease and non-positive
	// points never touch them. It is safe to retry with the same batch.
	CommitAnswers(ctx context.Context, responses []domain.Response) (domain.CommitResult, error)
	CountResponses(ctx context.Context, questionID int64) (int, error)
	// ResetScores deletes all responses and zeroes all scores.
	ResetScores(ctx context.Context) error
	// PurgeParticipants deletes all responses and all participants.
	PurgeParticipants(ctx context.Context) error
}

// Store is the durable relational store used by the coordinator.
type Store interface {
	ParticipantStore
	ResponseStore
}

// QuestionCatalog serves the immutable question bank.
type QuestionCatalog interface {
	// Questions returns all questions ordered by ordinal.
	Questions(ctx context.Context) ([]domain.Question, error)
	Question(ctx context.Context, id int64) (domain.Question, error)
}

// Bus is the publish/subscribe transport. Delivery is at-least-once per connected
// subscriber with no ordering across topics.
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

// Subscription delivers raw messages for one topic. Messages is closed when the
// subscription ends, either by Close or by a transport failure.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

// FindQuestion looks up id in an ordinal-ordered question list.
func FindQuestion(questions []domain.Question, id int64) (domain.Question, error) {
	for _, q := range questions {
		if q.ID == id {
			return q, nil
		}
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}
