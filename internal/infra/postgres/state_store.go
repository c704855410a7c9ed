package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"live-quiz-service/internal/domain"
)

// StateStore keeps the singleton session_state row (id = 1).
type StateStore struct {
	pool *pgxpool.Pool
}

func NewStateStore(pool *pgxpool.Pool) *StateStore {
	return &StateStore{pool: pool}
}

func (s *StateStore) Load(ctx context.Context) (domain.SessionState, error) {
	var (
		state domain.SessionState
		phase string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT phase, active_question_id, voting_started_at, revision, updated_at
		FROM session_state WHERE id = 1`,
	).Scan(&phase, &state.ActiveQuestionID, &state.VotingStartedAt, &state.Revision, &state.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.InitialState(), nil
	}
	if err != nil {
		return domain.SessionState{}, fmt.Errorf("load session state: %w", err)
	}
	state.Phase = domain.Phase(phase)
	return state, nil
}

// Save overwrites the row and bumps its revision in the same statement.
func (s *StateStore) Save(ctx context.Context, state domain.SessionState) (domain.SessionState, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO session_state (id, phase, active_question_id, voting_started_at, revision, updated_at)
		VALUES (1, $1, $2, $3, 1, $4)
		ON CONFLICT (id) DO UPDATE SET
			phase = EXCLUDED.phase,
			active_question_id = EXCLUDED.active_question_id,
			voting_started_at = EXCLUDED.voting_started_at,
			revision = session_state.revision + 1,
			updated_at = EXCLUDED.updated_at
		RETURNING revision`,
		string(state.Phase), state.ActiveQuestionID, state.VotingStartedAt, state.UpdatedAt,
	).Scan(&state.Revision)
	if err != nil {
		return domain.SessionState{}, fmt.Errorf("save session state: %w", err)
	}
	return state, nil
}
