package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"live-quiz-service/internal/domain"
)

// Store implements app.Store on the participants and responses tables.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping checks connectivity for health reporting.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) CreateParticipant(ctx context.Context, p domain.Participant) (domain.Participant, error) {
	var out domain.Participant
	// The no-op update makes RETURNING yield the existing row on conflict.
	err := s.pool.QueryRow(ctx, `
		INSERT INTO participants (id, display_name, score, joined_at)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING id, display_name, score, joined_at`,
		p.ID, p.DisplayName, p.JoinedAt,
	).Scan(&out.ID, &out.DisplayName, &out.Score, &out.JoinedAt)
	if err != nil {
		return domain.Participant{}, fmt.Errorf("create participant: %w", err)
	}
	return out, nil
}

func (s *Store) GetParticipant(ctx context.Context, id string) (domain.Participant, error) {
	var p domain.Participant
	err := s.pool.QueryRow(ctx,
		`SELECT id, display_name, score, joined_at FROM participants WHERE id = $1`, id,
	).Scan(&p.ID, &p.DisplayName, &p.Score, &p.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

func (s *Store) CountParticipants(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM participants`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count participants: %w", err)
	}
	return n, nil
}

func (s *Store) TopParticipants(ctx context.Context, limit int) ([]domain.Participant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.display_name, p.score, p.joined_at
		FROM participants p
		WHERE EXISTS (SELECT 1 FROM responses r WHERE r.participant_id = p.id)
		ORDER BY p.score DESC, p.joined_at ASC, p.id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("top participants: %w", err)
	}
	defer rows.Close()

	var out []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.Score, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CommitAnswers writes the whole batch in one transaction. Each participant row is
// locked, and only the amount by which the new points exceed the points already
// credited for the same question is added, so the score never decreases and
// replaying a batch is a no-op.
// Answers from unknown participants are skipped.
func (s *Store) CommitAnswers(ctx context.Context, responses []domain.Response) (domain.CommitResult, error) {
	var result domain.CommitResult
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		result = domain.CommitResult{}
		for _, r := range responses {
			applied, delta, err := commitOne(ctx, tx, r)
			if err != nil {
				return err
			}
			if !applied {
				continue
			}
			result.Responses++
			if delta != 0 {
				result.ScoreUpdates++
				result.PointsAwarded += delta
			}
		}
		return nil
	})
	if err != nil {
		return domain.CommitResult{}, fmt.Errorf("commit answers: %w", err)
	}
	return result, nil
}

func commitOne(ctx context.Context, tx pgx.Tx, r domain.Response) (bool, int, error) {
	var score int
	err := tx.QueryRow(ctx, `SELECT score FROM participants WHERE id = $1 FOR UPDATE`, r.ParticipantID).Scan(&score)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}

	var previous int
	err = tx.QueryRow(ctx,
		`SELECT points FROM responses WHERE participant_id = $1 AND question_id = $2`,
		r.ParticipantID, r.QuestionID,
	).Scan(&previous)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return false, 0, err
	}

	// points keeps the best value credited for the question so a replayed
	// question can raise the score but never lower it.
	_, err = tx.Exec(ctx, `
		INSERT INTO responses (participant_id, question_id, display_name, selected_option, elapsed_ms, correct, points, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, GREATEST($7, 0), $8)
		ON CONFLICT (participant_id, question_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			selected_option = EXCLUDED.selected_option,
			elapsed_ms = EXCLUDED.elapsed_ms,
			correct = EXCLUDED.correct,
			points = GREATEST(responses.points, EXCLUDED.points)`,
		r.ParticipantID, r.QuestionID, r.DisplayName, r.SelectedOption, r.ElapsedMs, r.Correct, r.Points, r.CreatedAt,
	)
	if err != nil {
		return false, 0, err
	}

	delta := creditedDelta(r.Points, previous)
	if delta == 0 {
		return true, 0, nil
	}
	if _, err := tx.Exec(ctx, `UPDATE participants SET score = score + $2 WHERE id = $1`, r.ParticipantID, delta); err != nil {
		return false, 0, err
	}
	return true, delta, nil
}

// creditedDelta is the score increment for an answer worth points when previous
// points were already credited for the same question. It is never negative.
func creditedDelta(points, previous int) int {
	if points <= previous || points <= 0 {
		return 0
	}
	if previous < 0 {
		previous = 0
	}
	return points - previous
}

func (s *Store) CountResponses(ctx context.Context, questionID int64) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM responses WHERE question_id = $1`, questionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count responses: %w", err)
	}
	return n, nil
}

func (s *Store) ResetScores(ctx context.Context) error {
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM responses`); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE participants SET score = 0`)
		return err
	})
	if err != nil {
		return fmt.Errorf("reset scores: %w", err)
	}
	return nil
}

func (s *Store) PurgeParticipants(ctx context.Context) error {
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM responses`); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM participants`)
		return err
	})
	if err != nil {
		return fmt.Errorf("purge participants: %w", err)
	}
	return nil
}
