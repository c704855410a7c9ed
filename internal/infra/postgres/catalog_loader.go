package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"live-quiz-service/internal/domain"
)

type questionModel struct {
	bun.BaseModel `bun:"table:questions"`

	ID           int64    `bun:"id,pk"`
	Prompt       string   `bun:"prompt,notnull"`
	Options      []string `bun:"options,array"`
	CorrectIndex int      `bun:"correct_index,notnull"`
	Ordinal      int      `bun:"ordinal,notnull"`
}

// CatalogLoader loads the question bank from Postgres.
type CatalogLoader struct {
	db *bun.DB
}

func NewCatalogLoader(db *bun.DB) *CatalogLoader {
	return &CatalogLoader{db: db}
}

func (l *CatalogLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	var rows []questionModel
	if err := l.db.NewSelect().Model(&rows).Order("ordinal ASC", "id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	questions := make([]domain.Question, 0, len(rows))
	for _, row := range rows {
		q, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// SaveQuestions upserts questions into the bank.
func (l *CatalogLoader) SaveQuestions(ctx context.Context, questions []domain.Question) error {
	if len(questions) == 0 {
		return nil
	}
	rows := make([]questionModel, 0, len(questions))
	for _, q := range questions {
		rows = append(rows, questionModel{
			ID:           q.ID,
			Prompt:       q.Prompt,
			Options:      q.Options[:],
			CorrectIndex: q.CorrectIndex,
			Ordinal:      q.Ordinal,
		})
	}
	_, err := l.db.NewInsert().
		Model(&rows).
		On("CONFLICT (id) DO UPDATE").
		Set("prompt = EXCLUDED.prompt").
		Set("options = EXCLUDED.options").
		Set("correct_index = EXCLUDED.correct_index").
		Set("ordinal = EXCLUDED.ordinal").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save questions: %w", err)
	}
	return nil
}

func (m questionModel) toDomain() (domain.Question, error) {
	if len(m.Options) != domain.NumOptions {
		return domain.Question{}, fmt.Errorf("question %d: expected %d options, got %d", m.ID, domain.NumOptions, len(m.Options))
	}
	if m.CorrectIndex < 1 || m.CorrectIndex > domain.NumOptions {
		return domain.Question{}, fmt.Errorf("question %d: correct index %d out of range", m.ID, m.CorrectIndex)
	}
	q := domain.Question{
		ID:           m.ID,
		Prompt:       m.Prompt,
		CorrectIndex: m.CorrectIndex,
		Ordinal:      m.Ordinal,
	}
	copy(q.Options[:], m.Options)
	return q, nil
}
