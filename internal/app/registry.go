package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"live-quiz-service/internal/domain"
)

// Registry handles participant registration and answer submission.
type Registry struct {
	store ParticipantStore
	bus   Bus
	now   func() time.Time
	newID func() string
}

func NewRegistry(store ParticipantStore, bus Bus) *Registry {
	return &Registry{
		store: store,
		bus:   bus,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Join registers a participant with score 0. An empty id gets a fresh one; an id that
// is already registered is returned unchanged, so devices can rejoin without duplicating.
func (r *Registry) Join(ctx context.Context, id, displayName string) (domain.Participant, error) {
	name, err := domain.NormalizeDisplayName(displayName)
	if err != nil {
		return domain.Participant{}, err
	}
	if id == "" {
		id = r.newID()
	}
	return r.store.CreateParticipant(ctx, domain.Participant{
		ID:          id,
		DisplayName: name,
		JoinedAt:    r.now(),
	})
}

// Participant returns the stored participant.
func (r *Registry) Participant(ctx context.Context, id string) (domain.Participant, error) {
	return r.store.GetParticipant(ctx, id)
}

// Submit publishes an answer event for p. Identity fields come from the stored
// participant, not from the submission.
func (r *Registry) Submit(ctx context.Context, p domain.Participant, sub domain.AnswerSubmission) (domain.AnswerEvent, error) {
	if sub.Option < 1 || sub.Option > domain.NumOptions {
		return domain.AnswerEvent{}, domain.ErrInvalidOption
	}
	ev := domain.AnswerEvent{
		ParticipantID:  p.ID,
		DisplayName:    p.DisplayName,
		QuestionID:     sub.QuestionID,
		SelectedOption: sub.Option,
		ElapsedMs:      sub.ElapsedMs,
		Correct:        sub.Correct,
		Points:         sub.Points,
		SubmittedAt:    r.now(),
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return domain.AnswerEvent{}, fmt.Errorf("encode answer: %w", err)
	}
	if err := r.bus.Publish(ctx, TopicAnswers, payload); err != nil {
		return domain.AnswerEvent{}, fmt.Errorf("publish answer: %w", err)
	}
	return ev, nil
}
