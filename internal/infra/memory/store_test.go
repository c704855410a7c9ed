package memory

import (
	"context"
	"testing"
	"time"

	"live-quiz-service/internal/domain"
)

func TestCommitAnswersIsRetrySafe(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	_, _ = store.CreateParticipant(ctx, domain.Participant{ID: "u1", DisplayName: "Alice"})

	batch := []domain.Response{{ParticipantID: "u1", QuestionID: 1, SelectedOption: 2, Correct: true, Points: 1500}}
	if _, err := store.CommitAnswers(ctx, batch); err != nil {
		t.Fatalf("commit: %v", err)
	}
	res, err := store.CommitAnswers(ctx, batch)
	if err != nil {
		t.Fatalf("recommit: %v", err)
	}
	if res.ScoreUpdates != 0 {
		t.Fatalf("expected no score update on retry, got %+v", res)
	}

	p, _ := store.GetParticipant(ctx, "u1")
	if p.Score != 1500 {
		t.Fatalf("expected score 1500, got %d", p.Score)
	}
	if store.ResponseCount() != 1 {
		t.Fatalf("expected 1 response row, got %d", store.ResponseCount())
	}
}

func TestTopParticipantsOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c", "d", "idle"} {
		_, _ = store.CreateParticipant(ctx, domain.Participant{ID: id, DisplayName: id, JoinedAt: base.Add(time.Duration(i) * time.Second)})
	}
	_, _ = store.CommitAnswers(ctx, []domain.Response{
		{ParticipantID: "a", QuestionID: 1, SelectedOption: 1, Points: 500, Correct: true},
		{ParticipantID: "b", QuestionID: 1, SelectedOption: 1, Points: 1500, Correct: true},
		{ParticipantID: "c", QuestionID: 1, SelectedOption: 1, Points: 1500, Correct: true},
		{ParticipantID: "d", QuestionID: 1, SelectedOption: 2, Points: 0},
	})

	top, _ := store.TopParticipants(ctx, 10)
	got := make([]string, 0, len(top))
	for _, p := range top {
		got = append(got, p.ID)
	}
	want := []string{"b", "c", "a", "d"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	limited, _ := store.TopParticipants(ctx, 2)
	if len(limited) != 2 {
		t.Fatalf("expected limit 2, got %d", len(limited))
	}
}

func TestCommitAnswersSkipsUnknownParticipants(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	_, _ = store.CreateParticipant(ctx, domain.Participant{ID: "u1", DisplayName: "Alice"})

	res, err := store.CommitAnswers(ctx, []domain.Response{
		{ParticipantID: "u1", QuestionID: 1, SelectedOption: 1, Correct: true, Points: 1200},
		{ParticipantID: "ghost", QuestionID: 1, SelectedOption: 1, Correct: true, Points: 2000},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if res.Responses != 1 || res.PointsAwarded != 1200 {
		t.Fatalf("expected only u1 committed, got %+v", res)
	}
	if _, ok := store.Response(domain.AnswerKey{ParticipantID: "ghost", QuestionID: 1}); ok {
		t.Fatalf("expected no response stored for unknown participant")
	}
}
