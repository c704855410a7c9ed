package memory

import (
	"context"
	"testing"

	"live-quiz-service/internal/domain"
)

func TestStateStoreRevisions(t *testing.T) {
	ctx := context.Background()
	store := NewStateStore()

	initial, _ := store.Load(ctx)
	if initial.Phase != domain.PhaseWaiting || initial.Revision != 0 {
		t.Fatalf("expected initial waiting state, got %+v", initial)
	}

	qid := int64(1)
	first, _ := store.Save(ctx, domain.SessionState{Phase: domain.PhaseVoting, ActiveQuestionID: &qid})
	second, _ := store.Save(ctx, domain.SessionState{Phase: domain.PhaseWaiting})
	if first.Revision != 1 || second.Revision != 2 {
		t.Fatalf("expected revisions 1,2 got %d,%d", first.Revision, second.Revision)
	}

	loaded, _ := store.Load(ctx)
	if loaded.Phase != domain.PhaseWaiting || loaded.Revision != 2 {
		t.Fatalf("expected last write to win, got %+v", loaded)
	}
}
