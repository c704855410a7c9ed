package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

func TestHostEndpointsMapErrors(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name       string
		path       string
		body       any
		wantStatus int
	}{
		{"reveal from waiting", "/api/host/reveal", nil, http.StatusConflict},
		{"unknown question", "/api/host/start", StartRequest{QuestionID: 99}, http.StatusNotFound},
		{"reset without confirmation", "/api/host/reset", nil, http.StatusBadRequest},
		{"purge without confirmation", "/api/host/purge", ConfirmRequest{Confirm: false}, http.StatusBadRequest},
		{"blank display name", "/api/participants", JoinRequest{DisplayName: "   "}, http.StatusBadRequest},
		{"long display name", "/api/participants", JoinRequest{DisplayName: "abcdefghijklmnopqrstu"}, http.StatusBadRequest},
		{"next question", "/api/host/next", nil, http.StatusOK},
		{"start while voting", "/api/host/start", StartRequest{QuestionID: 2}, http.StatusConflict},
		{"reset confirmed", "/api/host/reset", ConfirmRequest{Confirm: true}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := srv.post(t, tt.path, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestJoinGeneratesIDAndRejoins(t *testing.T) {
	srv := newTestServer(t, nil)

	first := srv.join(t, "", "  Alice ")
	if first.ID == "" || first.DisplayName != "Alice" || first.Score != 0 {
		t.Fatalf("unexpected participant %+v", first)
	}
	again := srv.join(t, first.ID, "Alice")
	if again.ID != first.ID || !again.JoinedAt.Equal(first.JoinedAt) {
		t.Fatalf("expected rejoin to return the same participant, got %+v", again)
	}

	resp, err := http.Get(srv.URL + "/api/participants/" + first.ID)
	if err != nil {
		t.Fatalf("get participant: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestRevealFlushFailureReturnsUnavailable(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.join(t, "u1", "Alice")
	_ = srv.post(t, "/api/host/start", StartRequest{QuestionID: 1})
	waitFor(t, func() bool { return srv.feed.Current().State.Phase == domain.PhaseVoting })

	srv.store.FailCommits(errors.New("connection refused"))
	srv.buffer.Add(domain.AnswerEvent{ParticipantID: "u1", QuestionID: 1, SelectedOption: 2, Correct: true, Points: 1500})

	if resp := srv.post(t, "/api/host/reveal", nil); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	if srv.host.State().Phase != domain.PhaseVoting {
		t.Fatalf("expected voting to continue, got %s", srv.host.State().Phase)
	}

	resp := srv.post(t, "/api/host/reveal", RevealRequest{Force: true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected forced reveal to succeed, got %d", resp.StatusCode)
	}
	var state domain.SessionState
	_ = json.NewDecoder(resp.Body).Decode(&state)
	if state.Phase != domain.PhaseResult {
		t.Fatalf("expected result, got %s", state.Phase)
	}
}

func TestProgressAndRanking(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.join(t, "u1", "Alice")
	srv.join(t, "u2", "Bob")
	_ = srv.post(t, "/api/host/start", StartRequest{QuestionID: 1})
	srv.buffer.Add(domain.AnswerEvent{ParticipantID: "u1", DisplayName: "Alice", QuestionID: 1, SelectedOption: 2, Correct: true, Points: 1500})

	resp, err := http.Get(srv.URL + "/api/host/progress")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	defer resp.Body.Close()
	var progress app.Progress
	if err := json.NewDecoder(resp.Body).Decode(&progress); err != nil {
		t.Fatalf("decode progress: %v", err)
	}
	if progress.Answered != 1 || progress.Participants != 2 || progress.Distribution[1] != 1 {
		t.Fatalf("unexpected progress %+v", progress)
	}

	_ = srv.post(t, "/api/host/reveal", nil)
	resp, err = http.Get(srv.URL + "/api/ranking")
	if err != nil {
		t.Fatalf("ranking: %v", err)
	}
	defer resp.Body.Close()
	var ranking domain.Ranking
	if err := json.NewDecoder(resp.Body).Decode(&ranking); err != nil {
		t.Fatalf("decode ranking: %v", err)
	}
	if len(ranking.Entries) != 1 || ranking.Entries[0].ParticipantID != "u1" || ranking.Entries[0].Score != 1500 {
		t.Fatalf("unexpected ranking %+v", ranking.Entries)
	}
}

func TestQuestionsHideAnswerKeyWhenServerScored(t *testing.T) {
	view := View{RevealAnswers: false}
	q := sampleQuestions()[0]
	if view.question(q, domain.PhaseVoting).CorrectIndex != nil {
		t.Fatalf("expected answer key hidden during voting")
	}
	if got := view.question(q, domain.PhaseResult).CorrectIndex; got == nil || *got != 2 {
		t.Fatalf("expected answer key in result phase, got %v", got)
	}
}

type stubChecker struct{ err error }

func (s stubChecker) Check(context.Context) error { return s.err }

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, map[string]Checker{
		"postgres": stubChecker{},
		"redis":    stubChecker{err: errors.New("refused")},
	})

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	var body map[string]struct{ Status string }
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["postgres"].Status != "ok" || body["redis"].Status != "error" {
		t.Fatalf("unexpected health body %+v", body)
	}

	metricsResp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer metricsResp.Body.Close()
	if metricsResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", metricsResp.StatusCode)
	}
}
