package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	transport "live-quiz-service/internal/transport/http"
)

type stack struct {
	url    string
	host   *app.HostController
	buffer *app.AnswerBuffer
	store  *memory.Store
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := zaptest.NewLogger(t)
	ctx, cancel := context.WithCancel(context.Background())

	bus := memory.NewBus()
	states := memory.NewStateStore()
	store := memory.NewStore()
	buffer := app.NewAnswerBuffer()
	catalog := memory.NewCatalogRepository(memory.NewStaticQuestionLoader([]domain.Question{
		{ID: 1, Prompt: "What is 2 + 2?", Options: [4]string{"3", "4", "5", "22"}, CorrectIndex: 2, Ordinal: 1},
		{ID: 2, Prompt: "Largest planet?", Options: [4]string{"Mars", "Venus", "Jupiter", "Earth"}, CorrectIndex: 3, Ordinal: 2},
	}), time.Minute)
	host := app.NewHostController(states, store, bus, catalog, buffer, app.NewRanker(store, 10), app.HostOptions{}, logger)
	if err := host.Init(ctx); err != nil {
		t.Fatalf("init host: %v", err)
	}
	registry := app.NewRegistry(store, bus)
	feed := app.NewFeed(bus, states, catalog, app.NewRanker(store, 10), logger)
	go func() { _ = feed.Run(ctx) }()
	go func() { _ = app.NewIngestor(bus, buffer, catalog, host, app.ScoringClient, logger).Run(ctx) }()
	eventually(t, func() bool { return bus.Subscribers(app.TopicState) == 1 && bus.Subscribers(app.TopicAnswers) == 1 })

	view := transport.View{RevealAnswers: true, VotingWindow: 10 * time.Second}
	srv := httptest.NewServer(transport.NewRouter(transport.RouterDeps{
		API:    transport.NewAPI(host, registry, feed, catalog, view, logger),
		WS:     transport.NewWSHandler(registry, feed, view, logger),
		Health: transport.NewHealthHandler(logger, nil),
		Logger: logger,
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		host.Close()
		_ = bus.Close()
	})
	return &stack{url: srv.URL, host: host, buffer: buffer, store: store}
}

func TestRegisterReusesStoredIdentity(t *testing.T) {
	s := newStack(t)
	path := filepath.Join(t.TempDir(), "identity.json")

	c := New(s.url, NewFileIdentityStore(path), zaptest.NewLogger(t))
	first, err := c.Register(context.Background(), " Alice ")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if first.ID == "" || first.DisplayName != "Alice" {
		t.Fatalf("unexpected participant %+v", first)
	}

	// A new process on the same device.
	again, err := New(s.url, NewFileIdentityStore(path), zaptest.NewLogger(t)).Register(context.Background(), "Alice")
	if err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("expected same participant id, got %s and %s", first.ID, again.ID)
	}
	n, _ := s.store.CountParticipants(context.Background())
	if n != 1 {
		t.Fatalf("expected one participant, got %d", n)
	}
}

func TestRegisterValidatesLocally(t *testing.T) {
	// No server: validation must fail before any request.
	c := New("http://127.0.0.1:1", NewFileIdentityStore(filepath.Join(t.TempDir(), "id.json")), zaptest.NewLogger(t))
	for _, name := range []string{"", "   ", "abcdefghijklmnopqrstuvwxyz"} {
		if _, err := c.Register(context.Background(), name); !errors.Is(err, domain.ErrInvalidDisplayName) {
			t.Fatalf("name %q: expected ErrInvalidDisplayName, got %v", name, err)
		}
	}
}

func TestAnswerOncePerQuestion(t *testing.T) {
	s := newStack(t)
	c := New(s.url, NewFileIdentityStore(filepath.Join(t.TempDir(), "id.json")), zaptest.NewLogger(t))
	if _, err := c.Register(context.Background(), "Alice"); err != nil {
		t.Fatalf("register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := make(chan Update, 32)
	go func() { _ = c.Run(ctx, func(u Update) { updates <- u }) }()
	eventually(t, func() bool { return c.State().Revision >= 0 && c.connected() })

	if _, err := c.Answer(2); !errors.Is(err, ErrNotVoting) {
		t.Fatalf("expected ErrNotVoting before start, got %v", err)
	}

	if _, err := s.host.Start(context.Background(), 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	eventually(t, func() bool { return c.State().Phase == domain.PhaseVoting })
	if r := c.Remaining(); r <= 0 || r > 10*time.Second {
		t.Fatalf("unexpected remaining %s", r)
	}

	sub, err := c.Answer(2)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !sub.Correct || sub.Points < 1000 || sub.Points > 2000 {
		t.Fatalf("unexpected submission %+v", sub)
	}
	if _, err := c.Answer(3); !errors.Is(err, ErrAlreadyAnswered) {
		t.Fatalf("expected ErrAlreadyAnswered, got %v", err)
	}
	eventually(t, func() bool { return s.buffer.Len() == 1 })

	if _, err := s.host.RevealResult(context.Background()); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	eventually(t, func() bool { return c.State().Phase == domain.PhaseResult })
	if c.Remaining() != 0 {
		t.Fatalf("expected no remaining time outside voting")
	}
}

func TestApplyStateIgnoresOlderRevisions(t *testing.T) {
	c := New("http://unused", NewFileIdentityStore(filepath.Join(t.TempDir(), "id.json")), zaptest.NewLogger(t))
	if !c.ApplyState(transport.StatePayload{Phase: domain.PhaseResult, Revision: 5}) {
		t.Fatalf("expected first state adopted")
	}
	if c.ApplyState(transport.StatePayload{Phase: domain.PhaseVoting, Revision: 4}) {
		t.Fatalf("expected older revision ignored")
	}
	if c.State().Phase != domain.PhaseResult {
		t.Fatalf("expected result to stick, got %s", c.State().Phase)
	}
}

func TestRemainingUsesServerClock(t *testing.T) {
	local := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := New("http://unused", NewFileIdentityStore(filepath.Join(t.TempDir(), "id.json")), zaptest.NewLogger(t))
	c.now = func() time.Time { return local }

	// Server clock runs 2s ahead; voting started 3s ago by the server's clock.
	server := local.Add(2 * time.Second)
	started := server.Add(-3 * time.Second)
	c.ApplyState(transport.StatePayload{
		Phase:           domain.PhaseVoting,
		Revision:        1,
		VotingStartedAt: &started,
		VotingWindowMs:  10000,
		ServerTime:      server,
	})
	if got := c.Remaining(); got != 7*time.Second {
		t.Fatalf("expected 7s remaining, got %s", got)
	}

	c.now = func() time.Time { return local.Add(30 * time.Second) }
	if got := c.Remaining(); got != 0 {
		t.Fatalf("expected clamp to 0, got %s", got)
	}

	// A snapshot delivered late must not produce more than the full window.
	future := server.Add(time.Minute)
	c.ApplyState(transport.StatePayload{Phase: domain.PhaseVoting, Revision: 2, VotingStartedAt: &future, VotingWindowMs: 10000, ServerTime: server})
	if got := c.Remaining(); got != 10*time.Second {
		t.Fatalf("expected clamp to window, got %s", got)
	}
}

func (c *Client) connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && c.haveState
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}
