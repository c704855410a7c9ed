// Package client is the participant side of a live quiz: registration, the
// websocket state feed, countdown and answer submission.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/scoring"
	transport "live-quiz-service/internal/transport/http"
)

var (
	ErrNotVoting       = errors.New("no question is open for answers")
	ErrAlreadyAnswered = errors.New("already answered this question")
	ErrNotConnected    = errors.New("not connected")
	ErrNotRegistered   = errors.New("not registered")
)

// UpdateKind tells what an Update carries.
type UpdateKind string

const (
	UpdateState     UpdateKind = "state"
	UpdateSubmitted UpdateKind = "submitted"
	UpdateError     UpdateKind = "error"
)

// Update is delivered to the Run callback.
type Update struct {
	Kind      UpdateKind
	State     transport.StatePayload
	Submitted transport.SubmittedPayload
	Message   string
}

// Client is one participant device.
type Client struct {
	baseURL  string
	http     *http.Client
	dialer   *websocket.Dialer
	identity IdentityStore
	logger   *zap.Logger
	now      func() time.Time

	mu        sync.Mutex
	me        Identity
	state     transport.StatePayload
	haveState bool
	offset    time.Duration
	// round is the votingStartedAt of the last answered question.
	round time.Time
	conn  *websocket.Conn

	writeMu sync.Mutex
}

func New(baseURL string, identity IdentityStore, logger *zap.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 10 * time.Second},
		dialer:   websocket.DefaultDialer,
		identity: identity,
		logger:   logger.Named("client"),
		now:      time.Now,
	}
}

// Register validates name locally, then joins under the stored identity if one
// exists (so the same device keeps its score) or a fresh one otherwise.
func (c *Client) Register(ctx context.Context, name string) (domain.Participant, error) {
	name, err := domain.NormalizeDisplayName(name)
	if err != nil {
		return domain.Participant{}, err
	}
	stored, ok, err := c.identity.Load()
	if err != nil {
		return domain.Participant{}, fmt.Errorf("load identity: %w", err)
	}
	req := transport.JoinRequest{DisplayName: name}
	if ok {
		req.ID = stored.ParticipantID
	}

	var p domain.Participant
	if err := c.postJSON(ctx, "/api/participants", req, &p); err != nil {
		return domain.Participant{}, err
	}
	me := Identity{ParticipantID: p.ID, DisplayName: p.DisplayName}
	if err := c.identity.Save(me); err != nil {
		return domain.Participant{}, fmt.Errorf("save identity: %w", err)
	}
	c.mu.Lock()
	c.me = me
	c.mu.Unlock()
	return p, nil
}

// Run keeps a websocket session open until ctx ends, reconnecting with
// exponential backoff. Every connect starts with a full snapshot, so nothing
// missed while disconnected needs replaying.
func (c *Client) Run(ctx context.Context, onUpdate func(Update)) error {
	c.mu.Lock()
	id := c.me.ParticipantID
	c.mu.Unlock()
	if id == "" {
		return ErrNotRegistered
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = 0

	for {
		connected, err := c.session(ctx, id, onUpdate)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, domain.ErrParticipantNotFound) {
			return err
		}
		if connected {
			policy.Reset()
		}
		wait := policy.NextBackOff()
		c.logger.Warn("connection lost, reconnecting", zap.Error(err), zap.Duration("retry_in", wait))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (c *Client) session(ctx context.Context, participantID string, onUpdate func(Update)) (bool, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.wsURL(participantID), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return false, domain.ErrParticipantNotFound
		}
		return false, err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
	}()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return true, err
		}
		switch msg.Type {
		case "state":
			var state transport.StatePayload
			if err := json.Unmarshal(msg.Payload, &state); err != nil {
				continue
			}
			if c.ApplyState(state) && onUpdate != nil {
				onUpdate(Update{Kind: UpdateState, State: state})
			}
		case "submitted":
			var ack transport.SubmittedPayload
			_ = json.Unmarshal(msg.Payload, &ack)
			if onUpdate != nil {
				onUpdate(Update{Kind: UpdateSubmitted, Submitted: ack})
			}
		case "error":
			var e struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal(msg.Payload, &e)
			if onUpdate != nil {
				onUpdate(Update{Kind: UpdateError, Message: e.Message})
			}
		}
	}
}

// ApplyState adopts state unless it is older than the one already held, and
// re-estimates the server clock offset. It reports whether state was adopted.
func (c *Client) ApplyState(state transport.StatePayload) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.haveState && state.Revision < c.state.Revision {
		return false
	}
	if !state.ServerTime.IsZero() {
		c.offset = state.ServerTime.Sub(c.now())
	}
	c.state = state
	c.haveState = true
	return true
}

// State returns the latest adopted snapshot.
func (c *Client) State() transport.StatePayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Remaining is the voting time left by the server's clock, clamped to
// [0, window]; 0 outside voting.
func (c *Client) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remainingLocked()
}

func (c *Client) remainingLocked() time.Duration {
	s := c.state
	if s.Phase != domain.PhaseVoting || s.VotingStartedAt == nil {
		return 0
	}
	window := time.Duration(s.VotingWindowMs) * time.Millisecond
	return scoring.Remaining(*s.VotingStartedAt, window, c.now().Add(c.offset))
}

// Answer submits option (1-4) for the open question. A device answers each
// voting round at most once.
func (c *Client) Answer(option int) (domain.AnswerSubmission, error) {
	if option < 1 || option > domain.NumOptions {
		return domain.AnswerSubmission{}, domain.ErrInvalidOption
	}

	c.mu.Lock()
	s := c.state
	conn := c.conn
	if s.Phase != domain.PhaseVoting || s.Question == nil || s.VotingStartedAt == nil {
		c.mu.Unlock()
		return domain.AnswerSubmission{}, ErrNotVoting
	}
	if c.round.Equal(*s.VotingStartedAt) {
		c.mu.Unlock()
		return domain.AnswerSubmission{}, ErrAlreadyAnswered
	}
	if conn == nil {
		c.mu.Unlock()
		return domain.AnswerSubmission{}, ErrNotConnected
	}
	elapsed := scoring.Elapsed(*s.VotingStartedAt, c.now().Add(c.offset))
	correct := s.Question.CorrectIndex != nil && *s.Question.CorrectIndex == option
	sub := domain.AnswerSubmission{
		QuestionID: s.Question.ID,
		Option:     option,
		ElapsedMs:  elapsed.Milliseconds(),
		Correct:    correct,
		Points:     scoring.Score(correct, elapsed),
	}
	c.round = *s.VotingStartedAt
	c.mu.Unlock()

	c.writeMu.Lock()
	err := conn.WriteJSON(transport.Envelope[domain.AnswerSubmission]{Type: "answer", Payload: sub})
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		c.round = time.Time{}
		c.mu.Unlock()
		return domain.AnswerSubmission{}, fmt.Errorf("send answer: %w", err)
	}
	return sub, nil
}

func (c *Client) wsURL(participantID string) string {
	u := c.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws?participantId=" + url.QueryEscape(participantID)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	return Do(ctx, c.http, http.MethodPost, c.baseURL+path, body, out)
}

// APIError is a non-2xx reply from the coordinator.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Do sends a JSON request and decodes a JSON reply into out (if non-nil).
func Do(ctx context.Context, hc *http.Client, method, target string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
