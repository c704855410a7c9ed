package http

import (
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// PublicQuestion is a question as shown to participants. CorrectIndex is only set
// when the answer may be revealed.
type PublicQuestion struct {
	ID           int64                     `json:"id"`
	Prompt       string                    `json:"prompt"`
	Options      [domain.NumOptions]string `json:"options"`
	Ordinal      int                       `json:"ordinal"`
	CorrectIndex *int                      `json:"correctIndex,omitempty"`
}

// StatePayload is the participant-facing snapshot. ServerTime lets clients
// compute their clock offset; Deadline is VotingStartedAt plus the voting window.
type StatePayload struct {
	Phase           domain.Phase    `json:"phase"`
	Revision        int64           `json:"revision"`
	Question        *PublicQuestion `json:"question,omitempty"`
	VotingStartedAt *time.Time      `json:"votingStartedAt,omitempty"`
	Deadline        *time.Time      `json:"deadline,omitempty"`
	VotingWindowMs  int64           `json:"votingWindowMs"`
	ServerTime      time.Time       `json:"serverTime"`
	Ranking         *domain.Ranking `json:"ranking,omitempty"`
}

// Envelope frames every websocket message.
type Envelope[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// SubmittedPayload acknowledges that an answer was handed to the bus.
type SubmittedPayload struct {
	QuestionID int64 `json:"questionId"`
	Option     int   `json:"option"`
	Correct    bool  `json:"correct"`
	Points     int   `json:"points"`
}

// View controls what participants may see.
type View struct {
	// RevealAnswers exposes correct indexes during voting so clients can score
	// locally; otherwise they appear only in the result phase.
	RevealAnswers bool
	VotingWindow  time.Duration
}

func (v View) question(q domain.Question, phase domain.Phase) PublicQuestion {
	pq := PublicQuestion{ID: q.ID, Prompt: q.Prompt, Options: q.Options, Ordinal: q.Ordinal}
	if v.RevealAnswers || phase == domain.PhaseResult {
		correct := q.CorrectIndex
		pq.CorrectIndex = &correct
	}
	return pq
}

func (v View) state(s app.Snapshot, now time.Time) StatePayload {
	out := StatePayload{
		Phase:          s.State.Phase,
		Revision:       s.State.Revision,
		VotingWindowMs: v.VotingWindow.Milliseconds(),
		ServerTime:     now,
		Ranking:        s.Ranking,
	}
	if s.Question != nil {
		q := v.question(*s.Question, s.State.Phase)
		out.Question = &q
	}
	if s.State.Phase == domain.PhaseVoting && s.State.VotingStartedAt != nil {
		started := *s.State.VotingStartedAt
		deadline := started.Add(v.VotingWindow)
		out.VotingStartedAt = &started
		out.Deadline = &deadline
	}
	return out
}
