package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Phase is the session's current stage.
type Phase string

const (
	PhaseWaiting Phase = "waiting"
	PhaseVoting  Phase = "voting"
	PhaseResult  Phase = "result"
	PhaseRanking Phase = "ranking"
)

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseWaiting, PhaseVoting, PhaseResult, PhaseRanking:
		return true
	}
	return false
}

// NumOptions is the fixed number of choices per question.
const NumOptions = 4

// SessionState is the single authoritative record of the session phase.
type SessionState struct {
	Phase            Phase      `json:"phase"`
	ActiveQuestionID *int64     `json:"activeQuestionId"`
	VotingStartedAt  *time.Time `json:"votingStartedAt"`
	Revision         int64      `json:"revision"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// InitialState is the state of a freshly configured session.
func InitialState() SessionState {
	return SessionState{Phase: PhaseWaiting}
}

// Validate checks that ActiveQuestionID is set iff the phase is voting or result.
func (s SessionState) Validate() error {
	if !s.Phase.Valid() {
		return fmt.Errorf("%w: unknown phase %q", ErrInvalidState, s.Phase)
	}
	needsQuestion := s.Phase == PhaseVoting || s.Phase == PhaseResult
	if needsQuestion != (s.ActiveQuestionID != nil) {
		return fmt.Errorf("%w: phase %s with active question %v", ErrInvalidState, s.Phase, s.ActiveQuestionID != nil)
	}
	if s.VotingStartedAt != nil && s.Phase != PhaseVoting {
		return fmt.Errorf("%w: voting start time outside voting", ErrInvalidState)
	}
	return nil
}

// QuestionID returns the active question ID, or 0 when none is active.
func (s SessionState) QuestionID() int64 {
	if s.ActiveQuestionID == nil {
		return 0
	}
	return *s.ActiveQuestionID
}

// Question is an immutable catalog entry.
type Question struct {
	ID           int64              `json:"id"`
	Prompt       string             `json:"prompt"`
	Options      [NumOptions]string `json:"options"`
	CorrectIndex int                `json:"correctIndex"` // 1-4
	Ordinal      int                `json:"ordinal"`
}

// IsCorrect reports whether option (1-4) is the right answer.
func (q Question) IsCorrect(option int) bool {
	return option == q.CorrectIndex
}

// AnswerKey identifies one participant's answer to one question.
type AnswerKey struct {
	ParticipantID string
	QuestionID    int64
}

// AnswerEvent is a participant's single-question submission as carried on the bus.
type AnswerEvent struct {
	ParticipantID  string    `json:"participantId"`
	DisplayName    string    `json:"displayName"`
	QuestionID     int64     `json:"questionId"`
	SelectedOption int       `json:"selectedOption"`
	ElapsedMs      int64     `json:"elapsedMs"`
	Correct        bool      `json:"correct"`
	Points         int       `json:"points"`
	SubmittedAt    time.Time `json:"submittedAt"`
}

// Key returns the dedup key of the event.
func (e AnswerEvent) Key() AnswerKey {
	return AnswerKey{ParticipantID: e.ParticipantID, QuestionID: e.QuestionID}
}

// Response is the durable copy of an AnswerEvent.
type Response struct {
	ParticipantID  string
	DisplayName    string
	QuestionID     int64
	SelectedOption int
	ElapsedMs      int64
	Correct        bool
	Points         int
	CreatedAt      time.Time
}

// ResponseFromEvent converts a buffered event into its durable form.
func ResponseFromEvent(e AnswerEvent, at time.Time) Response {
	return Response{
		ParticipantID:  e.ParticipantID,
		DisplayName:    e.DisplayName,
		QuestionID:     e.QuestionID,
		SelectedOption: e.SelectedOption,
		ElapsedMs:      e.ElapsedMs,
		Correct:        e.Correct,
		Points:         e.Points,
		CreatedAt:      at,
	}
}

// Participant is a registered player and their cumulative score.
type Participant struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Score       int       `json:"score"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// RankingEntry is a derived, non-persistent view of one participant's standing.
type RankingEntry struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	Score         int    `json:"score"`
	Rank          int    `json:"rank"`
}

// Ranking is a top-N snapshot published on the bus.
type Ranking struct {
	Entries     []RankingEntry `json:"entries"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

// CommitResult summarises one batch flush.
type CommitResult struct {
	Responses     int
	ScoreUpdates  int
	PointsAwarded int
}

// AnswerSubmission is what a participant client sends for the active question.
type AnswerSubmission struct {
	QuestionID int64 `json:"questionId"`
	Option     int   `json:"option"`
	ElapsedMs  int64 `json:"elapsedMs"`
	Correct    bool  `json:"correct"`
	Points     int   `json:"points"`
}

// MaxDisplayNameLength is the longest accepted display name, in characters.
const MaxDisplayNameLength = 20

// NormalizeDisplayName trims name and checks its length.
func NormalizeDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return "", ErrInvalidDisplayName
	}
	return name, nil
}
