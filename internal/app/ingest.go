package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/metrics"
	"live-quiz-service/internal/scoring"
)

// ScoringMode decides whether the host trusts client-computed points.
type ScoringMode string

const (
	// ScoringClient keeps the client's correctness flag, elapsed time and points.
	ScoringClient ScoringMode = "client"
	// ScoringServer recomputes correctness from the catalog and elapsed time from the
	// host's votingStartedAt and receipt time; client values are display hints only.
	ScoringServer ScoringMode = "server"
)

// ParseScoringMode maps a config value to a mode, defaulting to ScoringClient.
func ParseScoringMode(raw string) (ScoringMode, error) {
	switch ScoringMode(raw) {
	case "", ScoringClient:
		return ScoringClient, nil
	case ScoringServer:
		return ScoringServer, nil
	}
	return "", fmt.Errorf("unknown scoring mode %q", raw)
}

// StateReader exposes the authoritative session state to host-side components.
type StateReader interface {
	State() domain.SessionState
}

// Ingestor consumes raw answer events from the bus into the AnswerBuffer.
type Ingestor struct {
	bus     Bus
	buffer  *AnswerBuffer
	catalog QuestionCatalog
	state   StateReader
	mode    ScoringMode
	logger  *zap.Logger
	now     func() time.Time
}

func NewIngestor(bus Bus, buffer *AnswerBuffer, catalog QuestionCatalog, state StateReader, mode ScoringMode, logger *zap.Logger) *Ingestor {
	return &Ingestor{
		bus:     bus,
		buffer:  buffer,
		catalog: catalog,
		state:   state,
		mode:    mode,
		logger:  logger.Named("ingest"),
		now:     time.Now,
	}
}

// Run consumes the answer topic until ctx is cancelled.
func (i *Ingestor) Run(ctx context.Context) error {
	return consume(ctx, i.bus, TopicAnswers, i.logger, nil, func(ctx context.Context, payload []byte) {
		i.Handle(ctx, payload)
	})
}

// Handle processes one raw message. It never fails: malformed, stale and duplicate
// events are discarded.
func (i *Ingestor) Handle(ctx context.Context, payload []byte) AddOutcome {
	var ev domain.AnswerEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return i.record(ev, OutcomeMalformed)
	}
	if i.mode == ScoringServer {
		var ok bool
		if ev, ok = i.rescore(ctx, ev); !ok {
			return i.record(ev, OutcomeStale)
		}
	}
	return i.record(ev, i.buffer.Add(ev))
}

func (i *Ingestor) rescore(ctx context.Context, ev domain.AnswerEvent) (domain.AnswerEvent, bool) {
	state := i.state.State()
	if state.Phase != domain.PhaseVoting || state.VotingStartedAt == nil || state.QuestionID() != ev.QuestionID {
		return ev, false
	}
	q, err := i.catalog.Question(ctx, ev.QuestionID)
	if err != nil {
		return ev, false
	}
	elapsed := scoring.Elapsed(*state.VotingStartedAt, i.now())
	ev.Correct = q.IsCorrect(ev.SelectedOption)
	ev.ElapsedMs = elapsed.Milliseconds()
	ev.Points = scoring.Score(ev.Correct, elapsed)
	return ev, true
}

func (i *Ingestor) record(ev domain.AnswerEvent, outcome AddOutcome) AddOutcome {
	metrics.AnswersTotal.WithLabelValues(string(outcome)).Inc()
	if outcome != OutcomeAccepted {
		i.logger.Debug("answer discarded",
			zap.String("outcome", string(outcome)),
			zap.String("participant", ev.ParticipantID),
			zap.Int64("question", ev.QuestionID),
		)
	}
	return outcome
}
