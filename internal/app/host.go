package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/metrics"
	"live-quiz-service/internal/scoring"
)

// HostOptions tunes the host controller.
type HostOptions struct {
	// VotingWindow is the length of the host countdown.
	VotingWindow time.Duration
	// AutoAdvance reveals the result when the countdown expires.
	AutoAdvance bool
}

// Progress is the host-side view of the running question.
type Progress struct {
	Phase        domain.Phase           `json:"phase"`
	QuestionID   int64                  `json:"questionId,omitempty"`
	Answered     int                    `json:"answered"`
	Participants int                    `json:"participants"`
	Distribution [domain.NumOptions]int `json:"distribution"`
	RemainingMs  int64                  `json:"remainingMs"`
}

// HostController is the single writer of SessionState. It owns the authoritative
// state object, the host countdown and the answer buffer lifecycle.
type HostController struct {
	states  StateStore
	store   Store
	bus     Bus
	catalog QuestionCatalog
	buffer  *AnswerBuffer
	writer  *BatchWriter
	ranker  *Ranker
	opts    HostOptions
	logger  *zap.Logger
	now     func() time.Time

	// mu serializes host operations, including countdown expiry.
	mu           sync.Mutex
	timer        *time.Timer
	timerGen     uint64
	lastQuestion int64

	stateMu sync.RWMutex
	state   domain.SessionState
}

func NewHostController(states StateStore, store Store, bus Bus, catalog QuestionCatalog, buffer *AnswerBuffer, ranker *Ranker, opts HostOptions, logger *zap.Logger) *HostController {
	if opts.VotingWindow <= 0 {
		opts.VotingWindow = scoring.TimeWindow
	}
	return &HostController{
		states:  states,
		store:   store,
		bus:     bus,
		catalog: catalog,
		buffer:  buffer,
		writer:  NewBatchWriter(store, logger),
		ranker:  ranker,
		opts:    opts,
		logger:  logger.Named("host"),
		now:     time.Now,
		state:   domain.InitialState(),
	}
}

// Init loads the persisted state, reopening the buffer and countdown when the
// host restarts in the middle of voting.
func (h *HostController) Init(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	state, err := h.states.Load(ctx)
	if err != nil {
		return fmt.Errorf("load session state: %w", err)
	}
	if err := state.Validate(); err != nil {
		return err
	}
	h.setState(state)
	h.lastQuestion = state.QuestionID()
	if state.Phase == domain.PhaseVoting {
		h.buffer.Open(state.QuestionID())
		if state.VotingStartedAt != nil {
			h.armTimerLocked(*state.VotingStartedAt)
		}
	}
	h.logger.Info("session state loaded", zap.String("phase", string(state.Phase)), zap.Int64("revision", state.Revision))
	return nil
}

// Close stops the countdown.
func (h *HostController) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopTimerLocked()
}

// State returns a copy of the authoritative session state.
func (h *HostController) State() domain.SessionState {
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()
	return h.state
}

// Start opens voting on questionID. Valid from waiting or result.
func (h *HostController) Start(ctx context.Context, questionID int64) (domain.SessionState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.startLocked(ctx, questionID)
}

// NextQuestion starts the question following the last one played, or the first.
func (h *HostController) NextQuestion(ctx context.Context) (domain.SessionState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.requirePhase(domain.PhaseWaiting, domain.PhaseResult); err != nil {
		return h.State(), err
	}
	questions, err := h.catalog.Questions(ctx)
	if err != nil {
		return h.State(), err
	}
	next := -1
	if h.lastQuestion == 0 {
		if len(questions) > 0 {
			next = 0
		}
	} else {
		for i, q := range questions {
			if q.ID == h.lastQuestion && i+1 < len(questions) {
				next = i + 1
				break
			}
		}
	}
	if next < 0 {
		return h.State(), domain.ErrNoNextQuestion
	}
	return h.startLocked(ctx, questions[next].ID)
}

// RevealResult flushes the buffered answers and then moves to result. If the flush
// fails the phase stays voting and the buffer is kept for a retry.
func (h *HostController) RevealResult(ctx context.Context) (domain.SessionState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.revealLocked(ctx, false)
}

// ForceRevealResult moves to result even when the flush fails. Uncommitted answers
// stay in the (sealed) buffer until the next question starts.
func (h *HostController) ForceRevealResult(ctx context.Context) (domain.SessionState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.revealLocked(ctx, true)
}

// ShowRanking moves to ranking from any phase and publishes a fresh ranking.
func (h *HostController) ShowRanking(ctx context.Context) (domain.SessionState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopTimerLocked()
	h.warnDiscardedLocked("ranking")
	h.buffer.Close()
	saved, err := h.saveLocked(ctx, domain.SessionState{Phase: domain.PhaseRanking})
	if err != nil {
		return h.State(), err
	}
	h.publishState(ctx, saved)
	h.publishRanking(ctx)
	return saved, nil
}

// ReturnToWaiting moves to waiting from any phase. Scores are kept.
func (h *HostController) ReturnToWaiting(ctx context.Context) (domain.SessionState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.returnToWaitingLocked(ctx)
}

// ResetSession deletes all responses, zeroes all scores and returns to waiting.
func (h *HostController) ResetSession(ctx context.Context) (domain.SessionState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.store.ResetScores(ctx); err != nil {
		return h.State(), fmt.Errorf("reset scores: %w", err)
	}
	h.logger.Warn("session reset: responses deleted, scores zeroed")
	return h.afterWipeLocked(ctx)
}

// PurgeParticipants deletes all responses and participants and returns to waiting.
func (h *HostController) PurgeParticipants(ctx context.Context) (domain.SessionState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.store.PurgeParticipants(ctx); err != nil {
		return h.State(), fmt.Errorf("purge participants: %w", err)
	}
	h.logger.Warn("participants purged")
	return h.afterWipeLocked(ctx)
}

// Ranking returns the current top-N ranking.
func (h *HostController) Ranking(ctx context.Context) (domain.Ranking, error) {
	return h.ranker.Top(ctx)
}

// Progress reports answer progress for the active question.
func (h *HostController) Progress(ctx context.Context) (Progress, error) {
	state := h.State()
	participants, err := h.store.CountParticipants(ctx)
	if err != nil {
		return Progress{}, err
	}
	p := Progress{
		Phase:        state.Phase,
		QuestionID:   state.QuestionID(),
		Participants: participants,
	}
	switch state.Phase {
	case domain.PhaseVoting:
		p.Answered = h.buffer.Observed()
		p.Distribution = h.buffer.Distribution()
		if state.VotingStartedAt != nil {
			p.RemainingMs = scoring.Remaining(*state.VotingStartedAt, h.opts.VotingWindow, h.now()).Milliseconds()
		}
	case domain.PhaseResult:
		if p.Answered, err = h.store.CountResponses(ctx, state.QuestionID()); err != nil {
			return Progress{}, err
		}
	}
	return p, nil
}

func (h *HostController) startLocked(ctx context.Context, questionID int64) (domain.SessionState, error) {
	if err := h.requirePhase(domain.PhaseWaiting, domain.PhaseResult); err != nil {
		return h.State(), err
	}
	if _, err := h.catalog.Question(ctx, questionID); err != nil {
		return h.State(), err
	}

	h.stopTimerLocked()
	startedAt := h.now()
	qid := questionID
	saved, err := h.saveLocked(ctx, domain.SessionState{
		Phase:            domain.PhaseVoting,
		ActiveQuestionID: &qid,
		VotingStartedAt:  &startedAt,
	})
	if err != nil {
		return h.State(), err
	}
	h.lastQuestion = questionID
	h.warnDiscardedLocked("start")
	h.buffer.Open(questionID)
	h.publishState(ctx, saved)
	h.armTimerLocked(startedAt)
	return saved, nil
}

func (h *HostController) revealLocked(ctx context.Context, force bool) (domain.SessionState, error) {
	current := h.State()
	if current.Phase != domain.PhaseVoting {
		return current, fmt.Errorf("%w: reveal from %s", domain.ErrInvalidTransition, current.Phase)
	}
	h.stopTimerLocked()

	if _, err := h.writer.Flush(ctx, h.buffer); err != nil {
		if !force {
			return current, err
		}
		h.buffer.Seal()
		h.logger.Warn("revealing result without committed answers", zap.Error(err))
	}

	saved, err := h.saveLocked(ctx, domain.SessionState{
		Phase:            domain.PhaseResult,
		ActiveQuestionID: current.ActiveQuestionID,
	})
	if err != nil {
		return current, err
	}
	h.publishState(ctx, saved)
	h.publishRanking(ctx)
	return saved, nil
}

func (h *HostController) returnToWaitingLocked(ctx context.Context) (domain.SessionState, error) {
	h.stopTimerLocked()
	h.warnDiscardedLocked("waiting")
	h.buffer.Close()
	saved, err := h.saveLocked(ctx, domain.SessionState{Phase: domain.PhaseWaiting})
	if err != nil {
		return h.State(), err
	}
	h.publishState(ctx, saved)
	return saved, nil
}

func (h *HostController) afterWipeLocked(ctx context.Context) (domain.SessionState, error) {
	h.lastQuestion = 0
	saved, err := h.returnToWaitingLocked(ctx)
	if err != nil {
		return saved, err
	}
	h.publishRanking(ctx)
	return saved, nil
}

// warnDiscardedLocked logs answers that are about to be dropped without being
// committed, e.g. the batch kept after a forced reveal.
func (h *HostController) warnDiscardedLocked(on string) {
	if n := h.buffer.Len(); n > 0 {
		h.logger.Warn("discarding uncommitted answers",
			zap.String("on", on),
			zap.Int64("question", h.buffer.QuestionID()),
			zap.Int("events", n),
		)
	}
}

func (h *HostController) requirePhase(allowed ...domain.Phase) error {
	current := h.State().Phase
	for _, p := range allowed {
		if current == p {
			return nil
		}
	}
	return fmt.Errorf("%w: not allowed from %s", domain.ErrInvalidTransition, current)
}

// saveLocked persists next as a single authoritative write.
func (h *HostController) saveLocked(ctx context.Context, next domain.SessionState) (domain.SessionState, error) {
	next.UpdatedAt = h.now()
	if err := next.Validate(); err != nil {
		return domain.SessionState{}, err
	}
	prev := h.State()
	saved, err := h.states.Save(ctx, next)
	if err != nil {
		return domain.SessionState{}, fmt.Errorf("save session state: %w", err)
	}
	h.setState(saved)
	metrics.PhaseTransitions.WithLabelValues(string(saved.Phase)).Inc()
	h.logger.Info("phase transition",
		zap.String("from", string(prev.Phase)),
		zap.String("to", string(saved.Phase)),
		zap.Int64("question", saved.QuestionID()),
		zap.Int64("revision", saved.Revision),
	)
	return saved, nil
}

func (h *HostController) setState(s domain.SessionState) {
	h.stateMu.Lock()
	h.state = s
	h.stateMu.Unlock()
}

// publishState notifies subscribers. A failed publish is not fatal: the state is
// already persisted and clients refetch it when they reconnect.
func (h *HostController) publishState(ctx context.Context, s domain.SessionState) {
	payload, err := json.Marshal(s)
	if err != nil {
		h.logger.Error("encode session state", zap.Error(err))
		return
	}
	if err := h.bus.Publish(ctx, TopicState, payload); err != nil {
		h.logger.Warn("publish session state failed", zap.Int64("revision", s.Revision), zap.Error(err))
	}
}

func (h *HostController) publishRanking(ctx context.Context) {
	ranking, err := h.ranker.Top(ctx)
	if err != nil {
		h.logger.Warn("ranking refresh failed", zap.Error(err))
		return
	}
	payload, err := json.Marshal(ranking)
	if err != nil {
		h.logger.Error("encode ranking", zap.Error(err))
		return
	}
	if err := h.bus.Publish(ctx, TopicRanking, payload); err != nil {
		h.logger.Warn("publish ranking failed", zap.Error(err))
	}
}

func (h *HostController) armTimerLocked(startedAt time.Time) {
	h.stopTimerLocked()
	gen := h.timerGen
	remaining := scoring.Remaining(startedAt, h.opts.VotingWindow, h.now())
	h.timer = time.AfterFunc(remaining, func() { h.onDeadline(gen) })
}

// stopTimerLocked cancels the countdown; a callback already in flight sees a stale
// generation and does nothing.
func (h *HostController) stopTimerLocked() {
	h.timerGen++
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

func (h *HostController) onDeadline(gen uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if gen != h.timerGen || h.State().Phase != domain.PhaseVoting {
		return
	}
	h.timer = nil
	h.logger.Info("voting window elapsed", zap.Int64("question", h.State().QuestionID()), zap.Bool("auto_advance", h.opts.AutoAdvance))
	if !h.opts.AutoAdvance {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := h.revealLocked(ctx, false); err != nil {
		h.logger.Error("auto reveal failed", zap.Error(err))
	}
}
