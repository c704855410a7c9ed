package app

import (
	"sync"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/metrics"
)

// AddOutcome classifies an incoming answer event.
type AddOutcome string

const (
	OutcomeAccepted  AddOutcome = "accepted"
	OutcomeDuplicate AddOutcome = "duplicate"
	OutcomeStale     AddOutcome = "stale"
	OutcomeMalformed AddOutcome = "malformed"
)

// AnswerBuffer is the host-local, deduplicated accumulation of answers for the
// active question. Only the Ingestor adds to it; the host controller opens, seals
// and clears it around phase transitions.
type AnswerBuffer struct {
	mu         sync.Mutex
	questionID int64
	open       bool
	sealed     bool
	entries    map[domain.AnswerKey]domain.AnswerEvent
	order      []domain.AnswerKey
	observed   int
}

func NewAnswerBuffer() *AnswerBuffer {
	return &AnswerBuffer{entries: make(map[domain.AnswerKey]domain.AnswerEvent)}
}

// Open empties the buffer and starts accepting answers for questionID.
func (b *AnswerBuffer) Open(questionID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
	b.questionID = questionID
	b.open = true
}

// Close empties the buffer and rejects everything until the next Open.
func (b *AnswerBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
	b.questionID = 0
	b.open = false
}

// Seal stops accepting answers and returns the buffered events in arrival order.
// Entries are retained until Clear.
func (b *AnswerBuffer) Seal() []domain.AnswerEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sealed = true
	out := make([]domain.AnswerEvent, 0, len(b.order))
	for _, key := range b.order {
		out = append(out, b.entries[key])
	}
	return out
}

// Unseal resumes accepting answers after a failed flush; entries are kept.
func (b *AnswerBuffer) Unseal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sealed = false
}

// Clear drops all entries after a successful flush. The buffer stays sealed.
func (b *AnswerBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make(map[domain.AnswerKey]domain.AnswerEvent)
	b.order = nil
	metrics.PendingAnswers.Set(0)
}

// Add buffers ev unless it is malformed, for another question, arrives while the
// buffer is not accepting, or repeats a key already held.
func (b *AnswerBuffer) Add(ev domain.AnswerEvent) AddOutcome {
	if ev.ParticipantID == "" || ev.SelectedOption < 1 || ev.SelectedOption > domain.NumOptions {
		return OutcomeMalformed
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open || b.sealed || ev.QuestionID != b.questionID {
		return OutcomeStale
	}
	key := ev.Key()
	if _, ok := b.entries[key]; ok {
		return OutcomeDuplicate
	}
	b.entries[key] = ev
	b.order = append(b.order, key)
	b.observed++
	metrics.PendingAnswers.Set(float64(len(b.entries)))
	return OutcomeAccepted
}

// Len is the number of buffered entries.
func (b *AnswerBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Observed is the number of distinct answers seen for the active question. It is a
// progress display aid and survives Clear; it must not be used for scoring.
func (b *AnswerBuffer) Observed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.observed
}

// Distribution counts buffered answers per option (index 0 is option 1).
func (b *AnswerBuffer) Distribution() [domain.NumOptions]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	var dist [domain.NumOptions]int
	for _, ev := range b.entries {
		dist[ev.SelectedOption-1]++
	}
	return dist
}

// QuestionID is the question the buffer currently collects for, 0 when closed.
func (b *AnswerBuffer) QuestionID() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.questionID
}

func (b *AnswerBuffer) resetLocked() {
	b.entries = make(map[domain.AnswerKey]domain.AnswerEvent)
	b.order = nil
	b.observed = 0
	b.sealed = false
	metrics.PendingAnswers.Set(0)
}
