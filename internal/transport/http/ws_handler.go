package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

type WSHandler struct {
	registry *app.Registry
	feed     *app.Feed
	view     View
	logger   *zap.Logger
	upgrader websocket.Upgrader
	now      func() time.Time
}

func NewWSHandler(registry *app.Registry, feed *app.Feed, view View, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		registry: registry,
		feed:     feed,
		view:     view,
		logger:   logger.Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		now: time.Now,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ServeWS upgrades a registered participant's connection. The current snapshot is
// sent on connect and after every change, so a reconnecting client always resyncs.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	participantID := r.URL.Query().Get("participantId")
	if participantID == "" {
		writeError(w, http.StatusBadRequest, "missing participantId")
		return
	}
	participant, err := h.registry.Participant(r.Context(), participantID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, cancel := h.feed.Subscribe()
	defer cancel()

	send := make(chan any, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only the writer goroutine touches the connection for writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", zap.String("participant", participantID), zap.Error(err))
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- Envelope[StatePayload]{Type: "state", Payload: h.view.state(snap, h.now())}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var reply any
		switch inbound.Type {
		case "answer":
			reply = h.answer(r, participant, inbound.Payload)
		default:
			reply = Envelope[errorPayload]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
		select {
		case send <- reply:
		case <-writerDone:
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

var errVotingClosed = errors.New("voting is not open for this question")

func (h *WSHandler) answer(r *http.Request, participant domain.Participant, raw json.RawMessage) any {
	var sub domain.AnswerSubmission
	if err := json.Unmarshal(raw, &sub); err != nil {
		return Envelope[errorPayload]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
	}
	state := h.feed.Current().State
	if state.Phase != domain.PhaseVoting || state.QuestionID() != sub.QuestionID {
		return Envelope[errorPayload]{Type: "error", Payload: errorPayload{Message: errVotingClosed.Error()}}
	}
	ev, err := h.registry.Submit(r.Context(), participant, sub)
	if err != nil {
		return Envelope[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}}
	}
	return Envelope[SubmittedPayload]{Type: "submitted", Payload: SubmittedPayload{
		QuestionID: ev.QuestionID,
		Option:     ev.SelectedOption,
		Correct:    ev.Correct,
		Points:     ev.Points,
	}}
}
