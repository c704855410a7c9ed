package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// API serves the participant and host REST endpoints.
type API struct {
	host     *app.HostController
	registry *app.Registry
	feed     *app.Feed
	catalog  app.QuestionCatalog
	view     View
	logger   *zap.Logger
	now      func() time.Time
}

func NewAPI(host *app.HostController, registry *app.Registry, feed *app.Feed, catalog app.QuestionCatalog, view View, logger *zap.Logger) *API {
	return &API{
		host:     host,
		registry: registry,
		feed:     feed,
		catalog:  catalog,
		view:     view,
		logger:   logger.Named("api"),
		now:      time.Now,
	}
}

func (a *API) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/participants", a.join)
	r.Get("/participants/{id}", a.participant)
	r.Get("/state", a.state)
	r.Get("/ranking", a.ranking)
	r.Get("/questions", a.questions)

	r.Route("/host", func(r chi.Router) {
		r.Get("/state", a.hostState)
		r.Get("/progress", a.progress)
		r.Post("/start", a.start)
		r.Post("/next", a.transition(a.host.NextQuestion))
		r.Post("/reveal", a.reveal)
		r.Post("/ranking", a.transition(a.host.ShowRanking))
		r.Post("/waiting", a.transition(a.host.ReturnToWaiting))
		r.Post("/reset", a.destructive(a.host.ResetSession))
		r.Post("/purge", a.destructive(a.host.PurgeParticipants))
	})
	return r
}

// JoinRequest registers a participant. ID is optional; a known ID rejoins.
type JoinRequest struct {
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"displayName"`
}

type StartRequest struct {
	QuestionID int64 `json:"questionId"`
}

type RevealRequest struct {
	Force bool `json:"force"`
}

// ConfirmRequest must carry confirm=true for destructive operations.
type ConfirmRequest struct {
	Confirm bool `json:"confirm"`
}

func (a *API) join(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := a.registry.Join(r.Context(), req.ID, req.DisplayName)
	if err != nil {
		a.fail(w, "join", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) participant(w http.ResponseWriter, r *http.Request) {
	p, err := a.registry.Participant(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, "get participant", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.view.state(a.feed.Current(), a.now()))
}

func (a *API) ranking(w http.ResponseWriter, r *http.Request) {
	ranking, err := a.host.Ranking(r.Context())
	if err != nil {
		a.fail(w, "ranking", err)
		return
	}
	writeJSON(w, http.StatusOK, ranking)
}

func (a *API) questions(w http.ResponseWriter, r *http.Request) {
	questions, err := a.catalog.Questions(r.Context())
	if err != nil {
		a.fail(w, "questions", err)
		return
	}
	out := make([]PublicQuestion, 0, len(questions))
	for _, q := range questions {
		out = append(out, a.view.question(q, domain.PhaseWaiting))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) hostState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.host.State())
}

func (a *API) progress(w http.ResponseWriter, r *http.Request) {
	p, err := a.host.Progress(r.Context())
	if err != nil {
		a.fail(w, "progress", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	state, err := a.host.Start(r.Context(), req.QuestionID)
	if err != nil {
		a.fail(w, "start", err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (a *API) reveal(w http.ResponseWriter, r *http.Request) {
	var req RevealRequest
	if r.ContentLength != 0 {
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	op := a.host.RevealResult
	if req.Force {
		op = a.host.ForceRevealResult
	}
	state, err := op(r.Context())
	if err != nil {
		a.fail(w, "reveal", err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type transitionFunc func(ctx context.Context) (domain.SessionState, error)

func (a *API) transition(op transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := op(r.Context())
		if err != nil {
			a.fail(w, "transition", err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func (a *API) destructive(op transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ConfirmRequest
		if r.ContentLength != 0 {
			if err := readJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}
		if !req.Confirm {
			a.fail(w, "destructive operation", domain.ErrConfirmationRequired)
			return
		}
		a.transition(op)(w, r)
	}
}

func (a *API) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error(op+" failed", zap.Error(err))
	}
	writeError(w, status, err.Error())
}
