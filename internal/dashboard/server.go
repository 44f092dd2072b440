// Package dashboard serves the lane charts and a JSON command API over HTTP.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/qepting91/reddit-lanes/internal/app"
	"github.com/qepting91/reddit-lanes/internal/domain"
	"github.com/qepting91/reddit-lanes/internal/observable"
	"github.com/qepting91/reddit-lanes/internal/state"
)

// Commands is the slice of the app the dashboard drives.
type Commands interface {
	AddLane(ctx context.Context, subreddit string) app.Outcome
	RefreshLane(ctx context.Context, id string) app.Outcome
	RefreshAll(ctx context.Context) app.Outcome
	RemoveLane(ctx context.Context, id string) app.Outcome
	ClearAll(ctx context.Context) app.Outcome
	Stats() app.Stats
	Store() *state.Store
}

type Server struct {
	cmds   Commands
	logger *slog.Logger
	charts *observable.Cell[chartData]
	stop   func()
}

func NewServer(cmds Commands, keywords []string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	build := func(lanes []domain.Lane) chartData { return buildChartData(lanes, keywords) }
	derived, stop := observable.Map(cmds.Store().Cell(), build, nil)
	return &Server{cmds: cmds, logger: logger, charts: derived, stop: stop}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/lanes", s.handleList)
		r.Post("/lanes", s.handleAdd)
		r.Delete("/lanes", s.handleClear)
		r.Post("/lanes/refresh", s.handleRefreshAll)
		r.Get("/lanes/{id}", s.handleGet)
		r.Delete("/lanes/{id}", s.handleRemove)
		r.Post("/lanes/{id}/refresh", s.handleRefresh)
	})
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("Starting Dashboard", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close detaches the chart cache from the store.
func (s *Server) Close() { s.stop() }

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderPage(w, s.charts.Get()); err != nil {
		s.logger.Error("Render failed", "err", err)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cmds.Stats())
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	view, err := parseView(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, app.Outcome{Message: err.Error()})
		return
	}
	lanes := s.cmds.Store().All()
	out := make([]laneView, 0, len(lanes))
	for _, l := range lanes {
		out = append(out, newLaneView(l, view.Apply(l.Posts)))
	}
	writeJSON(w, http.StatusOK, out)
}

// postView adds the display fields a lane card needs to the stored post.
type postView struct {
	domain.Post
	RedditURL        string `json:"redditUrl"`
	DisplayThumbnail string `json:"displayThumbnail,omitempty"`
	ScoreLabel       string `json:"scoreLabel"`
}

type laneView struct {
	domain.Lane
	Posts []postView `json:"posts"`
}

func newLaneView(l domain.Lane, posts []domain.Post) laneView {
	v := laneView{Lane: l, Posts: make([]postView, 0, len(posts))}
	for _, p := range posts {
		pv := postView{Post: p, RedditURL: p.RedditURL(), ScoreLabel: p.FormatScore()}
		if p.HasThumbnail() {
			pv.DisplayThumbnail = p.ThumbnailURL
		}
		v.Posts = append(v.Posts, pv)
	}
	return v
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	lane, ok := s.cmds.Store().Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, app.Outcome{Message: domain.UserMessage(domain.ErrLaneNotFound)})
		return
	}
	writeJSON(w, http.StatusOK, newLaneView(lane, lane.Posts))
}

type addRequest struct {
	Subreddit string `json:"subreddit"`
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, app.Outcome{Message: "Invalid JSON body"})
		return
	}
	out := s.cmds.AddLane(r.Context(), req.Subreddit)
	status := statusFor(out)
	if out.Success {
		status = http.StatusCreated
	}
	writeJSON(w, status, out)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	out := s.cmds.RefreshLane(r.Context(), chi.URLParam(r, "id"))
	writeJSON(w, statusFor(out), out)
}

func (s *Server) handleRefreshAll(w http.ResponseWriter, r *http.Request) {
	out := s.cmds.RefreshAll(r.Context())
	writeJSON(w, statusFor(out), out)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	out := s.cmds.RemoveLane(r.Context(), chi.URLParam(r, "id"))
	writeJSON(w, statusFor(out), out)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	out := s.cmds.ClearAll(r.Context())
	writeJSON(w, statusFor(out), out)
}

// statusFor maps a failed outcome's cause to an HTTP status. Failures that
// carry no cause (a refresh that recorded a lane error) are still 200.
func statusFor(out app.Outcome) int {
	if out.Success || out.Err == nil {
		return http.StatusOK
	}
	var verr *domain.ValidationError
	var ferr *domain.FetchError
	switch {
	case errors.Is(out.Err, domain.ErrLaneNotFound):
		return http.StatusNotFound
	case errors.Is(out.Err, domain.ErrDuplicateSubreddit):
		return http.StatusConflict
	case errors.As(out.Err, &verr):
		return http.StatusBadRequest
	case errors.As(out.Err, &ferr):
		switch ferr.Kind {
		case domain.FetchNotFound:
			return http.StatusNotFound
		case domain.FetchRateLimited:
			return http.StatusTooManyRequests
		case domain.FetchTimeout:
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// parseView reads sort, nsfw, min_score, max_score and q.
func parseView(r *http.Request) (domain.View, error) {
	q := r.URL.Query()
	v := domain.View{
		Sort:     domain.ParseSortOrder(q.Get("sort")),
		HideNSFW: q.Get("nsfw") == "hide",
		Query:    strings.TrimSpace(q.Get("q")),
	}
	for name, dst := range map[string]**int{"min_score": &v.MinScore, "max_score": &v.MaxScore} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return domain.View{}, errors.New(name + " must be an integer")
		}
		*dst = &n
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
