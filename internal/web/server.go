// Package web serves the display's status and control endpoints. Handlers
// never touch loop state directly: reads go through the status tracker and
// actions are queued into the coordinator's inbox.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/sweeney/orbs-display/internal/button"
	"github.com/sweeney/orbs-display/internal/coordinator"
	"github.com/sweeney/orbs-display/internal/status"
	"github.com/sweeney/orbs-display/internal/task"
)

// Controller is the loop-facing side of the server; *coordinator.Coordinator
// satisfies it.
type Controller interface {
	InjectButton(id button.ID, state button.State) error
	RequestFetch(ctx context.Context, req coordinator.FetchRequest) error
	CustomClocks() int
}

// RequestTimeout bounds how long a handler waits for the loop's verdict.
const RequestTimeout = 2 * time.Second

// Server serves the HTTP API.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	ctl        Controller
	presses    *rate.Limiter
	log        zerolog.Logger
}

// New creates a Server. buttonRate limits simulated presses per second;
// zero disables the limit.
func New(addr string, tracker *status.Tracker, ctl Controller, buttonRate float64, log zerolog.Logger) *Server {
	limit := rate.Inf
	if buttonRate > 0 {
		limit = rate.Limit(buttonRate)
	}
	s := &Server{
		tracker: tracker,
		ctl:     ctl,
		presses: rate.NewLimiter(limit, max(1, int(buttonRate))),
		log:     log.With().Str("component", "http").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleJSON)
	mux.HandleFunc("GET /index.json", s.handleJSON)
	mux.HandleFunc("GET /ping", s.handlePing)
	mux.HandleFunc("OPTIONS /ping", s.handlePreflight)
	mux.HandleFunc("GET /button", s.handleButton)
	mux.HandleFunc("POST /fetchFromUrl", s.handleFetchFromURL)
	mux.HandleFunc("GET /fetchFromClockRepo", s.handleFetchFromClockRepo)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// ListenAndServe blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.tracker.Snapshot()))
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	cors(w)
	snap := s.tracker.Snapshot()
	writeJSON(w, http.StatusOK, pingJSON{
		Status:       "OK",
		UptimeMs:     snap.Uptime().Milliseconds(),
		CustomClocks: s.ctl.CustomClocks(),
	})
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	cors(w)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleButton(w http.ResponseWriter, r *http.Request) {
	if !s.presses.Allow() {
		writeText(w, http.StatusTooManyRequests, "SLOW DOWN")
		return
	}
	q := r.URL.Query()
	id, err := button.ParseID(q.Get("name"))
	if err != nil {
		writeText(w, http.StatusInternalServerError, "ERR")
		return
	}
	state, err := button.ParseState(q.Get("state"))
	if err != nil {
		writeText(w, http.StatusInternalServerError, "ERR")
		return
	}
	if err := s.ctl.InjectButton(id, state); err != nil {
		s.log.Warn().Err(err).Msg("simulated press rejected")
		writeText(w, statusFor(err), "ERR")
		return
	}
	s.log.Debug().Stringer("button", id).Stringer("state", state).Msg("simulated press queued")
	writeText(w, http.StatusOK, "OK")
}

func (s *Server) handleFetchFromURL(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := coordinator.FetchRequest{URL: q.Get("url"), Dir: q.Get("dir")}
	if req.URL == "" || req.Dir == "" {
		writeText(w, http.StatusInternalServerError, "url and dir are required")
		return
	}
	s.submit(w, r, req)
}

func (s *Server) handleFetchFromClockRepo(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	slot, err := strconv.Atoi(q.Get("customClock"))
	if err != nil || slot < 0 || slot >= s.ctl.CustomClocks() {
		writeText(w, http.StatusInternalServerError, "invalid customClock")
		return
	}
	if q.Get("url") == "" {
		writeText(w, http.StatusInternalServerError, "url is required")
		return
	}
	s.submit(w, r, coordinator.FetchRequest{
		URL: q.Get("url"),
		Clock: &coordinator.ClockFace{
			Slot:            slot,
			Name:            q.Get("clockName"),
			Author:          q.Get("authorName"),
			SecondHandColor: q.Get("secondHandColor"),
			OverrideColor:   q.Get("overrideColor"),
		},
	})
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, req coordinator.FetchRequest) {
	ctx, cancel := context.WithTimeout(r.Context(), RequestTimeout)
	defer cancel()
	if err := s.ctl.RequestFetch(ctx, req); err != nil {
		s.log.Warn().Err(err).Str("url", req.URL).Msg("download not queued")
		writeJSON(w, statusFor(err), fetchJSON{Status: "rejected", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, fetchJSON{Status: "accepted"})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, task.ErrQueueFull), errors.Is(err, coordinator.ErrInboxFull),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
