package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/kalambet/jobtrail/internal/collection"
	"github.com/kalambet/jobtrail/internal/gateway"
	"github.com/kalambet/jobtrail/internal/jobs"
	"github.com/kalambet/jobtrail/internal/notify"
	"github.com/kalambet/jobtrail/internal/profile"
	"github.com/kalambet/jobtrail/internal/session"
	"github.com/kalambet/jobtrail/internal/storage"
	"github.com/kalambet/jobtrail/internal/upload"
)

const maxRequestBodySize = 1 << 20 // 1MB

// recentNotifications is how many toasts GET /notifications returns.
const recentNotifications = 20

// Deps holds dependencies for the dashboard server.
type Deps struct {
	Gateway *gateway.Client
	Store   *storage.Store
	Upload  upload.Policy
	// AnalyzePerMinute limits job analyses and sign-in attempts. Zero
	// disables the limit.
	AnalyzePerMinute int
	Logger           *slog.Logger
}

// Workspace is the signed-in user's job list and profile.
type Workspace struct {
	token   string
	Jobs    *jobs.Tracker
	Profile *profile.Manager
}

// Server is the local dashboard. It is single-user: signing in with a
// different token replaces the workspace.
type Server struct {
	gw       *gateway.Client
	store    *storage.Store
	policy   upload.Policy
	recorder *notify.Recorder
	notifier notify.Notifier
	analyze  *rate.Limiter
	signin   *rate.Limiter
	logger   *slog.Logger

	mu sync.Mutex
	ws *Workspace
}

// NewServer builds a dashboard server. Notifications go to the log, the
// notification table and an in-memory list of recent toasts.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := deps.Upload
	if len(policy.Extensions) == 0 && policy.MaxSizeMB == 0 {
		policy = upload.DefaultPolicy()
	}
	rec := notify.NewRecorder(recentNotifications)
	s := &Server{
		gw:       deps.Gateway,
		store:    deps.Store,
		policy:   policy,
		recorder: rec,
		notifier: notify.Multi{notify.Logger{L: logger}, deps.Store.Notifier(logger), rec},
		analyze:  perMinute(deps.AnalyzePerMinute),
		signin:   perMinute(deps.AnalyzePerMinute),
		logger:   logger,
	}
	return s
}

func perMinute(n int) *rate.Limiter {
	if n <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
}

// Handler returns the dashboard's routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Get("/login", handleLoginPage)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/register", s.handleRegister)

	r.Group(func(r chi.Router) {
		r.Use(requireSession)

		r.Post("/auth/logout", s.handleLogout)

		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/stats", s.handleJobStats)
		r.Post("/jobs/analyze", s.handleAnalyzeJob)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Patch("/jobs/{id}/status", s.handleSetStatus)
		r.Put("/jobs/{id}/notes", s.handleSetNotes)
		r.Delete("/jobs/{id}", s.handleDeleteJob)

		r.Get("/profile", s.handleGetProfile)
		r.Patch("/profile", s.handlePatchProfile)
		r.Post("/profile/items", s.handleAddProfileItem)
		r.Delete("/profile/items", s.handleRemoveProfileItem)
		r.Post("/profile/resume", s.handleUploadResume)

		r.Get("/notifications", s.handleNotifications)
	})

	return r
}

// Workspace returns the workspace of the session carried by ctx, creating
// and loading it on first use.
func (s *Server) Workspace(ctx context.Context) (*Workspace, error) {
	sess, err := session.Require(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ws != nil && s.ws.token == sess.Token {
		return s.ws, nil
	}

	ws := &Workspace{
		token: sess.Token,
		Jobs: jobs.NewTracker(s.gw, s.notifier,
			jobs.WithSnapshots(s.store),
			jobs.WithLogger(s.logger),
			jobs.WithConfirmations(true),
		),
		Profile: profile.NewManager(s.gw, s.notifier,
			profile.WithUploadPolicy(s.policy),
			profile.WithLogger(s.logger),
		),
	}
	n, err := ws.Jobs.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading jobs: %w", err)
	}
	s.logger.Info("workspace opened", "jobs", n, "role", sess.Role)
	s.ws = ws
	return ws, nil
}

// Close waits for in-flight changes and saves the job snapshot.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	ws := s.ws
	s.mu.Unlock()
	if ws == nil {
		return nil
	}
	ws.Profile.Wait()
	return ws.Jobs.Flush(ctx)
}

// detachWorkspace removes the workspace of token and returns it. Requests
// that arrive afterwards open a fresh one.
func (s *Server) detachWorkspace(token string) *Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws := s.ws
	if ws == nil || ws.token != token {
		return nil
	}
	s.ws = nil
	return ws
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleLoginPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Sign in with POST /auth/login",
	})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.RecentNotifications(r.Context(), recentNotifications)
	if err != nil {
		s.logger.Warn("reading notification log", "error", err)
		list = s.recorder.Recent()
	}
	if list == nil {
		list = []notify.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeErr maps domain errors onto the HTTP error envelope.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var remote *collection.RemoteError
	switch {
	case errors.Is(err, session.ErrAuthRequired):
		for _, c := range session.ClearCookies() {
			http.SetCookie(w, c)
		}
		authRequired(w, r)
	case errors.Is(err, jobs.ErrInvalid),
		errors.Is(err, profile.ErrInvalidPath),
		errors.Is(err, profile.ErrNoChange),
		errors.Is(err, gateway.ErrInvalidSignup):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", err.Error())
	case errors.Is(err, upload.ErrRejected):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", err.Error())
	case errors.Is(err, collection.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found_error", "%s", err.Error())
	case errors.As(err, &remote):
		httpError(w, http.StatusBadGateway, "api_error", "%s", remote.Error())
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
