package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/jobtrail/internal/collection"
	"github.com/kalambet/jobtrail/internal/gateway"
	"github.com/kalambet/jobtrail/internal/jobs"
)

type jobListResponse struct {
	Jobs  []jobs.Job     `json:"jobs"`
	Stats jobs.Dashboard `json:"stats"`
	// Pending is the number of changes still waiting for the backend.
	Pending int `json:"pending"`
}

// mutationResponse is returned with 202 Accepted: the change is visible
// locally and the backend has not answered yet.
type mutationResponse struct {
	MutationID string    `json:"mutationId"`
	Job        *jobs.Job `json:"job,omitempty"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type notesRequest struct {
	Notes string `json:"notes"`
}

type analyzeRequest struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	ws, err := s.Workspace(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	list := ws.Jobs.List(jobs.FiltersFromQuery(r.URL.Query()))
	if list == nil {
		list = []jobs.Job{}
	}
	writeJSON(w, http.StatusOK, jobListResponse{
		Jobs:    list,
		Stats:   ws.Jobs.Stats(),
		Pending: len(ws.Jobs.Pending()),
	})
}

func (s *Server) handleJobStats(w http.ResponseWriter, r *http.Request) {
	ws, err := s.Workspace(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.Jobs.Stats())
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	ws, err := s.Workspace(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	job, ok := ws.Jobs.Get(chi.URLParam(r, "id"))
	if !ok {
		writeErr(w, r, collection.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ws, err := s.Workspace(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	m, err := ws.Jobs.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	s.accepted(w, ws, m)
}

func (s *Server) handleSetNotes(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ws, err := s.Workspace(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	m, err := ws.Jobs.SetNotes(r.Context(), chi.URLParam(r, "id"), req.Notes)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	s.accepted(w, ws, m)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	ws, err := s.Workspace(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	m, err := ws.Jobs.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, mutationResponse{MutationID: m.ID})
}

func (s *Server) handleAnalyzeJob(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ws, err := s.Workspace(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if !s.analyze.Allow() {
		httpError(w, http.StatusTooManyRequests, "rate_limit_error", "too many analyses, try again shortly")
		return
	}

	var job jobs.Job
	if strings.TrimSpace(req.URL) != "" {
		job, err = ws.Jobs.AddByURL(r.Context(), req.URL)
	} else {
		job, err = ws.Jobs.AddManual(r.Context(), gateway.ManualJob{
			Title:       req.Title,
			Company:     req.Company,
			Location:    req.Location,
			Description: req.Description,
		})
	}
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) accepted(w http.ResponseWriter, ws *Workspace, m *collection.Mutation) {
	resp := mutationResponse{MutationID: m.ID}
	if job, ok := ws.Jobs.Get(m.EntityID); ok {
		resp.Job = &job
	}
	writeJSON(w, http.StatusAccepted, resp)
}
