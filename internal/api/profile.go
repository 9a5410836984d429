package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/kalambet/jobtrail/internal/collection"
	"github.com/kalambet/jobtrail/internal/profile"
)

// multipartOverhead is room for form boundaries on top of the file limit.
const multipartOverhead = 1 << 20

type profileResponse struct {
	Profile profile.Profile `json:"profile"`
	Summary string          `json:"summary"`
}

type profileMutationResponse struct {
	MutationID string          `json:"mutationId"`
	Profile    profile.Profile `json:"profile"`
}

type fieldRequest struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

type itemRequest struct {
	Path  string `json:"path"`
	Value string `json:"value"`
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	ws, err := s.Workspace(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	p, err := ws.Profile.Profile(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	summary, err := ws.Profile.Summary(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Profile: p, Summary: summary})
}

func (s *Server) handlePatchProfile(w http.ResponseWriter, r *http.Request) {
	var req fieldRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ws, err := s.Workspace(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	m, err := ws.Profile.Set(r.Context(), req.Path, req.Value)
	s.profileAccepted(w, r, ws, m, err)
}

func (s *Server) handleAddProfileItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ws, err := s.Workspace(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	m, err := ws.Profile.AddItem(r.Context(), req.Path, req.Value)
	s.profileAccepted(w, r, ws, m, err)
}

// handleRemoveProfileItem takes ?path=otherInfo.skills&index=2.
func (s *Server) handleRemoveProfileItem(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	index, err := strconv.Atoi(q.Get("index"))
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "index must be an integer")
		return
	}
	ws, err := s.Workspace(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	m, err := ws.Profile.RemoveItem(r.Context(), q.Get("path"), index)
	s.profileAccepted(w, r, ws, m, err)
}

func (s *Server) handleUploadResume(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.policy.MaxBytes()+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeErr(w, r, s.policy.Validate("", s.policy.MaxBytes()+1))
			return
		}
		httpError(w, http.StatusBadRequest, "invalid_request_error", "a file field is required")
		return
	}
	defer file.Close()

	// Validate on the declared size before reading the content.
	if err := s.policy.Validate(header.Filename, header.Size); err != nil {
		writeErr(w, r, err)
		return
	}
	content, err := io.ReadAll(file)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "reading upload: %v", err)
		return
	}

	ws, err := s.Workspace(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	m, err := ws.Profile.AttachResume(r.Context(), header.Filename, bytes.NewReader(content), int64(len(content)))
	s.profileAccepted(w, r, ws, m, err)
}

func (s *Server) profileAccepted(w http.ResponseWriter, r *http.Request, ws *Workspace, m *collection.Mutation, err error) {
	if err != nil {
		writeErr(w, r, err)
		return
	}
	p, err := ws.Profile.Profile(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, profileMutationResponse{MutationID: m.ID, Profile: p})
}
