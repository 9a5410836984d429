package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kalambet/jobtrail/internal/record"
	"github.com/kalambet/jobtrail/internal/session"
)

// User is the account returned by the auth endpoints.
type User struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
}

// AuthData is the data of a successful login or registration.
type AuthData struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Session builds the session issued by this login at now.
func (a AuthData) Session(now time.Time) session.Session {
	return session.New(a.Token, a.User.Role, now)
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (Envelope[AuthData], error) {
	return call[AuthData](ctx, c, Request{
		Path:      "auth/login",
		Method:    http.MethodPost,
		Body:      map[string]string{"email": email, "password": password},
		Anonymous: true,
	})
}

// Registration is the body of a sign-up.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// MinPasswordLength is the shortest password a sign-up accepts.
const MinPasswordLength = 6

// ErrInvalidSignup is wrapped by every *SignupError.
var ErrInvalidSignup = errors.New("invalid sign-up")

// SignupError is a sign-up form rejected before it was sent.
type SignupError struct {
	Reason string
}

func (e *SignupError) Error() string { return e.Reason }

func (e *SignupError) Unwrap() error { return ErrInvalidSignup }

// Validate checks a sign-up form. confirm is the repeated password.
func (r Registration) Validate(confirm string) error {
	switch {
	case strings.TrimSpace(r.Username) == "" || strings.TrimSpace(r.Email) == "" || r.Password == "":
		return &SignupError{Reason: "All fields are required"}
	case r.Password != confirm:
		return &SignupError{Reason: "Passwords do not match"}
	case len(r.Password) < MinPasswordLength:
		return &SignupError{Reason: fmt.Sprintf("Password must be at least %d characters long", MinPasswordLength)}
	}
	return nil
}

// Register creates an account and returns its first session token.
func (c *Client) Register(ctx context.Context, reg Registration) (Envelope[AuthData], error) {
	return call[AuthData](ctx, c, Request{
		Path:      "auth/register",
		Method:    http.MethodPost,
		Body:      reg,
		Anonymous: true,
	})
}

// GetProfile fetches the user's profile aggregate.
func (c *Client) GetProfile(ctx context.Context) (Envelope[record.Record], error) {
	return call[record.Record](ctx, c, Request{Path: "profile", Method: http.MethodGet})
}

// PutProfile replaces the user's profile aggregate.
func (c *Client) PutProfile(ctx context.Context, profile record.Record) (Envelope[record.Record], error) {
	return call[record.Record](ctx, c, Request{Path: "profile", Method: http.MethodPut, Body: profile})
}

// UploadedFile describes a file stored by the backend.
type UploadedFile struct {
	URL          string    `json:"url"`
	OriginalName string    `json:"originalName,omitempty"`
	UploadedAt   time.Time `json:"uploadedAt,omitzero"`
	PublicID     string    `json:"publicId,omitempty"`
	Size         int64     `json:"size,omitempty"`
	Format       string    `json:"format,omitempty"`
	FileType     string    `json:"fileType,omitempty"`
}

// UploadFile sends content as the single "file" field of a multipart form.
// Callers validate the file before calling; see package upload.
func (c *Client) UploadFile(ctx context.Context, fileName string, content io.Reader) (Envelope[UploadedFile], error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return Envelope[UploadedFile]{}, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return Envelope[UploadedFile]{}, fmt.Errorf("reading %s: %w", fileName, err)
	}
	if err := mw.Close(); err != nil {
		return Envelope[UploadedFile]{}, fmt.Errorf("closing multipart body: %w", err)
	}

	env, err := call[UploadedFile](ctx, c, Request{
		Path:   "uploads/single",
		Method: http.MethodPost,
		Header: http.Header{"Content-Type": {mw.FormDataContentType()}},
		Body:   buf.Bytes(),
	})
	if err != nil {
		return env, err
	}
	if env.Data.OriginalName == "" {
		env.Data.OriginalName = fileName
	}
	if env.Data.UploadedAt.IsZero() {
		env.Data.UploadedAt = time.Now().UTC()
	}
	return env, nil
}

// JobPage is one page of the job listing.
type JobPage struct {
	Items   []record.Record `json:"items"`
	HasMore bool            `json:"hasMore"`
}

// ListJobs returns a page of the user's jobs. The backend has no listing
// endpoint yet, so this always succeeds with an empty final page; callers
// treat that as "no more data".
func (c *Client) ListJobs(ctx context.Context, page int) (Envelope[JobPage], error) {
	if _, err := session.Require(ctx); err != nil {
		return Envelope[JobPage]{}, err
	}
	return Envelope[JobPage]{Success: true, Data: JobPage{Items: []record.Record{}}}, nil
}

// UpdateJobStatus sets a job's application status.
func (c *Client) UpdateJobStatus(ctx context.Context, id, status string) (Envelope[json.RawMessage], error) {
	return c.Do(ctx, Request{
		Path:   "jobs/" + url.PathEscape(id) + "/status",
		Method: http.MethodPatch,
		Body:   map[string]string{"status": status},
	})
}

// UpdateJobNotes replaces a job's notes.
func (c *Client) UpdateJobNotes(ctx context.Context, id, notes string) (Envelope[json.RawMessage], error) {
	return c.Do(ctx, Request{
		Path:   "jobs/" + url.PathEscape(id) + "/notes",
		Method: http.MethodPatch,
		Body:   map[string]string{"notes": notes},
	})
}

// DeleteJob removes a job.
func (c *Client) DeleteJob(ctx context.Context, id string) (Envelope[json.RawMessage], error) {
	return c.Do(ctx, Request{Path: "jobs/" + url.PathEscape(id), Method: http.MethodDelete})
}

// AnalyzeJobByURL asks the backend to fetch and analyze the posting at
// postingURL. The reply carries the new job with its analysis.
func (c *Client) AnalyzeJobByURL(ctx context.Context, postingURL string) (Envelope[record.Record], error) {
	return call[record.Record](ctx, c, Request{
		Path:   "jobs/analyze",
		Method: http.MethodPost,
		Body:   map[string]string{"url": postingURL},
	})
}

// ManualJob is a posting typed in by the user.
type ManualJob struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

// Compose renders the posting as the single description text the analyzer
// accepts.
func (m ManualJob) Compose() string {
	return fmt.Sprintf("Title: %s\nCompany: %s\nLocation: %s\n\n%s", m.Title, m.Company, m.Location, m.Description)
}

// AnalyzeJobManual submits a manually entered posting for analysis.
func (c *Client) AnalyzeJobManual(ctx context.Context, job ManualJob) (Envelope[record.Record], error) {
	return call[record.Record](ctx, c, Request{
		Path:   "jobs/analyze",
		Method: http.MethodPost,
		Body:   map[string]string{"description": job.Compose()},
	})
}
