package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/jobtrail/internal/gateway"
	"github.com/kalambet/jobtrail/internal/notify"
	"github.com/kalambet/jobtrail/internal/record"
	"github.com/kalambet/jobtrail/internal/session"
	"github.com/kalambet/jobtrail/internal/storage"
)

const testToken = "tok-1"

// revokedToken is a token the backend no longer accepts.
const revokedToken = "tok-revoked"

// --- fake backend ---

type fakeBackend struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []string
	statusOK bool
	profile  map[string]any
	lastPut  map[string]any
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	f := &fakeBackend{
		statusOK: true,
		profile: map[string]any{
			"basicInfo":        map[string]any{"username": "johndoe", "email": "john@example.com", "location": "San Francisco, CA"},
			"professionalInfo": map[string]any{"currentTitle": "Engineer", "currentCompany": "Tech Corp"},
			"otherInfo":        map[string]any{"skills": []any{"Go"}},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret1" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"success":false,"message":"Invalid credentials"}`))
			return
		}
		w.Write([]byte(`{"success":true,"data":{"token":"tok-1","user":{"id":"u1","email":"john@example.com","role":"user"}}}`))
	})
	mux.HandleFunc("POST /api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"token":"tok-2","user":{"id":"u2","username":"jane","role":"user"}}}`))
	})
	mux.HandleFunc("PATCH /api/jobs/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		ok := f.statusOK
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"success":false,"message":"Failed to update job status"}`))
			return
		}
		w.Write([]byte(`{"success":true,"message":"Job status updated successfully"}`))
	})
	mux.HandleFunc("PATCH /api/jobs/{id}/notes", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"message":"Notes updated successfully"}`))
	})
	mux.HandleFunc("DELETE /api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"message":"Job deleted successfully"}`))
	})
	mux.HandleFunc("POST /api/jobs/analyze", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"message":"Job analyzed successfully","data":{"id":"new1","title":"Go Developer","company":"Acme","location":"Remote","url":"https://boards.greenhouse.io/acme/1","aiAnalysis":{"skillMatchPercentage":72}}}`))
	})
	mux.HandleFunc("GET /api/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer "+revokedToken {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"success":false,"message":"Token expired"}`))
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": f.profile})
	})
	mux.HandleFunc("PUT /api/profile", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.lastPut = body
		f.mu.Unlock()
		w.Write([]byte(`{"success":true,"message":"Profile updated successfully"}`))
	})
	mux.HandleFunc("POST /api/uploads/single", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"url":"https://files.example.com/cv.docx","originalName":"cv.docx"}}`))
	})

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Method+" "+r.URL.Path)
		f.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeBackend) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeBackend) setStatusOK(ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusOK = ok
}

// --- helpers ---

func sampleJobs() []record.Record {
	return []record.Record{
		{"id": "1", "title": "Frontend Developer", "company": "Tech Corp", "location": "San Francisco, CA", "jobType": "Full Time", "workMode": "Remote", "applicationStatus": "Applied"},
		{"id": "2", "title": "Backend Engineer", "company": "Data Inc", "location": "New York, NY", "jobType": "Contract", "workMode": "Hybrid", "applicationStatus": "Saved"},
		{"id": "3", "title": "Go Developer", "company": "Cloud Co", "location": "Remote", "jobType": "Full Time", "workMode": "Remote", "applicationStatus": "Interview Scheduled"},
	}
}

type testEnv struct {
	srv     *Server
	handler http.Handler
	store   *storage.Store
	backend *fakeBackend
}

func setupServer(t *testing.T, analyzePerMinute int) testEnv {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.SaveJobs(context.Background(), sampleJobs()); err != nil {
		t.Fatalf("seeding jobs: %v", err)
	}

	fb := newFakeBackend(t)
	gw, err := gateway.New(fb.server.URL+"/api/", gateway.WithHTTPClient(fb.server.Client()))
	if err != nil {
		t.Fatalf("gateway.New: %v", err)
	}

	srv := NewServer(Deps{Gateway: gw, Store: store, AnalyzePerMinute: analyzePerMinute})
	return testEnv{srv: srv, handler: srv.Handler(), store: store, backend: fb}
}

func (e testEnv) settle(t *testing.T) {
	t.Helper()
	if err := e.srv.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func (e testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func authReq(method, url, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Accept", "application/json")
	req.AddCookie(&http.Cookie{Name: session.TokenCookie, Value: testToken})
	req.AddCookie(&http.Cookie{Name: session.RoleCookie, Value: "user"})
	return req
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %s: %v", rr.Body.String(), err)
	}
	return v
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	json.Unmarshal(rr.Body.Bytes(), &body)
	return body.Error.Message
}

func cookieValue(rr *httptest.ResponseRecorder, name string) (string, bool) {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// --- tests ---

func TestHealth(t *testing.T) {
	e := setupServer(t, 0)
	rr := e.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Errorf("health = %d %s", rr.Code, rr.Body.String())
	}
}

func TestRequireSession(t *testing.T) {
	e := setupServer(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	req.Header.Set("Accept", "application/json")
	if rr := e.do(req); rr.Code != http.StatusUnauthorized {
		t.Errorf("JSON client: status = %d, want 401", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/jobs", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	rr := e.do(req)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/login" {
		t.Errorf("browser: status = %d, location = %q", rr.Code, rr.Header().Get("Location"))
	}
	if n := e.backend.count(""); n != 0 {
		t.Errorf("backend saw %d requests without a session", n)
	}
}

func TestBackendRejectsToken(t *testing.T) {
	e := setupServer(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Accept", "text/html")
	req.AddCookie(&http.Cookie{Name: session.TokenCookie, Value: revokedToken})
	rr := e.do(req)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/login" {
		t.Errorf("browser: status = %d, location = %q", rr.Code, rr.Header().Get("Location"))
	}
	if v, ok := cookieValue(rr, session.TokenCookie); !ok || v != "" {
		t.Errorf("token cookie not cleared: %q, %v", v, ok)
	}

	req = httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Accept", "application/json")
	req.AddCookie(&http.Cookie{Name: session.TokenCookie, Value: revokedToken})
	if rr := e.do(req); rr.Code != http.StatusUnauthorized {
		t.Errorf("JSON client: status = %d, want 401", rr.Code)
	}
}

func TestLogin_SetsCookiesAndStoresSession(t *testing.T) {
	e := setupServer(t, 0)

	rr := e.do(httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"john@example.com","password":"secret1"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	if v, ok := cookieValue(rr, session.TokenCookie); !ok || v != "tok-1" {
		t.Errorf("token cookie = %q, %v", v, ok)
	}
	if v, _ := cookieValue(rr, session.RoleCookie); v != "user" {
		t.Errorf("role cookie = %q", v)
	}

	stored, err := e.store.LoadSession(context.Background(), storage.DefaultSession)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if stored.Token != "tok-1" || stored.ExpiresAt.Sub(stored.IssuedAt) != session.Lifetime {
		t.Errorf("stored session = %+v", stored)
	}
}

func TestLogin_Rejected(t *testing.T) {
	e := setupServer(t, 0)

	rr := e.do(httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"john@example.com","password":"nope"}`)))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
	if msg := errorMessage(t, rr); msg != "Invalid credentials" {
		t.Errorf("message = %q", msg)
	}
	if _, ok := cookieValue(rr, session.TokenCookie); ok {
		t.Error("rejected login set a cookie")
	}
}

func TestRegister_ValidatesBeforeSending(t *testing.T) {
	e := setupServer(t, 0)

	body := `{"username":"jane","email":"jane@example.com","password":"secret1","confirmPassword":"secret2"}`
	rr := e.do(httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if msg := errorMessage(t, rr); msg != "Passwords do not match" {
		t.Errorf("message = %q", msg)
	}

	body = `{"username":"jane","email":"jane@example.com","password":"abc","confirmPassword":"abc"}`
	rr = e.do(httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body)))
	if msg := errorMessage(t, rr); msg != "Password must be at least 6 characters long" {
		t.Errorf("message = %q", msg)
	}
	if n := e.backend.count("POST /api/auth/register"); n != 0 {
		t.Errorf("backend saw %d registrations", n)
	}

	body = `{"username":"jane","email":"jane@example.com","password":"secret1","confirmPassword":"secret1"}`
	rr = e.do(httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("valid sign-up: status = %d; body = %s", rr.Code, rr.Body.String())
	}
	if v, _ := cookieValue(rr, session.TokenCookie); v != "tok-2" {
		t.Errorf("token cookie = %q", v)
	}
}

func TestLogout(t *testing.T) {
	e := setupServer(t, 0)
	ctx := context.Background()
	e.store.SaveSession(ctx, storage.DefaultSession, session.New(testToken, "user", time.Now()))

	rr := e.do(authReq(http.MethodPost, "/auth/logout", ""))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
	for _, c := range rr.Result().Cookies() {
		if c.MaxAge >= 0 {
			t.Errorf("cookie %s not cleared: MaxAge = %d", c.Name, c.MaxAge)
		}
	}
	if _, err := e.store.LoadSession(ctx, storage.DefaultSession); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("stored session after logout: err = %v", err)
	}
}

func TestLogout_RequiresMatchingSession(t *testing.T) {
	e := setupServer(t, 0)
	ctx := context.Background()
	e.store.SaveSession(ctx, storage.DefaultSession, session.New(testToken, "user", time.Now()))

	anon := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	anon.Header.Set("Accept", "application/json")
	if rr := e.do(anon); rr.Code != http.StatusUnauthorized {
		t.Fatalf("logout without cookies: status = %d", rr.Code)
	}

	other := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	other.Header.Set("Accept", "application/json")
	other.AddCookie(&http.Cookie{Name: session.TokenCookie, Value: "someone-else"})
	if rr := e.do(other); rr.Code != http.StatusNoContent {
		t.Fatalf("logout with another token: status = %d", rr.Code)
	}

	sess, err := e.store.LoadSession(ctx, storage.DefaultSession)
	if err != nil || sess.Token != testToken {
		t.Errorf("stored session = %+v, %v; want it kept", sess, err)
	}
}

func TestListJobs_Filters(t *testing.T) {
	e := setupServer(t, 0)

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"1", "2", "3"}},
		{"?status=Applied", []string{"1"}},
		{"?status=all&workMode=Remote", []string{"1", "3"}},
		{"?query=developer&jobType=Full%20Time", []string{"1", "3"}},
		{"?location=york", []string{"2"}},
		{"?status=Rejected", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rr := e.do(authReq(http.MethodGet, "/jobs"+tt.query, ""))
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
			}
			resp := decode[jobListResponse](t, rr)
			var got []string
			for _, j := range resp.Jobs {
				got = append(got, j.ID)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("ids = %v, want %v", got, tt.want)
			}
			if resp.Stats.Total != 3 {
				t.Errorf("stats total = %d, want 3 regardless of filters", resp.Stats.Total)
			}
		})
	}
}

func TestJobStats(t *testing.T) {
	e := setupServer(t, 0)

	rr := e.do(authReq(http.MethodGet, "/jobs/stats", ""))
	stats := decode[map[string]int](t, rr)
	if stats["total"] != 3 || stats["applied"] != 1 || stats["saved"] != 1 || stats["interviews"] != 1 {
		t.Errorf("stats = %v", stats)
	}
}

func TestSetStatus_OptimisticThenConfirmed(t *testing.T) {
	e := setupServer(t, 0)

	rr := e.do(authReq(http.MethodPatch, "/jobs/2/status", `{"status":"offer received"}`))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	resp := decode[mutationResponse](t, rr)
	if resp.MutationID == "" || resp.Job == nil || resp.Job.Status != "Offer Received" {
		t.Errorf("response = %+v", resp)
	}

	e.settle(t)

	rr = e.do(authReq(http.MethodGet, "/jobs/2", ""))
	if got := decode[map[string]any](t, rr)["applicationStatus"]; got != "Offer Received" {
		t.Errorf("status after confirm = %v", got)
	}
	rr = e.do(authReq(http.MethodGet, "/notifications", ""))
	list := decode[[]notify.Notification](t, rr)
	if len(list) == 0 || list[0].Message != "Job status updated successfully" || list[0].Kind != notify.KindSuccess {
		t.Errorf("notifications = %+v", list)
	}
}

func TestSetStatus_RollbackOnFailure(t *testing.T) {
	e := setupServer(t, 0)
	e.backend.setStatusOK(false)

	rr := e.do(authReq(http.MethodPatch, "/jobs/1/status", `{"status":"Rejected"}`))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rr.Code)
	}
	e.settle(t)

	rr = e.do(authReq(http.MethodGet, "/jobs/1", ""))
	if got := decode[map[string]any](t, rr)["applicationStatus"]; got != "Applied" {
		t.Errorf("status after rollback = %v, want Applied", got)
	}
	rr = e.do(authReq(http.MethodGet, "/notifications", ""))
	list := decode[[]notify.Notification](t, rr)
	if len(list) != 1 || list[0].Message != "Failed to update job status" || list[0].Kind != notify.KindError {
		t.Errorf("notifications = %+v", list)
	}
}

func TestSetStatus_Invalid(t *testing.T) {
	e := setupServer(t, 0)

	rr := e.do(authReq(http.MethodPatch, "/jobs/1/status", `{"status":"Ghosted"}`))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
	if n := e.backend.count("PATCH"); n != 0 {
		t.Errorf("backend saw %d status updates", n)
	}
}

func TestSetNotesAndDelete(t *testing.T) {
	e := setupServer(t, 0)

	rr := e.do(authReq(http.MethodPut, "/jobs/3/notes", `{"notes":"Recruiter call on Friday"}`))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("notes: status = %d", rr.Code)
	}
	if resp := decode[mutationResponse](t, rr); resp.Job == nil || resp.Job.Notes != "Recruiter call on Friday" {
		t.Errorf("notes response = %+v", resp)
	}

	rr = e.do(authReq(http.MethodDelete, "/jobs/2", ""))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("delete: status = %d", rr.Code)
	}
	e.settle(t)

	rr = e.do(authReq(http.MethodGet, "/jobs/2", ""))
	if rr.Code != http.StatusNotFound {
		t.Errorf("deleted job: status = %d, want 404", rr.Code)
	}

	saved, _ := e.store.LoadJobs(context.Background())
	if len(saved) != 2 {
		t.Errorf("snapshot has %d jobs, want 2", len(saved))
	}
}

func TestDelete_UnknownJob(t *testing.T) {
	e := setupServer(t, 0)

	rr := e.do(authReq(http.MethodDelete, "/jobs/99", ""))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
	if n := e.backend.count("DELETE"); n != 0 {
		t.Errorf("backend saw %d deletes", n)
	}
}

func TestAnalyzeJob(t *testing.T) {
	e := setupServer(t, 0)

	rr := e.do(authReq(http.MethodPost, "/jobs/analyze", `{"url":"https://boards.greenhouse.io/acme/1"}`))
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	job := decode[map[string]any](t, rr)
	if job["id"] != "new1" || job["applicationStatus"] != "Saved" {
		t.Errorf("job = %v", job)
	}

	rr = e.do(authReq(http.MethodGet, "/jobs", ""))
	resp := decode[jobListResponse](t, rr)
	if len(resp.Jobs) != 4 || resp.Jobs[3].ID != "new1" {
		t.Errorf("jobs after analyze = %+v", resp.Jobs)
	}
}

func TestAnalyzeJob_ManualRequiresAllFields(t *testing.T) {
	e := setupServer(t, 0)

	rr := e.do(authReq(http.MethodPost, "/jobs/analyze", `{"title":"Dev","company":"Acme"}`))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if msg := errorMessage(t, rr); !strings.Contains(msg, "missing location, description") {
		t.Errorf("message = %q", msg)
	}
	if n := e.backend.count("POST /api/jobs/analyze"); n != 0 {
		t.Errorf("backend saw %d analyses", n)
	}
}

func TestAnalyzeJob_RateLimited(t *testing.T) {
	e := setupServer(t, 1)

	body := `{"url":"https://boards.greenhouse.io/acme/1"}`
	if rr := e.do(authReq(http.MethodPost, "/jobs/analyze", body)); rr.Code != http.StatusCreated {
		t.Fatalf("first: status = %d", rr.Code)
	}
	if rr := e.do(authReq(http.MethodPost, "/jobs/analyze", body)); rr.Code != http.StatusTooManyRequests {
		t.Errorf("second: status = %d, want 429", rr.Code)
	}
}

func TestProfile_GetAndPatch(t *testing.T) {
	e := setupServer(t, 0)

	rr := e.do(authReq(http.MethodGet, "/profile", ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("get: status = %d; body = %s", rr.Code, rr.Body.String())
	}
	got := decode[profileResponse](t, rr)
	if got.Profile.BasicInfo.Username != "johndoe" || !strings.Contains(got.Summary, "Engineer at Tech Corp") {
		t.Errorf("profile = %+v", got)
	}

	rr = e.do(authReq(http.MethodPatch, "/profile", `{"path":"basicInfo.location","value":"Berlin"}`))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("patch: status = %d; body = %s", rr.Code, rr.Body.String())
	}
	if resp := decode[profileMutationResponse](t, rr); resp.Profile.BasicInfo.Location != "Berlin" {
		t.Errorf("optimistic location = %q", resp.Profile.BasicInfo.Location)
	}
	e.settle(t)

	e.backend.mu.Lock()
	put := e.backend.lastPut
	e.backend.mu.Unlock()
	if loc, _ := record.Record(put).Lookup("basicInfo.location"); loc != "Berlin" {
		t.Errorf("sent location = %v", loc)
	}
	if _, ok := put["id"]; ok {
		t.Error("local profile id sent to backend")
	}
}

func TestProfile_Items(t *testing.T) {
	e := setupServer(t, 0)

	rr := e.do(authReq(http.MethodPost, "/profile/items", `{"path":"otherInfo.skills","value":"Kubernetes"}`))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("add: status = %d; body = %s", rr.Code, rr.Body.String())
	}
	if skills := decode[profileMutationResponse](t, rr).Profile.OtherInfo.Skills; strings.Join(skills, ",") != "Go,Kubernetes" {
		t.Errorf("skills = %v", skills)
	}

	rr = e.do(authReq(http.MethodPost, "/profile/items", `{"path":"otherInfo.skills","value":"Go"}`))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("duplicate: status = %d, want 400", rr.Code)
	}

	rr = e.do(authReq(http.MethodDelete, "/profile/items?path=otherInfo.skills&index=0", ""))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("remove: status = %d; body = %s", rr.Code, rr.Body.String())
	}
	if skills := decode[profileMutationResponse](t, rr).Profile.OtherInfo.Skills; strings.Join(skills, ",") != "Kubernetes" {
		t.Errorf("skills = %v", skills)
	}
	e.settle(t)
}

func multipartFile(t *testing.T, name string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(content)
	mw.Close()

	req := authReq(http.MethodPost, "/profile/resume", "")
	req.Body = io.NopCloser(&buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadResume_RejectsBeforeUpload(t *testing.T) {
	e := setupServer(t, 0)

	rr := e.do(multipartFile(t, "cv.png", []byte("not a resume")))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if msg := errorMessage(t, rr); msg != "Only .PDF, .DOCX, .DOC files are allowed" {
		t.Errorf("message = %q", msg)
	}
	if n := e.backend.count("POST /api/uploads"); n != 0 {
		t.Errorf("backend saw %d uploads", n)
	}
}

func TestUploadResume(t *testing.T) {
	e := setupServer(t, 0)

	rr := e.do(multipartFile(t, "cv.docx", []byte("PK\x03\x04 resume")))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	resp := decode[profileMutationResponse](t, rr)
	if r := resp.Profile.Documents.Resume; r == nil || r.FileName != "cv.docx" || r.URL != "https://files.example.com/cv.docx" {
		t.Errorf("resume = %+v", resp.Profile.Documents.Resume)
	}
	e.settle(t)
}
