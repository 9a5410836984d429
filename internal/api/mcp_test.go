package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/jobtrail/internal/session"
	"github.com/kalambet/jobtrail/internal/storage"
)

func makeCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want mcp.TextContent", res.Content[0])
	}
	return tc.Text
}

func mcpDepsFor(e testEnv) MCPDeps {
	return MCPDeps{Workspaces: e.srv, Sessions: e.store, Notifications: e.store}
}

func signIn(t *testing.T, e testEnv) {
	t.Helper()
	sess := session.New(testToken, "user", time.Now())
	if err := e.store.SaveSession(context.Background(), storage.DefaultSession, sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
}

func TestMCP_NotSignedIn(t *testing.T) {
	e := setupServer(t, 0)

	res, err := mcpListJobs(mcpDepsFor(e))(context.Background(), makeCallToolRequest("list_jobs", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError || !strings.Contains(resultText(t, res), "jobtrail login") {
		t.Errorf("result = %+v", res)
	}
}

func TestMCP_ExpiredSession(t *testing.T) {
	e := setupServer(t, 0)
	old := session.New(testToken, "user", time.Now().Add(-2*session.Lifetime))
	e.store.SaveSession(context.Background(), storage.DefaultSession, old)

	res, _ := mcpJobStats(mcpDepsFor(e))(context.Background(), makeCallToolRequest("job_stats", nil))
	if !res.IsError {
		t.Errorf("expired session accepted: %s", resultText(t, res))
	}
}

func TestMCP_ListJobs(t *testing.T) {
	e := setupServer(t, 0)
	signIn(t, e)

	res, err := mcpListJobs(mcpDepsFor(e))(context.Background(), makeCallToolRequest("list_jobs", map[string]any{
		"workMode": "Remote",
	}))
	if err != nil || res.IsError {
		t.Fatalf("list_jobs failed: %v %+v", err, res)
	}

	var got []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if len(got) != 2 || got[0].ID != "1" || got[1].Status != "Interview Scheduled" {
		t.Errorf("jobs = %+v", got)
	}
}

func TestMCP_ListJobs_NoMatches(t *testing.T) {
	e := setupServer(t, 0)
	signIn(t, e)

	res, _ := mcpListJobs(mcpDepsFor(e))(context.Background(), makeCallToolRequest("list_jobs", map[string]any{
		"status": "Offer Received",
	}))
	if resultText(t, res) != "[]" {
		t.Errorf("result = %q, want []", resultText(t, res))
	}
}

func TestMCP_UpdateStatus(t *testing.T) {
	e := setupServer(t, 0)
	signIn(t, e)

	res, err := mcpUpdateStatus(mcpDepsFor(e))(context.Background(), makeCallToolRequest("update_job_status", map[string]any{
		"id":     "2",
		"status": "Applied",
	}))
	if err != nil || res.IsError {
		t.Fatalf("update failed: %v %s", err, resultText(t, res))
	}
	if text := resultText(t, res); text != "Job 2 is now Applied" {
		t.Errorf("text = %q", text)
	}

	ws, _ := e.srv.Workspace(session.WithSession(context.Background(), session.Session{Token: testToken}))
	if j, _ := ws.Jobs.Get("2"); j.Status != "Applied" {
		t.Errorf("status = %q", j.Status)
	}
}

func TestMCP_UpdateStatus_RolledBack(t *testing.T) {
	e := setupServer(t, 0)
	signIn(t, e)
	e.backend.setStatusOK(false)

	res, _ := mcpUpdateStatus(mcpDepsFor(e))(context.Background(), makeCallToolRequest("update_job_status", map[string]any{
		"id":     "2",
		"status": "Applied",
	}))
	if !res.IsError || !strings.Contains(resultText(t, res), "Failed to update job status") {
		t.Errorf("result = %s", resultText(t, res))
	}

	ws, _ := e.srv.Workspace(session.WithSession(context.Background(), session.Session{Token: testToken}))
	if j, _ := ws.Jobs.Get("2"); j.Status != "Saved" {
		t.Errorf("status after rollback = %q, want Saved", j.Status)
	}
}

func TestMCP_UpdateStatus_MissingArgs(t *testing.T) {
	e := setupServer(t, 0)
	signIn(t, e)

	res, _ := mcpUpdateStatus(mcpDepsFor(e))(context.Background(), makeCallToolRequest("update_job_status", map[string]any{
		"id": "2",
	}))
	if !res.IsError || resultText(t, res) != "status is required" {
		t.Errorf("result = %+v", res)
	}
	if n := e.backend.count("PATCH"); n != 0 {
		t.Errorf("backend saw %d updates", n)
	}
}

func TestMCP_AnalyzeJob(t *testing.T) {
	e := setupServer(t, 0)
	signIn(t, e)

	res, err := mcpAnalyzeJob(mcpDepsFor(e))(context.Background(), makeCallToolRequest("analyze_job", map[string]any{
		"url": "https://boards.greenhouse.io/acme/1",
	}))
	if err != nil || res.IsError {
		t.Fatalf("analyze failed: %v %s", err, resultText(t, res))
	}
	if !strings.Contains(resultText(t, res), `"id":"new1"`) {
		t.Errorf("result = %s", resultText(t, res))
	}
}

func TestMCP_ProfileResource(t *testing.T) {
	e := setupServer(t, 0)
	signIn(t, e)

	contents, err := mcpResourceProfile(mcpDepsFor(e))(context.Background(), makeReadResourceRequest("user://profile"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("len(contents) = %d, want 1", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("content is %T", contents[0])
	}
	if tc.URI != "user://profile" || tc.MIMEType != "application/json" {
		t.Errorf("resource = %s %s", tc.URI, tc.MIMEType)
	}

	var got profileResponse
	if err := json.Unmarshal([]byte(tc.Text), &got); err != nil {
		t.Fatalf("decoding profile: %v", err)
	}
	if got.Profile.BasicInfo.Email != "john@example.com" || !strings.Contains(got.Summary, "Skills: Go.") {
		t.Errorf("profile = %+v", got)
	}
}

func TestMCP_NotificationsResource(t *testing.T) {
	e := setupServer(t, 0)
	signIn(t, e)

	mcpUpdateStatus(mcpDepsFor(e))(context.Background(), makeCallToolRequest("update_job_status", map[string]any{
		"id":     "1",
		"status": "Rejected",
	}))

	contents, err := mcpResourceNotifications(mcpDepsFor(e))(context.Background(), makeReadResourceRequest("user://notifications"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tc := contents[0].(mcp.TextResourceContents)
	if !strings.Contains(tc.Text, "Job status updated successfully") {
		t.Errorf("notifications = %s", tc.Text)
	}
}
