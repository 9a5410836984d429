package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/jobtrail/internal/gateway"
	"github.com/kalambet/jobtrail/internal/jobs"
	"github.com/kalambet/jobtrail/internal/notify"
	"github.com/kalambet/jobtrail/internal/session"
	"github.com/kalambet/jobtrail/internal/storage"
)

// mcpSettleTimeout bounds how long a tool waits for the backend to confirm
// a change before reporting it as still pending.
const mcpSettleTimeout = 30 * time.Second

// WorkspaceSource returns the workspace of the session carried by ctx.
// Implemented by *Server.
type WorkspaceSource interface {
	Workspace(ctx context.Context) (*Workspace, error)
}

// SessionSource loads a stored session. Implemented by *storage.Store.
type SessionSource interface {
	LoadSession(ctx context.Context, name string) (session.Session, error)
}

// NotificationLog lists recent notifications. Implemented by *storage.Store.
type NotificationLog interface {
	RecentNotifications(ctx context.Context, limit int) ([]notify.Notification, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Workspaces    WorkspaceSource
	Sessions      SessionSource
	Notifications NotificationLog
}

// NewMCPServer creates an MCP server exposing the job tracker and profile
// of the session stored by `jobtrail login`.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"jobtrail",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("jobtrail: the user's tracked job applications and career profile."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("list_jobs",
			mcp.WithDescription("List tracked jobs, optionally filtered. Filter values must match exactly; query is a substring of title or company."),
			mcp.WithString("query", mcp.Description("Text to search in title and company")),
			mcp.WithString("status", mcp.Description("Application status, e.g. Applied"), mcp.Enum(statusNames()...)),
			mcp.WithString("jobType", mcp.Description("Job type, e.g. Full Time")),
			mcp.WithString("workMode", mcp.Description("Work mode, e.g. Remote")),
			mcp.WithString("location", mcp.Description("Substring of the job location")),
		),
		mcpListJobs(deps),
	)

	s.AddTool(
		mcp.NewTool("job_stats",
			mcp.WithDescription("Count tracked jobs by application status."),
		),
		mcpJobStats(deps),
	)

	s.AddTool(
		mcp.NewTool("update_job_status",
			mcp.WithDescription("Change the application status of a tracked job."),
			mcp.WithString("id", mcp.Description("Job id"), mcp.Required()),
			mcp.WithString("status", mcp.Description("New status"), mcp.Required(), mcp.Enum(statusNames()...)),
		),
		mcpUpdateStatus(deps),
	)

	s.AddTool(
		mcp.NewTool("update_job_notes",
			mcp.WithDescription("Replace the notes of a tracked job. An empty value clears them."),
			mcp.WithString("id", mcp.Description("Job id"), mcp.Required()),
			mcp.WithString("notes", mcp.Description("New notes")),
		),
		mcpUpdateNotes(deps),
	)

	s.AddTool(
		mcp.NewTool("analyze_job",
			mcp.WithDescription("Analyze a job posting against the profile and start tracking it. Pass a url, or title, company, location and description."),
			mcp.WithString("url", mcp.Description("Job posting URL")),
			mcp.WithString("title", mcp.Description("Job title")),
			mcp.WithString("company", mcp.Description("Company name")),
			mcp.WithString("location", mcp.Description("Job location")),
			mcp.WithString("description", mcp.Description("Full posting text")),
		),
		mcpAnalyzeJob(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"user://profile",
			"User Profile",
			mcp.WithResourceDescription("Career profile as JSON, with a one-paragraph summary"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfile(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"user://notifications",
			"Recent Notifications",
			mcp.WithResourceDescription("Last 10 outcomes of job and profile changes"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceNotifications(deps),
	)

	return s
}

func statusNames() []string {
	out := make([]string, len(jobs.Statuses))
	for i, s := range jobs.Statuses {
		out[i] = string(s)
	}
	return out
}

// mcpWorkspace attaches the stored session to ctx and returns its workspace.
func mcpWorkspace(ctx context.Context, deps MCPDeps) (context.Context, *Workspace, error) {
	sess, err := deps.Sessions.LoadSession(ctx, storage.DefaultSession)
	if err != nil || !sess.Valid(time.Now()) {
		return ctx, nil, session.ErrAuthRequired
	}
	ctx = session.WithSession(ctx, sess)
	ws, err := deps.Workspaces.Workspace(ctx)
	return ctx, ws, err
}

func mcpFailure(err error) *mcp.CallToolResult {
	if errors.Is(err, session.ErrAuthRequired) {
		return mcpError("not signed in: run `jobtrail login` first")
	}
	return mcpError(err.Error())
}

func mcpListJobs(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		_, ws, err := mcpWorkspace(ctx, deps)
		if err != nil {
			return mcpFailure(err), nil
		}

		list := ws.Jobs.List(jobs.Filters{
			Query:    req.GetString("query", ""),
			Status:   req.GetString("status", ""),
			JobType:  req.GetString("jobType", ""),
			WorkMode: req.GetString("workMode", ""),
			Location: req.GetString("location", ""),
		})
		if len(list) == 0 {
			return mcpText("[]"), nil
		}

		type jobResult struct {
			ID       string  `json:"id"`
			Title    string  `json:"title"`
			Company  string  `json:"company"`
			Location string  `json:"location"`
			Status   string  `json:"status"`
			Match    float64 `json:"match,omitempty"`
			Source   string  `json:"source,omitempty"`
			Notes    string  `json:"notes,omitempty"`
		}
		results := make([]jobResult, len(list))
		for i, j := range list {
			results[i] = jobResult{
				ID:       j.ID,
				Title:    j.Title,
				Company:  j.Company,
				Location: j.Location,
				Status:   string(j.Status),
				Source:   j.Source(),
				Notes:    j.Notes,
			}
			if m := j.Match(); m >= 0 {
				results[i].Match = m
			}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal jobs: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpJobStats(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		_, ws, err := mcpWorkspace(ctx, deps)
		if err != nil {
			return mcpFailure(err), nil
		}
		b, err := json.Marshal(ws.Jobs.Stats())
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal stats: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpUpdateStatus(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		status, err := req.RequireString("status")
		if err != nil {
			return mcpError("status is required"), nil
		}

		ctx, ws, err := mcpWorkspace(ctx, deps)
		if err != nil {
			return mcpFailure(err), nil
		}
		m, err := ws.Jobs.SetStatus(ctx, id, status)
		if err != nil {
			return mcpFailure(err), nil
		}
		return settled(ctx, m.Wait, fmt.Sprintf("Job %s is now %s", id, status)), nil
	}
}

func mcpUpdateNotes(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		notes := req.GetString("notes", "")

		ctx, ws, err := mcpWorkspace(ctx, deps)
		if err != nil {
			return mcpFailure(err), nil
		}
		m, err := ws.Jobs.SetNotes(ctx, id, notes)
		if err != nil {
			return mcpFailure(err), nil
		}
		return settled(ctx, m.Wait, fmt.Sprintf("Notes updated for job %s", id)), nil
	}
}

// settled waits for a change to be confirmed or rolled back.
func settled(ctx context.Context, wait func(context.Context) error, ok string) *mcp.CallToolResult {
	ctx, cancel := context.WithTimeout(ctx, mcpSettleTimeout)
	defer cancel()
	err := wait(ctx)
	switch {
	case err == nil:
		return mcpText(ok)
	case errors.Is(err, context.DeadlineExceeded):
		return mcpText(ok + " (still waiting for the backend to confirm)")
	default:
		return mcpError(err.Error())
	}
}

func mcpAnalyzeJob(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, ws, err := mcpWorkspace(ctx, deps)
		if err != nil {
			return mcpFailure(err), nil
		}

		var job jobs.Job
		if u := req.GetString("url", ""); strings.TrimSpace(u) != "" {
			job, err = ws.Jobs.AddByURL(ctx, u)
		} else {
			job, err = ws.Jobs.AddManual(ctx, gateway.ManualJob{
				Title:       req.GetString("title", ""),
				Company:     req.GetString("company", ""),
				Location:    req.GetString("location", ""),
				Description: req.GetString("description", ""),
			})
		}
		if err != nil {
			return mcpFailure(err), nil
		}

		b, err := json.Marshal(job)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal job: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceProfile(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ctx, ws, err := mcpWorkspace(ctx, deps)
		if err != nil {
			return nil, fmt.Errorf("failed to open workspace: %w", err)
		}
		p, err := ws.Profile.Profile(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get profile: %w", err)
		}
		summary, err := ws.Profile.Summary(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to summarize profile: %w", err)
		}

		b, err := json.Marshal(profileResponse{Profile: p, Summary: summary})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceNotifications(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		list, err := deps.Notifications.RecentNotifications(ctx, 10)
		if err != nil {
			return nil, fmt.Errorf("failed to get notifications: %w", err)
		}
		if list == nil {
			list = []notify.Notification{}
		}

		b, err := json.Marshal(list)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal notifications: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
