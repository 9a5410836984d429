package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/jobtrail/internal/api"
	"github.com/kalambet/jobtrail/internal/config"
	"github.com/kalambet/jobtrail/internal/gateway"
	"github.com/kalambet/jobtrail/internal/storage"
	"github.com/kalambet/jobtrail/internal/upload"
)

// keepNotifications is how many entries of the notification log survive a
// shutdown.
const keepNotifications = 500

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the dashboard server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

func init() {
	startCmd.Flags().Bool("mcp", true, "also serve the assistant tools over stdio")
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running dashboard server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server, session and job list status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "jobtrail.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "jobtrail version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := setupLogging(cfg.Log.Level, true)

	// Refuse to start twice: the health endpoint answers if a server is up.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("jobtrail is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("jobtrail is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	gw, err := gateway.New(cfg.API.BaseURL,
		gateway.WithTimeout(cfg.API.TimeoutDuration()),
		gateway.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	dashboard := api.NewServer(api.Deps{
		Gateway:          gw,
		Store:            store,
		Upload:           upload.Policy{Extensions: cfg.Upload.Extensions(), MaxSizeMB: cfg.Upload.MaxSizeMB},
		AnalyzePerMinute: cfg.Analyze.RatePerMinute,
		Logger:           logger,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           dashboard.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// The assistant tools use the session stored by `jobtrail login`.
	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Workspaces:    dashboard,
			Sessions:      store,
			Notifications: store,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "jobtrail dashboard listening on http://%s (backend %s)\n", addr, gw.BaseURL())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// Let in-flight changes settle so the snapshot reflects their outcome.
	if err := dashboard.Close(shutdownCtx); err != nil {
		slog.Warn("saving job snapshot", "error", err)
	}
	if n, err := store.PruneNotifications(shutdownCtx, keepNotifications); err != nil {
		slog.Warn("pruning notification log", "error", err)
	} else if n > 0 {
		slog.Debug("notification log pruned", "removed", n)
	}
	return nil
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("jobtrail is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop jobtrail (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to jobtrail (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port))
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}
	printStatus("Backend", "%s", cfg.API.BaseURL)

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		printStatus("Storage", "unavailable (%v)", err)
		return nil
	}
	defer store.Close()

	sess, err := store.LoadSession(ctx, storage.DefaultSession)
	switch {
	case err != nil:
		printStatus("Session", "signed out")
	case !sess.Valid(time.Now()):
		printStatus("Session", "expired on %s", sess.ExpiresAt.Local().Format(time.DateTime))
	default:
		printStatus("Session", "signed in until %s", sess.ExpiresAt.Local().Format(time.DateTime))
	}

	if info, err := store.SnapshotInfo(ctx); err == nil {
		if info.Count == 0 {
			printStatus("Jobs", "none saved")
		} else {
			printStatus("Jobs", "%d saved %s", info.Count, ago(time.Since(info.SavedAt)))
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func ago(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d min ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%d h ago", int(d.Hours()))
	}
	return fmt.Sprintf("%d days ago", int(d.Hours()/24))
}
