package main

import (
	"context"
	"encoding/json"
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

	"github.com/wingmanlabs/wingman/internal/anthropic"
	"github.com/wingmanlabs/wingman/internal/api"
	"github.com/wingmanlabs/wingman/internal/config"
	"github.com/wingmanlabs/wingman/internal/profile"
	"github.com/wingmanlabs/wingman/internal/storage"
	"github.com/wingmanlabs/wingman/internal/turn"
	"github.com/wingmanlabs/wingman/internal/uploads"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the wingman server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running wingman server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show wingman system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "wingman.pid")
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

func runServer() error {
	fmt.Fprintf(os.Stderr, "wingman version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	if cfg.Anthropic.APIKey == "" {
		slog.Warn("no Anthropic API key configured, serving canned fallbacks only")
	}

	// Refuse to start if another instance already answers on our port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("wingman is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("wingman is already running on port %d", cfg.Server.Port)
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

	// Build the assist pipeline.
	profiles := profile.NewManager(store)
	gateway := anthropic.NewClient(cfg.Anthropic.APIKey).WithModel(cfg.Anthropic.Model)
	upStore, err := uploads.NewStore(cfg.Uploads.Dir)
	if err != nil {
		return fmt.Errorf("opening uploads store: %w", err)
	}
	turns := turn.NewHandler(profiles, gateway, upStore, turn.NewStoreAuditor(store))

	handler := api.NewHandler(api.Deps{
		Store:      store,
		Profiles:   profiles,
		Turns:      turns,
		Uploads:    upStore,
		AdminToken: cfg.Admin.Token,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	worker := uploads.NewWorker(upStore, cfg.Uploads.Retention, 10*time.Minute)
	go worker.Run(ctx)

	// The MCP server rides its own port on a streamable HTTP transport so
	// stdout stays free for logs.
	runner := api.NewTurnRunner(
		func(ctx context.Context, userID, theirMessage, who string) ([]string, error) {
			res, err := turns.HandleSuggest(ctx, userID, theirMessage, who)
			if err != nil {
				return nil, err
			}
			return res.Suggestions, nil
		},
		func(ctx context.Context, userID, message string) (string, error) {
			res, err := turns.HandleMessage(ctx, userID, message)
			if err != nil {
				return "", err
			}
			return res.Reply, nil
		},
	)
	mcpSrv := api.NewMCPServer(api.MCPDeps{Profiles: profiles, Turns: runner})
	mcpHTTP := server.NewStreamableHTTPServer(mcpSrv)
	mcpAddr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.MCPPort)
	go func() {
		if err := mcpHTTP.Start(mcpAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("MCP server error", "error", err)
		}
	}()
	slog.Info("MCP server started", "addr", mcpAddr)

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "wingman listening on %s\n", addr)
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
	if err := mcpHTTP.Shutdown(shutdownCtx); err != nil {
		slog.Warn("MCP server shutdown", "error", err)
	}
	return srv.Shutdown(shutdownCtx)
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
		printError("wingman is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop wingman (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to wingman (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if cfg.Anthropic.APIKey != "" {
		printStatus("Anthropic", "key configured, model %s", cfg.Anthropic.Model)
	} else {
		printStatus("Anthropic", "no key (canned fallbacks only)")
	}

	printStatus("MCP port", "%d", cfg.Server.MCPPort)
	printStatus("Uploads", "%s (retention %s)", cfg.Uploads.Dir, cfg.Uploads.Retention)

	// Show interaction count if the server is running and admin routes are enabled.
	if cfg.Admin.Token != "" && resp != nil && resp.StatusCode == 200 {
		interResp, err := apiGet(client, serverURL+"/admin/interactions?limit=100", cfg.Admin.Token)
		if err == nil {
			var interactions []json.RawMessage
			if json.NewDecoder(interResp.Body).Decode(&interactions) == nil {
				printStatus("Interactions", "%s", countLabel(len(interactions), 100))
			}
			interResp.Body.Close()
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}

func apiGet(client *http.Client, url, token string) (*http.Response, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return client.Do(req)
}
