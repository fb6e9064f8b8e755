package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/portalchat/internal/api"
	"github.com/matheus3301/portalchat/internal/config"
	"github.com/matheus3301/portalchat/internal/logging"
	"github.com/matheus3301/portalchat/internal/tui"
	"github.com/matheus3301/portalchat/internal/tui/model"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	asFlag := flag.String("as", os.Getenv(config.EnvPrefix+"USER"), "acting user as id[:name[:role]]")
	flag.Parse()

	cfg, err := config.LoadOrDefault(config.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	_ = config.LoadEnv(cfg, config.EnvPath())

	profile := config.ResolveProfile(*profileFlag, cfg)
	if err := config.ValidateName(profile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *asFlag == "" {
		fmt.Fprintf(os.Stderr, "error: --as is required (or set %sUSER)\n", config.EnvPrefix)
		os.Exit(1)
	}
	viewer, err := tui.ParseUser(*asFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	socketPath := cfg.SocketFor(profile)

	// Check daemon health; auto-start if needed.
	if !daemonReady(socketPath) {
		fmt.Fprintf(os.Stderr, "daemon not running for profile %q, starting...\n", profile)
		if err := startDaemon(profile); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start daemon: %v\n", err)
			os.Exit(1)
		}
		if !waitForDaemon(socketPath, 10*time.Second) {
			fmt.Fprintf(os.Stderr, "daemon did not become ready\n")
			os.Exit(1)
		}
	}

	logger, err := logging.NewFile(filepath.Join(config.LogDir(profile), "portalchattui.log"), profile, cfg.Log.Level)
	if err != nil {
		logger = zap.NewNop()
	}
	defer func() { _ = logger.Sync() }()

	c, err := api.Dial(socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to daemon: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	vm := model.NewViewModel(c, viewer, model.Options{
		RecentWindow: cfg.Notify.RecentWindow.Duration,
		ToastTTL:     cfg.Notify.ToastTTL.Duration,
		Logger:       logger,
	})
	app := tui.NewApp(vm, profile, logger)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// daemonReady checks that a daemon answers Status on the socket.
func daemonReady(socketPath string) bool {
	c, err := api.Dial(socketPath)
	if err != nil {
		return false
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := c.Status(ctx)
	return err == nil && resp.Status == "READY"
}

func startDaemon(profile string) error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	daemon := filepath.Join(filepath.Dir(executable), "portalchatd")

	if _, err := os.Stat(daemon); err != nil {
		daemon = "portalchatd"
	}

	cmd := exec.Command(daemon, "--profile", profile)
	// Inherit stderr so daemon startup errors are visible.
	cmd.Stderr = os.Stderr
	return cmd.Start()
}

// waitForDaemon polls Status until the daemon reports ready.
func waitForDaemon(socketPath string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if daemonReady(socketPath) {
			return true
		}
		time.Sleep(300 * time.Millisecond)
	}
	return false
}
