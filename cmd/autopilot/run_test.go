package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/steveyegge/autopilot/internal/config"
	"github.com/steveyegge/autopilot/internal/control"
	"github.com/steveyegge/autopilot/internal/session"
)

func TestSocketPathPrefersConfig(t *testing.T) {
	cfg := &config.SessionConfig{SocketPath: "/tmp/custom.sock"}
	if got := socketPath(cfg); got != "/tmp/custom.sock" {
		t.Errorf("socketPath = %q, want configured path", got)
	}
}

// Starts and stops a control server the way runSession wires it, against a
// live registry handler.
func TestControlServerWiring(t *testing.T) {
	ctx := context.Background()
	registry := session.NewRegistry(session.DefaultMaxSessions)

	server, err := control.NewServer(filepath.Join(t.TempDir(), "autopilot.sock"), registry.HandleCommand)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	if err := server.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !server.IsRunning() {
		t.Error("IsRunning = false after Start")
	}
	if err := server.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
