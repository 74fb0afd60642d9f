package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/steveyegge/autopilot/internal/config"
)

// socketPath returns the control socket path for a new session.
func socketPath(cfg *config.SessionConfig) string {
	if cfg.SocketPath != "" {
		return cfg.SocketPath
	}
	if _, err := os.Stat(".autopilot"); err == nil {
		return filepath.Join(".autopilot", "autopilot.sock")
	}
	return filepath.Join("/tmp", fmt.Sprintf("autopilot-%s.sock", currentUser()))
}

// findControlSocket locates the control socket of a running session.
func findControlSocket() (string, error) {
	cfg, err := config.Load(configPath)
	if err == nil && cfg.SocketPath != "" {
		if _, serr := os.Stat(cfg.SocketPath); serr == nil {
			return cfg.SocketPath, nil
		}
	}

	localSocket := filepath.Join(".autopilot", "autopilot.sock")
	if _, err := os.Stat(localSocket); err == nil {
		return localSocket, nil
	}

	userSocket := filepath.Join("/tmp", fmt.Sprintf("autopilot-%s.sock", currentUser()))
	if _, err := os.Stat(userSocket); err == nil {
		return userSocket, nil
	}

	// Any other autopilot socket in /tmp (another instance).
	entries, err := os.ReadDir("/tmp")
	if err == nil {
		for _, entry := range entries {
			name := entry.Name()
			if strings.HasPrefix(name, "autopilot-") && filepath.Ext(name) == ".sock" {
				return filepath.Join("/tmp", name), nil
			}
		}
	}

	return "", fmt.Errorf("no running session found (no control socket)")
}

func currentUser() string {
	user := os.Getenv("USER")
	if user == "" {
		user = "unknown"
	}
	return user
}
