package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	bonkroom "github.com/bonkroom/server"
)

func TestDefaultCoversEveryRatelimitAction(t *testing.T) {
	t.Parallel()

	cfg := Default()
	actions := []string{
		bonkroom.ActionJoining,
		bonkroom.ActionChatting,
		bonkroom.ActionChangingTeams,
		bonkroom.ActionReadying,
		bonkroom.ActionTransferringHost,
		bonkroom.ActionChangingMode,
		bonkroom.ActionChangingMap,
		bonkroom.ActionStartGameCountdown,
		bonkroom.ActionStartingEndingGame,
	}
	for _, action := range actions {
		if _, ok := cfg.Restrictions.RateLimits[action]; !ok {
			t.Errorf("Default() is missing a ratelimit entry for %q", action)
		}
	}
}

func TestLoadWithoutConfigFileUsesDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg, err := Load([]string{"--config", filepath.Join(dir, "absent.json")})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != Default().Server.Port {
		t.Errorf("Port = %d, want the default %d", cfg.Server.Port, Default().Server.Port)
	}
}

func TestLoadMergesConfigFileOverDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	doc := map[string]any{
		"server": map[string]any{
			"roomNameOnStartup": "custom room",
		},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("os.WriteFile() error = %v", err)
	}

	cfg, err := Load([]string{"--config", path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.RoomNameOnStartup != "custom room" {
		t.Errorf("RoomNameOnStartup = %q, want custom room", cfg.Server.RoomNameOnStartup)
	}
	if cfg.Server.MaxPlayers != Default().Server.MaxPlayers {
		t.Errorf("MaxPlayers = %d, want the default %d (untouched by the file)", cfg.Server.MaxPlayers, Default().Server.MaxPlayers)
	}
}

func TestLoadFlagOverridesWinOverConfigFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	data, err := json.Marshal(map[string]any{"server": map[string]any{"port": 4000}})
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("os.WriteFile() error = %v", err)
	}

	cfg, err := Load([]string{"--config", path, "--port", "5000"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Port = %d, want 5000 (the flag, not the file's 4000)", cfg.Server.Port)
	}
}
