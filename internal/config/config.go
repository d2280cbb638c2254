// Package config assembles the typed, nested Config document described in
// spec.md §6 "Configuration". Grounded on woozymasta/zenit/internal/config:
// the document shape (deeply nested, per-concern groups) argues for a JSON
// file as the primary source, with github.com/jessevdk/go-flags layered on
// top for the handful of process-level overrides that make sense as
// flags/env (--config, --port, --log-level) rather than zenit's all-flags
// surface.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	bonkroom "github.com/bonkroom/server"
	"github.com/bonkroom/server/internal/logging"
)

// Config is the complete, typed configuration document.
type Config struct {
	Server       Server                     `json:"server"`
	Restrictions Restrictions               `json:"restrictions"`
	GameSettings bonkroom.GameSettings      `json:"defaultGameSettings"`
	Logger       logging.Config             `json:"logger"`
}

// Server holds the room's identity and admission-level knobs.
type Server struct {
	Port                  int    `json:"port"`
	UseHTTPS              bool   `json:"useHttps"`
	RoomNameOnStartup     string `json:"roomNameOnStartup"`
	RoomPasswordOnStartup string `json:"roomPasswordOnStartup"`
	MaxPlayers            int    `json:"maxPlayers"`
	AutoAssignHost        bool   `json:"autoAssignHost"`
	TimeStampFormat       string `json:"timeStampFormat"`
	BanListPath           string `json:"banListPath"`
	ChatLogDir            string `json:"chatLogDir"`
	TLSCertFile           string `json:"tlsCertFile"`
	TLSKeyFile            string `json:"tlsKeyFile"`
}

// Restrictions groups everything the admission pipeline (spec.md §4.F)
// consults plus the per-action ratelimit table (§4.B).
type Restrictions struct {
	Usernames            UsernameRestrictions       `json:"usernames"`
	Levels               LevelRestrictions          `json:"levels"`
	MaxChatMessageLength int                        `json:"maxChatMessageLength"`
	RateLimits           map[string]RateLimitConfig `json:"ratelimits"`
}

// UsernameRestrictions is restrictions.usernames.
type UsernameRestrictions struct {
	NoDuplicates  bool   `json:"noDuplicates"`
	NoEmptyNames  bool   `json:"noEmptyNames"`
	MaxLength     int    `json:"maxLength"`
	DisallowRegex string `json:"disallowRegex"`
}

// LevelRestrictions is restrictions.levels.
type LevelRestrictions struct {
	MinLevel         int  `json:"minLevel"`
	MaxLevel         int  `json:"maxLevel"`
	OnlyAllowNumbers bool `json:"onlyAllowNumbers"`
	CensorLevels     bool `json:"censorLevels"`
}

// RateLimitConfig is one entry of restrictions.ratelimits.<action>. Timeframe
// and Restore are seconds on the wire, matching the spec's document shape;
// callers convert to time.Duration when building internal/ratelimit.Config.
type RateLimitConfig struct {
	Amount    int `json:"amount"`
	Timeframe int `json:"timeframe"`
	Restore   int `json:"restore"`
}

// Default returns the configuration the spec's §8 end-to-end scenarios are
// written against, with every ratelimit action class present so a fresh
// deployment never silently falls back to "unconfigured = always allowed"
// (internal/ratelimit.Limiter.Check) for an action the spec names.
func Default() *Config {
	return &Config{
		Server: Server{
			Port:              3000,
			RoomNameOnStartup: "bonk.io room",
			MaxPlayers:        6,
			AutoAssignHost:    true,
			TimeStampFormat:   "2006-01-02T15:04:05Z07:00",
			BanListPath:       "banlist.json",
			ChatLogDir:        "chatlogs",
		},
		Restrictions: Restrictions{
			Usernames: UsernameRestrictions{
				NoDuplicates: true,
				NoEmptyNames: true,
				MaxLength:    15,
			},
			Levels: LevelRestrictions{
				OnlyAllowNumbers: true,
			},
			MaxChatMessageLength: 150,
			RateLimits: map[string]RateLimitConfig{
				bonkroom.ActionJoining:            {Amount: 6, Timeframe: 4, Restore: 8},
				bonkroom.ActionChatting:           {Amount: 2, Timeframe: 1, Restore: 2},
				bonkroom.ActionChangingTeams:      {Amount: 6, Timeframe: 3, Restore: 6},
				bonkroom.ActionReadying:           {Amount: 6, Timeframe: 3, Restore: 6},
				bonkroom.ActionTransferringHost:   {Amount: 3, Timeframe: 3, Restore: 6},
				bonkroom.ActionChangingMode:       {Amount: 6, Timeframe: 3, Restore: 6},
				bonkroom.ActionChangingMap:        {Amount: 6, Timeframe: 3, Restore: 6},
				bonkroom.ActionStartGameCountdown: {Amount: 6, Timeframe: 3, Restore: 6},
				bonkroom.ActionStartingEndingGame: {Amount: 4, Timeframe: 3, Restore: 6},
			},
		},
		GameSettings: bonkroom.GameSettings{
			Map:         "",
			GameType:    0,
			RoundsToWin: 2,
			Engine:      "b",
			Mode:        "b",
			Balance:     map[int]int{},
		},
		Logger: logging.Config{Level: "info", Format: "console", Output: "stderr"},
	}
}

// Overrides is the flags/env surface layered on top of the JSON document.
type Overrides struct {
	ConfigPath string `short:"c" long:"config" env:"BONKROOM_CONFIG" description:"path to the JSON config file" default:"config.json"`
	Port       int    `long:"port" env:"BONKROOM_PORT" description:"override server.port"`
	LogLevel   string `long:"log-level" env:"BONKROOM_LOG_LEVEL" description:"override logger.level"`
}

// Load parses args for Overrides, reads the JSON document at the resolved
// config path (a missing file is not an error - Default()'s values stand),
// and applies the flag/env overrides on top. It terminates the process on
// --help and returns an error for any other flags parse error.
func Load(args []string) (*Config, error) {
	var ov Overrides
	parser := flags.NewParser(&ov, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, fmt.Errorf("config: failed to parse flags: %w", err)
	}

	cfg := Default()

	if data, err := os.ReadFile(ov.ConfigPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", ov.ConfigPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: failed to read %s: %w", ov.ConfigPath, err)
	}

	if ov.Port != 0 {
		cfg.Server.Port = ov.Port
	}
	if ov.LogLevel != "" {
		cfg.Logger.Level = ov.LogLevel
	}

	return cfg, nil
}
