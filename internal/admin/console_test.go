package admin

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bonkroom/server/internal/banstore"
	"github.com/bonkroom/server/internal/chatlog"
	"github.com/bonkroom/server/internal/config"
	"github.com/bonkroom/server/internal/roomstate"
)

func testConsole(t *testing.T) (*Console, *bytes.Buffer) {
	t.Helper()

	dir := t.TempDir()
	bans, err := banstore.Load(filepath.Join(dir, "banlist.json"))
	if err != nil {
		t.Fatalf("banstore.Load() error = %v", err)
	}
	chat := chatlog.New(filepath.Join(dir, "chatlogs"), "2006-01-02T15:04:05Z07:00")
	room := roomstate.New(config.Default(), bans, chat)

	var out bytes.Buffer
	return New(room, &out), &out
}

func TestConsoleRunProcessesLinesUntilEOF(t *testing.T) {
	t.Parallel()

	console, out := testConsole(t)
	console.Run(strings.NewReader("roomname my room\nhelp\n"))

	if !strings.Contains(out.String(), "commands:") {
		t.Errorf("output = %q, want the help text after 'help'", out.String())
	}
}

func TestConsoleRoomnameAndPassword(t *testing.T) {
	t.Parallel()

	console, _ := testConsole(t)
	console.dispatch("roomname the best room")
	console.dispatch("password letmein")

	snap := console.room.Snapshot()
	if snap.RoomName != "the best room" {
		t.Errorf("RoomName = %q, want %q", snap.RoomName, "the best room")
	}
	if !snap.HasPassword {
		t.Error("HasPassword = false after setting one")
	}

	console.dispatch("password")
	if console.room.Snapshot().HasPassword {
		t.Error("HasPassword = true after clearing it with no argument")
	}
}

func TestConsoleKickUnknownIDReportsError(t *testing.T) {
	t.Parallel()

	console, out := testConsole(t)
	console.dispatch("kick 0")

	if !strings.Contains(out.String(), "kick failed") {
		t.Errorf("output = %q, want a kick failed message for a nonexistent player", out.String())
	}
}

func TestConsoleUnbanUnknownUsernameReportsNoMatch(t *testing.T) {
	t.Parallel()

	console, out := testConsole(t)
	console.dispatch("unban ghost")

	if !strings.Contains(out.String(), "no such username") {
		t.Errorf("output = %q, want a no-match message", out.String())
	}
}

func TestConsolePlayersEmptyRoomPrintsNothing(t *testing.T) {
	t.Parallel()

	console, out := testConsole(t)
	console.dispatch("players")

	if out.Len() != 0 {
		t.Errorf("output = %q, want empty for a room with no players", out.String())
	}
}

func TestConsoleCloseAndAbortClose(t *testing.T) {
	t.Parallel()

	console, _ := testConsole(t)
	console.dispatch("close")
	console.dispatch("abortclose")
}

func TestConsoleUnknownCommand(t *testing.T) {
	t.Parallel()

	console, out := testConsole(t)
	console.dispatch("flibbertigibbet")

	if !strings.Contains(out.String(), "unknown command") {
		t.Errorf("output = %q, want an unknown-command message", out.String())
	}
}

func TestConsoleWithIDRejectsNonInteger(t *testing.T) {
	t.Parallel()

	console, out := testConsole(t)
	console.dispatch("kick notanumber")

	if !strings.Contains(out.String(), "must be an integer") {
		t.Errorf("output = %q, want an integer-required message", out.String())
	}
}
