package roomstate

import (
	"testing"

	"github.com/bonkroom/server/internal/config"
)

// joinPlayer drives a connection through JOIN_REQUEST and returns its
// assigned player id, failing the test if admission did not succeed.
func joinPlayer(t *testing.T, e *Engine, conn *fakeConn, userName string) int {
	t.Helper()
	e.handleJoinRequest(conn, args(joinPayload(userName, false, 5, nil)))
	frames := conn.framesWithOpcode(opOutServerInformForTest)
	if len(frames) != 1 {
		t.Fatalf("join(%q) produced %d SERVER_INFORM frames, want 1", userName, len(frames))
	}
	id, ok := frames[0].Args[0].(int)
	if !ok {
		t.Fatalf("join(%q) SERVER_INFORM id = %v (%T), want int", userName, frames[0].Args[0], frames[0].Args[0])
	}
	return id
}

func TestHandleTimesyncIgnoresAdmission(t *testing.T) {
	t.Parallel()

	e := testEngine(t, testConfig())
	conn := newFakeConn("c1", "1.1.1.1")

	e.handleTimesync(conn, args(map[string]any{"id": 7}))

	frame, ok := conn.lastFrame()
	if !ok || frame.Opcode != "23" {
		t.Fatalf("timesync reply = %+v, want opcode 23", frame)
	}
}

// TestChatMessageRatelimited exercises §8 scenario S3: a tight chatting
// limit blocks the second message and reports chat_rate_limit.
func TestChatMessageRatelimited(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Restrictions.RateLimits["chatting"] = config.RateLimitConfig{Amount: 1, Timeframe: 3600, Restore: 3600}
	e := testEngine(t, cfg)

	alice := newFakeConn("c-alice", "1.1.1.1")
	joinPlayer(t, e, alice, "alice")

	e.handleChatMessage(alice, args(map[string]any{"message": "hello"}))
	if f := alice.framesWithOpcode(bonkOutChatMessageForTest); len(f) != 1 {
		t.Fatalf("first chat message frames = %d, want 1", len(f))
	}

	e.handleChatMessage(alice, args(map[string]any{"message": "again"}))
	frame, ok := alice.lastFrame()
	if !ok || frame.Opcode != opOutErrorMessageForTest || frame.Args[0] != "chat_rate_limit" {
		t.Fatalf("second chat message = %+v, want ERROR_MESSAGE chat_rate_limit", frame)
	}
}

// TestChangeModeRequiresHost exercises §8 scenario S4: a non-host's
// CHANGE_MODE is rejected with not_hosting and leaves settings untouched.
func TestChangeModeRequiresHost(t *testing.T) {
	t.Parallel()

	e := testEngine(t, testConfig())
	alice := newFakeConn("c-alice", "1.1.1.1")
	joinPlayer(t, e, alice, "alice") // becomes host

	bob := newFakeConn("c-bob", "2.2.2.2")
	joinPlayer(t, e, bob, "bob")

	e.handleChangeMode(bob, args(map[string]any{"ga": "b", "mo": "ar"}))
	frame, ok := bob.lastFrame()
	if !ok || frame.Args[0] != "not_hosting" {
		t.Fatalf("non-host change mode = %+v, want not_hosting", frame)
	}
	if e.room.GameSettings.Mode == "ar" {
		t.Error("non-host change mode mutated GameSettings.Mode")
	}

	e.handleChangeMode(alice, args(map[string]any{"ga": "b", "mo": "ar"}))
	if e.room.GameSettings.Mode != "ar" {
		t.Errorf("host change mode: Mode = %q, want ar", e.room.GameSettings.Mode)
	}
}

// TestTransferHostThenDisconnectReassigns exercises §8 scenario S5: the host
// transfers to another player, then disconnects themself (no longer host),
// and finally the new host disconnecting reassigns to whoever remains.
func TestTransferHostThenDisconnectReassigns(t *testing.T) {
	t.Parallel()

	e := testEngine(t, testConfig())
	alice := newFakeConn("c-alice", "1.1.1.1")
	aliceID := joinPlayer(t, e, alice, "alice")

	bob := newFakeConn("c-bob", "2.2.2.2")
	bobID := joinPlayer(t, e, bob, "bob")

	carol := newFakeConn("c-carol", "3.3.3.3")
	joinPlayer(t, e, carol, "carol")

	e.handleTransferHost(alice, args(map[string]any{"id": bobID}))
	if e.room.HostID != bobID {
		t.Fatalf("HostID after transfer = %d, want %d", e.room.HostID, bobID)
	}

	e.OnDisconnect(alice, true)
	if e.room.HostID != bobID {
		t.Errorf("HostID after non-host disconnect = %d, want unchanged %d", e.room.HostID, bobID)
	}

	e.OnDisconnect(bob, true)
	if e.room.HostID == bobID || e.room.HostID == -1 {
		t.Errorf("HostID after host disconnect = %d, want reassigned to a remaining player", e.room.HostID)
	}
	if e.room.HostID == aliceID {
		t.Errorf("HostID reassigned to a player who already left: %d", e.room.HostID)
	}
}

// TestSendInputsNotEchoedToSender checks inputs relay to everyone else but
// never back to the sender.
func TestSendInputsNotEchoedToSender(t *testing.T) {
	t.Parallel()

	e := testEngine(t, testConfig())
	alice := newFakeConn("c-alice", "1.1.1.1")
	joinPlayer(t, e, alice, "alice")
	bob := newFakeConn("c-bob", "2.2.2.2")
	joinPlayer(t, e, bob, "bob")

	e.handleSendInputs(alice, args(map[string]any{"x": 1}))

	if f := alice.framesWithOpcode("7"); len(f) != 0 {
		t.Errorf("sender received its own SEND_INPUTS echo: %+v", f)
	}
	if f := bob.framesWithOpcode("7"); len(f) != 1 {
		t.Errorf("bob SEND_INPUTS frames = %d, want 1", len(f))
	}
}

// TestChangeOwnTeamHostOnlyWhenLocked checks the team-lock gate.
func TestChangeOwnTeamHostOnlyWhenLocked(t *testing.T) {
	t.Parallel()

	e := testEngine(t, testConfig())
	alice := newFakeConn("c-alice", "1.1.1.1")
	joinPlayer(t, e, alice, "alice")
	bob := newFakeConn("c-bob", "2.2.2.2")
	joinPlayer(t, e, bob, "bob")

	e.room.GameSettings.TeamsLocked = true

	e.handleChangeOwnTeam(bob, args(map[string]any{"team": 2}))
	frame, ok := bob.lastFrame()
	if !ok || frame.Args[0] != "not_hosting" {
		t.Fatalf("non-host change own team while locked = %+v, want not_hosting", frame)
	}

	e.room.GameSettings.TeamsLocked = false
	e.handleChangeOwnTeam(bob, args(map[string]any{"team": 2}))
	if f := bob.framesWithOpcode(opOutErrorMessageForTest); len(f) != 1 {
		t.Fatalf("unlocked change own team produced %d error frames, want 1 (carried over from the locked attempt)", len(f))
	}
	if f := bob.framesWithOpcode(bonkOutChangeTeamForTest); len(f) != 1 {
		t.Errorf("unlocked change own team CHANGE_TEAM frames = %d, want 1", len(f))
	}
}

const bonkOutChatMessageForTest = "20"
const bonkOutChangeTeamForTest = "18"
