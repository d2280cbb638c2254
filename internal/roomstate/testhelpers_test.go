package roomstate

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bonkroom/server/internal/banstore"
	"github.com/bonkroom/server/internal/chatlog"
	"github.com/bonkroom/server/internal/config"
)

// sentFrame is one call to fakeConn.Send, captured for assertions.
type sentFrame struct {
	Opcode string
	Args   []any
}

// fakeConn is a minimal bonkroom.Conn used by this package's tests in place
// of a real websocket connection.
type fakeConn struct {
	mu     sync.Mutex
	id     string
	addr   string
	sent   []sentFrame
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
}

func newFakeConn(id, addr string) *fakeConn {
	ctx, cancel := context.WithCancel(context.Background())
	return &fakeConn{id: id, addr: addr, ctx: ctx, cancel: cancel}
}

func (c *fakeConn) ID() string              { return c.id }
func (c *fakeConn) RemoteAddr() string      { return c.addr }
func (c *fakeConn) Context() context.Context { return c.ctx }

func (c *fakeConn) Send(ctx context.Context, opcode string, args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sentFrame{Opcode: opcode, Args: args})
	return nil
}

func (c *fakeConn) Close(ctx context.Context) error {
	return c.CloseWithCode(ctx, 1000, "")
}

func (c *fakeConn) CloseWithCode(ctx context.Context, code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cancel()
	return nil
}

func (c *fakeConn) IsAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *fakeConn) framesWithOpcode(opcode string) []sentFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []sentFrame
	for _, f := range c.sent {
		if f.Opcode == opcode {
			out = append(out, f)
		}
	}
	return out
}

func (c *fakeConn) lastFrame() (sentFrame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return sentFrame{}, false
	}
	return c.sent[len(c.sent)-1], true
}

// testEngine returns an Engine wired for tests: a ban store and chat log
// backed by a fresh temp directory, and the given config.
func testEngine(t *testing.T, cfg *config.Config) *Engine {
	t.Helper()

	dir := t.TempDir()
	bans, err := banstore.Load(filepath.Join(dir, "banlist.json"))
	if err != nil {
		t.Fatalf("banstore.Load() error = %v", err)
	}
	chat := chatlog.New(filepath.Join(dir, "chatlogs"), cfg.Server.TimeStampFormat)

	return New(cfg, bans, chat)
}

// testConfig returns config.Default() with the ratelimits collapsed so
// tests exercise admission/dispatch logic without tripping unrelated
// limiters, unless a test explicitly restores a tighter limit.
func testConfig() *config.Config {
	cfg := config.Default()
	for action := range cfg.Restrictions.RateLimits {
		cfg.Restrictions.RateLimits[action] = config.RateLimitConfig{Amount: 1000, Timeframe: 3600, Restore: 3600}
	}
	return cfg
}

// rawArg marshals v into a json.RawMessage wire argument, the shape a
// decoded frame would carry.
func rawArg(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func args(vs ...any) []json.RawMessage {
	out := make([]json.RawMessage, len(vs))
	for i, v := range vs {
		out[i] = rawArg(v)
	}
	return out
}
