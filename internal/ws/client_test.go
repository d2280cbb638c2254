package ws

import (
	"testing"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

func TestClientIDsAreUniqueUUIDs(t *testing.T) {
	t.Parallel()

	ids := make(map[string]bool)
	const count = 100

	for i := 0; i < count; i++ {
		id := uuid.New().String()
		if ids[id] {
			t.Errorf("duplicate ID generated: %s", id)
		}
		ids[id] = true

		if _, err := uuid.Parse(id); err != nil {
			t.Errorf("ID %s is not a valid UUID: %v", id, err)
		}
	}

	if len(ids) != count {
		t.Errorf("got %d unique IDs, want %d", len(ids), count)
	}
}

func TestDefaultFloodControl(t *testing.T) {
	t.Parallel()

	cfg := DefaultFloodControl()
	if cfg == nil {
		t.Fatal("DefaultFloodControl() returned nil")
	}
	if !cfg.Enabled {
		t.Error("default flood control should be enabled")
	}
	if cfg.FramesPerSecond != 100 {
		t.Errorf("FramesPerSecond = %v, want 100", cfg.FramesPerSecond)
	}
	if cfg.Burst != 200 {
		t.Errorf("Burst = %v, want 200", cfg.Burst)
	}
}

func TestNoFloodControl(t *testing.T) {
	t.Parallel()

	cfg := NoFloodControl()
	if cfg == nil {
		t.Fatal("NoFloodControl() returned nil")
	}
	if cfg.Enabled {
		t.Error("NoFloodControl should have Enabled = false")
	}
}

func TestFloodControlConfigValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		cfg         *FloodControlConfig
		wantFPS     rate.Limit
		wantBurst   int
		wantEnabled bool
	}{
		{"default", DefaultFloodControl(), 100, 200, true},
		{"disabled", NoFloodControl(), 0, 0, false},
		{"custom", &FloodControlConfig{FramesPerSecond: 50, Burst: 100, Enabled: true}, 50, 100, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if tt.cfg.FramesPerSecond != tt.wantFPS {
				t.Errorf("FramesPerSecond = %v, want %v", tt.cfg.FramesPerSecond, tt.wantFPS)
			}
			if tt.cfg.Burst != tt.wantBurst {
				t.Errorf("Burst = %v, want %v", tt.cfg.Burst, tt.wantBurst)
			}
			if tt.cfg.Enabled != tt.wantEnabled {
				t.Errorf("Enabled = %v, want %v", tt.cfg.Enabled, tt.wantEnabled)
			}
		})
	}
}

func TestClientCheckFloodControlDisabledAlwaysAllows(t *testing.T) {
	t.Parallel()

	c := &Client{rateLimiter: nil}
	for i := 0; i < 5; i++ {
		if !c.checkFloodControl() {
			t.Fatal("checkFloodControl() with nil limiter should always allow")
		}
	}
}

func TestClientCheckFloodControlEnforcesBurst(t *testing.T) {
	t.Parallel()

	c := &Client{rateLimiter: rate.NewLimiter(rate.Limit(1), 2)}

	if !c.checkFloodControl() {
		t.Error("hit 1 should be allowed (within burst)")
	}
	if !c.checkFloodControl() {
		t.Error("hit 2 should be allowed (within burst)")
	}
	if c.checkFloodControl() {
		t.Error("hit 3 should be refused (burst exhausted)")
	}
}
