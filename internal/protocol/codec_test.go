package protocol

import (
	"encoding/json"
	"testing"
)

// TestEncodeDecodeRoundTrip verifies encoding then decoding any frame yields
// back the original opcode and arguments (spec.md §8 property 9).
func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		opcode string
		args   []any
	}{
		{"no args", "18", nil},
		{"single string", "10", []any{"hello"}},
		{"mixed primitives", "13", []any{"alice", false, 5, nil}},
		{"nested object", "3", []any{0, 0, []map[string]any{{"id": float64(0), "userName": "alice"}}, 0, true, 0, "invalid", nil}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			frame, err := Encode(tt.opcode, tt.args...)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			gotOpcode, gotArgs, err := Decode(frame)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}

			if gotOpcode != tt.opcode {
				t.Errorf("opcode = %q, want %q", gotOpcode, tt.opcode)
			}

			if len(gotArgs) != len(tt.args) {
				t.Fatalf("got %d args, want %d", len(gotArgs), len(tt.args))
			}

			for i, want := range tt.args {
				wantJSON, err := json.Marshal(want)
				if err != nil {
					t.Fatalf("marshal want[%d]: %v", i, err)
				}
				if string(gotArgs[i]) != string(wantJSON) {
					t.Errorf("arg %d = %s, want %s", i, gotArgs[i], wantJSON)
				}
			}
		})
	}
}

// TestDecodeOpcodeIsString verifies the wire's first element must decode as a
// string opcode, matching §4.A / §9 ("do not emit them as raw numbers").
func TestDecodeOpcodeIsString(t *testing.T) {
	t.Parallel()

	if _, _, err := Decode([]byte(`[13, "alice"]`)); err == nil {
		t.Error("Decode() accepted a numeric opcode, want error")
	}
}

func TestDecodeEmptyFrame(t *testing.T) {
	t.Parallel()

	if _, _, err := Decode(nil); err == nil {
		t.Error("Decode(nil) error = nil, want error")
	}
	if _, _, err := Decode([]byte(`[]`)); err == nil {
		t.Error("Decode([]) error = nil, want error")
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	t.Parallel()

	// Protocol violations must not panic - they return an error the caller
	// treats as "drop the packet silently" (§7).
	if _, _, err := Decode([]byte(`{not json`)); err == nil {
		t.Error("Decode() accepted malformed JSON, want error")
	}
}

func TestArg(t *testing.T) {
	t.Parallel()

	_, args, err := Decode([]byte(`["6", 3]`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	var team int
	if err := Arg(args, 0, &team); err != nil {
		t.Fatalf("Arg(0) error = %v", err)
	}
	if team != 3 {
		t.Errorf("team = %d, want 3", team)
	}

	var wrongType bool
	if err := Arg(args, 0, &wrongType); err == nil {
		t.Error("Arg() accepted a number into a bool target, want error")
	}

	if err := Arg(args, 5, &team); err == nil {
		t.Error("Arg() accepted an out-of-range index, want error")
	}
}

func TestEncodeUnknownOpcodeStillEncodes(t *testing.T) {
	t.Parallel()

	// Unknown inbound opcodes are logged and dropped by the dispatcher, not by
	// the codec - the codec itself encodes/decodes any opcode string.
	frame, err := Encode("999", "x")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	opcode, _, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if opcode != "999" {
		t.Errorf("opcode = %q, want %q", opcode, "999")
	}
}
