// Package protocol implements the wire codec described in spec.md §4.A: each
// application message is a JSON array whose first element is a numeric opcode
// string and whose remaining elements are the opcode's positional arguments
// (primitives, arrays, or nested objects). This replaces the teacher's 4-byte
// big-endian binary framing, which cannot carry this wire shape, but keeps its
// package name and its Encode/Decode-as-a-pair signature style.
package protocol

import (
	"encoding/json"
	"fmt"
)

const maxFrameSize = 1 * 1024 * 1024 // generous ceiling for a single text frame

// Decode parses a raw text frame into its opcode and positional arguments.
// Arguments are left as json.RawMessage so callers can unmarshal each one into
// the concrete type its handler expects without a second full-frame parse.
func Decode(frame []byte) (opcode string, args []json.RawMessage, err error) {
	if len(frame) == 0 {
		return "", nil, fmt.Errorf("protocol: empty frame")
	}
	if len(frame) > maxFrameSize {
		return "", nil, fmt.Errorf("protocol: frame size %d exceeds maximum %d bytes", len(frame), maxFrameSize)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(frame, &raw); err != nil {
		return "", nil, fmt.Errorf("protocol: malformed frame: %w", err)
	}
	if len(raw) == 0 {
		return "", nil, fmt.Errorf("protocol: frame carries no opcode")
	}

	if err := json.Unmarshal(raw[0], &opcode); err != nil {
		return "", nil, fmt.Errorf("protocol: opcode is not a string: %w", err)
	}

	return opcode, raw[1:], nil
}

// Encode builds a wire frame for opcode with the given positional arguments.
// Each argument is marshalled with encoding/json, so callers can pass structs,
// maps, slices, strings, numbers, bools, or nil interchangeably.
func Encode(opcode string, args ...any) ([]byte, error) {
	frame := make([]any, 0, len(args)+1)
	frame = append(frame, opcode)
	frame = append(frame, args...)

	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to encode opcode %q: %w", opcode, err)
	}
	return data, nil
}

// Arg unmarshals the argument at index i of a decoded frame into out. It
// returns an error if i is out of range or the argument does not match out's
// type - protocol violations (§7) that callers should treat as "drop the
// packet silently, optionally log", never as a reason to disconnect.
func Arg(args []json.RawMessage, i int, out any) error {
	if i < 0 || i >= len(args) {
		return fmt.Errorf("protocol: argument index %d out of range (have %d)", i, len(args))
	}
	if err := json.Unmarshal(args[i], out); err != nil {
		return fmt.Errorf("protocol: argument %d: %w", i, err)
	}
	return nil
}
