// Package chatlog implements the append-only in-memory chat buffer described
// in spec.md §3/§4.H, flushed to a timestamped file on demand and on
// shutdown. Grounded on the same rationale as internal/banstore: the spec's
// persisted shape (chatlogs/<timestamp>.txt, newline-terminated UTF-8 text)
// is a flat file, not a row store, so this stays on stdlib os/path/filepath rather
// than reaching for a database driver from the pack.
package chatlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Clock lets tests control the timestamp without real time.Now calls.
type Clock func() time.Time

// Log is an append-only buffer of timestamped lines.
type Log struct {
	mu        sync.Mutex
	dir       string
	lines     []string
	now       Clock
	timeStamp func(time.Time) string
}

// New creates a Log that flushes into dir. timeStampFormat is a time.Layout
// string (spec.md §6 configuration's timeStampFormat), applied both to each
// line's leading timestamp and to the flushed file's name.
func New(dir, timeStampFormat string) *Log {
	return &Log{
		dir: dir,
		now: time.Now,
		timeStamp: func(t time.Time) string {
			return t.Format(timeStampFormat)
		},
	}
}

// Append adds one line, stamped with the current time.
func (l *Log) Append(content string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lines = append(l.lines, fmt.Sprintf("[%s] %s", l.timeStamp(l.now()), content))
}

// Len reports the number of buffered, unflushed lines.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

// Save writes the buffer to <timestamp>.txt directly in dir and empties
// the buffer. It is a no-op (and does not touch the filesystem) when the
// buffer is empty.
func (l *Log) Save() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.lines) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("chatlog: failed to create %s: %w", l.dir, err)
	}

	name := l.timeStamp(l.now()) + ".txt"
	path := filepath.Join(l.dir, name)

	var data []byte
	for _, line := range l.lines {
		data = append(data, line...)
		data = append(data, '\n')
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("chatlog: failed to write %s: %w", path, err)
	}

	l.lines = nil
	return path, nil
}
