// Package banstore implements the persisted ban list described in
// spec.md §3/§4.C: two parallel ordered sequences, addresses and usernames,
// entry i of one corresponding to entry i of the other, flushed to a single
// flat JSON document on every mutation. There is no library in the retrieval
// pack for a two-parallel-array flat-JSON-document store (the closest
// candidates - modernc.org/sqlite, the teacher's own binary protocol - would
// change the persisted shape the spec requires byte-for-byte); this is one of
// the few places the implementation is stdlib encoding/json + os, justified
// in DESIGN.md.
package banstore

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Document is the persisted shape: {"addresses": [...], "usernames": [...]}.
type Document struct {
	Addresses []string `json:"addresses"`
	Usernames []string `json:"usernames"`
}

// Store is an in-memory ban list backed by a single JSON file. All methods
// are safe for concurrent use, but callers that also mutate room state
// alongside a ban mutation should hold their own lock across both (spec.md §5).
type Store struct {
	mu   sync.Mutex
	path string
	doc  Document
}

// Load reads path if it exists and returns a Store seeded from it, or an
// empty Store if the file is absent (first run).
func Load(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("banstore: failed to read %s: %w", path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("banstore: failed to parse %s: %w", path, err)
	}
	s.doc = doc
	return s, nil
}

// IsBanned reports whether address appears in the ban list (linear scan,
// spec.md §4.C).
func (s *Store) IsBanned(address string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.doc.Addresses {
		if a == address {
			return true
		}
	}
	return false
}

// Add appends (address, username) to the parallel lists and persists.
func (s *Store) Add(address, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Addresses = append(s.doc.Addresses, address)
	s.doc.Usernames = append(s.doc.Usernames, username)
	return s.saveLocked()
}

// Remove deletes the entry for username (and its paired address) and
// persists. It reports whether a matching entry was found.
func (s *Store) Remove(username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, u := range s.doc.Usernames {
		if u == username {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false, nil
	}

	s.doc.Addresses = append(s.doc.Addresses[:idx], s.doc.Addresses[idx+1:]...)
	s.doc.Usernames = append(s.doc.Usernames[:idx], s.doc.Usernames[idx+1:]...)
	return true, s.saveLocked()
}

// Snapshot returns a copy of the persisted document, for the admin console's
// listing commands.
func (s *Store) Snapshot() Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Document{
		Addresses: append([]string(nil), s.doc.Addresses...),
		Usernames: append([]string(nil), s.doc.Usernames...),
	}
}

func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("banstore: failed to marshal %s: %w", s.path, err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("banstore: failed to write %s: %w", s.path, err)
	}
	return nil
}
