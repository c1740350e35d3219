package faceindex

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"time"
)

// fileVersion guards the on-disk format.
const fileVersion = 1

type savedIndex struct {
	Version int
	SavedAt time.Time
	Entries []Entry
}

// Save persists the live entries to path. The graph itself is not exported;
// rebuilding it on load compacts nodes left over from removals.
func (ix *Index) Save(path string) error {
	if path == "" {
		return nil // No path configured
	}

	snapshot := savedIndex{
		Version: fileVersion,
		SavedAt: time.Now(),
		Entries: ix.Entries(),
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snapshot); err != nil {
		return fmt.Errorf("failed to encode face index: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write face index file: %w", err)
	}
	return nil
}

// Load restores entries from path and rebuilds the graph. A missing file is
// not an error; the index starts empty and is rebuilt from the store.
func (ix *Index) Load(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read face index file: %w", err)
	}

	var snapshot savedIndex
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snapshot); err != nil {
		return fmt.Errorf("failed to decode face index: %w", err)
	}
	if snapshot.Version != fileVersion {
		return fmt.Errorf("unsupported face index version %d", snapshot.Version)
	}

	ix.Rebuild(snapshot.Entries)
	return nil
}
