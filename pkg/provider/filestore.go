package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/poda/pkg/merkle"
	"github.com/certen/poda/pkg/types"
)

// FileStore persists chunks as one file per (root, index) under dir, named
// "{root_hex}_{index}.chunk". Writes go to a temp file and are renamed into
// place so a concurrent reader never observes a partial record.
type FileStore struct {
	dir string
	mu  sync.Mutex // serializes writes to the same directory tree
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(root common.Hash, index uint16) string {
	return filepath.Join(f.dir, fmt.Sprintf("%s_%d.chunk", root.Hex(), index))
}

func (f *FileStore) Store(_ context.Context, root common.Hash, chunk types.Chunk, proof *merkle.WireProof) error {
	record := StoredChunk{Chunk: chunk, Proof: proof}
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("filestore: marshal record: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	final := f.path(root, chunk.Index)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return fmt.Errorf("filestore: write temp file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("filestore: rename into place: %w", err)
	}
	return nil
}

func (f *FileStore) Retrieve(_ context.Context, root common.Hash, index uint16) (*StoredChunk, bool, error) {
	body, err := os.ReadFile(f.path(root, index))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("filestore: read: %w", err)
	}
	var record StoredChunk
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, false, fmt.Errorf("filestore: unmarshal: %w", err)
	}
	return &record, true, nil
}

func (f *FileStore) Exists(_ context.Context, root common.Hash, index uint16) (bool, error) {
	_, err := os.Stat(f.path(root, index))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (f *FileStore) Delete(_ context.Context, root common.Hash, index uint16) error {
	err := os.Remove(f.path(root, index))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (f *FileStore) ListChunks(_ context.Context, root common.Hash) ([]uint16, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("filestore: list dir: %w", err)
	}
	prefix := root.Hex() + "_"
	var indices []uint16
	for _, e := range entries {
		name := e.Name()
		if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
			continue
		}
		var idx uint16
		if _, err := fmt.Sscanf(name[len(prefix):], "%d.chunk", &idx); err == nil {
			indices = append(indices, idx)
		}
	}
	return indices, nil
}
