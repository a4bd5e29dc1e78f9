package provider

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/poda/pkg/merkle"
	"github.com/certen/poda/pkg/types"
)

// MemStore is an in-memory ChunkStore used by tests in place of FileStore or
// PostgresStore (per the design notes: "in-memory for tests").
type MemStore struct {
	mu   sync.Mutex
	data map[string]*StoredChunk
}

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]*StoredChunk)}
}

func (m *MemStore) key(root common.Hash, index uint16) string {
	b := make([]byte, 0, 34+2)
	b = append(b, root[:]...)
	b = append(b, byte(index>>8), byte(index))
	return string(b)
}

func (m *MemStore) Store(_ context.Context, root common.Hash, chunk types.Chunk, proof *merkle.WireProof) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string]*StoredChunk)
	}
	m.data[m.key(root, chunk.Index)] = &StoredChunk{Chunk: chunk, Proof: proof}
	return nil
}

func (m *MemStore) Retrieve(_ context.Context, root common.Hash, index uint16) (*StoredChunk, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, ok := m.data[m.key(root, index)]
	return sc, ok, nil
}

func (m *MemStore) Exists(_ context.Context, root common.Hash, index uint16) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[m.key(root, index)]
	return ok, nil
}

func (m *MemStore) Delete(_ context.Context, root common.Hash, index uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, m.key(root, index))
	return nil
}

func (m *MemStore) ListChunks(_ context.Context, root common.Hash) ([]uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := string(root[:])
	var out []uint16
	for k, v := range m.data {
		if len(k) >= 32 && k[:32] == prefix {
			out = append(out, v.Chunk.Index)
		}
	}
	return out, nil
}
