package provider

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/lib/pq"

	"github.com/certen/poda/pkg/merkle"
	"github.com/certen/poda/pkg/types"
)

// PostgresStore is the shared-storage ChunkStore backend for a provider
// fleet running behind one database, grounded on the teacher's
// pkg/database repository style: raw database/sql, no ORM, explicit
// CREATE TABLE IF NOT EXISTS, $N-placeholder queries.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens dsn and ensures the chunks table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgresstore: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("postgresstore: ping: %w", err)
	}
	s := &PostgresStore{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS poda_chunks (
			root        TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			chunk_data  BYTEA NOT NULL,
			proof       JSONB NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (root, chunk_index)
		)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgresstore: migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Store(ctx context.Context, root common.Hash, chunk types.Chunk, proof *merkle.WireProof) error {
	proofJSON, err := json.Marshal(proof)
	if err != nil {
		return fmt.Errorf("postgresstore: marshal proof: %w", err)
	}
	const query = `
		INSERT INTO poda_chunks (root, chunk_index, chunk_data, proof)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (root, chunk_index) DO UPDATE SET chunk_data = EXCLUDED.chunk_data, proof = EXCLUDED.proof`
	if _, err := s.db.ExecContext(ctx, query, root.Hex(), int(chunk.Index), chunk.Data, proofJSON); err != nil {
		return fmt.Errorf("postgresstore: store chunk %d: %w", chunk.Index, err)
	}
	return nil
}

func (s *PostgresStore) Retrieve(ctx context.Context, root common.Hash, index uint16) (*StoredChunk, bool, error) {
	const query = `SELECT chunk_data, proof FROM poda_chunks WHERE root = $1 AND chunk_index = $2`
	var data []byte
	var proofJSON []byte
	err := s.db.QueryRowContext(ctx, query, root.Hex(), int(index)).Scan(&data, &proofJSON)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgresstore: retrieve chunk %d: %w", index, err)
	}
	var proof merkle.WireProof
	if err := json.Unmarshal(proofJSON, &proof); err != nil {
		return nil, false, fmt.Errorf("postgresstore: unmarshal proof: %w", err)
	}
	return &StoredChunk{Chunk: types.Chunk{Index: index, Data: data}, Proof: &proof}, true, nil
}

func (s *PostgresStore) Exists(ctx context.Context, root common.Hash, index uint16) (bool, error) {
	const query = `SELECT 1 FROM poda_chunks WHERE root = $1 AND chunk_index = $2`
	var one int
	err := s.db.QueryRowContext(ctx, query, root.Hex(), int(index)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("postgresstore: exists chunk %d: %w", index, err)
	}
	return true, nil
}

func (s *PostgresStore) Delete(ctx context.Context, root common.Hash, index uint16) error {
	const query = `DELETE FROM poda_chunks WHERE root = $1 AND chunk_index = $2`
	if _, err := s.db.ExecContext(ctx, query, root.Hex(), int(index)); err != nil {
		return fmt.Errorf("postgresstore: delete chunk %d: %w", index, err)
	}
	return nil
}

func (s *PostgresStore) ListChunks(ctx context.Context, root common.Hash) ([]uint16, error) {
	const query = `SELECT chunk_index FROM poda_chunks WHERE root = $1 ORDER BY chunk_index`
	rows, err := s.db.QueryContext(ctx, query, root.Hex())
	if err != nil {
		return nil, fmt.Errorf("postgresstore: list: %w", err)
	}
	defer rows.Close()
	var out []uint16
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			return nil, fmt.Errorf("postgresstore: scan: %w", err)
		}
		out = append(out, uint16(idx))
	}
	return out, rows.Err()
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }
