package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/poda/pkg/merkle"
	"github.com/certen/poda/pkg/types"
)

// Server is the storage-provider HTTP surface of spec.md §6.3: batch
// store/retrieve, an operator delete, a list endpoint, the legacy
// single-item accessors, and health.
type Server struct {
	gate   *Gate
	store  ChunkStore
	logger *log.Logger
}

func NewServer(gate *Gate, store ChunkStore, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[provider] ", log.LstdFlags)
	}
	return &Server{gate: gate, store: store, logger: logger}
}

// Mux builds the *http.ServeMux this server answers on — plain net/http,
// no router framework, matching the teacher's own main.go.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/batch-store", s.handleBatchStore)
	mux.HandleFunc("/batch-retrieve", s.handleBatchRetrieve)
	mux.HandleFunc("/delete", s.handleDelete)
	mux.HandleFunc("/list", s.handleList)
	mux.HandleFunc("/status/", s.handleLegacyStatus)
	mux.HandleFunc("/retrieve/", s.handleLegacyRetrieve)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleBatchStore(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req BatchStoreWireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	root, err := parseRoot(req.Commitment)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Chunks) != len(req.MerkleProofs) {
		writeJSONError(w, "chunks and merkleProofs must have equal length", http.StatusBadRequest)
		return
	}

	storeReq := BatchStoreRequest{Root: root}
	for i, wc := range req.Chunks {
		chunk, err := chunkFromWire(wc)
		if err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		proof, err := merkle.FromWire(req.MerkleProofs[i])
		if err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		storeReq.Chunks = append(storeReq.Chunks, chunk)
		storeReq.MerkleProofs = append(storeReq.MerkleProofs, proof)
	}
	kzgProof, err := decodeKzgProof(req.KzgProof)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	storeReq.KzgBatchProof = kzgProof

	accepted, err := s.gate.BatchStore(r.Context(), storeReq)
	if err != nil {
		s.logger.Printf("batch-store: %v", err)
		status := http.StatusOK
		if errors.Is(err, types.ErrShapeMismatch) || errors.Is(err, types.ErrUnknownCommitment) ||
			errors.Is(err, types.ErrMerkleInvalid) || errors.Is(err, types.ErrKzgInvalid) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, BatchStoreWireResponse{Success: accepted > 0, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, BatchStoreWireResponse{Success: true, Message: fmt.Sprintf("stored %d chunks", accepted)})
}

func (s *Server) handleBatchRetrieve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req BatchRetrieveWireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	root, err := parseRoot(req.Commitment)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	stored, err := s.gate.BatchRetrieve(r.Context(), root, req.Indices)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	resp := BatchRetrieveWireResponse{
		Chunks: make([]*WireChunk, len(stored)),
		Proofs: make([]*merkle.WireProof, len(stored)),
	}
	for i, sc := range stored {
		if sc == nil {
			continue
		}
		wc := chunkToWire(sc.Chunk)
		resp.Chunks[i] = &wc
		resp.Proofs[i] = sc.Proof
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req DeleteWireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	root, err := parseRoot(req.Commitment)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.gate.Delete(r.Context(), root, req.Indices); err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, DeleteWireResponse{Success: true})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	root, err := parseRoot(r.URL.Query().Get("commitment"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	indices, err := s.gate.List(r.Context(), root)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ListWireResponse{Indices: indices})
}

func (s *Server) handleLegacyStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	root, index, err := parseLegacyID(strings.TrimPrefix(r.URL.Path, "/status/"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	exists, err := s.store.Exists(r.Context(), root, index)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

func (s *Server) handleLegacyRetrieve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	root, index, err := parseLegacyID(strings.TrimPrefix(r.URL.Path, "/retrieve/"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	sc, found, err := s.store.Retrieve(r.Context(), root, index)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !found {
		writeJSONError(w, "not found", http.StatusNotFound)
		return
	}
	wc := chunkToWire(sc.Chunk)
	writeJSON(w, http.StatusOK, struct {
		Chunk WireChunk         `json:"chunk"`
		Proof *merkle.WireProof `json:"proof"`
	}{Chunk: wc, Proof: sc.Proof})
}

// parseLegacyID parses "{root_hex}_{index}", the same key shape FileStore
// uses for its on-disk filenames (spec.md §6.4).
func parseLegacyID(id string) (common.Hash, uint16, error) {
	parts := strings.Split(id, "_")
	if len(parts) != 2 {
		return common.Hash{}, 0, fmt.Errorf("invalid id %q, want {root}_{index}", id)
	}
	root, err := parseRoot(parts[0])
	if err != nil {
		return common.Hash{}, 0, err
	}
	idx, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return common.Hash{}, 0, fmt.Errorf("invalid chunk index %q", parts[1])
	}
	return root, uint16(idx), nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
