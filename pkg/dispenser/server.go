package dispenser

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

// Server is the Dispenser HTTP API of spec.md §6.2: submit, retrieve, health.
type Server struct {
	dispenser *Dispenser
	logger    *log.Logger
}

func NewServer(d *Dispenser, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[dispenser] ", log.LstdFlags)
	}
	return &Server{dispenser: d, logger: logger}
}

func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/submit", s.handleSubmit)
	mux.HandleFunc("/retrieve", s.handleRetrieve)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// SubmitWireRequest is the POST /submit request body.
type SubmitWireRequest struct {
	Data string `json:"data"` // hex-encoded blob
}

// SubmitWireResponse is the POST /submit response body.
type SubmitWireResponse struct {
	Success     bool                `json:"success"`
	Message     string              `json:"message"`
	Commitment  string              `json:"commitment,omitempty"`
	Assignments map[string][]uint16 `json:"assignments,omitempty"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req SubmitWireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	blob, err := hex.DecodeString(req.Data)
	if err != nil {
		writeJSONError(w, "data must be hex-encoded", http.StatusBadRequest)
		return
	}

	result, err := s.dispenser.Submit(r.Context(), blob)
	if err != nil {
		s.logger.Printf("submit: %v", err)
		writeJSON(w, http.StatusOK, SubmitWireResponse{Success: false, Message: err.Error()})
		return
	}

	assignments := make(map[string][]uint16, len(result.Assignments))
	for addr, indices := range result.Assignments {
		assignments[addr.Hex()] = indices
	}
	writeJSON(w, http.StatusOK, SubmitWireResponse{
		Success:     true,
		Message:     fmt.Sprintf("dispersed across %d providers", len(assignments)),
		Commitment:  result.Root.Hex(),
		Assignments: assignments,
	})
}

// RetrieveWireRequest is the POST /retrieve request body.
type RetrieveWireRequest struct {
	Commitment string `json:"commitment"`
}

// RetrieveWireResponse is the POST /retrieve response body.
type RetrieveWireResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Data    *string `json:"data"` // hex-encoded blob, nil on failure
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req RetrieveWireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	raw, err := hex.DecodeString(req.Commitment)
	if err != nil || len(raw) != 32 {
		writeJSONError(w, "commitment must be a 32-byte hex string", http.StatusBadRequest)
		return
	}
	root := common.BytesToHash(raw)

	blob, err := s.dispenser.Retrieve(r.Context(), root)
	if err != nil {
		s.logger.Printf("retrieve: %v", err)
		writeJSON(w, http.StatusOK, RetrieveWireResponse{Success: false, Message: err.Error()})
		return
	}
	data := hex.EncodeToString(blob)
	writeJSON(w, http.StatusOK, RetrieveWireResponse{Success: true, Message: "ok", Data: &data})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
