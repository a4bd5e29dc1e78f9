// Package dispenser implements the Dispenser role: Reed-Solomon encoding,
// Merkle/KZG commitment, stake-weighted assignment, per-provider dispatch,
// and decode-on-retrieve.
package dispenser

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/certen/poda/pkg/kzg"
	"github.com/certen/poda/pkg/merkle"
	"github.com/certen/poda/pkg/provider"
	"github.com/certen/poda/pkg/types"
)

// ProviderClient is the dispenser's HTTPS caller into one storage
// provider's batch-store / batch-retrieve surface.
type ProviderClient struct {
	httpClient *http.Client
	logger     *log.Logger
}

func NewProviderClient(timeout time.Duration, logger *log.Logger) *ProviderClient {
	if logger == nil {
		logger = log.New(log.Writer(), "[dispenser] ", log.LstdFlags)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ProviderClient{httpClient: &http.Client{Timeout: timeout}, logger: logger}
}

// BatchStore posts chunks, a single batch KZG proof over exactly those
// chunks, and one Merkle proof per chunk to providerURL.
func (c *ProviderClient) BatchStore(ctx context.Context, providerURL string, root [32]byte, chunks []types.Chunk, proofs []*merkle.Proof, batchProof kzg.KzgProof) (int, error) {
	wireChunks := make([]provider.WireChunk, len(chunks))
	wireProofs := make([]*merkle.WireProof, len(chunks))
	for i, c2 := range chunks {
		wireChunks[i] = provider.WireChunk{Index: c2.Index, Data: hex.EncodeToString(c2.Data)}
		wireProofs[i] = proofs[i].ToWire()
	}
	proofBytes := batchProof.Bytes()
	req := provider.BatchStoreWireRequest{
		Commitment:   hex.EncodeToString(root[:]),
		Chunks:       wireChunks,
		KzgProof:     hex.EncodeToString(proofBytes[:]),
		MerkleProofs: wireProofs,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("%w: marshal batch-store request: %v", types.ErrProviderTransport, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, providerURL+"/batch-store", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", types.ErrProviderTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrProviderTransport, err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	var wireResp provider.BatchStoreWireResponse
	if err := json.Unmarshal(respBody, &wireResp); err != nil {
		return 0, fmt.Errorf("%w: decode response: %v", types.ErrProviderTransport, err)
	}
	if !wireResp.Success {
		return 0, fmt.Errorf("%w: provider rejected batch: %s", types.ErrProviderTransport, wireResp.Message)
	}
	return len(chunks), nil
}

// BatchRetrieve pulls the requested indices from providerURL. A failed
// request returns an error; the caller treats it identically to "every
// index absent" and continues with other providers.
func (c *ProviderClient) BatchRetrieve(ctx context.Context, providerURL string, root [32]byte, indices []uint16) ([]*provider.WireChunk, error) {
	req := provider.BatchRetrieveWireRequest{Commitment: hex.EncodeToString(root[:]), Indices: indices}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal batch-retrieve request: %v", types.ErrProviderTransport, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, providerURL+"/batch-retrieve", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", types.ErrProviderTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrProviderTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: provider has none of the requested indices", types.ErrProviderTransport)
	}
	respBody, _ := io.ReadAll(resp.Body)

	var wireResp provider.BatchRetrieveWireResponse
	if err := json.Unmarshal(respBody, &wireResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", types.ErrProviderTransport, err)
	}
	return wireResp.Chunks, nil
}
