package ledger

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/poda/pkg/ethereum"
	"github.com/certen/poda/pkg/merkle"
	"github.com/certen/poda/pkg/types"
)

const defaultGasLimit = 600_000
const defaultSendRetries = 3

// ContractLedger is the real Ledger implementation: every method packs an
// ABI call, sends it (or reads it as a view) through pkg/ethereum's RPC
// client, and unpacks the result. This is the concrete transport behind the
// ledger interface the rest of the system treats as an external
// collaborator.
type ContractLedger struct {
	client        *ethereum.Client
	contractAddr  common.Address
	contractABI   ethabi.ABI
	privateKeyHex string
	self          common.Address
}

// NewContractLedger connects to rpcURL and binds to the PoDA contract at
// contractAddr, signing transactions with privateKeyHex.
func NewContractLedger(ctx context.Context, rpcURL, contractAddr, privateKeyHex string) (*ContractLedger, error) {
	client, err := ethereum.NewClient(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	parsedABI, err := ethabi.JSON(strings.NewReader(podaABIJSON))
	if err != nil {
		return nil, fmt.Errorf("ledger: parse contract ABI: %w", err)
	}
	self, err := ethereum.GetPublicAddress(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("ledger: derive address from key: %w", err)
	}
	return &ContractLedger{
		client:        client,
		contractAddr:  common.HexToAddress(contractAddr),
		contractABI:   parsedABI,
		privateKeyHex: privateKeyHex,
		self:          self,
	}, nil
}

func (c *ContractLedger) call(ctx context.Context, method string, params ...interface{}) ([]interface{}, error) {
	out, err := c.client.CallContract(ctx, c.contractAddr, c.contractABI, method, params...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrLedgerTransport, method, err)
	}
	return out, nil
}

func (c *ContractLedger) send(ctx context.Context, method string, params ...interface{}) error {
	_, err := c.client.SendContractTransaction(ctx, c.contractAddr, c.contractABI, c.privateKeyHex, method, defaultGasLimit, defaultSendRetries, params...)
	if err != nil {
		if strings.Contains(err.Error(), "already issued") || strings.Contains(err.Error(), "duplicate") {
			return types.ErrDuplicateChallenge
		}
		return fmt.Errorf("%w: %s: %v", types.ErrLedgerTransport, method, err)
	}
	return nil
}

func (c *ContractLedger) RegisterProvider(ctx context.Context, name, url string, stake uint64) error {
	return c.send(ctx, "registerProvider", name, url, new(big.Int).SetUint64(stake))
}

func (c *ContractLedger) SubmitCommitment(ctx context.Context, root common.Hash, size uint32, n, k uint16, kzg48 [48]byte) error {
	err := c.send(ctx, "submitCommitment", root, size, n, k, kzg48[:])
	if err != nil && strings.Contains(err.Error(), "duplicate") {
		return types.ErrDuplicateCommitment
	}
	return err
}

func (c *ContractLedger) SubmitChunkAttestations(ctx context.Context, root common.Hash, provider common.Address, indices []uint16) error {
	return c.send(ctx, "submitChunkAttestations", root, indices)
}

// GetCommitmentInfo returns the commitment summary. Per-index ownership
// (ChunkOwner) is populated lazily via GetChunkOwner/GetProviderChunks — the
// contract's summary view does not enumerate the full ownership map.
func (c *ContractLedger) GetCommitmentInfo(ctx context.Context, root common.Hash) (*types.CommitmentRecord, bool, error) {
	out, err := c.call(ctx, "getCommitmentInfo", root)
	if err != nil {
		return nil, false, err
	}
	exists := out[5].(bool)
	if !exists {
		return nil, false, nil
	}
	var kzg [48]byte
	copy(kzg[:], out[3].([]byte))
	rec := &types.CommitmentRecord{
		Root:            root,
		Size:            out[0].(uint32),
		TotalChunks:     out[1].(uint16),
		RequiredChunks:  out[2].(uint16),
		KzgCommitment:   kzg,
		AvailableChunks: out[4].(uint32),
		ChunkOwner:      make(map[uint16]common.Address),
	}
	return rec, true, nil
}

func (c *ContractLedger) GetProviderChunks(ctx context.Context, root common.Hash, provider common.Address) ([]uint16, error) {
	out, err := c.call(ctx, "getProviderChunks", root, provider)
	if err != nil {
		return nil, err
	}
	return out[0].([]uint16), nil
}

func (c *ContractLedger) GetChunkOwner(ctx context.Context, root common.Hash, index uint16) (common.Address, bool, error) {
	out, err := c.call(ctx, "getChunkOwner", root, index)
	if err != nil {
		return common.Address{}, false, err
	}
	return out[0].(common.Address), out[1].(bool), nil
}

func (c *ContractLedger) IsChunkAvailable(ctx context.Context, root common.Hash, index uint16) (bool, error) {
	out, err := c.call(ctx, "isChunkAvailable", root, index)
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

func (c *ContractLedger) GetCommitmentList(ctx context.Context) ([]common.Hash, error) {
	out, err := c.call(ctx, "getCommitmentList")
	if err != nil {
		return nil, err
	}
	raw := out[0].([][32]byte)
	roots := make([]common.Hash, len(raw))
	for i := range raw {
		roots[i] = common.Hash(raw[i])
	}
	return roots, nil
}

func (c *ContractLedger) GetActiveProviders(ctx context.Context) ([]*types.ProviderRecord, error) {
	out, err := c.call(ctx, "getActiveProviders")
	if err != nil {
		return nil, err
	}
	addrs := out[0].([]common.Address)
	providers := make([]*types.ProviderRecord, 0, len(addrs))
	for _, addr := range addrs {
		stakeOut, err := c.call(ctx, "getProviderStake", addr)
		if err != nil {
			return nil, err
		}
		stake := stakeOut[0].(*big.Int)
		providers = append(providers, &types.ProviderRecord{
			Addr: addr, Active: true, StakedAmount: stake.Uint64(),
		})
	}
	return providers, nil
}

func (c *ContractLedger) IssueChunkChallenge(ctx context.Context, _ common.Address, root common.Hash, index uint16, provider common.Address) (string, error) {
	if err := c.send(ctx, "issueChunkChallenge", root, index, provider); err != nil {
		return "", err
	}
	rec, ok, err := c.GetChunkChallenge(ctx, root, index, provider)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("ledger: challenge not found immediately after issuance")
	}
	return rec.ChallengeID, nil
}

func (c *ContractLedger) RespondToChunkChallenge(ctx context.Context, root common.Hash, index uint16, chunkData []byte, proof *merkle.WireProof) error {
	siblings, rightFlags := wireProofToArrays(proof)
	return c.send(ctx, "respondToChunkChallenge", root, index, chunkData, siblings, rightFlags)
}

func (c *ContractLedger) GetChunkChallenge(ctx context.Context, root common.Hash, index uint16, provider common.Address) (*types.ChallengeRecord, bool, error) {
	out, err := c.call(ctx, "getChunkChallenge", root, index, provider)
	if err != nil {
		return nil, false, err
	}
	exists := out[3].(bool)
	if !exists {
		return nil, false, nil
	}
	idBytes := out[0].([32]byte)
	return &types.ChallengeRecord{
		ChallengeID: common.Hash(idBytes).Hex(),
		Commitment:  root,
		ChunkIndex:  index,
		Provider:    provider,
		Deadline:    out[1].(uint64),
		State:       types.ChallengeState(out[2].(uint8)),
	}, true, nil
}

func (c *ContractLedger) GetProviderActiveChallenges(ctx context.Context, provider common.Address) ([]*types.ChallengeRecord, error) {
	out, err := c.call(ctx, "getProviderActiveChallenges", provider)
	if err != nil {
		return nil, err
	}
	rawRoots := out[0].([][32]byte)
	indices := out[1].([]uint16)
	records := make([]*types.ChallengeRecord, len(rawRoots))
	for i := range rawRoots {
		records[i] = &types.ChallengeRecord{
			Commitment: common.Hash(rawRoots[i]), ChunkIndex: indices[i], Provider: provider, State: types.ChallengeActive,
		}
	}
	return records, nil
}

func (c *ContractLedger) GetProviderExpiredChallenges(ctx context.Context, challenger common.Address) ([]*types.ChallengeRecord, error) {
	out, err := c.call(ctx, "getProviderExpiredChallenges", challenger)
	if err != nil {
		return nil, err
	}
	rawRoots := out[0].([][32]byte)
	indices := out[1].([]uint16)
	providers := out[2].([]common.Address)
	records := make([]*types.ChallengeRecord, len(rawRoots))
	for i := range rawRoots {
		records[i] = &types.ChallengeRecord{
			Challenger: challenger, Commitment: common.Hash(rawRoots[i]), ChunkIndex: indices[i],
			Provider: providers[i], State: types.ChallengeActive,
		}
	}
	return records, nil
}

func (c *ContractLedger) SlashExpiredChallenge(ctx context.Context, root common.Hash, index uint16, provider common.Address) error {
	err := c.send(ctx, "slashExpiredChallenge", root, index, provider)
	if err != nil && strings.Contains(err.Error(), "already") {
		return types.ErrAlreadySlashed
	}
	return err
}

func (c *ContractLedger) VerifyChunkProof(ctx context.Context, proof *merkle.WireProof, root common.Hash, index uint16, data []byte) (bool, error) {
	siblings, rightFlags := wireProofToArrays(proof)
	out, err := c.call(ctx, "verifyChunkProof", siblings, rightFlags, root, index, data)
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

func wireProofToArrays(proof *merkle.WireProof) ([][32]byte, []bool) {
	siblings := make([][32]byte, len(proof.Path))
	rightFlags := make([]bool, len(proof.Path))
	for i, step := range proof.Path {
		raw, err := hex.DecodeString(step.Hash)
		if err == nil && len(raw) == 32 {
			copy(siblings[i][:], raw)
		}
		rightFlags[i] = step.Position == "right"
	}
	return siblings, rightFlags
}
