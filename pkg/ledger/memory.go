package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/certen/poda/pkg/merkle"
	"github.com/certen/poda/pkg/types"
)

// ChallengeDeadlineBlocks is how many logical blocks after issuance a
// challenge's deadline falls; AdvanceBlock moves the in-memory clock for
// tests that exercise expiry/slashing without a real chain.
const ChallengeDeadlineBlocks = 10

// SlashDivisor is the fraction of stake burned per expired/failed challenge
// (stake / SlashDivisor), matching the 0.1 ETH from 1 ETH example in the
// slashing scenario.
const SlashDivisor = 10

// MemoryLedger is an in-memory Ledger double for tests: the provider gate,
// dispenser, and challenger logic all run against it identically to how
// they'd run against ContractLedger, with no network involved.
type MemoryLedger struct {
	mu sync.Mutex

	block uint64

	providers   map[common.Address]*types.ProviderRecord
	providerOrd []common.Address

	commitments map[common.Hash]*types.CommitmentRecord
	commitOrd   []common.Hash

	challenges map[string]*types.ChallengeRecord // key: challengeKey(root,index,provider)
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		providers:   make(map[common.Address]*types.ProviderRecord),
		commitments: make(map[common.Hash]*types.CommitmentRecord),
		challenges:  make(map[string]*types.ChallengeRecord),
	}
}

// AdvanceBlock moves the logical block clock forward by n — used by tests
// to make challenges expire deterministically.
func (l *MemoryLedger) AdvanceBlock(n uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.block += n
}

func challengeKey(root common.Hash, index uint16, provider common.Address) string {
	return fmt.Sprintf("%s:%d:%s", root.Hex(), index, provider.Hex())
}

func (l *MemoryLedger) RegisterProvider(_ context.Context, name, url string, stake uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	addr := common.BytesToAddress(crypto256(name))
	l.providers[addr] = &types.ProviderRecord{
		Name: name, URL: url, Addr: addr,
		RegisteredAt: l.block, StakedAmount: stake, Active: true,
	}
	l.providerOrd = append(l.providerOrd, addr)
	return nil
}

// RegisterProviderAt is a test convenience that pins a caller-chosen address
// instead of deriving one from the name, matching how a real deployment
// registers the address that signs its own transactions.
func (l *MemoryLedger) RegisterProviderAt(addr common.Address, name, url string, stake uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.providers[addr]; !exists {
		l.providerOrd = append(l.providerOrd, addr)
	}
	l.providers[addr] = &types.ProviderRecord{
		Name: name, URL: url, Addr: addr,
		RegisteredAt: l.block, StakedAmount: stake, Active: true,
	}
}

func (l *MemoryLedger) SubmitCommitment(_ context.Context, root common.Hash, size uint32, n, k uint16, kzg48 [48]byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.commitments[root]; exists {
		return types.ErrDuplicateCommitment
	}
	l.commitments[root] = &types.CommitmentRecord{
		Root: root, Size: size, TotalChunks: n, RequiredChunks: k,
		KzgCommitment: kzg48, ChunkOwner: make(map[uint16]common.Address),
	}
	l.commitOrd = append(l.commitOrd, root)
	return nil
}

func (l *MemoryLedger) SubmitChunkAttestations(_ context.Context, root common.Hash, provider common.Address, indices []uint16) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.commitments[root]
	if !ok {
		return types.ErrUnknownCommitment
	}
	for _, idx := range indices {
		if _, owned := rec.ChunkOwner[idx]; owned {
			continue // first-attester-wins; not an error, just a no-op
		}
		rec.ChunkOwner[idx] = provider
		rec.AvailableChunks++
	}
	return nil
}

func (l *MemoryLedger) GetCommitmentInfo(_ context.Context, root common.Hash) (*types.CommitmentRecord, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.commitments[root]
	if !ok {
		return nil, false, nil
	}
	cp := *rec
	cp.ChunkOwner = make(map[uint16]common.Address, len(rec.ChunkOwner))
	for k, v := range rec.ChunkOwner {
		cp.ChunkOwner[k] = v
	}
	return &cp, true, nil
}

func (l *MemoryLedger) GetProviderChunks(_ context.Context, root common.Hash, provider common.Address) ([]uint16, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.commitments[root]
	if !ok {
		return nil, types.ErrUnknownCommitment
	}
	var out []uint16
	for idx, owner := range rec.ChunkOwner {
		if owner == provider {
			out = append(out, idx)
		}
	}
	return out, nil
}

func (l *MemoryLedger) GetChunkOwner(_ context.Context, root common.Hash, index uint16) (common.Address, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.commitments[root]
	if !ok {
		return common.Address{}, false, types.ErrUnknownCommitment
	}
	owner, ok := rec.ChunkOwner[index]
	return owner, ok, nil
}

func (l *MemoryLedger) IsChunkAvailable(_ context.Context, root common.Hash, index uint16) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.commitments[root]
	if !ok {
		return false, types.ErrUnknownCommitment
	}
	_, ok = rec.ChunkOwner[index]
	return ok, nil
}

func (l *MemoryLedger) GetCommitmentList(_ context.Context) ([]common.Hash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]common.Hash, len(l.commitOrd))
	copy(out, l.commitOrd)
	return out, nil
}

func (l *MemoryLedger) GetActiveProviders(_ context.Context) ([]*types.ProviderRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*types.ProviderRecord
	for _, addr := range l.providerOrd {
		p := l.providers[addr]
		if p.Active {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (l *MemoryLedger) IssueChunkChallenge(_ context.Context, challenger common.Address, root common.Hash, index uint16, provider common.Address) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := challengeKey(root, index, provider)
	if existing, ok := l.challenges[key]; ok && existing.State == types.ChallengeActive {
		return "", types.ErrDuplicateChallenge
	}
	id := uuid.NewString()
	l.challenges[key] = &types.ChallengeRecord{
		ChallengeID: id, Challenger: challenger, Commitment: root,
		ChunkIndex: index, Provider: provider,
		Deadline: l.block + ChallengeDeadlineBlocks, State: types.ChallengeActive,
	}
	if p, ok := l.providers[provider]; ok {
		p.ChallengeCount++
	}
	return id, nil
}

func (l *MemoryLedger) RespondToChunkChallenge(_ context.Context, root common.Hash, index uint16, chunkData []byte, proof *merkle.WireProof) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.commitments[root]
	if !ok {
		return types.ErrUnknownCommitment
	}
	owner, owned := rec.ChunkOwner[index]
	if !owned {
		return fmt.Errorf("ledger: no owner recorded for chunk %d of %s", index, root.Hex())
	}
	key := challengeKey(root, index, owner)
	ch, ok := l.challenges[key]
	if !ok || ch.State != types.ChallengeActive {
		return fmt.Errorf("ledger: no active challenge for chunk %d of %s", index, root.Hex())
	}

	leaf := types.Chunk{Index: index, Data: chunkData}.Hash()
	parsed, err := merkle.FromWire(proof)
	valid := err == nil && merkle.VerifyProof(leaf[:], parsed, root[:])

	if !valid {
		l.slashLocked(owner, ch)
		rec.AvailableChunks--
		delete(rec.ChunkOwner, index)
		return types.ErrMerkleInvalid
	}
	ch.State = types.ChallengeResolved
	if p, ok := l.providers[owner]; ok {
		p.ChallengeSuccessCount++
	}
	return nil
}

func (l *MemoryLedger) GetChunkChallenge(_ context.Context, root common.Hash, index uint16, provider common.Address) (*types.ChallengeRecord, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.challenges[challengeKey(root, index, provider)]
	if !ok {
		return nil, false, nil
	}
	cp := *rec
	return &cp, true, nil
}

func (l *MemoryLedger) GetProviderActiveChallenges(_ context.Context, provider common.Address) ([]*types.ChallengeRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*types.ChallengeRecord
	for _, ch := range l.challenges {
		if ch.Provider == provider && ch.State == types.ChallengeActive {
			cp := *ch
			out = append(out, &cp)
		}
	}
	return out, nil
}

// GetProviderExpiredChallenges returns the caller's (challenger's) own
// expired-but-unslashed challenges — the ledger associates expiry lookups
// with the challenger identity, not the provider.
func (l *MemoryLedger) GetProviderExpiredChallenges(_ context.Context, challenger common.Address) ([]*types.ChallengeRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*types.ChallengeRecord
	for _, ch := range l.challenges {
		if ch.Challenger == challenger && ch.State == types.ChallengeActive && l.block >= ch.Deadline {
			cp := *ch
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (l *MemoryLedger) SlashExpiredChallenge(_ context.Context, root common.Hash, index uint16, provider common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := challengeKey(root, index, provider)
	ch, ok := l.challenges[key]
	if !ok || ch.State != types.ChallengeActive {
		return types.ErrAlreadySlashed
	}
	if l.block < ch.Deadline {
		return fmt.Errorf("ledger: challenge %s has not yet expired", ch.ChallengeID)
	}
	l.slashLocked(provider, ch)
	if rec, ok := l.commitments[root]; ok {
		if _, owned := rec.ChunkOwner[index]; owned {
			delete(rec.ChunkOwner, index)
			rec.AvailableChunks--
		}
	}
	return nil
}

func (l *MemoryLedger) slashLocked(provider common.Address, ch *types.ChallengeRecord) {
	ch.State = types.ChallengeExpiredSlashed
	p, ok := l.providers[provider]
	if !ok {
		return
	}
	p.StakedAmount -= p.StakedAmount / SlashDivisor
}

func (l *MemoryLedger) VerifyChunkProof(_ context.Context, proof *merkle.WireProof, root common.Hash, index uint16, data []byte) (bool, error) {
	parsed, err := merkle.FromWire(proof)
	if err != nil {
		return false, nil
	}
	leaf := types.Chunk{Index: index, Data: data}.Hash()
	return merkle.VerifyProof(leaf[:], parsed, root[:]), nil
}

// crypto256 gives RegisterProvider a stable pseudo-address when the caller
// doesn't already control a real one; tests that need to control addresses
// should use RegisterProviderAt instead.
func crypto256(seed string) []byte {
	sum := uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed))
	b := sum[:]
	out := make([]byte, 20)
	copy(out, b)
	return out
}
