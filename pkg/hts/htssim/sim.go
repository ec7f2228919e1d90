// Package htssim provides a deterministic in-memory stand-in for the native
// ledger's token service. It enforces the same preconditions the real service
// does (association before receipt, treasury custody before burn, strictly
// increasing serials) and reports outcomes through response codes.
//
// The simulator carries no locking of its own: calls are serialized by the
// host call boundary, mirroring the execution model of the target ledger.
package htssim

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/usikolabs/usiko-middleware/pkg/hts"
)

// DefaultCreationFee is the native cost of creating a collection, in the
// smallest native unit.
var DefaultCreationFee = big.NewInt(1_000_000_000)

type collection struct {
	name        string
	symbol      string
	treasury    common.Address
	nextSerial  int64
	totalSupply int64
	owners      map[int64]common.Address
	metadata    map[int64][]byte
}

// Simulator implements hts.AssetService in memory.
type Simulator struct {
	creationFee  *big.Int
	nextHandle   uint64
	collections  map[common.Address]*collection
	associations map[common.Address]map[common.Address]bool
}

// New creates a simulator with the default collection creation fee.
func New() *Simulator {
	return &Simulator{
		creationFee:  DefaultCreationFee,
		collections:  make(map[common.Address]*collection),
		associations: make(map[common.Address]map[common.Address]bool),
	}
}

// CreateCollection implements hts.AssetService.
func (s *Simulator) CreateCollection(_ context.Context, req hts.CreateCollectionRequest, funding *big.Int) (common.Address, hts.ResponseCode) {
	if funding == nil || funding.Cmp(s.creationFee) < 0 {
		return common.Address{}, hts.CodeInsufficientTxFee
	}

	s.nextHandle++
	handle := deriveHandle(s.nextHandle, req.Symbol)

	s.collections[handle] = &collection{
		name:       req.Name,
		symbol:     req.Symbol,
		treasury:   req.Treasury,
		nextSerial: 1,
		owners:     make(map[int64]common.Address),
		metadata:   make(map[int64][]byte),
	}

	// The treasury is associated implicitly at creation time.
	s.associate(handle, req.Treasury)

	return handle, hts.CodeSuccess
}

// Mint implements hts.AssetService.
func (s *Simulator) Mint(_ context.Context, handle common.Address, to common.Address, metadata []byte) (hts.MintResult, hts.ResponseCode) {
	coll, ok := s.collections[handle]
	if !ok {
		return hts.MintResult{}, hts.CodeInvalidTokenID
	}
	if !s.isAssociated(handle, to) {
		return hts.MintResult{}, hts.CodeTokenNotAssociatedToAccount
	}

	serial := coll.nextSerial
	coll.nextSerial++
	coll.totalSupply++
	coll.owners[serial] = to
	coll.metadata[serial] = append([]byte(nil), metadata...)

	return hts.MintResult{Serial: serial, NewTotalSupply: coll.totalSupply}, hts.CodeSuccess
}

// Transfer implements hts.AssetService.
func (s *Simulator) Transfer(_ context.Context, handle common.Address, from, to common.Address, serial int64) hts.ResponseCode {
	coll, ok := s.collections[handle]
	if !ok {
		return hts.CodeInvalidTokenID
	}
	owner, ok := coll.owners[serial]
	if !ok {
		return hts.CodeInvalidNFTID
	}
	if owner != from {
		return hts.CodeSenderDoesNotOwnNFTSerial
	}
	if !s.isAssociated(handle, to) {
		return hts.CodeTokenNotAssociatedToAccount
	}

	coll.owners[serial] = to
	return hts.CodeSuccess
}

// Burn implements hts.AssetService. Serials are retired permanently and never
// handed out again.
func (s *Simulator) Burn(_ context.Context, handle common.Address, serial int64) (hts.BurnResult, hts.ResponseCode) {
	coll, ok := s.collections[handle]
	if !ok {
		return hts.BurnResult{}, hts.CodeInvalidTokenID
	}
	owner, ok := coll.owners[serial]
	if !ok {
		return hts.BurnResult{}, hts.CodeInvalidNFTID
	}
	if owner != coll.treasury {
		return hts.BurnResult{}, hts.CodeTreasuryMustOwnBurnedNFT
	}

	delete(coll.owners, serial)
	delete(coll.metadata, serial)
	coll.totalSupply--

	return hts.BurnResult{NewTotalSupply: coll.totalSupply}, hts.CodeSuccess
}

// Associate records the account's opt-in for the collection. On the real
// ledger this is a separate account-signed transaction outside the
// middleware's control.
func (s *Simulator) Associate(handle, account common.Address) {
	s.associate(handle, account)
}

// Dissociate removes the account's opt-in. Used to exercise association
// failure paths.
func (s *Simulator) Dissociate(handle, account common.Address) {
	if set, ok := s.associations[handle]; ok {
		delete(set, account)
	}
}

func (s *Simulator) associate(handle, account common.Address) {
	set, ok := s.associations[handle]
	if !ok {
		set = make(map[common.Address]bool)
		s.associations[handle] = set
	}
	set[account] = true
}

func (s *Simulator) isAssociated(handle, account common.Address) bool {
	return s.associations[handle][account]
}

// OwnerOf reports the native owner record for a serial. Zero address when the
// serial does not exist.
func (s *Simulator) OwnerOf(handle common.Address, serial int64) common.Address {
	if coll, ok := s.collections[handle]; ok {
		return coll.owners[serial]
	}
	return common.Address{}
}

type simSnapshot struct {
	nextHandle   uint64
	collections  map[common.Address]*collection
	associations map[common.Address]map[common.Address]bool
}

// Snapshot captures the full simulator state for host-level rollback.
func (s *Simulator) Snapshot() any {
	snap := &simSnapshot{
		nextHandle:   s.nextHandle,
		collections:  make(map[common.Address]*collection, len(s.collections)),
		associations: make(map[common.Address]map[common.Address]bool, len(s.associations)),
	}
	for handle, coll := range s.collections {
		snap.collections[handle] = coll.clone()
	}
	for handle, set := range s.associations {
		cp := make(map[common.Address]bool, len(set))
		for acct := range set {
			cp[acct] = true
		}
		snap.associations[handle] = cp
	}
	return snap
}

// Restore rewinds the simulator to a previously captured snapshot.
func (s *Simulator) Restore(v any) {
	snap := v.(*simSnapshot)
	s.nextHandle = snap.nextHandle
	s.collections = make(map[common.Address]*collection, len(snap.collections))
	for handle, coll := range snap.collections {
		s.collections[handle] = coll.clone()
	}
	s.associations = make(map[common.Address]map[common.Address]bool, len(snap.associations))
	for handle, set := range snap.associations {
		cp := make(map[common.Address]bool, len(set))
		for acct := range set {
			cp[acct] = true
		}
		s.associations[handle] = cp
	}
}

func (c *collection) clone() *collection {
	cp := &collection{
		name:        c.name,
		symbol:      c.symbol,
		treasury:    c.treasury,
		nextSerial:  c.nextSerial,
		totalSupply: c.totalSupply,
		owners:      make(map[int64]common.Address, len(c.owners)),
		metadata:    make(map[int64][]byte, len(c.metadata)),
	}
	for serial, owner := range c.owners {
		cp.owners[serial] = owner
	}
	for serial, md := range c.metadata {
		cp.metadata[serial] = append([]byte(nil), md...)
	}
	return cp
}

func deriveHandle(n uint64, symbol string) common.Address {
	h := crypto.Keccak256([]byte(symbol), big.NewInt(int64(n)).Bytes())
	return common.BytesToAddress(h[12:])
}
