// Package facade presents one native asset collection as a conventionally
// ownable token set: owner-of, balance-of, approve, transfer. Every mutation
// is delegated to the native asset service first; local ownership records are
// only updated after the native call reports success, so a failed call never
// corrupts the facade's view.
package facade

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/usikolabs/usiko-middleware/pkg/events"
	"github.com/usikolabs/usiko-middleware/pkg/hts"
)

var (
	ErrAlreadyInitialized  = errors.New("collection already initialized")
	ErrNotInitialized      = errors.New("collection not initialized")
	ErrUnauthorized        = errors.New("caller not authorized")
	ErrRecipientNotOptedIn = errors.New("recipient has not opted in to the collection")
	ErrUnknownSerial       = errors.New("unknown serial")
	ErrFundingRequired     = errors.New("collection creation requires a positive funding amount")
)

// TransferRejectedError wraps the native code returned by a failed transfer.
type TransferRejectedError struct {
	Code hts.ResponseCode
}

func (e *TransferRejectedError) Error() string {
	return fmt.Sprintf("transfer rejected by native service: %s", e.Code)
}

// TokenFacade owns exactly one native collection. The owner account set at
// construction is the only account allowed to create the collection and mint.
type TokenFacade struct {
	owner    common.Address
	treasury common.Address
	svc      hts.AssetService
	events   events.Emitter
	logger   *zap.Logger

	initialized bool
	token       common.Address
	name        string
	symbol      string
	totalSupply int64

	owners    map[int64]common.Address
	approvals map[int64]common.Address
	metadata  map[int64][]byte
	retired   map[int64]bool
}

// New creates a facade for a collection that does not exist yet.
func New(owner, treasury common.Address, svc hts.AssetService, emitter events.Emitter, logger *zap.Logger) *TokenFacade {
	return &TokenFacade{
		owner:     owner,
		treasury:  treasury,
		svc:       svc,
		events:    emitter,
		logger:    logger,
		owners:    make(map[int64]common.Address),
		approvals: make(map[int64]common.Address),
		metadata:  make(map[int64][]byte),
		retired:   make(map[int64]bool),
	}
}

// CreateCollection creates the facade's collection on the native ledger.
// The funding amount must cover the native creation cost. Callable exactly
// once, by the facade owner only.
func (f *TokenFacade) CreateCollection(ctx context.Context, caller common.Address, name, symbol string, funding *big.Int) (common.Address, error) {
	if caller != f.owner {
		return common.Address{}, ErrUnauthorized
	}
	if f.initialized {
		return common.Address{}, ErrAlreadyInitialized
	}
	if funding == nil || funding.Sign() <= 0 {
		return common.Address{}, ErrFundingRequired
	}

	handle, code := f.svc.CreateCollection(ctx, hts.CreateCollectionRequest{
		Name:     name,
		Symbol:   symbol,
		Treasury: f.treasury,
	}, funding)
	if !code.OK() {
		return common.Address{}, hts.NewServiceError("create collection", code)
	}

	f.initialized = true
	f.token = handle
	f.name = name
	f.symbol = symbol

	f.events.Emit(events.KindCollectionCreated, events.CollectionCreated{
		Collection: handle,
		Name:       name,
		Symbol:     symbol,
		Owner:      f.owner,
	})
	f.logger.Info("Collection created",
		zap.String("collection", handle.Hex()),
		zap.String("name", name),
		zap.String("symbol", symbol))

	return handle, nil
}

// MintNFT mints one token with the given metadata to the target account and
// returns the new serial. The metadata is opaque to the facade.
func (f *TokenFacade) MintNFT(ctx context.Context, caller, to common.Address, metadata []byte) (int64, error) {
	if !f.initialized {
		return 0, ErrNotInitialized
	}
	if caller != f.owner {
		return 0, ErrUnauthorized
	}

	res, code := f.svc.Mint(ctx, f.token, to, metadata)
	if code == hts.CodeTokenNotAssociatedToAccount {
		return 0, ErrRecipientNotOptedIn
	}
	if !code.OK() {
		return 0, hts.NewServiceError("mint", code)
	}

	f.totalSupply = res.NewTotalSupply
	f.owners[res.Serial] = to
	f.metadata[res.Serial] = append([]byte(nil), metadata...)

	f.events.Emit(events.KindMinted, events.Minted{
		Collection:     f.token,
		To:             to,
		Serial:         res.Serial,
		NewTotalSupply: res.NewTotalSupply,
	})
	f.logger.Info("Minted",
		zap.Int64("serial", res.Serial),
		zap.String("to", to.Hex()),
		zap.Int64("total_supply", res.NewTotalSupply))

	return res.Serial, nil
}

// TransferNFT moves a serial to the target account. The caller must be the
// serial's current owner or its approved operator. Any approval is cleared on
// a successful transfer.
func (f *TokenFacade) TransferNFT(ctx context.Context, caller common.Address, serial int64, to common.Address) error {
	if !f.initialized {
		return ErrNotInitialized
	}
	owner, ok := f.owners[serial]
	if !ok {
		return ErrUnknownSerial
	}
	if caller != owner && caller != f.approvals[serial] {
		return ErrUnauthorized
	}

	code := f.svc.Transfer(ctx, f.token, owner, to, serial)
	if code == hts.CodeTokenNotAssociatedToAccount {
		return ErrRecipientNotOptedIn
	}
	if !code.OK() {
		return &TransferRejectedError{Code: code}
	}

	f.owners[serial] = to
	delete(f.approvals, serial)

	f.events.Emit(events.KindTransferred, events.Transferred{
		Collection: f.token,
		From:       owner,
		To:         to,
		Serial:     serial,
	})

	return nil
}

// BurnNFT permanently retires a serial. The native burn primitive requires
// the serial to be in treasury custody, so the facade stages it there first;
// the host call boundary unwinds the staging transfer if the burn fails.
func (f *TokenFacade) BurnNFT(ctx context.Context, caller common.Address, serial int64) error {
	if !f.initialized {
		return ErrNotInitialized
	}
	owner, ok := f.owners[serial]
	if !ok {
		return ErrUnknownSerial
	}
	if caller != f.owner && caller != owner {
		return ErrUnauthorized
	}

	if owner != f.treasury {
		code := f.svc.Transfer(ctx, f.token, owner, f.treasury, serial)
		if !code.OK() {
			return &TransferRejectedError{Code: code}
		}
	}

	res, code := f.svc.Burn(ctx, f.token, serial)
	if !code.OK() {
		return hts.NewServiceError("burn", code)
	}

	f.totalSupply = res.NewTotalSupply
	delete(f.owners, serial)
	delete(f.approvals, serial)
	delete(f.metadata, serial)
	f.retired[serial] = true

	f.events.Emit(events.KindBurned, events.Burned{
		Collection:     f.token,
		Serial:         serial,
		NewTotalSupply: res.NewTotalSupply,
	})
	f.logger.Info("Burned",
		zap.Int64("serial", serial),
		zap.Int64("total_supply", res.NewTotalSupply))

	return nil
}

// Approve sets the serial's approved operator. Only the serial's current
// owner may approve; the zero address clears the approval.
func (f *TokenFacade) Approve(_ context.Context, caller common.Address, serial int64, operator common.Address) error {
	if !f.initialized {
		return ErrNotInitialized
	}
	owner, ok := f.owners[serial]
	if !ok {
		return ErrUnknownSerial
	}
	if caller != owner {
		return ErrUnauthorized
	}

	if operator == (common.Address{}) {
		delete(f.approvals, serial)
	} else {
		f.approvals[serial] = operator
	}
	return nil
}

// OwnerOf returns the serial's current owner.
func (f *TokenFacade) OwnerOf(serial int64) (common.Address, error) {
	owner, ok := f.owners[serial]
	if !ok {
		return common.Address{}, ErrUnknownSerial
	}
	return owner, nil
}

// GetApproved returns the serial's approved operator, zero when unset.
func (f *TokenFacade) GetApproved(serial int64) (common.Address, error) {
	if _, ok := f.owners[serial]; !ok {
		return common.Address{}, ErrUnknownSerial
	}
	return f.approvals[serial], nil
}

// BalanceOf counts the serials currently owned by the account.
func (f *TokenFacade) BalanceOf(account common.Address) int64 {
	var n int64
	for _, owner := range f.owners {
		if owner == account {
			n++
		}
	}
	return n
}

// MetadataOf returns the opaque metadata set at mint time.
func (f *TokenFacade) MetadataOf(serial int64) ([]byte, error) {
	md, ok := f.metadata[serial]
	if !ok {
		return nil, ErrUnknownSerial
	}
	return append([]byte(nil), md...), nil
}

// TotalSupply returns the collection's current supply.
func (f *TokenFacade) TotalSupply() int64 { return f.totalSupply }

// Collection returns the native collection handle, zero before creation.
func (f *TokenFacade) Collection() common.Address { return f.token }

// Name returns the collection name set at creation.
func (f *TokenFacade) Name() string { return f.name }

// Symbol returns the collection symbol set at creation.
func (f *TokenFacade) Symbol() string { return f.symbol }

// Owner returns the facade's designated owner account.
func (f *TokenFacade) Owner() common.Address { return f.owner }

// CollectionOwner reports the recorded owner of a collection handle. It
// implements the ownership oracle the royalty registry consults.
func (f *TokenFacade) CollectionOwner(collection common.Address) (common.Address, bool) {
	if !f.initialized || collection != f.token {
		return common.Address{}, false
	}
	return f.owner, true
}

type facadeSnapshot struct {
	initialized bool
	token       common.Address
	name        string
	symbol      string
	totalSupply int64
	owners      map[int64]common.Address
	approvals   map[int64]common.Address
	metadata    map[int64][]byte
	retired     map[int64]bool
}

// Snapshot captures the facade's state for host-level rollback.
func (f *TokenFacade) Snapshot() any {
	snap := &facadeSnapshot{
		initialized: f.initialized,
		token:       f.token,
		name:        f.name,
		symbol:      f.symbol,
		totalSupply: f.totalSupply,
		owners:      make(map[int64]common.Address, len(f.owners)),
		approvals:   make(map[int64]common.Address, len(f.approvals)),
		metadata:    make(map[int64][]byte, len(f.metadata)),
		retired:     make(map[int64]bool, len(f.retired)),
	}
	for s, o := range f.owners {
		snap.owners[s] = o
	}
	for s, a := range f.approvals {
		snap.approvals[s] = a
	}
	for s, md := range f.metadata {
		snap.metadata[s] = append([]byte(nil), md...)
	}
	for s := range f.retired {
		snap.retired[s] = true
	}
	return snap
}

// Restore rewinds the facade to a previously captured snapshot.
func (f *TokenFacade) Restore(v any) {
	snap := v.(*facadeSnapshot)
	f.initialized = snap.initialized
	f.token = snap.token
	f.name = snap.name
	f.symbol = snap.symbol
	f.totalSupply = snap.totalSupply
	f.owners = make(map[int64]common.Address, len(snap.owners))
	for s, o := range snap.owners {
		f.owners[s] = o
	}
	f.approvals = make(map[int64]common.Address, len(snap.approvals))
	for s, a := range snap.approvals {
		f.approvals[s] = a
	}
	f.metadata = make(map[int64][]byte, len(snap.metadata))
	for s, md := range snap.metadata {
		f.metadata[s] = append([]byte(nil), md...)
	}
	f.retired = make(map[int64]bool, len(snap.retired))
	for s := range snap.retired {
		f.retired[s] = true
	}
}
