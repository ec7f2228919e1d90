// Package market implements the fixed-price marketplace: listing lifecycle
// and the atomic buy protocol that splits a single payment into seller
// proceeds, a platform fee, and a creator royalty.
package market

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/usikolabs/usiko-middleware/pkg/events"
	"github.com/usikolabs/usiko-middleware/pkg/royalty"
)

var (
	ErrUnauthorized           = errors.New("caller not authorized")
	ErrInvalidPrice           = errors.New("price must be positive")
	ErrInvalidBps             = errors.New("basis points out of range")
	ErrMarketplaceNotApproved = errors.New("marketplace is not the approved operator for the token")
	ErrWrongCollection        = errors.New("collection is not served by this marketplace")
	ErrListingNotFound        = errors.New("listing not found")
	ErrListingNotActive       = errors.New("listing is not active")
	ErrStaleListing           = errors.New("seller no longer owns the token or approval was revoked")
	ErrIncorrectPayment       = errors.New("payment must equal the listing price exactly")
	ErrSplitOverflow          = errors.New("platform fee and royalty exceed the full price")
	ErrUnsupportedCurrency    = errors.New("only native currency settlement is supported")
)

// ListingState is the lifecycle state of a listing.
type ListingState string

const (
	StateActive    ListingState = "Active"
	StateSold      ListingState = "Sold"
	StateCancelled ListingState = "Cancelled"
)

// Listing is one fixed-price sale offer. Terminal states are never mutated.
type Listing struct {
	ID                 uint64
	Seller             common.Address
	Collection         common.Address
	Serial             int64
	Price              *big.Int
	Currency           common.Address
	RoyaltyOverrideBps uint16
	State              ListingState
}

// NFTRegistry is the ownership surface the marketplace needs from the token
// facade.
type NFTRegistry interface {
	Collection() common.Address
	OwnerOf(serial int64) (common.Address, error)
	GetApproved(serial int64) (common.Address, error)
	TransferNFT(ctx context.Context, caller common.Address, serial int64, to common.Address) error
}

// RoyaltyReader resolves a collection's default royalty record.
type RoyaltyReader interface {
	RoyaltyOf(collection common.Address) (common.Address, uint16)
}

// PaymentRail moves native currency between accounts.
type PaymentRail interface {
	Transfer(from, to common.Address, amount *big.Int) error
}

// Marketplace holds the listing table and settles buys atomically. The
// operator address is the identity sellers approve on the token facade.
type Marketplace struct {
	owner    common.Address
	operator common.Address

	feeBps      uint16
	feeReceiver common.Address

	nfts      NFTRegistry
	royalties RoyaltyReader
	pay       PaymentRail
	events    events.Emitter
	logger    *zap.Logger

	listings map[uint64]*Listing
	nextID   uint64
}

// New creates a marketplace. feeBps must not exceed royalty.MaxBps.
func New(
	owner, operator common.Address,
	feeBps uint16,
	feeReceiver common.Address,
	nfts NFTRegistry,
	royalties RoyaltyReader,
	pay PaymentRail,
	emitter events.Emitter,
	logger *zap.Logger,
) (*Marketplace, error) {
	if feeBps > royalty.MaxBps {
		return nil, ErrInvalidBps
	}
	return &Marketplace{
		owner:       owner,
		operator:    operator,
		feeBps:      feeBps,
		feeReceiver: feeReceiver,
		nfts:        nfts,
		royalties:   royalties,
		pay:         pay,
		events:      emitter,
		logger:      logger,
		listings:    make(map[uint64]*Listing),
	}, nil
}

// List creates an Active listing for a token the caller owns and has approved
// the marketplace to move. Listing ids are strictly increasing and never
// reused. A non-native currency is stored but cannot settle.
func (m *Marketplace) List(
	ctx context.Context,
	caller, collection common.Address,
	serial int64,
	price *big.Int,
	currency common.Address,
	royaltyOverrideBps uint16,
) (uint64, error) {
	if price == nil || price.Sign() <= 0 {
		return 0, ErrInvalidPrice
	}
	if royaltyOverrideBps > royalty.MaxBps {
		return 0, ErrInvalidBps
	}
	if collection != m.nfts.Collection() {
		return 0, ErrWrongCollection
	}

	// Ownership and approval are read from the facade, never trusted from
	// the caller.
	owner, err := m.nfts.OwnerOf(serial)
	if err != nil {
		return 0, err
	}
	if owner != caller {
		return 0, ErrUnauthorized
	}
	approved, err := m.nfts.GetApproved(serial)
	if err != nil {
		return 0, err
	}
	if approved != m.operator {
		return 0, ErrMarketplaceNotApproved
	}

	m.nextID++
	listing := &Listing{
		ID:                 m.nextID,
		Seller:             caller,
		Collection:         collection,
		Serial:             serial,
		Price:              new(big.Int).Set(price),
		Currency:           currency,
		RoyaltyOverrideBps: royaltyOverrideBps,
		State:              StateActive,
	}
	m.listings[listing.ID] = listing

	m.events.Emit(events.KindListed, events.Listed{
		ListingID:  listing.ID,
		Seller:     caller,
		Collection: collection,
		Serial:     serial,
		Price:      new(big.Int).Set(price),
	})
	m.logger.Info("Listed",
		zap.Uint64("listing_id", listing.ID),
		zap.Int64("serial", serial),
		zap.String("seller", caller.Hex()),
		zap.String("price", price.String()))

	return listing.ID, nil
}

// Cancel transitions an Active listing to Cancelled. Seller only; no funds
// move.
func (m *Marketplace) Cancel(_ context.Context, caller common.Address, id uint64) error {
	listing, ok := m.listings[id]
	if !ok {
		return ErrListingNotFound
	}
	if listing.State != StateActive {
		return ErrListingNotActive
	}
	if listing.Seller != caller {
		return ErrUnauthorized
	}

	listing.State = StateCancelled

	m.events.Emit(events.KindCancelled, events.Cancelled{
		ListingID: id,
		Seller:    listing.Seller,
	})
	m.logger.Info("Cancelled", zap.Uint64("listing_id", id))

	return nil
}

// Buy settles an Active listing and returns the split it disbursed. The
// payment must equal the stored price exactly. The listing is marked Sold
// before the token moves or any funds are disbursed; a failure in either
// aborts the call and the host boundary rolls the Sold transition back,
// leaving the listing Active.
func (m *Marketplace) Buy(ctx context.Context, buyer common.Address, id uint64, payment *big.Int) (Split, error) {
	listing, ok := m.listings[id]
	if !ok {
		return Split{}, ErrListingNotFound
	}
	if listing.State != StateActive {
		return Split{}, ErrListingNotActive
	}
	if listing.Currency != (common.Address{}) {
		return Split{}, ErrUnsupportedCurrency
	}

	// The seller may have disposed of the token out-of-band since listing
	// time; re-validate before touching anything. A stale listing stays
	// Active so the seller can cancel or cure it.
	owner, err := m.nfts.OwnerOf(listing.Serial)
	if err != nil || owner != listing.Seller {
		return Split{}, ErrStaleListing
	}
	approved, err := m.nfts.GetApproved(listing.Serial)
	if err != nil || approved != m.operator {
		return Split{}, ErrStaleListing
	}

	if payment == nil || payment.Cmp(listing.Price) != 0 {
		return Split{}, ErrIncorrectPayment
	}

	royaltyReceiver, royaltyBps := m.royalties.RoyaltyOf(listing.Collection)
	if listing.RoyaltyOverrideBps != 0 {
		royaltyBps = listing.RoyaltyOverrideBps
	}
	// The setters keep this bound; re-check at sale time anyway.
	if uint32(m.feeBps)+uint32(royaltyBps) > royalty.MaxBps {
		return Split{}, ErrSplitOverflow
	}

	split := ComputeSplit(listing.Price, m.feeBps, royaltyBps)

	// Commit the terminal state before any external effect so a reentrant
	// call observes the listing as Sold.
	listing.State = StateSold

	if err := m.nfts.TransferNFT(ctx, m.operator, listing.Serial, buyer); err != nil {
		return Split{}, err
	}

	if err := m.pay.Transfer(buyer, m.feeReceiver, split.FeeAmount); err != nil {
		return Split{}, err
	}
	if split.RoyaltyAmount.Sign() > 0 {
		if err := m.pay.Transfer(buyer, royaltyReceiver, split.RoyaltyAmount); err != nil {
			return Split{}, err
		}
	}
	if err := m.pay.Transfer(buyer, listing.Seller, split.SellerAmount); err != nil {
		return Split{}, err
	}

	m.events.Emit(events.KindSold, events.Sold{
		ListingID:     id,
		Buyer:         buyer,
		Price:         new(big.Int).Set(listing.Price),
		FeeAmount:     split.FeeAmount,
		RoyaltyAmount: split.RoyaltyAmount,
		SellerAmount:  split.SellerAmount,
	})
	m.logger.Info("Sold",
		zap.Uint64("listing_id", id),
		zap.String("buyer", buyer.Hex()),
		zap.String("price", listing.Price.String()),
		zap.String("fee", split.FeeAmount.String()),
		zap.String("royalty", split.RoyaltyAmount.String()),
		zap.String("seller_amount", split.SellerAmount.String()))

	return split, nil
}

// Listing returns a copy of the listing.
func (m *Marketplace) Listing(id uint64) (Listing, error) {
	listing, ok := m.listings[id]
	if !ok {
		return Listing{}, ErrListingNotFound
	}
	cp := *listing
	cp.Price = new(big.Int).Set(listing.Price)
	return cp, nil
}

// FeeReceiver returns the platform fee receiver account.
func (m *Marketplace) FeeReceiver() common.Address { return m.feeReceiver }

// PlatformFeeBps returns the configured platform fee.
func (m *Marketplace) PlatformFeeBps() uint16 { return m.feeBps }

// Operator returns the address sellers must approve on the token facade.
func (m *Marketplace) Operator() common.Address { return m.operator }

// SetPlatformFee updates the platform fee. Marketplace owner only.
func (m *Marketplace) SetPlatformFee(_ context.Context, caller common.Address, bps uint16) error {
	if caller != m.owner {
		return ErrUnauthorized
	}
	if bps > royalty.MaxBps {
		return ErrInvalidBps
	}
	m.feeBps = bps
	return nil
}

// SetFeeReceiver updates the platform fee receiver. Marketplace owner only.
func (m *Marketplace) SetFeeReceiver(_ context.Context, caller, receiver common.Address) error {
	if caller != m.owner {
		return ErrUnauthorized
	}
	m.feeReceiver = receiver
	return nil
}

type marketSnapshot struct {
	feeBps      uint16
	feeReceiver common.Address
	nextID      uint64
	listings    map[uint64]*Listing
}

// Snapshot captures the marketplace state for host-level rollback.
func (m *Marketplace) Snapshot() any {
	snap := &marketSnapshot{
		feeBps:      m.feeBps,
		feeReceiver: m.feeReceiver,
		nextID:      m.nextID,
		listings:    make(map[uint64]*Listing, len(m.listings)),
	}
	for id, listing := range m.listings {
		cp := *listing
		cp.Price = new(big.Int).Set(listing.Price)
		snap.listings[id] = &cp
	}
	return snap
}

// Restore rewinds the marketplace to a previously captured snapshot.
func (m *Marketplace) Restore(v any) {
	snap := v.(*marketSnapshot)
	m.feeBps = snap.feeBps
	m.feeReceiver = snap.feeReceiver
	m.nextID = snap.nextID
	m.listings = make(map[uint64]*Listing, len(snap.listings))
	for id, listing := range snap.listings {
		cp := *listing
		cp.Price = new(big.Int).Set(listing.Price)
		m.listings[id] = &cp
	}
}
