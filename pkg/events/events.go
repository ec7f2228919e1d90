// Package events implements the outbound notification interface of the
// middleware: an ordered, append-only log of ledger-visible state changes.
// External indexers consume the log to build derived state without replaying
// internal call traces.
package events

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Kind identifies the notification type.
type Kind string

const (
	KindCollectionCreated Kind = "CollectionCreated"
	KindMinted            Kind = "Minted"
	KindTransferred       Kind = "Transferred"
	KindBurned            Kind = "Burned"
	KindRoyaltySet        Kind = "RoyaltySet"
	KindListed            Kind = "Listed"
	KindCancelled         Kind = "Cancelled"
	KindSold              Kind = "Sold"
)

// CollectionCreated is emitted once when the facade's collection is created.
type CollectionCreated struct {
	Collection common.Address `json:"collection"`
	Name       string         `json:"name"`
	Symbol     string         `json:"symbol"`
	Owner      common.Address `json:"owner"`
}

// Minted is emitted after a successful mint.
type Minted struct {
	Collection     common.Address `json:"collection"`
	To             common.Address `json:"to"`
	Serial         int64          `json:"serial"`
	NewTotalSupply int64          `json:"newTotalSupply"`
}

// Transferred is emitted after a successful ownership change.
type Transferred struct {
	Collection common.Address `json:"collection"`
	From       common.Address `json:"from"`
	To         common.Address `json:"to"`
	Serial     int64          `json:"serial"`
}

// Burned is emitted after a serial is permanently retired.
type Burned struct {
	Collection     common.Address `json:"collection"`
	Serial         int64          `json:"serial"`
	NewTotalSupply int64          `json:"newTotalSupply"`
}

// RoyaltySet is emitted when a collection's royalty record is replaced.
type RoyaltySet struct {
	Collection common.Address `json:"collection"`
	Receiver   common.Address `json:"receiver"`
	Bps        uint16         `json:"bps"`
}

// Listed is emitted when a listing enters the Active state.
type Listed struct {
	ListingID  uint64         `json:"listingId"`
	Seller     common.Address `json:"seller"`
	Collection common.Address `json:"collection"`
	Serial     int64          `json:"serial"`
	Price      *big.Int       `json:"price"`
}

// Cancelled is emitted when a listing transitions Active -> Cancelled.
type Cancelled struct {
	ListingID uint64         `json:"listingId"`
	Seller    common.Address `json:"seller"`
}

// Sold is emitted when a listing transitions Active -> Sold, carrying the
// full payment split.
type Sold struct {
	ListingID     uint64         `json:"listingId"`
	Buyer         common.Address `json:"buyer"`
	Price         *big.Int       `json:"price"`
	FeeAmount     *big.Int       `json:"feeAmount"`
	RoyaltyAmount *big.Int       `json:"royaltyAmount"`
	SellerAmount  *big.Int       `json:"sellerAmount"`
}

// Event is one entry in the notification log.
type Event struct {
	// Seq is the log position, assigned at append time, strictly increasing.
	Seq uint64
	// ID is a unique identifier carried to external consumers.
	ID        string
	Kind      Kind
	Timestamp time.Time
	// Payload is one of the typed notification structs above.
	Payload any
}

// Emitter is implemented by the notification log and accepted by every
// component that reports state changes.
type Emitter interface {
	Emit(kind Kind, payload any)
}
