package hts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AssetService is the synchronous call interface of the native ledger's token
// primitives. Every method returns a ResponseCode instead of an error; a
// non-success code carries the native failure reason and implies the call had
// no effect.
type AssetService interface {
	// CreateCollection creates a new non-fungible collection and returns its
	// handle. The funding amount must cover the native creation cost.
	CreateCollection(ctx context.Context, req CreateCollectionRequest, funding *big.Int) (common.Address, ResponseCode)

	// Mint mints one token of the collection directly to the target account
	// and returns its serial. The target must have opted in to the collection.
	Mint(ctx context.Context, collection common.Address, to common.Address, metadata []byte) (MintResult, ResponseCode)

	// Transfer moves one serial between accounts. The recipient must have
	// opted in to the collection.
	Transfer(ctx context.Context, collection common.Address, from, to common.Address, serial int64) ResponseCode

	// Burn destroys one serial. The serial must be held by the collection's
	// treasury account at the time of the call.
	Burn(ctx context.Context, collection common.Address, serial int64) (BurnResult, ResponseCode)
}

// ServiceError wraps a non-success native response code so it can travel as a
// regular error with the raw code preserved for diagnostics.
type ServiceError struct {
	Op   string
	Code ResponseCode
}

func (e *ServiceError) Error() string {
	return "native asset service: " + e.Op + " failed with " + e.Code.String()
}

// NewServiceError builds a ServiceError for the given native operation.
func NewServiceError(op string, code ResponseCode) *ServiceError {
	return &ServiceError{Op: op, Code: code}
}
