// Package hts defines the contract of the native ledger's token service.
//
// The native service reports outcomes through integer response codes rather
// than errors; callers are expected to translate every non-success code into
// a typed domain error before it crosses a package boundary.
package hts

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ResponseCode is the status returned by every native token service call.
// Values follow the Hedera response code enumeration for the subset the
// middleware interacts with.
type ResponseCode int32

const (
	// CodeUnknown is the zero value; a well-behaved service never returns it.
	CodeUnknown ResponseCode = 0
	// CodeSuccess indicates the call completed and its effects are committed.
	CodeSuccess ResponseCode = 22
	// CodeInsufficientTxFee indicates the attached payment did not cover the
	// native operation's cost.
	CodeInsufficientTxFee ResponseCode = 9
	// CodeInvalidTokenID indicates the referenced collection does not exist.
	CodeInvalidTokenID ResponseCode = 167
	// CodeTokenNotAssociatedToAccount indicates the target account has not
	// completed the opt-in required to hold this collection's tokens.
	CodeTokenNotAssociatedToAccount ResponseCode = 184
	// CodeSenderDoesNotOwnNFTSerial indicates a transfer from an account that
	// does not hold the serial.
	CodeSenderDoesNotOwnNFTSerial ResponseCode = 237
	// CodeInvalidNFTID indicates the serial does not exist or was burned.
	CodeInvalidNFTID ResponseCode = 241
	// CodeTreasuryMustOwnBurnedNFT indicates a burn was attempted while the
	// serial was held outside the treasury account.
	CodeTreasuryMustOwnBurnedNFT ResponseCode = 245
)

func (c ResponseCode) String() string {
	switch c {
	case CodeSuccess:
		return "SUCCESS"
	case CodeInsufficientTxFee:
		return "INSUFFICIENT_TX_FEE"
	case CodeInvalidTokenID:
		return "INVALID_TOKEN_ID"
	case CodeTokenNotAssociatedToAccount:
		return "TOKEN_NOT_ASSOCIATED_TO_ACCOUNT"
	case CodeSenderDoesNotOwnNFTSerial:
		return "SENDER_DOES_NOT_OWN_NFT_SERIAL"
	case CodeInvalidNFTID:
		return "INVALID_NFT_ID"
	case CodeTreasuryMustOwnBurnedNFT:
		return "TREASURY_MUST_OWN_BURNED_NFT"
	default:
		return fmt.Sprintf("CODE_%d", int32(c))
	}
}

// OK reports whether the code is the native success status.
func (c ResponseCode) OK() bool {
	return c == CodeSuccess
}

// CreateCollectionRequest describes a non-fungible collection to create.
type CreateCollectionRequest struct {
	Name     string
	Symbol   string
	Treasury common.Address
	// Memo is attached to the collection on the native ledger.
	Memo string
}

// MintResult is the payload returned by a successful mint.
type MintResult struct {
	Serial         int64
	NewTotalSupply int64
}

// BurnResult is the payload returned by a successful burn.
type BurnResult struct {
	NewTotalSupply int64
}
