package rpc

import (
	"encoding/json"
	"fmt"
)

// JSON-RPC 2.0 Types
// https://www.jsonrpc.org/specification

// Request represents a JSON-RPC 2.0 request
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id"`
}

// Response represents a JSON-RPC 2.0 response
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error represents a JSON-RPC 2.0 error
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Standard JSON-RPC error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603

	// Custom error codes (application-specific)
	Unauthorized      = -32001
	NotFound          = -32002
	InsufficientFunds = -32003
	InvalidState      = -32004
	PaymentMismatch   = -32005
	StaleListing      = -32006
	NotOptedIn        = -32007
	LedgerRejected    = -32008
)

// Error messages
var errorMessages = map[int]string{
	ParseError:        "Parse error",
	InvalidRequest:    "Invalid Request",
	MethodNotFound:    "Method not found",
	InvalidParams:     "Invalid params",
	InternalError:     "Internal error",
	Unauthorized:      "Unauthorized",
	NotFound:          "Not found",
	InsufficientFunds: "Insufficient funds",
	InvalidState:      "Invalid state",
	PaymentMismatch:   "Payment does not match listing price",
	StaleListing:      "Listing is stale",
	NotOptedIn:        "Recipient not opted in",
	LedgerRejected:    "Rejected by the native ledger",
}

// NewError creates a new JSON-RPC error
func NewError(code int, data interface{}) *Error {
	msg, ok := errorMessages[code]
	if !ok {
		msg = "Unknown error"
	}
	return &Error{
		Code:    code,
		Message: msg,
		Data:    data,
	}
}

// Validate validates the JSON-RPC request
func (r *Request) Validate() error {
	if r.JSONRPC != "2.0" {
		return fmt.Errorf("invalid jsonrpc version: expected 2.0")
	}
	if r.Method == "" {
		return fmt.Errorf("method is required")
	}
	return nil
}

// SuccessResponse creates a successful JSON-RPC response
func SuccessResponse(id interface{}, result interface{}) *Response {
	return &Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
}

// ErrorResponse creates an error JSON-RPC response
func ErrorResponse(id interface{}, err *Error) *Response {
	return &Response{
		JSONRPC: "2.0",
		Error:   err,
		ID:      id,
	}
}

// =============================================================================
// RPC Method Parameters
// =============================================================================

// CreateCollectionParams represents parameters for nft_createCollection
type CreateCollectionParams struct {
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
	Funding string `json:"funding"`
}

// MintParams represents parameters for nft_mint
type MintParams struct {
	To       string `json:"to"`
	Metadata string `json:"metadata"` // base64-encoded
}

// SerialParams represents parameters for serial-keyed queries
type SerialParams struct {
	Serial int64 `json:"serial"`
}

// TransferParams represents parameters for nft_transfer
type TransferParams struct {
	Serial int64  `json:"serial"`
	To     string `json:"to"`
}

// ApproveParams represents parameters for nft_approve
type ApproveParams struct {
	Serial   int64  `json:"serial"`
	Operator string `json:"operator"`
}

// BalanceOfParams represents parameters for nft_balanceOf
type BalanceOfParams struct {
	Address string `json:"address,omitempty"` // Optional - uses authenticated caller if not provided
}

// SetRoyaltyParams represents parameters for royalty_set
type SetRoyaltyParams struct {
	Collection string `json:"collection"`
	Receiver   string `json:"receiver"`
	Bps        uint16 `json:"bps"`
}

// RoyaltyOfParams represents parameters for royalty_of
type RoyaltyOfParams struct {
	Collection string `json:"collection"`
}

// ListParams represents parameters for market_list
type ListParams struct {
	Collection         string `json:"collection"`
	Serial             int64  `json:"serial"`
	Price              string `json:"price"`
	Currency           string `json:"currency,omitempty"` // empty means native
	RoyaltyOverrideBps uint16 `json:"royaltyOverrideBps,omitempty"`
}

// ListingIDParams represents parameters for listing-keyed methods
type ListingIDParams struct {
	ListingID uint64 `json:"listingId"`
}

// BuyParams represents parameters for market_buy
type BuyParams struct {
	ListingID uint64 `json:"listingId"`
	Payment   string `json:"payment"`
}

// =============================================================================
// RPC Method Results
// =============================================================================

// CollectionResult represents collection creation result
type CollectionResult struct {
	Collection string `json:"collection"`
}

// MintResult represents mint result
type MintResult struct {
	Serial      int64 `json:"serial"`
	TotalSupply int64 `json:"totalSupply"`
}

// OwnerResult represents ownership query result
type OwnerResult struct {
	Serial int64  `json:"serial"`
	Owner  string `json:"owner"`
}

// BalanceResult represents balance query result
type BalanceResult struct {
	Balance int64  `json:"balance"`
	Address string `json:"address"`
}

// MetadataResult represents metadata query result
type MetadataResult struct {
	Serial   int64  `json:"serial"`
	Metadata string `json:"metadata"` // base64-encoded
}

// SupplyResult represents total supply result
type SupplyResult struct {
	TotalSupply int64 `json:"totalSupply"`
}

// TxResult represents a generic mutation result
type TxResult struct {
	Success bool `json:"success"`
}

// BurnResult represents burn result
type BurnResult struct {
	Success     bool  `json:"success"`
	TotalSupply int64 `json:"totalSupply"`
}

// RoyaltyResult represents royalty query result
type RoyaltyResult struct {
	Collection string `json:"collection"`
	Receiver   string `json:"receiver"`
	Bps        uint16 `json:"bps"`
}

// ListResult represents listing creation result
type ListResult struct {
	ListingID uint64 `json:"listingId"`
}

// ListingResult represents listing query result
type ListingResult struct {
	ListingID          uint64 `json:"listingId"`
	Seller             string `json:"seller"`
	Collection         string `json:"collection"`
	Serial             int64  `json:"serial"`
	Price              string `json:"price"`
	Currency           string `json:"currency"`
	RoyaltyOverrideBps uint16 `json:"royaltyOverrideBps"`
	State              string `json:"state"`
}

// BuyResult represents buy result
type BuyResult struct {
	Success       bool   `json:"success"`
	FeeAmount     string `json:"feeAmount"`
	RoyaltyAmount string `json:"royaltyAmount"`
	SellerAmount  string `json:"sellerAmount"`
}

// FeeResult represents platform fee query result
type FeeResult struct {
	FeeBps      uint16 `json:"feeBps"`
	FeeReceiver string `json:"feeReceiver"`
}
