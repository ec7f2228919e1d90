package rpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/usikolabs/usiko-middleware/internal/metrics"
	"github.com/usikolabs/usiko-middleware/pkg/auth"
	"github.com/usikolabs/usiko-middleware/pkg/bank"
	"github.com/usikolabs/usiko-middleware/pkg/facade"
	"github.com/usikolabs/usiko-middleware/pkg/hts"
	"github.com/usikolabs/usiko-middleware/pkg/market"
	"github.com/usikolabs/usiko-middleware/pkg/royalty"
)

// MethodHandler handles JSON-RPC method dispatch
type MethodHandler struct {
	server *Server
}

// NewMethodHandler creates a new method handler
func NewMethodHandler(server *Server) *MethodHandler {
	return &MethodHandler{server: server}
}

// Methods that require authentication
var authenticatedMethods = map[string]bool{
	"nft_createCollection":  true,
	"nft_mint":              true,
	"nft_approve":           true,
	"nft_transfer":          true,
	"nft_burn":              true,
	"royalty_set":           true,
	"market_list":           true,
	"market_cancel":         true,
	"market_buy":            true,
	"market_setPlatformFee": true,
	"market_setFeeReceiver": true,
}

// RequiresAuth returns true if the method requires authentication
func (h *MethodHandler) RequiresAuth(method string) bool {
	return authenticatedMethods[method]
}

// Handle dispatches the method call
func (h *MethodHandler) Handle(ctx context.Context, method string, params json.RawMessage) (interface{}, *Error) {
	timer := metrics.RPCDuration.WithLabelValues(method)
	obs := startTimer()
	defer func() { timer.Observe(obs()) }()

	switch method {
	case "nft_name":
		return h.server.nfts.Name(), nil
	case "nft_symbol":
		return h.server.nfts.Symbol(), nil
	case "nft_totalSupply":
		return h.handleTotalSupply(ctx)
	case "nft_ownerOf":
		return h.handleOwnerOf(ctx, params)
	case "nft_getApproved":
		return h.handleGetApproved(ctx, params)
	case "nft_balanceOf":
		return h.handleBalanceOf(ctx, params)
	case "nft_metadataOf":
		return h.handleMetadataOf(ctx, params)
	case "nft_createCollection":
		return h.handleCreateCollection(ctx, params)
	case "nft_mint":
		return h.handleMint(ctx, params)
	case "nft_approve":
		return h.handleApprove(ctx, params)
	case "nft_transfer":
		return h.handleTransfer(ctx, params)
	case "nft_burn":
		return h.handleBurn(ctx, params)
	case "royalty_set":
		return h.handleSetRoyalty(ctx, params)
	case "royalty_of":
		return h.handleRoyaltyOf(ctx, params)
	case "market_list":
		return h.handleList(ctx, params)
	case "market_cancel":
		return h.handleCancel(ctx, params)
	case "market_buy":
		return h.handleBuy(ctx, params)
	case "market_listing":
		return h.handleListing(ctx, params)
	case "market_platformFee":
		return h.handlePlatformFee(ctx)
	case "market_setPlatformFee":
		return h.handleSetPlatformFee(ctx, params)
	case "market_setFeeReceiver":
		return h.handleSetFeeReceiver(ctx, params)
	default:
		return nil, NewError(MethodNotFound, method)
	}
}

// caller extracts the authenticated caller address from the context
func caller(ctx context.Context) (common.Address, *Error) {
	addr, ok := auth.EVMAddressFromContext(ctx)
	if !ok {
		return common.Address{}, NewError(Unauthorized, "no authenticated caller")
	}
	return common.HexToAddress(addr), nil
}

// =============================================================================
// Token Methods
// =============================================================================

func (h *MethodHandler) handleTotalSupply(ctx context.Context) (interface{}, *Error) {
	var supply int64
	h.server.host.View(ctx, func(context.Context) error {
		supply = h.server.nfts.TotalSupply()
		return nil
	})
	return &SupplyResult{TotalSupply: supply}, nil
}

func (h *MethodHandler) handleOwnerOf(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	var p SerialParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewError(InvalidParams, err.Error())
	}
	var owner common.Address
	err := h.server.host.View(ctx, func(context.Context) error {
		var err error
		owner, err = h.server.nfts.OwnerOf(p.Serial)
		return err
	})
	if err != nil {
		return nil, mapDomainError(err)
	}
	return &OwnerResult{Serial: p.Serial, Owner: owner.Hex()}, nil
}

func (h *MethodHandler) handleGetApproved(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	var p SerialParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewError(InvalidParams, err.Error())
	}
	var operator common.Address
	err := h.server.host.View(ctx, func(context.Context) error {
		var err error
		operator, err = h.server.nfts.GetApproved(p.Serial)
		return err
	})
	if err != nil {
		return nil, mapDomainError(err)
	}
	return &OwnerResult{Serial: p.Serial, Owner: operator.Hex()}, nil
}

func (h *MethodHandler) handleBalanceOf(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	var p BalanceOfParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, NewError(InvalidParams, err.Error())
		}
	}
	addrStr := p.Address
	if addrStr == "" {
		if addr, ok := auth.EVMAddressFromContext(ctx); ok {
			addrStr = addr
		} else {
			return nil, NewError(InvalidParams, "address is required")
		}
	}
	if !auth.ValidateEVMAddress(addrStr) {
		return nil, NewError(InvalidParams, "invalid address")
	}
	account := common.HexToAddress(addrStr)
	var balance int64
	h.server.host.View(ctx, func(context.Context) error {
		balance = h.server.nfts.BalanceOf(account)
		return nil
	})
	return &BalanceResult{Balance: balance, Address: account.Hex()}, nil
}

func (h *MethodHandler) handleMetadataOf(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	var p SerialParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewError(InvalidParams, err.Error())
	}
	var md []byte
	err := h.server.host.View(ctx, func(context.Context) error {
		var err error
		md, err = h.server.nfts.MetadataOf(p.Serial)
		return err
	})
	if err != nil {
		return nil, mapDomainError(err)
	}
	return &MetadataResult{Serial: p.Serial, Metadata: base64.StdEncoding.EncodeToString(md)}, nil
}

func (h *MethodHandler) handleCreateCollection(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	from, rpcErr := caller(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var p CreateCollectionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewError(InvalidParams, err.Error())
	}
	if p.Name == "" || p.Symbol == "" {
		return nil, NewError(InvalidParams, "name and symbol are required")
	}
	funding, ok := new(big.Int).SetString(p.Funding, 10)
	if !ok {
		return nil, NewError(InvalidParams, "invalid funding amount")
	}

	var handle common.Address
	err := h.server.host.Execute(ctx, func(ctx context.Context) error {
		var err error
		handle, err = h.server.nfts.CreateCollection(ctx, from, p.Name, p.Symbol, funding)
		return err
	})
	if err != nil {
		h.server.logger.Error("Create collection failed", zap.Error(err))
		return nil, mapDomainError(err)
	}
	return &CollectionResult{Collection: handle.Hex()}, nil
}

func (h *MethodHandler) handleMint(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	from, rpcErr := caller(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var p MintParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewError(InvalidParams, err.Error())
	}
	if !auth.ValidateEVMAddress(p.To) {
		return nil, NewError(InvalidParams, "invalid recipient address")
	}
	metadata, err := base64.StdEncoding.DecodeString(p.Metadata)
	if err != nil {
		return nil, NewError(InvalidParams, "metadata must be base64-encoded")
	}

	var serial, supply int64
	err = h.server.host.Execute(ctx, func(ctx context.Context) error {
		var err error
		serial, err = h.server.nfts.MintNFT(ctx, from, common.HexToAddress(p.To), metadata)
		if err != nil {
			return err
		}
		supply = h.server.nfts.TotalSupply()
		return nil
	})
	if err != nil {
		metrics.MintsTotal.WithLabelValues("failed").Inc()
		h.server.logger.Error("Mint failed", zap.Error(err))
		return nil, mapDomainError(err)
	}
	metrics.MintsTotal.WithLabelValues("success").Inc()
	return &MintResult{Serial: serial, TotalSupply: supply}, nil
}

func (h *MethodHandler) handleApprove(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	from, rpcErr := caller(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var p ApproveParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewError(InvalidParams, err.Error())
	}
	operator := common.Address{}
	if p.Operator != "" {
		if !auth.ValidateEVMAddress(p.Operator) {
			return nil, NewError(InvalidParams, "invalid operator address")
		}
		operator = common.HexToAddress(p.Operator)
	}

	err := h.server.host.Execute(ctx, func(ctx context.Context) error {
		return h.server.nfts.Approve(ctx, from, p.Serial, operator)
	})
	if err != nil {
		return nil, mapDomainError(err)
	}
	return &TxResult{Success: true}, nil
}

func (h *MethodHandler) handleTransfer(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	from, rpcErr := caller(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var p TransferParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewError(InvalidParams, err.Error())
	}
	if !auth.ValidateEVMAddress(p.To) {
		return nil, NewError(InvalidParams, "invalid recipient address")
	}

	err := h.server.host.Execute(ctx, func(ctx context.Context) error {
		return h.server.nfts.TransferNFT(ctx, from, p.Serial, common.HexToAddress(p.To))
	})
	if err != nil {
		h.server.logger.Error("Transfer failed",
			zap.Int64("serial", p.Serial),
			zap.String("to", p.To),
			zap.Error(err))
		return nil, mapDomainError(err)
	}
	return &TxResult{Success: true}, nil
}

func (h *MethodHandler) handleBurn(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	from, rpcErr := caller(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var p SerialParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewError(InvalidParams, err.Error())
	}

	var supply int64
	err := h.server.host.Execute(ctx, func(ctx context.Context) error {
		if err := h.server.nfts.BurnNFT(ctx, from, p.Serial); err != nil {
			return err
		}
		supply = h.server.nfts.TotalSupply()
		return nil
	})
	if err != nil {
		metrics.BurnsTotal.WithLabelValues("failed").Inc()
		h.server.logger.Error("Burn failed", zap.Int64("serial", p.Serial), zap.Error(err))
		return nil, mapDomainError(err)
	}
	metrics.BurnsTotal.WithLabelValues("success").Inc()
	return &BurnResult{Success: true, TotalSupply: supply}, nil
}

// =============================================================================
// Royalty Methods
// =============================================================================

func (h *MethodHandler) handleSetRoyalty(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	from, rpcErr := caller(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var p SetRoyaltyParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewError(InvalidParams, err.Error())
	}
	if !auth.ValidateEVMAddress(p.Collection) || !auth.ValidateEVMAddress(p.Receiver) {
		return nil, NewError(InvalidParams, "invalid address")
	}

	err := h.server.host.Execute(ctx, func(ctx context.Context) error {
		return h.server.royalties.SetRoyalty(ctx, from,
			common.HexToAddress(p.Collection), common.HexToAddress(p.Receiver), p.Bps)
	})
	if err != nil {
		return nil, mapDomainError(err)
	}
	return &TxResult{Success: true}, nil
}

func (h *MethodHandler) handleRoyaltyOf(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	var p RoyaltyOfParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewError(InvalidParams, err.Error())
	}
	if !auth.ValidateEVMAddress(p.Collection) {
		return nil, NewError(InvalidParams, "invalid collection address")
	}
	var receiver common.Address
	var bps uint16
	h.server.host.View(ctx, func(context.Context) error {
		receiver, bps = h.server.royalties.RoyaltyOf(common.HexToAddress(p.Collection))
		return nil
	})
	return &RoyaltyResult{Collection: p.Collection, Receiver: receiver.Hex(), Bps: bps}, nil
}

// =============================================================================
// Marketplace Methods
// =============================================================================

func (h *MethodHandler) handleList(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	from, rpcErr := caller(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var p ListParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewError(InvalidParams, err.Error())
	}
	if !auth.ValidateEVMAddress(p.Collection) {
		return nil, NewError(InvalidParams, "invalid collection address")
	}
	price, ok := new(big.Int).SetString(p.Price, 10)
	if !ok {
		return nil, NewError(InvalidParams, "invalid price")
	}
	currency := common.Address{}
	if p.Currency != "" {
		if !auth.ValidateEVMAddress(p.Currency) {
			return nil, NewError(InvalidParams, "invalid currency address")
		}
		currency = common.HexToAddress(p.Currency)
	}

	var id uint64
	err := h.server.host.Execute(ctx, func(ctx context.Context) error {
		var err error
		id, err = h.server.market.List(ctx, from, common.HexToAddress(p.Collection),
			p.Serial, price, currency, p.RoyaltyOverrideBps)
		return err
	})
	if err != nil {
		return nil, mapDomainError(err)
	}
	metrics.ActiveListings.Inc()
	return &ListResult{ListingID: id}, nil
}

func (h *MethodHandler) handleCancel(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	from, rpcErr := caller(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var p ListingIDParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewError(InvalidParams, err.Error())
	}

	err := h.server.host.Execute(ctx, func(ctx context.Context) error {
		return h.server.market.Cancel(ctx, from, p.ListingID)
	})
	if err != nil {
		return nil, mapDomainError(err)
	}
	metrics.ActiveListings.Dec()
	return &TxResult{Success: true}, nil
}

func (h *MethodHandler) handleBuy(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	from, rpcErr := caller(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var p BuyParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewError(InvalidParams, err.Error())
	}
	payment, ok := new(big.Int).SetString(p.Payment, 10)
	if !ok {
		return nil, NewError(InvalidParams, "invalid payment amount")
	}

	// The split is captured inside the call boundary so the response reports
	// exactly what the sale disbursed, regardless of concurrent fee or
	// royalty changes.
	var split market.Split
	err := h.server.host.Execute(ctx, func(ctx context.Context) error {
		var err error
		split, err = h.server.market.Buy(ctx, from, p.ListingID, payment)
		return err
	})
	if err != nil {
		metrics.SalesTotal.WithLabelValues("failed").Inc()
		h.server.logger.Warn("Buy failed",
			zap.Uint64("listing_id", p.ListingID),
			zap.String("buyer", from.Hex()),
			zap.Error(err))
		return nil, mapDomainError(err)
	}

	metrics.SalesTotal.WithLabelValues("success").Inc()
	price, _ := new(big.Float).SetInt(payment).Float64()
	metrics.SaleAmount.WithLabelValues("native").Observe(price)
	metrics.ActiveListings.Dec()

	return &BuyResult{
		Success:       true,
		FeeAmount:     split.FeeAmount.String(),
		RoyaltyAmount: split.RoyaltyAmount.String(),
		SellerAmount:  split.SellerAmount.String(),
	}, nil
}

func (h *MethodHandler) handleListing(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	var p ListingIDParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewError(InvalidParams, err.Error())
	}
	var listing market.Listing
	err := h.server.host.View(ctx, func(context.Context) error {
		var err error
		listing, err = h.server.market.Listing(p.ListingID)
		return err
	})
	if err != nil {
		return nil, mapDomainError(err)
	}
	return &ListingResult{
		ListingID:          listing.ID,
		Seller:             listing.Seller.Hex(),
		Collection:         listing.Collection.Hex(),
		Serial:             listing.Serial,
		Price:              listing.Price.String(),
		Currency:           listing.Currency.Hex(),
		RoyaltyOverrideBps: listing.RoyaltyOverrideBps,
		State:              string(listing.State),
	}, nil
}

func (h *MethodHandler) handlePlatformFee(ctx context.Context) (interface{}, *Error) {
	var bps uint16
	var receiver common.Address
	h.server.host.View(ctx, func(context.Context) error {
		bps = h.server.market.PlatformFeeBps()
		receiver = h.server.market.FeeReceiver()
		return nil
	})
	return &FeeResult{FeeBps: bps, FeeReceiver: receiver.Hex()}, nil
}

func (h *MethodHandler) handleSetPlatformFee(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	from, rpcErr := caller(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var p struct {
		Bps uint16 `json:"bps"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewError(InvalidParams, err.Error())
	}
	err := h.server.host.Execute(ctx, func(ctx context.Context) error {
		return h.server.market.SetPlatformFee(ctx, from, p.Bps)
	})
	if err != nil {
		return nil, mapDomainError(err)
	}
	return &TxResult{Success: true}, nil
}

func (h *MethodHandler) handleSetFeeReceiver(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	from, rpcErr := caller(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var p struct {
		Receiver string `json:"receiver"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewError(InvalidParams, err.Error())
	}
	if !auth.ValidateEVMAddress(p.Receiver) {
		return nil, NewError(InvalidParams, "invalid receiver address")
	}
	err := h.server.host.Execute(ctx, func(ctx context.Context) error {
		return h.server.market.SetFeeReceiver(ctx, from, common.HexToAddress(p.Receiver))
	})
	if err != nil {
		return nil, mapDomainError(err)
	}
	return &TxResult{Success: true}, nil
}

// =============================================================================
// Helper Functions
// =============================================================================

// startTimer returns a closure reporting elapsed seconds
func startTimer() func() float64 {
	start := time.Now()
	return func() float64 { return time.Since(start).Seconds() }
}

// mapDomainError translates a domain error into a JSON-RPC error
func mapDomainError(err error) *Error {
	var transferErr *facade.TransferRejectedError
	var svcErr *hts.ServiceError

	switch {
	case errors.Is(err, facade.ErrUnauthorized),
		errors.Is(err, market.ErrUnauthorized),
		errors.Is(err, royalty.ErrUnauthorized):
		return NewError(Unauthorized, err.Error())
	case errors.Is(err, facade.ErrUnknownSerial),
		errors.Is(err, market.ErrListingNotFound):
		return NewError(NotFound, err.Error())
	case errors.Is(err, facade.ErrRecipientNotOptedIn):
		return NewError(NotOptedIn, err.Error())
	case errors.Is(err, market.ErrIncorrectPayment):
		return NewError(PaymentMismatch, err.Error())
	case errors.Is(err, market.ErrStaleListing):
		return NewError(StaleListing, err.Error())
	case errors.Is(err, bank.ErrInsufficientFunds):
		return NewError(InsufficientFunds, err.Error())
	case errors.Is(err, facade.ErrAlreadyInitialized),
		errors.Is(err, facade.ErrNotInitialized),
		errors.Is(err, market.ErrListingNotActive),
		errors.Is(err, market.ErrUnsupportedCurrency),
		errors.Is(err, market.ErrSplitOverflow):
		return NewError(InvalidState, err.Error())
	case errors.Is(err, facade.ErrFundingRequired),
		errors.Is(err, market.ErrInvalidPrice),
		errors.Is(err, market.ErrInvalidBps),
		errors.Is(err, market.ErrWrongCollection),
		errors.Is(err, market.ErrMarketplaceNotApproved),
		errors.Is(err, royalty.ErrInvalidBps):
		return NewError(InvalidParams, err.Error())
	case errors.Is(err, bank.ErrReceiverRejected),
		errors.As(err, &transferErr),
		errors.As(err, &svcErr):
		return NewError(LedgerRejected, err.Error())
	default:
		return NewError(InternalError, err.Error())
	}
}
