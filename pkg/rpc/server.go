package rpc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/usikolabs/usiko-middleware/pkg/auth"
	"github.com/usikolabs/usiko-middleware/pkg/facade"
	"github.com/usikolabs/usiko-middleware/pkg/host"
	"github.com/usikolabs/usiko-middleware/pkg/market"
	"github.com/usikolabs/usiko-middleware/pkg/royalty"
)

// Server handles JSON-RPC requests for the NFT and marketplace API
type Server struct {
	host      *host.Host
	nfts      *facade.TokenFacade
	market    *market.Marketplace
	royalties *royalty.Registry
	logger    *zap.Logger
	handler   *MethodHandler
}

// NewServer creates a new RPC server
func NewServer(
	h *host.Host,
	nfts *facade.TokenFacade,
	mkt *market.Marketplace,
	royalties *royalty.Registry,
	logger *zap.Logger,
) *Server {
	s := &Server{
		host:      h,
		nfts:      nfts,
		market:    mkt,
		royalties: royalties,
		logger:    logger,
	}

	// Create method handler
	s.handler = NewMethodHandler(s)

	return s
}

// ServeHTTP handles HTTP requests
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Read request body
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		s.writeError(w, nil, NewError(ParseError, "failed to read request"))
		return
	}

	// Parse JSON-RPC request
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, nil, NewError(ParseError, err.Error()))
		return
	}

	// Validate request
	if err := req.Validate(); err != nil {
		s.writeError(w, req.ID, NewError(InvalidRequest, err.Error()))
		return
	}

	// Check if method requires authentication
	requiresAuth := s.handler.RequiresAuth(req.Method)

	// Create context with request info
	ctx := r.Context()

	// Authenticate if required
	if requiresAuth {
		authCtx, err := s.authenticate(ctx, r)
		if err != nil {
			s.logger.Warn("Authentication failed",
				zap.String("method", req.Method),
				zap.Error(err))
			s.writeError(w, req.ID, NewError(Unauthorized, err.Error()))
			return
		}
		ctx = authCtx
	}

	// Handle the method
	result, rpcErr := s.handler.Handle(ctx, req.Method, req.Params)
	if rpcErr != nil {
		s.writeError(w, req.ID, rpcErr)
		return
	}

	// Write success response
	s.writeResponse(w, SuccessResponse(req.ID, result))
}

// authenticate verifies the request's EVM signature headers
func (s *Server) authenticate(ctx context.Context, r *http.Request) (context.Context, error) {
	signature := r.Header.Get("X-Signature")
	message := r.Header.Get("X-Message")

	if signature == "" || message == "" {
		return nil, &AuthError{Message: "no valid authentication provided"}
	}

	recoveredAddr, err := auth.VerifyEIP191Signature(message, signature)
	if err != nil {
		return nil, &AuthError{Message: "invalid signature: " + err.Error()}
	}

	return auth.WithEVMAddress(ctx, auth.NormalizeAddress(recoveredAddr.Hex())), nil
}

// writeResponse writes a JSON-RPC response
func (s *Server) writeResponse(w http.ResponseWriter, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// writeError writes a JSON-RPC error response
func (s *Server) writeError(w http.ResponseWriter, id interface{}, err *Error) {
	s.writeResponse(w, ErrorResponse(id, err))
}

// AuthError represents an authentication error
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}
