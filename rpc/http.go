package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dqchain/core"
	"dqchain/native/certificate"
	nativecommon "dqchain/native/common"
	"dqchain/native/marketplace"
	"dqchain/native/token"
	"dqchain/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeForbidden      = -32002
	codeModulePaused   = -32010
	codeNotFound       = -32011
	codeInsufficient   = -32012
	codeConflict       = -32013
)

// Server exposes the ledger over JSON-RPC 2.0. Mutating methods require a
// bearer token; reads are open.
type Server struct {
	node      *core.Node
	authToken string
	log       *slog.Logger
}

// NewServer constructs an RPC server for the provided node. An empty authToken
// disables all mutating methods.
func NewServer(node *core.Node, authToken string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		node:      node,
		authToken: strings.TrimSpace(authToken),
		log:       logger.With("component", "rpc"),
	}
}

// Router builds the HTTP routing table: the JSON-RPC endpoint plus health and
// metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Post("/", s.handle)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start serves the router until the listener fails.
func (s *Server) Start(addr string) error {
	s.log.Info("starting JSON-RPC server", "addr", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"height": s.node.Height(),
	})
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

// errorToRPC maps ledger errors onto stable JSON-RPC error codes so clients
// can branch without string matching.
func errorToRPC(err error) (int, string) {
	switch {
	case errors.Is(err, nativecommon.ErrModulePaused):
		return codeModulePaused, err.Error()
	case errors.Is(err, token.ErrNotAuthorized),
		errors.Is(err, certificate.ErrNotAuthorized),
		errors.Is(err, marketplace.ErrNotAuthorized):
		return codeForbidden, err.Error()
	case errors.Is(err, certificate.ErrNotFound),
		errors.Is(err, marketplace.ErrCourseNotFound),
		errors.Is(err, token.ErrNoActiveStake):
		return codeNotFound, err.Error()
	case errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientRewardPool),
		errors.Is(err, marketplace.ErrInsufficientFunds):
		return codeInsufficient, err.Error()
	case errors.Is(err, certificate.ErrAlreadyIssued),
		errors.Is(err, token.ErrLockPeriodNotMet),
		errors.Is(err, marketplace.ErrNothingToWithdraw),
		errors.Is(err, marketplace.ErrCourseInactive):
		return codeConflict, err.Error()
	case errors.Is(err, token.ErrInvalidAmount),
		errors.Is(err, marketplace.ErrInvalidPrice),
		errors.Is(err, marketplace.ErrInvalidRevenueShare),
		errors.Is(err, certificate.ErrScoreTooLow),
		errors.Is(err, marketplace.ErrNotEnrolled),
		errors.Is(err, core.ErrInvalidRole):
		return codeInvalidParams, err.Error()
	default:
		return codeServerError, err.Error()
	}
}

func writeLedgerError(w http.ResponseWriter, id interface{}, err error) {
	code, message := errorToRPC(err)
	writeError(w, http.StatusOK, id, code, message, nil)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	bearer := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if bearer == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(bearer), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

type handlerFunc func(http.ResponseWriter, *http.Request, *RPCRequest)

type methodSpec struct {
	handler  handlerFunc
	requires bool // bearer auth
}

func (s *Server) methods() map[string]methodSpec {
	return map[string]methodSpec{
		// token module
		"token_balanceOf":                 {handler: s.handleTokenBalanceOf},
		"token_params":                    {handler: s.handleTokenParams},
		"token_stakeInfo":                 {handler: s.handleTokenStakeInfo},
		"token_stakingReward":             {handler: s.handleTokenStakingReward},
		"token_transfer":                  {handler: s.handleTokenTransfer, requires: true},
		"token_fundRewardPool":            {handler: s.handleTokenFundRewardPool, requires: true},
		"token_stake":                     {handler: s.handleTokenStake, requires: true},
		"token_unstake":                   {handler: s.handleTokenUnstake, requires: true},
		"token_rewardCourseCompletion":    {handler: s.handleTokenRewardCourseCompletion, requires: true},
		"token_rewardContribution":        {handler: s.handleTokenRewardContribution, requires: true},
		"token_setCourseCompletionReward": {handler: s.handleTokenSetCourseCompletionReward, requires: true},
		"token_setContributionReward":     {handler: s.handleTokenSetContributionReward, requires: true},
		"token_pause":                     {handler: s.handleTokenPause, requires: true},
		"token_unpause":                   {handler: s.handleTokenUnpause, requires: true},

		// certificate registry
		"cert_verify":       {handler: s.handleCertVerify},
		"cert_get":          {handler: s.handleCertGet},
		"cert_tokenURI":     {handler: s.handleCertTokenURI},
		"cert_holderTokens": {handler: s.handleCertHolderTokens},
		"cert_totalIssued":  {handler: s.handleCertTotalIssued},
		"cert_mint":         {handler: s.handleCertMint, requires: true},
		"cert_pause":        {handler: s.handleCertPause, requires: true},
		"cert_unpause":      {handler: s.handleCertUnpause, requires: true},

		// marketplace
		"market_getCourse":          {handler: s.handleMarketGetCourse},
		"market_nextCourseId":       {handler: s.handleMarketNextCourseID},
		"market_coursesByCreator":   {handler: s.handleMarketCoursesByCreator},
		"market_enrollments":        {handler: s.handleMarketEnrollments},
		"market_createCourse":       {handler: s.handleMarketCreateCourse, requires: true},
		"market_purchaseCourse":     {handler: s.handleMarketPurchaseCourse, requires: true},
		"market_updateCourse":       {handler: s.handleMarketUpdateCourse, requires: true},
		"market_toggleCourseStatus": {handler: s.handleMarketToggleCourseStatus, requires: true},
		"market_withdrawRevenue":    {handler: s.handleMarketWithdrawRevenue, requires: true},
		"market_issueCertificate":   {handler: s.handleMarketIssueCertificate, requires: true},
		"market_pause":              {handler: s.handleMarketPause, requires: true},
		"market_unpause":            {handler: s.handleMarketUnpause, requires: true},

		// node-level
		"dq_getSupplyInfo": {handler: s.handleGetSupplyInfo},
		"dq_getEvents":     {handler: s.handleGetEvents},
		"dq_getStatus":     {handler: s.handleGetStatus},
		"dq_hasRole":       {handler: s.handleHasRole},
		"dq_grantRole":     {handler: s.handleGrantRole, requires: true},
		"dq_revokeRole":    {handler: s.handleRevokeRole, requires: true},
	}
}

// handle decodes a JSON-RPC envelope and routes it to the named method.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() { _ = reader.Close() }()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	spec, ok := s.methods()[req.Method]
	if !ok {
		observability.RPCMetrics().Observe(req.Method, codeMethodNotFound, time.Since(started))
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
		return
	}
	if spec.requires {
		if authErr := s.requireAuth(r); authErr != nil {
			observability.RPCMetrics().Observe(req.Method, authErr.Code, time.Since(started))
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}
	rec := &statusRecorder{ResponseWriter: w}
	spec.handler(rec, r, req)
	observability.RPCMetrics().Observe(req.Method, rec.errCode, time.Since(started))
}

// statusRecorder sniffs the error code out of the encoded response so metrics
// see what the client saw.
type statusRecorder struct {
	http.ResponseWriter
	errCode int
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if r.errCode == 0 {
		var resp struct {
			Error *RPCError `json:"error"`
		}
		if err := json.Unmarshal(p, &resp); err == nil && resp.Error != nil {
			r.errCode = resp.Error.Code
		}
	}
	return r.ResponseWriter.Write(p)
}
