package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/bank"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/engine"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/ledger"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/plugin"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/router"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/treasury"
)

// Server handles REST API and WebSocket connections
type Server struct {
	engine *engine.Engine
	bank   *bank.Bank
	router *mux.Router
	hub    *Hub

	// The engine refuses overlapping calls instead of queueing them, so
	// the HTTP layer serializes mutations here.
	mu sync.Mutex

	corsOrigins []string
	faucet      bool
}

// NewServer creates a new API server. With faucet enabled the /faucet
// endpoint mints test balances; leave it off anywhere that matters.
func NewServer(eng *engine.Engine, bk *bank.Bank, corsOrigins []string, faucet bool) *Server {
	s := &Server{
		engine:      eng,
		bank:        bk,
		router:      mux.NewRouter(),
		hub:         NewHub(),
		corsOrigins: corsOrigins,
		faucet:      faucet,
	}

	eng.AddSink(s.hub)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Order endpoints
	api.HandleFunc("/orders", s.handleListOrders).Methods("GET")
	api.HandleFunc("/orders", s.handleCreateOrder).Methods("POST")
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{id}/fill", s.handleFillOrder).Methods("POST")
	api.HandleFunc("/orders/{id}/cancel", s.handleCancelOrder).Methods("POST")

	// Batch endpoints
	api.HandleFunc("/batch/fill", s.handleBatchFill).Methods("POST")
	api.HandleFunc("/batch/fill-sequence", s.handleBatchFillSequence).Methods("POST")

	// Routing
	api.HandleFunc("/route/plan", s.handlePlanRoute).Methods("POST")

	// Treasury endpoints
	api.HandleFunc("/treasury/{token}", s.handleGetTreasury).Methods("GET")
	api.HandleFunc("/treasury/withdraw", s.handleWithdraw).Methods("POST")

	// Plugin listing
	api.HandleFunc("/plugins", s.handleListPlugins).Methods("GET")

	// Devnet faucet
	if s.faucet {
		api.HandleFunc("/faucet", s.handleFaucet).Methods("POST")
	}

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	// Start WebSocket hub
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	handler := c.Handler(s.router)

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, handler)
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders := s.engine.Orders()

	response := make([]OrderInfo, len(orders))
	for i, o := range orders {
		response[i] = s.orderInfo(o)
	}

	respondJSON(w, response)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	o, err := s.engine.GetOrder(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "order not found", err.Error())
		return
	}

	respondJSON(w, s.orderInfo(o))
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	maker, ok := parseAddress(w, req.Maker, "maker")
	if !ok {
		return
	}
	sellToken, ok := parseAddress(w, req.SellToken, "sellToken")
	if !ok {
		return
	}
	buyToken, ok := parseAddress(w, req.BuyToken, "buyToken")
	if !ok {
		return
	}
	sellAmount, ok := parseAmount(w, req.SellAmount, "sellAmount")
	if !ok {
		return
	}
	buyAmount, ok := parseAmount(w, req.BuyAmount, "buyAmount")
	if !ok {
		return
	}

	spec := engine.OrderSpec{
		SellToken:  sellToken,
		SellAmount: sellAmount,
		BuyToken:   buyToken,
		BuyAmount:  buyAmount,
		Deadline:   req.Deadline,
	}

	s.mu.Lock()
	var (
		id  uint64
		err error
	)
	if req.Permit != nil {
		sig, sigOK := decodeSignature(w, req.Permit.Signature)
		if !sigOK {
			s.mu.Unlock()
			return
		}
		id, err = s.engine.CreateOrderWithPermit(maker, spec, req.Permit.Deadline, sig)
	} else {
		id, err = s.engine.CreateOrder(maker, spec)
	}
	s.mu.Unlock()

	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, SubmitOrderResponse{Status: "created", OrderID: id})
}

func (s *Server) handleFillOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req FillOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	taker, ok := parseAddress(w, req.Taker, "taker")
	if !ok {
		return
	}
	recipient := taker
	if req.Recipient != "" {
		recipient, ok = parseAddress(w, req.Recipient, "recipient")
		if !ok {
			return
		}
	}

	var amountIn *big.Int
	if req.AmountIn != "" {
		amountIn, ok = parseAmount(w, req.AmountIn, "amountIn")
		if !ok {
			return
		}
	}

	var sig []byte
	if req.Permit != nil {
		sig, ok = decodeSignature(w, req.Permit.Signature)
		if !ok {
			return
		}
	}

	s.mu.Lock()
	var err error
	switch {
	case amountIn == nil && req.Permit == nil:
		err = s.engine.FillOrder(taker, id, recipient)
	case amountIn == nil:
		err = s.engine.FillOrderWithPermit(taker, id, recipient, req.Permit.Deadline, sig)
	case req.Permit == nil:
		err = s.engine.FillOrderPartially(taker, id, amountIn, recipient)
	default:
		err = s.engine.FillOrderPartiallyWithPermit(taker, id, amountIn, recipient, req.Permit.Deadline, sig)
	}
	s.mu.Unlock()

	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, map[string]string{"status": "filled"})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, ok := parseAddress(w, req.Caller, "caller")
	if !ok {
		return
	}

	s.mu.Lock()
	err := s.engine.CancelOrder(caller, id)
	s.mu.Unlock()

	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, map[string]string{"status": "cancelled"})
}

func (s *Server) handleBatchFill(w http.ResponseWriter, r *http.Request) {
	s.handleBatch(w, r, false)
}

func (s *Server) handleBatchFillSequence(w http.ResponseWriter, r *http.Request) {
	s.handleBatch(w, r, true)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request, sequence bool) {
	var req BatchFillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	taker, ok := parseAddress(w, req.Taker, "taker")
	if !ok {
		return
	}
	if len(req.Requests) == 0 {
		respondError(w, http.StatusBadRequest, "empty batch", "")
		return
	}

	requests := make([]engine.FillRequest, len(req.Requests))
	for i, step := range req.Requests {
		recipient := taker
		if step.Recipient != "" {
			recipient, ok = parseAddress(w, step.Recipient, "recipient")
			if !ok {
				return
			}
		}
		var amountIn *big.Int
		if step.AmountIn != "" {
			amountIn, ok = parseAmount(w, step.AmountIn, "amountIn")
			if !ok {
				return
			}
		}
		requests[i] = engine.FillRequest{
			OrderID:   step.OrderID,
			AmountIn:  amountIn,
			Recipient: recipient,
		}
	}

	s.mu.Lock()
	var err error
	if sequence {
		err = s.engine.BatchFillInSequence(taker, requests)
	} else {
		err = s.engine.BatchFill(taker, requests)
	}
	s.mu.Unlock()

	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, map[string]string{"status": "filled"})
}

func (s *Server) handlePlanRoute(w http.ResponseWriter, r *http.Request) {
	var req PlanRouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	sourceToken, ok := parseAddress(w, req.SourceToken, "sourceToken")
	if !ok {
		return
	}
	destinationToken, ok := parseAddress(w, req.DestinationToken, "destinationToken")
	if !ok {
		return
	}

	planReq := router.Request{
		SourceToken:      sourceToken,
		DestinationToken: destinationToken,
	}
	switch req.Kind {
	case "exactInput":
		planReq.Kind = router.ExactInput
		planReq.SourceAmount, ok = parseAmount(w, req.SourceAmount, "sourceAmount")
	case "exactOutput":
		planReq.Kind = router.ExactOutput
		planReq.DestinationAmount, ok = parseAmount(w, req.DestinationAmount, "destinationAmount")
	default:
		respondError(w, http.StatusBadRequest, "invalid kind", "want exactInput or exactOutput")
		return
	}
	if !ok {
		return
	}

	candidates := s.engine.Orders()
	plan := router.PlanRoute(planReq, candidates)
	totalIn, totalOut := router.PlanTotals(plan, candidates)

	steps := make([]RouteStepInfo, len(plan))
	for i, step := range plan {
		steps[i] = RouteStepInfo{OrderID: step.OrderID, AmountIn: step.AmountIn.String()}
	}

	respondJSON(w, PlanRouteResponse{
		Steps:    steps,
		TotalIn:  totalIn.String(),
		TotalOut: totalOut.String(),
	})
}

func (s *Server) handleGetTreasury(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	token, ok := parseAddress(w, vars["token"], "token")
	if !ok {
		return
	}

	t := s.engine.Treasury()
	respondJSON(w, TreasuryInfo{
		Token:      token.Hex(),
		Obligation: t.Obligation(token).String(),
		Available:  t.AvailableForWithdrawal(token).String(),
	})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, ok := parseAddress(w, req.Caller, "caller")
	if !ok {
		return
	}
	token, ok := parseAddress(w, req.Token, "token")
	if !ok {
		return
	}
	to, ok := parseAddress(w, req.To, "to")
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req.Amount, "amount")
	if !ok {
		return
	}

	s.mu.Lock()
	err := s.engine.Withdraw(caller, token, to, amount)
	s.mu.Unlock()

	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, map[string]string{"status": "withdrawn"})
}

func (s *Server) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	regs := s.engine.ListPlugins()

	type pluginInfo struct {
		Name  string   `json:"name"`
		Hooks []string `json:"hooks"`
	}

	response := make([]pluginInfo, len(regs))
	for i, reg := range regs {
		info := pluginInfo{Name: reg.Name}
		for p := plugin.BeforeCreate; p <= plugin.AfterFill; p++ {
			if reg.HookMask&(1<<uint8(p)) != 0 {
				info.Hooks = append(info.Hooks, p.String())
			}
		}
		response[i] = info
	}

	respondJSON(w, response)
}

func (s *Server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	var req FaucetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	token, ok := parseAddress(w, req.Token, "token")
	if !ok {
		return
	}
	to, ok := parseAddress(w, req.To, "to")
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req.Amount, "amount")
	if !ok {
		return
	}

	if err := s.bank.Mint(token, to, amount); err != nil {
		respondError(w, http.StatusBadRequest, "mint failed", err.Error())
		return
	}

	respondJSON(w, map[string]string{"status": "minted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) orderInfo(o ledger.Order) OrderInfo {
	info := OrderInfo{
		ID:         o.ID,
		Maker:      o.Maker.Hex(),
		SellToken:  o.SellToken.Hex(),
		SellAmount: o.SellAmount.String(),
		BuyToken:   o.BuyToken.Hex(),
		BuyAmount:  o.BuyAmount.String(),
		Deadline:   o.Deadline,
		CreatedAt:  o.CreatedAt,
	}
	if owner, ok := s.engine.OwnerOf(o.ID); ok {
		info.Owner = owner.Hex()
	}
	return info
}

// ==============================
// Helpers
// ==============================

func parseOrderID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", err.Error())
		return 0, false
	}
	return id, true
}

func parseAddress(w http.ResponseWriter, raw, field string) (common.Address, bool) {
	if !common.IsHexAddress(raw) {
		respondError(w, http.StatusBadRequest, "invalid address", field)
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func parseAmount(w http.ResponseWriter, raw, field string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() <= 0 {
		respondError(w, http.StatusBadRequest, "invalid amount", field)
		return nil, false
	}
	return v, true
}

func decodeSignature(w http.ResponseWriter, raw string) ([]byte, bool) {
	sig, err := hex.DecodeString(strings.TrimPrefix(raw, "0x"))
	if err != nil || len(sig) != 65 {
		respondError(w, http.StatusBadRequest, "invalid permit signature", "want 65 hex bytes")
		return nil, false
	}
	return sig, true
}

func respondEngineError(w http.ResponseWriter, err error) {
	var (
		notFound ledger.NotFoundError
		expired  engine.ExpiredError
		backing  treasury.InsufficientBackingError
		veto     plugin.VetoError
	)
	switch {
	case errors.As(err, &notFound):
		respondError(w, http.StatusNotFound, "order not found", err.Error())
	case errors.As(err, &expired):
		respondError(w, http.StatusGone, "order expired", err.Error())
	case errors.Is(err, engine.ErrNotOwner), errors.Is(err, engine.ErrNotAdmin):
		respondError(w, http.StatusForbidden, "not authorized", err.Error())
	case errors.As(err, &veto):
		respondError(w, http.StatusUnprocessableEntity, "vetoed by plugin", err.Error())
	case errors.As(err, &backing):
		respondError(w, http.StatusConflict, "insufficient backing", err.Error())
	case errors.Is(err, engine.ErrReentrantCall):
		respondError(w, http.StatusServiceUnavailable, "engine busy", err.Error())
	default:
		respondError(w, http.StatusBadRequest, "request rejected", err.Error())
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
