package api

// API request/response types for REST endpoints and WebSocket messages.
// Token amounts cross the wire as decimal strings; they do not fit in
// JSON-safe integers.

// ==============================
// REST Response Types
// ==============================

// OrderInfo represents a live order
type OrderInfo struct {
	ID         uint64 `json:"id"`
	Maker      string `json:"maker"`
	Owner      string `json:"owner,omitempty"` // current owner, if still bound
	SellToken  string `json:"sellToken"`
	SellAmount string `json:"sellAmount"`
	BuyToken   string `json:"buyToken"`
	BuyAmount  string `json:"buyAmount"`
	Deadline   int64  `json:"deadline"`  // Unix seconds, 0 = never
	CreatedAt  int64  `json:"createdAt"` // Unix seconds
}

// TreasuryInfo reports a token's escrow accounting
type TreasuryInfo struct {
	Token      string `json:"token"`
	Obligation string `json:"obligation"` // owed to live orders
	Available  string `json:"available"`  // surplus withdrawable by admin
}

// SubmitOrderResponse is the response from order creation
type SubmitOrderResponse struct {
	Status  string `json:"status"` // "created", "rejected"
	OrderID uint64 `json:"orderId,omitempty"`
}

// PlanRouteResponse carries the computed plan
type PlanRouteResponse struct {
	Steps       []RouteStepInfo `json:"steps"`
	TotalIn     string          `json:"totalIn"`
	TotalOut    string          `json:"totalOut"`
}

// RouteStepInfo is one hop of a plan
type RouteStepInfo struct {
	OrderID  uint64 `json:"orderId"`
	AmountIn string `json:"amountIn"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ==============================
// REST Request Types
// ==============================

// PermitPayload is an optional signature-based allowance folded into a
// create or fill call.
type PermitPayload struct {
	Deadline  int64  `json:"deadline"`  // Unix seconds, 0 = no expiry
	Signature string `json:"signature"` // 65-byte hex EIP-712 signature
}

// CreateOrderRequest is the payload for POST /api/v1/orders
type CreateOrderRequest struct {
	Maker      string         `json:"maker"`
	SellToken  string         `json:"sellToken"`
	SellAmount string         `json:"sellAmount"`
	BuyToken   string         `json:"buyToken"`
	BuyAmount  string         `json:"buyAmount"`
	Deadline   int64          `json:"deadline"`
	Permit     *PermitPayload `json:"permit,omitempty"`
}

// FillOrderRequest is the payload for POST /api/v1/orders/{id}/fill
// An empty AmountIn fills the order in full.
type FillOrderRequest struct {
	Taker     string         `json:"taker"`
	Recipient string         `json:"recipient"`
	AmountIn  string         `json:"amountIn,omitempty"`
	Permit    *PermitPayload `json:"permit,omitempty"`
}

// CancelOrderRequest is the payload for POST /api/v1/orders/{id}/cancel
type CancelOrderRequest struct {
	Caller string `json:"caller"`
}

// BatchFillRequest is the payload for POST /api/v1/batch/fill and
// /api/v1/batch/fill-sequence
type BatchFillRequest struct {
	Taker    string             `json:"taker"`
	Requests []BatchFillStep    `json:"requests"`
}

// BatchFillStep is one fill of a batch
type BatchFillStep struct {
	OrderID   uint64 `json:"orderId"`
	AmountIn  string `json:"amountIn,omitempty"` // empty = full fill
	Recipient string `json:"recipient"`
}

// PlanRouteRequest is the payload for POST /api/v1/route/plan
type PlanRouteRequest struct {
	Kind              string `json:"kind"` // "exactInput" or "exactOutput"
	SourceToken       string `json:"sourceToken"`
	DestinationToken  string `json:"destinationToken"`
	SourceAmount      string `json:"sourceAmount,omitempty"`
	DestinationAmount string `json:"destinationAmount,omitempty"`
}

// WithdrawRequest is the payload for POST /api/v1/treasury/withdraw
type WithdrawRequest struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// FaucetRequest is the payload for POST /api/v1/faucet (devnet only)
type FaucetRequest struct {
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["events"]
}
