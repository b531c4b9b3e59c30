// Package api exposes the read surface of the ledger core (orders, trades,
// balances) and the operator-only submit/cancel endpoints. The write
// handlers serialize through a single mutex: the engine runs on a strictly
// ordered state-transition path and has no concurrent writers.
package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xtrntr/coinex/internal/auth"
	"github.com/xtrntr/coinex/internal/chain"
	"github.com/xtrntr/coinex/internal/exchange"
	"github.com/xtrntr/coinex/internal/ledger"
	"github.com/xtrntr/coinex/internal/models"
)

// TxFactory fabricates the transaction context for an order submitted over
// the API. Supplied by the node wiring; the core never invents identities.
type TxFactory func(senderID uint64) models.TxContext

// Handler contains dependencies for HTTP handlers.
type Handler struct {
	Engine   *exchange.Engine
	Balances *ledger.Homes
	Registry *chain.Registry
	State    *chain.State
	Auth     *auth.Service
	NewTx    TxFactory
	Log      *zap.Logger

	mu sync.Mutex // serializes the write path
}

func NewHandler(engine *exchange.Engine, balances *ledger.Homes, registry *chain.Registry, state *chain.State, authService *auth.Service, newTx TxFactory, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Engine:   engine,
		Balances: balances,
		Registry: registry,
		State:    state,
		Auth:     authService,
		NewTx:    newTx,
		Log:      log,
	}
}

// AdvanceBlock moves the chain position forward. It shares the write lock
// with the order endpoints so height never changes mid-submission.
func (h *Handler) AdvanceBlock(b chain.Block) {
	h.mu.Lock()
	h.State.SetLastBlock(b)
	h.mu.Unlock()
}

// Login exchanges the operator password for a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}
	token, err := h.Auth.Login(req.Password)
	if err != nil {
		http.Error(w, `{"error": "Invalid credentials"}`, http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// AuthMiddleware verifies the operator bearer token.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.Header.Get("Authorization")
		if tokenString == "" {
			http.Error(w, `{"error": "Authorization header required"}`, http.StatusUnauthorized)
			return
		}
		if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
			tokenString = tokenString[7:]
		}
		if err := h.Auth.VerifyToken(tokenString); err != nil {
			http.Error(w, `{"error": "Invalid or expired token"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PlaceOrder submits a new exchange order.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID  string `json:"account_id"`
		ChainID    uint32 `json:"chain_id"`
		ExchangeID uint32 `json:"exchange_id"`
		Quantity   int64  `json:"quantity"`
		BidPrice   int64  `json:"bid_price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}
	accountID, err := strconv.ParseUint(req.AccountID, 10, 64)
	if err != nil || accountID == 0 {
		http.Error(w, `{"error": "Invalid account id"}`, http.StatusBadRequest)
		return
	}
	if req.Quantity <= 0 || req.BidPrice <= 0 {
		http.Error(w, `{"error": "Quantity and bid price must be positive"}`, http.StatusBadRequest)
		return
	}
	if h.Registry.Chain(req.ChainID) == nil || h.Registry.Chain(req.ExchangeID) == nil {
		http.Error(w, `{"error": "Unknown chain"}`, http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	tx := h.NewTx(accountID)
	order, err := h.Engine.IssueOrder(r.Context(), tx, req.ChainID, req.ExchangeID, req.Quantity, req.BidPrice)
	h.mu.Unlock()
	if err != nil {
		if errors.Is(err, ledger.ErrInvariantViolation) {
			h.Log.Error("order issue aborted", zap.Error(err))
			http.Error(w, `{"error": "Order rejected"}`, http.StatusInternalServerError)
			return
		}
		http.Error(w, `{"error": "Order rejected"}`, http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusCreated, orderView(order))
}

// CancelOrder removes an open order and refunds the reserved quantity.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, `{"error": "Invalid order id"}`, http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	order, err := h.Engine.Order(r.Context(), orderID)
	if err == nil && order != nil {
		tx := h.NewTx(order.AccountID)
		err = h.Engine.CancelOrder(r.Context(), tx, orderID)
	}
	h.mu.Unlock()
	if err != nil {
		http.Error(w, `{"error": "Failed to cancel order"}`, http.StatusInternalServerError)
		return
	}
	if order == nil {
		http.Error(w, `{"error": "Order not found"}`, http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetOrder returns one open order by id.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, `{"error": "Invalid order id"}`, http.StatusBadRequest)
		return
	}
	order, err := h.Engine.Order(r.Context(), orderID)
	if err != nil {
		http.Error(w, `{"error": "Failed to get order"}`, http.StatusInternalServerError)
		return
	}
	if order == nil {
		http.Error(w, `{"error": "Order not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, orderView(order))
}

// GetOrders enumerates open orders with optional account/chain filters.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	filter := exchange.OrderFilter{
		AccountID:  queryUint64(r, "account"),
		ChainID:    uint32(queryUint64(r, "chain")),
		ExchangeID: uint32(queryUint64(r, "exchange")),
	}
	from, to := queryRange(r)
	orders, err := h.Engine.Orders(r.Context(), filter, from, to)
	if err != nil {
		http.Error(w, `{"error": "Failed to get orders"}`, http.StatusInternalServerError)
		return
	}
	views := make([]orderJSON, 0, len(orders))
	for _, o := range orders {
		views = append(views, orderView(o))
	}
	writeJSON(w, http.StatusOK, views)
}

// GetOrderCount returns the number of open orders.
func (h *Handler) GetOrderCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.Engine.OrderCount(r.Context())
	if err != nil {
		http.Error(w, `{"error": "Failed to count orders"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// GetTrade returns the trade identified by the two order hashes.
func (h *Handler) GetTrade(w http.ResponseWriter, r *http.Request) {
	orderHash, err1 := hex.DecodeString(chi.URLParam(r, "orderHash"))
	matchHash, err2 := hex.DecodeString(chi.URLParam(r, "matchHash"))
	if err1 != nil || err2 != nil {
		http.Error(w, `{"error": "Invalid trade hash"}`, http.StatusBadRequest)
		return
	}
	trade, err := h.Engine.Trade(r.Context(), orderHash, matchHash)
	if err != nil {
		http.Error(w, `{"error": "Failed to get trade"}`, http.StatusInternalServerError)
		return
	}
	if trade == nil {
		http.Error(w, `{"error": "Trade not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, tradeView(trade))
}

// GetTrades enumerates trades with optional filters, most recent first.
func (h *Handler) GetTrades(w http.ResponseWriter, r *http.Request) {
	filter := exchange.TradeFilter{
		AccountID:  queryUint64(r, "account"),
		ChainID:    uint32(queryUint64(r, "chain")),
		ExchangeID: uint32(queryUint64(r, "exchange")),
	}
	if s := r.URL.Query().Get("order"); s != "" {
		hash, err := hex.DecodeString(s)
		if err != nil {
			http.Error(w, `{"error": "Invalid order hash"}`, http.StatusBadRequest)
			return
		}
		filter.OrderFullHash = hash
	}
	from, to := queryRange(r)
	trades, err := h.Engine.Trades(r.Context(), filter, from, to)
	if err != nil {
		http.Error(w, `{"error": "Failed to get trades"}`, http.StatusInternalServerError)
		return
	}
	views := make([]tradeJSON, 0, len(trades))
	for _, t := range trades {
		views = append(views, tradeView(t))
	}
	writeJSON(w, http.StatusOK, views)
}

// GetTradeCount returns the total number of trades.
func (h *Handler) GetTradeCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.Engine.TradeCount(r.Context())
	if err != nil {
		http.Error(w, `{"error": "Failed to count trades"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// GetBalance returns an account's balance on a chain, optionally as of a
// given height.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	chainID, err := strconv.ParseUint(chi.URLParam(r, "chain"), 10, 32)
	if err != nil {
		http.Error(w, `{"error": "Invalid chain id"}`, http.StatusBadRequest)
		return
	}
	accountID, err := strconv.ParseUint(chi.URLParam(r, "account"), 10, 64)
	if err != nil {
		http.Error(w, `{"error": "Invalid account id"}`, http.StatusBadRequest)
		return
	}
	home := h.Balances.ForChain(uint32(chainID))
	if home == nil {
		http.Error(w, `{"error": "Unknown chain"}`, http.StatusNotFound)
		return
	}

	var balance *models.Balance
	if s := r.URL.Query().Get("height"); s != "" {
		height, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			http.Error(w, `{"error": "Invalid height"}`, http.StatusBadRequest)
			return
		}
		balance, err = home.BalanceAt(r.Context(), accountID, int32(height))
		if err != nil {
			http.Error(w, `{"error": "Failed to get balance"}`, http.StatusInternalServerError)
			return
		}
	} else {
		balance, err = home.Balance(r.Context(), accountID)
		if err != nil {
			http.Error(w, `{"error": "Failed to get balance"}`, http.StatusInternalServerError)
			return
		}
	}
	writeJSON(w, http.StatusOK, balanceJSON{
		AccountID:   strconv.FormatUint(balance.AccountID, 10),
		ChainID:     uint32(chainID),
		Balance:     balance.Balance,
		Unconfirmed: balance.Unconfirmed,
	})
}

func queryUint64(r *http.Request, key string) uint64 {
	v, _ := strconv.ParseUint(r.URL.Query().Get(key), 10, 64)
	return v
}

// queryRange parses the inclusive from/to index range, defaulting to the
// first hundred results.
func queryRange(r *http.Request) (int, int) {
	from, to := 0, 99
	if s := r.URL.Query().Get("from"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			from = v
		}
	}
	if s := r.URL.Query().Get("to"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			to = v
		}
	}
	return from, to
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
