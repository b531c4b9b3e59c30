package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"

	"github.com/xtrntr/coinex/internal/api"
	"github.com/xtrntr/coinex/internal/auth"
	"github.com/xtrntr/coinex/internal/chain"
	"github.com/xtrntr/coinex/internal/config"
	"github.com/xtrntr/coinex/internal/exchange"
	"github.com/xtrntr/coinex/internal/ledger"
	"github.com/xtrntr/coinex/internal/models"
	"github.com/xtrntr/coinex/internal/store/memstore"
	"github.com/xtrntr/coinex/internal/store/pgstore"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

type WSClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

var (
	clients   = make(map[*WSClient]bool)
	clientsMu sync.RWMutex
)

func broadcastTrade(logger *zap.Logger, trade *models.Trade) {
	data, err := json.Marshal(trade)
	if err != nil {
		logger.Error("failed to marshal trade", zap.Error(err))
		return
	}

	clientsMu.RLock()
	var dead []*WSClient
	for client := range clients {
		client.mu.Lock()
		err := client.conn.WriteMessage(websocket.TextMessage, data)
		client.mu.Unlock()
		if err != nil {
			dead = append(dead, client)
		}
	}
	clientsMu.RUnlock()

	if len(dead) > 0 {
		clientsMu.Lock()
		for _, client := range dead {
			delete(clients, client)
		}
		clientsMu.Unlock()
	}
}

func handleWebSocket(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("failed to upgrade connection", zap.Error(err))
			return
		}

		client := &WSClient{conn: conn}
		clientsMu.Lock()
		clients[client] = true
		clientsMu.Unlock()

		// Keep connection alive and handle disconnection
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				clientsMu.Lock()
				delete(clients, client)
				clientsMu.Unlock()
				break
			}
		}
	}
}

// newBlock fabricates the next block position. Block ids are derived from a
// hash of the height so restarts reproduce the same ids for the same heights.
func newBlock(height int32) chain.Block {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(height))
	hash := sha3.Sum256(buf[:])
	return chain.Block{
		ID:        binary.LittleEndian.Uint64(hash[:8]),
		Height:    height,
		Timestamp: int32(time.Now().Unix()),
	}
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var logger *zap.Logger
	if cfg.Prod {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	chains := make([]chain.Chain, 0, len(cfg.Chains))
	for _, c := range cfg.Chains {
		chains = append(chains, chain.Chain{ID: c.ID, Name: c.Name, Decimals: c.Decimals})
	}
	registry, err := chain.NewRegistry(chains...)
	if err != nil {
		logger.Fatal("invalid chain configuration", zap.Error(err))
	}

	state := chain.NewState()
	state.SetLastBlock(newBlock(1))

	ctx := context.Background()
	sink := ledger.NewLogSink(logger)

	var (
		orderStore exchange.OrderStore
		tradeStore exchange.TradeStore
		homes      []*ledger.Home
	)
	if cfg.DBConnStr != "" {
		store, err := pgstore.New(ctx, cfg.DBConnStr)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer store.Close()
		orderStore = store.Orders()
		tradeStore = store.Trades()
		for _, c := range chains {
			homes = append(homes, ledger.NewHome(registry.Chain(c.ID), store.Balances(c.ID), state, sink, ledger.LogAll{}))
		}
		logger.Info("using postgres backend")
	} else {
		orderStore = memstore.NewOrders()
		tradeStore = memstore.NewTrades()
		for _, c := range chains {
			homes = append(homes, ledger.NewHome(registry.Chain(c.ID), memstore.NewBalances(), state, sink, ledger.LogAll{}))
		}
		logger.Info("using in-memory backend")
	}

	balances := ledger.NewHomes(homes...)
	engine := exchange.NewEngine(registry, state, orderStore, tradeStore, balances, logger)
	engine.AddTradeListener(func(t *models.Trade) {
		broadcastTrade(logger, t)
	})

	authService := auth.NewService(cfg.JWTSecret, cfg.AdminPasswordHash)

	// Transaction identities for API-submitted orders: hash of a process-local
	// counter, id taken from the first eight hash bytes.
	var txCounter uint64
	newTx := func(senderID uint64) models.TxContext {
		n := atomic.AddUint64(&txCounter, 1)
		var buf [16]byte
		binary.LittleEndian.PutUint64(buf[:8], n)
		binary.LittleEndian.PutUint64(buf[8:], uint64(time.Now().UnixNano()))
		hash := sha3.Sum256(buf[:])
		return models.TxContext{
			ID:       binary.LittleEndian.Uint64(hash[:8]),
			FullHash: hash[:],
			SenderID: senderID,
			Height:   state.Height(),
			Index:    int16(n % 32768),
		}
	}

	handler := api.NewHandler(engine, balances, registry, state, authService, newTx, logger)

	// Advance the chain position on a fixed interval.
	go func() {
		ticker := time.NewTicker(cfg.BlockInterval)
		for range ticker.C {
			handler.AdvanceBlock(newBlock(state.Height() + 1))
		}
	}()

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// WebSocket trade feed
	r.Get("/ws", handleWebSocket(logger))

	// Public endpoints
	r.Post("/auth/login", handler.Login)
	r.Get("/orders", handler.GetOrders)
	r.Get("/orders/count", handler.GetOrderCount)
	r.Get("/orders/{id}", handler.GetOrder)
	r.Get("/trades", handler.GetTrades)
	r.Get("/trades/count", handler.GetTradeCount)
	r.Get("/trades/{orderHash}/{matchHash}", handler.GetTrade)
	r.Get("/balances/{chain}/{account}", handler.GetBalance)

	// Protected endpoints (require JWT)
	r.Group(func(r chi.Router) {
		r.Use(handler.AuthMiddleware)
		r.Post("/orders", handler.PlaceOrder)
		r.Delete("/orders/{id}", handler.CancelOrder)
	})

	logger.Info("starting server", zap.String("addr", cfg.ListenAddr))
	if err := http.ListenAndServe(cfg.ListenAddr, r); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
