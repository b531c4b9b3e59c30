package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"

	"github.com/xtrntr/coinex/internal/chain"
	"github.com/xtrntr/coinex/internal/config"
	"github.com/xtrntr/coinex/internal/exchange"
	"github.com/xtrntr/coinex/internal/ledger"
	"github.com/xtrntr/coinex/internal/models"
	"github.com/xtrntr/coinex/internal/store/pgstore"
)

// Seed the database with funded demo accounts and a pair of crossing orders
// so the server starts with trade history to show.
func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.DBConnStr == "" {
		log.Fatal("seed requires db_conn_str (the in-memory backend starts empty)")
	}

	ctx := context.Background()
	store, err := pgstore.New(ctx, cfg.DBConnStr)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	// Skip seeding if trades already exist
	count, err := store.Trades().Count(ctx)
	if err != nil {
		log.Fatalf("Failed to check trades: %v", err)
	}
	if count > 0 {
		fmt.Printf("Database already has %d trades. No need to seed.\n", count)
		os.Exit(0)
	}

	chains := make([]chain.Chain, 0, len(cfg.Chains))
	for _, c := range cfg.Chains {
		chains = append(chains, chain.Chain{ID: c.ID, Name: c.Name, Decimals: c.Decimals})
	}
	registry, err := chain.NewRegistry(chains...)
	if err != nil {
		log.Fatalf("Invalid chain configuration: %v", err)
	}

	state := chain.NewState()
	state.SetLastBlock(chain.Block{ID: 1, Height: 1, Timestamp: int32(time.Now().Unix())})

	homes := make([]*ledger.Home, 0, len(chains))
	for _, c := range chains {
		homes = append(homes, ledger.NewHome(registry.Chain(c.ID), store.Balances(c.ID), state, ledger.NopSink{}, ledger.LogAll{}))
	}
	balances := ledger.NewHomes(homes...)
	engine := exchange.NewEngine(registry, state, store.Orders(), store.Trades(), balances, zap.NewNop())

	chainA, chainB := chains[0], chains[1]
	unitA := pow10(chainA.Decimals)
	unitB := pow10(chainB.Decimals)
	const (
		seller = uint64(1001)
		buyer  = uint64(1002)
	)

	// Fund both sides
	fund(ctx, balances.ForChain(chainA.ID), seller, 1000*unitA)
	fund(ctx, balances.ForChain(chainB.ID), buyer, 1000*unitB)

	// Seller offers 100 A coins at 2 A per B; buyer offers 50 B coins at
	// 0.5 B per A. The prices are reciprocal, so the pair crosses and fills
	// on submission.
	if _, err := engine.IssueOrder(ctx, seedTx(seller, 1), chainA.ID, chainB.ID, 100*unitA, 2*unitA); err != nil {
		log.Fatalf("Failed to place sell-side order: %v", err)
	}
	if _, err := engine.IssueOrder(ctx, seedTx(buyer, 2), chainB.ID, chainA.ID, 50*unitB, unitB/2); err != nil {
		log.Fatalf("Failed to place buy-side order: %v", err)
	}

	trades, err := engine.Trades(ctx, exchange.TradeFilter{}, 0, 99)
	if err != nil {
		log.Fatalf("Failed to read back trades: %v", err)
	}
	for _, t := range trades {
		fmt.Printf("trade: chain %d -> %d, quantity %d, price %d, account %d\n",
			t.ChainID, t.ExchangeID, t.ExchangeQuantity, t.ExchangePrice, t.AccountID)
	}
	for _, acct := range []uint64{seller, buyer} {
		for _, c := range []chain.Chain{chainA, chainB} {
			b, err := balances.ForChain(c.ID).Balance(ctx, acct)
			if err != nil {
				log.Fatalf("Failed to read balance: %v", err)
			}
			fmt.Printf("balance: account %d chain %s: %d (%d spendable)\n",
				acct, c.Name, b.Balance, b.Unconfirmed)
		}
	}
	fmt.Println("Successfully seeded the database!")
}

func pow10(d int32) int64 {
	n := int64(1)
	for i := int32(0); i < d; i++ {
		n *= 10
	}
	return n
}

func fund(ctx context.Context, home *ledger.Home, accountID uint64, amount int64) {
	tx := seedTx(accountID, 0)
	eventID := ledger.EventID{ID: tx.ID, FullHash: tx.FullHash, ChainID: home.Chain().ID}
	if err := home.AddToBalanceAndUnconfirmed(ctx, accountID, ledger.EventFunding, eventID, amount, 0); err != nil {
		log.Fatalf("Failed to fund account %d: %v", accountID, err)
	}
}

func seedTx(senderID uint64, index int16) models.TxContext {
	var buf [10]byte
	binary.LittleEndian.PutUint64(buf[:8], senderID)
	binary.LittleEndian.PutUint16(buf[8:], uint16(index))
	hash := sha3.Sum256(buf[:])
	return models.TxContext{
		ID:       binary.LittleEndian.Uint64(hash[:8]),
		FullHash: hash[:],
		SenderID: senderID,
		Height:   1,
		Index:    index,
	}
}
