// Package main drives a deterministic pool lifecycle against the in-memory
// stack: create, buy to graduation, oracle repricing, sells, and withdrawals.
// Useful for eyeballing curve behavior under different parameters without a
// running server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"curvepool/internal/domain"
	"curvepool/internal/engine"
	"curvepool/internal/events"
	ledgermem "curvepool/internal/ledger/memory"
	"curvepool/internal/storage/memory"
)

// creator is a valid identity: the base58 form of the 32-byte zero key.
const creator = "11111111111111111111111111111111"

// stepClock advances one second per observation so cooldown math is
// reproducible run to run.
type stepClock struct {
	now int64
}

func (c *stepClock) Now() int64 {
	c.now++
	return c.now
}

type summary struct {
	Pool        *domain.FullTokenInfo      `json:"pool"`
	Progress    *domain.GraduationProgress `json:"progress"`
	Buys        int                        `json:"buys"`
	Sells       int                        `json:"sells"`
	TokensHeld  uint64                     `json:"tokens_held"`
	NetRefunded uint64                     `json:"net_refunded"`
	EventCounts map[events.Type]int        `json:"event_counts"`
}

func main() {
	k := flag.Uint64("k", 100, "Base multiplier of the bonding curve")
	feeRateBps := flag.Uint64("fee-rate-bps", 100, "Fee rate in basis points")
	totalSupply := flag.Uint64("total-supply", 10_000_000, "Total token supply minted into custody")
	threshold := flag.Uint64("graduation-threshold", 1_000_000, "Circulating supply that triggers graduation")
	oraclePrice := flag.Uint64("oracle-price", 250, "Oracle price applied after graduation")
	buyAmount := flag.Uint64("buy-amount", 1_000_000, "Settlement paid per buy")
	buys := flag.Int("buys", 150, "Number of buys to execute")
	sellFraction := flag.Uint64("sell-fraction", 4, "Sell 1/N of held tokens after the buy phase")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	logger := log.New(os.Stderr, "[simulate] ", log.LstdFlags)

	ctx := context.Background()

	pools := memory.NewPoolStore()
	tokens := ledgermem.NewTokenLedger()
	settle := ledgermem.NewSettlementLedger()
	recorder := events.NewRecorder()
	clock := &stepClock{}

	eng := engine.New(pools, tokens, settle, clock, recorder, nil)

	pool, err := eng.Create(ctx, engine.CreateParams{
		CreatorIdentity:           creator,
		Symbol:                    "SIM",
		Name:                      "Simulated Token",
		Decimals:                  6,
		AssetType:                 "token",
		TotalSupply:               *totalSupply,
		K:                         *k,
		FeeRateBps:                *feeRateBps,
		BackingRatioBps:           5000,
		WithdrawalLimitBps:        2000,
		WithdrawalCooldownSeconds: 60,
		GraduationThreshold:       *threshold,
		GraduationTarget:          "dex-main",
	})
	if err != nil {
		logger.Fatalf("create pool: %v", err)
	}

	trader := "trader-1"
	if err := settle.Mint(ctx, trader, *buyAmount*uint64(*buys)); err != nil {
		logger.Fatalf("fund trader: %v", err)
	}

	// Buy phase
	var held uint64
	executedBuys := 0
	for i := 0; i < *buys; i++ {
		got, err := eng.Buy(ctx, trader, creator, "SIM", *buyAmount)
		if err != nil {
			logger.Printf("buy %d failed: %v", i+1, err)
			break
		}
		held += got
		executedBuys++

		info, err := eng.GetTokenInfo(ctx, creator, "SIM")
		if err != nil {
			logger.Fatalf("token info: %v", err)
		}
		if info.SaleStatus == domain.SaleStatusGraduated && pool.OraclePrice == 0 {
			// First buy after the flip; set the oracle so trading continues.
			if err := eng.UpdateOraclePrice(ctx, creator, creator, "SIM", *oraclePrice); err != nil {
				logger.Fatalf("oracle update: %v", err)
			}
			pool.OraclePrice = *oraclePrice
			logger.Printf("graduated after %d buys, oracle price set to %d", executedBuys, *oraclePrice)
		}
	}

	// Sell phase
	var refunded uint64
	executedSells := 0
	if *sellFraction > 0 && held > 0 {
		toSell := held / *sellFraction
		if toSell > 0 {
			net, err := eng.Sell(ctx, trader, creator, "SIM", toSell)
			if err != nil {
				logger.Printf("sell failed: %v", err)
			} else {
				held -= toSell
				refunded = net
				executedSells = 1
			}
		}
	}

	// Creator sweeps accrued fees.
	winfo, err := eng.GetWithdrawalInfo(ctx, creator, "SIM")
	if err != nil {
		logger.Fatalf("withdrawal info: %v", err)
	}
	if winfo.FeeFloat > 0 {
		if err := eng.WithdrawFees(ctx, creator, creator, "SIM", winfo.FeeFloat); err != nil {
			logger.Fatalf("withdraw fees: %v", err)
		}
		logger.Printf("withdrew %d in fees", winfo.FeeFloat)
	}

	full, err := eng.GetFullTokenInfo(ctx, creator, "SIM")
	if err != nil {
		logger.Fatalf("full token info: %v", err)
	}
	progress, err := eng.GetGraduationProgress(ctx, creator, "SIM")
	if err != nil {
		logger.Fatalf("graduation progress: %v", err)
	}

	counts := make(map[events.Type]int)
	for _, ev := range recorder.Events() {
		counts[ev.Type]++
	}

	result := summary{
		Pool:        full,
		Progress:    progress,
		Buys:        executedBuys,
		Sells:       executedSells,
		TokensHeld:  held,
		NetRefunded: refunded,
		EventCounts: counts,
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return
	}
	printSummary(result)
}

func printSummary(s summary) {
	fmt.Println("=== Simulation Summary ===")
	fmt.Printf("Status:             %s\n", s.Pool.SaleStatus)
	fmt.Printf("Reserve:            %d\n", s.Pool.Reserve)
	fmt.Printf("Circulating supply: %d\n", s.Pool.CirculatingSupply)
	fmt.Printf("Graduation:         %d bps\n", s.Progress.ProgressBps)
	fmt.Printf("Buys executed:      %d\n", s.Buys)
	fmt.Printf("Sells executed:     %d\n", s.Sells)
	fmt.Printf("Tokens held:        %d\n", s.TokensHeld)
	fmt.Printf("Net refunded:       %d\n", s.NetRefunded)
	fmt.Println("Events:")
	for t, n := range s.EventCounts {
		fmt.Printf("  %-20s %d\n", t, n)
	}
}
