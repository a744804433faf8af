package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/thedudeontitan/ouro-fi/internal/domain"
	"github.com/thedudeontitan/ouro-fi/internal/engine"
	"github.com/thedudeontitan/ouro-fi/pkg/quant"
	"github.com/thedudeontitan/ouro-fi/pkg/safe"
)

// riskcalc prints the liquidation threshold and mark-to-market PnL for a
// hypothetical position, entirely offline. Handy for sanity-checking risk
// parameters without a running daemon.
func main() {
	entryStr := flag.String("entry", "", "entry price, e.g. 4000 or 4012.55")
	markStr := flag.String("mark", "", "current mark price (optional)")
	marginStr := flag.String("margin", "100", "posted margin in USDC")
	leverage := flag.Int64("leverage", 10, "leverage multiplier")
	short := flag.Bool("short", false, "price the position as a short")
	ratioBps := flag.Int64("ratio", 9500, "safety-margin ratio in basis points")
	flag.Parse()

	if *entryStr == "" {
		fmt.Fprintln(os.Stderr, "usage: riskcalc -entry 4000 [-mark 3700] [-margin 100] [-leverage 10] [-short]")
		os.Exit(2)
	}

	entry := quant.ToPriceE8Str(*entryStr)
	margin := quant.ToAmountE6Str(*marginStr)
	if entry <= 0 || margin <= 0 || *leverage < 1 {
		fmt.Fprintln(os.Stderr, "entry, margin and leverage must be positive")
		os.Exit(2)
	}

	isLong := !*short
	side := "LONG"
	if !isLong {
		side = "SHORT"
	}

	size := quant.AmountE6(safe.SafeMul(int64(margin), *leverage))
	liq := engine.LiquidationPrice(entry, *leverage, isLong, *ratioBps)

	fmt.Println("=== Ouro Risk Calculator ===")
	fmt.Println()
	fmt.Printf("📐 %s %dx\n", side, *leverage)
	fmt.Printf("   Entry:       $%s\n", entry.String())
	fmt.Printf("   Margin:      %s USDC\n", margin.String())
	fmt.Printf("   Notional:    %s USDC\n", size.String())
	fmt.Printf("   Liquidation: $%s\n", liq.String())
	fmt.Println()

	if *markStr == "" {
		return
	}

	mark := quant.ToPriceE8Str(*markStr)
	if mark <= 0 {
		fmt.Fprintln(os.Stderr, "mark price must be positive")
		os.Exit(2)
	}

	pos := domain.Position{
		IsLong:       isLong,
		Leverage:     *leverage,
		MarginE6:     margin,
		EntryPriceE8: entry,
		SizeE6:       size,
		LiqPriceE8:   liq,
		Status:       domain.StatusOpen,
	}
	pnl := engine.UnrealizedPnL(&pos, mark)

	fmt.Printf("📊 Mark $%s\n", mark.String())
	fmt.Printf("   Unrealized PnL: %s USDC\n", pnl.String())
	if engine.ShouldLiquidate(&pos, mark) {
		fmt.Println("   ⚠️  LIQUIDATABLE: mark has breached the threshold")
	} else {
		fmt.Println("   Position is safe at this mark")
	}
}
