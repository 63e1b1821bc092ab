// Binary forecast runs the deterministic forecaster locally and prints the
// signal it would commit, without touching the market or the ledger.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"math/big"
	"os"

	"github.com/shopspring/decimal"

	"trendsignal-go/internal/forecast"
	"trendsignal-go/internal/journal"
)

func main() {
	amountWei := flag.Uint64("amount-wei", 3_700_000_000_000_000_000, "observed ETH amount in wei used as the forecast input")
	flag.Parse()

	model := forecast.Regress()
	result := forecast.Run(*amountWei)
	payload := journal.Encode(result)

	history := forecast.History()
	first, last := history[0], history[len(history)-1]
	nextDay := forecast.NextDay()

	fmt.Printf("history:   %d days, $%d -> $%d\n", len(history), first.PriceUSD, last.PriceUSD)
	fmt.Printf("model:     price = %d*day + %d, confidence %d%%\n", model.Slope, model.Intercept, model.Confidence)
	fmt.Printf("day %d:    $%d predicted, buy above $%d\n", nextDay, model.PredictUSD(nextDay), forecast.BuyThreshold())
	fmt.Printf("input:     %d wei (%s ETH)\n", *amountWei, eth(new(big.Int).SetUint64(*amountWei)))
	fmt.Printf("signal:    %s\n", result.Action)
	fmt.Printf("predicted: %s wei (%s ETH)\n", result.PredictedPrice, eth(result.PredictedPrice))
	fmt.Printf("journal:   %s\n", hex.EncodeToString(payload))

	if _, err := journal.Decode(payload); err != nil {
		fmt.Fprintf(os.Stderr, "journal self-check failed: %v\n", err)
		os.Exit(1)
	}
}

func eth(wei *big.Int) string {
	return decimal.NewFromBigInt(wei, -18).StringFixed(2)
}
