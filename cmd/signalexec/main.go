// Binary signalexec runs the full trend-signal pipeline: it submits the
// forecaster input to the proving market, recovers the committed journal
// from the fulfillment payload, and publishes the result to the signal
// ledger contract.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"math/big"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"trendsignal-go/internal/config"
	"trendsignal-go/internal/contract"
	"trendsignal-go/internal/forecast"
	"trendsignal-go/internal/journal"
	"trendsignal-go/internal/market"
	"trendsignal-go/internal/metrics"
	"trendsignal-go/internal/util"
	"trendsignal-go/internal/wallet"
)

func main() {
	configPath := flag.String("config", "config.yaml", "config file path")
	amountWei := flag.Uint64("amount-wei", 3_700_000_000_000_000_000, "observed ETH amount in wei used as the forecast input")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := util.ForEnv(cfg.App.Env, cfg.App.LogLevel)

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	key, err := wallet.Load(cfg.Wallet.PrivateKeyHex)
	if err != nil {
		log.Fatal().Err(err).Msg("load wallet")
	}
	log.Info().Str("key", key.Fingerprint()).Msg("wallet loaded")

	filter, err := recoveryFilter(cfg.Recovery)
	if err != nil {
		log.Fatal().Err(err).Msg("recovery config")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mkt := market.NewClient(cfg.Market.Provider, cfg.Market.BaseURL, log,
		market.WithPollInterval(time.Duration(cfg.Market.PollIntervalMs)*time.Millisecond),
		market.WithStreamURL(cfg.Market.StreamURL),
		market.WithProgramURL(cfg.Market.ProgramURL),
		market.WithGuest(forecast.RunEncoded),
		market.WithSigner(key),
	)
	ledger := contract.NewClient(cfg.Contract.BaseURL, cfg.Contract.Address, log)
	ledger.Signer = key
	ledger.TxTimeout = time.Duration(cfg.Contract.TxTimeoutSecs) * time.Second
	ledger.ConfirmInterval = time.Duration(cfg.Contract.ConfirmIntervalMs) * time.Millisecond

	if err := run(ctx, log, cfg, mkt, ledger, filter, *amountWei); err != nil {
		log.Fatal().Err(err).Msg("pipeline failed")
	}
}

func run(ctx context.Context, log zerolog.Logger, cfg *config.Config, mkt *market.Client, ledger *contract.Client, filter journal.Filter, amountWei uint64) error {
	log.Info().
		Uint64("amount_wei", amountWei).
		Str("amount_eth", weiToETH(new(big.Int).SetUint64(amountWei))).
		Msg("submitting forecast request")

	input := journal.EncodeAmount(amountWei)

	submitCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Market.SubmitTimeoutSecs)*time.Second)
	req, err := mkt.Submit(submitCtx, input)
	cancel()
	if err != nil {
		return fmt.Errorf("submit request: %w", err)
	}

	fulfillment, err := mkt.WaitForFulfillment(ctx, req)
	if err != nil {
		return fmt.Errorf("wait for fulfillment: %w", err)
	}
	logPayloadWindows(log, fulfillment.Data)

	result, err := journal.RecoverFiltered(fulfillment.Data, filter)
	if err != nil {
		metrics.RecoveriesTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("recover journal: %w", err)
	}
	metrics.RecoveriesTotal.WithLabelValues("ok").Inc()
	metrics.SignalsTotal.WithLabelValues(result.Action.String()).Inc()

	log.Info().
		Str("action", result.Action.String()).
		Str("confidence", result.Confidence.String()).
		Str("predicted_wei", result.PredictedPrice.String()).
		Str("predicted_eth", weiToETH(result.PredictedPrice)).
		Msg("trading signal recovered")

	receipt, err := ledger.SetSignal(ctx, result, fulfillment.Seal)
	if err != nil {
		return fmt.Errorf("set signal: %w", err)
	}
	if err := ledger.WaitMined(ctx, receipt); err != nil {
		return fmt.Errorf("confirm signal: %w", err)
	}
	log.Info().Str("tx", receipt.TxHash).Msg("signal update confirmed")

	latest, err := ledger.LatestSignal(ctx)
	if err != nil {
		return fmt.Errorf("get latest signal: %w", err)
	}
	log.Info().
		Str("action", latest.Action.String()).
		Str("confidence", latest.Confidence.String()).
		Str("predicted_eth", weiToETH(latest.PredictedPrice)).
		Time("timestamp", latest.Timestamp).
		Msg("ledger updated")
	return nil
}

// recoveryFilter builds the journal plausibility filter from configuration.
func recoveryFilter(rc config.Recovery) (journal.Filter, error) {
	f := journal.DefaultFilter()
	if rc.MaxConfidence > 0 {
		f.MaxConfidence = rc.MaxConfidence
	}
	if rc.MinPredictedWei != "" {
		floor, ok := new(big.Int).SetString(rc.MinPredictedWei, 10)
		if !ok || floor.Sign() < 0 {
			return journal.Filter{}, fmt.Errorf("invalid min_predicted_wei %q", rc.MinPredictedWei)
		}
		f.MinPredictedWei = floor
	}
	return f, nil
}

// logPayloadWindows dumps the fulfillment payload in 64-byte hex windows so
// framing mismatches can be diagnosed from the logs.
func logPayloadWindows(log zerolog.Logger, data []byte) {
	if log.GetLevel() > zerolog.DebugLevel {
		return
	}
	for off := 0; off < len(data); off += 64 {
		end := off + 64
		if end > len(data) {
			end = len(data)
		}
		log.Debug().Int("offset", off).Str("hex", hex.EncodeToString(data[off:end])).Msg("fulfillment payload window")
	}
}

// weiToETH renders a wei amount as a decimal ETH string for logs.
func weiToETH(wei *big.Int) string {
	if wei == nil {
		return "0.00"
	}
	return decimal.NewFromBigInt(wei, -18).StringFixed(2)
}
