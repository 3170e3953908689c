// main.go - Demo daemon driving the private-payment library end to end:
// mint transactions, verify them, batch them, persist the ledger.
package main

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"implementation/internal/logger"
	"implementation/internal/protocol"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "privacyd",
		Short: "Private-payment protocol demo daemon",
	}

	run := &cobra.Command{
		Use:   "run",
		Short: "Create, verify, and batch a set of demo transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			setLogLevel(cfg.LogLevel)
			return runDemo(cfg)
		},
	}
	run.Flags().StringVarP(&configPath, "config", "c", "privacyd.json", "path to the config file")
	root.AddCommand(run)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setLogLevel(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	logger.Set(logger.Logger().Level(parsed))
}

func runDemo(cfg *Config) error {
	log := logger.Logger().With().Str("component", "privacyd").Logger()
	p := protocol.New()

	ledger := protocol.NewLedger()
	if loaded, err := protocol.LoadLedgerFromFile(cfg.LedgerPath); err == nil {
		ledger = loaded
		log.Info().Int("transactions", len(ledger.GetTxs())).Msg("loaded existing ledger")
	}

	txs := make([]*protocol.PrivateTransaction, 0, cfg.NumTransactions)
	for i := 0; i < cfg.NumTransactions; i++ {
		from, err := randomAddress()
		if err != nil {
			return err
		}
		to, err := randomAddress()
		if err != nil {
			return err
		}
		secretBytes, err := protocol.RandomBytes(16)
		if err != nil {
			return err
		}
		secret := hex.EncodeToString(secretBytes)

		amount := big.NewInt(cfg.BaseAmount + int64(i))
		tx, err := p.CreatePrivateTransaction(from, to, amount, secret)
		if err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
		if !p.VerifyPrivateTransaction(tx) {
			return fmt.Errorf("transaction %d failed verification", i)
		}
		if err := ledger.AppendTx(tx); err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
		txs = append(txs, tx)
		log.Info().Int("tx", i).Str("commitment", tx.Commitment).Msg("transaction accepted")
	}

	batch, err := p.BatchTransactions(txs)
	if err != nil {
		return err
	}
	log.Info().Str("root", batch.BatchRoot).Int("size", len(txs)).Msg("batch committed")

	if root, err := ledger.Root(); err == nil && root != nil {
		log.Info().Str("ledgerRoot", "0x"+hex.EncodeToString(root)).Msg("ledger root")
	}
	return ledger.SaveToFile(cfg.LedgerPath)
}

func randomAddress() (string, error) {
	b, err := protocol.RandomBytes(20)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(b), nil
}
