package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"afripay/internal/config"
	"afripay/internal/core/reconcile"
	"afripay/internal/email"
	"afripay/internal/fee"
	"afripay/internal/services/payment"
	"afripay/internal/solanapay"
	"afripay/internal/store/postgres"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long: `Apply the AfriPay schema to DATABASE_URL. Statements are idempotent,
so running migrate against an up-to-date database is a no-op.

Examples:
  afripayctl migrate
  afripayctl migrate --print > schema.sql`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if printOnly, _ := cmd.Flags().GetBool("print"); printOnly {
				fmt.Fprintln(cmd.OutOrStdout(), postgres.Schema())
				return nil
			}
			dsn := env().GetString("DATABASE_URL")
			if dsn == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			pool, err := postgres.Open(ctx, dsn, 30*time.Second)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := postgres.Migrate(ctx, pool); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}

	cmd.Flags().Bool("print", false, "print the schema instead of applying it")

	return cmd
}

func quoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote [amount]",
		Short: "Show the fee breakdown for a merchant amount",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("amount: %w", err)
			}
			curFlag, _ := cmd.Flags().GetString("currency")
			cur, err := fee.ParseCurrency(curFlag)
			if err != nil {
				return err
			}
			feeCfg, err := config.FeeFromViper(env())
			if err != nil {
				return err
			}
			q, err := fee.NewCalculator(feeCfg.Rate, feeCfg.FixedFeeUSD, feeCfg.SOLPriceUSD).Quote(amount, cur)
			if err != nil {
				return err
			}
			return printJSON(cmd, q)
		},
	}

	cmd.Flags().StringP("currency", "c", string(fee.USDC), "SOL or USDC")

	return cmd
}

func referenceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reference [reference]",
		Short: "Look up the transaction carrying a Solana Pay reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := solanapay.ParsePublicKey(args[0])
			if err != nil {
				return fmt.Errorf("reference: %w", err)
			}
			chain, err := solanapay.New(config.SolanaFromViper(env()))
			if err != nil {
				return err
			}
			m, err := chain.FindReference(cmd.Context(), ref)
			if err != nil {
				return err
			}
			if m == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "no transaction found for %s on %s\n", ref, chain.Network())
				return nil
			}
			return printJSON(cmd, m)
		},
	}
}

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconcile pass over open payment requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromViper(env())
			if err != nil {
				return err
			}
			batch, _ := cmd.Flags().GetInt("batch")

			ctx := cmd.Context()
			pool, err := postgres.Open(ctx, cfg.DB.DSN, 30*time.Second)
			if err != nil {
				return err
			}
			defer pool.Close()
			store := postgres.NewStore(pool)

			chain, err := solanapay.New(cfg.Solana)
			if err != nil {
				return err
			}
			opts, err := payment.OptionsFromConfig(cfg.Fee)
			if err != nil {
				return err
			}
			calc := fee.NewCalculator(cfg.Fee.Rate, cfg.Fee.FixedFeeUSD, cfg.Fee.SOLPriceUSD)
			svc := payment.NewService(store.PaymentRequests, store.Transactions, store.UnitOfWork, chain, calc,
				email.New(cfg.Email, store.EmailLogs), opts)
			defer svc.Wait()

			settled := reconcile.NewWorker(svc, time.Second, batch).RunOnce(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "settled %d payment request(s)\n", settled)
			return nil
		},
	}

	cmd.Flags().IntP("batch", "b", 100, "maximum open requests to check")

	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

