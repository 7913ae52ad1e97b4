package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"corpempire/internal/bank"
	cl "corpempire/internal/cli"
	"corpempire/internal/config"
	"corpempire/internal/economy"
	"corpempire/internal/finance"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL
	token := cfg.AdminToken

	root := &cobra.Command{
		Use:          "empirectl",
		Short:        "Operator CLI for the corporate empire economy",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "admin API base URL")

	root.AddCommand(
		newLoginCmd(&apiBase),
		newLogoutCmd(),
		newCycleCmd(&apiBase, &token),
		newLedgerCmd(&apiBase, &token),
		newLoanCmd(&apiBase, &token),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newClient prefers the environment token and falls back to the saved profile.
func newClient(apiBase, token *string) (*cl.Client, error) {
	base := strings.TrimRight(strings.TrimSpace(*apiBase), "/")
	tok := strings.TrimSpace(*token)
	if tok == "" {
		profile, err := cl.LoadProfile()
		if err != nil {
			if errors.Is(err, cl.ErrNoProfile) {
				return nil, errors.New("login required: run `empirectl login` or set EMPIRECTL_ADMIN_TOKEN")
			}
			return nil, fmt.Errorf("login required: %w", err)
		}
		tok = profile.AdminToken
		if profile.APIBaseURL != "" && base == config.LoadCLIFromEnv().APIBaseURL {
			base = profile.APIBaseURL
		}
	}
	return cl.NewClient(base, tok), nil
}

func newLoginCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Save an admin token for this machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := promptSecret("Admin token")
			if err != nil {
				return err
			}
			base := strings.TrimRight(strings.TrimSpace(*apiBase), "/")
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if _, err := cl.NewClient(base, tok).Status(ctx); err != nil {
				return fmt.Errorf("token check failed: %w", err)
			}
			if err := cl.SaveProfile(cl.Profile{APIBaseURL: base, AdminToken: tok}); err != nil {
				return err
			}
			printSuccess("Login successful. Profile saved.")
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the saved admin token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearProfile(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newCycleCmd(apiBase, token *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Run or inspect the monthly economic cycle",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the cycle for the current period now",
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := newClient(apiBase, token)
				if err != nil {
					return err
				}
				summary, err := client.RunCycle(cmd.Context())
				if err != nil {
					var apiErr *cl.APIError
					if errors.As(err, &apiErr) && apiErr.Status == 409 {
						printWarn(apiErr.Message)
						return nil
					}
					return err
				}
				renderCycleSummary(summary)
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show scheduler status and the last cycle",
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := newClient(apiBase, token)
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
				defer cancel()
				status, err := client.Status(ctx)
				if err != nil {
					return err
				}
				renderStatus(status)
				return nil
			},
		},
	)
	return cmd
}

func newLedgerCmd(apiBase, token *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Central bank ledger",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show [period]",
		Short: "Show the ledger row for a period (YYYY-MM, default current)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			period := economy.PeriodFor(time.Now())
			if len(args) == 1 {
				p, err := economy.ParsePeriod(strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				period = p
			}
			client, err := newClient(apiBase, token)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			entry, err := client.Ledger(ctx, period)
			if err != nil {
				return err
			}
			renderLedger(entry)
			return nil
		},
	})
	return cmd
}

func newLoanCmd(apiBase, token *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loan",
		Short: "Quote and originate central bank loans",
	}
	cmd.AddCommand(newLoanQuoteCmd(apiBase, token), newLoanRequestCmd(apiBase, token))
	return cmd
}

func newLoanQuoteCmd(apiBase, token *string) *cobra.Command {
	var (
		companyID int64
		principal float64
		rate      float64
		score     int
		term      int
		schedule  bool
	)
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a loan; --rate or --score works offline, --company asks the bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			if principal <= 0 {
				return errors.New("--principal must be positive")
			}
			if term < bank.MinTermMonths || term > bank.MaxTermMonths {
				return fmt.Errorf("--term must be between %d and %d", bank.MinTermMonths, bank.MaxTermMonths)
			}
			switch {
			case companyID > 0:
				client, err := newClient(apiBase, token)
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
				defer cancel()
				q, err := client.QuoteLoan(ctx, bank.Request{CompanyID: companyID, Amount: principal, TermMonths: term})
				if err != nil {
					return err
				}
				renderQuote(q)
				rate = q.InterestRate
			case score > 0:
				rate = finance.RateForScore(finance.ClampCreditScore(score))
			case rate < 0:
				return errors.New("--rate must not be negative")
			}
			if !schedule && companyID > 0 {
				return nil
			}
			rows, err := finance.Schedule(principal, rate, term)
			if err != nil {
				return err
			}
			renderSchedule(principal, rate, rows)
			return nil
		},
	}
	cmd.Flags().Int64Var(&companyID, "company", 0, "company id to quote against live credit data")
	cmd.Flags().Float64Var(&principal, "principal", 0, "loan amount")
	cmd.Flags().Float64Var(&rate, "rate", 0.05, "annual interest rate, e.g. 0.05")
	cmd.Flags().IntVar(&score, "score", 0, "credit score to price the rate from")
	cmd.Flags().IntVar(&term, "term", 12, "term in months")
	cmd.Flags().BoolVar(&schedule, "schedule", false, "print the amortization schedule")
	return cmd
}

func newLoanRequestCmd(apiBase, token *string) *cobra.Command {
	var (
		companyID  int64
		amount     float64
		term       int
		collateral string
	)
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Originate a loan for a company",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := bank.Request{CompanyID: companyID, Amount: amount, TermMonths: term, Collateral: collateral}
			if err := req.Validate(); err != nil {
				return err
			}
			client, err := newClient(apiBase, token)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			loan, err := client.OriginateLoan(ctx, req, uuid.NewString())
			if err != nil {
				return err
			}
			renderLoan(loan)
			return nil
		},
	}
	cmd.Flags().Int64Var(&companyID, "company", 0, "company id")
	cmd.Flags().Float64Var(&amount, "amount", 0, "loan amount")
	cmd.Flags().IntVar(&term, "term", 12, "term in months")
	cmd.Flags().StringVar(&collateral, "collateral", "", "collateral description")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}
