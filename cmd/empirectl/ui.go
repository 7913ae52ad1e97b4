package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"corpempire/internal/bank"
	"corpempire/internal/economy"
	"corpempire/internal/finance"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

// promptSecret reads without echo when stdin is a terminal.
func promptSecret(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptRequired(label)
	}
	for {
		fmt.Printf("%s: ", label)
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		text := strings.TrimSpace(string(raw))
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func renderCycleSummary(s economy.CycleSummary) {
	accent.Printf("\n== CYCLE %s ==\n", s.Period)
	fmt.Printf("Run:        %s\n", s.RunID)
	fmt.Printf("Duration:   %s\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	fmt.Printf("Companies:  %d\n", s.Totals.ActiveCompanies)
	fmt.Printf("Revenue:    %s\n", formatMoney(s.Totals.CompanyRevenue))
	fmt.Printf("Taxes:      %s\n", formatMoney(s.Totals.Taxes))
	fmt.Printf("Interest:   %s\n", formatMoney(s.Totals.LoanInterest))
	fmt.Printf("Notified:   %d\n", s.Notified)
	if s.Error != "" {
		danger.Printf("Error:      %s\n", s.Error)
	}

	fmt.Printf("\n%-14s %9s %8s %7s\n", "PASS", "SUCCEEDED", "SKIPPED", "FAILED")
	for _, p := range s.Passes {
		failed := neutral.Sprintf("%7d", p.Failed())
		if p.Failed() > 0 {
			failed = danger.Sprintf("%7d", p.Failed())
		}
		fmt.Printf("%-14s %9d %8d %s\n", p.Name, p.Succeeded, p.Skipped, failed)
	}
	for _, p := range s.Passes {
		for _, f := range p.Failures {
			warn.Printf("  %s %s: %s\n", f.Kind, f.ID, truncate(f.Reason, 80))
		}
	}
	renderLedger(s.Ledger)
}

func renderStatus(st economy.Status) {
	accent.Println("\n== SCHEDULER ==")
	state := neutral.Sprint("idle")
	if st.Running {
		state = warn.Sprint("running")
	}
	fmt.Printf("State:      %s\n", state)
	fmt.Printf("Scheduled:  %t (every %s)\n", st.Scheduled, st.Interval)
	if !st.NextRun.IsZero() {
		fmt.Printf("Next run:   %s (%s)\n", st.NextRun.Local().Format(time.RFC1123), humanize.Time(st.NextRun))
	}
	if st.LastCycle == nil {
		printInfo("No cycle has run since the worker started.")
		return
	}
	renderCycleSummary(*st.LastCycle)
}

func renderLedger(e economy.LedgerEntry) {
	if e.Period == "" {
		return
	}
	accent.Printf("\n== CENTRAL BANK %s ==\n", e.Period)
	fmt.Printf("Opening:    %s\n", formatMoney(e.OpeningBalance))
	fmt.Printf("Taxes:      %s\n", colorizeMoney(e.TaxIncome))
	fmt.Printf("Interest:   %s\n", colorizeMoney(e.LoanInterestIncome))
	fmt.Printf("Issued:     %s\n", colorizeMoney(-e.LoansIssued))
	fmt.Printf("Closing:    %s\n\n", formatMoney(e.ClosingBalance))
}

func renderQuote(q bank.Quote) {
	accent.Printf("\n== QUOTE FOR COMPANY #%d ==\n", q.CompanyID)
	fmt.Printf("Credit score:  %d\n", q.CreditScore)
	fmt.Printf("Rate:          %.2f%%\n", q.InterestRate*100)
	fmt.Printf("Monthly:       %s\n", formatMoney(q.MonthlyPayment))
	fmt.Printf("Total repaid:  %s\n", formatMoney(q.TotalRepayment))
	loans := fmt.Sprintf("%d/%d", q.ActiveLoans, q.MaxActiveLoans)
	if q.ActiveLoans >= q.MaxActiveLoans {
		loans = danger.Sprint(loans + " (limit reached)")
	}
	fmt.Printf("Active loans:  %s\n", loans)
}

func renderSchedule(principal, rate float64, rows []finance.ScheduleRow) {
	accent.Printf("\n== SCHEDULE %s at %.2f%% ==\n", formatMoney(principal), rate*100)
	fmt.Printf("%-5s %14s %14s %14s %14s\n", "MONTH", "PAYMENT", "PRINCIPAL", "INTEREST", "BALANCE")
	var interest float64
	for _, r := range rows {
		interest += r.Interest
		fmt.Printf("%-5d %14s %14s %14s %14s\n", r.Month, formatMoney(r.Payment), formatMoney(r.Principal), formatMoney(r.Interest), formatMoney(r.Balance))
	}
	fmt.Printf("\nTotal interest: %s\n\n", formatMoney(finance.RoundCurrency(interest)))
}

func renderLoan(l economy.Loan) {
	printSuccess(fmt.Sprintf("Loan #%d opened for company #%d.", l.ID, l.CompanyID))
	fmt.Printf("Principal:     %s\n", formatMoney(l.Principal))
	fmt.Printf("Rate:          %.2f%%\n", l.InterestRate*100)
	fmt.Printf("Monthly:       %s over %d months\n", formatMoney(l.MonthlyPayment), l.TermMonths)
	fmt.Printf("First payment: %s\n", l.NextPaymentDate.Format("2006-01-02"))
}

func colorizeMoney(v float64) string {
	text := formatMoney(v)
	if v > 0 {
		text = "+" + text
	}
	switch {
	case v > 0:
		return success.Sprint(text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func formatMoney(v float64) string {
	if v < 0 {
		return "-$" + humanize.FormatFloat("#,###.##", -v)
	}
	return "$" + humanize.FormatFloat("#,###.##", v)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
