package economy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

const (
	colorProfit  = 0x00FF00
	colorLoss    = 0xFF0000
	colorSuccess = 0x32CD32
	colorWarning = 0xFFD700
	colorAlert   = 0xFF6600
	colorSummary = 0x228B22
)

func money(v float64) string {
	if v < 0 {
		return "-$" + humanize.CommafWithDigits(-v, 2)
	}
	return "$" + humanize.CommafWithDigits(v, 2)
}

func percent(rate float64) string {
	return strconv.FormatFloat(rate*100, 'f', 2, 64) + "%"
}

func companyReportMessage(c Company, r CompanyReport) Message {
	msg := Message{
		Title:     fmt.Sprintf("%s - Monthly Report", c.Name),
		Color:     colorProfit,
		Timestamp: r.ProcessedAt,
		Footer:    "Corporate Empire Monthly Report",
		Fields: []Field{
			{Name: "Period", Value: r.Period.String(), Inline: true},
			{Name: "Employees", Value: strconv.Itoa(r.Employees), Inline: true},
			{Name: "Employee Revenue", Value: money(r.ProductivityRevenue), Inline: true},
			{Name: "Patent Revenue", Value: money(r.PatentRevenue), Inline: true},
			{Name: "Taxes Paid", Value: money(r.Tax), Inline: true},
			{Name: "Payroll Expenses", Value: money(r.Payroll), Inline: true},
			{Name: "Net Income", Value: money(r.NetIncome), Inline: true},
			{Name: "New Valuation", Value: money(r.NewValuation), Inline: true},
		},
		Description: "Profitable month! Your company grew and your valuation increased.",
	}
	if r.NetIncome < 0 {
		msg.Color = colorLoss
		msg.Description = "Your company had losses this month. Consider optimizing operations."
	}
	return msg
}

func loanDefaultMessage(l Loan) Message {
	return Message{
		Title:       "Loan Defaulted",
		Color:       colorLoss,
		Description: fmt.Sprintf("Loan #%d for %s could not be paid and is now in default.", l.ID, l.CompanyName),
		Fields: []Field{
			{Name: "Monthly Payment", Value: money(l.MonthlyPayment), Inline: true},
			{Name: "Remaining Balance", Value: money(l.RemainingBalance), Inline: true},
		},
		Footer: "Central Bank of Corporate Empire",
	}
}

func loanPaidOffMessage(l Loan) Message {
	return Message{
		Title:       "Loan Paid Off",
		Color:       colorSuccess,
		Description: fmt.Sprintf("Loan #%d for %s has been fully repaid.", l.ID, l.CompanyName),
		Fields: []Field{
			{Name: "Principal", Value: money(l.Principal), Inline: true},
			{Name: "Rate", Value: percent(l.InterestRate), Inline: true},
		},
		Footer: "Central Bank of Corporate Empire",
	}
}

func rdCompletedMessage(p RDProject, o RDOutcome) Message {
	return Message{
		Title:       "R&D Project Completed!",
		Color:       colorSuccess,
		Description: fmt.Sprintf("Your R&D project %q has been completed!", p.Name),
		Fields: []Field{
			{Name: "Company", Value: p.CompanyName, Inline: true},
			{Name: "Results", Value: o.Description},
		},
		Timestamp: o.CompletedAt,
	}
}

func contractCompletedMessage(c Contract) Message {
	return Message{
		Title:       "Contract Completed",
		Color:       colorSuccess,
		Description: fmt.Sprintf("Contract %q has reached its end date and is now completed.", c.Title),
		Fields: []Field{
			{Name: "Contract ID", Value: strconv.FormatInt(c.ID, 10), Inline: true},
			{Name: "Value", Value: money(c.Value), Inline: true},
			{Name: "Parties", Value: c.PartyA.Name + " ↔ " + c.PartyB.Name},
		},
	}
}

var insuranceTypeNames = map[string]string{
	"liability":     "General Liability",
	"property":      "Property Insurance",
	"interruption":  "Business Interruption",
	"cyber":         "Cyber Security",
	"directors":     "Directors & Officers",
	"professional":  "Professional Indemnity",
	"comprehensive": "Comprehensive Package",
}

func insuranceTypeName(t string) string {
	if name, ok := insuranceTypeNames[t]; ok {
		return name
	}
	return t
}

func insuranceReminderMessage(p InsurancePolicy) Message {
	return Message{
		Title:       "Insurance Policy Expiring Soon",
		Color:       colorWarning,
		Description: fmt.Sprintf("Your insurance policy for %s expires soon!", p.CompanyName),
		Fields: []Field{
			{Name: "Policy Type", Value: insuranceTypeName(p.Type), Inline: true},
			{Name: "Expiry Date", Value: p.EndDate.Format("2006-01-02"), Inline: true},
			{Name: "Coverage", Value: money(p.CoverageAmount), Inline: true},
		},
		Footer: "Use /insurance renew to extend your coverage",
	}
}

func marketEventMessage(e MarketEvent) Message {
	msg := Message{
		Title:       "Market Event Alert!",
		Color:       colorAlert,
		Description: fmt.Sprintf("**%s**\n\n%s", e.Name, e.Description),
		Fields: []Field{
			{Name: "Impact Multiplier", Value: strconv.FormatFloat(e.ImpactMultiplier, 'f', 2, 64) + "x", Inline: true},
			{Name: "Duration", Value: fmt.Sprintf("%d months", e.DurationMonths), Inline: true},
			{Name: "Severity", Value: strings.ToUpper(string(e.Severity)), Inline: true},
		},
		Timestamp: e.StartDate,
	}
	if len(e.AffectedIndustries) > 0 {
		msg.Fields = append(msg.Fields, Field{Name: "Affected Industries", Value: strings.Join(e.AffectedIndustries, ", ")})
	}
	return msg
}

func cycleSummaryMessage(s CycleSummary) Message {
	msg := Message{
		Title:       "Monthly Economic Summary",
		Color:       colorSummary,
		Description: "Monthly economic cycle completed. All company revenues processed, taxes collected, and loan payments due.",
		Fields: []Field{
			{Name: "Period", Value: s.Period.String(), Inline: true},
			{Name: "Active Companies", Value: strconv.Itoa(s.Totals.ActiveCompanies), Inline: true},
			{Name: "Total Company Revenue", Value: money(s.Totals.CompanyRevenue), Inline: true},
			{Name: "Tax Revenue", Value: money(s.Totals.Taxes), Inline: true},
			{Name: "Loan Interest", Value: money(s.Totals.LoanInterest), Inline: true},
			{Name: "Patent Revenue", Value: money(s.Totals.PatentRevenue), Inline: true},
			{Name: "Central Bank Balance", Value: money(s.Ledger.ClosingBalance)},
		},
		Footer:    "Economic Cycle Processor",
		Timestamp: s.FinishedAt,
	}
	if failed := s.FailedEntities(); failed > 0 {
		msg.Fields = append(msg.Fields, Field{Name: "Failed Entities", Value: strconv.Itoa(failed)})
	}
	return msg
}
