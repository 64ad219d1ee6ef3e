package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/username/portafolio/backend/src/parsers"
	"github.com/username/portafolio/backend/src/parsers/fields"
	"github.com/username/portafolio/backend/src/services"
)

var outputFormats = []string{"text", "json", "yaml"}

func newParseCmd() *cobra.Command {
	var broker, output string

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a statement file offline and print its movements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, args[0], broker, output)
		},
	}
	cmd.Flags().StringVarP(&broker, "broker", "b", "IOL", "broker key of the statement")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: "+strings.Join(outputFormats, ", "))
	return cmd
}

func runParse(cmd *cobra.Command, path, broker, output string) error {
	output = strings.ToLower(output)
	if !slices.Contains(outputFormats, output) {
		return fmt.Errorf("unknown output format %q (use %s)", output, strings.Join(outputFormats, ", "))
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening statement: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("reading statement: %w", err)
	}

	name := filepath.Base(path)
	result := newDispatcher().Parse(cmd.Context(), f, name, broker, uuid.New())
	report := newParseReport(name, broker, info.Size(), result)

	out := cmd.OutOrStdout()
	switch output {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		err = enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		err = enc.Encode(report)
		if closeErr := enc.Close(); err == nil {
			err = closeErr
		}
	default:
		err = writeTextReport(out, report)
	}
	if err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	if !result.IsSuccess() {
		return fmt.Errorf("parsing %s failed: %s", name, strings.Join(result.Errors, "; "))
	}
	return nil
}

type movementRow struct {
	Number           int    `json:"number" yaml:"number"`
	Type             string `json:"type" yaml:"type"`
	Ticker           string `json:"ticker,omitempty" yaml:"ticker,omitempty"`
	ConcertationDate string `json:"concertationDate" yaml:"concertationDate"`
	SettlementDate   string `json:"settlementDate" yaml:"settlementDate"`
	Quantity         int    `json:"quantity" yaml:"quantity"`
	Price            string `json:"price" yaml:"price"`
	Commission       string `json:"commission" yaml:"commission"`
	CommissionTax    string `json:"commissionTax" yaml:"commissionTax"`
	OtherTaxes       string `json:"otherTaxes" yaml:"otherTaxes"`
	TotalAmount      string `json:"totalAmount" yaml:"totalAmount"`
	Currency         string `json:"currency" yaml:"currency"`
	Notes            string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

type parseReport struct {
	File        string `json:"file" yaml:"file"`
	Broker      string `json:"broker" yaml:"broker"`
	SizeInBytes int64  `json:"sizeInBytes" yaml:"sizeInBytes"`
	Success     bool   `json:"success" yaml:"success"`

	Errors   []string `json:"errors" yaml:"errors"`
	Warnings []string `json:"warnings" yaml:"warnings"`

	TotalRows       int            `json:"totalRows" yaml:"totalRows"`
	SuccessfulRows  int            `json:"successfulRows" yaml:"successfulRows"`
	ErrorRows       int            `json:"errorRows" yaml:"errorRows"`
	IgnoredRows     int            `json:"ignoredRows" yaml:"ignoredRows"`
	SuccessRate     float64        `json:"successRate" yaml:"successRate"`
	MovementsByType map[string]int `json:"movementsByType" yaml:"movementsByType"`

	TotalAbsoluteAmount string            `json:"totalAbsoluteAmount" yaml:"totalAbsoluteAmount"`
	AmountsByCurrency   map[string]string `json:"amountsByCurrency" yaml:"amountsByCurrency"`
	DateFrom            string            `json:"dateFrom,omitempty" yaml:"dateFrom,omitempty"`
	DateTo              string            `json:"dateTo,omitempty" yaml:"dateTo,omitempty"`

	Movements []movementRow `json:"movements" yaml:"movements"`
}

func newParseReport(fileName, broker string, size int64, result *parsers.ParsingResult) *parseReport {
	stats := result.Statistics
	summary := services.BuildSummary(result.Movements)

	r := &parseReport{
		File:                fileName,
		Broker:              broker,
		SizeInBytes:         size,
		Success:             result.IsSuccess(),
		Errors:              result.Errors,
		Warnings:            result.Warnings,
		TotalRows:           stats.TotalRows,
		SuccessfulRows:      stats.SuccessfulRows,
		ErrorRows:           stats.ErrorRows,
		IgnoredRows:         stats.IgnoredRows,
		SuccessRate:         stats.SuccessRate(),
		MovementsByType:     stats.MovementsByType,
		TotalAbsoluteAmount: stats.TotalAbsoluteAmount.StringFixed(2),
		AmountsByCurrency:   summary.FormattedAmounts,
		Movements:           make([]movementRow, 0, len(result.Movements)),
	}
	if summary.DateFrom != nil {
		r.DateFrom = formatDate(*summary.DateFrom)
		r.DateTo = formatDate(*summary.DateTo)
	}

	for _, m := range result.Movements {
		row := movementRow{
			Number:           m.Number,
			Type:             m.Type.String(),
			Ticker:           m.TickerOrEmpty(),
			ConcertationDate: formatDate(m.ConcertationDate),
			SettlementDate:   formatDate(m.SettlementDate),
			Quantity:         m.Quantity,
			Price:            m.Price.String(),
			Commission:       m.Commission.String(),
			CommissionTax:    m.CommissionTax.String(),
			OtherTaxes:       m.OtherTaxes.String(),
			TotalAmount:      m.TotalAmount.String(),
			Currency:         m.Currency.String(),
		}
		if m.Notes != nil {
			row.Notes = *m.Notes
		}
		r.Movements = append(r.Movements, row)
	}
	return r
}

func writeTextReport(w io.Writer, r *parseReport) error {
	bold := color.New(color.Bold)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	bold.Fprintf(w, "%s (%s, broker %s)\n", r.File, humanize.Bytes(uint64(r.SizeInBytes)), r.Broker)
	fmt.Fprintf(w, "Rows: %d total, %d parsed, %d with errors, %d ignored (%.1f%% success)\n",
		r.TotalRows, r.SuccessfulRows, r.ErrorRows, r.IgnoredRows, r.SuccessRate)

	if len(r.Movements) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NUMBER\tDATE\tTYPE\tTICKER\tQTY\tPRICE\tTOTAL\tCURRENCY")
		for _, m := range r.Movements {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
				m.Number, orDash(m.ConcertationDate), m.Type, orDash(m.Ticker), m.Quantity, m.Price, m.TotalAmount, m.Currency)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		fmt.Fprintln(w)
		types := make([]string, 0, len(r.MovementsByType))
		for t := range r.MovementsByType {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Fprintf(w, "%-18s %d\n", t, r.MovementsByType[t])
		}
		currencies := make([]string, 0, len(r.AmountsByCurrency))
		for c := range r.AmountsByCurrency {
			currencies = append(currencies, c)
		}
		sort.Strings(currencies)
		for _, c := range currencies {
			fmt.Fprintf(w, "Total %-12s %s\n", c, r.AmountsByCurrency[c])
		}
		if r.DateFrom != "" {
			fmt.Fprintf(w, "Period: %s - %s\n", r.DateFrom, r.DateTo)
		}
	}

	for _, warning := range r.Warnings {
		yellow.Fprintf(w, "warning: %s\n", warning)
	}
	for _, e := range r.Errors {
		red.Fprintf(w, "error: %s\n", e)
	}
	return nil
}

// formatDate renders unknown dates as "".
func formatDate(t time.Time) string {
	if fields.IsUnknownDate(t) {
		return ""
	}
	return t.Format("02/01/2006")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
