// Package iol parses InvertirOnline movement exports.
package iol

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/username/portafolio/backend/src/logger"
	"github.com/username/portafolio/backend/src/models"
	"github.com/username/portafolio/backend/src/parsers"
	"github.com/username/portafolio/backend/src/parsers/fields"
	"github.com/username/portafolio/backend/src/parsers/tabular"
)

// IOLParser reads the 14-column movements table, either from a workbook or from
// the HTML page the site exports.
type IOLParser struct {
	name       string
	extensions []string
}

// NewExcelParser handles .xlsx and .xls exports. Legacy .xls exports that are really
// HTML pages are detected by content.
func NewExcelParser() *IOLParser {
	return &IOLParser{name: "iol-excel", extensions: []string{".xlsx", ".xls"}}
}

// NewHTMLParser handles exports saved as web pages.
func NewHTMLParser() *IOLParser {
	return &IOLParser{name: "iol-html", extensions: []string{".html", ".htm"}}
}

// NewParsers returns every IOL strategy in priority order.
func NewParsers() []parsers.Parser {
	return []parsers.Parser{NewExcelParser(), NewHTMLParser()}
}

func (p *IOLParser) Name() string { return p.name }

func (p *IOLParser) CanParse(brokerKey, fileName string) bool {
	if !strings.EqualFold(strings.TrimSpace(brokerKey), BrokerKey) {
		return false
	}
	return slices.Contains(p.extensions, strings.ToLower(filepath.Ext(fileName)))
}

func (p *IOLParser) SupportedBrokers() []string { return []string{BrokerKey} }

func (p *IOLParser) SupportedExtensions() []string {
	return slices.Clone(p.extensions)
}

func (p *IOLParser) Parse(ctx context.Context, r io.Reader, fileName, brokerKey string, dataPointID uuid.UUID) *parsers.ParsingResult {
	start := time.Now()
	log := logger.L.With("parser", p.name, "fileName", fileName, "dataPointId", dataPointID)
	log.Info("Parsing statement")

	result := p.parse(ctx, r, fileName, dataPointID, log)

	log.Info("Statement parsed",
		"movements", len(result.Movements),
		"errors", len(result.Errors),
		"warnings", len(result.Warnings),
		"duration", time.Since(start))
	return result
}

func (p *IOLParser) parse(ctx context.Context, r io.Reader, fileName string, dataPointID uuid.UUID, log *slog.Logger) *parsers.ParsingResult {
	result := parsers.NewParsingResult()

	if err := ctx.Err(); err != nil {
		result.AddError("parsing cancelled: %v", err)
		return result
	}

	rows, err := tabular.Open(r, fileName, columnCount)
	if err != nil {
		var fe *tabular.FormatError
		if errors.As(err, &fe) {
			result.AddError("file could not be read: %v", fe)
		} else {
			result.AddError("reading file: %v", err)
		}
		return result
	}

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			result.AddError("file could not be read: %v", err)
		} else {
			result.AddError("file contains no data")
		}
		return result
	}
	if check := fields.ValidateHeader(rows.Row(), expectedHeaders); !check.OK() {
		log.Warn("Header validation failed", "matches", check.Matches, "expected", check.Expected)
		result.AddError("unexpected header: %s", check)
		return result
	}

	stats := &result.Statistics
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			cancelled := parsers.NewParsingResult()
			cancelled.AddError("parsing cancelled at row %d: %v", rows.Index(), err)
			return cancelled
		}
		stats.TotalRows++

		m, err := buildMovement(rows.Row(), dataPointID)
		switch {
		case err != nil:
			stats.ErrorRows++
			result.AddWarning("row %d: %v", rows.Index(), err)
			log.Debug("Row skipped", "row", rows.Index(), "error", err)
		case m == nil:
			stats.IgnoredRows++
		default:
			result.AddMovement(m)
		}
	}
	if err := rows.Err(); err != nil {
		result.AddError("file could not be read: %v", err)
		return result
	}

	if len(result.Movements) == 0 {
		result.AddError("no movements extracted")
	}
	return result
}

// buildMovement maps one data row. Rows without a positive movement number are
// totals or footers and yield (nil, nil).
func buildMovement(row tabular.Row, dataPointID uuid.UUID) (*models.Movement, error) {
	number := fields.ParseInt(row.Cell(colNumber))
	if number <= 0 {
		return nil, nil
	}

	kind, ticker := fields.ParseMovementType(row.Cell(colType))
	var notes *string
	if n := row.Cell(colNotes); n != "" {
		notes = &n
	}

	return models.NewMovement(models.MovementParams{
		DataPointID:      dataPointID,
		Number:           number,
		Broker:           BrokerKey,
		Type:             kind,
		ConcertationDate: fields.ParseDate(row.Cell(colConcertation)),
		SettlementDate:   fields.ParseDate(row.Cell(colSettlement)),
		Quantity:         abs(fields.ParseInt(row.Cell(colQuantity))),
		Price:            fields.ParseDecimal(row.Cell(colPrice)).Abs(),
		Commission:       fields.ParseDecimal(row.Cell(colCommission)).Abs(),
		CommissionTax:    fields.ParseDecimal(row.Cell(colCommissionTax)).Abs(),
		OtherTaxes:       fields.ParseDecimal(row.Cell(colOtherTaxes)).Abs(),
		TotalAmount:      fields.ParseDecimal(row.Cell(colTotal)),
		Currency:         fields.ParseCurrency(row.Cell(colAccountType)),
		Ticker:           ticker,
		Notes:            notes,
	})
}

// Quantities are stored as magnitudes; the movement type carries the direction.
func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
