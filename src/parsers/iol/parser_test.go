package iol

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/username/portafolio/backend/src/models"
	"github.com/username/portafolio/backend/src/parsers"
)

var header = []any{
	"Nro. de Mov.", "Nro. de Boleto", "Tipo Mov.", "Concert.", "Liquid.", "Est",
	"Cant. titulos", "Precio", "Comis.", "Iva Com.", "Otros Imp.", "Monto",
	"Observaciones", "Tipo Cuenta",
}

func workbook(t *testing.T, rows ...[]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func sampleRows() [][]any {
	return [][]any{
		header,
		{"1", "1001", "Compra (YPFD)", "05/03/2024", "07/03/2024", "Terminada", "10", "1500,50", "12,50", "2,63", "0,5", "-15020,63", "", "Inversión Argentina Pesos"},
		{"2", "1002", "Depósito", "01/03/2024", "01/03/2024", "Terminada", "", "", "", "", "", "100000", "Transferencia", "Inversión Argentina Pesos"},
		{"3", "1003", "Venta (AL30)", "10/03/2024", "12/03/2024", "Terminada", "-100", "55,10", "1", "0,21", "0", "5508,79", "", "Inversión Argentina Dólares"},
		{"", "", "Total", "", "", "", "", "", "", "", "", "90488,16", "", ""},
	}
}

func parseBytes(t *testing.T, data []byte, fileName string) *parsers.ParsingResult {
	t.Helper()
	return NewExcelParser().Parse(context.Background(), bytes.NewReader(data), fileName, "IOL", uuid.New())
}

func TestCanParse(t *testing.T) {
	excel, web := NewExcelParser(), NewHTMLParser()

	assert.True(t, excel.CanParse("IOL", "movs.xlsx"))
	assert.True(t, excel.CanParse("iol", "MOVS.XLS"))
	assert.False(t, excel.CanParse("IOL", "movs.html"))
	assert.False(t, excel.CanParse("BALANZ", "movs.xlsx"))

	assert.True(t, web.CanParse(" IOL ", "movs.htm"))
	assert.False(t, web.CanParse("IOL", "movs.csv"))

	assert.Equal(t, []string{"IOL"}, excel.SupportedBrokers())
	assert.Equal(t, []string{".xlsx", ".xls"}, excel.SupportedExtensions())
}

func TestParse_XLSX(t *testing.T) {
	dp := uuid.New()
	data := workbook(t, sampleRows()...)
	result := NewExcelParser().Parse(context.Background(), bytes.NewReader(data), "movs.xlsx", "iol", dp)

	require.True(t, result.IsSuccess(), "errors: %v", result.Errors)
	assert.Empty(t, result.Warnings)
	require.Len(t, result.Movements, 3)

	buy := result.Movements[0]
	assert.Equal(t, dp, buy.DataPointID)
	assert.Equal(t, 1, buy.Number)
	assert.Equal(t, "IOL", buy.Broker)
	assert.Equal(t, models.MovementPurchase, buy.Type)
	assert.Equal(t, "YPFD", buy.TickerOrEmpty())
	assert.Equal(t, 10, buy.Quantity)
	assert.True(t, decimal.RequireFromString("1500.50").Equal(buy.Price))
	assert.True(t, decimal.RequireFromString("-15020.63").Equal(buy.TotalAmount))
	assert.Equal(t, "05/03/2024", buy.ConcertationDate.Format("02/01/2006"))
	assert.Equal(t, "07/03/2024", buy.SettlementDate.Format("02/01/2006"))
	assert.Equal(t, models.CurrencyArgentinePeso, buy.Currency)
	assert.Nil(t, buy.Notes)

	deposit := result.Movements[1]
	assert.Equal(t, models.MovementDeposit, deposit.Type)
	assert.Nil(t, deposit.Ticker)
	assert.Zero(t, deposit.Quantity)
	require.NotNil(t, deposit.Notes)
	assert.Equal(t, "Transferencia", *deposit.Notes)

	sale := result.Movements[2]
	assert.Equal(t, models.MovementSale, sale.Type)
	assert.Equal(t, 100, sale.Quantity, "quantities are stored as magnitudes")
	assert.Equal(t, models.CurrencyUSDollar, sale.Currency)

	s := result.Statistics
	assert.Equal(t, 4, s.TotalRows)
	assert.Equal(t, 3, s.SuccessfulRows)
	assert.Equal(t, 0, s.ErrorRows)
	assert.Equal(t, 1, s.IgnoredRows)
	assert.Equal(t, map[string]int{"Purchase": 1, "Deposit": 1, "Sale": 1}, s.MovementsByType)
	assert.Equal(t, "01/03/2024", s.EarliestDate.Format("02/01/2006"))
	assert.Equal(t, "10/03/2024", s.LatestDate.Format("02/01/2006"))
}

func TestParse_NativeCellTypes(t *testing.T) {
	data := workbook(t,
		header,
		[]any{7, 1001, "Compra (GGAL)", 45356, 45358, "Terminada", 25, 1500.5, 1.25, 0.26, 0, -37515.01, "", "Inversión Argentina Pesos"},
	)
	result := parseBytes(t, data, "movs.xlsx")
	require.True(t, result.IsSuccess(), "errors: %v", result.Errors)
	require.Len(t, result.Movements, 1)

	m := result.Movements[0]
	assert.Equal(t, 7, m.Number)
	assert.Equal(t, 25, m.Quantity)
	assert.True(t, decimal.RequireFromString("1500.5").Equal(m.Price))
	assert.True(t, decimal.RequireFromString("-37515.01").Equal(m.TotalAmount))
	assert.Equal(t, "05/03/2024", m.ConcertationDate.Format("02/01/2006"), "serial day fallback")
}

// A purchase without a ticker fails construction: the row becomes a warning and
// the rest of the file still parses.
func TestParse_RowWithoutTickerIsWarned(t *testing.T) {
	rows := sampleRows()
	rows = append(rows[:2], append([][]any{
		{"9", "1009", "Compra", "05/03/2024", "07/03/2024", "Terminada", "10", "100", "", "", "", "-1000", "", ""},
	}, rows[2:]...)...)

	result := parseBytes(t, workbook(t, rows...), "movs.xlsx")

	require.True(t, result.IsSuccess())
	require.Len(t, result.Warnings, 1)
	assert.True(t, strings.HasPrefix(result.Warnings[0], "row 3: "), result.Warnings[0])
	assert.Contains(t, result.Warnings[0], "ticker")
	assert.Len(t, result.Movements, 3)
	assert.Equal(t, 1, result.Statistics.ErrorRows)

	dp := models.NewDataPoint(models.FileMetadata{FileName: "movs.xlsx", SizeInBytes: 10})
	require.NoError(t, dp.StartProcessing())
	for _, m := range result.Movements {
		m.DataPointID = dp.ID()
	}
	require.NoError(t, dp.AddMovements(result.Movements))
	require.NoError(t, dp.MarkCompleted())
}

func TestParse_NoMovements(t *testing.T) {
	result := parseBytes(t, workbook(t,
		header,
		[]any{"1", "", "Compra", "05/03/2024", "", "", "0", "", "", "", "", "", "", ""},
		[]any{"", "", "Total", "", "", "", "", "", "", "", "", "0", "", ""},
	), "movs.xlsx")

	assert.False(t, result.IsSuccess())
	assert.Equal(t, []string{"no movements extracted"}, result.Errors)
	assert.Empty(t, result.Movements)

	dp := models.NewDataPoint(models.FileMetadata{FileName: "movs.xlsx"})
	require.NoError(t, dp.StartProcessing())
	require.NoError(t, dp.AddMovements(result.Movements))
	assert.ErrorIs(t, dp.MarkCompleted(), models.ErrInvalidState)
}

func TestParse_HeaderOnly(t *testing.T) {
	result := parseBytes(t, workbook(t, header), "movs.xlsx")
	assert.Equal(t, []string{"no movements extracted"}, result.Errors)
}

func TestParse_WrongHeader(t *testing.T) {
	rows := sampleRows()
	rows[0] = []any{"Fecha", "Descripción", "Importe", "Saldo"}
	result := parseBytes(t, workbook(t, rows...), "movs.xlsx")

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected header")
	assert.Empty(t, result.Movements)
	assert.Zero(t, result.Statistics.TotalRows)
}

func TestParse_CorruptFile(t *testing.T) {
	result := parseBytes(t, []byte("not a workbook"), "movs.xlsx")
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "could not be read")
}

func TestParse_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := NewExcelParser().Parse(ctx, bytes.NewReader(workbook(t, sampleRows()...)), "movs.xlsx", "IOL", uuid.New())
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "cancelled")
	assert.Empty(t, result.Movements)
}

func TestParse_HTML(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body><table>")
	for _, row := range sampleRows() {
		b.WriteString("<tr>")
		for _, c := range row {
			fmt.Fprintf(&b, "<td>%v</td>", c)
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</table></body></html>")

	for _, name := range []string{"movs.html", "movs.xls"} {
		t.Run(name, func(t *testing.T) {
			d := parsers.NewDispatcher(NewParsers()...)
			result := d.Parse(context.Background(), strings.NewReader(b.String()), name, "IOL", uuid.New())
			require.True(t, result.IsSuccess(), "errors: %v", result.Errors)
			require.Len(t, result.Movements, 3)
			assert.Equal(t, "YPFD", result.Movements[0].TickerOrEmpty())
			assert.Equal(t, 1, result.Statistics.IgnoredRows)
		})
	}
}

func TestParse_LegacyXLS(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "tabular", "testdata", "movimientos.xls"))
	require.NoError(t, err)

	result := parseBytes(t, data, "movimientos.xls")
	require.True(t, result.IsSuccess(), "errors: %v", result.Errors)
	assert.Empty(t, result.Warnings)
	require.Len(t, result.Movements, 3)

	buy := result.Movements[0]
	assert.Equal(t, models.MovementPurchase, buy.Type)
	assert.Equal(t, "YPFD", buy.TickerOrEmpty())
	assert.Equal(t, 10, buy.Quantity)
	assert.Equal(t, "05/03/2024", buy.ConcertationDate.Format("02/01/2006"), "built-in date format")
	assert.Equal(t, "07/03/2024", buy.SettlementDate.Format("02/01/2006"), "cached formula with a custom date format")
	assert.True(t, decimal.RequireFromString("1500.5").Equal(buy.Price), buy.Price.String())
	assert.True(t, decimal.RequireFromString("-15020.63").Equal(buy.TotalAmount), buy.TotalAmount.String())
	require.NotNil(t, buy.Notes)
	assert.Equal(t, "Orden web", *buy.Notes)

	deposit := result.Movements[1]
	assert.Equal(t, models.MovementDeposit, deposit.Type)
	assert.Equal(t, "01/03/2024", deposit.ConcertationDate.Format("02/01/2006"))
	assert.True(t, decimal.RequireFromString("100000").Equal(deposit.TotalAmount))
	require.NotNil(t, deposit.Notes)
	assert.Equal(t, "Transferencia", *deposit.Notes)

	sale := result.Movements[2]
	assert.Equal(t, models.MovementSale, sale.Type)
	assert.Equal(t, 1500, sale.Quantity, "text cells keep their grouping dot")
	assert.True(t, decimal.RequireFromString("55.10").Equal(sale.Price), sale.Price.String())
	assert.True(t, decimal.RequireFromString("82648.79").Equal(sale.TotalAmount))
	assert.Equal(t, models.CurrencyUSDollar, sale.Currency)
}

func TestParse_Latin1HTML(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<html><head><meta http-equiv="Content-Type" content="text/html; charset=iso-8859-1"></head><body><table>`)
	for _, row := range sampleRows() {
		b.WriteString("<tr>")
		for _, c := range row {
			fmt.Fprintf(&b, "<td>%v</td>", c)
		}
		b.WriteString("</tr>")
	}
	b.WriteString("<tr><td>4</td><td></td><td>Caución (colocadora)</td><td>11/03/2024</td><td>18/03/2024</td><td>Terminada</td>" +
		"<td>50000</td><td>1</td><td></td><td></td><td></td><td>-50000</td><td></td><td>Inversión Argentina Pesos</td></tr>")
	b.WriteString("</table></body></html>")

	latin1, err := charmap.ISO8859_1.NewEncoder().String(b.String())
	require.NoError(t, err)
	require.False(t, utf8.ValidString(latin1))

	d := parsers.NewDispatcher(NewParsers()...)
	result := d.Parse(context.Background(), strings.NewReader(latin1), "movs.html", "IOL", uuid.New())
	require.True(t, result.IsSuccess(), "errors: %v", result.Errors)
	require.Len(t, result.Movements, 4)
	assert.Equal(t, models.MovementDeposit, result.Movements[1].Type)
	assert.Equal(t, models.CurrencyUSDollar, result.Movements[2].Currency)
	assert.Equal(t, models.MovementRepoLending, result.Movements[3].Type)
}

func TestParse_Deterministic(t *testing.T) {
	data := workbook(t, sampleRows()...)
	dp := uuid.New()
	a := NewExcelParser().Parse(context.Background(), bytes.NewReader(data), "movs.xlsx", "IOL", dp)
	b := NewExcelParser().Parse(context.Background(), bytes.NewReader(data), "movs.xlsx", "IOL", dp)

	require.Len(t, b.Movements, len(a.Movements))
	for i := range a.Movements {
		x, y := *a.Movements[i], *b.Movements[i]
		// ids and creation stamps are fresh per parse
		x.ID, y.ID = uuid.Nil, uuid.Nil
		x.CreatedAt = y.CreatedAt
		assert.Equal(t, x, y)
	}
	assert.Equal(t, a.Statistics, b.Statistics)
	assert.Equal(t, a.Warnings, b.Warnings)
}

func TestParse_TotalAbsoluteAmountIsSumOfMovements(t *testing.T) {
	result := parseBytes(t, workbook(t, sampleRows()...), "movs.xlsx")
	sum := decimal.Zero
	for _, m := range result.Movements {
		sum = sum.Add(m.TotalAmount.Abs())
	}
	assert.True(t, sum.Equal(result.Statistics.TotalAbsoluteAmount), "%s != %s", sum, result.Statistics.TotalAbsoluteAmount)
	assert.True(t, decimal.RequireFromString("120529.42").Equal(sum))
}

func TestParse_NeverEmitsInvalidMovements(t *testing.T) {
	rows := [][]any{header}
	labels := []string{"Compra (A)", "Compra", "Venta (B)", "Venta", "Caución", "Liquidación", "Dividendo (C)", "Depósito", "Otro"}
	qty := []string{"", "0", "5", "-3"}
	n := 1
	for _, l := range labels {
		for _, q := range qty {
			rows = append(rows, []any{fmt.Sprint(n), "", l, "05/03/2024", "", "", q, "-10", "", "", "", "1", "", ""})
			n++
		}
	}
	result := parseBytes(t, workbook(t, rows...), "movs.xlsx")
	require.True(t, result.IsSuccess())
	assert.Equal(t, len(rows)-1, len(result.Movements)+result.Statistics.ErrorRows)

	for _, m := range result.Movements {
		switch m.Type {
		case models.MovementPurchase, models.MovementSale:
			assert.NotNil(t, m.Ticker)
			assert.Positive(t, m.Quantity)
			assert.False(t, m.Price.IsNegative())
		case models.MovementRepoLending, models.MovementRepoSettlement:
			assert.Positive(t, m.Quantity)
		}
	}
}

func TestExpectedHeaders(t *testing.T) {
	h := ExpectedHeaders()
	require.Len(t, h, columnCount)
	h[0].Label = "changed"
	assert.Equal(t, "Nro. de Mov.", ExpectedHeaders()[0].Label)
}
