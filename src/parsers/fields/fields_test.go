package fields

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/portafolio/backend/src/models"
)

func TestParseMovementType(t *testing.T) {
	tests := []struct {
		name       string
		label      string
		wantType   models.MovementType
		wantTicker string
	}{
		{"purchase with ticker", "Compra (YPFD)", models.MovementPurchase, "YPFD"},
		{"sale with padded ticker", "Venta ( GGAL )", models.MovementSale, "GGAL"},
		{"deposit accented", "Depósito", models.MovementDeposit, ""},
		{"deposit plain", "deposito de fondos", models.MovementDeposit, ""},
		{"withdrawal", "Extracción", models.MovementWithdrawal, ""},
		{"dividend keeps ticker", "Pago de Dividendos (AAPL)", models.MovementDividend, "AAPL"},
		{"repo lending", "Caución Colocadora", models.MovementRepoLending, ""},
		{"repo settlement", "Liquidación", models.MovementRepoSettlement, ""},
		{"fund subscription", "Suscripción FCI (IOLCAMA)", models.MovementFundSubscription, "IOLCAMA"},
		{"fund redemption", "Rescate FCI (IOLCAMA)", models.MovementFundRedemption, "IOLCAMA"},
		{"credit", "Crédito", models.MovementCredit, ""},
		{"upper case", "COMPRA (AL30)", models.MovementPurchase, "AL30"},
		{"unknown without ticker", "Ajuste", models.MovementOther, ""},
		{"unknown keeps ticker", "Canje (AL30)", models.MovementOther, "AL30"},
		{"empty", "   ", models.MovementOther, ""},
		{"empty parenthesis", "Compra ()", models.MovementPurchase, ""},
		{"keyword inside parenthesis ignored", "Ajuste (venta)", models.MovementOther, "venta"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotTicker := ParseMovementType(tt.label)
			assert.Equal(t, tt.wantType, gotType)
			if tt.wantTicker == "" {
				assert.Nil(t, gotTicker)
				return
			}
			require.NotNil(t, gotTicker)
			assert.Equal(t, tt.wantTicker, *gotTicker)
		})
	}
}

func TestParseMovementType_FamilyOrder(t *testing.T) {
	// caución is listed before liquidación, so a label carrying both is repo lending.
	got, _ := ParseMovementType("Liquidación Caución")
	assert.Equal(t, models.MovementRepoLending, got)

	// compra is listed before venta.
	got, _ = ParseMovementType("Compra Venta (X)")
	assert.Equal(t, models.MovementPurchase, got)
}

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		label string
		want  models.Currency
	}{
		{"Inversión Argentina Pesos", models.CurrencyArgentinePeso},
		{"Inversión Argentina Dólares", models.CurrencyUSDollar},
		{"Cuenta en DOLARES", models.CurrencyUSDollar},
		{"Euros", models.CurrencyEuro},
		{"", models.CurrencyArgentinePeso},
		{"Cuenta comitente", models.CurrencyArgentinePeso},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCurrency(tt.label))
		})
	}
}

func TestParseInt(t *testing.T) {
	tests := map[string]int{
		"10":        10,
		"1.250":     1250,
		"1,250":     1250,
		" 42 ":      42,
		"-7":        -7,
		"":          0,
		"abc":       0,
		"12x":       0,
		"1.000.000": 1000000,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseInt(in), "ParseInt(%q)", in)
	}
}

func TestParseDecimal(t *testing.T) {
	tests := map[string]string{
		"1500,50":     "1500.5",
		"1.234,56":    "1234.56",
		"1,234.56":    "1234.56",
		"-1.234,56":   "-1234.56",
		"+12,5":       "12.5",
		"12.5":        "12.5",
		"0.125":       "0.125",
		"1.500":       "1500",
		"1.000.000":   "1000000",
		"1,000,000":   "1000000",
		"$ 1.000,00":  "1000",
		"1 000,25":    "1000.25",
		"1\u00a0000,25": "1000.25",
		"":            "0",
		"n/a":         "0",
		"12,3,4x":     "0",
	}
	for in, want := range tests {
		got := ParseDecimal(in)
		assert.True(t, decimal.RequireFromString(want).Equal(got), "ParseDecimal(%q) = %s, want %s", in, got, want)
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"05/03/2024", "5/3/2024", "05/03/2024 14:30:00", "05-03-2024", "2024-03-05", "05/03/24"} {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, ParseDate(in))
		})
	}
}

func TestParseDate_Unknown(t *testing.T) {
	for _, in := range []string{"", "ayer", "32/13/2024", "0", "-5"} {
		got := ParseDate(in)
		assert.True(t, IsUnknownDate(got), "ParseDate(%q) = %v", in, got)
	}
}

func TestParseDate_SerialFallback(t *testing.T) {
	tests := []struct {
		serial string
		text   string
	}{
		{"45292", "01/01/2024"},
		{"45356", "05/03/2024"},
		{"61", "01/03/1900"},
		{"44197,0", "01/01/2021"},
	}
	for _, tt := range tests {
		t.Run(tt.serial, func(t *testing.T) {
			fromSerial := ParseDate(tt.serial)
			require.False(t, IsUnknownDate(fromSerial))
			assert.Equal(t, ParseDate(tt.text), fromSerial)
		})
	}
}

func iolKeyHeaders() []ExpectedHeader {
	return []ExpectedHeader{
		{Label: "Nro. de Mov.", Position: 0},
		{Label: "Tipo Mov.", Position: 1},
		{Label: "Concert.", Position: 2},
		{Label: "Precio", Position: 3},
		{Label: "Monto", Position: 4},
	}
}

func TestExpectedHeaderToken(t *testing.T) {
	assert.Equal(t, "Nro", ExpectedHeader{Label: "Nro. de Mov."}.Token())
	assert.Equal(t, "Cant", ExpectedHeader{Label: "Cant. titulos"}.Token())
	assert.Equal(t, "Monto", ExpectedHeader{Label: "Monto"}.Token())
	assert.Equal(t, "Fecha", ExpectedHeader{Label: "Fecha (dd/mm)"}.Token())
}

func TestValidateHeader(t *testing.T) {
	t.Run("exact layout", func(t *testing.T) {
		row := []string{"Nro. de Mov.", "Tipo Mov.", "Concert.", "Precio", "Monto"}
		check := ValidateHeader(row, iolKeyHeaders())
		assert.True(t, check.OK())
		assert.Equal(t, 5, check.Matches)
		assert.Empty(t, check.Missing)
	})

	t.Run("three of five tokens accepted", func(t *testing.T) {
		row := []string{"Nro. de Mov.", "Operación", "Concert.", "Valor", "MONTO"}
		check := ValidateHeader(row, iolKeyHeaders())
		assert.True(t, check.OK())
		assert.Equal(t, 3, check.Matches)
		assert.ElementsMatch(t, []string{"Tipo Mov.", "Precio"}, check.Missing)
	})

	t.Run("shifted one column", func(t *testing.T) {
		row := []string{"", "Nro. de Mov.", "Tipo Mov.", "Concert.", "Precio", "Monto"}
		check := ValidateHeader(row, iolKeyHeaders())
		assert.True(t, check.OK())
	})

	t.Run("below half rejected", func(t *testing.T) {
		row := []string{"Nro", "Fecha", "Detalle", "Importe", "Saldo"}
		check := ValidateHeader(row, iolKeyHeaders())
		assert.False(t, check.OK())
		assert.Equal(t, 1, check.Matches)
		assert.Contains(t, check.String(), "1 of 5")
	})

	t.Run("short row does not panic", func(t *testing.T) {
		check := ValidateHeader([]string{"Nro"}, iolKeyHeaders())
		assert.False(t, check.OK())
	})
}
