package fields

import (
	"strings"

	"github.com/username/portafolio/backend/src/models"
)

var currencyKeywords = []struct {
	keyword  string
	currency models.Currency
}{
	{"peso", models.CurrencyArgentinePeso},
	{"dolar", models.CurrencyUSDollar},
	{"euro", models.CurrencyEuro},
}

// ParseCurrency classifies an account-type label ("Inversión Argentina Pesos",
// "Cuenta Dólares"...). Empty or unknown labels default to Argentine pesos.
func ParseCurrency(accountType string) models.Currency {
	folded := fold(accountType)
	if folded == "" {
		return models.CurrencyArgentinePeso
	}
	for _, k := range currencyKeywords {
		if strings.Contains(folded, k.keyword) {
			return k.currency
		}
	}
	return models.CurrencyArgentinePeso
}
