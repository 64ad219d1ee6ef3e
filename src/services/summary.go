package services

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/portafolio/backend/src/models"
	"github.com/username/portafolio/backend/src/parsers/fields"
	"github.com/username/portafolio/backend/src/utils"
)

// ProcessingSummary groups the movements of one DataPoint for display.
type ProcessingSummary struct {
	TotalPurchases   int `json:"totalPurchases"`
	TotalSales       int `json:"totalSales"`
	TotalDeposits    int `json:"totalDeposits"`
	TotalWithdrawals int `json:"totalWithdrawals"`
	TotalDividends   int `json:"totalDividends"`
	// Repo lendings and their settlements.
	TotalRepos  int `json:"totalRepos"`
	TotalOthers int `json:"totalOthers"`

	TotalAbsoluteAmount decimal.Decimal            `json:"totalAbsoluteAmount"`
	MovementsByTicker   map[string]int             `json:"movementsByTicker"`
	AmountsByCurrency   map[string]decimal.Decimal `json:"amountsByCurrency"`
	// AmountsByCurrency rendered with each currency's symbol and separators.
	FormattedAmounts map[string]string `json:"formattedAmounts"`

	DateFrom *time.Time `json:"dateFrom,omitempty"`
	DateTo   *time.Time `json:"dateTo,omitempty"`
}

// BuildSummary aggregates movements. Amounts are absolute values; unknown concertation
// dates do not move the date range.
func BuildSummary(movements []*models.Movement) *ProcessingSummary {
	s := &ProcessingSummary{
		TotalAbsoluteAmount: decimal.Zero,
		MovementsByTicker:   map[string]int{},
		AmountsByCurrency:   map[string]decimal.Decimal{},
		FormattedAmounts:    map[string]string{},
	}
	codes := map[string]string{}

	for _, m := range movements {
		switch m.Type {
		case models.MovementPurchase:
			s.TotalPurchases++
		case models.MovementSale:
			s.TotalSales++
		case models.MovementDeposit:
			s.TotalDeposits++
		case models.MovementWithdrawal:
			s.TotalWithdrawals++
		case models.MovementDividend:
			s.TotalDividends++
		case models.MovementRepoLending, models.MovementRepoSettlement:
			s.TotalRepos++
		default:
			s.TotalOthers++
		}

		amount := m.TotalAmount.Abs()
		s.TotalAbsoluteAmount = s.TotalAbsoluteAmount.Add(amount)
		if t := m.TickerOrEmpty(); t != "" {
			s.MovementsByTicker[t]++
		}
		cur := m.Currency.String()
		s.AmountsByCurrency[cur] = s.AmountsByCurrency[cur].Add(amount)
		codes[cur] = m.Currency.Code()

		d := m.ConcertationDate
		if fields.IsUnknownDate(d) {
			continue
		}
		if s.DateFrom == nil || d.Before(*s.DateFrom) {
			from := d
			s.DateFrom = &from
		}
		if s.DateTo == nil || d.After(*s.DateTo) {
			to := d
			s.DateTo = &to
		}
	}

	for cur, amount := range s.AmountsByCurrency {
		s.FormattedAmounts[cur] = utils.FormatMoney(amount, codes[cur])
	}
	return s
}
