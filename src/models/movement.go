package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementType is the category of a statement movement.
type MovementType int

const (
	MovementPurchase MovementType = iota
	MovementSale
	MovementDeposit
	MovementWithdrawal
	MovementDividend
	MovementRepoLending    // "Caución"
	MovementRepoSettlement // "Liquidación" of a caución
	MovementFundSubscription
	MovementFundRedemption
	MovementCredit
	MovementOther
)

var movementTypeNames = [...]string{
	MovementPurchase:         "Purchase",
	MovementSale:             "Sale",
	MovementDeposit:          "Deposit",
	MovementWithdrawal:       "Withdrawal",
	MovementDividend:         "Dividend",
	MovementRepoLending:      "RepoLending",
	MovementRepoSettlement:   "RepoSettlement",
	MovementFundSubscription: "FundSubscription",
	MovementFundRedemption:   "FundRedemption",
	MovementCredit:           "Credit",
	MovementOther:            "Other",
}

func (t MovementType) String() string {
	if t < 0 || int(t) >= len(movementTypeNames) {
		return fmt.Sprintf("MovementType(%d)", int(t))
	}
	return movementTypeNames[t]
}

// ParseMovementTypeName is the inverse of MovementType.String. Unknown names map to MovementOther.
func ParseMovementTypeName(name string) MovementType {
	for i, n := range movementTypeNames {
		if n == name {
			return MovementType(i)
		}
	}
	return MovementOther
}

// MarshalText encodes the type by name so JSON/YAML output stays readable.
func (t MovementType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// CashFlow is the direction of money implied by a movement type.
type CashFlow string

const (
	CashFlowInflow  CashFlow = "inflow"
	CashFlowOutflow CashFlow = "outflow"
	CashFlowNeutral CashFlow = "neutral"
)

// CashFlow classifies the direction of money for this movement type.
func (t MovementType) CashFlow() CashFlow {
	switch t {
	case MovementSale, MovementDeposit, MovementDividend, MovementRepoSettlement,
		MovementFundRedemption, MovementCredit:
		return CashFlowInflow
	case MovementPurchase, MovementWithdrawal, MovementRepoLending, MovementFundSubscription:
		return CashFlowOutflow
	default:
		return CashFlowNeutral
	}
}

// Currency classifies the account currency of a movement.
type Currency int

const (
	CurrencyArgentinePeso Currency = iota
	CurrencyUSDollar
	CurrencyEuro
	CurrencyOther
)

func (c Currency) String() string {
	switch c {
	case CurrencyArgentinePeso:
		return "ArgentinePeso"
	case CurrencyUSDollar:
		return "USDollar"
	case CurrencyEuro:
		return "Euro"
	default:
		return "Other"
	}
}

// Code returns the ISO 4217 code, or "" for CurrencyOther.
func (c Currency) Code() string {
	switch c {
	case CurrencyArgentinePeso:
		return "ARS"
	case CurrencyUSDollar:
		return "USD"
	case CurrencyEuro:
		return "EUR"
	default:
		return ""
	}
}

// CurrencyFromCode maps an ISO code back to a Currency.
func CurrencyFromCode(code string) Currency {
	switch strings.ToUpper(code) {
	case "ARS":
		return CurrencyArgentinePeso
	case "USD":
		return CurrencyUSDollar
	case "EUR":
		return CurrencyEuro
	default:
		return CurrencyOther
	}
}

func (c Currency) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Movement is one normalized financial event extracted from a statement row.
// It references its DataPoint by id only.
type Movement struct {
	ID               uuid.UUID       `json:"id"`
	DataPointID      uuid.UUID       `json:"dataPointId"`
	Number           int             `json:"number"`
	Broker           string          `json:"broker"`
	Ticker           *string         `json:"ticker,omitempty"`
	Type             MovementType    `json:"type"`
	ConcertationDate time.Time       `json:"concertationDate"`
	SettlementDate   time.Time       `json:"settlementDate"`
	Quantity         int             `json:"quantity"`
	Price            decimal.Decimal `json:"price"`
	Commission       decimal.Decimal `json:"commission"`
	CommissionTax    decimal.Decimal `json:"commissionTax"`
	OtherTaxes       decimal.Decimal `json:"otherTaxes"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	Currency         Currency        `json:"currency"`
	Notes            *string         `json:"notes,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// MovementParams carries the fields a parser extracted for one row.
type MovementParams struct {
	DataPointID      uuid.UUID
	Number           int
	Broker           string
	Type             MovementType
	ConcertationDate time.Time
	SettlementDate   time.Time
	Quantity         int
	Price            decimal.Decimal
	Commission       decimal.Decimal
	CommissionTax    decimal.Decimal
	OtherTaxes       decimal.Decimal
	TotalAmount      decimal.Decimal
	Currency         Currency
	Ticker           *string
	Notes            *string
}

// NewMovement validates p and builds a Movement with a fresh id.
// Failures wrap ErrInvalidMovement; the caller is expected to skip the row.
func NewMovement(p MovementParams) (*Movement, error) {
	if p.DataPointID == uuid.Nil {
		return nil, fmt.Errorf("%w: data point id cannot be empty", ErrInvalidMovement)
	}
	if strings.TrimSpace(p.Broker) == "" {
		return nil, fmt.Errorf("%w: broker cannot be empty", ErrInvalidMovement)
	}
	if p.Number <= 0 {
		return nil, fmt.Errorf("%w: movement number must be positive, got %d", ErrInvalidMovement, p.Number)
	}

	var ticker *string
	if p.Ticker != nil && strings.TrimSpace(*p.Ticker) != "" {
		t := strings.ToUpper(strings.TrimSpace(*p.Ticker))
		ticker = &t
	}
	if err := validateByType(p.Type, ticker, p.Quantity, p.Price); err != nil {
		return nil, err
	}

	var notes *string
	if p.Notes != nil && strings.TrimSpace(*p.Notes) != "" {
		n := strings.TrimSpace(*p.Notes)
		notes = &n
	}

	return &Movement{
		ID:               uuid.New(),
		DataPointID:      p.DataPointID,
		Number:           p.Number,
		Broker:           p.Broker,
		Ticker:           ticker,
		Type:             p.Type,
		ConcertationDate: p.ConcertationDate,
		SettlementDate:   p.SettlementDate,
		Quantity:         p.Quantity,
		Price:            p.Price,
		Commission:       p.Commission,
		CommissionTax:    p.CommissionTax,
		OtherTaxes:       p.OtherTaxes,
		TotalAmount:      p.TotalAmount,
		Currency:         p.Currency,
		Notes:            notes,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

func validateByType(t MovementType, ticker *string, quantity int, price decimal.Decimal) error {
	switch t {
	case MovementPurchase, MovementSale:
		if ticker == nil {
			return fmt.Errorf("%w: %s requires a ticker", ErrInvalidMovement, t)
		}
		if quantity <= 0 {
			return fmt.Errorf("%w: %s requires a positive quantity, got %d", ErrInvalidMovement, t, quantity)
		}
		if price.IsNegative() {
			return fmt.Errorf("%w: %s price cannot be negative, got %s", ErrInvalidMovement, t, price)
		}
	case MovementRepoLending, MovementRepoSettlement:
		if quantity <= 0 {
			return fmt.Errorf("%w: %s requires a positive quantity, got %d", ErrInvalidMovement, t, quantity)
		}
	}
	return nil
}

// NetAmount is the total amount minus commission and taxes.
func (m *Movement) NetAmount() decimal.Decimal {
	return m.TotalAmount.Sub(m.Commission).Sub(m.CommissionTax).Sub(m.OtherTaxes)
}

// TotalTaxes is commission plus commission tax plus other taxes.
func (m *Movement) TotalTaxes() decimal.Decimal {
	return m.Commission.Add(m.CommissionTax).Add(m.OtherTaxes)
}

func (m *Movement) CashFlow() CashFlow { return m.Type.CashFlow() }
func (m *Movement) IsInflow() bool     { return m.Type.CashFlow() == CashFlowInflow }
func (m *Movement) IsOutflow() bool    { return m.Type.CashFlow() == CashFlowOutflow }

// TickerOrEmpty dereferences Ticker.
func (m *Movement) TickerOrEmpty() string {
	if m.Ticker == nil {
		return ""
	}
	return *m.Ticker
}

// AddNote appends note to the movement notes, separated by " | ". Blank notes are ignored.
func (m *Movement) AddNote(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	if m.Notes == nil || *m.Notes == "" {
		m.Notes = &note
		return
	}
	joined := *m.Notes + " | " + note
	m.Notes = &joined
}
