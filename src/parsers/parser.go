package parsers

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/portafolio/backend/src/models"
	"github.com/username/portafolio/backend/src/parsers/fields"
)

// ParsingResult is the outcome of parsing one file.
// Errors are fatal for the whole file; warnings concern single rows only.
type ParsingResult struct {
	Movements  []*models.Movement `json:"movements"`
	Errors     []string           `json:"errors"`
	Warnings   []string           `json:"warnings"`
	Statistics ParsingStatistics  `json:"statistics"`
}

// NewParsingResult returns an empty result ready to be filled.
func NewParsingResult() *ParsingResult {
	return &ParsingResult{
		Movements:  []*models.Movement{},
		Errors:     []string{},
		Warnings:   []string{},
		Statistics: ParsingStatistics{MovementsByType: map[string]int{}, TotalAbsoluteAmount: decimal.Zero},
	}
}

// FailedResult returns a result carrying a single fatal error.
func FailedResult(format string, args ...any) *ParsingResult {
	r := NewParsingResult()
	r.AddError(format, args...)
	return r
}

// IsSuccess is true iff there are no fatal errors. Warnings do not count.
func (r *ParsingResult) IsSuccess() bool { return len(r.Errors) == 0 }
func (r *ParsingResult) HasErrors() bool { return len(r.Errors) > 0 }
func (r *ParsingResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

func (r *ParsingResult) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ParsingResult) AddWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// AddMovement appends m and folds it into the statistics.
func (r *ParsingResult) AddMovement(m *models.Movement) {
	r.Movements = append(r.Movements, m)
	r.Statistics.record(m)
}

// ParsingStatistics summarizes a parse. TotalRows counts data rows only, not the header.
type ParsingStatistics struct {
	TotalRows           int             `json:"totalRows"`
	SuccessfulRows      int             `json:"successfulRows"`
	ErrorRows           int             `json:"errorRows"`
	IgnoredRows         int             `json:"ignoredRows"`
	MovementsByType     map[string]int  `json:"movementsByType"`
	EarliestDate        *time.Time      `json:"earliestDate,omitempty"`
	LatestDate          *time.Time      `json:"latestDate,omitempty"`
	TotalAbsoluteAmount decimal.Decimal `json:"totalAbsoluteAmount"`
}

// SuccessRate is the share of data rows that became movements, in percent.
func (s ParsingStatistics) SuccessRate() float64 {
	if s.TotalRows == 0 {
		return 0
	}
	return float64(s.SuccessfulRows) / float64(s.TotalRows) * 100
}

func (s *ParsingStatistics) record(m *models.Movement) {
	s.SuccessfulRows++
	if s.MovementsByType == nil {
		s.MovementsByType = map[string]int{}
	}
	s.MovementsByType[m.Type.String()]++
	s.TotalAbsoluteAmount = s.TotalAbsoluteAmount.Add(m.TotalAmount.Abs())

	d := m.ConcertationDate
	if fields.IsUnknownDate(d) {
		return
	}
	if s.EarliestDate == nil || d.Before(*s.EarliestDate) {
		earliest := d
		s.EarliestDate = &earliest
	}
	if s.LatestDate == nil || d.After(*s.LatestDate) {
		latest := d
		s.LatestDate = &latest
	}
}
