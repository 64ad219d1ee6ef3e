package parsers

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Parser is a per-broker statement parsing strategy.
type Parser interface {
	// CanParse reports whether this parser handles files of fileName's extension from brokerKey.
	CanParse(brokerKey, fileName string) bool

	SupportedBrokers() []string
	SupportedExtensions() []string

	// Parse extracts the movements of one file. Problems are reported in the result,
	// never as a panic or a separate error: a result with errors is a failed parse.
	Parse(ctx context.Context, r io.Reader, fileName, brokerKey string, dataPointID uuid.UUID) *ParsingResult
}
