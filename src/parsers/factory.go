package parsers

import (
	"context"
	"io"
	"sort"

	"github.com/google/uuid"

	"github.com/username/portafolio/backend/src/logger"
)

// Dispatcher picks the first registered parser able to handle a broker/file pair.
// The parser set is fixed at construction, so a Dispatcher is safe for concurrent use.
type Dispatcher struct {
	parsers []Parser
}

// NewDispatcher registers parsers in priority order.
func NewDispatcher(parsers ...Parser) *Dispatcher {
	ps := make([]Parser, 0, len(parsers))
	for _, p := range parsers {
		if p != nil {
			ps = append(ps, p)
		}
	}
	return &Dispatcher{parsers: ps}
}

// GetParser returns the parser for brokerKey and fileName, or false when none matches.
func (d *Dispatcher) GetParser(brokerKey, fileName string) (Parser, bool) {
	for _, p := range d.parsers {
		if p.CanParse(brokerKey, fileName) {
			return p, true
		}
	}
	return nil, false
}

func (d *Dispatcher) CanParse(brokerKey, fileName string) bool {
	_, ok := d.GetParser(brokerKey, fileName)
	return ok
}

// SupportedBrokers is the sorted union of every registered parser's brokers.
func (d *Dispatcher) SupportedBrokers() []string {
	return d.union(Parser.SupportedBrokers)
}

// SupportedExtensions is the sorted union of every registered parser's extensions.
func (d *Dispatcher) SupportedExtensions() []string {
	return d.union(Parser.SupportedExtensions)
}

func (d *Dispatcher) union(list func(Parser) []string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, p := range d.parsers {
		for _, v := range list(p) {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// Parse delegates to the matching parser. An unmatched pair is reported as a failed
// result rather than an error since an unsupported upload is an expected condition.
func (d *Dispatcher) Parse(ctx context.Context, r io.Reader, fileName, brokerKey string, dataPointID uuid.UUID) *ParsingResult {
	p, ok := d.GetParser(brokerKey, fileName)
	if !ok {
		logger.L.Warn("No parser available", "broker", brokerKey, "fileName", fileName)
		return FailedResult("no parser available for broker %q and file %q", brokerKey, fileName)
	}
	return p.Parse(ctx, r, fileName, brokerKey, dataPointID)
}
