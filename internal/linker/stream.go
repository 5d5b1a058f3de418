package linker

import (
	"context"
	"fmt"
	"iter"
	"sort"

	"go.uber.org/zap"
)

// Record maps identifier types to identifier values for one ingested row,
// e.g. {"email": "a@x", "phone": "555"}. Empty values mean the record carries
// no identifier of that type.
type Record map[string]string

// Pairs returns the record's non-empty identifiers as pairs, in type order so
// ingestion is deterministic regardless of map iteration.
func (r Record) Pairs() []Pair {
	types := make([]string, 0, len(r))
	for typ, name := range r {
		if name == "" {
			continue
		}
		types = append(types, typ)
	}
	sort.Strings(types)

	pairs := make([]Pair, len(types))
	for i, typ := range types {
		pairs[i] = Pair{Type: typ, Name: r[typ]}
	}
	return pairs
}

// ParseRecord validates a decoded JSON object as a Record. Null values are
// treated as absent; any other non-string value is a malformed record and is
// rejected rather than coerced.
func ParseRecord(raw map[string]any) (Record, error) {
	rec := make(Record, len(raw))
	for typ, v := range raw {
		switch val := v.(type) {
		case string:
			rec[typ] = val
		case nil:
			// absent identifier
		default:
			return nil, fmt.Errorf("record field %q: expected string, got %T", typ, v)
		}
	}
	return rec, nil
}

// UnionFromStream unions the identifiers of each record in turn. A record
// with zero or one non-empty identifier only materializes elements; it merges
// nothing.
func (l *Linker) UnionFromStream(ctx context.Context, records iter.Seq[Record]) error {
	n := 0
	for rec := range records {
		if _, err := l.Union(ctx, rec.Pairs()); err != nil {
			return fmt.Errorf("record %d: %w", n, err)
		}
		n++
	}
	l.log.Debug("stream ingested", zap.Int("records", n))
	return nil
}
