package pipeline

import (
	"fmt"
	"io"

	"golang.org/x/text/encoding"

	"rareport/internal/core"
)

// Result is a fully prepared upload: normalized dataset and its segments.
type Result struct {
	*Normalized
	Payin  *core.Dataset
	Payout *core.Dataset
}

// Run ingests, normalizes and segments one file.
func Run(r io.Reader, enc encoding.Encoding) (*Result, error) {
	table, err := Ingest(r, enc)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	norm, err := Normalize(table)
	if err != nil {
		return nil, err
	}
	payin, payout, err := Segment(norm.Dataset)
	if err != nil {
		return nil, err
	}
	return &Result{Normalized: norm, Payin: payin, Payout: payout}, nil
}
