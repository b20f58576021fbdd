// Package journal defines where upload summaries are recorded.
package journal

import (
	"context"

	"rareport/internal/core"
)

// Ports for outbound adapters.
type (
	Recorder interface {
		Record(ctx context.Context, s core.UploadSummary) error
	}

	// Lister returns the most recent summaries, newest first.
	Lister interface {
		Recent(ctx context.Context, limit int) ([]core.UploadSummary, error)
	}
)
