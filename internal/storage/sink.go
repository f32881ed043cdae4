package storage

import (
	"context"

	"cardanoScope/internal/model"
)

// Sink receives batches of normalized outputs.
type Sink interface {
	PutOutputBatch(ctx context.Context, outputs []model.NormalizedOutput) error
	Close() error
}
