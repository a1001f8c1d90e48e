package storage

import (
	"context"

	"logwatch/internal/model"
)

// Storage defines a sink for decoded logs.
type Storage interface {
	PutLogBatch(ctx context.Context, logs []model.Log) error
}

// Multi fans a batch out to several sinks in order, stopping at the first error.
type Multi []Storage

func (m Multi) PutLogBatch(ctx context.Context, logs []model.Log) error {
	for _, sink := range m {
		if err := sink.PutLogBatch(ctx, logs); err != nil {
			return err
		}
	}
	return nil
}
