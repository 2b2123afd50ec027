package main

import (
	"context"
	"io"

	"agentwatch/internal/backup"
	"agentwatch/internal/models"
	"agentwatch/internal/pipeline"

	"go.uber.org/zap"
)

const ingestChunkSize = 500

// ingester is the part of the pipeline the batch commands drive.
type ingester interface {
	Ingest(ctx context.Context, batch []models.RawMessage) (pipeline.BatchResult, error)
}

// ingestStream reads JSON lines from r and feeds them to p in chunks. Lines
// carrying scores are accepted; only the raw fields are used and the message
// is classified again.
func ingestStream(ctx context.Context, p ingester, r io.Reader, logger *zap.Logger) (pipeline.BatchResult, error) {
	var total pipeline.BatchResult
	chunk := make([]models.RawMessage, 0, ingestChunkSize)

	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		res, err := p.Ingest(ctx, chunk)
		if err != nil {
			return err
		}
		total.Received += res.Received
		total.Admitted += res.Admitted
		total.Duplicates += res.Duplicates
		total.Skipped += res.Skipped
		chunk = chunk[:0]
		return nil
	}

	_, err := backup.ReplayReader(r, logger, func(msg *models.Message) error {
		chunk = append(chunk, msg.RawMessage)
		if len(chunk) < ingestChunkSize {
			return nil
		}
		return flush()
	})
	if err != nil {
		return total, err
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}
