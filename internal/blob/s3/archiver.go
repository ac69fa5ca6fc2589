package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Maicon-MK/integra--o-blockchain/internal/domain"
)

// Archiver moves settled escrow contracts out of the hot store. Terminal
// contracts older than the cutoff are serialized to JSONL, uploaded to
// archive/contracts/YYYY-MM.jsonl, and only then marked archived in the
// store. Rows are never deleted here; pruning is a separate, explicit step
// run after the archive has been verified.
type Archiver struct {
	writer  domain.BlobWriter
	escrows domain.EscrowStore
	logger  *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(writer domain.BlobWriter, escrows domain.EscrowStore, logger *slog.Logger) *Archiver {
	return &Archiver{writer: writer, escrows: escrows, logger: logger}
}

// ArchiveContracts uploads up to limit terminal, unarchived contracts
// resolved before the cutoff and marks them archived. Returns the number of
// contracts archived.
func (a *Archiver) ArchiveContracts(ctx context.Context, before time.Time, limit int) (int, error) {
	contracts, err := a.escrows.ListTerminalUnarchived(ctx, before, limit)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive contracts query: %w", err)
	}
	if len(contracts) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(contracts)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive contracts marshal: %w", err)
	}

	path := archivePath("contracts", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive contracts upload: %w", err)
	}

	ids := make([]string, len(contracts))
	for i, c := range contracts {
		ids[i] = c.ID
	}
	if err := a.escrows.MarkArchived(ctx, ids); err != nil {
		// The upload landed; the next run re-uploads the same rows rather
		// than losing them.
		return 0, fmt.Errorf("s3blob: mark contracts archived: %w", err)
	}

	a.logger.Info("contracts archived", "path", path, "count", len(contracts))
	return len(contracts), nil
}

// archivePath builds the object key for an archive batch, bucketed by month.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serializes a slice to newline-delimited JSON.
func marshalJSONL[T any](items []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
