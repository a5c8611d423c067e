package master

import (
	"context"
	"fmt"
	"os"

	"github.com/bcnelson/position-admin/internal/domain"
)

// FileShim serves positions from a local sync-out dump instead of the master
// server. Used for offline imports and tests.
type FileShim struct {
	filePath string
}

// Ensure FileShim implements PositionSource.
var _ PositionSource = (*FileShim)(nil)

// NewFileShim creates a source reading the given file.
func NewFileShim(filePath string) *FileShim {
	return &FileShim{filePath: filePath}
}

// FetchPositions returns the records in the file that belong to electionID.
func (f *FileShim) FetchPositions(ctx context.Context, electionID int64) ([]domain.PositionSyncRecord, error) {
	data, err := os.ReadFile(f.filePath)
	if err != nil {
		return nil, fmt.Errorf("reading positions file: %w", err)
	}
	records, err := DecodePositions(data)
	if err != nil {
		return nil, err
	}

	kept := records[:0]
	for _, r := range records {
		if r.GoogleCivicElectionID == electionID {
			kept = append(kept, r)
		}
	}
	return kept, nil
}
