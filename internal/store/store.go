// Package store persists assembled run documents in PostgreSQL, keyed and
// deduplicated by their host-qualified directory path.
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/calderon/vaspdb/internal/types"
)

// SimulatedTaskID is the sentinel assigned in simulate mode, when no store
// is touched.
const SimulatedTaskID int64 = 0

// taskCounter is the name of the shared task-id counter row.
const taskCounter = "taskid"

// DuplicateError reports that a directory was already assimilated and the
// duplicate policy chose to skip it.
type DuplicateError struct {
	DirName string
	TaskID  int64
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate run %s already stored as task %d", e.DirName, e.TaskID)
}

// Store is the persistence contract the drone writes through.
type Store interface {
	// FindByDirName looks up the task id for a directory URI.
	FindByDirName(ctx context.Context, dirName string) (int64, bool, error)
	// Upsert inserts a document, assigning a fresh task id on first
	// insertion. Re-inserting an existing directory either updates the
	// stored document in place (keeping its task id) or returns a
	// *DuplicateError, depending on updateDuplicates.
	Upsert(ctx context.Context, doc *types.RunDocument, updateDuplicates bool) (int64, error)
	// PutBlob stores a large out-of-line payload and returns its
	// reference id.
	PutBlob(ctx context.Context, kind string, payload []byte) (uuid.UUID, error)
}
