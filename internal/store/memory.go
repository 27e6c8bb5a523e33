package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/calderon/vaspdb/internal/types"
)

// Memory is an in-process Store used by tests. It mirrors the PGStore
// policy, including task-id stability across updates.
type Memory struct {
	mu      sync.Mutex
	counter int64
	docs    map[string]*types.RunDocument
	ids     map[string]int64
	blobs   map[uuid.UUID][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs:  map[string]*types.RunDocument{},
		ids:   map[string]int64{},
		blobs: map[uuid.UUID][]byte{},
	}
}

func (m *Memory) FindByDirName(_ context.Context, dirName string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.ids[dirName]
	return id, ok, nil
}

func (m *Memory) Upsert(_ context.Context, doc *types.RunDocument, updateDuplicates bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.ids[doc.DirName]; ok {
		if !updateDuplicates {
			return id, &DuplicateError{DirName: doc.DirName, TaskID: id}
		}
		doc.TaskID = id
		m.docs[doc.DirName] = doc
		return id, nil
	}
	m.counter++
	doc.TaskID = m.counter
	m.ids[doc.DirName] = m.counter
	m.docs[doc.DirName] = doc
	return m.counter, nil
}

func (m *Memory) PutBlob(_ context.Context, _ string, payload []byte) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.blobs[id] = payload
	return id, nil
}

// Get returns the stored document for a directory URI, or nil.
func (m *Memory) Get(dirName string) *types.RunDocument {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[dirName]
}

// Len returns the number of stored documents.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

// BlobCount returns the number of stored blobs.
func (m *Memory) BlobCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}
