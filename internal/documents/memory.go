package documents

import (
	"context"
	"fmt"
	"path"
	"sync"

	"github.com/dvloznov/billflow/internal/domain"
	"github.com/google/uuid"
)

// Memory keeps documents in process memory under mem://<uuid>/<filename>.
type Memory struct {
	mu   sync.RWMutex
	objs map[string][]byte
}

// NewMemory creates an empty in-memory document store.
func NewMemory() *Memory {
	return &Memory{objs: make(map[string][]byte)}
}

// Put stores a copy of obj.Data.
func (m *Memory) Put(ctx context.Context, obj Object) (string, error) {
	name := path.Base(obj.Filename)
	if name == "." || name == "/" || name == "" {
		name = "document"
	}
	ref := fmt.Sprintf("mem://%s/%s", uuid.NewString(), name)

	data := make([]byte, len(obj.Data))
	copy(data, obj.Data)

	m.mu.Lock()
	m.objs[ref] = data
	m.mu.Unlock()
	return ref, nil
}

// Get returns a copy of the stored bytes.
func (m *Memory) Get(ctx context.Context, ref string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objs[ref]
	if !ok {
		return nil, fmt.Errorf("documents: %s: %w", ref, domain.ErrNotFound)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

var _ Store = (*Memory)(nil)
